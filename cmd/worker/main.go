// Worker consumes session events from Kafka and pushes them to Loki.
// Set KAFKA_BROKERS, SESSION_EVENTS_TOPIC, KAFKA_GROUP_ID and LOKI_URL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"workflow-tracker/backend/internal/config"
	"workflow-tracker/backend/internal/logger"
	"workflow-tracker/backend/internal/telemetry/loki"
)

const pushTimeout = 10 * time.Second

// messageReader is the part of *kafka.Reader the worker uses.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// eventSink receives raw event JSON.
type eventSink interface {
	PushEventJSON(ctx context.Context, rawJSON []byte) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("config", zap.Error(err))
	}
	log := logger.WithComponent(logger.New(cfg.LogLevel, cfg.Env), "worker")
	defer func() { _ = log.Sync() }()

	brokers := cfg.KafkaBrokerList()
	if len(brokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required")
	}
	client, err := loki.NewClient(cfg.LokiURL, cfg.ServiceName)
	if err != nil {
		log.Fatal("LOKI_URL is required", zap.Error(err))
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.SessionEventsTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("consuming session events",
		zap.String("topic", cfg.SessionEventsTopic),
		zap.String("group", cfg.KafkaGroupID),
		zap.String("loki", cfg.LokiURL))
	forward(ctx, reader, client, log)
	log.Info("worker stopped")
}

// forward copies messages from reader to sink until ctx is cancelled. Read and
// push failures are logged; a failed push drops that event.
func forward(ctx context.Context, reader messageReader, sink eventSink, log *zap.Logger) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("kafka read failed", zap.Error(err))
			continue
		}
		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := sink.PushEventJSON(pushCtx, msg.Value); err != nil {
			log.Warn("loki push failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
		cancel()
	}
}
