// Server runs the session API over HTTP and the gRPC health service, plus the
// revoked-session sweeper.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"workflow-tracker/backend/internal/audit"
	auditrepo "workflow-tracker/backend/internal/audit/repository"
	"workflow-tracker/backend/internal/config"
	"workflow-tracker/backend/internal/db"
	"workflow-tracker/backend/internal/health"
	identityhandler "workflow-tracker/backend/internal/identity/handler"
	"workflow-tracker/backend/internal/identity/service"
	"workflow-tracker/backend/internal/logger"
	"workflow-tracker/backend/internal/policy/engine"
	"workflow-tracker/backend/internal/security"
	"workflow-tracker/backend/internal/server"
	"workflow-tracker/backend/internal/server/interceptors"
	"workflow-tracker/backend/internal/session"
	sessionrepo "workflow-tracker/backend/internal/session/repository"
	"workflow-tracker/backend/internal/telemetry"
	oteltelemetry "workflow-tracker/backend/internal/telemetry/otel"
	"workflow-tracker/backend/internal/telemetry/producer"
	userhandler "workflow-tracker/backend/internal/user/handler"
	userrepo "workflow-tracker/backend/internal/user/repository"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("config", zap.Error(err))
	}
	log := logger.New(cfg.LogLevel, cfg.Env)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if err := cfg.ValidateAuth(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := oteltelemetry.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, false)
	if err != nil {
		return err
	}
	providers.SetGlobal()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	jwtKey, err := security.LoadSecret(cfg.JWTSecret)
	if err != nil {
		return err
	}
	hashKey, err := security.LoadSecret(cfg.TokenHashSecret)
	if err != nil {
		return err
	}
	tokens, err := security.NewTokenProvider(jwtKey, cfg.JWTIssuer, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	kafkaProducer := producer.NewKafkaProducer(cfg.KafkaBrokerList(), cfg.SessionEventsTopic)
	events := telemetry.MultiEmitter{oteltelemetry.NewEventEmitter(providers.LoggerProvider)}
	if kafkaProducer != nil {
		events = append(events, kafkaProducer)
		log.Info("session events stream to kafka", zap.String("topic", cfg.SessionEventsTopic))
	}

	users := userrepo.NewPostgresRepository(conn)
	sessions := sessionrepo.NewPostgresRepository(conn)
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(conn), interceptors.ClientIP, logger.WithComponent(log, "audit"))

	authSvc := service.NewAuthService(
		users, sessions, db.NewTxManager(conn),
		security.NewHasher(cfg.BcryptCost), tokens, security.NewTokenHasher(hashKey),
		service.WithAudit(auditLogger),
		service.WithEvents(events),
		service.WithMetrics(metrics),
		service.WithLogger(logger.WithComponent(log, "auth")),
		service.WithClientIP(interceptors.ClientIP),
	)

	policy, err := engine.NewRouteEvaluator(ctx)
	if err != nil {
		return err
	}
	checker := health.NewChecker(conn, policy)
	authenticator := interceptors.NewAuthenticator(tokens, users, logger.WithComponent(log, "authn"))
	trustedProxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewHTTPHandler(server.HTTPDeps{
			Auth:           identityhandler.NewAuthHandler(authSvc, identityhandler.CookieConfig{Secure: cfg.SecureCookies(), MaxAge: cfg.RefreshTTL()}, log),
			Users:          userhandler.NewHandler(users, log),
			Authenticator:  authenticator,
			Policy:         policy,
			Health:         checker,
			Gatherer:       reg,
			AllowedOrigins: cfg.CORSOrigins(),
			LoginPerMinute: cfg.LoginRateLimitPerMin,
			TrustedProxies: trustedProxies,
			ServiceName:    cfg.ServiceName,
			Log:            logger.WithComponent(log, "http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	cleaner := session.NewCleaner(sessions, session.CleanerConfig{
		Enabled:   cfg.TokenCleanupEnabled,
		Interval:  cfg.TokenCleanupInterval,
		Retention: cfg.CleanupRetention(),
		BatchSize: cfg.TokenCleanupBatchSize,
	}, metrics, events, logger.WithComponent(log, "cleanup"))

	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()
	go cleaner.Run(bgCtx)

	errCh := make(chan error, 2)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var grpcSrv *server.GRPCServer
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		grpcSrv = server.NewGRPCServer(authenticator, logger.WithComponent(log, "grpc"), cfg.Env != config.EnvProduction)
		go checker.Watch(bgCtx, grpcSrv.Health, 30*time.Second, log)
		go func() {
			log.Info("grpc server listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-errCh:
		log.Error("server failed", zap.Error(runErr))
	}

	cancelBg()
	if grpcSrv != nil {
		grpcSrv.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}

	// Let in-flight async event emits finish before the exporters close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Warn("kafka producer close", zap.Error(err))
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn("telemetry shutdown", zap.Error(err))
	}
	log.Info("server stopped")
	return runErr
}
