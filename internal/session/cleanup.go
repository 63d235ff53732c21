// Package session holds the scheduled sweep that hard-deletes long-revoked
// sessions. Domain types live in session/domain, persistence in session/repository.
package session

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"workflow-tracker/backend/internal/telemetry"
)

// Deleter is the part of the session store the cleaner needs.
type Deleter interface {
	DeleteRevokedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// CleanerConfig controls the sweep schedule.
type CleanerConfig struct {
	Enabled   bool
	Interval  time.Duration
	Retention time.Duration
	BatchSize int
}

// Cleaner periodically removes sessions revoked longer ago than the retention
// window. Active sessions are never touched.
type Cleaner struct {
	repo    Deleter
	cfg     CleanerConfig
	metrics *telemetry.Metrics
	events  telemetry.EventEmitter
	log     *zap.Logger
	now     func() time.Time
}

// NewCleaner returns a Cleaner. metrics and events may be nil.
func NewCleaner(repo Deleter, cfg CleanerConfig, metrics *telemetry.Metrics, events telemetry.EventEmitter, log *zap.Logger) *Cleaner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cleaner{
		repo:    repo,
		cfg:     cfg,
		metrics: metrics,
		events:  events,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps once, then every interval until ctx is cancelled. It returns
// immediately when the cleaner is disabled.
func (c *Cleaner) Run(ctx context.Context) {
	if !c.cfg.Enabled {
		c.log.Info("session cleanup disabled")
		return
	}
	c.log.Info("session cleanup started",
		zap.Duration("interval", c.cfg.Interval),
		zap.Duration("retention", c.cfg.Retention))

	c.Sweep(ctx)
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.log.Info("session cleanup stopped")
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep deletes revoked sessions older than the retention window in batches
// and returns how many were removed. A failed batch is logged and ends the
// sweep; the next tick retries.
func (c *Cleaner) Sweep(ctx context.Context) int64 {
	start := time.Now()
	cutoff := c.now().Add(-c.cfg.Retention)
	var (
		total    int64
		failures int
	)
	for ctx.Err() == nil {
		n, err := c.repo.DeleteRevokedBefore(ctx, cutoff, c.cfg.BatchSize)
		if err != nil {
			failures++
			c.log.Warn("session cleanup batch failed", zap.Time("cutoff", cutoff), zap.Error(err))
			break
		}
		total += n
		if n < int64(c.cfg.BatchSize) {
			break
		}
	}
	c.metrics.CleanupSweep(total, failures, time.Since(start).Seconds())
	if total > 0 {
		c.log.Info("session cleanup swept", zap.Int64("deleted", total), zap.Time("cutoff", cutoff))
		if c.events != nil {
			ev := telemetry.NewSessionEvent(telemetry.EventCleanupSwept, "", "")
			ev.Attributes = map[string]string{"deleted": strconv.FormatInt(total, 10)}
			telemetry.EmitAsync(ctx, c.events, ev, c.log)
		}
	}
	return total
}
