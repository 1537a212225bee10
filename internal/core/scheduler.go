package core

// scheduler.go provides background retention of superseded runs.
//
// Corrected re-validation keeps every prior run in the supersedes chain for
// auditability, which grows without bound. The retention scheduler
// periodically removes superseded runs older than the configured window;
// the newest run of every chain is never touched.
//
// The scheduler is long-running and context-aware for graceful shutdown. It
// logs failures but never fails the application over a missed cycle.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig holds configuration for the retention scheduler.
type RetentionConfig struct {
	// KeepSuperseded is how long superseded runs stay queryable.
	KeepSuperseded time.Duration
	// CheckInterval is how often to run the purge (default: 24h).
	CheckInterval time.Duration
}

// StartRetentionScheduler starts a background goroutine that periodically
// purges superseded runs past the retention window. It runs once on start,
// then every CheckInterval, and stops when ctx is cancelled. A
// KeepSuperseded of zero disables purging entirely.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	if cfg.KeepSuperseded <= 0 {
		s.logger.Info("retention scheduler disabled")
		return
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 24 * time.Hour
	}

	s.logger.Info("retention scheduler started",
		slog.Duration("keep_superseded", cfg.KeepSuperseded),
		slog.Duration("check_interval", cfg.CheckInterval),
	)

	s.runRetentionJob(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retention scheduler stopped")
			return
		case <-ticker.C:
			s.runRetentionJob(ctx, cfg)
		}
	}
}

func (s *Service) runRetentionJob(ctx context.Context, cfg RetentionConfig) {
	start := time.Now()
	cutoff := time.Now().UTC().Add(-cfg.KeepSuperseded)

	purged, err := s.store.PurgeSupersededBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("retention purge failed", slog.Any("error", err))
		return
	}

	s.logger.Info("retention purge completed",
		slog.Int64("runs_purged", purged),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}
