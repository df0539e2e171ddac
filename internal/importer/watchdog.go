package importer

// watchdog.go reaps import jobs that died without reaching a terminal state.
//
// The admission cap counts live job records, so a job whose process crashed
// mid-run would otherwise hold one of its vendor's slots forever. The
// watchdog periodically marks non-terminal jobs older than MaxJobAge as
// FAILED, releasing the slot. It logs progress but never fails the
// application when an individual sweep errors.

import (
	"context"
	"log/slog"
	"time"
)

// WatchdogConfig holds the sweep settings. Zero values get defaults.
type WatchdogConfig struct {
	// MaxJobAge is how old a non-terminal job may be before it is reaped
	// (default: 30m, comfortably above the job execution timeout).
	MaxJobAge time.Duration

	// CheckInterval is how often to sweep (default: 5m).
	CheckInterval time.Duration
}

// StartWatchdog runs the reaper loop until the context is cancelled. It
// sweeps immediately on start, then every CheckInterval.
func (s *Service) StartWatchdog(ctx context.Context, cfg WatchdogConfig) {
	if cfg.MaxJobAge <= 0 {
		cfg.MaxJobAge = 30 * time.Minute
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 5 * time.Minute
	}

	slog.Info("import watchdog started",
		"max_job_age", cfg.MaxJobAge,
		"check_interval", cfg.CheckInterval,
	)

	s.reapStaleJobs(ctx, cfg.MaxJobAge)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("import watchdog stopped")
			return
		case <-ticker.C:
			s.reapStaleJobs(ctx, cfg.MaxJobAge)
		}
	}
}

// reapStaleJobs performs one sweep.
func (s *Service) reapStaleJobs(ctx context.Context, maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)

	stale, err := s.jobs.ListStale(ctx, cutoff)
	if err != nil {
		slog.Error("watchdog sweep failed", "error", err)
		return
	}

	for _, job := range stale {
		if err := s.jobs.Fail(ctx, job.ID, "reaped by watchdog: job exceeded maximum age without completing"); err != nil {
			slog.Error("watchdog failed to reap job", "job_id", job.ID, "error", err)
			continue
		}
		slog.Warn("watchdog reaped stale import job",
			"job_id", job.ID,
			"vendor_id", job.VendorID,
			"status", job.Status,
			"created_at", job.CreatedAt,
		)
	}

	if len(stale) > 0 {
		slog.Info("watchdog sweep completed", "reaped", len(stale))
	}
}
