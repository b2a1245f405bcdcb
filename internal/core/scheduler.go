package core

// scheduler.go runs background maintenance: pruning old run history and
// dropping expired result workbooks. It is long-running and stops when its
// context is cancelled; a failed cycle is logged and retried next tick.

import (
	"context"
	"log/slog"
	"time"
)

// MaintenanceConfig holds the maintenance schedule.
// Zero values are replaced with defaults.
type MaintenanceConfig struct {
	RetentionDays int           // Days to keep run history (default: 30)
	CheckInterval time.Duration // How often to prune history (default: 6h)
	SweepInterval time.Duration // How often to drop expired workbooks (default: 1m)
}

func (c *MaintenanceConfig) applyDefaults() {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 6 * time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
}

// StartMaintenance prunes history immediately and then every CheckInterval,
// and sweeps expired workbooks every SweepInterval, until ctx is cancelled.
func (s *Service) StartMaintenance(ctx context.Context, cfg MaintenanceConfig) {
	cfg.applyDefaults()
	slog.Info("maintenance scheduler started",
		"retention_days", cfg.RetentionDays,
		"check_interval", cfg.CheckInterval.String(),
	)

	s.pruneHistory(ctx, cfg.RetentionDays)

	prune := time.NewTicker(cfg.CheckInterval)
	defer prune.Stop()
	sweep := time.NewTicker(cfg.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("maintenance scheduler stopped")
			return
		case <-prune.C:
			s.pruneHistory(ctx, cfg.RetentionDays)
		case <-sweep.C:
			if n := s.artifacts.Sweep(); n > 0 {
				slog.Debug("expired workbooks dropped", "count", n)
			}
		}
	}
}

// pruneHistory performs one prune cycle.
func (s *Service) pruneHistory(ctx context.Context, retentionDays int) {
	start := time.Now()
	cutoff := start.AddDate(0, 0, -retentionDays)

	removed, err := s.history.Prune(ctx, cutoff)
	if err != nil {
		slog.Error("history prune failed", "error", err)
		return
	}
	slog.Info("history pruned",
		"entries_removed", removed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
