// Package application wires configuration, history storage, the check
// service and the HTTP server into one runnable process.
package application

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/tbcheck/internal/config"
	"github.com/JonMunkholm/tbcheck/internal/core"
	"github.com/JonMunkholm/tbcheck/internal/store"
	"github.com/JonMunkholm/tbcheck/internal/web"
)

// App is a configured checker process.
type App struct {
	cfg     *config.Config
	history store.Store
	service *core.Service
}

// New opens the history store and builds the service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	history, err := OpenHistory(ctx, cfg)
	if err != nil {
		return nil, err
	}

	service, err := core.NewService(cfg, history)
	if err != nil {
		history.Close()
		return nil, err
	}

	return &App{cfg: cfg, history: history, service: service}, nil
}

// OpenHistory picks the run history backend: Postgres when a database URL
// is configured, a SQLite file when HISTORY_DB_PATH is set, memory otherwise.
func OpenHistory(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch {
	case cfg.Database.URL != "":
		return store.OpenPostgres(ctx, cfg.Database)
	case cfg.History.Path != "":
		s, err := store.OpenSQLite(ctx, cfg.History.Path)
		if err != nil {
			return nil, err
		}
		slog.Info("keeping run history in sqlite", "path", s.Path())
		return s, nil
	default:
		slog.Info("no database configured, keeping run history in memory",
			"limit", cfg.History.MemoryLimit)
		return store.NewMemory(cfg.History.MemoryLimit), nil
	}
}

// Service returns the check service.
func (a *App) Service() *core.Service {
	return a.service
}

// Close releases the history store.
func (a *App) Close() {
	a.history.Close()
}

// Serve runs the HTTP server and the maintenance jobs until ctx is done,
// then drains active runs and shuts the server down.
func (a *App) Serve(ctx context.Context) error {
	server := web.NewServer(a.service, a.cfg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	go a.service.StartMaintenance(jobCtx, core.MaintenanceConfig{
		RetentionDays: a.cfg.History.RetentionDays,
		CheckInterval: a.cfg.History.CheckInterval,
		SweepInterval: a.cfg.Run.ArtifactTTL / 2,
	})

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.cfg.Server.Addr())
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if status := a.service.LimiterStatus(); status.Active > 0 {
		slog.Info("waiting for runs to complete", "active", status.Active)
		if err := a.service.WaitForRuns(shutdownCtx); err != nil {
			slog.Warn("runs did not complete in time", "error", err)
		} else {
			slog.Info("all runs completed")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
