package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/beanbocchi/parcel/config"
	"github.com/beanbocchi/parcel/internal/db"
	"github.com/beanbocchi/parcel/internal/metrics"
	"github.com/beanbocchi/parcel/internal/service"
	"github.com/beanbocchi/parcel/internal/transport"
)

const shutdownTimeout = 15 * time.Second

// NewConfig provides the application configuration
func NewConfig() *config.Config {
	return config.GetConfig()
}

func SetupLogger(cfg config.Log) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// Start runs the upload server until ctx is cancelled, then shuts it down gracefully.
func Start(ctx context.Context) error {
	cfg := NewConfig()
	SetupLogger(cfg.Log)

	sqlDB, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := db.Migrate(sqlDB); err != nil {
		return err
	}

	var registry *metrics.Registry
	if cfg.Metrics.Enabled {
		registry = metrics.NewRegistry()
	}

	svc, err := service.NewService(ctx, cfg, sqlDB, registry)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	defer svc.Close()

	svc.StartReaper(ctx)

	e, err := transport.NewEcho(cfg, svc, registry)
	if err != nil {
		return fmt.Errorf("create echo: %w", err)
	}
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"address", cfg.Server.Address,
			"env", cfg.Env,
			"objectstore", cfg.Objectstore.Type,
			"maxChunkSize", cfg.Upload.MaxChunkSize.HumanReadable(),
		)
		if err := e.Start(cfg.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
