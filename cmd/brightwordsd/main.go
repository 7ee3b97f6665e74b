package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"brightwords/internal/config"
	"brightwords/internal/progress"
	"brightwords/internal/queue"
	"brightwords/internal/retry"
	"brightwords/internal/storage/postgres"
	"brightwords/internal/storage/rediscache"
	"brightwords/internal/storage/sqlite"
)

func main() {
	if err := run(); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	setupLogging(cfg.Debug)

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var cache progress.SnapshotCache
	if cfg.RedisURL != "" {
		c, err := rediscache.New(cfg.RedisURL, slog.Default())
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer c.Close()
		cache = c
	}

	var publisher progress.EventPublisher
	if cfg.RabbitMQURL != "" {
		conn, err := queue.Connect(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer conn.Close()
		publisher = queue.NewProducer(conn)
	}

	svc := progress.NewService(store, publisher, cache, retry.Config{
		MaxAttempts:  cfg.RetryMaxAttempts,
		InitialDelay: cfg.RetryInitialDelay,
		MaxDelay:     cfg.RetryMaxDelay,
	})
	// End-to-end read probe against the live backend.
	if _, err := svc.GetRecentSessions(ctx, "startup-probe", 1); err != nil {
		return fmt.Errorf("storage self-check: %w", err)
	}

	slog.Info("brightwords engine ready",
		"backend", cfg.StoreBackend,
		"cache", cache != nil,
		"queue", publisher != nil,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	slog.Info("received signal, shutting down", "signal", sig.String())
	return nil
}

// openStore opens the configured backend and runs its migrations.
func openStore(ctx context.Context, cfg *config.Config) (progress.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return postgres.NewStore(pool), pool.Close, nil

	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return sqlite.NewStore(db), func() { db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}
