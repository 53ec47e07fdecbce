package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/stockrecon/internal/config"
	"github.com/JonMunkholm/stockrecon/internal/core"
	_ "github.com/JonMunkholm/stockrecon/internal/core/profiles" // Register template profiles
	"github.com/JonMunkholm/stockrecon/internal/lock"
	"github.com/JonMunkholm/stockrecon/internal/logging"
	"github.com/JonMunkholm/stockrecon/internal/postgres"
	"github.com/JonMunkholm/stockrecon/internal/web"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"max_concurrent_applies", cfg.Import.MaxConcurrentApplies,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"redis_lock", cfg.Redis.URL != "",
	)

	syncOwners, err := cfg.Security.SyncKeyOwners()
	if err != nil {
		slog.Error("invalid sync keys", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolOptions{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		n, err := postgres.Migrate(ctx, pool)
		if err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		slog.Info("database migrated", "applied", n)
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.URL != "" {
		client, err := lock.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		locker = lock.NewRedisLocker(client, cfg.Redis.LockTTL)
		slog.Info("using redis apply lock", "ttl", cfg.Redis.LockTTL.String())
	}

	service := core.NewService(
		postgres.NewStore(pool),
		locker,
		core.NewApplyLimiter(cfg.Import.MaxConcurrentApplies, cfg.Import.ApplyWaitTime),
		core.Options{
			DefaultCategory: cfg.Import.DefaultCategory,
			DefaultUnit:     cfg.Import.DefaultUnit,
			Delimiter:       cfg.Import.DelimiterRune(),
			MaxFileSize:     cfg.Import.MaxFileSize,
			ApplyTimeout:    cfg.Import.ApplyTimeout,
		},
	)

	slog.Info("template profiles registered", "count", len(core.Profiles()))

	server := web.NewServer(service, cfg, syncOwners)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartSessionSweeper(jobCtx, cfg.Import.SweepInterval, cfg.Import.SessionTTL)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop accepting requests first, then let running applies finish.
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for applies to complete", "active", status.Active)
			if err := service.WaitForApplies(shutdownCtx); err != nil {
				slog.Warn("applies did not complete in time", "error", err)
			} else {
				slog.Info("all applies completed")
			}
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
