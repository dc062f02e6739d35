// cmd/doceria/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"doceria/internal/catalog"
	"doceria/internal/config"
	"doceria/internal/logger"
	"doceria/internal/server"
	"doceria/internal/session"
	"doceria/internal/storage"
	"doceria/internal/telemetry"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{
		Service: "doceria",
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("doceria stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Options{
		Service:  "doceria",
		Env:      cfg.AppEnv,
		Endpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			log.Warn("telemetry shutdown failed", slog.Any("err", err))
		}
	}()

	if cfg.DatabaseURL == "" && cfg.SQLitePath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := storage.Open(ctx, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("database connected", slog.String("driver", string(db.Driver)))

	if err := db.Migrate(); err != nil {
		return err
	}

	opts := server.Options{
		SessionTTL:     cfg.SessionTTL,
		CookieSecure:   cfg.CookieSecure,
		RequireLogin:   cfg.RequireLogin,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         log,
	}
	if cfg.AuthRatePerMinute > 0 {
		opts.AuthLimiter = rate.NewLimiter(rate.Limit(float64(cfg.AuthRatePerMinute)/60), cfg.AuthRatePerMinute)
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		opts.SessionStore = session.NewRedisStore(rdb)
		opts.MenuCache = catalog.NewRedisCache(rdb, 5*time.Minute)
		log.Info("redis connected", slog.String("addr", cfg.RedisAddr))
	} else {
		log.Warn("REDIS_ADDR not set; sessions are kept in memory")
	}

	app, err := server.NewApp(db, opts)
	if err != nil {
		return err
	}

	if cfg.SeedCatalog {
		n, err := app.Catalog.Seed(ctx, catalog.DefaultMenu())
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		if n > 0 {
			log.Info("catalog seeded", slog.Int("items", n))
		}
	}

	if cfg.AdminHandle != "" {
		if _, err := app.Identity.EnsureAdmin(ctx, cfg.AdminHandle, cfg.AdminPassword); err != nil {
			return fmt.Errorf("ensure administrator: %w", err)
		}
	}

	srv := server.New(fmt.Sprintf(":%d", cfg.HTTPPort), app.Handler, cfg.ShutdownTimeout, log)
	return srv.Run(ctx, nil)
}
