package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"farmbook/internal/amqp"
	"farmbook/internal/auth"
	"farmbook/internal/cache"
	"farmbook/internal/cli"
	apphttp "farmbook/internal/http"
	flog "farmbook/internal/log"
	"farmbook/internal/middleware/ratelimit"
	"farmbook/internal/services"
)

const (
	sessionCacheTTL  = 5 * time.Minute
	sessionCacheSize = 1024
	sessionPurgeTick = time.Hour
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(nil, flog.ComponentApp))
	logger := cli.SetupLogger(cfg, flog.ComponentApp)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Ledger events are optional; without a broker the worker picks up
	// pending rows on its own schedule.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events disabled", flog.FieldError, err)
		} else {
			publisher = client
			logger.Info("AMQP publisher connected", "exchange", cfg.AMQPExchange)
		}
	}
	ledger := services.NewLedgerService(repo, publisher)
	defer ledger.Close()

	cacheManager := cache.NewManager()
	authService := auth.NewService(repo, cfg.SessionTTL, sessionCacheTTL, sessionCacheSize)
	cacheManager.Register("sessions", authService.SessionCache())

	var store ratelimit.Store
	rdb, err := ratelimit.OpenRedis(context.Background(), cfg.RedisURL)
	switch {
	case err != nil:
		logger.Warn("Redis unavailable, rate limiting in memory", flog.FieldError, err)
	case rdb != nil:
		defer rdb.Close()
		store = ratelimit.NewRedisStore(rdb)
		logger.Info("Rate limiting backed by Redis")
	}
	if store == nil {
		memStore := ratelimit.NewMemoryStore()
		cacheManager.Register("rate_limit", memStore)
		store = memStore
	}
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RequestsPerMinute, Window: time.Minute}, store)

	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Storage:  repo,
		Ledger:   ledger,
		Insights: services.NewInsightsService(repo),
		Seeder:   services.NewSeeder(ledger, repo),
		Auth:     authService,
		Limiter:  limiter,
		Logger:   logger,
		Locale:   cfg.Locale,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", flog.FieldError, err)
		}
	})

	go purgeSessions(ctx, logger, authService)

	logger.Info("Starting farmbook server", "port", cfg.Port, "db", cfg.SQLiteDBPath, "locale", cfg.Locale)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", flog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// purgeSessions drops expired sessions from the database every
// sessionPurgeTick until ctx ends.
func purgeSessions(ctx context.Context, logger *slog.Logger, svc *auth.Service) {
	ticker := time.NewTicker(sessionPurgeTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("Session purge failed", flog.FieldError, err)
				continue
			}
			if n > 0 {
				logger.Info("Purged expired sessions", "removed", n)
			}
		}
	}
}
