package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"farmbook/internal/amqp"
	"farmbook/internal/backend"
	"farmbook/internal/cli"
	flog "farmbook/internal/log"
	"farmbook/internal/services"
	"farmbook/internal/worker"
)

// retryTick is how often rows that exhausted their attempts are put back in
// the pending set.
const retryTick = 6 * time.Hour

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(nil, flog.ComponentWorker))
	logger := cli.SetupLogger(cfg, flog.ComponentWorker)

	logger.Info("Starting farmbook-worker", "mirror_backend", cfg.MirrorBackend)

	mirrorCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid mirror configuration", flog.FieldError, err)
		os.Exit(1)
	}
	mirror, err := backend.NewFactory(logger).CreateMirror(context.Background(), mirrorCfg)
	if err != nil {
		logger.Error("Failed to create mirror", flog.FieldError, err)
		os.Exit(1)
	}
	if mirror.Mirror == nil {
		logger.Info("Spreadsheet mirror disabled, nothing to do")
		return
	}
	if mirror.Cleanup != nil {
		defer func() {
			if err := mirror.Cleanup(); err != nil {
				logger.Warn("Mirror cleanup failed", flog.FieldError, err)
			}
		}()
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	processor := services.NewMirrorProcessor(repo, mirror.Mirror, services.MirrorProcessorConfig{
		PollInterval: cfg.MirrorInterval,
		BatchSize:    cfg.MirrorBatchSize,
	})
	mirrorWorker := worker.NewMirrorWorker(processor, mirror.Mirror)

	var consumer *amqp.Client
	if cfg.AMQPURL != "" {
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", flog.FieldError, err)
			os.Exit(1)
		}
		defer consumer.Close()
	} else {
		logger.Info("AMQP disabled, mirroring by polling only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := processor.Stop(shutdownCtx); err != nil {
			logger.Warn("Mirror processor did not stop cleanly", flog.FieldError, err)
		}
	})

	logger.Info("Performing startup mirror sync", flog.FieldOperation, flog.OpStartup)
	mirrorWorker.StartupSync(ctx)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return processor.Start(gctx)
	})

	if consumer != nil {
		g.Go(func() error {
			err := consumer.Consume(gctx, mirrorWorker.HandleEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		retryFailed(gctx, logger, processor)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker failed", flog.FieldError, err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}

// retryFailed periodically resets rows that hit the attempt limit and logs
// the mirror backlog.
func retryFailed(ctx context.Context, logger *slog.Logger, processor *services.MirrorProcessor) {
	ticker := time.NewTicker(retryTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := processor.RetryFailed(ctx)
			if err != nil {
				logger.Warn("Failed to reset mirror errors", flog.FieldError, err)
				continue
			}
			stats, err := processor.Stats(ctx)
			if err != nil {
				logger.Warn("Failed to read mirror stats", flog.FieldError, err)
				continue
			}
			logger.Info("Mirror backlog",
				"reset", n,
				"pending", stats.Pending,
				"synced", stats.Synced,
				"failed", stats.Failed)
		}
	}
}
