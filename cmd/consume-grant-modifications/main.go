package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/step-security-bot/usdr-gost/internal/common/aws"
	"github.com/step-security-bot/usdr-gost/internal/common/config"
	"github.com/step-security-bot/usdr-gost/internal/common/database"
	"github.com/step-security-bot/usdr-gost/internal/common/dedup"
	"github.com/step-security-bot/usdr-gost/internal/common/logger"
	"github.com/step-security-bot/usdr-gost/internal/common/observability"

	mg "github.com/step-security-bot/usdr-gost/internal/workers/grants/mirror-grant"
	ng "github.com/step-security-bot/usdr-gost/internal/workers/grants/normalize-grant"
	pl "github.com/step-security-bot/usdr-gost/internal/workers/grants/poll-queue"
	pb "github.com/step-security-bot/usdr-gost/internal/workers/grants/process-batch"
	ug "github.com/step-security-bot/usdr-gost/internal/workers/grants/upsert-grant"

	"github.com/redis/go-redis/v9"
)

const (
	serviceName   = "consume-grant-modifications"
	maxRetryDelay = 30 * time.Second
)

// retryWithBackoff retries operation with exponential backoff capped at
// maxRetryDelay. It gives up early when ctx is cancelled.
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s aborted after %d attempts: %w", operationName, i+1, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2 // Exponential backoff
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zapLog := logger.New("info", "console")
		zapLog.Error("config load failed", zap.Error(err))
		_ = zapLog.Sync()
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format).With(
		zap.String("name", serviceName),
		zap.String("queue_url", cfg.Queue.URL),
	)

	if err := run(cfg, zapLog); err != nil {
		zapLog.Error("consumer stopped with fatal error", zap.Error(err))
		_ = zapLog.Sync()
		os.Exit(1)
	}
	_ = zapLog.Sync()
}

func run(cfg *config.Config, zapLog *zap.Logger) error {
	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting grant modification consumer...")

	obs, err := observability.New(serviceName)
	if err != nil {
		zapLog.Warn("otel prometheus exporter unavailable, stage metrics disabled", zap.Error(err))
	}
	defer obs.Shutdown()

	// SIGINT/SIGTERM stop polling; a received batch still runs to completion.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pg *database.PostgresClient
	err = retryWithBackoff(ctx, func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			_ = pg.Close()
			return err
		}
		return nil
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		return err
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	var redisClient *redis.Client
	if cfg.Ingest.Dedup.Enabled && cfg.Ingest.Dedup.Backend == dedup.BackendRedis {
		var rc *database.RedisClient
		err = retryWithBackoff(ctx, func() error {
			var err error
			rc, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			if err := rc.Ping(ctx); err != nil {
				_ = rc.Close()
				return err
			}
			return nil
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			return err
		}
		defer rc.Close()
		redisClient = rc.Client
		zapLog.Info("Redis connected successfully")
	}

	var dedupStore dedup.Store
	if cfg.Ingest.Dedup.Enabled {
		dedupStore, err = dedup.New(cfg.Ingest.Dedup, redisClient)
		if err != nil {
			return err
		}
		defer dedupStore.Close()
	}

	var mirror pb.SearchMirror
	if cfg.Ingest.SearchMirror.Enabled {
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		// the mirror is best-effort, so an unreachable cluster only warns
		if err := esClient.Ping(ctx); err != nil {
			zapLog.Warn("Elasticsearch not reachable at startup", zap.Error(err))
		}
		mirror = mg.NewIndexer(mg.LoadConfig(cfg.Ingest.SearchMirror), esClient.Client, log)
	}

	sqsClient, err := aws.NewSQSClient(ctx, cfg.Queue, log)
	if err != nil {
		return err
	}

	normalizer, err := ng.NewNormalizer(ng.LoadConfig(cfg.Ingest), log)
	if err != nil {
		return err
	}

	processor := pb.NewHandler(
		&pb.Config{
			DedupEnabled:  dedupStore != nil,
			MirrorEnabled: mirror != nil,
		},
		pb.Dependencies{
			Normalizer:    normalizer,
			Store:         ug.NewRepository(ug.LoadConfig(), pg.DB, log),
			Queue:         sqsClient,
			Dedup:         dedupStore,
			Mirror:        mirror,
			Observability: obs,
		},
		log,
	)

	health := newHealthServer(cfg.Metrics.Address, zapLog)
	if cfg.Metrics.Enabled {
		health.Start()
		defer health.Shutdown()
	}

	loop := pl.NewLoop(sqsClient, processor, log)
	health.SetReady(true)
	err = loop.Run(ctx)
	health.SetReady(false)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
