// cmd/terminology-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/batch"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/config"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/database"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/logger"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/observability"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/matching"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/server"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/terminology"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
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
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting terminology server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("backend", cfg.Database.Backend),
	)

	obs := observability.New("terminology-server")
	defer obs.Shutdown()

	ctx := context.Background()

	store, pingers, closeBackends, err := buildStore(ctx, cfg, zapLog, log)
	if err != nil {
		zapLog.Fatal("concept store initialization failed", zap.Error(err))
	}
	defer closeBackends()

	// --- Job store: Redis when available, in-process otherwise ---
	var jobStore batch.JobStore = batch.NewMemoryJobStore()
	if cfg.Database.Redis.Enabled {
		var redisClient *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redisClient, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redisClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisClient.Close()
		zapLog.Info("Redis connected successfully")

		jobStore = batch.NewRedisJobStore(redisClient.GetClient(), config.GetDuration(cfg.Batch.Retention))
		pingers["redis"] = redisClient

		// Read-through cache in front of the concept store.
		store = terminology.NewCachedStore(store, redisClient.GetClient(), config.GetDuration(cfg.Database.Redis.CacheTTL))
	}

	// --- Matching pipeline ---
	scorer := matching.NewScorer(cfg.Matching.Weights)
	ranker := matching.NewContextRanker(preferredEntityTypes(cfg))
	pipeline := matching.NewPipeline(store, scorer, ranker, cfg, log)

	// --- Batch orchestrator ---
	orchestrator := batch.NewOrchestrator(pipeline, jobStore, cfg.Batch, log)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go orchestrator.RunRetentionSweeper(sweepCtx)

	// --- HTTP server ---
	handler := server.NewHandler(pipeline, orchestrator, pingers, cfg, log)
	srv := server.New(handler, cfg, log, obs)

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address()))
		if err := srv.Start(); err != nil {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	stopSweeper()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down orchestrator", zap.Error(err))
	}

	zapLog.Info("Terminology server stopped gracefully")
}

// buildStore creates the configured concept store backend. The returned
// close function releases backend connections and is safe to call even
// for the memory backend.
func buildStore(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, log logger.Logger) (terminology.Store, map[string]terminology.Pinger, func(), error) {
	pingers := map[string]terminology.Pinger{}
	noop := func() {}

	switch cfg.Database.Backend {
	case "postgres":
		var pg *database.PostgresClient
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

		if err != nil {
			return nil, nil, noop, err
		}
		zapLog.Info("PostgreSQL connected successfully")

		store := terminology.NewPostgresStore(pg.GetDB(), config.GetDuration(cfg.Matching.StoreTimeout), log)
		pingers["postgres"] = store
		return store, pingers, func() { pg.Close() }, nil

	case "elasticsearch":
		var esClient *database.ElasticsearchClient
		err := retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			return nil, nil, noop, err
		}
		zapLog.Info("Elasticsearch connected successfully")

		for _, vocab := range terminology.All() {
			exists, err := esClient.IndexExists(ctx, string(vocab))
			if err != nil {
				return nil, nil, noop, err
			}
			if !exists {
				zapLog.Warn("vocabulary index missing, lookups against it will fail",
					zap.String("index", esClient.IndexFor(string(vocab))))
			}
		}

		store := terminology.NewElasticStore(esClient.Client, cfg.Database.Elasticsearch.IndexPrefix,
			config.GetDuration(cfg.Matching.StoreTimeout), log)
		pingers["elasticsearch"] = store
		return store, pingers, noop, nil

	default:
		store := terminology.NewMemoryStore()
		if cfg.Database.SeedFile != "" {
			if err := store.LoadFile(cfg.Database.SeedFile); err != nil {
				return nil, nil, noop, err
			}
			zapLog.Info("Seed file loaded", zap.String("path", cfg.Database.SeedFile))
		}
		return store, pingers, noop, nil
	}
}

// preferredEntityTypes converts per-vocabulary config overrides into the
// context ranker's lexicon form.
func preferredEntityTypes(cfg *config.Config) map[terminology.Vocabulary][]string {
	overrides := map[terminology.Vocabulary][]string{}
	for name, vc := range cfg.Vocabularies {
		if len(vc.PreferredEntityTypes) == 0 {
			continue
		}
		vocab, err := terminology.Parse(name)
		if err != nil {
			continue
		}
		overrides[vocab] = vc.PreferredEntityTypes
	}
	return overrides
}
