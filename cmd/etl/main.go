package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HasmT23/FHIR-Pipeline-Project/internal/adapters/cache"
	"github.com/HasmT23/FHIR-Pipeline-Project/internal/adapters/database"
	"github.com/HasmT23/FHIR-Pipeline-Project/internal/application/services"
	"github.com/HasmT23/FHIR-Pipeline-Project/internal/fhir"
	"github.com/HasmT23/FHIR-Pipeline-Project/internal/infrastructure/clients/postgres"
	redisclient "github.com/HasmT23/FHIR-Pipeline-Project/internal/infrastructure/clients/redis"
	"github.com/HasmT23/FHIR-Pipeline-Project/internal/infrastructure/observability"
	"github.com/HasmT23/FHIR-Pipeline-Project/pkg/config"
)

func main() {
	var dataDir string
	var workers int
	var skipFetch bool

	flag.StringVar(&dataDir, "data-dir", "", "Directory of FHIR bundle documents (overrides FHIR_DATA_DIR)")
	flag.IntVar(&workers, "workers", 0, "Number of concurrent parse workers (overrides ETL_WORKERS)")
	flag.BoolVar(&skipFetch, "skip-fetch", false, "Skip the archive download/extract step")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}
	if workers > 0 {
		cfg.Data.Workers = workers
	}

	observability.InitLogger(cfg.Service.Name, cfg.Service.Environment)
	logger := observability.GetLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !skipFetch {
		bootstrap := services.NewBootstrapService(&cfg.Data, logger)
		if err := bootstrap.EnsureData(ctx); err != nil {
			// Only fatal when there is nothing on disk to ingest.
			if entries, dirErr := os.ReadDir(cfg.Data.Dir); dirErr != nil || len(entries) == 0 {
				logger.Fatal().Err(err).Msg("bootstrap failed and no local data available")
			}
			logger.Warn().Err(err).Msg("bootstrap failed, continuing with local data")
		}
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	store := database.NewClinicalStore(pgClient, &cfg.Database)
	walker := fhir.NewWalker(cfg.Data.Workers, logger)
	ingestion := services.NewIngestionService(walker, store, logger)

	start := time.Now()
	summary, err := ingestion.Run(ctx, cfg.Data.Dir)
	if err != nil {
		logger.Fatal().Err(err).Msg("ingestion failed, no partial store persists")
	}

	// Aggregates cached before the swap describe the replaced schema.
	if redisClient, err := redisclient.NewClient(&cfg.Redis); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, skipping analytics cache invalidation")
	} else {
		defer redisClient.Close()
		cacheProvider := cache.NewRedisAdapter(redisClient)
		if n, err := cacheProvider.DeleteByPrefix(ctx, database.AnalyticsKeyPrefix); err != nil {
			logger.Warn().Err(err).Msg("failed to invalidate analytics cache")
		} else {
			logger.Info().Int("keys", n).Msg("analytics cache invalidated")
		}
	}

	logger.Info().
		Dur("elapsed", time.Since(start)).
		Interface("loaded", summary.Loaded).
		Interface("dropped_references", summary.DroppedReferences).
		Int("parse_errors", summary.ParseErrors).
		Str("db_size", byteSize(summary.DatabaseSizeBytes)).
		Msg("ingestion succeeded")
}

func byteSize(n int64) string {
	const (
		kb = 1 << 10
		mb = 1 << 20
	)
	switch {
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%.1f KB", float64(n)/kb)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
