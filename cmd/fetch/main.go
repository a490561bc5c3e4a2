package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/HasmT23/FHIR-Pipeline-Project/internal/application/services"
	"github.com/HasmT23/FHIR-Pipeline-Project/internal/infrastructure/observability"
	"github.com/HasmT23/FHIR-Pipeline-Project/pkg/config"
)

// Standalone bootstrap: download and extract the source archive without
// touching the database.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	observability.InitLogger("fhir-fetch", cfg.Service.Environment)
	logger := observability.GetLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bootstrap := services.NewBootstrapService(&cfg.Data, logger)
	if err := bootstrap.EnsureData(ctx); err != nil {
		logger.Fatal().Err(err).Msg("bootstrap failed")
	}

	logger.Info().Str("dir", cfg.Data.Dir).Msg("source data ready")
}
