package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/HasmT23/FHIR-Pipeline-Project/internal/adapters/cache"
	"github.com/HasmT23/FHIR-Pipeline-Project/internal/adapters/database"
	"github.com/HasmT23/FHIR-Pipeline-Project/internal/domain/repositories"
	"github.com/HasmT23/FHIR-Pipeline-Project/internal/infrastructure/clients/postgres"
	redisclient "github.com/HasmT23/FHIR-Pipeline-Project/internal/infrastructure/clients/redis"
	"github.com/HasmT23/FHIR-Pipeline-Project/internal/infrastructure/observability"
	"github.com/HasmT23/FHIR-Pipeline-Project/pkg/config"
)

// report is the full dashboard payload, printed as one JSON document.
type report struct {
	AgeGenderDistribution []repositories.AgeGenderBucket       `json:"age_gender_distribution"`
	TopConditions         []repositories.DisplayCount          `json:"top_conditions"`
	TopMedications        []repositories.DisplayCount          `json:"top_medications"`
	RaceDistribution      []repositories.ValueCount            `json:"race_distribution"`
	GeographicSpread      []repositories.ValueCount            `json:"geographic_spread"`
	EncounterClasses      []repositories.ValueCount            `json:"encounter_classes"`
	Polypharmacy          []repositories.PatientMedicationLoad `json:"polypharmacy"`
	ComplexityScores      []repositories.PatientComplexity     `json:"complexity_scores"`
}

func main() {
	var limit int
	var noCache bool

	flag.IntVar(&limit, "limit", 10, "Rows per top-N section")
	flag.BoolVar(&noCache, "no-cache", false, "Query the database directly, bypassing Redis")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	observability.InitLogger(cfg.Service.Name, cfg.Service.Environment)
	logger := observability.GetLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	repo := database.NewAnalyticsAdapter(pgClient, &cfg.Database)
	if !noCache {
		if redisClient, err := redisclient.NewClient(&cfg.Redis); err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, serving uncached results")
		} else {
			defer redisClient.Close()
			repo = database.NewCachedAnalyticsAdapter(repo, cache.NewRedisAdapter(redisClient))
		}
	}

	rpt, err := buildReport(ctx, repo, limit)
	if err != nil {
		logger.Fatal().Err(err).Msg("report generation failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rpt); err != nil {
		logger.Fatal().Err(err).Msg("failed to write report")
	}
}

func buildReport(ctx context.Context, repo repositories.AnalyticsRepository, limit int) (*report, error) {
	var rpt report
	var err error

	if rpt.AgeGenderDistribution, err = repo.AgeGenderDistribution(ctx); err != nil {
		return nil, err
	}
	if rpt.TopConditions, err = repo.TopConditions(ctx, limit); err != nil {
		return nil, err
	}
	if rpt.TopMedications, err = repo.TopMedications(ctx, limit); err != nil {
		return nil, err
	}
	if rpt.RaceDistribution, err = repo.RaceDistribution(ctx); err != nil {
		return nil, err
	}
	if rpt.GeographicSpread, err = repo.GeographicDistribution(ctx); err != nil {
		return nil, err
	}
	if rpt.EncounterClasses, err = repo.EncounterClassBreakdown(ctx); err != nil {
		return nil, err
	}
	if rpt.Polypharmacy, err = repo.PolypharmacyDistribution(ctx); err != nil {
		return nil, err
	}
	if rpt.ComplexityScores, err = repo.PatientComplexityScores(ctx); err != nil {
		return nil, err
	}
	return &rpt, nil
}
