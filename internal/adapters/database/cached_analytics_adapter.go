package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/HasmT23/FHIR-Pipeline-Project/internal/domain/providers"
	"github.com/HasmT23/FHIR-Pipeline-Project/internal/domain/repositories"
)

// AnalyticsKeyPrefix namespaces every cached analytics entry. The loader
// invalidates this prefix after publishing a rebuilt schema.
const AnalyticsKeyPrefix = "analytics:"

// analyticsTTL is how long cached query results live. The store only changes
// on a full rebuild and the loader invalidates on publish, so the TTL only
// backstops a missed invalidation.
const analyticsTTL = 600

// CachedAnalyticsAdapter wraps an AnalyticsRepository with result caching.
type CachedAnalyticsAdapter struct {
	adapter repositories.AnalyticsRepository
	cache   providers.CacheProvider
}

// NewCachedAnalyticsAdapter creates a caching wrapper around adapter.
func NewCachedAnalyticsAdapter(adapter repositories.AnalyticsRepository, cache providers.CacheProvider) repositories.AnalyticsRepository {
	return &CachedAnalyticsAdapter{adapter: adapter, cache: cache}
}

// cachedQuery serves key from cache when possible, otherwise runs fetch and
// caches its result. Cache failures fall through to the database.
func cachedQuery[T any](ctx context.Context, c *CachedAnalyticsAdapter, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	if data, err := c.cache.Get(ctx, key); err == nil {
		var out T
		if err := json.Unmarshal(data, &out); err == nil {
			return out, nil
		}
		log.Warn().Str("key", key).Msg("discarding unreadable cache entry")
	}

	out, err := fetch(ctx)
	if err != nil {
		return zero, err
	}

	if data, err := json.Marshal(out); err == nil {
		if err := c.cache.Set(ctx, key, data, analyticsTTL); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to cache analytics result")
		}
	}
	return out, nil
}

func (c *CachedAnalyticsAdapter) AgeGenderDistribution(ctx context.Context) ([]repositories.AgeGenderBucket, error) {
	return cachedQuery(ctx, c, AnalyticsKeyPrefix + "age_gender", c.adapter.AgeGenderDistribution)
}

func (c *CachedAnalyticsAdapter) TopConditions(ctx context.Context, limit int) ([]repositories.DisplayCount, error) {
	key := fmt.Sprintf(AnalyticsKeyPrefix + "top_conditions:%d", limit)
	return cachedQuery(ctx, c, key, func(ctx context.Context) ([]repositories.DisplayCount, error) {
		return c.adapter.TopConditions(ctx, limit)
	})
}

func (c *CachedAnalyticsAdapter) RaceDistribution(ctx context.Context) ([]repositories.ValueCount, error) {
	return cachedQuery(ctx, c, AnalyticsKeyPrefix + "race", c.adapter.RaceDistribution)
}

func (c *CachedAnalyticsAdapter) GeographicDistribution(ctx context.Context) ([]repositories.ValueCount, error) {
	return cachedQuery(ctx, c, AnalyticsKeyPrefix + "geo", c.adapter.GeographicDistribution)
}

func (c *CachedAnalyticsAdapter) EncounterClassBreakdown(ctx context.Context) ([]repositories.ValueCount, error) {
	return cachedQuery(ctx, c, AnalyticsKeyPrefix + "encounter_class", c.adapter.EncounterClassBreakdown)
}

func (c *CachedAnalyticsAdapter) TopMedications(ctx context.Context, limit int) ([]repositories.DisplayCount, error) {
	key := fmt.Sprintf(AnalyticsKeyPrefix + "top_medications:%d", limit)
	return cachedQuery(ctx, c, key, func(ctx context.Context) ([]repositories.DisplayCount, error) {
		return c.adapter.TopMedications(ctx, limit)
	})
}

func (c *CachedAnalyticsAdapter) PolypharmacyDistribution(ctx context.Context) ([]repositories.PatientMedicationLoad, error) {
	return cachedQuery(ctx, c, AnalyticsKeyPrefix + "polypharmacy", c.adapter.PolypharmacyDistribution)
}

func (c *CachedAnalyticsAdapter) PatientComplexityScores(ctx context.Context) ([]repositories.PatientComplexity, error) {
	return cachedQuery(ctx, c, AnalyticsKeyPrefix + "complexity", c.adapter.PatientComplexityScores)
}
