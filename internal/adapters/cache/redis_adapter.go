package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HasmT23/FHIR-Pipeline-Project/internal/domain/providers"
	redisclient "github.com/HasmT23/FHIR-Pipeline-Project/internal/infrastructure/clients/redis"
	apperrors "github.com/HasmT23/FHIR-Pipeline-Project/pkg/errors"
)

// scanBatchSize bounds how many keys one SCAN iteration returns.
const scanBatchSize = 100

// RedisAdapter implements CacheProvider on Redis. Analytics results are
// small JSON blobs keyed per query, so plain string commands cover
// everything; invalidation after an ingestion run goes through
// DeleteByPrefix.
type RedisAdapter struct {
	client *redisclient.Client
}

// NewRedisAdapter creates a Redis cache adapter.
func NewRedisAdapter(client *redisclient.Client) providers.CacheProvider {
	return &RedisAdapter{client: client}
}

// Get returns the cached bytes for key. A missing key is a NotFound error,
// distinct from a broken connection.
func (a *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := a.client.Client().Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("cache key not found: %s", key))
	}
	if err != nil {
		return nil, apperrors.NewExternalError("cache get failed", err)
	}
	return result, nil
}

// Set stores value under key with an expiration.
func (a *RedisAdapter) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	expiration := time.Duration(expirationSeconds) * time.Second
	if err := a.client.Client().Set(ctx, key, value, expiration).Err(); err != nil {
		return apperrors.NewExternalError("cache set failed", err)
	}
	return nil
}

// Delete removes a single key.
func (a *RedisAdapter) Delete(ctx context.Context, key string) error {
	if err := a.client.Client().Del(ctx, key).Err(); err != nil {
		return apperrors.NewExternalError("cache delete failed", err)
	}
	return nil
}

// DeleteByPrefix removes every key starting with prefix and returns how
// many were deleted. SCAN keeps this safe on a shared Redis; KEYS would
// block other clients.
func (a *RedisAdapter) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	rdb := a.client.Client()
	iter := rdb.Scan(ctx, 0, prefix+"*", scanBatchSize).Iterator()

	deleted := 0
	for iter.Next(ctx) {
		if err := rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, apperrors.NewExternalError("cache prefix delete failed", err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, apperrors.NewExternalError("cache scan failed", err)
	}
	return deleted, nil
}

// Exists reports whether key is present.
func (a *RedisAdapter) Exists(ctx context.Context, key string) (bool, error) {
	result, err := a.client.Client().Exists(ctx, key).Result()
	if err != nil {
		return false, apperrors.NewExternalError("cache existence check failed", err)
	}
	return result > 0, nil
}
