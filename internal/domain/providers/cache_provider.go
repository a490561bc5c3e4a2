package providers

import "context"

// CacheProvider caches serialized analytics results between dashboard loads.
// A rebuild invalidates every analytics entry via DeleteByPrefix, so readers
// never see aggregates from a replaced schema for longer than one request.
type CacheProvider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
	Exists(ctx context.Context, key string) (bool, error)
}
