package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/config"
)

// Backend names accepted in nlp.cache.backend.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// ErrDisabled indicates caching is turned off in configuration.
var ErrDisabled = errors.New("cache: disabled in configuration")

// Cache stores opaque values by key with a fixed TTL.
//
// Get reports a miss as (nil, false, nil). Errors are reserved for backend
// failures, which callers treat as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// New builds the cache selected by cfg.Backend.
//
// Returns:
//   - Cache: The configured backend
//   - error: ErrDisabled for "none", or an unknown-backend error
func New(cfg config.CacheConfig) (Cache, error) {
	ttl := time.Duration(cfg.TTL) * time.Second

	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(cfg.Size, ttl), nil
	case BackendRedis:
		r := cfg.Redis
		return NewRedis(r.Address, r.Password, r.DB, WithPrefix(r.Prefix), WithTTL(ttl)), nil
	case BackendNone:
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}
