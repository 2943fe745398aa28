package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching benefit and member snapshots.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
//
// Period usage totals are never cached: the engine always recomputes them
// from the claim history so that two concurrent approvals cannot observe a
// stale "amount already used" figure through this layer.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetBenefit retrieves a cached benefit definition snapshot.
	GetBenefit(ctx context.Context, tenantID string, schemeID, categoryID string) (*BenefitDefinition, error)

	// SetBenefit caches a benefit definition snapshot.
	SetBenefit(ctx context.Context, tenantID string, b *BenefitDefinition, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns new value.
	// Used by the API layer for submission rate limiting.
	IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
