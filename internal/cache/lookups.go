package cache

import (
	"context"
	"time"

	"github.com/openhealth-claims/heron/internal/domain"
)

// LookupSource is the uncached data access the read-through layer wraps.
// The repository satisfies it directly.
type LookupSource interface {
	GetMember(ctx context.Context, tenantID, memberID string) (*domain.Member, error)
	GetBenefit(ctx context.Context, tenantID, schemeID, categoryID string) (*domain.BenefitDefinition, error)
	domain.ClaimHistory
}

// CachedLookups serves benefit definitions through the cache and everything
// else straight from the source. Members and claim history are never
// cached: usage totals computed from stale history can overspend a
// coverage limit.
type CachedLookups struct {
	src   LookupSource
	cache domain.Cache
	ttl   time.Duration
}

// NewCachedLookups wraps src with read-through benefit caching. ttl
// bounds benefit staleness; zero means a 5 minute default.
func NewCachedLookups(src LookupSource, cache domain.Cache, ttl time.Duration) *CachedLookups {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &CachedLookups{
		src:   src,
		cache: cache,
		ttl:   ttl,
	}
}

func (l *CachedLookups) GetMember(ctx context.Context, tenantID, memberID string) (*domain.Member, error) {
	return l.src.GetMember(ctx, tenantID, memberID)
}

// GetBenefit returns the cached definition when present, otherwise reads
// through to the source and populates the cache. Cache failures fall back
// to the source; a cache outage degrades latency, not correctness.
func (l *CachedLookups) GetBenefit(ctx context.Context, tenantID, schemeID, categoryID string) (*domain.BenefitDefinition, error) {
	if b, err := l.cache.GetBenefit(ctx, tenantID, schemeID, categoryID); err == nil && b != nil {
		return b, nil
	}

	b, err := l.src.GetBenefit(ctx, tenantID, schemeID, categoryID)
	if err != nil {
		return nil, err
	}

	// Best effort: a failed write just means the next read hits the source.
	_ = l.cache.SetBenefit(ctx, tenantID, b, l.ttl)
	return b, nil
}

func (l *CachedLookups) ListClaims(ctx context.Context, tenantID string, filter domain.ClaimFilter) ([]*domain.HistoricalClaim, error) {
	return l.src.ListClaims(ctx, tenantID, filter)
}
