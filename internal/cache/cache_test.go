package cache

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openhealth-claims/heron/internal/domain"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("SetAndGet", func(t *testing.T) {
		err := cache.Set(ctx, tenantID, "key1", []byte("value1"), time.Minute)
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, tenantID, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, tenantID, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, tenantID, "key2", []byte("value2"), time.Minute)

		err := cache.Delete(ctx, tenantID, "key2")
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, tenantID, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, tenantID, "expiring", []byte("temp"), 10*time.Millisecond)

		// Should be available immediately
		val, _ := cache.Get(ctx, tenantID, "expiring")
		if val == nil {
			t.Error("expected value before expiration")
		}

		// Wait for expiration
		time.Sleep(20 * time.Millisecond)

		val, _ = cache.Get(ctx, tenantID, "expiring")
		if val != nil {
			t.Error("expected nil after expiration")
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, tenantID, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, tenantID, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, tenantID, "c", []byte("3"), time.Minute)

		// Access 'a' to make it recently used
		_, _ = smallCache.Get(ctx, tenantID, "a")

		// Add 'd' - should evict 'b' (oldest accessed)
		_ = smallCache.Set(ctx, tenantID, "d", []byte("4"), time.Minute)

		// 'b' should be evicted
		val, _ := smallCache.Get(ctx, tenantID, "b")
		if val != nil {
			t.Error("expected 'b' to be evicted")
		}

		// 'a' should still be there
		val, _ = smallCache.Get(ctx, tenantID, "a")
		if val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		tenant1 := "tenant-001"
		tenant2 := "tenant-002"

		_ = cache.Set(ctx, tenant1, "shared-key", []byte("tenant1-value"), time.Minute)
		_ = cache.Set(ctx, tenant2, "shared-key", []byte("tenant2-value"), time.Minute)

		val1, _ := cache.Get(ctx, tenant1, "shared-key")
		val2, _ := cache.Get(ctx, tenant2, "shared-key")

		if string(val1) != "tenant1-value" {
			t.Errorf("expected 'tenant1-value', got '%s'", string(val1))
		}
		if string(val2) != "tenant2-value" {
			t.Errorf("expected 'tenant2-value', got '%s'", string(val2))
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		err := cache.Set(ctx, "", "key", []byte("value"), time.Minute)
		if err == nil {
			t.Error("expected error for empty tenantID")
		}

		_, err = cache.Get(ctx, "", "key")
		if err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("IncrementCounter", func(t *testing.T) {
		window := 100 * time.Millisecond

		count1, err := cache.IncrementCounter(ctx, tenantID, "rate", window)
		if err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if count1 != 1 {
			t.Errorf("expected count 1, got %d", count1)
		}

		count2, _ := cache.IncrementCounter(ctx, tenantID, "rate", window)
		if count2 != 2 {
			t.Errorf("expected count 2, got %d", count2)
		}

		// Wait for window to expire
		time.Sleep(150 * time.Millisecond)

		count3, _ := cache.IncrementCounter(ctx, tenantID, "rate", window)
		if count3 != 1 {
			t.Errorf("expected count 1 after window reset, got %d", count3)
		}
	})

	t.Run("BenefitCache", func(t *testing.T) {
		coverage := decimal.RequireFromString("10000.00")
		b := &domain.BenefitDefinition{
			ID:             "ben-001",
			TenantID:       tenantID,
			SchemeID:       "scheme-gold",
			CategoryID:     "cat-dental",
			Name:           "Dental Care",
			CoverageAmount: &coverage,
			PeriodType:     domain.PeriodBenefitYear,
			Deductible:     decimal.RequireFromString("100.00"),
			CopayPercent:   decimal.RequireFromString("10"),
			Enabled:        true,
		}

		err := cache.SetBenefit(ctx, tenantID, b, time.Minute)
		if err != nil {
			t.Fatalf("SetBenefit failed: %v", err)
		}

		retrieved, err := cache.GetBenefit(ctx, tenantID, "scheme-gold", "cat-dental")
		if err != nil {
			t.Fatalf("GetBenefit failed: %v", err)
		}
		if retrieved == nil {
			t.Fatal("expected cached benefit, got nil")
		}

		if retrieved.ID != b.ID {
			t.Errorf("expected ID %s, got %s", b.ID, retrieved.ID)
		}
		if !retrieved.Deductible.Equal(b.Deductible) {
			t.Errorf("expected Deductible %s, got %s", b.Deductible, retrieved.Deductible)
		}
		if retrieved.CoverageAmount == nil || !retrieved.CoverageAmount.Equal(coverage) {
			t.Errorf("expected CoverageAmount %s, got %v", coverage, retrieved.CoverageAmount)
		}
	})

	t.Run("BenefitCacheMiss", func(t *testing.T) {
		b, err := cache.GetBenefit(ctx, tenantID, "scheme-gold", "cat-unknown")
		if err != nil {
			t.Fatalf("GetBenefit failed: %v", err)
		}
		if b != nil {
			t.Errorf("expected nil for benefit miss, got %+v", b)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsCache := NewLRUCache(50)
		_ = statsCache.Set(ctx, tenantID, "k1", []byte("v1"), time.Minute)
		_ = statsCache.Set(ctx, tenantID, "k2", []byte("v2"), time.Minute)

		size, capacity := statsCache.Stats()
		if size != 2 {
			t.Errorf("expected size 2, got %d", size)
		}
		if capacity != 50 {
			t.Errorf("expected capacity 50, got %d", capacity)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := cache.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("Close", func(t *testing.T) {
		testCache := NewLRUCache(10)
		_ = testCache.Set(ctx, tenantID, "k", []byte("v"), time.Minute)

		err := testCache.Close()
		if err != nil {
			t.Errorf("Close failed: %v", err)
		}

		// Cache should be empty after close
		val, _ := testCache.Get(ctx, tenantID, "k")
		if val != nil {
			t.Error("expected cache to be cleared after close")
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type:         "memory",
			LocalMaxSize: 100,
		}

		cache, err := New(cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cache.Close()

		_, ok := cache.(*LRUCache)
		if !ok {
			t.Error("expected LRUCache for memory type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type: "memcached",
		}

		_, err := New(cfg)
		if err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

// countingSource records how many benefit reads reach the backing store.
type countingSource struct {
	benefit      *domain.BenefitDefinition
	benefitReads int
}

func (s *countingSource) GetMember(ctx context.Context, tenantID, memberID string) (*domain.Member, error) {
	return nil, domain.ErrNotFound
}

func (s *countingSource) GetBenefit(ctx context.Context, tenantID, schemeID, categoryID string) (*domain.BenefitDefinition, error) {
	s.benefitReads++
	if s.benefit == nil {
		return nil, domain.ErrNotFound
	}
	return s.benefit, nil
}

func (s *countingSource) ListClaims(ctx context.Context, tenantID string, filter domain.ClaimFilter) ([]*domain.HistoricalClaim, error) {
	return nil, nil
}

func TestCachedLookups(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-001"

	coverage := decimal.RequireFromString("10000.00")
	benefit := &domain.BenefitDefinition{
		ID:             "ben-1",
		SchemeID:       "scheme-a",
		CategoryID:     "cat-dental",
		Name:           "Dental",
		CoverageAmount: &coverage,
		Enabled:        true,
	}

	t.Run("BenefitReadThrough", func(t *testing.T) {
		src := &countingSource{benefit: benefit}
		lookups := NewCachedLookups(src, NewLRUCache(100), time.Minute)

		first, err := lookups.GetBenefit(ctx, tenantID, "scheme-a", "cat-dental")
		if err != nil {
			t.Fatalf("GetBenefit failed: %v", err)
		}
		if first.ID != "ben-1" {
			t.Errorf("expected ben-1, got %s", first.ID)
		}
		if src.benefitReads != 1 {
			t.Errorf("expected 1 source read, got %d", src.benefitReads)
		}

		// Second read is served from the cache
		second, err := lookups.GetBenefit(ctx, tenantID, "scheme-a", "cat-dental")
		if err != nil {
			t.Fatalf("GetBenefit failed: %v", err)
		}
		if src.benefitReads != 1 {
			t.Errorf("expected cached read, source reads = %d", src.benefitReads)
		}
		if !second.CoverageAmount.Equal(coverage) {
			t.Errorf("expected coverage %s, got %s", coverage, second.CoverageAmount)
		}
	})

	t.Run("MissPropagates", func(t *testing.T) {
		src := &countingSource{}
		lookups := NewCachedLookups(src, NewLRUCache(100), time.Minute)

		_, err := lookups.GetBenefit(ctx, tenantID, "scheme-a", "cat-unknown")
		if err != domain.ErrNotFound {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("MembersNeverCached", func(t *testing.T) {
		src := &countingSource{}
		lookups := NewCachedLookups(src, NewLRUCache(100), time.Minute)

		if _, err := lookups.GetMember(ctx, tenantID, "m1"); err != domain.ErrNotFound {
			t.Errorf("expected ErrNotFound from source, got %v", err)
		}
	})
}
