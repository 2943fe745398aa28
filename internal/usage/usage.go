// Package usage aggregates approved historical claim usage per benefit period.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openhealth-claims/heron/internal/domain"
)

// PeriodUsage is the approved usage for one (member, category) inside a
// benefit period.
type PeriodUsage struct {
	TotalCost decimal.Decimal `json:"totalCost"`
	Count     int             `json:"count"`
}

// Aggregator computes period usage from the claim history.
//
// Usage is recomputed on every call. No running counter is kept anywhere:
// a cached total would let two concurrent evaluations of the same
// (member, period) both observe a stale figure and overspend the limit.
type Aggregator struct {
	history domain.ClaimHistory
}

// NewAggregator creates a usage aggregator over the given history.
func NewAggregator(history domain.ClaimHistory) *Aggregator {
	return &Aggregator{history: history}
}

// ForPeriod sums cost and count of approved claims for (member, category)
// submitted at or after periodStart, excluding the claim under evaluation.
func (a *Aggregator) ForPeriod(ctx context.Context, tenantID, memberID, categoryID, excludeClaimID string, periodStart time.Time) (PeriodUsage, error) {
	if tenantID == "" || memberID == "" {
		return PeriodUsage{}, fmt.Errorf("usage: tenantID and memberID are required")
	}

	claims, err := a.history.ListClaims(ctx, tenantID, domain.ClaimFilter{
		MemberID:   memberID,
		CategoryID: categoryID,
		Status:     domain.ClaimApproved,
		Since:      periodStart,
	})
	if err != nil {
		return PeriodUsage{}, fmt.Errorf("usage: list claims: %w", err)
	}

	u := PeriodUsage{TotalCost: decimal.Zero}
	for _, c := range claims {
		if c.ID == excludeClaimID {
			continue
		}
		u.TotalCost = u.TotalCost.Add(c.Cost)
		u.Count++
	}
	return u, nil
}
