// Package fraud scores a claim for suspicious patterns. Eight independent,
// stateless detectors each inspect one aspect of the claim against the
// member's and provider's history; their findings are combined into a
// single severity-weighted score.
//
// Fraud findings are always informational. The score never rejects a claim
// on its own; escalation and alert persistence belong to the consumer of
// the findings.
package fraud

import (
	"context"
	"fmt"
	"time"

	"github.com/openhealth-claims/heron/internal/domain"
)

// Input is the snapshot one detector run sees. The slices exclude the
// claim under evaluation; the engine filters it out by ID before any
// detector looks at the data.
type Input struct {
	Claim *domain.ClaimRequest

	// MemberClaims holds all of the member's historical claims, unbounded.
	MemberClaims []*domain.HistoricalClaim

	// CategoryClaims is the member's history narrowed to the claimed
	// category. Subset of MemberClaims.
	CategoryClaims []*domain.HistoricalClaim

	// ProviderClaims holds the provider's history across all members.
	ProviderClaims []*domain.HistoricalClaim
}

// Detector inspects one pattern and emits at most one finding per claim.
type Detector interface {
	Kind() domain.FindingKind
	Detect(in *Input) *domain.FraudFinding
}

// Detectors returns every detector in fixed kind order. The order is part
// of the contract: findings always appear in this sequence.
func Detectors() []Detector {
	return []Detector{
		DuplicateClaim{},
		UnusualFrequency{},
		AmountAnomaly{},
		ProviderPattern{},
		PatientPattern{},
		ServiceMismatch{},
		TemporalAnomaly{},
		NetworkViolation{},
	}
}

// Engine runs the detector set against history fetched from the claims
// collaborator. It holds no state between scans.
type Engine struct {
	history   domain.ClaimHistory
	detectors []Detector
}

func NewEngine(history domain.ClaimHistory) *Engine {
	return &Engine{
		history:   history,
		detectors: Detectors(),
	}
}

// Scan fetches the claim's historical context, runs every detector, and
// returns the findings plus the aggregate score.
func (e *Engine) Scan(ctx context.Context, tenantID string, claim *domain.ClaimRequest) ([]domain.FraudFinding, float64, error) {
	memberClaims, err := e.history.ListClaims(ctx, tenantID, domain.ClaimFilter{
		MemberID: claim.MemberID,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("fraud: member history: %w", err)
	}

	providerClaims, err := e.history.ListClaims(ctx, tenantID, domain.ClaimFilter{
		ProviderID: claim.ProviderID,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("fraud: provider history: %w", err)
	}

	in := &Input{
		Claim:          claim,
		MemberClaims:   excludeClaim(memberClaims, claim.ID),
		ProviderClaims: excludeClaim(providerClaims, claim.ID),
	}
	for _, c := range in.MemberClaims {
		if c.CategoryID == claim.CategoryID {
			in.CategoryClaims = append(in.CategoryClaims, c)
		}
	}

	findings := e.Run(in)
	return findings, Aggregate(findings), nil
}

// Run executes the detector set over an already-assembled snapshot.
func (e *Engine) Run(in *Input) []domain.FraudFinding {
	var findings []domain.FraudFinding
	for _, d := range e.detectors {
		if f := d.Detect(in); f != nil {
			findings = append(findings, *f)
		}
	}
	return findings
}

// Aggregate combines findings into one score: the mean of the raw scores
// weighted by severity, clamped to [0, 1]. No findings scores zero, and a
// single finding's aggregate equals its own raw score regardless of
// severity.
func Aggregate(findings []domain.FraudFinding) float64 {
	if len(findings) == 0 {
		return 0
	}

	var weightedSum, totalWeight float64
	for _, f := range findings {
		w := f.Severity.Weight()
		weightedSum += f.Score * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}

	score := weightedSum / totalWeight
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func excludeClaim(claims []*domain.HistoricalClaim, id string) []*domain.HistoricalClaim {
	out := make([]*domain.HistoricalClaim, 0, len(claims))
	for _, c := range claims {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

// sameCalendarDay reports whether a and b fall on the same UTC date.
func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
