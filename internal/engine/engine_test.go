package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openhealth-claims/heron/internal/domain"
	"github.com/openhealth-claims/heron/internal/screening"
)

var evalTime = time.Date(2026, time.June, 15, 10, 0, 0, 0, time.UTC)

type stubLookups struct {
	members  map[string]*domain.Member
	benefits map[string]*domain.BenefitDefinition // key: schemeID/categoryID
	claims   []*domain.HistoricalClaim
}

func (s *stubLookups) GetMember(ctx context.Context, tenantID, memberID string) (*domain.Member, error) {
	m, ok := s.members[memberID]
	if !ok || m.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (s *stubLookups) GetBenefit(ctx context.Context, tenantID, schemeID, categoryID string) (*domain.BenefitDefinition, error) {
	b, ok := s.benefits[schemeID+"/"+categoryID]
	if !ok || b.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

func (s *stubLookups) ListClaims(ctx context.Context, tenantID string, f domain.ClaimFilter) ([]*domain.HistoricalClaim, error) {
	var out []*domain.HistoricalClaim
	for _, c := range s.claims {
		if c.TenantID != tenantID {
			continue
		}
		if f.MemberID != "" && c.MemberID != f.MemberID {
			continue
		}
		if f.CategoryID != "" && c.CategoryID != f.CategoryID {
			continue
		}
		if f.ProviderID != "" && c.ProviderID != f.ProviderID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if !f.Since.IsZero() && c.SubmittedAt.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && c.SubmittedAt.After(f.Until) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func fixtureLookups() *stubLookups {
	enrolled := evalTime.AddDate(-2, 0, 0)
	birth := evalTime.AddDate(-30, 0, 0)
	coverage := decimal.NewFromInt(10000)

	return &stubLookups{
		members: map[string]*domain.Member{
			"m1": {
				ID:             "m1",
				TenantID:       "t1",
				SchemeID:       "scheme-a",
				Status:         domain.MemberActive,
				EnrollmentDate: &enrolled,
				BirthDate:      &birth,
			},
		},
		benefits: map[string]*domain.BenefitDefinition{
			"scheme-a/outpatient": {
				ID:             "b1",
				TenantID:       "t1",
				SchemeID:       "scheme-a",
				CategoryID:     "outpatient",
				PeriodType:     domain.PeriodYearly,
				CoverageAmount: &coverage,
				Deductible:     decimal.NewFromInt(100),
				CopayPercent:   decimal.NewFromInt(10),
				Enabled:        true,
			},
		},
	}
}

func request(cost int64) *domain.ClaimRequest {
	return &domain.ClaimRequest{
		ID:           "c1",
		TenantID:     "t1",
		MemberID:     "m1",
		CategoryID:   "outpatient",
		CategoryName: "Outpatient Consultation",
		ProviderID:   "p1",
		Cost:         decimal.NewFromInt(cost),
		SubmittedAt:  evalTime,
	}
}

func TestAdjudicateApproval(t *testing.T) {
	adj := New(fixtureLookups(), nil, nil, domain.DefaultAdjudicationConfig())

	outcome, err := adj.Adjudicate(context.Background(), request(500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !outcome.Approved {
		t.Fatalf("expected approval, got %s: %+v", outcome.Message, outcome.Rejections)
	}
	// 500 - 100 deductible = 400; 10% copay = 40; payable 360.
	if !outcome.PayableAmount.Equal(decimal.NewFromInt(360)) {
		t.Errorf("payable: got %s, want 360", outcome.PayableAmount)
	}
	if !outcome.Breakdown.DeductibleApplied.Equal(decimal.NewFromInt(100)) {
		t.Errorf("deductible: got %s, want 100", outcome.Breakdown.DeductibleApplied)
	}
	if outcome.Breakdown.FraudScore != 0 {
		t.Errorf("clean claim should score 0, got %f", outcome.Breakdown.FraudScore)
	}
	if outcome.Metadata.EngineVersion != Version {
		t.Errorf("engine version: got %s", outcome.Metadata.EngineVersion)
	}
	if outcome.Metadata.StagesRun != 8 {
		t.Errorf("stages run: got %d, want 8", outcome.Metadata.StagesRun)
	}
}

func TestAdjudicateShortCircuitsOnFirstFailure(t *testing.T) {
	lookups := fixtureLookups()
	lookups.members["m1"].Status = domain.MemberSuspended

	adj := New(lookups, nil, nil, domain.DefaultAdjudicationConfig())
	outcome, err := adj.Adjudicate(context.Background(), request(500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Approved {
		t.Fatal("expected rejection")
	}
	if len(outcome.Rejections) != 1 || outcome.Rejections[0].Code != domain.RejectIneligiblePatient {
		t.Errorf("expected only the eligibility rejection, got %+v", outcome.Rejections)
	}
	if outcome.Metadata.StagesRun != 1 {
		t.Errorf("first failure must stop the chain, ran %d stages", outcome.Metadata.StagesRun)
	}
	if len(outcome.Breakdown.Findings) != 0 {
		t.Error("fraud scan must not run on the rejection path")
	}
}

func TestAdjudicateUnknownCategoryRejects(t *testing.T) {
	adj := New(fixtureLookups(), nil, nil, domain.DefaultAdjudicationConfig())

	claim := request(500)
	claim.CategoryID = "dental"
	outcome, err := adj.Adjudicate(context.Background(), claim)
	if err != nil {
		t.Fatalf("missing benefit must be a rejection, not an error: %v", err)
	}
	if outcome.Approved || outcome.Rejections[0].Code != domain.RejectServiceNotCovered {
		t.Errorf("expected ServiceNotCovered, got %+v", outcome)
	}
}

func TestAdjudicateUnknownMemberIsFault(t *testing.T) {
	adj := New(fixtureLookups(), nil, nil, domain.DefaultAdjudicationConfig())

	claim := request(500)
	claim.MemberID = "ghost"
	if _, err := adj.Adjudicate(context.Background(), claim); err == nil {
		t.Fatal("expected error for unknown member")
	}
}

func TestAdjudicateNoPayableAmount(t *testing.T) {
	lookups := fixtureLookups()
	b := lookups.benefits["scheme-a/outpatient"]
	cap := decimal.NewFromInt(1000)
	b.CoverageAmount = &cap
	b.Deductible = decimal.Zero
	b.CopayPercent = decimal.Zero

	// The member already consumed the whole cap this year.
	lookups.claims = append(lookups.claims, &domain.HistoricalClaim{
		ID: "c-old", TenantID: "t1", MemberID: "m1", CategoryID: "outpatient",
		ProviderID: "p9", Cost: decimal.NewFromInt(1000),
		SubmittedAt: evalTime.AddDate(0, -1, 0), ServiceDate: evalTime.AddDate(0, -1, 0),
		Status: domain.ClaimApproved,
	})

	adj := New(lookups, nil, nil, domain.DefaultAdjudicationConfig())
	outcome, err := adj.Adjudicate(context.Background(), request(200))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Approved {
		t.Fatal("expected rejection")
	}
	if outcome.Rejections[0].Code != domain.RejectNoPayableAmount {
		t.Errorf("expected NoPayableAmount, got %s", outcome.Rejections[0].Code)
	}
	if !outcome.Breakdown.CoverageLimitApplied.Equal(decimal.NewFromInt(200)) {
		t.Errorf("limit applied: got %s, want 200", outcome.Breakdown.CoverageLimitApplied)
	}
}

func TestAdjudicateCoverageCapPartial(t *testing.T) {
	lookups := fixtureLookups()
	b := lookups.benefits["scheme-a/outpatient"]
	cap := decimal.NewFromInt(1000)
	b.CoverageAmount = &cap
	b.Deductible = decimal.Zero
	b.CopayPercent = decimal.Zero

	lookups.claims = append(lookups.claims, &domain.HistoricalClaim{
		ID: "c-old", TenantID: "t1", MemberID: "m1", CategoryID: "outpatient",
		ProviderID: "p9", Cost: decimal.NewFromInt(950),
		SubmittedAt: evalTime.AddDate(0, -1, 0), ServiceDate: evalTime.AddDate(0, -1, 0),
		Status: domain.ClaimApproved,
	})

	adj := New(lookups, nil, nil, domain.DefaultAdjudicationConfig())
	outcome, err := adj.Adjudicate(context.Background(), request(200))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Approved {
		t.Fatalf("expected approval, got %+v", outcome.Rejections)
	}
	if !outcome.PayableAmount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("payable: got %s, want the remaining 50", outcome.PayableAmount)
	}
}

func TestAdjudicateCountLimit(t *testing.T) {
	lookups := fixtureLookups()
	limit := 2
	lookups.benefits["scheme-a/outpatient"].CoverageCountLimit = &limit

	for _, id := range []string{"c-a", "c-b"} {
		lookups.claims = append(lookups.claims, &domain.HistoricalClaim{
			ID: id, TenantID: "t1", MemberID: "m1", CategoryID: "outpatient",
			ProviderID: "p1", Cost: decimal.NewFromInt(10),
			SubmittedAt: evalTime.AddDate(0, -1, 0), ServiceDate: evalTime.AddDate(0, -1, 0),
			Status: domain.ClaimApproved,
		})
	}

	adj := New(lookups, nil, nil, domain.DefaultAdjudicationConfig())
	outcome, err := adj.Adjudicate(context.Background(), request(50))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Approved || outcome.Rejections[0].Code != domain.RejectServiceNotCovered {
		t.Errorf("expected count-limit rejection, got %+v", outcome)
	}
}

func TestAdjudicateHighFraudScoreWarns(t *testing.T) {
	lookups := fixtureLookups()
	// An exact duplicate submitted two hours earlier scores HIGH/0.9.
	lookups.claims = append(lookups.claims, &domain.HistoricalClaim{
		ID: "c-dup", TenantID: "t1", MemberID: "m1", CategoryID: "outpatient",
		ProviderID: "p1", Cost: decimal.NewFromInt(500),
		SubmittedAt: evalTime.Add(-2 * time.Hour), ServiceDate: evalTime.Add(-2 * time.Hour),
		Status: domain.ClaimApproved,
	})

	adj := New(lookups, nil, nil, domain.DefaultAdjudicationConfig())
	outcome, err := adj.Adjudicate(context.Background(), request(500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !outcome.Approved {
		t.Fatalf("fraud findings must not reject, got %+v", outcome.Rejections)
	}
	if outcome.Breakdown.FraudScore <= domain.HighRiskThreshold {
		t.Fatalf("expected high score, got %f", outcome.Breakdown.FraudScore)
	}
	found := false
	for _, w := range outcome.Breakdown.Warnings {
		if strings.Contains(w, "high fraud risk") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a high-risk warning, got %v", outcome.Breakdown.Warnings)
	}
}

func TestAdjudicateScreeningWarnings(t *testing.T) {
	screen, err := screening.NewEngine(2)
	if err != nil {
		t.Fatalf("screening engine: %v", err)
	}
	defer screen.Close()

	warn := 1.0
	if err := screen.LoadRule(&domain.ScreeningRule{
		ID:         "big-claim",
		Expression: "cost >= 400.0",
		Bands: []domain.ScreeningBand{
			{LowerLimit: &warn, Outcome: domain.ScreeningWarn, Message: "large claim, spot check"},
		},
		Enabled: true,
	}); err != nil {
		t.Fatalf("load rule: %v", err)
	}

	adj := New(fixtureLookups(), nil, screen, domain.DefaultAdjudicationConfig())
	outcome, err := adj.Adjudicate(context.Background(), request(500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !outcome.Approved {
		t.Fatalf("screening must not reject, got %+v", outcome.Rejections)
	}
	if len(outcome.Breakdown.Warnings) != 1 || !strings.Contains(outcome.Breakdown.Warnings[0], "spot check") {
		t.Errorf("expected screening warning, got %v", outcome.Breakdown.Warnings)
	}
}

func TestAdjudicateIdempotent(t *testing.T) {
	adj := New(fixtureLookups(), nil, nil, domain.DefaultAdjudicationConfig())

	first, err := adj.Adjudicate(context.Background(), request(500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := adj.Adjudicate(context.Background(), request(500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Approved != second.Approved || !first.PayableAmount.Equal(second.PayableAmount) {
		t.Errorf("repeat evaluation differed: %v/%s vs %v/%s",
			first.Approved, first.PayableAmount, second.Approved, second.PayableAmount)
	}
	if first.Breakdown.FraudScore != second.Breakdown.FraudScore {
		t.Errorf("fraud score differed on repeat: %f vs %f", first.Breakdown.FraudScore, second.Breakdown.FraudScore)
	}
}
