// Package engine orchestrates claim adjudication: the validator chain, the
// usage and payable stages, and the fraud scan, producing one
// ValidationOutcome per claim.
//
// The engine is a pure function of the claim and the snapshots its
// collaborators return; it keeps no state between evaluations. Evaluating
// unrelated claims concurrently is safe. Evaluating two claims against the
// same member and benefit period concurrently is NOT safe: both can read
// the same usage total and overspend the coverage limit. The host must
// serialize approval per (member, benefit period) with a lock, transaction,
// or single-writer queue.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openhealth-claims/heron/internal/domain"
	"github.com/openhealth-claims/heron/internal/fraud"
	"github.com/openhealth-claims/heron/internal/payable"
	"github.com/openhealth-claims/heron/internal/period"
	"github.com/openhealth-claims/heron/internal/screening"
	"github.com/openhealth-claims/heron/internal/usage"
	"github.com/openhealth-claims/heron/internal/validators"
)

var tracer = otel.Tracer("heron-engine")

// Version identifies the engine build in outcome metadata.
const Version = "heron-1.0"

// Lookups is the data-access boundary the engine reads through. The
// repository satisfies it directly.
type Lookups interface {
	GetMember(ctx context.Context, tenantID, memberID string) (*domain.Member, error)
	GetBenefit(ctx context.Context, tenantID, schemeID, categoryID string) (*domain.BenefitDefinition, error)
	domain.ClaimHistory
}

// Adjudicator runs the full evaluation pipeline.
type Adjudicator struct {
	lookups   Lookups
	network   domain.ProviderNetwork
	usage     *usage.Aggregator
	fraud     *fraud.Engine
	screening *screening.Engine
	chain     []validators.Validator
	cfg       domain.AdjudicationConfig
}

// New creates an adjudicator. network may be nil when no benefit in the
// tenant's schemes is network-only; a network-only benefit evaluated
// without it is a contract fault. screen may be nil to disable screening.
func New(lookups Lookups, network domain.ProviderNetwork, screen *screening.Engine, cfg domain.AdjudicationConfig) *Adjudicator {
	return &Adjudicator{
		lookups:   lookups,
		network:   network,
		usage:     usage.NewAggregator(lookups),
		fraud:     fraud.NewEngine(lookups),
		screening: screen,
		chain:     validators.Chain(),
		cfg:       cfg,
	}
}

// Adjudicate evaluates one claim and returns its outcome.
//
// Business rejections come back inside the outcome. A non-nil error is a
// contract fault (unknown member, collaborator failure) and carries no
// outcome; the caller must never treat it as an approval.
func (a *Adjudicator) Adjudicate(ctx context.Context, claim *domain.ClaimRequest) (*domain.ValidationOutcome, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "claim.adjudicate")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", claim.TenantID),
		attribute.String("claim.id", claim.ID),
		attribute.String("claim.category", claim.CategoryID),
	)

	member, err := a.lookups.GetMember(ctx, claim.TenantID, claim.MemberID)
	if err != nil {
		return nil, fmt.Errorf("engine: member %s: %w", claim.MemberID, err)
	}

	// A missing benefit is a business rejection (ServiceNotCovered), not a
	// fault; the coverage validator handles the nil.
	benefit, err := a.lookups.GetBenefit(ctx, claim.TenantID, member.SchemeID, claim.CategoryID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("engine: benefit for category %s: %w", claim.CategoryID, err)
	}

	outcome := &domain.ValidationOutcome{
		ID:        uuid.New().String(),
		TenantID:  claim.TenantID,
		ClaimID:   claim.ID,
		Timestamp: time.Now().UTC(),
	}
	if span.SpanContext().TraceID().IsValid() {
		outcome.Metadata.TraceID = span.SpanContext().TraceID().String()
	}
	outcome.Metadata.EngineVersion = Version

	in := &validators.Input{
		Claim:   claim,
		Member:  member,
		Benefit: benefit,
		Network: a.network,
		Config:  a.cfg,
	}

	// Stage 1: validator chain, first failure short-circuits.
	validateStart := time.Now()
	stages := 0
	for _, v := range a.chain {
		stages++
		rej, err := v.Validate(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("engine: validator %s: %w", v.Name(), err)
		}
		if rej != nil {
			outcome.Metadata.ValidateMs = time.Since(validateStart).Milliseconds()
			return a.finish(outcome, false, decimal.Zero, rej.Message, []domain.Rejection{*rej}, stages, start), nil
		}
	}
	outcome.Metadata.ValidateMs = time.Since(validateStart).Milliseconds()

	// Stage 2: period usage and monetary cascade.
	payableStart := time.Now()

	periodStart, err := period.Start(benefit.PeriodType, claim.SubmittedAt, member)
	if err != nil {
		return nil, fmt.Errorf("engine: benefit period: %w", err)
	}

	use, err := a.usage.ForPeriod(ctx, claim.TenantID, claim.MemberID, claim.CategoryID, claim.ID, periodStart)
	if err != nil {
		return nil, fmt.Errorf("engine: usage: %w", err)
	}

	if benefit.CoverageCountLimit != nil && use.Count >= *benefit.CoverageCountLimit {
		stages++
		rej := domain.Rejection{
			Code:    domain.RejectServiceNotCovered,
			Message: fmt.Sprintf("coverage count limit reached: %d of %d claims this period", use.Count, *benefit.CoverageCountLimit),
			Context: map[string]any{
				"usedCount":  use.Count,
				"countLimit": *benefit.CoverageCountLimit,
			},
		}
		outcome.Metadata.PayableMs = time.Since(payableStart).Milliseconds()
		return a.finish(outcome, false, decimal.Zero, rej.Message, []domain.Rejection{rej}, stages, start), nil
	}

	stages++
	calc := payable.Calculate(benefit, claim.Cost, use.TotalCost, use.TotalCost)
	outcome.Breakdown.DeductibleApplied = calc.DeductibleApplied
	outcome.Breakdown.CopayApplied = calc.CopayApplied
	outcome.Breakdown.CoverageLimitApplied = calc.CoverageLimitApplied
	outcome.Breakdown.RawPayable = calc.RawPayable
	outcome.Breakdown.Payable = calc.Payable
	outcome.Metadata.PayableMs = time.Since(payableStart).Milliseconds()

	if !calc.Payable.IsPositive() {
		rej := domain.Rejection{
			Code:    domain.RejectNoPayableAmount,
			Message: "nothing payable after deductible, copay and coverage limit",
		}
		return a.finish(outcome, false, calc.Payable, rej.Message, []domain.Rejection{rej}, stages, start), nil
	}

	// Stage 3: fraud scan, approval path only, always informational.
	fraudStart := time.Now()
	stages++
	findings, score, err := a.fraud.Scan(ctx, claim.TenantID, claim)
	if err != nil {
		return nil, fmt.Errorf("engine: fraud scan: %w", err)
	}
	outcome.Breakdown.Findings = findings
	outcome.Breakdown.FraudScore = score
	outcome.Metadata.FraudMs = time.Since(fraudStart).Milliseconds()
	span.SetAttributes(attribute.Float64("fraud.score", score))

	if score > domain.HighRiskThreshold {
		outcome.Breakdown.Warnings = append(outcome.Breakdown.Warnings,
			fmt.Sprintf("high fraud risk score %.2f, review recommended", score))
	}

	if a.screening != nil {
		cost, _ := claim.Cost.Float64()
		pay, _ := calc.Payable.Float64()
		total, _ := use.TotalCost.Float64()
		outcome.Breakdown.Warnings = append(outcome.Breakdown.Warnings, a.screening.Warnings(ctx, &screening.Input{
			ClaimID:      claim.ID,
			MemberID:     claim.MemberID,
			CategoryID:   claim.CategoryID,
			CategoryName: claim.CategoryName,
			ProviderID:   claim.ProviderID,
			Cost:         cost,
			Payable:      pay,
			UsageCount:   int64(use.Count),
			UsageTotal:   total,
			FraudScore:   score,
		})...)
	}

	return a.finish(outcome, true, calc.Payable, "claim approved", nil, stages, start), nil
}

func (a *Adjudicator) finish(outcome *domain.ValidationOutcome, approved bool, pay decimal.Decimal, message string, rejections []domain.Rejection, stages int, start time.Time) *domain.ValidationOutcome {
	outcome.Approved = approved
	outcome.PayableAmount = pay
	outcome.Message = message
	outcome.Rejections = rejections
	outcome.Metadata.StagesRun = stages
	outcome.Metadata.TotalMs = time.Since(start).Milliseconds()
	return outcome
}
