// Package payable computes the reimbursable amount for a claim that has
// cleared every validator, running a three-stage cascade over the claim
// cost: deductible, then copay, then coverage limit.
//
// All arithmetic is fixed-point decimal. Period totals are supplied by the
// caller and are recomputed from approved historical claims per evaluation;
// no running counter is authoritative.
package payable

import (
	"github.com/shopspring/decimal"

	"github.com/openhealth-claims/heron/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Result is the full monetary breakdown of one cascade run. The identity
//
//	cost = DeductibleApplied + CopayApplied + CoverageLimitApplied + RawPayable
//
// holds whenever a coverage limit is configured; RawPayable may be negative
// when fixed copay exceeds what the deductible left. Payable is RawPayable
// floored at zero and is the figure the member is actually reimbursed.
type Result struct {
	DeductibleApplied    decimal.Decimal
	CopayApplied         decimal.Decimal
	CoverageLimitApplied decimal.Decimal
	RawPayable           decimal.Decimal
	Payable              decimal.Decimal
}

// Calculate runs the cascade for cost against benefit.
//
// periodPaid is the member's approved spend this benefit period and counts
// toward the deductible. periodUsed is the approved spend counted against
// the coverage limit. Both come from the usage aggregator; coverage count
// limits are enforced by the orchestrator, not here.
func Calculate(benefit *domain.BenefitDefinition, cost, periodPaid, periodUsed decimal.Decimal) Result {
	running := cost
	var res Result

	// Stage 1: deductible. Only the unserved remainder applies.
	remainingDeductible := benefit.Deductible.Sub(periodPaid)
	if remainingDeductible.IsNegative() {
		remainingDeductible = decimal.Zero
	}
	res.DeductibleApplied = decimal.Min(remainingDeductible, running)
	running = running.Sub(res.DeductibleApplied)

	// Stage 2: copay, fixed plus a percentage of what the deductible left.
	// May push running negative; the floor is applied at the end.
	res.CopayApplied = benefit.CopayFixed.Add(running.Mul(benefit.CopayPercent).Div(hundred))
	running = running.Sub(res.CopayApplied)

	// Stage 3: coverage limit. A nil coverage amount means unlimited.
	if benefit.CoverageAmount != nil {
		remaining := benefit.CoverageAmount.Sub(periodUsed)
		switch {
		case remaining.LessThanOrEqual(decimal.Zero):
			res.CoverageLimitApplied = running
			res.RawPayable = decimal.Zero
		default:
			res.RawPayable = decimal.Min(running, remaining)
			res.CoverageLimitApplied = decimal.Max(running.Sub(remaining), decimal.Zero)
		}
	} else {
		res.RawPayable = running
	}

	res.Payable = res.RawPayable
	if res.Payable.IsNegative() {
		res.Payable = decimal.Zero
	}
	return res
}
