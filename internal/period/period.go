// Package period resolves benefit period start boundaries.
package period

import (
	"fmt"
	"time"

	"github.com/openhealth-claims/heron/internal/domain"
)

// lifetimeEpoch is the fixed start boundary for LIFETIME benefits. Any claim
// ever submitted falls after it.
var lifetimeEpoch = time.Unix(0, 0).UTC()

// Start resolves the start boundary of the benefit period containing ref.
//
// BENEFIT_YEAR requires a member: the period is anchored on the member's
// benefit-year start (or enrollment date). Calling without one is a caller
// contract fault and returns an error, never a business rejection.
func Start(periodType domain.PeriodType, ref time.Time, member *domain.Member) (time.Time, error) {
	ref = ref.UTC()

	switch periodType {
	case domain.PeriodPerVisit:
		return ref, nil

	case domain.PeriodMonthly:
		return time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC), nil

	case domain.PeriodQuarterly:
		qStart := ((int(ref.Month()) - 1) / 3 * 3) + 1
		return time.Date(ref.Year(), time.Month(qStart), 1, 0, 0, 0, 0, time.UTC), nil

	case domain.PeriodYearly:
		return time.Date(ref.Year(), 1, 1, 0, 0, 0, 0, time.UTC), nil

	case domain.PeriodBenefitYear:
		return benefitYearStart(ref, member)

	case domain.PeriodLifetime:
		return lifetimeEpoch, nil

	default:
		// Unknown period types fall back to calendar year.
		return time.Date(ref.Year(), 1, 1, 0, 0, 0, 0, time.UTC), nil
	}
}

// benefitYearStart returns the most recent anniversary of the member's
// benefit-year anchor that is not after ref.
func benefitYearStart(ref time.Time, member *domain.Member) (time.Time, error) {
	if member == nil {
		return time.Time{}, fmt.Errorf("period: BENEFIT_YEAR requires a member")
	}

	anchor := member.BenefitYearStart
	if anchor == nil {
		anchor = member.EnrollmentDate
	}
	if anchor == nil {
		return time.Time{}, fmt.Errorf("period: member %s has no benefit-year anchor", member.ID)
	}

	a := anchor.UTC()
	start := time.Date(ref.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	if start.After(ref) {
		start = time.Date(ref.Year()-1, a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	}
	return start, nil
}
