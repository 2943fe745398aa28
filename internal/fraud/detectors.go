package fraud

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openhealth-claims/heron/internal/domain"
)

// DuplicateClaim flags resubmissions. An exact match on category, cost and
// service date submitted within 24 hours of the current claim is treated as
// a near-certain duplicate; two or more same-day claims against the same
// provider and category is a weaker repeat-billing signal.
type DuplicateClaim struct{}

func (DuplicateClaim) Kind() domain.FindingKind { return domain.FindingDuplicateClaim }

func (DuplicateClaim) Detect(in *Input) *domain.FraudFinding {
	serviceDate := in.Claim.EffectiveServiceDate()

	for _, c := range in.MemberClaims {
		if c.CategoryID != in.Claim.CategoryID || !c.Cost.Equal(in.Claim.Cost) {
			continue
		}
		if !sameCalendarDay(c.ServiceDate, serviceDate) {
			continue
		}
		gap := in.Claim.SubmittedAt.Sub(c.SubmittedAt)
		if gap < 0 {
			gap = -gap
		}
		if gap <= 24*time.Hour {
			return &domain.FraudFinding{
				Kind:        domain.FindingDuplicateClaim,
				Severity:    domain.SeverityHigh,
				Score:       0.9,
				Title:       "Exact duplicate claim",
				Description: fmt.Sprintf("claim %s matches this category, cost and service date and was submitted within 24h", c.ID),
				Rule:        "duplicate_exact_24h",
				Evidence: map[string]any{
					"matchedClaimId": c.ID,
					"cost":           c.Cost.String(),
					"serviceDate":    c.ServiceDate,
				},
			}
		}
	}

	sameDay := 0
	for _, c := range in.MemberClaims {
		if c.ProviderID == in.Claim.ProviderID &&
			c.CategoryID == in.Claim.CategoryID &&
			sameCalendarDay(c.ServiceDate, serviceDate) {
			sameDay++
		}
	}
	if sameDay >= 2 {
		return &domain.FraudFinding{
			Kind:        domain.FindingDuplicateClaim,
			Severity:    domain.SeverityMedium,
			Score:       0.7,
			Title:       "Repeated same-day billing",
			Description: fmt.Sprintf("%d prior claims for this provider and category on the same service date", sameDay),
			Rule:        "duplicate_same_day",
			Evidence: map[string]any{
				"sameDayCount": sameDay,
				"providerId":   in.Claim.ProviderID,
			},
		}
	}

	return nil
}

// UnusualFrequency flags claim-rate spikes over the trailing 7 days.
type UnusualFrequency struct{}

func (UnusualFrequency) Kind() domain.FindingKind { return domain.FindingUnusualFrequency }

func (UnusualFrequency) Detect(in *Input) *domain.FraudFinding {
	windowStart := in.Claim.SubmittedAt.Add(-7 * 24 * time.Hour)

	total, sameCategory := 0, 0
	for _, c := range in.MemberClaims {
		if c.SubmittedAt.Before(windowStart) || c.SubmittedAt.After(in.Claim.SubmittedAt) {
			continue
		}
		total++
		if c.CategoryID == in.Claim.CategoryID {
			sameCategory++
		}
	}

	if total > 10 {
		return &domain.FraudFinding{
			Kind:        domain.FindingUnusualFrequency,
			Severity:    domain.SeverityHigh,
			Score:       0.8,
			Title:       "High claim frequency",
			Description: fmt.Sprintf("%d claims in the last 7 days", total),
			Rule:        "frequency_member_7d",
			Evidence:    map[string]any{"claimsIn7d": total},
		}
	}
	if sameCategory > 3 {
		return &domain.FraudFinding{
			Kind:        domain.FindingUnusualFrequency,
			Severity:    domain.SeverityMedium,
			Score:       0.6,
			Title:       "Repeated category claims",
			Description: fmt.Sprintf("%d claims for this category in the last 7 days", sameCategory),
			Rule:        "frequency_category_7d",
			Evidence:    map[string]any{"categoryClaimsIn7d": sameCategory},
		}
	}

	return nil
}

// AmountAnomaly compares the claim cost against the member's historical
// spend in the category. The baseline is unbounded over all history and
// needs at least five prior claims to be meaningful.
type AmountAnomaly struct{}

func (AmountAnomaly) Kind() domain.FindingKind { return domain.FindingAmountAnomaly }

func (AmountAnomaly) Detect(in *Input) *domain.FraudFinding {
	if len(in.CategoryClaims) < 5 {
		return nil
	}

	sum := decimal.Zero
	max := in.CategoryClaims[0].Cost
	for _, c := range in.CategoryClaims {
		sum = sum.Add(c.Cost)
		if c.Cost.GreaterThan(max) {
			max = c.Cost
		}
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(in.CategoryClaims))))

	if in.Claim.Cost.GreaterThan(mean.Mul(decimal.NewFromInt(3))) {
		return &domain.FraudFinding{
			Kind:        domain.FindingAmountAnomaly,
			Severity:    domain.SeverityHigh,
			Score:       0.85,
			Title:       "Cost far above category mean",
			Description: fmt.Sprintf("cost %s exceeds 3x the historical mean %s", in.Claim.Cost, mean),
			Rule:        "amount_vs_mean",
			Evidence: map[string]any{
				"cost":           in.Claim.Cost.String(),
				"historicalMean": mean.String(),
				"sampleSize":     len(in.CategoryClaims),
			},
		}
	}

	threshold := max.Mul(decimal.NewFromFloat(1.5))
	if in.Claim.Cost.GreaterThan(threshold) {
		return &domain.FraudFinding{
			Kind:        domain.FindingAmountAnomaly,
			Severity:    domain.SeverityMedium,
			Score:       0.6,
			Title:       "Cost above historical maximum",
			Description: fmt.Sprintf("cost %s exceeds 1.5x the historical maximum %s", in.Claim.Cost, max),
			Rule:        "amount_vs_max",
			Evidence: map[string]any{
				"cost":          in.Claim.Cost.String(),
				"historicalMax": max.String(),
			},
		}
	}

	return nil
}

// ProviderPattern flags providers with a burst of submissions in the last
// 24 hours or, over unbounded history, a majority of rejected claims.
type ProviderPattern struct{}

func (ProviderPattern) Kind() domain.FindingKind { return domain.FindingProviderPattern }

func (ProviderPattern) Detect(in *Input) *domain.FraudFinding {
	windowStart := in.Claim.SubmittedAt.Add(-24 * time.Hour)

	recent := 0
	rejected, decided := 0, 0
	for _, c := range in.ProviderClaims {
		if !c.SubmittedAt.Before(windowStart) && !c.SubmittedAt.After(in.Claim.SubmittedAt) {
			recent++
		}
		switch c.Status {
		case domain.ClaimRejected:
			rejected++
			decided++
		case domain.ClaimApproved:
			decided++
		}
	}

	if recent > 50 {
		return &domain.FraudFinding{
			Kind:        domain.FindingProviderPattern,
			Severity:    domain.SeverityHigh,
			Score:       0.75,
			Title:       "Provider submission burst",
			Description: fmt.Sprintf("provider submitted %d claims in the last 24h", recent),
			Rule:        "provider_burst_24h",
			Evidence:    map[string]any{"claimsIn24h": recent, "providerId": in.Claim.ProviderID},
		}
	}

	if decided > 10 && float64(rejected) > float64(decided)*0.5 {
		return &domain.FraudFinding{
			Kind:        domain.FindingProviderPattern,
			Severity:    domain.SeverityMedium,
			Score:       0.65,
			Title:       "High provider rejection rate",
			Description: fmt.Sprintf("%d of %d decided claims from this provider were rejected", rejected, decided),
			Rule:        "provider_rejection_rate",
			Evidence: map[string]any{
				"rejected":   rejected,
				"decided":    decided,
				"providerId": in.Claim.ProviderID,
			},
		}
	}

	return nil
}

// PatientPattern flags members visiting many providers on one service date.
type PatientPattern struct{}

func (PatientPattern) Kind() domain.FindingKind { return domain.FindingPatientPattern }

func (PatientPattern) Detect(in *Input) *domain.FraudFinding {
	serviceDate := in.Claim.EffectiveServiceDate()

	providers := map[string]struct{}{in.Claim.ProviderID: {}}
	for _, c := range in.MemberClaims {
		if sameCalendarDay(c.ServiceDate, serviceDate) {
			providers[c.ProviderID] = struct{}{}
		}
	}

	if len(providers) > 2 {
		return &domain.FraudFinding{
			Kind:        domain.FindingPatientPattern,
			Severity:    domain.SeverityMedium,
			Score:       0.7,
			Title:       "Multiple providers on one day",
			Description: fmt.Sprintf("member saw %d distinct providers on the same service date", len(providers)),
			Rule:        "patient_provider_spread",
			Evidence:    map[string]any{"distinctProviders": len(providers), "serviceDate": serviceDate},
		}
	}

	return nil
}

// ServiceMismatch flags suspiciously round amounts. Legitimate billed costs
// rarely land on an exact hundred once they reach four figures.
type ServiceMismatch struct{}

func (ServiceMismatch) Kind() domain.FindingKind { return domain.FindingServiceMismatch }

func (ServiceMismatch) Detect(in *Input) *domain.FraudFinding {
	cost := in.Claim.Cost
	if cost.LessThan(decimal.NewFromInt(1000)) {
		return nil
	}
	if !cost.Mod(decimal.NewFromInt(100)).IsZero() {
		return nil
	}

	return &domain.FraudFinding{
		Kind:        domain.FindingServiceMismatch,
		Severity:    domain.SeverityLow,
		Score:       0.4,
		Title:       "Suspiciously round amount",
		Description: fmt.Sprintf("cost %s is an exact multiple of 100", cost),
		Rule:        "round_amount",
		Evidence:    map[string]any{"cost": cost.String()},
	}
}

// TemporalAnomaly flags submissions outside normal operating hours.
type TemporalAnomaly struct{}

func (TemporalAnomaly) Kind() domain.FindingKind { return domain.FindingTemporalAnomaly }

func (TemporalAnomaly) Detect(in *Input) *domain.FraudFinding {
	hour := in.Claim.SubmittedAt.UTC().Hour()
	if hour >= 5 && hour < 23 {
		return nil
	}

	return &domain.FraudFinding{
		Kind:        domain.FindingTemporalAnomaly,
		Severity:    domain.SeverityLow,
		Score:       0.3,
		Title:       "Out-of-hours submission",
		Description: fmt.Sprintf("claim submitted at %02d:00 UTC, outside 05:00-23:00", hour),
		Rule:        "submission_hour",
		Evidence:    map[string]any{"hour": hour},
	}
}

// NetworkViolation is a reserved detector kind for provider-network abuse.
// It never fires until a provider-network data source is integrated; the
// kind exists so the enum and finding order stay stable when it does.
type NetworkViolation struct{}

func (NetworkViolation) Kind() domain.FindingKind { return domain.FindingNetworkViolation }

func (NetworkViolation) Detect(in *Input) *domain.FraudFinding { return nil }
