package validators

import (
	"context"
	"fmt"

	"github.com/openhealth-claims/heron/internal/domain"
)

// WaitingPeriod checks how long the member has been enrolled against the
// benefit's waiting period and two special rules layered on top of it.
//
// The rules evaluate in sequence (general wait, then dependent-minor
// doubling, then maternity override) and the LAST applicable rule decides
// the verdict
// and the message. A maternity claim that fails the general wait but clears
// the 365-day maternity rule therefore passes this stage. That precedence
// mirrors the behavior claims staff have relied on; whether it was ever
// deliberate product intent is an open question recorded in DESIGN.md, so
// do not "fix" it to take the strictest rule without a product decision.
type WaitingPeriod struct{}

func (WaitingPeriod) Name() string { return "waiting_period" }

func (WaitingPeriod) Validate(ctx context.Context, in *Input) (*domain.Rejection, error) {
	if in.Member.EnrollmentDate == nil {
		// Eligibility rejects this before the chain reaches here.
		return &domain.Rejection{
			Code:    domain.RejectWaitingPeriodNotMet,
			Message: "waiting period cannot be assessed without an enrollment date",
		}, nil
	}

	serviceDate := in.Claim.EffectiveServiceDate()
	days := calendarDays(*in.Member.EnrollmentDate, serviceDate)
	age, hasAge := in.Member.AgeAt(serviceDate)

	rej := checkWait(days, in.Benefit.WaitingPeriodDays, "benefit waiting period not met")

	if in.Member.Dependent && hasAge && age < 18 {
		doubled := in.Benefit.WaitingPeriodDays * 2
		rej = checkWait(days, doubled, "dependent minors serve double the waiting period")
	}

	if matchesAny(in.Claim.CategoryName, maternityKeywords) && hasAge && age >= 18 {
		rej = checkWait(days, in.Config.MaternityWaitDays, "maternity benefits carry a fixed waiting period")
	}

	return rej, nil
}

func checkWait(served, required int, message string) *domain.Rejection {
	if served >= required {
		return nil
	}
	remaining := required - served
	return &domain.Rejection{
		Code:    domain.RejectWaitingPeriodNotMet,
		Message: fmt.Sprintf("%s: %d of %d days served", message, served, required),
		Context: map[string]any{
			"daysServed":    served,
			"daysRequired":  required,
			"daysRemaining": remaining,
		},
	}
}
