package validators

import (
	"context"

	"github.com/openhealth-claims/heron/internal/domain"
)

// Coverage checks that a benefit exists for the member's scheme and the
// claimed service category, and that it is currently in force.
type Coverage struct{}

func (Coverage) Name() string { return "coverage" }

func (Coverage) Validate(ctx context.Context, in *Input) (*domain.Rejection, error) {
	b := in.Benefit

	if b == nil {
		return &domain.Rejection{
			Code:    domain.RejectServiceNotCovered,
			Message: "no benefit covers category " + in.Claim.CategoryID + " under scheme " + in.Member.SchemeID,
		}, nil
	}

	if !b.ActiveAt(in.Claim.SubmittedAt) {
		return &domain.Rejection{
			Code:    domain.RejectBenefitInactive,
			Message: "benefit " + b.ID + " is not currently active",
		}, nil
	}

	return nil, nil
}
