package validators

import (
	"context"

	"github.com/openhealth-claims/heron/internal/domain"
)

// Eligibility checks that the member can claim at all. It accumulates every
// failed condition instead of stopping at the first, so the rejection lists
// everything the member must fix.
type Eligibility struct{}

func (Eligibility) Name() string { return "eligibility" }

func (Eligibility) Validate(ctx context.Context, in *Input) (*domain.Rejection, error) {
	m := in.Member

	var details []string
	if m.Status != domain.MemberActive {
		details = append(details, "member status is "+string(m.Status)+", must be active")
	}
	if m.EnrollmentDate == nil {
		details = append(details, "member has no enrollment date")
	}
	if m.SchemeID == "" {
		details = append(details, "member is not attached to a scheme")
	}

	if len(details) == 0 {
		return nil, nil
	}

	return &domain.Rejection{
		Code:    domain.RejectIneligiblePatient,
		Message: "member is not eligible for cover",
		Details: details,
	}, nil
}
