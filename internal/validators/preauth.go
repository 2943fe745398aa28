package validators

import (
	"context"
	"fmt"

	"github.com/openhealth-claims/heron/internal/domain"
)

// PreAuth checks whether the claim needed pre-authorization and, when it
// did, that a non-expired reference was supplied.
type PreAuth struct{}

func (PreAuth) Name() string { return "preauth" }

func (PreAuth) Validate(ctx context.Context, in *Input) (*domain.Rejection, error) {
	threshold := in.Benefit.EffectivePreAuthThreshold(in.Config.DefaultPreAuthThreshold)

	required := in.Benefit.RequiresPreAuth || in.Claim.Cost.GreaterThanOrEqual(threshold)
	if !required {
		return nil, nil
	}

	if in.Claim.PreAuthRef == "" {
		return &domain.Rejection{
			Code:    domain.RejectPreAuthRequired,
			Message: fmt.Sprintf("claim of %s requires pre-authorization (threshold %s)", in.Claim.Cost, threshold),
			Context: map[string]any{
				"threshold":       threshold.String(),
				"requiredByFlag":  in.Benefit.RequiresPreAuth,
				"requiredByValue": in.Claim.Cost.GreaterThanOrEqual(threshold),
			},
		}, nil
	}

	serviceDate := in.Claim.EffectiveServiceDate()
	if in.Claim.PreAuthExpiry != nil && in.Claim.PreAuthExpiry.Before(serviceDate) {
		return &domain.Rejection{
			Code:    domain.RejectPreAuthExpired,
			Message: "pre-authorization " + in.Claim.PreAuthRef + " expired before the service date",
			Context: map[string]any{
				"preAuthRef":    in.Claim.PreAuthRef,
				"preAuthExpiry": in.Claim.PreAuthExpiry,
				"serviceDate":   serviceDate,
			},
		}, nil
	}

	return nil, nil
}
