package validators

import (
	"context"
	"fmt"

	"github.com/openhealth-claims/heron/internal/domain"
)

// Network enforces network-only benefits through the provider-network
// collaborator. A network-only benefit with no collaborator wired is a
// contract fault: the rule never silently assumes the provider is
// in-network.
type Network struct{}

func (Network) Name() string { return "network" }

func (Network) Validate(ctx context.Context, in *Input) (*domain.Rejection, error) {
	if !in.Benefit.NetworkOnly {
		return nil, nil
	}

	if in.Network == nil {
		return nil, fmt.Errorf("validators: benefit %s is network-only but no provider network is configured", in.Benefit.ID)
	}

	inNetwork, err := in.Network.InNetwork(ctx, in.Claim.TenantID, in.Member.SchemeID, in.Claim.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("validators: provider network lookup: %w", err)
	}

	if !inNetwork {
		return &domain.Rejection{
			Code:    domain.RejectOutOfNetwork,
			Message: "provider " + in.Claim.ProviderID + " is not in the scheme network",
			Context: map[string]any{"providerId": in.Claim.ProviderID},
		}, nil
	}

	return nil, nil
}
