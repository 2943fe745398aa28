package domain

import "context"

// ProviderNetwork answers whether a provider belongs to a scheme's network.
// This is an extension point: no real provider directory backs the engine
// yet. Validators must receive an explicit implementation; they never
// assume in-network membership when the collaborator is absent.
type ProviderNetwork interface {
	// InNetwork reports whether the provider is in-network for the scheme.
	InNetwork(ctx context.Context, tenantID, schemeID, providerID string) (bool, error)
}
