// Package network provides provider-network directory implementations for
// the network-only benefit check.
//
// No real directory integration exists yet. AllowAll is the explicit
// placeholder for deployments that have network-only benefits but no
// directory; wiring it is a deliberate configuration choice, never a
// silent default.
package network

import (
	"context"
	"sync"

	"github.com/openhealth-claims/heron/internal/domain"
)

// AllowAll approves every provider. It exists so that the "no directory
// integrated" state is visible in configuration instead of a hardcoded
// true inside the validator.
type AllowAll struct{}

func NewAllowAll() AllowAll { return AllowAll{} }

func (AllowAll) InNetwork(ctx context.Context, tenantID, schemeID, providerID string) (bool, error) {
	return true, nil
}

// StaticDirectory resolves membership from an in-memory allow list keyed
// by (tenant, scheme). Useful for tests and for tenants whose networks are
// small enough to configure by hand.
type StaticDirectory struct {
	mu        sync.RWMutex
	providers map[string]map[string]struct{} // tenantID/schemeID -> provider set
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{providers: make(map[string]map[string]struct{})}
}

// Add registers a provider as in-network for a scheme.
func (d *StaticDirectory) Add(tenantID, schemeID, providerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := tenantID + "/" + schemeID
	set, ok := d.providers[key]
	if !ok {
		set = make(map[string]struct{})
		d.providers[key] = set
	}
	set[providerID] = struct{}{}
}

// Remove drops a provider from a scheme's network.
func (d *StaticDirectory) Remove(tenantID, schemeID, providerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if set, ok := d.providers[tenantID+"/"+schemeID]; ok {
		delete(set, providerID)
	}
}

func (d *StaticDirectory) InNetwork(ctx context.Context, tenantID, schemeID, providerID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	set, ok := d.providers[tenantID+"/"+schemeID]
	if !ok {
		return false, nil
	}
	_, in := set[providerID]
	return in, nil
}

var (
	_ domain.ProviderNetwork = AllowAll{}
	_ domain.ProviderNetwork = (*StaticDirectory)(nil)
)
