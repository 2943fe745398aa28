// Package validators implements the independent pass/fail business rules a
// claim must clear before any money is calculated.
package validators

import (
	"context"
	"strings"
	"time"

	"github.com/openhealth-claims/heron/internal/domain"
)

// Input is the snapshot one validator sees. Member and Benefit are looked
// up by the caller; validators perform no I/O except the provider-network
// check, which delegates to the Network collaborator.
type Input struct {
	Claim   *domain.ClaimRequest
	Member  *domain.Member
	Benefit *domain.BenefitDefinition
	Network domain.ProviderNetwork
	Config  domain.AdjudicationConfig
}

// Validator is a single business rule. A nil Rejection means the claim
// passed. A non-nil error is a contract fault (missing collaborator, lookup
// failure) and must abort the evaluation, never default to approval.
type Validator interface {
	Name() string
	Validate(ctx context.Context, in *Input) (*domain.Rejection, error)
}

// Chain returns the full validator sequence in adjudication order.
func Chain() []Validator {
	return []Validator{
		Eligibility{},
		Coverage{},
		WaitingPeriod{},
		PreAuth{},
		Network{},
		AgeRestriction{},
	}
}

// Category keyword sets shared by the waiting-period and age-restriction
// rules. Matching is case-insensitive substring over the category name.
var (
	maternityKeywords = []string{"maternity", "pregnancy", "prenatal", "obstetric"}
	pediatricKeywords = []string{"pediatric", "paediatric", "child vaccination", "child-vaccination"}
	geriatricKeywords = []string{"geriatric", "senior"}
)

func matchesAny(categoryName string, keywords []string) bool {
	name := strings.ToLower(categoryName)
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// calendarDays returns whole calendar days from a to b, ignoring clock time.
func calendarDays(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
