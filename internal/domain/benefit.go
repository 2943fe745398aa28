package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodType determines the window against which benefit usage resets.
type PeriodType string

const (
	PeriodPerVisit    PeriodType = "PER_VISIT"
	PeriodMonthly     PeriodType = "MONTHLY"
	PeriodQuarterly   PeriodType = "QUARTERLY"
	PeriodYearly      PeriodType = "YEARLY"
	PeriodBenefitYear PeriodType = "BENEFIT_YEAR"
	PeriodLifetime    PeriodType = "LIFETIME"
)

// BenefitDefinition configures cover for one (scheme, service-category) pair.
type BenefitDefinition struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenantId"`
	SchemeID   string `json:"schemeId"`
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`

	// CoverageAmount is the monetary limit per period. Nil means unlimited.
	CoverageAmount *decimal.Decimal `json:"coverageAmount,omitempty"`

	// CoverageCountLimit caps the number of approved claims per period.
	// Nil means uncapped.
	CoverageCountLimit *int `json:"coverageCountLimit,omitempty"`

	PeriodType PeriodType `json:"periodType"`

	// Deductible is paid by the member before cover contributes, per period.
	Deductible decimal.Decimal `json:"deductible"`

	// Copay is the member's share after the deductible: a fixed amount plus
	// a percentage of the remaining cost.
	CopayPercent decimal.Decimal `json:"copayPercent"`
	CopayFixed   decimal.Decimal `json:"copayFixed"`

	// RequiresPreAuth forces pre-authorization regardless of cost.
	// PreAuthThreshold triggers it above a cost; nil falls back to the
	// snapshot default.
	RequiresPreAuth  bool             `json:"requiresPreAuth"`
	PreAuthThreshold *decimal.Decimal `json:"preAuthThreshold,omitempty"`

	WaitingPeriodDays int `json:"waitingPeriodDays"`

	// NetworkOnly restricts cover to in-network providers.
	NetworkOnly bool `json:"networkOnly"`

	Enabled       bool       `json:"enabled"`
	EffectiveFrom *time.Time `json:"effectiveFrom,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// ActiveAt reports whether the benefit is currently in force: enabled and
// inside its effective/expiry window.
func (b *BenefitDefinition) ActiveAt(at time.Time) bool {
	if !b.Enabled {
		return false
	}
	if b.EffectiveFrom != nil && at.Before(*b.EffectiveFrom) {
		return false
	}
	if b.ExpiresAt != nil && at.After(*b.ExpiresAt) {
		return false
	}
	return true
}

// EffectivePreAuthThreshold resolves the benefit's own threshold, falling
// back to the supplied default when the benefit does not set one.
func (b *BenefitDefinition) EffectivePreAuthThreshold(def decimal.Decimal) decimal.Decimal {
	if b.PreAuthThreshold != nil {
		return *b.PreAuthThreshold
	}
	return def
}
