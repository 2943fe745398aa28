package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ClaimStatus is the lifecycle state of a stored claim.
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
)

// ClaimRequest is a submitted healthcare-expense claim under evaluation.
// It is ephemeral: the engine evaluates it and never persists it itself.
type ClaimRequest struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	MemberID   string `json:"memberId"`
	CategoryID string `json:"categoryId"`
	// CategoryName drives the keyword matching in the waiting-period and
	// age-restriction rules (maternity, pediatric, geriatric bands).
	CategoryName string `json:"categoryName"`
	ProviderID   string `json:"providerId"`

	Cost decimal.Decimal `json:"cost"`

	SubmittedAt time.Time `json:"submittedAt"`

	// ServiceDate defaults to the submission time when absent.
	ServiceDate *time.Time `json:"serviceDate,omitempty"`

	// Pre-authorization reference, when one was obtained.
	PreAuthRef    string     `json:"preAuthRef,omitempty"`
	PreAuthExpiry *time.Time `json:"preAuthExpiry,omitempty"`
}

// EffectiveServiceDate returns the service date, defaulting to submission.
func (c *ClaimRequest) EffectiveServiceDate() time.Time {
	if c.ServiceDate != nil {
		return *c.ServiceDate
	}
	return c.SubmittedAt
}

// HistoricalClaim is the read projection of a previously stored claim, used
// by the usage aggregator and the fraud detectors.
type HistoricalClaim struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenantId"`
	MemberID    string          `json:"memberId"`
	CategoryID  string          `json:"categoryId"`
	ProviderID  string          `json:"providerId"`
	Cost        decimal.Decimal `json:"cost"`
	SubmittedAt time.Time       `json:"submittedAt"`
	ServiceDate time.Time       `json:"serviceDate"`
	Status      ClaimStatus     `json:"status"`
}

// ClaimFilter selects historical claims. Zero values mean "no constraint";
// Since/Until bound SubmittedAt.
type ClaimFilter struct {
	MemberID   string
	CategoryID string
	ProviderID string
	Status     ClaimStatus
	Since      time.Time
	Until      time.Time
}

// ClaimHistory is the read-only collaborator the engine queries for
// historical claims. The repository implements it; tests use fixtures.
type ClaimHistory interface {
	ListClaims(ctx context.Context, tenantID string, filter ClaimFilter) ([]*HistoricalClaim, error)
}
