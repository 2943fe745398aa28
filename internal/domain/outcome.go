package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RejectionCode identifies a business rejection. Rejections are expected and
// frequent, so they travel as outcome data rather than errors.
type RejectionCode string

const (
	RejectIneligiblePatient   RejectionCode = "IneligiblePatient"
	RejectServiceNotCovered   RejectionCode = "ServiceNotCovered"
	RejectBenefitInactive     RejectionCode = "BenefitInactive"
	RejectWaitingPeriodNotMet RejectionCode = "WaitingPeriodNotMet"
	RejectPreAuthRequired     RejectionCode = "PreAuthRequired"
	RejectPreAuthExpired      RejectionCode = "PreAuthExpired"
	RejectOutOfNetwork        RejectionCode = "OutOfNetwork"
	RejectAgeRestricted       RejectionCode = "AgeRestricted"
	RejectNoPayableAmount     RejectionCode = "NoPayableAmount"
)

// Rejection carries one failed rule: a code, a human-readable message, and
// numeric context where relevant (days remaining, band violated).
type Rejection struct {
	Code    RejectionCode  `json:"code"`
	Message string         `json:"message"`
	Details []string       `json:"details,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// Breakdown itemizes the deductible -> copay -> coverage-limit cascade plus
// the fraud scan attached to an approval.
type Breakdown struct {
	DeductibleApplied    decimal.Decimal `json:"deductibleApplied"`
	CopayApplied         decimal.Decimal `json:"copayApplied"`
	CoverageLimitApplied decimal.Decimal `json:"coverageLimitApplied"`

	// Payable is floored at zero. RawPayable keeps the pre-floor figure so
	// cost = deductible + copay + limitApplied + rawPayable reconciles.
	Payable    decimal.Decimal `json:"payable"`
	RawPayable decimal.Decimal `json:"rawPayable"`

	FraudScore float64        `json:"fraudScore"`
	Findings   []FraudFinding `json:"findings,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// OutcomeMetadata records processing information for audit and tracing.
type OutcomeMetadata struct {
	TraceID       string `json:"traceId,omitempty"`
	ValidateMs    int64  `json:"validateMs"`
	PayableMs     int64  `json:"payableMs"`
	FraudMs       int64  `json:"fraudMs"`
	TotalMs       int64  `json:"totalMs"`
	StagesRun     int    `json:"stagesRun"`
	EngineVersion string `json:"engineVersion"`
}

// ValidationOutcome is the engine's sole output for one claim evaluation.
type ValidationOutcome struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	ClaimID  string `json:"claimId"`

	Approved      bool            `json:"approved"`
	PayableAmount decimal.Decimal `json:"payableAmount"`
	Message       string          `json:"message"`

	Breakdown  Breakdown   `json:"breakdown"`
	Rejections []Rejection `json:"rejections,omitempty"`

	Timestamp time.Time       `json:"timestamp"`
	Metadata  OutcomeMetadata `json:"metadata"`
}

// HighRiskThreshold is the fraud score above which an approval carries a
// warning. The score never causes a rejection on its own.
const HighRiskThreshold = 0.8
