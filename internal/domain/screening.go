package domain

// ScreeningRule is a tenant-configurable CEL expression evaluated against
// approved claims. Matches surface as outcome warnings only; screening never
// rejects a claim.
type ScreeningRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression over claim variables (cost, category_id, provider_id,
	// usage_count, usage_total, ...). Must return bool, int, or double.
	Expression string `json:"expression"`

	// Bands map the expression's score to an outcome.
	Bands []ScreeningBand `json:"bands"`

	Enabled bool `json:"enabled"`
}

// ScreeningBand maps a score range to an outcome. Lower bound inclusive,
// upper exclusive; a nil upper bound means unbounded.
type ScreeningBand struct {
	LowerLimit *float64 `json:"lowerLimit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty"`
	Outcome    string   `json:"outcome"` // ".clear" or ".warn"
	Message    string   `json:"message"`
}

// ScreeningResult is the output of one screening rule evaluation.
type ScreeningResult struct {
	RuleID  string  `json:"ruleId"`
	ClaimID string  `json:"claimId"`
	Outcome string  `json:"outcome"`
	Score   float64 `json:"score"`
	Message string  `json:"message"`
}

// Predefined screening outcomes.
const (
	ScreeningClear = ".clear"
	ScreeningWarn  = ".warn"
	ScreeningError = ".err"
)
