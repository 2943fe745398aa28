package domain

// FindingKind is the closed set of fraud detector kinds. Detectors run in
// this declared order so fixtures see deterministic finding sequences.
type FindingKind int

const (
	FindingDuplicateClaim FindingKind = iota
	FindingUnusualFrequency
	FindingAmountAnomaly
	FindingProviderPattern
	FindingPatientPattern
	FindingServiceMismatch
	FindingTemporalAnomaly
	// FindingNetworkViolation is a reserved kind for a future provider
	// network integration. No detector currently emits it.
	FindingNetworkViolation
)

var findingKindNames = [...]string{
	"duplicate_claim",
	"unusual_frequency",
	"amount_anomaly",
	"provider_pattern",
	"patient_pattern",
	"service_mismatch",
	"temporal_anomaly",
	"network_violation",
}

func (k FindingKind) String() string {
	if k < 0 || int(k) >= len(findingKindNames) {
		return "unknown"
	}
	return findingKindNames[k]
}

// Severity grades a fraud finding and fixes its weight in the aggregate.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Weight returns the severity's contribution weight in the aggregate score.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityLow:
		return 0.2
	case SeverityMedium:
		return 0.5
	case SeverityHigh:
		return 0.8
	case SeverityCritical:
		return 1.0
	default:
		return 0.2
	}
}

// FraudFinding is one detector's output: a severity-scored suspicious
// pattern. Findings are always informational, never themselves a rejection;
// persistence and escalation belong to the alerting collaborator.
type FraudFinding struct {
	Kind        FindingKind    `json:"kind"`
	Severity    Severity       `json:"severity"`
	Score       float64        `json:"score"` // raw score in [0,1]
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Rule        string         `json:"rule"`
	Evidence    map[string]any `json:"evidence,omitempty"`
}
