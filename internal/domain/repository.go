package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Member operations
	SaveMember(ctx context.Context, tenantID string, m *Member) error
	GetMember(ctx context.Context, tenantID string, memberID string) (*Member, error)

	// Benefit definition operations
	SaveBenefit(ctx context.Context, tenantID string, b *BenefitDefinition) error
	GetBenefit(ctx context.Context, tenantID string, schemeID, categoryID string) (*BenefitDefinition, error)
	ListBenefits(ctx context.Context, tenantID string, schemeID string) ([]*BenefitDefinition, error)

	// Claim operations
	SaveClaim(ctx context.Context, tenantID string, c *HistoricalClaim) error
	GetClaim(ctx context.Context, tenantID string, claimID string) (*HistoricalClaim, error)
	ListClaims(ctx context.Context, tenantID string, filter ClaimFilter) ([]*HistoricalClaim, error)
	UpdateClaimStatus(ctx context.Context, tenantID string, claimID string, status ClaimStatus) error

	// Validation outcomes
	SaveOutcome(ctx context.Context, tenantID string, o *ValidationOutcome) error
	GetOutcome(ctx context.Context, tenantID string, outcomeID string) (*ValidationOutcome, error)

	// Screening rule operations
	SaveScreeningRule(ctx context.Context, tenantID string, rule *ScreeningRule) error
	GetScreeningRule(ctx context.Context, tenantID string, ruleID string) (*ScreeningRule, error)
	ListScreeningRules(ctx context.Context, tenantID string) ([]*ScreeningRule, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
