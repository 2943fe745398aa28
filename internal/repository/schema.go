package repository

// Schema definitions for the Heron database.
// Compatible with both SQLite and PostgreSQL. Monetary columns are stored
// as decimal strings and parsed on scan, never as floats.

const schemaMembers = `
CREATE TABLE IF NOT EXISTS members (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    scheme_id TEXT NOT NULL,
    status TEXT NOT NULL,
    enrollment_date TIMESTAMP,
    benefit_year_start TIMESTAMP,
    birth_date TIMESTAMP,
    dependent INTEGER NOT NULL DEFAULT 0,
    principal_member_id TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_members_tenant ON members(tenant_id);
CREATE INDEX IF NOT EXISTS idx_members_scheme ON members(tenant_id, scheme_id);
`

const schemaBenefits = `
CREATE TABLE IF NOT EXISTS benefits (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    scheme_id TEXT NOT NULL,
    category_id TEXT NOT NULL,
    name TEXT,
    coverage_amount TEXT,
    coverage_count_limit INTEGER,
    period_type TEXT NOT NULL,
    deductible TEXT NOT NULL,
    copay_percent TEXT NOT NULL,
    copay_fixed TEXT NOT NULL,
    requires_preauth INTEGER NOT NULL DEFAULT 0,
    preauth_threshold TEXT,
    waiting_period_days INTEGER NOT NULL DEFAULT 0,
    network_only INTEGER NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    effective_from TIMESTAMP,
    expires_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_benefits_coverage ON benefits(tenant_id, scheme_id, category_id);
CREATE INDEX IF NOT EXISTS idx_benefits_enabled ON benefits(tenant_id, enabled);
`

const schemaClaims = `
CREATE TABLE IF NOT EXISTS claims (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    category_id TEXT NOT NULL,
    provider_id TEXT NOT NULL,
    cost TEXT NOT NULL,
    submitted_at TIMESTAMP NOT NULL,
    service_date TIMESTAMP NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_claims_member ON claims(tenant_id, member_id);
CREATE INDEX IF NOT EXISTS idx_claims_member_category ON claims(tenant_id, member_id, category_id);
CREATE INDEX IF NOT EXISTS idx_claims_provider ON claims(tenant_id, provider_id);
CREATE INDEX IF NOT EXISTS idx_claims_submitted ON claims(tenant_id, submitted_at);
`

const schemaOutcomes = `
CREATE TABLE IF NOT EXISTS outcomes (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    claim_id TEXT NOT NULL,
    approved INTEGER NOT NULL,
    payable_amount TEXT NOT NULL,
    message TEXT,
    breakdown TEXT NOT NULL,
    rejections TEXT,
    timestamp TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_outcomes_tenant ON outcomes(tenant_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_claim ON outcomes(tenant_id, claim_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_timestamp ON outcomes(tenant_id, timestamp);
`

const schemaScreeningRules = `
CREATE TABLE IF NOT EXISTS screening_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_screening_rules_tenant ON screening_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_screening_rules_enabled ON screening_rules(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaMembers,
		schemaBenefits,
		schemaClaims,
		schemaOutcomes,
		schemaScreeningRules,
	}
}
