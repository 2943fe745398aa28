// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openhealth-claims/heron/internal/domain"
)

var (
	ErrNotFound     = domain.ErrNotFound
	ErrInvalidInput = domain.ErrInvalidInput
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveMember stores or updates a member with tenant isolation.
func (r *SQLRepository) SaveMember(ctx context.Context, tenantID string, m *domain.Member) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO members (
			id, tenant_id, scheme_id, status, enrollment_date,
			benefit_year_start, birth_date, dependent, principal_member_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			scheme_id = excluded.scheme_id,
			status = excluded.status,
			enrollment_date = excluded.enrollment_date,
			benefit_year_start = excluded.benefit_year_start,
			birth_date = excluded.birth_date,
			dependent = excluded.dependent,
			principal_member_id = excluded.principal_member_id,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		m.ID, tenantID, m.SchemeID, string(m.Status),
		nullTime(m.EnrollmentDate), nullTime(m.BenefitYearStart), nullTime(m.BirthDate),
		boolInt(m.Dependent), m.PrincipalMemberID,
		now, now,
	)
	return err
}

// GetMember retrieves a member by ID with tenant isolation.
func (r *SQLRepository) GetMember(ctx context.Context, tenantID string, memberID string) (*domain.Member, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, scheme_id, status, enrollment_date,
			   benefit_year_start, birth_date, dependent, principal_member_id
		FROM members
		WHERE tenant_id = ? AND id = ?
	`

	var m domain.Member
	var status string
	var enrollment, yearStart, birth sql.NullTime
	var dependent int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, memberID).Scan(
		&m.ID, &m.TenantID, &m.SchemeID, &status,
		&enrollment, &yearStart, &birth,
		&dependent, &m.PrincipalMemberID,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	m.Status = domain.MemberStatus(status)
	m.EnrollmentDate = timePtr(enrollment)
	m.BenefitYearStart = timePtr(yearStart)
	m.BirthDate = timePtr(birth)
	m.Dependent = dependent == 1

	return &m, nil
}

// SaveBenefit stores or updates a benefit definition with tenant isolation.
func (r *SQLRepository) SaveBenefit(ctx context.Context, tenantID string, b *domain.BenefitDefinition) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	created := b.CreatedAt
	if created.IsZero() {
		created = now
	}

	query := `
		INSERT INTO benefits (
			id, tenant_id, scheme_id, category_id, name,
			coverage_amount, coverage_count_limit, period_type,
			deductible, copay_percent, copay_fixed,
			requires_preauth, preauth_threshold, waiting_period_days,
			network_only, enabled, effective_from, expires_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			scheme_id = excluded.scheme_id,
			category_id = excluded.category_id,
			name = excluded.name,
			coverage_amount = excluded.coverage_amount,
			coverage_count_limit = excluded.coverage_count_limit,
			period_type = excluded.period_type,
			deductible = excluded.deductible,
			copay_percent = excluded.copay_percent,
			copay_fixed = excluded.copay_fixed,
			requires_preauth = excluded.requires_preauth,
			preauth_threshold = excluded.preauth_threshold,
			waiting_period_days = excluded.waiting_period_days,
			network_only = excluded.network_only,
			enabled = excluded.enabled,
			effective_from = excluded.effective_from,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		b.ID, tenantID, b.SchemeID, b.CategoryID, b.Name,
		nullDecimal(b.CoverageAmount), nullInt(b.CoverageCountLimit), string(b.PeriodType),
		b.Deductible.String(), b.CopayPercent.String(), b.CopayFixed.String(),
		boolInt(b.RequiresPreAuth), nullDecimal(b.PreAuthThreshold), b.WaitingPeriodDays,
		boolInt(b.NetworkOnly), boolInt(b.Enabled), nullTime(b.EffectiveFrom), nullTime(b.ExpiresAt),
		created, now,
	)
	return err
}

// GetBenefit retrieves the benefit covering (scheme, category) with tenant isolation.
func (r *SQLRepository) GetBenefit(ctx context.Context, tenantID string, schemeID, categoryID string) (*domain.BenefitDefinition, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := benefitSelect + `
		WHERE tenant_id = ? AND scheme_id = ? AND category_id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, schemeID, categoryID)
	b, err := scanBenefit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// ListBenefits retrieves all benefit definitions for a scheme.
func (r *SQLRepository) ListBenefits(ctx context.Context, tenantID string, schemeID string) ([]*domain.BenefitDefinition, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := benefitSelect + `
		WHERE tenant_id = ? AND scheme_id = ?
		ORDER BY category_id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, schemeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var benefits []*domain.BenefitDefinition
	for rows.Next() {
		b, err := scanBenefit(rows)
		if err != nil {
			return nil, err
		}
		benefits = append(benefits, b)
	}

	return benefits, rows.Err()
}

const benefitSelect = `
	SELECT id, tenant_id, scheme_id, category_id, name,
		   coverage_amount, coverage_count_limit, period_type,
		   deductible, copay_percent, copay_fixed,
		   requires_preauth, preauth_threshold, waiting_period_days,
		   network_only, enabled, effective_from, expires_at,
		   created_at, updated_at
	FROM benefits
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBenefit(row rowScanner) (*domain.BenefitDefinition, error) {
	var b domain.BenefitDefinition
	var name sql.NullString
	var coverage, preauthThreshold sql.NullString
	var countLimit sql.NullInt64
	var periodType string
	var deductible, copayPercent, copayFixed string
	var requiresPreAuth, networkOnly, enabled int
	var effectiveFrom, expiresAt sql.NullTime

	err := row.Scan(
		&b.ID, &b.TenantID, &b.SchemeID, &b.CategoryID, &name,
		&coverage, &countLimit, &periodType,
		&deductible, &copayPercent, &copayFixed,
		&requiresPreAuth, &preauthThreshold, &b.WaitingPeriodDays,
		&networkOnly, &enabled, &effectiveFrom, &expiresAt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Name = name.String
	b.PeriodType = domain.PeriodType(periodType)
	b.RequiresPreAuth = requiresPreAuth == 1
	b.NetworkOnly = networkOnly == 1
	b.Enabled = enabled == 1
	b.EffectiveFrom = timePtr(effectiveFrom)
	b.ExpiresAt = timePtr(expiresAt)

	if b.Deductible, err = decimal.NewFromString(deductible); err != nil {
		return nil, fmt.Errorf("benefit %s: bad deductible: %w", b.ID, err)
	}
	if b.CopayPercent, err = decimal.NewFromString(copayPercent); err != nil {
		return nil, fmt.Errorf("benefit %s: bad copay percent: %w", b.ID, err)
	}
	if b.CopayFixed, err = decimal.NewFromString(copayFixed); err != nil {
		return nil, fmt.Errorf("benefit %s: bad copay fixed: %w", b.ID, err)
	}
	if b.CoverageAmount, err = decimalPtr(coverage); err != nil {
		return nil, fmt.Errorf("benefit %s: bad coverage amount: %w", b.ID, err)
	}
	if b.PreAuthThreshold, err = decimalPtr(preauthThreshold); err != nil {
		return nil, fmt.Errorf("benefit %s: bad preauth threshold: %w", b.ID, err)
	}
	if countLimit.Valid {
		n := int(countLimit.Int64)
		b.CoverageCountLimit = &n
	}

	return &b, nil
}

// SaveClaim stores or updates a historical claim with tenant isolation.
func (r *SQLRepository) SaveClaim(ctx context.Context, tenantID string, c *domain.HistoricalClaim) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO claims (
			id, tenant_id, member_id, category_id, provider_id,
			cost, submitted_at, service_date, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			member_id = excluded.member_id,
			category_id = excluded.category_id,
			provider_id = excluded.provider_id,
			cost = excluded.cost,
			submitted_at = excluded.submitted_at,
			service_date = excluded.service_date,
			status = excluded.status,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.ID, tenantID, c.MemberID, c.CategoryID, c.ProviderID,
		c.Cost.String(), c.SubmittedAt, c.ServiceDate, string(c.Status),
		now, now,
	)
	return err
}

// GetClaim retrieves a claim by ID with tenant isolation.
func (r *SQLRepository) GetClaim(ctx context.Context, tenantID string, claimID string) (*domain.HistoricalClaim, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, member_id, category_id, provider_id,
			   cost, submitted_at, service_date, status
		FROM claims
		WHERE tenant_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, claimID)
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// ListClaims retrieves claims matching the filter with tenant isolation.
// Zero-valued filter fields are unconstrained.
func (r *SQLRepository) ListClaims(ctx context.Context, tenantID string, filter domain.ClaimFilter) ([]*domain.HistoricalClaim, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, member_id, category_id, provider_id,
			   cost, submitted_at, service_date, status
		FROM claims
		WHERE tenant_id = ?
	`
	args := []any{tenantID}

	if filter.MemberID != "" {
		query += " AND member_id = ?"
		args = append(args, filter.MemberID)
	}
	if filter.CategoryID != "" {
		query += " AND category_id = ?"
		args = append(args, filter.CategoryID)
	}
	if filter.ProviderID != "" {
		query += " AND provider_id = ?"
		args = append(args, filter.ProviderID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		query += " AND submitted_at >= ?"
		args = append(args, filter.Since)
	}
	if !filter.Until.IsZero() {
		query += " AND submitted_at <= ?"
		args = append(args, filter.Until)
	}

	query += " ORDER BY submitted_at DESC"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []*domain.HistoricalClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}

	return claims, rows.Err()
}

func scanClaim(row rowScanner) (*domain.HistoricalClaim, error) {
	var c domain.HistoricalClaim
	var cost, status string

	err := row.Scan(
		&c.ID, &c.TenantID, &c.MemberID, &c.CategoryID, &c.ProviderID,
		&cost, &c.SubmittedAt, &c.ServiceDate, &status,
	)
	if err != nil {
		return nil, err
	}

	c.Status = domain.ClaimStatus(status)
	if c.Cost, err = decimal.NewFromString(cost); err != nil {
		return nil, fmt.Errorf("claim %s: bad cost: %w", c.ID, err)
	}
	return &c, nil
}

// UpdateClaimStatus transitions a claim's status with tenant isolation.
func (r *SQLRepository) UpdateClaimStatus(ctx context.Context, tenantID string, claimID string, status domain.ClaimStatus) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE claims
		SET status = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), string(status), time.Now().UTC(), tenantID, claimID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveOutcome stores a validation outcome with tenant isolation.
func (r *SQLRepository) SaveOutcome(ctx context.Context, tenantID string, o *domain.ValidationOutcome) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	breakdown, _ := json.Marshal(o.Breakdown)
	rejections, _ := json.Marshal(o.Rejections)
	metadata, _ := json.Marshal(o.Metadata)

	query := `
		INSERT INTO outcomes (
			id, tenant_id, claim_id, approved, payable_amount,
			message, breakdown, rejections, timestamp, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		o.ID, tenantID, o.ClaimID, boolInt(o.Approved), o.PayableAmount.String(),
		o.Message, string(breakdown), string(rejections), o.Timestamp, string(metadata),
	)
	return err
}

// GetOutcome retrieves a validation outcome by ID with tenant isolation.
func (r *SQLRepository) GetOutcome(ctx context.Context, tenantID string, outcomeID string) (*domain.ValidationOutcome, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, claim_id, approved, payable_amount,
			   message, breakdown, rejections, timestamp, metadata
		FROM outcomes
		WHERE tenant_id = ? AND id = ?
	`

	var o domain.ValidationOutcome
	var approved int
	var payable, breakdown, rejections, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, outcomeID).Scan(
		&o.ID, &o.TenantID, &o.ClaimID, &approved, &payable,
		&o.Message, &breakdown, &rejections, &o.Timestamp, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	o.Approved = approved == 1
	if o.PayableAmount, err = decimal.NewFromString(payable); err != nil {
		return nil, fmt.Errorf("outcome %s: bad payable amount: %w", o.ID, err)
	}
	json.Unmarshal([]byte(breakdown), &o.Breakdown)
	if rejections != "" {
		json.Unmarshal([]byte(rejections), &o.Rejections)
	}
	json.Unmarshal([]byte(metadata), &o.Metadata)

	return &o, nil
}

// SaveScreeningRule stores a screening rule with tenant isolation.
func (r *SQLRepository) SaveScreeningRule(ctx context.Context, tenantID string, rule *domain.ScreeningRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	bands, _ := json.Marshal(rule.Bands)

	now := time.Now().UTC()

	query := `
		INSERT INTO screening_rules (
			id, tenant_id, name, description, version, expression, bands, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			bands = excluded.bands,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, string(bands), boolInt(rule.Enabled),
		now, now,
	)
	return err
}

// GetScreeningRule retrieves the latest enabled version of a screening rule.
func (r *SQLRepository) GetScreeningRule(ctx context.Context, tenantID string, ruleID string) (*domain.ScreeningRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, enabled
		FROM screening_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var rule domain.ScreeningRule
	var bands string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
		&rule.Version, &rule.Expression, &bands, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1
	json.Unmarshal([]byte(bands), &rule.Bands)

	return &rule, nil
}

// ListScreeningRules retrieves all enabled screening rules for a tenant.
func (r *SQLRepository) ListScreeningRules(ctx context.Context, tenantID string) ([]*domain.ScreeningRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, enabled
		FROM screening_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.ScreeningRule
	for rows.Next() {
		var rule domain.ScreeningRule
		var bands string
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
			&rule.Version, &rule.Expression, &bands, &enabled,
		); err != nil {
			return nil, err
		}

		rule.Enabled = enabled == 1
		json.Unmarshal([]byte(bands), &rule.Bands)
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func decimalPtr(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}
