package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openhealth-claims/heron/internal/domain"
	"github.com/openhealth-claims/heron/internal/engine"
	"github.com/openhealth-claims/heron/internal/screening"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo        domain.Repository
	cache       domain.Cache
	bus         domain.EventBus
	adjudicator *engine.Adjudicator
	screening   *screening.Engine
	version     string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, adjudicator *engine.Adjudicator, screen *screening.Engine, version string) *Handler {
	return &Handler{
		repo:        repo,
		cache:       cache,
		bus:         bus,
		adjudicator: adjudicator,
		screening:   screen,
		version:     version,
	}
}

// ClaimSubmission is the request body for claim evaluation and submission.
type ClaimSubmission struct {
	MemberID     string          `json:"memberId"`
	CategoryID   string          `json:"categoryId"`
	CategoryName string          `json:"categoryName"`
	ProviderID   string          `json:"providerId"`
	Cost         decimal.Decimal `json:"cost"`

	ServiceDate   *time.Time `json:"serviceDate,omitempty"`
	PreAuthRef    string     `json:"preAuthRef,omitempty"`
	PreAuthExpiry *time.Time `json:"preAuthExpiry,omitempty"`
}

func (s *ClaimSubmission) validate() string {
	if s.MemberID == "" {
		return "memberId is required"
	}
	if s.CategoryID == "" {
		return "categoryId is required"
	}
	if !s.Cost.IsPositive() {
		return "cost must be positive"
	}
	return ""
}

// EvaluateResponse is the response for POST /claims/evaluate.
type EvaluateResponse struct {
	OutcomeID     string             `json:"outcomeId"`
	ClaimID       string             `json:"claimId"`
	Approved      bool               `json:"approved"`
	PayableAmount decimal.Decimal    `json:"payableAmount"`
	Message       string             `json:"message"`
	Rejections    []domain.Rejection `json:"rejections,omitempty"`
	FraudScore    float64            `json:"fraudScore"`
	Warnings      []string           `json:"warnings,omitempty"`
	Metadata      struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Evaluate handles POST /claims/evaluate: synchronous adjudication.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req ClaimSubmission
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": msg,
		})
		return
	}

	claim := &domain.ClaimRequest{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		MemberID:      req.MemberID,
		CategoryID:    req.CategoryID,
		CategoryName:  req.CategoryName,
		ProviderID:    req.ProviderID,
		Cost:          req.Cost,
		SubmittedAt:   time.Now().UTC(),
		ServiceDate:   req.ServiceDate,
		PreAuthRef:    req.PreAuthRef,
		PreAuthExpiry: req.PreAuthExpiry,
	}

	// Record as pending before evaluating so usage and fraud scans of
	// later submissions see it.
	if h.repo != nil {
		if err := h.repo.SaveClaim(ctx, tenantID, historical(claim)); err != nil {
			slog.Error("failed to save claim", "claim_id", claim.ID, "error", err)
		}
	}

	outcome, err := h.adjudicator.Adjudicate(ctx, claim)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "member not found",
			})
			return
		}
		slog.Error("adjudication failed", "claim_id", claim.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "adjudication failed",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveOutcome(ctx, tenantID, outcome); err != nil {
			slog.Error("failed to save outcome", "claim_id", claim.ID, "error", err)
		}

		status := domain.ClaimRejected
		if outcome.Approved {
			status = domain.ClaimApproved
		}
		if err := h.repo.UpdateClaimStatus(ctx, tenantID, claim.ID, status); err != nil {
			slog.Error("failed to update claim status", "claim_id", claim.ID, "error", err)
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(outcome)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicClaimDecision, payload); err != nil {
			slog.Error("failed to publish decision", "claim_id", claim.ID, "error", err)
		}
		if outcome.Breakdown.FraudScore > domain.HighRiskThreshold {
			if err := h.bus.Publish(ctx, tenantID, domain.TopicFraudAlert, payload); err != nil {
				slog.Error("failed to publish fraud alert", "claim_id", claim.ID, "error", err)
			}
		}
	}

	resp := EvaluateResponse{
		OutcomeID:     outcome.ID,
		ClaimID:       claim.ID,
		Approved:      outcome.Approved,
		PayableAmount: outcome.PayableAmount,
		Message:       outcome.Message,
		Rejections:    outcome.Rejections,
		FraudScore:    outcome.Breakdown.FraudScore,
		Warnings:      outcome.Breakdown.Warnings,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// Submit handles POST /claims: async submission via the event bus.
// The claim is adjudicated by a worker; poll GET /claims/{id} for status.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	var req ClaimSubmission
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": msg,
		})
		return
	}

	claimID := uuid.New().String()
	msg := map[string]any{
		"claimId":       claimID,
		"tenantId":      tenantID,
		"traceId":       traceID,
		"memberId":      req.MemberID,
		"categoryId":    req.CategoryID,
		"categoryName":  req.CategoryName,
		"providerId":    req.ProviderID,
		"cost":          req.Cost,
		"submittedAt":   time.Now().UTC(),
		"serviceDate":   req.ServiceDate,
		"preAuthRef":    req.PreAuthRef,
		"preAuthExpiry": req.PreAuthExpiry,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode claim",
		})
		return
	}

	if err := h.bus.Publish(ctx, tenantID, domain.TopicClaimSubmitted, payload); err != nil {
		slog.Error("failed to publish claim", "claim_id", claimID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to submit claim",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"claimId": claimID,
		"status":  string(domain.ClaimPending),
		"traceId": traceID,
	})
}

// GetClaim retrieves a stored claim by ID.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	claimID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	c, err := h.repo.GetClaim(ctx, tenantID, claimID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Error("failed to get claim", "id", claimID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "claim not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// ListClaims lists stored claims, filtered by query parameters.
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	q := r.URL.Query()
	filter := domain.ClaimFilter{
		MemberID:   q.Get("memberId"),
		CategoryID: q.Get("categoryId"),
		ProviderID: q.Get("providerId"),
		Status:     domain.ClaimStatus(q.Get("status")),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be RFC3339",
			})
			return
		}
		filter.Since = t
	}

	claims, err := h.repo.ListClaims(ctx, tenantID, filter)
	if err != nil {
		slog.Error("failed to list claims", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list claims",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"claims": claims,
		"count":  len(claims),
	})
}

// GetOutcome retrieves a validation outcome by ID.
func (h *Handler) GetOutcome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	outcomeID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	o, err := h.repo.GetOutcome(ctx, tenantID, outcomeID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Error("failed to get outcome", "id", outcomeID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "outcome not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, o)
}

// SaveMember handles PUT /members: creates or updates a scheme member.
func (h *Handler) SaveMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	var m domain.Member
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if m.ID == "" || m.SchemeID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id and schemeId are required",
		})
		return
	}
	m.TenantID = tenantID
	if m.Status == "" {
		m.Status = domain.MemberActive
	}

	if err := h.repo.SaveMember(ctx, tenantID, &m); err != nil {
		slog.Error("failed to save member", "id", m.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save member",
		})
		return
	}

	writeJSON(w, http.StatusOK, &m)
}

// GetMember retrieves a member by ID.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	memberID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	m, err := h.repo.GetMember(ctx, tenantID, memberID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Error("failed to get member", "id", memberID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "member not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// SaveBenefit handles PUT /benefits: creates or updates a benefit definition.
// The cached snapshot for the (scheme, category) pair is invalidated.
func (h *Handler) SaveBenefit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	var b domain.BenefitDefinition
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if b.ID == "" || b.SchemeID == "" || b.CategoryID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, schemeId, and categoryId are required",
		})
		return
	}
	if b.PeriodType == "" {
		b.PeriodType = domain.PeriodBenefitYear
	}
	b.TenantID = tenantID

	if err := h.repo.SaveBenefit(ctx, tenantID, &b); err != nil {
		slog.Error("failed to save benefit", "id", b.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save benefit",
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.SetBenefit(ctx, tenantID, &b, 5*time.Minute); err != nil {
			slog.Warn("failed to refresh benefit cache", "id", b.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, &b)
}

// ListBenefits lists the benefit definitions of a scheme.
func (h *Handler) ListBenefits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	schemeID := chi.URLParam(r, "schemeId")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	benefits, err := h.repo.ListBenefits(ctx, tenantID, schemeID)
	if err != nil {
		slog.Error("failed to list benefits", "scheme_id", schemeID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list benefits",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"benefits": benefits,
		"count":    len(benefits),
	})
}

// ListScreeningRules returns all rules loaded in the screening engine.
func (h *Handler) ListScreeningRules(w http.ResponseWriter, r *http.Request) {
	if h.screening == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "screening engine not available",
		})
		return
	}

	loaded := h.screening.LoadedRules()
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loaded,
		"count": len(loaded),
	})
}

// CreateScreeningRule validates, persists, and loads a screening rule.
func (h *Handler) CreateScreeningRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.screening == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "screening engine not available",
		})
		return
	}

	var rule domain.ScreeningRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if rule.ID == "" || rule.Name == "" || rule.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}
	rule.TenantID = tenantID
	if rule.Version == "" {
		rule.Version = "1.0.0"
	}

	if err := h.screening.ValidateRule(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveScreeningRule(ctx, tenantID, &rule); err != nil {
			slog.Error("failed to save screening rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save screening rule",
			})
			return
		}
	}

	if rule.Enabled {
		if err := h.screening.LoadRule(&rule); err != nil {
			slog.Error("failed to load screening rule", "id", rule.ID, "error", err)
		}
	}

	slog.Info("screening rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, &rule)
}

// ReloadScreeningRules reloads enabled rules from the repository into the
// screening engine, atomically replacing the current set.
func (h *Handler) ReloadScreeningRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil || h.screening == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository or screening engine not available",
		})
		return
	}

	rules, err := h.repo.ListScreeningRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list screening rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load screening rules",
		})
		return
	}

	if err := h.screening.ReloadRules(rules); err != nil {
		slog.Error("failed to reload screening rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload screening rules: " + err.Error(),
		})
		return
	}

	slog.Info("screening rules reloaded", "count", h.screening.RulesCount())
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "screening rules reloaded successfully",
		"count":   h.screening.RulesCount(),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func historical(c *domain.ClaimRequest) *domain.HistoricalClaim {
	return &domain.HistoricalClaim{
		ID:          c.ID,
		TenantID:    c.TenantID,
		MemberID:    c.MemberID,
		CategoryID:  c.CategoryID,
		ProviderID:  c.ProviderID,
		Cost:        c.Cost,
		SubmittedAt: c.SubmittedAt,
		ServiceDate: c.EffectiveServiceDate(),
		Status:      domain.ClaimPending,
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
