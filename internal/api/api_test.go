package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openhealth-claims/heron/internal/bus"
	"github.com/openhealth-claims/heron/internal/cache"
	"github.com/openhealth-claims/heron/internal/domain"
	"github.com/openhealth-claims/heron/internal/engine"
)

// stubLookups serves fixed members, benefits, and an empty claim history.
type stubLookups struct {
	members  map[string]*domain.Member
	benefits map[string]*domain.BenefitDefinition
}

func (s *stubLookups) GetMember(ctx context.Context, tenantID, memberID string) (*domain.Member, error) {
	m, ok := s.members[memberID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (s *stubLookups) GetBenefit(ctx context.Context, tenantID, schemeID, categoryID string) (*domain.BenefitDefinition, error) {
	b, ok := s.benefits[schemeID+"/"+categoryID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

func (s *stubLookups) ListClaims(ctx context.Context, tenantID string, f domain.ClaimFilter) ([]*domain.HistoricalClaim, error) {
	return nil, nil
}

func fixtureLookups() *stubLookups {
	now := time.Now().UTC()
	enrolled := now.AddDate(-2, 0, 0)
	birth := now.AddDate(-30, 0, 0)
	coverage := decimal.NewFromInt(10000)

	return &stubLookups{
		members: map[string]*domain.Member{
			"m1": {
				ID:             "m1",
				TenantID:       "tenant-001",
				SchemeID:       "scheme-gold",
				Status:         domain.MemberActive,
				EnrollmentDate: &enrolled,
				BirthDate:      &birth,
			},
			"m-suspended": {
				ID:             "m-suspended",
				TenantID:       "tenant-001",
				SchemeID:       "scheme-gold",
				Status:         domain.MemberSuspended,
				EnrollmentDate: &enrolled,
				BirthDate:      &birth,
			},
		},
		benefits: map[string]*domain.BenefitDefinition{
			"scheme-gold/cat-dental": {
				ID:             "ben-dental",
				TenantID:       "tenant-001",
				SchemeID:       "scheme-gold",
				CategoryID:     "cat-dental",
				Name:           "Dental Care",
				CoverageAmount: &coverage,
				PeriodType:     domain.PeriodBenefitYear,
				Deductible:     decimal.NewFromInt(100),
				CopayPercent:   decimal.NewFromInt(10),
				Enabled:        true,
			},
		},
	}
}

// createTestServer creates a server backed by fixture lookups.
func createTestServer(eventBus domain.EventBus) *Server {
	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	adjudicator := engine.New(fixtureLookups(), nil, nil, domain.DefaultAdjudicationConfig())
	return NewServer(cfg, nil, nil, eventBus, adjudicator, nil, "test-v1")
}

func submission(memberID string, cost int64) ClaimSubmission {
	return ClaimSubmission{
		MemberID:     memberID,
		CategoryID:   "cat-dental",
		CategoryName: "Dental Care",
		ProviderID:   "prov-1",
		Cost:         decimal.NewFromInt(cost),
	}
}

func postJSON(t *testing.T, server *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "tenant-001")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestEvaluateEndpoint(t *testing.T) {
	server := createTestServer(nil)

	t.Run("SuccessfulEvaluation", func(t *testing.T) {
		rr := postJSON(t, server, "/claims/evaluate", submission("m1", 500))

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp EvaluateResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.OutcomeID == "" {
			t.Error("expected outcomeId in response")
		}
		if resp.ClaimID == "" {
			t.Error("expected claimId in response")
		}
		if !resp.Approved {
			t.Errorf("expected approval, got rejections %+v", resp.Rejections)
		}
		// 500 - 100 deductible - 40 copay = 360
		if !resp.PayableAmount.Equal(decimal.NewFromInt(360)) {
			t.Errorf("expected payable 360, got %s", resp.PayableAmount)
		}
		if resp.Metadata.Version != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp.Metadata.Version)
		}
		if resp.Metadata.TraceID == "" {
			t.Error("expected traceId in metadata")
		}
	})

	t.Run("BusinessRejection", func(t *testing.T) {
		rr := postJSON(t, server, "/claims/evaluate", submission("m-suspended", 200))

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp EvaluateResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.Approved {
			t.Error("expected rejection for suspended member")
		}
		if len(resp.Rejections) != 1 || resp.Rejections[0].Code != domain.RejectIneligiblePatient {
			t.Errorf("expected IneligiblePatient rejection, got %+v", resp.Rejections)
		}
	})

	t.Run("UnknownMember", func(t *testing.T) {
		rr := postJSON(t, server, "/claims/evaluate", submission("nobody", 100))

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("MissingTenantID", func(t *testing.T) {
		body, _ := json.Marshal(submission("m1", 100))
		req := httptest.NewRequest(http.MethodPost, "/claims/evaluate", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		// No X-Tenant-ID header

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/claims/evaluate", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingMemberID", func(t *testing.T) {
		s := submission("", 100)
		rr := postJSON(t, server, "/claims/evaluate", s)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("NonPositiveCost", func(t *testing.T) {
		s := submission("m1", 0)
		rr := postJSON(t, server, "/claims/evaluate", s)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		rr := postJSON(t, server, "/claims/evaluate", submission("m1", 100))

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header in response")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header in response")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
	})
}

func TestSubmitEndpoint(t *testing.T) {
	t.Run("NoBusUnavailable", func(t *testing.T) {
		server := createTestServer(nil)
		rr := postJSON(t, server, "/claims", submission("m1", 100))

		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rr.Code)
		}
	})

	t.Run("AcceptedAndPublished", func(t *testing.T) {
		eventBus := bus.NewChannelBus(10)
		defer eventBus.Close()

		var published []byte
		done := make(chan struct{})
		eventBus.Subscribe(context.Background(), "tenant-001", domain.TopicClaimSubmitted, func(ctx context.Context, msg *domain.Message) error {
			published = msg.Payload
			close(done)
			return nil
		})
		time.Sleep(10 * time.Millisecond)

		server := createTestServer(eventBus)
		rr := postJSON(t, server, "/claims", submission("m1", 250))

		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["claimId"] == "" {
			t.Error("expected claimId in response")
		}
		if resp["status"] != string(domain.ClaimPending) {
			t.Errorf("expected pending status, got %s", resp["status"])
		}

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for published claim")
		}

		var msg map[string]any
		if err := json.Unmarshal(published, &msg); err != nil {
			t.Fatalf("failed to parse published claim: %v", err)
		}
		if msg["memberId"] != "m1" {
			t.Errorf("expected memberId m1, got %v", msg["memberId"])
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(nil)

	t.Run("HealthCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("TenantMiddlewareExtractsID", func(t *testing.T) {
		var capturedTenantID string

		handler := TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedTenantID = GetTenantID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Tenant-ID", "my-tenant-123")

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedTenantID != "my-tenant-123" {
			t.Errorf("expected tenant ID 'my-tenant-123', got '%s'", capturedTenantID)
		}
	})

	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := r.Context().Value(RequestIDKey).(string); ok {
				capturedRequestID = v
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})

	t.Run("RateLimitMiddleware", func(t *testing.T) {
		counterCache := cache.NewLRUCache(100)
		defer counterCache.Close()

		handler := RateLimitMiddleware(counterCache, 2, time.Minute)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

		do := func() int {
			req := httptest.NewRequest(http.MethodPost, "/claims", nil)
			ctx := context.WithValue(req.Context(), TenantIDKey, "tenant-rate")
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req.WithContext(ctx))
			return rr.Code
		}

		if code := do(); code != http.StatusOK {
			t.Errorf("expected first request 200, got %d", code)
		}
		if code := do(); code != http.StatusOK {
			t.Errorf("expected second request 200, got %d", code)
		}
		if code := do(); code != http.StatusTooManyRequests {
			t.Errorf("expected third request 429, got %d", code)
		}
	})
}
