package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openhealth-claims/heron/internal/domain"
	"github.com/openhealth-claims/heron/internal/engine"
	"github.com/openhealth-claims/heron/internal/screening"
)

// submissionRateLimit caps claim submissions per tenant per minute.
const submissionRateLimit = 600

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, adjudicator *engine.Adjudicator, screen *screening.Engine, version string) *Server {
	handler := NewHandler(repo, cache, bus, adjudicator, screen, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Claim adjudication
		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(cache, submissionRateLimit, time.Minute))
			r.Post("/claims/evaluate", handler.Evaluate)
			r.Post("/claims", handler.Submit)
		})

		// Claim and outcome retrieval
		r.Get("/claims", handler.ListClaims)
		r.Get("/claims/{id}", handler.GetClaim)
		r.Get("/outcomes/{id}", handler.GetOutcome)

		// Member management
		r.Put("/members", handler.SaveMember)
		r.Get("/members/{id}", handler.GetMember)

		// Benefit management
		r.Put("/benefits", handler.SaveBenefit)
		r.Get("/schemes/{schemeId}/benefits", handler.ListBenefits)

		// Screening rule management
		r.Get("/screening/rules", handler.ListScreeningRules)
		r.Post("/screening/rules", handler.CreateScreeningRule)
		r.Post("/screening/rules/reload", handler.ReloadScreeningRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
