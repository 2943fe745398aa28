// Package worker provides async claim processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openhealth-claims/heron/internal/domain"
	"github.com/openhealth-claims/heron/internal/engine"
)

// Worker adjudicates claims asynchronously from the EventBus.
type Worker struct {
	bus         domain.EventBus
	repo        domain.Repository
	adjudicator *engine.Adjudicator

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, adjudicator *engine.Adjudicator) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:         bus,
		repo:        repo,
		adjudicator: adjudicator,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins processing claims for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// tracked wraps a handler so Stop can wait for in-flight claims.
func (w *Worker) tracked(h domain.MessageHandler) domain.MessageHandler {
	return func(ctx context.Context, msg *domain.Message) error {
		w.wg.Add(1)
		defer w.wg.Done()
		return h(ctx, msg)
	}
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicClaimSubmitted, w.tracked(w.handleMessage))
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicClaimSubmitted, w.tracked(func(ctx context.Context, msg *domain.Message) error {
		return w.processClaim(ctx, tenantID, msg)
	}))
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicClaimSubmitted,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processClaim(ctx, msg.TenantID, msg)
}

// ClaimMessage is the message payload for async claim adjudication.
type ClaimMessage struct {
	ClaimID      string          `json:"claimId"`
	TenantID     string          `json:"tenantId"`
	TraceID      string          `json:"traceId,omitempty"`
	MemberID     string          `json:"memberId"`
	CategoryID   string          `json:"categoryId"`
	CategoryName string          `json:"categoryName"`
	ProviderID   string          `json:"providerId"`
	Cost         decimal.Decimal `json:"cost"`
	SubmittedAt  time.Time       `json:"submittedAt,omitempty"`
	ServiceDate  *time.Time      `json:"serviceDate,omitempty"`

	PreAuthRef    string     `json:"preAuthRef,omitempty"`
	PreAuthExpiry *time.Time `json:"preAuthExpiry,omitempty"`
}

// processClaim runs one submitted claim through the adjudication pipeline.
func (w *Worker) processClaim(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var claimMsg ClaimMessage
	if err := json.Unmarshal(msg.Payload, &claimMsg); err != nil {
		slog.Error("failed to parse claim message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if claimMsg.TenantID != "" {
		tenantID = claimMsg.TenantID
	}

	claimID := claimMsg.ClaimID
	if claimID == "" {
		claimID = msg.ID
	}

	submittedAt := claimMsg.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now().UTC()
	}

	slog.Debug("processing claim",
		"claim_id", claimID,
		"tenant_id", tenantID,
	)

	claim := &domain.ClaimRequest{
		ID:            claimID,
		TenantID:      tenantID,
		MemberID:      claimMsg.MemberID,
		CategoryID:    claimMsg.CategoryID,
		CategoryName:  claimMsg.CategoryName,
		ProviderID:    claimMsg.ProviderID,
		Cost:          claimMsg.Cost,
		SubmittedAt:   submittedAt,
		ServiceDate:   claimMsg.ServiceDate,
		PreAuthRef:    claimMsg.PreAuthRef,
		PreAuthExpiry: claimMsg.PreAuthExpiry,
	}

	// 1. Record the claim as pending before evaluating, so the usage and
	// fraud stages of later submissions can see it.
	if w.repo != nil {
		if err := w.repo.SaveClaim(ctx, tenantID, &domain.HistoricalClaim{
			ID:          claim.ID,
			TenantID:    tenantID,
			MemberID:    claim.MemberID,
			CategoryID:  claim.CategoryID,
			ProviderID:  claim.ProviderID,
			Cost:        claim.Cost,
			SubmittedAt: claim.SubmittedAt,
			ServiceDate: claim.EffectiveServiceDate(),
			Status:      domain.ClaimPending,
		}); err != nil {
			slog.Error("failed to save claim",
				"claim_id", claim.ID,
				"error", err,
			)
		}
	}

	// 2. Adjudicate
	outcome, err := w.adjudicator.Adjudicate(ctx, claim)
	if err != nil {
		slog.Error("adjudication failed",
			"claim_id", claim.ID,
			"error", err,
		)
		return err
	}
	if claimMsg.TraceID != "" && outcome.Metadata.TraceID == "" {
		outcome.Metadata.TraceID = claimMsg.TraceID
	}

	// 3. Persist the outcome and the final claim status
	if w.repo != nil {
		if err := w.repo.SaveOutcome(ctx, tenantID, outcome); err != nil {
			slog.Error("failed to save outcome",
				"claim_id", claim.ID,
				"error", err,
			)
		}

		status := domain.ClaimRejected
		if outcome.Approved {
			status = domain.ClaimApproved
		}
		if err := w.repo.UpdateClaimStatus(ctx, tenantID, claim.ID, status); err != nil {
			slog.Error("failed to update claim status",
				"claim_id", claim.ID,
				"error", err,
			)
		}
	}

	// 4. Publish the decision
	resultPayload, _ := json.Marshal(outcome)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicClaimDecision, resultPayload); err != nil {
		slog.Error("failed to publish decision",
			"claim_id", claim.ID,
			"error", err,
		)
	}

	// 5. High-risk outcomes go to the alerting collaborator
	if shouldAlert(outcome) {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicFraudAlert, resultPayload); err != nil {
			slog.Error("failed to publish fraud alert",
				"claim_id", claim.ID,
				"error", err,
			)
		}
	}

	slog.Info("claim processed",
		"claim_id", claim.ID,
		"tenant_id", tenantID,
		"approved", outcome.Approved,
		"payable", outcome.PayableAmount.String(),
		"fraud_score", outcome.Breakdown.FraudScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// shouldAlert reports whether the outcome warrants a fraud alert: a score
// above the high-risk threshold, or any high or critical severity finding.
func shouldAlert(o *domain.ValidationOutcome) bool {
	if o.Breakdown.FraudScore > domain.HighRiskThreshold {
		return true
	}
	for _, f := range o.Breakdown.Findings {
		if f.Severity == domain.SeverityHigh || f.Severity == domain.SeverityCritical {
			return true
		}
	}
	return false
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
