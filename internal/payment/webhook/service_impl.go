package webhook

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexora/internal/clock"
	"github.com/smallbiznis/lexora/internal/config"
	invoicedomain "github.com/smallbiznis/lexora/internal/invoice/domain"
	"github.com/smallbiznis/lexora/internal/observability/metrics"
	"github.com/smallbiznis/lexora/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type IngestStatus string

const (
	StatusProcessed IngestStatus = "processed"
	StatusDuplicate IngestStatus = "duplicate"
	StatusRejected  IngestStatus = "rejected"
)

type IngestResult struct {
	Status  IngestStatus `json:"status"`
	EventID string       `json:"event_id,omitempty"`
	Outcome string       `json:"outcome,omitempty"`
}

type Ingestor interface {
	// Ingest verifies, dedupes, and dispatches one processor callback. The
	// unique insert on event id is the sole idempotency gate; side effects
	// only run after it succeeds.
	Ingest(ctx context.Context, payload []byte, sigHeader string) (*IngestResult, error)

	// StuckEvents returns recorded events older than the threshold that
	// never got an outcome, the backlog needing manual replay.
	StuckEvents(ctx context.Context, threshold time.Duration) ([]domain.WebhookEvent, error)
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Node       *snowflake.Node
	Repo       domain.Repository
	Reconciler invoicedomain.Service
	Refunds    domain.Service
	Clock      clock.Clock
	Log        *zap.Logger
	Metrics    *metrics.Metrics `optional:"true"`
	Verifier   *Verifier
}

type ingestor struct {
	db         *gorm.DB
	node       *snowflake.Node
	repo       domain.Repository
	reconciler invoicedomain.Service
	refunds    domain.Service
	clock      clock.Clock
	log        *zap.Logger
	metrics    *metrics.Metrics
	verifier   *Verifier
}

func New(p Params) Ingestor {
	return &ingestor{
		db:         p.DB,
		node:       p.Node,
		repo:       p.Repo,
		reconciler: p.Reconciler,
		refunds:    p.Refunds,
		clock:      p.Clock,
		log:        p.Log.Named("payment.webhook"),
		metrics:    p.Metrics,
		verifier:   p.Verifier,
	}
}

func NewVerifierFromConfig(cfg config.Config) *Verifier {
	return NewVerifier(cfg.WebhookSigningSecret)
}

func (s *ingestor) Ingest(ctx context.Context, payload []byte, sigHeader string) (*IngestResult, error) {
	if err := s.verifier.Verify(payload, sigHeader); err != nil {
		s.metrics.ObserveWebhook(string(StatusRejected))
		return &IngestResult{Status: StatusRejected}, err
	}

	event, err := parseEnvelope(payload)
	if err != nil {
		s.metrics.ObserveWebhook(string(StatusRejected))
		return &IngestResult{Status: StatusRejected}, err
	}

	now := s.clock.Now().UTC()
	record := &domain.WebhookEvent{
		ID:         s.node.Generate(),
		EventID:    event.ID,
		EventType:  event.Type,
		Payload:    datatypes.JSON(payload),
		ReceivedAt: now,
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, record)
	if err != nil {
		return nil, err
	}
	if !inserted {
		s.metrics.ObserveWebhook(string(StatusDuplicate))
		s.log.Info("duplicate webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
		)
		return &IngestResult{Status: StatusDuplicate, EventID: event.ID}, nil
	}

	outcome := s.dispatch(ctx, event, payload)
	if err := s.repo.RecordOutcome(ctx, s.db, record.ID, outcome, s.clock.Now().UTC()); err != nil {
		s.log.Error("record webhook outcome", zap.String("event_id", event.ID), zap.Error(err))
	}

	s.metrics.ObserveWebhook(outcome)
	return &IngestResult{Status: StatusProcessed, EventID: event.ID, Outcome: outcome}, nil
}

// dispatch runs the handler for a first-seen event. Handler failures are
// recorded on the event row and surfaced through alerting, never back to the
// processor; the dedup gate already committed, so a redelivery would be a
// silent duplicate.
func (s *ingestor) dispatch(ctx context.Context, event *envelope, payload []byte) string {
	switch event.Type {
	case domain.EventTypePaymentSucceeded:
		paymentEvent, err := parsePaymentEvent(event, payload, s.clock.Now().UTC())
		if err != nil {
			s.log.Error("parse payment event", zap.String("event_id", event.ID), zap.Error(err))
			return domain.OutcomeFailed
		}
		if _, err := s.reconciler.ReconcilePayment(ctx, paymentEvent); err != nil {
			s.log.Error("reconcile payment",
				zap.String("event_id", event.ID),
				zap.String("payment_intent_id", paymentEvent.PaymentIntentID),
				zap.Error(err),
			)
			return domain.OutcomeFailed
		}
		return domain.OutcomeProcessed

	case domain.EventTypeChargeRefunded:
		refundEvents, err := parseRefundEvents(event, s.clock.Now().UTC())
		if err != nil {
			s.log.Error("parse refund event", zap.String("event_id", event.ID), zap.Error(err))
			return domain.OutcomeFailed
		}
		for _, refund := range refundEvents {
			if _, err := s.refunds.ApplyRefund(ctx, domain.ApplyRefundRequest{
				PaymentIntentID: refund.PaymentIntentID,
				RefundID:        refund.RefundID,
				Amount:          refund.Amount,
				Currency:        refund.Currency,
				IdempotencyKey:  refund.IdempotencyKey,
				Reason:          refund.Reason,
			}); err != nil {
				s.log.Error("apply refund",
					zap.String("event_id", event.ID),
					zap.String("refund_id", refund.RefundID),
					zap.Error(err),
				)
				return domain.OutcomeFailed
			}
		}
		return domain.OutcomeProcessed

	default:
		s.log.Info("webhook event ignored",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
		)
		return domain.OutcomeIgnored
	}
}

func (s *ingestor) StuckEvents(ctx context.Context, threshold time.Duration) ([]domain.WebhookEvent, error) {
	cutoff := s.clock.Now().UTC().Add(-threshold)
	return s.repo.FindStuckEvents(ctx, s.db, cutoff)
}
