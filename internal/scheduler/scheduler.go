// Package scheduler runs the periodic ledger sweeps: subscription
// expiration, overdue invoices, and stuck webhook event surfacing.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/lexora/internal/clock"
	appconfig "github.com/smallbiznis/lexora/internal/config"
	invoicedomain "github.com/smallbiznis/lexora/internal/invoice/domain"
	"github.com/smallbiznis/lexora/internal/observability/metrics"
	"github.com/smallbiznis/lexora/internal/payment/webhook"
	subscriptiondomain "github.com/smallbiznis/lexora/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	Log             *zap.Logger
	SubscriptionSvc subscriptiondomain.Service
	InvoiceSvc      invoicedomain.Service
	Ingestor        webhook.Ingestor
	Billing         *appconfig.BillingConfigHolder
	Clock           clock.Clock
	Metrics         *metrics.Metrics `optional:"true"`
	Locker          *Locker          `optional:"true"`
	Config          Config           `optional:"true"`
}

type Scheduler struct {
	log             *zap.Logger
	cfg             Config
	subscriptionSvc subscriptiondomain.Service
	invoiceSvc      invoicedomain.Service
	ingestor        webhook.Ingestor
	billing         *appconfig.BillingConfigHolder
	clock           clock.Clock
	metrics         *metrics.Metrics
	locker          *Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.SubscriptionSvc == nil || p.InvoiceSvc == nil || p.Ingestor == nil || p.Billing == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:             p.Log.Named("scheduler"),
		cfg:             p.Config.withDefaults(),
		subscriptionSvc: p.SubscriptionSvc,
		invoiceSvc:      p.InvoiceSvc,
		ingestor:        p.Ingestor,
		billing:         p.Billing,
		clock:           p.Clock,
		metrics:         p.Metrics,
		locker:          p.Locker,
	}, nil
}

// Run loops until the context is cancelled, sweeping once per interval.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runLocked(ctx)
		}
	}
}

func (s *Scheduler) runLocked(ctx context.Context) {
	if s.locker != nil {
		token, ok, err := s.locker.TryLock(ctx, s.cfg.LockKey, s.cfg.LockTTL)
		if err != nil {
			s.log.Warn("scheduler lock unavailable, running unlocked", zap.Error(err))
		} else if !ok {
			return
		} else {
			defer func() {
				if err := s.locker.Release(ctx, s.cfg.LockKey, token); err != nil {
					s.log.Warn("scheduler lock release failed", zap.Error(err))
				}
			}()
		}
	}
	s.RunOnce(ctx)
}

// RunOnce executes every sweep a single time. Each sweep is idempotent, so a
// crash mid-run just means the next tick finishes the job.
func (s *Scheduler) RunOnce(ctx context.Context) {
	now := s.clock.Now().UTC()

	expired, err := s.subscriptionSvc.ExpireDue(ctx, now)
	if err != nil {
		s.log.Error("expire subscriptions sweep", zap.Error(err))
	} else {
		s.metrics.AddExpiredSubscriptions(expired)
	}

	overdue, err := s.invoiceSvc.MarkOverdue(ctx, now)
	if err != nil {
		s.log.Error("overdue invoices sweep", zap.Error(err))
	} else if overdue > 0 {
		s.log.Info("overdue sweep complete", zap.Int64("count", overdue))
	}

	s.surfaceStuckEvents(ctx)
}

// surfaceStuckEvents reports webhook events that were recorded but never got
// an outcome. They are not retried automatically; the dedup gate already
// committed, so replay is a manual operation.
func (s *Scheduler) surfaceStuckEvents(ctx context.Context) {
	threshold := s.billing.Current().StuckEventThreshold()
	stuck, err := s.ingestor.StuckEvents(ctx, threshold)
	if err != nil {
		s.log.Error("stuck webhook events sweep", zap.Error(err))
		return
	}
	s.metrics.SetStuckWebhookEvents(len(stuck))
	for _, event := range stuck {
		s.log.Warn("webhook event stuck without outcome",
			zap.String("event_id", event.EventID),
			zap.String("event_type", event.EventType),
			zap.Time("received_at", event.ReceivedAt),
		)
	}
}
