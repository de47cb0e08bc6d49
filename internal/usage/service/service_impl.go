package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexora/internal/clock"
	"github.com/smallbiznis/lexora/internal/config"
	"github.com/smallbiznis/lexora/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/lexora/internal/subscription/domain"
	"github.com/smallbiznis/lexora/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Node    *snowflake.Node
	Repo    subscriptiondomain.Repository
	Billing *config.BillingConfigHolder
	Clock   clock.Clock
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

type service struct {
	db      *gorm.DB
	node    *snowflake.Node
	repo    subscriptiondomain.Repository
	billing *config.BillingConfigHolder
	clock   clock.Clock
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &service{
		db:      p.DB,
		node:    p.Node,
		repo:    p.Repo,
		billing: p.Billing,
		clock:   p.Clock,
		log:     p.Log.Named("usage.service"),
		metrics: p.Metrics,
	}
}

func (s *service) RecordUsage(ctx context.Context, req domain.RecordUsageRequest) (*domain.Availability, error) {
	if req.Units <= 0 {
		return nil, domain.ErrInvalidUnits
	}

	retries := s.billing.Current().UsageDebitRetries
	for attempt := 0; attempt < retries; attempt++ {
		avail, err := s.tryRecordUsage(ctx, req)
		if err == domain.ErrConcurrentUpdate {
			continue
		}
		if err != nil {
			if err == domain.ErrInsufficientUnits {
				s.metrics.ObserveUsageDebit("insufficient")
			}
			return nil, err
		}
		s.metrics.ObserveUsageDebit("ok")
		return avail, nil
	}

	s.metrics.ObserveUsageDebit("conflict")
	s.log.Warn("usage debit lost every retry",
		zap.String("subscription_id", req.SubscriptionID.String()),
		zap.Int64("units", req.Units),
	)
	return nil, domain.ErrConcurrentUpdate
}

// GetAvailability never opens a period; a read against a rolled-over
// subscription reports the window the next debit would use.
func (s *service) GetAvailability(ctx context.Context, subscriptionID snowflake.ID) (*domain.Availability, error) {
	sub, err := s.loadActive(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	period, err := s.repo.FindCurrentPeriod(ctx, s.db, sub.ID, now)
	if err != nil {
		return nil, err
	}
	if period == nil {
		start, end := domain.NextPeriodBounds(sub.StartAt, sub.BillingInterval, now)
		period = &subscriptiondomain.UsagePeriod{
			SubscriptionID: sub.ID,
			PeriodStart:    start,
			PeriodEnd:      end,
			UnitsAllocated: sub.UnitsPerPeriod,
			UnitsRemaining: sub.UnitsPerPeriod,
		}
	}
	return availability(sub, period), nil
}

// tryRecordUsage makes one optimistic attempt. It reads the current balances,
// plans the split between promotional and period units, and applies both
// debits in one transaction guarded by compare-and-swap predicates. A lost
// race surfaces as ErrConcurrentUpdate so the caller can retry.
func (s *service) tryRecordUsage(ctx context.Context, req domain.RecordUsageRequest) (*domain.Availability, error) {
	sub, err := s.loadActive(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	period, err := s.ensureCurrentPeriod(ctx, sub)
	if err != nil {
		return nil, err
	}

	var promoUnits int64
	if req.UsePromotional && sub.PromotionalUnits > 0 {
		promoUnits = min64(req.Units, sub.PromotionalUnits)
	}
	periodUnits := req.Units - promoUnits

	if periodUnits > period.UnitsRemaining {
		return nil, domain.ErrInsufficientUnits
	}

	now := s.clock.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, err := s.repo.DebitPeriod(ctx, tx, subscriptiondomain.PeriodDebit{
			PeriodID:          period.ID,
			ExpectedUnitsUsed: period.UnitsUsed,
			Units:             periodUnits,
			PromoUnits:        promoUnits,
			Now:               now,
		})
		if err != nil {
			return err
		}
		if !applied {
			return domain.ErrConcurrentUpdate
		}
		if promoUnits > 0 {
			applied, err := s.repo.DebitPromotional(ctx, tx, subscriptiondomain.PromoDebit{
				SubscriptionID:  sub.ID,
				ExpectedBalance: sub.PromotionalUnits,
				Units:           promoUnits,
				Now:             now,
			})
			if err != nil {
				return err
			}
			if !applied {
				return domain.ErrConcurrentUpdate
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sub.PromotionalUnits -= promoUnits
	period.UnitsUsed += periodUnits
	period.UnitsRemaining -= periodUnits
	period.PromoUnitsUsed += promoUnits
	period.LastUpdated = now

	s.log.Info("usage recorded",
		zap.String("subscription_id", sub.ID.String()),
		zap.Int64("units", req.Units),
		zap.Int64("promotional_units", promoUnits),
		zap.Int64("units_remaining", period.UnitsRemaining),
	)
	return availability(sub, period), nil
}

func (s *service) loadActive(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	if sub.Status != subscriptiondomain.SubscriptionStatusActive {
		return nil, subscriptiondomain.ErrSubscriptionNotActive
	}
	return sub, nil
}

// ensureCurrentPeriod returns the period bracketing now, opening a fresh one
// aligned to the subscription anchor when none exists. The insert races with
// concurrent callers through the unique window index, so losers re-read.
func (s *service) ensureCurrentPeriod(ctx context.Context, sub *subscriptiondomain.Subscription) (*subscriptiondomain.UsagePeriod, error) {
	now := s.clock.Now().UTC()
	period, err := s.repo.FindCurrentPeriod(ctx, s.db, sub.ID, now)
	if err != nil {
		return nil, err
	}
	if period != nil {
		return period, nil
	}

	start, end := domain.NextPeriodBounds(sub.StartAt, sub.BillingInterval, now)
	fresh := &subscriptiondomain.UsagePeriod{
		ID:             s.node.Generate(),
		SubscriptionID: sub.ID,
		PeriodStart:    start,
		PeriodEnd:      end,
		UnitsAllocated: sub.UnitsPerPeriod,
		UnitsRemaining: sub.UnitsPerPeriod,
		LastUpdated:    now,
	}
	inserted, err := s.repo.InsertPeriod(ctx, s.db, fresh)
	if err != nil {
		return nil, err
	}
	if inserted {
		s.log.Info("usage period opened",
			zap.String("subscription_id", sub.ID.String()),
			zap.Time("period_start", start),
			zap.Time("period_end", end),
		)
		return fresh, nil
	}

	period, err = s.repo.FindCurrentPeriod(ctx, s.db, sub.ID, now)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, domain.ErrConcurrentUpdate
	}
	return period, nil
}

func availability(sub *subscriptiondomain.Subscription, period *subscriptiondomain.UsagePeriod) *domain.Availability {
	return &domain.Availability{
		SubscriptionID:       sub.ID,
		PeriodStart:          period.PeriodStart,
		PeriodEnd:            period.PeriodEnd,
		UnitsAllocated:       period.UnitsAllocated,
		UnitsUsed:            period.UnitsUsed,
		UnitsRemaining:       period.UnitsRemaining,
		PromotionalRemaining: sub.PromotionalUnits,
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
