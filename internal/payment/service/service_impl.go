package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexora/internal/clock"
	"github.com/smallbiznis/lexora/internal/observability/metrics"
	"github.com/smallbiznis/lexora/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Node    *snowflake.Node
	Repo    domain.Repository
	Clock   clock.Clock
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

type service struct {
	db      *gorm.DB
	node    *snowflake.Node
	repo    domain.Repository
	clock   clock.Clock
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &service{
		db:      p.DB,
		node:    p.Node,
		repo:    p.Repo,
		clock:   p.Clock,
		log:     p.Log.Named("payment.service"),
		metrics: p.Metrics,
	}
}

func (s *service) ApplyRefund(ctx context.Context, req domain.ApplyRefundRequest) (*domain.Payment, error) {
	if err := validateRefund(req); err != nil {
		s.metrics.ObserveRefund("rejected")
		return nil, err
	}

	payment, err := s.repo.FindPaymentByIntentID(ctx, s.db, req.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		s.metrics.ObserveRefund("not_found")
		return nil, domain.ErrPaymentNotFound
	}

	existing, err := s.repo.FindRefundByIdempotencyKey(ctx, s.db, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.metrics.ObserveRefund("duplicate")
		s.log.Info("refund already applied",
			zap.String("payment_intent_id", req.PaymentIntentID),
			zap.String("idempotency_key", req.IdempotencyKey),
		)
		return payment, nil
	}

	if payment.RefundedTotal()+req.Amount > payment.Amount {
		s.metrics.ObserveRefund("rejected")
		return nil, domain.ErrRefundExceedsPayment
	}

	now := s.clock.Now().UTC()
	refund := &domain.Refund{
		ID:             s.node.Generate(),
		PaymentID:      payment.ID,
		RefundID:       req.RefundID,
		IdempotencyKey: req.IdempotencyKey,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Status:         "succeeded",
		Reason:         req.Reason,
		CreatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.InsertRefund(ctx, tx, refund)
		if err != nil {
			return err
		}
		if !inserted {
			// Lost a race with a redelivery carrying the same key.
			return nil
		}
		total, err := s.repo.SumRefunds(ctx, tx, payment.ID)
		if err != nil {
			return err
		}
		if total > payment.Amount {
			return domain.ErrRefundExceedsPayment
		}
		status := domain.PaymentStatusPartiallyRefunded
		if total == payment.Amount {
			status = domain.PaymentStatusRefunded
		}
		return s.repo.UpdatePaymentStatus(ctx, tx, payment.ID, status, now)
	})
	if err != nil {
		if err == domain.ErrRefundExceedsPayment {
			s.metrics.ObserveRefund("rejected")
		}
		return nil, err
	}

	s.metrics.ObserveRefund("applied")
	s.log.Info("refund applied",
		zap.String("payment_intent_id", req.PaymentIntentID),
		zap.String("refund_id", req.RefundID),
		zap.Int64("amount", req.Amount),
	)
	return s.repo.FindPaymentByIntentID(ctx, s.db, req.PaymentIntentID)
}

func (s *service) GetByIntentID(ctx context.Context, paymentIntentID string) (*domain.Payment, error) {
	if strings.TrimSpace(paymentIntentID) == "" {
		return nil, domain.ErrInvalidEvent
	}
	payment, err := s.repo.FindPaymentByIntentID(ctx, s.db, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.ErrPaymentNotFound
	}
	return payment, nil
}

func validateRefund(req domain.ApplyRefundRequest) error {
	if strings.TrimSpace(req.PaymentIntentID) == "" || strings.TrimSpace(req.RefundID) == "" {
		return domain.ErrInvalidEvent
	}
	if req.Amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if strings.TrimSpace(req.Currency) == "" {
		return domain.ErrInvalidCurrency
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return domain.ErrInvalidIdempotency
	}
	return nil
}
