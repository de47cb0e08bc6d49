package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexora/internal/clock"
	"github.com/smallbiznis/lexora/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Node  *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
	Log   *zap.Logger
}

type service struct {
	db    *gorm.DB
	node  *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
	log   *zap.Logger
}

func New(p Params) domain.Service {
	return &service{
		db:    p.DB,
		node:  p.Node,
		repo:  p.Repo,
		clock: p.Clock,
		log:   p.Log.Named("subscription.service"),
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateSubscriptionRequest) (*domain.Subscription, error) {
	if err := validateCreate(&req); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	sub := &domain.Subscription{
		ID:               s.node.Generate(),
		CompanyID:        req.CompanyID,
		BillingUnit:      req.BillingUnit,
		BillingInterval:  req.BillingInterval,
		UnitsPerPeriod:   req.UnitsPerPeriod,
		PricePerUnit:     req.PricePerUnit,
		PromotionalUnits: req.PromotionalUnits,
		DiscountFactor:   req.DiscountFactor,
		TotalPrice:       req.TotalPrice,
		Currency:         req.Currency,
		Status:           domain.SubscriptionStatusActive,
		StartAt:          req.StartAt.UTC(),
		EndAt:            req.EndAt.UTC(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	inserted, err := s.repo.Insert(ctx, s.db, sub)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, domain.ErrCompanyExists
	}

	s.log.Info("subscription created",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("company_id", sub.CompanyID),
		zap.String("billing_unit", string(sub.BillingUnit)),
		zap.Int64("units_per_period", sub.UnitsPerPeriod),
	)
	return sub, nil
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *service) GetByCompanyID(ctx context.Context, companyID string) (*domain.Subscription, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, domain.ErrInvalidCompany
	}
	sub, err := s.repo.FindByCompanyID(ctx, s.db, companyID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *service) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	count, err := s.repo.ExpireDue(ctx, s.db, now.UTC())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Info("subscriptions expired", zap.Int64("count", count))
	}
	return count, nil
}

func validateCreate(req *domain.CreateSubscriptionRequest) error {
	if strings.TrimSpace(req.CompanyID) == "" {
		return domain.ErrInvalidCompany
	}
	switch req.BillingUnit {
	case domain.BillingUnitPage, domain.BillingUnitWord, domain.BillingUnitCharacter:
	default:
		return domain.ErrInvalidBillingUnit
	}
	if req.BillingInterval == "" {
		req.BillingInterval = domain.BillingIntervalMonthly
	}
	switch req.BillingInterval {
	case domain.BillingIntervalMonthly, domain.BillingIntervalYearly:
	default:
		return domain.ErrInvalidBillingInterval
	}
	if req.UnitsPerPeriod <= 0 {
		return domain.ErrInvalidUnitsPerPeriod
	}
	if req.PromotionalUnits < 0 {
		return domain.ErrInvalidUnitsPerPeriod
	}
	if req.StartAt.IsZero() || req.EndAt.IsZero() || !req.EndAt.After(req.StartAt) {
		return domain.ErrInvalidPeriod
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}
	return nil
}
