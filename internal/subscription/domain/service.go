package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateSubscriptionRequest struct {
	CompanyID        string          `json:"company_id"`
	BillingUnit      BillingUnit     `json:"billing_unit"`
	BillingInterval  BillingInterval `json:"billing_interval,omitempty"`
	UnitsPerPeriod   int64           `json:"units_per_period"`
	PricePerUnit     int64           `json:"price_per_unit,omitempty"`
	PromotionalUnits int64           `json:"promotional_units,omitempty"`
	DiscountFactor   float64         `json:"discount_factor,omitempty"`
	TotalPrice       int64           `json:"total_price,omitempty"`
	Currency         string          `json:"currency,omitempty"`
	StartAt          time.Time       `json:"start_at"`
	EndAt            time.Time       `json:"end_at"`
}

type Service interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Subscription, error)
	GetByCompanyID(ctx context.Context, companyID string) (*Subscription, error)

	// ExpireDue transitions active subscriptions past their end date to
	// expired and returns the number of rows changed. Idempotent.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

var (
	ErrInvalidCompany         = errors.New("invalid_company")
	ErrInvalidBillingUnit     = errors.New("invalid_billing_unit")
	ErrInvalidBillingInterval = errors.New("invalid_billing_interval")
	ErrInvalidUnitsPerPeriod  = errors.New("invalid_units_per_period")
	ErrInvalidPeriod          = errors.New("invalid_period")
	ErrCompanyExists          = errors.New("company_subscription_exists")
	ErrSubscriptionNotFound   = errors.New("subscription_not_found")
	ErrSubscriptionNotActive  = errors.New("subscription_not_active")
)
