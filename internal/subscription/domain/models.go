// Package domain contains persistence models for subscriptions and usage periods.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
)

// BillingUnit is the kind of unit the subscription meters.
type BillingUnit string

const (
	BillingUnitPage      BillingUnit = "page"
	BillingUnitWord      BillingUnit = "word"
	BillingUnitCharacter BillingUnit = "character"
)

// BillingInterval is the length of one usage period.
type BillingInterval string

const (
	BillingIntervalMonthly BillingInterval = "monthly"
	BillingIntervalYearly  BillingInterval = "yearly"
)

// Subscription captures a company's billing agreement. One per company,
// enforced by a unique index on company_id.
type Subscription struct {
	ID               snowflake.ID       `gorm:"primaryKey"`
	CompanyID        string             `gorm:"type:text;not null;uniqueIndex:ux_subscriptions_company"`
	BillingUnit      BillingUnit        `gorm:"type:text;not null"`
	BillingInterval  BillingInterval    `gorm:"type:text;not null;default:'monthly'"`
	UnitsPerPeriod   int64              `gorm:"not null"`
	PricePerUnit     int64              `gorm:"not null;default:0"`
	PromotionalUnits int64              `gorm:"not null;default:0"`
	DiscountFactor   float64            `gorm:"not null;default:0"`
	TotalPrice       int64              `gorm:"not null;default:0"`
	Currency         string             `gorm:"type:text;not null;default:'USD'"`
	Status           SubscriptionStatus `gorm:"type:text;not null;default:'active'"`
	StartAt          time.Time          `gorm:"not null"`
	EndAt            time.Time          `gorm:"not null"`
	CreatedAt        time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// UsagePeriod is a time-boxed allocation of billable units. UnitsRemaining is
// derived from allocated minus used but stored for audit.
type UsagePeriod struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	SubscriptionID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_usage_periods_window"`
	PeriodStart    time.Time    `gorm:"not null;uniqueIndex:ux_usage_periods_window"`
	PeriodEnd      time.Time    `gorm:"not null"`
	UnitsAllocated int64        `gorm:"not null"`
	UnitsUsed      int64        `gorm:"not null;default:0"`
	UnitsRemaining int64        `gorm:"not null"`
	PromoUnitsUsed int64        `gorm:"not null;default:0"`
	LastUpdated    time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (UsagePeriod) TableName() string { return "usage_periods" }

// Contains reports whether the period window brackets the given instant.
func (p UsagePeriod) Contains(at time.Time) bool {
	return !at.Before(p.PeriodStart) && at.Before(p.PeriodEnd)
}
