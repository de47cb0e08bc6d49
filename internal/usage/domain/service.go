// Package domain defines the usage tracking contracts.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type RecordUsageRequest struct {
	SubscriptionID snowflake.ID `json:"subscription_id"`
	Units          int64        `json:"units"`
	UsePromotional bool         `json:"use_promotional,omitempty"`
}

// Availability is the balance snapshot returned after every read or debit.
type Availability struct {
	SubscriptionID       snowflake.ID `json:"subscription_id"`
	PeriodStart          time.Time    `json:"period_start"`
	PeriodEnd            time.Time    `json:"period_end"`
	UnitsAllocated       int64        `json:"units_allocated"`
	UnitsUsed            int64        `json:"units_used"`
	UnitsRemaining       int64        `json:"units_remaining"`
	PromotionalRemaining int64        `json:"promotional_remaining"`
}

type Service interface {
	// RecordUsage debits units from the current period, consuming
	// promotional units first when requested. Rejected debits leave all
	// balances untouched.
	RecordUsage(ctx context.Context, req RecordUsageRequest) (*Availability, error)

	// GetAvailability reports the balances of the current period, rolling
	// a new period over when the previous one has lapsed.
	GetAvailability(ctx context.Context, subscriptionID snowflake.ID) (*Availability, error)
}

var (
	ErrInvalidUnits      = errors.New("invalid_units")
	ErrInsufficientUnits = errors.New("insufficient_units")
	ErrConcurrentUpdate  = errors.New("concurrent_update")
)
