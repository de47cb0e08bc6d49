// Package domain holds payment ledger models and webhook event records.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentStatusCompleted         PaymentStatus = "completed"
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

// Payment is one record per successful charge, unique per processor
// payment intent.
type Payment struct {
	ID              snowflake.ID  `gorm:"primaryKey"`
	PaymentIntentID string        `gorm:"type:text;not null;uniqueIndex:ux_payments_intent"`
	InvoiceID       *snowflake.ID `gorm:"index"`
	CompanyID       string        `gorm:"type:text;not null;default:''"`
	Amount          int64         `gorm:"not null"`
	Currency        string        `gorm:"type:text;not null"`
	Status          PaymentStatus `gorm:"type:text;not null;default:'completed'"`
	PaidAt          time.Time     `gorm:"not null"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`

	Refunds []Refund `gorm:"foreignKey:PaymentID"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// RefundedTotal sums the loaded refund entries.
func (p Payment) RefundedTotal() int64 {
	var total int64
	for _, r := range p.Refunds {
		total += r.Amount
	}
	return total
}

// Refund is appended to a payment, never removed. The idempotency key is
// globally unique so a redelivered refund webhook lands as a no-op.
type Refund struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	PaymentID      snowflake.ID `gorm:"not null;index;uniqueIndex:ux_payment_refunds_refund"`
	RefundID       string       `gorm:"type:text;not null;uniqueIndex:ux_payment_refunds_refund"`
	IdempotencyKey string       `gorm:"type:text;not null;uniqueIndex:ux_payment_refunds_idempotency"`
	Amount         int64        `gorm:"not null"`
	Currency       string       `gorm:"type:text;not null"`
	Status         string       `gorm:"type:text;not null;default:'succeeded'"`
	Reason         string       `gorm:"type:text;not null;default:''"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Refund) TableName() string { return "payment_refunds" }

// Webhook event outcomes recorded after dispatch.
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeFailed    = "failed"
)

// WebhookEvent is the dedup and audit record for every inbound processor
// event. Inserted before side effects begin; only outcome and processed_at
// are ever updated.
type WebhookEvent struct {
	ID          snowflake.ID   `gorm:"primaryKey"`
	EventID     string         `gorm:"type:text;not null;uniqueIndex:ux_webhook_events_event"`
	EventType   string         `gorm:"type:text;not null"`
	Payload     datatypes.JSON `gorm:"not null"`
	ReceivedAt  time.Time      `gorm:"not null"`
	Outcome     *string        `gorm:"type:text"`
	ProcessedAt *time.Time
}

// TableName sets the database table name.
func (WebhookEvent) TableName() string { return "webhook_events" }

// Processor event types this engine acts on. Anything else is recorded
// and ignored.
const (
	EventTypePaymentSucceeded = "payment_intent.succeeded"
	EventTypeChargeRefunded   = "charge.refunded"
)

// LinkedInvoice carries the invoice reference minted before payment, read
// from processor metadata.
type LinkedInvoice struct {
	InvoiceID     snowflake.ID
	InvoiceNumber string
}

// PaymentEvent is a parsed payment_intent.succeeded event.
type PaymentEvent struct {
	EventID         string
	Type            string
	PaymentIntentID string
	Amount          int64
	Currency        string
	CompanyID       string
	OccurredAt      time.Time
	Invoice         *LinkedInvoice
	RawPayload      []byte
}

// RefundEvent is a parsed charge.refunded event.
type RefundEvent struct {
	EventID         string
	PaymentIntentID string
	RefundID        string
	Amount          int64
	Currency        string
	IdempotencyKey  string
	Reason          string
	OccurredAt      time.Time
}
