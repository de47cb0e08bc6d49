package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertEvent is the dedup gate. It reports false when the processor
	// event id was already recorded.
	InsertEvent(ctx context.Context, db *gorm.DB, event *WebhookEvent) (bool, error)
	RecordOutcome(ctx context.Context, db *gorm.DB, id snowflake.ID, outcome string, processedAt time.Time) error
	// FindStuckEvents returns events recorded before the cutoff that never
	// got an outcome, the manual-replay backlog.
	FindStuckEvents(ctx context.Context, db *gorm.DB, before time.Time) ([]WebhookEvent, error)

	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) (bool, error)
	FindPaymentByIntentID(ctx context.Context, db *gorm.DB, paymentIntentID string) (*Payment, error)

	InsertRefund(ctx context.Context, db *gorm.DB, refund *Refund) (bool, error)
	FindRefundByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*Refund, error)
	SumRefunds(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (int64, error)
	UpdatePaymentStatus(ctx context.Context, db *gorm.DB, paymentID snowflake.ID, status PaymentStatus, now time.Time) error
}
