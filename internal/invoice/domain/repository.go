package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// MarkPaidUpdate is the atomic find-and-update applied when a payment
// event references an existing invoice.
type MarkPaidUpdate struct {
	InvoiceID       snowflake.ID
	PaymentIntentID string
	AmountPaid      int64
	PaidAt          time.Time
}

type Repository interface {
	// Insert reports false when the invoice number already exists.
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByNumber(ctx context.Context, db *gorm.DB, number string) (*Invoice, error)

	// NextSequence returns the next monotonic invoice sequence.
	NextSequence(ctx context.Context, db *gorm.DB) (int64, error)

	// MarkPaid applies the paid transition. Reports false when the invoice
	// is missing or already terminal.
	MarkPaid(ctx context.Context, db *gorm.DB, update MarkPaidUpdate) (bool, error)

	MarkOverdue(ctx context.Context, db *gorm.DB, before time.Time, now time.Time) (int64, error)
	UpdateDocumentURL(ctx context.Context, db *gorm.DB, id snowflake.ID, url string, now time.Time) error
}
