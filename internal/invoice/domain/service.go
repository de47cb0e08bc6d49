package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/lexora/internal/payment/domain"
)

type CreateInvoiceRequest struct {
	CompanyID      string        `json:"company_id"`
	SubscriptionID *snowflake.ID `json:"subscription_id,omitempty"`
	TotalAmount    int64         `json:"total_amount"`
	TaxAmount      int64         `json:"tax_amount,omitempty"`
	Currency       string        `json:"currency,omitempty"`
}

type Service interface {
	// Create mints a new invoice in status sent with a generated number,
	// renders the document and notifies the recipient best effort.
	Create(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error)

	GetByID(ctx context.Context, id snowflake.ID) (*Invoice, error)

	// ReconcilePayment aligns invoice and payment state for a successful
	// processor event. It either marks the linked invoice paid or, for
	// legacy flows without one, synthesizes a paid invoice, then records
	// the payment. Exactly one invoice ever exists per payment intent.
	ReconcilePayment(ctx context.Context, event *paymentdomain.PaymentEvent) (*paymentdomain.Payment, error)

	// MarkOverdue flips sent invoices past their due date plus grace to
	// overdue and returns the number changed. Idempotent.
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

// Renderer produces the stored document for an invoice.
type Renderer interface {
	RenderInvoice(ctx context.Context, invoice *Invoice) (string, error)
}
