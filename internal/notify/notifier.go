// Package notify is the outbound notification seam. Delivery is fire and
// forget; a failed notification never rolls back ledger state.
package notify

import (
	"context"

	invoicedomain "github.com/smallbiznis/lexora/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/lexora/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Notifier interface {
	InvoiceSent(ctx context.Context, invoice *invoicedomain.Invoice)
	PaymentConfirmed(ctx context.Context, payment *paymentdomain.Payment, invoice *invoicedomain.Invoice)
}

type logNotifier struct {
	log *zap.Logger
}

// NewLogNotifier records notifications in the log stream. Stands in until a
// mail provider is wired.
func NewLogNotifier(log *zap.Logger) Notifier {
	return &logNotifier{log: log.Named("notify")}
}

func (n *logNotifier) InvoiceSent(ctx context.Context, invoice *invoicedomain.Invoice) {
	n.log.Info("invoice sent",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("company_id", invoice.CompanyID),
		zap.Int64("total_amount", invoice.TotalAmount),
	)
}

func (n *logNotifier) PaymentConfirmed(ctx context.Context, payment *paymentdomain.Payment, invoice *invoicedomain.Invoice) {
	fields := []zap.Field{
		zap.String("payment_intent_id", payment.PaymentIntentID),
		zap.Int64("amount", payment.Amount),
		zap.String("currency", payment.Currency),
	}
	if invoice != nil {
		fields = append(fields, zap.String("invoice_number", invoice.InvoiceNumber))
	}
	n.log.Info("payment confirmed", fields...)
}

var Module = fx.Module("notify",
	fx.Provide(NewLogNotifier),
)
