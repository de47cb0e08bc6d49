package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexora/internal/clock"
	"github.com/smallbiznis/lexora/internal/config"
	"github.com/smallbiznis/lexora/internal/invoice/domain"
	"github.com/smallbiznis/lexora/internal/invoice/format"
	"github.com/smallbiznis/lexora/internal/notify"
	"github.com/smallbiznis/lexora/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/lexora/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// numberAttempts bounds retries when a generated invoice number collides.
const numberAttempts = 5

type Params struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Repo     domain.Repository
	PayRepo  paymentdomain.Repository
	Billing  *config.BillingConfigHolder
	Clock    clock.Clock
	Log      *zap.Logger
	Metrics  *metrics.Metrics `optional:"true"`
	Renderer domain.Renderer  `optional:"true"`
	Notifier notify.Notifier  `optional:"true"`
}

type service struct {
	db       *gorm.DB
	node     *snowflake.Node
	repo     domain.Repository
	payRepo  paymentdomain.Repository
	billing  *config.BillingConfigHolder
	clock    clock.Clock
	log      *zap.Logger
	metrics  *metrics.Metrics
	renderer domain.Renderer
	notifier notify.Notifier
}

func New(p Params) domain.Service {
	return &service{
		db:       p.DB,
		node:     p.Node,
		repo:     p.Repo,
		payRepo:  p.PayRepo,
		billing:  p.Billing,
		clock:    p.Clock,
		log:      p.Log.Named("invoice.service"),
		metrics:  p.Metrics,
		renderer: p.Renderer,
		notifier: p.Notifier,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (*domain.Invoice, error) {
	if strings.TrimSpace(req.CompanyID) == "" || req.TotalAmount <= 0 {
		return nil, domain.ErrInvalidInvoice
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	cfg := s.billing.Current()
	now := s.clock.Now().UTC()
	invoice := &domain.Invoice{
		ID:             s.node.Generate(),
		CompanyID:      req.CompanyID,
		SubscriptionID: req.SubscriptionID,
		Status:         domain.InvoiceStatusSent,
		TotalAmount:    req.TotalAmount,
		TaxAmount:      req.TaxAmount,
		Currency:       req.Currency,
		IssuedAt:       now,
		DueAt:          now.AddDate(0, 0, cfg.InvoiceDueDays),
		Metadata:       datatypes.JSON([]byte(`{}`)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.insertNumbered(ctx, invoice, cfg.InvoiceNumberTemplate); err != nil {
		return nil, err
	}

	s.renderDocument(ctx, invoice)
	if s.notifier != nil {
		s.notifier.InvoiceSent(ctx, invoice)
	}

	s.log.Info("invoice created",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("company_id", invoice.CompanyID),
		zap.Int64("total_amount", invoice.TotalAmount),
	)
	return invoice, nil
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *service) ReconcilePayment(ctx context.Context, event *paymentdomain.PaymentEvent) (*paymentdomain.Payment, error) {
	if event == nil || strings.TrimSpace(event.PaymentIntentID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	if event.Amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	if strings.TrimSpace(event.Currency) == "" {
		return nil, paymentdomain.ErrInvalidCurrency
	}

	now := s.clock.Now().UTC()
	paidAt := event.OccurredAt
	if paidAt.IsZero() {
		paidAt = now
	}

	var invoiceID *snowflake.ID
	if event.Invoice != nil {
		invoice, err := s.markLinkedPaid(ctx, event, paidAt)
		if err != nil {
			return nil, err
		}
		if invoice != nil {
			invoiceID = &invoice.ID
		}
	} else {
		invoice, err := s.synthesizePaid(ctx, event, paidAt)
		if err != nil {
			return nil, err
		}
		invoiceID = &invoice.ID
	}

	payment := &paymentdomain.Payment{
		ID:              s.node.Generate(),
		PaymentIntentID: event.PaymentIntentID,
		InvoiceID:       invoiceID,
		CompanyID:       event.CompanyID,
		Amount:          event.Amount,
		Currency:        event.Currency,
		Status:          paymentdomain.PaymentStatusCompleted,
		PaidAt:          paidAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	inserted, err := s.payRepo.InsertPayment(ctx, s.db, payment)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// The dedup gate upstream makes this rare: a different event id
		// carried the same payment intent.
		s.log.Warn("payment already recorded for intent",
			zap.String("payment_intent_id", event.PaymentIntentID),
		)
		return s.payRepo.FindPaymentByIntentID(ctx, s.db, event.PaymentIntentID)
	}

	if s.notifier != nil {
		var invoice *domain.Invoice
		if invoiceID != nil {
			invoice, _ = s.repo.FindByID(ctx, s.db, *invoiceID)
		}
		s.notifier.PaymentConfirmed(ctx, payment, invoice)
	}

	s.log.Info("payment reconciled",
		zap.String("payment_intent_id", event.PaymentIntentID),
		zap.Int64("amount", event.Amount),
		zap.Bool("linked_invoice", invoiceID != nil),
	)
	return payment, nil
}

func (s *service) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	cfg := s.billing.Current()
	before := now.UTC().Add(-cfg.OverdueGrace())
	count, err := s.repo.MarkOverdue(ctx, s.db, before, now.UTC())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.metrics.AddOverdueInvoices(count)
		s.log.Info("invoices marked overdue", zap.Int64("count", count))
	}
	return count, nil
}

// markLinkedPaid handles a payment that references a pre-created invoice. A
// missing invoice is logged and skipped; the payment is still recorded for
// manual reconciliation, never replaced with a fresh invoice.
func (s *service) markLinkedPaid(ctx context.Context, event *paymentdomain.PaymentEvent, paidAt time.Time) (*domain.Invoice, error) {
	updated, err := s.repo.MarkPaid(ctx, s.db, domain.MarkPaidUpdate{
		InvoiceID:       event.Invoice.InvoiceID,
		PaymentIntentID: event.PaymentIntentID,
		AmountPaid:      event.Amount,
		PaidAt:          paidAt,
	})
	if err != nil {
		return nil, err
	}

	invoice, err := s.repo.FindByID(ctx, s.db, event.Invoice.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		s.log.Warn("linked invoice missing, recording payment without it",
			zap.String("invoice_id", event.Invoice.InvoiceID.String()),
			zap.String("payment_intent_id", event.PaymentIntentID),
		)
		return nil, nil
	}
	if !updated {
		s.log.Info("linked invoice already settled",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.String("status", string(invoice.Status)),
		)
	}
	return invoice, nil
}

// synthesizePaid mints an invoice for a payment that never had one, the
// legacy out-of-band charge flow. It is born paid.
func (s *service) synthesizePaid(ctx context.Context, event *paymentdomain.PaymentEvent, paidAt time.Time) (*domain.Invoice, error) {
	cfg := s.billing.Current()
	now := s.clock.Now().UTC()
	intentID := event.PaymentIntentID
	invoice := &domain.Invoice{
		ID:              s.node.Generate(),
		CompanyID:       event.CompanyID,
		Status:          domain.InvoiceStatusPaid,
		TotalAmount:     event.Amount,
		AmountPaid:      event.Amount,
		Currency:        event.Currency,
		IssuedAt:        paidAt,
		DueAt:           paidAt,
		PaidAt:          &paidAt,
		PaymentIntentID: &intentID,
		Metadata:        datatypes.JSON([]byte(`{}`)),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.insertNumbered(ctx, invoice, cfg.InvoiceNumberTemplate); err != nil {
		return nil, err
	}
	s.renderDocument(ctx, invoice)
	return invoice, nil
}

// insertNumbered assigns a generated number and inserts, advancing the
// sequence on a unique collision.
func (s *service) insertNumbered(ctx context.Context, invoice *domain.Invoice, template string) error {
	seq, err := s.repo.NextSequence(ctx, s.db)
	if err != nil {
		return err
	}
	for attempt := 0; attempt < numberAttempts; attempt++ {
		number, err := format.InvoiceNumber(template, invoice.IssuedAt, seq+int64(attempt))
		if err != nil {
			return err
		}
		invoice.InvoiceNumber = number
		inserted, err := s.repo.Insert(ctx, s.db, invoice)
		if err != nil {
			return err
		}
		if inserted {
			return nil
		}
	}
	return domain.ErrNumberExhausted
}

func (s *service) renderDocument(ctx context.Context, invoice *domain.Invoice) {
	if s.renderer == nil {
		return
	}
	url, err := s.renderer.RenderInvoice(ctx, invoice)
	if err != nil {
		s.log.Warn("invoice document render failed",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Error(err),
		)
		return
	}
	now := s.clock.Now().UTC()
	if err := s.repo.UpdateDocumentURL(ctx, s.db, invoice.ID, url, now); err != nil {
		s.log.Warn("invoice document url update failed", zap.Error(err))
		return
	}
	invoice.DocumentURL = &url
}
