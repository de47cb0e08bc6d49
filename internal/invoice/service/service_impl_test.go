package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexora/internal/clock"
	"github.com/smallbiznis/lexora/internal/config"
	"github.com/smallbiznis/lexora/internal/invoice/domain"
	"github.com/smallbiznis/lexora/internal/invoice/repository"
	paymentdomain "github.com/smallbiznis/lexora/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/lexora/internal/payment/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type notifierStub struct {
	mu        sync.Mutex
	sent      int
	confirmed int
}

func (n *notifierStub) InvoiceSent(ctx context.Context, invoice *domain.Invoice) {
	n.mu.Lock()
	n.sent++
	n.mu.Unlock()
}

func (n *notifierStub) PaymentConfirmed(ctx context.Context, payment *paymentdomain.Payment, invoice *domain.Invoice) {
	n.mu.Lock()
	n.confirmed++
	n.mu.Unlock()
}

func TestCreateInvoice(t *testing.T) {
	svc, db, _, notifier := setupInvoiceService(t)

	invoice, err := svc.Create(context.Background(), domain.CreateInvoiceRequest{
		CompanyID:   "acme",
		TotalAmount: 25000,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if invoice.Status != domain.InvoiceStatusSent {
		t.Fatalf("expected sent, got %s", invoice.Status)
	}
	if invoice.InvoiceNumber != "INV-2026-000001" {
		t.Fatalf("expected INV-2026-000001, got %s", invoice.InvoiceNumber)
	}
	if !invoice.DueAt.Equal(invoice.IssuedAt.AddDate(0, 0, 14)) {
		t.Fatalf("expected due 14 days out, got %v", invoice.DueAt)
	}
	if notifier.sent != 1 {
		t.Fatalf("expected 1 sent notification, got %d", notifier.sent)
	}
	if count := countRows(t, db, "invoices"); count != 1 {
		t.Fatalf("expected 1 invoice, got %d", count)
	}
}

func TestReconcilePaymentLinkedInvoice(t *testing.T) {
	svc, db, node, notifier := setupInvoiceService(t)
	invoiceID := seedSentInvoice(t, db, node, "INV-2025-001", 10000)

	payment, err := svc.ReconcilePayment(context.Background(), &paymentdomain.PaymentEvent{
		EventID:         "evt_1",
		Type:            paymentdomain.EventTypePaymentSucceeded,
		PaymentIntentID: "pi_1",
		Amount:          10000,
		Currency:        "USD",
		CompanyID:       "acme",
		OccurredAt:      time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Invoice: &paymentdomain.LinkedInvoice{
			InvoiceID:     invoiceID,
			InvoiceNumber: "INV-2025-001",
		},
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if payment.Status != paymentdomain.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", payment.Status)
	}
	if payment.InvoiceID == nil || *payment.InvoiceID != invoiceID {
		t.Fatalf("expected payment linked to invoice %s", invoiceID)
	}

	invoice, err := svc.GetByID(context.Background(), invoiceID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if invoice.Status != domain.InvoiceStatusPaid {
		t.Fatalf("expected paid, got %s", invoice.Status)
	}
	if invoice.AmountPaid != 10000 {
		t.Fatalf("expected amount_paid 10000, got %d", invoice.AmountPaid)
	}
	if invoice.PaymentIntentID == nil || *invoice.PaymentIntentID != "pi_1" {
		t.Fatalf("expected payment intent recorded")
	}
	if count := countRows(t, db, "invoices"); count != 1 {
		t.Fatalf("expected exactly one invoice, got %d", count)
	}
	if notifier.confirmed != 1 {
		t.Fatalf("expected 1 confirmation, got %d", notifier.confirmed)
	}
}

func TestReconcilePaymentLegacyCreatesPaidInvoice(t *testing.T) {
	svc, db, _, _ := setupInvoiceService(t)

	payment, err := svc.ReconcilePayment(context.Background(), &paymentdomain.PaymentEvent{
		EventID:         "evt_legacy",
		PaymentIntentID: "pi_legacy",
		Amount:          5000,
		Currency:        "USD",
		CompanyID:       "acme",
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if payment.InvoiceID == nil {
		t.Fatal("expected synthesized invoice link")
	}

	invoice, err := svc.GetByID(context.Background(), *payment.InvoiceID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if invoice.Status != domain.InvoiceStatusPaid {
		t.Fatalf("expected synthesized invoice paid, got %s", invoice.Status)
	}
	if invoice.AmountPaid != 5000 || invoice.TotalAmount != 5000 {
		t.Fatalf("expected amounts 5000, got %d/%d", invoice.AmountPaid, invoice.TotalAmount)
	}
	if count := countRows(t, db, "invoices"); count != 1 {
		t.Fatalf("expected 1 invoice, got %d", count)
	}
}

func TestReconcilePaymentMissingInvoiceStillRecordsPayment(t *testing.T) {
	svc, db, node, _ := setupInvoiceService(t)

	payment, err := svc.ReconcilePayment(context.Background(), &paymentdomain.PaymentEvent{
		EventID:         "evt_gone",
		PaymentIntentID: "pi_gone",
		Amount:          7500,
		Currency:        "USD",
		Invoice: &paymentdomain.LinkedInvoice{
			InvoiceID: node.Generate(),
		},
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if payment.InvoiceID != nil {
		t.Fatal("expected no invoice link for a missing invoice")
	}
	if count := countRows(t, db, "invoices"); count != 0 {
		t.Fatalf("expected no invoice synthesized, got %d", count)
	}
	if count := countRows(t, db, "payments"); count != 1 {
		t.Fatalf("expected payment recorded, got %d", count)
	}
}

func TestMarkOverdueIdempotent(t *testing.T) {
	svc, db, node, _ := setupInvoiceService(t)
	seedSentInvoice(t, db, node, "INV-OLD", 1000)

	// Seeded due date is well past now plus the 24h grace.
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	count, err := svc.MarkOverdue(context.Background(), now)
	if err != nil {
		t.Fatalf("mark overdue: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 overdue, got %d", count)
	}

	count, err = svc.MarkOverdue(context.Background(), now)
	if err != nil {
		t.Fatalf("mark overdue again: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected second sweep to change nothing, got %d", count)
	}
}

func setupInvoiceService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node, *notifierStub) {
	t.Helper()

	node, err := snowflake.NewNode(4)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	prepareInvoiceSchema(t, db)

	notifier := &notifierStub{}
	svc := New(Params{
		DB:       db,
		Node:     node,
		Repo:     repository.Provide(),
		PayRepo:  paymentrepo.Provide(),
		Billing:  config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
		Clock:    clock.NewFakeClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)),
		Log:      zap.NewNop(),
		Notifier: notifier,
	})
	return svc, db, node, notifier
}

func prepareInvoiceSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	stmts := []string{
		`CREATE TABLE invoices (
			id BIGINT PRIMARY KEY,
			invoice_number TEXT NOT NULL,
			company_id TEXT NOT NULL,
			subscription_id BIGINT,
			status TEXT NOT NULL DEFAULT 'sent',
			total_amount BIGINT NOT NULL DEFAULT 0,
			tax_amount BIGINT NOT NULL DEFAULT 0,
			amount_paid BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'USD',
			issued_at DATETIME NOT NULL,
			due_at DATETIME NOT NULL,
			paid_at DATETIME,
			payment_intent_id TEXT,
			document_url TEXT,
			metadata JSON NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_invoices_number ON invoices (invoice_number)`,
		`CREATE TABLE payments (
			id BIGINT PRIMARY KEY,
			payment_intent_id TEXT NOT NULL,
			invoice_id BIGINT,
			company_id TEXT NOT NULL DEFAULT '',
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'completed',
			paid_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_payments_intent ON payments (payment_intent_id)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("prepare schema: %v", err)
		}
	}
}

func seedSentInvoice(t *testing.T, db *gorm.DB, node *snowflake.Node, number string, amount int64) snowflake.ID {
	t.Helper()
	id := node.Generate()
	issued := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if err := db.Exec(
		`INSERT INTO invoices (id, invoice_number, company_id, status, total_amount, currency, issued_at, due_at, metadata, created_at, updated_at)
		 VALUES (?, ?, 'acme', 'sent', ?, 'USD', ?, ?, '{}', ?, ?)`,
		id,
		number,
		amount,
		issued,
		issued.AddDate(0, 0, 14),
		issued,
		issued,
	).Error; err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
	return id
}

func countRows(t *testing.T, db *gorm.DB, table string) int {
	t.Helper()
	var count int
	if err := db.Raw(fmt.Sprintf(`SELECT COUNT(1) FROM %s`, table)).Scan(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}
