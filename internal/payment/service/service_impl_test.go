package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexora/internal/clock"
	"github.com/smallbiznis/lexora/internal/payment/domain"
	"github.com/smallbiznis/lexora/internal/payment/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestApplyRefundIdempotent(t *testing.T) {
	node := mustNode(t)
	svc, db := setupPaymentService(t, node)
	seedPayment(t, db, node, "pi_100", 10000)

	req := domain.ApplyRefundRequest{
		PaymentIntentID: "pi_100",
		RefundID:        "re_1",
		Amount:          500,
		Currency:        "USD",
		IdempotencyKey:  "RFD-1",
	}

	first, err := svc.ApplyRefund(context.Background(), req)
	if err != nil {
		t.Fatalf("apply first: %v", err)
	}
	if first.Status != domain.PaymentStatusPartiallyRefunded {
		t.Fatalf("expected partially_refunded, got %s", first.Status)
	}

	second, err := svc.ApplyRefund(context.Background(), req)
	if err != nil {
		t.Fatalf("apply second: %v", err)
	}
	if second.Status != domain.PaymentStatusPartiallyRefunded {
		t.Fatalf("expected partially_refunded after replay, got %s", second.Status)
	}

	if count := countRefunds(t, db, "RFD-1"); count != 1 {
		t.Fatalf("expected 1 refund entry, got %d", count)
	}
	if total := refundTotal(t, db); total != 500 {
		t.Fatalf("expected 500 refunded, got %d", total)
	}
}

func TestApplyRefundFullAmount(t *testing.T) {
	node := mustNode(t)
	svc, db := setupPaymentService(t, node)
	seedPayment(t, db, node, "pi_200", 10000)

	if _, err := svc.ApplyRefund(context.Background(), domain.ApplyRefundRequest{
		PaymentIntentID: "pi_200",
		RefundID:        "re_a",
		Amount:          4000,
		Currency:        "USD",
		IdempotencyKey:  "RFD-a",
	}); err != nil {
		t.Fatalf("apply partial: %v", err)
	}

	payment, err := svc.ApplyRefund(context.Background(), domain.ApplyRefundRequest{
		PaymentIntentID: "pi_200",
		RefundID:        "re_b",
		Amount:          6000,
		Currency:        "USD",
		IdempotencyKey:  "RFD-b",
	})
	if err != nil {
		t.Fatalf("apply remainder: %v", err)
	}
	if payment.Status != domain.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %s", payment.Status)
	}
	if payment.RefundedTotal() != 10000 {
		t.Fatalf("expected 10000 refunded, got %d", payment.RefundedTotal())
	}
}

func TestApplyRefundExceedsPayment(t *testing.T) {
	node := mustNode(t)
	svc, db := setupPaymentService(t, node)
	seedPayment(t, db, node, "pi_300", 1000)

	_, err := svc.ApplyRefund(context.Background(), domain.ApplyRefundRequest{
		PaymentIntentID: "pi_300",
		RefundID:        "re_x",
		Amount:          1500,
		Currency:        "USD",
		IdempotencyKey:  "RFD-x",
	})
	if err != domain.ErrRefundExceedsPayment {
		t.Fatalf("expected refund_exceeds_payment, got %v", err)
	}

	payment, err := svc.GetByIntentID(context.Background(), "pi_300")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if payment.Status != domain.PaymentStatusCompleted {
		t.Fatalf("expected status untouched, got %s", payment.Status)
	}
	if len(payment.Refunds) != 0 {
		t.Fatalf("expected no refunds, got %d", len(payment.Refunds))
	}
}

func TestApplyRefundPaymentNotFound(t *testing.T) {
	node := mustNode(t)
	svc, _ := setupPaymentService(t, node)

	_, err := svc.ApplyRefund(context.Background(), domain.ApplyRefundRequest{
		PaymentIntentID: "pi_missing",
		RefundID:        "re_1",
		Amount:          100,
		Currency:        "USD",
		IdempotencyKey:  "RFD-m",
	})
	if err != domain.ErrPaymentNotFound {
		t.Fatalf("expected payment_not_found, got %v", err)
	}
}

func TestApplyRefundValidation(t *testing.T) {
	node := mustNode(t)
	svc, _ := setupPaymentService(t, node)

	cases := []struct {
		name string
		req  domain.ApplyRefundRequest
		want error
	}{
		{"missing intent", domain.ApplyRefundRequest{RefundID: "re", Amount: 1, Currency: "USD", IdempotencyKey: "k"}, domain.ErrInvalidEvent},
		{"bad amount", domain.ApplyRefundRequest{PaymentIntentID: "pi", RefundID: "re", Amount: 0, Currency: "USD", IdempotencyKey: "k"}, domain.ErrInvalidAmount},
		{"missing currency", domain.ApplyRefundRequest{PaymentIntentID: "pi", RefundID: "re", Amount: 1, IdempotencyKey: "k"}, domain.ErrInvalidCurrency},
		{"missing key", domain.ApplyRefundRequest{PaymentIntentID: "pi", RefundID: "re", Amount: 1, Currency: "USD"}, domain.ErrInvalidIdempotency},
	}
	for _, tc := range cases {
		if _, err := svc.ApplyRefund(context.Background(), tc.req); err != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func setupPaymentService(t *testing.T, node *snowflake.Node) (domain.Service, *gorm.DB) {
	t.Helper()

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
	preparePaymentSchema(t, db)

	svc := New(Params{
		DB:    db,
		Node:  node,
		Repo:  repository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)),
		Log:   zap.NewNop(),
	})
	return svc, db
}

func preparePaymentSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.Exec(`CREATE TABLE payments (
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
	)`).Error; err != nil {
		t.Fatalf("create payments: %v", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX ux_payments_intent
		ON payments (payment_intent_id)`).Error; err != nil {
		t.Fatalf("create intent index: %v", err)
	}
	if err := db.Exec(`CREATE TABLE payment_refunds (
		id BIGINT PRIMARY KEY,
		payment_id BIGINT NOT NULL,
		refund_id TEXT NOT NULL,
		idempotency_key TEXT NOT NULL,
		amount BIGINT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'succeeded',
		reason TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create payment_refunds: %v", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX ux_payment_refunds_idempotency
		ON payment_refunds (idempotency_key)`).Error; err != nil {
		t.Fatalf("create idempotency index: %v", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX ux_payment_refunds_refund
		ON payment_refunds (payment_id, refund_id)`).Error; err != nil {
		t.Fatalf("create refund index: %v", err)
	}
}

func seedPayment(t *testing.T, db *gorm.DB, node *snowflake.Node, intentID string, amount int64) {
	t.Helper()
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if err := db.Exec(
		`INSERT INTO payments (id, payment_intent_id, amount, currency, status, paid_at, created_at, updated_at)
		 VALUES (?, ?, ?, 'USD', 'completed', ?, ?, ?)`,
		node.Generate(),
		intentID,
		amount,
		now,
		now,
		now,
	).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
}

func countRefunds(t *testing.T, db *gorm.DB, key string) int {
	t.Helper()
	var count int
	if err := db.Raw(`SELECT COUNT(1) FROM payment_refunds WHERE idempotency_key = ?`, key).Scan(&count).Error; err != nil {
		t.Fatalf("count refunds: %v", err)
	}
	return count
}

func refundTotal(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var total int64
	if err := db.Raw(`SELECT COALESCE(SUM(amount), 0) FROM payment_refunds`).Scan(&total).Error; err != nil {
		t.Fatalf("sum refunds: %v", err)
	}
	return total
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}
