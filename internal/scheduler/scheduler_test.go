package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexora/internal/clock"
	appconfig "github.com/smallbiznis/lexora/internal/config"
	invoicedomain "github.com/smallbiznis/lexora/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/lexora/internal/payment/domain"
	"github.com/smallbiznis/lexora/internal/payment/webhook"
	subscriptionrepo "github.com/smallbiznis/lexora/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/lexora/internal/subscription/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type invoiceSvcStub struct {
	overdueCalls int
}

func (s *invoiceSvcStub) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (*invoicedomain.Invoice, error) {
	return nil, nil
}

func (s *invoiceSvcStub) GetByID(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	return nil, nil
}

func (s *invoiceSvcStub) ReconcilePayment(ctx context.Context, event *paymentdomain.PaymentEvent) (*paymentdomain.Payment, error) {
	return nil, nil
}

func (s *invoiceSvcStub) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	s.overdueCalls++
	return 0, nil
}

type ingestorStub struct {
	stuck []paymentdomain.WebhookEvent
}

func (s *ingestorStub) Ingest(ctx context.Context, payload []byte, sigHeader string) (*webhook.IngestResult, error) {
	return &webhook.IngestResult{Status: webhook.StatusProcessed}, nil
}

func (s *ingestorStub) StuckEvents(ctx context.Context, threshold time.Duration) ([]paymentdomain.WebhookEvent, error) {
	return s.stuck, nil
}

func TestRunOnceExpiresDueSubscriptionsOnce(t *testing.T) {
	node, db, fake := setupSchedulerDB(t)
	now := fake.Now()

	seedSubscriptionWithEnd(t, db, node, "past-a", now.Add(-time.Hour))
	seedSubscriptionWithEnd(t, db, node, "past-b", now.Add(-24*time.Hour))
	seedSubscriptionWithEnd(t, db, node, "future", now.Add(24*time.Hour))

	subSvc := subscriptionservice.New(subscriptionservice.Params{
		DB:    db,
		Node:  node,
		Repo:  subscriptionrepo.Provide(),
		Clock: fake,
		Log:   zap.NewNop(),
	})
	invoiceStub := &invoiceSvcStub{}
	sched, err := New(Params{
		Log:             zap.NewNop(),
		SubscriptionSvc: subSvc,
		InvoiceSvc:      invoiceStub,
		Ingestor:        &ingestorStub{},
		Billing:         appconfig.NewStaticBillingConfigHolder(appconfig.DefaultBillingConfig()),
		Clock:           fake,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	sched.RunOnce(context.Background())

	if count := countByStatus(t, db, "expired"); count != 2 {
		t.Fatalf("expected 2 expired, got %d", count)
	}
	if count := countByStatus(t, db, "active"); count != 1 {
		t.Fatalf("expected 1 active, got %d", count)
	}

	// A second sweep finds nothing left to expire.
	sched.RunOnce(context.Background())
	if count := countByStatus(t, db, "expired"); count != 2 {
		t.Fatalf("expected second sweep to expire nothing, got %d", count)
	}
	if invoiceStub.overdueCalls != 2 {
		t.Fatalf("expected overdue sweep each run, got %d", invoiceStub.overdueCalls)
	}
}

func setupSchedulerDB(t *testing.T) (*snowflake.Node, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	node, err := snowflake.NewNode(5)
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

	if err := db.Exec(`CREATE TABLE subscriptions (
		id BIGINT PRIMARY KEY,
		company_id TEXT NOT NULL,
		billing_unit TEXT NOT NULL,
		billing_interval TEXT NOT NULL DEFAULT 'monthly',
		units_per_period BIGINT NOT NULL,
		price_per_unit BIGINT NOT NULL DEFAULT 0,
		promotional_units BIGINT NOT NULL DEFAULT 0,
		discount_factor DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_price BIGINT NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'USD',
		status TEXT NOT NULL DEFAULT 'active',
		start_at DATETIME NOT NULL,
		end_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create subscriptions: %v", err)
	}

	return node, db, clock.NewFakeClock(time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC))
}

func seedSubscriptionWithEnd(t *testing.T, db *gorm.DB, node *snowflake.Node, companyID string, endAt time.Time) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO subscriptions (id, company_id, billing_unit, units_per_period, status, start_at, end_at, created_at, updated_at)
		 VALUES (?, ?, 'page', 1000, 'active', ?, ?, ?, ?)`,
		node.Generate(),
		companyID,
		endAt.AddDate(-1, 0, 0),
		endAt,
		endAt.AddDate(-1, 0, 0),
		endAt.AddDate(-1, 0, 0),
	).Error; err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
}

func countByStatus(t *testing.T, db *gorm.DB, status string) int {
	t.Helper()
	var count int
	if err := db.Raw(`SELECT COUNT(1) FROM subscriptions WHERE status = ?`, status).Scan(&count).Error; err != nil {
		t.Fatalf("count subscriptions: %v", err)
	}
	return count
}
