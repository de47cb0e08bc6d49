package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexora/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.WebhookEvent) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO webhook_events (id, event_id, event_type, payload, received_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (event_id) DO NOTHING`,
		event.ID,
		event.EventID,
		event.EventType,
		event.Payload,
		event.ReceivedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) RecordOutcome(ctx context.Context, db *gorm.DB, id snowflake.ID, outcome string, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE webhook_events SET outcome = ?, processed_at = ? WHERE id = ?`,
		outcome,
		processedAt,
		id,
	).Error
}

func (r *repo) FindStuckEvents(ctx context.Context, db *gorm.DB, before time.Time) ([]domain.WebhookEvent, error) {
	var events []domain.WebhookEvent
	err := db.WithContext(ctx).
		Where("outcome IS NULL AND received_at < ?", before).
		Order("received_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, payment_intent_id, invoice_id, company_id, amount, currency,
			status, paid_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (payment_intent_id) DO NOTHING`,
		payment.ID,
		payment.PaymentIntentID,
		payment.InvoiceID,
		payment.CompanyID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.PaidAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindPaymentByIntentID(ctx context.Context, db *gorm.DB, paymentIntentID string) (*domain.Payment, error) {
	var payment domain.Payment
	err := db.WithContext(ctx).
		Preload("Refunds").
		Where("payment_intent_id = ?", paymentIntentID).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repo) InsertRefund(ctx context.Context, db *gorm.DB, refund *domain.Refund) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_refunds (
			id, payment_id, refund_id, idempotency_key, amount, currency,
			status, reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		refund.ID,
		refund.PaymentID,
		refund.RefundID,
		refund.IdempotencyKey,
		refund.Amount,
		refund.Currency,
		refund.Status,
		refund.Reason,
		refund.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindRefundByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*domain.Refund, error) {
	var refund domain.Refund
	err := db.WithContext(ctx).Where("idempotency_key = ?", key).First(&refund).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

func (r *repo) SumRefunds(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw(`SELECT COALESCE(SUM(amount), 0) FROM payment_refunds WHERE payment_id = ?`, paymentID).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) UpdatePaymentStatus(ctx context.Context, db *gorm.DB, paymentID snowflake.ID, status domain.PaymentStatus, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payments SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		now,
		paymentID,
	).Error
}
