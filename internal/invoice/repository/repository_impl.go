package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexora/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO invoices (
			id, invoice_number, company_id, subscription_id, status,
			total_amount, tax_amount, amount_paid, currency, issued_at, due_at,
			paid_at, payment_intent_id, document_url, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (invoice_number) DO NOTHING`,
		invoice.ID,
		invoice.InvoiceNumber,
		invoice.CompanyID,
		invoice.SubscriptionID,
		invoice.Status,
		invoice.TotalAmount,
		invoice.TaxAmount,
		invoice.AmountPaid,
		invoice.Currency,
		invoice.IssuedAt,
		invoice.DueAt,
		invoice.PaidAt,
		invoice.PaymentIntentID,
		invoice.DocumentURL,
		invoice.Metadata,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) FindByNumber(ctx context.Context, db *gorm.DB, number string) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).Where("invoice_number = ?", number).First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) NextSequence(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(1) FROM invoices`).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, update domain.MarkPaidUpdate) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, payment_intent_id = ?, amount_paid = ?, paid_at = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		domain.InvoiceStatusPaid,
		update.PaymentIntentID,
		update.AmountPaid,
		update.PaidAt,
		update.PaidAt,
		update.InvoiceID,
		domain.InvoiceStatusSent,
		domain.InvoiceStatusOverdue,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkOverdue(ctx context.Context, db *gorm.DB, before time.Time, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, updated_at = ?
		 WHERE status = ? AND due_at < ?`,
		domain.InvoiceStatusOverdue,
		now,
		domain.InvoiceStatusSent,
		before,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) UpdateDocumentURL(ctx context.Context, db *gorm.DB, id snowflake.ID, url string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET document_url = ?, updated_at = ? WHERE id = ?`,
		url,
		now,
		id,
	).Error
}
