// Package domain holds the invoice ledger model and service contracts.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type InvoiceStatus string

const (
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Invoice is one billing document per cycle. The number is globally unique;
// paid is terminal for this engine, a refund never reverts it.
type Invoice struct {
	ID              snowflake.ID   `gorm:"primaryKey"`
	InvoiceNumber   string         `gorm:"type:text;not null;uniqueIndex:ux_invoices_number"`
	CompanyID       string         `gorm:"type:text;not null;index"`
	SubscriptionID  *snowflake.ID  `gorm:"index"`
	Status          InvoiceStatus  `gorm:"type:text;not null;default:'sent'"`
	TotalAmount     int64          `gorm:"not null;default:0"`
	TaxAmount       int64          `gorm:"not null;default:0"`
	AmountPaid      int64          `gorm:"not null;default:0"`
	Currency        string         `gorm:"type:text;not null;default:'USD'"`
	IssuedAt        time.Time      `gorm:"not null"`
	DueAt           time.Time      `gorm:"not null"`
	PaidAt          *time.Time
	PaymentIntentID *string        `gorm:"type:text"`
	DocumentURL     *string        `gorm:"type:text"`
	Metadata        datatypes.JSON `gorm:"not null;default:'{}'"`
	CreatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

var (
	ErrInvalidInvoice  = errors.New("invalid_invoice")
	ErrInvoiceNotFound = errors.New("invoice_not_found")
	ErrDuplicateNumber = errors.New("duplicate_invoice_number")
	ErrNumberExhausted = errors.New("invoice_number_exhausted")
)
