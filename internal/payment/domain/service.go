package domain

import (
	"context"
	"errors"
)

type ApplyRefundRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
	RefundID        string `json:"refund_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	IdempotencyKey  string `json:"idempotency_key"`
	Reason          string `json:"reason,omitempty"`
}

type Service interface {
	// ApplyRefund appends a refund to the payment ledger. A previously seen
	// idempotency key returns the existing payment unchanged.
	ApplyRefund(ctx context.Context, req ApplyRefundRequest) (*Payment, error)

	GetByIntentID(ctx context.Context, paymentIntentID string) (*Payment, error)
}

var (
	ErrInvalidSignature     = errors.New("invalid_signature")
	ErrInvalidPayload       = errors.New("invalid_payload")
	ErrInvalidEvent         = errors.New("invalid_event")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidCurrency      = errors.New("invalid_currency")
	ErrInvalidIdempotency   = errors.New("invalid_idempotency_key")
	ErrPaymentNotFound      = errors.New("payment_not_found")
	ErrRefundExceedsPayment = errors.New("refund_exceeds_payment")
)
