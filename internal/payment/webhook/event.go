package webhook

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexora/internal/payment/domain"
)

type envelope struct {
	ID      string       `json:"id"`
	Type    string       `json:"type"`
	Created int64        `json:"created"`
	Data    envelopeData `json:"data"`
}

type envelopeData struct {
	Object json.RawMessage `json:"object"`
}

type paymentIntentObject struct {
	ID             string            `json:"id"`
	Amount         int64             `json:"amount"`
	AmountReceived int64             `json:"amount_received"`
	Currency       string            `json:"currency"`
	Created        int64             `json:"created"`
	Metadata       map[string]string `json:"metadata"`
}

type chargeObject struct {
	ID             string            `json:"id"`
	PaymentIntent  string            `json:"payment_intent"`
	Amount         int64             `json:"amount"`
	AmountRefunded int64             `json:"amount_refunded"`
	Currency       string            `json:"currency"`
	Created        int64             `json:"created"`
	Metadata       map[string]string `json:"metadata"`
	Refunds        refundList        `json:"refunds"`
}

type refundList struct {
	Data []refundObject `json:"data"`
}

type refundObject struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Reason   string `json:"reason"`
	Created  int64  `json:"created"`
}

func parseEnvelope(payload []byte) (*envelope, error) {
	var event envelope
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}
	event.Type = strings.TrimSpace(event.Type)
	return &event, nil
}

func parsePaymentEvent(event *envelope, payload []byte, now time.Time) (*domain.PaymentEvent, error) {
	var intent paymentIntentObject
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(intent.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	amount := intent.AmountReceived
	if amount <= 0 {
		amount = intent.Amount
	}
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(intent.Currency))
	if currency == "" {
		return nil, domain.ErrInvalidCurrency
	}

	return &domain.PaymentEvent{
		EventID:         event.ID,
		Type:            domain.EventTypePaymentSucceeded,
		PaymentIntentID: intent.ID,
		Amount:          amount,
		Currency:        currency,
		CompanyID:       strings.TrimSpace(intent.Metadata["company_id"]),
		OccurredAt:      timestamp(intent.Created, event.Created, now),
		Invoice:         parseLinkedInvoice(intent.Metadata),
		RawPayload:      payload,
	}, nil
}

func parseRefundEvents(event *envelope, now time.Time) ([]domain.RefundEvent, error) {
	var charge chargeObject
	if err := json.Unmarshal(event.Data.Object, &charge); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	intentID := strings.TrimSpace(charge.PaymentIntent)
	if intentID == "" {
		intentID = strings.TrimSpace(charge.ID)
	}
	if intentID == "" {
		return nil, domain.ErrInvalidEvent
	}

	refunds := make([]domain.RefundEvent, 0, len(charge.Refunds.Data))
	for _, r := range charge.Refunds.Data {
		id := strings.TrimSpace(r.ID)
		if id == "" || r.Amount <= 0 {
			continue
		}
		currency := strings.ToUpper(strings.TrimSpace(r.Currency))
		if currency == "" {
			currency = strings.ToUpper(strings.TrimSpace(charge.Currency))
		}
		refunds = append(refunds, domain.RefundEvent{
			EventID:         event.ID,
			PaymentIntentID: intentID,
			RefundID:        id,
			Amount:          r.Amount,
			Currency:        currency,
			IdempotencyKey:  id,
			Reason:          strings.TrimSpace(r.Reason),
			OccurredAt:      timestamp(r.Created, event.Created, now),
		})
	}
	if len(refunds) == 0 {
		// Some processors omit the refund list and only carry the total.
		if charge.AmountRefunded <= 0 {
			return nil, domain.ErrInvalidEvent
		}
		refunds = append(refunds, domain.RefundEvent{
			EventID:         event.ID,
			PaymentIntentID: intentID,
			RefundID:        event.ID,
			Amount:          charge.AmountRefunded,
			Currency:        strings.ToUpper(strings.TrimSpace(charge.Currency)),
			IdempotencyKey:  event.ID,
			OccurredAt:      timestamp(charge.Created, event.Created, now),
		})
	}
	return refunds, nil
}

// parseLinkedInvoice reads the invoice reference minted at payment-link time.
// Absence is the legacy flow, not an error. A present but corrupted id still
// marks the event as linked: the zero id resolves to no invoice downstream,
// so the payment lands without one instead of minting a duplicate.
func parseLinkedInvoice(metadata map[string]string) *domain.LinkedInvoice {
	rawID := strings.TrimSpace(metadata["invoice_id"])
	if rawID == "" {
		return nil
	}
	linked := &domain.LinkedInvoice{
		InvoiceNumber: strings.TrimSpace(metadata["invoice_number"]),
	}
	if invoiceID, err := snowflake.ParseString(rawID); err == nil {
		linked.InvoiceID = invoiceID
	}
	return linked
}

func timestamp(primary, fallback int64, now time.Time) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return now
	}
	return time.Unix(value, 0).UTC()
}
