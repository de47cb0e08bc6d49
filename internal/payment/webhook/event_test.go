package webhook

import (
	"testing"
	"time"
)

func TestParsePaymentEventTimestampFallback(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

	// No created field anywhere: the injected time wins.
	payload := []byte(`{
		"id": "evt_nots",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_nots", "amount": 100, "currency": "usd"}}
	}`)
	event, err := parseEnvelope(payload)
	if err != nil {
		t.Fatalf("parse envelope: %v", err)
	}
	parsed, err := parsePaymentEvent(event, payload, now)
	if err != nil {
		t.Fatalf("parse payment event: %v", err)
	}
	if !parsed.OccurredAt.Equal(now) {
		t.Fatalf("expected injected time %v, got %v", now, parsed.OccurredAt)
	}

	// An envelope timestamp still takes precedence over the injected time.
	payload = []byte(`{
		"id": "evt_ts",
		"type": "payment_intent.succeeded",
		"created": 1767225600,
		"data": {"object": {"id": "pi_ts", "amount": 100, "currency": "usd"}}
	}`)
	event, err = parseEnvelope(payload)
	if err != nil {
		t.Fatalf("parse envelope: %v", err)
	}
	parsed, err = parsePaymentEvent(event, payload, now)
	if err != nil {
		t.Fatalf("parse payment event: %v", err)
	}
	if want := time.Unix(1767225600, 0).UTC(); !parsed.OccurredAt.Equal(want) {
		t.Fatalf("expected envelope time %v, got %v", want, parsed.OccurredAt)
	}
}

func TestParseLinkedInvoiceCorruptedID(t *testing.T) {
	linked := parseLinkedInvoice(map[string]string{
		"invoice_id":     "corrupted-id",
		"invoice_number": "INV-2025-009",
	})
	if linked == nil {
		t.Fatal("expected linked event despite corrupted id")
	}
	if linked.InvoiceID != 0 {
		t.Fatalf("expected zero invoice id, got %v", linked.InvoiceID)
	}
	if linked.InvoiceNumber != "INV-2025-009" {
		t.Fatalf("expected invoice number carried, got %q", linked.InvoiceNumber)
	}

	if parseLinkedInvoice(map[string]string{}) != nil {
		t.Fatal("expected nil for absent invoice_id")
	}
}
