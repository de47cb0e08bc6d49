package domain

import (
	"testing"
	"time"

	subscriptiondomain "github.com/smallbiznis/lexora/internal/subscription/domain"
)

func TestNextPeriodBoundsFirstWindow(t *testing.T) {
	anchor := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)

	start, end := NextPeriodBounds(anchor, subscriptiondomain.BillingIntervalMonthly, now)

	if !start.Equal(anchor) {
		t.Fatalf("expected start %v, got %v", anchor, start)
	}
	want := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	if !end.Equal(want) {
		t.Fatalf("expected end %v, got %v", want, end)
	}
}

func TestNextPeriodBoundsSkipsIdleWindows(t *testing.T) {
	anchor := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)

	start, end := NextPeriodBounds(anchor, subscriptiondomain.BillingIntervalMonthly, now)

	wantStart := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) || !end.Equal(wantEnd) {
		t.Fatalf("expected [%v, %v), got [%v, %v)", wantStart, wantEnd, start, end)
	}
}

func TestNextPeriodBoundsBoundaryInstant(t *testing.T) {
	anchor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	// An instant exactly on a boundary belongs to the window it opens.
	start, end := NextPeriodBounds(anchor, subscriptiondomain.BillingIntervalMonthly, now)

	if !start.Equal(now) {
		t.Fatalf("expected start %v, got %v", now, start)
	}
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !end.Equal(want) {
		t.Fatalf("expected end %v, got %v", want, end)
	}
}

func TestNextPeriodBoundsYearly(t *testing.T) {
	anchor := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	start, end := NextPeriodBounds(anchor, subscriptiondomain.BillingIntervalYearly, now)

	wantStart := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) || !end.Equal(wantEnd) {
		t.Fatalf("expected [%v, %v), got [%v, %v)", wantStart, wantEnd, start, end)
	}
}
