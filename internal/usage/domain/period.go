package domain

import (
	"time"

	subscriptiondomain "github.com/smallbiznis/lexora/internal/subscription/domain"
)

// NextPeriodBounds computes the window that brackets now, advancing whole
// intervals from the subscription start so period boundaries stay aligned to
// the anchor no matter how long the subscription sat idle.
func NextPeriodBounds(anchor time.Time, interval subscriptiondomain.BillingInterval, now time.Time) (time.Time, time.Time) {
	start := anchor.UTC()
	end := advance(start, interval)
	for !now.Before(end) {
		start = end
		end = advance(start, interval)
	}
	return start, end
}

func advance(from time.Time, interval subscriptiondomain.BillingInterval) time.Time {
	if interval == subscriptiondomain.BillingIntervalYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}
