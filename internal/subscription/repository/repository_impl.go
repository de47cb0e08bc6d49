package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexora/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sub *domain.Subscription) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			id, company_id, billing_unit, billing_interval, units_per_period,
			price_per_unit, promotional_units, discount_factor, total_price,
			currency, status, start_at, end_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_id) DO NOTHING`,
		sub.ID,
		sub.CompanyID,
		sub.BillingUnit,
		sub.BillingInterval,
		sub.UnitsPerPeriod,
		sub.PricePerUnit,
		sub.PromotionalUnits,
		sub.DiscountFactor,
		sub.TotalPrice,
		sub.Currency,
		sub.Status,
		sub.StartAt,
		sub.EndAt,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repo) FindByCompanyID(ctx context.Context, db *gorm.DB, companyID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).Where("company_id = ?", companyID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repo) FindCurrentPeriod(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, at time.Time) (*domain.UsagePeriod, error) {
	var period domain.UsagePeriod
	err := db.WithContext(ctx).
		Where("subscription_id = ? AND period_start <= ? AND period_end > ?", subscriptionID, at, at).
		Order("period_start DESC").
		First(&period).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &period, nil
}

func (r *repo) FindLastPeriod(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*domain.UsagePeriod, error) {
	var period domain.UsagePeriod
	err := db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("period_start DESC").
		First(&period).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &period, nil
}

func (r *repo) InsertPeriod(ctx context.Context, db *gorm.DB, period *domain.UsagePeriod) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO usage_periods (
			id, subscription_id, period_start, period_end, units_allocated,
			units_used, units_remaining, promo_units_used, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (subscription_id, period_start) DO NOTHING`,
		period.ID,
		period.SubscriptionID,
		period.PeriodStart,
		period.PeriodEnd,
		period.UnitsAllocated,
		period.UnitsUsed,
		period.UnitsRemaining,
		period.PromoUnitsUsed,
		period.LastUpdated,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DebitPeriod applies a CAS debit: the update only lands when units_used
// still matches the snapshot the caller computed against, so two concurrent
// debits cannot both spend the same remainder.
func (r *repo) DebitPeriod(ctx context.Context, db *gorm.DB, debit domain.PeriodDebit) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE usage_periods
		 SET units_used = units_used + ?,
		     units_remaining = units_remaining - ?,
		     promo_units_used = promo_units_used + ?,
		     last_updated = ?
		 WHERE id = ?
		   AND units_used = ?
		   AND units_remaining >= ?`,
		debit.Units,
		debit.Units,
		debit.PromoUnits,
		debit.Now,
		debit.PeriodID,
		debit.ExpectedUnitsUsed,
		debit.Units,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) DebitPromotional(ctx context.Context, db *gorm.DB, debit domain.PromoDebit) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET promotional_units = promotional_units - ?,
		     updated_at = ?
		 WHERE id = ?
		   AND promotional_units = ?
		   AND promotional_units >= ?`,
		debit.Units,
		debit.Now,
		debit.SubscriptionID,
		debit.ExpectedBalance,
		debit.Units,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ExpireDue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, updated_at = ?
		 WHERE status = ? AND end_at < ?`,
		domain.SubscriptionStatusExpired,
		now,
		domain.SubscriptionStatusActive,
		now,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
