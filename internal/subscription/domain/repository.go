package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PeriodDebit is a compare-and-swap debit against a usage period. Expected*
// fields carry the snapshot read before the debit; the update only applies if
// the row still matches.
type PeriodDebit struct {
	PeriodID          snowflake.ID
	ExpectedUnitsUsed int64
	Units             int64
	PromoUnits        int64
	Now               time.Time
}

// PromoDebit is a compare-and-swap debit against a subscription's
// promotional balance.
type PromoDebit struct {
	SubscriptionID  snowflake.ID
	ExpectedBalance int64
	Units           int64
	Now             time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByCompanyID(ctx context.Context, db *gorm.DB, companyID string) (*Subscription, error)

	FindCurrentPeriod(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, at time.Time) (*UsagePeriod, error)
	FindLastPeriod(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*UsagePeriod, error)
	InsertPeriod(ctx context.Context, db *gorm.DB, period *UsagePeriod) (bool, error)

	DebitPeriod(ctx context.Context, db *gorm.DB, debit PeriodDebit) (bool, error)
	DebitPromotional(ctx context.Context, db *gorm.DB, debit PromoDebit) (bool, error)

	ExpireDue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}
