package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig carries the reconciliation policy knobs that operators tune
// without redeploying: invoice numbering, due dates and sweep thresholds.
type BillingConfig struct {
	InvoiceNumberTemplate string `mapstructure:"invoiceNumberTemplate"`
	InvoiceDueDays        int    `mapstructure:"invoiceDueDays"`
	OverdueGraceHours     int    `mapstructure:"overdueGraceHours"`
	UsageDebitRetries     int    `mapstructure:"usageDebitRetries"`
	StuckEventMinutes     int    `mapstructure:"stuckEventMinutes"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		InvoiceNumberTemplate: "INV-{YYYY}-{SEQ6}",
		InvoiceDueDays:        14,
		OverdueGraceHours:     24,
		UsageDebitRetries:     3,
		StuckEventMinutes:     30,
	}
}

func (c BillingConfig) OverdueGrace() time.Duration {
	return time.Duration(c.OverdueGraceHours) * time.Hour
}

func (c BillingConfig) StuckEventThreshold() time.Duration {
	return time.Duration(c.StuckEventMinutes) * time.Minute
}

// BillingConfigHolder exposes the current billing policy and hot-reloads it
// when the config file changes on disk.
type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/lexora")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEXORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.invoiceNumberTemplate", defaults.InvoiceNumberTemplate)
	v.SetDefault("billing.invoiceDueDays", defaults.InvoiceDueDays)
	v.SetDefault("billing.overdueGraceHours", defaults.OverdueGraceHours)
	v.SetDefault("billing.usageDebitRetries", defaults.UsageDebitRetries)
	v.SetDefault("billing.stuckEventMinutes", defaults.StuckEventMinutes)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
	})

	return holder, nil
}

// NewStaticBillingConfigHolder wraps a fixed policy, bypassing file watching.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingConfigHolder) Current() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if strings.TrimSpace(cfg.InvoiceNumberTemplate) == "" {
		return errors.New("billing config: invoice number template is empty")
	}
	if cfg.InvoiceDueDays <= 0 {
		return errors.New("billing config: invoice due days must be positive")
	}
	if cfg.OverdueGraceHours < 0 {
		return errors.New("billing config: overdue grace hours must not be negative")
	}
	if cfg.UsageDebitRetries <= 0 {
		return errors.New("billing config: usage debit retries must be positive")
	}
	if cfg.StuckEventMinutes <= 0 {
		return errors.New("billing config: stuck event minutes must be positive")
	}
	return nil
}
