package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// BillingConfig carries the invoicing and dunning constants. It is injected
// into the builder and the dunning engine instead of living in package globals.
type BillingConfig struct {
	VATRate             decimal.Decimal
	MonthlyDeadlineDays int
	DunningMax          int
	PenaltyStep         decimal.Decimal
	// MaxDunningRank stops escalation once the last notice reaches this rank.
	// Zero disables the ceiling.
	MaxDunningRank  int
	PostpaidSegment string
	PrepaidSegment  string
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		VATRate:             decimal.RequireFromString("0.18"),
		MonthlyDeadlineDays: 30,
		DunningMax:          2,
		PenaltyStep:         decimal.RequireFromString("0.01"),
		MaxDunningRank:      12,
		PostpaidSegment:     "domestic",
		PrepaidSegment:      "domestic_level1",
	}
}

// LoadBilling reads BILLING_* overrides on top of the defaults.
func LoadBilling() (BillingConfig, error) {
	cfg := DefaultBillingConfig()

	var err error
	if cfg.VATRate, err = decimalOverride("BILLING_VAT_RATE", cfg.VATRate); err != nil {
		return BillingConfig{}, err
	}
	if cfg.PenaltyStep, err = decimalOverride("BILLING_PENALTY_STEP", cfg.PenaltyStep); err != nil {
		return BillingConfig{}, err
	}
	if cfg.MonthlyDeadlineDays, err = intOverride("BILLING_MONTHLY_DEADLINE_DAYS", cfg.MonthlyDeadlineDays); err != nil {
		return BillingConfig{}, err
	}
	if cfg.DunningMax, err = intOverride("BILLING_DUNNING_MAX", cfg.DunningMax); err != nil {
		return BillingConfig{}, err
	}
	if cfg.MaxDunningRank, err = intOverride("BILLING_MAX_DUNNING_RANK", cfg.MaxDunningRank); err != nil {
		return BillingConfig{}, err
	}
	cfg.PostpaidSegment = getenv("BILLING_POSTPAID_SEGMENT", cfg.PostpaidSegment)
	cfg.PrepaidSegment = getenv("BILLING_PREPAID_SEGMENT", cfg.PrepaidSegment)

	if err := validateBillingConfig(cfg); err != nil {
		return BillingConfig{}, err
	}
	return cfg, nil
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.VATRate.IsNegative() {
		return errors.New("billing.vatRate cannot be negative")
	}
	if cfg.PenaltyStep.IsNegative() {
		return errors.New("billing.penaltyStep cannot be negative")
	}
	if cfg.MonthlyDeadlineDays <= 0 {
		return errors.New("billing.monthlyDeadlineDays must be positive")
	}
	if cfg.DunningMax < 0 {
		return errors.New("billing.dunningMax cannot be negative")
	}
	if cfg.MaxDunningRank < 0 {
		return errors.New("billing.maxDunningRank cannot be negative")
	}
	if cfg.MaxDunningRank > 0 && cfg.MaxDunningRank <= cfg.DunningMax {
		return errors.New("billing.maxDunningRank must exceed dunningMax")
	}
	if strings.TrimSpace(cfg.PostpaidSegment) == "" || strings.TrimSpace(cfg.PrepaidSegment) == "" {
		return errors.New("billing segments cannot be empty")
	}
	return nil
}

func decimalOverride(key string, def decimal.Decimal) (decimal.Decimal, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func intOverride(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}
