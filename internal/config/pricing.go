package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// SliceConfig is one price band as written in pricing.yml.
type SliceConfig struct {
	Name       string  `mapstructure:"name"`
	LowerIndex float64 `mapstructure:"lower_index"`
	UpperIndex float64 `mapstructure:"upper_index"`
	UnitPrice  float64 `mapstructure:"unit_price"`
}

// PricingConfig holds the two independent pricing catalogs keyed by customer segment.
// Slice order is significant.
type PricingConfig struct {
	Postpaid map[string][]SliceConfig `mapstructure:"postpaid"`
	Prepaid  map[string][]SliceConfig `mapstructure:"prepaid"`
}

const openEnded = 1e12

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		Postpaid: map[string][]SliceConfig{
			"domestic": {
				{Name: "social", LowerIndex: 0, UpperIndex: 110, UnitPrice: 79},
				{Name: "normal", LowerIndex: 110, UpperIndex: 400, UnitPrice: 99},
				{Name: "high", LowerIndex: 400, UpperIndex: openEnded, UnitPrice: 112},
			},
			"private_level1": {
				{Name: "base", LowerIndex: 0, UpperIndex: openEnded, UnitPrice: 118},
			},
			"private_level2": {
				{Name: "base", LowerIndex: 0, UpperIndex: openEnded, UnitPrice: 127},
			},
			"institution": {
				{Name: "base", LowerIndex: 0, UpperIndex: openEnded, UnitPrice: 109},
			},
			"administration": {
				{Name: "base", LowerIndex: 0, UpperIndex: openEnded, UnitPrice: 115},
			},
		},
		Prepaid: map[string][]SliceConfig{
			"domestic_level1": {
				{Name: "social", LowerIndex: 0, UpperIndex: 150, UnitPrice: 84},
				{Name: "normal", LowerIndex: 150, UpperIndex: openEnded, UnitPrice: 105},
			},
			"domestic_level2": {
				{Name: "base", LowerIndex: 0, UpperIndex: openEnded, UnitPrice: 112},
			},
			"institution_level1": {
				{Name: "base", LowerIndex: 0, UpperIndex: openEnded, UnitPrice: 110},
			},
			"institution_level2": {
				{Name: "base", LowerIndex: 0, UpperIndex: openEnded, UnitPrice: 121},
			},
		},
	}
}

// LoadPricing reads the pricing catalogs once at startup. An explicit
// PRICING_FILE must exist; otherwise pricing.yml is searched for and the
// built-in catalog is used when none is found.
func LoadPricing(appCfg Config) (PricingConfig, error) {
	v := viper.New()

	if appCfg.PricingFile != "" {
		if _, err := os.Stat(appCfg.PricingFile); err != nil {
			return PricingConfig{}, fmt.Errorf("read pricing config: %w", err)
		}
		v.SetConfigFile(appCfg.PricingFile)
	} else {
		v.SetConfigName("pricing")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/utilitybilling")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return PricingConfig{}, fmt.Errorf("read pricing config: %w", err)
		}
		return DefaultPricingConfig(), nil
	}

	var cfg PricingConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return PricingConfig{}, fmt.Errorf("decode pricing config: %w", err)
	}
	if err := ValidatePricingConfig(cfg); err != nil {
		return PricingConfig{}, err
	}
	return cfg, nil
}

func ValidatePricingConfig(cfg PricingConfig) error {
	if len(cfg.Postpaid) == 0 {
		return errors.New("pricing.postpaid cannot be empty")
	}
	if len(cfg.Prepaid) == 0 {
		return errors.New("pricing.prepaid cannot be empty")
	}
	for catalog, segments := range map[string]map[string][]SliceConfig{"postpaid": cfg.Postpaid, "prepaid": cfg.Prepaid} {
		for segment, slices := range segments {
			if strings.TrimSpace(segment) == "" {
				return fmt.Errorf("pricing.%s has an unnamed segment", catalog)
			}
			if len(slices) == 0 {
				return fmt.Errorf("pricing.%s.%s has no slices", catalog, segment)
			}
			for i, s := range slices {
				if s.LowerIndex < 0 || s.UpperIndex < s.LowerIndex {
					return fmt.Errorf("pricing.%s.%s[%d] has invalid bounds", catalog, segment, i)
				}
				if s.UnitPrice < 0 {
					return fmt.Errorf("pricing.%s.%s[%d] has a negative unit price", catalog, segment, i)
				}
			}
		}
	}
	return nil
}
