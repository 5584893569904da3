package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MarketplaceFees holds the per-marketplace fee-ladder inputs that would
// otherwise be opaque "fee_drev"/"fee_mkt" constants, giving the ladder a
// concrete, operator-editable source.
type MarketplaceFees struct {
	ShippingEuros float64 `yaml:"shipping_euros"`
	VATPercent    float64 `yaml:"vat_percent"`
	FeeDrev       float64 `yaml:"fee_drev"`
	FeeMkt        float64 `yaml:"fee_mkt"`
	ItPrepDays    int     `yaml:"it_prep_days"`
	EuPrepDays    int     `yaml:"eu_prep_days"`
	IncludeEU     bool    `yaml:"include_eu"`
}

// FeeConfig is the full fee table, keyed by marketplace name
// ("amazon", "mediaworld", "eprice").
type FeeConfig struct {
	Marketplaces map[string]MarketplaceFees `yaml:"marketplaces"`
}

// LoadFeeConfig reads a YAML fee table from path.
func LoadFeeConfig(path string) (*FeeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pricing: read fee config: %w", err)
	}
	var cfg FeeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("pricing: parse fee config: %w", err)
	}
	return &cfg, nil
}

// For looks up fees for marketplace, returning an error if absent.
func (c *FeeConfig) For(marketplace string) (MarketplaceFees, error) {
	fees, ok := c.Marketplaces[marketplace]
	if !ok {
		return MarketplaceFees{}, fmt.Errorf("pricing: no fee config for marketplace %q", marketplace)
	}
	return fees, nil
}

// DefaultFeeConfig provides sensible built-in defaults so the pipeline can
// run without an external YAML file present (used by tests and as a
// fallback in cmd/orchestrator).
func DefaultFeeConfig() *FeeConfig {
	return &FeeConfig{
		Marketplaces: map[string]MarketplaceFees{
			"amazon": {
				ShippingEuros: 0,
				VATPercent:    22,
				FeeDrev:       1.0,
				FeeMkt:        1.15,
				ItPrepDays:    2,
				EuPrepDays:    5,
				IncludeEU:     true,
			},
			"mediaworld": {
				ShippingEuros: 0,
				VATPercent:    22,
				FeeDrev:       1.0,
				FeeMkt:        1.12,
				ItPrepDays:    3,
				EuPrepDays:    0,
				IncludeEU:     false,
			},
			"eprice": {
				ShippingEuros: 0,
				VATPercent:    22,
				FeeDrev:       1.0,
				FeeMkt:        1.10,
				ItPrepDays:    3,
				EuPrepDays:    0,
				IncludeEU:     false,
			},
		},
	}
}
