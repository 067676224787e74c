package config

import "palantir/pkg/confkit"

// CurrencyConfig seeds one currency's vault balance and names the
// CoinGecko id its price series is ingested under.
type CurrencyConfig struct {
	Symbol       string  `json:""`
	CoinID       string  `json:",optional"`
	InitialVault float64 `json:",default=0"`
}

// SimulationConfig configures a Monte-Carlo backtest run.
type SimulationConfig struct {
	Horizon  int   `json:",default=720"`
	Replicas int   `json:",default=8"`
	Workers  int   `json:",default=4"`
	Seed     int64 `json:",default=1"`

	TraderCount        int     `json:",default=25"`
	OpenProbability    float64 `json:",default=0.1"`
	CloseProbability   float64 `json:",default=0.2"`
	MaxSlippagePercent float64 `json:",default=10"`

	SlippageAlpha         float64 `json:",default=0.001"`
	BaseFeePercent        float64 `json:",default=0.003"`
	LiquidationFeePercent float64 `json:",default=0.05"`
	GovernanceFeeSplit    float64 `json:",default=0.2"`
	InterestRateBase      float64 `json:",default=0.02"`
	InterestRateSlope     float64 `json:",default=0.1"`

	InsuranceSeed map[string]float64 `json:",optional"`
	Currencies    []CurrencyConfig   `json:",optional"`
}

// DefaultSimulationConfig returns a small two-currency backtest suitable
// for smoke-testing the engine without a config file.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Horizon:               720,
		Replicas:              8,
		Workers:               4,
		Seed:                  1,
		TraderCount:           25,
		OpenProbability:       0.1,
		CloseProbability:      0.2,
		MaxSlippagePercent:    10,
		SlippageAlpha:         0.001,
		BaseFeePercent:        0.003,
		LiquidationFeePercent: 0.05,
		GovernanceFeeSplit:    0.2,
		InterestRateBase:      0.02,
		InterestRateSlope:     0.1,
		InsuranceSeed: map[string]float64{
			"dai": 1000,
		},
		Currencies: []CurrencyConfig{
			{Symbol: "dai", CoinID: "dai", InitialVault: 750000},
			{Symbol: "eth", CoinID: "ethereum", InitialVault: 300},
		},
	}
}

// LoadSimulationConfig loads a SimulationConfig section file.
func LoadSimulationConfig(path string) (*SimulationConfig, error) {
	cfg, err := confkit.LoadFile[SimulationConfig](path, true)
	if err != nil {
		return nil, err
	}
	if len(cfg.Currencies) == 0 {
		defaults := DefaultSimulationConfig()
		cfg.Currencies = defaults.Currencies
	}
	return cfg, nil
}
