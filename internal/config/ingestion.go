package config

import "palantir/pkg/confkit"

// IngestionConfig configures the CoinGecko crawler.
type IngestionConfig struct {
	// BaseURL overrides the CoinGecko API root, mainly for tests.
	BaseURL string `json:",optional"`
	// VsCurrency is the quote currency requested alongside each coin.
	VsCurrency string `json:",default=usd"`
	// TimeoutSeconds bounds each HTTP request to the API.
	TimeoutSeconds int `json:",default=30"`
}

// DefaultIngestionConfig returns the settings used when no Ingestion
// section is configured.
func DefaultIngestionConfig() IngestionConfig {
	return IngestionConfig{VsCurrency: "usd", TimeoutSeconds: 30}
}

// LoadIngestionConfig loads an IngestionConfig section file.
func LoadIngestionConfig(path string) (*IngestionConfig, error) {
	return confkit.LoadFile[IngestionConfig](path, true)
}
