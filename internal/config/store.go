package config

import "palantir/pkg/confkit"

// StoreConfig configures the local quote store.
type StoreConfig struct {
	// Path is the SQLite database file. Relative paths are resolved
	// against the project root at startup.
	Path string `json:",default=./data/quotes.db"`
}

// DefaultStoreConfig returns the settings used when no Store section is
// configured.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{Path: "./data/quotes.db"}
}

// LoadStoreConfig loads a StoreConfig section file.
func LoadStoreConfig(path string) (*StoreConfig, error) {
	return confkit.LoadFile[StoreConfig](path, true)
}
