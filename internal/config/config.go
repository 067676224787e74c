// Package config loads the engine's top-level YAML configuration and its
// hydratable sub-sections (store, ingestion, simulation).
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/stores/cache"

	cachekeys "palantir/internal/cache"
	"palantir/pkg/confkit"
)

// Config is the top-level, file-loaded configuration.
type Config struct {
	Env   string              `json:",default=dev"`
	Cache cache.CacheConf     `json:",optional"`
	TTL   cachekeys.TTLConfig `json:",optional"`

	Store      confkit.Section[StoreConfig]      `json:",optional"`
	Ingestion  confkit.Section[IngestionConfig]   `json:",optional"`
	Simulation confkit.Section[SimulationConfig] `json:",optional"`

	mainPath string
	baseDir  string
}

const defaultConfigRelativePath = "etc/palantir.yaml"

var configFileFlag = flag.String("f", defaultConfigRelativePath, "the config file")

func init() {
	confkit.LoadDotenvOnce()
}

// ConfigFile resolves the -f flag (or its default) to an absolute path by
// searching upward from the working directory and the executable's
// directory, falling back to the raw candidate if neither search finds it.
func ConfigFile() string {
	candidate := defaultConfigRelativePath
	if configFileFlag != nil {
		if trimmed := strings.TrimSpace(*configFileFlag); trimmed != "" {
			candidate = trimmed
		}
	}
	if resolved, ok := resolveConfigPath(candidate); ok {
		return resolved
	}
	return candidate
}

func resolveConfigPath(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	if filepath.IsAbs(path) {
		if fileExists(path) {
			return path, true
		}
		return "", false
	}

	startDirs := make([]string, 0, 2)
	if cwd, err := os.Getwd(); err == nil {
		startDirs = append(startDirs, cwd)
	}
	if exePath, err := os.Executable(); err == nil {
		startDirs = append(startDirs, filepath.Dir(exePath))
	}

	seen := make(map[string]struct{}, len(startDirs))
	for _, dir := range startDirs {
		dir = filepath.Clean(dir)
		if _, ok := seen[dir]; ok || dir == "" {
			continue
		}
		seen[dir] = struct{}{}
		if resolved, ok := searchUpwards(dir, path); ok {
			return resolved, true
		}
	}
	return "", false
}

func searchUpwards(start, rel string) (string, bool) {
	dir := filepath.Clean(start)
	for {
		candidate := filepath.Join(dir, rel)
		if fileExists(candidate) {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// MustLoad loads ConfigFile() and panics on error.
func MustLoad() *Config {
	cfg, err := Load(ConfigFile())
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads, validates, and hydrates the configuration at path.
func Load(path string) (*Config, error) {
	confkit.LoadDotenvOnce()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %s: %w", path, err)
	}

	var cfg Config
	if err := conf.Load(absPath, &cfg, conf.UseEnv()); err != nil {
		return nil, fmt.Errorf("load config %s: %w", absPath, err)
	}

	cfg.mainPath = absPath
	cfg.baseDir = filepath.Dir(absPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.hydrateSections(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the top-level fields only; section contents are
// validated by their own loaders during hydration.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "", "dev", "test", "prod":
		if strings.TrimSpace(c.Env) == "" {
			c.Env = "dev"
		}
	default:
		return errors.New("config: env must be one of dev|test|prod")
	}
	return nil
}

func (c *Config) hydrateSections() error {
	base := c.baseDir
	if err := c.Store.Hydrate(base, LoadStoreConfig); err != nil {
		return fmt.Errorf("load store config: %w", err)
	}
	if err := c.Ingestion.Hydrate(base, LoadIngestionConfig); err != nil {
		return fmt.Errorf("load ingestion config: %w", err)
	}
	if err := c.Simulation.Hydrate(base, LoadSimulationConfig); err != nil {
		return fmt.Errorf("load simulation config: %w", err)
	}
	return nil
}

// StoreSettings returns the hydrated store section or its defaults when
// no section file was configured.
func (c *Config) StoreSettings() StoreConfig {
	if c.Store.Value != nil {
		return *c.Store.Value
	}
	return DefaultStoreConfig()
}

// IngestionSettings returns the hydrated ingestion section or its
// defaults when no section file was configured.
func (c *Config) IngestionSettings() IngestionConfig {
	if c.Ingestion.Value != nil {
		return *c.Ingestion.Value
	}
	return DefaultIngestionConfig()
}

// SimulationSettings returns the hydrated simulation section or its
// defaults when no section file was configured.
func (c *Config) SimulationSettings() SimulationConfig {
	if c.Simulation.Value != nil {
		return *c.Simulation.Value
	}
	return DefaultSimulationConfig()
}

// TTLSet converts the loaded TTL config into durations.
func (c *Config) TTLSet() cachekeys.TTLSet {
	return cachekeys.NewTTLSet(c.TTL)
}

// MainPath returns the absolute path of the loaded main config file.
func (c *Config) MainPath() string { return c.mainPath }

// BaseDir returns the directory containing the loaded main config file.
func (c *Config) BaseDir() string { return c.baseDir }
