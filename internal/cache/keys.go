// Package cache builds namespaced Redis keys and normalizes config TTLs
// into durations for the quote store's read-through cache.
package cache

import (
	"fmt"
	"strings"
	"time"
)

// Namespace is the Redis key prefix for this application.
const Namespace = "palantir"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLConfig is the raw seconds-based TTL configuration loaded from YAML.
type TTLConfig struct {
	Short  int `json:",default=10"`
	Medium int `json:",default=60"`
	Long   int `json:",default=300"`
}

// TTLSet normalises config TTLs (seconds) into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts a TTLConfig into a TTLSet.
func NewTTLSet(cfg TTLConfig) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// QuoteFilledKey caches whether (coin, horizon) already has enough
// persisted history, avoiding a COUNT(*) query on every engine startup.
func QuoteFilledKey(coin string, horizon int) string {
	return formatKey("quotes", "filled", coin, fmt.Sprintf("%d", horizon))
}
