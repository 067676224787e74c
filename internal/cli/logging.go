// Package cli holds small helpers shared by the command-line entry points.
package cli

import (
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"palantir/internal/config"
)

// ConfigSummaryLines renders a human-readable summary of the resolved
// configuration, one line per concern, for startup logging.
func ConfigSummaryLines(cfg *config.Config) []string {
	store := cfg.StoreSettings()
	ingestion := cfg.IngestionSettings()
	sim := cfg.SimulationSettings()

	lines := []string{
		fmt.Sprintf("env=%s config=%s", cfg.Env, cfg.MainPath()),
		fmt.Sprintf("store: path=%s", store.Path),
		fmt.Sprintf("ingestion: vs_currency=%s timeout=%ds base_url=%s",
			ingestion.VsCurrency, ingestion.TimeoutSeconds, orDefault(ingestion.BaseURL, "(default)")),
		fmt.Sprintf("simulation: horizon=%d replicas=%d workers=%d seed=%d traders=%d",
			sim.Horizon, sim.Replicas, sim.Workers, sim.Seed, sim.TraderCount),
		fmt.Sprintf("simulation: open_p=%.2f close_p=%.2f max_slippage=%.2f%%",
			sim.OpenProbability, sim.CloseProbability, sim.MaxSlippagePercent),
	}
	for _, c := range sim.Currencies {
		lines = append(lines, fmt.Sprintf("currency: symbol=%s coin_id=%s initial_vault=%.2f",
			c.Symbol, c.CoinID, c.InitialVault))
	}
	return lines
}

// LogConfigSummary writes ConfigSummaryLines through logx at info level.
func LogConfigSummary(cfg *config.Config) {
	for _, line := range ConfigSummaryLines(cfg) {
		logx.Info(line)
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
