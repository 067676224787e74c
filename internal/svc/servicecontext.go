// Package svc wires loaded configuration into the concrete stores and
// clients the command-line entry points depend on.
package svc

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"path/filepath"
	"time"

	gocache "github.com/zeromicro/go-zero/core/stores/cache"

	"palantir/internal/config"
	"palantir/internal/persistence/quotestore"
	"palantir/pkg/clock"
	"palantir/pkg/ingestion/coingecko"
	"palantir/pkg/metrics"
	"palantir/pkg/oracle"
	"palantir/pkg/protocol"
	"palantir/pkg/runner"
	"palantir/pkg/simulation"
	"palantir/pkg/trader"
)

// ServiceContext holds the concrete dependencies shared by cmd/crawl and
// cmd/simulate, built once from a loaded Config.
type ServiceContext struct {
	Config    *config.Config
	Store     *quotestore.Store
	Ingestion *coingecko.Client
}

// New wires a ServiceContext from cfg. ctx bounds the store's schema
// migration only; it is not retained.
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	var rcache gocache.Cache
	if len(cfg.Cache) > 0 {
		c, err := gocache.NewCache(cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("svc: build cache: %w", err)
		}
		rcache = c
	}

	storeCfg := cfg.StoreSettings()
	path := storeCfg.Path
	if !filepath.IsAbs(path) {
		if resolved, err := config.ProjectPath(path); err == nil {
			path = resolved
		}
	}
	store, err := quotestore.Open(ctx, path, rcache, cfg.TTLSet())
	if err != nil {
		return nil, fmt.Errorf("svc: open quote store: %w", err)
	}

	ingestionCfg := cfg.IngestionSettings()
	var opts []coingecko.Option
	if ingestionCfg.BaseURL != "" {
		opts = append(opts, coingecko.WithBaseURL(ingestionCfg.BaseURL))
	}
	if ingestionCfg.TimeoutSeconds > 0 {
		opts = append(opts, coingecko.WithHTTPClient(&http.Client{
			Timeout: time.Duration(ingestionCfg.TimeoutSeconds) * time.Second,
		}))
	}
	client := coingecko.New(opts...)

	return &ServiceContext{Config: cfg, Store: store, Ingestion: client}, nil
}

// SimulationFactory builds a runner.Factory that produces independent
// simulation replicas seeded deterministically from the configured Seed,
// backed by price series read from the quote store. It fails fast if any
// configured currency's series is shorter than the configured horizon.
func (svc *ServiceContext) SimulationFactory(ctx context.Context) (runner.Factory, error) {
	sim := svc.Config.SimulationSettings()
	ingestion := svc.Config.IngestionSettings()

	quotes := make(map[oracle.Currency][]oracle.Price, len(sim.Currencies))
	vaults := make(map[protocol.Currency]float64, len(sim.Currencies))
	for _, c := range sim.Currencies {
		series, err := svc.Store.Series(ctx, c.CoinID, ingestion.VsCurrency)
		if err != nil {
			return nil, fmt.Errorf("svc: load series for %s: %w", c.Symbol, err)
		}
		if len(series) < sim.Horizon {
			return nil, fmt.Errorf("svc: insufficient history for %s: have %d, need %d (run crawl first)",
				c.Symbol, len(series), sim.Horizon)
		}
		quotes[c.Symbol] = series[:sim.Horizon]
		vaults[protocol.Currency(c.Symbol)] = c.InitialVault
	}

	insurancePool := make(map[protocol.Currency]float64, len(sim.InsuranceSeed))
	for currency, amount := range sim.InsuranceSeed {
		insurancePool[protocol.Currency(currency)] = amount
	}
	governancePool := make(map[protocol.Currency]float64, len(sim.Currencies))
	for _, c := range sim.Currencies {
		governancePool[protocol.Currency(c.Symbol)] = 0
	}

	strategies := buildStrategies(sim)

	replica := 0
	return func() runner.Simulation {
		seed := sim.Seed + int64(replica)
		replica++

		c := clock.New(sim.Horizon)
		o, err := oracle.New(c, quotes)
		if err != nil {
			panic(fmt.Errorf("svc: build oracle: %w", err))
		}

		set := metrics.NewSet()
		logger := metrics.NewLogger(c.Now, set)

		p := protocol.New(c.Now, oracleAdapter{o}, strategies, logger,
			cloneFloatMap(vaults), cloneFloatMap(insurancePool), cloneFloatMap(governancePool))

		traders := make([]simulation.Trader, 0, sim.TraderCount)
		for i := 0; i < sim.TraderCount; i++ {
			rng := rand.New(rand.NewSource(seed + int64(i) + 1))
			liquidity := make(map[protocol.Currency]float64, len(sim.Currencies))
			for _, cur := range sim.Currencies {
				liquidity[protocol.Currency(cur.Symbol)] = cur.InitialVault / float64(sim.TraderCount)
			}
			account := protocol.Account(fmt.Sprintf("trader-%d", i))
			traders = append(traders, trader.New(
				account, sim.OpenProbability, sim.CloseProbability, sim.MaxSlippagePercent,
				liquidity, collateralUSDFunc(o, sim), leverageFunc(rng),
				rng,
			))
		}

		return simulation.New(c, p, traders, logger)
	}, nil
}

// oracleAdapter exposes an *oracle.Oracle (keyed by plain strings) as a
// protocol.Oracle (keyed by protocol.Currency).
type oracleAdapter struct{ o *oracle.Oracle }

func (a oracleAdapter) CrossRate(src, dst protocol.Currency) (protocol.Price, error) {
	return a.o.CrossRate(string(src), string(dst))
}

func buildStrategies(sim config.SimulationConfig) protocol.Strategies {
	return protocol.Strategies{
		ApplySlippage: func(px protocol.Price) protocol.Price {
			return px * (1 - sim.SlippageAlpha)
		},
		CalculateFees: func(pos protocol.Position) float64 {
			return pos.Principal * sim.BaseFeePercent
		},
		CalculateInterestRate: func(src, dst protocol.Currency, collateral, principal float64) float64 {
			utilization := 0.0
			if collateral > 0 {
				utilization = principal / collateral
			}
			return sim.InterestRateBase + sim.InterestRateSlope*utilization
		},
		CalculateLiquidationFee: func(pos protocol.Position) float64 {
			return pos.Principal * sim.LiquidationFeePercent
		},
		SplitFees: func(fee float64) (governance, insurance float64) {
			governance = fee * sim.GovernanceFeeSplit
			insurance = fee - governance
			return governance, insurance
		},
	}
}

// collateralUSDFunc and leverageFunc translate the configured trader
// behavior into the closures trader.New expects; both are intentionally
// simple fixed distributions rather than configurable knobs, since the
// spec only calls for a stochastic opener, not a tunable one.
func collateralUSDFunc(o *oracle.Oracle, sim config.SimulationConfig) func(protocol.Currency) float64 {
	return func(protocol.Currency) float64 {
		if sim.TraderCount == 0 {
			return 0
		}
		total := 0.0
		for _, c := range sim.Currencies {
			total += c.InitialVault
		}
		return total / float64(sim.TraderCount) * 0.1
	}
}

func leverageFunc(rng *rand.Rand) func() float64 {
	return func() float64 {
		return 1 + rng.Float64()*4
	}
}

func cloneFloatMap[K comparable](m map[K]float64) map[K]float64 {
	out := make(map[K]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
