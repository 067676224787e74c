package simulation_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"palantir/pkg/clock"
	"palantir/pkg/metrics"
	"palantir/pkg/oracle"
	"palantir/pkg/protocol"
	"palantir/pkg/simulation"
	"palantir/pkg/trader"
)

type oracleAdapter struct{ o *oracle.Oracle }

func (a oracleAdapter) CrossRate(src, dst protocol.Currency) (protocol.Price, error) {
	return a.o.CrossRate(string(src), string(dst))
}

func zeroFeeStrategies() protocol.Strategies {
	return protocol.Strategies{
		ApplySlippage:           func(p protocol.Price) protocol.Price { return p },
		CalculateFees:           func(protocol.Position) float64 { return 0 },
		CalculateInterestRate:   func(src, dst protocol.Currency, collateral, principal float64) float64 { return 0 },
		CalculateLiquidationFee: func(protocol.Position) float64 { return 0 },
		SplitFees:               func(fee float64) (float64, float64) { return 0, 0 },
	}
}

func randomWalkSeries(rng *rand.Rand, start float64, horizon int) []float64 {
	out := make([]float64, horizon)
	out[0] = start
	for i := 1; i < horizon; i++ {
		out[i] = out[i-1] * (1 + (rng.Float64()-0.5)*0.05)
	}
	return out
}

func buildSimulation(seed int64, horizon int) *simulation.Simulation {
	rng := rand.New(rand.NewSource(seed))
	c := clock.New(horizon)
	o, err := oracle.New(c, map[oracle.Currency][]oracle.Price{
		"dai": randomWalkSeries(rng, 1.0, horizon),
		"eth": randomWalkSeries(rng, 4000.0, horizon),
	})
	if err != nil {
		panic(err)
	}
	logger := metrics.NewLogger(c.Now, nil)
	p := protocol.New(c.Now, oracleAdapter{o}, zeroFeeStrategies(), logger,
		map[protocol.Currency]float64{"dai": 750000, "eth": 300},
		map[protocol.Currency]float64{"dai": 1000},
		map[protocol.Currency]float64{"dai": 0},
	)

	traders := make([]simulation.Trader, 0, 5)
	for i := 0; i < 5; i++ {
		traders = append(traders, trader.New(
			protocol.Account("trader"), 0.6, 0.4, 10.0,
			map[protocol.Currency]float64{"dai": 5000, "eth": 0},
			func(protocol.Currency) float64 { return 100 },
			func() float64 { return 2 },
			rand.New(rand.NewSource(seed+int64(i)+1)),
		))
	}

	return simulation.New(c, p, traders, logger)
}

func TestRun_S6_TimeseriesAggregation(t *testing.T) {
	horizon := 20
	sim := buildSimulation(42, horizon)
	set, err := sim.Run(context.Background())
	assert.NoError(t, err)

	series := set.Timeseries(metrics.PositionOpened, metrics.Sum, horizon)
	total := 0.0
	for _, v := range series {
		total += v
	}

	k := 0.0
	for t := 0; t < horizon; t++ {
		k += metrics.Sum(set.Samples(metrics.PositionOpened, t))
	}
	assert.Equal(t, k, total)
}

func TestRun_DeterministicForSameSeed(t *testing.T) {
	horizon := 15
	setA, errA := buildSimulation(7, horizon).Run(context.Background())
	setB, errB := buildSimulation(7, horizon).Run(context.Background())
	assert.NoError(t, errA)
	assert.NoError(t, errB)

	for _, m := range []metrics.Metric{
		metrics.PositionOpened,
		metrics.PositionClosed,
		metrics.VaultLiquidity("dai"),
		metrics.InsurancePoolLiquidity("dai"),
	} {
		assert.Equal(t,
			setA.Timeseries(m, metrics.Sum, horizon),
			setB.Timeseries(m, metrics.Sum, horizon),
		)
	}
}

func TestRun_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim := buildSimulation(1, 10)
	_, err := sim.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
