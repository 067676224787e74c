// Command simulate runs a Monte-Carlo backtest of the margin protocol
// across N independent replicas and prints aggregated metric timeseries.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/zeromicro/go-zero/core/logx"

	"palantir/internal/cli"
	"palantir/internal/config"
	"palantir/internal/svc"
	"palantir/pkg/metrics"
	"palantir/pkg/runner"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	flag.Parse()

	cfg, err := config.Load(config.ConfigFile())
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulate: load config: %v\n", err)
		os.Exit(1)
	}
	cli.LogConfigSummary(cfg)

	ctx := context.Background()
	sc, err := svc.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulate: %v\n", err)
		os.Exit(1)
	}

	factory, err := sc.SimulationFactory(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulate: %v\n", err)
		os.Exit(1)
	}

	sim := cfg.SimulationSettings()
	logx.Infof("simulate: running %d replicas over %d ticks", sim.Replicas, sim.Horizon)

	r := runner.New(factory, sim.Replicas, sim.Workers)
	results, err := r.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulate: %v\n", err)
	}

	failed := 0
	for _, set := range results {
		if set == nil {
			failed++
		}
	}
	if failed > 0 {
		fmt.Printf("simulate: %d/%d replicas failed (see error above)\n", failed, sim.Replicas)
	}

	printTimeseries := func(label string, metric metrics.Metric, agg metrics.Aggregator) {
		fmt.Printf("%s:\n", label)
		for i, set := range results {
			if set == nil {
				continue
			}
			series := set.Timeseries(metric, agg, sim.Horizon)
			fmt.Printf("  replica %d: final=%.4f avg=%.4f\n", i, series[len(series)-1], metrics.Avg(series))
		}
	}

	for _, c := range sim.Currencies {
		printTimeseries(fmt.Sprintf("vault liquidity (%s)", c.Symbol),
			metrics.VaultLiquidity(c.Symbol), metrics.Avg)
		printTimeseries(fmt.Sprintf("insurance pool (%s)", c.Symbol),
			metrics.InsurancePoolLiquidity(c.Symbol), metrics.Avg)
	}
	printTimeseries("positions opened", metrics.PositionOpened, metrics.Sum)
	printTimeseries("positions closed", metrics.PositionClosed, metrics.Sum)
	printTimeseries("trades failed", metrics.TradeFailed, metrics.Sum)

	if failed == sim.Replicas {
		os.Exit(1)
	}
}
