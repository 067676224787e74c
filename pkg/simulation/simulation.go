// Package simulation drives one replica of the Monte-Carlo backtest: a
// Clock, a Protocol, and a roster of Traders advanced tick by tick until
// the clock exhausts its horizon.
package simulation

import (
	"context"

	"palantir/pkg/clock"
	"palantir/pkg/metrics"
	"palantir/pkg/protocol"
)

// Simulation owns one independent replica's full state. Nothing here is
// shared with any other Simulation instance.
type Simulation struct {
	clock    *clock.Clock
	protocol *protocol.Protocol
	traders  []Trader
	logger   *metrics.Logger
}

// Trader is the subset of trader.Trader's behavior a Simulation depends
// on, named here so this package accepts an interface rather than
// importing pkg/trader directly.
type Trader interface {
	Trade(p *protocol.Protocol)
}

// New constructs a Simulation over an already-wired clock, protocol, and
// trader roster. The logger must be the same one the protocol logs
// through, so snapshot samples land in the same Set as lifecycle events.
func New(c *clock.Clock, p *protocol.Protocol, traders []Trader, logger *metrics.Logger) *Simulation {
	return &Simulation{clock: c, protocol: p, traders: traders, logger: logger}
}

// Run executes ticks until the clock's horizon is exhausted, in the order
// the spec requires within each tick: every trader trades, then a
// liquidation sweep runs over a snapshot of the active position ids taken
// once the traders are done, then per-currency pool snapshots are logged. ctx is
// checked once per tick so a timeout imposed above the simulation core
// can still abort between ticks; the loop itself performs no blocking I/O.
func (s *Simulation) Run(ctx context.Context) (*metrics.Set, error) {
	for {
		if err := ctx.Err(); err != nil {
			return s.logger.Set(), err
		}

		for _, t := range s.traders {
			t.Trade(s.protocol)
		}

		for _, id := range s.protocol.ActivePositions() {
			if s.protocol.CanLiquidate(id) {
				s.protocol.Liquidate(id)
			}
		}

		for _, c := range s.protocol.Currencies() {
			s.logger.Log(metrics.InsurancePoolLiquidity(string(c)), s.protocol.InsurancePoolBalance(c))
			s.logger.Log(metrics.VaultLiquidity(string(c)), s.protocol.VaultBalance(c))
		}

		if !s.clock.Step() {
			break
		}
	}
	return s.logger.Set(), nil
}
