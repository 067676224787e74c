// Package runner executes N independent simulation replicas in parallel
// and collects their metric sets for Monte-Carlo aggregation.
package runner

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"palantir/pkg/metrics"
	"palantir/pkg/protocol"
)

// Simulation is the subset of simulation.Simulation's behavior the Runner
// depends on.
type Simulation interface {
	Run(ctx context.Context) (*metrics.Set, error)
}

// Factory builds one fully-independent simulation replica, including its
// own RNG seeding. Each call must produce fresh state — nothing returned
// by one call may be shared with another.
type Factory func() Simulation

// Runner builds and executes replicas concurrently, bounded by worker
// goroutines, and returns their metric sets in factory-call order.
type Runner struct {
	factory  Factory
	replicas int
	workers  int
}

// New returns a Runner that will build replicas replicas via factory.
// workers bounds the number executed concurrently; a non-positive value
// means unbounded.
func New(factory Factory, replicas, workers int) *Runner {
	return &Runner{factory: factory, replicas: replicas, workers: workers}
}

// Run builds and executes all replicas. Replica failures — a recovered
// protocol.InvariantViolation panic, or a propagated run error — are
// recorded per-replica only: one replica's failure never cancels or
// otherwise affects its siblings, matching the spec's "record the
// failure and continue other replicas" policy. Run returns every
// replica's metric set in factory-call order (a failed replica's slot is
// nil) plus the first error encountered, if any.
func (r *Runner) Run(ctx context.Context) ([]*metrics.Set, error) {
	results := make([]*metrics.Set, r.replicas)

	var g errgroup.Group
	if r.workers > 0 {
		g.SetLimit(r.workers)
	}

	for i := 0; i < r.replicas; i++ {
		i := i
		sim := r.factory()
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					iv, ok := rec.(*protocol.InvariantViolation)
					if !ok {
						panic(rec)
					}
					err = fmt.Errorf("replica %d: %w", i, iv)
				}
			}()
			set, runErr := sim.Run(ctx)
			if runErr != nil {
				return fmt.Errorf("replica %d: %w", i, runErr)
			}
			results[i] = set
			return nil
		})
	}

	return results, g.Wait()
}
