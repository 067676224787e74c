// Package oracle supplies per-tick prices for each currency tracked by a
// simulation, derived from pre-generated historical quote series.
package oracle

import (
	"errors"
	"fmt"

	"palantir/pkg/clock"
)

var (
	// ErrUnknownCurrency is returned when a currency has no registered
	// quote series.
	ErrUnknownCurrency = errors.New("oracle: unknown currency")
	// ErrOutOfRange is returned when the clock's current tick falls
	// outside a currency's quote series.
	ErrOutOfRange = errors.New("oracle: tick out of range")
	// ErrUnequalSeriesLength is returned at construction time when the
	// supplied quote series do not all share the same length.
	ErrUnequalSeriesLength = errors.New("oracle: quote series must share a common length")
)

// Oracle reads the current price of a currency off its quote series at the
// tick reported by the attached clock.
type Oracle struct {
	clock  *clock.Clock
	quotes map[Currency][]Price
}

// Currency identifies a token tracked by the oracle.
type Currency = string

// Price is a single quote value.
type Price = float64

// New builds an Oracle over the given quote series, all of which must share
// the same length; otherwise ErrUnequalSeriesLength is returned so the
// caller can fail fast at construction rather than mid-simulation.
func New(c *clock.Clock, quotes map[Currency][]Price) (*Oracle, error) {
	length := -1
	for _, series := range quotes {
		if length == -1 {
			length = len(series)
			continue
		}
		if len(series) != length {
			return nil, ErrUnequalSeriesLength
		}
	}
	return &Oracle{clock: c, quotes: quotes}, nil
}

// Price returns the current price of currency at the clock's tick.
func (o *Oracle) Price(currency Currency) (Price, error) {
	series, ok := o.quotes[currency]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, currency)
	}
	tick := o.clock.Now()
	if tick < 0 || tick >= len(series) {
		return 0, fmt.Errorf("%w: tick %d", ErrOutOfRange, tick)
	}
	return series[tick], nil
}

// CrossRate returns the price of src expressed in units of dst, i.e.
// price(src) / price(dst), at the clock's current tick.
func (o *Oracle) CrossRate(src, dst Currency) (Price, error) {
	srcPrice, err := o.Price(src)
	if err != nil {
		return 0, err
	}
	dstPrice, err := o.Price(dst)
	if err != nil {
		return 0, err
	}
	return srcPrice / dstPrice, nil
}
