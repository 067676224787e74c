// Package trader implements the stochastic agent that drives position
// open/close decisions against a protocol.Protocol each tick.
package trader

import (
	"math/rand"

	"palantir/pkg/protocol"
)

// Trader holds per-agent balances and fixed Bernoulli probabilities for
// opening and closing positions.
type Trader struct {
	account          protocol.Account
	openProbability  float64
	closeProbability float64
	maxSlippage      float64

	liquidity map[protocol.Currency]float64

	calculateCollateralUSD func(protocol.Currency) float64
	calculateLeverage      func() float64

	rng *rand.Rand

	owned []protocol.PositionId
}

// New constructs a Trader. rng must be private to this trader's
// simulation replica — sharing a process-global source breaks
// multi-replica determinism.
func New(
	account protocol.Account,
	openProbability, closeProbability, maxSlippagePercent float64,
	liquidity map[protocol.Currency]float64,
	calculateCollateralUSD func(protocol.Currency) float64,
	calculateLeverage func() float64,
	rng *rand.Rand,
) *Trader {
	return &Trader{
		account:                account,
		openProbability:        openProbability,
		closeProbability:       closeProbability,
		maxSlippage:            maxSlippagePercent,
		liquidity:              liquidity,
		calculateCollateralUSD: calculateCollateralUSD,
		calculateLeverage:      calculateLeverage,
		rng:                    rng,
	}
}

// Account returns the trader's identifier.
func (t *Trader) Account() protocol.Account { return t.account }

// Liquidity returns the trader's current balance in currency.
func (t *Trader) Liquidity(currency protocol.Currency) float64 {
	return t.liquidity[currency]
}

// Trade runs one tick of the trader's decision process against p: a
// Bernoulli draw on whether to open a new position, followed by an
// independent Bernoulli draw per currently-owned active position on
// whether to close it.
func (t *Trader) Trade(p *protocol.Protocol) {
	t.maybeOpen(p)
	t.sweepCloses(p)
}

func (t *Trader) maybeOpen(p *protocol.Protocol) {
	if t.rng.Float64() >= t.openProbability {
		return
	}

	currencies := p.Currencies()
	if len(currencies) < 2 {
		return
	}

	src := currencies[t.rng.Intn(len(currencies))]
	others := make([]protocol.Currency, 0, len(currencies)-1)
	for _, c := range currencies {
		if c != src {
			others = append(others, c)
		}
	}
	dst := others[t.rng.Intn(len(others))]

	collateral := t.calculateCollateralUSD(src)
	principal := t.calculateLeverage() * collateral

	if t.liquidity[src] < collateral {
		return
	}

	id, ok := p.Open(t.account, src, dst, src, collateral, principal, t.maxSlippage)
	if !ok {
		return
	}
	t.liquidity[src] -= collateral
	t.owned = append(t.owned, id)
}

func (t *Trader) sweepCloses(p *protocol.Protocol) {
	remaining := t.owned[:0]
	for _, id := range t.owned {
		if !p.IsActive(id) {
			continue
		}
		if t.rng.Float64() >= t.closeProbability {
			remaining = append(remaining, id)
			continue
		}
		pos, _ := p.Position(id)
		pl := p.Close(id)
		t.liquidity[pos.OwedToken] += pl
	}
	t.owned = remaining
}
