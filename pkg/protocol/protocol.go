// Package protocol implements the leveraged margin accounting engine: a
// position store plus vault, insurance-pool, and governance-pool ledgers,
// with open/close/liquidate operations and the liquidation predicate.
package protocol

import (
	"fmt"
	"sort"

	"github.com/bits-and-blooms/bitset"

	"palantir/pkg/metrics"
)

// Currency identifies a token tracked by the protocol's pools.
type Currency string

// Account identifies a trader.
type Account string

// PositionId is a dense, monotonically increasing identifier assigned at
// open time. Never reused.
type PositionId uint64

// Price is a spot price or exchange rate.
type Price = float64

// Position is an immutable record of a single leveraged position.
type Position struct {
	Owner           Account
	OwedToken       Currency
	HeldToken       Currency
	CollateralToken Currency
	Collateral      float64
	Principal       float64
	Allowance       float64
	InterestRate    float64
	CreatedAt       int
}

// Strategies bundles the five scalar-valued behaviors the protocol
// parameterizes over. Plain function fields are used instead of a
// single-method interface so the hot paths (swap, Close) pay no vtable
// dispatch cost.
type Strategies struct {
	ApplySlippage           func(Price) Price
	CalculateFees           func(Position) float64
	CalculateInterestRate   func(src, dst Currency, collateral, principal float64) float64
	CalculateLiquidationFee func(Position) float64
	SplitFees               func(fee float64) (governance, insurance float64)
}

// Oracle is the read-only price source the protocol needs: the current
// cross rate between two currencies at whatever tick the caller's clock
// is on. Accepting this narrow interface rather than *oracle.Oracle keeps
// the protocol package decoupled from how prices are stored.
type Oracle interface {
	CrossRate(src, dst Currency) (Price, error)
}

// InvariantViolation marks a fatal protocol defect: a non-positive swap, a
// double-close, or a liquidation attempted without the predicate holding.
// These represent implementation bugs, not ordinary runtime conditions,
// and are raised via panic so a Runner can recover them once per replica.
type InvariantViolation struct {
	Err error
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %v", e.Err)
}

func (e *InvariantViolation) Unwrap() error {
	return e.Err
}

func raise(format string, args ...any) {
	panic(&InvariantViolation{Err: fmt.Errorf(format, args...)})
}

// Protocol owns the position store and the three per-currency pools.
type Protocol struct {
	now        func() int
	oracle     Oracle
	strategies Strategies
	logger     *metrics.Logger

	positions []Position
	closed    *bitset.BitSet
	closedAt  map[PositionId]int

	// currencies is the vault key universe, fixed at construction and
	// sorted so that every rng-indexed decision over it (pkg/trader's
	// currency-pair choice) is stable across replicas sharing a seed.
	// Map iteration order is randomized per-run; never derive it live.
	currencies []Currency

	vaults         map[Currency]float64
	insurancePool  map[Currency]float64
	governancePool map[Currency]float64
}

// New constructs a Protocol. now reports the current tick (typically
// clock.Clock.Now); the caller retains no further access to the vaults,
// insurancePool, or governancePool maps after construction — the Protocol
// owns them exclusively from here on.
func New(now func() int, oracle Oracle, strategies Strategies, logger *metrics.Logger, vaults, insurancePool, governancePool map[Currency]float64) *Protocol {
	currencies := make([]Currency, 0, len(vaults))
	for c := range vaults {
		currencies = append(currencies, c)
	}
	sort.Slice(currencies, func(i, j int) bool { return currencies[i] < currencies[j] })

	return &Protocol{
		now:            now,
		oracle:         oracle,
		strategies:     strategies,
		logger:         logger,
		closed:         bitset.New(0),
		closedAt:       make(map[PositionId]int),
		currencies:     currencies,
		vaults:         vaults,
		insurancePool:  insurancePool,
		governancePool: governancePool,
	}
}

// Currencies returns the currency universe known to the vault ledger, in
// a fixed, deterministic order established at construction — the set
// over which per-currency snapshot metrics are logged each tick, and the
// order pkg/trader must index into for multi-replica determinism.
func (p *Protocol) Currencies() []Currency {
	out := make([]Currency, len(p.currencies))
	copy(out, p.currencies)
	return out
}

// VaultBalance returns the current vault balance for currency.
func (p *Protocol) VaultBalance(c Currency) float64 { return p.vaults[c] }

// InsurancePoolBalance returns the current insurance pool balance for currency.
func (p *Protocol) InsurancePoolBalance(c Currency) float64 { return p.insurancePool[c] }

// GovernancePoolBalance returns the current governance pool balance for currency.
func (p *Protocol) GovernancePoolBalance(c Currency) float64 { return p.governancePool[c] }

// swap prices amount of src in terms of dst: amount * apply_slippage(cross_rate(src, dst)).
// It is a pure price-book computation and never touches vault balances.
// Returns the swapped amount along with the realized (perturbed) rate and
// the unperturbed base rate, both needed by callers that must compare the
// two (the slippage gate in Open).
func (p *Protocol) swap(src, dst Currency, amount float64) (swapped, realized, base Price) {
	base, err := p.oracle.CrossRate(src, dst)
	if err != nil {
		raise("swap: cross rate %s/%s: %v", src, dst, err)
	}
	realized = p.strategies.ApplySlippage(base)
	return amount * realized, realized, base
}

// Open attempts to create a new leveraged position. It returns
// (0, false) on either of the two soft-failure paths named in the spec
// (insufficient vault liquidity, slippage gate violation); both are
// logged as metrics rather than returned as errors.
func (p *Protocol) Open(owner Account, srcToken, dstToken, collateralToken Currency, collateral, principal, maxSlippagePercent float64) (PositionId, bool) {
	allowance, realized, base := p.swap(srcToken, dstToken, principal)

	if p.vaults[srcToken] < principal {
		p.logger.LogDefault(metrics.TradeFailed)
		p.logger.LogDefault(metrics.InsufficientLiquidity)
		return 0, false
	}

	if (realized-base) > maxSlippagePercent*base/100 {
		p.logger.LogDefault(metrics.TradeFailed)
		p.logger.LogDefault(metrics.SlippageViolation)
		return 0, false
	}

	interestRate := p.strategies.CalculateInterestRate(srcToken, dstToken, collateral, principal)

	id := PositionId(len(p.positions))
	p.positions = append(p.positions, Position{
		Owner:           owner,
		OwedToken:       srcToken,
		HeldToken:       dstToken,
		CollateralToken: collateralToken,
		Collateral:      collateral,
		Principal:       principal,
		Allowance:       allowance,
		InterestRate:    interestRate,
		CreatedAt:       p.now(),
	})
	p.vaults[srcToken] -= principal
	p.logger.LogDefault(metrics.PositionOpened)
	return id, true
}

// Close settles an active position with no liquidation fee and returns
// the trader's signed P&L. Closing an unknown or already-closed position
// is an invariant violation.
func (p *Protocol) Close(id PositionId) float64 {
	return p.closeWithFee(id, 0)
}

// Liquidate forcibly closes a position that satisfies CanLiquidate,
// reducing the trader's proceeds by exactly a liquidation fee, and
// returns that fee. The Protocol credits the fee to the owed token's
// insurance pool; paying anything to a liquidator account is left to the
// caller (Simulation or Trader).
func (p *Protocol) Liquidate(id PositionId) float64 {
	if !p.CanLiquidate(id) {
		raise("liquidate: position %d does not satisfy the liquidation predicate", id)
	}
	pos := p.positions[id]
	lf := p.strategies.CalculateLiquidationFee(pos)
	p.closeWithFee(id, lf)
	return lf
}

func (p *Protocol) closeWithFee(id PositionId, liquidationFee float64) float64 {
	if !p.isActive(id) {
		raise("close: position %d is not active", id)
	}
	pos := p.positions[id]

	fees := p.strategies.CalculateFees(pos)
	govFee, insFee := p.strategies.SplitFees(fees)

	interest := pos.Principal * pos.InterestRate * float64(p.now()-pos.CreatedAt) / (365 * 24)

	amount, _, _ := p.swap(pos.HeldToken, pos.OwedToken, pos.Allowance)
	if amount <= 0 {
		raise("close: position %d produced non-positive swap output %v", id, amount)
	}

	totalLiquidity := amount + pos.Collateral

	lpAmount := min(pos.Principal, totalLiquidity)
	r := totalLiquidity - lpAmount

	insAmount := min(p.insurancePool[pos.OwedToken], pos.Principal-lpAmount)

	interestAmount := min(interest, r)
	r -= interestAmount

	insFeeAmount := min(insFee, r)
	r -= insFeeAmount

	govFeeAmount := min(govFee, r)
	r -= govFeeAmount

	// liquidationFee reduces the trader's proceeds by exactly itself,
	// outside the r-based settlement ladder above: CanLiquidate only
	// holds once a position is deep in loss, so by this point r is
	// already ~0 and could never absorb it. Credited to the insurance
	// pool alongside the regular insurance fee share.
	pl := r - pos.Collateral - liquidationFee

	p.vaults[pos.OwedToken] += lpAmount + insAmount + interestAmount
	p.insurancePool[pos.OwedToken] += insFeeAmount - insAmount + liquidationFee
	p.governancePool[pos.OwedToken] += govFeeAmount

	switch {
	case insAmount > 0:
		p.logger.LogDefault(metrics.ClosedWithLPLoss)
	case pl < 0:
		p.logger.LogDefault(metrics.ClosedWithTraderLoss)
	default:
		p.logger.LogDefault(metrics.ClosedWithTraderProfit)
	}

	p.closed.Set(uint(id))
	p.closedAt[id] = p.now()
	p.logger.LogDefault(metrics.PositionClosed)

	return pl
}

// CanLiquidate reports whether the position is active and its
// mark-to-market owed shortfall exceeds 70% of collateral less fees.
func (p *Protocol) CanLiquidate(id PositionId) bool {
	if !p.isActive(id) {
		return false
	}
	pos := p.positions[id]
	amount, _, _ := p.swap(pos.HeldToken, pos.OwedToken, pos.Allowance)
	fees := p.strategies.CalculateFees(pos)
	return pos.Principal-amount > pos.Collateral-0.30*pos.Collateral-fees
}

// ActivePositions returns the ids of all positions not yet closed.
func (p *Protocol) ActivePositions() []PositionId {
	out := make([]PositionId, 0, len(p.positions))
	for i := range p.positions {
		id := PositionId(i)
		if !p.closed.Test(uint(id)) {
			out = append(out, id)
		}
	}
	return out
}

// Position returns the immutable record for id, active or closed.
func (p *Protocol) Position(id PositionId) (Position, bool) {
	if int(id) < 0 || int(id) >= len(p.positions) {
		return Position{}, false
	}
	return p.positions[id], true
}

// IsActive reports whether id names a currently-open position.
func (p *Protocol) IsActive(id PositionId) bool {
	return p.isActive(id)
}

// ClosedAt returns the tick at which id was closed, if it has been.
func (p *Protocol) ClosedAt(id PositionId) (int, bool) {
	t, ok := p.closedAt[id]
	return t, ok
}

func (p *Protocol) isActive(id PositionId) bool {
	if int(id) < 0 || int(id) >= len(p.positions) {
		return false
	}
	return !p.closed.Test(uint(id))
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
