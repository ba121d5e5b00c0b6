/**
 * @description
 * Market engine state: one instance per binary-outcome question.
 * Owns the CPMM reserves, per-address share and deposit ledgers, fee accrual,
 * lifecycle status and the claim flags. All value movement goes through the
 * injected collateral ledger using the market's custody account; the engine
 * never self-seeds (the registry funds the custody account before trading).
 *
 * Concurrency: operations are serialized per market. The hazard is re-entrant
 * calls triggered by the collateral transfer itself, so every mutating entry
 * point takes a per-market guard that rejects nested calls with
 * REENTRANT_CALL until the outer call returns.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum/common
 * - internal/ledger (via the CollateralLedger interface)
 */

package engine

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Side identifies one of the two outcome positions.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Valid reports whether s is one of the two recognized sides.
func (s Side) Valid() bool { return s == SideYes || s == SideNo }

// ParseSide normalizes a user-supplied side string.
func ParseSide(raw string) (Side, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(SideYes):
		return SideYes, true
	case string(SideNo):
		return SideNo, true
	}
	return "", false
}

// Status is the market lifecycle state. Open is the only non-terminal state.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusResolved Status = "RESOLVED"
	StatusExpired  Status = "EXPIRED"
)

// CollateralLedger is the slice of the collateral token the engine needs:
// pull-then-push transfers against the market's custody account. Any returned
// error is treated as a hard transfer failure.
type CollateralLedger interface {
	TransferFrom(ctx context.Context, from, to common.Address, amount *big.Int) error
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
}

// Params configures a new market. The registry is responsible for transferring
// 2 x Seed collateral into Custody before the first trade.
type Params struct {
	ID       string
	Question string
	Host     common.Address
	Custody  common.Address
	Deadline time.Time
	FeeBps   int64
	Seed     *big.Int // initial liquidity per side; both pools start equal
	MinBet   *big.Int // protocol-wide trade floor

	// Clock defaults to time.Now. Injected for deadline tests.
	Clock func() time.Time
	// Sink receives observable events; nil drops them.
	Sink Sink
}

// Market is the per-question accounting and pricing engine.
type Market struct {
	mu   sync.Mutex
	busy bool

	id       string
	question string
	host     common.Address
	custody  common.Address
	deadline time.Time
	feeBps   int64
	minBet   *big.Int

	ledger CollateralLedger
	clock  func() time.Time
	sink   Sink

	yesPool *big.Int
	noPool  *big.Int

	yesShares      map[common.Address]*big.Int
	noShares       map[common.Address]*big.Int
	totalYesShares *big.Int
	totalNoShares  *big.Int

	deposited   map[common.Address]*big.Int
	accruedFees *big.Int
	held        *big.Int // collateral in custody, tracked deterministically

	status      Status
	resolvedYes bool
	resolvedPot *big.Int
	expiredAt   time.Time

	hasClaimed map[common.Address]bool
}

// New validates params and constructs an Open market with equal starting
// pools, so the initial price is exactly 0.5 on both sides.
func New(p Params, ledger CollateralLedger) (*Market, error) {
	if p.ID == "" {
		return nil, errf(KindInvalidParams, "market id is required")
	}
	if strings.TrimSpace(p.Question) == "" {
		return nil, errf(KindInvalidParams, "question is required")
	}
	if p.Host == (common.Address{}) {
		return nil, errf(KindInvalidParams, "host address is required")
	}
	if p.Custody == (common.Address{}) {
		return nil, errf(KindInvalidParams, "custody address is required")
	}
	if p.FeeBps < 0 || p.FeeBps >= feeDenominator {
		return nil, errf(KindInvalidParams, "fee %d bps out of range [0, %d)", p.FeeBps, feeDenominator)
	}
	if p.Seed == nil || p.Seed.Sign() <= 0 {
		return nil, errf(KindInvalidParams, "seed liquidity must be positive")
	}
	if p.MinBet == nil || p.MinBet.Sign() <= 0 {
		return nil, errf(KindInvalidParams, "min bet must be positive")
	}
	if ledger == nil {
		return nil, errf(KindInvalidParams, "collateral ledger is required")
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	if !p.Deadline.After(clock()) {
		return nil, errf(KindInvalidParams, "deadline must be in the future")
	}

	return &Market{
		id:             p.ID,
		question:       p.Question,
		host:           p.Host,
		custody:        p.Custody,
		deadline:       p.Deadline,
		feeBps:         p.FeeBps,
		minBet:         new(big.Int).Set(p.MinBet),
		ledger:         ledger,
		clock:          clock,
		sink:           p.Sink,
		yesPool:        new(big.Int).Set(p.Seed),
		noPool:         new(big.Int).Set(p.Seed),
		yesShares:      make(map[common.Address]*big.Int),
		noShares:       make(map[common.Address]*big.Int),
		totalYesShares: new(big.Int),
		totalNoShares:  new(big.Int),
		deposited:      make(map[common.Address]*big.Int),
		accruedFees:    new(big.Int),
		held:           new(big.Int).Mul(p.Seed, big.NewInt(2)),
		status:         StatusOpen,
		resolvedPot:    new(big.Int),
		hasClaimed:     make(map[common.Address]bool),
	}, nil
}

// acquire takes the re-entrancy guard. A call arriving while another call on
// this market is in flight (including one re-entered from a ledger callback)
// is rejected rather than queued.
func (m *Market) acquire() error {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return errf(KindReentrantCall, "market %s has a call in progress", m.id)
	}
	m.busy = true
	m.mu.Unlock()
	return nil
}

func (m *Market) release() {
	m.mu.Lock()
	m.busy = false
	m.mu.Unlock()
}

func (m *Market) emit(ev Event) {
	if m.sink != nil {
		m.sink(ev)
	}
}

// ID returns the market identifier.
func (m *Market) ID() string { return m.id }

// Question returns the market question text.
func (m *Market) Question() string { return m.question }

// Host returns the address with resolve and fee-withdrawal rights.
func (m *Market) Host() common.Address { return m.host }

// Custody returns the market's collateral account.
func (m *Market) Custody() common.Address { return m.custody }

// Deadline returns the trading/resolution cutoff.
func (m *Market) Deadline() time.Time { return m.deadline }

// FeeBps returns the per-trade fee rate in basis points.
func (m *Market) FeeBps() int64 { return m.feeBps }

// Status returns the current lifecycle state.
func (m *Market) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Price returns the 1e18-scaled price of a side. Queryable in every lifecycle
// state; terminal states report the last pool state.
func (m *Market) Price(side Side) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.priceLocked(side)
}

func (m *Market) priceLocked(side Side) *big.Int {
	if side == SideYes {
		return scaledPrice(m.noPool, m.yesPool, m.noPool)
	}
	return scaledPrice(m.yesPool, m.yesPool, m.noPool)
}

// SharesOf returns the caller's outstanding YES and NO share balances.
func (m *Market) SharesOf(addr common.Address) (yes, no *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyBalance(m.yesShares[addr]), copyBalance(m.noShares[addr])
}

// DepositOf returns the caller's net (post-fee) collateral contribution.
func (m *Market) DepositOf(addr common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyBalance(m.deposited[addr])
}

// HasClaimed reports whether addr has already been paid via either claim path.
func (m *Market) HasClaimed(addr common.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasClaimed[addr]
}

func copyBalance(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// Snapshot is a read-only copy of the externally observable market state.
type Snapshot struct {
	ID             string
	Question       string
	Host           common.Address
	Custody        common.Address
	Deadline       time.Time
	FeeBps         int64
	Status         Status
	YesPool        *big.Int
	NoPool         *big.Int
	TotalYesShares *big.Int
	TotalNoShares  *big.Int
	AccruedFees    *big.Int
	Held           *big.Int
	ResolvedYes    bool
	ResolvedPot    *big.Int
	YesPrice       *big.Int
	NoPrice        *big.Int
}

// Snapshot returns a consistent copy of the market state for journaling and
// API responses.
func (m *Market) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		ID:             m.id,
		Question:       m.question,
		Host:           m.host,
		Custody:        m.custody,
		Deadline:       m.deadline,
		FeeBps:         m.feeBps,
		Status:         m.status,
		YesPool:        new(big.Int).Set(m.yesPool),
		NoPool:         new(big.Int).Set(m.noPool),
		TotalYesShares: new(big.Int).Set(m.totalYesShares),
		TotalNoShares:  new(big.Int).Set(m.totalNoShares),
		AccruedFees:    new(big.Int).Set(m.accruedFees),
		Held:           new(big.Int).Set(m.held),
		ResolvedYes:    m.resolvedYes,
		ResolvedPot:    new(big.Int).Set(m.resolvedPot),
		YesPrice:       m.priceLocked(SideYes),
		NoPrice:        m.priceLocked(SideNo),
	}
}

// PriceFloat converts a 1e18-scaled price to a float for display payloads.
func PriceFloat(p *big.Int) float64 {
	if p == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(p), new(big.Float).SetInt(PriceScale)).Float64()
	return f
}
