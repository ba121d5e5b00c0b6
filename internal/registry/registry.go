/**
 * @description
 * Registry/factory for market engines.
 * Instantiates one engine per question, pulls 2 x seed collateral from the
 * creator into the market's custody account, and indexes instances for
 * discovery. The registry never reads or mutates pool state after
 * construction; all trading, resolution and claims go directly against the
 * engine. Each market's state record is fully isolated behind its own guard,
 * so a fault in one market cannot affect another's solvency.
 *
 * @dependencies
 * - internal/engine
 * - internal/ledger
 * - github.com/google/uuid
 * - github.com/ethereum/go-ethereum/crypto (custody address derivation)
 */

package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/vjbhandari61/prediction-market/internal/engine"
	"github.com/vjbhandari61/prediction-market/internal/ledger"
)

var (
	ErrMarketNotFound = errors.New("market not found")
	ErrUnauthorized   = errors.New("caller is not the registry admin")
)

// Limits are the protocol-wide bounds every new market is validated against.
type Limits struct {
	MinBet    *big.Int
	MaxFeeBps int64
	MinSeed   *big.Int
}

// CreateParams is the construction boundary from the spec: the creator becomes
// the market host.
type CreateParams struct {
	Question string
	Deadline time.Time
	FeeBps   int64
	Seed     *big.Int // initial liquidity per side
	Host     common.Address
}

type entry struct {
	market    *engine.Market
	createdAt time.Time
	delisted  bool
}

// Registry owns the market index.
type Registry struct {
	mu      sync.RWMutex
	markets map[uuid.UUID]*entry

	ledger ledger.Ledger
	limits Limits
	admin  common.Address
	sink   engine.Sink
	clock  func() time.Time
}

// New creates an empty registry. sink is attached to every market the registry
// creates; clock defaults to time.Now.
func New(l ledger.Ledger, limits Limits, admin common.Address, sink engine.Sink) *Registry {
	return &Registry{
		markets: make(map[uuid.UUID]*entry),
		ledger:  l,
		limits:  limits,
		admin:   admin,
		sink:    sink,
		clock:   time.Now,
	}
}

// SetClock overrides the registry clock; the same clock is injected into
// markets created afterwards. Test hook.
func (r *Registry) SetClock(clock func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = clock
}

// CustodyAddress derives the deterministic collateral account for a market ID.
func CustodyAddress(id uuid.UUID) common.Address {
	digest := crypto.Keccak256([]byte("market-custody:" + id.String()))
	return common.BytesToAddress(digest[12:])
}

// Create validates params, funds the new market's custody account with
// 2 x seed from the creator, and indexes the engine. The deposit is a direct
// creator-initiated transfer: custody is derived from the new market ID, so
// no allowance can exist before this call. A failed deposit aborts creation
// with nothing registered.
func (r *Registry) Create(ctx context.Context, creator common.Address, p CreateParams) (*engine.Market, error) {
	if creator == (common.Address{}) {
		return nil, fmt.Errorf("creator address is required")
	}
	if strings.TrimSpace(p.Question) == "" {
		return nil, fmt.Errorf("question is required")
	}
	if p.FeeBps < 0 || p.FeeBps > r.limits.MaxFeeBps {
		return nil, fmt.Errorf("fee %d bps exceeds maximum %d", p.FeeBps, r.limits.MaxFeeBps)
	}
	if p.Seed == nil || p.Seed.Cmp(r.limits.MinSeed) < 0 {
		return nil, fmt.Errorf("seed liquidity below minimum %s", r.limits.MinSeed)
	}

	host := p.Host
	if host == (common.Address{}) {
		host = creator
	}

	r.mu.Lock()
	clock := r.clock
	r.mu.Unlock()

	id := uuid.New()
	custody := CustodyAddress(id)

	m, err := engine.New(engine.Params{
		ID:       id.String(),
		Question: p.Question,
		Host:     host,
		Custody:  custody,
		Deadline: p.Deadline,
		FeeBps:   p.FeeBps,
		Seed:     p.Seed,
		MinBet:   r.limits.MinBet,
		Clock:    clock,
		Sink:     r.sink,
	}, r.ledger)
	if err != nil {
		return nil, err
	}

	// Seed both pools: the market assumes custody is funded before any trade.
	total := new(big.Int).Mul(p.Seed, big.NewInt(2))
	if err := r.ledger.Transfer(ctx, creator, custody, total); err != nil {
		return nil, fmt.Errorf("failed to deposit seed collateral: %w", err)
	}

	r.mu.Lock()
	r.markets[id] = &entry{market: m, createdAt: clock()}
	r.mu.Unlock()

	return m, nil
}

// Get returns a market by ID. Delisted markets remain reachable: terminal
// state is permanent and queryable indefinitely.
func (r *Registry) Get(id uuid.UUID) (*engine.Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.markets[id]
	if !ok {
		return nil, ErrMarketNotFound
	}
	return e.market, nil
}

// GetByString parses and looks up a market ID.
func (r *Registry) GetByString(id string) (*engine.Market, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrMarketNotFound
	}
	return r.Get(parsed)
}

// List returns all listed markets, newest first.
func (r *Registry) List() []*engine.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type item struct {
		m  *engine.Market
		at time.Time
	}
	items := make([]item, 0, len(r.markets))
	for _, e := range r.markets {
		if e.delisted {
			continue
		}
		items = append(items, item{m: e.market, at: e.createdAt})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].at.Equal(items[j].at) {
			return items[i].m.ID() < items[j].m.ID()
		}
		return items[i].at.After(items[j].at)
	})

	out := make([]*engine.Market, len(items))
	for i, it := range items {
		out[i] = it.m
	}
	return out
}

// Count returns the number of registered markets, delisted included.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}

// Delist hides a market from discovery listings without touching its state.
// Admin only.
func (r *Registry) Delist(caller common.Address, id uuid.UUID) error {
	if caller != r.admin {
		return ErrUnauthorized
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.markets[id]
	if !ok {
		return ErrMarketNotFound
	}
	e.delisted = true
	return nil
}

// Admin returns the registry's stored authority address.
func (r *Registry) Admin() common.Address { return r.admin }
