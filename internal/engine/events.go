/**
 * @description
 * Observable engine events for off-chain indexing and streaming.
 * Events are emitted after the corresponding state transition has been
 * committed; they are not required for engine correctness. MarketExpired is
 * emitted exactly once per market, on the lazy Open -> Expired transition.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum/common
 */

package engine

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Event is implemented by all engine event payloads.
type Event interface {
	EventType() string
	Market() string
}

// Sink receives engine events. A nil sink drops them.
type Sink func(Event)

type TradeExecuted struct {
	MarketID  string
	Trader    common.Address
	Side      Side
	AmountIn  *big.Int
	Fee       *big.Int
	SharesOut *big.Int
	YesPrice  *big.Int // 1e18-scaled
	NoPrice   *big.Int
	At        time.Time
}

func (e TradeExecuted) EventType() string { return "trade_executed" }
func (e TradeExecuted) Market() string    { return e.MarketID }

type MarketResolved struct {
	MarketID    string
	OutcomeYes  bool
	ResolvedPot *big.Int
	At          time.Time
}

func (e MarketResolved) EventType() string { return "market_resolved" }
func (e MarketResolved) Market() string    { return e.MarketID }

type MarketExpired struct {
	MarketID string
	At       time.Time
}

func (e MarketExpired) EventType() string { return "market_expired" }
func (e MarketExpired) Market() string    { return e.MarketID }

type RewardClaimed struct {
	MarketID string
	Claimant common.Address
	Amount   *big.Int
	At       time.Time
}

func (e RewardClaimed) EventType() string { return "reward_claimed" }
func (e RewardClaimed) Market() string    { return e.MarketID }

type RefundClaimed struct {
	MarketID string
	Claimant common.Address
	Amount   *big.Int
	At       time.Time
}

func (e RefundClaimed) EventType() string { return "refund_claimed" }
func (e RefundClaimed) Market() string    { return e.MarketID }

type FeesWithdrawn struct {
	MarketID string
	Host     common.Address
	Amount   *big.Int
	At       time.Time
}

func (e FeesWithdrawn) EventType() string { return "fees_withdrawn" }
func (e FeesWithdrawn) Market() string    { return e.MarketID }
