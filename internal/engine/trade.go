/**
 * @description
 * Trade execution and side-effect-free quoting.
 * Buy converts incoming collateral into position shares via the constant
 * product rule, accrues the host fee, and pulls the full fee-inclusive amount
 * from the trader. All validation happens before funds move; nothing is
 * mutated on any failure path.
 *
 * @dependencies
 * - internal/engine (cpmm math, errors, events)
 */

package engine

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Quote is the outcome of pricing a prospective trade without executing it.
type Quote struct {
	Side      Side
	AmountIn  *big.Int
	Fee       *big.Int
	Effective *big.Int
	Shares    *big.Int
	// Prices after the trade would execute, 1e18-scaled.
	YesPrice *big.Int
	NoPrice  *big.Int
}

// Quote prices a purchase without mutating state so callers can pick a sane
// minimum-share bound before committing. It applies the same preconditions as
// Buy so a quote failure predicts the trade failure.
func (m *Market) Quote(side Side, amount *big.Int) (*Quote, error) {
	if !side.Valid() {
		return nil, errf(KindInvalidParams, "unknown side %q", side)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errf(KindInvalidParams, "amount must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quoteLocked(side, amount)
}

func (m *Market) quoteLocked(side Side, amount *big.Int) (*Quote, error) {
	if m.status != StatusOpen {
		return nil, errf(KindMarketNotOpen, "market %s is %s", m.id, m.status)
	}
	if m.clock().After(m.deadline) {
		return nil, errf(KindDeadlinePassed, "market %s deadline has passed", m.id)
	}
	if amount.Cmp(m.minBet) < 0 {
		return nil, errf(KindBelowMinBet, "amount %s below minimum bet %s", amount, m.minBet)
	}

	fee := feeOf(amount, m.feeBps)
	effective := new(big.Int).Sub(amount, fee)
	if effective.Sign() <= 0 {
		return nil, errf(KindZeroOutput, "amount %s is consumed entirely by fees", amount)
	}

	buyPool, otherPool := m.yesPool, m.noPool
	if side == SideNo {
		buyPool, otherPool = m.noPool, m.yesPool
	}

	newBuyPool, newOtherPool, shares := cpmmSwap(buyPool, otherPool, effective)
	if newBuyPool.Sign() == 0 {
		return nil, errf(KindInsufficientLiquidity, "trade would drain the %s pool", side)
	}
	if shares.Sign() == 0 {
		return nil, errf(KindZeroOutput, "amount %s yields no shares against current pools", amount)
	}

	newYes, newNo := newBuyPool, newOtherPool
	if side == SideNo {
		newYes, newNo = newOtherPool, newBuyPool
	}

	return &Quote{
		Side:      side,
		AmountIn:  new(big.Int).Set(amount),
		Fee:       fee,
		Effective: effective,
		Shares:    shares,
		YesPrice:  scaledPrice(newNo, newYes, newNo),
		NoPrice:   scaledPrice(newYes, newYes, newNo),
	}, nil
}

// Buy purchases `side` with `amount` collateral (fee-inclusive), failing with
// KindSlippage if the computed shares fall below minShares. The full amount is
// pulled from the trader into market custody; the fee portion accrues to the
// host and is excluded from the pricing math.
func (m *Market) Buy(ctx context.Context, trader common.Address, side Side, amount, minShares *big.Int) (*Quote, error) {
	if trader == (common.Address{}) {
		return nil, errf(KindInvalidParams, "trader address is required")
	}
	if !side.Valid() {
		return nil, errf(KindInvalidParams, "unknown side %q", side)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errf(KindInvalidParams, "amount must be positive")
	}
	if minShares == nil {
		minShares = new(big.Int)
	}

	if err := m.acquire(); err != nil {
		return nil, err
	}
	defer m.release()

	m.mu.Lock()
	q, err := m.quoteLocked(side, amount)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if q.Shares.Cmp(minShares) < 0 {
		m.mu.Unlock()
		return nil, &Error{
			Kind:     KindSlippage,
			Message:  "computed shares below caller minimum",
			Computed: new(big.Int).Set(q.Shares),
			Minimum:  new(big.Int).Set(minShares),
		}
	}
	m.mu.Unlock()

	// Pull funds before committing state. A transfer failure leaves the
	// market untouched; a re-entrant call from the transfer is rejected by
	// the guard.
	if err := m.ledger.TransferFrom(ctx, trader, m.custody, amount); err != nil {
		return nil, &Error{Kind: KindTransferFailed, Message: "collateral pull failed", Cause: err}
	}

	m.mu.Lock()
	if side == SideYes {
		m.noPool.Add(m.noPool, q.Effective)
		m.yesPool.Sub(m.yesPool, q.Shares)
		addTo(m.yesShares, trader, q.Shares)
		m.totalYesShares.Add(m.totalYesShares, q.Shares)
	} else {
		m.yesPool.Add(m.yesPool, q.Effective)
		m.noPool.Sub(m.noPool, q.Shares)
		addTo(m.noShares, trader, q.Shares)
		m.totalNoShares.Add(m.totalNoShares, q.Shares)
	}
	addTo(m.deposited, trader, q.Effective)
	m.accruedFees.Add(m.accruedFees, q.Fee)
	m.held.Add(m.held, amount)
	now := m.clock()
	m.mu.Unlock()

	m.emit(TradeExecuted{
		MarketID:  m.id,
		Trader:    trader,
		Side:      side,
		AmountIn:  new(big.Int).Set(amount),
		Fee:       new(big.Int).Set(q.Fee),
		SharesOut: new(big.Int).Set(q.Shares),
		YesPrice:  new(big.Int).Set(q.YesPrice),
		NoPrice:   new(big.Int).Set(q.NoPrice),
		At:        now,
	})

	return q, nil
}

func addTo(balances map[common.Address]*big.Int, addr common.Address, delta *big.Int) {
	if cur, ok := balances[addr]; ok {
		cur.Add(cur, delta)
		return
	}
	balances[addr] = new(big.Int).Set(delta)
}
