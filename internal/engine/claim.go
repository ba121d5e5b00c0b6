/**
 * @description
 * Claim and solvency accounting: reward claims against the resolved pot,
 * refunds with lazy expiry, and host fee withdrawal.
 *
 * Both claim paths share the single hasClaimed flag, which is the sole
 * double-spend guard. Claim flags and balance zeroing are committed before the
 * outbound transfer so a re-entrant attempt observes post-mutation state; if
 * the transfer itself fails, the commit is restored while the guard is still
 * held, so the rollback is never observable.
 *
 * @dependencies
 * - internal/engine (errors, events)
 */

package engine

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ClaimReward pays out the caller's winning-side shares pro rata against the
// pot snapshotted at resolution. Because the denominator (total winning
// shares) and the numerator base (resolvedPot) are both fixed at resolution,
// payouts are identical regardless of claim order, and their sum converges to
// resolvedPot minus at most one rounding unit per claimant.
func (m *Market) ClaimReward(ctx context.Context, caller common.Address) (*big.Int, error) {
	if err := m.acquire(); err != nil {
		return nil, err
	}
	defer m.release()

	m.mu.Lock()
	if m.status != StatusResolved {
		m.mu.Unlock()
		return nil, errf(KindNotResolved, "market %s is %s", m.id, m.status)
	}
	if m.hasClaimed[caller] {
		m.mu.Unlock()
		return nil, errf(KindAlreadyClaimed, "address %s has already claimed", caller.Hex())
	}

	winShares := m.yesShares
	totalWin := m.totalYesShares
	if !m.resolvedYes {
		winShares = m.noShares
		totalWin = m.totalNoShares
	}

	shares := winShares[caller]
	if shares == nil || shares.Sign() == 0 {
		m.mu.Unlock()
		return nil, errf(KindNoWinningShares, "address %s holds no winning shares", caller.Hex())
	}

	payout := proRata(shares, m.resolvedPot, totalWin)
	if payout.Sign() == 0 {
		m.mu.Unlock()
		return nil, errf(KindZeroPayout, "winning shares %s compute to a zero payout", shares)
	}

	// Commit the idempotency state before the external transfer. The total
	// winning shares stay untouched: every claim divides by the same
	// denominator.
	prevShares := new(big.Int).Set(shares)
	prevDeposit := copyBalance(m.deposited[caller])
	m.hasClaimed[caller] = true
	winShares[caller] = new(big.Int)
	delete(m.deposited, caller)
	m.held.Sub(m.held, payout)
	now := m.clock()
	m.mu.Unlock()

	if err := m.ledger.Transfer(ctx, m.custody, caller, payout); err != nil {
		m.mu.Lock()
		m.hasClaimed[caller] = false
		winShares[caller] = prevShares
		if prevDeposit.Sign() > 0 {
			m.deposited[caller] = prevDeposit
		}
		m.held.Add(m.held, payout)
		m.mu.Unlock()
		return nil, &Error{Kind: KindTransferFailed, Message: "reward payout failed", Cause: err}
	}

	m.emit(RewardClaimed{MarketID: m.id, Claimant: caller, Amount: new(big.Int).Set(payout), At: now})
	return payout, nil
}

// ClaimRefund returns the caller's net deposits after the deadline on an
// unresolved market. The first post-deadline refund performs the lazy
// Open -> Expired transition as a side effect and emits MarketExpired exactly
// once; later refunds observe Expired directly. Fees are never refunded.
func (m *Market) ClaimRefund(ctx context.Context, caller common.Address) (*big.Int, error) {
	if err := m.acquire(); err != nil {
		return nil, err
	}
	defer m.release()

	m.mu.Lock()
	if m.status == StatusResolved {
		m.mu.Unlock()
		return nil, errf(KindNotExpired, "market %s resolved; refunds unavailable", m.id)
	}
	if m.status == StatusOpen && !m.clock().After(m.deadline) {
		m.mu.Unlock()
		return nil, errf(KindNotExpired, "market %s is still open for trading", m.id)
	}
	if m.hasClaimed[caller] {
		m.mu.Unlock()
		return nil, errf(KindAlreadyClaimed, "address %s has already claimed", caller.Hex())
	}

	refund := m.deposited[caller]
	if refund == nil || refund.Sign() == 0 {
		m.mu.Unlock()
		return nil, errf(KindNothingToRefund, "address %s has no refundable deposits", caller.Hex())
	}
	refund = new(big.Int).Set(refund)

	transitioned := false
	if m.status == StatusOpen {
		m.status = StatusExpired
		m.expiredAt = m.clock()
		transitioned = true
	}

	m.hasClaimed[caller] = true
	delete(m.deposited, caller)
	m.held.Sub(m.held, refund)
	now := m.clock()
	expiredAt := m.expiredAt
	m.mu.Unlock()

	if err := m.ledger.Transfer(ctx, m.custody, caller, refund); err != nil {
		m.mu.Lock()
		if transitioned {
			m.status = StatusOpen
			m.expiredAt = time.Time{}
		}
		m.hasClaimed[caller] = false
		m.deposited[caller] = refund
		m.held.Add(m.held, refund)
		m.mu.Unlock()
		return nil, &Error{Kind: KindTransferFailed, Message: "refund payout failed", Cause: err}
	}

	if transitioned {
		m.emit(MarketExpired{MarketID: m.id, At: expiredAt})
	}
	m.emit(RefundClaimed{MarketID: m.id, Claimant: caller, Amount: new(big.Int).Set(refund), At: now})
	return refund, nil
}

// WithdrawFees transfers the entire accrued fee balance to the host and zeroes
// it. Valid at any point in the lifecycle; it never reads or affects the pot,
// pools, or any claimant's balances.
func (m *Market) WithdrawFees(ctx context.Context, caller common.Address) (*big.Int, error) {
	if err := m.acquire(); err != nil {
		return nil, err
	}
	defer m.release()

	m.mu.Lock()
	if caller != m.host {
		m.mu.Unlock()
		return nil, errf(KindUnauthorized, "only the host may withdraw fees for market %s", m.id)
	}
	if m.accruedFees.Sign() == 0 {
		m.mu.Unlock()
		return nil, errf(KindNoFees, "market %s has no accrued fees", m.id)
	}

	amount := new(big.Int).Set(m.accruedFees)
	m.accruedFees = new(big.Int)
	m.held.Sub(m.held, amount)
	now := m.clock()
	m.mu.Unlock()

	if err := m.ledger.Transfer(ctx, m.custody, caller, amount); err != nil {
		m.mu.Lock()
		m.accruedFees = amount
		m.held.Add(m.held, amount)
		m.mu.Unlock()
		return nil, &Error{Kind: KindTransferFailed, Message: "fee withdrawal failed", Cause: err}
	}

	m.emit(FeesWithdrawn{MarketID: m.id, Host: caller, Amount: new(big.Int).Set(amount), At: now})
	return amount, nil
}
