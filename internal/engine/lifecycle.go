/**
 * @description
 * Lifecycle transitions: host resolution and the lazy Open -> Expired
 * transition (the latter lives in claim.go as a side effect of the first
 * post-deadline refund). Open is the only state with outgoing transitions;
 * Resolved and Expired are terminal and mutually exclusive.
 *
 * @dependencies
 * - internal/engine (errors, events)
 */

package engine

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Resolve records the outcome and snapshots the payout pot. Host-only, and
// only while the market is Open and the deadline has not passed: a host who
// misses the window loses resolution rights and the market falls through to
// expiry/refund, which prevents late resolutions.
//
// resolvedPot = heldCollateral - accruedFees is the fixed denominator for all
// subsequent reward claims; this is the one moment fee and pot accounting are
// separated for the rest of the market's life.
func (m *Market) Resolve(_ context.Context, caller common.Address, outcomeYes bool) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.release()

	m.mu.Lock()
	if caller != m.host {
		m.mu.Unlock()
		return errf(KindUnauthorized, "only the host may resolve market %s", m.id)
	}
	if m.status != StatusOpen {
		m.mu.Unlock()
		return errf(KindMarketNotOpen, "market %s is %s", m.id, m.status)
	}
	if m.clock().After(m.deadline) {
		m.mu.Unlock()
		return errf(KindDeadlinePassed, "resolution window for market %s has closed", m.id)
	}

	m.resolvedPot = new(big.Int).Sub(m.held, m.accruedFees)
	m.resolvedYes = outcomeYes
	m.status = StatusResolved
	pot := new(big.Int).Set(m.resolvedPot)
	now := m.clock()
	m.mu.Unlock()

	m.emit(MarketResolved{
		MarketID:    m.id,
		OutcomeYes:  outcomeYes,
		ResolvedPot: pot,
		At:          now,
	})
	return nil
}

// Resolved returns the outcome and pot once the market is Resolved.
func (m *Market) Resolved() (outcomeYes bool, pot *big.Int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusResolved {
		return false, nil, false
	}
	return m.resolvedYes, new(big.Int).Set(m.resolvedPot), true
}
