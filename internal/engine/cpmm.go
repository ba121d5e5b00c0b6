/**
 * @description
 * Constant-product pricing math for the market engine.
 * Pure integer arithmetic on *big.Int: every division floors, and the rounding
 * error always lands in the pool's favor, never the trader's. For any swap,
 * newBuyPool * newOtherPool <= yesPool * noPool holds by construction because
 * newBuyPool = floor(k / newOtherPool).
 *
 * @dependencies
 * - standard "math/big"
 */

package engine

import "math/big"

const feeDenominator = 10_000

// PriceScale is the fixed-point unit for price reporting: 1e18 == 1.0.
var PriceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

var feeDenom = big.NewInt(feeDenominator)

// feeOf computes floor(amount * feeBps / 10000).
func feeOf(amount *big.Int, feeBps int64) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(feeBps))
	return fee.Div(fee, feeDenom)
}

// cpmmSwap prices a purchase of the side whose reserve is buyPool, paying
// `effective` collateral (fee already removed) into the opposing reserve.
//
// Returns the updated reserves and the shares released from buyPool:
//
//	newOtherPool = otherPool + effective
//	newBuyPool   = floor(buyPool * otherPool / newOtherPool)
//	sharesOut    = buyPool - newBuyPool
//
// sharesOut can be zero for pathologically small effective amounts against
// large pools; callers must treat that as a failed trade. newBuyPool can be
// zero only if k < newOtherPool, which callers must reject to keep both
// reserves strictly positive.
func cpmmSwap(buyPool, otherPool, effective *big.Int) (newBuyPool, newOtherPool, sharesOut *big.Int) {
	k := new(big.Int).Mul(buyPool, otherPool)
	newOtherPool = new(big.Int).Add(otherPool, effective)
	newBuyPool = new(big.Int).Div(k, newOtherPool)
	sharesOut = new(big.Int).Sub(buyPool, newBuyPool)
	return newBuyPool, newOtherPool, sharesOut
}

// scaledPrice computes opposingPool * PriceScale / (yesPool + noPool).
func scaledPrice(opposingPool, yesPool, noPool *big.Int) *big.Int {
	total := new(big.Int).Add(yesPool, noPool)
	if total.Sign() == 0 {
		return new(big.Int)
	}
	p := new(big.Int).Mul(opposingPool, PriceScale)
	return p.Div(p, total)
}

// proRata computes floor(shares * pot / totalShares), the fixed-denominator
// payout rule that makes claim amounts independent of claim order.
func proRata(shares, pot, totalShares *big.Int) *big.Int {
	if totalShares.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(shares, pot)
	return out.Div(out, totalShares)
}
