package engine

import (
	"math/big"
	"testing"
)

func TestFeeOf(t *testing.T) {
	cases := []struct {
		amount int64
		feeBps int64
		want   int64
	}{
		{50, 200, 1},    // floor(50*200/10000)
		{100, 200, 2},
		{49, 200, 0},    // rounds down to zero
		{10_000, 0, 0},  // zero-fee market
		{10_000, 9_999, 9_999},
		{1, 1, 0},
	}
	for _, tc := range cases {
		got := feeOf(big.NewInt(tc.amount), tc.feeBps)
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Errorf("feeOf(%d, %d) = %s, want %d", tc.amount, tc.feeBps, got, tc.want)
		}
	}
}

func TestCpmmSwapReferenceTrade(t *testing.T) {
	// Pools 100/100, 49 effective collateral buying YES.
	newBuy, newOther, shares := cpmmSwap(big.NewInt(100), big.NewInt(100), big.NewInt(49))

	wantInt(t, newOther, 149, "new opposing pool")
	wantInt(t, newBuy, 67, "new buy pool") // floor(10000/149)
	wantInt(t, shares, 33, "shares out")
}

func TestCpmmSwapProductNeverGrows(t *testing.T) {
	cases := []struct{ buy, other, in int64 }{
		{100, 100, 49},
		{100, 100, 1},
		{1_000_000, 3, 7},
		{3, 1_000_000, 500_000},
		{17, 19, 23},
	}
	for _, tc := range cases {
		k := new(big.Int).Mul(big.NewInt(tc.buy), big.NewInt(tc.other))
		newBuy, newOther, _ := cpmmSwap(big.NewInt(tc.buy), big.NewInt(tc.other), big.NewInt(tc.in))
		newK := new(big.Int).Mul(newBuy, newOther)
		if newK.Cmp(k) > 0 {
			t.Errorf("swap(%d, %d, %d): product grew from %s to %s", tc.buy, tc.other, tc.in, k, newK)
		}
	}
}

func TestCpmmSwapTinyAmountYieldsNoShares(t *testing.T) {
	// 1 unit against huge pools floors to zero shares.
	_, _, shares := cpmmSwap(big.NewInt(1_000_000_000), big.NewInt(1_000_000_000), big.NewInt(1))
	if shares.Sign() != 0 {
		t.Fatalf("expected zero shares, got %s", shares)
	}
}

func TestScaledPrice(t *testing.T) {
	// Equal pools price at exactly 0.5.
	half := new(big.Int).Div(PriceScale, big.NewInt(2))
	if got := scaledPrice(big.NewInt(100), big.NewInt(100), big.NewInt(100)); got.Cmp(half) != 0 {
		t.Errorf("equal pools: got %s, want %s", got, half)
	}

	// Post-trade state from the reference trade: yes 67, no 149.
	want := new(big.Int).Mul(big.NewInt(149), PriceScale)
	want.Div(want, big.NewInt(216))
	if got := scaledPrice(big.NewInt(149), big.NewInt(67), big.NewInt(149)); got.Cmp(want) != 0 {
		t.Errorf("reference trade yes price: got %s, want %s", got, want)
	}
}

func TestScaledPricesSumToAtMostOne(t *testing.T) {
	cases := []struct{ yes, no int64 }{
		{100, 100},
		{67, 149},
		{1, 1_000_000},
		{3, 7},
	}
	for _, tc := range cases {
		yes := scaledPrice(big.NewInt(tc.no), big.NewInt(tc.yes), big.NewInt(tc.no))
		no := scaledPrice(big.NewInt(tc.yes), big.NewInt(tc.yes), big.NewInt(tc.no))
		sum := new(big.Int).Add(yes, no)
		if sum.Cmp(PriceScale) > 0 {
			t.Errorf("pools %d/%d: price sum %s exceeds scale", tc.yes, tc.no, sum)
		}
		// Flooring loses at most one unit per side.
		slack := new(big.Int).Sub(PriceScale, sum)
		if slack.Cmp(big.NewInt(2)) > 0 {
			t.Errorf("pools %d/%d: price sum %s too far below scale", tc.yes, tc.no, sum)
		}
	}
}

func TestProRataClaimOrderIndependence(t *testing.T) {
	// Pot 300 across 150 winning shares: 100 shares pay 200, 50 shares pay 100.
	pot := big.NewInt(300)
	total := big.NewInt(150)

	wantInt(t, proRata(big.NewInt(100), pot, total), 200, "large winner payout")
	wantInt(t, proRata(big.NewInt(50), pot, total), 100, "small winner payout")
}

func TestProRataFloorsAndNeverOverpays(t *testing.T) {
	pot := big.NewInt(100)
	total := big.NewInt(3)

	a := proRata(big.NewInt(1), pot, total)
	b := proRata(big.NewInt(1), pot, total)
	c := proRata(big.NewInt(1), pot, total)

	sum := new(big.Int).Add(a, new(big.Int).Add(b, c))
	if sum.Cmp(pot) > 0 {
		t.Fatalf("payout sum %s exceeds pot %s", sum, pot)
	}
	wantInt(t, a, 33, "per-claimant floored payout")
}

func TestProRataZeroTotal(t *testing.T) {
	if got := proRata(big.NewInt(10), big.NewInt(100), new(big.Int)); got.Sign() != 0 {
		t.Fatalf("expected zero payout with zero total shares, got %s", got)
	}
}
