package engine

import (
	"context"
	"math/big"
	"testing"
	"time"
)

func TestBuyReferenceTrade(t *testing.T) {
	led := &fakeLedger{}
	var events []Event
	m, _ := newTestMarket(t, testMarketOpts{
		seed:   100,
		feeBps: 200,
		ledger: led,
		sink:   func(ev Event) { events = append(events, ev) },
	})

	q := mustBuy(t, m, traderA, SideYes, 50)

	wantInt(t, q.Fee, 1, "fee")
	wantInt(t, q.Effective, 49, "effective")
	wantInt(t, q.Shares, 33, "shares")

	snap := m.Snapshot()
	wantInt(t, snap.YesPool, 67, "yes pool")
	wantInt(t, snap.NoPool, 149, "no pool")
	wantInt(t, snap.TotalYesShares, 33, "total yes shares")
	wantInt(t, snap.AccruedFees, 1, "accrued fees")
	wantInt(t, snap.Held, 250, "held collateral") // 200 seed + 50 in

	wantPrice := new(big.Int).Mul(big.NewInt(149), PriceScale)
	wantPrice.Div(wantPrice, big.NewInt(216))
	if snap.YesPrice.Cmp(wantPrice) != 0 {
		t.Errorf("yes price: got %s, want %s", snap.YesPrice, wantPrice)
	}

	yes, no := m.SharesOf(traderA)
	wantInt(t, yes, 33, "trader yes shares")
	wantInt(t, no, 0, "trader no shares")
	wantInt(t, m.DepositOf(traderA), 49, "trader deposit")

	if led.pulls != 1 {
		t.Fatalf("expected one collateral pull, got %d", led.pulls)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	trade, ok := events[0].(TradeExecuted)
	if !ok {
		t.Fatalf("expected TradeExecuted, got %T", events[0])
	}
	wantInt(t, trade.SharesOut, 33, "event shares")
	wantInt(t, trade.Fee, 1, "event fee")
}

func TestBuyNoSideMirrors(t *testing.T) {
	m, _ := newTestMarket(t, testMarketOpts{seed: 100, feeBps: 200})

	q := mustBuy(t, m, traderB, SideNo, 50)
	wantInt(t, q.Shares, 33, "no-side shares")

	snap := m.Snapshot()
	wantInt(t, snap.NoPool, 67, "no pool")
	wantInt(t, snap.YesPool, 149, "yes pool")
	wantInt(t, snap.TotalNoShares, 33, "total no shares")
}

func TestQuoteMatchesBuyAndDoesNotMutate(t *testing.T) {
	m, _ := newTestMarket(t, testMarketOpts{seed: 100, feeBps: 200})

	q, err := m.Quote(SideYes, big.NewInt(50))
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}

	// Quoting left the pools untouched.
	snap := m.Snapshot()
	wantInt(t, snap.YesPool, 100, "yes pool after quote")
	wantInt(t, snap.NoPool, 100, "no pool after quote")

	executed := mustBuy(t, m, traderA, SideYes, 50)
	if executed.Shares.Cmp(q.Shares) != 0 {
		t.Fatalf("buy shares %s differ from quote %s", executed.Shares, q.Shares)
	}
}

func TestBuyValidation(t *testing.T) {
	m, _ := newTestMarket(t, testMarketOpts{seed: 100, minBet: 10})
	ctx := context.Background()

	_, err := m.Buy(ctx, traderA, Side("MAYBE"), big.NewInt(50), nil)
	wantKind(t, err, KindInvalidParams)

	_, err = m.Buy(ctx, traderA, SideYes, big.NewInt(0), nil)
	wantKind(t, err, KindInvalidParams)

	_, err = m.Buy(ctx, traderA, SideYes, big.NewInt(9), nil)
	wantKind(t, err, KindBelowMinBet)
}

func TestBuyAfterDeadline(t *testing.T) {
	m, clock := newTestMarket(t, testMarketOpts{seed: 100})
	clock.Advance(2 * time.Hour)

	_, err := m.Buy(context.Background(), traderA, SideYes, big.NewInt(50), nil)
	wantKind(t, err, KindDeadlinePassed)
}

func TestBuyZeroOutput(t *testing.T) {
	m, _ := newTestMarket(t, testMarketOpts{seed: 1_000_000_000})

	// One unit against a billion-deep pool floors to zero shares.
	_, err := m.Buy(context.Background(), traderA, SideYes, big.NewInt(1), nil)
	wantKind(t, err, KindZeroOutput)

	snap := m.Snapshot()
	wantInt(t, snap.YesPool, 1_000_000_000, "yes pool unchanged")
}

func TestBuySlippage(t *testing.T) {
	m, _ := newTestMarket(t, testMarketOpts{seed: 100, feeBps: 200})

	_, err := m.Buy(context.Background(), traderA, SideYes, big.NewInt(50), big.NewInt(34))
	wantKind(t, err, KindSlippage)

	var engErr *Error
	if !asEngineError(err, &engErr) {
		t.Fatalf("expected engine error, got %v", err)
	}
	wantInt(t, engErr.Computed, 33, "slippage computed")
	wantInt(t, engErr.Minimum, 34, "slippage minimum")

	// Nothing moved.
	snap := m.Snapshot()
	wantInt(t, snap.YesPool, 100, "yes pool unchanged")
	wantInt(t, snap.Held, 200, "held unchanged")
}

func TestBuyTransferFailureLeavesStateUntouched(t *testing.T) {
	led := &fakeLedger{failPull: errLedgerDown}
	m, _ := newTestMarket(t, testMarketOpts{seed: 100, feeBps: 200, ledger: led})

	_, err := m.Buy(context.Background(), traderA, SideYes, big.NewInt(50), nil)
	wantKind(t, err, KindTransferFailed)

	snap := m.Snapshot()
	wantInt(t, snap.YesPool, 100, "yes pool unchanged")
	wantInt(t, snap.NoPool, 100, "no pool unchanged")
	wantInt(t, snap.AccruedFees, 0, "no fees accrued")
	wantInt(t, snap.Held, 200, "held unchanged")

	yes, _ := m.SharesOf(traderA)
	wantInt(t, yes, 0, "no shares minted")
}

func TestBuyRejectsReentrantCall(t *testing.T) {
	led := &fakeLedger{}
	m, _ := newTestMarket(t, testMarketOpts{seed: 100, ledger: led})

	var nested error
	led.onPull = func() {
		_, nested = m.Buy(context.Background(), traderB, SideNo, big.NewInt(50), nil)
	}

	mustBuy(t, m, traderA, SideYes, 50)
	wantKind(t, nested, KindReentrantCall)
}

func TestBuyOnTerminalMarket(t *testing.T) {
	m, _ := newTestMarket(t, testMarketOpts{seed: 100})
	if err := m.Resolve(context.Background(), testHost, true); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	_, err := m.Buy(context.Background(), traderA, SideYes, big.NewInt(50), nil)
	wantKind(t, err, KindMarketNotOpen)
}
