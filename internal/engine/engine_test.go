package engine

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testHost    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testCustody = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	traderA     = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	traderB     = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

// fakeLedger records transfers and lets tests inject failures or re-entrant
// callbacks from inside a transfer.
type fakeLedger struct {
	pulls      int
	pushes     int
	failPull   error
	failPush   error
	onPull     func()
	onPush     func()
	lastPush   *big.Int
	lastPushTo common.Address
}

func (l *fakeLedger) TransferFrom(_ context.Context, from, to common.Address, amount *big.Int) error {
	l.pulls++
	if l.onPull != nil {
		l.onPull()
	}
	return l.failPull
}

func (l *fakeLedger) Transfer(_ context.Context, from, to common.Address, amount *big.Int) error {
	l.pushes++
	if l.onPush != nil {
		l.onPush()
	}
	if l.failPush != nil {
		return l.failPush
	}
	l.lastPush = new(big.Int).Set(amount)
	l.lastPushTo = to
	return nil
}

// testClock is a settable clock for deadline tests.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testMarketOpts struct {
	seed   int64
	feeBps int64
	minBet int64
	ttl    time.Duration
	ledger CollateralLedger
	sink   Sink
}

func newTestMarket(t *testing.T, opts testMarketOpts) (*Market, *testClock) {
	t.Helper()

	if opts.seed == 0 {
		opts.seed = 100
	}
	if opts.minBet == 0 {
		opts.minBet = 1
	}
	if opts.ttl == 0 {
		opts.ttl = time.Hour
	}
	if opts.ledger == nil {
		opts.ledger = &fakeLedger{}
	}

	clock := &testClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	m, err := New(Params{
		ID:       "11111111-2222-3333-4444-555555555555",
		Question: "Will it rain tomorrow?",
		Host:     testHost,
		Custody:  testCustody,
		Deadline: clock.now.Add(opts.ttl),
		FeeBps:   opts.feeBps,
		Seed:     big.NewInt(opts.seed),
		MinBet:   big.NewInt(opts.minBet),
		Clock:    clock.Now,
		Sink:     opts.sink,
	}, opts.ledger)
	if err != nil {
		t.Fatalf("failed to construct market: %v", err)
	}
	return m, clock
}

func mustBuy(t *testing.T, m *Market, trader common.Address, side Side, amount int64) *Quote {
	t.Helper()
	q, err := m.Buy(context.Background(), trader, side, big.NewInt(amount), nil)
	if err != nil {
		t.Fatalf("buy %d %s for %s failed: %v", amount, side, trader.Hex(), err)
	}
	return q
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if !IsKind(err, kind) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}

func wantInt(t *testing.T, got *big.Int, want int64, label string) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s: got nil, want %d", label, want)
	}
	if got.Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("%s: got %s, want %d", label, got, want)
	}
}

func asEngineError(err error, target **Error) bool {
	return errors.As(err, target)
}

var errLedgerDown = errors.New("ledger unavailable")
