/**
 * @description
 * One-shot demo seeder.
 * Drives a full market lifecycle in-process: faucet, approvals, market
 * creation, trades on both sides, resolution, claims and fee withdrawal.
 * Useful as a smoke test and for populating a dev database with realistic
 * journal rows.
 *
 * @dependencies
 * - github.com/alicebob/miniredis/v2: in-memory Redis so the seeder works
 *   without infrastructure
 */

package main

import (
	"context"
	"log"
	"math/big"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/vjbhandari61/prediction-market/internal/config"
	"github.com/vjbhandari61/prediction-market/internal/db"
	"github.com/vjbhandari61/prediction-market/internal/engine"
	"github.com/vjbhandari61/prediction-market/internal/ledger"
	"github.com/vjbhandari61/prediction-market/internal/registry"
	"github.com/vjbhandari61/prediction-market/internal/services"
)

var (
	host  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	alice = common.HexToAddress("0x2000000000000000000000000000000000000002")
	bob   = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

func main() {
	log.Println("🚀 Seeding demo market lifecycle...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var pgDB *gorm.DB
	if cfg.DB.URL != "" {
		pgDB, err = db.ConnectPostgres(cfg)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		if err := db.Migrate(pgDB); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}
	}

	mr, err := miniredis.Run()
	if err != nil {
		log.Fatalf("failed to start in-memory redis: %v", err)
	}
	defer mr.Close()
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	led := ledger.NewMemoryLedger(cfg.Collateral.Symbol, cfg.Collateral.Decimals)

	var svc *services.MarketService
	reg := registry.New(led, registry.Limits{
		MinBet:    big.NewInt(cfg.Engine.MinBet),
		MaxFeeBps: cfg.Engine.MaxFeeBps,
		MinSeed:   big.NewInt(cfg.Engine.MinSeed),
	}, common.HexToAddress(cfg.Admin.Address), func(ev engine.Event) {
		if svc != nil {
			svc.HandleEvent(ev)
		}
	})
	svc = services.NewMarketService(pgDB, redisClient, reg, led, nil)

	ctx := context.Background()

	// Faucet
	for _, addr := range []common.Address{host, alice, bob} {
		if err := led.Mint(addr, big.NewInt(1_000_000)); err != nil {
			log.Fatalf("mint failed: %v", err)
		}
	}

	// Create a market seeded with 10k per side, 2% fee
	m, err := svc.CreateMarket(ctx, host, registry.CreateParams{
		Question: "Will the demo complete without errors?",
		Deadline: time.Now().Add(24 * time.Hour),
		FeeBps:   200,
		Seed:     big.NewInt(10_000),
	})
	if err != nil {
		log.Fatalf("market creation failed: %v", err)
	}
	log.Printf("✅ Created market %s (custody %s)", m.ID(), m.Custody().Hex())

	// Traders approve the market's custody, then buy opposite sides
	for _, addr := range []common.Address{alice, bob} {
		if err := led.Approve(ctx, addr, m.Custody(), big.NewInt(500_000)); err != nil {
			log.Fatalf("approve failed: %v", err)
		}
	}
	buy(ctx, m, alice, engine.SideYes, 50_000)
	buy(ctx, m, bob, engine.SideNo, 30_000)

	// Host settles YES before the deadline
	if err := m.Resolve(ctx, host, true); err != nil {
		log.Fatalf("resolve failed: %v", err)
	}

	if payout, err := m.ClaimReward(ctx, alice); err != nil {
		log.Fatalf("claim failed: %v", err)
	} else {
		log.Printf("✅ Alice claimed %s", payout)
	}

	if fees, err := m.WithdrawFees(ctx, host); err != nil {
		log.Fatalf("fee withdrawal failed: %v", err)
	} else {
		log.Printf("✅ Host withdrew %s in fees", fees)
	}

	for name, addr := range map[string]common.Address{"host": host, "alice": alice, "bob": bob} {
		bal, _ := led.BalanceOf(ctx, addr)
		log.Printf("   %s balance: %s %s", name, bal, led.Symbol())
	}

	log.Println("✅ Demo lifecycle completed.")
}

func buy(ctx context.Context, m *engine.Market, trader common.Address, side engine.Side, amount int64) {
	q, err := m.Buy(ctx, trader, side, big.NewInt(amount), big.NewInt(0))
	if err != nil {
		log.Fatalf("buy failed for %s: %v", trader.Hex(), err)
	}
	log.Printf("✅ %s bought %s %s shares for %d (fee %s)", trader.Hex(), q.Shares, side, amount, q.Fee)
}
