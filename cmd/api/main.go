/**
 * @description
 * Main entry point for the prediction market API.
 * Wires the collateral ledger, the market registry/engine, the Postgres
 * journal and Redis cache, then serves the Fiber app.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2: Web framework
 * - internal/config: Config loader
 * - internal/db: Database connections
 *
 * @notes
 * - Postgres and Redis are optional in development; the engine is the source
 *   of truth and runs entirely in memory.
 */

package main

import (
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/vjbhandari61/prediction-market/internal/api"
	"github.com/vjbhandari61/prediction-market/internal/config"
	"github.com/vjbhandari61/prediction-market/internal/db"
	"github.com/vjbhandari61/prediction-market/internal/engine"
	"github.com/vjbhandari61/prediction-market/internal/ledger"
	"github.com/vjbhandari61/prediction-market/internal/logger"
	"github.com/vjbhandari61/prediction-market/internal/registry"
	"github.com/vjbhandari61/prediction-market/internal/services"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Connections. Both are optional outside production; the service
	// degrades journaling and caching to no-ops.
	var pgDB *gorm.DB
	if cfg.DB.URL != "" {
		pgDB, err = db.ConnectPostgres(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		if err := db.Migrate(pgDB); err != nil {
			log.Fatalf("Failed to migrate journal tables: %v", err)
		}
	} else {
		logger.Info("⚠️ DATABASE_URL not set; journaling disabled")
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = db.ConnectRedis(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
	} else {
		logger.Info("⚠️ REDIS_URL not set; caching and event streams disabled")
	}

	// 3. Core wiring: ledger -> registry -> service (service is the event sink)
	led := ledger.NewMemoryLedger(cfg.Collateral.Symbol, cfg.Collateral.Decimals)

	chain, err := ledger.NewChainReader(cfg)
	if err != nil {
		logger.Error("Chain balance reader disabled: %v", err)
	}

	// The registry's sink forwards engine events into the service; the service
	// needs the registry, so the sink closes over the svc pointer.
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
	svc = services.NewMarketService(pgDB, redisClient, reg, led, chain)

	var hub *services.EventStreamHub
	if redisClient != nil {
		hub = services.NewEventStreamHub(redisClient, services.EventChannel)
	}

	// 4. Initialize Fiber App
	app := fiber.New(fiber.Config{
		AppName:       "Prediction Market",
		StrictRouting: false,
		CaseSensitive: true,
	})

	// 5. Global Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Account, X-Signature",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// 6. Routes
	api.SetupRoutes(app, svc, hub, cfg)

	// 7. Start Server
	logger.Info("🚀 Starting prediction market API on port %s", cfg.Server.Port)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
