/**
 * @description
 * API Route definitions.
 * Sets up the router groups and assigns handlers. Read endpoints are public;
 * mutating market endpoints require the account signature middleware; the
 * faucet and delisting sit behind the admin JWT guard.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - internal/api/handlers
 * - internal/api/middleware
 * - internal/services
 */

package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vjbhandari61/prediction-market/internal/api/handlers"
	"github.com/vjbhandari61/prediction-market/internal/api/middleware"
	"github.com/vjbhandari61/prediction-market/internal/config"
	"github.com/vjbhandari61/prediction-market/internal/logger"
	"github.com/vjbhandari61/prediction-market/internal/services"
)

// SetupRoutes configures all API routes against an already-wired service.
func SetupRoutes(app *fiber.App, svc *services.MarketService, hub *services.EventStreamHub, cfg *config.Config) {
	if err := middleware.InitAuthMiddleware(cfg); err != nil {
		logger.Error("Failed to init auth middleware: %v", err)
		// Protected routes will reject until auth is configured; public and
		// account-signed routes keep working.
	}

	account := middleware.RequireAccount(cfg)

	marketHandler := handlers.NewMarketHandler(svc, hub)
	tradeHandler := handlers.NewTradeHandler(svc)
	claimHandler := handlers.NewClaimHandler(svc)
	hostHandler := handlers.NewHostHandler(svc)
	balanceHandler := handlers.NewBalanceHandler(svc)
	adminHandler := handlers.NewAdminHandler(svc)

	api := app.Group("/api")
	v1 := api.Group("/v1")

	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "markets": svc.Registry.Count()})
	})

	v1.Get("/balance", balanceHandler.GetBalance)

	markets := v1.Group("/markets")

	// Discovery and streaming. The stream route is registered before /:id so
	// fiber does not swallow it as a market ID.
	markets.Get("/stream", marketHandler.StreamEvents)
	markets.Get("/", marketHandler.ListMarkets)
	markets.Post("/", account, marketHandler.CreateMarket)

	// Per-market reads
	markets.Get("/:id", marketHandler.GetMarket)
	markets.Get("/:id/price", marketHandler.GetPrice)
	markets.Get("/:id/quote", marketHandler.Quote)
	markets.Get("/:id/position", marketHandler.GetPosition)
	markets.Get("/:id/trades", marketHandler.ListTrades)
	markets.Get("/:id/allowance", balanceHandler.Allowance)

	// Per-market mutations (signed)
	markets.Post("/:id/approve", account, balanceHandler.Approve)
	markets.Post("/:id/buy", account, tradeHandler.Buy)
	markets.Post("/:id/resolve", account, hostHandler.Resolve)
	markets.Post("/:id/claim", account, claimHandler.ClaimReward)
	markets.Post("/:id/refund", account, claimHandler.ClaimRefund)
	markets.Post("/:id/fees/withdraw", account, hostHandler.WithdrawFees)

	// Admin surface (JWT)
	admin := v1.Group("/admin", middleware.Protected())
	admin.Post("/faucet", adminHandler.Faucet)
	admin.Delete("/markets/:id", adminHandler.Delist)
}
