/**
 * @description
 * Claim API Handlers.
 * Reward claims against resolved markets and refund claims against expired
 * ones. Both paths share a single per-address claim flag inside the engine, so
 * an account settles a market exactly once.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - internal/services
 */

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vjbhandari61/prediction-market/internal/api/middleware"
	"github.com/vjbhandari61/prediction-market/internal/services"
)

type ClaimHandler struct {
	Service *services.MarketService
}

func NewClaimHandler(service *services.MarketService) *ClaimHandler {
	return &ClaimHandler{Service: service}
}

// ClaimReward pays the caller's pro-rata share of the resolved pot.
// POST /api/v1/markets/:id/claim
func (h *ClaimHandler) ClaimReward(c *fiber.Ctx) error {
	caller, err := middleware.Account(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	m, err := h.Service.GetMarket(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	payout, err := m.ClaimReward(c.Context(), caller)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"market_id": m.ID(),
		"claimant":  caller.Hex(),
		"payout":    payout.String(),
	})
}

// ClaimRefund returns the caller's net deposits on an expired market. The
// first refund after the deadline flips an open market to expired.
// POST /api/v1/markets/:id/refund
func (h *ClaimHandler) ClaimRefund(c *fiber.Ctx) error {
	caller, err := middleware.Account(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	m, err := h.Service.GetMarket(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	refund, err := m.ClaimRefund(c.Context(), caller)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"market_id": m.ID(),
		"claimant":  caller.Hex(),
		"refund":    refund.String(),
	})
}
