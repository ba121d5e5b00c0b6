/**
 * @description
 * Host API Handlers.
 * Operations restricted to a market's host: settling the outcome before the
 * deadline and withdrawing accrued trading fees.
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

type HostHandler struct {
	Service *services.MarketService
}

func NewHostHandler(service *services.MarketService) *HostHandler {
	return &HostHandler{Service: service}
}

type resolveRequest struct {
	OutcomeYes *bool `json:"outcome_yes"`
}

// Resolve settles an open market to YES or NO and snapshots the payout pot.
// Host only, and only while the deadline has not passed.
// POST /api/v1/markets/:id/resolve
func (h *HostHandler) Resolve(c *fiber.Ctx) error {
	caller, err := middleware.Account(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	m, err := h.Service.GetMarket(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	var req resolveRequest
	if err := c.BodyParser(&req); err != nil || req.OutcomeYes == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "outcome_yes is required"})
	}

	if err := m.Resolve(c.Context(), caller, *req.OutcomeYes); err != nil {
		return respondError(c, err)
	}

	_, pot, _ := m.Resolved()
	return c.JSON(fiber.Map{
		"market_id":    m.ID(),
		"outcome_yes":  *req.OutcomeYes,
		"resolved_pot": pot.String(),
	})
}

// WithdrawFees transfers the market's accrued trading fees to the host.
// POST /api/v1/markets/:id/fees/withdraw
func (h *HostHandler) WithdrawFees(c *fiber.Ctx) error {
	caller, err := middleware.Account(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	m, err := h.Service.GetMarket(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	amount, err := m.WithdrawFees(c.Context(), caller)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"market_id": m.ID(),
		"host":      caller.Hex(),
		"amount":    amount.String(),
	})
}
