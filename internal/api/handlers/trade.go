/**
 * @description
 * Trade API Handler.
 * Executes buys against a market's CPMM pools on behalf of the authenticated
 * account.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - internal/services, internal/engine
 */

package handlers

import (
	"math/big"

	"github.com/gofiber/fiber/v2"

	"github.com/vjbhandari61/prediction-market/internal/api/middleware"
	"github.com/vjbhandari61/prediction-market/internal/engine"
	"github.com/vjbhandari61/prediction-market/internal/services"
)

type TradeHandler struct {
	Service *services.MarketService
}

func NewTradeHandler(service *services.MarketService) *TradeHandler {
	return &TradeHandler{Service: service}
}

type buyRequest struct {
	Side      string `json:"side"`
	Amount    string `json:"amount"`     // collateral in, base units
	MinShares string `json:"min_shares"` // slippage floor, optional
}

// Buy pulls collateral from the caller and mints outcome shares at the CPMM
// price. The caller must have approved the market's custody address.
// POST /api/v1/markets/:id/buy
func (h *TradeHandler) Buy(c *fiber.Ctx) error {
	trader, err := middleware.Account(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	m, err := h.Service.GetMarket(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	var req buyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	side, ok := engine.ParseSide(req.Side)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "side must be YES or NO"})
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid amount: " + err.Error()})
	}

	minShares := big.NewInt(0)
	if req.MinShares != "" {
		minShares, err = parseAmount(req.MinShares)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid min_shares: " + err.Error()})
		}
	}

	q, err := m.Buy(c.Context(), trader, side, amount, minShares)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(quotePayload(q))
}
