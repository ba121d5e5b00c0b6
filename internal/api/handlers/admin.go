/**
 * @description
 * Admin API Handlers.
 * Faucet minting of demo collateral and market delisting. Routes are guarded
 * by the admin JWT middleware; delisting acts with the registry's configured
 * admin authority.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - internal/services
 */

package handlers

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/vjbhandari61/prediction-market/internal/services"
)

type AdminHandler struct {
	Service *services.MarketService
}

func NewAdminHandler(service *services.MarketService) *AdminHandler {
	return &AdminHandler{Service: service}
}

type faucetRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// Faucet mints demo collateral to an address.
// POST /api/v1/admin/faucet
func (h *AdminHandler) Faucet(c *fiber.Ctx) error {
	var req faucetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if !common.IsHexAddress(req.Address) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid address"})
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid amount: " + err.Error()})
	}

	addr := common.HexToAddress(req.Address)
	if err := h.Service.Ledger.Mint(addr, amount); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	balance, _ := h.Service.Ledger.BalanceOf(c.Context(), addr)
	return c.JSON(fiber.Map{
		"address": addr.Hex(),
		"minted":  amount.String(),
		"balance": balance.String(),
	})
}

// Delist hides a market from discovery listings. Terminal market state stays
// queryable by ID.
// DELETE /api/v1/admin/markets/:id
func (h *AdminHandler) Delist(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Market not found"})
	}

	if err := h.Service.Delist(c.Context(), h.Service.Registry.Admin(), id); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"market_id": id.String(), "delisted": true})
}
