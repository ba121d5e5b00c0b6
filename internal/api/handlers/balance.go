/**
 * @description
 * Balance and collateral API Handlers.
 * Reads internal ledger balances (optionally alongside the on-chain token
 * balance) and manages custody allowances.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - internal/services, internal/ledger, internal/registry
 */

package handlers

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/vjbhandari61/prediction-market/internal/api/middleware"
	"github.com/vjbhandari61/prediction-market/internal/ledger"
	"github.com/vjbhandari61/prediction-market/internal/registry"
	"github.com/vjbhandari61/prediction-market/internal/services"
)

type BalanceHandler struct {
	Service *services.MarketService
}

func NewBalanceHandler(service *services.MarketService) *BalanceHandler {
	return &BalanceHandler{Service: service}
}

// GetBalance returns an address's internal collateral balance, plus its
// on-chain token balance when a chain reader is configured.
// GET /api/v1/balance?account=0x...
func (h *BalanceHandler) GetBalance(c *fiber.Ctx) error {
	raw := c.Query("account")
	if !common.IsHexAddress(raw) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "account query param must be a valid address"})
	}
	addr := common.HexToAddress(raw)

	balance, err := h.Service.Ledger.BalanceOf(c.Context(), addr)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read balance"})
	}

	resp := fiber.Map{
		"account":  addr.Hex(),
		"symbol":   h.Service.Ledger.Symbol(),
		"decimals": h.Service.Ledger.Decimals(),
		"balance":  balance.String(),
		"display":  ledger.FormatUnits(balance, h.Service.Ledger.Decimals()),
	}

	if h.Service.Chain != nil {
		if onchain, err := h.Service.Chain.BalanceOf(c.Context(), addr); err == nil {
			resp["chain_balance"] = onchain.String()
			resp["chain_display"] = h.Service.Chain.FormatBalance(onchain)
		}
	}

	return c.JSON(resp)
}

type approveRequest struct {
	Amount string `json:"amount"`
}

// Approve grants a market's custody account an allowance over the caller's
// collateral. Required before creating a market or buying into one.
// POST /api/v1/markets/:id/approve
func (h *BalanceHandler) Approve(c *fiber.Ctx) error {
	owner, err := middleware.Account(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Market not found"})
	}

	var req approveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid amount: " + err.Error()})
	}

	custody := registry.CustodyAddress(id)
	if err := h.Service.Ledger.Approve(c.Context(), owner, custody, amount); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"owner":     owner.Hex(),
		"spender":   custody.Hex(),
		"allowance": amount.String(),
	})
}

// Allowance reads the caller-independent allowance between an owner and a
// market's custody account.
// GET /api/v1/markets/:id/allowance?account=0x...
func (h *BalanceHandler) Allowance(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Market not found"})
	}

	raw := c.Query("account")
	if !common.IsHexAddress(raw) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "account query param must be a valid address"})
	}
	owner := common.HexToAddress(raw)
	custody := registry.CustodyAddress(id)

	allowance, err := h.Service.Ledger.Allowance(c.Context(), owner, custody)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read allowance"})
	}

	return c.JSON(fiber.Map{
		"owner":     owner.Hex(),
		"spender":   custody.Hex(),
		"allowance": allowance.String(),
	})
}
