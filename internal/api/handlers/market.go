/**
 * @description
 * Market API Handlers.
 * Market creation, discovery, pricing, quoting and the SSE event stream.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - internal/services, internal/registry, internal/engine
 */

package handlers

import (
	"bufio"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/vjbhandari61/prediction-market/internal/api/middleware"
	"github.com/vjbhandari61/prediction-market/internal/engine"
	"github.com/vjbhandari61/prediction-market/internal/registry"
	"github.com/vjbhandari61/prediction-market/internal/services"
)

type MarketHandler struct {
	Service *services.MarketService
	Hub     *services.EventStreamHub
}

func NewMarketHandler(service *services.MarketService, hub *services.EventStreamHub) *MarketHandler {
	return &MarketHandler{Service: service, Hub: hub}
}

type createMarketRequest struct {
	Question string    `json:"question"`
	Deadline time.Time `json:"deadline"`
	FeeBps   int64     `json:"fee_bps"`
	Seed     string    `json:"seed"` // initial liquidity per side, base units
	Host     string    `json:"host,omitempty"`
}

// CreateMarket constructs a new market; the authenticated caller funds
// 2 x seed and becomes host unless another host is named.
// POST /api/v1/markets
func (h *MarketHandler) CreateMarket(c *fiber.Ctx) error {
	creator, err := middleware.Account(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	var req createMarketRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	seed, err := parseAmount(req.Seed)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid seed: " + err.Error()})
	}

	params := registry.CreateParams{
		Question: req.Question,
		Deadline: req.Deadline,
		FeeBps:   req.FeeBps,
		Seed:     seed,
	}
	if req.Host != "" {
		if !common.IsHexAddress(req.Host) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid host address"})
		}
		params.Host = common.HexToAddress(req.Host)
	}

	m, err := h.Service.CreateMarket(c.Context(), creator, params)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(services.SummaryOf(m.Snapshot()))
}

// ListMarkets returns summaries of all listed markets.
// GET /api/v1/markets
func (h *MarketHandler) ListMarkets(c *fiber.Ctx) error {
	summaries, err := h.Service.ListMarkets(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch markets",
		})
	}
	return c.JSON(summaries)
}

// GetMarket returns one market's full snapshot.
// GET /api/v1/markets/:id
func (h *MarketHandler) GetMarket(c *fiber.Ctx) error {
	m, err := h.Service.GetMarket(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(services.SummaryOf(m.Snapshot()))
}

// GetPrice returns both side prices. Queryable in every lifecycle state.
// GET /api/v1/markets/:id/price
func (h *MarketHandler) GetPrice(c *fiber.Ctx) error {
	m, err := h.Service.GetMarket(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	yes := m.Price(engine.SideYes)
	no := m.Price(engine.SideNo)
	return c.JSON(fiber.Map{
		"market_id":      m.ID(),
		"yes_price":      engine.PriceFloat(yes),
		"no_price":       engine.PriceFloat(no),
		"yes_price_wad":  yes.String(),
		"no_price_wad":   no.String(),
		"price_scale":    engine.PriceScale.String(),
	})
}

// Quote previews a trade without executing it so callers can pick a minimum
// share bound.
// GET /api/v1/markets/:id/quote?side=YES&amount=1000
func (h *MarketHandler) Quote(c *fiber.Ctx) error {
	m, err := h.Service.GetMarket(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	side, ok := engine.ParseSide(c.Query("side"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "side must be YES or NO"})
	}
	amount, err := parseAmount(c.Query("amount"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid amount: " + err.Error()})
	}

	q, err := m.Quote(side, amount)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(quotePayload(q))
}

// GetPosition returns an address's shares, refundable deposit and claim flag.
// GET /api/v1/markets/:id/position?account=0x...
func (h *MarketHandler) GetPosition(c *fiber.Ctx) error {
	m, err := h.Service.GetMarket(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	raw := c.Query("account")
	if !common.IsHexAddress(raw) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "account query param must be a valid address"})
	}
	addr := common.HexToAddress(raw)

	yes, no := m.SharesOf(addr)
	return c.JSON(fiber.Map{
		"market_id":   m.ID(),
		"account":     addr.Hex(),
		"yes_shares":  yes.String(),
		"no_shares":   no.String(),
		"deposited":   m.DepositOf(addr).String(),
		"has_claimed": m.HasClaimed(addr),
	})
}

// ListTrades returns recent journaled trades for a market.
// GET /api/v1/markets/:id/trades
func (h *MarketHandler) ListTrades(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Market not found"})
	}
	trades, err := h.Service.TradeHistory(c.Context(), id, c.QueryInt("limit", 50))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch trades"})
	}
	return c.JSON(trades)
}

// StreamEvents streams live market events over SSE, optionally filtered to one
// market via ?market=.
// GET /api/v1/markets/stream
func (h *MarketHandler) StreamEvents(c *fiber.Ctx) error {
	if h.Hub == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Event stream unavailable"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	requestCtx := c.Context()
	ch, unsubscribe := h.Hub.Subscribe(c.Query("market"))

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()

		requestDone := requestCtx.Done()

		for {
			select {
			case <-requestDone:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				fmt.Fprintf(w, "data: %s\n\n", msg)
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}

func quotePayload(q *engine.Quote) fiber.Map {
	return fiber.Map{
		"side":      string(q.Side),
		"amount_in": q.AmountIn.String(),
		"fee":       q.Fee.String(),
		"effective": q.Effective.String(),
		"shares":    q.Shares.String(),
		"yes_price": engine.PriceFloat(q.YesPrice),
		"no_price":  engine.PriceFloat(q.NoPrice),
	}
}

// parseAmount parses a positive base-10 integer amount.
func parseAmount(raw string) (*big.Int, error) {
	if raw == "" {
		return nil, fmt.Errorf("amount is required")
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("not a base-10 integer")
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("must be positive")
	}
	return v, nil
}
