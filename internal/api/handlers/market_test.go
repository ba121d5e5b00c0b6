package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/vjbhandari61/prediction-market/internal/api/middleware"
	"github.com/vjbhandari61/prediction-market/internal/config"
	"github.com/vjbhandari61/prediction-market/internal/engine"
	"github.com/vjbhandari61/prediction-market/internal/ledger"
	"github.com/vjbhandari61/prediction-market/internal/registry"
	"github.com/vjbhandari61/prediction-market/internal/services"
)

var (
	hostAddr   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	traderAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type testEnv struct {
	app *fiber.App
	svc *services.MarketService
	led *ledger.MemoryLedger
}

// newTestEnv wires a fiber app with the market/trade/claim/host routes against
// an in-memory stack. Account auth runs in trust mode: X-Account alone
// identifies the caller.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Env = "test"
	cfg.Server.DevTrustAccounts = true

	led := ledger.NewMemoryLedger("USDX", 6)
	for _, addr := range []common.Address{hostAddr, traderAddr} {
		if err := led.Mint(addr, big.NewInt(1_000_000)); err != nil {
			t.Fatalf("mint failed: %v", err)
		}
	}

	var svc *services.MarketService
	reg := registry.New(led, registry.Limits{
		MinBet:    big.NewInt(1),
		MaxFeeBps: 1_000,
		MinSeed:   big.NewInt(100),
	}, hostAddr, func(ev engine.Event) {
		if svc != nil {
			svc.HandleEvent(ev)
		}
	})
	svc = services.NewMarketService(nil, nil, reg, led, nil)

	account := middleware.RequireAccount(cfg)
	marketHandler := NewMarketHandler(svc, nil)
	tradeHandler := NewTradeHandler(svc)
	claimHandler := NewClaimHandler(svc)
	hostHandler := NewHostHandler(svc)
	balanceHandler := NewBalanceHandler(svc)

	app := fiber.New()
	app.Get("/api/v1/balance", balanceHandler.GetBalance)
	app.Get("/api/v1/markets", marketHandler.ListMarkets)
	app.Post("/api/v1/markets", account, marketHandler.CreateMarket)
	app.Get("/api/v1/markets/:id", marketHandler.GetMarket)
	app.Get("/api/v1/markets/:id/price", marketHandler.GetPrice)
	app.Get("/api/v1/markets/:id/quote", marketHandler.Quote)
	app.Get("/api/v1/markets/:id/position", marketHandler.GetPosition)
	app.Post("/api/v1/markets/:id/approve", account, balanceHandler.Approve)
	app.Post("/api/v1/markets/:id/buy", account, tradeHandler.Buy)
	app.Post("/api/v1/markets/:id/resolve", account, hostHandler.Resolve)
	app.Post("/api/v1/markets/:id/claim", account, claimHandler.ClaimReward)
	app.Post("/api/v1/markets/:id/refund", account, claimHandler.ClaimRefund)
	app.Post("/api/v1/markets/:id/fees/withdraw", account, hostHandler.WithdrawFees)

	return &testEnv{app: app, svc: svc, led: led}
}

func (e *testEnv) do(t *testing.T, method, path string, account common.Address, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if account != (common.Address{}) {
		req.Header.Set("X-Account", account.Hex())
	}

	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}

	var decoded map[string]interface{}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if len(data) > 0 {
		_ = json.Unmarshal(data, &decoded)
	}
	return resp, decoded
}

func (e *testEnv) createMarket(t *testing.T) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/v1/markets", hostAddr, map[string]interface{}{
		"question": "Will the handler tests pass?",
		"deadline": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"fee_bps":  200,
		"seed":     "1000",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create market: status %d, body %v", resp.StatusCode, body)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("create market returned no id: %v", body)
	}
	return id
}

func (e *testEnv) approveAndBuy(t *testing.T, id string, trader common.Address, side string, amount string) map[string]interface{} {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/v1/markets/"+id+"/approve", trader, map[string]interface{}{
		"amount": "500000",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: status %d, body %v", resp.StatusCode, body)
	}

	resp, body = e.do(t, http.MethodPost, "/api/v1/markets/"+id+"/buy", trader, map[string]interface{}{
		"side":   side,
		"amount": amount,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("buy: status %d, body %v", resp.StatusCode, body)
	}
	return body
}

func TestMarketLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	id := env.createMarket(t)

	// Discovery
	resp, _ := env.do(t, http.MethodGet, "/api/v1/markets/"+id, common.Address{}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get market: status %d", resp.StatusCode)
	}

	// Fresh market prices at 0.5/0.5.
	resp, price := env.do(t, http.MethodGet, "/api/v1/markets/"+id+"/price", common.Address{}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("price: status %d", resp.StatusCode)
	}
	if price["yes_price"].(float64) != 0.5 || price["no_price"].(float64) != 0.5 {
		t.Fatalf("fresh prices: %v", price)
	}

	// Quote then buy; quote must not mutate.
	resp, quote := env.do(t, http.MethodGet, "/api/v1/markets/"+id+"/quote?side=YES&amount=500", common.Address{}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("quote: status %d, body %v", resp.StatusCode, quote)
	}
	trade := env.approveAndBuy(t, id, traderAddr, "YES", "500")
	if trade["shares"] != quote["shares"] {
		t.Fatalf("buy shares %v differ from quote %v", trade["shares"], quote["shares"])
	}

	// Position reflects the trade.
	resp, pos := env.do(t, http.MethodGet, "/api/v1/markets/"+id+"/position?account="+traderAddr.Hex(), common.Address{}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("position: status %d", resp.StatusCode)
	}
	if pos["yes_shares"] != trade["shares"] {
		t.Fatalf("position shares %v, want %v", pos["yes_shares"], trade["shares"])
	}
	if pos["has_claimed"] != false {
		t.Fatalf("fresh position claimed: %v", pos)
	}

	// Host resolves YES, trader claims, host withdraws fees.
	resp, body := env.do(t, http.MethodPost, "/api/v1/markets/"+id+"/resolve", hostAddr, map[string]interface{}{
		"outcome_yes": true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve: status %d, body %v", resp.StatusCode, body)
	}

	resp, claim := env.do(t, http.MethodPost, "/api/v1/markets/"+id+"/claim", traderAddr, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim: status %d, body %v", resp.StatusCode, claim)
	}
	// Sole winner takes the whole pot: 2500 held - 10 fee.
	if claim["payout"] != "2490" {
		t.Fatalf("payout %v, want 2490", claim["payout"])
	}

	resp, fees := env.do(t, http.MethodPost, "/api/v1/markets/"+id+"/fees/withdraw", hostAddr, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("withdraw: status %d, body %v", resp.StatusCode, fees)
	}
	if fees["amount"] != "10" {
		t.Fatalf("fees %v, want 10", fees["amount"])
	}

	// Balance endpoint reflects the payout.
	resp, bal := env.do(t, http.MethodGet, "/api/v1/balance?account="+traderAddr.Hex(), common.Address{}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("balance: status %d", resp.StatusCode)
	}
	// 1_000_000 - 500 spent + 2490 payout
	if bal["balance"] != "1001990" {
		t.Fatalf("trader balance %v, want 1001990", bal["balance"])
	}
}

func TestErrorKindMapping(t *testing.T) {
	env := newTestEnv(t)
	id := env.createMarket(t)

	// Unknown market -> 404
	resp, _ := env.do(t, http.MethodGet, "/api/v1/markets/00000000-0000-0000-0000-000000000000", common.Address{}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown market: status %d, want 404", resp.StatusCode)
	}

	// Slippage -> 422 with computed/minimum
	env.do(t, http.MethodPost, "/api/v1/markets/"+id+"/approve", traderAddr, map[string]interface{}{"amount": "500000"})
	resp, body := env.do(t, http.MethodPost, "/api/v1/markets/"+id+"/buy", traderAddr, map[string]interface{}{
		"side":       "YES",
		"amount":     "500",
		"min_shares": "100000",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("slippage: status %d, want 422 (body %v)", resp.StatusCode, body)
	}
	if body["kind"] != string(engine.KindSlippage) {
		t.Fatalf("slippage kind %v", body["kind"])
	}
	if body["computed"] == nil || body["minimum"] == nil {
		t.Fatalf("slippage body missing diagnostics: %v", body)
	}

	// Resolve by non-host -> 403
	resp, body = env.do(t, http.MethodPost, "/api/v1/markets/"+id+"/resolve", traderAddr, map[string]interface{}{
		"outcome_yes": true,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-host resolve: status %d, want 403 (body %v)", resp.StatusCode, body)
	}

	// Claim before resolution -> 409
	resp, body = env.do(t, http.MethodPost, "/api/v1/markets/"+id+"/claim", traderAddr, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("premature claim: status %d, want 409 (body %v)", resp.StatusCode, body)
	}
	if body["kind"] != string(engine.KindNotResolved) {
		t.Fatalf("premature claim kind %v", body["kind"])
	}

	// Missing identity header -> 401
	resp, _ = env.do(t, http.MethodPost, "/api/v1/markets/"+id+"/buy", common.Address{}, map[string]interface{}{
		"side":   "YES",
		"amount": "500",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing account: status %d, want 401", resp.StatusCode)
	}
}

func TestDoubleClaimConflict(t *testing.T) {
	env := newTestEnv(t)
	id := env.createMarket(t)

	env.approveAndBuy(t, id, traderAddr, "YES", "500")
	resp, body := env.do(t, http.MethodPost, "/api/v1/markets/"+id+"/resolve", hostAddr, map[string]interface{}{
		"outcome_yes": true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve: status %d, body %v", resp.StatusCode, body)
	}

	if resp, body = env.do(t, http.MethodPost, "/api/v1/markets/"+id+"/claim", traderAddr, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("first claim: status %d, body %v", resp.StatusCode, body)
	}
	resp, body = env.do(t, http.MethodPost, "/api/v1/markets/"+id+"/claim", traderAddr, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double claim: status %d, want 409 (body %v)", resp.StatusCode, body)
	}
	if body["kind"] != string(engine.KindAlreadyClaimed) {
		t.Fatalf("double claim kind %v", body["kind"])
	}
}

func TestStreamEvents(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	hub := services.NewEventStreamHub(redisClient, services.EventChannel)
	defer hub.Close()

	handler := NewMarketHandler(&services.MarketService{}, hub)
	app := fiber.New()
	app.Get("/api/v1/markets/stream", handler.StreamEvents)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go func() {
		_ = app.Listener(ln)
	}()
	defer app.Shutdown()
	baseURL := "http://" + ln.Addr().String()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	payload := `{"type":"trade_executed","market_id":"stream-market"}`
	go func() {
		for i := 0; i < 20; i++ {
			time.Sleep(100 * time.Millisecond)
			_ = redisClient.Publish(context.Background(), services.EventChannel, payload).Err()
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v1/markets/stream", nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to call SSE endpoint: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("failed to read SSE line: %v", err)
		}
		if strings.HasPrefix(line, "data:") {
			if !strings.Contains(line, `"stream-market"`) {
				t.Fatalf("unexpected SSE payload: %s", line)
			}
			return
		}
	}
}

func TestParseAmount(t *testing.T) {
	if _, err := parseAmount(""); err == nil {
		t.Error("empty amount accepted")
	}
	if _, err := parseAmount("abc"); err == nil {
		t.Error("non-numeric amount accepted")
	}
	if _, err := parseAmount("-5"); err == nil {
		t.Error("negative amount accepted")
	}
	if _, err := parseAmount("0"); err == nil {
		t.Error("zero amount accepted")
	}
	v, err := parseAmount("12345678901234567890")
	if err != nil {
		t.Fatalf("big amount rejected: %v", err)
	}
	if fmt.Sprint(v) != "12345678901234567890" {
		t.Fatalf("parsed %s", v)
	}
}
