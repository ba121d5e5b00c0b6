/**
 * @description
 * Service layer for markets.
 * Orchestrates the registry/engine (source of truth), the Postgres journal,
 * the Redis summary cache, and the Redis pub/sub event channel. The service is
 * wired as the engine's event sink: every observable engine event is journaled
 * and published from here.
 *
 * @dependencies
 * - internal/registry, internal/engine, internal/ledger
 * - gorm.io/gorm
 * - github.com/redis/go-redis/v9
 * - github.com/jackc/pgconn (serialization-failure retry)
 */

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vjbhandari61/prediction-market/internal/engine"
	"github.com/vjbhandari61/prediction-market/internal/ledger"
	"github.com/vjbhandari61/prediction-market/internal/logger"
	"github.com/vjbhandari61/prediction-market/internal/models"
	"github.com/vjbhandari61/prediction-market/internal/registry"
)

const (
	CacheKeyOpenMarkets = "markets:open"
	CacheTTL            = 1 * time.Minute

	// EventChannel carries every observable engine event as a JSON envelope.
	EventChannel = "market:events"
)

var ErrMarketNotFound = registry.ErrMarketNotFound

type MarketService struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Registry *registry.Registry
	Ledger   *ledger.MemoryLedger
	Chain    *ledger.ChainReader
}

// NewMarketService wires the service. DB and Redis may be nil in dev/test
// mode; journaling and caching degrade to no-ops.
func NewMarketService(db *gorm.DB, rdb *redis.Client, reg *registry.Registry, led *ledger.MemoryLedger, chain *ledger.ChainReader) *MarketService {
	return &MarketService{
		DB:       db,
		Redis:    rdb,
		Registry: reg,
		Ledger:   led,
		Chain:    chain,
	}
}

// MarketSummary is the API/cache projection of an engine snapshot.
type MarketSummary struct {
	ID             string    `json:"id"`
	Question       string    `json:"question"`
	Host           string    `json:"host"`
	Custody        string    `json:"custody"`
	Deadline       time.Time `json:"deadline"`
	FeeBps         int64     `json:"fee_bps"`
	Status         string    `json:"status"`
	YesPool        string    `json:"yes_pool"`
	NoPool         string    `json:"no_pool"`
	TotalYesShares string    `json:"total_yes_shares"`
	TotalNoShares  string    `json:"total_no_shares"`
	AccruedFees    string    `json:"accrued_fees"`
	HeldCollateral string    `json:"held_collateral"`
	ResolvedYes    bool      `json:"resolved_yes"`
	ResolvedPot    string    `json:"resolved_pot"`
	YesPrice       float64   `json:"yes_price"`
	NoPrice        float64   `json:"no_price"`
}

// SummaryOf projects an engine snapshot into the API/cache shape.
func SummaryOf(s engine.Snapshot) MarketSummary {
	return MarketSummary{
		ID:             s.ID,
		Question:       s.Question,
		Host:           s.Host.Hex(),
		Custody:        s.Custody.Hex(),
		Deadline:       s.Deadline,
		FeeBps:         s.FeeBps,
		Status:         string(s.Status),
		YesPool:        s.YesPool.String(),
		NoPool:         s.NoPool.String(),
		TotalYesShares: s.TotalYesShares.String(),
		TotalNoShares:  s.TotalNoShares.String(),
		AccruedFees:    s.AccruedFees.String(),
		HeldCollateral: s.Held.String(),
		ResolvedYes:    s.ResolvedYes,
		ResolvedPot:    s.ResolvedPot.String(),
		YesPrice:       engine.PriceFloat(s.YesPrice),
		NoPrice:        engine.PriceFloat(s.NoPrice),
	}
}

// CreateMarket creates and indexes a new market and journals its initial row.
func (s *MarketService) CreateMarket(ctx context.Context, creator common.Address, p registry.CreateParams) (*engine.Market, error) {
	m, err := s.Registry.Create(ctx, creator, p)
	if err != nil {
		return nil, err
	}

	s.journalMarket(ctx, m)
	s.invalidateCache(ctx)
	return m, nil
}

// GetMarket resolves a market by its string ID.
func (s *MarketService) GetMarket(id string) (*engine.Market, error) {
	return s.Registry.GetByString(id)
}

// ListMarkets returns summaries of all listed markets, cache-first.
func (s *MarketService) ListMarkets(ctx context.Context) ([]MarketSummary, error) {
	if s.Redis != nil {
		if val, err := s.Redis.Get(ctx, CacheKeyOpenMarkets).Result(); err == nil {
			var cached []MarketSummary
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return cached, nil
			}
			// Corrupt cache entry falls through to a live rebuild
		}
	}

	markets := s.Registry.List()
	summaries := make([]MarketSummary, 0, len(markets))
	for _, m := range markets {
		summaries = append(summaries, SummaryOf(m.Snapshot()))
	}

	if s.Redis != nil {
		if data, err := json.Marshal(summaries); err == nil {
			if err := s.Redis.Set(ctx, CacheKeyOpenMarkets, data, CacheTTL).Err(); err != nil {
				logger.Error("Failed to set market list cache: %v", err)
			}
		}
	}

	return summaries, nil
}

// Delist hides a market from listings (registry admin only) and marks the
// journal row.
func (s *MarketService) Delist(ctx context.Context, caller common.Address, id uuid.UUID) error {
	if err := s.Registry.Delist(caller, id); err != nil {
		return err
	}
	if s.DB != nil {
		if err := s.DB.WithContext(ctx).Model(&models.Market{}).
			Where("id = ?", id).
			Update("delisted", true).Error; err != nil {
			logger.Error("Failed to mark market %s delisted: %v", id, err)
		}
	}
	s.invalidateCache(ctx)
	return nil
}

// TradeHistory returns the most recent journaled trades for a market.
func (s *MarketService) TradeHistory(ctx context.Context, marketID uuid.UUID, limit int) ([]models.Trade, error) {
	if s.DB == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var trades []models.Trade
	if err := s.DB.WithContext(ctx).
		Where("market_id = ?", marketID).
		Order("executed_at DESC").
		Limit(limit).
		Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", err)
	}
	return trades, nil
}

// HandleEvent is the engine event sink: journal to Postgres, refresh the
// journal row, and publish the envelope on the event channel.
func (s *MarketService) HandleEvent(ev engine.Event) {
	ctx := context.Background()

	switch e := ev.(type) {
	case engine.TradeExecuted:
		s.journalTrade(ctx, e)
	case engine.RewardClaimed:
		s.journalClaim(ctx, e.MarketID, e.Claimant.Hex(), models.ClaimKindReward, e.Amount.String(), e.At)
	case engine.RefundClaimed:
		s.journalClaim(ctx, e.MarketID, e.Claimant.Hex(), models.ClaimKindRefund, e.Amount.String(), e.At)
	case engine.FeesWithdrawn:
		s.journalClaim(ctx, e.MarketID, e.Host.Hex(), models.ClaimKindFees, e.Amount.String(), e.At)
	}

	if m, err := s.Registry.GetByString(ev.Market()); err == nil {
		s.journalMarket(ctx, m)
	}
	s.invalidateCache(ctx)
	s.publishEvent(ctx, ev)
}

func (s *MarketService) journalMarket(ctx context.Context, m *engine.Market) {
	if s.DB == nil {
		return
	}

	snap := m.Snapshot()
	id, err := uuid.Parse(snap.ID)
	if err != nil {
		logger.Error("Market %s has a non-uuid id; skipping journal", snap.ID)
		return
	}

	row := models.Market{
		ID:             id,
		Question:       snap.Question,
		Host:           snap.Host.Hex(),
		Custody:        snap.Custody.Hex(),
		Deadline:       snap.Deadline,
		FeeBps:         snap.FeeBps,
		Status:         models.MarketStatus(snap.Status),
		YesPool:        snap.YesPool.String(),
		NoPool:         snap.NoPool.String(),
		TotalYesShares: snap.TotalYesShares.String(),
		TotalNoShares:  snap.TotalNoShares.String(),
		AccruedFees:    snap.AccruedFees.String(),
		HeldCollateral: snap.Held.String(),
		ResolvedYes:    snap.ResolvedYes,
		ResolvedPot:    snap.ResolvedPot.String(),
		YesPrice:       engine.PriceFloat(snap.YesPrice),
		NoPrice:        engine.PriceFloat(snap.NoPrice),
	}

	err = s.withSerializationRetry(func() error {
		return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status",
				"yes_pool",
				"no_pool",
				"total_yes_shares",
				"total_no_shares",
				"accrued_fees",
				"held_collateral",
				"resolved_yes",
				"resolved_pot",
				"yes_price",
				"no_price",
			}),
		}).Create(&row).Error
	})
	if err != nil {
		logger.Error("Failed to journal market %s: %v", snap.ID, err)
	}
}

func (s *MarketService) journalTrade(ctx context.Context, e engine.TradeExecuted) {
	if s.DB == nil {
		return
	}
	marketID, err := uuid.Parse(e.MarketID)
	if err != nil {
		return
	}
	trade := models.Trade{
		MarketID:   marketID,
		Trader:     e.Trader.Hex(),
		Side:       models.TradeSide(e.Side),
		AmountIn:   e.AmountIn.String(),
		Fee:        e.Fee.String(),
		SharesOut:  e.SharesOut.String(),
		YesPrice:   engine.PriceFloat(e.YesPrice),
		NoPrice:    engine.PriceFloat(e.NoPrice),
		ExecutedAt: e.At,
	}
	if err := s.DB.WithContext(ctx).Create(&trade).Error; err != nil {
		logger.Error("Failed to journal trade on market %s: %v", e.MarketID, err)
	}
}

func (s *MarketService) journalClaim(ctx context.Context, marketID, address string, kind models.ClaimKind, amount string, at time.Time) {
	if s.DB == nil {
		return
	}
	id, err := uuid.Parse(marketID)
	if err != nil {
		return
	}
	claim := models.Claim{
		MarketID:  id,
		Address:   address,
		Kind:      kind,
		Amount:    amount,
		ClaimedAt: at,
	}
	if err := s.DB.WithContext(ctx).Create(&claim).Error; err != nil {
		logger.Error("Failed to journal %s claim on market %s: %v", kind, marketID, err)
	}
}

// withSerializationRetry retries deadlock/serialization failures with jittered
// backoff.
func (s *MarketService) withSerializationRetry(op func() error) error {
	const maxRetries = 5
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == "40P01" || pgErr.Code == "40001") {
			backoff := time.Duration(attempt*100+rand.Intn(100)) * time.Millisecond
			time.Sleep(backoff)
			continue
		}
		break
	}
	return err
}

func (s *MarketService) invalidateCache(ctx context.Context) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(ctx, CacheKeyOpenMarkets).Err(); err != nil {
		logger.Error("Failed to invalidate market list cache: %v", err)
	}
}

func (s *MarketService) publishEvent(ctx context.Context, ev engine.Event) {
	if s.Redis == nil {
		return
	}
	payload, err := json.Marshal(EventEnvelope(ev))
	if err != nil {
		logger.Error("Failed to marshal event %s: %v", ev.EventType(), err)
		return
	}
	if err := s.Redis.Publish(ctx, EventChannel, payload).Err(); err != nil {
		logger.Error("Failed to publish event %s: %v", ev.EventType(), err)
	}
}

// EventEnvelope flattens an engine event into the JSON shape carried on the
// event channel and the streaming endpoints.
func EventEnvelope(ev engine.Event) map[string]interface{} {
	env := map[string]interface{}{
		"type":      ev.EventType(),
		"market_id": ev.Market(),
	}

	switch e := ev.(type) {
	case engine.TradeExecuted:
		env["trader"] = e.Trader.Hex()
		env["side"] = string(e.Side)
		env["amount_in"] = e.AmountIn.String()
		env["fee"] = e.Fee.String()
		env["shares_out"] = e.SharesOut.String()
		env["yes_price"] = engine.PriceFloat(e.YesPrice)
		env["no_price"] = engine.PriceFloat(e.NoPrice)
		env["at"] = e.At.UTC().Format(time.RFC3339Nano)
	case engine.MarketResolved:
		env["outcome_yes"] = e.OutcomeYes
		env["resolved_pot"] = e.ResolvedPot.String()
		env["at"] = e.At.UTC().Format(time.RFC3339Nano)
	case engine.MarketExpired:
		env["at"] = e.At.UTC().Format(time.RFC3339Nano)
	case engine.RewardClaimed:
		env["claimant"] = e.Claimant.Hex()
		env["amount"] = e.Amount.String()
		env["at"] = e.At.UTC().Format(time.RFC3339Nano)
	case engine.RefundClaimed:
		env["claimant"] = e.Claimant.Hex()
		env["amount"] = e.Amount.String()
		env["at"] = e.At.UTC().Format(time.RFC3339Nano)
	case engine.FeesWithdrawn:
		env["host"] = e.Host.Hex()
		env["amount"] = e.Amount.String()
		env["at"] = e.At.UTC().Format(time.RFC3339Nano)
	}

	return env
}
