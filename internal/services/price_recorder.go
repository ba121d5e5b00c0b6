/**
 * @description
 * PriceRecorder persists a price history point for each executed trade.
 * Runs in the worker process: it consumes the Redis event channel rather than
 * sitting in the API's trade path, so a slow Postgres write never delays a
 * trade response.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9
 * - gorm.io/gorm
 */

package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/vjbhandari61/prediction-market/internal/logger"
	"github.com/vjbhandari61/prediction-market/internal/models"
)

// PriceRecorder tails the event channel and journals price points.
type PriceRecorder struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewPriceRecorder(db *gorm.DB, rdb *redis.Client) *PriceRecorder {
	return &PriceRecorder{DB: db, Redis: rdb}
}

// tradeEnvelope is the subset of the trade event envelope the recorder needs.
type tradeEnvelope struct {
	Type     string  `json:"type"`
	MarketID string  `json:"market_id"`
	YesPrice float64 `json:"yes_price"`
	NoPrice  float64 `json:"no_price"`
	At       string  `json:"at"`
}

// Run consumes the event channel until ctx is cancelled, reconnecting with a
// small delay if the subscription drops.
func (r *PriceRecorder) Run(ctx context.Context) error {
	for {
		pubsub := r.Redis.Subscribe(ctx, EventChannel)
		ch := pubsub.Channel()

		for msg := range ch {
			r.handle(ctx, []byte(msg.Payload))
		}

		_ = pubsub.Close()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (r *PriceRecorder) handle(ctx context.Context, payload []byte) {
	var env tradeEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return
	}
	if env.Type != "trade_executed" {
		return
	}
	marketID, err := uuid.Parse(env.MarketID)
	if err != nil {
		return
	}

	at := time.Now().UTC()
	if parsed, err := time.Parse(time.RFC3339Nano, env.At); err == nil {
		at = parsed
	}

	points := []models.PriceHistory{
		{MarketID: marketID, Side: models.TradeSideYes, Price: env.YesPrice, Timestamp: at},
		{MarketID: marketID, Side: models.TradeSideNo, Price: env.NoPrice, Timestamp: at},
	}
	if err := r.DB.WithContext(ctx).Create(&points).Error; err != nil {
		logger.Error("Failed to record price points for market %s: %v", env.MarketID, err)
	}
}
