/**
 * @description
 * Price History database model.
 * Maps to the 'price_history' table in PostgreSQL. Written by the worker from
 * the trade event stream.
 *
 * @dependencies
 * - gorm.io/gorm
 */

package models

import (
	"time"

	"github.com/google/uuid"
)

// PriceHistory represents a historical price point for a market side
type PriceHistory struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	MarketID  uuid.UUID `gorm:"type:uuid;column:market_id;index:idx_price_history_market_time" json:"market_id"`
	Side      TradeSide `gorm:"column:side;type:varchar(4)" json:"side"`
	Price     float64   `gorm:"column:price;type:decimal(10,8)" json:"price"`
	Timestamp time.Time `gorm:"column:timestamp;index:idx_price_history_market_time" json:"timestamp"`
}

// TableName overrides the table name used by PriceHistory to `price_history`
func (PriceHistory) TableName() string {
	return "price_history"
}
