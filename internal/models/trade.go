/**
 * @description
 * Trade journal row.
 * Maps to the 'trades' table in PostgreSQL. One row per executed buy, written
 * from the engine's TradeExecuted event for auditing and history endpoints.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/google/uuid
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TradeSide is the purchased outcome side.
type TradeSide string

const (
	TradeSideYes TradeSide = "YES"
	TradeSideNo  TradeSide = "NO"
)

// Trade represents a single executed position purchase.
type Trade struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	MarketID uuid.UUID `gorm:"type:uuid;not null;index:idx_trades_market" json:"market_id"`
	Trader   string    `gorm:"column:trader;index:idx_trades_trader" json:"trader"`
	Side     TradeSide `gorm:"column:side;type:varchar(4)" json:"side"`

	AmountIn  string `gorm:"column:amount_in;type:numeric(78,0)" json:"amount_in"`
	Fee       string `gorm:"column:fee;type:numeric(78,0)" json:"fee"`
	SharesOut string `gorm:"column:shares_out;type:numeric(78,0)" json:"shares_out"`

	YesPrice float64 `gorm:"column:yes_price;type:decimal(10,8)" json:"yes_price"`
	NoPrice  float64 `gorm:"column:no_price;type:decimal(10,8)" json:"no_price"`

	ExecutedAt time.Time `gorm:"column:executed_at;index" json:"executed_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName overrides the table name used by Trade to `trades`
func (Trade) TableName() string {
	return "trades"
}

// BeforeCreate ensures UUID is generated if not present
func (t *Trade) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}
