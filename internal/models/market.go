/**
 * @description
 * Market journal row.
 * Maps to the 'markets' table in PostgreSQL. The engine's in-memory state is
 * the source of truth; this row is the indexed off-chain journal updated from
 * engine snapshots on every observable event.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/google/uuid
 */

package models

import (
	"time"

	"github.com/google/uuid"
)

// MarketStatus mirrors the engine lifecycle states.
type MarketStatus string

const (
	MarketStatusOpen     MarketStatus = "OPEN"
	MarketStatusResolved MarketStatus = "RESOLVED"
	MarketStatusExpired  MarketStatus = "EXPIRED"
)

// Market represents one market engine instance in the journal.
// Pool, share and collateral amounts are decimal strings in collateral base
// units; numeric(78,0) fits any uint256-scale value without float loss.
type Market struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Question string    `gorm:"column:question" json:"question"`
	Host     string    `gorm:"column:host;index" json:"host"`
	Custody  string    `gorm:"column:custody" json:"custody"`

	Deadline time.Time    `gorm:"column:deadline" json:"deadline"`
	FeeBps   int64        `gorm:"column:fee_bps" json:"fee_bps"`
	Status   MarketStatus `gorm:"column:status;type:varchar(16);index" json:"status"`

	YesPool        string `gorm:"column:yes_pool;type:numeric(78,0)" json:"yes_pool"`
	NoPool         string `gorm:"column:no_pool;type:numeric(78,0)" json:"no_pool"`
	TotalYesShares string `gorm:"column:total_yes_shares;type:numeric(78,0)" json:"total_yes_shares"`
	TotalNoShares  string `gorm:"column:total_no_shares;type:numeric(78,0)" json:"total_no_shares"`
	AccruedFees    string `gorm:"column:accrued_fees;type:numeric(78,0)" json:"accrued_fees"`
	HeldCollateral string `gorm:"column:held_collateral;type:numeric(78,0)" json:"held_collateral"`

	ResolvedYes bool   `gorm:"column:resolved_yes" json:"resolved_yes"`
	ResolvedPot string `gorm:"column:resolved_pot;type:numeric(78,0)" json:"resolved_pot"`

	YesPrice float64 `gorm:"column:yes_price;type:decimal(10,8)" json:"yes_price"`
	NoPrice  float64 `gorm:"column:no_price;type:decimal(10,8)" json:"no_price"`

	Delisted bool `gorm:"column:delisted;default:false" json:"delisted"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Market to `markets`
func (Market) TableName() string {
	return "markets"
}
