/**
 * @description
 * Claim journal row.
 * Maps to the 'claims' table in PostgreSQL. One row per payout leaving market
 * custody: reward claims, refunds, and host fee withdrawals.
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

// ClaimKind distinguishes the payout path.
type ClaimKind string

const (
	ClaimKindReward ClaimKind = "REWARD"
	ClaimKindRefund ClaimKind = "REFUND"
	ClaimKindFees   ClaimKind = "FEES"
)

// Claim represents collateral leaving a market's custody account.
type Claim struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	MarketID uuid.UUID `gorm:"type:uuid;not null;index:idx_claims_market" json:"market_id"`
	Address  string    `gorm:"column:address;index:idx_claims_address" json:"address"`
	Kind     ClaimKind `gorm:"column:kind;type:varchar(8)" json:"kind"`
	Amount   string    `gorm:"column:amount;type:numeric(78,0)" json:"amount"`

	ClaimedAt time.Time `gorm:"column:claimed_at" json:"claimed_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName overrides the table name used by Claim to `claims`
func (Claim) TableName() string {
	return "claims"
}

// BeforeCreate ensures UUID is generated if not present
func (c *Claim) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}
