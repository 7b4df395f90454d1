package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// AirdropClaim represents the airdrop_claims table - at most one row per (user, airdrop)
type AirdropClaim struct {
	// ID is a UUID
	ID string `gorm:"column:id;primaryKey;type:uuid"`
	// UserID is the recipient
	UserID string `gorm:"column:user_id;not null;type:text;uniqueIndex:idx_airdrop_claims_user_airdrop,priority:1"`
	// AirdropID references the airdrop
	AirdropID string `gorm:"column:airdrop_id;not null;type:uuid;uniqueIndex:idx_airdrop_claims_user_airdrop,priority:2"`
	// Amount is the amount granted
	Amount decimal.Decimal `gorm:"column:amount;not null;type:numeric(36,18)"`
	// CreatedAt is the claim or distribution time
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the AirdropClaim model
func (AirdropClaim) TableName() string {
	return "airdrop_claims"
}
