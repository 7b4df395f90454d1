package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// FaucetClaim represents the faucet_claims table - one row per successful faucet claim
type FaucetClaim struct {
	// ID is a UUID
	ID string `gorm:"column:id;primaryKey;type:uuid"`
	// UserID is the claimant
	UserID string `gorm:"column:user_id;not null;type:text;uniqueIndex:idx_faucet_claims_user_faucet_number,priority:1"`
	// FaucetID references the faucet
	FaucetID string `gorm:"column:faucet_id;not null;type:uuid;uniqueIndex:idx_faucet_claims_user_faucet_number,priority:2"`
	// ClaimNumber is the 1-based sequence of this claim for (user, faucet)
	ClaimNumber int `gorm:"column:claim_number;not null;uniqueIndex:idx_faucet_claims_user_faucet_number,priority:3"`
	// Amount is the amount granted
	Amount decimal.Decimal `gorm:"column:amount;not null;type:numeric(36,18)"`
	// CreatedAt is the claim time used for the cooldown of the next claim
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the FaucetClaim model
func (FaucetClaim) TableName() string {
	return "faucet_claims"
}
