package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Faucet represents the faucets table - recurring, cooldown-gated claim policies
type Faucet struct {
	// ID is a UUID
	ID string `gorm:"column:id;primaryKey;type:uuid"`
	// TokenID references the token granted by this faucet
	TokenID string `gorm:"column:token_id;not null;type:uuid"`
	// AmountPerClaim is granted on every successful claim
	AmountPerClaim decimal.Decimal `gorm:"column:amount_per_claim;not null;type:numeric(36,18)"`
	// ClaimIntervalHours is the cooldown between two claims of the same user
	ClaimIntervalHours int `gorm:"column:claim_interval_hours;not null"`
	// MaxClaimsPerUser caps the number of claims per user (nil means unlimited)
	MaxClaimsPerUser *int `gorm:"column:max_claims_per_user"`
	// StartDate opens the claim window (nil means open since creation)
	StartDate *time.Time `gorm:"column:start_date;type:timestamptz"`
	// EndDate closes the claim window (nil means never)
	EndDate *time.Time `gorm:"column:end_date;type:timestamptz"`
	// IsActive is the soft deactivation flag
	IsActive bool `gorm:"column:is_active;not null"`
	// Description is shown to users
	Description *string `gorm:"column:description;type:text"`
	// CreatedAt is the timestamp when this faucet was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this faucet was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Faucet model
func (Faucet) TableName() string {
	return "faucets"
}

// ClaimInterval returns the cooldown as a duration
func (f *Faucet) ClaimInterval() time.Duration {
	return time.Duration(f.ClaimIntervalHours) * time.Hour
}
