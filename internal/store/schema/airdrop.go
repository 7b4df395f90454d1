package schema

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-rewards/internal/domain"
)

// Airdrop represents the airdrops table - one-time reward campaigns
type Airdrop struct {
	// ID is a UUID
	ID string `gorm:"column:id;primaryKey;type:uuid"`
	// TokenID references the token granted by this airdrop
	TokenID string `gorm:"column:token_id;not null;type:uuid"`
	// AmountPerUser is granted once to every recipient
	AmountPerUser decimal.Decimal `gorm:"column:amount_per_user;not null;type:numeric(36,18)"`
	// AirdropType is either claim (user initiated) or distribution (administrator pushed)
	AirdropType domain.AirdropType `gorm:"column:airdrop_type;not null;type:text"`
	// TotalAmount is the budget of the campaign
	TotalAmount decimal.Decimal `gorm:"column:total_amount;not null;type:numeric(36,18)"`
	// DistributedAmount is the running total granted so far, never above TotalAmount
	DistributedAmount decimal.Decimal `gorm:"column:distributed_amount;not null;type:numeric(36,18)"`
	// Criteria holds the JSON encoded domain.AirdropCriteria
	Criteria datatypes.JSON `gorm:"column:criteria;type:jsonb"`
	// StartDate opens the claim window (nil means open since creation)
	StartDate *time.Time `gorm:"column:start_date;type:timestamptz"`
	// EndDate closes the claim window (nil means never)
	EndDate *time.Time `gorm:"column:end_date;type:timestamptz"`
	// IsActive is the soft deactivation flag
	IsActive bool `gorm:"column:is_active;not null"`
	// Description is shown to users
	Description *string `gorm:"column:description;type:text"`
	// CreatedAt is the timestamp when this airdrop was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this airdrop was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Airdrop model
func (Airdrop) TableName() string {
	return "airdrops"
}

// RemainingAmount returns how much of the budget is still available
func (a *Airdrop) RemainingAmount() decimal.Decimal {
	return a.TotalAmount.Sub(a.DistributedAmount)
}
