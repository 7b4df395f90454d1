package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Token represents the tokens table - the catalog of reward tokens
type Token struct {
	// ID is a UUID assigned by the registry
	ID string `gorm:"column:id;primaryKey;type:uuid"`
	// Name is the display name of the token
	Name string `gorm:"column:name;not null;type:text"`
	// Symbol is the uppercase ticker (at most 10 characters)
	Symbol string `gorm:"column:symbol;not null;type:varchar(10)"`
	// Description is an optional free text description
	Description *string `gorm:"column:description;type:text"`
	// LogoURL is an optional logo location
	LogoURL *string `gorm:"column:logo_url;type:text"`
	// TotalSupply is the informational total supply; enforced only when the supply policy is enabled
	TotalSupply decimal.Decimal `gorm:"column:total_supply;not null;type:numeric(36,18)"`
	// IsActive is the soft deactivation flag
	IsActive bool `gorm:"column:is_active;not null"`
	// CreatedAt is the timestamp when this token was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this token was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Token model
func (Token) TableName() string {
	return "tokens"
}
