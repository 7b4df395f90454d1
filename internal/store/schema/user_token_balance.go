package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserTokenBalance represents the user_token_balances table - the per-user, per-token balance
// derived from token_transactions. It is only changed in the same database transaction that
// appends a ledger entry.
type UserTokenBalance struct {
	// UserID is the owner of the balance
	UserID string `gorm:"column:user_id;primaryKey;type:text"`
	// TokenID references the token
	TokenID string `gorm:"column:token_id;primaryKey;type:uuid"`
	// Balance is the sum of all ledger amounts for (user, token)
	Balance decimal.Decimal `gorm:"column:balance;not null;type:numeric(36,18)"`
	// UpdatedAt is the timestamp of the last ledger entry applied
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the UserTokenBalance model
func (UserTokenBalance) TableName() string {
	return "user_token_balances"
}
