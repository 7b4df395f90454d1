package schema

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/feral-file/ff-rewards/internal/domain"
)

// TokenTransaction represents the token_transactions table - the append-only ledger.
// Rows are never updated or deleted.
type TokenTransaction struct {
	// ID is a ULID so that identifiers sort by creation time
	ID string `gorm:"column:id;primaryKey;type:char(26)"`
	// UserID is the identifier of the user owning the entry
	UserID string `gorm:"column:user_id;not null;type:text;index:idx_token_transactions_user_created,priority:1"`
	// TokenID references the token
	TokenID string `gorm:"column:token_id;not null;type:uuid"`
	// Amount is signed; withdrawals are negative
	Amount decimal.Decimal `gorm:"column:amount;not null;type:numeric(36,18)"`
	// Kind is the transaction kind (deposit, withdrawal, faucet, airdrop, referral_bonus, adjustment)
	Kind domain.TransactionKind `gorm:"column:kind;not null;type:text"`
	// Description is an optional free text note
	Description *string `gorm:"column:description;type:text"`
	// ReferenceID is the faucet or airdrop claim that produced this entry, if any
	ReferenceID *string `gorm:"column:reference_id;type:text"`
	// CreatedAt is the timestamp when this entry was written
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz;index:idx_token_transactions_user_created,priority:2"`
}

// TableName specifies the table name for the TokenTransaction model
func (TokenTransaction) TableName() string {
	return "token_transactions"
}
