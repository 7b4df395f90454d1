package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/feral-file/ff-rewards/internal/domain"
	"github.com/feral-file/ff-rewards/internal/store/schema"
)

// UserTokenBalanceResponse represents the balance of a user for one token
type UserTokenBalanceResponse struct {
	TokenID   string          `json:"token_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
	// Token is nil when the token row could not be resolved
	Token *TokenResponse `json:"token,omitempty"`
}

// UserTokenBalanceListResponse represents every balance of a user
type UserTokenBalanceListResponse struct {
	UserID   string                     `json:"user_id"`
	Balances []UserTokenBalanceResponse `json:"balances"`
}

// MapBalancesToDTO maps balance rows, joining the tokens found in tokens
func MapBalancesToDTO(userID string, balances []schema.UserTokenBalance, tokens map[string]*schema.Token) *UserTokenBalanceListResponse {
	items := make([]UserTokenBalanceResponse, len(balances))
	for i, balance := range balances {
		items[i] = UserTokenBalanceResponse{
			TokenID:   balance.TokenID,
			Balance:   balance.Balance,
			UpdatedAt: balance.UpdatedAt,
		}
		if token, ok := tokens[balance.TokenID]; ok && token != nil {
			items[i].Token = MapTokenToDTO(token)
		}
	}
	return &UserTokenBalanceListResponse{UserID: userID, Balances: items}
}

// TransactionResponse represents one ledger entry
type TransactionResponse struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"user_id"`
	TokenID     string                 `json:"token_id"`
	Amount      decimal.Decimal        `json:"amount"`
	Kind        domain.TransactionKind `json:"kind"`
	Description *string                `json:"description,omitempty"`
	ReferenceID *string                `json:"reference_id,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// MapTransactionToDTO maps a ledger row to its response
func MapTransactionToDTO(txn *schema.TokenTransaction) *TransactionResponse {
	return &TransactionResponse{
		ID:          txn.ID,
		UserID:      txn.UserID,
		TokenID:     txn.TokenID,
		Amount:      txn.Amount,
		Kind:        txn.Kind,
		Description: txn.Description,
		ReferenceID: txn.ReferenceID,
		CreatedAt:   txn.CreatedAt,
	}
}

// TransactionListResponse represents ledger entries, newest first
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
}

// MapTransactionsToDTO maps ledger rows to a list response
func MapTransactionsToDTO(txns []schema.TokenTransaction) *TransactionListResponse {
	items := make([]TransactionResponse, len(txns))
	for i := range txns {
		items[i] = *MapTransactionToDTO(&txns[i])
	}
	return &TransactionListResponse{Transactions: items}
}
