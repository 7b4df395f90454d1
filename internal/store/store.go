package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/feral-file/ff-rewards/internal/domain"
	"github.com/feral-file/ff-rewards/internal/store/schema"
)

// ErrConflict is returned when an insert violates a uniqueness constraint
var ErrConflict = errors.New("unique constraint conflict")

// TokenFilter filters token listings
type TokenFilter struct {
	ActiveOnly bool
}

// AirdropFilter filters airdrop listings
type AirdropFilter struct {
	ActiveOnly bool
	Type       *domain.AirdropType
}

// TransactionCursor is the keyset position of a ledger entry in newest-first order
type TransactionCursor struct {
	CreatedAt time.Time
	ID        string
}

// TokenTransactionFilter selects one page of a user's ledger entries, newest first
type TokenTransactionFilter struct {
	UserID  string
	TokenID *string
	// Before returns only entries strictly older than the cursor
	Before *TransactionCursor
	Limit  int
}

// FaucetClaimSummary aggregates the claim history of a user on a faucet
type FaucetClaimSummary struct {
	Count       int        `gorm:"column:count"`
	LastClaimAt *time.Time `gorm:"column:last_claim_at"`
}

// Store defines the interface for database operations
type Store interface {
	// Transaction runs fn in a database transaction. The Store passed to fn is bound to
	// the transaction; fn returning an error rolls everything back.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	// CreateToken inserts a new token
	CreateToken(ctx context.Context, token *schema.Token) error
	// SaveToken updates every column of an existing token
	SaveToken(ctx context.Context, token *schema.Token) error
	// GetTokenByID retrieves a token, nil if it does not exist
	GetTokenByID(ctx context.Context, id string) (*schema.Token, error)
	// GetTokenByIDForUpdate retrieves a token and locks it until the transaction ends
	GetTokenByIDForUpdate(ctx context.Context, id string) (*schema.Token, error)
	// GetTokens lists tokens ordered by creation time
	GetTokens(ctx context.Context, filter TokenFilter) ([]schema.Token, error)

	// CreateTokenTransaction appends a ledger entry
	CreateTokenTransaction(ctx context.Context, txn *schema.TokenTransaction) error
	// IncrementUserTokenBalance adds amount to the (user, token) balance, creating the row if needed
	IncrementUserTokenBalance(ctx context.Context, userID, tokenID string, amount decimal.Decimal, at time.Time) error
	// GetUserTokenBalance returns the (user, token) balance, zero when there is no history
	GetUserTokenBalance(ctx context.Context, userID, tokenID string) (decimal.Decimal, error)
	// GetUserTokenBalances returns every balance row of a user
	GetUserTokenBalances(ctx context.Context, userID string) ([]schema.UserTokenBalance, error)
	// GetTokenTransactions returns one page of ledger entries, newest first
	GetTokenTransactions(ctx context.Context, filter TokenTransactionFilter) ([]schema.TokenTransaction, error)
	// SumTokenTransactions returns the net amount issued for a token across all users
	SumTokenTransactions(ctx context.Context, tokenID string) (decimal.Decimal, error)

	// CreateFaucet inserts a new faucet
	CreateFaucet(ctx context.Context, faucet *schema.Faucet) error
	// SaveFaucet updates every column of an existing faucet
	SaveFaucet(ctx context.Context, faucet *schema.Faucet) error
	// GetFaucetByID retrieves a faucet, nil if it does not exist
	GetFaucetByID(ctx context.Context, id string) (*schema.Faucet, error)
	// GetFaucetByIDForUpdate retrieves a faucet and locks it until the transaction ends
	GetFaucetByIDForUpdate(ctx context.Context, id string) (*schema.Faucet, error)
	// GetFaucets lists faucets ordered by creation time
	GetFaucets(ctx context.Context, activeOnly bool) ([]schema.Faucet, error)
	// LockFaucetClaimant serializes claims of one user on one faucet until the transaction ends
	LockFaucetClaimant(ctx context.Context, userID, faucetID string) error
	// GetFaucetClaimSummary returns the number of claims and the time of the latest one
	GetFaucetClaimSummary(ctx context.Context, userID, faucetID string) (FaucetClaimSummary, error)
	// CreateFaucetClaim inserts a claim; ErrConflict if the claim number is already taken
	CreateFaucetClaim(ctx context.Context, claim *schema.FaucetClaim) error
	// GetFaucetClaims lists the claims of a user on a faucet, newest first
	GetFaucetClaims(ctx context.Context, userID, faucetID string) ([]schema.FaucetClaim, error)

	// CreateAirdrop inserts a new airdrop
	CreateAirdrop(ctx context.Context, airdrop *schema.Airdrop) error
	// SaveAirdrop updates every column of an existing airdrop
	SaveAirdrop(ctx context.Context, airdrop *schema.Airdrop) error
	// GetAirdropByID retrieves an airdrop, nil if it does not exist
	GetAirdropByID(ctx context.Context, id string) (*schema.Airdrop, error)
	// GetAirdropByIDForUpdate retrieves an airdrop and locks it until the transaction ends
	GetAirdropByIDForUpdate(ctx context.Context, id string) (*schema.Airdrop, error)
	// GetAirdrops lists airdrops ordered by creation time
	GetAirdrops(ctx context.Context, filter AirdropFilter) ([]schema.Airdrop, error)
	// GetAirdropClaim retrieves the claim of a user on an airdrop, nil if none
	GetAirdropClaim(ctx context.Context, userID, airdropID string) (*schema.AirdropClaim, error)
	// GetAirdropClaimsByUser lists every airdrop claim of a user, newest first
	GetAirdropClaimsByUser(ctx context.Context, userID string) ([]schema.AirdropClaim, error)
	// CreateAirdropClaim inserts a claim; ErrConflict if the user already has one
	CreateAirdropClaim(ctx context.Context, claim *schema.AirdropClaim) error
	// IncrementAirdropDistributed adds amount to the distributed total of an airdrop
	IncrementAirdropDistributed(ctx context.Context, airdropID string, amount decimal.Decimal, at time.Time) error
}
