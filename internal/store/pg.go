package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	"github.com/feral-file/ff-rewards/internal/store/schema"
)

// uniqueViolationCode is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolationCode = "23505"

type pgStore struct {
	db *gorm.DB
}

func hasDBResolver(db *gorm.DB) bool {
	return db != nil && db.Callback().Query().Get("gorm:db_resolver") != nil
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// Zero values fall back to the defaults of NormalizeConnectionPoolSettings.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint violation
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// validID reports whether id can be compared against a uuid column.
// Lookups by a malformed id behave as if the row is missing.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// primary routes reads to the primary when a read replica resolver is registered.
// Balances, ledger history and claim history go through it so that reads issued
// right after a write observe it and agree with each other.
func (s *pgStore) primary(ctx context.Context) *gorm.DB {
	db := s.db.WithContext(ctx)
	if hasDBResolver(s.db) {
		return db.Clauses(dbresolver.Write)
	}
	return db
}

// Transaction runs fn inside a database transaction
func (s *pgStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&pgStore{db: tx})
	})
}

// =============================================================================
// Tokens
// =============================================================================

// CreateToken inserts a new token
func (s *pgStore) CreateToken(ctx context.Context, token *schema.Token) error {
	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

// SaveToken updates every column of an existing token
func (s *pgStore) SaveToken(ctx context.Context, token *schema.Token) error {
	if err := s.db.WithContext(ctx).Save(token).Error; err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// GetTokenByID retrieves a token by its ID
func (s *pgStore) GetTokenByID(ctx context.Context, id string) (*schema.Token, error) {
	if !validID(id) {
		return nil, nil
	}
	var token schema.Token
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return &token, nil
}

// GetTokenByIDForUpdate retrieves a token with a row lock
func (s *pgStore) GetTokenByIDForUpdate(ctx context.Context, id string) (*schema.Token, error) {
	if !validID(id) {
		return nil, nil
	}
	var token schema.Token
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock token: %w", err)
	}
	return &token, nil
}

// GetTokens lists tokens
func (s *pgStore) GetTokens(ctx context.Context, filter TokenFilter) ([]schema.Token, error) {
	query := s.db.WithContext(ctx).Model(&schema.Token{})
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	var tokens []schema.Token
	if err := query.Order("created_at ASC, id ASC").Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	return tokens, nil
}

// =============================================================================
// Ledger
// =============================================================================

// CreateTokenTransaction appends a ledger entry
func (s *pgStore) CreateTokenTransaction(ctx context.Context, txn *schema.TokenTransaction) error {
	if err := s.db.WithContext(ctx).Create(txn).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create token transaction: %w", err)
	}
	return nil
}

// IncrementUserTokenBalance upserts the balance row, adding amount to the stored balance
func (s *pgStore) IncrementUserTokenBalance(ctx context.Context, userID, tokenID string, amount decimal.Decimal, at time.Time) error {
	balance := schema.UserTokenBalance{
		UserID:    userID,
		TokenID:   tokenID,
		Balance:   amount,
		UpdatedAt: at,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "token_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance":    gorm.Expr("user_token_balances.balance + EXCLUDED.balance"),
			"updated_at": gorm.Expr("EXCLUDED.updated_at"),
		}),
	}).Create(&balance).Error
	if err != nil {
		return fmt.Errorf("failed to increment balance: %w", err)
	}
	return nil
}

// GetUserTokenBalance returns the balance of a user for a token
func (s *pgStore) GetUserTokenBalance(ctx context.Context, userID, tokenID string) (decimal.Decimal, error) {
	if !validID(tokenID) {
		return decimal.Zero, nil
	}
	var balance schema.UserTokenBalance
	err := s.primary(ctx).
		Where("user_id = ? AND token_id = ?", userID, tokenID).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance.Balance, nil
}

// GetUserTokenBalances returns all balances of a user
func (s *pgStore) GetUserTokenBalances(ctx context.Context, userID string) ([]schema.UserTokenBalance, error) {
	var balances []schema.UserTokenBalance
	err := s.primary(ctx).
		Where("user_id = ?", userID).
		Order("token_id ASC").
		Find(&balances).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get balances: %w", err)
	}
	return balances, nil
}

// GetTokenTransactions returns one newest-first page of a user's ledger entries
func (s *pgStore) GetTokenTransactions(ctx context.Context, filter TokenTransactionFilter) ([]schema.TokenTransaction, error) {
	if filter.TokenID != nil && !validID(*filter.TokenID) {
		return []schema.TokenTransaction{}, nil
	}

	query := s.primary(ctx).
		Model(&schema.TokenTransaction{}).
		Where("user_id = ?", filter.UserID)

	if filter.TokenID != nil {
		query = query.Where("token_id = ?", *filter.TokenID)
	}
	if filter.Before != nil {
		query = query.Where("(created_at, id) < (?, ?)", filter.Before.CreatedAt, filter.Before.ID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var txns []schema.TokenTransaction
	if err := query.Order("created_at DESC, id DESC").Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("failed to get token transactions: %w", err)
	}
	return txns, nil
}

// SumTokenTransactions returns the net issued amount of a token
func (s *pgStore) SumTokenTransactions(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	if !validID(tokenID) {
		return decimal.Zero, nil
	}
	var sum decimal.Decimal
	err := s.db.WithContext(ctx).
		Model(&schema.TokenTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("token_id = ?", tokenID).
		Row().
		Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum token transactions: %w", err)
	}
	return sum, nil
}

// =============================================================================
// Faucets
// =============================================================================

// CreateFaucet inserts a new faucet
func (s *pgStore) CreateFaucet(ctx context.Context, faucet *schema.Faucet) error {
	if err := s.db.WithContext(ctx).Create(faucet).Error; err != nil {
		return fmt.Errorf("failed to create faucet: %w", err)
	}
	return nil
}

// SaveFaucet updates every column of an existing faucet
func (s *pgStore) SaveFaucet(ctx context.Context, faucet *schema.Faucet) error {
	if err := s.db.WithContext(ctx).Save(faucet).Error; err != nil {
		return fmt.Errorf("failed to save faucet: %w", err)
	}
	return nil
}

// GetFaucetByID retrieves a faucet by its ID
func (s *pgStore) GetFaucetByID(ctx context.Context, id string) (*schema.Faucet, error) {
	if !validID(id) {
		return nil, nil
	}
	var faucet schema.Faucet
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&faucet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get faucet: %w", err)
	}
	return &faucet, nil
}

// GetFaucetByIDForUpdate retrieves a faucet with a row lock
func (s *pgStore) GetFaucetByIDForUpdate(ctx context.Context, id string) (*schema.Faucet, error) {
	if !validID(id) {
		return nil, nil
	}
	var faucet schema.Faucet
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&faucet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock faucet: %w", err)
	}
	return &faucet, nil
}

// GetFaucets lists faucets
func (s *pgStore) GetFaucets(ctx context.Context, activeOnly bool) ([]schema.Faucet, error) {
	query := s.db.WithContext(ctx).Model(&schema.Faucet{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var faucets []schema.Faucet
	if err := query.Order("created_at ASC, id ASC").Find(&faucets).Error; err != nil {
		return nil, fmt.Errorf("failed to get faucets: %w", err)
	}
	return faucets, nil
}

// LockFaucetClaimant takes a transaction scoped advisory lock on (user, faucet).
// It must be called inside Transaction; outside of one the lock is released immediately.
func (s *pgStore) LockFaucetClaimant(ctx context.Context, userID, faucetID string) error {
	key := fmt.Sprintf("faucet_claim:%s:%s", faucetID, userID)
	if err := s.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", key).Error; err != nil {
		return fmt.Errorf("failed to lock faucet claimant: %w", err)
	}
	return nil
}

// GetFaucetClaimSummary returns the claim count and latest claim time of a user on a faucet
func (s *pgStore) GetFaucetClaimSummary(ctx context.Context, userID, faucetID string) (FaucetClaimSummary, error) {
	var summary FaucetClaimSummary
	if !validID(faucetID) {
		return summary, nil
	}
	err := s.primary(ctx).
		Model(&schema.FaucetClaim{}).
		Select("COUNT(*) AS count, MAX(created_at) AS last_claim_at").
		Where("user_id = ? AND faucet_id = ?", userID, faucetID).
		Scan(&summary).Error
	if err != nil {
		return FaucetClaimSummary{}, fmt.Errorf("failed to get faucet claim summary: %w", err)
	}
	return summary, nil
}

// CreateFaucetClaim inserts a faucet claim
func (s *pgStore) CreateFaucetClaim(ctx context.Context, claim *schema.FaucetClaim) error {
	if err := s.db.WithContext(ctx).Create(claim).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create faucet claim: %w", err)
	}
	return nil
}

// GetFaucetClaims lists the claims of a user on a faucet
func (s *pgStore) GetFaucetClaims(ctx context.Context, userID, faucetID string) ([]schema.FaucetClaim, error) {
	var claims []schema.FaucetClaim
	if !validID(faucetID) {
		return claims, nil
	}
	err := s.primary(ctx).
		Where("user_id = ? AND faucet_id = ?", userID, faucetID).
		Order("created_at DESC, claim_number DESC").
		Find(&claims).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get faucet claims: %w", err)
	}
	return claims, nil
}

// =============================================================================
// Airdrops
// =============================================================================

// CreateAirdrop inserts a new airdrop
func (s *pgStore) CreateAirdrop(ctx context.Context, airdrop *schema.Airdrop) error {
	if err := s.db.WithContext(ctx).Create(airdrop).Error; err != nil {
		return fmt.Errorf("failed to create airdrop: %w", err)
	}
	return nil
}

// SaveAirdrop updates every column of an existing airdrop
func (s *pgStore) SaveAirdrop(ctx context.Context, airdrop *schema.Airdrop) error {
	if err := s.db.WithContext(ctx).Save(airdrop).Error; err != nil {
		return fmt.Errorf("failed to save airdrop: %w", err)
	}
	return nil
}

// GetAirdropByID retrieves an airdrop by its ID
func (s *pgStore) GetAirdropByID(ctx context.Context, id string) (*schema.Airdrop, error) {
	if !validID(id) {
		return nil, nil
	}
	var airdrop schema.Airdrop
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&airdrop).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get airdrop: %w", err)
	}
	return &airdrop, nil
}

// GetAirdropByIDForUpdate retrieves an airdrop with a row lock
func (s *pgStore) GetAirdropByIDForUpdate(ctx context.Context, id string) (*schema.Airdrop, error) {
	if !validID(id) {
		return nil, nil
	}
	var airdrop schema.Airdrop
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&airdrop).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock airdrop: %w", err)
	}
	return &airdrop, nil
}

// GetAirdrops lists airdrops
func (s *pgStore) GetAirdrops(ctx context.Context, filter AirdropFilter) ([]schema.Airdrop, error) {
	query := s.db.WithContext(ctx).Model(&schema.Airdrop{})
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.Type != nil {
		query = query.Where("airdrop_type = ?", *filter.Type)
	}

	var airdrops []schema.Airdrop
	if err := query.Order("created_at ASC, id ASC").Find(&airdrops).Error; err != nil {
		return nil, fmt.Errorf("failed to get airdrops: %w", err)
	}
	return airdrops, nil
}

// GetAirdropClaim retrieves the claim of a user on an airdrop
func (s *pgStore) GetAirdropClaim(ctx context.Context, userID, airdropID string) (*schema.AirdropClaim, error) {
	if !validID(airdropID) {
		return nil, nil
	}
	var claim schema.AirdropClaim
	err := s.primary(ctx).
		Where("user_id = ? AND airdrop_id = ?", userID, airdropID).
		First(&claim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get airdrop claim: %w", err)
	}
	return &claim, nil
}

// GetAirdropClaimsByUser lists every airdrop claim of a user
func (s *pgStore) GetAirdropClaimsByUser(ctx context.Context, userID string) ([]schema.AirdropClaim, error) {
	var claims []schema.AirdropClaim
	err := s.primary(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&claims).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get airdrop claims: %w", err)
	}
	return claims, nil
}

// CreateAirdropClaim inserts an airdrop claim
func (s *pgStore) CreateAirdropClaim(ctx context.Context, claim *schema.AirdropClaim) error {
	if err := s.db.WithContext(ctx).Create(claim).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create airdrop claim: %w", err)
	}
	return nil
}

// IncrementAirdropDistributed adds amount to distributed_amount.
// The chk_airdrops_distributed constraint rejects totals above total_amount.
func (s *pgStore) IncrementAirdropDistributed(ctx context.Context, airdropID string, amount decimal.Decimal, at time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&schema.Airdrop{}).
		Where("id = ?", airdropID).
		Updates(map[string]interface{}{
			"distributed_amount": gorm.Expr("distributed_amount + ?", amount),
			"updated_at":         at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to increment distributed amount: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to increment distributed amount: airdrop %s not found", airdropID)
	}
	return nil
}
