package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-rewards/internal/domain"
	"github.com/feral-file/ff-rewards/internal/store"
	"github.com/feral-file/ff-rewards/internal/store/schema"
)

// =============================================================================
// Test Data Builders
// =============================================================================

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}

// buildTestToken creates an active test token
func buildTestToken(symbol string, createdAt time.Time) *schema.Token {
	return &schema.Token{
		ID:          uuid.NewString(),
		Name:        symbol + " Token",
		Symbol:      symbol,
		TotalSupply: dec("1000000"),
		IsActive:    true,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func buildTestTransaction(userID, tokenID, amount string, kind domain.TransactionKind, createdAt time.Time) *schema.TokenTransaction {
	return &schema.TokenTransaction{
		ID:        ulid.Make().String(),
		UserID:    userID,
		TokenID:   tokenID,
		Amount:    dec(amount),
		Kind:      kind,
		CreatedAt: createdAt,
	}
}

func buildTestFaucet(tokenID string, createdAt time.Time) *schema.Faucet {
	return &schema.Faucet{
		ID:                 uuid.NewString(),
		TokenID:            tokenID,
		AmountPerClaim:     dec("10"),
		ClaimIntervalHours: 24,
		IsActive:           true,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
}

func buildTestAirdrop(tokenID string, airdropType domain.AirdropType, createdAt time.Time) *schema.Airdrop {
	return &schema.Airdrop{
		ID:                uuid.NewString(),
		TokenID:           tokenID,
		AmountPerUser:     dec("100"),
		AirdropType:       airdropType,
		TotalAmount:       dec("300"),
		DistributedAmount: decimal.Zero,
		Criteria:          datatypes.JSON(`{"allowed_user_ids":["alice"]}`),
		IsActive:          true,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
}

func mustCreateToken(t *testing.T, s store.Store, symbol string) *schema.Token {
	t.Helper()
	token := buildTestToken(symbol, baseTime)
	require.NoError(t, s.CreateToken(context.Background(), token))
	return token
}

// appendEntry writes a ledger row and its balance delta the way the ledger does
func appendEntry(t *testing.T, s store.Store, txn *schema.TokenTransaction) {
	t.Helper()
	ctx := context.Background()
	err := s.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreateTokenTransaction(ctx, txn); err != nil {
			return err
		}
		return tx.IncrementUserTokenBalance(ctx, txn.UserID, txn.TokenID, txn.Amount, txn.CreatedAt)
	})
	require.NoError(t, err)
}

// =============================================================================
// Test: Tokens
// =============================================================================

func testTokens(t *testing.T, s store.Store) {
	ctx := context.Background()

	t.Run("create and get token", func(t *testing.T) {
		token := buildTestToken("GEM", baseTime)
		desc := "shiny"
		token.Description = &desc
		require.NoError(t, s.CreateToken(ctx, token))

		got, err := s.GetTokenByID(ctx, token.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "GEM", got.Symbol)
		assert.Equal(t, "GEM Token", got.Name)
		assert.True(t, got.IsActive)
		require.NotNil(t, got.Description)
		assert.Equal(t, "shiny", *got.Description)
		assertDecimal(t, "1000000", got.TotalSupply)
	})

	t.Run("missing token returns nil", func(t *testing.T) {
		got, err := s.GetTokenByID(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		token := buildTestToken("DUP", baseTime)
		require.NoError(t, s.CreateToken(ctx, token))

		err := s.Transaction(ctx, func(tx store.Store) error {
			clone := *token
			return tx.CreateToken(ctx, &clone)
		})
		assert.True(t, errors.Is(err, store.ErrConflict))
	})

	t.Run("save token and filter active", func(t *testing.T) {
		inactive := buildTestToken("OFF", baseTime.Add(time.Minute))
		require.NoError(t, s.CreateToken(ctx, inactive))

		inactive.IsActive = false
		inactive.UpdatedAt = baseTime.Add(2 * time.Minute)
		require.NoError(t, s.SaveToken(ctx, inactive))

		got, err := s.GetTokenByID(ctx, inactive.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.False(t, got.IsActive)

		all, err := s.GetTokens(ctx, store.TokenFilter{})
		require.NoError(t, err)
		active, err := s.GetTokens(ctx, store.TokenFilter{ActiveOnly: true})
		require.NoError(t, err)
		assert.Len(t, active, len(all)-1)
		for _, token := range active {
			assert.NotEqual(t, inactive.ID, token.ID)
		}
	})

	t.Run("lock token inside transaction", func(t *testing.T) {
		token := mustCreateToken(t, s, "LCK")
		err := s.Transaction(ctx, func(tx store.Store) error {
			got, err := tx.GetTokenByIDForUpdate(ctx, token.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			// re-entrant within the same transaction
			_, err = tx.GetTokenByIDForUpdate(ctx, token.ID)
			return err
		})
		require.NoError(t, err)
	})
}

// =============================================================================
// Test: Ledger
// =============================================================================

func testLedger(t *testing.T, s store.Store) {
	ctx := context.Background()

	t.Run("balance is zero without history", func(t *testing.T) {
		token := mustCreateToken(t, s, "ZRO")
		balance, err := s.GetUserTokenBalance(ctx, "nobody", token.ID)
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
	})

	t.Run("entries accumulate into the balance", func(t *testing.T) {
		token := mustCreateToken(t, s, "ACC")
		appendEntry(t, s, buildTestTransaction("alice", token.ID, "100", domain.TransactionKindDeposit, baseTime))
		appendEntry(t, s, buildTestTransaction("alice", token.ID, "-30.5", domain.TransactionKindWithdrawal, baseTime.Add(time.Second)))
		appendEntry(t, s, buildTestTransaction("bob", token.ID, "7", domain.TransactionKindDeposit, baseTime.Add(2*time.Second)))

		balance, err := s.GetUserTokenBalance(ctx, "alice", token.ID)
		require.NoError(t, err)
		assertDecimal(t, "69.5", balance)

		balances, err := s.GetUserTokenBalances(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, balances, 1)
		assert.Equal(t, token.ID, balances[0].TokenID)
		assertDecimal(t, "69.5", balances[0].Balance)

		sum, err := s.SumTokenTransactions(ctx, token.ID)
		require.NoError(t, err)
		assertDecimal(t, "76.5", sum)
	})

	t.Run("sum of unused token is zero", func(t *testing.T) {
		token := mustCreateToken(t, s, "NIL")
		sum, err := s.SumTokenTransactions(ctx, token.ID)
		require.NoError(t, err)
		assert.True(t, sum.IsZero())
	})

	t.Run("failed transaction leaves no trace", func(t *testing.T) {
		token := mustCreateToken(t, s, "RBK")
		appendEntry(t, s, buildTestTransaction("carol", token.ID, "5", domain.TransactionKindDeposit, baseTime))

		boom := errors.New("boom")
		txn := buildTestTransaction("carol", token.ID, "10", domain.TransactionKindDeposit, baseTime.Add(time.Second))
		err := s.Transaction(ctx, func(tx store.Store) error {
			require.NoError(t, tx.CreateTokenTransaction(ctx, txn))
			require.NoError(t, tx.IncrementUserTokenBalance(ctx, "carol", token.ID, txn.Amount, txn.CreatedAt))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		balance, err := s.GetUserTokenBalance(ctx, "carol", token.ID)
		require.NoError(t, err)
		assertDecimal(t, "5", balance)

		txns, err := s.GetTokenTransactions(ctx, store.TokenTransactionFilter{UserID: "carol"})
		require.NoError(t, err)
		assert.Len(t, txns, 1)
	})

	t.Run("transactions page newest first with cursor", func(t *testing.T) {
		token := mustCreateToken(t, s, "PGE")
		other := mustCreateToken(t, s, "OTH")
		var ids []string
		for i := 0; i < 5; i++ {
			txn := buildTestTransaction("dave", token.ID, "1", domain.TransactionKindDeposit, baseTime.Add(time.Duration(i)*time.Minute))
			appendEntry(t, s, txn)
			ids = append(ids, txn.ID)
		}
		appendEntry(t, s, buildTestTransaction("dave", other.ID, "2", domain.TransactionKindDeposit, baseTime.Add(10*time.Minute)))

		page, err := s.GetTokenTransactions(ctx, store.TokenTransactionFilter{UserID: "dave", TokenID: &token.ID, Limit: 2})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, ids[4], page[0].ID)
		assert.Equal(t, ids[3], page[1].ID)

		last := page[len(page)-1]
		page, err = s.GetTokenTransactions(ctx, store.TokenTransactionFilter{
			UserID:  "dave",
			TokenID: &token.ID,
			Before:  &store.TransactionCursor{CreatedAt: last.CreatedAt, ID: last.ID},
			Limit:   10,
		})
		require.NoError(t, err)
		require.Len(t, page, 3)
		assert.Equal(t, ids[2], page[0].ID)
		assert.Equal(t, ids[0], page[2].ID)

		all, err := s.GetTokenTransactions(ctx, store.TokenTransactionFilter{UserID: "dave"})
		require.NoError(t, err)
		assert.Len(t, all, 6)
		assert.Equal(t, other.ID, all[0].TokenID)
	})

	t.Run("same timestamp entries are ordered by id", func(t *testing.T) {
		token := mustCreateToken(t, s, "TIE")
		first := buildTestTransaction("erin", token.ID, "1", domain.TransactionKindDeposit, baseTime)
		second := buildTestTransaction("erin", token.ID, "1", domain.TransactionKindDeposit, baseTime)
		first.ID, second.ID = "01HZZZZZZZZZZZZZZZZZZZZZZ1", "01HZZZZZZZZZZZZZZZZZZZZZZ2"
		appendEntry(t, s, first)
		appendEntry(t, s, second)

		page, err := s.GetTokenTransactions(ctx, store.TokenTransactionFilter{UserID: "erin", Limit: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, second.ID, page[0].ID)

		page, err = s.GetTokenTransactions(ctx, store.TokenTransactionFilter{
			UserID: "erin",
			Before: &store.TransactionCursor{CreatedAt: page[0].CreatedAt, ID: page[0].ID},
		})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, first.ID, page[0].ID)
	})
}

// =============================================================================
// Test: Faucets
// =============================================================================

func testFaucets(t *testing.T, s store.Store) {
	ctx := context.Background()

	t.Run("create get and list faucets", func(t *testing.T) {
		token := mustCreateToken(t, s, "FCT")
		faucet := buildTestFaucet(token.ID, baseTime)
		maxClaims := 3
		faucet.MaxClaimsPerUser = &maxClaims
		require.NoError(t, s.CreateFaucet(ctx, faucet))

		got, err := s.GetFaucetByID(ctx, faucet.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 24, got.ClaimIntervalHours)
		assert.Equal(t, 24*time.Hour, got.ClaimInterval())
		require.NotNil(t, got.MaxClaimsPerUser)
		assert.Equal(t, 3, *got.MaxClaimsPerUser)

		off := buildTestFaucet(token.ID, baseTime.Add(time.Minute))
		off.IsActive = false
		require.NoError(t, s.CreateFaucet(ctx, off))

		all, err := s.GetFaucets(ctx, false)
		require.NoError(t, err)
		active, err := s.GetFaucets(ctx, true)
		require.NoError(t, err)
		assert.Len(t, active, len(all)-1)

		missing, err := s.GetFaucetByID(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("claim summary tracks count and latest claim", func(t *testing.T) {
		token := mustCreateToken(t, s, "SUM")
		faucet := buildTestFaucet(token.ID, baseTime)
		require.NoError(t, s.CreateFaucet(ctx, faucet))

		summary, err := s.GetFaucetClaimSummary(ctx, "alice", faucet.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Count)
		assert.Nil(t, summary.LastClaimAt)

		for i := 1; i <= 2; i++ {
			claim := &schema.FaucetClaim{
				ID:          uuid.NewString(),
				UserID:      "alice",
				FaucetID:    faucet.ID,
				ClaimNumber: i,
				Amount:      faucet.AmountPerClaim,
				CreatedAt:   baseTime.Add(time.Duration(i) * 25 * time.Hour),
			}
			err := s.Transaction(ctx, func(tx store.Store) error {
				if err := tx.LockFaucetClaimant(ctx, "alice", faucet.ID); err != nil {
					return err
				}
				return tx.CreateFaucetClaim(ctx, claim)
			})
			require.NoError(t, err)
		}

		summary, err = s.GetFaucetClaimSummary(ctx, "alice", faucet.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Count)
		require.NotNil(t, summary.LastClaimAt)
		assert.True(t, summary.LastClaimAt.Equal(baseTime.Add(50*time.Hour)))

		claims, err := s.GetFaucetClaims(ctx, "alice", faucet.ID)
		require.NoError(t, err)
		require.Len(t, claims, 2)
		assert.Equal(t, 2, claims[0].ClaimNumber)

		other, err := s.GetFaucetClaimSummary(ctx, "bob", faucet.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, other.Count)
	})

	t.Run("duplicate claim number conflicts", func(t *testing.T) {
		token := mustCreateToken(t, s, "CNF")
		faucet := buildTestFaucet(token.ID, baseTime)
		require.NoError(t, s.CreateFaucet(ctx, faucet))

		build := func() *schema.FaucetClaim {
			return &schema.FaucetClaim{
				ID:          uuid.NewString(),
				UserID:      "alice",
				FaucetID:    faucet.ID,
				ClaimNumber: 1,
				Amount:      faucet.AmountPerClaim,
				CreatedAt:   baseTime,
			}
		}
		require.NoError(t, s.CreateFaucetClaim(ctx, build()))

		err := s.Transaction(ctx, func(tx store.Store) error {
			return tx.CreateFaucetClaim(ctx, build())
		})
		assert.True(t, errors.Is(err, store.ErrConflict))

		summary, err := s.GetFaucetClaimSummary(ctx, "alice", faucet.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Count)
	})
}

// =============================================================================
// Test: Airdrops
// =============================================================================

func testAirdrops(t *testing.T, s store.Store) {
	ctx := context.Background()

	t.Run("create get and filter airdrops", func(t *testing.T) {
		token := mustCreateToken(t, s, "AIR")
		claimDrop := buildTestAirdrop(token.ID, domain.AirdropTypeClaim, baseTime)
		distDrop := buildTestAirdrop(token.ID, domain.AirdropTypeDistribution, baseTime.Add(time.Minute))
		require.NoError(t, s.CreateAirdrop(ctx, claimDrop))
		require.NoError(t, s.CreateAirdrop(ctx, distDrop))

		got, err := s.GetAirdropByID(ctx, claimDrop.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, domain.AirdropTypeClaim, got.AirdropType)
		assert.JSONEq(t, `{"allowed_user_ids":["alice"]}`, string(got.Criteria))
		assertDecimal(t, "300", got.RemainingAmount())

		claimType := domain.AirdropTypeClaim
		filtered, err := s.GetAirdrops(ctx, store.AirdropFilter{Type: &claimType})
		require.NoError(t, err)
		for _, airdrop := range filtered {
			assert.Equal(t, domain.AirdropTypeClaim, airdrop.AirdropType)
		}
		assert.NotEmpty(t, filtered)

		distDrop.IsActive = false
		require.NoError(t, s.SaveAirdrop(ctx, distDrop))
		active, err := s.GetAirdrops(ctx, store.AirdropFilter{ActiveOnly: true})
		require.NoError(t, err)
		for _, airdrop := range active {
			assert.NotEqual(t, distDrop.ID, airdrop.ID)
		}
	})

	t.Run("one claim per user", func(t *testing.T) {
		token := mustCreateToken(t, s, "ONE")
		airdrop := buildTestAirdrop(token.ID, domain.AirdropTypeClaim, baseTime)
		require.NoError(t, s.CreateAirdrop(ctx, airdrop))

		claim := &schema.AirdropClaim{
			ID:        uuid.NewString(),
			UserID:    "alice",
			AirdropID: airdrop.ID,
			Amount:    airdrop.AmountPerUser,
			CreatedAt: baseTime,
		}
		err := s.Transaction(ctx, func(tx store.Store) error {
			locked, err := tx.GetAirdropByIDForUpdate(ctx, airdrop.ID)
			if err != nil {
				return err
			}
			require.NotNil(t, locked)
			if err := tx.CreateAirdropClaim(ctx, claim); err != nil {
				return err
			}
			return tx.IncrementAirdropDistributed(ctx, airdrop.ID, claim.Amount, baseTime)
		})
		require.NoError(t, err)

		err = s.Transaction(ctx, func(tx store.Store) error {
			return tx.CreateAirdropClaim(ctx, &schema.AirdropClaim{
				ID:        uuid.NewString(),
				UserID:    "alice",
				AirdropID: airdrop.ID,
				Amount:    airdrop.AmountPerUser,
				CreatedAt: baseTime.Add(time.Second),
			})
		})
		assert.True(t, errors.Is(err, store.ErrConflict))

		got, err := s.GetAirdropClaim(ctx, "alice", airdrop.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, claim.ID, got.ID)

		none, err := s.GetAirdropClaim(ctx, "bob", airdrop.ID)
		require.NoError(t, err)
		assert.Nil(t, none)

		byUser, err := s.GetAirdropClaimsByUser(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, byUser, 1)

		updated, err := s.GetAirdropByID(ctx, airdrop.ID)
		require.NoError(t, err)
		assertDecimal(t, "100", updated.DistributedAmount)
	})

	t.Run("distributed amount cannot exceed total", func(t *testing.T) {
		token := mustCreateToken(t, s, "CAP")
		airdrop := buildTestAirdrop(token.ID, domain.AirdropTypeDistribution, baseTime)
		require.NoError(t, s.CreateAirdrop(ctx, airdrop))

		err := s.Transaction(ctx, func(tx store.Store) error {
			return tx.IncrementAirdropDistributed(ctx, airdrop.ID, dec("250"), baseTime)
		})
		require.NoError(t, err)

		err = s.Transaction(ctx, func(tx store.Store) error {
			return tx.IncrementAirdropDistributed(ctx, airdrop.ID, dec("100"), baseTime)
		})
		assert.Error(t, err)

		got, err := s.GetAirdropByID(ctx, airdrop.ID)
		require.NoError(t, err)
		assertDecimal(t, "250", got.DistributedAmount)
		assertDecimal(t, "50", got.RemainingAmount())
	})
}

// =============================================================================
// Test: Malformed IDs
// =============================================================================

func testMalformedIDs(t *testing.T, s store.Store) {
	ctx := context.Background()
	const badID = "not-a-uuid"

	t.Run("lookups by malformed id find nothing", func(t *testing.T) {
		token, err := s.GetTokenByID(ctx, badID)
		require.NoError(t, err)
		assert.Nil(t, token)

		faucet, err := s.GetFaucetByID(ctx, badID)
		require.NoError(t, err)
		assert.Nil(t, faucet)

		airdrop, err := s.GetAirdropByID(ctx, badID)
		require.NoError(t, err)
		assert.Nil(t, airdrop)

		claim, err := s.GetAirdropClaim(ctx, "user-1", badID)
		require.NoError(t, err)
		assert.Nil(t, claim)
	})

	t.Run("locking lookups by malformed id find nothing", func(t *testing.T) {
		err := s.Transaction(ctx, func(tx store.Store) error {
			token, err := tx.GetTokenByIDForUpdate(ctx, badID)
			require.NoError(t, err)
			assert.Nil(t, token)

			airdrop, err := tx.GetAirdropByIDForUpdate(ctx, badID)
			require.NoError(t, err)
			assert.Nil(t, airdrop)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("ledger reads by malformed token id are empty", func(t *testing.T) {
		balance, err := s.GetUserTokenBalance(ctx, "user-1", badID)
		require.NoError(t, err)
		assert.True(t, balance.IsZero())

		sum, err := s.SumTokenTransactions(ctx, badID)
		require.NoError(t, err)
		assert.True(t, sum.IsZero())

		tokenID := badID
		txns, err := s.GetTokenTransactions(ctx, store.TokenTransactionFilter{UserID: "user-1", TokenID: &tokenID, Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, txns)
	})

	t.Run("claim history by malformed faucet id is empty", func(t *testing.T) {
		summary, err := s.GetFaucetClaimSummary(ctx, "user-1", badID)
		require.NoError(t, err)
		assert.Zero(t, summary.Count)
		assert.Nil(t, summary.LastClaimAt)

		claims, err := s.GetFaucetClaims(ctx, "user-1", badID)
		require.NoError(t, err)
		assert.Empty(t, claims)
	})
}

// RunStoreTests runs the full store suite against an implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) store.Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, store.Store)
	}{
		{"Tokens", testTokens},
		{"Ledger", testLedger},
		{"Faucets", testFaucets},
		{"Airdrops", testAirdrops},
		{"MalformedIDs", testMalformedIDs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, s)
		})
	}
}
