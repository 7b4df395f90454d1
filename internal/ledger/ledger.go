package ledger

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/feral-file/ff-rewards/internal/adapter"
	"github.com/feral-file/ff-rewards/internal/domain"
	"github.com/feral-file/ff-rewards/internal/logger"
	"github.com/feral-file/ff-rewards/internal/messaging"
	"github.com/feral-file/ff-rewards/internal/metrics"
	"github.com/feral-file/ff-rewards/internal/store"
	"github.com/feral-file/ff-rewards/internal/store/schema"
)

// Config holds the ledger policies
type Config struct {
	// EnforceTotalSupply rejects positive entries that would issue more than the token's total supply
	EnforceTotalSupply bool
	// PageSize is the keyset page size used by ListTransactions
	PageSize int
}

// EntryInput represents one ledger entry to append
type EntryInput struct {
	UserID  string
	TokenID string
	// Amount is signed; it must not be zero
	Amount      decimal.Decimal
	Kind        domain.TransactionKind
	Description *string
	// ReferenceID links the entry to the claim that produced it
	ReferenceID *string
}

// Ledger is the append-only transaction log and the only writer of balances
type Ledger interface {
	// AppendEntry writes an entry and its balance delta using tx, the store bound to the
	// caller's transaction. The entry commits or rolls back with the caller.
	AppendEntry(ctx context.Context, tx store.Store, input EntryInput) (*schema.TokenTransaction, error)
	// RecordEntry appends an administrator entry in its own transaction.
	// Faucet and airdrop entries can only be written by their engines.
	RecordEntry(ctx context.Context, input EntryInput) (*schema.TokenTransaction, error)
	// GetBalance returns the balance of a user for a token, zero without history
	GetBalance(ctx context.Context, userID, tokenID string) (decimal.Decimal, error)
	// GetBalances returns every balance of a user
	GetBalances(ctx context.Context, userID string) ([]schema.UserTokenBalance, error)
	// ListTransactions returns the user's entries newest first. The sequence reads lazily
	// page by page; ranging over it again re-reads current state.
	ListTransactions(ctx context.Context, userID string, tokenID *string) iter.Seq2[schema.TokenTransaction, error]
	// CollectTransactions drains ListTransactions up to limit entries (all when limit <= 0)
	CollectTransactions(ctx context.Context, userID string, tokenID *string, limit int) ([]schema.TokenTransaction, error)
}

type ledger struct {
	store     store.Store
	clock     adapter.Clock
	publisher messaging.Publisher
	config    Config
}

// NewLedger creates a ledger
func NewLedger(st store.Store, clock adapter.Clock, publisher messaging.Publisher, cfg Config) Ledger {
	if cfg.PageSize <= 0 {
		cfg.PageSize = domain.DEFAULT_TRANSACTIONS_PAGE_SIZE
	}
	if publisher == nil {
		publisher = messaging.NewNoopPublisher()
	}
	return &ledger{
		store:     st,
		clock:     clock,
		publisher: publisher,
		config:    cfg,
	}
}

func validateEntry(input EntryInput) error {
	if strings.TrimSpace(input.UserID) == "" {
		return domain.NewValidationError("user id is required")
	}
	if input.TokenID == "" {
		return domain.NewValidationError("token id is required")
	}
	if input.Amount.IsZero() {
		return domain.NewValidationError("amount must not be zero")
	}
	if !input.Kind.Valid() {
		return domain.NewValidationError("unknown transaction kind %q", input.Kind)
	}
	return nil
}

func (l *ledger) AppendEntry(ctx context.Context, tx store.Store, input EntryInput) (*schema.TokenTransaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("ledger: AppendEntry requires a transaction bound store")
	}
	if err := validateEntry(input); err != nil {
		return nil, err
	}

	enforceSupply := l.config.EnforceTotalSupply && input.Amount.IsPositive()

	var token *schema.Token
	var err error
	if enforceSupply {
		// serialize issuance of the token for the supply check
		token, err = tx.GetTokenByIDForUpdate(ctx, input.TokenID)
	} else {
		token, err = tx.GetTokenByID(ctx, input.TokenID)
	}
	if err != nil {
		return nil, err
	}
	if token == nil || !token.IsActive {
		return nil, domain.NewRewardError(domain.ErrUnknownToken, "token %s is unknown or inactive", input.TokenID)
	}

	if enforceSupply {
		issued, err := tx.SumTokenTransactions(ctx, token.ID)
		if err != nil {
			return nil, err
		}
		if issued.Add(input.Amount).GreaterThan(token.TotalSupply) {
			return nil, domain.NewRewardError(domain.ErrSupplyExhausted,
				"token %s total supply of %s would be exceeded", token.Symbol, token.TotalSupply.String())
		}
	}

	now := adapter.Timestamp(l.clock)
	txn := &schema.TokenTransaction{
		ID:          ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		UserID:      input.UserID,
		TokenID:     input.TokenID,
		Amount:      input.Amount,
		Kind:        input.Kind,
		Description: input.Description,
		ReferenceID: input.ReferenceID,
		CreatedAt:   now,
	}

	if err := tx.CreateTokenTransaction(ctx, txn); err != nil {
		return nil, err
	}
	if err := tx.IncrementUserTokenBalance(ctx, txn.UserID, txn.TokenID, txn.Amount, now); err != nil {
		return nil, err
	}

	return txn, nil
}

func (l *ledger) RecordEntry(ctx context.Context, input EntryInput) (*schema.TokenTransaction, error) {
	if input.Kind.EngineOwned() {
		return nil, domain.NewValidationError("%s entries can only be written by the %s engine", input.Kind, input.Kind)
	}

	var txn *schema.TokenTransaction
	err := l.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		txn, err = l.AppendEntry(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveLedgerEntry(txn.Kind)
	logger.InfoCtx(ctx, "Recorded ledger entry",
		zap.String("transactionID", txn.ID),
		zap.String("userID", txn.UserID),
		zap.String("tokenID", txn.TokenID),
		zap.String("kind", string(txn.Kind)),
		zap.String("amount", txn.Amount.String()))

	messaging.PublishBestEffort(ctx, l.publisher, &domain.RewardEvent{
		EventID:    txn.ID,
		Type:       domain.RewardEventLedgerEntryRecorded,
		UserID:     txn.UserID,
		TokenID:    txn.TokenID,
		ResourceID: txn.ID,
		Amount:     txn.Amount,
		OccurredAt: txn.CreatedAt,
	})

	return txn, nil
}

func (l *ledger) GetBalance(ctx context.Context, userID, tokenID string) (decimal.Decimal, error) {
	return l.store.GetUserTokenBalance(ctx, userID, tokenID)
}

func (l *ledger) GetBalances(ctx context.Context, userID string) ([]schema.UserTokenBalance, error) {
	return l.store.GetUserTokenBalances(ctx, userID)
}

func (l *ledger) ListTransactions(ctx context.Context, userID string, tokenID *string) iter.Seq2[schema.TokenTransaction, error] {
	return func(yield func(schema.TokenTransaction, error) bool) {
		var cursor *store.TransactionCursor
		for {
			if err := ctx.Err(); err != nil {
				yield(schema.TokenTransaction{}, err)
				return
			}

			page, err := l.store.GetTokenTransactions(ctx, store.TokenTransactionFilter{
				UserID:  userID,
				TokenID: tokenID,
				Before:  cursor,
				Limit:   l.config.PageSize,
			})
			if err != nil {
				yield(schema.TokenTransaction{}, err)
				return
			}

			for _, txn := range page {
				if !yield(txn, nil) {
					return
				}
			}
			if len(page) < l.config.PageSize {
				return
			}

			last := page[len(page)-1]
			cursor = &store.TransactionCursor{CreatedAt: last.CreatedAt, ID: last.ID}
		}
	}
}

func (l *ledger) CollectTransactions(ctx context.Context, userID string, tokenID *string, limit int) ([]schema.TokenTransaction, error) {
	txns := []schema.TokenTransaction{}
	for txn, err := range l.ListTransactions(ctx, userID, tokenID) {
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
		if limit > 0 && len(txns) >= limit {
			break
		}
	}
	return txns, nil
}
