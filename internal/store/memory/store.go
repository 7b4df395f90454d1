// Package memory provides an in-process implementation of store.Store for tests and local runs.
//
// Row locks (GetXForUpdate, LockFaucetClaimant) are held until the outermost transaction
// ends, and every write inside a transaction records an undo step so that a failed
// transaction leaves no trace.
//
// Writes are applied in place. Reads of a user's balances, ledger history and claims made
// outside a transaction wait until no open transaction has written rows of that user, so
// they only observe committed state. Reads inside a transaction see every write applied so
// far, including those of other open transactions.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/feral-file/ff-rewards/internal/store"
	"github.com/feral-file/ff-rewards/internal/store/schema"
)

type balanceKey struct {
	userID  string
	tokenID string
}

type faucetClaimKey struct {
	userID      string
	faucetID    string
	claimNumber int
}

type airdropClaimKey struct {
	userID    string
	airdropID string
}

// pendingUser counts the open transactions that wrote rows of a user.
// done is closed when the count drops to zero.
type pendingUser struct {
	count int
	done  chan struct{}
}

type tables struct {
	mu sync.RWMutex

	pending map[string]*pendingUser

	tokens        map[string]schema.Token
	transactions  map[string]schema.TokenTransaction
	balances      map[balanceKey]schema.UserTokenBalance
	faucets       map[string]schema.Faucet
	faucetClaims  map[faucetClaimKey]schema.FaucetClaim
	airdrops      map[string]schema.Airdrop
	airdropClaims map[airdropClaimKey]schema.AirdropClaim
}

type txState struct {
	root *txState
	undo []func()
	// held and users are only populated on the root
	held  map[string]chan struct{}
	users map[string]struct{}
}

// Store is an in-memory store.Store
type Store struct {
	tables *tables
	locks  *lockTable
	tx     *txState
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		tables: &tables{
			pending:       make(map[string]*pendingUser),
			tokens:        make(map[string]schema.Token),
			transactions:  make(map[string]schema.TokenTransaction),
			balances:      make(map[balanceKey]schema.UserTokenBalance),
			faucets:       make(map[string]schema.Faucet),
			faucetClaims:  make(map[faucetClaimKey]schema.FaucetClaim),
			airdrops:      make(map[string]schema.Airdrop),
			airdropClaims: make(map[airdropClaimKey]schema.AirdropClaim),
		},
		locks: newLockTable(),
	}
}

// Transaction runs fn with a transaction bound store. Nested calls behave like savepoints.
func (s *Store) Transaction(ctx context.Context, fn func(tx store.Store) error) (err error) {
	state := &txState{}
	if s.tx != nil {
		state.root = s.tx.root
	} else {
		state.root = state
		state.held = make(map[string]chan struct{})
		state.users = make(map[string]struct{})
	}
	txStore := &Store{tables: s.tables, locks: s.locks, tx: state}

	defer func() {
		if r := recover(); r != nil {
			s.rollback(state)
			s.release(state)
			panic(r)
		}
	}()

	if err = fn(txStore); err != nil {
		s.rollback(state)
	} else if s.tx != nil {
		s.tx.undo = append(s.tx.undo, state.undo...)
	}
	s.release(state)

	return err
}

func (s *Store) rollback(state *txState) {
	s.tables.mu.Lock()
	defer s.tables.mu.Unlock()

	for i := len(state.undo) - 1; i >= 0; i-- {
		state.undo[i]()
	}
	state.undo = nil
}

// release frees every lock taken by a root transaction
func (s *Store) release(state *txState) {
	if state.root != state {
		return
	}
	for key := range state.held {
		s.locks.release(key)
	}
	state.held = nil
	s.settleUsers(state)
}

// markUser registers that the current transaction wrote rows of userID; callers hold tables.mu
func (s *Store) markUser(userID string) {
	if s.tx == nil {
		return
	}
	root := s.tx.root
	if _, ok := root.users[userID]; ok {
		return
	}
	root.users[userID] = struct{}{}

	p, ok := s.tables.pending[userID]
	if !ok {
		p = &pendingUser{done: make(chan struct{})}
		s.tables.pending[userID] = p
	}
	p.count++
}

// settleUsers wakes readers waiting on the users written by a finished root transaction
func (s *Store) settleUsers(state *txState) {
	s.tables.mu.Lock()
	defer s.tables.mu.Unlock()

	for userID := range state.users {
		p, ok := s.tables.pending[userID]
		if !ok {
			continue
		}
		p.count--
		if p.count == 0 {
			close(p.done)
			delete(s.tables.pending, userID)
		}
	}
	state.users = nil
}

// rlockUser takes tables.mu for reading once no open transaction has pending writes
// of userID. Inside a transaction it does not wait.
func (s *Store) rlockUser(ctx context.Context, userID string) error {
	for {
		s.tables.mu.RLock()
		if s.tx != nil {
			return nil
		}
		p, ok := s.tables.pending[userID]
		if !ok {
			return nil
		}
		done := p.done
		s.tables.mu.RUnlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// lock acquires key for the rest of the current transaction. Outside a transaction the
// lock is taken and released at once, like a PostgreSQL lock in autocommit mode.
func (s *Store) lock(ctx context.Context, key string) error {
	if s.tx == nil {
		if err := s.locks.acquire(ctx, key); err != nil {
			return err
		}
		s.locks.release(key)
		return nil
	}

	root := s.tx.root
	if _, ok := root.held[key]; ok {
		return nil
	}
	if err := s.locks.acquire(ctx, key); err != nil {
		return err
	}
	root.held[key] = nil
	return nil
}

// record registers an undo step; callers hold tables.mu
func (s *Store) record(undo func()) {
	if s.tx != nil {
		s.tx.undo = append(s.tx.undo, undo)
	}
}

func setTimestamps(createdAt, updatedAt *time.Time) {
	now := time.Now().UTC()
	if createdAt != nil && createdAt.IsZero() {
		*createdAt = now
	}
	if updatedAt != nil && updatedAt.IsZero() {
		*updatedAt = now
	}
}

// =============================================================================
// Tokens
// =============================================================================

func (s *Store) CreateToken(_ context.Context, token *schema.Token) error {
	s.tables.mu.Lock()
	defer s.tables.mu.Unlock()

	if _, ok := s.tables.tokens[token.ID]; ok {
		return store.ErrConflict
	}
	setTimestamps(&token.CreatedAt, &token.UpdatedAt)
	s.tables.tokens[token.ID] = *token
	s.record(func() { delete(s.tables.tokens, token.ID) })
	return nil
}

func (s *Store) SaveToken(_ context.Context, token *schema.Token) error {
	s.tables.mu.Lock()
	defer s.tables.mu.Unlock()

	prev, existed := s.tables.tokens[token.ID]
	s.tables.tokens[token.ID] = *token
	s.record(func() {
		if existed {
			s.tables.tokens[token.ID] = prev
		} else {
			delete(s.tables.tokens, token.ID)
		}
	})
	return nil
}

func (s *Store) GetTokenByID(_ context.Context, id string) (*schema.Token, error) {
	s.tables.mu.RLock()
	defer s.tables.mu.RUnlock()

	token, ok := s.tables.tokens[id]
	if !ok {
		return nil, nil
	}
	return &token, nil
}

func (s *Store) GetTokenByIDForUpdate(ctx context.Context, id string) (*schema.Token, error) {
	if err := s.lock(ctx, "token:"+id); err != nil {
		return nil, err
	}
	return s.GetTokenByID(ctx, id)
}

func (s *Store) GetTokens(_ context.Context, filter store.TokenFilter) ([]schema.Token, error) {
	s.tables.mu.RLock()
	defer s.tables.mu.RUnlock()

	tokens := make([]schema.Token, 0, len(s.tables.tokens))
	for _, token := range s.tables.tokens {
		if filter.ActiveOnly && !token.IsActive {
			continue
		}
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return createdBefore(tokens[i].CreatedAt, tokens[i].ID, tokens[j].CreatedAt, tokens[j].ID)
	})
	return tokens, nil
}

// =============================================================================
// Ledger
// =============================================================================

func (s *Store) CreateTokenTransaction(_ context.Context, txn *schema.TokenTransaction) error {
	s.tables.mu.Lock()
	defer s.tables.mu.Unlock()
	s.markUser(txn.UserID)

	if _, ok := s.tables.transactions[txn.ID]; ok {
		return store.ErrConflict
	}
	setTimestamps(&txn.CreatedAt, nil)
	s.tables.transactions[txn.ID] = *txn
	s.record(func() { delete(s.tables.transactions, txn.ID) })
	return nil
}

func (s *Store) IncrementUserTokenBalance(_ context.Context, userID, tokenID string, amount decimal.Decimal, at time.Time) error {
	s.tables.mu.Lock()
	defer s.tables.mu.Unlock()
	s.markUser(userID)

	key := balanceKey{userID: userID, tokenID: tokenID}
	prev, existed := s.tables.balances[key]

	next := schema.UserTokenBalance{
		UserID:    userID,
		TokenID:   tokenID,
		Balance:   amount,
		UpdatedAt: at,
	}
	if existed {
		next.Balance = prev.Balance.Add(amount)
	}
	s.tables.balances[key] = next

	s.record(func() {
		// re-apply as a delta so that concurrent increments of other transactions survive
		cur, ok := s.tables.balances[key]
		if !ok {
			return
		}
		if !existed && cur.Balance.Equal(amount) {
			delete(s.tables.balances, key)
			return
		}
		cur.Balance = cur.Balance.Sub(amount)
		s.tables.balances[key] = cur
	})
	return nil
}

func (s *Store) GetUserTokenBalance(ctx context.Context, userID, tokenID string) (decimal.Decimal, error) {
	if err := s.rlockUser(ctx, userID); err != nil {
		return decimal.Zero, err
	}
	defer s.tables.mu.RUnlock()

	balance, ok := s.tables.balances[balanceKey{userID: userID, tokenID: tokenID}]
	if !ok {
		return decimal.Zero, nil
	}
	return balance.Balance, nil
}

func (s *Store) GetUserTokenBalances(ctx context.Context, userID string) ([]schema.UserTokenBalance, error) {
	if err := s.rlockUser(ctx, userID); err != nil {
		return nil, err
	}
	defer s.tables.mu.RUnlock()

	var balances []schema.UserTokenBalance
	for key, balance := range s.tables.balances {
		if key.userID == userID {
			balances = append(balances, balance)
		}
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].TokenID < balances[j].TokenID })
	return balances, nil
}

func (s *Store) GetTokenTransactions(ctx context.Context, filter store.TokenTransactionFilter) ([]schema.TokenTransaction, error) {
	if err := s.rlockUser(ctx, filter.UserID); err != nil {
		return nil, err
	}
	defer s.tables.mu.RUnlock()

	var txns []schema.TokenTransaction
	for _, txn := range s.tables.transactions {
		if txn.UserID != filter.UserID {
			continue
		}
		if filter.TokenID != nil && txn.TokenID != *filter.TokenID {
			continue
		}
		if filter.Before != nil && !createdBefore(txn.CreatedAt, txn.ID, filter.Before.CreatedAt, filter.Before.ID) {
			continue
		}
		txns = append(txns, txn)
	}

	// newest first
	sort.Slice(txns, func(i, j int) bool {
		return createdBefore(txns[j].CreatedAt, txns[j].ID, txns[i].CreatedAt, txns[i].ID)
	})
	if filter.Limit > 0 && len(txns) > filter.Limit {
		txns = txns[:filter.Limit]
	}
	return txns, nil
}

func (s *Store) SumTokenTransactions(_ context.Context, tokenID string) (decimal.Decimal, error) {
	s.tables.mu.RLock()
	defer s.tables.mu.RUnlock()

	sum := decimal.Zero
	for _, txn := range s.tables.transactions {
		if txn.TokenID == tokenID {
			sum = sum.Add(txn.Amount)
		}
	}
	return sum, nil
}

// =============================================================================
// Faucets
// =============================================================================

func (s *Store) CreateFaucet(_ context.Context, faucet *schema.Faucet) error {
	s.tables.mu.Lock()
	defer s.tables.mu.Unlock()

	if _, ok := s.tables.faucets[faucet.ID]; ok {
		return store.ErrConflict
	}
	setTimestamps(&faucet.CreatedAt, &faucet.UpdatedAt)
	s.tables.faucets[faucet.ID] = *faucet
	s.record(func() { delete(s.tables.faucets, faucet.ID) })
	return nil
}

func (s *Store) SaveFaucet(_ context.Context, faucet *schema.Faucet) error {
	s.tables.mu.Lock()
	defer s.tables.mu.Unlock()

	prev, existed := s.tables.faucets[faucet.ID]
	s.tables.faucets[faucet.ID] = *faucet
	s.record(func() {
		if existed {
			s.tables.faucets[faucet.ID] = prev
		} else {
			delete(s.tables.faucets, faucet.ID)
		}
	})
	return nil
}

func (s *Store) GetFaucetByID(_ context.Context, id string) (*schema.Faucet, error) {
	s.tables.mu.RLock()
	defer s.tables.mu.RUnlock()

	faucet, ok := s.tables.faucets[id]
	if !ok {
		return nil, nil
	}
	return &faucet, nil
}

func (s *Store) GetFaucetByIDForUpdate(ctx context.Context, id string) (*schema.Faucet, error) {
	if err := s.lock(ctx, "faucet:"+id); err != nil {
		return nil, err
	}
	return s.GetFaucetByID(ctx, id)
}

func (s *Store) GetFaucets(_ context.Context, activeOnly bool) ([]schema.Faucet, error) {
	s.tables.mu.RLock()
	defer s.tables.mu.RUnlock()

	faucets := make([]schema.Faucet, 0, len(s.tables.faucets))
	for _, faucet := range s.tables.faucets {
		if activeOnly && !faucet.IsActive {
			continue
		}
		faucets = append(faucets, faucet)
	}
	sort.Slice(faucets, func(i, j int) bool {
		return createdBefore(faucets[i].CreatedAt, faucets[i].ID, faucets[j].CreatedAt, faucets[j].ID)
	})
	return faucets, nil
}

func (s *Store) LockFaucetClaimant(ctx context.Context, userID, faucetID string) error {
	return s.lock(ctx, fmt.Sprintf("faucet_claim:%s:%s", faucetID, userID))
}

func (s *Store) GetFaucetClaimSummary(ctx context.Context, userID, faucetID string) (store.FaucetClaimSummary, error) {
	if err := s.rlockUser(ctx, userID); err != nil {
		return store.FaucetClaimSummary{}, err
	}
	defer s.tables.mu.RUnlock()

	var summary store.FaucetClaimSummary
	for key, claim := range s.tables.faucetClaims {
		if key.userID != userID || key.faucetID != faucetID {
			continue
		}
		summary.Count++
		if summary.LastClaimAt == nil || claim.CreatedAt.After(*summary.LastClaimAt) {
			at := claim.CreatedAt
			summary.LastClaimAt = &at
		}
	}
	return summary, nil
}

func (s *Store) CreateFaucetClaim(_ context.Context, claim *schema.FaucetClaim) error {
	s.tables.mu.Lock()
	defer s.tables.mu.Unlock()
	s.markUser(claim.UserID)

	key := faucetClaimKey{userID: claim.UserID, faucetID: claim.FaucetID, claimNumber: claim.ClaimNumber}
	if _, ok := s.tables.faucetClaims[key]; ok {
		return store.ErrConflict
	}
	setTimestamps(&claim.CreatedAt, nil)
	s.tables.faucetClaims[key] = *claim
	s.record(func() { delete(s.tables.faucetClaims, key) })
	return nil
}

func (s *Store) GetFaucetClaims(ctx context.Context, userID, faucetID string) ([]schema.FaucetClaim, error) {
	if err := s.rlockUser(ctx, userID); err != nil {
		return nil, err
	}
	defer s.tables.mu.RUnlock()

	var claims []schema.FaucetClaim
	for key, claim := range s.tables.faucetClaims {
		if key.userID == userID && key.faucetID == faucetID {
			claims = append(claims, claim)
		}
	}
	sort.Slice(claims, func(i, j int) bool { return claims[i].ClaimNumber > claims[j].ClaimNumber })
	return claims, nil
}

// =============================================================================
// Airdrops
// =============================================================================

func (s *Store) CreateAirdrop(_ context.Context, airdrop *schema.Airdrop) error {
	s.tables.mu.Lock()
	defer s.tables.mu.Unlock()

	if _, ok := s.tables.airdrops[airdrop.ID]; ok {
		return store.ErrConflict
	}
	setTimestamps(&airdrop.CreatedAt, &airdrop.UpdatedAt)
	s.tables.airdrops[airdrop.ID] = *airdrop
	s.record(func() { delete(s.tables.airdrops, airdrop.ID) })
	return nil
}

func (s *Store) SaveAirdrop(_ context.Context, airdrop *schema.Airdrop) error {
	s.tables.mu.Lock()
	defer s.tables.mu.Unlock()

	prev, existed := s.tables.airdrops[airdrop.ID]
	s.tables.airdrops[airdrop.ID] = *airdrop
	s.record(func() {
		if existed {
			s.tables.airdrops[airdrop.ID] = prev
		} else {
			delete(s.tables.airdrops, airdrop.ID)
		}
	})
	return nil
}

func (s *Store) GetAirdropByID(_ context.Context, id string) (*schema.Airdrop, error) {
	s.tables.mu.RLock()
	defer s.tables.mu.RUnlock()

	airdrop, ok := s.tables.airdrops[id]
	if !ok {
		return nil, nil
	}
	return &airdrop, nil
}

func (s *Store) GetAirdropByIDForUpdate(ctx context.Context, id string) (*schema.Airdrop, error) {
	if err := s.lock(ctx, "airdrop:"+id); err != nil {
		return nil, err
	}
	return s.GetAirdropByID(ctx, id)
}

func (s *Store) GetAirdrops(_ context.Context, filter store.AirdropFilter) ([]schema.Airdrop, error) {
	s.tables.mu.RLock()
	defer s.tables.mu.RUnlock()

	airdrops := make([]schema.Airdrop, 0, len(s.tables.airdrops))
	for _, airdrop := range s.tables.airdrops {
		if filter.ActiveOnly && !airdrop.IsActive {
			continue
		}
		if filter.Type != nil && airdrop.AirdropType != *filter.Type {
			continue
		}
		airdrops = append(airdrops, airdrop)
	}
	sort.Slice(airdrops, func(i, j int) bool {
		return createdBefore(airdrops[i].CreatedAt, airdrops[i].ID, airdrops[j].CreatedAt, airdrops[j].ID)
	})
	return airdrops, nil
}

func (s *Store) GetAirdropClaim(ctx context.Context, userID, airdropID string) (*schema.AirdropClaim, error) {
	if err := s.rlockUser(ctx, userID); err != nil {
		return nil, err
	}
	defer s.tables.mu.RUnlock()

	claim, ok := s.tables.airdropClaims[airdropClaimKey{userID: userID, airdropID: airdropID}]
	if !ok {
		return nil, nil
	}
	return &claim, nil
}

func (s *Store) GetAirdropClaimsByUser(ctx context.Context, userID string) ([]schema.AirdropClaim, error) {
	if err := s.rlockUser(ctx, userID); err != nil {
		return nil, err
	}
	defer s.tables.mu.RUnlock()

	var claims []schema.AirdropClaim
	for key, claim := range s.tables.airdropClaims {
		if key.userID == userID {
			claims = append(claims, claim)
		}
	}
	sort.Slice(claims, func(i, j int) bool {
		return createdBefore(claims[j].CreatedAt, claims[j].ID, claims[i].CreatedAt, claims[i].ID)
	})
	return claims, nil
}

func (s *Store) CreateAirdropClaim(_ context.Context, claim *schema.AirdropClaim) error {
	s.tables.mu.Lock()
	defer s.tables.mu.Unlock()
	s.markUser(claim.UserID)

	key := airdropClaimKey{userID: claim.UserID, airdropID: claim.AirdropID}
	if _, ok := s.tables.airdropClaims[key]; ok {
		return store.ErrConflict
	}
	setTimestamps(&claim.CreatedAt, nil)
	s.tables.airdropClaims[key] = *claim
	s.record(func() { delete(s.tables.airdropClaims, key) })
	return nil
}

func (s *Store) IncrementAirdropDistributed(_ context.Context, airdropID string, amount decimal.Decimal, at time.Time) error {
	s.tables.mu.Lock()
	defer s.tables.mu.Unlock()

	airdrop, ok := s.tables.airdrops[airdropID]
	if !ok {
		return fmt.Errorf("failed to increment distributed amount: airdrop %s not found", airdropID)
	}

	next := airdrop.DistributedAmount.Add(amount)
	if next.IsNegative() || next.GreaterThan(airdrop.TotalAmount) {
		return fmt.Errorf("failed to increment distributed amount: violates check constraint chk_airdrops_distributed")
	}

	prevUpdatedAt := airdrop.UpdatedAt
	airdrop.DistributedAmount = next
	airdrop.UpdatedAt = at
	s.tables.airdrops[airdropID] = airdrop

	s.record(func() {
		cur, ok := s.tables.airdrops[airdropID]
		if !ok {
			return
		}
		cur.DistributedAmount = cur.DistributedAmount.Sub(amount)
		cur.UpdatedAt = prevUpdatedAt
		s.tables.airdrops[airdropID] = cur
	})
	return nil
}

// createdBefore orders rows by (created_at, id) ascending
func createdBefore(aAt time.Time, aID string, bAt time.Time, bID string) bool {
	if !aAt.Equal(bAt) {
		return aAt.Before(bAt)
	}
	return aID < bID
}

var _ store.Store = (*Store)(nil)
