package faucet

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-rewards/internal/domain"
	"github.com/feral-file/ff-rewards/internal/ledger"
	"github.com/feral-file/ff-rewards/internal/mocks"
	"github.com/feral-file/ff-rewards/internal/store"
	"github.com/feral-file/ff-rewards/internal/store/memory"
	"github.com/feral-file/ff-rewards/internal/store/schema"
)

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	store     store.Store
	ledger    ledger.Ledger
	engine    Engine
	publisher *mocks.MockPublisher
	token     *schema.Token

	mu  sync.Mutex
	now time.Time
}

func (e *testEnv) setNow(t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = t
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

type envOption func(*testEnv)

// withStore wraps the memory store, e.g. to inject failures
func withStore(wrap func(store.Store) store.Store) envOption {
	return func(e *testEnv) { e.store = wrap(e.store) }
}

func newTestEnv(t *testing.T, cfg Config, opts ...envOption) *testEnv {
	ctrl := gomock.NewController(t)
	env := &testEnv{store: memory.NewStore(), now: t0}
	for _, opt := range opts {
		opt(env)
	}

	clock := mocks.NewMockClock(ctrl)
	clock.EXPECT().Now().DoAndReturn(func() time.Time {
		env.mu.Lock()
		defer env.mu.Unlock()
		return env.now
	}).AnyTimes()

	env.publisher = mocks.NewMockPublisher(ctrl)
	env.ledger = ledger.NewLedger(env.store, clock, nil, ledger.Config{})
	env.engine = NewEngine(env.store, env.ledger, clock, env.publisher, cfg)

	env.token = &schema.Token{
		ID:          uuid.NewString(),
		Name:        "Gem",
		Symbol:      "GEM",
		TotalSupply: decimal.NewFromInt(1_000_000),
		IsActive:    true,
		CreatedAt:   t0,
		UpdatedAt:   t0,
	}
	require.NoError(t, env.store.CreateToken(context.Background(), env.token))
	return env
}

func (e *testEnv) expectEvents(n int) {
	e.publisher.EXPECT().PublishRewardEvent(gomock.Any(), gomock.Any()).Return(nil).Times(n)
}

func (e *testEnv) createFaucet(t *testing.T, input CreateFaucetInput) *schema.Faucet {
	if input.TokenID == "" {
		input.TokenID = e.token.ID
	}
	if input.AmountPerClaim.IsZero() {
		input.AmountPerClaim = decimal.NewFromInt(100)
	}
	if input.ClaimIntervalHours == 0 {
		input.ClaimIntervalHours = 24
	}
	faucet, err := e.engine.CreateFaucet(context.Background(), input)
	require.NoError(t, err)
	return faucet
}

func (e *testEnv) balance(t *testing.T, userID string) decimal.Decimal {
	balance, err := e.ledger.GetBalance(context.Background(), userID, e.token.ID)
	require.NoError(t, err)
	return balance
}

func TestEngine_CooldownScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})
	env.expectEvents(2)
	faucet := env.createFaucet(t, CreateFaucetInput{})

	eligibility, err := env.engine.CanClaim(ctx, "alice", faucet.ID)
	require.NoError(t, err)
	assert.True(t, eligibility.Allowed)

	claim, err := env.engine.Claim(ctx, "alice", faucet.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, claim.ClaimNumber)
	assert.True(t, env.balance(t, "alice").Equal(decimal.NewFromInt(100)))

	env.advance(23 * time.Hour)

	eligibility, err = env.engine.CanClaim(ctx, "alice", faucet.ID)
	require.NoError(t, err)
	assert.False(t, eligibility.Allowed)
	require.NotNil(t, eligibility.MinutesRemaining)
	assert.Equal(t, int64(60), *eligibility.MinutesRemaining)
	assert.Equal(t, "not_eligible", eligibility.Code)
	assert.Contains(t, eligibility.Reason, "60 minutes")

	_, err = env.engine.Claim(ctx, "alice", faucet.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotEligible)
	var rewardErr *domain.RewardError
	require.True(t, errors.As(err, &rewardErr))
	require.NotNil(t, rewardErr.MinutesRemaining)
	assert.Equal(t, int64(60), *rewardErr.MinutesRemaining)

	env.advance(time.Hour)

	claim, err = env.engine.Claim(ctx, "alice", faucet.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, claim.ClaimNumber)
	assert.True(t, env.balance(t, "alice").Equal(decimal.NewFromInt(200)))

	claims, err := env.engine.ListClaims(ctx, "alice", faucet.ID)
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, 2, claims[0].ClaimNumber)

	txns, err := env.ledger.CollectTransactions(ctx, "alice", nil, 0)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	for _, txn := range txns {
		assert.Equal(t, domain.TransactionKindFaucet, txn.Kind)
		require.NotNil(t, txn.ReferenceID)
	}
	assert.Equal(t, claim.ID, *txns[0].ReferenceID)
}

func TestEngine_CapReached(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})
	env.expectEvents(2)
	maxClaims := 2
	faucet := env.createFaucet(t, CreateFaucetInput{ClaimIntervalHours: 1, MaxClaimsPerUser: &maxClaims})

	for i := 0; i < 2; i++ {
		_, err := env.engine.Claim(ctx, "alice", faucet.ID)
		require.NoError(t, err)
		env.advance(time.Hour)
	}

	_, err := env.engine.Claim(ctx, "alice", faucet.ID)
	assert.ErrorIs(t, err, domain.ErrCapReached)
	assert.ErrorIs(t, err, domain.ErrNotEligible)

	// the cap is permanent
	env.advance(1000 * time.Hour)
	eligibility, err := env.engine.CanClaim(ctx, "alice", faucet.ID)
	require.NoError(t, err)
	assert.False(t, eligibility.Allowed)
	assert.Equal(t, "cap_reached", eligibility.Code)

	assert.True(t, env.balance(t, "alice").Equal(decimal.NewFromInt(200)))
}

func TestEngine_ClaimRejections(t *testing.T) {
	ctx := context.Background()
	start := t0.Add(time.Hour)
	end := t0.Add(-time.Hour)

	tests := []struct {
		name    string
		setup   func(t *testing.T, env *testEnv) string
		userID  string
		wantErr error
	}{
		{
			name:    "unknown faucet",
			setup:   func(t *testing.T, env *testEnv) string { return uuid.NewString() },
			wantErr: domain.ErrNotFound,
		},
		{
			name: "empty user",
			setup: func(t *testing.T, env *testEnv) string {
				return env.createFaucet(t, CreateFaucetInput{}).ID
			},
			userID:  " ",
			wantErr: domain.ErrValidation,
		},
		{
			name: "inactive faucet",
			setup: func(t *testing.T, env *testEnv) string {
				inactive := false
				return env.createFaucet(t, CreateFaucetInput{IsActive: &inactive}).ID
			},
			wantErr: domain.ErrInactiveResource,
		},
		{
			name: "inactive token",
			setup: func(t *testing.T, env *testEnv) string {
				faucet := env.createFaucet(t, CreateFaucetInput{})
				env.token.IsActive = false
				require.NoError(t, env.store.SaveToken(context.Background(), env.token))
				return faucet.ID
			},
			wantErr: domain.ErrInactiveResource,
		},
		{
			name: "not started",
			setup: func(t *testing.T, env *testEnv) string {
				return env.createFaucet(t, CreateFaucetInput{StartDate: &start}).ID
			},
			wantErr: domain.ErrWindowClosed,
		},
		{
			name: "ended",
			setup: func(t *testing.T, env *testEnv) string {
				return env.createFaucet(t, CreateFaucetInput{EndDate: &end}).ID
			},
			wantErr: domain.ErrWindowClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{})
			faucetID := tt.setup(t, env)
			userID := tt.userID
			if userID == "" {
				userID = "alice"
			}

			claim, err := env.engine.Claim(ctx, userID, faucetID)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Nil(t, claim)
			assert.True(t, env.balance(t, userID).IsZero())
		})
	}
}

func TestEngine_CanClaimDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})
	faucet := env.createFaucet(t, CreateFaucetInput{})

	for i := 0; i < 3; i++ {
		eligibility, err := env.engine.CanClaim(ctx, "alice", faucet.ID)
		require.NoError(t, err)
		assert.True(t, eligibility.Allowed)
	}

	claims, err := env.engine.ListClaims(ctx, "alice", faucet.ID)
	require.NoError(t, err)
	assert.Empty(t, claims)

	_, err = env.engine.CanClaim(ctx, "alice", uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEngine_DeactivationKeepsPastClaims(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})
	env.expectEvents(1)
	faucet := env.createFaucet(t, CreateFaucetInput{})

	_, err := env.engine.Claim(ctx, "alice", faucet.ID)
	require.NoError(t, err)

	inactive := false
	_, err = env.engine.UpdateFaucet(ctx, faucet.ID, UpdateFaucetInput{IsActive: &inactive})
	require.NoError(t, err)

	claims, err := env.engine.ListClaims(ctx, "alice", faucet.ID)
	require.NoError(t, err)
	assert.Len(t, claims, 1)
	assert.True(t, env.balance(t, "alice").Equal(decimal.NewFromInt(100)))

	env.advance(48 * time.Hour)
	_, err = env.engine.Claim(ctx, "alice", faucet.ID)
	assert.ErrorIs(t, err, domain.ErrInactiveResource)
}

func TestEngine_ConcurrentClaimsGrantOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})
	env.expectEvents(1)
	faucet := env.createFaucet(t, CreateFaucetInput{})

	const workers = 12
	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.Claim(ctx, "alice", faucet.ID)
			if err == nil {
				succeeded.Add(1)
				return
			}
			assert.ErrorIs(t, err, domain.ErrNotEligible)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.True(t, env.balance(t, "alice").Equal(decimal.NewFromInt(100)))
}

func TestEngine_SuccessiveClaimsRespectInterval(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})
	env.publisher.EXPECT().PublishRewardEvent(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	faucet := env.createFaucet(t, CreateFaucetInput{ClaimIntervalHours: 6})

	// attempt a claim every 100 minutes for four days
	for i := 0; i < 60; i++ {
		_, err := env.engine.Claim(ctx, "alice", faucet.ID)
		if err != nil {
			require.ErrorIs(t, err, domain.ErrNotEligible)
		}
		env.advance(100 * time.Minute)
	}

	claims, err := env.engine.ListClaims(ctx, "alice", faucet.ID)
	require.NoError(t, err)
	require.NotEmpty(t, claims)
	for i := 1; i < len(claims); i++ {
		gap := claims[i-1].CreatedAt.Sub(claims[i].CreatedAt)
		assert.GreaterOrEqual(t, gap, 6*time.Hour)
	}

	total := decimal.NewFromInt(int64(len(claims) * 100))
	assert.True(t, env.balance(t, "alice").Equal(total))
}

// conflictingStore fails the first n claim inserts as if a concurrent claimant won the claim number
type conflictingStore struct {
	store.Store
	remaining *atomic.Int32
}

func (s conflictingStore) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return s.Store.Transaction(ctx, func(tx store.Store) error {
		return fn(conflictingStore{Store: tx, remaining: s.remaining})
	})
}

func (s conflictingStore) CreateFaucetClaim(ctx context.Context, claim *schema.FaucetClaim) error {
	if s.remaining.Add(-1) >= 0 {
		return store.ErrConflict
	}
	return s.Store.CreateFaucetClaim(ctx, claim)
}

func TestEngine_ClaimRetriesOnConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("transient conflict is retried", func(t *testing.T) {
		remaining := &atomic.Int32{}
		remaining.Store(2)
		env := newTestEnv(t, Config{}, withStore(func(s store.Store) store.Store {
			return conflictingStore{Store: s, remaining: remaining}
		}))
		env.expectEvents(1)
		faucet := env.createFaucet(t, CreateFaucetInput{})

		claim, err := env.engine.Claim(ctx, "alice", faucet.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, claim.ClaimNumber)
		assert.True(t, env.balance(t, "alice").Equal(decimal.NewFromInt(100)))
	})

	t.Run("persistent conflict reports not eligible", func(t *testing.T) {
		remaining := &atomic.Int32{}
		remaining.Store(1_000_000)
		env := newTestEnv(t, Config{ClaimRetryMaxElapsed: 50 * time.Millisecond}, withStore(func(s store.Store) store.Store {
			return conflictingStore{Store: s, remaining: remaining}
		}))
		faucet := env.createFaucet(t, CreateFaucetInput{})

		_, err := env.engine.Claim(ctx, "alice", faucet.ID)
		assert.ErrorIs(t, err, domain.ErrNotEligible)
		assert.True(t, env.balance(t, "alice").IsZero())
	})
}

func TestEngine_ClaimPublishesEvent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})
	faucet := env.createFaucet(t, CreateFaucetInput{})

	env.publisher.EXPECT().
		PublishRewardEvent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event *domain.RewardEvent) error {
			assert.Equal(t, domain.RewardEventFaucetClaimed, event.Type)
			assert.Equal(t, "alice", event.UserID)
			assert.Equal(t, env.token.ID, event.TokenID)
			assert.Equal(t, faucet.ID, event.ResourceID)
			assert.True(t, event.Amount.Equal(decimal.NewFromInt(100)))
			return errors.New("broker unavailable")
		})

	claim, err := env.engine.Claim(ctx, "alice", faucet.ID)
	require.NoError(t, err)
	assert.NotNil(t, claim)
}

func TestEngine_CreateFaucetValidation(t *testing.T) {
	ctx := context.Background()
	zero, negative := 0, -1
	start := t0.Add(48 * time.Hour)
	end := t0.Add(24 * time.Hour)

	tests := []struct {
		name    string
		input   func(env *testEnv) CreateFaucetInput
		wantErr error
	}{
		{
			name: "negative amount",
			input: func(env *testEnv) CreateFaucetInput {
				return CreateFaucetInput{TokenID: env.token.ID, AmountPerClaim: decimal.NewFromInt(-1), ClaimIntervalHours: 1}
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "zero interval",
			input: func(env *testEnv) CreateFaucetInput {
				return CreateFaucetInput{TokenID: env.token.ID, AmountPerClaim: decimal.NewFromInt(1)}
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "zero cap",
			input: func(env *testEnv) CreateFaucetInput {
				return CreateFaucetInput{TokenID: env.token.ID, AmountPerClaim: decimal.NewFromInt(1), ClaimIntervalHours: 1, MaxClaimsPerUser: &zero}
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "negative cap",
			input: func(env *testEnv) CreateFaucetInput {
				return CreateFaucetInput{TokenID: env.token.ID, AmountPerClaim: decimal.NewFromInt(1), ClaimIntervalHours: 1, MaxClaimsPerUser: &negative}
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "end before start",
			input: func(env *testEnv) CreateFaucetInput {
				return CreateFaucetInput{TokenID: env.token.ID, AmountPerClaim: decimal.NewFromInt(1), ClaimIntervalHours: 1, StartDate: &start, EndDate: &end}
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "missing token id",
			input: func(env *testEnv) CreateFaucetInput {
				return CreateFaucetInput{AmountPerClaim: decimal.NewFromInt(1), ClaimIntervalHours: 1}
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "unknown token",
			input: func(env *testEnv) CreateFaucetInput {
				return CreateFaucetInput{TokenID: uuid.NewString(), AmountPerClaim: decimal.NewFromInt(1), ClaimIntervalHours: 1}
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{})
			faucet, err := env.engine.CreateFaucet(ctx, tt.input(env))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Nil(t, faucet)
		})
	}
}

func TestEngine_UpdateFaucet(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})
	maxClaims := 3
	faucet := env.createFaucet(t, CreateFaucetInput{MaxClaimsPerUser: &maxClaims})

	amount := decimal.NewFromInt(5)
	interval := 2
	noCap := 0
	end := t0.Add(72 * time.Hour)
	updated, err := env.engine.UpdateFaucet(ctx, faucet.ID, UpdateFaucetInput{
		AmountPerClaim:     &amount,
		ClaimIntervalHours: &interval,
		MaxClaimsPerUser:   &noCap,
		EndDate:            &end,
	})
	require.NoError(t, err)
	assert.True(t, updated.AmountPerClaim.Equal(amount))
	assert.Equal(t, 2, updated.ClaimIntervalHours)
	assert.Nil(t, updated.MaxClaimsPerUser)
	require.NotNil(t, updated.EndDate)

	updated, err = env.engine.UpdateFaucet(ctx, faucet.ID, UpdateFaucetInput{ClearEndDate: true})
	require.NoError(t, err)
	assert.Nil(t, updated.EndDate)

	badInterval := 0
	_, err = env.engine.UpdateFaucet(ctx, faucet.ID, UpdateFaucetInput{ClaimIntervalHours: &badInterval})
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := env.engine.GetFaucet(ctx, faucet.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ClaimIntervalHours)

	_, err = env.engine.UpdateFaucet(ctx, uuid.NewString(), UpdateFaucetInput{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	all, err := env.engine.ListFaucets(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// slowSaveStore widens the window between reading and saving a faucet
type slowSaveStore struct {
	store.Store
}

func (s slowSaveStore) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return s.Store.Transaction(ctx, func(tx store.Store) error {
		return fn(slowSaveStore{Store: tx})
	})
}

func (s slowSaveStore) SaveFaucet(ctx context.Context, faucet *schema.Faucet) error {
	time.Sleep(10 * time.Millisecond)
	return s.Store.SaveFaucet(ctx, faucet)
}

func TestEngine_ConcurrentUpdatesKeepEveryField(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{}, withStore(func(s store.Store) store.Store {
		return slowSaveStore{Store: s}
	}))
	faucet := env.createFaucet(t, CreateFaucetInput{})

	amount := decimal.NewFromInt(7)
	interval := 6
	description := "weekend drip"
	inputs := []UpdateFaucetInput{
		{AmountPerClaim: &amount},
		{ClaimIntervalHours: &interval},
		{Description: &description},
	}

	var wg sync.WaitGroup
	for _, input := range inputs {
		wg.Add(1)
		go func(input UpdateFaucetInput) {
			defer wg.Done()
			_, err := env.engine.UpdateFaucet(ctx, faucet.ID, input)
			assert.NoError(t, err)
		}(input)
	}
	wg.Wait()

	got, err := env.engine.GetFaucet(ctx, faucet.ID)
	require.NoError(t, err)
	assert.True(t, got.AmountPerClaim.Equal(amount))
	assert.Equal(t, 6, got.ClaimIntervalHours)
	require.NotNil(t, got.Description)
	assert.Equal(t, description, *got.Description)
}

func TestEngine_MalformedFaucetIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Config{})

	_, err := env.engine.CanClaim(ctx, "alice", "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.engine.UpdateFaucet(ctx, "not-a-uuid", UpdateFaucetInput{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
