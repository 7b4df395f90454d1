package airdrop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-rewards/internal/adapter"
	"github.com/feral-file/ff-rewards/internal/domain"
	"github.com/feral-file/ff-rewards/internal/ledger"
	"github.com/feral-file/ff-rewards/internal/logger"
	"github.com/feral-file/ff-rewards/internal/messaging"
	"github.com/feral-file/ff-rewards/internal/metrics"
	"github.com/feral-file/ff-rewards/internal/store"
	"github.com/feral-file/ff-rewards/internal/store/schema"
)

// Config holds the airdrop engine settings
type Config struct {
	// MaxDistributionBatch caps the number of users accepted by a single Distribute call
	MaxDistributionBatch int
}

// CreateAirdropInput represents the input for creating an airdrop
type CreateAirdropInput struct {
	TokenID       string
	AmountPerUser decimal.Decimal
	AirdropType   domain.AirdropType
	TotalAmount   decimal.Decimal
	// Criteria only applies to claim airdrops
	Criteria    *domain.AirdropCriteria
	StartDate   *time.Time
	EndDate     *time.Time
	IsActive    *bool
	Description *string
}

// UpdateAirdropInput is a patch; nil fields are left unchanged.
// The token, type and amount per user are fixed once the airdrop exists.
type UpdateAirdropInput struct {
	TotalAmount    *decimal.Decimal
	Criteria       *domain.AirdropCriteria
	StartDate      *time.Time
	EndDate        *time.Time
	ClearStartDate bool
	ClearEndDate   bool
	IsActive       *bool
	Description    *string
}

// DistributionResult is the outcome of one entry of a distribution batch
type DistributionResult struct {
	UserID  string
	Success bool
	Claim   *schema.AirdropClaim
	Err     error
}

// Engine manages one-time airdrop campaigns
type Engine interface {
	CreateAirdrop(ctx context.Context, input CreateAirdropInput) (*schema.Airdrop, error)
	UpdateAirdrop(ctx context.Context, id string, input UpdateAirdropInput) (*schema.Airdrop, error)
	GetAirdrop(ctx context.Context, id string) (*schema.Airdrop, error)
	ListAirdrops(ctx context.Context, activeOnly bool) ([]schema.Airdrop, error)

	// ListEligibleAirdrops lists the claim airdrops the user could claim right now
	ListEligibleAirdrops(ctx context.Context, userID string) ([]schema.Airdrop, error)
	// ClaimAirdrop grants a claim airdrop to the user at most once
	ClaimAirdrop(ctx context.Context, userID, airdropID string) (*schema.AirdropClaim, error)
	// Distribute grants a distribution airdrop to every user of the list, one transaction per entry.
	// Results follow the input order; a failed entry never undoes another.
	Distribute(ctx context.Context, airdropID string, userIDs []string) ([]DistributionResult, error)
	// ListUserClaims lists every airdrop claim of the user, newest first
	ListUserClaims(ctx context.Context, userID string) ([]schema.AirdropClaim, error)
}

type engine struct {
	store     store.Store
	ledger    ledger.Ledger
	clock     adapter.Clock
	json      adapter.JSON
	publisher messaging.Publisher
	config    Config
}

// NewEngine creates an airdrop engine
func NewEngine(
	st store.Store,
	l ledger.Ledger,
	clock adapter.Clock,
	jsonAdapter adapter.JSON,
	publisher messaging.Publisher,
	cfg Config,
) Engine {
	if cfg.MaxDistributionBatch <= 0 {
		cfg.MaxDistributionBatch = domain.DEFAULT_MAX_DISTRIBUTION_BATCH
	}
	if publisher == nil {
		publisher = messaging.NewNoopPublisher()
	}
	return &engine{
		store:     st,
		ledger:    l,
		clock:     clock,
		json:      jsonAdapter,
		publisher: publisher,
		config:    cfg,
	}
}

func (e *engine) now() time.Time {
	return adapter.Timestamp(e.clock)
}

func notFound(airdropID string) error {
	return domain.NewRewardError(domain.ErrNotFound, "airdrop %s not found", airdropID)
}

func (e *engine) criteriaOf(airdrop *schema.Airdrop) (domain.AirdropCriteria, error) {
	var criteria domain.AirdropCriteria
	if len(airdrop.Criteria) == 0 || string(airdrop.Criteria) == "null" {
		return criteria, nil
	}
	if err := e.json.Unmarshal(airdrop.Criteria, &criteria); err != nil {
		return criteria, fmt.Errorf("failed to decode criteria of airdrop %s: %w", airdrop.ID, err)
	}
	return criteria, nil
}

func (e *engine) encodeCriteria(criteria *domain.AirdropCriteria) (datatypes.JSON, error) {
	if criteria == nil || criteria.IsEmpty() {
		return nil, nil
	}
	data, err := e.json.Marshal(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to encode criteria: %w", err)
	}
	return datatypes.JSON(data), nil
}

// checkOpen rejects airdrops that cannot grant anything right now
func checkOpen(airdrop *schema.Airdrop, token *schema.Token, now time.Time) error {
	if !airdrop.IsActive {
		return domain.NewRewardError(domain.ErrInactiveResource, "airdrop is inactive")
	}
	if token == nil || !token.IsActive {
		return domain.NewRewardError(domain.ErrInactiveResource, "airdrop token is inactive")
	}
	return domain.CheckWindow("airdrop", now, airdrop.StartDate, airdrop.EndDate)
}

func supplyExhausted(airdrop *schema.Airdrop) bool {
	return airdrop.DistributedAmount.Add(airdrop.AmountPerUser).GreaterThan(airdrop.TotalAmount)
}

// grantedClaim carries what the post-commit event needs
type grantedClaim struct {
	*schema.AirdropClaim
	tokenID string
}

// grant runs the check-then-write of one (user, airdrop) pair in its own transaction.
// The airdrop row lock serializes grants of the same airdrop.
func (e *engine) grant(ctx context.Context, userID, airdropID string, airdropType domain.AirdropType) (*grantedClaim, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.NewValidationError("user id is required")
	}

	var granted *grantedClaim
	err := e.store.Transaction(ctx, func(tx store.Store) error {
		airdrop, err := tx.GetAirdropByIDForUpdate(ctx, airdropID)
		if err != nil {
			return err
		}
		if airdrop == nil {
			return notFound(airdropID)
		}
		if airdrop.AirdropType != airdropType {
			return domain.NewValidationError("airdrop %s is of type %s", airdropID, airdrop.AirdropType)
		}

		token, err := tx.GetTokenByID(ctx, airdrop.TokenID)
		if err != nil {
			return err
		}

		now := e.now()
		if err := checkOpen(airdrop, token, now); err != nil {
			return err
		}

		existing, err := tx.GetAirdropClaim(ctx, userID, airdropID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.NewRewardError(domain.ErrAlreadyClaimed, "airdrop already claimed")
		}

		if airdropType == domain.AirdropTypeClaim {
			criteria, err := e.criteriaOf(airdrop)
			if err != nil {
				return err
			}
			ok, reason, err := criteria.Evaluate(userID, func(tokenID string) (decimal.Decimal, error) {
				return tx.GetUserTokenBalance(ctx, userID, tokenID)
			})
			if err != nil {
				return err
			}
			if !ok {
				return domain.NewRewardError(domain.ErrNotEligible, "%s", reason)
			}
		}

		if supplyExhausted(airdrop) {
			return domain.NewRewardError(domain.ErrSupplyExhausted,
				"airdrop has %s left, %s required", airdrop.RemainingAmount().String(), airdrop.AmountPerUser.String())
		}

		claim := &schema.AirdropClaim{
			ID:        uuid.NewString(),
			UserID:    userID,
			AirdropID: airdrop.ID,
			Amount:    airdrop.AmountPerUser,
			CreatedAt: now,
		}
		if err := tx.CreateAirdropClaim(ctx, claim); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return domain.NewRewardError(domain.ErrAlreadyClaimed, "airdrop already claimed")
			}
			return err
		}

		if err := tx.IncrementAirdropDistributed(ctx, airdrop.ID, claim.Amount, now); err != nil {
			return err
		}

		description := fmt.Sprintf("airdrop %s", airdrop.ID)
		if airdrop.Description != nil && *airdrop.Description != "" {
			description = *airdrop.Description
		}
		_, err = e.ledger.AppendEntry(ctx, tx, ledger.EntryInput{
			UserID:      userID,
			TokenID:     airdrop.TokenID,
			Amount:      claim.Amount,
			Kind:        domain.TransactionKindAirdrop,
			Description: &description,
			ReferenceID: &claim.ID,
		})
		if err != nil {
			return err
		}

		granted = &grantedClaim{AirdropClaim: claim, tokenID: airdrop.TokenID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return granted, nil
}

func (e *engine) announce(ctx context.Context, eventType domain.RewardEventType, claim *grantedClaim) {
	metrics.ObserveLedgerEntry(domain.TransactionKindAirdrop)
	messaging.PublishBestEffort(ctx, e.publisher, &domain.RewardEvent{
		EventID:    claim.ID,
		Type:       eventType,
		UserID:     claim.UserID,
		TokenID:    claim.tokenID,
		ResourceID: claim.AirdropID,
		Amount:     claim.Amount,
		OccurredAt: claim.CreatedAt,
	})
}

func (e *engine) ClaimAirdrop(ctx context.Context, userID, airdropID string) (*schema.AirdropClaim, error) {
	started := time.Now()

	claim, err := e.grant(ctx, userID, airdropID, domain.AirdropTypeClaim)
	metrics.ObserveClaim(metrics.SourceAirdrop, err, started)
	if err != nil {
		logger.DebugCtx(ctx, "Airdrop claim rejected",
			zap.String("userID", userID),
			zap.String("airdropID", airdropID),
			zap.Error(err))
		return nil, err
	}

	logger.InfoCtx(ctx, "Airdrop claimed",
		zap.String("userID", userID),
		zap.String("airdropID", airdropID),
		zap.String("claimID", claim.ID),
		zap.String("amount", claim.Amount.String()))
	e.announce(ctx, domain.RewardEventAirdropClaimed, claim)

	return claim.AirdropClaim, nil
}

func (e *engine) Distribute(ctx context.Context, airdropID string, userIDs []string) ([]DistributionResult, error) {
	if len(userIDs) == 0 {
		return nil, domain.NewValidationError("user ids must not be empty")
	}
	if len(userIDs) > e.config.MaxDistributionBatch {
		return nil, domain.NewValidationError("at most %d users can be distributed to at once", e.config.MaxDistributionBatch)
	}

	airdrop, err := e.store.GetAirdropByID(ctx, airdropID)
	if err != nil {
		return nil, err
	}
	if airdrop == nil {
		return nil, notFound(airdropID)
	}
	if airdrop.AirdropType != domain.AirdropTypeDistribution {
		return nil, domain.NewValidationError("airdrop %s is not a distribution airdrop", airdropID)
	}

	metrics.DistributionBatchSize.Observe(float64(len(userIDs)))

	results := make([]DistributionResult, len(userIDs))
	succeeded := 0
	for i, userID := range userIDs {
		results[i].UserID = userID

		// an abandoned request stops granting; entries already committed stay
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}

		started := time.Now()
		claim, err := e.grant(ctx, userID, airdropID, domain.AirdropTypeDistribution)
		metrics.ObserveClaim(metrics.SourceDistribution, err, started)
		if err != nil {
			results[i].Err = err
			continue
		}

		results[i].Success = true
		results[i].Claim = claim.AirdropClaim
		succeeded++
		e.announce(ctx, domain.RewardEventAirdropDistributed, claim)
	}

	logger.InfoCtx(ctx, "Airdrop distributed",
		zap.String("airdropID", airdropID),
		zap.Int("requested", len(userIDs)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(userIDs)-succeeded))

	return results, nil
}

func (e *engine) ListEligibleAirdrops(ctx context.Context, userID string) ([]schema.Airdrop, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.NewValidationError("user id is required")
	}

	claimType := domain.AirdropTypeClaim
	airdrops, err := e.store.GetAirdrops(ctx, store.AirdropFilter{ActiveOnly: true, Type: &claimType})
	if err != nil {
		return nil, err
	}

	now := e.now()
	tokens := make(map[string]*schema.Token)
	balanceOf := func(tokenID string) (decimal.Decimal, error) {
		return e.store.GetUserTokenBalance(ctx, userID, tokenID)
	}

	eligible := []schema.Airdrop{}
	for i := range airdrops {
		airdrop := &airdrops[i]

		token, ok := tokens[airdrop.TokenID]
		if !ok {
			token, err = e.store.GetTokenByID(ctx, airdrop.TokenID)
			if err != nil {
				return nil, err
			}
			tokens[airdrop.TokenID] = token
		}
		if checkOpen(airdrop, token, now) != nil || supplyExhausted(airdrop) {
			continue
		}

		claim, err := e.store.GetAirdropClaim(ctx, userID, airdrop.ID)
		if err != nil {
			return nil, err
		}
		if claim != nil {
			continue
		}

		criteria, err := e.criteriaOf(airdrop)
		if err != nil {
			return nil, err
		}
		accepted, _, err := criteria.Evaluate(userID, balanceOf)
		if err != nil {
			return nil, err
		}
		if accepted {
			eligible = append(eligible, *airdrop)
		}
	}

	return eligible, nil
}

func (e *engine) ListUserClaims(ctx context.Context, userID string) ([]schema.AirdropClaim, error) {
	claims, err := e.store.GetAirdropClaimsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if claims == nil {
		claims = []schema.AirdropClaim{}
	}
	return claims, nil
}

func validateAirdrop(airdrop *schema.Airdrop, criteria *domain.AirdropCriteria) error {
	if !airdrop.AirdropType.Valid() {
		return domain.NewValidationError("unknown airdrop type %q", airdrop.AirdropType)
	}
	if !airdrop.AmountPerUser.IsPositive() {
		return domain.NewValidationError("amount per user must be positive")
	}
	if !airdrop.TotalAmount.IsPositive() {
		return domain.NewValidationError("total amount must be positive")
	}
	if airdrop.AmountPerUser.GreaterThan(airdrop.TotalAmount) {
		return domain.NewValidationError("amount per user must not exceed the total amount")
	}
	if airdrop.TotalAmount.LessThan(airdrop.DistributedAmount) {
		return domain.NewValidationError("total amount must not be below the %s already distributed", airdrop.DistributedAmount.String())
	}
	if airdrop.StartDate != nil && airdrop.EndDate != nil && airdrop.EndDate.Before(*airdrop.StartDate) {
		return domain.NewValidationError("end date must not be before start date")
	}
	if criteria != nil && !criteria.IsEmpty() {
		if airdrop.AirdropType == domain.AirdropTypeDistribution {
			return domain.NewValidationError("criteria only apply to claim airdrops")
		}
		if err := criteria.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (e *engine) CreateAirdrop(ctx context.Context, input CreateAirdropInput) (*schema.Airdrop, error) {
	if input.TokenID == "" {
		return nil, domain.NewValidationError("token id is required")
	}

	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}

	now := e.now()
	airdrop := &schema.Airdrop{
		ID:                uuid.NewString(),
		TokenID:           input.TokenID,
		AmountPerUser:     input.AmountPerUser,
		AirdropType:       input.AirdropType,
		TotalAmount:       input.TotalAmount,
		DistributedAmount: decimal.Zero,
		StartDate:         input.StartDate,
		EndDate:           input.EndDate,
		IsActive:          isActive,
		Description:       input.Description,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := validateAirdrop(airdrop, input.Criteria); err != nil {
		return nil, err
	}

	criteria, err := e.encodeCriteria(input.Criteria)
	if err != nil {
		return nil, err
	}
	airdrop.Criteria = criteria

	token, err := e.store.GetTokenByID(ctx, input.TokenID)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, domain.NewRewardError(domain.ErrNotFound, "token %s not found", input.TokenID)
	}

	if err := e.store.CreateAirdrop(ctx, airdrop); err != nil {
		return nil, fmt.Errorf("failed to create airdrop: %w", err)
	}

	logger.InfoCtx(ctx, "Created airdrop",
		zap.String("airdropID", airdrop.ID),
		zap.String("type", string(airdrop.AirdropType)),
		zap.String("totalAmount", airdrop.TotalAmount.String()))

	return airdrop, nil
}

func (e *engine) UpdateAirdrop(ctx context.Context, id string, input UpdateAirdropInput) (*schema.Airdrop, error) {
	var updated *schema.Airdrop

	// the row lock keeps the total consistent with concurrent grants
	err := e.store.Transaction(ctx, func(tx store.Store) error {
		airdrop, err := tx.GetAirdropByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if airdrop == nil {
			return notFound(id)
		}

		if input.TotalAmount != nil {
			airdrop.TotalAmount = *input.TotalAmount
		}
		if input.ClearStartDate {
			airdrop.StartDate = nil
		} else if input.StartDate != nil {
			airdrop.StartDate = input.StartDate
		}
		if input.ClearEndDate {
			airdrop.EndDate = nil
		} else if input.EndDate != nil {
			airdrop.EndDate = input.EndDate
		}
		if input.IsActive != nil {
			airdrop.IsActive = *input.IsActive
		}
		if input.Description != nil {
			airdrop.Description = input.Description
		}

		if err := validateAirdrop(airdrop, input.Criteria); err != nil {
			return err
		}
		if input.Criteria != nil {
			criteria, err := e.encodeCriteria(input.Criteria)
			if err != nil {
				return err
			}
			airdrop.Criteria = criteria
		}

		airdrop.UpdatedAt = e.now()
		if err := tx.SaveAirdrop(ctx, airdrop); err != nil {
			return err
		}

		updated = airdrop
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (e *engine) GetAirdrop(ctx context.Context, id string) (*schema.Airdrop, error) {
	airdrop, err := e.store.GetAirdropByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if airdrop == nil {
		return nil, notFound(id)
	}
	return airdrop, nil
}

func (e *engine) ListAirdrops(ctx context.Context, activeOnly bool) ([]schema.Airdrop, error) {
	return e.store.GetAirdrops(ctx, store.AirdropFilter{ActiveOnly: activeOnly})
}
