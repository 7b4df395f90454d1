package faucet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/feral-file/ff-rewards/internal/adapter"
	"github.com/feral-file/ff-rewards/internal/domain"
	"github.com/feral-file/ff-rewards/internal/ledger"
	"github.com/feral-file/ff-rewards/internal/logger"
	"github.com/feral-file/ff-rewards/internal/messaging"
	"github.com/feral-file/ff-rewards/internal/metrics"
	"github.com/feral-file/ff-rewards/internal/store"
	"github.com/feral-file/ff-rewards/internal/store/schema"
)

// defaultClaimRetryMaxElapsed bounds the retries of a claim that lost a claim number race
const defaultClaimRetryMaxElapsed = 2 * time.Second

// Config holds the faucet engine settings
type Config struct {
	ClaimRetryMaxElapsed time.Duration
}

// CreateFaucetInput represents the input for creating a faucet
type CreateFaucetInput struct {
	TokenID            string
	AmountPerClaim     decimal.Decimal
	ClaimIntervalHours int
	// MaxClaimsPerUser is nil for unlimited claims
	MaxClaimsPerUser *int
	StartDate        *time.Time
	EndDate          *time.Time
	// IsActive defaults to true
	IsActive    *bool
	Description *string
}

// UpdateFaucetInput is a patch; nil fields are left unchanged
type UpdateFaucetInput struct {
	AmountPerClaim     *decimal.Decimal
	ClaimIntervalHours *int
	// MaxClaimsPerUser of 0 removes the cap
	MaxClaimsPerUser *int
	StartDate        *time.Time
	EndDate          *time.Time
	ClearStartDate   bool
	ClearEndDate     bool
	IsActive         *bool
	Description      *string
}

// Engine evaluates and executes recurring faucet claims
type Engine interface {
	// CanClaim reports whether the user may claim now. It never mutates state.
	CanClaim(ctx context.Context, userID, faucetID string) (Eligibility, error)
	// Claim re-validates eligibility and grants amount_per_claim atomically
	Claim(ctx context.Context, userID, faucetID string) (*schema.FaucetClaim, error)
	// ListClaims lists the claims of a user on a faucet, newest first
	ListClaims(ctx context.Context, userID, faucetID string) ([]schema.FaucetClaim, error)

	CreateFaucet(ctx context.Context, input CreateFaucetInput) (*schema.Faucet, error)
	UpdateFaucet(ctx context.Context, id string, input UpdateFaucetInput) (*schema.Faucet, error)
	GetFaucet(ctx context.Context, id string) (*schema.Faucet, error)
	ListFaucets(ctx context.Context, activeOnly bool) ([]schema.Faucet, error)
}

type engine struct {
	store     store.Store
	ledger    ledger.Ledger
	clock     adapter.Clock
	publisher messaging.Publisher
	config    Config
}

// NewEngine creates a faucet engine
func NewEngine(st store.Store, l ledger.Ledger, clock adapter.Clock, publisher messaging.Publisher, cfg Config) Engine {
	if cfg.ClaimRetryMaxElapsed <= 0 {
		cfg.ClaimRetryMaxElapsed = defaultClaimRetryMaxElapsed
	}
	if publisher == nil {
		publisher = messaging.NewNoopPublisher()
	}
	return &engine{
		store:     st,
		ledger:    l,
		clock:     clock,
		publisher: publisher,
		config:    cfg,
	}
}

func (e *engine) now() time.Time {
	return adapter.Timestamp(e.clock)
}

func notFound(faucetID string) error {
	return domain.NewRewardError(domain.ErrNotFound, "faucet %s not found", faucetID)
}

func (e *engine) CanClaim(ctx context.Context, userID, faucetID string) (Eligibility, error) {
	if strings.TrimSpace(userID) == "" {
		return Eligibility{}, domain.NewValidationError("user id is required")
	}

	faucet, err := e.store.GetFaucetByID(ctx, faucetID)
	if err != nil {
		return Eligibility{}, err
	}
	if faucet == nil {
		return Eligibility{}, notFound(faucetID)
	}

	token, err := e.store.GetTokenByID(ctx, faucet.TokenID)
	if err != nil {
		return Eligibility{}, err
	}

	summary, err := e.store.GetFaucetClaimSummary(ctx, userID, faucetID)
	if err != nil {
		return Eligibility{}, err
	}

	if err := evaluate(faucet, token, summary, e.now()); err != nil {
		if eligibility, ok := toEligibility(err); ok {
			return eligibility, nil
		}
		return Eligibility{}, err
	}

	return Eligibility{Allowed: true}, nil
}

func (e *engine) Claim(ctx context.Context, userID, faucetID string) (*schema.FaucetClaim, error) {
	started := time.Now()

	claim, err := e.claimWithRetry(ctx, userID, faucetID)
	metrics.ObserveClaim(metrics.SourceFaucet, err, started)
	if err != nil {
		logger.DebugCtx(ctx, "Faucet claim rejected",
			zap.String("userID", userID),
			zap.String("faucetID", faucetID),
			zap.Error(err))
		return nil, err
	}

	metrics.ObserveLedgerEntry(domain.TransactionKindFaucet)
	logger.InfoCtx(ctx, "Faucet claimed",
		zap.String("userID", userID),
		zap.String("faucetID", faucetID),
		zap.String("claimID", claim.ID),
		zap.Int("claimNumber", claim.ClaimNumber),
		zap.String("amount", claim.Amount.String()))

	messaging.PublishBestEffort(ctx, e.publisher, &domain.RewardEvent{
		EventID:    claim.ID,
		Type:       domain.RewardEventFaucetClaimed,
		UserID:     claim.UserID,
		TokenID:    claim.tokenID,
		ResourceID: claim.FaucetID,
		Amount:     claim.Amount,
		OccurredAt: claim.CreatedAt,
	})

	return claim.FaucetClaim, nil
}

// grantedClaim carries the token of a committed claim for the event
type grantedClaim struct {
	*schema.FaucetClaim
	tokenID string
}

func (e *engine) claimWithRetry(ctx context.Context, userID, faucetID string) (*grantedClaim, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.NewValidationError("user id is required")
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = e.config.ClaimRetryMaxElapsed

	var claim *grantedClaim
	operation := func() error {
		c, err := e.claimOnce(ctx, userID, faucetID)
		if err != nil {
			// a concurrent claim took the same claim number; the retry re-observes it
			if errors.Is(err, store.ErrConflict) {
				return err
			}
			return backoff.Permanent(err)
		}
		claim = c
		return nil
	}

	notify := func(err error, d time.Duration) {
		metrics.ClaimRetries.WithLabelValues(metrics.SourceFaucet).Inc()
		logger.DebugCtx(ctx, "Faucet claim conflicted, retrying",
			zap.String("userID", userID),
			zap.String("faucetID", faucetID),
			zap.Duration("next_retry_in", d))
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domain.NewRewardError(domain.ErrNotEligible, "another claim for this faucet is in progress")
		}
		return nil, err
	}

	return claim, nil
}

func (e *engine) claimOnce(ctx context.Context, userID, faucetID string) (*grantedClaim, error) {
	var granted *grantedClaim

	err := e.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.LockFaucetClaimant(ctx, userID, faucetID); err != nil {
			return err
		}

		faucet, err := tx.GetFaucetByID(ctx, faucetID)
		if err != nil {
			return err
		}
		if faucet == nil {
			return notFound(faucetID)
		}

		token, err := tx.GetTokenByID(ctx, faucet.TokenID)
		if err != nil {
			return err
		}

		summary, err := tx.GetFaucetClaimSummary(ctx, userID, faucetID)
		if err != nil {
			return err
		}

		now := e.now()
		if err := evaluate(faucet, token, summary, now); err != nil {
			return err
		}

		claim := &schema.FaucetClaim{
			ID:          uuid.NewString(),
			UserID:      userID,
			FaucetID:    faucet.ID,
			ClaimNumber: summary.Count + 1,
			Amount:      faucet.AmountPerClaim,
			CreatedAt:   now,
		}
		if err := tx.CreateFaucetClaim(ctx, claim); err != nil {
			return err
		}

		description := fmt.Sprintf("faucet claim #%d", claim.ClaimNumber)
		_, err = e.ledger.AppendEntry(ctx, tx, ledger.EntryInput{
			UserID:      userID,
			TokenID:     faucet.TokenID,
			Amount:      claim.Amount,
			Kind:        domain.TransactionKindFaucet,
			Description: &description,
			ReferenceID: &claim.ID,
		})
		if err != nil {
			return err
		}

		granted = &grantedClaim{FaucetClaim: claim, tokenID: faucet.TokenID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return granted, nil
}

func (e *engine) ListClaims(ctx context.Context, userID, faucetID string) ([]schema.FaucetClaim, error) {
	faucet, err := e.store.GetFaucetByID(ctx, faucetID)
	if err != nil {
		return nil, err
	}
	if faucet == nil {
		return nil, notFound(faucetID)
	}

	claims, err := e.store.GetFaucetClaims(ctx, userID, faucetID)
	if err != nil {
		return nil, err
	}
	if claims == nil {
		claims = []schema.FaucetClaim{}
	}
	return claims, nil
}

func validateFaucet(faucet *schema.Faucet) error {
	if !faucet.AmountPerClaim.IsPositive() {
		return domain.NewValidationError("amount per claim must be positive")
	}
	if faucet.ClaimIntervalHours <= 0 {
		return domain.NewValidationError("claim interval must be a positive number of hours")
	}
	if faucet.MaxClaimsPerUser != nil && *faucet.MaxClaimsPerUser <= 0 {
		return domain.NewValidationError("max claims per user must be positive")
	}
	if faucet.StartDate != nil && faucet.EndDate != nil && faucet.EndDate.Before(*faucet.StartDate) {
		return domain.NewValidationError("end date must not be before start date")
	}
	return nil
}

func (e *engine) CreateFaucet(ctx context.Context, input CreateFaucetInput) (*schema.Faucet, error) {
	if input.TokenID == "" {
		return nil, domain.NewValidationError("token id is required")
	}

	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}

	now := e.now()
	faucet := &schema.Faucet{
		ID:                 uuid.NewString(),
		TokenID:            input.TokenID,
		AmountPerClaim:     input.AmountPerClaim,
		ClaimIntervalHours: input.ClaimIntervalHours,
		MaxClaimsPerUser:   input.MaxClaimsPerUser,
		StartDate:          input.StartDate,
		EndDate:            input.EndDate,
		IsActive:           isActive,
		Description:        input.Description,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := validateFaucet(faucet); err != nil {
		return nil, err
	}

	token, err := e.store.GetTokenByID(ctx, input.TokenID)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, domain.NewRewardError(domain.ErrNotFound, "token %s not found", input.TokenID)
	}

	if err := e.store.CreateFaucet(ctx, faucet); err != nil {
		return nil, fmt.Errorf("failed to create faucet: %w", err)
	}

	return faucet, nil
}

func (e *engine) UpdateFaucet(ctx context.Context, id string, input UpdateFaucetInput) (*schema.Faucet, error) {
	var updated *schema.Faucet
	err := e.store.Transaction(ctx, func(tx store.Store) error {
		faucet, err := tx.GetFaucetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if faucet == nil {
			return notFound(id)
		}

		applyFaucetUpdate(faucet, input)
		if err := validateFaucet(faucet); err != nil {
			return err
		}

		faucet.UpdatedAt = e.now()
		if err := tx.SaveFaucet(ctx, faucet); err != nil {
			return err
		}
		updated = faucet
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func applyFaucetUpdate(faucet *schema.Faucet, input UpdateFaucetInput) {
	if input.AmountPerClaim != nil {
		faucet.AmountPerClaim = *input.AmountPerClaim
	}
	if input.ClaimIntervalHours != nil {
		faucet.ClaimIntervalHours = *input.ClaimIntervalHours
	}
	if input.MaxClaimsPerUser != nil {
		if *input.MaxClaimsPerUser == 0 {
			faucet.MaxClaimsPerUser = nil
		} else {
			maxClaims := *input.MaxClaimsPerUser
			faucet.MaxClaimsPerUser = &maxClaims
		}
	}
	if input.ClearStartDate {
		faucet.StartDate = nil
	} else if input.StartDate != nil {
		faucet.StartDate = input.StartDate
	}
	if input.ClearEndDate {
		faucet.EndDate = nil
	} else if input.EndDate != nil {
		faucet.EndDate = input.EndDate
	}
	if input.IsActive != nil {
		faucet.IsActive = *input.IsActive
	}
	if input.Description != nil {
		faucet.Description = input.Description
	}
}

func (e *engine) GetFaucet(ctx context.Context, id string) (*schema.Faucet, error) {
	faucet, err := e.store.GetFaucetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if faucet == nil {
		return nil, notFound(id)
	}
	return faucet, nil
}

func (e *engine) ListFaucets(ctx context.Context, activeOnly bool) ([]schema.Faucet, error) {
	return e.store.GetFaucets(ctx, activeOnly)
}
