package executor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/feral-file/ff-rewards/internal/airdrop"
	"github.com/feral-file/ff-rewards/internal/api/shared/dto"
	apierrors "github.com/feral-file/ff-rewards/internal/api/shared/errors"
	"github.com/feral-file/ff-rewards/internal/domain"
	"github.com/feral-file/ff-rewards/internal/faucet"
	"github.com/feral-file/ff-rewards/internal/ledger"
	"github.com/feral-file/ff-rewards/internal/logger"
	"github.com/feral-file/ff-rewards/internal/registry"
	"github.com/feral-file/ff-rewards/internal/store/schema"
)

// Executor is the interface for the API executor. It maps engine results to DTOs
// and engine errors to API errors.
type Executor interface {
	// Tokens
	ListTokens(ctx context.Context, activeOnly bool) (*dto.TokenListResponse, error)
	CreateToken(ctx context.Context, req dto.CreateTokenRequest) (*dto.TokenResponse, error)
	UpdateToken(ctx context.Context, tokenID string, req dto.UpdateTokenRequest) (*dto.TokenResponse, error)

	// Faucets
	ListFaucets(ctx context.Context, activeOnly bool) (*dto.FaucetListResponse, error)
	CreateFaucet(ctx context.Context, req dto.CreateFaucetRequest) (*dto.FaucetResponse, error)
	UpdateFaucet(ctx context.Context, faucetID string, req dto.UpdateFaucetRequest) (*dto.FaucetResponse, error)
	CanClaimFaucet(ctx context.Context, userID, faucetID string) (*dto.EligibilityResponse, error)
	ClaimFaucet(ctx context.Context, userID, faucetID string) (*dto.FaucetClaimResponse, error)
	GetUserFaucetClaims(ctx context.Context, userID, faucetID string) (*dto.FaucetClaimListResponse, error)

	// Airdrops
	ListAirdrops(ctx context.Context, activeOnly bool) (*dto.AirdropListResponse, error)
	CreateAirdrop(ctx context.Context, req dto.CreateAirdropRequest) (*dto.AirdropResponse, error)
	UpdateAirdrop(ctx context.Context, airdropID string, req dto.UpdateAirdropRequest) (*dto.AirdropResponse, error)
	GetUserEligibleAirdrops(ctx context.Context, userID string) (*dto.AirdropListResponse, error)
	ClaimAirdrop(ctx context.Context, userID, airdropID string) (*dto.AirdropClaimResponse, error)
	GetUserAirdropClaims(ctx context.Context, userID string) (*dto.AirdropClaimListResponse, error)
	DistributeAirdrop(ctx context.Context, airdropID string, req dto.DistributeAirdropRequest) (*dto.DistributionResponse, error)

	// Ledger
	GetUserTokens(ctx context.Context, userID string) (*dto.UserTokenBalanceListResponse, error)
	GetTokenTransactions(ctx context.Context, userID string, tokenID *string, limit int) (*dto.TransactionListResponse, error)
	RecordLedgerEntry(ctx context.Context, req dto.RecordLedgerEntryRequest) (*dto.TransactionResponse, error)
}

type executor struct {
	registry registry.Registry
	ledger   ledger.Ledger
	faucets  faucet.Engine
	airdrops airdrop.Engine
}

func NewExecutor(r registry.Registry, l ledger.Ledger, f faucet.Engine, a airdrop.Engine) Executor {
	return &executor{registry: r, ledger: l, faucets: f, airdrops: a}
}

// fail converts an engine error. Internal errors are logged here, where the cause is still known.
func fail(ctx context.Context, message string, err error, fields ...zap.Field) *apierrors.APIError {
	apiErr := apierrors.FromDomain(err)
	if apiErr.Code == apierrors.ErrCodeInternalError {
		var passthrough *apierrors.APIError
		if !errors.As(err, &passthrough) {
			logger.ErrorCtx(ctx, fmt.Errorf("%s: %w", message, err), fields...)
			return apierrors.NewInternalError(message)
		}
	}
	return apiErr
}

func (e *executor) ListTokens(ctx context.Context, activeOnly bool) (*dto.TokenListResponse, error) {
	tokens, err := e.registry.ListTokens(ctx, activeOnly)
	if err != nil {
		return nil, fail(ctx, "Failed to list tokens", err)
	}
	return dto.MapTokensToDTO(tokens), nil
}

func (e *executor) CreateToken(ctx context.Context, req dto.CreateTokenRequest) (*dto.TokenResponse, error) {
	token, err := e.registry.CreateToken(ctx, registry.CreateTokenInput{
		Name:        req.Name,
		Symbol:      req.Symbol,
		Description: req.Description,
		LogoURL:     req.LogoURL,
		TotalSupply: req.TotalSupply,
		IsActive:    req.IsActive,
	})
	if err != nil {
		return nil, fail(ctx, "Failed to create token", err)
	}
	return dto.MapTokenToDTO(token), nil
}

func (e *executor) UpdateToken(ctx context.Context, tokenID string, req dto.UpdateTokenRequest) (*dto.TokenResponse, error) {
	token, err := e.registry.UpdateToken(ctx, tokenID, registry.UpdateTokenInput{
		Name:        req.Name,
		Description: req.Description,
		LogoURL:     req.LogoURL,
		IsActive:    req.IsActive,
	})
	if err != nil {
		return nil, fail(ctx, "Failed to update token", err, zap.String("tokenID", tokenID))
	}
	return dto.MapTokenToDTO(token), nil
}

func (e *executor) ListFaucets(ctx context.Context, activeOnly bool) (*dto.FaucetListResponse, error) {
	faucets, err := e.faucets.ListFaucets(ctx, activeOnly)
	if err != nil {
		return nil, fail(ctx, "Failed to list faucets", err)
	}
	return dto.MapFaucetsToDTO(faucets), nil
}

func (e *executor) CreateFaucet(ctx context.Context, req dto.CreateFaucetRequest) (*dto.FaucetResponse, error) {
	f, err := e.faucets.CreateFaucet(ctx, faucet.CreateFaucetInput{
		TokenID:            req.TokenID,
		AmountPerClaim:     req.AmountPerClaim,
		ClaimIntervalHours: req.ClaimIntervalHours,
		MaxClaimsPerUser:   req.MaxClaimsPerUser,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
		IsActive:           req.IsActive,
		Description:        req.Description,
	})
	if err != nil {
		return nil, fail(ctx, "Failed to create faucet", err)
	}
	return dto.MapFaucetToDTO(f), nil
}

func (e *executor) UpdateFaucet(ctx context.Context, faucetID string, req dto.UpdateFaucetRequest) (*dto.FaucetResponse, error) {
	f, err := e.faucets.UpdateFaucet(ctx, faucetID, faucet.UpdateFaucetInput{
		AmountPerClaim:     req.AmountPerClaim,
		ClaimIntervalHours: req.ClaimIntervalHours,
		MaxClaimsPerUser:   req.MaxClaimsPerUser,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
		ClearStartDate:     req.ClearStartDate,
		ClearEndDate:       req.ClearEndDate,
		IsActive:           req.IsActive,
		Description:        req.Description,
	})
	if err != nil {
		return nil, fail(ctx, "Failed to update faucet", err, zap.String("faucetID", faucetID))
	}
	return dto.MapFaucetToDTO(f), nil
}

func (e *executor) CanClaimFaucet(ctx context.Context, userID, faucetID string) (*dto.EligibilityResponse, error) {
	eligibility, err := e.faucets.CanClaim(ctx, userID, faucetID)
	if err != nil {
		return nil, fail(ctx, "Failed to check faucet eligibility", err, zap.String("faucetID", faucetID))
	}
	return &dto.EligibilityResponse{
		Allowed:          eligibility.Allowed,
		Reason:           eligibility.Reason,
		Code:             eligibility.Code,
		MinutesRemaining: eligibility.MinutesRemaining,
	}, nil
}

func (e *executor) ClaimFaucet(ctx context.Context, userID, faucetID string) (*dto.FaucetClaimResponse, error) {
	claim, err := e.faucets.Claim(ctx, userID, faucetID)
	if err != nil {
		return nil, fail(ctx, "Failed to claim faucet", err, zap.String("userID", userID), zap.String("faucetID", faucetID))
	}
	return dto.MapFaucetClaimToDTO(claim), nil
}

func (e *executor) GetUserFaucetClaims(ctx context.Context, userID, faucetID string) (*dto.FaucetClaimListResponse, error) {
	claims, err := e.faucets.ListClaims(ctx, userID, faucetID)
	if err != nil {
		return nil, fail(ctx, "Failed to list faucet claims", err, zap.String("faucetID", faucetID))
	}
	return dto.MapFaucetClaimsToDTO(claims), nil
}

func (e *executor) ListAirdrops(ctx context.Context, activeOnly bool) (*dto.AirdropListResponse, error) {
	airdrops, err := e.airdrops.ListAirdrops(ctx, activeOnly)
	if err != nil {
		return nil, fail(ctx, "Failed to list airdrops", err)
	}
	return dto.MapAirdropsToDTO(airdrops), nil
}

func (e *executor) CreateAirdrop(ctx context.Context, req dto.CreateAirdropRequest) (*dto.AirdropResponse, error) {
	a, err := e.airdrops.CreateAirdrop(ctx, airdrop.CreateAirdropInput{
		TokenID:       req.TokenID,
		AmountPerUser: req.AmountPerUser,
		AirdropType:   req.AirdropType,
		TotalAmount:   req.TotalAmount,
		Criteria:      req.Criteria,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		IsActive:      req.IsActive,
		Description:   req.Description,
	})
	if err != nil {
		return nil, fail(ctx, "Failed to create airdrop", err)
	}
	return dto.MapAirdropToDTO(a), nil
}

func (e *executor) UpdateAirdrop(ctx context.Context, airdropID string, req dto.UpdateAirdropRequest) (*dto.AirdropResponse, error) {
	a, err := e.airdrops.UpdateAirdrop(ctx, airdropID, airdrop.UpdateAirdropInput{
		TotalAmount:    req.TotalAmount,
		Criteria:       req.Criteria,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		ClearStartDate: req.ClearStartDate,
		ClearEndDate:   req.ClearEndDate,
		IsActive:       req.IsActive,
		Description:    req.Description,
	})
	if err != nil {
		return nil, fail(ctx, "Failed to update airdrop", err, zap.String("airdropID", airdropID))
	}
	return dto.MapAirdropToDTO(a), nil
}

func (e *executor) GetUserEligibleAirdrops(ctx context.Context, userID string) (*dto.AirdropListResponse, error) {
	airdrops, err := e.airdrops.ListEligibleAirdrops(ctx, userID)
	if err != nil {
		return nil, fail(ctx, "Failed to list eligible airdrops", err, zap.String("userID", userID))
	}
	return dto.MapAirdropsToDTO(airdrops), nil
}

func (e *executor) ClaimAirdrop(ctx context.Context, userID, airdropID string) (*dto.AirdropClaimResponse, error) {
	claim, err := e.airdrops.ClaimAirdrop(ctx, userID, airdropID)
	if err != nil {
		return nil, fail(ctx, "Failed to claim airdrop", err, zap.String("userID", userID), zap.String("airdropID", airdropID))
	}
	return dto.MapAirdropClaimToDTO(claim), nil
}

func (e *executor) GetUserAirdropClaims(ctx context.Context, userID string) (*dto.AirdropClaimListResponse, error) {
	claims, err := e.airdrops.ListUserClaims(ctx, userID)
	if err != nil {
		return nil, fail(ctx, "Failed to list airdrop claims", err, zap.String("userID", userID))
	}
	return dto.MapAirdropClaimsToDTO(claims), nil
}

func (e *executor) DistributeAirdrop(ctx context.Context, airdropID string, req dto.DistributeAirdropRequest) (*dto.DistributionResponse, error) {
	results, err := e.airdrops.Distribute(ctx, airdropID, req.UserIDs)
	if err != nil {
		return nil, fail(ctx, "Failed to distribute airdrop", err, zap.String("airdropID", airdropID))
	}

	response := &dto.DistributionResponse{
		AirdropID: airdropID,
		Results:   make([]dto.DistributionOutcome, len(results)),
	}
	for i, result := range results {
		outcome := dto.DistributionOutcome{UserID: result.UserID, Success: result.Success}
		if result.Success {
			outcome.Claim = dto.MapAirdropClaimToDTO(result.Claim)
			response.SuccessCount++
		} else {
			apiErr := fail(ctx, "Failed to distribute airdrop entry", result.Err,
				zap.String("airdropID", airdropID),
				zap.String("userID", result.UserID))
			outcome.Error = &dto.DistributionError{Code: string(apiErr.Code), Message: apiErr.Message}
			if details, ok := apiErr.Details.(string); ok && details != "" {
				outcome.Error.Message = details
			}
			response.FailureCount++
		}
		response.Results[i] = outcome
	}

	return response, nil
}

func (e *executor) GetUserTokens(ctx context.Context, userID string) (*dto.UserTokenBalanceListResponse, error) {
	balances, err := e.ledger.GetBalances(ctx, userID)
	if err != nil {
		return nil, fail(ctx, "Failed to get balances", err, zap.String("userID", userID))
	}

	tokens := make(map[string]*schema.Token, len(balances))
	for _, balance := range balances {
		if _, ok := tokens[balance.TokenID]; ok {
			continue
		}
		token, err := e.registry.GetToken(ctx, balance.TokenID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fail(ctx, "Failed to get balances", err, zap.String("userID", userID))
		}
		tokens[balance.TokenID] = token
	}

	return dto.MapBalancesToDTO(userID, balances, tokens), nil
}

func (e *executor) GetTokenTransactions(ctx context.Context, userID string, tokenID *string, limit int) (*dto.TransactionListResponse, error) {
	txns, err := e.ledger.CollectTransactions(ctx, userID, tokenID, limit)
	if err != nil {
		return nil, fail(ctx, "Failed to list transactions", err, zap.String("userID", userID))
	}
	return dto.MapTransactionsToDTO(txns), nil
}

func (e *executor) RecordLedgerEntry(ctx context.Context, req dto.RecordLedgerEntryRequest) (*dto.TransactionResponse, error) {
	txn, err := e.ledger.RecordEntry(ctx, ledger.EntryInput{
		UserID:      req.UserID,
		TokenID:     req.TokenID,
		Amount:      req.Amount,
		Kind:        req.Kind,
		Description: req.Description,
	})
	if err != nil {
		return nil, fail(ctx, "Failed to record ledger entry", err, zap.String("userID", req.UserID))
	}
	return dto.MapTransactionToDTO(txn), nil
}
