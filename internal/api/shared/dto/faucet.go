package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/feral-file/ff-rewards/internal/store/schema"
)

// FaucetResponse represents a faucet
type FaucetResponse struct {
	ID                 string          `json:"id"`
	TokenID            string          `json:"token_id"`
	AmountPerClaim     decimal.Decimal `json:"amount_per_claim"`
	ClaimIntervalHours int             `json:"claim_interval_hours"`
	MaxClaimsPerUser   *int            `json:"max_claims_per_user,omitempty"`
	StartDate          *time.Time      `json:"start_date,omitempty"`
	EndDate            *time.Time      `json:"end_date,omitempty"`
	IsActive           bool            `json:"is_active"`
	Description        *string         `json:"description,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// MapFaucetToDTO maps a faucet row to its response
func MapFaucetToDTO(faucet *schema.Faucet) *FaucetResponse {
	return &FaucetResponse{
		ID:                 faucet.ID,
		TokenID:            faucet.TokenID,
		AmountPerClaim:     faucet.AmountPerClaim,
		ClaimIntervalHours: faucet.ClaimIntervalHours,
		MaxClaimsPerUser:   faucet.MaxClaimsPerUser,
		StartDate:          faucet.StartDate,
		EndDate:            faucet.EndDate,
		IsActive:           faucet.IsActive,
		Description:        faucet.Description,
		CreatedAt:          faucet.CreatedAt,
		UpdatedAt:          faucet.UpdatedAt,
	}
}

// FaucetListResponse represents a list of faucets
type FaucetListResponse struct {
	Faucets []FaucetResponse `json:"faucets"`
}

// MapFaucetsToDTO maps faucet rows to a list response
func MapFaucetsToDTO(faucets []schema.Faucet) *FaucetListResponse {
	items := make([]FaucetResponse, len(faucets))
	for i := range faucets {
		items[i] = *MapFaucetToDTO(&faucets[i])
	}
	return &FaucetListResponse{Faucets: items}
}

// FaucetClaimResponse represents one faucet claim
type FaucetClaimResponse struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	FaucetID    string          `json:"faucet_id"`
	ClaimNumber int             `json:"claim_number"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// MapFaucetClaimToDTO maps a faucet claim row to its response
func MapFaucetClaimToDTO(claim *schema.FaucetClaim) *FaucetClaimResponse {
	return &FaucetClaimResponse{
		ID:          claim.ID,
		UserID:      claim.UserID,
		FaucetID:    claim.FaucetID,
		ClaimNumber: claim.ClaimNumber,
		Amount:      claim.Amount,
		CreatedAt:   claim.CreatedAt,
	}
}

// FaucetClaimListResponse represents the claims of a user on a faucet, newest first
type FaucetClaimListResponse struct {
	Claims []FaucetClaimResponse `json:"claims"`
}

// MapFaucetClaimsToDTO maps faucet claim rows to a list response
func MapFaucetClaimsToDTO(claims []schema.FaucetClaim) *FaucetClaimListResponse {
	items := make([]FaucetClaimResponse, len(claims))
	for i := range claims {
		items[i] = *MapFaucetClaimToDTO(&claims[i])
	}
	return &FaucetClaimListResponse{Claims: items}
}

// EligibilityResponse answers whether a user can claim a faucet now
type EligibilityResponse struct {
	Allowed          bool   `json:"allowed"`
	Reason           string `json:"reason,omitempty"`
	Code             string `json:"code,omitempty"`
	MinutesRemaining *int64 `json:"minutes_remaining,omitempty"`
}
