package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/feral-file/ff-rewards/internal/domain"
	"github.com/feral-file/ff-rewards/internal/store/schema"
)

// AirdropResponse represents an airdrop
type AirdropResponse struct {
	ID                string             `json:"id"`
	TokenID           string             `json:"token_id"`
	AmountPerUser     decimal.Decimal    `json:"amount_per_user"`
	AirdropType       domain.AirdropType `json:"airdrop_type"`
	TotalAmount       decimal.Decimal    `json:"total_amount"`
	DistributedAmount decimal.Decimal    `json:"distributed_amount"`
	RemainingAmount   decimal.Decimal    `json:"remaining_amount"`
	Criteria          json.RawMessage    `json:"criteria,omitempty"`
	StartDate         *time.Time         `json:"start_date,omitempty"`
	EndDate           *time.Time         `json:"end_date,omitempty"`
	IsActive          bool               `json:"is_active"`
	Description       *string            `json:"description,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// MapAirdropToDTO maps an airdrop row to its response
func MapAirdropToDTO(airdrop *schema.Airdrop) *AirdropResponse {
	response := &AirdropResponse{
		ID:                airdrop.ID,
		TokenID:           airdrop.TokenID,
		AmountPerUser:     airdrop.AmountPerUser,
		AirdropType:       airdrop.AirdropType,
		TotalAmount:       airdrop.TotalAmount,
		DistributedAmount: airdrop.DistributedAmount,
		RemainingAmount:   airdrop.RemainingAmount(),
		StartDate:         airdrop.StartDate,
		EndDate:           airdrop.EndDate,
		IsActive:          airdrop.IsActive,
		Description:       airdrop.Description,
		CreatedAt:         airdrop.CreatedAt,
		UpdatedAt:         airdrop.UpdatedAt,
	}
	if len(airdrop.Criteria) > 0 {
		response.Criteria = json.RawMessage(airdrop.Criteria)
	}
	return response
}

// AirdropListResponse represents a list of airdrops
type AirdropListResponse struct {
	Airdrops []AirdropResponse `json:"airdrops"`
}

// MapAirdropsToDTO maps airdrop rows to a list response
func MapAirdropsToDTO(airdrops []schema.Airdrop) *AirdropListResponse {
	items := make([]AirdropResponse, len(airdrops))
	for i := range airdrops {
		items[i] = *MapAirdropToDTO(&airdrops[i])
	}
	return &AirdropListResponse{Airdrops: items}
}

// AirdropClaimResponse represents one airdrop claim or distribution
type AirdropClaimResponse struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	AirdropID string          `json:"airdrop_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// MapAirdropClaimToDTO maps an airdrop claim row to its response
func MapAirdropClaimToDTO(claim *schema.AirdropClaim) *AirdropClaimResponse {
	return &AirdropClaimResponse{
		ID:        claim.ID,
		UserID:    claim.UserID,
		AirdropID: claim.AirdropID,
		Amount:    claim.Amount,
		CreatedAt: claim.CreatedAt,
	}
}

// AirdropClaimListResponse represents the airdrop claims of a user, newest first
type AirdropClaimListResponse struct {
	Claims []AirdropClaimResponse `json:"claims"`
}

// MapAirdropClaimsToDTO maps airdrop claim rows to a list response
func MapAirdropClaimsToDTO(claims []schema.AirdropClaim) *AirdropClaimListResponse {
	items := make([]AirdropClaimResponse, len(claims))
	for i := range claims {
		items[i] = *MapAirdropClaimToDTO(&claims[i])
	}
	return &AirdropClaimListResponse{Claims: items}
}

// DistributionOutcome is the outcome of one recipient of a distribution
type DistributionOutcome struct {
	UserID  string                `json:"user_id"`
	Success bool                  `json:"success"`
	Claim   *AirdropClaimResponse `json:"claim,omitempty"`
	// Error is set when Success is false
	Error *DistributionError `json:"error,omitempty"`
}

// DistributionError describes why one recipient was not granted
type DistributionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DistributionResponse reports every recipient in request order with aggregate counts
type DistributionResponse struct {
	AirdropID    string                `json:"airdrop_id"`
	Results      []DistributionOutcome `json:"results"`
	SuccessCount int                   `json:"success_count"`
	FailureCount int                   `json:"failure_count"`
}
