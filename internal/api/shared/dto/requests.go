package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/feral-file/ff-rewards/internal/api/shared/constants"
	apierrors "github.com/feral-file/ff-rewards/internal/api/shared/errors"
	"github.com/feral-file/ff-rewards/internal/domain"
)

func validateDescription(description *string) error {
	if description != nil && len(*description) > constants.MAX_DESCRIPTION_LENGTH {
		return apierrors.NewValidationError(fmt.Sprintf("description must be at most %d characters", constants.MAX_DESCRIPTION_LENGTH))
	}
	return nil
}

// CreateTokenRequest represents the request body for creating a token
type CreateTokenRequest struct {
	Name        string          `json:"name"`
	Symbol      string          `json:"symbol"`
	Description *string         `json:"description,omitempty"`
	LogoURL     *string         `json:"logo_url,omitempty"`
	TotalSupply decimal.Decimal `json:"total_supply"`
	IsActive    *bool           `json:"is_active,omitempty"`
}

// Validate validates the request body
func (r *CreateTokenRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return apierrors.NewValidationError("name is required")
	}
	if strings.TrimSpace(r.Symbol) == "" {
		return apierrors.NewValidationError("symbol is required")
	}
	return validateDescription(r.Description)
}

// UpdateTokenRequest represents the request body for patching a token
type UpdateTokenRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	LogoURL     *string `json:"logo_url,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// Validate validates the request body
func (r *UpdateTokenRequest) Validate() error {
	if r.Name == nil && r.Description == nil && r.LogoURL == nil && r.IsActive == nil {
		return apierrors.NewValidationError("at least one field must be provided")
	}
	return validateDescription(r.Description)
}

// CreateFaucetRequest represents the request body for creating a faucet
type CreateFaucetRequest struct {
	TokenID            string          `json:"token_id"`
	AmountPerClaim     decimal.Decimal `json:"amount_per_claim"`
	ClaimIntervalHours int             `json:"claim_interval_hours"`
	MaxClaimsPerUser   *int            `json:"max_claims_per_user,omitempty"`
	StartDate          *time.Time      `json:"start_date,omitempty"`
	EndDate            *time.Time      `json:"end_date,omitempty"`
	IsActive           *bool           `json:"is_active,omitempty"`
	Description        *string         `json:"description,omitempty"`
}

// Validate validates the request body
func (r *CreateFaucetRequest) Validate() error {
	if r.TokenID == "" {
		return apierrors.NewValidationError("token_id is required")
	}
	return validateDescription(r.Description)
}

// UpdateFaucetRequest represents the request body for patching a faucet.
// A max_claims_per_user of 0 removes the cap.
type UpdateFaucetRequest struct {
	AmountPerClaim     *decimal.Decimal `json:"amount_per_claim,omitempty"`
	ClaimIntervalHours *int             `json:"claim_interval_hours,omitempty"`
	MaxClaimsPerUser   *int             `json:"max_claims_per_user,omitempty"`
	StartDate          *time.Time       `json:"start_date,omitempty"`
	EndDate            *time.Time       `json:"end_date,omitempty"`
	ClearStartDate     bool             `json:"clear_start_date,omitempty"`
	ClearEndDate       bool             `json:"clear_end_date,omitempty"`
	IsActive           *bool            `json:"is_active,omitempty"`
	Description        *string          `json:"description,omitempty"`
}

// Validate validates the request body
func (r *UpdateFaucetRequest) Validate() error {
	if r.ClearStartDate && r.StartDate != nil {
		return apierrors.NewValidationError("start_date and clear_start_date are mutually exclusive")
	}
	if r.ClearEndDate && r.EndDate != nil {
		return apierrors.NewValidationError("end_date and clear_end_date are mutually exclusive")
	}
	return validateDescription(r.Description)
}

// CreateAirdropRequest represents the request body for creating an airdrop
type CreateAirdropRequest struct {
	TokenID       string                  `json:"token_id"`
	AmountPerUser decimal.Decimal         `json:"amount_per_user"`
	AirdropType   domain.AirdropType      `json:"airdrop_type"`
	TotalAmount   decimal.Decimal         `json:"total_amount"`
	Criteria      *domain.AirdropCriteria `json:"criteria,omitempty"`
	StartDate     *time.Time              `json:"start_date,omitempty"`
	EndDate       *time.Time              `json:"end_date,omitempty"`
	IsActive      *bool                   `json:"is_active,omitempty"`
	Description   *string                 `json:"description,omitempty"`
}

// Validate validates the request body
func (r *CreateAirdropRequest) Validate() error {
	if r.TokenID == "" {
		return apierrors.NewValidationError("token_id is required")
	}
	if !r.AirdropType.Valid() {
		return apierrors.NewValidationError(fmt.Sprintf("airdrop_type must be %q or %q", domain.AirdropTypeClaim, domain.AirdropTypeDistribution))
	}
	return validateDescription(r.Description)
}

// UpdateAirdropRequest represents the request body for patching an airdrop
type UpdateAirdropRequest struct {
	TotalAmount    *decimal.Decimal        `json:"total_amount,omitempty"`
	Criteria       *domain.AirdropCriteria `json:"criteria,omitempty"`
	StartDate      *time.Time              `json:"start_date,omitempty"`
	EndDate        *time.Time              `json:"end_date,omitempty"`
	ClearStartDate bool                    `json:"clear_start_date,omitempty"`
	ClearEndDate   bool                    `json:"clear_end_date,omitempty"`
	IsActive       *bool                   `json:"is_active,omitempty"`
	Description    *string                 `json:"description,omitempty"`
}

// Validate validates the request body
func (r *UpdateAirdropRequest) Validate() error {
	if r.ClearStartDate && r.StartDate != nil {
		return apierrors.NewValidationError("start_date and clear_start_date are mutually exclusive")
	}
	if r.ClearEndDate && r.EndDate != nil {
		return apierrors.NewValidationError("end_date and clear_end_date are mutually exclusive")
	}
	return validateDescription(r.Description)
}

// DistributeAirdropRequest represents the request body for distributing an airdrop
type DistributeAirdropRequest struct {
	UserIDs []string `json:"user_ids"`
}

// Validate validates the request body. The batch size limit is enforced by the engine.
func (r *DistributeAirdropRequest) Validate() error {
	if len(r.UserIDs) == 0 {
		return apierrors.NewValidationError("user_ids is required")
	}
	return nil
}

// RecordLedgerEntryRequest represents the request body for an administrator ledger entry
type RecordLedgerEntryRequest struct {
	UserID      string                 `json:"user_id"`
	TokenID     string                 `json:"token_id"`
	Amount      decimal.Decimal        `json:"amount"`
	Kind        domain.TransactionKind `json:"kind"`
	Description *string                `json:"description,omitempty"`
}

// Validate validates the request body
func (r *RecordLedgerEntryRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return apierrors.NewValidationError("user_id is required")
	}
	if r.TokenID == "" {
		return apierrors.NewValidationError("token_id is required")
	}
	if !r.Kind.Valid() {
		return apierrors.NewValidationError(fmt.Sprintf("unknown kind: %s", r.Kind))
	}
	if r.Kind.EngineOwned() {
		return apierrors.NewValidationError(fmt.Sprintf("%s entries are written by their engine", r.Kind))
	}
	return validateDescription(r.Description)
}
