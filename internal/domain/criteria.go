package domain

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AirdropCriteria holds the eligibility predicates of a claim-type airdrop.
// An empty criteria accepts every user.
type AirdropCriteria struct {
	// AllowedUserIDs restricts the airdrop to an allowlist of users
	AllowedUserIDs []string `json:"allowed_user_ids,omitempty"`
	// MinBalance requires the user to already hold a balance of a token
	MinBalance *MinBalanceCriterion `json:"min_balance,omitempty"`
}

// MinBalanceCriterion requires a minimum ledger balance of a token
type MinBalanceCriterion struct {
	TokenID string          `json:"token_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// BalanceLookup returns the ledger balance of the user for a token
type BalanceLookup func(tokenID string) (decimal.Decimal, error)

// IsEmpty reports whether no predicate is configured
func (c AirdropCriteria) IsEmpty() bool {
	return len(c.AllowedUserIDs) == 0 && c.MinBalance == nil
}

// Validate checks the criteria are well formed
func (c AirdropCriteria) Validate() error {
	if c.MinBalance != nil {
		if c.MinBalance.TokenID == "" {
			return NewValidationError("criteria.min_balance.token_id is required")
		}
		if _, err := uuid.Parse(c.MinBalance.TokenID); err != nil {
			return NewValidationError("criteria.min_balance.token_id must be a valid id")
		}
		if !c.MinBalance.Amount.IsPositive() {
			return NewValidationError("criteria.min_balance.amount must be positive")
		}
	}
	for _, userID := range c.AllowedUserIDs {
		if userID == "" {
			return NewValidationError("criteria.allowed_user_ids must not contain empty values")
		}
	}
	return nil
}

// Evaluate applies every predicate to the user. It returns a reason when the user is rejected.
func (c AirdropCriteria) Evaluate(userID string, balanceOf BalanceLookup) (bool, string, error) {
	if len(c.AllowedUserIDs) > 0 && !slices.Contains(c.AllowedUserIDs, userID) {
		return false, "user is not on the airdrop allowlist", nil
	}

	if c.MinBalance != nil {
		balance, err := balanceOf(c.MinBalance.TokenID)
		if err != nil {
			return false, "", fmt.Errorf("failed to get balance for criteria: %w", err)
		}
		if balance.LessThan(c.MinBalance.Amount) {
			return false, fmt.Sprintf("a balance of at least %s is required", c.MinBalance.Amount.String()), nil
		}
	}

	return true, "", nil
}
