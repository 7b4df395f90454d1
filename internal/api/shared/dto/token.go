package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/feral-file/ff-rewards/internal/store/schema"
)

// TokenResponse represents a reward token
type TokenResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Symbol      string          `json:"symbol"`
	Description *string         `json:"description,omitempty"`
	LogoURL     *string         `json:"logo_url,omitempty"`
	TotalSupply decimal.Decimal `json:"total_supply"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// MapTokenToDTO maps a token row to its response
func MapTokenToDTO(token *schema.Token) *TokenResponse {
	return &TokenResponse{
		ID:          token.ID,
		Name:        token.Name,
		Symbol:      token.Symbol,
		Description: token.Description,
		LogoURL:     token.LogoURL,
		TotalSupply: token.TotalSupply,
		IsActive:    token.IsActive,
		CreatedAt:   token.CreatedAt,
		UpdatedAt:   token.UpdatedAt,
	}
}

// TokenListResponse represents a list of tokens
type TokenListResponse struct {
	Tokens []TokenResponse `json:"tokens"`
}

// MapTokensToDTO maps token rows to a list response
func MapTokensToDTO(tokens []schema.Token) *TokenListResponse {
	items := make([]TokenResponse, len(tokens))
	for i := range tokens {
		items[i] = *MapTokenToDTO(&tokens[i])
	}
	return &TokenListResponse{Tokens: items}
}
