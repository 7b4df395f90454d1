package registry

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/feral-file/ff-rewards/internal/adapter"
	"github.com/feral-file/ff-rewards/internal/domain"
	"github.com/feral-file/ff-rewards/internal/store"
	"github.com/feral-file/ff-rewards/internal/store/schema"
)

// CreateTokenInput represents the input for creating a token
type CreateTokenInput struct {
	Name        string
	Symbol      string
	Description *string
	LogoURL     *string
	TotalSupply decimal.Decimal
	// IsActive defaults to true
	IsActive *bool
}

// UpdateTokenInput is a patch; nil fields are left unchanged.
// Symbol and total supply are immutable once a token exists.
type UpdateTokenInput struct {
	Name        *string
	Description *string
	LogoURL     *string
	IsActive    *bool
}

// Registry is the catalog of reward tokens
type Registry interface {
	// CreateToken validates and stores a new token
	CreateToken(ctx context.Context, input CreateTokenInput) (*schema.Token, error)
	// UpdateToken applies a patch to an existing token
	UpdateToken(ctx context.Context, id string, input UpdateTokenInput) (*schema.Token, error)
	// GetToken returns a token by id
	GetToken(ctx context.Context, id string) (*schema.Token, error)
	// ListTokens lists tokens ordered by creation time
	ListTokens(ctx context.Context, activeOnly bool) ([]schema.Token, error)
}

type registry struct {
	store store.Store
	clock adapter.Clock
}

// NewRegistry creates a token registry
func NewRegistry(st store.Store, clock adapter.Clock) Registry {
	return &registry{store: st, clock: clock}
}

func (r *registry) now() time.Time {
	return adapter.Timestamp(r.clock)
}

func (r *registry) CreateToken(ctx context.Context, input CreateTokenInput) (*schema.Token, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.NewValidationError("token name is required")
	}

	symbol := domain.NormalizeSymbol(input.Symbol)
	if symbol == "" {
		return nil, domain.NewValidationError("token symbol is required")
	}
	if utf8.RuneCountInString(symbol) > domain.MAX_TOKEN_SYMBOL_LENGTH {
		return nil, domain.NewValidationError("token symbol must be at most %d characters", domain.MAX_TOKEN_SYMBOL_LENGTH)
	}
	if !input.TotalSupply.IsPositive() {
		return nil, domain.NewValidationError("total supply must be positive")
	}

	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}

	now := r.now()
	token := &schema.Token{
		ID:          uuid.NewString(),
		Name:        name,
		Symbol:      symbol,
		Description: input.Description,
		LogoURL:     input.LogoURL,
		TotalSupply: input.TotalSupply,
		IsActive:    isActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := r.store.CreateToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	return token, nil
}

func (r *registry) UpdateToken(ctx context.Context, id string, input UpdateTokenInput) (*schema.Token, error) {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, domain.NewValidationError("token name cannot be empty")
	}

	var updated *schema.Token
	err := r.store.Transaction(ctx, func(tx store.Store) error {
		token, err := tx.GetTokenByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if token == nil {
			return domain.NewRewardError(domain.ErrNotFound, "token %s not found", id)
		}

		if input.Name != nil {
			token.Name = strings.TrimSpace(*input.Name)
		}
		if input.Description != nil {
			token.Description = input.Description
		}
		if input.LogoURL != nil {
			token.LogoURL = input.LogoURL
		}
		if input.IsActive != nil {
			token.IsActive = *input.IsActive
		}
		token.UpdatedAt = r.now()

		if err := tx.SaveToken(ctx, token); err != nil {
			return err
		}
		updated = token
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *registry) GetToken(ctx context.Context, id string) (*schema.Token, error) {
	token, err := r.store.GetTokenByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, domain.NewRewardError(domain.ErrNotFound, "token %s not found", id)
	}
	return token, nil
}

func (r *registry) ListTokens(ctx context.Context, activeOnly bool) ([]schema.Token, error) {
	return r.store.GetTokens(ctx, store.TokenFilter{ActiveOnly: activeOnly})
}
