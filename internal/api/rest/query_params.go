package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/feral-file/ff-rewards/internal/api/shared/constants"
)

// ListQueryParams holds query parameters for catalog listings
type ListQueryParams struct {
	ActiveOnly bool `form:"active_only,default=false"`
}

// ParseListQuery parses query parameters for GET /tokens, /faucets and /admin/airdrops
func ParseListQuery(c *gin.Context) (*ListQueryParams, error) {
	var params ListQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}
	return &params, nil
}

// GetTransactionsQueryParams holds query parameters for GET /users/:user_id/transactions
type GetTransactionsQueryParams struct {
	TokenID *string `form:"token_id"`
	Limit   int     `form:"limit,default=50"`
}

// ParseGetTransactionsQuery parses query parameters for GET /users/:user_id/transactions
func ParseGetTransactionsQuery(c *gin.Context) (*GetTransactionsQueryParams, error) {
	var params GetTransactionsQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	if params.TokenID != nil && *params.TokenID == "" {
		params.TokenID = nil
	}

	// Cap limit
	if params.Limit <= 0 {
		params.Limit = constants.DEFAULT_TRANSACTIONS_LIMIT
	}
	if params.Limit > constants.MAX_TRANSACTIONS_LIMIT {
		params.Limit = constants.MAX_TRANSACTIONS_LIMIT
	}

	return &params, nil
}
