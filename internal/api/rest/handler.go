package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feral-file/ff-rewards/internal/api/shared/dto"
	"github.com/feral-file/ff-rewards/internal/api/shared/executor"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)

	// ListTokens lists reward tokens
	// GET /api/v1/tokens?active_only=<bool>
	ListTokens(c *gin.Context)
	// CreateToken creates a reward token (administrator)
	// POST /api/v1/admin/tokens
	CreateToken(c *gin.Context)
	// UpdateToken patches a reward token (administrator)
	// PATCH /api/v1/admin/tokens/:token_id
	UpdateToken(c *gin.Context)

	// ListFaucets lists faucets
	// GET /api/v1/faucets?active_only=<bool>
	ListFaucets(c *gin.Context)
	// CreateFaucet creates a faucet (administrator)
	// POST /api/v1/admin/faucets
	CreateFaucet(c *gin.Context)
	// UpdateFaucet patches a faucet (administrator)
	// PATCH /api/v1/admin/faucets/:faucet_id
	UpdateFaucet(c *gin.Context)
	// CanClaimFaucet reports whether the user can claim the faucet now
	// GET /api/v1/users/:user_id/faucets/:faucet_id/eligibility
	CanClaimFaucet(c *gin.Context)
	// ClaimFaucet claims the faucet for the user
	// POST /api/v1/users/:user_id/faucets/:faucet_id/claims
	ClaimFaucet(c *gin.Context)
	// GetUserFaucetClaims lists the claims of the user on the faucet
	// GET /api/v1/users/:user_id/faucets/:faucet_id/claims
	GetUserFaucetClaims(c *gin.Context)

	// ListAirdrops lists every airdrop (administrator)
	// GET /api/v1/admin/airdrops?active_only=<bool>
	ListAirdrops(c *gin.Context)
	// CreateAirdrop creates an airdrop (administrator)
	// POST /api/v1/admin/airdrops
	CreateAirdrop(c *gin.Context)
	// UpdateAirdrop patches an airdrop (administrator)
	// PATCH /api/v1/admin/airdrops/:airdrop_id
	UpdateAirdrop(c *gin.Context)
	// DistributeAirdrop grants a distribution airdrop to a list of users (administrator)
	// POST /api/v1/admin/airdrops/:airdrop_id/distribute
	DistributeAirdrop(c *gin.Context)
	// GetUserEligibleAirdrops lists the airdrops the user can claim
	// GET /api/v1/users/:user_id/airdrops/eligible
	GetUserEligibleAirdrops(c *gin.Context)
	// ClaimAirdrop claims an airdrop for the user
	// POST /api/v1/users/:user_id/airdrops/:airdrop_id/claims
	ClaimAirdrop(c *gin.Context)
	// GetUserAirdropClaims lists the airdrop claims of the user
	// GET /api/v1/users/:user_id/airdrops/claims
	GetUserAirdropClaims(c *gin.Context)

	// GetUserTokens lists the balances of the user
	// GET /api/v1/users/:user_id/tokens
	GetUserTokens(c *gin.Context)
	// GetTokenTransactions lists the ledger entries of the user, newest first
	// GET /api/v1/users/:user_id/transactions?token_id=<id>&limit=<limit>
	GetTokenTransactions(c *gin.Context)
	// RecordLedgerEntry appends an administrator ledger entry
	// POST /api/v1/admin/ledger/entries
	RecordLedgerEntry(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	executor executor.Executor
}

// NewHandler creates a new REST API handler using the shared executor
func NewHandler(exec executor.Executor) Handler {
	return &handler{executor: exec}
}

// validatable is implemented by every request body
type validatable interface {
	Validate() error
}

// bindRequest binds and validates a JSON body, responding on failure
func bindRequest(c *gin.Context, req validatable) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return false
	}
	if err := req.Validate(); err != nil {
		respondError(c, err)
		return false
	}
	return true
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "ff-rewards-api",
	})
}

func (h *handler) ListTokens(c *gin.Context) {
	params, err := ParseListQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	response, err := h.executor.ListTokens(c.Request.Context(), params.ActiveOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) CreateToken(c *gin.Context) {
	var req dto.CreateTokenRequest
	if !bindRequest(c, &req) {
		return
	}

	response, err := h.executor.CreateToken(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response)
}

func (h *handler) UpdateToken(c *gin.Context) {
	var req dto.UpdateTokenRequest
	if !bindRequest(c, &req) {
		return
	}

	response, err := h.executor.UpdateToken(c.Request.Context(), c.Param("token_id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) ListFaucets(c *gin.Context) {
	params, err := ParseListQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	response, err := h.executor.ListFaucets(c.Request.Context(), params.ActiveOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) CreateFaucet(c *gin.Context) {
	var req dto.CreateFaucetRequest
	if !bindRequest(c, &req) {
		return
	}

	response, err := h.executor.CreateFaucet(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response)
}

func (h *handler) UpdateFaucet(c *gin.Context) {
	var req dto.UpdateFaucetRequest
	if !bindRequest(c, &req) {
		return
	}

	response, err := h.executor.UpdateFaucet(c.Request.Context(), c.Param("faucet_id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) CanClaimFaucet(c *gin.Context) {
	response, err := h.executor.CanClaimFaucet(c.Request.Context(), c.Param("user_id"), c.Param("faucet_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) ClaimFaucet(c *gin.Context) {
	response, err := h.executor.ClaimFaucet(c.Request.Context(), c.Param("user_id"), c.Param("faucet_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response)
}

func (h *handler) GetUserFaucetClaims(c *gin.Context) {
	response, err := h.executor.GetUserFaucetClaims(c.Request.Context(), c.Param("user_id"), c.Param("faucet_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) ListAirdrops(c *gin.Context) {
	params, err := ParseListQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	response, err := h.executor.ListAirdrops(c.Request.Context(), params.ActiveOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) CreateAirdrop(c *gin.Context) {
	var req dto.CreateAirdropRequest
	if !bindRequest(c, &req) {
		return
	}

	response, err := h.executor.CreateAirdrop(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response)
}

func (h *handler) UpdateAirdrop(c *gin.Context) {
	var req dto.UpdateAirdropRequest
	if !bindRequest(c, &req) {
		return
	}

	response, err := h.executor.UpdateAirdrop(c.Request.Context(), c.Param("airdrop_id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// DistributeAirdrop responds 200 even when some recipients failed; the outcomes are per user
func (h *handler) DistributeAirdrop(c *gin.Context) {
	var req dto.DistributeAirdropRequest
	if !bindRequest(c, &req) {
		return
	}

	response, err := h.executor.DistributeAirdrop(c.Request.Context(), c.Param("airdrop_id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) GetUserEligibleAirdrops(c *gin.Context) {
	response, err := h.executor.GetUserEligibleAirdrops(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) ClaimAirdrop(c *gin.Context) {
	response, err := h.executor.ClaimAirdrop(c.Request.Context(), c.Param("user_id"), c.Param("airdrop_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response)
}

func (h *handler) GetUserAirdropClaims(c *gin.Context) {
	response, err := h.executor.GetUserAirdropClaims(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) GetUserTokens(c *gin.Context) {
	response, err := h.executor.GetUserTokens(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) GetTokenTransactions(c *gin.Context) {
	params, err := ParseGetTransactionsQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	response, err := h.executor.GetTokenTransactions(c.Request.Context(), c.Param("user_id"), params.TokenID, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handler) RecordLedgerEntry(c *gin.Context) {
	var req dto.RecordLedgerEntryRequest
	if !bindRequest(c, &req) {
		return
	}

	response, err := h.executor.RecordLedgerEntry(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response)
}
