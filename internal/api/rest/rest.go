package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/feral-file/ff-rewards/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Catalog endpoints (public read access)
		v1.GET("/tokens", handler.ListTokens)
		v1.GET("/faucets", handler.ListFaucets)

		// User endpoints (JWT subject must match the user, or an administrator API key)
		users := v1.Group("/users/:user_id", middleware.Auth(authCfg), middleware.RequireUser("user_id"))
		{
			users.GET("/tokens", handler.GetUserTokens)
			users.GET("/transactions", handler.GetTokenTransactions)

			users.GET("/faucets/:faucet_id/eligibility", handler.CanClaimFaucet)
			users.POST("/faucets/:faucet_id/claims", handler.ClaimFaucet)
			users.GET("/faucets/:faucet_id/claims", handler.GetUserFaucetClaims)

			users.GET("/airdrops/eligible", handler.GetUserEligibleAirdrops)
			users.GET("/airdrops/claims", handler.GetUserAirdropClaims)
			users.POST("/airdrops/:airdrop_id/claims", handler.ClaimAirdrop)
		}

		// Administrator endpoints (API key only)
		admin := v1.Group("/admin", middleware.APIKeyAuth(authCfg))
		{
			admin.POST("/tokens", handler.CreateToken)
			admin.PATCH("/tokens/:token_id", handler.UpdateToken)

			admin.POST("/faucets", handler.CreateFaucet)
			admin.PATCH("/faucets/:faucet_id", handler.UpdateFaucet)

			admin.GET("/airdrops", handler.ListAirdrops)
			admin.POST("/airdrops", handler.CreateAirdrop)
			admin.PATCH("/airdrops/:airdrop_id", handler.UpdateAirdrop)
			admin.POST("/airdrops/:airdrop_id/distribute", handler.DistributeAirdrop)

			admin.POST("/ledger/entries", handler.RecordLedgerEntry)
		}
	}
}
