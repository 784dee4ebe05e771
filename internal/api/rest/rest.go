package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/LavonTMCQ/bundledatabase-sub001/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Online analyzer (requires API key, fans out to the chain-data provider)
		v1.GET("/tokens/:policy/risk", middleware.APIKeyAuth(authCfg), handler.GetTokenRisk)

		// Graph-store reads (public)
		v1.GET("/tokens/:policy/holders", handler.GetTokenHolders)
		v1.GET("/wallets/:credential/cluster", handler.GetWalletCluster)
	}
}
