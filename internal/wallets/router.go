package wallets

import "github.com/gin-gonic/gin"

// SetupWalletRoutes configures wallet routes; auth must set user_id
func SetupWalletRoutes(rg *gin.RouterGroup, controller *Controller, auth gin.HandlerFunc) {
	wallet := rg.Group("/wallet")
	wallet.Use(auth)
	{
		wallet.GET("/balance", controller.GetBalance)            // GET /api/v1/wallet/balance
		wallet.POST("/deposit", controller.Deposit)              // POST /api/v1/wallet/deposit
		wallet.GET("/transactions", controller.ListTransactions) // GET /api/v1/wallet/transactions?limit=50
	}
}
