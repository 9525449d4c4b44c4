package wallets

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/middleware"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/utils/response"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

func (c *Controller) GetBalance(ctx *gin.Context) {
	userID, ok := middleware.RequireUser(ctx)
	if !ok {
		return
	}

	wallet, err := c.service.GetBalance(ctx.Request.Context(), userID)
	if err != nil {
		response.RespondError(ctx, "Failed to get balance", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Balance retrieved successfully", wallet, nil)
}

func (c *Controller) Deposit(ctx *gin.Context) {
	userID, ok := middleware.RequireUser(ctx)
	if !ok {
		return
	}

	var req DepositRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	wallet, err := c.service.Deposit(ctx.Request.Context(), userID, req.Amount)
	if err != nil {
		response.RespondError(ctx, "Failed to deposit", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Deposit completed successfully", wallet, nil)
}

func (c *Controller) ListTransactions(ctx *gin.Context) {
	userID, ok := middleware.RequireUser(ctx)
	if !ok {
		return
	}

	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid limit", nil, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	txs, err := c.service.ListTransactions(ctx.Request.Context(), userID, limit)
	if err != nil {
		response.RespondError(ctx, "Failed to list transactions", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Transactions retrieved successfully", txs, nil)
}
