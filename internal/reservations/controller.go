package reservations

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/middleware"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/utils/response"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

func (c *Controller) Hold(ctx *gin.Context) {
	userID, ok := middleware.RequireUser(ctx)
	if !ok {
		return
	}

	var req HoldRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	reservation, err := c.service.Hold(ctx.Request.Context(), userID, req)
	if err != nil {
		response.RespondError(ctx, "Failed to hold seat", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Seat held successfully", reservation, nil)
}

func (c *Controller) Cancel(ctx *gin.Context) {
	userID, ok := middleware.RequireUser(ctx)
	if !ok {
		return
	}

	reservationID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reservation ID", nil, err.Error())
		return
	}

	reservation, err := c.service.Cancel(ctx.Request.Context(), userID, reservationID)
	if err != nil {
		response.RespondError(ctx, "Failed to cancel reservation", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation cancelled successfully", reservation, nil)
}

func (c *Controller) GetUserReservations(ctx *gin.Context) {
	userID, ok := middleware.RequireUser(ctx)
	if !ok {
		return
	}

	reservations, err := c.service.GetUserReservations(ctx.Request.Context(), userID)
	if err != nil {
		response.RespondError(ctx, "Failed to get reservations", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reservations retrieved successfully", reservations, nil)
}
