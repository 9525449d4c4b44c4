package trips

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/utils/response"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

func (c *Controller) ListAvailableTrips(ctx *gin.Context) {
	var query AvailableTripsQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	trips, err := c.service.ListAvailableTrips(ctx.Request.Context(), query)
	if err != nil {
		response.RespondError(ctx, "Failed to list available trips", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Available trips retrieved successfully", trips, nil)
}
