package reservations

import "github.com/gin-gonic/gin"

// SetupReservationRoutes configures hold routes. Paying for a hold is a
// bookings route: POST /reservations/:id/pay.
func SetupReservationRoutes(rg *gin.RouterGroup, controller *Controller, auth gin.HandlerFunc) {
	reservations := rg.Group("/reservations")
	reservations.Use(auth)
	{
		reservations.POST("", controller.Hold)               // POST /api/v1/reservations
		reservations.GET("", controller.GetUserReservations) // GET /api/v1/reservations
		reservations.DELETE("/:id", controller.Cancel)       // DELETE /api/v1/reservations/:id
	}
}
