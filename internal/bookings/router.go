package bookings

import "github.com/gin-gonic/gin"

// SetupBookingRoutes configures all booking-related routes
func SetupBookingRoutes(rg *gin.RouterGroup, controller *Controller, auth gin.HandlerFunc) {
	// Paying for a hold turns it into a booking
	rg.POST("/reservations/:id/pay", auth, controller.Book) // POST /api/v1/reservations/:id/pay

	bookings := rg.Group("/bookings")
	bookings.Use(auth)
	{
		bookings.GET("", controller.GetUserBookings)           // GET /api/v1/bookings?limit=50
		bookings.GET("/:id", controller.GetBooking)            // GET /api/v1/bookings/:id
		bookings.POST("/:id/cancel", controller.CancelBooking) // POST /api/v1/bookings/:id/cancel
	}
}

// Key flow:
// 1. POST /reservations holds a seat for ten minutes
// 2. POST /reservations/:id/pay debits the wallet and confirms the booking
// 3. POST /bookings/:id/cancel refunds price_paid and re-opens the seat
