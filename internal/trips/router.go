package trips

import "github.com/gin-gonic/gin"

// SetupTripRoutes configures the public trip browsing routes
func SetupTripRoutes(rg *gin.RouterGroup, controller *Controller) {
	trips := rg.Group("/trips")
	{
		trips.GET("/available", controller.ListAvailableTrips) // GET /api/v1/trips/available?origin=&destination=&sort_by=
	}
}
