// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"github.com/nikkhoofard/BusFleetManagementSystem/internal/bookings"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/notifications"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/reservations"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/config"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/database"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/dbtx"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/middleware"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/trips"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/wallets"
	"github.com/nikkhoofard/BusFleetManagementSystem/pkg/cache"
	"github.com/nikkhoofard/BusFleetManagementSystem/pkg/logger"
	"github.com/nikkhoofard/BusFleetManagementSystem/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Router holds all route dependencies
type Router struct {
	config    *config.Config
	db        *database.DB
	log       *logger.Logger
	publisher notifications.Publisher

	// Built by SetupRoutes, reused by the sweeper
	reservationService reservations.Service
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, log *logger.Logger, publisher notifications.Publisher) *Router {
	if publisher == nil {
		publisher = notifications.NopPublisher{}
	}
	return &Router{
		config:    cfg,
		db:        db,
		log:       log,
		publisher: publisher,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	pg := r.db.PostgreSQL
	tx := dbtx.NewTransactor(pg)
	auth := middleware.JWTAuth(r.config.JWT.Secret)

	tripRepo := trips.NewRepository(pg)
	reservationRepo := reservations.NewRepository(pg)
	bookingRepo := bookings.NewRepository(pg)
	walletRepo := wallets.NewRepository(pg)

	// A nil interface, not a nil *service, when Redis is down
	var cacheService cache.Service
	if r.db.Redis != nil {
		cacheService = cache.NewService(r.db.Redis)
	}
	tripService := trips.NewService(tripRepo, cacheService, r.config.Redis.AvailabilityTTL, r.log, nil)

	walletService := wallets.NewService(walletRepo, tx, r.log, wallets.Options{
		DefaultListLimit: r.config.Booking.TransactionsDefaultLimit,
		MaxListLimit:     r.config.Booking.TransactionsMaxLimit,
	})

	r.reservationService = reservations.NewService(reservations.Dependencies{
		Repo:              reservationRepo,
		Seats:             tripRepo,
		Bookings:          bookingRepo,
		Tx:                tx,
		Availability:      tripService,
		Publisher:         r.publisher,
		Log:               r.log,
		HoldDuration:      r.config.Booking.HoldDuration,
		DailyBookingLimit: r.config.Booking.DailyBookingLimit,
	})

	bookingService := bookings.NewService(bookings.Dependencies{
		Repo:             bookingRepo,
		Reservations:     reservationRepo,
		Seats:            tripRepo,
		Wallets:          walletService,
		Tx:               tx,
		Availability:     tripService,
		Publisher:        r.publisher,
		Log:              r.log,
		DefaultListLimit: r.config.Booking.BookingsDefaultLimit,
	})

	api := engine.Group(r.config.GetAPIBasePath())
	{
		trips.SetupTripRoutes(api, trips.NewController(tripService))
		reservations.SetupReservationRoutes(api, reservations.NewController(r.reservationService), auth)
		bookings.SetupBookingRoutes(api, bookings.NewController(bookingService), auth)
		wallets.SetupWalletRoutes(api, wallets.NewController(walletService), auth)
	}
}

// ReservationSweeper returns the background expiry job. SetupRoutes must run first.
func (r *Router) ReservationSweeper() *reservations.Sweeper {
	return reservations.NewSweeper(r.reservationService, r.config.Booking.SweepInterval, r.log)
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "busfleet-backend",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "busfleet-backend",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	if r.config.MetricsEnabled {
		engine.GET("/metrics", metrics.Handler())
	}
}
