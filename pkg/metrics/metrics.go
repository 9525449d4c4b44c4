package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/apperror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "busfleet_operations_total",
			Help: "Reservation, booking and wallet operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "busfleet_operation_duration_seconds",
			Help:    "Duration of reservation, booking and wallet operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	reservationsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "busfleet_reservations_expired_total",
			Help: "Holds transitioned to expired by the sweeper",
		},
	)

	sweepFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "busfleet_sweep_failures_total",
			Help: "Expiry sweeps that returned an error",
		},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "busfleet_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)
)

// Operation names
const (
	OpHold              = "hold"
	OpCancelReservation = "cancel_reservation"
	OpBook              = "book"
	OpCancelBooking     = "cancel_booking"
	OpDeposit           = "deposit"
)

// Observe records one finished operation. The outcome label is the error
// class, so lost seat races and quota rejections are visible separately.
func Observe(op string, started time.Time, err error) {
	operations.WithLabelValues(op, Outcome(err)).Inc()
	operationDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// ObserveSweep records a sweep result
func ObserveSweep(expired int64, err error) {
	if err != nil {
		sweepFailures.Inc()
		return
	}
	reservationsExpired.Add(float64(expired))
}

// Outcome maps err to a low-cardinality label value
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperror.ErrSeatAlreadyHeld):
		return "seat_taken"
	case errors.Is(err, apperror.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperror.ErrNotOwned):
		return "not_owned"
	case errors.Is(err, apperror.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, apperror.ErrExpired):
		return "expired"
	case errors.Is(err, apperror.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, apperror.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, apperror.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

// Middleware counts requests by matched route template
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, http.StatusText(c.Writer.Status())).Inc()
	}
}

// Handler exposes the default registry
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
