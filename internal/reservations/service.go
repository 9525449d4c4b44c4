package reservations

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/notifications"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/apperror"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/dbtx"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/trips"
	"github.com/nikkhoofard/BusFleetManagementSystem/pkg/logger"
	"github.com/nikkhoofard/BusFleetManagementSystem/pkg/metrics"
)

// SeatLedger is the part of the trips repository the hold path needs
type SeatLedger interface {
	LockSeat(ctx context.Context, id uuid.UUID) (*trips.Seat, error)
	GetTrip(ctx context.Context, id uuid.UUID) (*trips.Trip, error)
}

// BookingLookup answers questions about confirmed bookings
type BookingLookup interface {
	HasConfirmedBookingForSeat(ctx context.Context, seatID uuid.UUID) (bool, error)
	CountConfirmedForUserBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) (int64, error)
}

type AvailabilityInvalidator interface {
	InvalidateAvailability(ctx context.Context)
}

type Service interface {
	Hold(ctx context.Context, userID uuid.UUID, req HoldRequest) (*Reservation, error)
	Cancel(ctx context.Context, userID, reservationID uuid.UUID) (*Reservation, error)
	GetUserReservations(ctx context.Context, userID uuid.UUID) ([]Reservation, error)

	// ExpireStale moves every timed-out hold to expired and returns how many
	ExpireStale(ctx context.Context) (int64, error)
}

type Dependencies struct {
	Repo         Repository
	Seats        SeatLedger
	Bookings     BookingLookup
	Tx           dbtx.Transactor
	Availability AvailabilityInvalidator
	Publisher    notifications.Publisher
	Log          *logger.Logger

	HoldDuration      time.Duration
	DailyBookingLimit int
	Now               func() time.Time
}

type service struct {
	Dependencies
	validate *validator.Validate
}

func NewService(deps Dependencies) Service {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.HoldDuration <= 0 {
		deps.HoldDuration = 10 * time.Minute
	}
	if deps.Publisher == nil {
		deps.Publisher = notifications.NopPublisher{}
	}
	return &service{
		Dependencies: deps,
		validate:     newValidator(),
	}
}

func (s *service) Hold(ctx context.Context, userID uuid.UUID, req HoldRequest) (reservation *Reservation, err error) {
	defer func(start time.Time) { metrics.Observe(metrics.OpHold, start, err) }(time.Now())

	passenger := req.Passenger
	if err := validatePassenger(s.validate, &passenger); err != nil {
		return nil, err
	}

	if err := s.checkDailyQuota(ctx, userID); err != nil {
		return nil, err
	}

	err = s.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		seat, err := s.Seats.LockSeat(ctx, req.SeatID)
		if err != nil {
			return err
		}
		if seat.TripID != req.TripID {
			return fmt.Errorf("%w: seat %s on trip %s", apperror.ErrNotFound, seat.ID, req.TripID)
		}

		trip, err := s.Seats.GetTrip(ctx, seat.TripID)
		if err != nil {
			return err
		}
		if !trip.IsActive() {
			return fmt.Errorf("%w: trip is %s", apperror.ErrInvalidState, trip.Status)
		}

		booked, err := s.Bookings.HasConfirmedBookingForSeat(ctx, seat.ID)
		if err != nil {
			return err
		}
		if booked {
			return apperror.ErrSeatAlreadyBooked
		}

		// Read the clock only once the seat lock is ours
		now := s.Now()

		held, err := s.Repo.HasActiveHold(ctx, seat.ID, now)
		if err != nil {
			return err
		}
		if held {
			return apperror.ErrSeatAlreadyHeld
		}

		if _, err := s.Repo.ExpireStaleForSeat(ctx, seat.ID, now); err != nil {
			return err
		}

		reservation = &Reservation{
			ID:            uuid.New(),
			UserID:        userID,
			SeatID:        seat.ID,
			TripID:        seat.TripID,
			PassengerInfo: passenger,
			ExpiresAt:     now.Add(s.HoldDuration),
			Status:        StatusHeld,
			CreatedAt:     now,
		}
		return s.Repo.Create(ctx, reservation)
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx)
	s.Log.LogHoldCreated(ctx, reservation.ID.String(), reservation.SeatID.String(), userID.String(), reservation.ExpiresAt)

	expiresAt := reservation.ExpiresAt
	event := notifications.NewEvent(notifications.EventReservationHeld, reservation.CreatedAt).
		ForUser(userID).
		ForSeat(reservation.TripID, reservation.SeatID).
		ForReservation(reservation.ID)
	event.ExpiresAt = &expiresAt
	notifications.PublishAfterCommit(ctx, s.Publisher, s.Log, event)

	return reservation, nil
}

// checkDailyQuota counts today's confirmed bookings without a lock, so
// concurrent holds by one user can overshoot the limit slightly.
func (s *service) checkDailyQuota(ctx context.Context, userID uuid.UUID) error {
	if s.DailyBookingLimit <= 0 {
		return nil
	}

	now := s.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	count, err := s.Bookings.CountConfirmedForUserBetween(ctx, userID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return err
	}
	if count >= int64(s.DailyBookingLimit) {
		return fmt.Errorf("%w: %d bookings today", apperror.ErrQuotaExceeded, count)
	}
	return nil
}

func (s *service) Cancel(ctx context.Context, userID, reservationID uuid.UUID) (reservation *Reservation, err error) {
	defer func(start time.Time) { metrics.Observe(metrics.OpCancelReservation, start, err) }(time.Now())

	err = s.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		reservation, err = s.Repo.GetByIDForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if reservation.UserID != userID {
			return apperror.ErrNotOwned
		}
		if reservation.Status != StatusHeld {
			return fmt.Errorf("%w: reservation is %s", apperror.ErrInvalidState, reservation.Status)
		}

		if err := s.Repo.Transition(ctx, reservation.ID, StatusHeld, StatusCancelled); err != nil {
			return err
		}
		reservation.Status = StatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx)
	s.Log.LogReservationCancelled(ctx, reservation.ID.String(), userID.String())
	notifications.PublishAfterCommit(ctx, s.Publisher, s.Log,
		notifications.NewEvent(notifications.EventReservationCancelled, s.Now()).
			ForUser(userID).
			ForSeat(reservation.TripID, reservation.SeatID).
			ForReservation(reservation.ID))

	return reservation, nil
}

func (s *service) GetUserReservations(ctx context.Context, userID uuid.UUID) ([]Reservation, error) {
	return s.Repo.ListActiveByUser(ctx, userID, s.Now())
}

func (s *service) ExpireStale(ctx context.Context) (int64, error) {
	now := s.Now()

	expired, err := s.Repo.ExpireStale(ctx, now)
	if err != nil {
		return 0, err
	}

	if expired > 0 {
		s.afterCommit(ctx)
		event := notifications.NewEvent(notifications.EventReservationsExpired, now)
		event.Count = expired
		notifications.PublishAfterCommit(ctx, s.Publisher, s.Log, event)
	}
	return expired, nil
}

func (s *service) afterCommit(ctx context.Context) {
	if s.Availability != nil {
		s.Availability.InvalidateAvailability(ctx)
	}
}
