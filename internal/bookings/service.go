package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/notifications"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/reservations"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/apperror"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/dbtx"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/trips"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/wallets"
	"github.com/nikkhoofard/BusFleetManagementSystem/pkg/logger"
	"github.com/nikkhoofard/BusFleetManagementSystem/pkg/metrics"
)

// ReservationStore is the slice of the reservations repository that the
// orchestrator drives.
type ReservationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*reservations.Reservation, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*reservations.Reservation, error)
	Transition(ctx context.Context, id uuid.UUID, from, to reservations.Status) error
}

type SeatLedger interface {
	LockSeat(ctx context.Context, id uuid.UUID) (*trips.Seat, error)
}

type WalletLedger interface {
	LockWallet(ctx context.Context, userID uuid.UUID) (*wallets.Wallet, error)
	ApplyDelta(ctx context.Context, userID uuid.UUID, amount int64, txType wallets.TransactionType, bookingID *uuid.UUID) (*wallets.Wallet, error)
}

type AvailabilityInvalidator interface {
	InvalidateAvailability(ctx context.Context)
}

type Service interface {
	// Book pays for a held reservation and confirms it. Everything it writes
	// commits together or not at all.
	Book(ctx context.Context, userID, reservationID uuid.UUID) (*Booking, error)

	// CancelBooking cancels a confirmed booking and refunds price_paid
	CancelBooking(ctx context.Context, userID, bookingID uuid.UUID) (*Booking, error)

	GetBooking(ctx context.Context, userID, bookingID uuid.UUID) (*Booking, error)
	GetUserBookings(ctx context.Context, userID uuid.UUID, limit int) ([]Booking, error)
}

type Dependencies struct {
	Repo         Repository
	Reservations ReservationStore
	Seats        SeatLedger
	Wallets      WalletLedger
	Tx           dbtx.Transactor
	Availability AvailabilityInvalidator
	Publisher    notifications.Publisher
	Log          *logger.Logger

	DefaultListLimit int
	Now              func() time.Time
}

type service struct {
	Dependencies
}

func NewService(deps Dependencies) Service {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.DefaultListLimit <= 0 {
		deps.DefaultListLimit = 50
	}
	if deps.Publisher == nil {
		deps.Publisher = notifications.NopPublisher{}
	}
	return &service{Dependencies: deps}
}

func (s *service) Book(ctx context.Context, userID, reservationID uuid.UUID) (booking *Booking, err error) {
	defer func(start time.Time) { metrics.Observe(metrics.OpBook, start, err) }(time.Now())

	err = s.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		// Unlocked read to learn the seat, so the seat lock can be taken
		// before the reservation lock like on the hold path.
		peek, err := s.Reservations.GetByID(ctx, reservationID)
		if err != nil {
			return err
		}
		if peek.UserID != userID {
			return apperror.ErrNotOwned
		}

		seat, err := s.Seats.LockSeat(ctx, peek.SeatID)
		if err != nil {
			return err
		}

		reservation, err := s.Reservations.GetByIDForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if reservation.Status != reservations.StatusHeld {
			return fmt.Errorf("%w: reservation is %s", apperror.ErrInvalidState, reservation.Status)
		}

		now := s.Now()
		if reservation.IsExpiredAt(now) {
			return apperror.ErrExpired
		}

		wallet, err := s.Wallets.LockWallet(ctx, userID)
		if err != nil {
			return err
		}
		if wallet.Balance < seat.Price {
			return fmt.Errorf("%w: balance %d, price %d", apperror.ErrInsufficientBalance, wallet.Balance, seat.Price)
		}

		// The booking id is fixed up front so the payment row can point at it
		bookingID := uuid.New()
		if _, err := s.Wallets.ApplyDelta(ctx, userID, -seat.Price, wallets.TransactionTypePayment, &bookingID); err != nil {
			return err
		}

		booking = &Booking{
			ID:            bookingID,
			ReservationID: reservation.ID,
			UserID:        userID,
			TripID:        reservation.TripID,
			SeatID:        reservation.SeatID,
			PassengerInfo: reservation.PassengerInfo,
			PricePaid:     seat.Price,
			Status:        StatusConfirmed,
			CreatedAt:     now,
		}
		if err := s.Repo.Create(ctx, booking); err != nil {
			return err
		}

		return s.Reservations.Transition(ctx, reservation.ID, reservations.StatusHeld, reservations.StatusConfirmed)
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx)
	s.Log.LogBookingCreated(ctx, booking.ID.String(), booking.ReservationID.String(), userID.String(), booking.PricePaid)
	notifications.PublishAfterCommit(ctx, s.Publisher, s.Log,
		notifications.NewEvent(notifications.EventBookingConfirmed, booking.CreatedAt).
			ForUser(userID).
			ForSeat(booking.TripID, booking.SeatID).
			ForReservation(booking.ReservationID).
			ForBooking(booking.ID, booking.PricePaid))

	return booking, nil
}

func (s *service) CancelBooking(ctx context.Context, userID, bookingID uuid.UUID) (booking *Booking, err error) {
	defer func(start time.Time) { metrics.Observe(metrics.OpCancelBooking, start, err) }(time.Now())

	err = s.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		booking, err = s.Repo.GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		// Someone else's booking is indistinguishable from a missing one
		if booking.UserID != userID {
			return fmt.Errorf("%w: booking", apperror.ErrNotFound)
		}
		if !booking.Status.CanBeCancelled() {
			return fmt.Errorf("%w: booking is %s", apperror.ErrInvalidState, booking.Status)
		}

		now := s.Now()
		if err := s.Repo.MarkCancelled(ctx, booking.ID, now); err != nil {
			return err
		}
		booking.Status = StatusCancelled
		booking.CancelledAt = &now

		refundRef := booking.ID
		_, err = s.Wallets.ApplyDelta(ctx, userID, booking.PricePaid, wallets.TransactionTypeRefund, &refundRef)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx)
	s.Log.LogBookingCancelled(ctx, booking.ID.String(), userID.String(), booking.PricePaid)
	notifications.PublishAfterCommit(ctx, s.Publisher, s.Log,
		notifications.NewEvent(notifications.EventBookingCancelled, *booking.CancelledAt).
			ForUser(userID).
			ForSeat(booking.TripID, booking.SeatID).
			ForReservation(booking.ReservationID).
			ForBooking(booking.ID, booking.PricePaid))

	return booking, nil
}

func (s *service) GetBooking(ctx context.Context, userID, bookingID uuid.UUID) (*Booking, error) {
	booking, err := s.Repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, fmt.Errorf("%w: booking", apperror.ErrNotFound)
	}
	return booking, nil
}

func (s *service) GetUserBookings(ctx context.Context, userID uuid.UUID, limit int) ([]Booking, error) {
	if limit <= 0 {
		limit = s.DefaultListLimit
	}
	return s.Repo.ListByUser(ctx, userID, limit)
}

func (s *service) afterCommit(ctx context.Context) {
	if s.Availability != nil {
		s.Availability.InvalidateAvailability(ctx)
	}
}
