package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/apperror"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/dbtx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Create(ctx context.Context, reservation *Reservation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Reservation, error)

	// HasActiveHold reports a held reservation on the seat expiring after now
	HasActiveHold(ctx context.Context, seatID uuid.UUID, now time.Time) (bool, error)

	// Transition moves a reservation from one status to another. It fails
	// with ErrInvalidState when the row is no longer in from.
	Transition(ctx context.Context, id uuid.UUID, from, to Status) error

	// ExpireStaleForSeat expires timed-out holds of one seat
	ExpireStaleForSeat(ctx context.Context, seatID uuid.UUID, now time.Time) (int64, error)

	// ExpireStale expires every timed-out hold
	ExpireStale(ctx context.Context, now time.Time) (int64, error)

	ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]Reservation, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, reservation *Reservation) error {
	err := dbtx.Conn(ctx, r.db).Create(reservation).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Partial unique index on held reservations per seat
		return fmt.Errorf("%w: seat %s", apperror.ErrSeatAlreadyHeld, reservation.SeatID)
	}
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	var reservation Reservation
	if err := dbtx.Conn(ctx, r.db).First(&reservation, "id = ?", id).Error; err != nil {
		return nil, reservationErr(err)
	}
	return &reservation, nil
}

func (r *repository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	var reservation Reservation
	err := dbtx.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&reservation, "id = ?", id).Error
	if err != nil {
		return nil, reservationErr(err)
	}
	return &reservation, nil
}

func (r *repository) HasActiveHold(ctx context.Context, seatID uuid.UUID, now time.Time) (bool, error) {
	var count int64
	err := dbtx.Conn(ctx, r.db).
		Model(&Reservation{}).
		Where("seat_id = ? AND status = ? AND expires_at > ?", seatID, StatusHeld, now).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check seat holds: %w", err)
	}
	return count > 0, nil
}

func (r *repository) Transition(ctx context.Context, id uuid.UUID, from, to Status) error {
	result := dbtx.Conn(ctx, r.db).
		Model(&Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return fmt.Errorf("failed to update reservation status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: reservation is no longer %s", apperror.ErrInvalidState, from)
	}
	return nil
}

func (r *repository) ExpireStaleForSeat(ctx context.Context, seatID uuid.UUID, now time.Time) (int64, error) {
	result := dbtx.Conn(ctx, r.db).
		Model(&Reservation{}).
		Where("seat_id = ? AND status = ? AND expires_at <= ?", seatID, StatusHeld, now).
		Update("status", StatusExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to expire seat holds: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *repository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	result := dbtx.Conn(ctx, r.db).
		Model(&Reservation{}).
		Where("status = ? AND expires_at <= ?", StatusHeld, now).
		Update("status", StatusExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to expire reservations: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *repository) ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]Reservation, error) {
	var reservations []Reservation
	err := dbtx.Conn(ctx, r.db).
		Where("user_id = ? AND status = ? AND expires_at > ?", userID, StatusHeld, now).
		Order("created_at DESC").
		Find(&reservations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, nil
}

func reservationErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: reservation", apperror.ErrNotFound)
	}
	return fmt.Errorf("failed to get reservation: %w", err)
}
