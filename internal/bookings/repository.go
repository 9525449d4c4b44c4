package bookings

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
	Create(ctx context.Context, booking *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error)

	// MarkCancelled flips a confirmed booking to cancelled; ErrInvalidState
	// when it is not confirmed anymore.
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error

	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]Booking, error)

	HasConfirmedBookingForSeat(ctx context.Context, seatID uuid.UUID) (bool, error)
	CountConfirmedForUserBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, booking *Booking) error {
	err := dbtx.Conn(ctx, r.db).Create(booking).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: seat %s", apperror.ErrSeatAlreadyBooked, booking.SeatID)
	}
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	if err := dbtx.Conn(ctx, r.db).First(&booking, "id = ?", id).Error; err != nil {
		return nil, bookingErr(err)
	}
	return &booking, nil
}

func (r *repository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := dbtx.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&booking, "id = ?", id).Error
	if err != nil {
		return nil, bookingErr(err)
	}
	return &booking, nil
}

func (r *repository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := dbtx.Conn(ctx, r.db).
		Model(&Booking{}).
		Where("id = ? AND status = ?", id, StatusConfirmed).
		Updates(map[string]interface{}{
			"status":       StatusCancelled,
			"cancelled_at": at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to cancel booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: booking is not confirmed", apperror.ErrInvalidState)
	}
	return nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]Booking, error) {
	var bookings []Booking
	err := dbtx.Conn(ctx, r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (r *repository) HasConfirmedBookingForSeat(ctx context.Context, seatID uuid.UUID) (bool, error) {
	var count int64
	err := dbtx.Conn(ctx, r.db).
		Model(&Booking{}).
		Where("seat_id = ? AND status = ?", seatID, StatusConfirmed).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check seat bookings: %w", err)
	}
	return count > 0, nil
}

func (r *repository) CountConfirmedForUserBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	err := dbtx.Conn(ctx, r.db).
		Model(&Booking{}).
		Where("user_id = ? AND status = ? AND created_at >= ? AND created_at < ?", userID, StatusConfirmed, from, to).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func bookingErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: booking", apperror.ErrNotFound)
	}
	return fmt.Errorf("failed to get booking: %w", err)
}
