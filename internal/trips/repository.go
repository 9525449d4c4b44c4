package trips

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/apperror"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/dbtx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	// Reference data
	CreateRoute(ctx context.Context, route *Route) error
	CreateBus(ctx context.Context, bus *Bus) error
	CreateTrip(ctx context.Context, trip *Trip) error
	CreateSeats(ctx context.Context, seats []Seat) error

	GetTrip(ctx context.Context, id uuid.UUID) (*Trip, error)
	GetSeat(ctx context.Context, id uuid.UUID) (*Seat, error)

	// LockSeat reads the seat row FOR UPDATE; it must run inside a transaction.
	LockSeat(ctx context.Context, id uuid.UUID) (*Seat, error)

	// Claim-state projection
	ListAvailableSeats(ctx context.Context, query AvailableTripsQuery, now time.Time) ([]AvailableSeatRow, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateRoute(ctx context.Context, route *Route) error {
	return dbtx.Conn(ctx, r.db).Create(route).Error
}

func (r *repository) CreateBus(ctx context.Context, bus *Bus) error {
	return dbtx.Conn(ctx, r.db).Create(bus).Error
}

func (r *repository) CreateTrip(ctx context.Context, trip *Trip) error {
	return dbtx.Conn(ctx, r.db).Create(trip).Error
}

func (r *repository) CreateSeats(ctx context.Context, seats []Seat) error {
	if len(seats) == 0 {
		return nil
	}
	return dbtx.Conn(ctx, r.db).Create(&seats).Error
}

func (r *repository) GetTrip(ctx context.Context, id uuid.UUID) (*Trip, error) {
	var trip Trip
	if err := dbtx.Conn(ctx, r.db).First(&trip, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "trip")
	}
	return &trip, nil
}

func (r *repository) GetSeat(ctx context.Context, id uuid.UUID) (*Seat, error) {
	var seat Seat
	if err := dbtx.Conn(ctx, r.db).First(&seat, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "seat")
	}
	return &seat, nil
}

func (r *repository) LockSeat(ctx context.Context, id uuid.UUID) (*Seat, error) {
	var seat Seat
	err := dbtx.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&seat, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "seat")
	}
	return &seat, nil
}

// ListAvailableSeats returns seats of active trips that have neither a
// confirmed booking nor an unexpired hold.
func (r *repository) ListAvailableSeats(ctx context.Context, query AvailableTripsQuery, now time.Time) ([]AvailableSeatRow, error) {
	var rows []AvailableSeatRow

	q := dbtx.Conn(ctx, r.db).
		Table("trips AS t").
		Select(`t.id AS trip_id, t.bus_id, b.plate_number, t.departure_time, t.arrival_time,
			rt.origin, rt.destination, s.id AS seat_id, s.seat_number, s.price`).
		Joins("JOIN buses b ON b.id = t.bus_id").
		Joins("JOIN routes rt ON rt.id = b.route_id").
		Joins("JOIN seats s ON s.trip_id = t.id").
		Where("t.status = ?", TripStatusActive).
		Where(`NOT EXISTS (SELECT 1 FROM bookings bk WHERE bk.seat_id = s.id AND bk.status = 'confirmed')`).
		Where(`NOT EXISTS (SELECT 1 FROM reservations res WHERE res.seat_id = s.id AND res.status = 'held' AND res.expires_at > ?)`, now)

	if query.Origin != "" {
		q = q.Where("rt.origin ILIKE ?", likePattern(query.Origin))
	}
	if query.Destination != "" {
		q = q.Where("rt.destination ILIKE ?", likePattern(query.Destination))
	}

	switch query.SortBy {
	case SortPriceAsc:
		q = q.Order("s.price ASC, t.departure_time ASC, s.seat_number ASC")
	case SortPriceDesc:
		q = q.Order("s.price DESC, t.departure_time ASC, s.seat_number ASC")
	default:
		q = q.Order("t.departure_time ASC, s.price ASC, s.seat_number ASC")
	}

	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list available seats: %w", err)
	}
	return rows, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(s)) + "%"
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", apperror.ErrNotFound, what)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
