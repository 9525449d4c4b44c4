package trips

import (
	"time"

	"github.com/google/uuid"
)

// Route is the origin/destination pair a bus serves
type Route struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Origin      string    `gorm:"type:varchar(100);not null;index" json:"origin"`
	Destination string    `gorm:"type:varchar(100);not null;index" json:"destination"`
	DistanceKm  int       `gorm:"not null;check:distance_km > 0" json:"distance_km"`
	CreatedAt   time.Time `json:"created_at"`
}

// Bus runs trips on a single route
type Bus struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PlateNumber string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"plate_number"`
	Capacity    int       `gorm:"not null;check:capacity > 0" json:"capacity"`
	RouteID     uuid.UUID `gorm:"type:uuid;index;not null" json:"route_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Trip is a scheduled departure of a bus
type Trip struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BusID         uuid.UUID  `gorm:"type:uuid;index;not null" json:"bus_id"`
	DepartureTime time.Time  `gorm:"not null;index" json:"departure_time"`
	ArrivalTime   time.Time  `gorm:"not null" json:"arrival_time"`
	Status        TripStatus `gorm:"type:varchar(20);check:status IN ('active', 'cancelled', 'completed');default:'active'" json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Seat is immutable reference data; its claim state is derived from
// reservations and bookings.
type Seat struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TripID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_trip_seat_number" json:"trip_id"`
	SeatNumber int       `gorm:"not null;uniqueIndex:idx_trip_seat_number;check:seat_number >= 1" json:"seat_number"`
	Price      int64     `gorm:"not null;check:price > 0" json:"price"`
}

// TableName sets the table name for Route
func (Route) TableName() string {
	return "routes"
}

// TableName sets the table name for Bus
func (Bus) TableName() string {
	return "buses"
}

// TableName sets the table name for Trip
func (Trip) TableName() string {
	return "trips"
}

// TableName sets the table name for Seat
func (Seat) TableName() string {
	return "seats"
}

func (t *Trip) IsActive() bool {
	return t.Status == TripStatusActive
}

// AvailableTripsQuery filters the available-seats projection
type AvailableTripsQuery struct {
	Origin      string `form:"origin" json:"origin,omitempty"`
	Destination string `form:"destination" json:"destination,omitempty"`
	SortBy      SortBy `form:"sort_by" json:"sort_by,omitempty"`
}

// AvailableSeatRow is one row of the available-seats projection
type AvailableSeatRow struct {
	TripID        uuid.UUID `json:"trip_id"`
	BusID         uuid.UUID `json:"bus_id"`
	PlateNumber   string    `json:"plate_number"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	SeatID        uuid.UUID `json:"seat_id"`
	SeatNumber    int       `json:"seat_number"`
	Price         int64     `json:"price"`
}

// AvailableTrip groups available seats under their trip
type AvailableTrip struct {
	TripID         uuid.UUID       `json:"trip_id"`
	BusID          uuid.UUID       `json:"bus_id"`
	PlateNumber    string          `json:"plate_number"`
	DepartureTime  time.Time       `json:"departure_time"`
	ArrivalTime    time.Time       `json:"arrival_time"`
	Origin         string          `json:"origin"`
	Destination    string          `json:"destination"`
	AvailableSeats []AvailableSeat `json:"available_seats"`
}

type AvailableSeat struct {
	SeatID     uuid.UUID `json:"seat_id"`
	SeatNumber int       `json:"seat_number"`
	Price      int64     `json:"price"`
}

// GroupByTrip folds projection rows into trips, keeping the order in which
// each trip first appears.
func GroupByTrip(rows []AvailableSeatRow) []AvailableTrip {
	result := make([]AvailableTrip, 0)
	index := make(map[uuid.UUID]int)

	for _, row := range rows {
		i, ok := index[row.TripID]
		if !ok {
			result = append(result, AvailableTrip{
				TripID:         row.TripID,
				BusID:          row.BusID,
				PlateNumber:    row.PlateNumber,
				DepartureTime:  row.DepartureTime,
				ArrivalTime:    row.ArrivalTime,
				Origin:         row.Origin,
				Destination:    row.Destination,
				AvailableSeats: []AvailableSeat{},
			})
			i = len(result) - 1
			index[row.TripID] = i
		}
		result[i].AvailableSeats = append(result[i].AvailableSeats, AvailableSeat{
			SeatID:     row.SeatID,
			SeatNumber: row.SeatNumber,
			Price:      row.Price,
		})
	}

	return result
}
