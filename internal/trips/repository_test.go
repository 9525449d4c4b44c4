package trips_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/apperror"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/dbtx"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/testutil"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/trips"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seatColumns = []string{"id", "trip_id", "seat_number", "price"}

func TestRepository_LockSeatSelectsForUpdateInsideTransaction(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := trips.NewRepository(db)
	seatID, tripID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(testutil.SQL(`SELECT * FROM "seats" WHERE id = $1`, `FOR UPDATE`)).
		WithArgs(seatID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(seatColumns).
			AddRow(seatID.String(), tripID.String(), int64(7), int64(450000)))
	mock.ExpectCommit()

	var seat *trips.Seat
	err := dbtx.NewTransactor(db).WithinTransaction(context.Background(), func(ctx context.Context) error {
		var err error
		seat, err = repo.LockSeat(ctx, seatID)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, seatID, seat.ID)
	assert.Equal(t, tripID, seat.TripID)
	assert.Equal(t, 7, seat.SeatNumber)
	assert.Equal(t, int64(450000), seat.Price)
}

func TestRepository_LockSeatUnknownSeat(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := trips.NewRepository(db)

	mock.ExpectQuery(testutil.SQL(`SELECT * FROM "seats"`, `FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows(seatColumns))

	_, err := repo.LockSeat(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRepository_GetTripDoesNotLock(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := trips.NewRepository(db)

	mock.ExpectQuery(`^SELECT \* FROM "trips" WHERE id = \$1 ORDER BY "trips"."id" LIMIT \$2$`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}))

	_, err := repo.GetTrip(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRepository_ListAvailableSeatsExcludesClaimedSeats(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := trips.NewRepository(db)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	tripID, busID, seatID := uuid.New(), uuid.New(), uuid.New()
	departure := now.Add(24 * time.Hour)

	mock.ExpectQuery(testutil.SQL(
		`SELECT t.id AS trip_id`,
		`FROM trips AS t JOIN buses b ON b.id = t.bus_id JOIN routes rt ON rt.id = b.route_id JOIN seats s ON s.trip_id = t.id`,
		`t.status = $1`,
		`NOT EXISTS (SELECT 1 FROM bookings bk WHERE bk.seat_id = s.id AND bk.status = 'confirmed')`,
		`NOT EXISTS (SELECT 1 FROM reservations res WHERE res.seat_id = s.id AND res.status = 'held' AND res.expires_at > $2)`,
		`rt.origin ILIKE $3`,
		`rt.destination ILIKE $4`,
		`ORDER BY t.departure_time ASC, s.price ASC, s.seat_number ASC`,
	)).
		WithArgs(string(trips.TripStatusActive), now, "%Tehran%", "%Isfahan%").
		WillReturnRows(sqlmock.NewRows([]string{
			"trip_id", "bus_id", "plate_number", "departure_time", "arrival_time",
			"origin", "destination", "seat_id", "seat_number", "price",
		}).AddRow(
			tripID.String(), busID.String(), "12A345-67", departure, departure.Add(5*time.Hour),
			"Tehran", "Isfahan", seatID.String(), int64(3), int64(450000),
		))

	rows, err := repo.ListAvailableSeats(context.Background(), trips.AvailableTripsQuery{
		Origin:      " Tehran ",
		Destination: "Isfahan",
	}, now)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, tripID, rows[0].TripID)
	assert.Equal(t, seatID, rows[0].SeatID)
	assert.Equal(t, "12A345-67", rows[0].PlateNumber)
	assert.Equal(t, 3, rows[0].SeatNumber)
	assert.Equal(t, int64(450000), rows[0].Price)
}

func TestRepository_ListAvailableSeatsSortAndEscaping(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := trips.NewRepository(db)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(testutil.SQL(`rt.origin ILIKE $3`, `ORDER BY s.price DESC, t.departure_time ASC, s.seat_number ASC`)).
		WithArgs(string(trips.TripStatusActive), now, `%50\%\_off%`).
		WillReturnRows(sqlmock.NewRows([]string{"trip_id"}))

	rows, err := repo.ListAvailableSeats(context.Background(), trips.AvailableTripsQuery{
		Origin: "50%_off",
		SortBy: trips.SortPriceDesc,
	}, now)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
