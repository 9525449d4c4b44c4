package trips_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/reservations"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/apperror"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/constants"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/testutil"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/trips"
	"github.com/nikkhoofard/BusFleetManagementSystem/pkg/cache"
	"github.com/nikkhoofard/BusFleetManagementSystem/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func seatIDs(trip trips.AvailableTrip) []uuid.UUID {
	ids := make([]uuid.UUID, len(trip.AvailableSeats))
	for i, s := range trip.AvailableSeats {
		ids[i] = s.SeatID
	}
	return ids
}

func TestListAvailableTrips_FiltersAndSorts(t *testing.T) {
	store := testutil.NewMemStore()
	early := testutil.SeedTrip(t, store, "Tehran", "Isfahan", now.Add(24*time.Hour), 450000, 400000)
	late := testutil.SeedTrip(t, store, "Tehran", "Isfahan", now.Add(48*time.Hour), 300000)
	testutil.SeedTrip(t, store, "Tabriz", "Tehran", now.Add(12*time.Hour), 350000)

	svc := trips.NewService(store.Trips(), nil, 0, logger.NewNop(), clock)
	ctx := context.Background()

	result, err := svc.ListAvailableTrips(ctx, trips.AvailableTripsQuery{Origin: "tehran", Destination: "isf"})
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, early.Trip.ID, result[0].TripID)
	assert.Equal(t, []uuid.UUID{early.Seats[1].ID, early.Seats[0].ID}, seatIDs(result[0]))
	assert.Equal(t, late.Trip.ID, result[1].TripID)

	result, err = svc.ListAvailableTrips(ctx, trips.AvailableTripsQuery{Origin: "Tehran", SortBy: trips.SortPriceAsc})
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, late.Trip.ID, result[0].TripID)

	result, err = svc.ListAvailableTrips(ctx, trips.AvailableTripsQuery{SortBy: trips.SortPriceDesc})
	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.Equal(t, early.Trip.ID, result[0].TripID)
	assert.Equal(t, int64(450000), result[0].AvailableSeats[0].Price)
}

func TestListAvailableTrips_HidesClaimedSeats(t *testing.T) {
	store := testutil.NewMemStore()
	f := testutil.SeedTrip(t, store, "Shiraz", "Yazd", now.Add(24*time.Hour), 200000, 200000, 200000)
	ctx := context.Background()

	// Seat 1 held and active, seat 2 held but timed out, seat 3 free
	require.NoError(t, store.Reservations().Create(ctx, &reservations.Reservation{
		ID: uuid.New(), UserID: uuid.New(), SeatID: f.Seats[0].ID, TripID: f.Trip.ID,
		PassengerInfo: testutil.Passenger(), ExpiresAt: now.Add(time.Minute), Status: reservations.StatusHeld, CreatedAt: now,
	}))
	require.NoError(t, store.Reservations().Create(ctx, &reservations.Reservation{
		ID: uuid.New(), UserID: uuid.New(), SeatID: f.Seats[1].ID, TripID: f.Trip.ID,
		PassengerInfo: testutil.Passenger(), ExpiresAt: now, Status: reservations.StatusHeld, CreatedAt: now.Add(-10 * time.Minute),
	}))

	svc := trips.NewService(store.Trips(), nil, 0, logger.NewNop(), clock)
	result, err := svc.ListAvailableTrips(ctx, trips.AvailableTripsQuery{})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, []uuid.UUID{f.Seats[1].ID, f.Seats[2].ID}, seatIDs(result[0]))
}

func TestListAvailableTrips_RejectsUnknownSort(t *testing.T) {
	svc := trips.NewService(testutil.NewMemStore().Trips(), nil, 0, logger.NewNop(), clock)

	_, err := svc.ListAvailableTrips(context.Background(), trips.AvailableTripsQuery{SortBy: "seat_number"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestListAvailableTrips_CacheMissStoresProjection(t *testing.T) {
	store := testutil.NewMemStore()
	testutil.SeedTrip(t, store, "Tehran", "Mashhad", now.Add(24*time.Hour), 850000)

	rows, err := store.Trips().ListAvailableSeats(context.Background(), trips.AvailableTripsQuery{Origin: "Tehran"}, now)
	require.NoError(t, err)
	payload, err := json.Marshal(trips.GroupByTrip(rows))
	require.NoError(t, err)

	db, mock := redismock.NewClientMock()
	key := constants.BuildAvailableTripsKey("Tehran", "", "")
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, payload, 5*time.Second).SetVal("OK")

	svc := trips.NewService(store.Trips(), cache.NewService(db), 5*time.Second, logger.NewNop(), clock)
	result, err := svc.ListAvailableTrips(context.Background(), trips.AvailableTripsQuery{Origin: "Tehran"})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Len(t, result[0].AvailableSeats, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAvailableTrips_CacheHitSkipsRepository(t *testing.T) {
	cached := []trips.AvailableTrip{{
		TripID:      uuid.New(),
		Origin:      "Tehran",
		Destination: "Mashhad",
		AvailableSeats: []trips.AvailableSeat{
			{SeatID: uuid.New(), SeatNumber: 7, Price: 850000},
		},
	}}
	payload, err := json.Marshal(cached)
	require.NoError(t, err)

	db, mock := redismock.NewClientMock()
	key := constants.BuildAvailableTripsKey(" TEHRAN ", "mashhad", string(trips.SortPriceAsc))
	mock.ExpectGet(key).SetVal(string(payload))

	// Empty store: anything returned came from the cache
	svc := trips.NewService(testutil.NewMemStore().Trips(), cache.NewService(db), 5*time.Second, logger.NewNop(), clock)
	result, err := svc.ListAvailableTrips(context.Background(), trips.AvailableTripsQuery{
		Origin: "tehran", Destination: "Mashhad", SortBy: trips.SortPriceAsc,
	})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, cached[0].TripID, result[0].TripID)
	assert.Equal(t, 7, result[0].AvailableSeats[0].SeatNumber)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateAvailability(t *testing.T) {
	db, mock := redismock.NewClientMock()
	keys := []string{
		constants.BuildAvailableTripsKey("tehran", "", ""),
		constants.BuildAvailableTripsKey("", "", "price_asc"),
	}
	mock.ExpectScan(0, constants.PATTERN_INVALIDATE_TRIPS_AVAILABLE, 100).SetVal(keys, 0)
	mock.ExpectDel(keys...).SetVal(2)

	svc := trips.NewService(testutil.NewMemStore().Trips(), cache.NewService(db), 5*time.Second, logger.NewNop(), clock)
	svc.InvalidateAvailability(context.Background())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateAvailability_RedisErrorIsSwallowed(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectScan(0, constants.PATTERN_INVALIDATE_TRIPS_AVAILABLE, 100).SetErr(errors.New("connection refused"))

	svc := trips.NewService(testutil.NewMemStore().Trips(), cache.NewService(db), 5*time.Second, logger.NewNop(), clock)
	assert.NotPanics(t, func() { svc.InvalidateAvailability(context.Background()) })

	assert.NoError(t, mock.ExpectationsWereMet())
}
