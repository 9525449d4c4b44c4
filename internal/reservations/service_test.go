package reservations_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/bookings"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/notifications"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/reservations"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/apperror"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/testutil"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/trips"
	"github.com/nikkhoofard/BusFleetManagementSystem/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type holdEnv struct {
	store   *testutil.MemStore
	clock   *testutil.Clock
	pub     *testutil.RecordingPublisher
	inval   *testutil.CountingInvalidator
	svc     reservations.Service
	fixture testutil.TripFixture
}

func newHoldEnv(t *testing.T, dailyLimit int) *holdEnv {
	t.Helper()
	env := &holdEnv{
		store: testutil.NewMemStore(),
		clock: testutil.NewClock(start),
		pub:   &testutil.RecordingPublisher{},
		inval: &testutil.CountingInvalidator{},
	}
	env.fixture = testutil.SeedTrip(t, env.store, "Tehran", "Isfahan", start.Add(48*time.Hour), 450000, 450000, 500000)
	env.svc = reservations.NewService(reservations.Dependencies{
		Repo:              env.store.Reservations(),
		Seats:             env.store.Trips(),
		Bookings:          env.store.Bookings(),
		Tx:                env.store.Transactor(),
		Availability:      env.inval,
		Publisher:         env.pub,
		Log:               logger.NewNop(),
		HoldDuration:      10 * time.Minute,
		DailyBookingLimit: dailyLimit,
		Now:               env.clock.Now,
	})
	return env
}

func (e *holdEnv) request(seat int) reservations.HoldRequest {
	return reservations.HoldRequest{
		TripID:    e.fixture.Trip.ID,
		SeatID:    e.fixture.Seats[seat].ID,
		Passenger: testutil.Passenger(),
	}
}

func (e *holdEnv) confirmedBooking(t *testing.T, userID uuid.UUID, seat int, at time.Time) {
	t.Helper()
	require.NoError(t, e.store.Bookings().Create(context.Background(), &bookings.Booking{
		ID:            uuid.New(),
		ReservationID: uuid.New(),
		UserID:        userID,
		TripID:        e.fixture.Trip.ID,
		SeatID:        e.fixture.Seats[seat].ID,
		PassengerInfo: testutil.Passenger(),
		PricePaid:     e.fixture.Seats[seat].Price,
		Status:        bookings.StatusConfirmed,
		CreatedAt:     at,
	}))
}

func TestHold_CreatesTimeBoxedHold(t *testing.T) {
	env := newHoldEnv(t, 0)
	userID := uuid.New()

	req := env.request(0)
	req.Passenger.FirstName = "  Sara "

	res, err := env.svc.Hold(context.Background(), userID, req)
	require.NoError(t, err)

	assert.Equal(t, reservations.StatusHeld, res.Status)
	assert.Equal(t, userID, res.UserID)
	assert.Equal(t, env.fixture.Trip.ID, res.TripID)
	assert.Equal(t, start.Add(10*time.Minute), res.ExpiresAt)
	assert.Equal(t, "Sara", res.FirstName)

	stored, ok := env.store.Reservation(res.ID)
	require.True(t, ok)
	assert.Equal(t, reservations.StatusHeld, stored.Status)

	assert.Equal(t, []notifications.EventType{notifications.EventReservationHeld}, env.pub.Types())
	assert.Equal(t, 1, env.inval.Calls())
	assert.Equal(t, 1, env.store.SeatLocks(req.SeatID))
}

func TestHold_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	env := newHoldEnv(t, 0)
	const contenders = 25

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		lost      int
		other     []error
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Hold(context.Background(), uuid.New(), env.request(1))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperror.ErrSeatAlreadyHeld):
				lost++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, contenders-1, lost)
	assert.Empty(t, other)
	assert.Equal(t, 1, env.store.HeldReservationsForSeat(env.fixture.Seats[1].ID))
	assert.Equal(t, contenders, env.store.SeatLocks(env.fixture.Seats[1].ID), "every claim goes through the seat lock")
}

func TestHold_SeatHeldByAnotherUser(t *testing.T) {
	env := newHoldEnv(t, 0)

	_, err := env.svc.Hold(context.Background(), uuid.New(), env.request(0))
	require.NoError(t, err)

	_, err = env.svc.Hold(context.Background(), uuid.New(), env.request(0))
	assert.ErrorIs(t, err, apperror.ErrSeatAlreadyHeld)

	// A different seat of the same trip is unaffected
	_, err = env.svc.Hold(context.Background(), uuid.New(), env.request(2))
	assert.NoError(t, err)
}

func TestHold_ReclaimsSeatOnceHoldExpires(t *testing.T) {
	env := newHoldEnv(t, 0)

	first, err := env.svc.Hold(context.Background(), uuid.New(), env.request(0))
	require.NoError(t, err)

	env.clock.Advance(9*time.Minute + 59*time.Second)
	_, err = env.svc.Hold(context.Background(), uuid.New(), env.request(0))
	require.ErrorIs(t, err, apperror.ErrSeatAlreadyHeld)

	// expires_at == now counts as expired
	env.clock.Advance(time.Second)
	second, err := env.svc.Hold(context.Background(), uuid.New(), env.request(0))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	old, ok := env.store.Reservation(first.ID)
	require.True(t, ok)
	assert.Equal(t, reservations.StatusExpired, old.Status)
	assert.Equal(t, 1, env.store.HeldReservationsForSeat(env.fixture.Seats[0].ID))
}

func TestHold_RejectsInvalidPassenger(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *reservations.PassengerInfo)
	}{
		{"missing first name", func(p *reservations.PassengerInfo) { p.FirstName = "   " }},
		{"missing last name", func(p *reservations.PassengerInfo) { p.LastName = "" }},
		{"long last name", func(p *reservations.PassengerInfo) { p.LastName = strings.Repeat("a", 101) }},
		{"short national id", func(p *reservations.PassengerInfo) { p.NationalID = "123456789" }},
		{"non-digit national id", func(p *reservations.PassengerInfo) { p.NationalID = "00123A5678" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newHoldEnv(t, 0)
			req := env.request(0)
			tt.mutate(&req.Passenger)

			_, err := env.svc.Hold(context.Background(), uuid.New(), req)
			assert.ErrorIs(t, err, apperror.ErrValidation)
			assert.Zero(t, env.store.HeldReservationsForSeat(env.fixture.Seats[0].ID))
			assert.Empty(t, env.pub.Types())
		})
	}
}

func TestHold_SeatMustBelongToTrip(t *testing.T) {
	env := newHoldEnv(t, 0)
	req := env.request(0)
	req.TripID = uuid.New()

	_, err := env.svc.Hold(context.Background(), uuid.New(), req)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Contains(t, err.Error(), req.TripID.String())
	assert.Empty(t, env.pub.Types())

	req = env.request(0)
	req.SeatID = uuid.New()
	_, err = env.svc.Hold(context.Background(), uuid.New(), req)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestHold_InactiveTrip(t *testing.T) {
	env := newHoldEnv(t, 0)
	ctx := context.Background()

	trip := &trips.Trip{
		BusID:         env.fixture.Bus.ID,
		DepartureTime: start.Add(72 * time.Hour),
		ArrivalTime:   start.Add(77 * time.Hour),
		Status:        trips.TripStatusCancelled,
	}
	require.NoError(t, env.store.Trips().CreateTrip(ctx, trip))
	seats := []trips.Seat{{TripID: trip.ID, SeatNumber: 1, Price: 450000}}
	require.NoError(t, env.store.Trips().CreateSeats(ctx, seats))

	_, err := env.svc.Hold(ctx, uuid.New(), reservations.HoldRequest{
		TripID:    trip.ID,
		SeatID:    seats[0].ID,
		Passenger: testutil.Passenger(),
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
}

func TestHold_SeatAlreadyBooked(t *testing.T) {
	env := newHoldEnv(t, 0)
	env.confirmedBooking(t, uuid.New(), 0, start)

	_, err := env.svc.Hold(context.Background(), uuid.New(), env.request(0))
	assert.ErrorIs(t, err, apperror.ErrSeatAlreadyBooked)
	assert.ErrorIs(t, err, apperror.ErrSeatAlreadyHeld)
}

func TestHold_DailyQuota(t *testing.T) {
	env := newHoldEnv(t, 1)
	userID := uuid.New()

	// Yesterday's booking does not count
	env.confirmedBooking(t, userID, 2, start.Add(-24*time.Hour))
	_, err := env.svc.Hold(context.Background(), userID, env.request(0))
	require.NoError(t, err)

	env.confirmedBooking(t, userID, 1, start.Add(-time.Hour))
	_, err = env.svc.Hold(context.Background(), userID, env.request(0))
	assert.ErrorIs(t, err, apperror.ErrQuotaExceeded)

	// Other users are not limited by it
	env.clock.Advance(10 * time.Minute)
	_, err = env.svc.Hold(context.Background(), uuid.New(), env.request(0))
	assert.NoError(t, err)
}

func TestCancel(t *testing.T) {
	env := newHoldEnv(t, 0)
	ctx := context.Background()
	owner := uuid.New()

	res, err := env.svc.Hold(ctx, owner, env.request(0))
	require.NoError(t, err)

	_, err = env.svc.Cancel(ctx, uuid.New(), res.ID)
	assert.ErrorIs(t, err, apperror.ErrNotOwned)

	_, err = env.svc.Cancel(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	cancelled, err := env.svc.Cancel(ctx, owner, res.ID)
	require.NoError(t, err)
	assert.Equal(t, reservations.StatusCancelled, cancelled.Status)

	_, err = env.svc.Cancel(ctx, owner, res.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	// The seat is free again right away
	_, err = env.svc.Hold(ctx, uuid.New(), env.request(0))
	assert.NoError(t, err)

	assert.Equal(t, []notifications.EventType{
		notifications.EventReservationHeld,
		notifications.EventReservationCancelled,
		notifications.EventReservationHeld,
	}, env.pub.Types())
}

func TestGetUserReservations_OnlyActiveHolds(t *testing.T) {
	env := newHoldEnv(t, 0)
	ctx := context.Background()
	userID := uuid.New()

	expiring, err := env.svc.Hold(ctx, userID, env.request(0))
	require.NoError(t, err)

	env.clock.Advance(5 * time.Minute)
	current, err := env.svc.Hold(ctx, userID, env.request(1))
	require.NoError(t, err)
	_, err = env.svc.Hold(ctx, uuid.New(), env.request(2))
	require.NoError(t, err)

	list, err := env.svc.GetUserReservations(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, current.ID, list[0].ID)
	assert.Equal(t, expiring.ID, list[1].ID)

	env.clock.Advance(5 * time.Minute)
	list, err = env.svc.GetUserReservations(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, current.ID, list[0].ID)
}

func TestPublishFailureDoesNotUndoHold(t *testing.T) {
	env := newHoldEnv(t, 0)
	env.pub.Err = errors.New("broker down")

	res, err := env.svc.Hold(context.Background(), uuid.New(), env.request(0))
	require.NoError(t, err)

	stored, ok := env.store.Reservation(res.ID)
	require.True(t, ok)
	assert.Equal(t, reservations.StatusHeld, stored.Status)
}
