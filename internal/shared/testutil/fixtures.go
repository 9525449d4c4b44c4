package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/notifications"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/reservations"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/trips"
	"github.com/stretchr/testify/require"
)

// Clock is a settable time source for services that take a Now func
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// TripFixture is one route, one bus and one active trip with priced seats
type TripFixture struct {
	Route trips.Route
	Bus   trips.Bus
	Trip  trips.Trip
	Seats []trips.Seat
}

// SeedTrip inserts an active trip with one seat per price
func SeedTrip(t *testing.T, store *MemStore, origin, destination string, departure time.Time, prices ...int64) TripFixture {
	t.Helper()
	ctx := context.Background()
	repo := store.Trips()

	f := TripFixture{
		Route: trips.Route{Origin: origin, Destination: destination, DistanceKm: 400},
	}
	require.NoError(t, repo.CreateRoute(ctx, &f.Route))

	f.Bus = trips.Bus{PlateNumber: fmt.Sprintf("BUS-%s", uuid.NewString()[:8]), Capacity: len(prices), RouteID: f.Route.ID}
	require.NoError(t, repo.CreateBus(ctx, &f.Bus))

	f.Trip = trips.Trip{
		BusID:         f.Bus.ID,
		DepartureTime: departure,
		ArrivalTime:   departure.Add(5 * time.Hour),
		Status:        trips.TripStatusActive,
	}
	require.NoError(t, repo.CreateTrip(ctx, &f.Trip))

	f.Seats = make([]trips.Seat, len(prices))
	for i, price := range prices {
		f.Seats[i] = trips.Seat{TripID: f.Trip.ID, SeatNumber: i + 1, Price: price}
	}
	require.NoError(t, repo.CreateSeats(ctx, f.Seats))

	return f
}

// Passenger returns valid passenger details
func Passenger() reservations.PassengerInfo {
	return reservations.PassengerInfo{
		FirstName:  "Sara",
		LastName:   "Ahmadi",
		NationalID: "0012345678",
		Gender:     false,
	}
}

// RecordingPublisher keeps published events in memory
type RecordingPublisher struct {
	mu     sync.Mutex
	events []notifications.BookingEvent
	Err    error
}

func (p *RecordingPublisher) Publish(_ context.Context, event *notifications.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, *event)
	return nil
}

func (p *RecordingPublisher) Close() error { return nil }

// Types lists published event types in order
func (p *RecordingPublisher) Types() []notifications.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]notifications.EventType, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}

func (p *RecordingPublisher) Events() []notifications.BookingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notifications.BookingEvent(nil), p.events...)
}

// CountingInvalidator counts availability invalidations
type CountingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *CountingInvalidator) InvalidateAvailability(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
}

func (c *CountingInvalidator) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
