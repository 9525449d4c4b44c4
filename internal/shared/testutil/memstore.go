// Package testutil holds an in-memory stand-in for the PostgreSQL
// repositories so service tests can exercise the booking core, including
// its transactions, without a database.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/bookings"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/reservations"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/apperror"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/dbtx"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/trips"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/wallets"
)

// ErrCheckViolation mirrors a failed CHECK constraint
var ErrCheckViolation = errors.New("check constraint violated")

type memTxKey struct{}

// MemStore keeps every table in maps. A transaction holds the store-wide
// mutex from begin to commit, which is at least as strict as the row locks
// the real repositories take, and restores a snapshot when fn fails.
type MemStore struct {
	mu sync.Mutex

	state memState

	// seatLocks counts LockSeat calls per seat, committed or not
	seatLocks map[uuid.UUID]int
}

type memState struct {
	routes       map[uuid.UUID]trips.Route
	buses        map[uuid.UUID]trips.Bus
	trips        map[uuid.UUID]trips.Trip
	seats        map[uuid.UUID]trips.Seat
	reservations map[uuid.UUID]reservations.Reservation
	bookings     map[uuid.UUID]bookings.Booking
	wallets      map[uuid.UUID]wallets.Wallet
	transactions []wallets.Transaction
}

func NewMemStore() *MemStore {
	return &MemStore{
		state: memState{
			routes:       make(map[uuid.UUID]trips.Route),
			buses:        make(map[uuid.UUID]trips.Bus),
			trips:        make(map[uuid.UUID]trips.Trip),
			seats:        make(map[uuid.UUID]trips.Seat),
			reservations: make(map[uuid.UUID]reservations.Reservation),
			bookings:     make(map[uuid.UUID]bookings.Booking),
			wallets:      make(map[uuid.UUID]wallets.Wallet),
		},
		seatLocks: make(map[uuid.UUID]int),
	}
}

func (s memState) clone() memState {
	c := memState{
		routes:       make(map[uuid.UUID]trips.Route, len(s.routes)),
		buses:        make(map[uuid.UUID]trips.Bus, len(s.buses)),
		trips:        make(map[uuid.UUID]trips.Trip, len(s.trips)),
		seats:        make(map[uuid.UUID]trips.Seat, len(s.seats)),
		reservations: make(map[uuid.UUID]reservations.Reservation, len(s.reservations)),
		bookings:     make(map[uuid.UUID]bookings.Booking, len(s.bookings)),
		wallets:      make(map[uuid.UUID]wallets.Wallet, len(s.wallets)),
		transactions: append([]wallets.Transaction(nil), s.transactions...),
	}
	for k, v := range s.routes {
		c.routes[k] = v
	}
	for k, v := range s.buses {
		c.buses[k] = v
	}
	for k, v := range s.trips {
		c.trips[k] = v
	}
	for k, v := range s.seats {
		c.seats[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	return c
}

// WithinTransaction implements dbtx.Transactor
func (m *MemStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inMemTx(ctx) {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func inMemTx(ctx context.Context) bool {
	v, _ := ctx.Value(memTxKey{}).(bool)
	return v
}

// do runs op under the store lock unless ctx already owns it
func (m *MemStore) do(ctx context.Context, op func(st *memState) error) error {
	if !inMemTx(ctx) {
		m.mu.Lock()
		defer m.mu.Unlock()
	}
	return op(&m.state)
}

func (m *MemStore) Transactor() dbtx.Transactor            { return m }
func (m *MemStore) Trips() trips.Repository               { return tripRepo{m} }
func (m *MemStore) Reservations() reservations.Repository { return reservationRepo{m} }
func (m *MemStore) Bookings() bookings.Repository         { return bookingRepo{m} }
func (m *MemStore) Wallets() wallets.Repository           { return walletRepo{m} }

// SeatLocks reports how many times the seat row was locked
func (m *MemStore) SeatLocks(seatID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seatLocks[seatID]
}

// Reservation returns the stored row for assertions
func (m *MemStore) Reservation(id uuid.UUID) (reservations.Reservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.state.reservations[id]
	return r, ok
}

// ConfirmedBookingsForSeat counts confirmed bookings of one seat
func (m *MemStore) ConfirmedBookingsForSeat(seatID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.state.bookings {
		if b.SeatID == seatID && b.Status == bookings.StatusConfirmed {
			n++
		}
	}
	return n
}

// HeldReservationsForSeat counts held rows of one seat, expired or not
func (m *MemStore) HeldReservationsForSeat(seatID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.state.reservations {
		if r.SeatID == seatID && r.Status == reservations.StatusHeld {
			n++
		}
	}
	return n
}

// Trips

type tripRepo struct{ m *MemStore }

func (r tripRepo) CreateRoute(ctx context.Context, route *trips.Route) error {
	return r.m.do(ctx, func(st *memState) error {
		if route.ID == uuid.Nil {
			route.ID = uuid.New()
		}
		st.routes[route.ID] = *route
		return nil
	})
}

func (r tripRepo) CreateBus(ctx context.Context, bus *trips.Bus) error {
	return r.m.do(ctx, func(st *memState) error {
		if bus.ID == uuid.Nil {
			bus.ID = uuid.New()
		}
		st.buses[bus.ID] = *bus
		return nil
	})
}

func (r tripRepo) CreateTrip(ctx context.Context, trip *trips.Trip) error {
	return r.m.do(ctx, func(st *memState) error {
		if trip.ID == uuid.Nil {
			trip.ID = uuid.New()
		}
		if trip.Status == "" {
			trip.Status = trips.TripStatusActive
		}
		st.trips[trip.ID] = *trip
		return nil
	})
}

func (r tripRepo) CreateSeats(ctx context.Context, seats []trips.Seat) error {
	return r.m.do(ctx, func(st *memState) error {
		for i := range seats {
			for _, existing := range st.seats {
				if existing.TripID == seats[i].TripID && existing.SeatNumber == seats[i].SeatNumber {
					return fmt.Errorf("seat %d of trip %s: duplicate", seats[i].SeatNumber, seats[i].TripID)
				}
			}
			if seats[i].Price <= 0 {
				return ErrCheckViolation
			}
			if seats[i].ID == uuid.Nil {
				seats[i].ID = uuid.New()
			}
			st.seats[seats[i].ID] = seats[i]
		}
		return nil
	})
}

func (r tripRepo) GetTrip(ctx context.Context, id uuid.UUID) (*trips.Trip, error) {
	var out trips.Trip
	err := r.m.do(ctx, func(st *memState) error {
		t, ok := st.trips[id]
		if !ok {
			return fmt.Errorf("%w: trip", apperror.ErrNotFound)
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r tripRepo) GetSeat(ctx context.Context, id uuid.UUID) (*trips.Seat, error) {
	var out trips.Seat
	err := r.m.do(ctx, func(st *memState) error {
		s, ok := st.seats[id]
		if !ok {
			return fmt.Errorf("%w: seat", apperror.ErrNotFound)
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// LockSeat fails outside a transaction, like a FOR UPDATE that would be
// released right away.
func (r tripRepo) LockSeat(ctx context.Context, id uuid.UUID) (*trips.Seat, error) {
	if !inMemTx(ctx) {
		return nil, errors.New("seat lock taken outside a transaction")
	}
	seat, err := r.GetSeat(ctx, id)
	if err != nil {
		return nil, err
	}
	r.m.seatLocks[id]++
	return seat, nil
}

func (r tripRepo) ListAvailableSeats(ctx context.Context, query trips.AvailableTripsQuery, now time.Time) ([]trips.AvailableSeatRow, error) {
	var rows []trips.AvailableSeatRow
	err := r.m.do(ctx, func(st *memState) error {
		taken := make(map[uuid.UUID]bool)
		for _, b := range st.bookings {
			if b.Status == bookings.StatusConfirmed {
				taken[b.SeatID] = true
			}
		}
		for _, res := range st.reservations {
			if res.IsActiveAt(now) {
				taken[res.SeatID] = true
			}
		}

		for _, seat := range st.seats {
			if taken[seat.ID] {
				continue
			}
			trip := st.trips[seat.TripID]
			if !trip.IsActive() {
				continue
			}
			bus := st.buses[trip.BusID]
			route := st.routes[bus.RouteID]
			if !containsFold(route.Origin, query.Origin) || !containsFold(route.Destination, query.Destination) {
				continue
			}
			rows = append(rows, trips.AvailableSeatRow{
				TripID:        trip.ID,
				BusID:         bus.ID,
				PlateNumber:   bus.PlateNumber,
				DepartureTime: trip.DepartureTime,
				ArrivalTime:   trip.ArrivalTime,
				Origin:        route.Origin,
				Destination:   route.Destination,
				SeatID:        seat.ID,
				SeatNumber:    seat.SeatNumber,
				Price:         seat.Price,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch query.SortBy {
		case trips.SortPriceAsc, trips.SortPriceDesc:
			if a.Price != b.Price {
				if query.SortBy == trips.SortPriceAsc {
					return a.Price < b.Price
				}
				return a.Price > b.Price
			}
			if !a.DepartureTime.Equal(b.DepartureTime) {
				return a.DepartureTime.Before(b.DepartureTime)
			}
		default:
			if !a.DepartureTime.Equal(b.DepartureTime) {
				return a.DepartureTime.Before(b.DepartureTime)
			}
			if a.Price != b.Price {
				return a.Price < b.Price
			}
		}
		if a.TripID != b.TripID {
			return a.TripID.String() < b.TripID.String()
		}
		return a.SeatNumber < b.SeatNumber
	})
	return rows, nil
}

func containsFold(value, substr string) bool {
	substr = strings.TrimSpace(substr)
	return substr == "" || strings.Contains(strings.ToLower(value), strings.ToLower(substr))
}

// Reservations

type reservationRepo struct{ m *MemStore }

func (r reservationRepo) Create(ctx context.Context, res *reservations.Reservation) error {
	return r.m.do(ctx, func(st *memState) error {
		if res.Status == reservations.StatusHeld {
			for _, other := range st.reservations {
				if other.SeatID == res.SeatID && other.Status == reservations.StatusHeld {
					return fmt.Errorf("%w: seat %s", apperror.ErrSeatAlreadyHeld, res.SeatID)
				}
			}
		}
		if res.ID == uuid.Nil {
			res.ID = uuid.New()
		}
		st.reservations[res.ID] = *res
		return nil
	})
}

func (r reservationRepo) GetByID(ctx context.Context, id uuid.UUID) (*reservations.Reservation, error) {
	var out reservations.Reservation
	err := r.m.do(ctx, func(st *memState) error {
		res, ok := st.reservations[id]
		if !ok {
			return fmt.Errorf("%w: reservation", apperror.ErrNotFound)
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r reservationRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*reservations.Reservation, error) {
	return r.GetByID(ctx, id)
}

func (r reservationRepo) HasActiveHold(ctx context.Context, seatID uuid.UUID, now time.Time) (bool, error) {
	var held bool
	err := r.m.do(ctx, func(st *memState) error {
		for _, res := range st.reservations {
			if res.SeatID == seatID && res.IsActiveAt(now) {
				held = true
			}
		}
		return nil
	})
	return held, err
}

func (r reservationRepo) Transition(ctx context.Context, id uuid.UUID, from, to reservations.Status) error {
	return r.m.do(ctx, func(st *memState) error {
		res, ok := st.reservations[id]
		if !ok || res.Status != from {
			return fmt.Errorf("%w: reservation is no longer %s", apperror.ErrInvalidState, from)
		}
		res.Status = to
		st.reservations[id] = res
		return nil
	})
}

func (r reservationRepo) ExpireStaleForSeat(ctx context.Context, seatID uuid.UUID, now time.Time) (int64, error) {
	return r.expire(ctx, now, func(res reservations.Reservation) bool { return res.SeatID == seatID })
}

func (r reservationRepo) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	return r.expire(ctx, now, func(reservations.Reservation) bool { return true })
}

func (r reservationRepo) expire(ctx context.Context, now time.Time, match func(reservations.Reservation) bool) (int64, error) {
	var n int64
	err := r.m.do(ctx, func(st *memState) error {
		for id, res := range st.reservations {
			if match(res) && res.Status == reservations.StatusHeld && res.IsExpiredAt(now) {
				res.Status = reservations.StatusExpired
				st.reservations[id] = res
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r reservationRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]reservations.Reservation, error) {
	var out []reservations.Reservation
	err := r.m.do(ctx, func(st *memState) error {
		for _, res := range st.reservations {
			if res.UserID == userID && res.IsActiveAt(now) {
				out = append(out, res)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

// Bookings

type bookingRepo struct{ m *MemStore }

func (r bookingRepo) Create(ctx context.Context, b *bookings.Booking) error {
	return r.m.do(ctx, func(st *memState) error {
		for _, other := range st.bookings {
			if other.ReservationID == b.ReservationID ||
				(other.SeatID == b.SeatID && other.Status == bookings.StatusConfirmed && b.Status == bookings.StatusConfirmed) {
				return fmt.Errorf("%w: seat %s", apperror.ErrSeatAlreadyBooked, b.SeatID)
			}
		}
		if b.PricePaid <= 0 {
			return ErrCheckViolation
		}
		st.bookings[b.ID] = *b
		return nil
	})
}

func (r bookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*bookings.Booking, error) {
	var out bookings.Booking
	err := r.m.do(ctx, func(st *memState) error {
		b, ok := st.bookings[id]
		if !ok {
			return fmt.Errorf("%w: booking", apperror.ErrNotFound)
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r bookingRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*bookings.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r bookingRepo) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.m.do(ctx, func(st *memState) error {
		b, ok := st.bookings[id]
		if !ok || b.Status != bookings.StatusConfirmed {
			return fmt.Errorf("%w: booking is not confirmed", apperror.ErrInvalidState)
		}
		b.Status = bookings.StatusCancelled
		b.CancelledAt = &at
		st.bookings[id] = b
		return nil
	})
}

func (r bookingRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]bookings.Booking, error) {
	var out []bookings.Booking
	err := r.m.do(ctx, func(st *memState) error {
		for _, b := range st.bookings {
			if b.UserID == userID {
				out = append(out, b)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r bookingRepo) HasConfirmedBookingForSeat(ctx context.Context, seatID uuid.UUID) (bool, error) {
	var found bool
	err := r.m.do(ctx, func(st *memState) error {
		for _, b := range st.bookings {
			if b.SeatID == seatID && b.Status == bookings.StatusConfirmed {
				found = true
			}
		}
		return nil
	})
	return found, err
}

func (r bookingRepo) CountConfirmedForUserBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) (int64, error) {
	var n int64
	err := r.m.do(ctx, func(st *memState) error {
		for _, b := range st.bookings {
			if b.UserID == userID && b.Status == bookings.StatusConfirmed &&
				!b.CreatedAt.Before(from) && b.CreatedAt.Before(to) {
				n++
			}
		}
		return nil
	})
	return n, err
}

// Wallets

type walletRepo struct{ m *MemStore }

func (r walletRepo) EnsureWallet(ctx context.Context, userID uuid.UUID, now time.Time) error {
	return r.m.do(ctx, func(st *memState) error {
		if _, ok := st.wallets[userID]; !ok {
			st.wallets[userID] = wallets.Wallet{UserID: userID, UpdatedAt: now}
		}
		return nil
	})
}

func (r walletRepo) GetWallet(ctx context.Context, userID uuid.UUID) (*wallets.Wallet, error) {
	var out wallets.Wallet
	err := r.m.do(ctx, func(st *memState) error {
		w, ok := st.wallets[userID]
		if !ok {
			return fmt.Errorf("%w: wallet", apperror.ErrNotFound)
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r walletRepo) LockWallet(ctx context.Context, userID uuid.UUID) (*wallets.Wallet, error) {
	return r.GetWallet(ctx, userID)
}

func (r walletRepo) AddToBalance(ctx context.Context, userID uuid.UUID, delta int64, now time.Time) (*wallets.Wallet, error) {
	var out wallets.Wallet
	err := r.m.do(ctx, func(st *memState) error {
		w, ok := st.wallets[userID]
		if !ok {
			return fmt.Errorf("%w: wallet", apperror.ErrNotFound)
		}
		if w.Balance+delta < 0 {
			return ErrCheckViolation
		}
		w.Balance += delta
		w.UpdatedAt = now
		st.wallets[userID] = w
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r walletRepo) CreateTransaction(ctx context.Context, tx *wallets.Transaction) error {
	return r.m.do(ctx, func(st *memState) error {
		if tx.ID == uuid.Nil {
			tx.ID = uuid.New()
		}
		st.transactions = append(st.transactions, *tx)
		return nil
	})
}

func (r walletRepo) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]wallets.Transaction, error) {
	var out []wallets.Transaction
	err := r.m.do(ctx, func(st *memState) error {
		// Newest first; ties keep reverse insertion order
		for i := len(st.transactions) - 1; i >= 0; i-- {
			if st.transactions[i].UserID == userID {
				out = append(out, st.transactions[i])
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r walletRepo) SumTransactions(ctx context.Context, userID uuid.UUID) (int64, int64, error) {
	var sum, rows int64
	err := r.m.do(ctx, func(st *memState) error {
		for _, tx := range st.transactions {
			if tx.UserID == userID {
				sum += tx.Amount
				rows++
			}
		}
		return nil
	})
	return sum, rows, err
}
