package reservations_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/reservations"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/apperror"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newHold(now time.Time) *reservations.Reservation {
	return &reservations.Reservation{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		SeatID:        uuid.New(),
		TripID:        uuid.New(),
		PassengerInfo: testutil.Passenger(),
		ExpiresAt:     now.Add(10 * time.Minute),
		Status:        reservations.StatusHeld,
		CreatedAt:     now,
	}
}

func TestRepository_CreateTranslatesHeldSeatConflict(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := reservations.NewRepository(db)
	hold := newHold(start)

	mock.ExpectQuery(testutil.SQL(`INSERT INTO "reservations"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uniq_reservations_seat_held"})

	err := repo.Create(context.Background(), hold)
	assert.ErrorIs(t, err, apperror.ErrSeatAlreadyHeld)
	assert.Contains(t, err.Error(), hold.SeatID.String())
}

func TestRepository_CreateKeepsOtherFailures(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := reservations.NewRepository(db)

	mock.ExpectQuery(testutil.SQL(`INSERT INTO "reservations"`)).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := repo.Create(context.Background(), newHold(start))
	assert.ErrorIs(t, err, gorm.ErrForeignKeyViolated)
	assert.False(t, errors.Is(err, apperror.ErrSeatAlreadyHeld))
}

func TestRepository_GetByIDForUpdateLocksRow(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := reservations.NewRepository(db)
	hold := newHold(start)

	mock.ExpectQuery(testutil.SQL(`SELECT * FROM "reservations" WHERE id = $1`, `FOR UPDATE`)).
		WithArgs(hold.ID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "seat_id", "trip_id", "first_name", "last_name", "national_id", "gender",
			"expires_at", "status", "created_at",
		}).AddRow(
			hold.ID.String(), hold.UserID.String(), hold.SeatID.String(), hold.TripID.String(),
			hold.FirstName, hold.LastName, hold.NationalID, hold.Gender,
			hold.ExpiresAt, string(hold.Status), hold.CreatedAt,
		))
	mock.ExpectQuery(testutil.SQL(`SELECT * FROM "reservations"`, `FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := repo.GetByIDForUpdate(context.Background(), hold.ID)
	require.NoError(t, err)
	assert.Equal(t, hold.UserID, got.UserID)
	assert.Equal(t, hold.NationalID, got.NationalID)
	assert.Equal(t, reservations.StatusHeld, got.Status)
	assert.True(t, hold.ExpiresAt.Equal(got.ExpiresAt))

	_, err = repo.GetByIDForUpdate(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRepository_TransitionIsGuardedByCurrentStatus(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := reservations.NewRepository(db)
	id := uuid.New()

	update := testutil.SQL(`UPDATE "reservations" SET "status"=$1 WHERE id = $2 AND status = $3`)
	mock.ExpectExec(update).
		WithArgs(string(reservations.StatusConfirmed), id, string(reservations.StatusHeld)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(update).
		WithArgs(string(reservations.StatusCancelled), id, string(reservations.StatusHeld)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Transition(context.Background(), id, reservations.StatusHeld, reservations.StatusConfirmed))

	// The row moved on in between; nothing matched the guard
	err := repo.Transition(context.Background(), id, reservations.StatusHeld, reservations.StatusCancelled)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
}

func TestRepository_HasActiveHold(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := reservations.NewRepository(db)
	seatID := uuid.New()

	mock.ExpectQuery(testutil.SQL(`SELECT count(*) FROM "reservations" WHERE seat_id = $1 AND status = $2 AND expires_at > $3`)).
		WithArgs(seatID, string(reservations.StatusHeld), start).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	held, err := repo.HasActiveHold(context.Background(), seatID, start)
	require.NoError(t, err)
	assert.True(t, held)
}

func TestRepository_ExpireStaleCountsExpiredRows(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := reservations.NewRepository(db)

	mock.ExpectExec(testutil.SQL(`UPDATE "reservations" SET "status"=$1 WHERE status = $2 AND expires_at <= $3`)).
		WithArgs(string(reservations.StatusExpired), string(reservations.StatusHeld), start).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(testutil.SQL(`UPDATE "reservations"`)).
		WillReturnError(errors.New("connection reset"))

	expired, err := repo.ExpireStale(context.Background(), start)
	require.NoError(t, err)
	assert.Equal(t, int64(3), expired)

	_, err = repo.ExpireStale(context.Background(), start)
	assert.ErrorContains(t, err, "failed to expire reservations")
}
