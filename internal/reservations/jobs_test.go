package reservations_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/notifications"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/reservations"
	"github.com/nikkhoofard/BusFleetManagementSystem/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_ExpiresTimedOutHolds(t *testing.T) {
	env := newHoldEnv(t, 0)
	ctx := context.Background()

	var ids []uuid.UUID
	for seat := range env.fixture.Seats {
		res, err := env.svc.Hold(ctx, uuid.New(), env.request(seat))
		require.NoError(t, err)
		ids = append(ids, res.ID)
	}

	sweeper := reservations.NewSweeper(env.svc, time.Minute, logger.NewNop())

	expired, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)

	env.clock.Advance(11 * time.Minute)
	expired, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), expired)

	for _, id := range ids {
		res, ok := env.store.Reservation(id)
		require.True(t, ok)
		assert.Equal(t, reservations.StatusExpired, res.Status)
	}

	// Nothing left to do on the next tick
	expired, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)

	events := env.pub.Events()
	last := events[len(events)-1]
	assert.Equal(t, notifications.EventReservationsExpired, last.Type)
	assert.Equal(t, int64(3), last.Count)
}

type countingExpirer struct {
	calls atomic.Int64
	panic bool
}

func (e *countingExpirer) ExpireStale(context.Context) (int64, error) {
	e.calls.Add(1)
	if e.panic {
		panic("boom")
	}
	return 0, nil
}

func TestSweeper_StartStop(t *testing.T) {
	expirer := &countingExpirer{}
	sweeper := reservations.NewSweeper(expirer, 10*time.Millisecond, logger.NewNop())

	sweeper.Start(context.Background())
	sweeper.Start(context.Background())

	require.Eventually(t, func() bool { return expirer.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	sweeper.Stop()
	sweeper.Stop()

	stopped := expirer.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, expirer.calls.Load())
}

func TestSweeper_StopsWithContext(t *testing.T) {
	expirer := &countingExpirer{}
	sweeper := reservations.NewSweeper(expirer, time.Hour, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	sweeper.Start(ctx)
	require.Eventually(t, func() bool { return expirer.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	done := make(chan struct{})
	go func() {
		sweeper.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeper_RecoversFromPanic(t *testing.T) {
	sweeper := reservations.NewSweeper(&countingExpirer{panic: true}, time.Minute, logger.NewNop())

	expired, err := sweeper.Sweep(context.Background())
	assert.Error(t, err)
	assert.Zero(t, expired)
}
