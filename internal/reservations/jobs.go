package reservations

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nikkhoofard/BusFleetManagementSystem/pkg/logger"
	"github.com/nikkhoofard/BusFleetManagementSystem/pkg/metrics"
)

// Expirer is the single operation the sweeper drives
type Expirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// Sweeper periodically moves timed-out holds to expired. It is owned by the
// process: started at boot, stopped at shutdown.
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
	log      *logger.Logger

	done     chan struct{}
	wg       sync.WaitGroup
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
}

// NewSweeper creates a sweeper; interval defaults to one minute
func NewSweeper(expirer Expirer, interval time.Duration, log *logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		expirer:  expirer,
		interval: interval,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per interval until Stop is
// called or ctx is cancelled. Calling Start twice is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.started {
		return
	}
	s.started = true

	s.log.Info("Starting reservation sweeper", "interval", s.interval.String())

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop ends the loop and waits for an in-flight sweep to finish. Safe to call
// more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.log.Info("Reservation sweeper stopped")
	})
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Sweep performs one pass. Errors and panics are logged and counted; the
// next tick simply tries again.
func (s *Sweeper) Sweep(ctx context.Context) (expired int64, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panicked: %v", r)
		}
		metrics.ObserveSweep(expired, err)
		s.log.LogSweep(ctx, expired, time.Since(start), err)
	}()

	return s.expirer.ExpireStale(ctx)
}
