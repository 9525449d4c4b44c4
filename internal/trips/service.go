package trips

import (
	"context"
	"fmt"
	"time"

	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/constants"
	"github.com/nikkhoofard/BusFleetManagementSystem/pkg/cache"
	"github.com/nikkhoofard/BusFleetManagementSystem/pkg/logger"
)

type Service interface {
	// ListAvailableTrips is the read-only available-seats projection grouped per trip
	ListAvailableTrips(ctx context.Context, query AvailableTripsQuery) ([]AvailableTrip, error)

	// InvalidateAvailability drops cached projections after a claim-state change
	InvalidateAvailability(ctx context.Context)
}

type service struct {
	repo         Repository
	cacheService cache.Service
	cacheTTL     time.Duration
	log          *logger.Logger
	now          func() time.Time
}

// NewService builds the trips service. cacheService may be nil, and a zero
// cacheTTL disables caching of the projection.
func NewService(repo Repository, cacheService cache.Service, cacheTTL time.Duration, log *logger.Logger, now func() time.Time) Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:         repo,
		cacheService: cacheService,
		cacheTTL:     cacheTTL,
		log:          log,
		now:          now,
	}
}

func (s *service) ListAvailableTrips(ctx context.Context, query AvailableTripsQuery) ([]AvailableTrip, error) {
	if err := query.SortBy.Validate(); err != nil {
		return nil, err
	}

	fetch := func() (interface{}, error) {
		rows, err := s.repo.ListAvailableSeats(ctx, query, s.now())
		if err != nil {
			return nil, err
		}
		return GroupByTrip(rows), nil
	}

	if s.cacheService == nil || s.cacheTTL <= 0 {
		result, err := fetch()
		if err != nil {
			return nil, err
		}
		return result.([]AvailableTrip), nil
	}

	var result []AvailableTrip
	key := constants.BuildAvailableTripsKey(query.Origin, query.Destination, string(query.SortBy))
	if err := s.cacheService.GetOrSet(ctx, key, s.cacheTTL, fetch, &result); err != nil {
		return nil, fmt.Errorf("failed to list available trips: %w", err)
	}
	return result, nil
}

func (s *service) InvalidateAvailability(ctx context.Context) {
	if s.cacheService == nil || s.cacheTTL <= 0 {
		return
	}
	if err := s.cacheService.DeletePattern(ctx, constants.PATTERN_INVALIDATE_TRIPS_AVAILABLE); err != nil {
		// Stale entries age out within cacheTTL
		s.log.WithError(err).WarnContext(ctx, "Failed to invalidate availability cache")
	}
}
