package constants

import "strings"

// Redis keys follow busfleet:{module}:{operation}:{params}

const (
	CACHE_PREFIX = "busfleet"
)

// ================== TRIPS MODULE ==================

const (
	// Available-seats projection, + origin|destination|sort_by
	CACHE_KEY_TRIPS_AVAILABLE = CACHE_PREFIX + ":trips:available:"
)

// ================== CACHE INVALIDATION PATTERNS ==================

const (
	// Every claim-state change (hold, cancel, book, expire) drops the whole projection
	PATTERN_INVALIDATE_TRIPS_AVAILABLE = CACHE_KEY_TRIPS_AVAILABLE + "*"
)

// BuildAvailableTripsKey normalises the filter so equivalent queries share a key
func BuildAvailableTripsKey(origin, destination, sortBy string) string {
	return CACHE_KEY_TRIPS_AVAILABLE +
		strings.ToLower(strings.TrimSpace(origin)) + "|" +
		strings.ToLower(strings.TrimSpace(destination)) + "|" +
		sortBy
}
