package trips

import "github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/apperror"

type TripStatus string

const (
	TripStatusActive    TripStatus = "active"
	TripStatusCancelled TripStatus = "cancelled"
	TripStatusCompleted TripStatus = "completed"
)

// IsValid checks if the trip status is valid
func (s TripStatus) IsValid() bool {
	switch s {
	case TripStatusActive, TripStatusCancelled, TripStatusCompleted:
		return true
	}
	return false
}

// SortBy orders the available-seats projection
type SortBy string

const (
	SortDefault   SortBy = ""
	SortPriceAsc  SortBy = "price_asc"
	SortPriceDesc SortBy = "price_desc"
)

// Validate rejects unknown sort keys
func (s SortBy) Validate() error {
	switch s {
	case SortDefault, SortPriceAsc, SortPriceDesc:
		return nil
	}
	return apperror.Validation("sort_by must be one of price_asc, price_desc")
}
