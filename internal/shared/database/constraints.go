package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds the indexes that back the seat claim rules. The
// partial unique indexes are the last line of defence if two transactions
// ever race past the seat row lock.
func MigrateConstraints(db *gorm.DB) error {
	statements := []string{
		// At most one held reservation per seat
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_reservations_seat_held
			ON reservations (seat_id) WHERE status = 'held'`,

		// At most one confirmed booking per seat
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_bookings_seat_confirmed
			ON bookings (seat_id) WHERE status = 'confirmed'`,

		// Expiry sweeps scan held rows by expires_at
		`CREATE INDEX IF NOT EXISTS idx_reservations_status_expires
			ON reservations (status, expires_at)`,

		// Daily quota and booking history
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_status_created
			ON bookings (user_id, status, created_at)`,

		`CREATE INDEX IF NOT EXISTS idx_wallet_transactions_user_created
			ON wallet_transactions (user_id, created_at DESC)`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
