package database

import (
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/bookings"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/reservations"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/trips"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/wallets"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return err
	}

	return db.AutoMigrate(
		&trips.Route{},
		&trips.Bus{},
		&trips.Trip{},
		&trips.Seat{},
		&reservations.Reservation{},
		&bookings.Booking{},
		&wallets.Wallet{},
		&wallets.Transaction{},
	)
}
