package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/config"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/database"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/dbtx"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/middleware"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/trips"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/wallets"
	"github.com/nikkhoofard/BusFleetManagementSystem/pkg/logger"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

type Seeder struct {
	db      *database.DB
	trips   trips.Repository
	wallets wallets.Service
}

type routeSeed struct {
	origin      string
	destination string
	distanceKm  int
	plate       string
	capacity    int
	basePrice   int64
}

var routeSeeds = []routeSeed{
	{origin: "Tehran", destination: "Isfahan", distanceKm: 440, plate: "11A111-22", capacity: 32, basePrice: 450000},
	{origin: "Tehran", destination: "Mashhad", distanceKm: 900, plate: "22B222-33", capacity: 40, basePrice: 850000},
	{origin: "Isfahan", destination: "Shiraz", distanceKm: 480, plate: "33C333-44", capacity: 25, basePrice: 500000},
	{origin: "Tabriz", destination: "Tehran", distanceKm: 630, plate: "44D444-55", capacity: 32, basePrice: 600000},
}

// Demo user; its wallet is funded and a token is printed at the end
var demoUserID = uuid.MustParse("8a6e0804-2bd0-4672-b79d-d97027f9071a")

func main() {
	fmt.Println("Starting BusFleet database seeder...")

	_ = godotenv.Load()
	cfg := config.Load()
	appLogger := logger.New(cfg.LogLevel)

	db, err := database.InitDB(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{
		db:      db,
		trips:   trips.NewRepository(db.PostgreSQL),
		wallets: wallets.NewService(wallets.NewRepository(db.PostgreSQL), dbtx.NewTransactor(db.PostgreSQL), appLogger, wallets.Options{}),
	}

	fmt.Println("\nCleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}

	fmt.Println("\nSeeding database...")
	if err := seeder.SeedAll(context.Background()); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	token, err := middleware.IssueAccessToken(cfg.JWT.Secret, demoUserID, "user", cfg.JWT.JWTExpiresIn)
	if err != nil {
		log.Fatalf("Failed to issue demo token: %v", err)
	}

	fmt.Println("\nSeeding completed!")
	fmt.Printf("  Demo user:  %s\n", demoUserID)
	fmt.Printf("  Demo token: %s\n", token)
}

// CleanDatabase truncates all tables, children first
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"wallet_transactions",
		"wallets",
		"bookings",
		"reservations",
		"seats",
		"trips",
		"buses",
		"routes",
	}

	return s.db.PostgreSQL.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			fmt.Printf("  Truncating table: %s\n", table)
			if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
				return fmt.Errorf("failed to truncate table %s: %w", table, err)
			}
		}
		return nil
	})
}

// SeedAll seeds routes, buses, a week of trips per bus and the demo wallet
func (s *Seeder) SeedAll(ctx context.Context) error {
	start := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)

	for _, rs := range routeSeeds {
		route := &trips.Route{Origin: rs.origin, Destination: rs.destination, DistanceKm: rs.distanceKm}
		if err := s.trips.CreateRoute(ctx, route); err != nil {
			return fmt.Errorf("failed to seed route %s-%s: %w", rs.origin, rs.destination, err)
		}

		bus := &trips.Bus{PlateNumber: rs.plate, Capacity: rs.capacity, RouteID: route.ID}
		if err := s.trips.CreateBus(ctx, bus); err != nil {
			return fmt.Errorf("failed to seed bus %s: %w", rs.plate, err)
		}

		// Roughly 80 km/h door to door
		duration := time.Duration(rs.distanceKm) * time.Hour / 80

		for day := 0; day < 7; day++ {
			departure := start.Add(time.Duration(day)*24*time.Hour + 8*time.Hour)
			trip := &trips.Trip{
				BusID:         bus.ID,
				DepartureTime: departure,
				ArrivalTime:   departure.Add(duration),
				Status:        trips.TripStatusActive,
			}
			if err := s.trips.CreateTrip(ctx, trip); err != nil {
				return fmt.Errorf("failed to seed trip: %w", err)
			}

			if err := s.trips.CreateSeats(ctx, buildSeats(trip.ID, rs.capacity, rs.basePrice)); err != nil {
				return fmt.Errorf("failed to seed seats: %w", err)
			}
		}

		fmt.Printf("  Seeded %s -> %s (%d seats x 7 trips)\n", rs.origin, rs.destination, rs.capacity)
	}

	if _, err := s.wallets.Deposit(ctx, demoUserID, 5000000); err != nil {
		return fmt.Errorf("failed to fund demo wallet: %w", err)
	}
	fmt.Println("  Funded demo wallet with 5000000")

	return nil
}

// buildSeats prices the front row higher than the rest
func buildSeats(tripID uuid.UUID, capacity int, basePrice int64) []trips.Seat {
	seats := make([]trips.Seat, 0, capacity)
	for n := 1; n <= capacity; n++ {
		price := basePrice
		if n <= 4 {
			price = basePrice + basePrice/10
		}
		seats = append(seats, trips.Seat{TripID: tripID, SeatNumber: n, Price: price})
	}
	return seats
}
