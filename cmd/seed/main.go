// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev shelf (MTV-1203) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pyle/loaner/internal/config"
	"github.com/pyle/loaner/internal/db"
	devicedomain "github.com/pyle/loaner/internal/device/domain"
	devicerepo "github.com/pyle/loaner/internal/device/repository"
	settingsrepo "github.com/pyle/loaner/internal/settings/repository"
	shelfdomain "github.com/pyle/loaner/internal/shelf/domain"
	shelfrepo "github.com/pyle/loaner/internal/shelf/repository"
)

const (
	devShelfID       = "dev-shelf-001"
	devShelfLocation = "MTV-1203"
	devDeviceCount   = 5
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	shelves := shelfrepo.NewPostgresRepository(conn)

	existing, err := shelves.GetByLocation(ctx, devShelfLocation)
	if err != nil {
		log.Fatalf("shelf lookup: %v", err)
	}
	if existing != nil {
		log.Printf("seed: shelf %s already exists, nothing to do", devShelfLocation)
		return
	}

	now := time.Now().UTC()
	shelf := &shelfdomain.Shelf{
		ID:           devShelfID,
		Location:     devShelfLocation,
		FriendlyName: "Lobby",
		Capacity:     20,
		Latitude:     37.4221,
		Longitude:    -122.0841,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := shelves.Create(ctx, shelf); err != nil {
		log.Fatalf("create shelf: %v", err)
	}

	devices := devicerepo.NewPostgresRepository(conn)
	for i := 0; i < devDeviceCount; i++ {
		d := &devicedomain.Device{
			ID:             fmt.Sprintf("dev-device-%03d", i),
			SerialNumber:   fmt.Sprintf("DEV%05d", i),
			AssetTag:       fmt.Sprintf("AT-%05d", i),
			ChromeDeviceID: fmt.Sprintf("chrome-dev-%03d", i),
			Enrolled:       true,
			DeviceModel:    "HP Chromebook 13 G1",
			CurrentOU:      cfg.DefaultOU,
			ShelfID:        shelf.ID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := devices.Create(ctx, d); err != nil {
			log.Fatalf("create device %s: %v", d.ID, err)
		}
	}

	settings := settingsrepo.NewPostgresRepository(conn)
	for key, value := range map[string]string{
		"allow_guest_mode":           "true",
		"loan_duration_days":         fmt.Sprint(cfg.LoanDurationDays),
		"maximum_loan_duration_days": fmt.Sprint(cfg.MaximumLoanDurationDays),
	} {
		if err := settings.Set(ctx, key, value); err != nil {
			log.Fatalf("set %s: %v", key, err)
		}
	}

	log.Printf("seed: created shelf %s with %d devices", devShelfLocation, devDeviceCount)
}
