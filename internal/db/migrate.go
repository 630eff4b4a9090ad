package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/imutis/imutis-api/internal/models"
)

// Migrate runs schema migrations and seeds reference data.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.DeviceSession{},
		&models.City{},
		&models.Attraction{},
		&models.TravelRoute{},
		&models.Booking{},
		&models.Notification{},
		&models.NotificationSubscription{},
		&models.Vehicle{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errSeed := SeedReferenceData(conn); errSeed != nil {
		return errSeed
	}
	return nil
}
