package db

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/imutis/imutis-api/internal/models"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// SeedReferenceData idempotently seeds cities, attractions, and travel
// routes. Existing rows are left untouched.
func SeedReferenceData(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	cities := []models.City{
		{ID: "vilnius", Name: "Vilnius", Country: "Lithuania", Description: "Baroque old town and river bends.", Population: intPtr(588412)},
		{ID: "kaunas", Name: "Kaunas", Country: "Lithuania", Description: "Interwar modernist architecture.", Population: intPtr(304097)},
		{ID: "klaipeda", Name: "Klaipeda", Country: "Lithuania", Description: "Port city by the Curonian Lagoon.", Population: intPtr(158420)},
	}
	if errSeed := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&cities).Error; errSeed != nil {
		return fmt.Errorf("db: seed cities: %w", errSeed)
	}

	attractions := []models.Attraction{
		{
			ID: "vilnius-gediminas-tower", CityID: "vilnius", Name: "Gediminas Tower",
			Description: "Hilltop remnant of the upper castle.", Category: "history",
			Rating: floatPtr(4.6), OpeningHours: "10:00-21:00", EntryFee: "6 EUR",
			Location: datatypes.JSON([]byte(`{"lat":54.6867,"lng":25.2904}`)),
			Tags:     datatypes.JSON([]byte(`["castle","viewpoint"]`)),
		},
		{
			ID: "kaunas-ninth-fort", CityID: "kaunas", Name: "Ninth Fort",
			Description: "Fortress museum and memorial.", Category: "history",
			Rating: floatPtr(4.7), OpeningHours: "10:00-18:00", EntryFee: "5 EUR",
			Location: datatypes.JSON([]byte(`{"lat":54.9437,"lng":23.8641}`)),
			Tags:     datatypes.JSON([]byte(`["museum","memorial"]`)),
		},
		{
			ID: "klaipeda-dane-riverside", CityID: "klaipeda", Name: "Dane Riverside",
			Description: "Old town promenade along the Dane river.", Category: "nature",
			Rating: floatPtr(4.4), OpeningHours: "always", EntryFee: "free",
			Location: datatypes.JSON([]byte(`{"lat":55.7103,"lng":21.1347}`)),
			Tags:     datatypes.JSON([]byte(`["walk","river"]`)),
		},
	}
	if errSeed := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&attractions).Error; errSeed != nil {
		return fmt.Errorf("db: seed attractions: %w", errSeed)
	}

	day := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	routes := []models.TravelRoute{
		{
			ID: "vilnius-kaunas-0800", Origin: "Vilnius", Destination: "Kaunas",
			DepartureTime: day.Add(8 * time.Hour), EstimatedArrival: day.Add(9*time.Hour + 30*time.Minute),
			AvailableSeats: 42, Capacity: 42, PricePerSeat: 9.99, Confidence: 0.92,
			DistanceKm: floatPtr(102), DurationMinutes: intPtr(90),
			Amenities: datatypes.JSON([]byte(`["wifi","ac"]`)),
		},
		{
			ID: "kaunas-klaipeda-1015", Origin: "Kaunas", Destination: "Klaipeda",
			DepartureTime: day.Add(10*time.Hour + 15*time.Minute), EstimatedArrival: day.Add(13 * time.Hour),
			AvailableSeats: 36, Capacity: 36, PricePerSeat: 14.50, Confidence: 0.85,
			DistanceKm: floatPtr(214), DurationMinutes: intPtr(165),
			Amenities: datatypes.JSON([]byte(`["wifi","toilet"]`)),
		},
		{
			ID: "vilnius-klaipeda-0630", Origin: "Vilnius", Destination: "Klaipeda",
			DepartureTime: day.Add(6*time.Hour + 30*time.Minute), EstimatedArrival: day.Add(10*time.Hour + 45*time.Minute),
			AvailableSeats: 48, Capacity: 48, PricePerSeat: 19.90, Confidence: 0.88,
			DistanceKm: floatPtr(311), DurationMinutes: intPtr(255),
			Amenities: datatypes.JSON([]byte(`["wifi","ac","toilet"]`)),
		},
	}
	if errSeed := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&routes).Error; errSeed != nil {
		return fmt.Errorf("db: seed travel routes: %w", errSeed)
	}
	return nil
}
