package models

import (
	"time"

	"gorm.io/datatypes"
)

// TravelRoute represents a published inter-urban route with finite seat inventory.
//
// AvailableSeats is mutated only inside a seat reservation transaction; the
// invariant 0 <= available_seats <= capacity must hold under concurrent access.
type TravelRoute struct {
	ID string `gorm:"type:varchar(128);primaryKey"` // Route identifier.

	Origin      string `gorm:"type:varchar(120);not null;index"` // Origin city name.
	Destination string `gorm:"type:varchar(120);not null;index"` // Destination city name.

	DepartureTime    time.Time `gorm:"not null"` // Scheduled departure.
	EstimatedArrival time.Time `gorm:"not null"` // Scheduled arrival.

	AvailableSeats int     `gorm:"not null"`                   // Remaining seat inventory.
	Capacity       int     `gorm:"not null"`                   // Initial seat capacity.
	PricePerSeat   float64 `gorm:"type:decimal(10,2);not null"` // Seat price.
	Confidence     float64 `gorm:"not null"`                   // Schedule confidence score.

	DistanceKm      *float64       `gorm:""`                         // Route distance, when known.
	DurationMinutes *int           `gorm:""`                         // Trip duration, when known.
	Amenities       datatypes.JSON `gorm:"type:jsonb;default:'[]'"` // Amenity list.

	Bookings []Booking `gorm:"foreignKey:RouteID;constraint:OnDelete:CASCADE"` // Bookings against this route.
}
