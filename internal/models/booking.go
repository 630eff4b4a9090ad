package models

import "time"

// Booking statuses.
const (
	BookingStatusConfirmed = "confirmed"
)

// Booking represents a confirmed seat reservation against a travel route.
//
// A booking row is created exactly once inside a successful reservation
// transaction and is immutable afterward.
type Booking struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	RouteID string `gorm:"type:varchar(128);not null;index"` // Reserved route.
	UserID  uint64 `gorm:"not null;index"`                   // Booking owner.

	Passengers int `gorm:"not null"` // Seats reserved, >= 1.

	PaymentMethod   string `gorm:"type:varchar(32);not null"` // Payment method label.
	SpecialRequests string `gorm:"type:varchar(280)"`         // Free-form requests.

	Status string `gorm:"type:varchar(24);not null;default:confirmed"` // Booking status.

	DepartureTime    time.Time `gorm:"not null"` // Copied from the route at booking time.
	EstimatedArrival time.Time `gorm:"not null"` // Route arrival plus boarding buffer.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
