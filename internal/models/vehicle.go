package models

import (
	"time"

	"gorm.io/datatypes"
)

// Vehicle represents a vehicle registered by a user for route publishing.
type Vehicle struct {
	ID      string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.
	OwnerID uint64 `gorm:"not null;index"`              // Owning user.

	VehicleType  string `gorm:"type:varchar(32);not null"`             // bus, van, car.
	LicensePlate string `gorm:"type:varchar(32);not null;uniqueIndex"` // Unique plate.
	Capacity     int    `gorm:"not null"`                              // Seat capacity.

	PhotoURL string `gorm:"type:text"`        // Vehicle photo URL.
	Make     string `gorm:"type:varchar(64)"` // Manufacturer.
	Model    string `gorm:"type:varchar(64)"` // Model name.
	Year     *int   `gorm:""`                 // Manufacture year.
	Color    string `gorm:"type:varchar(32)"` // Color label.

	Amenities datatypes.JSON `gorm:"type:jsonb;default:'[]'"` // Amenity list.

	IsActive bool `gorm:"not null;default:true"` // Soft-delete flag.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
