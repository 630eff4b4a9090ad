package models

import "gorm.io/datatypes"

// Attraction represents a tourist attraction inside a city.
type Attraction struct {
	ID     string `gorm:"type:varchar(128);primaryKey"`    // Attraction identifier.
	CityID string `gorm:"type:varchar(64);not null;index"` // Owning city.

	Name        string   `gorm:"type:varchar(255);not null"` // Attraction name.
	Description string   `gorm:"type:text"`                  // Description.
	Category    string   `gorm:"type:varchar(64)"`           // Category label.
	Rating      *float64 `gorm:""`                           // Average rating.

	OpeningHours string `gorm:"type:varchar(64)"` // Opening hours label.
	EntryFee     string `gorm:"type:varchar(64)"` // Entry fee label.

	Location datatypes.JSON `gorm:"type:jsonb;default:'{}'"` // Coordinates payload.
	Tags     datatypes.JSON `gorm:"type:jsonb;default:'[]'"` // Tag list.
}
