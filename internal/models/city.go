package models

// City represents static city reference data.
type City struct {
	ID string `gorm:"type:varchar(64);primaryKey"` // City identifier.

	Name        string `gorm:"type:varchar(120);not null"` // City name.
	Country     string `gorm:"type:varchar(120);not null"` // Country name.
	Description string `gorm:"type:text"`                  // Description.
	Population  *int   `gorm:""`                           // Population, when known.

	Attractions []Attraction `gorm:"foreignKey:CityID;constraint:OnDelete:CASCADE"` // Attractions in this city.
}
