package models

import "time"

// User roles understood by the admission layer.
const (
	RoleStandard = "standard"
	RolePremium  = "premium"
)

// User represents an end-user account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email    string `gorm:"type:text;not null;uniqueIndex"` // Unique login email.
	Password string `gorm:"type:text;not null"`             // Hashed password.
	Role     string `gorm:"type:varchar(32);not null;default:standard"` // standard or premium.

	DisplayName         string `gorm:"type:varchar(120)"`                // Display name.
	Language            string `gorm:"type:varchar(8);not null;default:en"` // Preferred language.
	NotificationEnabled bool   `gorm:"not null;default:true"`            // Push notification opt-in.

	Sessions      []DeviceSession            `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Device sessions.
	Bookings      []Booking                  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Bookings.
	Notifications []Notification             `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Notifications.
	Subscriptions []NotificationSubscription `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Push subscriptions.
	Vehicles      []Vehicle                  `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"` // Registered vehicles.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
