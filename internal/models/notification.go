package models

import "time"

// Notification represents a delivered in-app notification record.
type Notification struct {
	ID     string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.
	UserID uint64 `gorm:"not null;index"`              // Recipient.

	Title    string `gorm:"type:varchar(255);not null"` // Notification title.
	Body     string `gorm:"type:text;not null"`         // Notification body.
	Category string `gorm:"type:varchar(64)"`           // Category label.

	Read bool `gorm:"not null;default:false"` // Whether the user dismissed it.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
