package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationSubscription registers a push token for a user.
type NotificationSubscription struct {
	ID     string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.
	UserID uint64 `gorm:"not null;index"`              // Subscription owner.

	Token    string         `gorm:"type:varchar(512);not null;uniqueIndex"` // Push delivery token.
	Channels datatypes.JSON `gorm:"type:jsonb;default:'[]'"`                // Subscribed channels.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
