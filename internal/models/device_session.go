package models

import "time"

// DeviceSession tracks a device/location record for a user.
type DeviceSession struct {
	ID     string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.
	UserID uint64 `gorm:"not null;index"`              // Session owner.

	DeviceIP   string `gorm:"type:varchar(64);not null"` // Device IP at record time.
	DeviceType string `gorm:"type:varchar(64)"`          // Device type label.
	DeviceOS   string `gorm:"type:varchar(64)"`          // Device OS label.

	SessionStart time.Time `gorm:"not null;autoCreateTime"` // Session start.
	LastActivity time.Time `gorm:"not null;autoCreateTime"` // Last observed activity.

	IsActive            bool `gorm:"not null;default:true"`  // Whether the session is live.
	IPRotationDetected  bool `gorm:"not null;default:false"` // IP rotation heuristic flag.
}
