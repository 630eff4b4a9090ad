package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/imutis/imutis-api/internal/models"
)

// Service persists notifications and pushes them to live connections.
type Service struct {
	db  *gorm.DB
	hub *Hub
}

// NewService constructs a Service around the shared database handle.
func NewService(conn *gorm.DB, hub *Hub) *Service {
	return &Service{db: conn, hub: hub}
}

// Send stores a notification for the user and fans it out over the hub.
func (s *Service) Send(ctx context.Context, userID uint64, title, body, category string) (*models.Notification, error) {
	record := &models.Notification{
		ID:       uuid.NewString(),
		UserID:   userID,
		Title:    title,
		Body:     body,
		Category: category,
	}
	if errCreate := s.db.WithContext(ctx).Create(record).Error; errCreate != nil {
		return nil, fmt.Errorf("notify: store notification: %w", errCreate)
	}
	if s.hub != nil {
		s.hub.Publish(userID, Event{
			ID:       record.ID,
			Title:    record.Title,
			Body:     record.Body,
			Category: record.Category,
			SentAt:   time.Now().UTC(),
		})
	}
	return record, nil
}

// ListForUser returns the user's notifications, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uint64, unreadOnly bool) ([]models.Notification, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if unreadOnly {
		query = query.Where("read = ?", false)
	}
	var records []models.Notification
	if errFind := query.Find(&records).Error; errFind != nil {
		return nil, fmt.Errorf("notify: list notifications: %w", errFind)
	}
	return records, nil
}

// Dismiss marks a notification read. It is a no-op when the notification
// does not belong to the user.
func (s *Service) Dismiss(ctx context.Context, userID uint64, notificationID string) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if result.Error != nil {
		return false, fmt.Errorf("notify: dismiss notification: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Subscribe upserts a push token for the user. Re-registering an existing
// token moves it to the new owner and replaces its channel list.
func (s *Service) Subscribe(ctx context.Context, userID uint64, token string, channels []byte) (*models.NotificationSubscription, error) {
	record := &models.NotificationSubscription{
		ID:       uuid.NewString(),
		UserID:   userID,
		Token:    token,
		Channels: datatypes.JSON(channels),
	}
	errUpsert := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "channels"}),
	}).Create(record).Error
	if errUpsert != nil {
		return nil, fmt.Errorf("notify: subscribe token: %w", errUpsert)
	}
	return record, nil
}
