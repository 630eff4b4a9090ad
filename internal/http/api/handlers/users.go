package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/imutis/imutis-api/internal/admission"
	"github.com/imutis/imutis-api/internal/models"
)

// UserHandler manages the authenticated user's own account.
type UserHandler struct {
	db *gorm.DB
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// Profile returns the caller's account record.
func (h *UserHandler) Profile(c *gin.Context) {
	id := admission.IdentityFromContext(c)
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, id.UserID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, userResponse(&user))
}

type updateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Language    *string `json:"language"`
}

// UpdateProfile changes display name and language. Absent fields are kept.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	id := admission.IdentityFromContext(c)
	var body updateProfileRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{}
	if body.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*body.DisplayName)
	}
	if body.Language != nil {
		language := strings.TrimSpace(*body.Language)
		if language == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid language"})
			return
		}
		updates["language"] = language
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.User{}).
		Where("id = ?", id.UserID).
		Updates(updates).Error
	if errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update profile failed"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, id.UserID).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, userResponse(&user))
}

type preferencesRequest struct {
	NotificationEnabled *bool `json:"notification_enabled"`
}

// UpdatePreferences toggles notification delivery for the caller.
func (h *UserHandler) UpdatePreferences(c *gin.Context) {
	id := admission.IdentityFromContext(c)
	var body preferencesRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.NotificationEnabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing notification_enabled"})
		return
	}
	errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.User{}).
		Where("id = ?", id.UserID).
		Update("notification_enabled", *body.NotificationEnabled).Error
	if errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update preferences failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification_enabled": *body.NotificationEnabled})
}

// DeleteAccount removes the caller's account and, through the foreign key
// constraints, all dependent rows.
func (h *UserHandler) DeleteAccount(c *gin.Context) {
	id := admission.IdentityFromContext(c)
	result := h.db.WithContext(c.Request.Context()).Delete(&models.User{}, id.UserID)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete account failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ListSessions returns the caller's device sessions, most recent first.
func (h *UserHandler) ListSessions(c *gin.Context) {
	id := admission.IdentityFromContext(c)
	var rows []models.DeviceSession
	errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", id.UserID).
		Order("last_activity DESC").
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list sessions failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":                   row.ID,
			"device_ip":            row.DeviceIP,
			"device_type":          row.DeviceType,
			"device_os":            row.DeviceOS,
			"session_start":        row.SessionStart,
			"last_activity":        row.LastActivity,
			"is_active":            row.IsActive,
			"ip_rotation_detected": row.IPRotationDetected,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// RevokeSession deactivates one of the caller's device sessions.
func (h *UserHandler) RevokeSession(c *gin.Context) {
	id := admission.IdentityFromContext(c)
	sessionID := strings.TrimSpace(c.Param("id"))
	result := h.db.WithContext(c.Request.Context()).
		Model(&models.DeviceSession{}).
		Where("id = ? AND user_id = ?", sessionID, id.UserID).
		Update("is_active", false)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "revoke session failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}

type trackLocationRequest struct {
	SessionID  string `json:"session_id"`
	DeviceType string `json:"device_type"`
	DeviceOS   string `json:"device_os"`
}

// TrackLocation records device activity. A changed IP on an existing session
// flags rotation; without a session id a new session record is opened.
func (h *UserHandler) TrackLocation(c *gin.Context) {
	id := admission.IdentityFromContext(c)
	var body trackLocationRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	deviceIP := admission.ClientIP(c)
	now := time.Now().UTC()

	sessionID := strings.TrimSpace(body.SessionID)
	if sessionID != "" {
		var session models.DeviceSession
		errFind := h.db.WithContext(c.Request.Context()).
			Where("id = ? AND user_id = ?", sessionID, id.UserID).
			First(&session).Error
		if errFind == nil {
			updates := map[string]any{"last_activity": now, "device_ip": deviceIP}
			if session.DeviceIP != "" && session.DeviceIP != deviceIP {
				updates["ip_rotation_detected"] = true
			}
			errUpdate := h.db.WithContext(c.Request.Context()).
				Model(&models.DeviceSession{}).
				Where("id = ?", session.ID).
				Updates(updates).Error
			if errUpdate != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "track location failed"})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"session_id":           session.ID,
				"ip_rotation_detected": updates["ip_rotation_detected"] == true,
			})
			return
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
	}

	session := models.DeviceSession{
		ID:         uuid.NewString(),
		UserID:     id.UserID,
		DeviceIP:   deviceIP,
		DeviceType: strings.TrimSpace(body.DeviceType),
		DeviceOS:   strings.TrimSpace(body.DeviceOS),
		IsActive:   true,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&session).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "track location failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session_id": session.ID, "ip_rotation_detected": false})
}
