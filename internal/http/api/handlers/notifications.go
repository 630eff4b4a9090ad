package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imutis/imutis-api/internal/admission"
	"github.com/imutis/imutis-api/internal/notify"
)

// NotificationHandler serves the caller's notification inbox.
type NotificationHandler struct {
	svc *notify.Service
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(svc *notify.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// List returns notifications for the caller. ?unread=true filters to unread.
func (h *NotificationHandler) List(c *gin.Context) {
	id := admission.IdentityFromContext(c)
	unreadOnly := strings.EqualFold(strings.TrimSpace(c.Query("unread")), "true")
	rows, errList := h.svc.ListForUser(c.Request.Context(), id.UserID, unreadOnly)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list notifications failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":         row.ID,
			"title":      row.Title,
			"body":       row.Body,
			"category":   row.Category,
			"read":       row.Read,
			"created_at": row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

// Dismiss marks one notification read.
func (h *NotificationHandler) Dismiss(c *gin.Context) {
	id := admission.IdentityFromContext(c)
	notificationID := strings.TrimSpace(c.Param("id"))
	found, errDismiss := h.svc.Dismiss(c.Request.Context(), id.UserID, notificationID)
	if errDismiss != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dismiss failed"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dismissed": true})
}

type subscribeRequest struct {
	Token    string   `json:"token"`
	Channels []string `json:"channels"`
}

// Subscribe upserts a push token for the caller.
func (h *NotificationHandler) Subscribe(c *gin.Context) {
	id := admission.IdentityFromContext(c)
	var body subscribeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	token := strings.TrimSpace(body.Token)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	channels, _ := json.Marshal(body.Channels)
	if body.Channels == nil {
		channels = []byte("[]")
	}
	record, errSub := h.svc.Subscribe(c.Request.Context(), id.UserID, token, channels)
	if errSub != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscribe failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"subscription_id": record.ID})
}
