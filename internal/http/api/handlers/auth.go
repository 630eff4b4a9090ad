package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/imutis/imutis-api/internal/admission"
	"github.com/imutis/imutis-api/internal/config"
	"github.com/imutis/imutis-api/internal/models"
	"github.com/imutis/imutis-api/internal/security"
)

// AuthHandler manages registration, login, and token verification.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Language    string `json:"language"`
}

// Register creates a new user account and returns a signed token.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" || !strings.Contains(email, "@") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
		return
	}
	password := strings.TrimSpace(body.Password)
	if len(password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
		return
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	language := strings.TrimSpace(body.Language)
	if language == "" {
		language = "en"
	}
	user := models.User{
		Email:               email,
		Password:            hash,
		Role:                models.RoleStandard,
		DisplayName:         strings.TrimSpace(body.DisplayName),
		Language:            language,
		NotificationEnabled: true,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&user).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) || isUniqueViolation(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	token, errToken := security.IssueUserToken(h.jwtCfg.Secret, user.ID, user.Role, h.jwtCfg.Expiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"user":  userResponse(&user),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials, records a device session, and returns a token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	password := strings.TrimSpace(body.Password)
	if email == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing credentials"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !security.VerifyPassword(user.Password, password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, errToken := security.IssueUserToken(h.jwtCfg.Secret, user.ID, user.Role, h.jwtCfg.Expiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}

	session := models.DeviceSession{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		DeviceIP:   admission.ClientIP(c),
		DeviceType: strings.TrimSpace(c.GetHeader("X-Device-Type")),
		DeviceOS:   strings.TrimSpace(c.GetHeader("X-Device-OS")),
		IsActive:   true,
	}
	if errSess := h.db.WithContext(c.Request.Context()).Create(&session).Error; errSess != nil {
		// Login still succeeds; the session record is advisory.
		session.ID = ""
	}

	resp := gin.H{
		"token": token,
		"user":  userResponse(&user),
	}
	if session.ID != "" {
		resp["session_id"] = session.ID
	}
	c.JSON(http.StatusOK, resp)
}

// Verify reports whether the caller's token is valid and who it belongs to.
func (h *AuthHandler) Verify(c *gin.Context) {
	id := admission.IdentityFromContext(c)
	if !id.Authenticated {
		c.JSON(http.StatusUnauthorized, gin.H{"valid": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":   true,
		"user_id": id.UserID,
		"role":    id.Role,
	})
}

func userResponse(user *models.User) gin.H {
	return gin.H{
		"id":                   user.ID,
		"email":                user.Email,
		"role":                 user.Role,
		"display_name":         user.DisplayName,
		"language":             user.Language,
		"notification_enabled": user.NotificationEnabled,
		"created_at":           user.CreatedAt,
	}
}

// isUniqueViolation matches driver-specific unique constraint errors that
// gorm does not translate on every dialect.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
