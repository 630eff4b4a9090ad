package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/imutis/imutis-api/internal/admission"
	"github.com/imutis/imutis-api/internal/models"
)

var vehicleTypes = map[string]bool{"bus": true, "van": true, "car": true}

// VehicleHandler manages vehicles owned by the authenticated user.
type VehicleHandler struct {
	db *gorm.DB
}

// NewVehicleHandler constructs a VehicleHandler.
func NewVehicleHandler(db *gorm.DB) *VehicleHandler {
	return &VehicleHandler{db: db}
}

type registerVehicleRequest struct {
	VehicleType  string   `json:"vehicle_type"`
	LicensePlate string   `json:"license_plate"`
	Capacity     int      `json:"capacity"`
	PhotoURL     string   `json:"photo_url"`
	Make         string   `json:"make"`
	Model        string   `json:"model"`
	Year         *int     `json:"year"`
	Color        string   `json:"color"`
	Amenities    []string `json:"amenities"`
}

// Register adds a vehicle. A duplicate license plate is a conflict.
func (h *VehicleHandler) Register(c *gin.Context) {
	id := admission.IdentityFromContext(c)
	var body registerVehicleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	vehicleType := strings.ToLower(strings.TrimSpace(body.VehicleType))
	if !vehicleTypes[vehicleType] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vehicle_type must be bus, van, or car"})
		return
	}
	plate := strings.ToUpper(strings.TrimSpace(body.LicensePlate))
	if plate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing license_plate"})
		return
	}
	if body.Capacity < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "capacity must be at least 1"})
		return
	}

	amenities, _ := json.Marshal(body.Amenities)
	if body.Amenities == nil {
		amenities = []byte("[]")
	}
	vehicle := models.Vehicle{
		ID:           uuid.NewString(),
		OwnerID:      id.UserID,
		VehicleType:  vehicleType,
		LicensePlate: plate,
		Capacity:     body.Capacity,
		PhotoURL:     strings.TrimSpace(body.PhotoURL),
		Make:         strings.TrimSpace(body.Make),
		Model:        strings.TrimSpace(body.Model),
		Year:         body.Year,
		Color:        strings.TrimSpace(body.Color),
		Amenities:    datatypes.JSON(amenities),
		IsActive:     true,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&vehicle).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) || isUniqueViolation(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "license plate already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "register vehicle failed"})
		return
	}
	c.JSON(http.StatusCreated, vehicleResponse(&vehicle))
}

// List returns the caller's active vehicles.
func (h *VehicleHandler) List(c *gin.Context) {
	id := admission.IdentityFromContext(c)
	var rows []models.Vehicle
	errFind := h.db.WithContext(c.Request.Context()).
		Where("owner_id = ? AND is_active = ?", id.UserID, true).
		Order("created_at DESC").
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list vehicles failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, vehicleResponse(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": out})
}

// Get returns one of the caller's vehicles.
func (h *VehicleHandler) Get(c *gin.Context) {
	vehicle, ok := h.ownedVehicle(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, vehicleResponse(vehicle))
}

type updateVehicleRequest struct {
	Capacity  *int     `json:"capacity"`
	PhotoURL  *string  `json:"photo_url"`
	Color     *string  `json:"color"`
	Amenities []string `json:"amenities"`
}

// Update patches mutable vehicle fields. Type and plate are immutable.
func (h *VehicleHandler) Update(c *gin.Context) {
	vehicle, ok := h.ownedVehicle(c)
	if !ok {
		return
	}
	var body updateVehicleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{}
	if body.Capacity != nil {
		if *body.Capacity < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "capacity must be at least 1"})
			return
		}
		updates["capacity"] = *body.Capacity
	}
	if body.PhotoURL != nil {
		updates["photo_url"] = strings.TrimSpace(*body.PhotoURL)
	}
	if body.Color != nil {
		updates["color"] = strings.TrimSpace(*body.Color)
	}
	if body.Amenities != nil {
		amenities, _ := json.Marshal(body.Amenities)
		updates["amenities"] = datatypes.JSON(amenities)
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.Vehicle{}).
		Where("id = ?", vehicle.ID).
		Updates(updates).Error
	if errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update vehicle failed"})
		return
	}

	var fresh models.Vehicle
	if errFind := h.db.WithContext(c.Request.Context()).Where("id = ?", vehicle.ID).First(&fresh).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, vehicleResponse(&fresh))
}

// Delete soft-deletes a vehicle by clearing its active flag.
func (h *VehicleHandler) Delete(c *gin.Context) {
	vehicle, ok := h.ownedVehicle(c)
	if !ok {
		return
	}
	errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.Vehicle{}).
		Where("id = ?", vehicle.ID).
		Update("is_active", false).Error
	if errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete vehicle failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *VehicleHandler) ownedVehicle(c *gin.Context) (*models.Vehicle, bool) {
	id := admission.IdentityFromContext(c)
	vehicleID := strings.TrimSpace(c.Param("id"))
	var vehicle models.Vehicle
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND owner_id = ? AND is_active = ?", vehicleID, id.UserID, true).
		First(&vehicle).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		}
		return nil, false
	}
	return &vehicle, true
}

func vehicleResponse(vehicle *models.Vehicle) gin.H {
	resp := gin.H{
		"id":            vehicle.ID,
		"vehicle_type":  vehicle.VehicleType,
		"license_plate": vehicle.LicensePlate,
		"capacity":      vehicle.Capacity,
		"photo_url":     vehicle.PhotoURL,
		"make":          vehicle.Make,
		"model":         vehicle.Model,
		"color":         vehicle.Color,
		"amenities":     vehicle.Amenities,
		"created_at":    vehicle.CreatedAt,
	}
	if vehicle.Year != nil {
		resp["year"] = *vehicle.Year
	}
	return resp
}
