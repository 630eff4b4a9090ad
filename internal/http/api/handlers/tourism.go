package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dbutil "github.com/imutis/imutis-api/internal/db"
	"github.com/imutis/imutis-api/internal/models"
)

// TourismHandler serves city and attraction reference data.
type TourismHandler struct {
	db *gorm.DB
}

// NewTourismHandler constructs a TourismHandler.
func NewTourismHandler(db *gorm.DB) *TourismHandler {
	return &TourismHandler{db: db}
}

// ListCities returns all cities.
func (h *TourismHandler) ListCities(c *gin.Context) {
	var rows []models.City
	if errFind := h.db.WithContext(c.Request.Context()).Order("name ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list cities failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, cityResponse(&row))
	}
	c.JSON(http.StatusOK, gin.H{"cities": out})
}

// GetCity returns one city with its attractions.
func (h *TourismHandler) GetCity(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var city models.City
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("Attractions").
		Where("id = ?", id).
		First(&city).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "city not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	attractions := make([]gin.H, 0, len(city.Attractions))
	for i := range city.Attractions {
		attractions = append(attractions, attractionResponse(&city.Attractions[i]))
	}
	resp := cityResponse(&city)
	resp["attractions"] = attractions
	c.JSON(http.StatusOK, resp)
}

// ListAttractions returns a city's attractions with an optional category filter.
func (h *TourismHandler) ListAttractions(c *gin.Context) {
	cityID := strings.TrimSpace(c.Param("id"))
	q := h.db.WithContext(c.Request.Context()).Where("city_id = ?", cityID)
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		q = q.Where("category = ?", category)
	}
	var rows []models.Attraction
	if errFind := q.Order("name ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list attractions failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, attractionResponse(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"attractions": out})
}

// SearchAttractions searches attractions by name or description.
func (h *TourismHandler) SearchAttractions(c *gin.Context) {
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing search term"})
		return
	}
	pattern := dbutil.NormalizeLikePattern(h.db, "%"+term+"%")
	var rows []models.Attraction
	errFind := h.db.WithContext(c.Request.Context()).
		Where(
			dbutil.CaseInsensitiveLikeExpr(h.db, "name")+" OR "+dbutil.CaseInsensitiveLikeExpr(h.db, "description"),
			pattern,
			pattern,
		).
		Order("name ASC").
		Limit(50).
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search attractions failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, attractionResponse(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"attractions": out})
}

func cityResponse(city *models.City) gin.H {
	resp := gin.H{
		"id":          city.ID,
		"name":        city.Name,
		"country":     city.Country,
		"description": city.Description,
	}
	if city.Population != nil {
		resp["population"] = *city.Population
	}
	return resp
}

func attractionResponse(a *models.Attraction) gin.H {
	resp := gin.H{
		"id":            a.ID,
		"city_id":       a.CityID,
		"name":          a.Name,
		"description":   a.Description,
		"category":      a.Category,
		"opening_hours": a.OpeningHours,
		"entry_fee":     a.EntryFee,
		"location":      a.Location,
		"tags":          a.Tags,
	}
	if a.Rating != nil {
		resp["rating"] = *a.Rating
	}
	return resp
}
