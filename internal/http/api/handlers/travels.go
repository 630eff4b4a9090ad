package handlers

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/imutis/imutis-api/internal/admission"
	"github.com/imutis/imutis-api/internal/booking"
	dbutil "github.com/imutis/imutis-api/internal/db"
	"github.com/imutis/imutis-api/internal/models"
)

// TravelHandler serves route listing, search, estimation, and booking.
type TravelHandler struct {
	db       *gorm.DB
	reserver *booking.Service
}

// NewTravelHandler constructs a TravelHandler.
func NewTravelHandler(db *gorm.DB, reserver *booking.Service) *TravelHandler {
	return &TravelHandler{db: db, reserver: reserver}
}

// List returns upcoming routes ordered by departure.
func (h *TravelHandler) List(c *gin.Context) {
	var rows []models.TravelRoute
	errFind := h.db.WithContext(c.Request.Context()).
		Order("departure_time ASC").
		Limit(100).
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list routes failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"routes": routeList(rows)})
}

// Search filters routes by origin and destination prefix.
func (h *TravelHandler) Search(c *gin.Context) {
	origin := strings.TrimSpace(c.Query("origin"))
	destination := strings.TrimSpace(c.Query("destination"))
	if origin == "" && destination == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing origin or destination"})
		return
	}

	q := h.db.WithContext(c.Request.Context()).Model(&models.TravelRoute{})
	if origin != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, origin+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "origin"), pattern)
	}
	if destination != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, destination+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "destination"), pattern)
	}

	var rows []models.TravelRoute
	if errFind := q.Order("departure_time ASC").Limit(100).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search routes failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"routes": routeList(rows)})
}

// Get returns one route by id.
func (h *TravelHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var route models.TravelRoute
	if errFind := h.db.WithContext(c.Request.Context()).Where("id = ?", id).First(&route).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, routeResponse(&route))
}

type estimateRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Date        string `json:"date"`
}

// Estimate predicts departure options for an origin/destination pair from
// historic route data. Routes behind the ai admission tier.
func (h *TravelHandler) Estimate(c *gin.Context) {
	var body estimateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	origin := strings.TrimSpace(body.Origin)
	destination := strings.TrimSpace(body.Destination)
	if origin == "" || destination == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing origin or destination"})
		return
	}

	var rows []models.TravelRoute
	errFind := h.db.WithContext(c.Request.Context()).
		Where(dbutil.CaseInsensitiveLikeExpr(h.db, "origin"), dbutil.NormalizeLikePattern(h.db, origin)).
		Where(dbutil.CaseInsensitiveLikeExpr(h.db, "destination"), dbutil.NormalizeLikePattern(h.db, destination)).
		Order("departure_time ASC").
		Limit(20).
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "estimate failed"})
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no routes between these cities"})
		return
	}

	options := make([]gin.H, 0, len(rows))
	var confidence float64
	for _, row := range rows {
		confidence += row.Confidence
		options = append(options, gin.H{
			"route_id":          row.ID,
			"departure_time":    row.DepartureTime,
			"estimated_arrival": row.EstimatedArrival,
			"price_per_seat":    row.PricePerSeat,
			"available_seats":   row.AvailableSeats,
			"confidence":        row.Confidence,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"origin":      origin,
		"destination": destination,
		"options":     options,
		"confidence":  math.Round(confidence/float64(len(rows))*100) / 100,
	})
}

type bookRequest struct {
	Passengers      int    `json:"passengers"`
	PaymentMethod   string `json:"payment_method"`
	SpecialRequests string `json:"special_requests"`
}

// Book reserves seats on a route for the authenticated caller. Routed behind
// the booking admission tier.
func (h *TravelHandler) Book(c *gin.Context) {
	id := admission.IdentityFromContext(c)
	var body bookRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	record, errReserve := h.reserver.Reserve(c.Request.Context(), booking.ReserveParams{
		RouteID:         strings.TrimSpace(c.Param("id")),
		UserID:          id.UserID,
		Passengers:      body.Passengers,
		PaymentMethod:   strings.TrimSpace(body.PaymentMethod),
		SpecialRequests: strings.TrimSpace(body.SpecialRequests),
	})
	switch {
	case errReserve == nil:
	case errors.Is(errReserve, booking.ErrRouteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
		return
	case errors.Is(errReserve, booking.ErrInsufficientCapacity):
		c.JSON(http.StatusBadRequest, gin.H{"error": "not enough seats available"})
		return
	case errors.Is(errReserve, booking.ErrInvalidPassengers):
		c.JSON(http.StatusBadRequest, gin.H{"error": "passengers must be at least 1"})
		return
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "booking temporarily unavailable"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"booking": gin.H{
			"id":                record.ID,
			"route_id":          record.RouteID,
			"passengers":        record.Passengers,
			"status":            record.Status,
			"payment_method":    record.PaymentMethod,
			"departure_time":    record.DepartureTime,
			"estimated_arrival": record.EstimatedArrival,
			"created_at":        record.CreatedAt,
		},
	})
}

// ListBookings returns the caller's bookings, newest first.
func (h *TravelHandler) ListBookings(c *gin.Context) {
	id := admission.IdentityFromContext(c)
	var rows []models.Booking
	errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", id.UserID).
		Order("created_at DESC").
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list bookings failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":                row.ID,
			"route_id":          row.RouteID,
			"passengers":        row.Passengers,
			"status":            row.Status,
			"departure_time":    row.DepartureTime,
			"estimated_arrival": row.EstimatedArrival,
			"created_at":        row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}

func routeList(rows []models.TravelRoute) []gin.H {
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, routeResponse(&rows[i]))
	}
	return out
}

func routeResponse(route *models.TravelRoute) gin.H {
	resp := gin.H{
		"id":                route.ID,
		"origin":            route.Origin,
		"destination":       route.Destination,
		"departure_time":    route.DepartureTime.Format(time.RFC3339),
		"estimated_arrival": route.EstimatedArrival.Format(time.RFC3339),
		"available_seats":   route.AvailableSeats,
		"capacity":          route.Capacity,
		"price_per_seat":    route.PricePerSeat,
		"confidence":        route.Confidence,
		"amenities":         route.Amenities,
	}
	if route.DistanceKm != nil {
		resp["distance_km"] = *route.DistanceKm
	}
	if route.DurationMinutes != nil {
		resp["duration_minutes"] = *route.DurationMinutes
	}
	return resp
}
