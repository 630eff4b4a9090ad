// Package api registers the HTTP surface: route groups, middleware chain,
// and the admission tiers guarding each operation.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/imutis/imutis-api/internal/admission"
	"github.com/imutis/imutis-api/internal/booking"
	"github.com/imutis/imutis-api/internal/config"
	"github.com/imutis/imutis-api/internal/http/api/handlers"
	"github.com/imutis/imutis-api/internal/notify"
)

// Global burst guard: absolute ceiling on request throughput regardless of
// caller identity. Per-caller fairness is enforced by the admission tiers.
const (
	burstGuardRate  = 500
	burstGuardBurst = 1000
)

// Deps carries the wiring RegisterRoutes needs.
type Deps struct {
	DB       *gorm.DB
	JWT      config.JWTConfig
	Gateway  *admission.Gateway
	Reserver *booking.Service
	Hub      *notify.Hub
	Notify   *notify.Service
}

// RegisterRoutes attaches middleware and all route groups to the engine.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}

	r.Use(requestIDMiddleware())
	r.Use(metricsMiddleware())
	r.Use(burstGuardMiddleware(rate.NewLimiter(rate.Limit(burstGuardRate), burstGuardBurst)))
	r.Use(identityMiddleware(deps.JWT.Secret))

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.Hub != nil {
		r.GET("/ws/notifications", deps.Hub.ServeWS(deps.JWT.Secret))
	}

	v1 := r.Group("/v1")
	v1.Use(deps.Gateway.RequireGeneral())

	authHandler := handlers.NewAuthHandler(deps.DB, deps.JWT)
	v1.POST("/auth/register", authHandler.Register)
	v1.POST("/auth/login", authHandler.Login)
	v1.GET("/auth/verify", authHandler.Verify)

	travelHandler := handlers.NewTravelHandler(deps.DB, deps.Reserver)
	v1.GET("/travels", travelHandler.List)
	v1.GET("/travels/search", travelHandler.Search)
	v1.GET("/travels/:id", travelHandler.Get)
	v1.POST("/travels/estimate", deps.Gateway.RequireTier(admission.TierAI), travelHandler.Estimate)

	tourismHandler := handlers.NewTourismHandler(deps.DB)
	v1.GET("/cities", tourismHandler.ListCities)
	v1.GET("/cities/:id", tourismHandler.GetCity)
	v1.GET("/cities/:id/attractions", tourismHandler.ListAttractions)
	v1.GET("/attractions/search", tourismHandler.SearchAttractions)

	authed := v1.Group("")
	authed.Use(requireUser())

	authed.POST("/travels/:id/book", deps.Gateway.RequireTier(admission.TierBooking), travelHandler.Book)
	authed.GET("/bookings", travelHandler.ListBookings)

	userHandler := handlers.NewUserHandler(deps.DB)
	authed.GET("/users/me", userHandler.Profile)
	authed.PUT("/users/me", userHandler.UpdateProfile)
	authed.PUT("/users/me/preferences", userHandler.UpdatePreferences)
	authed.DELETE("/users/me", userHandler.DeleteAccount)
	authed.GET("/users/me/sessions", userHandler.ListSessions)
	authed.DELETE("/users/me/sessions/:id", userHandler.RevokeSession)
	authed.POST("/users/me/location", userHandler.TrackLocation)

	vehicleHandler := handlers.NewVehicleHandler(deps.DB)
	authed.POST("/vehicles", vehicleHandler.Register)
	authed.GET("/vehicles", vehicleHandler.List)
	authed.GET("/vehicles/:id", vehicleHandler.Get)
	authed.PATCH("/vehicles/:id", vehicleHandler.Update)
	authed.DELETE("/vehicles/:id", vehicleHandler.Delete)

	if deps.Notify != nil {
		notificationHandler := handlers.NewNotificationHandler(deps.Notify)
		authed.GET("/notifications", notificationHandler.List)
		authed.POST("/notifications/:id/dismiss", notificationHandler.Dismiss)
		authed.POST("/notifications/subscribe", notificationHandler.Subscribe)
	}
}
