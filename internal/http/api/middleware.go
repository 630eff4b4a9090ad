package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/imutis/imutis-api/internal/admission"
	"github.com/imutis/imutis-api/internal/metrics"
	"github.com/imutis/imutis-api/internal/security"
)

// requestIDMiddleware assigns each request an id, echoed in X-Request-ID.
// An incoming X-Request-ID is kept so upstream proxies can correlate logs.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// metricsMiddleware records the request counter and latency histogram.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// burstGuardMiddleware sheds load when the whole process is saturated. It
// protects the server itself; per-caller fairness is the admission layer's job.
func burstGuardMiddleware(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "server busy, try again later"})
			return
		}
		c.Next()
	}
}

// identityMiddleware resolves the caller identity from a bearer token when
// one is present. Requests without a token proceed as anonymous; only a
// token that fails verification is rejected.
func identityMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.Set(admission.ContextIdentityKey, admission.Identity{})
			c.Next()
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		claims, errJWT := security.ParseUserToken(jwtSecret, strings.TrimSpace(token))
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(admission.ContextIdentityKey, admission.Identity{
			UserID:        claims.UserID,
			Role:          claims.Role,
			Authenticated: true,
		})
		c.Next()
	}
}

// requireUser aborts unauthenticated requests. It assumes identityMiddleware
// already ran on the chain.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := admission.IdentityFromContext(c)
		if !id.Authenticated || id.UserID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}
