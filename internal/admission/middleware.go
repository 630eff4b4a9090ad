package admission

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imutis/imutis-api/internal/metrics"
	"github.com/imutis/imutis-api/internal/ratelimit"
)

// ContextIdentityKey is the gin context key holding the resolved Identity.
const ContextIdentityKey = "identity"

// IdentityFromContext returns the caller identity set by the auth middleware.
func IdentityFromContext(c *gin.Context) Identity {
	if v, ok := c.Get(ContextIdentityKey); ok {
		if id, okCast := v.(Identity); okCast {
			return id
		}
	}
	return Identity{}
}

// ClientIP extracts the caller IP: first X-Forwarded-For entry, else the
// remote address host.
func ClientIP(c *gin.Context) string {
	if xff := strings.TrimSpace(c.GetHeader("X-Forwarded-For")); xff != "" {
		first := xff
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			first = xff[:idx]
		}
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, errSplit := net.SplitHostPort(c.Request.RemoteAddr); errSplit == nil && host != "" {
		return host
	}
	return strings.TrimSpace(c.Request.RemoteAddr)
}

// RequireGeneral applies the caller's general tier (anonymous, authenticated,
// or premium) before the handler runs.
func (g *Gateway) RequireGeneral() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := IdentityFromContext(c)
		g.enforce(c, id, g.GeneralTier(id))
	}
}

// RequireTier applies a stricter operation tier in addition to the general
// tier middleware already on the route group.
func (g *Gateway) RequireTier(tier Tier) gin.HandlerFunc {
	return func(c *gin.Context) {
		g.enforce(c, IdentityFromContext(c), tier)
	}
}

func (g *Gateway) enforce(c *gin.Context, id Identity, tier Tier) {
	identifier := IdentifierFor(id, ClientIP(c))
	decision, errCheck := g.Check(c.Request.Context(), identifier, tier)
	if errCheck != nil {
		if errors.Is(errCheck, ratelimit.ErrStoreUnavailable) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "rate limiting temporarily unavailable"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "admission check failed"})
		return
	}
	if !decision.Allowed {
		metrics.RateLimitRejectionsTotal.WithLabelValues(string(tier)).Inc()
		retryAfter := int(decision.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "rate limit exceeded, try again later",
			"retry_after": retryAfter,
		})
		return
	}
	c.Next()
}
