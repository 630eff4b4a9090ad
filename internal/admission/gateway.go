package admission

import (
	"context"
	"strconv"
	"time"

	"github.com/imutis/imutis-api/internal/config"
	"github.com/imutis/imutis-api/internal/models"
	"github.com/imutis/imutis-api/internal/ratelimit"
)

// Tier is a named rate-limit bucket. The general tiers (anonymous,
// authenticated, premium) apply per caller; the operation tiers (ai, booking)
// apply in addition to, not instead of, the general tier.
type Tier string

const (
	TierAnonymous     Tier = "anonymous"
	TierAuthenticated Tier = "authenticated"
	TierPremium       Tier = "premium"
	TierAI            Tier = "ai"
	TierBooking       Tier = "booking"
)

// Identity is the resolved caller identity for admission purposes.
type Identity struct {
	UserID        uint64
	Role          string
	Authenticated bool
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Gateway resolves identifiers and tiers and delegates to the rate limiter
// before any side effect occurs.
type Gateway struct {
	limiter *ratelimit.Manager
	tiers   config.RateLimitConfig
}

// NewGateway constructs a Gateway.
func NewGateway(limiter *ratelimit.Manager, tiers config.RateLimitConfig) *Gateway {
	return &Gateway{limiter: limiter, tiers: tiers}
}

// GeneralTier maps a caller identity to its general admission tier.
func (g *Gateway) GeneralTier(id Identity) Tier {
	if !id.Authenticated {
		return TierAnonymous
	}
	if id.Role == models.RolePremium {
		return TierPremium
	}
	return TierAuthenticated
}

// Check enforces the tier's limit for the identifier. The limiter key embeds
// the tier so the same identifier never collides across tiers.
func (g *Gateway) Check(ctx context.Context, identifier string, tier Tier) (Decision, error) {
	limit := g.tierLimit(tier)
	result, errAllow := g.limiter.Allow(ctx, identifier+":"+string(tier), limit.Limit, limit.WindowDuration())
	if errAllow != nil {
		return Decision{}, errAllow
	}
	return Decision{Allowed: result.Allowed, RetryAfter: result.RetryAfter}, nil
}

func (g *Gateway) tierLimit(tier Tier) config.TierLimit {
	switch tier {
	case TierAuthenticated:
		return g.tiers.Authenticated
	case TierPremium:
		return g.tiers.Premium
	case TierAI:
		return g.tiers.AI
	case TierBooking:
		return g.tiers.Booking
	default:
		return g.tiers.Anonymous
	}
}

// IdentifierFor returns the rate limit identifier for a caller: the user id
// when authenticated, otherwise the supplied client IP, otherwise a sentinel.
func IdentifierFor(id Identity, clientIP string) string {
	if id.Authenticated && id.UserID > 0 {
		return "u:" + strconv.FormatUint(id.UserID, 10)
	}
	if clientIP != "" {
		return "ip:" + clientIP
	}
	return "anonymous"
}
