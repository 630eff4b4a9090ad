package admission

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imutis/imutis-api/internal/config"
	"github.com/imutis/imutis-api/internal/models"
	"github.com/imutis/imutis-api/internal/ratelimit"
)

func testTiers() config.RateLimitConfig {
	return config.Defaults().RateLimit
}

func newTestGateway(nowFn func() time.Time) *Gateway {
	limiter := ratelimit.NewManagerWithStore(nil, "", config.FailOpen, nowFn)
	return NewGateway(limiter, testTiers())
}

func TestGeneralTierResolution(t *testing.T) {
	g := newTestGateway(nil)
	cases := []struct {
		name string
		id   Identity
		want Tier
	}{
		{"anonymous", Identity{}, TierAnonymous},
		{"authenticated", Identity{UserID: 7, Role: models.RoleStandard, Authenticated: true}, TierAuthenticated},
		{"premium", Identity{UserID: 8, Role: models.RolePremium, Authenticated: true}, TierPremium},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := g.GeneralTier(tc.id); got != tc.want {
				t.Fatalf("expected tier %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIdentifierForPrecedence(t *testing.T) {
	if got := IdentifierFor(Identity{UserID: 42, Authenticated: true}, "1.2.3.4"); got != "u:42" {
		t.Fatalf("expected user identifier, got %q", got)
	}
	if got := IdentifierFor(Identity{}, "1.2.3.4"); got != "ip:1.2.3.4" {
		t.Fatalf("expected ip identifier, got %q", got)
	}
	if got := IdentifierFor(Identity{}, ""); got != "anonymous" {
		t.Fatalf("expected anonymous sentinel, got %q", got)
	}
}

func TestClientIPPrefersForwardedChain(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "10.0.0.9:5555"
	c.Request.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	if got := ClientIP(c); got != "1.2.3.4" {
		t.Fatalf("expected first forwarded ip, got %q", got)
	}

	c.Request.Header.Del("X-Forwarded-For")
	if got := ClientIP(c); got != "10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestBookingTierLimit(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := newTestGateway(func() time.Time { return now })

	// Booking tier: 5 per 60s. Five attempts within a second all pass; the
	// sixth inside the window is rejected with retry_after <= 60.
	for i := 0; i < 5; i++ {
		now = now.Add(200 * time.Millisecond)
		decision, err := g.Check(context.Background(), "u:1", TierBooking)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !decision.Allowed {
			t.Fatalf("expected attempt %d admitted", i)
		}
	}
	decision, err := g.Check(context.Background(), "u:1", TierBooking)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected 6th attempt rejected")
	}
	if decision.RetryAfter < time.Second || decision.RetryAfter > 60*time.Second {
		t.Fatalf("expected retry-after within (1s, 60s], got %s", decision.RetryAfter)
	}
}

func TestOperationTierDoesNotConsumeGeneralTier(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := newTestGateway(func() time.Time { return now })

	for i := 0; i < 5; i++ {
		if decision, err := g.Check(context.Background(), "u:2", TierBooking); err != nil || !decision.Allowed {
			t.Fatalf("booking check %d: allowed=%v err=%v", i, decision.Allowed, err)
		}
	}
	// Booking budget exhausted; the general authenticated tier still admits.
	decision, err := g.Check(context.Background(), "u:2", TierAuthenticated)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected authenticated tier unaffected by booking exhaustion")
	}
}

func TestMiddlewareRejectsWithRetryAfterHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := newTestGateway(func() time.Time { return now })

	engine := gin.New()
	engine.GET("/ping", g.RequireTier(TierBooking), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "1.2.3.4:1111"
		engine.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected request %d admitted, got %d", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "1.2.3.4:1111"
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}
