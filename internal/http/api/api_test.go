package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/imutis/imutis-api/internal/admission"
	"github.com/imutis/imutis-api/internal/booking"
	"github.com/imutis/imutis-api/internal/config"
	dbpkg "github.com/imutis/imutis-api/internal/db"
	"github.com/imutis/imutis-api/internal/models"
	"github.com/imutis/imutis-api/internal/notify"
	"github.com/imutis/imutis-api/internal/ratelimit"
)

func newTestEngine(t *testing.T, tiers config.RateLimitConfig) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("sql db: %v", errDB)
	}
	sqlDB.SetMaxOpenConns(1)
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	manager := ratelimit.NewManager(config.RedisConfig{}, config.FailOpen, nil)
	t.Cleanup(func() { _ = manager.Close() })

	jwtCfg := config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}
	hub := notify.NewHub()
	engine := gin.New()
	RegisterRoutes(engine, Deps{
		DB:       conn,
		JWT:      jwtCfg,
		Gateway:  admission.NewGateway(manager, tiers),
		Reserver: booking.NewService(conn, nil),
		Hub:      hub,
		Notify:   notify.NewService(conn, hub),
	})
	return engine, conn
}

func defaultTiers() config.RateLimitConfig {
	return config.Defaults().RateLimit
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if errEnc := json.NewEncoder(&buf).Encode(body); errEnc != nil {
			t.Fatalf("encode body: %v", errEnc)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.10:51000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, engine *gin.Engine, email string) string {
	t.Helper()
	rec := doJSON(t, engine, http.MethodPost, "/v1/auth/register", "", gin.H{
		"email":    email,
		"password": "correct-horse",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if errDec := json.Unmarshal(rec.Body.Bytes(), &resp); errDec != nil || resp.Token == "" {
		t.Fatalf("register: bad response %s", rec.Body.String())
	}
	return resp.Token
}

func TestHealthz(t *testing.T) {
	engine, _ := newTestEngine(t, defaultTiers())
	rec := doJSON(t, engine, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", rec.Code)
	}
}

func TestRegisterLoginAndVerify(t *testing.T) {
	engine, _ := newTestEngine(t, defaultTiers())
	token := registerAndLogin(t, engine, "alice@example.com")

	rec := doJSON(t, engine, http.MethodGet, "/v1/auth/verify", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, engine, http.MethodPost, "/v1/auth/register", "", gin.H{
		"email":    "alice@example.com",
		"password": "another-pass",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: status %d, want 409", rec.Code)
	}

	rec = doJSON(t, engine, http.MethodPost, "/v1/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "correct-horse",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, engine, http.MethodPost, "/v1/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: status %d, want 401", rec.Code)
	}
}

func TestBookRouteDecrementsSeats(t *testing.T) {
	engine, conn := newTestEngine(t, defaultTiers())
	token := registerAndLogin(t, engine, "booker@example.com")

	var route models.TravelRoute
	if errFind := conn.Order("id ASC").First(&route).Error; errFind != nil {
		t.Fatalf("seeded route: %v", errFind)
	}

	rec := doJSON(t, engine, http.MethodPost, "/v1/travels/"+route.ID+"/book", token, gin.H{
		"passengers":     2,
		"payment_method": "card",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("book: status %d body %s", rec.Code, rec.Body.String())
	}

	var fresh models.TravelRoute
	if errFind := conn.Where("id = ?", route.ID).First(&fresh).Error; errFind != nil {
		t.Fatalf("reload route: %v", errFind)
	}
	if fresh.AvailableSeats != route.AvailableSeats-2 {
		t.Fatalf("available seats = %d, want %d", fresh.AvailableSeats, route.AvailableSeats-2)
	}

	rec = doJSON(t, engine, http.MethodGet, "/v1/bookings", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list bookings: status %d", rec.Code)
	}
}

func TestBookOverCapacityReturns400(t *testing.T) {
	engine, conn := newTestEngine(t, defaultTiers())
	token := registerAndLogin(t, engine, "crowd@example.com")

	var route models.TravelRoute
	if errFind := conn.Order("id ASC").First(&route).Error; errFind != nil {
		t.Fatalf("seeded route: %v", errFind)
	}

	rec := doJSON(t, engine, http.MethodPost, "/v1/travels/"+route.ID+"/book", token, gin.H{
		"passengers": route.AvailableSeats + 1,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("over capacity: status %d, want 400", rec.Code)
	}

	var fresh models.TravelRoute
	if errFind := conn.Where("id = ?", route.ID).First(&fresh).Error; errFind != nil {
		t.Fatalf("reload route: %v", errFind)
	}
	if fresh.AvailableSeats != route.AvailableSeats {
		t.Fatalf("available seats = %d, want %d unchanged", fresh.AvailableSeats, route.AvailableSeats)
	}
}

func TestBookUnknownRouteReturns404(t *testing.T) {
	engine, _ := newTestEngine(t, defaultTiers())
	token := registerAndLogin(t, engine, "ghost@example.com")

	rec := doJSON(t, engine, http.MethodPost, "/v1/travels/no-such-route/book", token, gin.H{
		"passengers": 1,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route: status %d, want 404", rec.Code)
	}
}

func TestBookingTierRejectsWithRetryAfter(t *testing.T) {
	tiers := defaultTiers()
	tiers.Booking = config.TierLimit{Limit: 2, Window: 60}
	engine, conn := newTestEngine(t, tiers)
	token := registerAndLogin(t, engine, "heavy@example.com")

	var route models.TravelRoute
	if errFind := conn.Order("id ASC").First(&route).Error; errFind != nil {
		t.Fatalf("seeded route: %v", errFind)
	}

	for i := 0; i < 2; i++ {
		rec := doJSON(t, engine, http.MethodPost, "/v1/travels/"+route.ID+"/book", token, gin.H{
			"passengers": 1,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("attempt %d: status %d body %s", i+1, rec.Code, rec.Body.String())
		}
	}

	rec := doJSON(t, engine, http.MethodPost, "/v1/travels/"+route.ID+"/book", token, gin.H{
		"passengers": 1,
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third attempt: status %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}

	// The rejected attempt must not have touched inventory.
	var fresh models.TravelRoute
	if errFind := conn.Where("id = ?", route.ID).First(&fresh).Error; errFind != nil {
		t.Fatalf("reload route: %v", errFind)
	}
	if fresh.AvailableSeats != route.AvailableSeats-2 {
		t.Fatalf("available seats = %d, want %d", fresh.AvailableSeats, route.AvailableSeats-2)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	engine, _ := newTestEngine(t, defaultTiers())
	for _, path := range []string{"/v1/users/me", "/v1/vehicles", "/v1/bookings"} {
		rec := doJSON(t, engine, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status %d, want 401", path, rec.Code)
		}
	}
}

func TestVehicleDuplicatePlateConflicts(t *testing.T) {
	engine, _ := newTestEngine(t, defaultTiers())
	token := registerAndLogin(t, engine, "driver@example.com")

	body := gin.H{
		"vehicle_type":  "van",
		"license_plate": "abc-123",
		"capacity":      8,
	}
	rec := doJSON(t, engine, http.MethodPost, "/v1/vehicles", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register vehicle: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, engine, http.MethodPost, "/v1/vehicles", token, body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate plate: status %d, want 409", rec.Code)
	}
}

func TestCitySearchAndAttractions(t *testing.T) {
	engine, _ := newTestEngine(t, defaultTiers())

	rec := doJSON(t, engine, http.MethodGet, "/v1/cities", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cities: status %d", rec.Code)
	}
	var resp struct {
		Cities []map[string]any `json:"cities"`
	}
	if errDec := json.Unmarshal(rec.Body.Bytes(), &resp); errDec != nil {
		t.Fatalf("decode cities: %v", errDec)
	}
	if len(resp.Cities) == 0 {
		t.Fatal("no seeded cities")
	}

	rec = doJSON(t, engine, http.MethodGet, "/v1/attractions/search?q=tower", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("attraction search: status %d", rec.Code)
	}

	rec = doJSON(t, engine, http.MethodGet, "/v1/attractions/search", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty search: status %d, want 400", rec.Code)
	}
}
