package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/imutis/imutis-api/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("raw db: %v", errDB)
	}
	// Single connection serializes transactions against the in-memory store.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if errMigrate := conn.AutoMigrate(&models.TravelRoute{}, &models.Booking{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func seedRoute(t *testing.T, conn *gorm.DB, id string, seats int) models.TravelRoute {
	t.Helper()
	route := models.TravelRoute{
		ID:               id,
		Origin:           "Vilnius",
		Destination:      "Kaunas",
		DepartureTime:    time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
		EstimatedArrival: time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC),
		AvailableSeats:   seats,
		Capacity:         seats,
		PricePerSeat:     12.50,
		Confidence:       0.9,
	}
	if errCreate := conn.Create(&route).Error; errCreate != nil {
		t.Fatalf("seed route: %v", errCreate)
	}
	return route
}

func TestReserveConfirmsBooking(t *testing.T) {
	conn := newTestDB(t)
	route := seedRoute(t, conn, "route-1", 10)
	svc := NewService(conn, nil)

	record, errReserve := svc.Reserve(context.Background(), ReserveParams{
		RouteID:       route.ID,
		UserID:        1,
		Passengers:    3,
		PaymentMethod: "card",
	})
	if errReserve != nil {
		t.Fatalf("reserve: %v", errReserve)
	}
	if record.Status != models.BookingStatusConfirmed {
		t.Fatalf("expected confirmed, got %q", record.Status)
	}
	if record.ID == "" {
		t.Fatalf("expected booking id assigned")
	}
	if got, want := record.EstimatedArrival, route.EstimatedArrival.Add(arrivalBuffer); !got.Equal(want) {
		t.Fatalf("expected arrival %s, got %s", want, got)
	}

	var stored models.TravelRoute
	if errFind := conn.Take(&stored, "id = ?", route.ID).Error; errFind != nil {
		t.Fatalf("load route: %v", errFind)
	}
	if stored.AvailableSeats != 7 {
		t.Fatalf("expected 7 seats left, got %d", stored.AvailableSeats)
	}
}

func TestReserveUnknownRoute(t *testing.T) {
	conn := newTestDB(t)
	svc := NewService(conn, nil)

	_, errReserve := svc.Reserve(context.Background(), ReserveParams{RouteID: "missing", UserID: 1, Passengers: 1})
	if !errors.Is(errReserve, ErrRouteNotFound) {
		t.Fatalf("expected ErrRouteNotFound, got %v", errReserve)
	}

	var count int64
	if errCount := conn.Model(&models.Booking{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count bookings: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected no booking rows, got %d", count)
	}
}

func TestReserveInsufficientCapacityLeavesStateUntouched(t *testing.T) {
	conn := newTestDB(t)
	route := seedRoute(t, conn, "route-2", 2)
	svc := NewService(conn, nil)

	_, errReserve := svc.Reserve(context.Background(), ReserveParams{RouteID: route.ID, UserID: 1, Passengers: 5})
	if !errors.Is(errReserve, ErrInsufficientCapacity) {
		t.Fatalf("expected ErrInsufficientCapacity, got %v", errReserve)
	}

	var stored models.TravelRoute
	if errFind := conn.Take(&stored, "id = ?", route.ID).Error; errFind != nil {
		t.Fatalf("load route: %v", errFind)
	}
	if stored.AvailableSeats != 2 {
		t.Fatalf("expected seats unchanged, got %d", stored.AvailableSeats)
	}
	var count int64
	if errCount := conn.Model(&models.Booking{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count bookings: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected no booking rows, got %d", count)
	}
}

func TestReserveRejectsInvalidPassengerCount(t *testing.T) {
	conn := newTestDB(t)
	route := seedRoute(t, conn, "route-3", 5)
	svc := NewService(conn, nil)

	if _, errReserve := svc.Reserve(context.Background(), ReserveParams{RouteID: route.ID, UserID: 1, Passengers: 0}); !errors.Is(errReserve, ErrInvalidPassengers) {
		t.Fatalf("expected ErrInvalidPassengers, got %v", errReserve)
	}
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	conn := newTestDB(t)
	route := seedRoute(t, conn, "route-4", 14)
	svc := NewService(conn, nil)

	const callers = 20

	var wg sync.WaitGroup
	var mu sync.Mutex
	confirmed := 0
	rejected := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()
			_, errReserve := svc.Reserve(context.Background(), ReserveParams{
				RouteID:       route.ID,
				UserID:        userID,
				Passengers:    1,
				PaymentMethod: "card",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errReserve == nil:
				confirmed++
			case errors.Is(errReserve, ErrInsufficientCapacity):
				rejected++
			default:
				t.Errorf("unexpected reserve error: %v", errReserve)
			}
		}(uint64(i + 1))
	}
	wg.Wait()

	if confirmed != 14 {
		t.Fatalf("expected exactly 14 confirmed, got %d", confirmed)
	}
	if rejected != 6 {
		t.Fatalf("expected exactly 6 capacity rejections, got %d", rejected)
	}

	var stored models.TravelRoute
	if errFind := conn.Take(&stored, "id = ?", route.ID).Error; errFind != nil {
		t.Fatalf("load route: %v", errFind)
	}
	if stored.AvailableSeats != 0 {
		t.Fatalf("expected 0 seats left, got %d", stored.AvailableSeats)
	}
	var count int64
	if errCount := conn.Model(&models.Booking{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count bookings: %v", errCount)
	}
	if count != 14 {
		t.Fatalf("expected 14 booking rows, got %d", count)
	}
}

func TestSeatAccountingInvariant(t *testing.T) {
	conn := newTestDB(t)
	route := seedRoute(t, conn, "route-5", 12)
	svc := NewService(conn, nil)

	for _, passengers := range []int{3, 1, 4, 2, 5, 1} {
		_, errReserve := svc.Reserve(context.Background(), ReserveParams{
			RouteID:       route.ID,
			UserID:        1,
			Passengers:    passengers,
			PaymentMethod: "cash",
		})
		if errReserve != nil && !errors.Is(errReserve, ErrInsufficientCapacity) {
			t.Fatalf("reserve: %v", errReserve)
		}
	}

	var stored models.TravelRoute
	if errFind := conn.Take(&stored, "id = ?", route.ID).Error; errFind != nil {
		t.Fatalf("load route: %v", errFind)
	}
	var bookings []models.Booking
	if errFind := conn.Find(&bookings).Error; errFind != nil {
		t.Fatalf("load bookings: %v", errFind)
	}
	total := 0
	for _, b := range bookings {
		total += b.Passengers
	}
	if stored.AvailableSeats+total != stored.Capacity {
		t.Fatalf("invariant violated: available=%d + booked=%d != capacity=%d", stored.AvailableSeats, total, stored.Capacity)
	}
	if stored.AvailableSeats < 0 {
		t.Fatalf("available seats negative: %d", stored.AvailableSeats)
	}
}
