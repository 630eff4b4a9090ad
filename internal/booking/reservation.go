// Package booking implements the seat reservation protocol against route
// inventory.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/imutis/imutis-api/internal/metrics"
	"github.com/imutis/imutis-api/internal/models"
)

// Reservation outcomes. RouteNotFound and InsufficientCapacity are terminal;
// Unavailable is transient and retryable by the caller.
var (
	ErrRouteNotFound        = errors.New("booking: route not found")
	ErrInsufficientCapacity = errors.New("booking: not enough seats available")
	ErrUnavailable          = errors.New("booking: inventory store unavailable")
	ErrInvalidPassengers    = errors.New("booking: passengers must be at least 1")
)

// Passengers board a few minutes after the scheduled arrival of the inbound
// leg, so confirmations carry a small buffer.
const arrivalBuffer = 5 * time.Minute

// ReserveParams holds the inputs for one reservation attempt.
type ReserveParams struct {
	RouteID         string
	UserID          uint64
	Passengers      int
	PaymentMethod   string
	SpecialRequests string
}

// Service reserves seats on travel routes. The route row is exclusively
// mutated only inside a reservation transaction; no other code path may
// decrement available seats.
type Service struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// NewService constructs a Service.
func NewService(db *gorm.DB, nowFn func() time.Time) *Service {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Service{db: db, nowFn: nowFn}
}

// Reserve checks and decrements route capacity and creates a booking record
// as one atomic unit. The route row is locked for the duration of the
// transaction so concurrent reservations against the same route serialize;
// reservations against other routes are unaffected.
func (s *Service) Reserve(ctx context.Context, params ReserveParams) (*models.Booking, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("booking: service not initialized")
	}
	if params.Passengers < 1 {
		return nil, ErrInvalidPassengers
	}

	var record models.Booking
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var route models.TravelRoute
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", params.RouteID).
			Take(&route).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrRouteNotFound
			}
			return fmt.Errorf("%w: lock route: %v", ErrUnavailable, errFind)
		}

		if route.AvailableSeats < params.Passengers {
			return ErrInsufficientCapacity
		}

		if errUpdate := tx.Model(&models.TravelRoute{}).
			Where("id = ?", route.ID).
			Update("available_seats", route.AvailableSeats-params.Passengers).Error; errUpdate != nil {
			return fmt.Errorf("%w: decrement seats: %v", ErrUnavailable, errUpdate)
		}

		record = models.Booking{
			ID:               uuid.NewString(),
			RouteID:          route.ID,
			UserID:           params.UserID,
			Passengers:       params.Passengers,
			PaymentMethod:    params.PaymentMethod,
			SpecialRequests:  params.SpecialRequests,
			Status:           models.BookingStatusConfirmed,
			DepartureTime:    route.DepartureTime,
			EstimatedArrival: route.EstimatedArrival.Add(arrivalBuffer),
			CreatedAt:        s.nowFn().UTC(),
		}
		if errCreate := tx.Create(&record).Error; errCreate != nil {
			return fmt.Errorf("%w: insert booking: %v", ErrUnavailable, errCreate)
		}
		return nil
	})

	switch {
	case errTx == nil:
		metrics.BookingsTotal.WithLabelValues(models.BookingStatusConfirmed).Inc()
		return &record, nil
	case errors.Is(errTx, ErrRouteNotFound), errors.Is(errTx, ErrInsufficientCapacity):
		metrics.BookingsTotal.WithLabelValues("rejected").Inc()
		return nil, errTx
	case errors.Is(errTx, ErrUnavailable):
		return nil, errTx
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, errTx)
	}
}
