// Package booking orchestrates one user transaction: hold a seat, create
// the booking, take payment, and roll the seat back if payment fails.
package booking

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/altavia/airbook/internal/domain"
	"github.com/altavia/airbook/internal/observability"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Catalog interface {
	GetFlightInventory(ctx context.Context, flightNumber string) (*domain.FlightInventory, error)
}

// Store persists bookings, payments and the booked-seat mirror. A nil Store
// keeps everything in memory.
type Store interface {
	SaveBooking(ctx context.Context, b *domain.Booking) error
	UpdateBookingStatus(ctx context.Context, id int64, status domain.BookingStatus) error
	SavePayment(ctx context.Context, p domain.Payment) error
	SaveSeat(ctx context.Context, flightNumber, seatID string) error
	DeleteSeat(ctx context.Context, flightNumber, seatID string) error
}

type Publisher interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

// IDGenerator supplies booking and payment ids. Injected so tests and
// deployments can choose their own source.
type IDGenerator interface {
	NextBookingID() int64
	NextPaymentID() int64
}

// SequentialIDs is the default source: monotonic in-process counters.
type SequentialIDs struct {
	booking atomic.Int64
	payment atomic.Int64
}

func (s *SequentialIDs) NextBookingID() int64 { return s.booking.Add(1) }
func (s *SequentialIDs) NextPaymentID() int64 { return s.payment.Add(1) }

type Service struct {
	catalog Catalog
	store   Store
	pub     Publisher
	ids     IDGenerator
	logger  observability.Logger

	mu       sync.RWMutex
	bookings map[int64]*domain.Booking
}

func NewService(catalog Catalog, store Store, pub Publisher, ids IDGenerator, logger observability.Logger) *Service {
	return &Service{
		catalog:  catalog,
		store:    store,
		pub:      pub,
		ids:      ids,
		logger:   logger,
		bookings: make(map[int64]*domain.Booking),
	}
}

type BookAndPayInput struct {
	FlightNumber string
	Passenger    domain.PassengerRef
	SeatID       string
	Payment      domain.PaymentRequest
}

// BookAndPay reserves the seat, creates the booking and processes payment.
// On payment failure the seat is released and the booking comes back
// CANCELLED together with an ErrPaymentValidation describing the reason.
// No booking is created for a seat that could not be held.
func (s *Service) BookAndPay(ctx context.Context, in BookAndPayInput) (*domain.Booking, error) {
	inv, err := s.catalog.GetFlightInventory(ctx, in.FlightNumber)
	if err != nil {
		return nil, err
	}

	if err := inv.Reserve(in.SeatID); err != nil {
		if errors.Is(err, domain.ErrSeatAlreadyBooked) {
			observability.SeatConflictsTotal.Inc()
		}
		return nil, err
	}

	b := domain.NewBooking(s.ids.NextBookingID(), in.Passenger, inv.FlightNumber(), in.SeatID, inv.Price())
	s.remember(b)
	if s.store != nil {
		if err := s.store.SaveBooking(ctx, b); err != nil {
			s.logger.WithError(err).WithField("booking_id", b.ID).Warn("failed to persist booking")
		}
		if err := s.store.SaveSeat(ctx, b.FlightNumber, b.SeatID); err != nil {
			s.logger.WithError(err).WithField("seat_id", b.SeatID).Warn("failed to persist seat hold")
		}
	}

	outcome, err := domain.ProcessPayment(b, in.Payment)
	if err != nil {
		// Precondition and transition errors on a fresh booking are caller
		// defects. Surface loudly, put the seat back, and hand the error up.
		s.logger.WithError(err).
			WithField("booking_id", b.ID).
			WithField("flight", b.FlightNumber).
			WithField("seat_id", b.SeatID).
			Error("payment processing rejected booking")
		s.releaseSeat(ctx, inv, b)
		return nil, err
	}

	if outcome.Status == domain.BookingStatusFailed {
		return s.rollBack(ctx, inv, b, in.Payment, outcome)
	}

	payment := domain.NewPayment(s.ids.NextPaymentID(), b, in.Payment, time.Now())
	if s.store != nil {
		if err := s.store.UpdateBookingStatus(ctx, b.ID, domain.BookingStatusPaid); err != nil {
			s.logger.WithError(err).WithField("booking_id", b.ID).Warn("failed to persist PAID status")
		}
		if err := s.store.SavePayment(ctx, payment); err != nil {
			s.logger.WithError(err).WithField("payment_id", payment.ID).Warn("failed to persist payment")
		}
	}
	s.publish(ctx, "booking.paid", b)
	observability.BookingsTotal.WithLabelValues(string(domain.BookingStatusPaid)).Inc()
	return b, nil
}

// rollBack is the compensating path: the seat must go back to the inventory
// even if intermediate steps error, so each step logs and continues.
func (s *Service) rollBack(ctx context.Context, inv *domain.FlightInventory, b *domain.Booking, req domain.PaymentRequest, outcome domain.PaymentOutcome) (*domain.Booking, error) {
	s.releaseSeat(ctx, inv, b)

	if err := b.SetStatus(domain.BookingStatusCancelled); err != nil {
		s.logger.WithError(err).WithField("booking_id", b.ID).Error("failed to cancel booking after payment failure")
	}
	if s.store != nil {
		if err := s.store.UpdateBookingStatus(ctx, b.ID, b.Status()); err != nil {
			s.logger.WithError(err).WithField("booking_id", b.ID).Warn("failed to persist cancelled status")
		}
	}
	s.publish(ctx, "booking.cancelled", b)
	observability.BookingsTotal.WithLabelValues(string(domain.BookingStatusCancelled)).Inc()
	observability.PaymentFailuresTotal.WithLabelValues(string(req.Method)).Inc()

	return b, errors.Wrap(domain.ErrPaymentValidation, outcome.Reason)
}

func (s *Service) releaseSeat(ctx context.Context, inv *domain.FlightInventory, b *domain.Booking) {
	if err := inv.Release(b.SeatID); err != nil {
		s.logger.WithError(err).
			WithField("flight", b.FlightNumber).
			WithField("seat_id", b.SeatID).
			Error("compensating seat release failed")
	}
	if s.store != nil {
		if err := s.store.DeleteSeat(ctx, b.FlightNumber, b.SeatID); err != nil {
			s.logger.WithError(err).WithField("seat_id", b.SeatID).Warn("failed to remove persisted seat hold")
		}
	}
}

func (s *Service) remember(b *domain.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = b
}

// GetBooking returns a booking from the in-memory ledger. Bookings are
// never deleted, only marked CANCELLED.
func (s *Service) GetBooking(id int64) (*domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, errors.Wrapf(domain.ErrBookingNotFound, "booking %d", id)
	}
	return b, nil
}

type bookingEvent struct {
	BookingID    int64                `json:"booking_id"`
	FlightNumber string               `json:"flight_number"`
	SeatID       string               `json:"seat_id"`
	Status       domain.BookingStatus `json:"status"`
	Price        float64              `json:"price"`
}

func (s *Service) publish(ctx context.Context, eventType string, b *domain.Booking) {
	if s.pub == nil {
		return
	}
	payload, _ := json.Marshal(bookingEvent{
		BookingID:    b.ID,
		FlightNumber: b.FlightNumber,
		SeatID:       b.SeatID,
		Status:       b.Status(),
		Price:        b.Price,
	})
	msg := amqp.Publishing{
		MessageId:   uuid.New().String(),
		ContentType: "application/json",
		Body:        payload,
	}
	if err := s.pub.Publish(ctx, eventType, msg); err != nil {
		s.logger.WithError(err).WithField("event", eventType).Warn("failed to publish booking event")
	}
}
