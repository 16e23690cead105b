package domain

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

type BookingStatus string

const (
	BookingStatusPendingPayment BookingStatus = "PENDING_PAYMENT"
	BookingStatusPaid           BookingStatus = "PAID"
	BookingStatusFailed         BookingStatus = "FAILED"
	BookingStatusCancelled      BookingStatus = "CANCELLED"
)

// PassengerRef identifies a passenger to the caller. The core does not
// validate these fields; format checks belong to the presentation layer.
type PassengerRef struct {
	Name  string
	Email string
	Phone string
}

// Booking links a passenger to one seat on one flight. Everything except
// the status is fixed at construction; the price is copied from the flight
// so later price changes cannot affect an existing booking.
type Booking struct {
	ID           int64
	Passenger    PassengerRef
	FlightNumber string
	SeatID       string
	Price        float64
	BookedAt     time.Time

	mu     sync.RWMutex
	status BookingStatus
}

func NewBooking(id int64, passenger PassengerRef, flightNumber, seatID string, price float64) *Booking {
	return &Booking{
		ID:           id,
		Passenger:    passenger,
		FlightNumber: flightNumber,
		SeatID:       seatID,
		Price:        price,
		BookedAt:     time.Now(),
		status:       BookingStatusPendingPayment,
	}
}

// transitions is the full set of legal status moves. CANCELLED is terminal.
var transitions = map[BookingStatus]map[BookingStatus]bool{
	BookingStatusPendingPayment: {
		BookingStatusPaid:   true,
		BookingStatusFailed: true,
	},
	BookingStatusPaid: {
		BookingStatusCancelled: true,
	},
	BookingStatusFailed: {
		BookingStatusCancelled: true,
	},
}

func (b *Booking) Status() BookingStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// SetStatus moves the booking to next if the transition table allows it,
// otherwise returns ErrIllegalTransition and leaves the status unchanged.
func (b *Booking) SetStatus(next BookingStatus) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !transitions[b.status][next] {
		return errors.Wrapf(ErrIllegalTransition, "booking %d: %s -> %s", b.ID, b.status, next)
	}
	b.status = next
	return nil
}
