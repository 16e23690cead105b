package domain

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// FlightInventory owns the booked-seat set for one flight. All mutations go
// through Reserve and Release under the inventory's lock, so two concurrent
// reservations of the same seat cannot both succeed.
type FlightInventory struct {
	flightNumber string
	departure    string
	arrival      string
	price        float64
	seats        *SeatMap

	mu     sync.RWMutex
	booked map[string]struct{}
}

func NewFlightInventory(flightNumber, departure, arrival string, price float64, seats *SeatMap) (*FlightInventory, error) {
	if flightNumber == "" {
		return nil, errors.New("inventory: flight number is required")
	}
	if price <= 0 {
		return nil, errors.Newf("inventory: price must be positive, got %.2f", price)
	}
	if seats == nil {
		return nil, errors.New("inventory: seat map is required")
	}
	return &FlightInventory{
		flightNumber: flightNumber,
		departure:    departure,
		arrival:      arrival,
		price:        price,
		seats:        seats,
		booked:       make(map[string]struct{}),
	}, nil
}

func (f *FlightInventory) FlightNumber() string { return f.flightNumber }
func (f *FlightInventory) Departure() string    { return f.departure }
func (f *FlightInventory) Arrival() string      { return f.arrival }
func (f *FlightInventory) Price() float64       { return f.price }
func (f *FlightInventory) SeatMap() *SeatMap    { return f.seats }

// Reserve adds seatID to the booked set. It is the single enforcement point
// for the one-booking-per-seat invariant.
func (f *FlightInventory) Reserve(seatID string) error {
	if !f.seats.IsValid(seatID) {
		return errors.Wrapf(ErrInvalidSeat, "seat %q on flight %s", seatID, f.flightNumber)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, held := f.booked[seatID]; held {
		return errors.Wrapf(ErrSeatAlreadyBooked, "seat %s on flight %s", seatID, f.flightNumber)
	}
	f.booked[seatID] = struct{}{}
	return nil
}

// Release removes seatID from the booked set. Used as the compensating
// action when payment fails after a successful reserve.
func (f *FlightInventory) Release(seatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, held := f.booked[seatID]; !held {
		return errors.Wrapf(ErrSeatNotBooked, "seat %s on flight %s", seatID, f.flightNumber)
	}
	delete(f.booked, seatID)
	return nil
}

func (f *FlightInventory) IsBooked(seatID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, held := f.booked[seatID]
	return held
}

// AvailableSeats returns every valid seat id not currently booked, in the
// seat map's canonical order.
func (f *FlightInventory) AvailableSeats() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var available []string
	for _, id := range f.seats.AllSeatIDs() {
		if _, held := f.booked[id]; !held {
			available = append(available, id)
		}
	}
	return available
}

// BookedSeats returns a snapshot of the booked set, unordered.
func (f *FlightInventory) BookedSeats() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	seats := make([]string, 0, len(f.booked))
	for id := range f.booked {
		seats = append(seats, id)
	}
	return seats
}
