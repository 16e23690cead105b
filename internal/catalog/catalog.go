// Package catalog is the flight registry: the admin-facing collaborator
// that creates inventories and serves lookups to the booking service.
package catalog

import (
	"context"
	"sync"

	"github.com/altavia/airbook/internal/domain"
	"github.com/cockroachdb/errors"
)

type Registry struct {
	mu      sync.RWMutex
	flights map[string]*domain.FlightInventory
}

func NewRegistry() *Registry {
	return &Registry{flights: make(map[string]*domain.FlightInventory)}
}

// Register adds a flight's inventory. Flight numbers are unique keys.
func (r *Registry) Register(inv *domain.FlightInventory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flights[inv.FlightNumber()]; ok {
		return errors.Wrapf(domain.ErrFlightAlreadyExists, "flight %s", inv.FlightNumber())
	}
	r.flights[inv.FlightNumber()] = inv
	return nil
}

func (r *Registry) GetFlightInventory(ctx context.Context, flightNumber string) (*domain.FlightInventory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.flights[flightNumber]
	if !ok {
		return nil, errors.Wrapf(domain.ErrFlightNotFound, "flight %s", flightNumber)
	}
	return inv, nil
}

// Withdraw removes a flight from sale. Existing bookings are untouched.
func (r *Registry) Withdraw(flightNumber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flights[flightNumber]; !ok {
		return errors.Wrapf(domain.ErrFlightNotFound, "flight %s", flightNumber)
	}
	delete(r.flights, flightNumber)
	return nil
}

// FlightNumbers returns the registered flight numbers, unordered.
func (r *Registry) FlightNumbers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	numbers := make([]string, 0, len(r.flights))
	for n := range r.flights {
		numbers = append(numbers, n)
	}
	return numbers
}
