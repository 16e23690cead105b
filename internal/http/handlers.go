package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	mongoadapter "github.com/altavia/airbook/internal/adapters/mongo"
	redisadapter "github.com/altavia/airbook/internal/adapters/redis"
	"github.com/altavia/airbook/internal/booking"
	"github.com/altavia/airbook/internal/catalog"
	"github.com/altavia/airbook/internal/config"
	"github.com/altavia/airbook/internal/domain"
	"github.com/altavia/airbook/internal/idempotency"
	"github.com/altavia/airbook/internal/observability"
	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
)

const seatsCacheTTL = 5 * time.Second

type Handlers struct {
	cfg          *config.Config
	svc          *booking.Service
	registry     *catalog.Registry
	seatMap      *domain.SeatMap
	cache        *redisadapter.Cache
	idemp        *idempotency.Idempotency
	mongoCatalog *mongoadapter.CatalogRepository
	audit        *mongoadapter.AuditLogger
	logger       observability.Logger
}

func NewHandlers(cfg *config.Config, svc *booking.Service, registry *catalog.Registry, seatMap *domain.SeatMap,
	cache *redisadapter.Cache, idemp *idempotency.Idempotency,
	mongoCatalog *mongoadapter.CatalogRepository, audit *mongoadapter.AuditLogger,
	logger observability.Logger) *Handlers {
	return &Handlers{
		cfg:          cfg,
		svc:          svc,
		registry:     registry,
		seatMap:      seatMap,
		cache:        cache,
		idemp:        idemp,
		mongoCatalog: mongoCatalog,
		audit:        audit,
		logger:       logger,
	}
}

type bookingResponse struct {
	BookingID    int64   `json:"booking_id"`
	FlightNumber string  `json:"flight_number"`
	SeatID       string  `json:"seat_id"`
	Price        float64 `json:"price"`
	Status       string  `json:"status"`
	BookedAt     string  `json:"booked_at"`
	Reason       string  `json:"reason,omitempty"`
}

func toBookingResponse(b *domain.Booking, reason string) bookingResponse {
	return bookingResponse{
		BookingID:    b.ID,
		FlightNumber: b.FlightNumber,
		SeatID:       b.SeatID,
		Price:        b.Price,
		Status:       string(b.Status()),
		BookedAt:     b.BookedAt.Format(time.RFC3339),
		Reason:       reason,
	}
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req struct {
		FlightNumber string `json:"flight_number"`
		SeatID       string `json:"seat_id"`
		Passenger    struct {
			Name  string `json:"name"`
			Email string `json:"email"`
			Phone string `json:"phone"`
		} `json:"passenger"`
		Payment struct {
			Method string  `json:"method"`
			Amount float64 `json:"amount"`
			Card   *struct {
				Number string `json:"number"`
				Expiry string `json:"expiry"`
				CVV    string `json:"cvv"`
			} `json:"card"`
		} `json:"payment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	in := booking.BookAndPayInput{
		FlightNumber: req.FlightNumber,
		SeatID:       req.SeatID,
		Passenger: domain.PassengerRef{
			Name:  req.Passenger.Name,
			Email: req.Passenger.Email,
			Phone: req.Passenger.Phone,
		},
		Payment: domain.PaymentRequest{
			Method: domain.PaymentMethod(req.Payment.Method),
			Amount: req.Payment.Amount,
		},
	}
	if req.Payment.Card != nil {
		in.Payment.Card = &domain.CardDetails{
			Number: req.Payment.Card.Number,
			Expiry: req.Payment.Card.Expiry,
			CVV:    req.Payment.Card.CVV,
		}
	}

	b, err := h.svc.BookAndPay(r.Context(), in)
	switch {
	case errors.Is(err, domain.ErrFlightNotFound):
		http.Error(w, "flight not found", http.StatusNotFound)
		return
	case errors.Is(err, domain.ErrInvalidSeat):
		http.Error(w, "invalid seat", http.StatusBadRequest)
		return
	case errors.Is(err, domain.ErrSeatAlreadyBooked):
		http.Error(w, "seat already booked", http.StatusConflict)
		return
	case errors.Is(err, domain.ErrPaymentValidation):
		// The booking exists with its FAILED -> CANCELLED history; the seat
		// is back in the pool.
		h.invalidateSeats(r, req.FlightNumber)
		h.writeBooking(w, r, key, http.StatusPaymentRequired, toBookingResponse(b, err.Error()))
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.invalidateSeats(r, req.FlightNumber)
	if h.audit != nil {
		if err := h.audit.LogBooking(r.Context(), b); err != nil {
			h.logger.WithError(err).Warn("failed to audit booking")
		}
	}
	h.writeBooking(w, r, key, http.StatusCreated, toBookingResponse(b, ""))
}

func (h *Handlers) writeBooking(w http.ResponseWriter, r *http.Request, idempKey string, status int, resp bookingResponse) {
	data, _ := json.Marshal(resp)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)

	if err := h.idemp.Set(r.Context(), idempKey, idempotency.Response{Status: status, Result: data}); err != nil {
		h.logger.WithError(err).Warn("failed to store idempotent response")
	}
}

func (h *Handlers) invalidateSeats(r *http.Request, flightNumber string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.InvalidateAvailableSeats(r.Context(), flightNumber); err != nil {
		h.logger.WithError(err).Warn("failed to invalidate seat cache")
	}
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	b, err := h.svc.GetBooking(id)
	if err != nil {
		if errors.Is(err, domain.ErrBookingNotFound) {
			http.Error(w, "booking not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toBookingResponse(b, ""))
}

func (h *Handlers) ListAvailableSeats(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	if h.cache != nil {
		if seats, err := h.cache.GetAvailableSeats(r.Context(), number); err == nil && seats != nil {
			writeSeats(w, number, seats)
			return
		}
	}

	inv, err := h.registry.GetFlightInventory(r.Context(), number)
	if err != nil {
		http.Error(w, "flight not found", http.StatusNotFound)
		return
	}
	seats := inv.AvailableSeats()

	if h.cache != nil {
		if err := h.cache.SetAvailableSeats(r.Context(), number, seats, seatsCacheTTL); err != nil {
			h.logger.WithError(err).Warn("failed to cache seat availability")
		}
	}
	writeSeats(w, number, seats)
}

func writeSeats(w http.ResponseWriter, number string, seats []string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"flight_number":   number,
		"available_seats": seats,
	})
}

func (h *Handlers) RegisterFlight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FlightNumber string  `json:"flight_number"`
		Airline      string  `json:"airline"`
		Departure    string  `json:"departure"`
		Arrival      string  `json:"arrival"`
		Price        float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	inv, err := domain.NewFlightInventory(req.FlightNumber, req.Departure, req.Arrival, req.Price, h.seatMap)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.registry.Register(inv); err != nil {
		if errors.Is(err, domain.ErrFlightAlreadyExists) {
			http.Error(w, "flight already exists", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if h.mongoCatalog != nil {
		doc := mongoadapter.FlightDoc{
			FlightNumber:     req.FlightNumber,
			Airline:          req.Airline,
			DepartureAirport: req.Departure,
			ArrivalAirport:   req.Arrival,
			Price:            req.Price,
		}
		if err := h.mongoCatalog.UpsertFlight(r.Context(), doc); err != nil {
			h.logger.WithError(err).Warn("failed to store flight reference data")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"flight_number": req.FlightNumber,
		"price":         req.Price,
		"seat_count":    len(h.seatMap.AllSeatIDs()),
	})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
