// Package pg is the store adapter: it mirrors bookings, payments and held
// seats into Postgres so workers and restarts can see them. The in-memory
// inventory stays authoritative for seat allocation.
package pg

import (
	"context"
	"sync"
	"time"

	"github.com/altavia/airbook/internal/domain"
	"github.com/altavia/airbook/internal/observability"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const serializationFailureCode = "40001"

var ErrSerializationFailure = errors.New("serialization failure")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == serializationFailureCode {
			return ErrSerializationFailure
		}
		return err
	}

	return tx.Commit(ctx)
}

// BookingRecord is the flat row shape for a persisted booking.
type BookingRecord struct {
	ID             int64
	PassengerName  string
	PassengerEmail string
	PassengerPhone string
	FlightNumber   string
	SeatID         string
	Price          float64
	Status         domain.BookingStatus
	BookedAt       time.Time
}

func (r *Repository) SaveBooking(ctx context.Context, b *domain.Booking) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bookings (id, passenger_name, passenger_email, passenger_phone, flight_number, seat_id, price, status, booked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, b.ID, b.Passenger.Name, b.Passenger.Email, b.Passenger.Phone, b.FlightNumber, b.SeatID, b.Price, b.Status(), b.BookedAt)
	return err
}

// UpdateBookingStatus writes the new status. The caller owns the matching
// event: the booking service publishes directly, the expiry worker goes
// through ExpireBooking's outbox row. Writing an outbox record here as well
// would emit every status event twice.
func (r *Repository) UpdateBookingStatus(ctx context.Context, id int64, status domain.BookingStatus) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE bookings SET status = $2 WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrBookingNotFound, "booking %d", id)
	}
	return nil
}

func (r *Repository) SavePayment(ctx context.Context, p domain.Payment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payments (id, booking_id, amount, method, card_last4, expiry, cvv_present, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.BookingID, p.Amount, p.Method, p.CardLast4, p.Expiry, p.CVVPresent, p.PaidAt)
	return err
}

func (r *Repository) SaveSeat(ctx context.Context, flightNumber, seatID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO flight_seats (flight_number, seat_id)
		VALUES ($1, $2)
		ON CONFLICT (flight_number, seat_id) DO NOTHING
	`, flightNumber, seatID)
	return err
}

func (r *Repository) DeleteSeat(ctx context.Context, flightNumber, seatID string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM flight_seats WHERE flight_number = $1 AND seat_id = $2
	`, flightNumber, seatID)
	return err
}

func (r *Repository) ListSeats(ctx context.Context, flightNumber string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT seat_id FROM flight_seats WHERE flight_number = $1
	`, flightNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []string
	for rows.Next() {
		var seat string
		if err := rows.Scan(&seat); err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}
	return seats, rows.Err()
}

// LoadBookedSeats fetches the seat mirror for several flights at once, one
// query per flight fanned out over the pool.
func (r *Repository) LoadBookedSeats(ctx context.Context, flightNumbers []string) (map[string][]string, error) {
	var mu sync.Mutex
	out := make(map[string][]string, len(flightNumbers))

	g, gctx := errgroup.WithContext(ctx)
	for _, number := range flightNumbers {
		number := number
		g.Go(func() error {
			seats, err := r.ListSeats(gctx, number)
			if err != nil {
				return err
			}
			mu.Lock()
			out[number] = seats
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) GetBooking(ctx context.Context, id int64) (*BookingRecord, error) {
	var rec BookingRecord
	err := r.pool.QueryRow(ctx, `
		SELECT id, passenger_name, passenger_email, passenger_phone, flight_number, seat_id, price, status, booked_at
		FROM bookings WHERE id = $1
	`, id).Scan(&rec.ID, &rec.PassengerName, &rec.PassengerEmail, &rec.PassengerPhone,
		&rec.FlightNumber, &rec.SeatID, &rec.Price, &rec.Status, &rec.BookedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.Wrapf(domain.ErrBookingNotFound, "booking %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListStalePending returns PENDING_PAYMENT bookings created before the
// cutoff. The expiry worker fails and cancels them.
func (r *Repository) ListStalePending(ctx context.Context, before time.Time) ([]BookingRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, passenger_name, passenger_email, passenger_phone, flight_number, seat_id, price, status, booked_at
		FROM bookings WHERE status = $1 AND booked_at <= $2
	`, domain.BookingStatusPendingPayment, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []BookingRecord
	for rows.Next() {
		var rec BookingRecord
		if err := rows.Scan(&rec.ID, &rec.PassengerName, &rec.PassengerEmail, &rec.PassengerPhone,
			&rec.FlightNumber, &rec.SeatID, &rec.Price, &rec.Status, &rec.BookedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ExpireBooking cancels a stale pending booking, frees its seat mirror and
// queues a booking.expired event, all in one transaction.
func (r *Repository) ExpireBooking(ctx context.Context, rec BookingRecord) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE bookings SET status = $2 WHERE id = $1 AND status = $3
		`, rec.ID, domain.BookingStatusCancelled, domain.BookingStatusPendingPayment)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return errors.Wrapf(domain.ErrBookingNotFound, "pending booking %d", rec.ID)
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM flight_seats WHERE flight_number = $1 AND seat_id = $2
		`, rec.FlightNumber, rec.SeatID); err != nil {
			return err
		}
		return r.insertOutbox(ctx, tx, OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "booking",
			AggregateID:   rec.ID,
			EventType:     "booking.expired",
			Payload:       statusPayload(rec.ID, domain.BookingStatusCancelled),
			DedupeKey:     uuid.New().String(),
		})
	})
}
