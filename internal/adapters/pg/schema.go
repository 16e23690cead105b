package pg

import "context"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS bookings (
		id BIGINT PRIMARY KEY,
		passenger_name TEXT NOT NULL,
		passenger_email TEXT NOT NULL,
		passenger_phone TEXT NOT NULL,
		flight_number TEXT NOT NULL,
		seat_id TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL,
		booked_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS bookings_status_booked_at_idx ON bookings (status, booked_at)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id BIGINT PRIMARY KEY,
		booking_id BIGINT NOT NULL REFERENCES bookings (id),
		amount DOUBLE PRECISION NOT NULL,
		method TEXT NOT NULL,
		card_last4 TEXT NOT NULL DEFAULT '',
		expiry TEXT NOT NULL DEFAULT '',
		cvv_present BOOLEAN NOT NULL DEFAULT FALSE,
		paid_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS flight_seats (
		flight_number TEXT NOT NULL,
		seat_id TEXT NOT NULL,
		PRIMARY KEY (flight_number, seat_id)
	)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id BIGINT NOT NULL,
		event_type TEXT NOT NULL,
		payload_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ,
		status TEXT NOT NULL DEFAULT 'NEW',
		dedupe_key TEXT NOT NULL UNIQUE
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_status_created_at_idx ON outbox (status, created_at)`,
}

// EnsureSchema creates the tables this adapter writes to. Safe to run on
// every boot.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
