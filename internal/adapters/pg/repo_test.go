package pg_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/altavia/airbook/internal/adapters/pg"
	"github.com/altavia/airbook/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newTestRepository(t *testing.T) *pg.Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "postgres:16-alpine",
			Env: map[string]string{
				"POSTGRES_USER":     "airbook",
				"POSTGRES_PASSWORD": "airbook",
				"POSTGRES_DB":       "airbook",
			},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}

	dsn := "postgres://airbook:airbook@" + host + ":" + port.Port() + "/airbook?sslmode=disable"
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	repo := pg.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}
	return repo
}

func testBooking(id int64) *domain.Booking {
	passenger := domain.PassengerRef{Name: "J. Wanjiku", Email: "jw@example.com", Phone: "+254700000000"}
	return domain.NewBooking(id, passenger, "KQ100", "3C", 450.00)
}

func TestRepository(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	t.Run("save and get booking", func(t *testing.T) {
		b := testBooking(1)
		if err := repo.SaveBooking(ctx, b); err != nil {
			t.Fatal(err)
		}

		rec, err := repo.GetBooking(ctx, 1)
		if err != nil {
			t.Fatal(err)
		}
		if rec.FlightNumber != "KQ100" || rec.SeatID != "3C" {
			t.Errorf("got record %+v", rec)
		}
		if rec.Status != domain.BookingStatusPendingPayment {
			t.Errorf("status = %s, want PENDING_PAYMENT", rec.Status)
		}
		if rec.Price != 450.00 {
			t.Errorf("price = %.2f, want 450.00", rec.Price)
		}

		if _, err := repo.GetBooking(ctx, 404); !errors.Is(err, domain.ErrBookingNotFound) {
			t.Errorf("expected ErrBookingNotFound, got %v", err)
		}
	})

	t.Run("status update", func(t *testing.T) {
		b := testBooking(2)
		if err := repo.SaveBooking(ctx, b); err != nil {
			t.Fatal(err)
		}

		if err := repo.UpdateBookingStatus(ctx, 2, domain.BookingStatusPaid); err != nil {
			t.Fatal(err)
		}
		rec, err := repo.GetBooking(ctx, 2)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Status != domain.BookingStatusPaid {
			t.Errorf("status = %s, want PAID", rec.Status)
		}

		// The service publishes status events itself; a second copy through
		// the outbox would reach the exchange twice.
		records, err := repo.GetUnpublishedOutbox(ctx, 50)
		if err != nil {
			t.Fatal(err)
		}
		for _, rec := range records {
			if rec.AggregateID == 2 {
				t.Errorf("unexpected outbox record %s for booking 2", rec.EventType)
			}
		}
	})

	t.Run("status update on missing booking", func(t *testing.T) {
		err := repo.UpdateBookingStatus(ctx, 404, domain.BookingStatusPaid)
		if !errors.Is(err, domain.ErrBookingNotFound) {
			t.Errorf("expected ErrBookingNotFound, got %v", err)
		}
	})

	t.Run("seat mirror", func(t *testing.T) {
		if err := repo.SaveSeat(ctx, "KQ200", "1A"); err != nil {
			t.Fatal(err)
		}
		// A repeated hold for the same seat is a no-op, not an error.
		if err := repo.SaveSeat(ctx, "KQ200", "1A"); err != nil {
			t.Fatal(err)
		}
		if err := repo.SaveSeat(ctx, "KQ200", "2B"); err != nil {
			t.Fatal(err)
		}

		seats, err := repo.ListSeats(ctx, "KQ200")
		if err != nil {
			t.Fatal(err)
		}
		if len(seats) != 2 {
			t.Fatalf("got %d seats, want 2: %v", len(seats), seats)
		}

		if err := repo.DeleteSeat(ctx, "KQ200", "1A"); err != nil {
			t.Fatal(err)
		}
		seats, err = repo.ListSeats(ctx, "KQ200")
		if err != nil {
			t.Fatal(err)
		}
		if len(seats) != 1 || seats[0] != "2B" {
			t.Errorf("got seats %v, want [2B]", seats)
		}

		booked, err := repo.LoadBookedSeats(ctx, []string{"KQ200", "KQ404"})
		if err != nil {
			t.Fatal(err)
		}
		if len(booked["KQ200"]) != 1 {
			t.Errorf("got %v for KQ200", booked["KQ200"])
		}
		if len(booked["KQ404"]) != 0 {
			t.Errorf("got %v for unknown flight", booked["KQ404"])
		}
	})

	t.Run("save payment", func(t *testing.T) {
		p := domain.Payment{
			ID:         1,
			BookingID:  1,
			Amount:     450.00,
			Method:     domain.PaymentMethodCard,
			PaidAt:     time.Now(),
			CardLast4:  "****3456",
			Expiry:     "12/26",
			CVVPresent: true,
		}
		if err := repo.SavePayment(ctx, p); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("expire stale pending booking", func(t *testing.T) {
		b := testBooking(3)
		if err := repo.SaveBooking(ctx, b); err != nil {
			t.Fatal(err)
		}
		if err := repo.SaveSeat(ctx, b.FlightNumber, b.SeatID); err != nil {
			t.Fatal(err)
		}

		stale, err := repo.ListStalePending(ctx, time.Now().Add(time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		var rec *pg.BookingRecord
		for i := range stale {
			if stale[i].ID == 3 {
				rec = &stale[i]
			}
		}
		if rec == nil {
			t.Fatal("booking 3 should be listed as stale pending")
		}

		if err := repo.ExpireBooking(ctx, *rec); err != nil {
			t.Fatal(err)
		}
		got, err := repo.GetBooking(ctx, 3)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != domain.BookingStatusCancelled {
			t.Errorf("status = %s, want CANCELLED", got.Status)
		}

		// Expiring twice must fail: the guard only matches PENDING_PAYMENT.
		if err := repo.ExpireBooking(ctx, *rec); !errors.Is(err, domain.ErrBookingNotFound) {
			t.Errorf("expected ErrBookingNotFound on second expire, got %v", err)
		}

		records, err := repo.GetUnpublishedOutbox(ctx, 50)
		if err != nil {
			t.Fatal(err)
		}
		var expired *pg.OutboxRecord
		for i := range records {
			if records[i].AggregateID == 3 && records[i].EventType == "booking.expired" {
				expired = &records[i]
			}
		}
		if expired == nil {
			t.Fatal("no booking.expired outbox record")
		}

		if err := repo.MarkPublished(ctx, expired.ID, time.Now()); err != nil {
			t.Fatal(err)
		}
		records, err = repo.GetUnpublishedOutbox(ctx, 50)
		if err != nil {
			t.Fatal(err)
		}
		for _, rec := range records {
			if rec.ID == expired.ID {
				t.Error("published record still returned as unpublished")
			}
		}
	})
}
