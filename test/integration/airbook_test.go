package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/altavia/airbook/internal/adapters/pg"
	redisadapter "github.com/altavia/airbook/internal/adapters/redis"
	"github.com/altavia/airbook/internal/booking"
	"github.com/altavia/airbook/internal/catalog"
	"github.com/altavia/airbook/internal/config"
	"github.com/altavia/airbook/internal/domain"
	httphandler "github.com/altavia/airbook/internal/http"
	"github.com/altavia/airbook/internal/idempotency"
	"github.com/altavia/airbook/internal/observability"
	"github.com/altavia/airbook/internal/rateLimit"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Exercises the booking flow over HTTP with a real Postgres behind the
// store and a real Redis behind the replay store, seat cache and rate
// limiter. Mongo and RabbitMQ are left out: the adapters tolerate their
// absence and the flow under test does not depend on them.
func TestIntegration_BookAndPay(t *testing.T) {
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
	defer pgContainer.Terminate(ctx)

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer redisContainer.Terminate(ctx)

	pgHost, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}
	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		PGDSN:       "postgres://airbook:airbook@" + pgHost + ":" + pgPort.Port() + "/airbook?sslmode=disable",
		RedisAddr:   redisHost + ":" + redisPort.Port(),
		SeatRows:    14,
		SeatLetters: "ABC DEF",
		PendingTTL:  15 * time.Minute,
	}

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	repo := pg.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}

	logger := observability.NewLogger()
	seatMap, err := domain.NewSeatMap(cfg.SeatRows, cfg.SeatLetters)
	if err != nil {
		t.Fatal(err)
	}
	registry := catalog.NewRegistry()
	svc := booking.NewService(registry, repo, nil, &booking.SequentialIDs{}, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	replay := redisadapter.NewReplayStore(redisClient, time.Hour)
	idemp := idempotency.NewIdempotency(replay)
	rl := rateLimit.NewRateLimiter(redisCache)

	handlers := httphandler.NewHandlers(cfg, svc, registry, seatMap, redisCache, idemp, nil, nil, logger)
	router := httphandler.SetupRouter(handlers, logger, rl)

	srv := httptest.NewServer(router)
	defer srv.Close()

	postWithKey := func(path, key string, body interface{}) *http.Response {
		t.Helper()
		data, _ := json.Marshal(body)
		req, _ := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", key)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}
	post := func(path string, body interface{}) *http.Response {
		t.Helper()
		return postWithKey(path, uuid.New().String(), body)
	}

	// Register the flight.
	resp := post("/v1/flights", map[string]interface{}{
		"flight_number": "KQ100",
		"airline":       "Kenya Airways",
		"departure":     "NBO",
		"arrival":       "MBA",
		"price":         450.00,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register flight: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	bookingReq := map[string]interface{}{
		"flight_number": "KQ100",
		"seat_id":       "3C",
		"passenger": map[string]string{
			"name":  "J. Wanjiku",
			"email": "jw@example.com",
			"phone": "+254700000000",
		},
		"payment": map[string]interface{}{
			"method": "CARD",
			"amount": 450.00,
			"card": map[string]string{
				"number": "1234567890123456",
				"expiry": "12/26",
				"cvv":    "123",
			},
		},
	}

	// Book and pay.
	resp = post("/v1/bookings", bookingReq)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create booking: status %d", resp.StatusCode)
	}
	var created struct {
		BookingID int64  `json:"booking_id"`
		Status    string `json:"status"`
		SeatID    string `json:"seat_id"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if created.Status != "PAID" {
		t.Errorf("booking status = %s, want PAID", created.Status)
	}

	// The booking and payment must be in the store.
	rec, err := repo.GetBooking(ctx, created.BookingID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != domain.BookingStatusPaid {
		t.Errorf("stored status = %s, want PAID", rec.Status)
	}

	// Same seat again conflicts.
	resp = post("/v1/bookings", bookingReq)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate seat: status %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()

	// A failed card payment returns the cancelled booking and frees the seat.
	badReq := map[string]interface{}{
		"flight_number": "KQ100",
		"seat_id":       "7A",
		"passenger": map[string]string{
			"name":  "J. Wanjiku",
			"email": "jw@example.com",
			"phone": "+254700000000",
		},
		"payment": map[string]interface{}{
			"method": "CARD",
			"amount": 450.00,
			"card": map[string]string{
				"number": "123",
				"expiry": "12/26",
				"cvv":    "123",
			},
		},
	}
	resp = post("/v1/bookings", badReq)
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("bad card: status %d, want 402", resp.StatusCode)
	}
	var failedResp struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	json.NewDecoder(resp.Body).Decode(&failedResp)
	resp.Body.Close()
	if failedResp.Status != "CANCELLED" {
		t.Errorf("failed booking status = %s, want CANCELLED", failedResp.Status)
	}
	if failedResp.Reason == "" {
		t.Error("expected a failure reason")
	}

	// Seat 7A is back in the pool, 3C is not.
	resp, err = http.Get(srv.URL + "/v1/flights/KQ100/seats")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list seats: status %d", resp.StatusCode)
	}
	var seatsResp struct {
		AvailableSeats []string `json:"available_seats"`
	}
	json.NewDecoder(resp.Body).Decode(&seatsResp)
	resp.Body.Close()
	available := make(map[string]bool)
	for _, s := range seatsResp.AvailableSeats {
		available[s] = true
	}
	if !available["7A"] {
		t.Error("seat 7A should be available again after payment failure")
	}
	if available["3C"] {
		t.Error("seat 3C should not be available after a paid booking")
	}

	// A retried POST with the same Idempotency-Key replays the stored
	// response; without the replay the second attempt would 409 on the seat.
	replayReq := map[string]interface{}{
		"flight_number": "KQ100",
		"seat_id":       "5D",
		"passenger": map[string]string{
			"name":  "J. Wanjiku",
			"email": "jw@example.com",
			"phone": "+254700000000",
		},
		"payment": map[string]interface{}{
			"method": "CASH",
			"amount": 450.00,
		},
	}
	replayKey := uuid.New().String()
	resp = postWithKey("/v1/bookings", replayKey, replayReq)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("replayed booking, first attempt: status %d", resp.StatusCode)
	}
	var first struct {
		BookingID int64 `json:"booking_id"`
	}
	json.NewDecoder(resp.Body).Decode(&first)
	resp.Body.Close()

	resp = postWithKey("/v1/bookings", replayKey, replayReq)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("replayed booking, retry: status %d, want 201", resp.StatusCode)
	}
	var second struct {
		BookingID int64 `json:"booking_id"`
	}
	json.NewDecoder(resp.Body).Decode(&second)
	resp.Body.Close()
	if second.BookingID != first.BookingID {
		t.Errorf("retry created booking %d, want replay of %d", second.BookingID, first.BookingID)
	}

	// Booking lookup.
	resp, err = http.Get(srv.URL + "/v1/bookings/1")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get booking: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// POSTs without a usable Idempotency-Key are rejected outright.
	data, _ := json.Marshal(bookingReq)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/bookings", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing idempotency key: status %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}
