package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PGDSN        string
	MongoURI     string
	RedisAddr    string
	RabbitURL    string
	OTLPEndpoint string
	ListenAddr   string

	// Cabin geometry, fixed for the process lifetime.
	SeatRows    int
	SeatLetters string

	// How long a PENDING_PAYMENT booking may sit before the expiry worker
	// fails it and returns the seat.
	PendingTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	pendingTTL, _ := time.ParseDuration(os.Getenv("PENDING_TTL"))
	if pendingTTL == 0 {
		pendingTTL = 15 * time.Minute
	}

	seatRows := 30
	if v := os.Getenv("SEAT_ROWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			seatRows = n
		}
	}

	listen := os.Getenv("LISTEN_ADDR")
	if listen == "" {
		listen = ":8080"
	}

	seatLetters := os.Getenv("SEAT_LETTERS")
	if seatLetters == "" {
		seatLetters = "ABC DEF"
	}

	return &Config{
		PGDSN:        os.Getenv("PG_DSN"),
		MongoURI:     os.Getenv("MONGO_URI"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RabbitURL:    os.Getenv("RABBIT_URL"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ListenAddr:   listen,
		SeatRows:     seatRows,
		SeatLetters:  seatLetters,
		PendingTTL:   pendingTTL,
	}, nil
}
