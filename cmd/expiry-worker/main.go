package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/altavia/airbook/internal/adapters/pg"
	"github.com/altavia/airbook/internal/config"
	"github.com/altavia/airbook/internal/observability"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PGDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := pg.NewRepository(pool)

	worker := NewExpiryWorker(repo, cfg.PendingTTL, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, time.Minute)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown expiry worker")
}

// ExpiryWorker cancels PENDING_PAYMENT bookings that outlived the pending
// TTL and frees their seats in the store. The booking.expired event goes
// out through the outbox, so delivery survives a crash here.
type ExpiryWorker struct {
	repo       *pg.Repository
	pendingTTL time.Duration
	logger     observability.Logger
}

func NewExpiryWorker(repo *pg.Repository, pendingTTL time.Duration, logger observability.Logger) *ExpiryWorker {
	return &ExpiryWorker{repo: repo, pendingTTL: pendingTTL, logger: logger}
}

func (w *ExpiryWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			records, err := w.repo.ListStalePending(ctx, now.Add(-w.pendingTTL))
			if err != nil {
				w.logger.WithError(err).Error("failed to list stale bookings")
				continue
			}
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(4)
			for _, rec := range records {
				rec := rec
				g.Go(func() error {
					return w.expireWithRetry(gctx, rec)
				})
			}
			if err := g.Wait(); err != nil {
				w.logger.WithError(err).Error("failed to expire stale bookings")
			}
		}
	}
}

func (w *ExpiryWorker) expireWithRetry(ctx context.Context, rec pg.BookingRecord) error {
	const maxRetries = 3
	for i := 0; i < maxRetries; i++ {
		err := w.repo.ExpireBooking(ctx, rec)
		if err == nil {
			w.logger.WithField("booking_id", rec.ID).WithField("seat_id", rec.SeatID).Info("expired stale booking")
			return nil
		}
		backoff := time.Duration(1<<i) * time.Second
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return errors.Newf("booking %d: not expired after %d retries", rec.ID, maxRetries)
}
