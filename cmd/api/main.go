package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mongoadapter "github.com/altavia/airbook/internal/adapters/mongo"
	"github.com/altavia/airbook/internal/adapters/pg"
	"github.com/altavia/airbook/internal/adapters/rabbit"
	redisadapter "github.com/altavia/airbook/internal/adapters/redis"
	"github.com/altavia/airbook/internal/booking"
	"github.com/altavia/airbook/internal/catalog"
	"github.com/altavia/airbook/internal/config"
	"github.com/altavia/airbook/internal/domain"
	httphandler "github.com/altavia/airbook/internal/http"
	"github.com/altavia/airbook/internal/idempotency"
	"github.com/altavia/airbook/internal/observability"
	"github.com/altavia/airbook/internal/rateLimit"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
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

	seatMap, err := domain.NewSeatMap(cfg.SeatRows, cfg.SeatLetters)
	if err != nil {
		log.Fatalf("invalid seat geometry: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.PGDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := pg.NewRepository(pool)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("airbook")
	mongoCatalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	replay := redisadapter.NewReplayStore(redisClient, time.Hour)
	idemp := idempotency.NewIdempotency(replay)
	rl := rateLimit.NewRateLimiter(redisCache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	registry := catalog.NewRegistry()
	if err := restoreCatalog(context.Background(), registry, mongoCatalog, repo, seatMap, logger); err != nil {
		log.Fatalf("failed to restore catalog: %v", err)
	}

	svc := booking.NewService(registry, repo, rabbitPub, &booking.SequentialIDs{}, logger)

	handlers := httphandler.NewHandlers(cfg, svc, registry, seatMap, redisCache, idemp, mongoCatalog, audit, logger)
	r := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	logger.WithField("addr", cfg.ListenAddr).Info("airbook api started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}

// restoreCatalog rebuilds the in-memory inventories from the flight
// reference data and the persisted seat mirror.
func restoreCatalog(ctx context.Context, registry *catalog.Registry, flights *mongoadapter.CatalogRepository,
	repo *pg.Repository, seatMap *domain.SeatMap, logger observability.Logger) error {
	docs, err := flights.ListFlights(ctx)
	if err != nil {
		return err
	}

	numbers := make([]string, 0, len(docs))
	for _, doc := range docs {
		inv, err := domain.NewFlightInventory(doc.FlightNumber, doc.DepartureAirport, doc.ArrivalAirport, doc.Price, seatMap)
		if err != nil {
			logger.WithError(err).WithField("flight", doc.FlightNumber).Warn("skipping flight with bad reference data")
			continue
		}
		if err := registry.Register(inv); err != nil {
			return err
		}
		numbers = append(numbers, doc.FlightNumber)
	}

	booked, err := repo.LoadBookedSeats(ctx, numbers)
	if err != nil {
		return err
	}
	for number, seats := range booked {
		inv, err := registry.GetFlightInventory(ctx, number)
		if err != nil {
			continue
		}
		for _, seat := range seats {
			if err := inv.Reserve(seat); err != nil {
				logger.WithError(err).
					WithField("flight", number).
					WithField("seat_id", seat).
					Warn("could not restore persisted seat")
			}
		}
	}
	return nil
}
