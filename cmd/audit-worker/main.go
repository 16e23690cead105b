package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	mongoadapter "github.com/altavia/airbook/internal/adapters/mongo"
	"github.com/altavia/airbook/internal/adapters/rabbit"
	"github.com/altavia/airbook/internal/config"
	"github.com/altavia/airbook/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// The audit worker tails booking events off the exchange and writes them to
// the Mongo audit trail, keeping the hot path free of audit I/O.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.NewLogger()

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	audit := mongoadapter.NewAuditLogger(mongoClient.Database("airbook"), logger)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, "audit.q", "booking.*")
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}

	go func() {
		for d := range deliveries {
			var data map[string]interface{}
			if err := json.Unmarshal(d.Body, &data); err != nil {
				logger.WithError(err).Warn("dropping malformed booking event")
				d.Nack(false, false)
				continue
			}
			if err := audit.LogEvent(ctx, d.RoutingKey, data); err != nil {
				d.Nack(false, true)
				continue
			}
			d.Ack(false)
		}
	}()
	logger.Info("Audit worker started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown audit worker")
}
