// Package mongo holds the admin-maintained flight reference data and the
// audit trail. Neither participates in seat allocation.
package mongo

import (
	"context"
	"time"

	"github.com/altavia/airbook/internal/domain"
	"github.com/altavia/airbook/internal/observability"
	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CatalogRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		coll:   db.Collection("flights"),
		logger: logger,
	}
}

// FlightDoc is the reference record an admin maintains for one flight.
type FlightDoc struct {
	FlightNumber     string    `bson:"_id"`
	Airline          string    `bson:"airline"`
	DepartureAirport string    `bson:"departure_airport"`
	ArrivalAirport   string    `bson:"arrival_airport"`
	Price            float64   `bson:"price"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func (c *CatalogRepository) GetFlight(ctx context.Context, flightNumber string) (*FlightDoc, error) {
	var doc FlightDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": flightNumber}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, errors.Wrapf(domain.ErrFlightNotFound, "flight %s", flightNumber)
	}
	if err != nil {
		c.logger.WithError(err).Error("failed to get flight")
		return nil, err
	}
	return &doc, nil
}

func (c *CatalogRepository) UpsertFlight(ctx context.Context, doc FlightDoc) error {
	now := time.Now()
	_, err := c.coll.UpdateOne(
		ctx,
		bson.M{"_id": doc.FlightNumber},
		bson.M{
			"$set": bson.M{
				"airline":           doc.Airline,
				"departure_airport": doc.DepartureAirport,
				"arrival_airport":   doc.ArrivalAirport,
				"price":             doc.Price,
				"updated_at":        now,
			},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		c.logger.WithError(err).Error("failed to upsert flight")
	}
	return err
}

func (c *CatalogRepository) ListFlights(ctx context.Context) ([]FlightDoc, error) {
	cursor, err := c.coll.Find(ctx, bson.M{})
	if err != nil {
		c.logger.WithError(err).Error("failed to list flights")
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []FlightDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *CatalogRepository) DeleteFlight(ctx context.Context, flightNumber string) error {
	_, err := c.coll.DeleteOne(ctx, bson.M{"_id": flightNumber})
	return err
}
