package mongo

import (
	"context"
	"strings"
	"time"

	"github.com/altavia/airbook/internal/domain"
	"github.com/altavia/airbook/internal/observability"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action string, data map[string]interface{}) error {
	entry := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, entry)
	if err != nil {
		a.logger.WithError(err).Error("failed to insert audit log")
		return err
	}
	return nil
}

func (a *AuditLogger) LogBooking(ctx context.Context, b *domain.Booking) error {
	data := map[string]interface{}{
		"booking_id":    b.ID,
		"flight_number": b.FlightNumber,
		"seat_id":       b.SeatID,
		"status":        b.Status(),
		"price":         b.Price,
		"passenger":     b.Passenger.Email,
	}
	return a.LogEvent(ctx, bookingAction(b.Status()), data)
}

// bookingAction matches the broker's routing-key scheme (booking.paid,
// booking.cancelled), so audit entries written directly and those consumed
// off the exchange share one naming.
func bookingAction(status domain.BookingStatus) string {
	return "booking." + strings.ToLower(string(status))
}

// LogPayment records the processed payment; only the masked card form ever
// reaches the audit trail.
func (a *AuditLogger) LogPayment(ctx context.Context, p domain.Payment) error {
	data := map[string]interface{}{
		"payment_id": p.ID,
		"booking_id": p.BookingID,
		"amount":     p.Amount,
		"method":     p.Method,
		"card_last4": p.CardLast4,
	}
	return a.LogEvent(ctx, "payment.processed", data)
}
