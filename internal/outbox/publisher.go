package outbox

import (
	"context"
	"time"

	"github.com/altavia/airbook/internal/adapters/pg"
	"github.com/altavia/airbook/internal/adapters/rabbit"
	"github.com/altavia/airbook/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher struct {
	repo      *pg.Repository
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
}

func NewPublisher(repo *pg.Repository, rabbitPub *rabbit.Publisher, logger observability.Logger) *Publisher {
	return &Publisher{repo: repo, rabbitPub: rabbitPub, logger: logger}
}

// Run drains NEW outbox records to RabbitMQ until ctx is cancelled. Failed
// publishes stay NEW and are retried on the next tick.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	records, err := p.repo.GetUnpublishedOutbox(ctx, 10)
	if err != nil {
		p.logger.WithError(err).Error("failed to fetch outbox records")
		return
	}
	for _, rec := range records {
		observability.OutboxLag.Set(time.Since(rec.CreatedAt).Seconds())
		msg := amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Body:        rec.Payload,
		}
		if err := p.rabbitPub.Publish(ctx, rec.EventType, msg); err != nil {
			p.logger.WithError(err).WithField("event_type", rec.EventType).Warn("failed to publish outbox record")
			continue
		}
		if err := p.repo.MarkPublished(ctx, rec.ID, time.Now()); err != nil {
			p.logger.WithError(err).Error("failed to mark outbox record published")
		}
	}
}
