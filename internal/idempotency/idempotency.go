// Package idempotency replays stored responses for repeated booking
// requests, so a retried POST cannot take a second seat.
package idempotency

import (
	"context"

	redisadapter "github.com/altavia/airbook/internal/adapters/redis"
)

// Idempotency is a nil-safe front over the Redis replay store: with no
// store wired (or an empty key) every lookup misses and every save is a
// no-op, which degrades to plain non-idempotent handling.
type Idempotency struct {
	store *redisadapter.ReplayStore
}

func NewIdempotency(store *redisadapter.ReplayStore) *Idempotency {
	return &Idempotency{store: store}
}

type Response struct {
	Status int
	Result []byte
}

func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	if i == nil || i.store == nil || key == "" {
		return nil, nil
	}
	stored, err := i.store.Lookup(ctx, key)
	if err != nil || stored == nil {
		return nil, err
	}
	return &Response{Status: stored.Status, Result: stored.Body}, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	if i == nil || i.store == nil || key == "" {
		return nil
	}
	return i.store.Remember(ctx, key, redisadapter.StoredResponse{Status: resp.Status, Body: resp.Result})
}
