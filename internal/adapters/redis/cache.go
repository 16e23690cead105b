package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

// SetAvailableSeats caches the availability snapshot for one flight. The
// snapshot may be slightly stale; Reserve remains the only gate.
func (c *Cache) SetAvailableSeats(ctx context.Context, flightNumber string, seats []string, ttl time.Duration) error {
	data, err := json.Marshal(seats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "seats:"+flightNumber, data, ttl).Err()
}

// GetAvailableSeats returns the cached snapshot, or (nil, nil) on a miss.
func (c *Cache) GetAvailableSeats(ctx context.Context, flightNumber string) ([]string, error) {
	val, err := c.client.Get(ctx, "seats:"+flightNumber).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var seats []string
	if err := json.Unmarshal(val, &seats); err != nil {
		return nil, err
	}
	return seats, nil
}

func (c *Cache) InvalidateAvailableSeats(ctx context.Context, flightNumber string) error {
	return c.client.Del(ctx, "seats:"+flightNumber).Err()
}
