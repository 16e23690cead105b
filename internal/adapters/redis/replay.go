package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const replayKeyPrefix = "replay:"

// ReplayStore keeps the serialized HTTP response for each Idempotency-Key,
// so a retried booking POST gets its original answer back instead of taking
// a second seat. Entries outlive any sane client retry window and then
// expire.
type ReplayStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewReplayStore(client *redis.Client, ttl time.Duration) *ReplayStore {
	return &ReplayStore{client: client, ttl: ttl}
}

// StoredResponse is the replayable part of a response: the status code and
// the exact body bytes that were sent.
type StoredResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// Lookup returns the stored response for key, or (nil, nil) when the key
// was never seen or has expired.
func (s *ReplayStore) Lookup(ctx context.Context, key string) (*StoredResponse, error) {
	val, err := s.client.Get(ctx, replayKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var resp StoredResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *ReplayStore) Remember(ctx context.Context, key string, resp StoredResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, replayKeyPrefix+key, data, s.ttl).Err()
}
