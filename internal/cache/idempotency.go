// Package cache holds the Redis-backed stores that sit beside Postgres.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// reservationTTL bounds how long a crashed request can hold its key. It
// outlasts the HTTP write timeout.
const reservationTTL = 2 * time.Minute

// IdempotencyEntry is a stored response for one (user, key) pair. An entry
// with InFlight set is a reservation held by a request still running.
type IdempotencyEntry struct {
	Key          string    `json:"key"`
	UserID       uuid.UUID `json:"user_id"`
	RequestHash  string    `json:"request_hash"`
	InFlight     bool      `json:"in_flight,omitempty"`
	StatusCode   int       `json:"status_code,omitempty"`
	ResponseBody []byte    `json:"response_body,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

func idempotencyKey(userID uuid.UUID, key string) string {
	return "idempotency:" + userID.String() + ":" + key
}

// Get returns nil when nothing is stored for the key.
func (s *IdempotencyStore) Get(ctx context.Context, key string, userID uuid.UUID) (*IdempotencyEntry, error) {
	b, err := s.client.Get(ctx, idempotencyKey(userID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	var e IdempotencyEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("Get: decode: %w", err)
	}
	return &e, nil
}

// Reserve claims the key for one request with an in-flight placeholder. It
// returns nil when the caller now owns the key, and the stored entry when
// another request got there first.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string, userID uuid.UUID, reqHash string) (*IdempotencyEntry, error) {
	placeholder := IdempotencyEntry{
		Key:         key,
		UserID:      userID,
		RequestHash: reqHash,
		InFlight:    true,
		CreatedAt:   time.Now().UTC(),
	}
	b, err := json.Marshal(placeholder)
	if err != nil {
		return nil, fmt.Errorf("Reserve: %w", err)
	}

	ok, err := s.client.SetNX(ctx, idempotencyKey(userID, key), b, reservationTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("Reserve: %w", err)
	}
	if ok {
		return nil, nil
	}

	existing, err := s.Get(ctx, key, userID)
	if err != nil {
		return nil, fmt.Errorf("Reserve: %w", err)
	}
	if existing == nil {
		// Released between SETNX and GET; the other request is still deciding.
		return &placeholder, nil
	}
	return existing, nil
}

// Complete replaces the reservation with the final response for the full TTL.
func (s *IdempotencyStore) Complete(ctx context.Context, e *IdempotencyEntry) error {
	e.InFlight = false
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("Complete: %w", err)
	}
	if err := s.client.Set(ctx, idempotencyKey(e.UserID, e.Key), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("Complete: %w", err)
	}
	return nil
}

// Release drops a reservation so the key can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, key string, userID uuid.UUID) error {
	if err := s.client.Del(ctx, idempotencyKey(userID, key)).Err(); err != nil {
		return fmt.Errorf("Release: %w", err)
	}
	return nil
}
