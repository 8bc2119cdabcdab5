package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenCounter hands out token numbers for a (doctor, date) pair with a
// single atomic INCR, so concurrent bookings can never observe the same
// value. Callers seed the counter from the authoritative store before the
// first INCR of a day (see EnsureFloor) so a flushed Redis cannot re-issue
// tokens that already exist in Postgres.
type TokenCounter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTokenCounter(client *redis.Client, ttl time.Duration) *TokenCounter {
	return &TokenCounter{
		client: client,
		ttl:    ttl,
	}
}

func counterKey(doctorID uuid.UUID, date string) string {
	return fmt.Sprintf("token:%s:%s", doctorID.String(), date)
}

// EnsureFloor sets the counter to floor if the key does not exist yet.
// Must be called under the booking lock for the same (doctor, date).
func (c *TokenCounter) EnsureFloor(ctx context.Context, doctorID uuid.UUID, date string, floor int64) error {
	key := counterKey(doctorID, date)

	ok, err := c.client.SetNX(ctx, key, floor, c.ttl).Result()
	if err != nil {
		return fmt.Errorf("seed token counter %s: %w", key, err)
	}
	if ok {
		return nil
	}

	// Key already live, just keep it from expiring mid-day.
	if err := c.client.Expire(ctx, key, c.ttl).Err(); err != nil {
		return fmt.Errorf("refresh token counter ttl %s: %w", key, err)
	}
	return nil
}

// Next returns the next token number for the pair.
func (c *TokenCounter) Next(ctx context.Context, doctorID uuid.UUID, date string) (int64, error) {
	key := counterKey(doctorID, date)

	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment token counter %s: %w", key, err)
	}
	return n, nil
}
