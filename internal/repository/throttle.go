package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DetectionThrottle suppresses bursts of repeated submissions from the
// same device inside the configured duplicate window. It is advisory: the
// database constraint remains the uniqueness guarantee, so a lost or
// unreachable Redis only costs extra trips to storage, never correctness.
type DetectionThrottle interface {
	// Seen reports whether the pair was marked within the window.
	Seen(ctx context.Context, sessionID, memberID int64) (bool, error)
	// Mark flags the pair for the window after a durable outcome.
	Mark(ctx context.Context, sessionID, memberID int64) error
}

type redisThrottle struct {
	client *redis.Client
	window time.Duration
}

func NewDetectionThrottle(client *redis.Client, window time.Duration) DetectionThrottle {
	return &redisThrottle{client: client, window: window}
}

func throttleKey(sessionID, memberID int64) string {
	return fmt.Sprintf("dup:%d:%d", sessionID, memberID)
}

func (t *redisThrottle) Seen(ctx context.Context, sessionID, memberID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	n, err := t.client.Exists(ctx, throttleKey(sessionID, memberID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *redisThrottle) Mark(ctx context.Context, sessionID, memberID int64) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	return t.client.Set(ctx, throttleKey(sessionID, memberID), "1", t.window).Err()
}

var _ DetectionThrottle = (*redisThrottle)(nil)
