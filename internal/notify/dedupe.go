package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Deduper decides whether a deadline warning for a stage may be sent now.
type Deduper interface {
	// Claim reports true when no warning was sent for the stage within the cooldown.
	Claim(ctx context.Context, appID uuid.UUID, stage int, now time.Time) (bool, error)
}

// StoreDeduper looks up the newest warning in the notification store. It is
// suitable for a single sweeping process.
type StoreDeduper struct {
	store    Store
	cooldown time.Duration
}

// NewStoreDeduper creates a StoreDeduper.
func NewStoreDeduper(store Store, cooldown time.Duration) *StoreDeduper {
	return &StoreDeduper{store: store, cooldown: cooldown}
}

// Claim implements Deduper.
func (d *StoreDeduper) Claim(ctx context.Context, appID uuid.UUID, stage int, now time.Time) (bool, error) {
	last, err := d.store.LastDeadlineWarning(ctx, appID, stage)
	if err != nil {
		return false, fmt.Errorf("failed to look up last warning: %w", err)
	}
	return last == nil || !last.After(now.Add(-d.cooldown)), nil
}

// RedisDeduper claims a stage with SET NX and a TTL equal to the cooldown, so
// several sweepers can run against the same data without duplicate warnings.
type RedisDeduper struct {
	client   *redis.Client
	cooldown time.Duration
	prefix   string
}

// NewRedisDeduper creates a RedisDeduper. It returns nil when client is nil.
func NewRedisDeduper(client *redis.Client, cooldown time.Duration) *RedisDeduper {
	if client == nil {
		return nil
	}
	return &RedisDeduper{client: client, cooldown: cooldown, prefix: "deadline_warning"}
}

// Claim implements Deduper.
func (d *RedisDeduper) Claim(ctx context.Context, appID uuid.UUID, stage int, _ time.Time) (bool, error) {
	key := fmt.Sprintf("%s:%s:%d", d.prefix, appID, stage)
	ok, err := d.client.SetNX(ctx, key, 1, d.cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", key, err)
	}
	return ok, nil
}

// Release drops a claim so a failed send can be retried on the next sweep.
func (d *RedisDeduper) Release(ctx context.Context, appID uuid.UUID, stage int) error {
	key := fmt.Sprintf("%s:%s:%d", d.prefix, appID, stage)
	return d.client.Del(ctx, key).Err()
}
