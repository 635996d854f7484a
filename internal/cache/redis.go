package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores entries in a shared Redis instance so multiple replicas see
// the same cache. TTL enforcement is delegated to Redis key expiry.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedis(client *redis.Client, ttl time.Duration, prefix string) *Redis {
	if prefix == "" {
		prefix = "ledgergate:cache:"
	}
	return &Redis{client: client, ttl: ttl, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) (Entry, time.Duration, bool, error) {
	payload, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, 0, false, nil
	}
	if err != nil {
		return Entry{}, 0, false, fmt.Errorf("cache get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		// Treat undecodable payloads as a miss and drop them.
		_ = r.client.Del(ctx, r.prefix+key).Err()
		return Entry{}, 0, false, nil
	}
	return entry, time.Since(entry.StoredAt), true, nil
}

func (r *Redis) Put(ctx context.Context, key string, entry Entry) error {
	if entry.StoredAt.IsZero() {
		entry.StoredAt = time.Now()
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (r *Redis) Flush(ctx context.Context, tenantID string) (int, error) {
	pattern := r.prefix + tenantID + ":*"
	iter := r.client.Scan(ctx, 0, pattern, 256).Iterator()
	flushed := 0
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return flushed, fmt.Errorf("cache flush: %w", err)
		}
		flushed++
	}
	if err := iter.Err(); err != nil {
		return flushed, fmt.Errorf("cache flush: %w", err)
	}
	return flushed, nil
}
