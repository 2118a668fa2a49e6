package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/whalewatch/internal/core/domain"
)

// CacheStore implements storage.CacheStore on Redis. Keys carry a native
// expiry of TTL plus the configured stale grace so stale entries stay
// readable for a while before Redis drops them.
type CacheStore struct {
	client *Client
	grace  time.Duration
}

// NewCacheStore creates a Redis backed cache store.
func NewCacheStore(client *Client, staleGrace time.Duration) *CacheStore {
	return &CacheStore{client: client, grace: staleGrace}
}

type cacheEnvelope struct {
	Payload   []byte    `json:"payload"`
	FetchedAt time.Time `json:"fetched_at"`
	TTLMillis int64     `json:"ttl_ms"`
}

func (s *CacheStore) Get(ctx context.Context, fingerprint string) (*domain.CacheEntry, error) {
	raw, err := s.client.rdb.Get(ctx, s.client.cacheKey(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	return decodeEntry(fingerprint, raw)
}

func (s *CacheStore) Put(ctx context.Context, e *domain.CacheEntry) error {
	data, err := json.Marshal(cacheEnvelope{
		Payload:   e.Payload,
		FetchedAt: e.FetchedAt,
		TTLMillis: e.TTL.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := s.client.rdb.Set(ctx, s.client.cacheKey(e.Fingerprint), data, e.TTL+s.grace).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// PurgeExpired removes entries that are stale at now but still inside their
// grace period.
func (s *CacheStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	if s.grace <= 0 {
		return 0, nil
	}
	purged := 0
	iter := s.client.rdb.Scan(ctx, 0, s.client.cachePattern(), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return purged, fmt.Errorf("get failed: %w", err)
		}
		entry, err := decodeEntry(key, raw)
		if err != nil || !entry.FreshAt(now) {
			if err := s.client.rdb.Del(ctx, key).Err(); err != nil {
				return purged, fmt.Errorf("del failed: %w", err)
			}
			purged++
		}
	}
	if err := iter.Err(); err != nil {
		return purged, fmt.Errorf("scan failed: %w", err)
	}
	return purged, nil
}

func decodeEntry(fingerprint string, raw []byte) (*domain.CacheEntry, error) {
	var env cacheEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &domain.CacheEntry{
		Fingerprint: fingerprint,
		Payload:     env.Payload,
		FetchedAt:   env.FetchedAt,
		TTL:         time.Duration(env.TTLMillis) * time.Millisecond,
	}, nil
}
