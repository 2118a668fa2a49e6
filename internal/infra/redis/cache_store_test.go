package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/whalewatch/internal/core/domain"
)

func setupClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("WHALEWATCH_TEST_REDIS_URL")
	if url == "" {
		t.Skip("WHALEWATCH_TEST_REDIS_URL not set")
	}
	c, err := NewClient(context.Background(), Config{URL: url, KeyPrefix: "test-" + uuid.NewString()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCacheStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewCacheStore(setupClient(t), time.Hour)
	now := time.Now().UTC().Truncate(time.Millisecond)

	e, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, e)

	require.NoError(t, store.Put(ctx, &domain.CacheEntry{Fingerprint: "fp", Payload: []byte(`[1]`), FetchedAt: now, TTL: time.Minute}))
	e, err = store.Get(ctx, "fp")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, []byte(`[1]`), e.Payload)
	assert.Equal(t, time.Minute, e.TTL)
	assert.True(t, now.Equal(e.FetchedAt))
}

func TestCacheStore_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	store := NewCacheStore(setupClient(t), time.Hour)
	now := time.Now().UTC()

	require.NoError(t, store.Put(ctx, &domain.CacheEntry{Fingerprint: "old", FetchedAt: now.Add(-10 * time.Minute), TTL: time.Minute}))
	require.NoError(t, store.Put(ctx, &domain.CacheEntry{Fingerprint: "new", FetchedAt: now, TTL: time.Minute}))

	n, err := store.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	e, err := store.Get(ctx, "new")
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestDecodeEntry_Malformed(t *testing.T) {
	_, err := decodeEntry("fp", []byte("{"))
	assert.Error(t, err)
}
