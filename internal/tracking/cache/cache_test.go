package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/storage/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (*domain.CacheEntry, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) Put(context.Context, *domain.CacheEntry) error {
	return errors.New("connection refused")
}

func (brokenStore) PurgeExpired(context.Context, time.Time) (int, error) {
	return 0, errors.New("connection refused")
}

func newTestCache() (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.NewCacheStore(memory.NewMemoryStorage())
	return New(store, WithClock(clock.Now)), clock
}

func TestFingerprint(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	a := Fingerprint(domain.ChainEthereum, "0xabc", from, to)
	assert.Len(t, a, 64)
	assert.Equal(t, a, Fingerprint(domain.ChainEthereum, "0xabc", from, to))
	assert.NotEqual(t, a, Fingerprint(domain.ChainHyperliquid, "0xabc", from, to))
	assert.NotEqual(t, a, Fingerprint(domain.ChainEthereum, "0xabc", from, to.Add(time.Second)))
	assert.NotEqual(t, a, Fingerprint(domain.ChainEthereum, "0xabc", from, to, "history"))
}

func TestCache_FreshnessBoundary(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache()

	require.NoError(t, c.Put(ctx, "fp", []byte("payload"), 5*time.Minute))

	payload, found, fresh := c.Get(ctx, "fp")
	assert.True(t, found)
	assert.True(t, fresh)
	assert.Equal(t, []byte("payload"), payload)

	clock.Advance(5*time.Minute - time.Nanosecond)
	_, _, fresh = c.Get(ctx, "fp")
	assert.True(t, fresh)

	// Exactly at FetchedAt+TTL the entry is stale.
	clock.Advance(time.Nanosecond)
	_, found, fresh = c.Get(ctx, "fp")
	assert.True(t, found)
	assert.False(t, fresh)
}

func TestCache_Miss(t *testing.T) {
	c, _ := newTestCache()
	payload, found, fresh := c.Get(context.Background(), "missing")
	assert.Nil(t, payload)
	assert.False(t, found)
	assert.False(t, fresh)
}

func TestCache_PutRejectsNonPositiveTTL(t *testing.T) {
	c, _ := newTestCache()
	assert.Error(t, c.Put(context.Background(), "fp", nil, 0))
}

func TestCache_StoreFailureIsAMiss(t *testing.T) {
	c := New(brokenStore{})
	_, found, fresh := c.Get(context.Background(), "fp")
	assert.False(t, found)
	assert.False(t, fresh)

	calls := 0
	payload, err := c.GetOrFetch(context.Background(), "fp", time.Minute, func(context.Context) ([]byte, error) {
		calls++
		return []byte("live"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("live"), payload)
	assert.Equal(t, 1, calls)
	assert.Zero(t, c.Sweep(context.Background()))
}

func TestCache_GetOrFetchUsesFreshEntry(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache()
	calls := 0
	fetch := func(context.Context) ([]byte, error) {
		calls++
		return []byte{byte(calls)}, nil
	}

	first, err := c.GetOrFetch(ctx, "fp", time.Minute, fetch)
	require.NoError(t, err)
	second, err := c.GetOrFetch(ctx, "fp", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	clock.Advance(time.Minute)
	third, err := c.GetOrFetch(ctx, "fp", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, third)
	assert.Equal(t, 2, calls)
}

func TestCache_GetOrFetchPropagatesErrorAndStoresNothing(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()
	boom := errors.New("upstream down")

	_, err := c.GetOrFetch(ctx, "fp", time.Minute, func(context.Context) ([]byte, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, found, _ := c.Get(ctx, "fp")
	assert.False(t, found)
}

func TestCache_ConcurrentMissesFetchOnce(t *testing.T) {
	c, _ := newTestCache()
	var calls atomic.Int32
	release := make(chan struct{})

	fetch := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("shared"), nil
	}

	const callers = 20
	var wg sync.WaitGroup
	var started sync.WaitGroup
	results := make([][]byte, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			out, err := c.GetOrFetch(context.Background(), "fp", time.Minute, fetch)
			assert.NoError(t, err)
			results[i] = out
		}(i)
	}
	started.Wait()
	// Give every caller time to join the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, []byte("shared"), r)
	}
}

func TestCache_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	c, _ := newTestCache()
	entered := make(chan struct{})
	release := make(chan struct{})
	var fetchErr atomic.Value

	fetch := func(ctx context.Context) ([]byte, error) {
		close(entered)
		<-release
		if err := ctx.Err(); err != nil {
			fetchErr.Store(err)
			return nil, err
		}
		return []byte("shared"), nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := c.GetOrFetch(firstCtx, "fp", time.Minute, fetch)
		firstDone <- err
	}()
	<-entered

	secondDone := make(chan []byte, 1)
	go func() {
		out, err := c.GetOrFetch(context.Background(), "fp", time.Minute, fetch)
		assert.NoError(t, err)
		secondDone <- out
	}()
	// Give the second caller time to join the in-flight fetch.
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstDone, context.Canceled)

	close(release)
	assert.Equal(t, []byte("shared"), <-secondDone)
	assert.Nil(t, fetchErr.Load())

	payload, found, fresh := c.Get(context.Background(), "fp")
	assert.True(t, found)
	assert.True(t, fresh)
	assert.Equal(t, []byte("shared"), payload)
}

func TestCache_Sweep(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache()
	require.NoError(t, c.Put(ctx, "short", []byte("a"), time.Minute))
	require.NoError(t, c.Put(ctx, "long", []byte("b"), time.Hour))

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, c.Sweep(ctx))

	_, found, _ := c.Get(ctx, "short")
	assert.False(t, found)
	_, found, fresh := c.Get(ctx, "long")
	assert.True(t, found)
	assert.True(t, fresh)
}
