package postgres

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/storage"
)

func setupDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("WHALEWATCH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("WHALEWATCH_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := NewDB(ctx, Config{URL: url, MaxConns: 5})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	_, err = db.ExecContext(ctx, `TRUNCATE wallets, alerts, scores, api_cache RESTART IDENTITY`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestWalletRepo(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewWalletRepo(db)
	addr := "0x28c6c06298d514db089934071355e5743bf21d60"

	w := &domain.Wallet{Address: addr, Chain: domain.ChainEthereum, Label: "binance", Tags: []string{"exchange"}, AgeDays: domain.AgeUnknown}
	require.NoError(t, repo.Add(ctx, w))
	assert.NotZero(t, w.ID)
	assert.Equal(t, []string{"exchange"}, w.Tags)

	assert.ErrorIs(t, repo.Add(ctx, &domain.Wallet{Address: addr, Chain: domain.ChainEthereum}), storage.ErrWalletExists)

	tagged, err := repo.List(ctx, storage.WalletFilter{Tags: []string{"exchange", "fund"}})
	require.NoError(t, err)
	assert.Len(t, tagged, 1)

	now := time.Now().UTC().Truncate(time.Second)
	first := now.AddDate(0, 0, -10)
	require.NoError(t, repo.UpdateAge(ctx, domain.ChainEthereum, addr, &first, 10, now))
	got, err := repo.Get(ctx, domain.ChainEthereum, addr)
	require.NoError(t, err)
	assert.Equal(t, 10, got.AgeDays)
	require.NotNil(t, got.FirstSeen)
	assert.True(t, first.Equal(*got.FirstSeen))

	require.NoError(t, repo.Deactivate(ctx, domain.ChainEthereum, addr))
	assert.ErrorIs(t, repo.Deactivate(ctx, domain.ChainEthereum, addr), storage.ErrWalletNotFound)

	again := &domain.Wallet{Address: addr, Chain: domain.ChainEthereum, Label: "binance 14"}
	require.NoError(t, repo.Add(ctx, again))
	assert.Equal(t, w.ID, again.ID)
	assert.Equal(t, "binance 14", again.Label)
}

func TestAlertRepo_InsertIfAbsent(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewAlertRepo(db)
	now := time.Now().UTC().Truncate(time.Second)

	var inserted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.InsertIfAbsent(ctx, &domain.Alert{
				ID: uuid.NewString(), Address: "0xabc", Chain: domain.ChainEthereum,
				TriggeredAt: now, Score: 85, Severity: domain.SeverityWarning,
				Direction: domain.DirectionDistributing, WindowSeconds: 3600, Bucket: 7,
				SubScores: domain.SubScores{NetFlow: 40, Velocity: 20, Correlation: 10, ExchangeFlow: 15},
			})
			assert.NoError(t, err)
			if ok {
				inserted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), inserted.Load())

	out, err := repo.List(ctx, storage.AlertFilter{Limit: 5})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 40, out[0].SubScores.NetFlow)

	require.NoError(t, repo.MarkNotified(ctx, out[0].ID, true))
	out, err = repo.List(ctx, storage.AlertFilter{Chain: domain.ChainEthereum})
	require.NoError(t, err)
	assert.True(t, out[0].WebhookSent)
}

func TestScoreRepo_SaveAndHistory(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewScoreRepo(db)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Save(ctx, &domain.ScoreSnapshot{
		Address: "0xabc", Chain: domain.ChainEthereum, ComputedAt: now,
		WindowSeconds: 3600, Total: 55, NetFlow: 30, Direction: domain.DirectionAccumulating,
	}))
	require.NoError(t, repo.Save(ctx, &domain.ScoreSnapshot{
		Address: "0xabc", Chain: domain.ChainEthereum, ComputedAt: now.Add(-48 * time.Hour),
		WindowSeconds: 3600, Total: 20, Direction: domain.DirectionNeutral,
	}))

	out, err := repo.History(ctx, storage.ScoreFilter{Chain: domain.ChainEthereum, Address: "0xabc", Limit: 10})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 55, out[0].Total)

	out, err = repo.History(ctx, storage.ScoreFilter{Since: now.Add(-24 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 55, out[0].Total)
}

func TestCacheStore(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	c := NewCacheStore(db)
	now := time.Now().UTC().Truncate(time.Millisecond)

	e, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, e)

	require.NoError(t, c.Put(ctx, &domain.CacheEntry{Fingerprint: "old", Payload: []byte("a"), FetchedAt: now.Add(-time.Hour), TTL: time.Minute}))
	require.NoError(t, c.Put(ctx, &domain.CacheEntry{Fingerprint: "new", Payload: []byte("b"), FetchedAt: now, TTL: time.Hour}))

	e, err = c.Get(ctx, "new")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, []byte("b"), e.Payload)
	assert.Equal(t, time.Hour, e.TTL)

	n, err := c.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
