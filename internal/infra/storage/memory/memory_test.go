package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/storage"
)

const addr = "0x28c6c06298d514db089934071355e5743bf21d60"

func TestWalletRepo_AddDeactivateReactivate(t *testing.T) {
	ctx := context.Background()
	repo := NewWalletRepo(NewMemoryStorage())

	w := &domain.Wallet{Address: addr, Chain: domain.ChainEthereum, Label: "binance", AgeDays: domain.AgeUnknown}
	require.NoError(t, repo.Add(ctx, w))
	assert.NotZero(t, w.ID)

	err := repo.Add(ctx, &domain.Wallet{Address: addr, Chain: domain.ChainEthereum})
	assert.ErrorIs(t, err, storage.ErrWalletExists)
	assert.Equal(t, apperr.KindExists, apperr.KindOf(err))

	// Same address on a different chain is a different wallet.
	require.NoError(t, repo.Add(ctx, &domain.Wallet{Address: addr, Chain: domain.ChainHyperliquid}))

	require.NoError(t, repo.Deactivate(ctx, domain.ChainEthereum, addr))
	_, err = repo.Get(ctx, domain.ChainEthereum, addr)
	assert.ErrorIs(t, err, storage.ErrWalletNotFound)

	active, err := repo.List(ctx, storage.WalletFilter{})
	require.NoError(t, err)
	assert.Len(t, active, 1)

	all, err := repo.List(ctx, storage.WalletFilter{IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	again := &domain.Wallet{Address: addr, Chain: domain.ChainEthereum, Label: "binance 14"}
	require.NoError(t, repo.Add(ctx, again))
	assert.Equal(t, w.ID, again.ID)
	assert.True(t, again.Active)
	assert.Equal(t, "binance 14", again.Label)
}

func TestWalletRepo_ListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewWalletRepo(NewMemoryStorage())
	require.NoError(t, repo.Add(ctx, &domain.Wallet{Address: "a", Chain: domain.ChainEthereum, Tags: []string{"exchange"}}))
	require.NoError(t, repo.Add(ctx, &domain.Wallet{Address: "b", Chain: domain.ChainBitcoin, Tags: []string{"fund"}}))
	require.NoError(t, repo.Add(ctx, &domain.Wallet{Address: "c", Chain: domain.ChainEthereum}))

	eth, err := repo.List(ctx, storage.WalletFilter{Chain: domain.ChainEthereum})
	require.NoError(t, err)
	assert.Len(t, eth, 2)

	tagged, err := repo.List(ctx, storage.WalletFilter{Tags: []string{"fund", "other"}})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "b", tagged[0].Address)
}

func TestWalletRepo_UpdateAge(t *testing.T) {
	ctx := context.Background()
	repo := NewWalletRepo(NewMemoryStorage())
	require.NoError(t, repo.Add(ctx, &domain.Wallet{Address: addr, Chain: domain.ChainEthereum, AgeDays: domain.AgeUnknown}))

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	first := now.AddDate(0, 0, -400)
	require.NoError(t, repo.UpdateAge(ctx, domain.ChainEthereum, addr, &first, 400, now))

	w, err := repo.Get(ctx, domain.ChainEthereum, addr)
	require.NoError(t, err)
	assert.Equal(t, 400, w.AgeDays)
	assert.False(t, w.NeedsAgeRefresh(now))
	assert.True(t, w.NeedsAgeRefresh(now.Add(time.Second)))
}

func TestAlertRepo_InsertIfAbsentIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := NewAlertRepo(NewMemoryStorage())

	var inserted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.InsertIfAbsent(ctx, &domain.Alert{
				ID: "id", Address: addr, Chain: domain.ChainEthereum, Bucket: 42,
			})
			assert.NoError(t, err)
			if ok {
				inserted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), inserted.Load())

	ok, err := repo.InsertIfAbsent(ctx, &domain.Alert{ID: "next", Address: addr, Chain: domain.ChainEthereum, Bucket: 43})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAlertRepo_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewAlertRepo(NewMemoryStorage())
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := repo.InsertIfAbsent(ctx, &domain.Alert{
			ID: string(rune('a' + i)), Address: addr, Chain: domain.ChainEthereum,
			Bucket: int64(i), TriggeredAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	require.NoError(t, repo.MarkNotified(ctx, "c", true))

	out, err := repo.List(ctx, storage.AlertFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "c", out[0].ID)
	assert.True(t, out[0].WebhookSent)
	assert.Equal(t, "b", out[1].ID)
}

func TestScoreRepo_HistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewScoreRepo(NewMemoryStorage())
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Save(ctx, &domain.ScoreSnapshot{
			Address: addr, Chain: domain.ChainEthereum,
			ComputedAt: base.AddDate(0, 0, i), Total: 10 * i,
		}))
	}
	require.NoError(t, repo.Save(ctx, &domain.ScoreSnapshot{Address: "other", Chain: domain.ChainBitcoin, ComputedAt: base}))

	out, err := repo.History(ctx, storage.ScoreFilter{Chain: domain.ChainEthereum, Address: addr, Since: base.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, 30, out[0].Total)
	assert.Equal(t, 10, out[2].Total)

	out, err = repo.History(ctx, storage.ScoreFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 30, out[0].Total)

	all, err := repo.History(ctx, storage.ScoreFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestCacheStore_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	c := NewCacheStore(NewMemoryStorage())
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, c.Put(ctx, &domain.CacheEntry{Fingerprint: "old", FetchedAt: now.Add(-time.Hour), TTL: time.Hour}))
	require.NoError(t, c.Put(ctx, &domain.CacheEntry{Fingerprint: "new", FetchedAt: now, TTL: time.Hour}))

	n, err := c.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	e, err := c.Get(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, e)
	e, err = c.Get(ctx, "new")
	require.NoError(t, err)
	assert.NotNil(t, e)
}
