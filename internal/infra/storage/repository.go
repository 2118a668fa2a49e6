package storage

import (
	"context"
	"time"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
)

var (
	// ErrWalletNotFound is returned when a wallet is not tracked.
	ErrWalletNotFound = apperr.New(apperr.KindNotFound, "storage", "wallet not found")

	// ErrWalletExists is returned when registering an already tracked wallet.
	ErrWalletExists = apperr.New(apperr.KindExists, "storage", "wallet already tracked")
)

// WalletFilter narrows wallet listings.
type WalletFilter struct {
	Chain           domain.Chain // empty = all chains
	Tags            []string     // any match
	IncludeInactive bool
}

// WalletRepository handles the tracked wallet registry.
type WalletRepository interface {
	// Add registers a wallet. Returns ErrWalletExists on duplicates;
	// a previously deactivated wallet is reactivated instead.
	Add(ctx context.Context, wallet *domain.Wallet) error

	// Get retrieves an active wallet.
	Get(ctx context.Context, chain domain.Chain, address string) (*domain.Wallet, error)

	// List retrieves wallets matching the filter.
	List(ctx context.Context, filter WalletFilter) ([]*domain.Wallet, error)

	// Deactivate soft-deletes a wallet. Cached data may still reference it.
	Deactivate(ctx context.Context, chain domain.Chain, address string) error

	// UpdateAge stores the recomputed age and earliest known activity.
	UpdateAge(
		ctx context.Context,
		chain domain.Chain,
		address string,
		firstSeen *time.Time,
		ageDays int,
		computedAt time.Time,
	) error
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	Chain domain.Chain
	Since time.Time
	Limit int
}

// AlertRepository persists alerts.
type AlertRepository interface {
	// InsertIfAbsent atomically inserts the alert unless one already exists
	// for (address, chain, bucket). Reports whether the alert was inserted.
	InsertIfAbsent(ctx context.Context, alert *domain.Alert) (bool, error)

	// MarkNotified records the notification outcome of an alert.
	MarkNotified(ctx context.Context, id string, sent bool) error

	// List retrieves alerts, newest first.
	List(ctx context.Context, filter AlertFilter) ([]*domain.Alert, error)
}

// ScoreFilter narrows score history queries.
type ScoreFilter struct {
	Chain   domain.Chain // empty = all chains
	Address string       // empty = all wallets
	Since   time.Time
	Limit   int
}

// Matches reports whether a snapshot passes the chain, address and since
// filters. Limit is applied by the caller.
func (f ScoreFilter) Matches(s *domain.ScoreSnapshot) bool {
	if f.Chain != "" && s.Chain != f.Chain {
		return false
	}
	if f.Address != "" && s.Address != f.Address {
		return false
	}
	return f.Since.IsZero() || !s.ComputedAt.Before(f.Since)
}

// ScoreRepository stores score history.
type ScoreRepository interface {
	Save(ctx context.Context, snapshot *domain.ScoreSnapshot) error

	// History retrieves snapshots matching the filter, newest first.
	History(ctx context.Context, filter ScoreFilter) ([]*domain.ScoreSnapshot, error)
}

// CacheStore is the backing store of the fingerprint cache. Get returns
// (nil, nil) when the fingerprint is absent. Stores never decide freshness.
type CacheStore interface {
	Get(ctx context.Context, fingerprint string) (*domain.CacheEntry, error)
	Put(ctx context.Context, entry *domain.CacheEntry) error
	// PurgeExpired removes entries whose FetchedAt+TTL is not after now.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
