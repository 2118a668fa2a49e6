package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/storage"
)

type alertKey struct {
	chain   domain.Chain
	address string
	bucket  int64
}

type MemoryStorage struct {
	wallets map[domain.WalletKey]*domain.Wallet
	alerts  map[alertKey]*domain.Alert
	scores  []*domain.ScoreSnapshot
	cache   map[string]*domain.CacheEntry
	nextID  uint64
	mu      sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		wallets: make(map[domain.WalletKey]*domain.Wallet),
		alerts:  make(map[alertKey]*domain.Alert),
		cache:   make(map[string]*domain.CacheEntry),
	}
}

// -----------------------------------------------------------------------------
// Wallet Repository
// -----------------------------------------------------------------------------

type WalletRepo struct {
	store *MemoryStorage
}

func NewWalletRepo(store *MemoryStorage) *WalletRepo {
	return &WalletRepo{store: store}
}

func (r *WalletRepo) Add(ctx context.Context, wallet *domain.Wallet) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := wallet.Key()
	if existing, ok := r.store.wallets[key]; ok {
		if existing.Active {
			return storage.ErrWalletExists
		}
		existing.Active = true
		existing.Label = wallet.Label
		existing.Tags = slices.Clone(wallet.Tags)
		*wallet = *existing
		return nil
	}

	r.store.nextID++
	w := *wallet
	w.ID = r.store.nextID
	w.Active = true
	w.Tags = slices.Clone(wallet.Tags)
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	r.store.wallets[key] = &w
	*wallet = w
	return nil
}

func (r *WalletRepo) Get(ctx context.Context, chain domain.Chain, address string) (*domain.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	w, ok := r.store.wallets[domain.WalletKey{Chain: chain, Address: address}]
	if !ok || !w.Active {
		return nil, storage.ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (r *WalletRepo) List(ctx context.Context, filter storage.WalletFilter) ([]*domain.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Wallet
	for _, w := range r.store.wallets {
		if !w.Active && !filter.IncludeInactive {
			continue
		}
		if filter.Chain != "" && w.Chain != filter.Chain {
			continue
		}
		if len(filter.Tags) > 0 && !slices.ContainsFunc(filter.Tags, func(t string) bool {
			return slices.Contains(w.Tags, t)
		}) {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *WalletRepo) Deactivate(ctx context.Context, chain domain.Chain, address string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	w, ok := r.store.wallets[domain.WalletKey{Chain: chain, Address: address}]
	if !ok || !w.Active {
		return storage.ErrWalletNotFound
	}
	w.Active = false
	return nil
}

func (r *WalletRepo) UpdateAge(
	ctx context.Context,
	chain domain.Chain,
	address string,
	firstSeen *time.Time,
	ageDays int,
	computedAt time.Time,
) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	w, ok := r.store.wallets[domain.WalletKey{Chain: chain, Address: address}]
	if !ok {
		return storage.ErrWalletNotFound
	}
	if firstSeen != nil {
		fs := *firstSeen
		w.FirstSeen = &fs
	}
	w.AgeDays = ageDays
	w.AgeComputedAt = &computedAt
	return nil
}

// -----------------------------------------------------------------------------
// Alert Repository
// -----------------------------------------------------------------------------

type AlertRepo struct {
	store *MemoryStorage
}

func NewAlertRepo(store *MemoryStorage) *AlertRepo {
	return &AlertRepo{store: store}
}

func (r *AlertRepo) InsertIfAbsent(ctx context.Context, alert *domain.Alert) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := alertKey{chain: alert.Chain, address: alert.Address, bucket: alert.Bucket}
	if _, ok := r.store.alerts[key]; ok {
		return false, nil
	}
	cp := *alert
	r.store.alerts[key] = &cp
	return true, nil
}

func (r *AlertRepo) MarkNotified(ctx context.Context, id string, sent bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, a := range r.store.alerts {
		if a.ID == id {
			a.WebhookSent = sent
			return nil
		}
	}
	return nil
}

func (r *AlertRepo) List(ctx context.Context, filter storage.AlertFilter) ([]*domain.Alert, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Alert
	for _, a := range r.store.alerts {
		if filter.Chain != "" && a.Chain != filter.Chain {
			continue
		}
		if !filter.Since.IsZero() && a.TriggeredAt.Before(filter.Since) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TriggeredAt.Equal(out[j].TriggeredAt) {
			return out[i].TriggeredAt.After(out[j].TriggeredAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Score Repository
// -----------------------------------------------------------------------------

type ScoreRepo struct {
	store *MemoryStorage
}

func NewScoreRepo(store *MemoryStorage) *ScoreRepo {
	return &ScoreRepo{store: store}
}

func (r *ScoreRepo) Save(ctx context.Context, snapshot *domain.ScoreSnapshot) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *snapshot
	r.store.scores = append(r.store.scores, &cp)
	return nil
}

func (r *ScoreRepo) History(ctx context.Context, filter storage.ScoreFilter) ([]*domain.ScoreSnapshot, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.ScoreSnapshot
	for _, s := range r.store.scores {
		if !filter.Matches(s) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	// Newest first; snapshots with equal timestamps keep reverse insertion order.
	slices.Reverse(out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ComputedAt.After(out[j].ComputedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Cache Store
// -----------------------------------------------------------------------------

type CacheStore struct {
	store *MemoryStorage
}

func NewCacheStore(store *MemoryStorage) *CacheStore {
	return &CacheStore{store: store}
}

func (c *CacheStore) Get(ctx context.Context, fingerprint string) (*domain.CacheEntry, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	e, ok := c.store.cache[fingerprint]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (c *CacheStore) Put(ctx context.Context, entry *domain.CacheEntry) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	cp := *entry
	c.store.cache[entry.Fingerprint] = &cp
	return nil
}

func (c *CacheStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	n := 0
	for k, e := range c.store.cache {
		if !e.FreshAt(now) {
			delete(c.store.cache, k)
			n++
		}
	}
	return n, nil
}
