package pebbledb

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/storage"
)

// WalletRepo implements storage.WalletRepository on Pebble.
type WalletRepo struct {
	db *DB
}

// NewWalletRepo creates a wallet repository on db.
func NewWalletRepo(db *DB) *WalletRepo {
	return &WalletRepo{db: db}
}

func walletKey(chain domain.Chain, address string) []byte {
	return joinKey(prefixWallet, string(chain), address)
}

func (r *WalletRepo) load(chain domain.Chain, address string) (*domain.Wallet, error) {
	var w domain.Wallet
	found, err := r.db.getJSON(walletKey(chain, address), &w)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &w, nil
}

func (r *WalletRepo) save(b *pebble.Batch, w *domain.Wallet) error {
	if err := setJSON(b, walletKey(w.Chain, w.Address), w); err != nil {
		return err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	return nil
}

// Add registers a wallet, reactivating a deactivated one in place.
func (r *WalletRepo) Add(_ context.Context, wallet *domain.Wallet) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, err := r.load(wallet.Chain, wallet.Address)
	if err != nil {
		return err
	}
	b := r.db.pdb.NewBatch()
	defer b.Close()

	var w domain.Wallet
	if existing != nil {
		if existing.Active {
			return storage.ErrWalletExists
		}
		w = *existing
		w.Active = true
		w.Label = wallet.Label
		w.Tags = slices.Clone(wallet.Tags)
	} else {
		id, err := r.db.nextSeq(b, "wallet_id")
		if err != nil {
			return fmt.Errorf("failed to allocate wallet id: %w", err)
		}
		w = *wallet
		w.ID = id
		w.Active = true
		w.Tags = slices.Clone(wallet.Tags)
		if w.CreatedAt.IsZero() {
			w.CreatedAt = time.Now().UTC()
		}
	}
	if err := r.save(b, &w); err != nil {
		return err
	}
	*wallet = w
	return nil
}

func (r *WalletRepo) Get(_ context.Context, chain domain.Chain, address string) (*domain.Wallet, error) {
	w, err := r.load(chain, address)
	if err != nil {
		return nil, err
	}
	if w == nil || !w.Active {
		return nil, storage.ErrWalletNotFound
	}
	return w, nil
}

func (r *WalletRepo) List(_ context.Context, filter storage.WalletFilter) ([]*domain.Wallet, error) {
	prefix := []byte{prefixWallet}
	if filter.Chain != "" {
		prefix = joinKey(prefixWallet, string(filter.Chain), "")
	}

	var out []*domain.Wallet
	err := r.db.scan(prefix, false, func(key, value []byte) (bool, error) {
		var w domain.Wallet
		if err := jsonDecode(key, value, &w); err != nil {
			return false, err
		}
		if !w.Active && !filter.IncludeInactive {
			return true, nil
		}
		if len(filter.Tags) > 0 && !slices.ContainsFunc(filter.Tags, func(t string) bool {
			return slices.Contains(w.Tags, t)
		}) {
			return true, nil
		}
		out = append(out, &w)
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *WalletRepo) Deactivate(_ context.Context, chain domain.Chain, address string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	w, err := r.load(chain, address)
	if err != nil {
		return err
	}
	if w == nil || !w.Active {
		return storage.ErrWalletNotFound
	}
	w.Active = false
	b := r.db.pdb.NewBatch()
	defer b.Close()
	return r.save(b, w)
}

func (r *WalletRepo) UpdateAge(
	_ context.Context,
	chain domain.Chain,
	address string,
	firstSeen *time.Time,
	ageDays int,
	computedAt time.Time,
) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	w, err := r.load(chain, address)
	if err != nil {
		return err
	}
	if w == nil {
		return storage.ErrWalletNotFound
	}
	if firstSeen != nil {
		fs := *firstSeen
		w.FirstSeen = &fs
	}
	w.AgeDays = ageDays
	w.AgeComputedAt = &computedAt
	b := r.db.pdb.NewBatch()
	defer b.Close()
	return r.save(b, w)
}
