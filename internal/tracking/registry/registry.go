// Package registry manages the set of tracked wallets.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/chain"
	"github.com/vietddude/whalewatch/internal/infra/storage"
)

// Registry validates input before it reaches the wallet repository.
type Registry struct {
	repo storage.WalletRepository
	log  *slog.Logger
}

// New creates a registry.
func New(repo storage.WalletRepository, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{repo: repo, log: log}
}

// AddRequest describes a wallet to track.
type AddRequest struct {
	Chain   string
	Address string
	Label   string
	Tags    []string
}

// Validate normalizes a request into the wallet it would register without
// touching storage.
func Validate(req AddRequest) (*domain.Wallet, error) {
	c, err := domain.ParseChain(req.Chain)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInput, "registry.add", err)
	}
	addr, err := chain.ParseAddress(c, req.Address)
	if err != nil {
		return nil, err
	}
	return &domain.Wallet{
		Address:   addr,
		Chain:     c,
		Label:     strings.TrimSpace(req.Label),
		Tags:      cleanTags(req.Tags),
		CreatedAt: time.Now().UTC(),
		AgeDays:   domain.AgeUnknown,
		Active:    true,
	}, nil
}

// Add validates and registers a wallet. Invalid input is rejected before any
// storage call.
func (r *Registry) Add(ctx context.Context, req AddRequest) (*domain.Wallet, error) {
	w, err := Validate(req)
	if err != nil {
		return nil, err
	}
	if err := r.repo.Add(ctx, w); err != nil {
		return nil, classify("registry.add", err)
	}
	r.log.Info("Wallet tracked", "chain", w.Chain, "address", w.Address, "label", w.Label)
	return w, nil
}

// ImportError describes a rejected import row. Rows count from 1.
type ImportError struct {
	Row     int    `json:"row"`
	Chain   string `json:"chain"`
	Address string `json:"address"`
	Error   string `json:"error"`
}

// ImportResult summarizes a bulk import. On a dry run Imported counts the
// wallets that would be registered.
type ImportResult struct {
	DryRun   bool             `json:"dry_run"`
	Imported int              `json:"imported"`
	Skipped  int              `json:"skipped"`
	Errors   []ImportError    `json:"errors"`
	Wallets  []*domain.Wallet `json:"wallets"`
}

// Import registers every valid request. Invalid rows are collected rather
// than aborting the batch; already tracked wallets and repeats within the
// batch are skipped. A dry run validates and checks existence only. Storage
// failures abort the import.
func (r *Registry) Import(ctx context.Context, reqs []AddRequest, dryRun bool) (*ImportResult, error) {
	res := &ImportResult{DryRun: dryRun, Errors: []ImportError{}, Wallets: []*domain.Wallet{}}
	seen := make(map[domain.WalletKey]bool, len(reqs))

	for i, req := range reqs {
		w, err := Validate(req)
		if err != nil {
			res.Errors = append(res.Errors, ImportError{Row: i + 1, Chain: req.Chain, Address: req.Address, Error: err.Error()})
			continue
		}
		if seen[w.Key()] {
			res.Skipped++
			continue
		}
		seen[w.Key()] = true

		if dryRun {
			_, err := r.repo.Get(ctx, w.Chain, w.Address)
			switch {
			case err == nil:
				res.Skipped++
			case errors.Is(err, storage.ErrWalletNotFound):
				res.Imported++
				res.Wallets = append(res.Wallets, w)
			default:
				return nil, classify("registry.import", err)
			}
			continue
		}

		err = r.repo.Add(ctx, w)
		switch {
		case err == nil:
			res.Imported++
			res.Wallets = append(res.Wallets, w)
		case errors.Is(err, storage.ErrWalletExists):
			res.Skipped++
		default:
			return nil, classify("registry.import", err)
		}
	}

	r.log.Info("Wallet import finished",
		"dry_run", dryRun, "imported", res.Imported, "skipped", res.Skipped, "errors", len(res.Errors))
	return res, nil
}

// Remove soft-deletes a wallet.
func (r *Registry) Remove(ctx context.Context, chainCode, address string) error {
	c, err := domain.ParseChain(chainCode)
	if err != nil {
		return apperr.Wrap(apperr.KindInput, "registry.remove", err)
	}
	addr, err := chain.ParseAddress(c, address)
	if err != nil {
		return err
	}
	if err := r.repo.Deactivate(ctx, c, addr); err != nil {
		return classify("registry.remove", err)
	}
	r.log.Info("Wallet untracked", "chain", c, "address", addr)
	return nil
}

// List returns tracked wallets. An empty chain code lists every chain.
func (r *Registry) List(ctx context.Context, chainCode string, tags []string) ([]*domain.Wallet, error) {
	filter := storage.WalletFilter{Tags: cleanTags(tags)}
	if chainCode != "" {
		c, err := domain.ParseChain(chainCode)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInput, "registry.list", err)
		}
		filter.Chain = c
	}
	wallets, err := r.repo.List(ctx, filter)
	if err != nil {
		return nil, classify("registry.list", err)
	}
	return wallets, nil
}

// RecordAge persists a recomputed wallet age and updates w in place.
func (r *Registry) RecordAge(ctx context.Context, w *domain.Wallet, firstSeen *time.Time, ageDays int, at time.Time) error {
	if err := r.repo.UpdateAge(ctx, w.Chain, w.Address, firstSeen, ageDays, at); err != nil {
		return classify("registry.age", err)
	}
	w.FirstSeen = firstSeen
	w.AgeDays = ageDays
	w.AgeComputedAt = &at
	return nil
}

func classify(op string, err error) error {
	if k := apperr.KindOf(err); k != apperr.KindUnknown {
		return err
	}
	return apperr.Wrap(apperr.KindStorage, op, err)
}

func cleanTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
