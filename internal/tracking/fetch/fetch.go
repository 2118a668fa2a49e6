// Package fetch puts the fingerprint cache in front of the chain fetchers.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/chain"
	"github.com/vietddude/whalewatch/internal/tracking/cache"
	"github.com/vietddude/whalewatch/internal/tracking/scoring"
)

const (
	recentClass  = "recent"
	historyClass = "history"
)

// Config selects TTL classes and range alignment.
type Config struct {
	RecentTTL    time.Duration `yaml:"recent_ttl"`
	HistoryTTL   time.Duration `yaml:"history_ttl"`
	Align        time.Duration `yaml:"align"`
	BaselineDays int           `yaml:"baseline_days"`
}

// DefaultConfig returns the default fetch configuration.
func DefaultConfig() Config {
	return Config{
		RecentTTL:    5 * time.Minute,
		HistoryTTL:   6 * time.Hour,
		Align:        time.Minute,
		BaselineDays: 30,
	}
}

// Layer serves transactions and baselines through the cache.
type Layer struct {
	cfg      Config
	fetchers chain.Set
	cache    *cache.Cache
	log      *slog.Logger
}

// NewLayer creates a cached fetch layer.
func NewLayer(cfg Config, fetchers chain.Set, c *cache.Cache, log *slog.Logger) *Layer {
	def := DefaultConfig()
	if cfg.RecentTTL <= 0 {
		cfg.RecentTTL = def.RecentTTL
	}
	if cfg.HistoryTTL <= 0 {
		cfg.HistoryTTL = def.HistoryTTL
	}
	if cfg.Align <= 0 {
		cfg.Align = def.Align
	}
	if cfg.BaselineDays <= 0 {
		cfg.BaselineDays = def.BaselineDays
	}
	if log == nil {
		log = slog.Default()
	}
	return &Layer{cfg: cfg, fetchers: fetchers, cache: c, log: log}
}

// Range returns the aligned [from, to] scan range of a window ending at now.
// Alignment keeps fingerprints stable between cycles within one Align step.
func (l *Layer) Range(now time.Time, window time.Duration) (from, to time.Time) {
	to = now.Truncate(l.cfg.Align)
	return to.Add(-window), to
}

// Transactions returns the wallet transactions in [from, to] using the
// recent TTL class.
func (l *Layer) Transactions(ctx context.Context, w *domain.Wallet, from, to time.Time) ([]domain.Transaction, error) {
	return l.cached(ctx, w, from, to, recentClass, l.cfg.RecentTTL)
}

// Baseline returns the average daily volume (inflow plus outflow) over the
// baseline period ending at windowStart. The range is aligned to the hour and
// served from the history TTL class.
func (l *Layer) Baseline(ctx context.Context, w *domain.Wallet, windowStart time.Time) (float64, error) {
	to := windowStart.Truncate(time.Hour)
	from := to.AddDate(0, 0, -l.cfg.BaselineDays)

	txs, err := l.cached(ctx, w, from, to, historyClass, l.cfg.HistoryTTL)
	if err != nil {
		return 0, err
	}
	// Same volume definition as the scored window, so the velocity ratio
	// compares like with like.
	inflow, outflow := scoring.Flows(w.Address, txs)
	return (inflow + outflow) / float64(l.cfg.BaselineDays), nil
}

// WalletAge resolves the age of a wallet. The upstream answer wins; when it
// fails or has no history, the earliest known activity (stored first seen or
// the given transactions) is used instead.
func (l *Layer) WalletAge(
	ctx context.Context,
	w *domain.Wallet,
	now time.Time,
	txs []domain.Transaction,
) (firstSeen *time.Time, ageDays int) {
	firstSeen = earliest(w.FirstSeen, txs)

	f, err := l.fetchers.Get(w.Chain)
	if err == nil {
		days, ferr := f.WalletAgeDays(ctx, w.Address)
		if ferr == nil && days != domain.AgeUnknown {
			return firstSeen, days
		}
		err = ferr
	}
	if err != nil {
		l.log.Debug("Wallet age lookup failed, using earliest activity", "address", w.Address, "error", err)
	}
	if firstSeen == nil {
		return nil, domain.AgeUnknown
	}
	return firstSeen, max(int(now.Sub(*firstSeen)/(24*time.Hour)), 0)
}

func (l *Layer) cached(
	ctx context.Context,
	w *domain.Wallet,
	from, to time.Time,
	class string,
	ttl time.Duration,
) ([]domain.Transaction, error) {
	f, err := l.fetchers.Get(w.Chain)
	if err != nil {
		return nil, err
	}
	fp := cache.Fingerprint(w.Chain, w.Address, from, to, class)

	payload, err := l.cache.GetOrFetch(ctx, fp, ttl, func(ctx context.Context) ([]byte, error) {
		txs, err := f.Fetch(ctx, w.Address, from, to)
		if err != nil {
			return nil, err
		}
		return json.Marshal(txs)
	})
	if err != nil {
		return nil, err
	}

	var txs []domain.Transaction
	if err := json.Unmarshal(payload, &txs); err != nil {
		return nil, fmt.Errorf("failed to decode cached transactions: %w", err)
	}
	return txs, nil
}

func earliest(stored *time.Time, txs []domain.Transaction) *time.Time {
	var out *time.Time
	if stored != nil {
		t := *stored
		out = &t
	}
	for _, tx := range txs {
		if out == nil || tx.Timestamp.Before(*out) {
			ts := tx.Timestamp
			out = &ts
		}
	}
	return out
}
