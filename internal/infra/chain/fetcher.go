package chain

import (
	"context"
	"time"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
)

// Fetcher is the per-chain boundary between the tracker and an upstream
// data source. Implementations own their retry and rate limiting policy and
// return classified errors from the apperr package.
type Fetcher interface {
	// Chain returns the chain served by this fetcher.
	Chain() domain.Chain

	// Fetch returns the transactions touching address in [from, to], sorted
	// by timestamp ascending. An empty result is not an error.
	Fetch(ctx context.Context, address string, from, to time.Time) ([]domain.Transaction, error)

	// WalletAgeDays returns the days since the first on-chain activity of
	// address, or domain.AgeUnknown when the source has no history.
	WalletAgeDays(ctx context.Context, address string) (int, error)

	// ValidateAddress checks the address format without any I/O.
	ValidateAddress(address string) bool
}

// Set maps chains to their fetchers.
type Set map[domain.Chain]Fetcher

// NewSet indexes fetchers by chain.
func NewSet(fetchers ...Fetcher) Set {
	s := make(Set, len(fetchers))
	for _, f := range fetchers {
		s[f.Chain()] = f
	}
	return s
}

// Get returns the fetcher of a chain.
func (s Set) Get(c domain.Chain) (Fetcher, error) {
	f, ok := s[c]
	if !ok {
		return nil, apperr.New(apperr.KindConfig, "chain", "no fetcher configured for chain %s", c)
	}
	return f, nil
}

// Chains returns the configured chains in display order.
func (s Set) Chains() []domain.Chain {
	var out []domain.Chain
	for _, c := range domain.SupportedChains {
		if _, ok := s[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
