package worker

import (
	"context"
	"log/slog"
	"time"
)

// Purger removes expired entries and reports how many were removed.
type Purger interface {
	Sweep(ctx context.Context) int
}

// Sweeper periodically purges expired fingerprint cache entries.
type Sweeper struct {
	purger   Purger
	interval time.Duration
	log      *slog.Logger
}

// NewSweeper creates a new Sweeper worker.
func NewSweeper(purger Purger, interval time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{purger: purger, interval: interval, log: log}
}

// Start runs the sweep loop until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		return // Sweeping disabled
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Initial sweep
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if n := s.purger.Sweep(ctx); n > 0 {
		s.log.Info("[Sweeper] purged expired cache entries", "count", n)
	}
}
