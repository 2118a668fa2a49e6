package stream

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/tracking/alert"
	"github.com/vietddude/whalewatch/internal/tracking/metrics"
	"github.com/vietddude/whalewatch/internal/tracking/scoring"
)

// WalletResult is the outcome of one wallet in one cycle.
type WalletResult struct {
	Wallet   *domain.Wallet
	Scored   *domain.ScoredWallet // nil when the fetch failed
	Status   alert.Status
	Alert    *domain.Alert
	Activity bool
	Stage    string
	Err      error
}

// CycleResult is the outcome of one cycle. Results are sorted by chain and
// address.
type CycleResult struct {
	Cycle        int
	StartedAt    time.Time
	CompletedAt  time.Time
	Results      []WalletResult
	Alerts       []*domain.Alert
	Activity     int
	Deduplicated int
	Errors       int
	Summary      domain.ScanSummary
}

// Scored returns the scored wallets of the cycle in result order.
func (r *CycleResult) Scored() []*domain.ScoredWallet {
	var out []*domain.ScoredWallet
	for _, wr := range r.Results {
		if wr.Scored != nil {
			out = append(out, wr.Scored)
		}
	}
	return out
}

// CompletePayload builds the cycle_complete payload.
func (r *CycleResult) CompletePayload() CycleCompletePayload {
	return CycleCompletePayload{
		Cycle:        r.Cycle,
		Wallets:      len(r.Results),
		Scored:       len(r.Scored()),
		Alerts:       len(r.Alerts),
		Activity:     r.Activity,
		Deduplicated: r.Deduplicated,
		Errors:       r.Errors,
		DurationMS:   r.CompletedAt.Sub(r.StartedAt).Milliseconds(),
		Summary:      r.Summary,
	}
}

type local struct {
	partial *scoring.Partial
	err     error
}

// runCycle fetches and scores every wallet with bounded parallelism, waits
// for the whole batch, then finalizes and evaluates alerts in wallet order.
// It returns ctx.Err() if cancelled before the barrier.
func (e *Engine) runCycle(ctx context.Context, n int) (*CycleResult, error) {
	start := e.now()
	wallets, err := e.wallets(ctx)
	if err != nil {
		return nil, err
	}

	locals := make([]local, len(wallets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, w := range wallets {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			locals[i] = e.scoreLocal(gctx, w, start)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Barrier passed: every local score of the batch is known.
	var partials []*scoring.Partial
	for _, l := range locals {
		if l.err == nil {
			partials = append(partials, l.partial)
		}
	}
	peers := e.deps.Scorer.BuildContext(partials)

	// Once finalized, the cycle is committed and runs to completion.
	commit := context.WithoutCancel(ctx)
	res := &CycleResult{Cycle: n, StartedAt: start}
	for i, w := range wallets {
		wr := WalletResult{Wallet: w}
		l := locals[i]
		if l.err != nil {
			wr.Stage, wr.Err = StageFetch, l.err
			res.Errors++
			metrics.WalletErrors.WithLabelValues(string(w.Chain), StageFetch, string(apperr.KindOf(l.err))).Inc()
			e.log.Warn("Wallet fetch failed", "cycle", n, "chain", w.Chain, "address", w.Address, "error", l.err)
			res.Results = append(res.Results, wr)
			continue
		}

		sw := e.deps.Scorer.Finalize(l.partial, peers)
		wr.Scored = sw
		metrics.WalletsScored.WithLabelValues(string(w.Chain)).Inc()
		metrics.WalletScore.WithLabelValues(string(w.Chain), w.Address).Set(float64(sw.Score))

		out, err := e.deps.Alerts.Evaluate(commit, sw, start)
		if err != nil {
			wr.Stage, wr.Err = StagePersist, err
			res.Errors++
			metrics.WalletErrors.WithLabelValues(string(w.Chain), StagePersist, string(apperr.KindOf(err))).Inc()
			e.log.Error("Alert persistence failed", "cycle", n, "chain", w.Chain, "address", w.Address, "error", err)
		} else {
			wr.Status, wr.Alert = out.Status, out.Alert
			switch {
			case out.Status == alert.StatusFired:
				res.Alerts = append(res.Alerts, out.Alert)
			case sw.Score >= e.cfg.ActivityMinScore:
				wr.Activity = true
				res.Activity++
			}
			if out.Status == alert.StatusDeduplicated {
				res.Deduplicated++
			}
		}
		e.saveSnapshot(commit, sw, wr.Status == alert.StatusFired)
		res.Results = append(res.Results, wr)
	}

	res.Summary = alert.Summarize(res.Alerts)
	res.CompletedAt = e.now()
	metrics.CyclesTotal.Inc()
	metrics.CycleDuration.Observe(res.CompletedAt.Sub(start).Seconds())
	e.log.Info("Cycle complete",
		"cycle", n,
		"wallets", len(wallets),
		"alerts", len(res.Alerts),
		"errors", res.Errors,
		"duration", res.CompletedAt.Sub(start),
	)
	return res, nil
}

// wallets lists the tracked wallets of the configured chains in
// (chain, address) order.
func (e *Engine) wallets(ctx context.Context) ([]*domain.Wallet, error) {
	all, err := e.deps.Wallets.List(ctx, "", e.cfg.Tags)
	if err != nil {
		return nil, err
	}
	allowed := make(map[domain.Chain]bool, len(e.cfg.Chains))
	for _, c := range e.cfg.Chains {
		allowed[c] = true
	}
	out := all[:0]
	for _, w := range all {
		if len(allowed) == 0 || allowed[w.Chain] {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Chain != out[j].Chain {
			return out[i].Chain < out[j].Chain
		}
		return out[i].Address < out[j].Address
	})
	return out, nil
}

func (e *Engine) scoreLocal(ctx context.Context, w *domain.Wallet, start time.Time) local {
	from, to := e.deps.Fetch.Range(start, e.cfg.Window)
	txs, err := e.deps.Fetch.Transactions(ctx, w, from, to)
	if err != nil {
		return local{err: err}
	}

	avg, err := e.deps.Fetch.Baseline(ctx, w, from)
	if err != nil {
		e.log.Warn("Baseline unavailable, using velocity floor", "chain", w.Chain, "address", w.Address, "error", err)
		avg = 0
	}

	if w.NeedsAgeRefresh(start.Add(-e.cfg.AgeRefresh)) {
		firstSeen, days := e.deps.Fetch.WalletAge(ctx, w, start, txs)
		if err := e.deps.Wallets.RecordAge(ctx, w, firstSeen, days, start); err != nil {
			e.log.Warn("Failed to record wallet age", "chain", w.Chain, "address", w.Address, "error", err)
			w.FirstSeen, w.AgeDays = firstSeen, days
		}
	}

	return local{partial: e.deps.Scorer.ScoreLocal(scoring.Input{
		Wallet:         w,
		Window:         e.cfg.Window,
		Transactions:   txs,
		Avg30dDailyUSD: avg,
		ComputedAt:     start,
	})}
}

func (e *Engine) saveSnapshot(ctx context.Context, sw *domain.ScoredWallet, alerted bool) {
	if e.deps.Scores == nil {
		return
	}
	if err := e.deps.Scores.Save(ctx, domain.SnapshotOf(sw, alerted)); err != nil {
		e.log.Warn("Failed to save score snapshot", "chain", sw.Chain, "address", sw.Address, "error", err)
	}
}
