// Package stream drives the poll loop: fetch and score every tracked wallet,
// correlate the batch, evaluate alerts and emit an ordered JSONL stream.
package stream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/storage"
	"github.com/vietddude/whalewatch/internal/tracking/alert"
	"github.com/vietddude/whalewatch/internal/tracking/scoring"
)

// Config controls the poll loop.
type Config struct {
	Window           time.Duration  `yaml:"window"`
	Interval         time.Duration  `yaml:"interval"`
	Heartbeat        time.Duration  `yaml:"heartbeat"`
	Concurrency      int            `yaml:"concurrency"`
	ActivityMinScore int            `yaml:"activity_min_score"`
	MaxCycles        int            `yaml:"max_cycles"` // 0 = unbounded
	AgeRefresh       time.Duration  `yaml:"age_refresh"`
	Chains           []domain.Chain `yaml:"chains"` // empty = every chain
	Tags             []string       `yaml:"tags"`
}

// DefaultConfig returns the default poll loop configuration.
func DefaultConfig() Config {
	return Config{
		Window:           time.Hour,
		Interval:         60 * time.Second,
		Heartbeat:        30 * time.Second,
		Concurrency:      4,
		ActivityMinScore: 1,
	}
}

// WalletSource lists tracked wallets and persists recomputed ages.
type WalletSource interface {
	List(ctx context.Context, chainCode string, tags []string) ([]*domain.Wallet, error)
	RecordAge(ctx context.Context, w *domain.Wallet, firstSeen *time.Time, ageDays int, at time.Time) error
}

// Fetcher is the cached fetch layer.
type Fetcher interface {
	Range(now time.Time, window time.Duration) (from, to time.Time)
	Transactions(ctx context.Context, w *domain.Wallet, from, to time.Time) ([]domain.Transaction, error)
	Baseline(ctx context.Context, w *domain.Wallet, windowStart time.Time) (float64, error)
	WalletAge(ctx context.Context, w *domain.Wallet, now time.Time, txs []domain.Transaction) (*time.Time, int)
}

// Alerter evaluates finalized scores.
type Alerter interface {
	Threshold() int
	Evaluate(ctx context.Context, sw *domain.ScoredWallet, now time.Time) (alert.Outcome, error)
}

// Observer is notified after every completed cycle.
type Observer interface {
	CycleCompleted(res *CycleResult)
}

// Deps holds the collaborators of the engine.
type Deps struct {
	Wallets  WalletSource
	Fetch    Fetcher
	Scorer   *scoring.Engine
	Alerts   Alerter
	Scores   storage.ScoreRepository // optional
	Output   io.Writer               // required by Run
	Observer Observer                // optional
	Logger   *slog.Logger
	Now      func() time.Time
}

// Totals are the counters reported by stream_end.
type Totals struct {
	CyclesCompleted int `json:"cycles_completed"`
	TotalAlerts     int `json:"total_alerts"`
}

// Engine runs scan cycles.
type Engine struct {
	cfg     Config
	deps    Deps
	log     *slog.Logger
	now     func() time.Time
	cycles  atomic.Int64
	running atomic.Bool
}

// NewEngine creates a stream engine.
func NewEngine(cfg Config, deps Deps) *Engine {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.ActivityMinScore <= 0 {
		cfg.ActivityMinScore = def.ActivityMinScore
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{cfg: cfg, deps: deps, log: log, now: now}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Scan runs a single cycle without emitting events.
func (e *Engine) Scan(ctx context.Context) (*CycleResult, error) {
	n := int(e.cycles.Add(1))
	res, err := e.runCycle(ctx, n)
	if err != nil {
		return nil, err
	}
	if e.deps.Observer != nil {
		e.deps.Observer.CycleCompleted(res)
	}
	return res, nil
}

// Run emits stream_start, runs cycles until ctx is cancelled or MaxCycles
// is reached, and always finishes with stream_end. A cycle interrupted by
// cancellation is abandoned. The returned error is ctx.Err() on
// cancellation, or the write error if the output broke.
func (e *Engine) Run(ctx context.Context) (Totals, error) {
	if e.deps.Output == nil {
		return Totals{}, fmt.Errorf("stream output is not configured")
	}
	if !e.running.CompareAndSwap(false, true) {
		return Totals{}, fmt.Errorf("stream already running")
	}
	defer e.running.Store(false)

	em := NewEmitter(e.deps.Output, e.now)
	started := e.now()
	var totals Totals

	if _, err := em.Emit(domain.EventTypeStreamStart, StartPayload{
		Chains:           e.chains(),
		WindowSeconds:    int64(e.cfg.Window / time.Second),
		IntervalSeconds:  int64(e.cfg.Interval / time.Second),
		HeartbeatSeconds: int64(e.cfg.Heartbeat / time.Second),
		Threshold:        e.deps.Alerts.Threshold(),
		MaxCycles:        e.cfg.MaxCycles,
	}); err != nil {
		return totals, err
	}
	e.log.Info("Stream started", "interval", e.cfg.Interval, "window", e.cfg.Window, "max_cycles", e.cfg.MaxCycles)

	reason := "cancelled"
	for ctx.Err() == nil {
		cycleStart := e.now()
		n := int(e.cycles.Add(1))

		if _, err := em.Emit(domain.EventTypeCycleStart, CycleStartPayload{Cycle: n}); err != nil {
			return totals, err
		}

		res, err := e.runCycle(ctx, n)
		if err != nil && ctx.Err() != nil {
			e.log.Info("Cycle abandoned on cancellation", "cycle", n)
			break
		}
		// A committed cycle is emitted in full even if ctx was cancelled
		// meanwhile; the check after emission then ends the stream.
		if err != nil {
			e.log.Error("Cycle failed", "cycle", n, "error", err)
			if _, werr := em.Emit(domain.EventTypeError, newErrorPayload(n, nil, StageRegistry, err)); werr != nil {
				return totals, werr
			}
			res = &CycleResult{Cycle: n, StartedAt: cycleStart, CompletedAt: e.now(), Errors: 1, Summary: alert.Summarize(nil)}
		} else if err := e.emitCycle(em, res); err != nil {
			return totals, err
		}

		if _, err := em.Emit(domain.EventTypeCycleComplete, res.CompletePayload()); err != nil {
			return totals, err
		}
		totals.CyclesCompleted++
		totals.TotalAlerts += len(res.Alerts)
		if e.deps.Observer != nil {
			e.deps.Observer.CycleCompleted(res)
		}
		if ctx.Err() != nil {
			break
		}

		if e.cfg.MaxCycles > 0 && totals.CyclesCompleted >= e.cfg.MaxCycles {
			reason = "max_cycles"
			break
		}
		if err := e.wait(ctx, em, cycleStart.Add(e.cfg.Interval), started, totals); err != nil {
			return totals, err
		}
	}

	if _, err := em.Emit(domain.EventTypeStreamEnd, EndPayload{
		CyclesCompleted: totals.CyclesCompleted,
		TotalAlerts:     totals.TotalAlerts,
		Reason:          reason,
	}); err != nil {
		return totals, err
	}
	e.log.Info("Stream ended", "reason", reason, "cycles", totals.CyclesCompleted, "alerts", totals.TotalAlerts)

	if reason == "cancelled" {
		return totals, ctx.Err()
	}
	return totals, nil
}

func (e *Engine) emitCycle(em *Emitter, res *CycleResult) error {
	for _, r := range res.Results {
		var err error
		switch {
		case r.Err != nil:
			_, err = em.Emit(domain.EventTypeError, newErrorPayload(res.Cycle, r.Wallet, r.Stage, r.Err))
		case r.Status == alert.StatusFired:
			_, err = em.Emit(domain.EventTypeAlert, AlertPayload{
				Cycle:                res.Cycle,
				Alert:                r.Alert,
				InflowUSD:            r.Scored.InflowUSD,
				OutflowUSD:           r.Scored.OutflowUSD,
				ExchangeFlowFraction: r.Scored.ExchangeFlowFraction,
				TxCount:              len(r.Scored.Transactions),
			})
		case r.Activity:
			_, err = em.Emit(domain.EventTypeActivity, ActivityPayload{
				Cycle:        res.Cycle,
				ScoredWallet: r.Scored,
				Severity:     alert.SeverityFor(r.Scored.Score),
				TxCount:      len(r.Scored.Transactions),
				Deduplicated: r.Status == alert.StatusDeduplicated,
			})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// wait sleeps until next, emitting heartbeats on their cadence.
func (e *Engine) wait(ctx context.Context, em *Emitter, next, started time.Time, totals Totals) error {
	timer := time.NewTimer(max(next.Sub(e.now()), 0))
	defer timer.Stop()

	var tick <-chan time.Time
	if e.cfg.Heartbeat > 0 {
		ticker := time.NewTicker(e.cfg.Heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			return nil
		case <-tick:
			if _, err := em.Emit(domain.EventTypeHeartbeat, HeartbeatPayload{
				CyclesCompleted: totals.CyclesCompleted,
				TotalAlerts:     totals.TotalAlerts,
				UptimeSeconds:   int64(e.now().Sub(started) / time.Second),
				NextCycleAt:     next.UTC(),
			}); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) chains() []domain.Chain {
	if len(e.cfg.Chains) > 0 {
		return slices.Clone(e.cfg.Chains)
	}
	return slices.Clone(domain.SupportedChains)
}
