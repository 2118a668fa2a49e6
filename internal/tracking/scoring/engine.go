// Package scoring computes wallet significance scores.
//
// Scoring is two-phase. ScoreLocal computes the net-flow, velocity and
// exchange-flow components of one wallet from its own data and may run in
// parallel. Once every wallet of a batch has a Partial, the correlation
// context is built and Finalize derives the correlation component and the
// composite score. Every function here is pure.
package scoring

import (
	"time"

	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/tracking/correlation"
)

// Input is everything needed to score one wallet locally.
type Input struct {
	Wallet         *domain.Wallet
	Window         time.Duration
	Transactions   []domain.Transaction
	Avg30dDailyUSD float64
	ComputedAt     time.Time
}

// Partial is a wallet scored in phase one. It has no correlation or
// composite score yet.
type Partial struct {
	Input    Input
	NetFlow  NetFlowResult
	Velocity int
	Exchange ExchangeResult
}

// Signal returns the correlation input of this partial.
func (p *Partial) Signal() correlation.Signal {
	return correlation.Signal{
		Key:        p.Input.Wallet.Key(),
		Direction:  p.NetFlow.Direction,
		NetFlowUSD: p.NetFlow.NetUSD,
	}
}

// Engine scores wallets with a fixed configuration.
type Engine struct {
	cfg       Config
	exchanges ExchangeSet
}

// NewEngine creates a scoring engine. cfg must already be validated.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:       cfg,
		exchanges: NewExchangeSet(cfg.ExchangeAddresses...),
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// ScoreLocal runs phase one for a single wallet.
func (e *Engine) ScoreLocal(in Input) *Partial {
	w := in.Wallet
	nf := NetFlow(w.Address, w.AgeDays, in.Transactions, e.cfg)
	return &Partial{
		Input:    in,
		NetFlow:  nf,
		Velocity: Velocity(nf.InflowUSD+nf.OutflowUSD, in.Avg30dDailyUSD, in.Window, e.cfg),
		Exchange: ExchangeFlow(w.Address, in.Transactions, e.exchanges, nf.Direction, e.cfg),
	}
}

// BuildContext builds the correlation context of a complete batch.
func (e *Engine) BuildContext(partials []*Partial) correlation.DirectionMap {
	signals := make([]correlation.Signal, 0, len(partials))
	for _, p := range partials {
		signals = append(signals, p.Signal())
	}
	return correlation.Build(signals, e.cfg.NoiseFloorUSD)
}

// Finalize runs phase two and returns the immutable scored wallet.
func (e *Engine) Finalize(p *Partial, peers correlation.DirectionMap) *domain.ScoredWallet {
	w := p.Input.Wallet
	sub := domain.SubScores{
		NetFlow:      p.NetFlow.Score,
		Velocity:     p.Velocity,
		Correlation:  Correlation(w.Key(), p.NetFlow.Direction, peers, e.cfg),
		ExchangeFlow: p.Exchange.Score,
	}
	return &domain.ScoredWallet{
		Wallet:               w,
		Address:              w.Address,
		Chain:                w.Chain,
		Label:                w.Label,
		Window:               p.Input.Window,
		ComputedAt:           p.Input.ComputedAt,
		Direction:            p.NetFlow.Direction,
		InflowUSD:            p.NetFlow.InflowUSD,
		OutflowUSD:           p.NetFlow.OutflowUSD,
		NetFlowUSD:           p.NetFlow.NetUSD,
		SubScores:            sub,
		Score:                sub.Composite(),
		ExchangeFlowFraction: p.Exchange.Fraction,
		Transactions:         p.Input.Transactions,
	}
}

// ScoreBatch scores a whole batch: local scores, barrier, correlation,
// composite. Output order follows input order.
func (e *Engine) ScoreBatch(inputs []Input) []*domain.ScoredWallet {
	partials := make([]*Partial, len(inputs))
	for i, in := range inputs {
		partials[i] = e.ScoreLocal(in)
	}
	peers := e.BuildContext(partials)

	out := make([]*domain.ScoredWallet, len(partials))
	for i, p := range partials {
		out[i] = e.Finalize(p, peers)
	}
	return out
}
