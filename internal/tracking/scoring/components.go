package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/tracking/correlation"
)

// NetFlowResult is the output of the net-flow component.
type NetFlowResult struct {
	Score      int
	Direction  domain.Direction
	InflowUSD  float64
	OutflowUSD float64
	NetUSD     float64
}

// ExchangeResult is the output of the exchange-flow component.
type ExchangeResult struct {
	Score         int
	DepositUSD    float64 // wallet -> exchange
	WithdrawalUSD float64 // exchange -> wallet
	Fraction      float64
	Direction     domain.Direction
}

// AgeWeight returns the net-flow multiplier for a wallet age in days.
func AgeWeight(ageDays int) float64 {
	switch {
	case ageDays < 0:
		return 1.0
	case ageDays < 30:
		return 1.3
	case ageDays < 180:
		return 1.1
	case ageDays < 730:
		return 1.0
	default:
		return 0.9
	}
}

// DirectionOf maps a signed amount to a direction.
func DirectionOf(net float64) domain.Direction {
	switch {
	case net > 0:
		return domain.DirectionAccumulating
	case net < 0:
		return domain.DirectionDistributing
	}
	return domain.DirectionNeutral
}

// Flows splits txs into inflow and outflow USD relative to address.
// Self transfers are ignored.
func Flows(address string, txs []domain.Transaction) (inflow, outflow float64) {
	for _, tx := range txs {
		in := sameAddress(tx.To, address)
		out := sameAddress(tx.From, address)
		switch {
		case in && out:
		case in:
			inflow += tx.ValueUSD
		case out:
			outflow += tx.ValueUSD
		}
	}
	return inflow, outflow
}

// NetFlow scores the magnitude of net flow, weighted by wallet age.
func NetFlow(address string, ageDays int, txs []domain.Transaction, cfg Config) NetFlowResult {
	inflow, outflow := Flows(address, txs)
	net := inflow - outflow

	raw := math.Log10(math.Max(math.Abs(net), 1)) * AgeWeight(ageDays)
	scale := float64(cfg.NetFlowMax) / math.Log10(cfg.NetFlowSaturationUSD)

	return NetFlowResult{
		Score:      clamp(round(raw*scale), 0, cfg.NetFlowMax),
		Direction:  DirectionOf(net),
		InflowUSD:  inflow,
		OutflowUSD: outflow,
		NetUSD:     net,
	}
}

// Velocity scores window activity against the 30-day daily average.
// The window volume is normalised to a daily rate first.
func Velocity(windowVolumeUSD, avg30dDailyUSD float64, window time.Duration, cfg Config) int {
	if windowVolumeUSD <= 0 || window <= 0 {
		return 0
	}
	daily := windowVolumeUSD * float64(24*time.Hour) / float64(window)
	ratio := daily / math.Max(avg30dDailyUSD, cfg.VelocityFloorUSD)
	if ratio < 1.0 {
		return 0
	}
	k := float64(cfg.VelocityMax) / math.Log2(cfg.VelocitySaturation)
	return clamp(round(math.Log2(ratio)*k), 0, cfg.VelocityMax)
}

// Correlation scores how many active peers move the same way. It needs the
// direction map of the whole batch.
func Correlation(self domain.WalletKey, dir domain.Direction, peers correlation.DirectionMap, cfg Config) int {
	if dir == domain.DirectionNeutral {
		return 0
	}
	same, active := peers.Agreement(self, dir)
	if active < cfg.MinActivePeers {
		return 0
	}
	ratio := float64(same) / float64(max(active, 1))
	return clamp(round(ratio*float64(cfg.CorrelationMax)), 0, cfg.CorrelationMax)
}

// ExchangeFlow scores volume moving between the wallet and known exchanges.
func ExchangeFlow(
	address string,
	txs []domain.Transaction,
	exchanges ExchangeSet,
	netDirection domain.Direction,
	cfg Config,
) ExchangeResult {
	var res ExchangeResult
	var total float64
	for _, tx := range txs {
		total += tx.ValueUSD
		switch {
		case sameAddress(tx.From, address) && exchanges.Contains(tx.To):
			res.DepositUSD += tx.ValueUSD
		case sameAddress(tx.To, address) && exchanges.Contains(tx.From):
			res.WithdrawalUSD += tx.ValueUSD
		}
	}

	volume := res.DepositUSD + res.WithdrawalUSD
	if total > 0 {
		res.Fraction = math.Min(volume/total, 1.0)
	}
	// Withdrawing from exchanges means accumulating; depositing means selling.
	res.Direction = DirectionOf(res.WithdrawalUSD - res.DepositUSD)

	scale := float64(cfg.ExchangeBaseMax) / math.Log10(cfg.ExchangeSaturationUSD)
	base := clamp(round(math.Log10(math.Max(volume, 1))*scale), 0, cfg.ExchangeBaseMax)
	if res.Direction != domain.DirectionNeutral && res.Direction == netDirection {
		base += cfg.ExchangeBonus
	}
	res.Score = clamp(base, 0, cfg.ExchangeFlowMax)
	return res
}

func sameAddress(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

func round(f float64) int {
	return int(math.Round(f))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
