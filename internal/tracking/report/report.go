// Package report aggregates stored score history into per-wallet and
// portfolio summaries.
package report

import (
	"sort"
	"time"

	"github.com/vietddude/whalewatch/internal/core/domain"
)

// Day is one calendar day (UTC) of a wallet's history.
type Day struct {
	Date       string  `json:"date"`
	Snapshots  int     `json:"snapshots"`
	NetFlowUSD float64 `json:"net_flow_usd"`
	PeakScore  int     `json:"peak_score"`
	AvgScore   float64 `json:"avg_score"`
	Alerts     int     `json:"alerts_triggered"`
}

// Stats summarizes a set of snapshots. NetFlowUSD sums the per-scan window
// net flows, so overlapping windows count more than once.
type Stats struct {
	Snapshots         int              `json:"snapshots"`
	NetFlowUSD        float64          `json:"net_flow_usd"`
	PeakScore         int              `json:"peak_score"`
	AvgScore          float64          `json:"avg_score"`
	Alerts            int              `json:"alerts_triggered"`
	DominantDirection domain.Direction `json:"dominant_direction"`
}

// WalletReport is the history of one wallet over a period.
type WalletReport struct {
	Address     string       `json:"address"`
	Chain       domain.Chain `json:"chain"`
	Label       string       `json:"label,omitempty"`
	PeriodDays  int          `json:"period_days"`
	GeneratedAt time.Time    `json:"generated_at"`
	Summary     Stats        `json:"summary"`
	Daily       []Day        `json:"daily_breakdown"`
}

// WalletLine is one wallet in a portfolio summary.
type WalletLine struct {
	Address string       `json:"address"`
	Chain   domain.Chain `json:"chain"`
	Label   string       `json:"label,omitempty"`
	Stats
}

// Aggregate totals a portfolio summary.
type Aggregate struct {
	TotalNetFlowUSD   float64          `json:"total_net_flow_usd"`
	DominantDirection domain.Direction `json:"dominant_direction"`
	MostActiveChain   domain.Chain     `json:"most_active_chain,omitempty"`
	TotalAlerts       int              `json:"total_alerts"`
}

// SummaryReport covers every tracked wallet over a period.
type SummaryReport struct {
	PeriodDays  int          `json:"period_days"`
	GeneratedAt time.Time    `json:"generated_at"`
	Wallets     []WalletLine `json:"wallets"`
	Aggregate   Aggregate    `json:"aggregate"`
}

// ForWallet builds the report of one wallet from its snapshots.
func ForWallet(w *domain.Wallet, snaps []*domain.ScoreSnapshot, days int, now time.Time) *WalletReport {
	r := &WalletReport{
		Address:     w.Address,
		Chain:       w.Chain,
		Label:       w.Label,
		PeriodDays:  days,
		GeneratedAt: now,
		Summary:     statsOf(snaps),
		Daily:       []Day{},
	}

	byDay := make(map[string][]*domain.ScoreSnapshot)
	for _, s := range snaps {
		d := s.ComputedAt.UTC().Format(time.DateOnly)
		byDay[d] = append(byDay[d], s)
	}
	for d, group := range byDay {
		st := statsOf(group)
		r.Daily = append(r.Daily, Day{
			Date:       d,
			Snapshots:  st.Snapshots,
			NetFlowUSD: st.NetFlowUSD,
			PeakScore:  st.PeakScore,
			AvgScore:   st.AvgScore,
			Alerts:     st.Alerts,
		})
	}
	sort.Slice(r.Daily, func(i, j int) bool { return r.Daily[i].Date > r.Daily[j].Date })
	return r
}

// Summary builds the portfolio report. Wallets keep the given order; a
// wallet without history is listed with zero stats.
func Summary(wallets []*domain.Wallet, snaps []*domain.ScoreSnapshot, days int, now time.Time) *SummaryReport {
	byWallet := make(map[domain.WalletKey][]*domain.ScoreSnapshot)
	for _, s := range snaps {
		k := domain.WalletKey{Chain: s.Chain, Address: s.Address}
		byWallet[k] = append(byWallet[k], s)
	}

	r := &SummaryReport{PeriodDays: days, GeneratedAt: now, Wallets: []WalletLine{}}
	directions := make(map[domain.Direction]int)
	chainActivity := make(map[domain.Chain]int)
	for _, w := range wallets {
		st := statsOf(byWallet[w.Key()])
		r.Wallets = append(r.Wallets, WalletLine{Address: w.Address, Chain: w.Chain, Label: w.Label, Stats: st})
		r.Aggregate.TotalNetFlowUSD += st.NetFlowUSD
		r.Aggregate.TotalAlerts += st.Alerts
		if st.Snapshots > 0 {
			directions[st.DominantDirection]++
			chainActivity[w.Chain] += st.Snapshots
		}
	}
	r.Aggregate.DominantDirection = dominant(directions)

	best := 0
	for c, n := range chainActivity {
		if n > best || (n == best && c < r.Aggregate.MostActiveChain) {
			best = n
			r.Aggregate.MostActiveChain = c
		}
	}
	return r
}

func statsOf(snaps []*domain.ScoreSnapshot) Stats {
	st := Stats{Snapshots: len(snaps), DominantDirection: domain.DirectionNeutral}
	if len(snaps) == 0 {
		return st
	}
	total := 0
	directions := make(map[domain.Direction]int)
	for _, s := range snaps {
		st.NetFlowUSD += s.NetFlowUSD
		total += s.Total
		if s.Total > st.PeakScore {
			st.PeakScore = s.Total
		}
		if s.Alerted {
			st.Alerts++
		}
		directions[s.Direction]++
	}
	st.AvgScore = float64(total) / float64(len(snaps))
	st.DominantDirection = dominant(directions)
	return st
}

// dominant picks the most frequent direction. Ties and an empty set are
// neutral.
func dominant(counts map[domain.Direction]int) domain.Direction {
	best, bestN, tie := domain.DirectionNeutral, 0, false
	for d, n := range counts {
		switch {
		case n > bestN:
			best, bestN, tie = d, n, false
		case n == bestN:
			tie = true
		}
	}
	if tie {
		return domain.DirectionNeutral
	}
	return best
}
