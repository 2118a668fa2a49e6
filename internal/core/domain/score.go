package domain

import "time"

// Direction is the net movement of value for a wallet over a window.
type Direction string

const (
	DirectionAccumulating Direction = "accumulating"
	DirectionDistributing Direction = "distributing"
	DirectionNeutral      Direction = "neutral"
)

// Band maxima for each sub-score. They sum to MaxScore.
const (
	MaxNetFlow      = 40
	MaxVelocity     = 25
	MaxCorrelation  = 20
	MaxExchangeFlow = 15
	MaxScore        = 100
)

// SubScores holds the four independently bounded components of a score.
type SubScores struct {
	NetFlow      int `json:"net_flow"`
	Velocity     int `json:"velocity"`
	Correlation  int `json:"correlation"`
	ExchangeFlow int `json:"exchange_flow"`
}

// Composite returns the sum of the components clamped to [0, MaxScore].
func (s SubScores) Composite() int {
	total := s.NetFlow + s.Velocity + s.Correlation + s.ExchangeFlow
	return max(0, min(total, MaxScore))
}

// ScoredWallet is the result of scoring one wallet in one scan.
// Score is fixed at creation and never updated.
type ScoredWallet struct {
	Wallet               *Wallet       `json:"-"`
	Address              string        `json:"address"`
	Chain                Chain         `json:"chain"`
	Label                string        `json:"label,omitempty"`
	Window               time.Duration `json:"-"`
	ComputedAt           time.Time     `json:"computed_at"`
	Direction            Direction     `json:"direction"`
	InflowUSD            float64       `json:"inflow_usd"`
	OutflowUSD           float64       `json:"outflow_usd"`
	NetFlowUSD           float64       `json:"net_flow_usd"`
	SubScores            SubScores     `json:"score_breakdown"`
	Score                int           `json:"score"`
	ExchangeFlowFraction float64       `json:"exchange_flow_fraction"`
	Transactions         []Transaction `json:"-"`
}

// ScoreSnapshot is a persisted score history row.
type ScoreSnapshot struct {
	Address       string    `db:"address"`
	Chain         Chain     `db:"chain"`
	ComputedAt    time.Time `db:"computed_at"`
	WindowSeconds int64     `db:"window_seconds"`
	Total         int       `db:"total_score"`
	NetFlow       int       `db:"net_flow"`
	Velocity      int       `db:"velocity"`
	Correlation   int       `db:"correlation"`
	ExchangeFlow  int       `db:"exchange_flow"`
	NetFlowUSD    float64   `db:"net_flow_usd"`
	Direction     Direction `db:"direction"`
	Alerted       bool      `db:"alert_triggered"`
}

// SnapshotOf converts a scored wallet into its history row.
func SnapshotOf(sw *ScoredWallet, alerted bool) *ScoreSnapshot {
	return &ScoreSnapshot{
		Address:       sw.Address,
		Chain:         sw.Chain,
		ComputedAt:    sw.ComputedAt,
		WindowSeconds: int64(sw.Window / time.Second),
		Total:         sw.Score,
		NetFlow:       sw.SubScores.NetFlow,
		Velocity:      sw.SubScores.Velocity,
		Correlation:   sw.SubScores.Correlation,
		ExchangeFlow:  sw.SubScores.ExchangeFlow,
		NetFlowUSD:    sw.NetFlowUSD,
		Direction:     sw.Direction,
		Alerted:       alerted,
	}
}
