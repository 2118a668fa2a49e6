package stream

import (
	"time"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
)

// Error stages.
const (
	StageRegistry = "registry"
	StageFetch    = "fetch"
	StagePersist  = "persist"
)

// StartPayload is the payload of stream_start.
type StartPayload struct {
	Chains           []domain.Chain `json:"chains"`
	WindowSeconds    int64          `json:"window_seconds"`
	IntervalSeconds  int64          `json:"interval_seconds"`
	HeartbeatSeconds int64          `json:"heartbeat_seconds"`
	Threshold        int            `json:"threshold"`
	MaxCycles        int            `json:"max_cycles,omitempty"`
}

// CycleStartPayload is the payload of cycle_start.
type CycleStartPayload struct {
	Cycle int `json:"cycle"`
}

// AlertPayload is the payload of whale_alert.
type AlertPayload struct {
	Cycle int `json:"cycle"`
	*domain.Alert
	InflowUSD            float64 `json:"inflow_usd"`
	OutflowUSD           float64 `json:"outflow_usd"`
	ExchangeFlowFraction float64 `json:"exchange_flow_fraction"`
	TxCount              int     `json:"tx_count"`
}

// ActivityPayload is the payload of whale_activity.
type ActivityPayload struct {
	Cycle int `json:"cycle"`
	*domain.ScoredWallet
	Severity     domain.Severity `json:"severity"`
	TxCount      int             `json:"tx_count"`
	Deduplicated bool            `json:"deduplicated"`
}

// ErrorPayload is the payload of a wallet or cycle scoped error event.
type ErrorPayload struct {
	Cycle             int          `json:"cycle"`
	Address           string       `json:"address,omitempty"`
	Chain             domain.Chain `json:"chain,omitempty"`
	Stage             string       `json:"stage"`
	Error             apperr.Kind  `json:"error"`
	Message           string       `json:"message"`
	RetryAfterSeconds int          `json:"retry_after_seconds,omitempty"`
}

// HeartbeatPayload is the payload of heartbeat.
type HeartbeatPayload struct {
	CyclesCompleted int       `json:"cycles_completed"`
	TotalAlerts     int       `json:"total_alerts"`
	UptimeSeconds   int64     `json:"uptime_seconds"`
	NextCycleAt     time.Time `json:"next_cycle_at"`
}

// CycleCompletePayload is the payload of cycle_complete.
type CycleCompletePayload struct {
	Cycle        int                `json:"cycle"`
	Wallets      int                `json:"wallets"`
	Scored       int                `json:"scored"`
	Alerts       int                `json:"alerts"`
	Activity     int                `json:"activity"`
	Deduplicated int                `json:"deduplicated"`
	Errors       int                `json:"errors"`
	DurationMS   int64              `json:"duration_ms"`
	Summary      domain.ScanSummary `json:"summary"`
}

// EndPayload is the payload of stream_end.
type EndPayload struct {
	CyclesCompleted int    `json:"cycles_completed"`
	TotalAlerts     int    `json:"total_alerts"`
	Reason          string `json:"reason"`
}

func newErrorPayload(cycle int, w *domain.Wallet, stage string, err error) ErrorPayload {
	p := ErrorPayload{
		Cycle:             cycle,
		Stage:             stage,
		Error:             apperr.KindOf(err),
		Message:           err.Error(),
		RetryAfterSeconds: int(apperr.RetryAfterOf(err) / time.Second),
	}
	if w != nil {
		p.Address = w.Address
		p.Chain = w.Chain
	}
	return p
}
