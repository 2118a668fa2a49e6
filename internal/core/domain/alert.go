package domain

import "time"

// Severity is the alert tier derived from a composite score.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a persisted threshold crossing. At most one exists per
// (Address, Chain, Bucket).
type Alert struct {
	ID            string    `json:"id"             db:"id"`
	Address       string    `json:"address"        db:"address"`
	Chain         Chain     `json:"chain"          db:"chain"`
	Label         string    `json:"label"          db:"label"`
	TriggeredAt   time.Time `json:"triggered_at"   db:"triggered_at"`
	Score         int       `json:"score"          db:"score"`
	Severity      Severity  `json:"severity"       db:"severity"`
	Direction     Direction `json:"direction"      db:"direction"`
	WindowSeconds int64     `json:"window_seconds" db:"window_seconds"`
	Bucket        int64     `json:"bucket"         db:"bucket"`
	NetFlowUSD    float64   `json:"net_flow_usd"   db:"net_flow_usd"`
	SubScores     SubScores `json:"score_breakdown" db:"-"`
	WebhookSent   bool      `json:"webhook_sent"   db:"webhook_sent"`
}

// DominantSignal summarises the alert directions of one scan.
type DominantSignal string

const (
	DominantAccumulating DominantSignal = "accumulating"
	DominantDistributing DominantSignal = "distributing"
	// DominantMixed is used when both directions have the same non-zero count.
	DominantMixed DominantSignal = "mixed"
	// DominantNeutral is used when no alerts fired.
	DominantNeutral DominantSignal = "neutral"
)

// ScanSummary aggregates the alerts of one scan.
type ScanSummary struct {
	Accumulating   int            `json:"accumulating"`
	Distributing   int            `json:"distributing"`
	Neutral        int            `json:"neutral"`
	DominantSignal DominantSignal `json:"dominant_signal"`
	TopAlertScore  int            `json:"top_alert_score"`
}
