// Package notify delivers fired alerts to external sinks.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/whalewatch/internal/core/domain"
)

// PayloadVersion is the version of the alert payload schema.
const PayloadVersion = "1"

// Notifier sends a fired alert to an external sink.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert *domain.Alert) error
}

// Payload is the versioned JSON body delivered to every sink.
type Payload struct {
	Version       string           `json:"version"`
	Event         string           `json:"event"`
	ID            string           `json:"id"`
	Address       string           `json:"address"`
	Chain         domain.Chain     `json:"chain"`
	Label         string           `json:"label,omitempty"`
	Score         int              `json:"score"`
	Severity      domain.Severity  `json:"severity"`
	Direction     domain.Direction `json:"direction"`
	NetFlowUSD    float64          `json:"net_flow_usd"`
	WindowSeconds int64            `json:"window_seconds"`
	Breakdown     domain.SubScores `json:"score_breakdown"`
	TriggeredAt   time.Time        `json:"triggered_at"`
}

// NewPayload builds the delivery payload of an alert.
func NewPayload(a *domain.Alert) Payload {
	return Payload{
		Version:       PayloadVersion,
		Event:         string(domain.EventTypeAlert),
		ID:            a.ID,
		Address:       a.Address,
		Chain:         a.Chain,
		Label:         a.Label,
		Score:         a.Score,
		Severity:      a.Severity,
		Direction:     a.Direction,
		NetFlowUSD:    a.NetFlowUSD,
		WindowSeconds: a.WindowSeconds,
		Breakdown:     a.SubScores,
		TriggeredAt:   a.TriggeredAt,
	}
}

// Multi fans an alert out to several notifiers. Every sink is attempted;
// the joined error reports the ones that failed.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Notify(ctx context.Context, alert *domain.Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
