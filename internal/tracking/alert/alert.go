// Package alert turns scored wallets into deduplicated alerts.
//
// A wallet moves from normal to alerted for the current time bucket when its
// composite score reaches the threshold and no alert exists yet for that
// bucket. The check-and-insert is delegated to the repository, which must
// perform it atomically.
package alert

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/notify"
	"github.com/vietddude/whalewatch/internal/infra/storage"
	"github.com/vietddude/whalewatch/internal/tracking/metrics"
)

// Severity tier lower bounds, inclusive.
const (
	InfoFloor     = 70
	WarningFloor  = 80
	CriticalFloor = 90
)

// DefaultThreshold is the minimum composite score that fires an alert.
const DefaultThreshold = InfoFloor

// SeverityFor maps a composite score to its tier.
func SeverityFor(score int) domain.Severity {
	switch {
	case score >= CriticalFloor:
		return domain.SeverityCritical
	case score >= WarningFloor:
		return domain.SeverityWarning
	case score >= InfoFloor:
		return domain.SeverityInfo
	default:
		return domain.SeverityNone
	}
}

// Bucket returns the dedup bucket of t for a window: floor(unix / seconds).
func Bucket(t time.Time, window time.Duration) int64 {
	secs := int64(window / time.Second)
	if secs <= 0 {
		secs = 1
	}
	u := t.Unix()
	b := u / secs
	if u < 0 && u%secs != 0 {
		b--
	}
	return b
}

// Status is the result of evaluating one scored wallet.
type Status string

const (
	StatusBelowThreshold Status = "below_threshold"
	StatusFired          Status = "fired"
	StatusDeduplicated   Status = "deduplicated"
)

// Outcome reports what Evaluate did. Alert is set when Status is fired.
type Outcome struct {
	Status Status
	Alert  *domain.Alert
}

// Config configures the alert engine.
type Config struct {
	Threshold     int           `yaml:"threshold"`
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
}

// Engine evaluates scored wallets against the threshold.
type Engine struct {
	cfg      Config
	repo     storage.AlertRepository
	notifier notify.Notifier
	log      *slog.Logger
	newID    func() string
}

// NewEngine creates an alert engine. notifier may be nil.
func NewEngine(cfg Config, repo storage.AlertRepository, notifier notify.Notifier, log *slog.Logger) *Engine {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		log:      log,
		newID:    func() string { return uuid.NewString() },
	}
}

// Threshold returns the configured firing threshold.
func (e *Engine) Threshold() int {
	return e.cfg.Threshold
}

// Evaluate fires, deduplicates or skips one scored wallet. A persistence
// failure is returned as a storage error; a notification failure is not.
func (e *Engine) Evaluate(ctx context.Context, sw *domain.ScoredWallet, now time.Time) (Outcome, error) {
	if sw.Score < e.cfg.Threshold {
		return Outcome{Status: StatusBelowThreshold}, nil
	}

	a := &domain.Alert{
		ID:            e.newID(),
		Address:       sw.Address,
		Chain:         sw.Chain,
		Label:         sw.Label,
		TriggeredAt:   now,
		Score:         sw.Score,
		Severity:      SeverityFor(sw.Score),
		Direction:     sw.Direction,
		WindowSeconds: int64(sw.Window / time.Second),
		Bucket:        Bucket(now, sw.Window),
		NetFlowUSD:    sw.NetFlowUSD,
		SubScores:     sw.SubScores,
	}

	inserted, err := e.repo.InsertIfAbsent(ctx, a)
	if err != nil {
		return Outcome{}, apperr.Wrap(apperr.KindStorage, "alert.persist", err)
	}
	if !inserted {
		metrics.AlertsDeduplicated.WithLabelValues(string(sw.Chain)).Inc()
		e.log.Debug("Alert deduplicated", "address", a.Address, "chain", a.Chain, "bucket", a.Bucket)
		return Outcome{Status: StatusDeduplicated}, nil
	}

	metrics.AlertsFired.WithLabelValues(string(a.Chain), string(a.Severity)).Inc()
	e.log.Info("Alert fired",
		"address", a.Address,
		"chain", a.Chain,
		"score", a.Score,
		"severity", a.Severity,
		"direction", a.Direction,
	)
	e.dispatch(ctx, a)
	return Outcome{Status: StatusFired, Alert: a}, nil
}

func (e *Engine) dispatch(ctx context.Context, a *domain.Alert) {
	if e.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(ctx, e.cfg.NotifyTimeout)
	defer cancel()

	err := e.notifier.Notify(nctx, a)
	a.WebhookSent = err == nil
	if err != nil {
		metrics.NotifyErrors.WithLabelValues(e.notifier.Name()).Inc()
		e.log.Warn("Alert notification failed", "id", a.ID, "notifier", e.notifier.Name(), "error", err)
	} else {
		metrics.NotificationsSent.WithLabelValues(e.notifier.Name()).Inc()
	}
	if err := e.repo.MarkNotified(ctx, a.ID, a.WebhookSent); err != nil {
		e.log.Warn("Failed to record notification outcome", "id", a.ID, "error", err)
	}
}

// Summarize aggregates the alerts of one scan.
func Summarize(alerts []*domain.Alert) domain.ScanSummary {
	var s domain.ScanSummary
	for _, a := range alerts {
		switch a.Direction {
		case domain.DirectionAccumulating:
			s.Accumulating++
		case domain.DirectionDistributing:
			s.Distributing++
		default:
			s.Neutral++
		}
		s.TopAlertScore = max(s.TopAlertScore, a.Score)
	}
	switch {
	case len(alerts) == 0:
		s.DominantSignal = domain.DominantNeutral
	case s.Accumulating > s.Distributing:
		s.DominantSignal = domain.DominantAccumulating
	case s.Distributing > s.Accumulating:
		s.DominantSignal = domain.DominantDistributing
	default:
		s.DominantSignal = domain.DominantMixed
	}
	return s
}
