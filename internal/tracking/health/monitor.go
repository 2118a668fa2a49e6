package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/whalewatch/internal/tracking/metrics"
	"github.com/vietddude/whalewatch/internal/tracking/stream"
)

// Pinger checks a backing service.
type Pinger interface {
	Health(ctx context.Context) error
}

// Monitor aggregates health from completed cycles and backing services.
// It satisfies stream.Observer.
type Monitor struct {
	interval   time.Duration
	now        func() time.Time
	startedAt  time.Time
	components map[string]Pinger

	mu        sync.RWMutex
	cycles    int
	lastCycle time.Time
	chains    map[string]ChainHealth
}

// NewMonitor creates a monitor for a stream polling every interval.
func NewMonitor(interval time.Duration, now func() time.Time) *Monitor {
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		interval:   interval,
		now:        now,
		startedAt:  now(),
		components: make(map[string]Pinger),
		chains:     make(map[string]ChainHealth),
	}
}

// AddComponent registers a backing service checked on every report.
func (m *Monitor) AddComponent(name string, p Pinger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = p
}

// CycleCompleted records per-chain figures of a finished cycle.
func (m *Monitor) CycleCompleted(res *stream.CycleResult) {
	chains := make(map[string]ChainHealth)
	for _, wr := range res.Results {
		code := string(wr.Wallet.Chain)
		h := chains[code]
		h.Chain = code
		h.Wallets++
		if wr.Scored != nil {
			h.Scored++
		}
		if wr.Err != nil {
			h.Errors++
		}
		if wr.Alert != nil {
			h.Alerts++
		}
		chains[code] = h
	}
	for code, h := range chains {
		// Evaluate Status
		switch {
		case h.Wallets > 0 && h.Errors == h.Wallets:
			h.Status = StatusCritical
		case h.Errors > 0:
			h.Status = StatusDegraded
		default:
			h.Status = StatusHealthy
		}
		chains[code] = h
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles++
	m.lastCycle = res.CompletedAt
	m.chains = chains
	metrics.LastCycleTimestamp.Set(float64(res.CompletedAt.Unix()))
}

// CheckHealth builds the current report. The stream is degraded when no
// cycle completed within three intervals and critical after ten.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.RLock()
	report := HealthReport{
		SystemStatus:    StatusHealthy,
		CyclesCompleted: m.cycles,
		Chains:          make(map[string]ChainHealth, len(m.chains)),
		Components:      make(map[string]SystemStatus, len(m.components)),
	}
	for code, h := range m.chains {
		report.Chains[code] = h
	}
	last := m.lastCycle
	components := make(map[string]Pinger, len(m.components))
	for name, p := range m.components {
		components[name] = p
	}
	m.mu.RUnlock()

	if !last.IsZero() {
		report.LastCycleAt = &last
	} else {
		last = m.startedAt
	}
	if m.interval > 0 {
		age := m.now().Sub(last)
		switch {
		case age > 10*m.interval:
			report.SystemStatus = StatusCritical
		case age > 3*m.interval:
			report.SystemStatus = StatusDegraded
		}
	}

	for _, h := range report.Chains {
		report.SystemStatus = worst(report.SystemStatus, h.Status)
	}
	for name, p := range components {
		status := StatusHealthy
		if err := p.Health(ctx); err != nil {
			status = StatusCritical
		}
		report.Components[name] = status
		report.SystemStatus = worst(report.SystemStatus, status)
	}
	return report
}

func worst(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
