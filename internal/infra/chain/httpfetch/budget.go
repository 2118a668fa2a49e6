package httpfetch

import (
	"sync"
	"time"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/tracking/metrics"
)

// UsageStats holds quota usage statistics.
type UsageStats struct {
	TotalCalls      int
	CallsPerHour    int
	DailyLimit      int
	RemainingCalls  int
	UsagePercentage float64
	NextResetAt     time.Time
}

// Budget tracks calls against a daily upstream quota that resets at
// midnight UTC. A zero limit means unlimited.
type Budget struct {
	mu            sync.Mutex
	chain         string
	dailyLimit    int
	totalCalls    int
	callsThisHour int
	hourStartTime time.Time
	methodCalls   map[string]int
	resetTime     time.Time
	now           func() time.Time
}

// NewBudget creates a budget for one chain.
func NewBudget(chain string, dailyLimit int, now func() time.Time) *Budget {
	if now == nil {
		now = time.Now
	}
	b := &Budget{chain: chain, dailyLimit: dailyLimit, now: now}
	b.resetUnsafe()
	return b
}

// Allow reports whether another call fits into today's quota. An exhausted
// budget is a rate_limited error carrying the time until reset.
func (b *Budget) Allow(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollUnsafe()

	if b.dailyLimit <= 0 || b.totalCalls < b.dailyLimit {
		return nil
	}
	return &apperr.Error{
		Kind:       apperr.KindRateLimited,
		Op:         op,
		Message:    "daily upstream quota exhausted",
		RetryAfter: b.resetTime.Sub(b.now()),
		Details:    map[string]any{"daily_limit": b.dailyLimit, "reset_at": b.resetTime},
	}
}

// RecordCall records a call for quota tracking.
func (b *Budget) RecordCall(method string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollUnsafe()

	b.totalCalls++
	b.callsThisHour++
	b.methodCalls[method]++
	if b.dailyLimit > 0 {
		metrics.UpstreamQuotaUsage.WithLabelValues(b.chain).Set(float64(b.totalCalls) / float64(b.dailyLimit) * 100)
	}
}

// Usage returns usage statistics.
func (b *Budget) Usage() UsageStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollUnsafe()

	stats := UsageStats{
		TotalCalls:   b.totalCalls,
		CallsPerHour: b.callsThisHour,
		DailyLimit:   b.dailyLimit,
		NextResetAt:  b.resetTime,
	}
	if b.dailyLimit > 0 {
		stats.RemainingCalls = max(b.dailyLimit-b.totalCalls, 0)
		stats.UsagePercentage = float64(b.totalCalls) / float64(b.dailyLimit) * 100
	}
	return stats
}

func (b *Budget) rollUnsafe() {
	now := b.now()
	if !now.Before(b.resetTime) {
		b.resetUnsafe()
		return
	}
	if now.Sub(b.hourStartTime) >= time.Hour {
		b.callsThisHour = 0
		b.hourStartTime = now
	}
}

func (b *Budget) resetUnsafe() {
	now := b.now().UTC()
	b.totalCalls = 0
	b.callsThisHour = 0
	b.hourStartTime = now
	b.methodCalls = make(map[string]int)
	b.resetTime = time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}
