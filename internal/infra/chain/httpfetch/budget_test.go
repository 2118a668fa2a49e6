package httpfetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/whalewatch/internal/core/apperr"
)

func TestBudget_ExhaustsAndResetsAtMidnight(t *testing.T) {
	now := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)
	b := NewBudget("ETH", 2, func() time.Time { return now })

	require.NoError(t, b.Allow("test"))
	b.RecordCall("transactions")
	b.RecordCall("age")

	err := b.Allow("test")
	require.Error(t, err)
	assert.Equal(t, apperr.KindRateLimited, apperr.KindOf(err))
	assert.Equal(t, 2*time.Hour, apperr.RetryAfterOf(err))

	usage := b.Usage()
	assert.Equal(t, 2, usage.TotalCalls)
	assert.Equal(t, 0, usage.RemainingCalls)
	assert.InDelta(t, 100.0, usage.UsagePercentage, 0.001)

	now = now.Add(2 * time.Hour)
	assert.NoError(t, b.Allow("test"))
	assert.Zero(t, b.Usage().TotalCalls)
}

func TestBudget_HourlyCounter(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b := NewBudget("ETH", 0, func() time.Time { return now })
	b.RecordCall("transactions")
	assert.Equal(t, 1, b.Usage().CallsPerHour)

	now = now.Add(time.Hour)
	assert.Equal(t, 0, b.Usage().CallsPerHour)
	assert.Equal(t, 1, b.Usage().TotalCalls)
}

func TestBudget_UnlimitedAlwaysAllows(t *testing.T) {
	b := NewBudget("BTC", 0, nil)
	for i := 0; i < 100; i++ {
		b.RecordCall("transactions")
	}
	assert.NoError(t, b.Allow("test"))
}
