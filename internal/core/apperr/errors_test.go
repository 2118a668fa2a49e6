package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("fetch wallet: %w", &Error{Kind: KindRateLimited, RetryAfter: 30 * time.Second})

	assert.Equal(t, KindRateLimited, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, RateLimited))
	assert.False(t, errors.Is(wrapped, Network))
	assert.Equal(t, 30*time.Second, RetryAfterOf(wrapped))
	assert.True(t, Retryable(wrapped))

	assert.Equal(t, KindNetwork, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitAlerts},
		{Wrap(KindAuth, "fetch", errors.New("401")), ExitUpstream},
		{Wrap(KindNetwork, "fetch", errors.New("timeout")), ExitNetwork},
		{New(KindInput, "wallet add", "invalid address %q", "0x1"), ExitData},
		{New(KindConfig, "load", "bad bands"), ExitConfig},
		{Wrap(KindStorage, "alerts", errors.New("conn refused")), ExitStorage},
		{errors.New("anything else"), ExitNoAlerts},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "err=%v", tt.err)
	}
}

func TestErrorMessage(t *testing.T) {
	err := Wrap(KindStorage, "cache get", errors.New("connection reset"))
	assert.Equal(t, "cache get: connection reset", err.Error())

	p := Payload(New(KindExists, "wallet add", "already tracked"))
	assert.Equal(t, "already_exists", p["error"])
	assert.Equal(t, "wallet add: already tracked", p["message"])
}
