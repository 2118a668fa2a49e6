package httpfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
)

const addr = "0x1111111111111111111111111111111111111111"

var fastRetry = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    time.Millisecond,
	MaxDelay:        5 * time.Millisecond,
	BackoffMultiple: 2,
}

func newTestFetcher(t *testing.T, h http.HandlerFunc) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	f, err := New(Config{Chain: domain.ChainEthereum, URL: srv.URL, APIKey: "key", Retry: fastRetry})
	require.NoError(t, err)
	return f
}

func TestFetch_NormalisesAndFiltersWindow(t *testing.T) {
	from := time.Unix(1_700_000_000, 0).UTC()
	to := from.Add(24 * time.Hour)

	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/eth/addresses/"+addr+"/transactions", r.URL.Path)
		assert.Equal(t, "1700000000", r.URL.Query().Get("from"))
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"transactions":[
			{"hash":"0xb","timestamp":1700003600,"from":"0xAAAA","to":"` + addr + `","value_native":"1.5","value_usd":5000,"kind":"erc20_transfer"},
			{"hash":"0xa","timestamp":1700000100,"from":"` + addr + `","to":"0xbbbb","value_native":"2","value_usd":7000,"kind":"transfer"},
			{"hash":"0xc","timestamp":1600000000,"from":"0xcccc","to":"` + addr + `","value_usd":1},
			{"hash":"","timestamp":1700000200,"value_usd":1}
		]}`))
	})

	txs, err := f.Fetch(context.Background(), addr, from, to)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "0xa", txs[0].Hash)
	assert.Equal(t, "0xb", txs[1].Hash)
	assert.Equal(t, "0xaaaa", txs[1].From)
	assert.Equal(t, domain.TxKindTokenTransfer, txs[1].Kind)
	assert.Equal(t, "1.5", txs[1].ValueNative.String())
}

func TestFetch_InvalidAddressBeforeIO(t *testing.T) {
	var calls atomic.Int32
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })

	_, err := f.Fetch(context.Background(), "0x123", time.Now().Add(-time.Hour), time.Now())
	assert.Equal(t, apperr.KindInput, apperr.KindOf(err))
	assert.Zero(t, calls.Load())
}

func TestFetch_StatusClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   apperr.Kind
		calls  int32
	}{
		{http.StatusUnauthorized, apperr.KindAuth, 1},
		{http.StatusForbidden, apperr.KindAuth, 1},
		{http.StatusBadRequest, apperr.KindUpstream, 1},
		{http.StatusTooManyRequests, apperr.KindRateLimited, 3},
		{http.StatusServiceUnavailable, apperr.KindNetwork, 3},
	}
	for _, tc := range cases {
		var calls atomic.Int32
		f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(tc.status)
		})
		_, err := f.Fetch(context.Background(), addr, time.Now().Add(-time.Hour), time.Now())
		require.Error(t, err, "status %d", tc.status)
		assert.Equal(t, tc.kind, apperr.KindOf(err), "status %d", tc.status)
		assert.Equal(t, tc.calls, calls.Load(), "status %d", tc.status)
	}
}

func TestFetch_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"transactions":[]}`))
	})

	txs, err := f.Fetch(context.Background(), addr, time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWalletAgeDays(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/eth/addresses/"+addr+"/age", r.URL.Path)
		_, _ = w.Write([]byte(`{"age_days":400}`))
	})
	days, err := f.WalletAgeDays(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, 400, days)

	unknown := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	days, err = unknown.WalletAgeDays(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, domain.AgeUnknown, days)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("soon"))
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(Config{Chain: domain.ChainBitcoin})
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
}
