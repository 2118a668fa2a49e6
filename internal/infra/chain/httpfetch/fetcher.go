// Package httpfetch implements chain.Fetcher against an HTTP indexer that
// serves normalised wallet transactions.
//
// Endpoints, relative to the configured base URL:
//
//	GET /v1/{chain}/addresses/{address}/transactions?from={unix}&to={unix}
//	GET /v1/{chain}/addresses/{address}/age
package httpfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/chain"
	"github.com/vietddude/whalewatch/internal/tracking/metrics"
)

// Config configures one chain fetcher.
type Config struct {
	Chain      domain.Chain  `yaml:"chain"`
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	RateLimit  float64       `yaml:"rate_limit"`  // requests per second, 0 = unlimited
	DailyQuota int           `yaml:"daily_quota"` // 0 = unlimited
	Retry      RetryConfig   `yaml:"retry"`
}

// Fetcher is an HTTP backed chain.Fetcher.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	budget  *Budget
	log     *slog.Logger
}

var _ chain.Fetcher = (*Fetcher)(nil)

// New creates a fetcher.
func New(cfg Config) (*Fetcher, error) {
	if _, err := url.Parse(cfg.URL); err != nil || cfg.URL == "" {
		return nil, apperr.New(apperr.KindConfig, "httpfetch", "invalid url %q for chain %s", cfg.URL, cfg.Chain)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: limiter,
		budget:  NewBudget(string(cfg.Chain), cfg.DailyQuota, nil),
		log:     slog.Default().With("chain", cfg.Chain),
	}, nil
}

func (f *Fetcher) Chain() domain.Chain { return f.cfg.Chain }

func (f *Fetcher) ValidateAddress(address string) bool {
	return chain.ValidAddress(f.cfg.Chain, address)
}

type wireTx struct {
	Hash        string  `json:"hash"`
	Timestamp   int64   `json:"timestamp"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	ValueNative string  `json:"value_native"`
	ValueUSD    float64 `json:"value_usd"`
	FeeUSD      float64 `json:"fee_usd"`
	Kind        string  `json:"kind"`
	BlockNumber uint64  `json:"block_number"`
	TokenSymbol string  `json:"token_symbol"`
}

type txResponse struct {
	Transactions []wireTx `json:"transactions"`
}

type ageResponse struct {
	AgeDays   *int   `json:"age_days"`
	FirstSeen *int64 `json:"first_seen"`
}

func (f *Fetcher) Fetch(ctx context.Context, address string, from, to time.Time) ([]domain.Transaction, error) {
	if !f.ValidateAddress(address) {
		return nil, apperr.New(apperr.KindInput, "httpfetch.fetch", "invalid %s address %s", f.cfg.Chain, address)
	}
	q := url.Values{}
	q.Set("from", strconv.FormatInt(from.Unix(), 10))
	q.Set("to", strconv.FormatInt(to.Unix(), 10))

	var resp txResponse
	if err := f.get(ctx, "transactions", f.path(address, "transactions"), q, &resp); err != nil {
		return nil, err
	}

	txs := make([]domain.Transaction, 0, len(resp.Transactions))
	for _, w := range resp.Transactions {
		tx, err := w.toDomain(f.cfg.Chain)
		if err != nil {
			f.log.Warn("Skipping malformed transaction", "hash", w.Hash, "error", err)
			continue
		}
		if tx.Timestamp.Before(from) || tx.Timestamp.After(to) {
			continue
		}
		txs = append(txs, tx)
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Timestamp.Before(txs[j].Timestamp) })
	return txs, nil
}

func (f *Fetcher) WalletAgeDays(ctx context.Context, address string) (int, error) {
	var resp ageResponse
	if err := f.get(ctx, "age", f.path(address, "age"), nil, &resp); err != nil {
		return domain.AgeUnknown, err
	}
	switch {
	case resp.AgeDays != nil:
		return max(*resp.AgeDays, 0), nil
	case resp.FirstSeen != nil:
		days := int(time.Since(time.Unix(*resp.FirstSeen, 0)) / (24 * time.Hour))
		return max(days, 0), nil
	}
	return domain.AgeUnknown, nil
}

// Usage returns the upstream quota usage.
func (f *Fetcher) Usage() UsageStats { return f.budget.Usage() }

func (f *Fetcher) path(address, resource string) string {
	return fmt.Sprintf("%s/v1/%s/addresses/%s/%s",
		strings.TrimRight(f.cfg.URL, "/"),
		strings.ToLower(string(f.cfg.Chain)),
		url.PathEscape(address),
		resource,
	)
}

func (f *Fetcher) get(ctx context.Context, method, endpoint string, q url.Values, out any) error {
	chainLabel := string(f.cfg.Chain)
	// Checked once per logical call so an exhausted quota is not retried.
	if err := f.budget.Allow("httpfetch." + method); err != nil {
		return err
	}
	return callWithRetry(ctx, f.cfg.Retry, func(ctx context.Context) error {
		if err := f.limiter.Wait(ctx); err != nil {
			return apperr.Wrap(apperr.KindNetwork, "httpfetch."+method, err)
		}
		f.budget.RecordCall(method)
		start := time.Now()
		metrics.UpstreamCalls.WithLabelValues(chainLabel, method).Inc()
		err := f.do(ctx, method, endpoint, q, out)
		metrics.UpstreamLatency.WithLabelValues(chainLabel, method).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.UpstreamErrors.WithLabelValues(chainLabel, string(apperr.KindOf(err))).Inc()
			f.log.Debug("Upstream call failed", "method", method, "error", err)
		}
		return err
	})
}

func (f *Fetcher) do(ctx context.Context, method, endpoint string, q url.Values, out any) error {
	op := "httpfetch." + method
	u := endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindConfig, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if f.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.cfg.APIKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindNetwork, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return apperr.Wrap(apperr.KindNetwork, op, err)
	}
	if err := classifyStatus(op, resp, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperr.Wrap(apperr.KindUpstream, op, fmt.Errorf("parse response: %w", err))
	}
	return nil
}

// classifyStatus maps an HTTP status to an error kind.
func classifyStatus(op string, resp *http.Response, body []byte) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}
	snippet := string(body)
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}
	e := &apperr.Error{
		Op:      op,
		Message: fmt.Sprintf("http %d", code),
		Details: map[string]any{"status": code, "body": snippet},
	}
	switch {
	case code == http.StatusTooManyRequests:
		e.Kind = apperr.KindRateLimited
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		e.Kind = apperr.KindAuth
	case code == http.StatusNotFound:
		e.Kind = apperr.KindNotFound
	case code >= 500:
		e.Kind = apperr.KindNetwork
	default:
		e.Kind = apperr.KindUpstream
	}
	return e
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(time.Until(t), 0)
	}
	return 0
}
