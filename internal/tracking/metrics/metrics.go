package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal tracks completed poll cycles
	CyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whalewatch_cycles_total",
			Help: "Total number of completed poll cycles",
		},
	)

	// CycleDuration tracks how long one poll cycle takes
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "whalewatch_cycle_duration_seconds",
			Help:    "Poll cycle duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// WalletsScored tracks scored wallets per chain
	WalletsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalewatch_wallets_scored_total",
			Help: "Total number of wallet scores computed",
		},
		[]string{"chain"},
	)

	// WalletErrors tracks per-wallet failures by stage and error kind
	WalletErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalewatch_wallet_errors_total",
			Help: "Total number of per-wallet failures",
		},
		[]string{"chain", "stage", "kind"},
	)

	// AlertsFired tracks alerts that passed deduplication
	AlertsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalewatch_alerts_fired_total",
			Help: "Total number of alerts fired",
		},
		[]string{"chain", "severity"},
	)

	// AlertsDeduplicated tracks alerts suppressed by the dedup window
	AlertsDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalewatch_alerts_deduplicated_total",
			Help: "Total number of alerts suppressed within their window",
		},
		[]string{"chain"},
	)

	// NotifyErrors tracks failed notifications per notifier
	NotifyErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalewatch_notify_errors_total",
			Help: "Total number of failed alert notifications",
		},
		[]string{"notifier"},
	)

	// CacheLookups tracks fingerprint cache results (hit, miss, shared)
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalewatch_cache_lookups_total",
			Help: "Total number of fingerprint cache lookups",
		},
		[]string{"result"},
	)

	// CacheErrors tracks cache store failures per operation
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalewatch_cache_errors_total",
			Help: "Total number of cache store failures",
		},
		[]string{"op"},
	)

	// UpstreamCalls tracks calls to upstream data sources
	UpstreamCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalewatch_upstream_calls_total",
			Help: "Total number of upstream data source calls",
		},
		[]string{"chain", "method"},
	)

	// UpstreamErrors tracks upstream failures by error kind
	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalewatch_upstream_errors_total",
			Help: "Total number of upstream data source errors",
		},
		[]string{"chain", "kind"},
	)

	// UpstreamLatency tracks upstream call latency
	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whalewatch_upstream_latency_seconds",
			Help:    "Upstream call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "method"},
	)

	// WalletScore tracks the latest composite score per wallet
	WalletScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "whalewatch_wallet_score",
			Help: "Latest composite score of a tracked wallet",
		},
		[]string{"chain", "address"},
	)

	// EventsEmitted tracks stream events written by type
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalewatch_events_emitted_total",
			Help: "Total number of stream events written",
		},
		[]string{"type"},
	)

	// NotificationsSent tracks delivered alert notifications
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whalewatch_notifications_sent_total",
			Help: "Total number of alert notifications delivered",
		},
		[]string{"notifier"},
	)

	// DBConnectionPoolUsage tracks open connections as a percentage of the pool
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "whalewatch_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)

	// LastCycleTimestamp records when the last poll cycle completed
	LastCycleTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "whalewatch_last_cycle_timestamp_seconds",
			Help: "Unix time of the last completed poll cycle",
		},
	)

	// UpstreamQuotaUsage tracks the share of the daily upstream quota used
	UpstreamQuotaUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "whalewatch_upstream_quota_usage_percent",
			Help: "Daily upstream quota usage percentage",
		},
		[]string{"chain"},
	)
)
