package config

import (
	"time"

	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/chain/httpfetch"
	"github.com/vietddude/whalewatch/internal/infra/notify"
	redisclient "github.com/vietddude/whalewatch/internal/infra/redis"
	"github.com/vietddude/whalewatch/internal/infra/storage/postgres"
	"github.com/vietddude/whalewatch/internal/tracking/alert"
	"github.com/vietddude/whalewatch/internal/tracking/fetch"
	"github.com/vietddude/whalewatch/internal/tracking/scoring"
	"github.com/vietddude/whalewatch/internal/tracking/stream"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePebble   = "pebble"
	StoragePostgres = "postgres"
)

// Cache backends.
const (
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
	CachePebble   = "pebble"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Chains   []ChainConfig      `yaml:"chains"`
	Scan     ScanConfig         `yaml:"scan"`
	Storage  StorageConfig      `yaml:"storage"`
	Cache    CacheConfig        `yaml:"cache"`
	Scoring  scoring.Config     `yaml:"scoring"`
	Alert    AlertConfig        `yaml:"alert"`
	Database postgres.Config    `yaml:"database"`
	Redis    redisclient.Config `yaml:"redis"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"` // 0 disables the health server
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ChainConfig holds the indexer endpoint for a specific chain.
type ChainConfig struct {
	ID         domain.Chain          `yaml:"id"`
	Type       string                `yaml:"type"` // only "indexer" for now
	URL        string                `yaml:"url"`
	APIKey     string                `yaml:"api_key"`
	Timeout    time.Duration         `yaml:"timeout"`
	RateLimit  float64               `yaml:"rate_limit"`
	DailyQuota int                   `yaml:"daily_quota"`
	Retry      httpfetch.RetryConfig `yaml:"retry"`
}

// Fetcher converts the chain entry into fetcher settings.
func (c ChainConfig) Fetcher() httpfetch.Config {
	return httpfetch.Config{
		Chain:      c.ID,
		URL:        c.URL,
		APIKey:     c.APIKey,
		Timeout:    c.Timeout,
		RateLimit:  c.RateLimit,
		DailyQuota: c.DailyQuota,
		Retry:      c.Retry,
	}
}

// ScanConfig holds poll loop and alerting thresholds.
type ScanConfig struct {
	stream.Config `yaml:",inline"`
	Threshold     int           `yaml:"threshold"`
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
}

// Alerting returns the alert engine settings.
func (s ScanConfig) Alerting() alert.Config {
	return alert.Config{Threshold: s.Threshold, NotifyTimeout: s.NotifyTimeout}
}

// StorageConfig selects where wallets, alerts and score history live.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"` // pebble data directory, shared with the pebble cache
}

// CacheConfig selects and tunes the fingerprint cache.
type CacheConfig struct {
	Backend       string        `yaml:"backend"`
	RecentTTL     time.Duration `yaml:"recent_ttl"`
	HistoryTTL    time.Duration `yaml:"history_ttl"`
	Align         time.Duration `yaml:"align"`
	BaselineDays  int           `yaml:"baseline_days"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	StaleGrace    time.Duration `yaml:"stale_grace"` // redis only
}

// Fetch returns the fetch layer settings.
func (c CacheConfig) Fetch() fetch.Config {
	return fetch.Config{
		RecentTTL:    c.RecentTTL,
		HistoryTTL:   c.HistoryTTL,
		Align:        c.Align,
		BaselineDays: c.BaselineDays,
	}
}

// AlertConfig holds notification sinks.
type AlertConfig struct {
	WebhookURL     string             `yaml:"webhook_url"`
	WebhookSecret  string             `yaml:"webhook_secret"`
	WebhookTimeout time.Duration      `yaml:"webhook_timeout"`
	Kafka          notify.KafkaConfig `yaml:"kafka"`
}

// Webhook returns the webhook settings.
func (a AlertConfig) Webhook() notify.WebhookConfig {
	return notify.WebhookConfig{URL: a.WebhookURL, Secret: a.WebhookSecret, Timeout: a.WebhookTimeout}
}
