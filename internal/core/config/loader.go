package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/tracking/alert"
	"github.com/vietddude/whalewatch/internal/tracking/fetch"
	"github.com/vietddude/whalewatch/internal/tracking/stream"
)

// Load reads configuration from a YAML file. A missing file at path yields
// the defaults so the CLI works without one. Variables from a local .env
// file are loaded first and expanded into the YAML content.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	var cfg AppConfig
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, apperr.Wrap(apperr.KindConfig, "config.load", fmt.Errorf("failed to read config file: %w", err))
	default:
		// Expand environment variables in the YAML content
		expandedData := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, apperr.Wrap(apperr.KindConfig, "config.load", fmt.Errorf("failed to parse config file: %w", err))
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	for i := range cfg.Chains {
		if cfg.Chains[i].Type == "" {
			cfg.Chains[i].Type = "indexer"
		}
		if cfg.Chains[i].Timeout == 0 {
			cfg.Chains[i].Timeout = 30 * time.Second
		}
	}

	sd := stream.DefaultConfig()
	scan := &cfg.Scan
	if scan.Window == 0 {
		scan.Window = sd.Window
	}
	if scan.Interval == 0 {
		scan.Interval = sd.Interval
	}
	if scan.Heartbeat == 0 {
		scan.Heartbeat = sd.Heartbeat
	}
	if scan.Concurrency == 0 {
		scan.Concurrency = sd.Concurrency
	}
	if scan.ActivityMinScore == 0 {
		scan.ActivityMinScore = sd.ActivityMinScore
	}
	if scan.Threshold == 0 {
		scan.Threshold = alert.DefaultThreshold
	}
	if scan.NotifyTimeout == 0 {
		scan.NotifyTimeout = 10 * time.Second
	}

	st := &cfg.Storage
	if st.Backend == "" {
		if cfg.Database.URL != "" {
			st.Backend = StoragePostgres
		} else {
			st.Backend = StoragePebble
		}
	}
	if st.Dir == "" {
		st.Dir = ".whalewatch"
	}

	fd := fetch.DefaultConfig()
	c := &cfg.Cache
	if c.Backend == "" {
		// The cache follows the state store unless configured otherwise.
		c.Backend = st.Backend
	}
	if c.RecentTTL == 0 {
		c.RecentTTL = fd.RecentTTL
	}
	if c.HistoryTTL == 0 {
		c.HistoryTTL = fd.HistoryTTL
	}
	if c.Align == 0 {
		c.Align = fd.Align
	}
	if c.BaselineDays == 0 {
		c.BaselineDays = fd.BaselineDays
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = 10 * time.Minute
	}

	cfg.Scoring.ApplyDefaults()

	if cfg.Alert.WebhookTimeout == 0 {
		cfg.Alert.WebhookTimeout = 10 * time.Second
	}
	if cfg.Alert.Kafka.WriteTimeout == 0 {
		cfg.Alert.Kafka.WriteTimeout = 10 * time.Second
	}
}

// Validate checks the configuration and fails fast on invariant violations.
func (c *AppConfig) Validate() error {
	const op = "config.validate"

	if err := c.Scoring.Validate(); err != nil {
		return err
	}

	seen := make(map[domain.Chain]bool)
	for i, ch := range c.Chains {
		id, err := domain.ParseChain(string(ch.ID))
		if err != nil {
			return apperr.New(apperr.KindConfig, op, "chains[%d]: %v", i, err)
		}
		if seen[id] {
			return apperr.New(apperr.KindConfig, op, "chains[%d]: duplicate chain %s", i, id)
		}
		seen[id] = true
		c.Chains[i].ID = id
		if ch.Type != "indexer" {
			return apperr.New(apperr.KindConfig, op, "chains[%d]: unsupported type %q", i, ch.Type)
		}
		if ch.URL == "" {
			return apperr.New(apperr.KindConfig, op, "chains[%d]: url is required", i)
		}
	}

	s := c.Scan
	if s.Threshold < 0 || s.Threshold > domain.MaxScore {
		return apperr.New(apperr.KindConfig, op, "threshold must be within 0..%d, got %d", domain.MaxScore, s.Threshold)
	}
	if s.Window <= 0 || s.Interval <= 0 || s.Heartbeat <= 0 {
		return apperr.New(apperr.KindConfig, op, "window, interval and heartbeat must be positive")
	}
	if s.Concurrency < 1 {
		return apperr.New(apperr.KindConfig, op, "concurrency must be at least 1")
	}
	if s.MaxCycles < 0 {
		return apperr.New(apperr.KindConfig, op, "max_cycles must not be negative")
	}
	for i, code := range s.Chains {
		id, err := domain.ParseChain(string(code))
		if err != nil {
			return apperr.New(apperr.KindConfig, op, "scan.chains[%d]: %v", i, err)
		}
		c.Scan.Chains[i] = id
	}

	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePebble:
		if c.Storage.Dir == "" {
			return apperr.New(apperr.KindConfig, op, "storage backend pebble requires storage.dir")
		}
	case StoragePostgres:
		if c.Database.URL == "" {
			return apperr.New(apperr.KindConfig, op, "storage backend postgres requires database.url")
		}
	default:
		return apperr.New(apperr.KindConfig, op, "unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Cache.Backend {
	case CacheMemory:
	case CachePebble:
		if c.Storage.Dir == "" {
			return apperr.New(apperr.KindConfig, op, "cache backend pebble requires storage.dir")
		}
	case CacheRedis:
		if c.Redis.URL == "" {
			return apperr.New(apperr.KindConfig, op, "cache backend redis requires redis.url")
		}
	case CachePostgres:
		if c.Database.URL == "" {
			return apperr.New(apperr.KindConfig, op, "cache backend postgres requires database.url")
		}
	default:
		return apperr.New(apperr.KindConfig, op, "unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.RecentTTL <= 0 || c.Cache.HistoryTTL <= 0 || c.Cache.Align <= 0 {
		return apperr.New(apperr.KindConfig, op, "cache ttls and align must be positive")
	}

	k := c.Alert.Kafka
	if (len(k.Brokers) > 0) != (k.Topic != "") {
		return apperr.New(apperr.KindConfig, op, "alert.kafka needs both brokers and topic")
	}
	return nil
}
