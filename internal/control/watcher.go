package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/config"
	"github.com/vietddude/whalewatch/internal/core/worker"
	"github.com/vietddude/whalewatch/internal/infra/chain"
	"github.com/vietddude/whalewatch/internal/infra/chain/httpfetch"
	"github.com/vietddude/whalewatch/internal/infra/notify"
	redisclient "github.com/vietddude/whalewatch/internal/infra/redis"
	"github.com/vietddude/whalewatch/internal/infra/storage"
	"github.com/vietddude/whalewatch/internal/infra/storage/memory"
	"github.com/vietddude/whalewatch/internal/infra/storage/pebbledb"
	"github.com/vietddude/whalewatch/internal/infra/storage/postgres"
	"github.com/vietddude/whalewatch/internal/tracking/alert"
	"github.com/vietddude/whalewatch/internal/tracking/cache"
	"github.com/vietddude/whalewatch/internal/tracking/fetch"
	"github.com/vietddude/whalewatch/internal/tracking/health"
	"github.com/vietddude/whalewatch/internal/tracking/registry"
	"github.com/vietddude/whalewatch/internal/tracking/scoring"
	"github.com/vietddude/whalewatch/internal/tracking/stream"
)

// Options overrides parts of the wiring, mostly for tests.
type Options struct {
	Output   io.Writer // stream output, defaults to stdout
	Fetchers chain.Set // replaces the configured indexer fetchers
	Now      func() time.Time
}

// Watcher owns the tracker components and their lifecycle.
type Watcher struct {
	cfg          *config.AppConfig
	registry     *registry.Registry
	alerts       storage.AlertRepository
	scores       storage.ScoreRepository
	engine       *stream.Engine
	cache        *cache.Cache
	sweeper      *worker.Sweeper
	healthMon    *health.Monitor
	healthServer *health.Server
	db           *postgres.DB
	pebble       *pebbledb.DB
	redisClient  *redisclient.Client
	closers      []io.Closer
	log          *slog.Logger
}

// NewWatcher creates a new Watcher instance with all dependencies initialized.
func NewWatcher(ctx context.Context, cfg *config.AppConfig, opts Options) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &Watcher{cfg: cfg, log: slog.Default()}
	if err := w.init(ctx, opts); err != nil {
		w.closeAll()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) init(ctx context.Context, opts Options) error {
	cfg := w.cfg

	// 1. Initialize Storage
	if err := w.openBackends(ctx); err != nil {
		return err
	}
	var walletRepo storage.WalletRepository
	var store *memory.MemoryStorage

	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		walletRepo = postgres.NewWalletRepo(w.db)
		w.alerts = postgres.NewAlertRepo(w.db)
		w.scores = postgres.NewScoreRepo(w.db)
		w.log.Debug("Using PostgreSQL storage")
	case config.StoragePebble:
		walletRepo = pebbledb.NewWalletRepo(w.pebble)
		w.alerts = pebbledb.NewAlertRepo(w.pebble)
		w.scores = pebbledb.NewScoreRepo(w.pebble)
		w.log.Debug("Using Pebble storage", "dir", cfg.Storage.Dir)
	default:
		store = memory.NewMemoryStorage()
		walletRepo = memory.NewWalletRepo(store)
		w.alerts = memory.NewAlertRepo(store)
		w.scores = memory.NewScoreRepo(store)
		w.log.Warn("Memory storage selected, wallets and alerts are lost on exit")
	}

	// 2. Initialize Cache Store
	cacheStore, err := w.cacheStore(ctx, store)
	if err != nil {
		return err
	}
	w.cache = cache.New(cacheStore, cache.WithLogger(w.log))
	w.sweeper = worker.NewSweeper(w.cache, cfg.Cache.SweepInterval, w.log)

	// 3. Initialize Fetchers
	fetchers := opts.Fetchers
	if fetchers == nil {
		fetchers = make(chain.Set, len(cfg.Chains))
		for _, c := range cfg.Chains {
			f, err := httpfetch.New(c.Fetcher())
			if err != nil {
				return err
			}
			fetchers[c.ID] = f
		}
	}

	// 4. Initialize Notifiers
	notifier, err := w.notifier()
	if err != nil {
		return err
	}

	// 5. Assemble the tracker
	w.registry = registry.New(walletRepo, w.log)
	alerter := alert.NewEngine(cfg.Scan.Alerting(), w.alerts, notifier, w.log)
	layer := fetch.NewLayer(cfg.Cache.Fetch(), fetchers, w.cache, w.log)

	w.healthMon = health.NewMonitor(cfg.Scan.Interval, opts.Now)
	if w.db != nil {
		w.healthMon.AddComponent("postgres", w.db)
	}
	if w.redisClient != nil {
		w.healthMon.AddComponent("redis", w.redisClient)
	}
	if cfg.Server.Port > 0 {
		w.healthServer = health.NewServer(w.healthMon, cfg.Server.Port)
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}
	w.engine = stream.NewEngine(cfg.Scan.Config, stream.Deps{
		Wallets:  w.registry,
		Fetch:    layer,
		Scorer:   scoring.NewEngine(cfg.Scoring),
		Alerts:   alerter,
		Scores:   w.scores,
		Output:   output,
		Observer: w.healthMon,
		Logger:   w.log,
		Now:      opts.Now,
	})
	return nil
}

// openBackends opens the shared databases that the storage or cache
// backends name. Each is opened once.
func (w *Watcher) openBackends(ctx context.Context) error {
	cfg := w.cfg
	if cfg.Storage.Backend == config.StoragePostgres || cfg.Cache.Backend == config.CachePostgres {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return apperr.Wrap(apperr.KindStorage, "watcher.init", fmt.Errorf("failed to init db: %w", err))
		}
		w.db = db
		if err := db.Migrate(ctx); err != nil {
			return apperr.Wrap(apperr.KindStorage, "watcher.init", err)
		}
	}
	if cfg.Storage.Backend == config.StoragePebble || cfg.Cache.Backend == config.CachePebble {
		db, err := pebbledb.Open(cfg.Storage.Dir)
		if err != nil {
			return apperr.Wrap(apperr.KindStorage, "watcher.init",
				fmt.Errorf("failed to open %s (is another whalewatch process using it?): %w", cfg.Storage.Dir, err))
		}
		w.pebble = db
		w.closers = append(w.closers, db)
	}
	return nil
}

func (w *Watcher) cacheStore(ctx context.Context, store *memory.MemoryStorage) (storage.CacheStore, error) {
	cfg := w.cfg
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		client, err := redisclient.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, "watcher.cache", err)
		}
		w.redisClient = client
		return redisclient.NewCacheStore(client, cfg.Cache.StaleGrace), nil
	case config.CachePostgres:
		return postgres.NewCacheStore(w.db), nil
	case config.CachePebble:
		return pebbledb.NewCacheStore(w.pebble), nil
	default:
		if store == nil {
			store = memory.NewMemoryStorage()
		}
		return memory.NewCacheStore(store), nil
	}
}

func (w *Watcher) notifier() (notify.Notifier, error) {
	var sinks notify.Multi
	if w.cfg.Alert.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhook(w.cfg.Alert.Webhook()))
	}
	if len(w.cfg.Alert.Kafka.Brokers) > 0 {
		k, err := notify.NewKafka(w.cfg.Alert.Kafka)
		if err != nil {
			return nil, err
		}
		w.closers = append(w.closers, k)
		sinks = append(sinks, k)
	}
	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}

// Registry returns the wallet registry.
func (w *Watcher) Registry() *registry.Registry { return w.registry }

// Alerts returns the alert history repository.
func (w *Watcher) Alerts() storage.AlertRepository { return w.alerts }

// Scores returns the score history repository.
func (w *Watcher) Scores() storage.ScoreRepository { return w.scores }

// Engine returns the scan engine.
func (w *Watcher) Engine() *stream.Engine { return w.engine }

// Health returns the health monitor.
func (w *Watcher) Health() *health.Monitor { return w.healthMon }

// Start starts the background workers: health server, DB metrics and cache
// sweeping.
func (w *Watcher) Start(ctx context.Context) error {
	// Start Health Server
	if w.healthServer != nil {
		go func() {
			if err := w.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				w.log.Error("Health server failed", "error", err)
			}
		}()
	}

	// Start DB Metrics Collector
	if w.db != nil {
		w.db.StartMetricsCollector(ctx)
	}

	// Start Sweeper
	go w.sweeper.Start(ctx)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop(ctx context.Context) error {
	w.log.Debug("Stopping Watcher...")

	var err error
	if w.healthServer != nil {
		err = w.healthServer.Stop(ctx)
	}
	w.closeAll()
	return err
}

func (w *Watcher) closeAll() {
	for _, c := range w.closers {
		if err := c.Close(); err != nil {
			w.log.Warn("Failed to close component", "error", err)
		}
	}
	w.closers = nil
	w.pebble = nil

	// Close Redis
	if w.redisClient != nil {
		if err := w.redisClient.Close(); err != nil {
			w.log.Warn("Failed to close Redis", "error", err)
		}
		w.redisClient = nil
	}

	if w.db != nil {
		if err := w.db.Close(); err != nil {
			w.log.Warn("Failed to close database", "error", err)
		}
		w.db = nil
	}
}
