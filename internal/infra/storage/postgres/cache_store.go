package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/whalewatch/internal/core/domain"
)

// CacheStore implements storage.CacheStore on the api_cache table.
type CacheStore struct {
	db *DB
}

// NewCacheStore creates a PostgreSQL backed cache store.
func NewCacheStore(db *DB) *CacheStore {
	return &CacheStore{db: db}
}

type cacheRow struct {
	Fingerprint string    `db:"fingerprint"`
	Payload     []byte    `db:"payload"`
	FetchedAt   time.Time `db:"fetched_at"`
	TTLMillis   int64     `db:"ttl_ms"`
}

func (c *CacheStore) Get(ctx context.Context, fingerprint string) (*domain.CacheEntry, error) {
	var row cacheRow
	err := c.db.GetContext(ctx, &row,
		`SELECT fingerprint, payload, fetched_at, ttl_ms FROM api_cache WHERE fingerprint = $1`,
		fingerprint,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return &domain.CacheEntry{
		Fingerprint: row.Fingerprint,
		Payload:     row.Payload,
		FetchedAt:   row.FetchedAt,
		TTL:         time.Duration(row.TTLMillis) * time.Millisecond,
	}, nil
}

func (c *CacheStore) Put(ctx context.Context, e *domain.CacheEntry) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO api_cache (fingerprint, payload, fetched_at, ttl_ms, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (fingerprint) DO UPDATE
			SET payload = EXCLUDED.payload,
				fetched_at = EXCLUDED.fetched_at,
				ttl_ms = EXCLUDED.ttl_ms,
				expires_at = EXCLUDED.expires_at`,
		e.Fingerprint, e.Payload, e.FetchedAt, e.TTL.Milliseconds(), e.ExpiresAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to put cache entry: %w", err)
	}
	return nil
}

func (c *CacheStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM api_cache WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purge result: %w", err)
	}
	return int(n), nil
}
