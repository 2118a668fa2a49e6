package pebbledb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/vietddude/whalewatch/internal/core/domain"
)

// value layout: fetched_at unix nanos (8) | ttl nanos (8) | payload
const headerLen = 16

// CacheStore implements storage.CacheStore on Pebble.
type CacheStore struct {
	db *DB
}

// NewCacheStore creates a cache store on db.
func NewCacheStore(db *DB) *CacheStore {
	return &CacheStore{db: db}
}

func cacheKey(fingerprint string) []byte {
	return append([]byte{prefixCache}, fingerprint...)
}

func (s *CacheStore) Get(_ context.Context, fingerprint string) (*domain.CacheEntry, error) {
	value, closer, err := s.db.pdb.Get(cacheKey(fingerprint))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	defer closer.Close()
	return decodeEntry(fingerprint, value)
}

func (s *CacheStore) Put(_ context.Context, e *domain.CacheEntry) error {
	value := make([]byte, 0, headerLen+len(e.Payload))
	value = binary.BigEndian.AppendUint64(value, uint64(e.FetchedAt.UnixNano()))
	value = binary.BigEndian.AppendUint64(value, uint64(e.TTL))
	value = append(value, e.Payload...)

	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.pdb.Set(cacheKey(e.Fingerprint), value, pebble.Sync); err != nil {
		return fmt.Errorf("failed to put cache entry: %w", err)
	}
	return nil
}

// PurgeExpired holds mu so an entry rewritten by a concurrent Put is not
// deleted.
func (s *CacheStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	batch := s.db.pdb.NewBatch()
	defer batch.Close()

	purged := 0
	err := s.db.scan([]byte{prefixCache}, false, func(key, value []byte) (bool, error) {
		entry, err := decodeEntry(string(key[1:]), value)
		if err == nil && entry.FreshAt(now) {
			return true, nil
		}
		if err := batch.Delete(append([]byte(nil), key...), nil); err != nil {
			return false, fmt.Errorf("failed to queue delete: %w", err)
		}
		purged++
		return true, nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan cache: %w", err)
	}
	if purged == 0 {
		return 0, nil
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return purged, nil
}

func decodeEntry(fingerprint string, value []byte) (*domain.CacheEntry, error) {
	if len(value) < headerLen {
		return nil, fmt.Errorf("corrupt cache entry %q: %d bytes", fingerprint, len(value))
	}
	payload := make([]byte, len(value)-headerLen)
	copy(payload, value[headerLen:])
	return &domain.CacheEntry{
		Fingerprint: fingerprint,
		FetchedAt:   time.Unix(0, int64(binary.BigEndian.Uint64(value[0:8]))).UTC(),
		TTL:         time.Duration(binary.BigEndian.Uint64(value[8:16])),
		Payload:     payload,
	}, nil
}
