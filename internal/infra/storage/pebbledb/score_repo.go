package pebbledb

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/storage"
)

// ScoreRepo implements storage.ScoreRepository on Pebble. Keys are ordered by
// computation time, so history reads walk the keyspace backwards.
type ScoreRepo struct {
	db *DB
}

// NewScoreRepo creates a score repository on db.
func NewScoreRepo(db *DB) *ScoreRepo {
	return &ScoreRepo{db: db}
}

// key: prefix | computed_at unix nanos (8) | sequence (8)
func scoreKey(s *domain.ScoreSnapshot, seq uint64) []byte {
	key := []byte{prefixScore}
	key = binary.BigEndian.AppendUint64(key, uint64(s.ComputedAt.UnixNano()))
	return binary.BigEndian.AppendUint64(key, seq)
}

// Save appends a snapshot.
func (r *ScoreRepo) Save(_ context.Context, s *domain.ScoreSnapshot) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	b := r.db.pdb.NewBatch()
	defer b.Close()
	seq, err := r.db.nextSeq(b, "score_seq")
	if err != nil {
		return fmt.Errorf("failed to allocate score sequence: %w", err)
	}
	if err := setJSON(b, scoreKey(s, seq), s); err != nil {
		return err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to save score: %w", err)
	}
	return nil
}

// History returns snapshots matching the filter, newest first.
func (r *ScoreRepo) History(_ context.Context, filter storage.ScoreFilter) ([]*domain.ScoreSnapshot, error) {
	var out []*domain.ScoreSnapshot
	err := r.db.scan([]byte{prefixScore}, true, func(key, value []byte) (bool, error) {
		var s domain.ScoreSnapshot
		if err := jsonDecode(key, value, &s); err != nil {
			return false, err
		}
		if !filter.Since.IsZero() && s.ComputedAt.Before(filter.Since) {
			return false, nil
		}
		if !filter.Matches(&s) {
			return true, nil
		}
		out = append(out, &s)
		return filter.Limit <= 0 || len(out) < filter.Limit, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get score history: %w", err)
	}
	return out, nil
}
