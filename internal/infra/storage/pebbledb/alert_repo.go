package pebbledb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble"

	"github.com/vietddude/whalewatch/internal/core/domain"
	"github.com/vietddude/whalewatch/internal/infra/storage"
)

// AlertRepo implements storage.AlertRepository on Pebble. Alerts are keyed by
// (chain, address, bucket) with a secondary index from alert ID.
type AlertRepo struct {
	db *DB
}

// NewAlertRepo creates an alert repository on db.
func NewAlertRepo(db *DB) *AlertRepo {
	return &AlertRepo{db: db}
}

func alertKey(chain domain.Chain, address string, bucket int64) []byte {
	key := joinKey(prefixAlert, string(chain), address)
	key = append(key, sep)
	return binary.BigEndian.AppendUint64(key, uint64(bucket))
}

func alertIDKey(id string) []byte {
	return append([]byte{prefixAlertID}, id...)
}

// InsertIfAbsent checks and writes under mu so concurrent scans cannot both
// insert the same bucket.
func (r *AlertRepo) InsertIfAbsent(_ context.Context, a *domain.Alert) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := alertKey(a.Chain, a.Address, a.Bucket)
	var existing domain.Alert
	found, err := r.db.getJSON(key, &existing)
	if err != nil {
		return false, fmt.Errorf("failed to check alert: %w", err)
	}
	if found {
		return false, nil
	}

	b := r.db.pdb.NewBatch()
	defer b.Close()
	if err := setJSON(b, key, a); err != nil {
		return false, err
	}
	if err := b.Set(alertIDKey(a.ID), key, nil); err != nil {
		return false, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return false, fmt.Errorf("failed to insert alert: %w", err)
	}
	return true, nil
}

// MarkNotified records the notification outcome. Unknown IDs are ignored.
func (r *AlertRepo) MarkNotified(_ context.Context, id string, sent bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	value, closer, err := r.db.pdb.Get(alertIDKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up alert: %w", err)
	}
	key := append([]byte(nil), value...)
	closer.Close()

	var a domain.Alert
	found, err := r.db.getJSON(key, &a)
	if err != nil || !found {
		return err
	}
	a.WebhookSent = sent

	b := r.db.pdb.NewBatch()
	defer b.Close()
	if err := setJSON(b, key, &a); err != nil {
		return err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to mark alert notified: %w", err)
	}
	return nil
}

// List retrieves alerts, newest first.
func (r *AlertRepo) List(_ context.Context, filter storage.AlertFilter) ([]*domain.Alert, error) {
	prefix := []byte{prefixAlert}
	if filter.Chain != "" {
		prefix = joinKey(prefixAlert, string(filter.Chain), "")
	}

	var out []*domain.Alert
	err := r.db.scan(prefix, false, func(key, value []byte) (bool, error) {
		var a domain.Alert
		if err := jsonDecode(key, value, &a); err != nil {
			return false, err
		}
		if !filter.Since.IsZero() && a.TriggeredAt.Before(filter.Since) {
			return true, nil
		}
		out = append(out, &a)
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TriggeredAt.Equal(out[j].TriggeredAt) {
			return out[i].TriggeredAt.After(out[j].TriggeredAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
