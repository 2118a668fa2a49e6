// Package pebbledb keeps the tracker state in a local Pebble database so a
// single-node deployment survives restarts without an external service.
//
// One database holds every record type under its own key prefix. Pebble
// locks the directory, so only one process can use it at a time.
package pebbledb

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"
)

// Key prefixes.
const (
	prefixMeta    = 0x00
	prefixCache   = 0x01
	prefixWallet  = 0x02
	prefixAlert   = 0x03
	prefixAlertID = 0x04
	prefixScore   = 0x05
)

const sep = 0x00

// DB is a Pebble database shared by the stores of this package.
type DB struct {
	pdb *pebble.DB
	// mu serializes read-modify-write sequences.
	mu sync.Mutex
}

// Open opens (or creates) the database under dir.
func Open(dir string) (*DB, error) {
	pdb, err := pebble.Open(filepath.Join(dir, "state"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}
	return &DB{pdb: pdb}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.pdb.Close()
}

func (d *DB) getJSON(key []byte, v any) (bool, error) {
	value, closer, err := d.pdb.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()
	if err := jsonDecode(key, value, v); err != nil {
		return false, err
	}
	return true, nil
}

func jsonDecode(key, value []byte, v any) error {
	if err := json.Unmarshal(value, v); err != nil {
		return fmt.Errorf("corrupt record %x: %w", key, err)
	}
	return nil
}

func setJSON(b *pebble.Batch, key []byte, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Set(key, value, nil)
}

// scan visits every key under prefix in key order, or in reverse. Returning
// false from fn stops the scan.
func (d *DB) scan(prefix []byte, reverse bool, fn func(key, value []byte) (bool, error)) error {
	iter, err := d.pdb.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	valid := iter.First
	step := iter.Next
	if reverse {
		valid, step = iter.Last, iter.Prev
	}
	for ok := valid(); ok; ok = step() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}
		more, err := fn(iter.Key(), value)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return iter.Error()
}

// nextSeq allocates the next value of a named counter into b. Callers hold mu.
func (d *DB) nextSeq(b *pebble.Batch, name string) (uint64, error) {
	key := append([]byte{prefixMeta}, name...)
	var n uint64
	value, closer, err := d.pdb.Get(key)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
	case err != nil:
		return 0, err
	default:
		if len(value) == 8 {
			n = binary.BigEndian.Uint64(value)
		}
		closer.Close()
	}
	n++
	if err := b.Set(key, binary.BigEndian.AppendUint64(nil, n), nil); err != nil {
		return 0, err
	}
	return n, nil
}

// upperBound returns the smallest key greater than every key with prefix.
func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func joinKey(prefix byte, parts ...string) []byte {
	key := []byte{prefix}
	for i, p := range parts {
		if i > 0 {
			key = append(key, sep)
		}
		key = append(key, p...)
	}
	return key
}
