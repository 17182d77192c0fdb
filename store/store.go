// Package store is the transactional document store behind the nonce ledger
// and the append-only order-event log, backed by pebble.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// DB wraps a pebble database with a serialized read-modify-write transaction.
type DB struct {
	pdb *pebble.DB

	// mu serializes Update transactions. Pebble batches are atomic on commit
	// but do not isolate concurrent check-then-write sequences; the nonce
	// claim depends on that isolation.
	mu sync.Mutex
}

// Open opens (or creates) a store at dir.
func Open(dir string) (*DB, error) {
	pdb, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return &DB{pdb: pdb}, nil
}

// OpenMem opens an in-memory store. Used by tests and the example wiring.
func OpenMem() (*DB, error) {
	pdb, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory store: %w", err)
	}
	return &DB{pdb: pdb}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.pdb.Close()
}

// Get returns the value for key, reporting presence explicitly.
func (d *DB) Get(key []byte) ([]byte, bool, error) {
	value, closer, err := d.pdb.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := make([]byte, len(value))
	copy(out, value)
	if err := closer.Close(); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Set writes a single document durably, outside any transaction.
func (d *DB) Set(key, value []byte) error {
	return d.pdb.Set(key, value, pebble.Sync)
}

// Tx is a read-your-writes transaction handle valid only inside Update.
type Tx struct {
	batch *pebble.Batch
}

// Get returns the value for key as seen by the transaction.
func (t *Tx) Get(key []byte) ([]byte, bool, error) {
	value, closer, err := t.batch.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := make([]byte, len(value))
	copy(out, value)
	if err := closer.Close(); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Set stages a write; it becomes visible to others only on commit.
func (t *Tx) Set(key, value []byte) error {
	return t.batch.Set(key, value, nil)
}

// Update runs fn inside a transaction and commits its writes durably if fn
// returns nil. Transactions are serialized, so a check inside fn cannot race
// a concurrent transaction's write.
func (d *DB) Update(fn func(tx *Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	batch := d.pdb.NewIndexedBatch()
	if err := fn(&Tx{batch: batch}); err != nil {
		_ = batch.Close()
		return err
	}
	return batch.Commit(pebble.Sync)
}

// NewIter returns an iterator over [lower, upper). The caller must Close it.
func (d *DB) NewIter(lower, upper []byte) (*pebble.Iterator, error) {
	return d.pdb.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
}
