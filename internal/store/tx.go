package store

import (
	"errors"
	"fmt"
	"slices"

	"github.com/eigerco/relayergame/pkg/db"
	"github.com/eigerco/relayergame/pkg/db/pebble"
)

var ErrTxDone = errors.New("transaction already committed or discarded")

// Tx buffers writes on top of a db.KVStore. Reads see the buffered writes
// first. Nothing reaches the store until Commit, which applies every write
// in one batch and then runs the registered commit hooks in order.
type Tx struct {
	kv      db.KVStore
	writes  map[string][]byte
	deleted map[string]struct{}
	hooks   []func()
	done    bool
}

func NewTx(kv db.KVStore) *Tx {
	return &Tx{
		kv:      kv,
		writes:  make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

func (t *Tx) Get(key []byte) ([]byte, error) {
	if t.done {
		return nil, ErrTxDone
	}
	k := string(key)
	if _, ok := t.deleted[k]; ok {
		return nil, pebble.ErrNotFound
	}
	if v, ok := t.writes[k]; ok {
		return slices.Clone(v), nil
	}
	return t.kv.Get(key)
}

func (t *Tx) Put(key, value []byte) error {
	if t.done {
		return ErrTxDone
	}
	k := string(key)
	delete(t.deleted, k)
	t.writes[k] = slices.Clone(value)
	return nil
}

func (t *Tx) Delete(key []byte) error {
	if t.done {
		return ErrTxDone
	}
	k := string(key)
	delete(t.writes, k)
	t.deleted[k] = struct{}{}
	return nil
}

// OnCommit registers f to run after a successful Commit. Hooks of a
// discarded or failed transaction never run.
func (t *Tx) OnCommit(f func()) {
	t.hooks = append(t.hooks, f)
}

// Dirty reports whether the transaction holds any buffered write.
func (t *Tx) Dirty() bool {
	return len(t.writes) > 0 || len(t.deleted) > 0
}

func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	if t.Dirty() {
		batch := t.kv.NewBatch()
		defer batch.Close() //nolint:errcheck

		// sorted so the batch contents do not depend on map order
		keys := make([]string, 0, len(t.writes)+len(t.deleted))
		for k := range t.writes {
			keys = append(keys, k)
		}
		for k := range t.deleted {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		for _, k := range keys {
			if v, ok := t.writes[k]; ok {
				if err := batch.Put([]byte(k), v); err != nil {
					return fmt.Errorf("put %s: %w", PrefixToString(k[0]), err)
				}
				continue
			}
			if err := batch.Delete([]byte(k)); err != nil {
				return fmt.Errorf("delete %s: %w", PrefixToString(k[0]), err)
			}
		}
		if err := batch.Commit(); err != nil {
			return fmt.Errorf(ErrFailedBatchCommit, err)
		}
	}

	hooks := t.hooks
	t.reset()
	for _, f := range hooks {
		f()
	}
	return nil
}

// Discard drops every buffered write and hook. It is safe to call after Commit.
func (t *Tx) Discard() {
	t.done = true
	t.reset()
}

func (t *Tx) reset() {
	t.writes = nil
	t.deleted = nil
	t.hooks = nil
}
