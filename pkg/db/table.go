// Package db is the in-memory, schema-typed cluster database (spec §4.1):
// one generic Table per entity class, a Store that aggregates them and
// serialises multi-row transactions with one mutex, a redo-log+snapshot Journal for
// durability, and a restore-file path handled at startup.
package db

import (
	"sync"

	"github.com/gofrs/uuid"
	"github.com/xapi-core/xapi-core/pkg/model"
)

// Table holds every row of one entity class, indexed by opaque ref with a
// secondary index on UUID. Reads take the table's own RWMutex so that
// queries against one class are lock-free with respect to writes on a
// different class; Store additionally serialises cross-row transactions
// with its own mutex (§4.1: "transactions across rows use a single
// serialising mutex; read-only queries are lock-free where the schema
// allows").
type Table[T model.Entity] struct {
	class model.Class

	mu     sync.RWMutex
	rows   map[model.Ref]T
	byUUID map[uuid.UUID]model.Ref
}

func newTable[T model.Entity](class model.Class) *Table[T] {
	return &Table[T]{
		class:  class,
		rows:   make(map[model.Ref]T),
		byUUID: make(map[uuid.UUID]model.Ref),
	}
}

func (t *Table[T]) Class() model.Class { return t.class }

func (t *Table[T]) Get(ref model.Ref) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.rows[ref]
	return row, ok
}

func (t *Table[T]) GetByUUID(id uuid.UUID) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ref, ok := t.byUUID[id]
	if !ok {
		var zero T
		return zero, false
	}
	row := t.rows[ref]
	return row, true
}

func (t *Table[T]) List() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]T, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, row)
	}
	return out
}

func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// put inserts or replaces a row. Generation stamping and event emission
// are the Store's responsibility; put is the raw, per-table mutation.
func (t *Table[T]) put(row T) {
	r := row.RowRef()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[r.Ref] = row
	t.byUUID[r.UUID] = r.Ref
}

func (t *Table[T]) delete(ref model.Ref) {
	t.mu.Lock()
	defer t.mu.Unlock()
	row, ok := t.rows[ref]
	if !ok {
		return
	}
	delete(t.byUUID, row.RowRef().UUID)
	delete(t.rows, ref)
}
