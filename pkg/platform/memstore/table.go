// Package memstore is a typed in-memory table used by the memory-backed
// stores. Rows are stored by value, so callers never share mutable state
// with the table. Writes made inside a tx.MemoryRunner unit of work are
// undone when that unit fails.
package memstore

import (
	"context"
	"slices"
	"sync"

	"pension/pkg/platform/paging"
	"pension/pkg/platform/sentinel"
	"pension/pkg/platform/tx"
)

// Query filters, orders and pages rows. Nil fields select everything in
// insertion order.
type Query[V any] struct {
	Where func(V) bool
	Less  func(a, b V) bool
	Page  paging.Page
}

type row[V any] struct {
	seq   uint64
	value V
}

// Table holds rows of V keyed by K.
type Table[K comparable, V any] struct {
	mu   sync.RWMutex
	rows map[K]row[V]
	seq  uint64
}

func NewTable[K comparable, V any]() *Table[K, V] {
	return &Table[K, V]{rows: make(map[K]row[V])}
}

// Insert adds v under key. ErrAlreadyUsed if the key exists.
func (t *Table[K, V]) Insert(ctx context.Context, key K, v V) error {
	return t.InsertUnless(ctx, key, v, nil)
}

// InsertUnless adds v unless an existing row satisfies clash. The check and
// the insert happen under one lock.
func (t *Table[K, V]) InsertUnless(ctx context.Context, key K, v V, clash func(existing V) bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.rows[key]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if clash != nil {
		for _, r := range t.rows {
			if clash(r.value) {
				return sentinel.ErrAlreadyUsed
			}
		}
	}
	t.seq++
	t.rows[key] = row[V]{seq: t.seq, value: v}
	tx.OnRollback(ctx, func() { t.remove(key) })
	return nil
}

// Get returns a copy of the row for key.
func (t *Table[K, V]) Get(_ context.Context, key K) (V, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rows[key]
	if !ok {
		var zero V
		return zero, sentinel.ErrNotFound
	}
	return r.value, nil
}

// Update applies fn to the row for key under the write lock. If fn returns
// an error the row is left unchanged.
func (t *Table[K, V]) Update(ctx context.Context, key K, fn func(v *V) error) (V, error) {
	return t.UpdateUnless(ctx, key, fn, nil)
}

// UpdateUnless is Update with a clash check of the updated value against
// every other row, made under the same lock. A clash leaves the row
// unchanged and returns ErrAlreadyUsed.
func (t *Table[K, V]) UpdateUnless(ctx context.Context, key K, fn func(v *V) error, clash func(other, updated V) bool) (V, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero V
	r, ok := t.rows[key]
	if !ok {
		return zero, sentinel.ErrNotFound
	}
	previous := r.value
	next := r.value
	if err := fn(&next); err != nil {
		return zero, err
	}
	if clash != nil {
		for k, other := range t.rows {
			if k != key && clash(other.value, next) {
				return zero, sentinel.ErrAlreadyUsed
			}
		}
	}
	r.value = next
	t.rows[key] = r
	tx.OnRollback(ctx, func() { t.restore(key, previous) })
	return next, nil
}

// Select returns copies of the rows matching q.
func (t *Table[K, V]) Select(_ context.Context, q Query[V]) []V {
	t.mu.RLock()
	matched := make([]row[V], 0, len(t.rows))
	for _, r := range t.rows {
		if q.Where == nil || q.Where(r.value) {
			matched = append(matched, r)
		}
	}
	t.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b row[V]) int {
		if q.Less != nil {
			if q.Less(a.value, b.value) {
				return -1
			}
			if q.Less(b.value, a.value) {
				return 1
			}
		}
		// insertion order breaks ties so repeated reads agree
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})

	out := make([]V, 0, len(matched))
	for _, r := range paging.Apply(matched, q.Page) {
		out = append(out, r.value)
	}
	return out
}

// Count returns how many rows satisfy where (all rows when nil).
func (t *Table[K, V]) Count(_ context.Context, where func(V) bool) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if where == nil {
		return len(t.rows)
	}
	n := 0
	for _, r := range t.rows {
		if where(r.value) {
			n++
		}
	}
	return n
}

// Keys returns a snapshot of all keys in insertion order.
func (t *Table[K, V]) Keys(_ context.Context) []K {
	t.mu.RLock()
	type keyed struct {
		key K
		seq uint64
	}
	all := make([]keyed, 0, len(t.rows))
	for k, r := range t.rows {
		all = append(all, keyed{key: k, seq: r.seq})
	}
	t.mu.RUnlock()

	slices.SortFunc(all, func(a, b keyed) int {
		if a.seq < b.seq {
			return -1
		}
		return 1
	})
	keys := make([]K, len(all))
	for i, k := range all {
		keys[i] = k.key
	}
	return keys
}

// Clear removes every row.
func (t *Table[K, V]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = make(map[K]row[V])
}

func (t *Table[K, V]) remove(key K) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rows, key)
}

func (t *Table[K, V]) restore(key K, v V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.rows[key]; ok {
		r.value = v
		t.rows[key] = r
	}
}
