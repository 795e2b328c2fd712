// Package ir implements the compiler's content-addressed entity store (C1):
// every interned IR entity -- logical types, streamlets, implementations,
// namespaces -- is issued an opaque, per-kind Id and deduplicated by its
// canonical form. The store never mutates an entry once interned; it is
// append-only for the lifetime of a compilation (§3.2).
//
// Entity packages (logical, streamlet, impl, ...) each define their own
// value types and a short "kind" tag; they call Intern/Lookup against a
// shared *Store without this package importing any of them back, which
// keeps the dependency graph a DAG the same way interned LogicalTypes form
// one (§9, "cyclic ownership risk": edges are Ids, never owning handles).
package ir

import "sync"

// Id is an opaque, content-addressed handle to an interned value of type T.
// The zero Id is never issued by Intern and is reserved to mean "absent".
type Id[T any] uint32

// Valid reports whether id could have been issued by Intern (does not check
// that it belongs to any particular Store).
func (id Id[T]) Valid() bool {
	return id != 0
}

type rawTable struct {
	byKey map[string]uint32
	vals  []any
}

// Store is the single compilation-wide interner. Pass it explicitly to every
// operation that needs to intern or look up IR entities -- there is no
// process-wide global (§9, "Global state").
type Store struct {
	mu     sync.Mutex
	tables map[string]*rawTable
}

// NewStore creates an empty, ready-to-use Store.
func NewStore() *Store {
	return &Store{tables: make(map[string]*rawTable)}
}

func (s *Store) table(kind string) *rawTable {
	t, ok := s.tables[kind]
	if !ok {
		t = &rawTable{byKey: make(map[string]uint32)}
		s.tables[kind] = t
	}
	return t
}

// Intern deduplicates v by its canonical key within the given kind and
// returns its Id. Two values with the same kind and key always receive the
// same Id (interning idempotence, §8).
func Intern[T any](s *Store, kind, key string, v T) Id[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(kind)
	if id, ok := t.byKey[key]; ok {
		return Id[T](id)
	}

	t.vals = append(t.vals, v)
	id := uint32(len(t.vals))
	t.byKey[key] = id
	return Id[T](id)
}

// Lookup retrieves the value interned under the given Id and kind. The
// second result is false if no such entry exists (e.g. a stale or
// cross-Store Id).
func Lookup[T any](s *Store, kind string, id Id[T]) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T

	t, ok := s.tables[kind]
	if !ok || id == 0 || int(id) > len(t.vals) {
		return zero, false
	}

	v, ok := t.vals[id-1].(T)
	if !ok {
		return zero, false
	}

	return v, true
}

// Count returns the number of distinct values interned under kind, for
// diagnostics and tests.
func (s *Store) Count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[kind]
	if !ok {
		return 0
	}

	return len(t.vals)
}
