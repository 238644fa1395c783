// Package keyedstore provides a mutex-guarded map with atomic read-modify-write
// and predicate-based sweeping. Instances are independent; there is no global state.
package keyedstore

import "sync"

// Store is safe for concurrent use.
type Store[K comparable, V any] struct {
	mu    sync.Mutex
	items map[K]V
}

// New builds an empty store.
func New[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{items: make(map[K]V)}
}

// Update applies fn to the current value under the store lock and saves the result.
// fn receives ok=false when the key is absent. Returning keep=false deletes the key.
func (s *Store[K, V]) Update(key K, fn func(current V, ok bool) (next V, keep bool)) V {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[key]
	next, keep := fn(current, ok)
	if keep {
		s.items[key] = next
	} else {
		delete(s.items, key)
	}
	return next
}

// Get returns a copy of the stored value.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	return v, ok
}

// Delete removes key and reports whether it was present.
func (s *Store[K, V]) Delete(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[key]
	delete(s.items, key)
	return ok
}

// Sweep removes every entry for which expired returns true and returns how many were removed.
func (s *Store[K, V]) Sweep(expired func(key K, value V) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, v := range s.items {
		if expired(k, v) {
			delete(s.items, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries.
func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
