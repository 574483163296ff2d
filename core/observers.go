package core

import (
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// ObserverSet is a concurrency-safe registry of observers keyed by ObserverID.
// Snapshot returns them in registration order; re-adding an existing ID
// replaces the observer in place.
type ObserverSet[T any] struct {
	mu      sync.RWMutex
	entries *linkedhashmap.Map
}

// NewObserverSet creates an empty set.
func NewObserverSet[T any]() *ObserverSet[T] {
	return &ObserverSet[T]{entries: linkedhashmap.New()}
}

// Add registers observer under id.
func (s *ObserverSet[T]) Add(id ObserverID, observer T) {
	s.mu.Lock()
	s.entries.Put(id, observer)
	s.mu.Unlock()
}

// Remove unregisters id. Unknown IDs are ignored.
func (s *ObserverSet[T]) Remove(id ObserverID) {
	s.mu.Lock()
	s.entries.Remove(id)
	s.mu.Unlock()
}

// Len returns the number of registered observers.
func (s *ObserverSet[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries.Size()
}

// Snapshot copies the current observers so callers can notify them without
// holding the lock.
func (s *ObserverSet[T]) Snapshot() []T {
	s.mu.RLock()
	values := s.entries.Values()
	s.mu.RUnlock()

	out := make([]T, 0, len(values))
	for _, v := range values {
		out = append(out, v.(T))
	}
	return out
}
