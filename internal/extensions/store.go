// Package extensions provides the per-session context store: a bag of
// named, typed values threaded through tool handlers and event listeners.
package extensions

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds an extension value on first use.
type Factory func() (any, error)

// Store maps extension names to values for one session.
//
// The zero value is not usable; call NewStore.
type Store struct {
	mu     sync.RWMutex
	values map[string]any
	// creating serializes factories per name so each runs at most once.
	creating map[string]*sync.Mutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		values:   make(map[string]any),
		creating: make(map[string]*sync.Mutex),
	}
}

// Get returns the value stored under name.
func (s *Store) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Put stores value under name, replacing any previous value.
func (s *Store) Put(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}

// Remove deletes name and reports whether it was present.
func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[name]
	delete(s.values, name)
	return ok
}

// GetOrCreate returns the value under name, calling factory to build and
// cache it if absent. A failing factory caches nothing.
func (s *Store) GetOrCreate(name string, factory Factory) (any, error) {
	if v, ok := s.Get(name); ok {
		return v, nil
	}
	if factory == nil {
		return nil, fmt.Errorf("extension %q: %w", name, ErrNilFactory)
	}

	lock := s.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	if v, ok := s.Get(name); ok {
		return v, nil
	}
	v, err := factory()
	if err != nil {
		return nil, fmt.Errorf("create extension %q: %w", name, err)
	}
	s.Put(name, v)
	return v, nil
}

func (s *Store) nameLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.creating[name]
	if !ok {
		lock = &sync.Mutex{}
		s.creating[name] = lock
	}
	return lock
}

// Names returns the stored extension names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of stored extensions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// GetAs returns the value under name asserted to T. A missing name yields
// (zero, false, nil); a value of another type yields *ExtensionTypeError.
func GetAs[T any](s *Store, name string) (T, bool, error) {
	var zero T
	v, ok := s.Get(name)
	if !ok {
		return zero, false, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, true, newTypeError[T](name, v)
	}
	return typed, true, nil
}

// GetOrCreateAs is GetOrCreate with a typed factory and result.
func GetOrCreateAs[T any](s *Store, name string, factory func() (T, error)) (T, error) {
	var zero T
	v, err := s.GetOrCreate(name, func() (any, error) {
		if factory == nil {
			return nil, ErrNilFactory
		}
		return factory()
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, newTypeError[T](name, v)
	}
	return typed, nil
}

// MustGetAs returns the value under name as T, failing with
// ErrExtensionNotFound when absent and *ExtensionTypeError on mismatch.
func MustGetAs[T any](s *Store, name string) (T, error) {
	v, ok, err := GetAs[T](s, name)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, fmt.Errorf("extension %q: %w", name, ErrExtensionNotFound)
	}
	return v, nil
}
