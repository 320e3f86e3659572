// Package metadata implements the identity-keyed attachment store that backs
// modkit's descriptors.
//
// A target is any comparable identity: a reflect.Type for classes, or a
// Method for a single method of a class. Values are attached under a Key,
// which is compared by pointer so that callers outside the owning package
// cannot forge or overwrite another package's entries.
package metadata

import (
	"reflect"
	"sync"
)

// Key identifies one kind of attached value. Keys compare by pointer.
type Key struct {
	name string
}

// NewKey creates a new private key. The name is used only for debugging.
func NewKey(name string) *Key {
	return &Key{name: name}
}

func (k *Key) String() string {
	return k.name
}

// Method identifies a method of a class type.
type Method struct {
	Type reflect.Type
	Name string
}

// MergeFunc merges a partial value over an existing one. existing is nil when
// nothing was attached yet.
type MergeFunc func(existing, partial any) any

// Store holds attached values keyed by target identity and Key.
type Store struct {
	mu      sync.RWMutex
	entries map[any]map[*Key]any
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entries: make(map[any]map[*Key]any),
	}
}

// Write attaches value to target under key, replacing any previous value.
func (s *Store) Write(target any, key *Key, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slot(target)[key] = value
}

// Read returns the value attached to target under key.
func (s *Store) Read(target any, key *Key) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, ok := s.entries[target]
	if !ok {
		return nil, false
	}

	v, ok := values[key]
	return v, ok
}

// Merge reads the current value, merges partial over it with fn and writes
// the result back. The read-modify-write is atomic with respect to other
// store operations.
func (s *Store) Merge(target any, key *Key, partial any, fn MergeFunc) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := s.slot(target)
	merged := fn(values[key], partial)
	values[key] = merged
	return merged
}

// Has reports whether anything is attached to target under key.
func (s *Store) Has(target any, key *Key) bool {
	_, ok := s.Read(target, key)
	return ok
}

// Targets returns every target that has a value under key.
func (s *Store) Targets(key *Key) []any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []any
	for target, values := range s.entries {
		if _, ok := values[key]; ok {
			out = append(out, target)
		}
	}
	return out
}

func (s *Store) slot(target any) map[*Key]any {
	values, ok := s.entries[target]
	if !ok {
		values = make(map[*Key]any)
		s.entries[target] = values
	}
	return values
}
