////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package cache holds the entity cache: an in-memory keyed store of
// last-known values with synchronous subscriber notification, plus the
// identity-partitioned registry that owns one key space per signed-in
// identity. Network population is always the caller's responsibility.
package cache

import (
	"sync"

	"github.com/golang-collections/collections/set"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Error messages.
const updateMissingErr = "cannot update key %q: no entity cached under it"

// Op describes what a mutation did to a key.
type Op uint8

const (
	// OpSet - the key was written whole.
	OpSet Op = iota

	// OpUpdate - the key was merged in place.
	OpUpdate

	// OpInvalidate - the key was dropped; the next read misses.
	OpInvalidate
)

// Event is delivered to subscribers of a key, synchronously, after the
// store mutation that produced it has completed.
type Event[V any] struct {
	Key string
	Op  Op

	// Value is the post-mutation value. Unset when Op is OpInvalidate.
	Value V

	// Present is false when the mutation removed the key.
	Present bool
}

// Listener receives events for one subscribed key.
type Listener[V any] func(e Event[V])

// Unsubscribe detaches a listener registered with Subscribe.
type Unsubscribe func()

// listenerRecord wraps a Listener so it has a stable address inside the
// subscriber set.
type listenerRecord[V any] struct {
	l Listener[V]
}

// Store is a last-write-wins keyed cache of V. All operations are
// synchronous against in-memory state and atomic with respect to each
// other.
type Store[V any] struct {
	values    map[string]V
	listeners map[string]*set.Set
	mux       sync.Mutex
}

// NewStore returns an empty Store.
func NewStore[V any]() *Store[V] {
	return &Store[V]{
		values:    make(map[string]V),
		listeners: make(map[string]*set.Set),
	}
}

// Get returns the last-known value for the key.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set writes the value whole. Last write wins. Subscribers of the key
// are notified synchronously after the write.
func (s *Store[V]) Set(key string, value V) {
	s.mux.Lock()
	s.values[key] = value
	s.mux.Unlock()

	s.notify(Event[V]{Key: key, Op: OpSet, Value: value, Present: true})
}

// Update merges into the existing value via the caller-supplied apply
// function and writes the result back atomically. Updating a missing
// key is refused with an error rather than creating a partial entity.
// The merged value is returned. It is the apply function's job to
// re-attach any capability binding the value carries (merge-then-
// rebind).
func (s *Store[V]) Update(key string, apply func(V) V) (V, error) {
	s.mux.Lock()
	old, ok := s.values[key]
	if !ok {
		s.mux.Unlock()
		var zero V
		return zero, errors.Errorf(updateMissingErr, key)
	}
	merged := apply(old)
	s.values[key] = merged
	s.mux.Unlock()

	s.notify(Event[V]{Key: key, Op: OpUpdate, Value: merged, Present: true})
	return merged, nil
}

// Invalidate drops the key so the next read misses and repopulates.
// No-op on an absent key, but subscribers are still notified so views
// can re-derive.
func (s *Store[V]) Invalidate(key string) {
	s.mux.Lock()
	delete(s.values, key)
	s.mux.Unlock()

	s.notify(Event[V]{Key: key, Op: OpInvalidate})
}

// Subscribe registers a listener for every mutation of the key. The
// returned Unsubscribe detaches it. Listeners run synchronously on the
// mutating call; they must not mutate the store for the same key.
func (s *Store[V]) Subscribe(key string, l Listener[V]) Unsubscribe {
	rec := &listenerRecord[V]{l: l}

	s.mux.Lock()
	listeners, ok := s.listeners[key]
	if !ok {
		listeners = set.New()
		s.listeners[key] = listeners
	}
	listeners.Insert(rec)
	s.mux.Unlock()

	return func() {
		s.mux.Lock()
		defer s.mux.Unlock()
		if listeners, ok := s.listeners[key]; ok {
			listeners.Remove(rec)
			if listeners.Len() == 0 {
				delete(s.listeners, key)
			}
		}
	}
}

// Len returns the number of cached entities.
func (s *Store[V]) Len() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return len(s.values)
}

// Keys returns the cached keys in no particular order.
func (s *Store[V]) Keys() []string {
	s.mux.Lock()
	defer s.mux.Unlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}

// notify delivers the event to the key's subscribers. The subscriber
// set is snapshotted under the lock and called outside it so listeners
// can touch other keys.
func (s *Store[V]) notify(e Event[V]) {
	s.mux.Lock()
	listeners, ok := s.listeners[e.Key]
	if !ok || listeners.Len() == 0 {
		s.mux.Unlock()
		return
	}
	snapshot := make([]*listenerRecord[V], 0, listeners.Len())
	listeners.Do(func(item interface{}) {
		snapshot = append(snapshot, item.(*listenerRecord[V]))
	})
	s.mux.Unlock()

	jww.TRACE.Printf("[CACHE] Notifying %d listeners of %q", len(snapshot),
		e.Key)
	for _, rec := range snapshot {
		rec.l(e)
	}
}
