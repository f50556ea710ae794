////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package optimistic runs cache mutations ahead of their remote
// confirmation. A mutation captures the previous cached value, applies
// the predicted result synchronously so the UI sees it with zero
// latency, issues the remote call, and then either invalidates the
// affected entries (success) or restores the captured value verbatim
// (failure). The capture happens before the first suspension point, so
// a rollback never needs a second network round trip and never clobbers
// unrelated writes that landed while the remote call was in flight.
package optimistic

import (
	jww "github.com/spf13/jwalterweatherman"
)

// State is the explicit lifecycle of one mutation invocation.
type State uint8

const (
	// Pending - created, previous value captured, nothing applied yet.
	Pending State = iota

	// Applied - the predicted value is in the cache; the remote call
	// has not resolved.
	Applied

	// Reconciled - the remote call succeeded and the affected entries
	// were invalidated so the next read re-syncs.
	Reconciled

	// RolledBack - the remote call failed and the captured previous
	// value was restored.
	RolledBack
)

// String adheres to the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Applied:
		return "applied"
	case Reconciled:
		return "reconciled"
	case RolledBack:
		return "rolled back"
	default:
		return "invalid"
	}
}

// Mutation is one optimistic write against a cached value of type V.
// The previous value lives here, not in a closure, so the rollback
// contract is inspectable and testable on its own.
type Mutation[V any] struct {
	op          string
	previous    V
	hadPrevious bool
	state       State
}

// Begin captures the previous cached value and returns the mutation in
// the Pending state. Pass ok=false when the cache was cold; rollback is
// then a no-op because there is nothing to restore to.
func Begin[V any](op string, previous V, ok bool) *Mutation[V] {
	return &Mutation[V]{
		op:          op,
		previous:    previous,
		hadPrevious: ok,
		state:       Pending,
	}
}

// Apply runs the synchronous cache write of the predicted value and
// moves the mutation to Applied.
func (m *Mutation[V]) Apply(apply func()) {
	if m.state != Pending {
		jww.FATAL.Panicf("Cannot apply mutation %q in state %s",
			m.op, m.state)
	}
	apply()
	m.state = Applied
}

// Reconcile finishes the mutation based on the remote call's outcome.
// On success the invalidate function runs so the next read re-syncs
// from the protocol (the optimistic value is not trusted as final
// truth) and nil is returned. On failure the rollback function receives
// the captured previous value verbatim, skipped entirely if the cache
// was cold, and the remote error comes back wrapped in a MutationError.
func (m *Mutation[V]) Reconcile(remoteErr error, rollback func(previous V),
	invalidate func()) error {
	if m.state != Applied {
		jww.FATAL.Panicf("Cannot reconcile mutation %q in state %s",
			m.op, m.state)
	}

	if remoteErr != nil {
		if m.hadPrevious {
			rollback(m.previous)
		} else {
			jww.DEBUG.Printf("[MUTATE] %s failed on a cold cache; "+
				"nothing to roll back", m.op)
		}
		m.state = RolledBack
		jww.WARN.Printf("[MUTATE] %s rolled back: %s", m.op, remoteErr)
		return &MutationError{Op: m.op, cause: remoteErr}
	}

	invalidate()
	m.state = Reconciled
	jww.DEBUG.Printf("[MUTATE] %s reconciled", m.op)
	return nil
}

// State returns the mutation's current lifecycle state.
func (m *Mutation[V]) State() State {
	return m.state
}

// Previous returns the captured value and whether one was captured.
func (m *Mutation[V]) Previous() (V, bool) {
	return m.previous, m.hadPrevious
}

// Run executes the full pipeline in order: capture is already done by
// the caller (the previous value is an argument so the caller cannot
// accidentally capture after a suspension point), then apply, remote,
// and reconcile.
func Run[V any](op string, previous V, hadPrevious bool, apply func(),
	remote func() error, rollback func(previous V),
	invalidate func()) error {
	m := Begin(op, previous, hadPrevious)
	m.Apply(apply)
	return m.Reconcile(remote(), rollback, invalidate)
}
