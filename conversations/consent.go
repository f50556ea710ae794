////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	jww "github.com/spf13/jwalterweatherman"

	"github.com/ephemeraHQ/converse-core/optimistic"
	"github.com/ephemeraHQ/converse-core/protocol"
)

// consentPrev is the composite snapshot a consent mutation captures
// before its first suspension point: the entity plus both bucket
// snapshots it may move between.
type consentPrev struct {
	entry    Entry
	hadEntry bool

	oldSnap    snapshot
	hadOldSnap bool

	newSnap    snapshot
	hadNewSnap bool
}

// SetConsent optimistically re-buckets the conversation under the new
// consent state and records the decision with the protocol. On remote
// failure every captured snapshot is restored verbatim; on success the
// two affected bucket snapshots are invalidated so the next read
// re-syncs from the protocol.
func (m *manager) SetConsent(identity, topic string,
	state protocol.ConsentState) error {

	ist := m.forIdentity(identity)

	ist.mux.Lock()
	entry, hadEntry := ist.entities.Get(topic)

	oldState := state
	if hadEntry {
		oldState = entry.Data.State
	}

	prev := consentPrev{entry: entry, hadEntry: hadEntry}
	prev.oldSnap, prev.hadOldSnap = ist.buckets.Get(oldState.String())
	prev.newSnap, prev.hadNewSnap = ist.buckets.Get(state.String())
	ist.mux.Unlock()

	if hadEntry && oldState == state {
		jww.DEBUG.Printf("[CONSENT] %s already %s for %s; recording "+
			"remotely anyway", topic, state, identity)
	}

	apply := func() {
		ist.mux.Lock()
		defer ist.mux.Unlock()

		if hadEntry {
			s := state
			if _, err := ist.entities.Update(topic, func(e Entry) Entry {
				return e.Merge(Partial{State: &s})
			}); err != nil {
				jww.WARN.Printf("[CONSENT] Optimistic entity update "+
					"failed for %s: %+v", topic, err)
			}
		}

		// Move the topic between snapshots where they exist. A bucket
		// that was never fetched stays unfetched; it will pick the
		// conversation up on its first real fetch.
		if prev.hadOldSnap && oldState != state {
			m.removeLocked(ist, oldState, topic)
		}
		if prev.hadNewSnap && !prev.newSnap.contains(topic) {
			snap, _ := ist.buckets.Get(state.String())
			snap.Topics = append([]string{topic}, snap.Topics...)
			ist.buckets.Set(state.String(), snap)
		}
	}

	remote := func() error {
		return m.client.SetConsentState(identity, topic, state)
	}

	rollback := func(p consentPrev) {
		ist.mux.Lock()
		defer ist.mux.Unlock()

		if p.hadEntry {
			ist.entities.Set(topic, p.entry)
		}
		if p.hadOldSnap {
			ist.buckets.Set(oldState.String(), p.oldSnap)
		}
		if p.hadNewSnap {
			ist.buckets.Set(state.String(), p.newSnap)
		}
	}

	invalidate := func() {
		ist.mux.Lock()
		defer ist.mux.Unlock()
		if oldState != state {
			ist.buckets.Invalidate(oldState.String())
		}
		ist.buckets.Invalidate(state.String())
	}

	return optimistic.Run("setConsent", prev, true, apply, remote,
		rollback, invalidate)
}

// removeLocked filters the topic out of a bucket snapshot. The caller
// holds the identity mutex.
func (m *manager) removeLocked(ist *identityState,
	state protocol.ConsentState, topic string) {

	snap, ok := ist.buckets.Get(state.String())
	if !ok || !snap.contains(topic) {
		return
	}
	filtered := make([]string, 0, len(snap.Topics)-1)
	for _, t := range snap.Topics {
		if t != topic {
			filtered = append(filtered, t)
		}
	}
	snap.Topics = filtered
	ist.buckets.Set(state.String(), snap)
}
