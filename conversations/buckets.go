////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"encoding/json"
	"fmt"

	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"github.com/ephemeraHQ/converse-core/cache"
	"github.com/ephemeraHQ/converse-core/event"
	"github.com/ephemeraHQ/converse-core/protocol"
	"github.com/ephemeraHQ/converse-core/storage/versioned"
)

// Storage values.
const (
	bucketStoragePrefix   = "ConsentBuckets"
	bucketSnapshotKey     = "bucket-%s"
	bucketSnapshotVersion = 0
)

// snapshot is the ordered topic list of one (identity, consent state)
// bucket. It references entities in the shared cache rather than
// copying their fields.
type snapshot struct {
	Topics []string `json:"topics"`
}

// contains reports whether the topic is in the snapshot.
func (s snapshot) contains(topic string) bool {
	for _, t := range s.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// GetAllowed returns the identity's allowed bucket.
func (m *manager) GetAllowed(identity string) ([]protocol.Conversation, error) {
	return m.bucket(identity, protocol.ConsentAllowed)
}

// GetUnknown returns the identity's unknown bucket.
func (m *manager) GetUnknown(identity string) ([]protocol.Conversation, error) {
	return m.bucket(identity, protocol.ConsentUnknown)
}

// GetDenied returns the identity's denied bucket merged with
// legacy-blocked conversations.
func (m *manager) GetDenied(identity string) ([]protocol.Conversation, error) {
	return m.bucket(identity, protocol.ConsentDenied)
}

// bucket returns the cached snapshot for the consent state, or
// populates it with a sync + fetch on a miss. A failed sync falls back
// to the last persisted snapshot where one exists.
func (m *manager) bucket(identity string, state protocol.ConsentState) (
	[]protocol.Conversation, error) {

	ist := m.forIdentity(identity)

	if snap, ok := ist.buckets.Get(state.String()); ok {
		return m.materialize(ist, snap, identity, state), nil
	}

	if err := m.SyncAll(identity,
		[]protocol.ConsentState{state}); err != nil {
		return m.serveStale(ist, identity, state, err)
	}

	filter := protocol.ListFilter{
		States:     []protocol.ConsentState{state},
		ActiveOnly: m.params.ActiveOnly,
	}
	list, err := m.FetchConversations(identity, filter, m.params.FetchLimit)
	if err != nil {
		return m.serveStale(ist, identity, state, err)
	}

	// The fetch suspended; only write the snapshot if the identity
	// still exists.
	ist, ok := m.lookupIdentity(identity)
	if !ok {
		return list, nil
	}

	ist.mux.Lock()
	topics := make([]string, len(list))
	for i, c := range list {
		topics[i] = c.Topic
	}
	snap := snapshot{Topics: topics}
	ist.buckets.Set(state.String(), snap)
	persistBucket(ist.kv, state, list)
	ist.mux.Unlock()

	return m.materialize(ist, snap, identity, state), nil
}

// materialize resolves a snapshot's topics against the entity cache.
// For the denied bucket, legacy-blocked conversations are merged in at
// read time; topic equality is the only deduplication assumption, and
// collisions keep the protocol entry since it carries fresher fields.
func (m *manager) materialize(ist *identityState, snap snapshot,
	identity string, state protocol.ConsentState) []protocol.Conversation {

	list := make([]protocol.Conversation, 0, len(snap.Topics))
	seen := make(map[string]bool, len(snap.Topics))
	for _, topic := range snap.Topics {
		entry, ok := ist.entities.Get(topic)
		if !ok {
			jww.WARN.Printf("[BUCKET] Snapshot topic %s missing from "+
				"entity cache for %s", topic, identity)
			continue
		}
		list = append(list, entry.Data)
		seen[topic] = true
	}

	if state == protocol.ConsentDenied {
		for _, topic := range ist.legacy.All() {
			if seen[topic] {
				continue
			}
			if entry, ok := ist.entities.Get(topic); ok {
				c := entry.Data
				c.State = protocol.ConsentDenied
				list = append(list, c)
			} else {
				// Legacy conversations may predate the entity cache
				// entirely; a stub keeps them addressable for unblock.
				list = append(list, protocol.Conversation{
					Topic: topic,
					State: protocol.ConsentDenied,
				})
			}
			seen[topic] = true
		}
	}

	return list
}

// serveStale serves the last persisted snapshot after a failed sync,
// reporting the staleness, or propagates the sync error when no
// snapshot was ever persisted.
func (m *manager) serveStale(ist *identityState, identity string,
	state protocol.ConsentState, syncErr error) (
	[]protocol.Conversation, error) {

	list, err := loadBucket(ist.kv, state)
	if err != nil {
		return nil, syncErr
	}

	m.events.Report(5, event.CategorySync, "StaleServe",
		fmt.Sprintf("serving %d persisted %s conversations for %s "+
			"after sync failure: %s", len(list), state, identity, syncErr))
	jww.WARN.Printf("[BUCKET] Serving stale %s bucket for %s: %s",
		state, identity, syncErr)
	return list, nil
}

// Add inserts the conversation at the head of the bucket snapshot if
// its topic is absent. If it is already present, the entity is updated
// in place instead and the snapshot is left unchanged, so repeated
// adds never produce duplicates. A bucket that was never fetched stays
// unfetched: the entity is cached, but no snapshot is fabricated, so
// the first read still performs the real sync and fetch and picks the
// conversation up then.
func (m *manager) Add(identity string, state protocol.ConsentState,
	c protocol.Conversation) {

	ist := m.forIdentity(identity)
	ist.mux.Lock()
	defer ist.mux.Unlock()

	ist.entities.Set(c.Topic, m.bind(identity, c))

	snap, ok := ist.buckets.Get(state.String())
	if !ok {
		jww.DEBUG.Printf("[BUCKET] Add of %s cached the entity only: %s "+
			"bucket never fetched for %s", c.Topic, state, identity)
		return
	}
	if snap.contains(c.Topic) {
		jww.TRACE.Printf("[BUCKET] Add of present topic %s updated the "+
			"entity in place", c.Topic)
		return
	}

	snap.Topics = append([]string{c.Topic}, snap.Topics...)
	ist.buckets.Set(state.String(), snap)
	m.persistCurrent(ist, identity, state, snap)
}

// Update merges the partial into the cached entity. If the bucket
// snapshot was never fetched there is nothing sound to update; the
// call is a no-op that captures a diagnostic rather than failing
// silently or fabricating state.
func (m *manager) Update(identity string, state protocol.ConsentState,
	topic string, partial Partial) {

	ist := m.forIdentity(identity)
	ist.mux.Lock()
	defer ist.mux.Unlock()

	snap, ok := ist.buckets.Get(state.String())
	if !ok {
		m.events.Report(7, event.CategoryBuckets, "UpdateMiss",
			fmt.Sprintf("update of %s in never-fetched %s bucket for %s",
				topic, state, identity))
		jww.WARN.Printf("[BUCKET] Update of %s ignored: %s bucket never "+
			"fetched for %s", topic, state, identity)
		return
	}
	if !snap.contains(topic) {
		jww.DEBUG.Printf("[BUCKET] Update of %s ignored: not in %s bucket",
			topic, state)
		return
	}

	if _, err := ist.entities.Update(topic, func(e Entry) Entry {
		return e.Merge(partial)
	}); err != nil {
		m.events.Report(7, event.CategoryBuckets, "UpdateMiss",
			fmt.Sprintf("entity for %s missing during update: %+v",
				topic, err))
	}
	m.persistCurrent(ist, identity, state, snap)
}

// Remove filters the topic out of the bucket snapshot. No-op if the
// topic is absent. The entity itself is retained; conversations are
// re-bucketed, never hard-deleted.
func (m *manager) Remove(identity string, state protocol.ConsentState,
	topic string) {

	ist := m.forIdentity(identity)
	ist.mux.Lock()
	defer ist.mux.Unlock()

	snap, ok := ist.buckets.Get(state.String())
	if !ok || !snap.contains(topic) {
		return
	}

	m.removeLocked(ist, state, topic)
	snap, _ = ist.buckets.Get(state.String())
	m.persistCurrent(ist, identity, state, snap)
}

// SubscribeBucket registers a listener for every change to the
// bucket's snapshot. The listener receives the materialized bucket.
func (m *manager) SubscribeBucket(identity string,
	state protocol.ConsentState, l BucketListener) cache.Unsubscribe {

	ist := m.forIdentity(identity)
	return ist.buckets.Subscribe(state.String(),
		func(e cache.Event[snapshot]) {
			l(m.materialize(ist, e.Value, identity, state))
		})
}

// CallAllUnknown replays the current Unknown bucket on the callback.
// Only the cached snapshot is replayed; a UI wanting fresh data calls
// GetUnknown first.
func (m *manager) CallAllUnknown(identity string, cb UnknownCallback) {
	ist := m.forIdentity(identity)
	snap, ok := ist.buckets.Get(protocol.ConsentUnknown.String())
	if !ok {
		return
	}
	for _, c := range m.materialize(ist, snap, identity,
		protocol.ConsentUnknown) {
		cb(c)
	}
}

// persistCurrent writes the bucket's materialized conversations to
// storage. Callers hold the identity mutex.
func (m *manager) persistCurrent(ist *identityState, identity string,
	state protocol.ConsentState, snap snapshot) {
	persistBucket(ist.kv, state, m.materialize(ist, snap, identity, state))
}

// persistBucket stores the materialized bucket so a later cold start
// can serve it stale when the protocol is unreachable.
func persistBucket(kv *versioned.KV, state protocol.ConsentState,
	list []protocol.Conversation) {

	data, err := json.Marshal(list)
	if err != nil {
		jww.ERROR.Printf("[BUCKET] Failed to marshal %s bucket: %+v",
			state, err)
		return
	}
	obj := &versioned.Object{
		Version:   bucketSnapshotVersion,
		Timestamp: netTime.Now(),
		Data:      data,
	}
	key := fmt.Sprintf(bucketSnapshotKey, state)
	if err = kv.Set(key, obj); err != nil {
		jww.ERROR.Printf("[BUCKET] Failed to persist %s bucket: %+v",
			state, err)
	}
}

// loadBucket loads the last persisted materialization of the bucket.
func loadBucket(kv *versioned.KV, state protocol.ConsentState) (
	[]protocol.Conversation, error) {

	obj, err := kv.Get(fmt.Sprintf(bucketSnapshotKey, state),
		bucketSnapshotVersion)
	if err != nil {
		return nil, err
	}
	var list []protocol.Conversation
	if err = json.Unmarshal(obj.Data, &list); err != nil {
		return nil, err
	}
	return list, nil
}
