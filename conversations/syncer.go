////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"sort"
	"strings"

	jww "github.com/spf13/jwalterweatherman"

	"github.com/ephemeraHQ/converse-core/protocol"
)

// SyncAll ensures the remote protocol has performed a full
// reconciliation pass for the requested consent states. It is
// idempotent and safe to call concurrently: calls sharing an
// (identity, states) key await one underlying pass instead of issuing
// duplicates. This coalescing is the primary concurrency-correctness
// mechanism of the engine.
func (m *manager) SyncAll(identity string,
	states []protocol.ConsentState) error {

	key := syncKey(identity, states)
	_, err, shared := m.syncs.Do(key, func() (interface{}, error) {
		m.limiter.Take()
		jww.DEBUG.Printf("[SYNC] Running sync pass %s", key)
		return nil, m.client.SyncAll(identity, states)
	})
	if shared {
		jww.TRACE.Printf("[SYNC] Coalesced into in-flight pass %s", key)
	}

	if err != nil {
		return &SyncError{Identity: identity, cause: err}
	}
	return nil
}

// FetchConversations pulls up to limit conversations matching the
// filter, writes each into the entity cache, and returns the ordered
// list. Results arriving after the identity was torn down are dropped.
func (m *manager) FetchConversations(identity string,
	filter protocol.ListFilter, limit int) ([]protocol.Conversation, error) {

	// Ensure the identity exists before suspending so a fetch can
	// never resurrect a torn-down identity by itself.
	m.forIdentity(identity)

	list, err := m.client.List(identity, filter, limit)
	if err != nil {
		return nil, &SyncError{Identity: identity, cause: err}
	}

	// The list call suspended; re-validate that the identity still
	// exists before touching its caches.
	ist, ok := m.lookupIdentity(identity)
	if !ok {
		jww.DEBUG.Printf("[SYNC] Dropping %d fetched conversations for "+
			"torn-down identity %s", len(list), identity)
		return list, nil
	}

	for _, c := range list {
		ist.entities.Set(c.Topic, m.bind(identity, c))
	}

	jww.DEBUG.Printf("[SYNC] Fetched %d conversations for %s",
		len(list), identity)
	return list, nil
}

// syncKey builds the deduplication key for one (identity, states)
// pair. States are sorted so permutations of the same set coalesce.
func syncKey(identity string, states []protocol.ConsentState) string {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = s.String()
	}
	sort.Strings(names)
	return identity + "|" + strings.Join(names, ",")
}
