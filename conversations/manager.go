////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"sync"

	jww "github.com/spf13/jwalterweatherman"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/singleflight"

	"github.com/ephemeraHQ/converse-core/cache"
	"github.com/ephemeraHQ/converse-core/event"
	"github.com/ephemeraHQ/converse-core/protocol"
	"github.com/ephemeraHQ/converse-core/storage/versioned"
)

// manager is the implementation of the Manager interface.
type manager struct {
	client   protocolClient
	registry *cache.Registry
	events   event.Reporter
	params   Params

	// limiter paces remote reconciliation passes; syncs coalesces
	// concurrent identical passes into one in-flight call.
	limiter ratelimit.Limiter
	syncs   singleflight.Group

	idents map[string]*identityState
	mux    sync.Mutex
}

// identityState is one identity's slice of the conversation caches.
type identityState struct {
	// entities is the shared entity cache: topic -> Entry. Bucket
	// snapshots reference entities here instead of copying them.
	entities *cache.Store[Entry]

	// buckets maps a consent state name to its ordered topic
	// snapshot. Each bucket is an independently cached projection.
	buckets *cache.Store[snapshot]

	legacy *LegacyBlockStore
	kv     *versioned.KV

	// mux serializes bucket mutations for the identity so add/update/
	// remove calls apply in invocation order.
	mux sync.Mutex
}

// NewManager creates the conversation consent manager. The registry
// partitions cache state by identity; a registry teardown drops this
// manager's state for that identity as well.
func NewManager(client protocolClient, registry *cache.Registry,
	events event.Reporter, params Params) Manager {

	m := &manager{
		client:   client,
		registry: registry,
		events:   events,
		params:   params,
		limiter:  ratelimit.New(params.SyncsPerSecond),
		idents:   make(map[string]*identityState),
	}

	registry.OnTearDown(m.dropIdentity)

	return m
}

// forIdentity returns the identity's state, creating it on first use.
func (m *manager) forIdentity(identity string) *identityState {
	m.mux.Lock()
	defer m.mux.Unlock()

	if ist, ok := m.idents[identity]; ok {
		return ist
	}

	kv := m.registry.Get(identity).KV().Prefix(bucketStoragePrefix)
	ist := &identityState{
		entities: cache.NewStore[Entry](),
		buckets:  cache.NewStore[snapshot](),
		legacy:   NewOrLoadLegacyBlockStore(kv),
		kv:       kv,
	}
	m.idents[identity] = ist
	return ist
}

// lookupIdentity returns the identity's state only if it still exists.
// Used to re-validate relevance after a suspension point: a sync that
// resolves after logout must not repopulate a dead identity.
func (m *manager) lookupIdentity(identity string) (*identityState, bool) {
	m.mux.Lock()
	defer m.mux.Unlock()
	ist, ok := m.idents[identity]
	return ist, ok
}

// dropIdentity releases all conversation state for the identity.
func (m *manager) dropIdentity(identity string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, ok := m.idents[identity]; ok {
		delete(m.idents, identity)
		jww.INFO.Printf("[CONVO] Dropped conversation state for identity %s",
			identity)
	}
}

// Conversation returns the cached entity with its capability binding.
func (m *manager) Conversation(identity, topic string) (Entry, bool) {
	return m.forIdentity(identity).entities.Get(topic)
}

// bind attaches the live capability to a conversation value.
func (m *manager) bind(identity string, c protocol.Conversation) Entry {
	return NewEntry(c, &liveHandle{
		client:   m.client,
		identity: identity,
		topic:    c.Topic,
	})
}
