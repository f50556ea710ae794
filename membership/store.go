////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package membership

import (
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"github.com/ephemeraHQ/converse-core/cache"
	"github.com/ephemeraHQ/converse-core/event"
	"github.com/ephemeraHQ/converse-core/protocol"
	"github.com/ephemeraHQ/converse-core/retry"
)

// manager is the implementation of the Manager interface.
type manager struct {
	resolver conversationResolver
	client   protocolClient
	registry *cache.Registry
	events   event.Reporter
	params   Params

	idents map[string]*identityState
	mux    sync.Mutex
}

// identityState is one identity's slice of the membership caches.
type identityState struct {
	// rosters maps a topic to its last-fetched roster. Only deep
	// copies cross the cache boundary in either direction.
	rosters *cache.Store[Roster]

	// requests maps a topic to its pending join requests.
	requests *cache.Store[[]protocol.JoinRequest]
}

// NewManager creates the group membership manager. The registry
// partitions cache state by identity; a registry teardown drops this
// manager's state for that identity as well.
func NewManager(resolver conversationResolver, client protocolClient,
	registry *cache.Registry, events event.Reporter,
	params Params) Manager {

	m := &manager{
		resolver: resolver,
		client:   client,
		registry: registry,
		events:   events,
		params:   params,
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

	// Registering with the registry ties this identity's lifecycle to
	// the registry's teardown.
	m.registry.Get(identity)
	ist := &identityState{
		rosters:  cache.NewStore[Roster](),
		requests: cache.NewStore[[]protocol.JoinRequest](),
	}
	m.idents[identity] = ist
	return ist
}

// lookupIdentity returns the identity's state only if it still exists.
// Used to re-validate relevance after a suspension point.
func (m *manager) lookupIdentity(identity string) (*identityState, bool) {
	m.mux.Lock()
	defer m.mux.Unlock()
	ist, ok := m.idents[identity]
	return ist, ok
}

// dropIdentity releases all membership state for the identity.
func (m *manager) dropIdentity(identity string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, ok := m.idents[identity]; ok {
		delete(m.idents, identity)
		jww.INFO.Printf("[MEMBER] Dropped membership state for identity %s",
			identity)
	}
}

// GetMembers returns the conversation's roster, fetching on a miss.
func (m *manager) GetMembers(identity, topic string) (Roster, error) {
	ist := m.forIdentity(identity)
	if roster, ok := ist.rosters.Get(topic); ok {
		return roster.DeepCopy(), nil
	}
	return m.FetchMembers(identity, topic)
}

// FetchMembers resolves the conversation via the shared conversation
// cache, asserts it is a group, and fetches its member list through
// the entry's capability binding. A zero-length list is treated as a
// transient inconsistency and retried per the retry policy before an
// EmptyMembersError surfaces as terminal; callers must never interpret
// "no members" as ground truth.
func (m *manager) FetchMembers(identity, topic string) (Roster, error) {
	entry, ok := m.resolver.Conversation(identity, topic)
	if !ok {
		return Roster{}, errors.Errorf(noConversationErr, topic, identity)
	}
	if entry.Data.Kind != protocol.KindGroup {
		return Roster{}, &NotAGroupError{
			Topic: topic, Kind: entry.Data.Kind}
	}

	// Only the empty-roster race is retried; a protocol failure
	// propagates on the first attempt.
	var members []protocol.Member
	err := m.params.Retry.Do("fetchMembers", func() error {
		var fetchErr error
		members, fetchErr = entry.Handle().Members()
		if fetchErr != nil {
			return retry.Permanent(fetchErr)
		}
		if len(members) == 0 {
			return &EmptyMembersError{Topic: topic}
		}
		return nil
	})
	if err != nil {
		if IsEmptyMembersError(err) {
			m.events.Report(6, event.CategoryMembership, "EmptyRoster",
				"group "+topic+" still empty after retries")
		}
		return Roster{}, err
	}

	roster := NewRoster(members)

	// The fetch suspended; only cache the roster if the identity still
	// exists.
	if ist, ok := m.lookupIdentity(identity); ok {
		ist.rosters.Set(topic, roster.DeepCopy())
	} else {
		jww.DEBUG.Printf("[MEMBER] Dropping fetched roster of %s for "+
			"torn-down identity %s", topic, identity)
	}

	return roster, nil
}
