////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package membership

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/elixxir/ekv"

	"github.com/ephemeraHQ/converse-core/cache"
	"github.com/ephemeraHQ/converse-core/conversations"
	"github.com/ephemeraHQ/converse-core/protocol"
	"github.com/ephemeraHQ/converse-core/retry"
	"github.com/ephemeraHQ/converse-core/storage/versioned"
)

// mockHandle is the capability binding of a mocked conversation. Each
// Members call pops the next scripted result; the last result repeats
// once the script runs out.
type mockHandle struct {
	script [][]protocol.Member
	err    error
	calls  int
	mux    sync.Mutex
}

func (h *mockHandle) Members() ([]protocol.Member, error) {
	h.mux.Lock()
	defer h.mux.Unlock()
	h.calls++
	if h.err != nil {
		return nil, h.err
	}
	if len(h.script) == 0 {
		return nil, nil
	}
	i := h.calls - 1
	if i >= len(h.script) {
		i = len(h.script) - 1
	}
	return h.script[i], nil
}

func (h *mockHandle) SetConsent(protocol.ConsentState) error {
	return nil
}

func (h *mockHandle) getCalls() int {
	h.mux.Lock()
	defer h.mux.Unlock()
	return h.calls
}

// mockResolver serves conversation entries keyed identity+"/"+topic.
type mockResolver struct {
	entries map[string]conversations.Entry
}

func newMockResolver() *mockResolver {
	return &mockResolver{entries: make(map[string]conversations.Entry)}
}

func (r *mockResolver) addGroup(identity, topic string,
	handle *mockHandle) {
	r.entries[identity+"/"+topic] = conversations.NewEntry(
		protocol.Conversation{
			Topic:    topic,
			Kind:     protocol.KindGroup,
			State:    protocol.ConsentAllowed,
			IsActive: true,
		}, handle)
}

func (r *mockResolver) addDirect(identity, topic string) {
	r.entries[identity+"/"+topic] = conversations.NewEntry(
		protocol.Conversation{
			Topic:    topic,
			Kind:     protocol.KindDirect,
			State:    protocol.ConsentAllowed,
			IsActive: true,
		}, &mockHandle{})
}

func (r *mockResolver) Conversation(identity, topic string) (
	conversations.Entry, bool) {
	entry, ok := r.entries[identity+"/"+topic]
	return entry, ok
}

// mockProtocol implements the protocolClient subset with failure
// injection and call counters. The onMutate hook, when set, runs
// inside every mutation call so tests can observe cache state while
// the remote call is in flight.
type mockProtocol struct {
	requests map[string][]protocol.JoinRequest

	addMembersCalls    int
	updateRequestCalls int

	failAddMembers    bool
	failAdmin         bool
	failUpdateRequest bool

	onMutate func()

	mux sync.Mutex
}

func newMockProtocol() *mockProtocol {
	return &mockProtocol{requests: make(map[string][]protocol.JoinRequest)}
}

func (p *mockProtocol) mutation(fail bool) error {
	p.mux.Lock()
	hook := p.onMutate
	p.mux.Unlock()
	if hook != nil {
		hook()
	}
	if fail {
		return errors.New("connection unavailable")
	}
	return nil
}

func (p *mockProtocol) AddMembers(identity, topic string,
	inboxIDs []string) error {
	p.mux.Lock()
	p.addMembersCalls++
	fail := p.failAddMembers
	p.mux.Unlock()
	return p.mutation(fail)
}

func (p *mockProtocol) RemoveMembers(identity, topic string,
	inboxIDs []string) error {
	return p.mutation(false)
}

func (p *mockProtocol) AddAdmin(identity, topic, inboxID string) error {
	p.mux.Lock()
	fail := p.failAdmin
	p.mux.Unlock()
	return p.mutation(fail)
}

func (p *mockProtocol) RemoveAdmin(identity, topic, inboxID string) error {
	p.mux.Lock()
	fail := p.failAdmin
	p.mux.Unlock()
	return p.mutation(fail)
}

func (p *mockProtocol) AddSuperAdmin(identity, topic,
	inboxID string) error {
	p.mux.Lock()
	fail := p.failAdmin
	p.mux.Unlock()
	return p.mutation(fail)
}

func (p *mockProtocol) RemoveSuperAdmin(identity, topic,
	inboxID string) error {
	p.mux.Lock()
	fail := p.failAdmin
	p.mux.Unlock()
	return p.mutation(fail)
}

func (p *mockProtocol) JoinRequests(identity, topic string) (
	[]protocol.JoinRequest, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	return append([]protocol.JoinRequest{}, p.requests[topic]...), nil
}

func (p *mockProtocol) UpdateJoinRequest(identity, requestID string,
	status protocol.JoinRequestStatus) error {
	p.mux.Lock()
	p.updateRequestCalls++
	fail := p.failUpdateRequest
	p.mux.Unlock()
	return p.mutation(fail)
}

func (p *mockProtocol) getAddMembersCalls() int {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.addMembersCalls
}

// mockReporter collects event reports for assertions.
type mockReporter struct {
	reports []string
	mux     sync.Mutex
}

func (r *mockReporter) Report(priority int, category, evtType,
	details string) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.reports = append(r.reports, category+"/"+evtType)
}

func (r *mockReporter) count(kind string) int {
	r.mux.Lock()
	defer r.mux.Unlock()
	n := 0
	for _, report := range r.reports {
		if report == kind {
			n++
		}
	}
	return n
}

// newTestManager builds a membership manager over a memory KV with a
// millisecond-scale retry policy.
func newTestManager(resolver *mockResolver, client *mockProtocol) (
	Manager, *mockReporter, *cache.Registry) {

	registry := cache.NewRegistry(versioned.NewKV(ekv.MakeMemstore()))
	reporter := &mockReporter{}
	params := GetDefaultParams()
	params.Retry = retry.Policy{
		MaxAttempts: 3,
		Step:        time.Millisecond,
		Cap:         3 * time.Millisecond,
	}
	return NewManager(resolver, client, registry, reporter, params),
		reporter, registry
}

func member(inboxID string, p protocol.Permission) protocol.Member {
	return protocol.Member{
		InboxID:    inboxID,
		Permission: p,
		Consent:    protocol.ConsentAllowed,
	}
}
