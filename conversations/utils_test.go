////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"sync"

	"github.com/pkg/errors"
	"gitlab.com/elixxir/ekv"

	"github.com/ephemeraHQ/converse-core/cache"
	"github.com/ephemeraHQ/converse-core/protocol"
	"github.com/ephemeraHQ/converse-core/storage/versioned"
)

// mockClient implements the protocolClient subset with call counters
// and failure injection.
type mockClient struct {
	conversations map[string][]protocol.Conversation
	members       map[string][]protocol.Member

	syncCalls int
	listCalls int

	// syncGate, when set, blocks SyncAll until the gate closes so
	// tests can hold a pass in flight.
	syncGate chan struct{}

	failSync       bool
	failSetConsent bool

	mux sync.Mutex
}

func newMockClient() *mockClient {
	return &mockClient{
		conversations: make(map[string][]protocol.Conversation),
		members:       make(map[string][]protocol.Member),
	}
}

func (c *mockClient) SyncAll(identity string,
	states []protocol.ConsentState) error {
	c.mux.Lock()
	c.syncCalls++
	gate := c.syncGate
	fail := c.failSync
	c.mux.Unlock()

	if gate != nil {
		<-gate
	}
	if fail {
		return errors.New("connection unavailable")
	}
	return nil
}

func (c *mockClient) List(identity string, filter protocol.ListFilter,
	limit int) ([]protocol.Conversation, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.listCalls++

	if c.failSync {
		return nil, errors.New("connection unavailable")
	}

	var list []protocol.Conversation
	for _, conv := range c.conversations[identity] {
		if !filter.Match(conv) {
			continue
		}
		list = append(list, conv)
		if limit > 0 && len(list) >= limit {
			break
		}
	}
	return list, nil
}

func (c *mockClient) ConsentState(identity, topic string) (
	protocol.ConsentState, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	for _, conv := range c.conversations[identity] {
		if conv.Topic == topic {
			return conv.State, nil
		}
	}
	return protocol.ConsentUnknown, errors.Errorf("no conversation %s", topic)
}

func (c *mockClient) SetConsentState(identity, topic string,
	state protocol.ConsentState) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.failSetConsent {
		return errors.New("connection unavailable")
	}
	list := c.conversations[identity]
	for i := range list {
		if list[i].Topic == topic {
			list[i].State = state
		}
	}
	return nil
}

func (c *mockClient) Members(identity, topic string) (
	[]protocol.Member, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.members[identity+"/"+topic], nil
}

func (c *mockClient) addConversation(identity string,
	conv protocol.Conversation) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.conversations[identity] = append(c.conversations[identity], conv)
}

func (c *mockClient) getSyncCalls() int {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.syncCalls
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

// newTestManager builds a manager over a memory KV with fast params.
func newTestManager(client *mockClient) (Manager, *mockReporter,
	*cache.Registry) {
	registry := cache.NewRegistry(versioned.NewKV(ekv.MakeMemstore()))
	reporter := &mockReporter{}
	params := GetDefaultParams()
	params.SyncsPerSecond = 1000
	return NewManager(client, registry, reporter, params), reporter, registry
}

func makeConv(topic string, state protocol.ConsentState) protocol.Conversation {
	return protocol.Conversation{
		Topic:    topic,
		Kind:     protocol.KindGroup,
		State:    state,
		IsActive: true,
		Name:     "conv " + topic,
	}
}
