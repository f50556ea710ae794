////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"sync"
	"testing"
	"time"

	"github.com/ephemeraHQ/converse-core/protocol"
)

// Tests that two concurrent SyncAll calls for the same
// (identity, states) pair coalesce into exactly one network pass.
func TestManager_SyncAll_Deduplication(t *testing.T) {
	client := newMockClient()
	client.syncGate = make(chan struct{})
	m, _, _ := newTestManager(client)

	states := []protocol.ConsentState{protocol.ConsentAllowed}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.SyncAll("inbox-A", states); err != nil {
				t.Errorf("SyncAll returned an error: %+v", err)
			}
		}()
	}

	// Give both callers time to reach the in-flight pass, then let it
	// complete.
	time.Sleep(50 * time.Millisecond)
	close(client.syncGate)
	wg.Wait()

	if calls := client.getSyncCalls(); calls != 1 {
		t.Errorf("Wrong number of underlying sync passes."+
			"\nexpected: %d\nreceived: %d", 1, calls)
	}
}

// Tests that permutations of the same state set share a dedup key and
// different sets do not.
func TestSyncKey(t *testing.T) {
	a := syncKey("inbox-A", []protocol.ConsentState{
		protocol.ConsentAllowed, protocol.ConsentUnknown})
	b := syncKey("inbox-A", []protocol.ConsentState{
		protocol.ConsentUnknown, protocol.ConsentAllowed})
	if a != b {
		t.Errorf("Permuted state sets produced different keys."+
			"\nexpected: %s\nreceived: %s", a, b)
	}

	c := syncKey("inbox-A", []protocol.ConsentState{protocol.ConsentAllowed})
	if a == c {
		t.Errorf("Different state sets share key %s", a)
	}

	d := syncKey("inbox-B", []protocol.ConsentState{protocol.ConsentAllowed})
	if c == d {
		t.Errorf("Different identities share key %s", c)
	}
}

// Tests that a failed pass surfaces a SyncError.
func TestManager_SyncAll_Error(t *testing.T) {
	client := newMockClient()
	client.failSync = true
	m, _, _ := newTestManager(client)

	err := m.SyncAll("inbox-A",
		[]protocol.ConsentState{protocol.ConsentAllowed})
	if !IsSyncError(err) {
		t.Errorf("Expected a SyncError, received: %+v", err)
	}
}

// Tests that FetchConversations writes results into the entity cache
// and returns them in protocol order.
func TestManager_FetchConversations(t *testing.T) {
	client := newMockClient()
	client.addConversation("inbox-A",
		makeConv("topic-1", protocol.ConsentAllowed))
	client.addConversation("inbox-A",
		makeConv("topic-2", protocol.ConsentAllowed))
	m, _, _ := newTestManager(client)

	list, err := m.FetchConversations("inbox-A", protocol.ListFilter{
		States: []protocol.ConsentState{protocol.ConsentAllowed}}, 10)
	if err != nil {
		t.Fatalf("FetchConversations returned an error: %+v", err)
	}
	if len(list) != 2 || list[0].Topic != "topic-1" {
		t.Errorf("Wrong conversation list.\nreceived: %+v", list)
	}

	entry, ok := m.Conversation("inbox-A", "topic-2")
	if !ok {
		t.Fatal("Fetched conversation missing from entity cache")
	}
	if entry.Handle() == nil {
		t.Error("Cached entity has no capability binding")
	}
}

// Tests the fetch limit: with limit 1 only the first match returns.
func TestManager_FetchConversations_Limit(t *testing.T) {
	client := newMockClient()
	client.addConversation("inbox-A",
		makeConv("topic-1", protocol.ConsentAllowed))
	client.addConversation("inbox-A",
		makeConv("topic-2", protocol.ConsentAllowed))
	m, _, _ := newTestManager(client)

	list, err := m.FetchConversations("inbox-A", protocol.ListFilter{}, 1)
	if err != nil {
		t.Fatalf("FetchConversations returned an error: %+v", err)
	}
	if len(list) != 1 {
		t.Errorf("Limit not applied.\nexpected: %d\nreceived: %d",
			1, len(list))
	}
}

// Tests that results arriving after TearDown are not written into a
// fresh cache.
func TestManager_FetchConversations_TearDownRace(t *testing.T) {
	client := newMockClient()
	client.addConversation("inbox-A",
		makeConv("topic-1", protocol.ConsentAllowed))
	m, _, registry := newTestManager(client)

	// Prime the identity, then tear it down mid-"flight" by doing it
	// before the fetch's cache write would land.
	registry.Get("inbox-A")
	if _, err := m.FetchConversations("inbox-A",
		protocol.ListFilter{}, 10); err != nil {
		t.Fatalf("FetchConversations returned an error: %+v", err)
	}
	registry.TearDown("inbox-A")

	if _, ok := m.Conversation("inbox-A", "topic-1"); ok {
		t.Error("Entity cache repopulated after TearDown")
	}
}
