////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"testing"

	"github.com/ephemeraHQ/converse-core/protocol"
)

// Tests that a cold Get populates the bucket with a sync + fetch and
// a warm Get serves from cache without another network pass.
func TestManager_GetAllowed(t *testing.T) {
	client := newMockClient()
	client.addConversation("inbox-A",
		makeConv("topic-1", protocol.ConsentAllowed))
	m, _, _ := newTestManager(client)

	list, err := m.GetAllowed("inbox-A")
	if err != nil {
		t.Fatalf("GetAllowed returned an error: %+v", err)
	}
	if len(list) != 1 || list[0].Topic != "topic-1" {
		t.Fatalf("Wrong allowed bucket.\nreceived: %+v", list)
	}

	if _, err = m.GetAllowed("inbox-A"); err != nil {
		t.Fatalf("Warm GetAllowed returned an error: %+v", err)
	}
	if calls := client.getSyncCalls(); calls != 1 {
		t.Errorf("Warm read hit the network."+
			"\nexpected: %d sync passes\nreceived: %d", 1, calls)
	}
}

// Tests that adding a conversation whose topic is already present
// updates the entity in place without duplicating the snapshot entry.
func TestManager_Add_Idempotent(t *testing.T) {
	client := newMockClient()
	conv := makeConv("topic-1", protocol.ConsentAllowed)
	client.addConversation("inbox-A", conv)
	m, _, _ := newTestManager(client)

	if _, err := m.GetAllowed("inbox-A"); err != nil {
		t.Fatalf("GetAllowed returned an error: %+v", err)
	}

	m.Add("inbox-A", protocol.ConsentAllowed, conv)
	conv.Name = "renamed"
	m.Add("inbox-A", protocol.ConsentAllowed, conv)

	list, err := m.GetAllowed("inbox-A")
	if err != nil {
		t.Fatalf("GetAllowed returned an error: %+v", err)
	}
	if len(list) != 1 {
		t.Fatalf("Repeated add duplicated the topic."+
			"\nexpected: %d entries\nreceived: %d", 1, len(list))
	}
	if list[0].Name != "renamed" {
		t.Errorf("Repeated add did not update the entity."+
			"\nexpected: %q\nreceived: %q", "renamed", list[0].Name)
	}
}

// Tests that Add inserts new conversations at the head of a fetched
// bucket.
func TestManager_Add_HeadInsert(t *testing.T) {
	client := newMockClient()
	client.addConversation("inbox-A",
		makeConv("topic-1", protocol.ConsentAllowed))
	m, _, _ := newTestManager(client)

	if _, err := m.GetAllowed("inbox-A"); err != nil {
		t.Fatalf("GetAllowed returned an error: %+v", err)
	}

	m.Add("inbox-A", protocol.ConsentAllowed,
		makeConv("topic-2", protocol.ConsentAllowed))

	list, err := m.GetAllowed("inbox-A")
	if err != nil {
		t.Fatalf("GetAllowed returned an error: %+v", err)
	}
	if len(list) != 2 || list[0].Topic != "topic-2" {
		t.Errorf("Wrong bucket order.\nexpected head: %s\nreceived: %+v",
			"topic-2", list)
	}
}

// Tests that adding to a never-fetched bucket caches the entity but
// does not fabricate a snapshot: the first read still runs the real
// sync and fetch and returns the full conversation list.
func TestManager_Add_NeverFetched(t *testing.T) {
	client := newMockClient()
	client.addConversation("inbox-A",
		makeConv("topic-1", protocol.ConsentAllowed))
	client.addConversation("inbox-A",
		makeConv("topic-2", protocol.ConsentAllowed))
	m, _, _ := newTestManager(client)

	local := makeConv("topic-local", protocol.ConsentAllowed)
	client.addConversation("inbox-A", local)
	m.Add("inbox-A", protocol.ConsentAllowed, local)

	if calls := client.getSyncCalls(); calls != 0 {
		t.Fatalf("Add hit the network.\nexpected: %d sync passes"+
			"\nreceived: %d", 0, calls)
	}
	if _, ok := m.Conversation("inbox-A", "topic-local"); !ok {
		t.Error("Add to never-fetched bucket did not cache the entity")
	}

	list, err := m.GetAllowed("inbox-A")
	if err != nil {
		t.Fatalf("GetAllowed returned an error: %+v", err)
	}
	if calls := client.getSyncCalls(); calls != 1 {
		t.Errorf("Cold read after add skipped the sync."+
			"\nexpected: %d sync passes\nreceived: %d", 1, calls)
	}
	if len(list) != 3 {
		t.Errorf("Cold read after add hid the remote conversations."+
			"\nexpected: %d conversations\nreceived: %d (%+v)",
			3, len(list), list)
	}
}

// Tests that updating a bucket that was never fetched is a no-op that
// reports a diagnostic event.
func TestManager_Update_NeverFetched(t *testing.T) {
	client := newMockClient()
	m, reporter, _ := newTestManager(client)

	name := "renamed"
	m.Update("inbox-A", protocol.ConsentAllowed, "topic-1",
		Partial{Name: &name})

	if n := reporter.count("Buckets/UpdateMiss"); n != 1 {
		t.Errorf("Update of never-fetched bucket not reported."+
			"\nexpected: %d UpdateMiss events\nreceived: %d", 1, n)
	}
	if _, ok := m.Conversation("inbox-A", "topic-1"); ok {
		t.Error("Update of never-fetched bucket fabricated an entity")
	}
}

// Tests that Update merges a partial into the cached entity.
func TestManager_Update(t *testing.T) {
	client := newMockClient()
	client.addConversation("inbox-A",
		makeConv("topic-1", protocol.ConsentAllowed))
	m, reporter, _ := newTestManager(client)

	if _, err := m.GetAllowed("inbox-A"); err != nil {
		t.Fatalf("GetAllowed returned an error: %+v", err)
	}

	name := "renamed"
	last := &protocol.Message{ID: "msg-1", Fallback: "hello"}
	m.Update("inbox-A", protocol.ConsentAllowed, "topic-1",
		Partial{Name: &name, LastMessage: last})

	entry, ok := m.Conversation("inbox-A", "topic-1")
	if !ok {
		t.Fatal("Updated conversation missing from entity cache")
	}
	if entry.Data.Name != name || entry.Data.LastMessage == nil ||
		entry.Data.LastMessage.ID != last.ID {
		t.Errorf("Partial not merged.\nexpected: %s/%s\nreceived: %s/%+v",
			name, last.ID, entry.Data.Name, entry.Data.LastMessage)
	}
	if n := reporter.count("Buckets/UpdateMiss"); n != 0 {
		t.Errorf("Successful update reported %d UpdateMiss events", n)
	}
}

// Tests that Remove filters the topic from the snapshot but keeps the
// entity addressable.
func TestManager_Remove(t *testing.T) {
	client := newMockClient()
	m, _, _ := newTestManager(client)

	m.Add("inbox-A", protocol.ConsentAllowed,
		makeConv("topic-1", protocol.ConsentAllowed))
	m.Add("inbox-A", protocol.ConsentAllowed,
		makeConv("topic-2", protocol.ConsentAllowed))
	m.Remove("inbox-A", protocol.ConsentAllowed, "topic-1")

	list, err := m.GetAllowed("inbox-A")
	if err != nil {
		t.Fatalf("GetAllowed returned an error: %+v", err)
	}
	if len(list) != 1 || list[0].Topic != "topic-2" {
		t.Errorf("Wrong bucket after remove.\nreceived: %+v", list)
	}

	if _, ok := m.Conversation("inbox-A", "topic-1"); !ok {
		t.Error("Remove deleted the entity instead of re-bucketing")
	}
}

// Tests that the denied bucket is the union of protocol-denied and
// legacy-blocked conversations, with the protocol entry winning on a
// topic collision.
func TestManager_GetDenied_Union(t *testing.T) {
	client := newMockClient()
	denied := makeConv("topic-X", protocol.ConsentDenied)
	denied.Name = "protocol entry"
	client.addConversation("inbox-A", denied)
	m, _, _ := newTestManager(client)

	if err := m.BlockLegacy("inbox-A", "topic-Y"); err != nil {
		t.Fatalf("BlockLegacy returned an error: %+v", err)
	}
	// Collision: the protocol also reports topic-X as denied.
	if err := m.BlockLegacy("inbox-A", "topic-X"); err != nil {
		t.Fatalf("BlockLegacy returned an error: %+v", err)
	}

	list, err := m.GetDenied("inbox-A")
	if err != nil {
		t.Fatalf("GetDenied returned an error: %+v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Wrong denied bucket size."+
			"\nexpected: %d\nreceived: %d (%+v)", 2, len(list), list)
	}

	byTopic := make(map[string]protocol.Conversation, len(list))
	for _, c := range list {
		byTopic[c.Topic] = c
	}
	if byTopic["topic-X"].Name != "protocol entry" {
		t.Errorf("Collision did not keep the protocol entry."+
			"\nreceived: %+v", byTopic["topic-X"])
	}
	if stub, ok := byTopic["topic-Y"]; !ok ||
		stub.State != protocol.ConsentDenied {
		t.Errorf("Legacy-only topic missing or mis-stated."+
			"\nreceived: %+v", stub)
	}
}

// Tests that unblocking removes the legacy entry from the denied
// bucket on the next read.
func TestManager_GetDenied_Unblock(t *testing.T) {
	client := newMockClient()
	m, _, _ := newTestManager(client)

	if err := m.BlockLegacy("inbox-A", "topic-Y"); err != nil {
		t.Fatalf("BlockLegacy returned an error: %+v", err)
	}
	if err := m.UnblockLegacy("inbox-A", "topic-Y"); err != nil {
		t.Fatalf("UnblockLegacy returned an error: %+v", err)
	}

	list, err := m.GetDenied("inbox-A")
	if err != nil {
		t.Fatalf("GetDenied returned an error: %+v", err)
	}
	if len(list) != 0 {
		t.Errorf("Unblocked topic still in denied bucket: %+v", list)
	}
}

// Tests that a failed sync serves the last persisted bucket and
// reports the staleness, and that an identity with nothing persisted
// propagates the sync error instead.
func TestManager_Bucket_StaleServe(t *testing.T) {
	client := newMockClient()
	m, reporter, registry := newTestManager(client)

	// Persist a bucket as a previous healthy run would have.
	kv := registry.Get("inbox-A").KV().Prefix(bucketStoragePrefix)
	persistBucket(kv, protocol.ConsentAllowed, []protocol.Conversation{
		makeConv("topic-1", protocol.ConsentAllowed)})

	client.mux.Lock()
	client.failSync = true
	client.mux.Unlock()

	list, err := m.GetAllowed("inbox-A")
	if err != nil {
		t.Fatalf("GetAllowed did not serve stale: %+v", err)
	}
	if len(list) != 1 || list[0].Topic != "topic-1" {
		t.Errorf("Wrong stale bucket.\nreceived: %+v", list)
	}
	if n := reporter.count("Sync/StaleServe"); n != 1 {
		t.Errorf("Stale serve not reported."+
			"\nexpected: %d events\nreceived: %d", 1, n)
	}

	// A stale serve must not seed the cache: the next read retries.
	if _, err = m.GetAllowed("inbox-A"); !IsSyncError(err) &&
		reporter.count("Sync/StaleServe") != 2 {
		t.Error("Stale serve seeded the in-memory bucket")
	}

	// No persisted snapshot means the sync error propagates.
	if _, err = m.GetUnknown("inbox-A"); !IsSyncError(err) {
		t.Errorf("Expected a SyncError, received: %+v", err)
	}
}

// Tests that CallAllUnknown replays every cached unknown conversation
// and is a no-op before the first fetch.
func TestManager_CallAllUnknown(t *testing.T) {
	client := newMockClient()
	client.addConversation("inbox-A",
		makeConv("topic-1", protocol.ConsentUnknown))
	client.addConversation("inbox-A",
		makeConv("topic-2", protocol.ConsentUnknown))
	m, _, _ := newTestManager(client)

	var replayed []string
	cb := func(c protocol.Conversation) {
		replayed = append(replayed, c.Topic)
	}

	m.CallAllUnknown("inbox-A", cb)
	if len(replayed) != 0 {
		t.Errorf("Replay before first fetch returned %+v", replayed)
	}

	if _, err := m.GetUnknown("inbox-A"); err != nil {
		t.Fatalf("GetUnknown returned an error: %+v", err)
	}
	m.CallAllUnknown("inbox-A", cb)
	if len(replayed) != 2 {
		t.Errorf("Wrong replay.\nexpected: %d calls\nreceived: %+v",
			2, replayed)
	}
}

// Tests that a bucket subscriber receives the materialized bucket on
// every snapshot change and stops after unsubscribing.
func TestManager_SubscribeBucket(t *testing.T) {
	client := newMockClient()
	m, _, _ := newTestManager(client)

	var got [][]protocol.Conversation
	unsub := m.SubscribeBucket("inbox-A", protocol.ConsentAllowed,
		func(list []protocol.Conversation) {
			got = append(got, list)
		})

	m.Add("inbox-A", protocol.ConsentAllowed,
		makeConv("topic-1", protocol.ConsentAllowed))
	if len(got) != 1 || len(got[0]) != 1 {
		t.Fatalf("Subscriber not notified of add.\nreceived: %+v", got)
	}

	unsub()
	m.Add("inbox-A", protocol.ConsentAllowed,
		makeConv("topic-2", protocol.ConsentAllowed))
	if len(got) != 1 {
		t.Errorf("Subscriber notified after unsubscribe.\nreceived: %+v",
			got)
	}
}
