////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package conversations keeps every conversation known to an identity
// classified into consent buckets (allowed, unknown, denied) and keeps
// those buckets fresh against the remote protocol. Buckets are
// independently cached snapshots over a shared entity cache, so two
// buckets may disagree transiently until a sync reconciles them. The
// denied bucket is the union of protocol-denied conversations and
// conversations flagged blocked on the legacy protocol.
package conversations

import (
	"github.com/ephemeraHQ/converse-core/cache"
	"github.com/ephemeraHQ/converse-core/protocol"
)

// UnknownCallback receives one Unknown-bucket conversation at a time
// when the bucket is replayed.
type UnknownCallback func(c protocol.Conversation)

// BucketListener receives the current materialized bucket after every
// change to its snapshot.
type BucketListener func(conversations []protocol.Conversation)

// Manager is the exposed surface of the conversation consent layer.
type Manager interface {
	// GetAllowed returns the identity's allowed bucket. A cache hit
	// returns immediately; a miss triggers a sync and fetch for that
	// bucket's consent state. If the sync fails but a persisted
	// snapshot exists, the snapshot is served and a staleness
	// diagnostic is reported; otherwise the SyncError propagates.
	GetAllowed(identity string) ([]protocol.Conversation, error)

	// GetUnknown behaves like GetAllowed for the unknown bucket.
	GetUnknown(identity string) ([]protocol.Conversation, error)

	// GetDenied behaves like GetAllowed for the denied bucket and
	// merges in legacy-blocked conversations at read time.
	GetDenied(identity string) ([]protocol.Conversation, error)

	// SyncAll ensures the protocol has run a full reconciliation pass
	// for the given consent states. Concurrent calls for the same
	// (identity, states) pair coalesce into one in-flight pass.
	SyncAll(identity string, states []protocol.ConsentState) error

	// FetchConversations pulls up to limit conversations matching the
	// filter, writes each into the entity cache, and returns them in
	// protocol order. There is no pagination past limit.
	FetchConversations(identity string, filter protocol.ListFilter,
		limit int) ([]protocol.Conversation, error)

	// Add inserts the conversation at the head of the bucket snapshot
	// if its topic is not already present; if it is present, the
	// cached entity is updated in place instead (idempotent insert).
	Add(identity string, state protocol.ConsentState, c protocol.Conversation)

	// Update merges the partial into the cached entity, provided the
	// bucket snapshot exists. Updating a never-fetched bucket is a
	// no-op that captures a diagnostic.
	Update(identity string, state protocol.ConsentState, topic string,
		partial Partial)

	// Remove filters the topic out of the bucket snapshot. No-op if
	// absent.
	Remove(identity string, state protocol.ConsentState, topic string)

	// SetConsent optimistically re-buckets the conversation and
	// records the decision with the protocol, rolling the cache back
	// verbatim if the remote call fails.
	SetConsent(identity, topic string, state protocol.ConsentState) error

	// Conversation returns the cached entity with its capability
	// binding.
	Conversation(identity, topic string) (Entry, bool)

	// BlockLegacy flags a legacy-protocol conversation as blocked,
	// adding it to the denied union.
	BlockLegacy(identity, topic string) error

	// UnblockLegacy removes the legacy block flag. Denied
	// conversations remain addressable for exactly this purpose.
	UnblockLegacy(identity, topic string) error

	// CallAllUnknown replays the current Unknown bucket on the
	// callback so a UI can rebuild its request list.
	CallAllUnknown(identity string, cb UnknownCallback)

	// SubscribeBucket registers a listener for every change to the
	// bucket's snapshot.
	SubscribeBucket(identity string, state protocol.ConsentState,
		l BucketListener) cache.Unsubscribe
}

// protocolClient is the subset of the protocol.Client interface needed
// by this package.
type protocolClient interface {
	SyncAll(identity string, states []protocol.ConsentState) error
	List(identity string, filter protocol.ListFilter, limit int) (
		[]protocol.Conversation, error)
	ConsentState(identity, topic string) (protocol.ConsentState, error)
	SetConsentState(identity, topic string, state protocol.ConsentState) error
	Members(identity, topic string) ([]protocol.Member, error)
}
