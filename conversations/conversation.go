////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"github.com/ephemeraHQ/converse-core/protocol"
)

// Handle is the capability bound to a cached conversation: the live
// operations the protocol exposes on the underlying thread. It is kept
// separate from the value fields so a field merge can never detach it.
type Handle interface {
	// Members fetches the conversation's roster from the protocol.
	Members() ([]protocol.Member, error)

	// SetConsent records a consent decision for the conversation with
	// the protocol.
	SetConsent(state protocol.ConsentState) error
}

// Entry is what the entity cache stores per topic: the last-known
// conversation value plus its capability binding.
type Entry struct {
	Data protocol.Conversation

	handle Handle
}

// NewEntry binds a conversation value to its capability.
func NewEntry(data protocol.Conversation, handle Handle) Entry {
	return Entry{Data: data, handle: handle}
}

// Handle returns the entry's capability binding.
func (e Entry) Handle() Handle {
	return e.handle
}

// Partial is a partial conversation update. Nil fields are left
// untouched by Merge.
type Partial struct {
	State       *protocol.ConsentState
	LastMessage *protocol.Message
	IsActive    *bool
	Name        *string
	ImageURL    *string
}

// Merge returns a copy of the entry with the partial's non-nil fields
// applied and the capability binding re-attached (merge-then-rebind).
// The receiver is not modified; the caller writes the result back
// atomically through the cache.
func (e Entry) Merge(p Partial) Entry {
	merged := e.Data
	if p.State != nil {
		merged.State = *p.State
	}
	if p.LastMessage != nil {
		merged.LastMessage = p.LastMessage
	}
	if p.IsActive != nil {
		merged.IsActive = *p.IsActive
	}
	if p.Name != nil {
		merged.Name = *p.Name
	}
	if p.ImageURL != nil {
		merged.ImageURL = *p.ImageURL
	}
	return Entry{Data: merged, handle: e.handle}
}

// liveHandle is the Handle implementation bound by the manager: it
// routes capability calls to the protocol client scoped to one
// (identity, topic).
type liveHandle struct {
	client   protocolClient
	identity string
	topic    string
}

func (h *liveHandle) Members() ([]protocol.Member, error) {
	return h.client.Members(h.identity, h.topic)
}

func (h *liveHandle) SetConsent(state protocol.ConsentState) error {
	return h.client.SetConsentState(h.identity, h.topic, state)
}
