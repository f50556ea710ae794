////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package protocol

// Client is the full surface the consent engine consumes from the
// messaging protocol SDK. Engine packages depend on package-local
// subsets of this interface so their tests can mock only what they use.
//
// All calls may block on the network. The engine treats every call as a
// suspension point: cache state may have moved by the time one returns.
type Client interface {
	// SyncAll asks the protocol to run a full reconciliation pass over
	// conversations in the given consent states for the identity.
	SyncAll(identity string, states []ConsentState) error

	// List returns up to limit conversations matching the filter, in
	// the protocol's canonical (most recent first) order.
	List(identity string, filter ListFilter, limit int) ([]Conversation, error)

	// FindMessage looks a message up by its protocol ID.
	FindMessage(identity, messageID string) (Message, error)

	// ConsentState returns the protocol-level consent state for the
	// conversation.
	ConsentState(identity, topic string) (ConsentState, error)

	// SetConsentState records a consent decision with the protocol.
	SetConsentState(identity, topic string, state ConsentState) error

	// Members returns the roster of a group conversation. A freshly
	// created group may transiently report an empty list; callers own
	// the retry policy for that case.
	Members(identity, topic string) ([]Member, error)

	// AddMembers adds the given inbox IDs to the group.
	AddMembers(identity, topic string, inboxIDs []string) error

	// RemoveMembers removes the given inbox IDs from the group.
	RemoveMembers(identity, topic string, inboxIDs []string) error

	// AddAdmin promotes the inbox ID to admin.
	AddAdmin(identity, topic, inboxID string) error

	// RemoveAdmin demotes the inbox ID from admin.
	RemoveAdmin(identity, topic, inboxID string) error

	// AddSuperAdmin promotes the inbox ID to super admin.
	AddSuperAdmin(identity, topic, inboxID string) error

	// RemoveSuperAdmin demotes the inbox ID from super admin.
	RemoveSuperAdmin(identity, topic, inboxID string) error

	// JoinRequests returns the pending join requests of a group.
	JoinRequests(identity, topic string) ([]JoinRequest, error)

	// UpdateJoinRequest records the resolution of a join request.
	UpdateJoinRequest(identity, requestID string, status JoinRequestStatus) error
}
