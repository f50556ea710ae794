////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package membership caches group conversation rosters with permission
// levels and per-member consent, lazily populated per conversation on
// demand. An empty member list from the protocol is treated as a
// transient race and retried with bounded backoff, never as ground
// truth. All roster writes go through the optimistic mutation
// pipeline: applied locally first, rolled back verbatim if the remote
// call fails.
package membership

import (
	"github.com/ephemeraHQ/converse-core/conversations"
	"github.com/ephemeraHQ/converse-core/protocol"
	"github.com/ephemeraHQ/converse-core/retry"
)

// Manager is the exposed surface of the group membership layer.
type Manager interface {
	// GetMembers returns the conversation's roster, serving the cache
	// when warm and fetching on a miss.
	GetMembers(identity, topic string) (Roster, error)

	// FetchMembers fetches the roster from the protocol regardless of
	// cache state. It fails with NotAGroupError for 1:1 conversations
	// and retries empty results internally before surfacing a terminal
	// EmptyMembersError.
	FetchMembers(identity, topic string) (Roster, error)

	// AddMembers optimistically adds the inbox IDs to the cached
	// roster and records the change with the protocol.
	AddMembers(identity, topic string, inboxIDs []string) error

	// RemoveMembers optimistically deletes the inbox IDs from the
	// cached roster and records the change with the protocol.
	RemoveMembers(identity, topic string, inboxIDs []string) error

	// PromoteToAdmin raises the member's permission to admin.
	PromoteToAdmin(identity, topic, inboxID string) error

	// PromoteToSuperAdmin raises the member's permission to super
	// admin.
	PromoteToSuperAdmin(identity, topic, inboxID string) error

	// RevokeAdmin lowers an admin back to member.
	RevokeAdmin(identity, topic, inboxID string) error

	// RevokeSuperAdmin lowers a super admin back to member.
	RevokeSuperAdmin(identity, topic, inboxID string) error

	// JoinRequests returns the group's pending join requests, serving
	// the cache when warm.
	JoinRequests(identity, topic string) ([]protocol.JoinRequest, error)

	// ApproveJoinRequest adds the requester to the group and marks the
	// request accepted. The two steps can partially complete; see the
	// method's documentation for the contract.
	ApproveJoinRequest(identity string, req protocol.JoinRequest) error

	// DenyJoinRequest marks the request rejected and drops it from the
	// pending set.
	DenyJoinRequest(identity string, req protocol.JoinRequest) error
}

// conversationResolver resolves topics against the shared conversation
// cache. Satisfied by conversations.Manager.
type conversationResolver interface {
	Conversation(identity, topic string) (conversations.Entry, bool)
}

// protocolClient is the subset of the protocol.Client interface needed
// by this package. Roster reads go through the conversation entry's
// capability binding instead.
type protocolClient interface {
	AddMembers(identity, topic string, inboxIDs []string) error
	RemoveMembers(identity, topic string, inboxIDs []string) error
	AddAdmin(identity, topic, inboxID string) error
	RemoveAdmin(identity, topic, inboxID string) error
	AddSuperAdmin(identity, topic, inboxID string) error
	RemoveSuperAdmin(identity, topic, inboxID string) error
	JoinRequests(identity, topic string) ([]protocol.JoinRequest, error)
	UpdateJoinRequest(identity, requestID string,
		status protocol.JoinRequestStatus) error
}

// Params configures the membership manager.
type Params struct {
	// Retry bounds the attempts made when the protocol reports an
	// empty roster for a group.
	Retry retry.Policy
}

// GetDefaultParams returns the default membership manager parameters.
func GetDefaultParams() Params {
	return Params{
		Retry: retry.DefaultPolicy(),
	}
}
