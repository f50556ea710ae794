////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package membership

import (
	"fmt"

	jww "github.com/spf13/jwalterweatherman"

	"github.com/ephemeraHQ/converse-core/event"
	"github.com/ephemeraHQ/converse-core/optimistic"
	"github.com/ephemeraHQ/converse-core/protocol"
)

// Step names of the compound approve operation, reported in
// PartialCompletionError.Completed so a UI can retry only what failed.
const (
	stepAddMember     = "addMember"
	stepUpdateRequest = "updateRequest"
)

// JoinRequests returns the group's pending join requests, serving the
// cache when warm. Resolved requests never appear; the pending set
// only shrinks through approve/deny.
func (m *manager) JoinRequests(identity, topic string) (
	[]protocol.JoinRequest, error) {

	ist := m.forIdentity(identity)
	if pending, ok := ist.requests.Get(topic); ok {
		return append([]protocol.JoinRequest{}, pending...), nil
	}

	all, err := m.client.JoinRequests(identity, topic)
	if err != nil {
		return nil, err
	}

	pending := make([]protocol.JoinRequest, 0, len(all))
	for _, req := range all {
		if req.Status == protocol.JoinRequestPending {
			pending = append(pending, req)
		}
	}

	// The fetch suspended; only cache if the identity still exists.
	if ist, ok := m.lookupIdentity(identity); ok {
		ist.requests.Set(topic, pending)
	}

	return pending, nil
}

// ApproveJoinRequest adds the requester to the group and marks the
// request accepted, in that order. The two steps can partially
// complete: if the member was added but the status update failed, a
// PartialCompletionError is returned, the roster is NOT rolled back
// (the member really is in the group), and only the request stays
// pending. Re-invoking with the same request skips the add when the
// requester is already in the cached roster, so the retry only runs
// the remaining step.
func (m *manager) ApproveJoinRequest(identity string,
	req protocol.JoinRequest) error {

	ist := m.forIdentity(identity)

	prevRoster, hadRoster := ist.rosters.Get(req.Topic)
	if hadRoster {
		prevRoster = prevRoster.DeepCopy()
	}
	prevPending, hadPending := ist.requests.Get(req.Topic)
	if hadPending {
		prevPending = append([]protocol.JoinRequest{}, prevPending...)
	}

	alreadyMember := hadRoster && prevRoster.Has(req.RequesterInboxID)

	// Optimistic application: the requester joins the cached roster
	// and the request leaves the pending set.
	if hadRoster && !alreadyMember {
		predicted := prevRoster.DeepCopy()
		predicted.Add(protocol.Member{
			InboxID:    req.RequesterInboxID,
			Permission: protocol.PermissionMember,
			Consent:    protocol.ConsentAllowed,
		})
		ist.rosters.Set(req.Topic, predicted)
	}
	if hadPending {
		ist.requests.Set(req.Topic, dropRequest(prevPending, req.ID))
	}

	var completed []string
	if alreadyMember {
		// A previous partially-completed approve already landed the
		// add; do not re-run it.
		jww.INFO.Printf("[MEMBER] Approve of request %s skipping add: "+
			"%s already in roster of %s", req.ID, req.RequesterInboxID,
			req.Topic)
		completed = append(completed, stepAddMember)
	} else {
		err := m.client.AddMembers(identity, req.Topic,
			[]string{req.RequesterInboxID})
		if err != nil {
			// Nothing landed remotely: full rollback.
			if hadRoster {
				ist.rosters.Set(req.Topic, prevRoster)
			}
			if hadPending {
				ist.requests.Set(req.Topic, prevPending)
			}
			return optimistic.NewMutationError("approveJoinRequest", err)
		}
		completed = append(completed, stepAddMember)
	}

	err := m.client.UpdateJoinRequest(identity, req.ID,
		protocol.JoinRequestAccepted)
	if err != nil {
		// The member is in the group but the request is still pending
		// remotely. Restore only the pending set; rolling the roster
		// back would contradict remote truth.
		if hadPending {
			ist.requests.Set(req.Topic, prevPending)
		}
		m.events.Report(4, event.CategoryMembership, "PartialApprove",
			fmt.Sprintf("request %s for %s: member added but status "+
				"update failed: %s", req.ID, req.Topic, err))
		return optimistic.NewPartialCompletionError("approveJoinRequest",
			completed, stepUpdateRequest, err)
	}

	// Success: the optimistic roster is not trusted as final truth.
	ist.rosters.Invalidate(req.Topic)
	return nil
}

// DenyJoinRequest optimistically drops the request from the pending
// set and marks it rejected with the protocol, restoring the pending
// set verbatim on failure. The conversation itself is untouched;
// denying a join request is not a consent decision.
func (m *manager) DenyJoinRequest(identity string,
	req protocol.JoinRequest) error {

	ist := m.forIdentity(identity)

	previous, hadPrevious := ist.requests.Get(req.Topic)
	if hadPrevious {
		previous = append([]protocol.JoinRequest{}, previous...)
	}

	apply := func() {
		if hadPrevious {
			ist.requests.Set(req.Topic, dropRequest(previous, req.ID))
		}
	}

	remote := func() error {
		return m.client.UpdateJoinRequest(identity, req.ID,
			protocol.JoinRequestRejected)
	}

	rollback := func(prev []protocol.JoinRequest) {
		ist.requests.Set(req.Topic, prev)
	}

	invalidate := func() {
		// The pending set is authoritative locally once the remote
		// accepted the resolution; nothing to re-fetch.
	}

	return optimistic.Run("denyJoinRequest", previous, hadPrevious,
		apply, remote, rollback, invalidate)
}

// dropRequest returns the pending list without the given request ID.
func dropRequest(pending []protocol.JoinRequest,
	id string) []protocol.JoinRequest {

	filtered := make([]protocol.JoinRequest, 0, len(pending))
	for _, r := range pending {
		if r.ID != id {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
