////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package membership

import (
	"github.com/ephemeraHQ/converse-core/optimistic"
	"github.com/ephemeraHQ/converse-core/protocol"
)

// AddMembers optimistically appends the inbox IDs to the cached roster
// as plain members, then records the change with the protocol.
func (m *manager) AddMembers(identity, topic string,
	inboxIDs []string) error {

	return m.mutateRoster("addMembers", identity, topic,
		func(r *Roster) {
			for _, id := range inboxIDs {
				r.Add(protocol.Member{
					InboxID:    id,
					Permission: protocol.PermissionMember,
				})
			}
		},
		func() error {
			return m.client.AddMembers(identity, topic, inboxIDs)
		})
}

// RemoveMembers optimistically deletes the inbox IDs from the cached
// roster, then records the change with the protocol.
func (m *manager) RemoveMembers(identity, topic string,
	inboxIDs []string) error {

	return m.mutateRoster("removeMembers", identity, topic,
		func(r *Roster) { r.Remove(inboxIDs...) },
		func() error {
			return m.client.RemoveMembers(identity, topic, inboxIDs)
		})
}

// PromoteToAdmin optimistically raises the member to admin, then
// records the promotion with the protocol.
func (m *manager) PromoteToAdmin(identity, topic, inboxID string) error {
	return m.mutateRoster("promoteToAdmin", identity, topic,
		func(r *Roster) {
			r.SetPermission(inboxID, protocol.PermissionAdmin)
		},
		func() error {
			return m.client.AddAdmin(identity, topic, inboxID)
		})
}

// PromoteToSuperAdmin optimistically raises the member to super admin,
// then records the promotion with the protocol.
func (m *manager) PromoteToSuperAdmin(identity, topic,
	inboxID string) error {
	return m.mutateRoster("promoteToSuperAdmin", identity, topic,
		func(r *Roster) {
			r.SetPermission(inboxID, protocol.PermissionSuperAdmin)
		},
		func() error {
			return m.client.AddSuperAdmin(identity, topic, inboxID)
		})
}

// RevokeAdmin optimistically lowers the admin back to member, then
// records the demotion with the protocol.
func (m *manager) RevokeAdmin(identity, topic, inboxID string) error {
	return m.mutateRoster("revokeAdmin", identity, topic,
		func(r *Roster) {
			r.SetPermission(inboxID, protocol.PermissionMember)
		},
		func() error {
			return m.client.RemoveAdmin(identity, topic, inboxID)
		})
}

// RevokeSuperAdmin optimistically lowers the super admin back to
// member, then records the demotion with the protocol.
func (m *manager) RevokeSuperAdmin(identity, topic, inboxID string) error {
	return m.mutateRoster("revokeSuperAdmin", identity, topic,
		func(r *Roster) {
			r.SetPermission(inboxID, protocol.PermissionMember)
		},
		func() error {
			return m.client.RemoveSuperAdmin(identity, topic, inboxID)
		})
}

// mutateRoster runs one roster write through the optimistic pipeline:
// the previous roster is captured as a deep copy before the remote
// call, the edit is applied to the cache immediately, and on remote
// failure the captured copy is restored verbatim. On success the
// cached roster is invalidated so the next read re-fetches; the
// protocol may normalize the result differently than predicted.
func (m *manager) mutateRoster(op, identity, topic string,
	edit func(r *Roster), remote func() error) error {

	ist := m.forIdentity(identity)

	previous, hadPrevious := ist.rosters.Get(topic)
	if hadPrevious {
		previous = previous.DeepCopy()
	}

	apply := func() {
		if !hadPrevious {
			// Cold cache: there is no roster to predict against. The
			// remote call still runs; the next fetch picks the result
			// up.
			return
		}
		predicted := previous.DeepCopy()
		edit(&predicted)
		ist.rosters.Set(topic, predicted)
	}

	rollback := func(prev Roster) {
		ist.rosters.Set(topic, prev)
	}

	invalidate := func() {
		ist.rosters.Invalidate(topic)
	}

	return optimistic.Run(op, previous, hadPrevious, apply, remote,
		rollback, invalidate)
}
