////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package membership

import (
	"github.com/ephemeraHQ/converse-core/protocol"
)

// Roster is the ordered, indexed member list of a group conversation.
// IDs preserves the protocol's member order for display; ByID gives
// O(1) point access for permission and consent updates. The two views
// always describe the same set.
type Roster struct {
	IDs  []string
	ByID map[string]protocol.Member
}

// NewRoster builds a roster from the protocol's member list, keeping
// its order.
func NewRoster(members []protocol.Member) Roster {
	r := Roster{
		IDs:  make([]string, 0, len(members)),
		ByID: make(map[string]protocol.Member, len(members)),
	}
	for _, m := range members {
		if _, ok := r.ByID[m.InboxID]; ok {
			continue
		}
		r.IDs = append(r.IDs, m.InboxID)
		r.ByID[m.InboxID] = m
	}
	return r
}

// DeepCopy returns a roster sharing no memory with the receiver. The
// cache only ever holds and hands out deep copies so a caller's edits
// cannot alias cached state.
func (r Roster) DeepCopy() Roster {
	c := Roster{
		IDs:  make([]string, len(r.IDs)),
		ByID: make(map[string]protocol.Member, len(r.ByID)),
	}
	copy(c.IDs, r.IDs)
	for id, m := range r.ByID {
		c.ByID[id] = m
	}
	return c
}

// Len returns the number of members.
func (r Roster) Len() int {
	return len(r.IDs)
}

// Has reports whether the inbox ID is in the roster.
func (r Roster) Has(inboxID string) bool {
	_, ok := r.ByID[inboxID]
	return ok
}

// Get returns the member for the inbox ID.
func (r Roster) Get(inboxID string) (protocol.Member, bool) {
	m, ok := r.ByID[inboxID]
	return m, ok
}

// Members returns the members in roster order.
func (r Roster) Members() []protocol.Member {
	members := make([]protocol.Member, 0, len(r.IDs))
	for _, id := range r.IDs {
		members = append(members, r.ByID[id])
	}
	return members
}

// Add appends the member if absent. No-op on a duplicate inbox ID.
func (r *Roster) Add(m protocol.Member) {
	if _, ok := r.ByID[m.InboxID]; ok {
		return
	}
	r.IDs = append(r.IDs, m.InboxID)
	r.ByID[m.InboxID] = m
}

// Remove deletes the inbox IDs from both views. Removed entries are
// gone, not tombstoned.
func (r *Roster) Remove(inboxIDs ...string) {
	for _, id := range inboxIDs {
		if _, ok := r.ByID[id]; !ok {
			continue
		}
		delete(r.ByID, id)
		for i, existing := range r.IDs {
			if existing == id {
				r.IDs = append(r.IDs[:i], r.IDs[i+1:]...)
				break
			}
		}
	}
}

// SetPermission updates one member's permission in place. No-op if the
// inbox ID is absent.
func (r *Roster) SetPermission(inboxID string, p protocol.Permission) {
	if m, ok := r.ByID[inboxID]; ok {
		m.Permission = p
		r.ByID[inboxID] = m
	}
}
