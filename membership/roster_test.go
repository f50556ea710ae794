////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package membership

import (
	"reflect"
	"testing"

	"github.com/ephemeraHQ/converse-core/protocol"
)

// Tests that NewRoster preserves order, drops duplicate inbox IDs, and
// keeps both views consistent.
func TestNewRoster(t *testing.T) {
	r := NewRoster([]protocol.Member{
		member("C", protocol.PermissionSuperAdmin),
		member("A", protocol.PermissionMember),
		member("C", protocol.PermissionMember),
		member("B", protocol.PermissionAdmin),
	})

	if !reflect.DeepEqual(r.IDs, []string{"C", "A", "B"}) {
		t.Errorf("Wrong order.\nexpected: %v\nreceived: %v",
			[]string{"C", "A", "B"}, r.IDs)
	}
	if m, _ := r.Get("C"); m.Permission != protocol.PermissionSuperAdmin {
		t.Errorf("Duplicate overwrote the first entry.\nreceived: %+v", m)
	}
	if r.Len() != 3 {
		t.Errorf("Wrong length.\nexpected: %d\nreceived: %d", 3, r.Len())
	}
}

// Tests that DeepCopy shares no memory with the original.
func TestRoster_DeepCopy(t *testing.T) {
	r := NewRoster([]protocol.Member{
		member("A", protocol.PermissionMember),
		member("B", protocol.PermissionMember),
	})
	c := r.DeepCopy()

	c.SetPermission("A", protocol.PermissionAdmin)
	c.Remove("B")

	if m, _ := r.Get("A"); m.Permission != protocol.PermissionMember {
		t.Error("SetPermission on the copy mutated the original")
	}
	if !r.Has("B") {
		t.Error("Remove on the copy mutated the original")
	}
}

// Tests that Remove deletes from both views and preserves the order of
// the remaining members.
func TestRoster_Remove(t *testing.T) {
	r := NewRoster([]protocol.Member{
		member("A", protocol.PermissionMember),
		member("B", protocol.PermissionMember),
		member("C", protocol.PermissionMember),
	})

	r.Remove("B", "missing")

	if !reflect.DeepEqual(r.IDs, []string{"A", "C"}) {
		t.Errorf("Wrong order after remove."+
			"\nexpected: %v\nreceived: %v", []string{"A", "C"}, r.IDs)
	}
	if r.Has("B") {
		t.Error("Removed member still indexed")
	}
}

// Tests that Members returns the members in roster order.
func TestRoster_Members(t *testing.T) {
	members := []protocol.Member{
		member("B", protocol.PermissionAdmin),
		member("A", protocol.PermissionMember),
	}
	r := NewRoster(members)

	if !reflect.DeepEqual(r.Members(), members) {
		t.Errorf("Wrong members.\nexpected: %+v\nreceived: %+v",
			members, r.Members())
	}
}

// Tests that SetPermission on an absent inbox ID is a no-op.
func TestRoster_SetPermission_Absent(t *testing.T) {
	r := NewRoster(nil)
	r.SetPermission("ghost", protocol.PermissionAdmin)
	if r.Len() != 0 {
		t.Errorf("SetPermission fabricated a member: %+v", r)
	}
}
