////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package membership

import (
	"errors"
	"fmt"

	"github.com/ephemeraHQ/converse-core/protocol"
)

// Error messages.
const (
	noConversationErr = "no conversation %s cached for identity %s; " +
		"fetch its bucket first"
	noRosterErr = "no roster cached for conversation %s; " +
		"fetch members first"
)

// NotAGroupError indicates a group-only operation was requested on a
// 1:1 conversation. It is fatal to the call and never retried.
type NotAGroupError struct {
	Topic string
	Kind  protocol.Kind
}

// Error adheres to the error interface.
func (e *NotAGroupError) Error() string {
	return fmt.Sprintf(
		"conversation %s is %s, not a group", e.Topic, e.Kind)
}

// IsNotAGroupError reports whether err is or wraps a NotAGroupError.
func IsNotAGroupError(err error) bool {
	var ne *NotAGroupError
	return errors.As(err, &ne)
}

// EmptyMembersError indicates the protocol reported a zero-length
// member list. Member lists are populated in a second network step
// after group creation, so an empty result is a transient race, never
// ground truth. The fetch retries internally before surfacing this as
// terminal.
type EmptyMembersError struct {
	Topic string
}

// Error adheres to the error interface.
func (e *EmptyMembersError) Error() string {
	return fmt.Sprintf(
		"protocol reported no members for group %s", e.Topic)
}

// IsEmptyMembersError reports whether err is or wraps an
// EmptyMembersError.
func IsEmptyMembersError(err error) bool {
	var ee *EmptyMembersError
	return errors.As(err, &ee)
}
