////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package event

import "github.com/ephemeraHQ/converse-core/stoppable"

// Standard categories used by the consent engine when reporting
// diagnostics. Callers may report under their own categories as well.
const (
	CategoryBuckets    = "Buckets"
	CategorySync       = "Sync"
	CategoryMembership = "Membership"
	CategorySpam       = "Spam"
)

// Callback defines the callback functions for engine event reports.
type Callback func(priority int, category, evtType, details string)

// Reporter is the reporting api used internally by the engine to
// surface non-fatal diagnostics (defensive invariant hits, swallowed
// scoring errors, exhausted retries) without interrupting the caller.
type Reporter interface {
	Report(priority int, category, evtType, details string)
}

// Manager covers both reporting and callback registration, plus the
// service that drains the report queue.
type Manager interface {
	Reporter

	// RegisterEventCallback records the given function to receive
	// reported events under the given unique name.
	RegisterEventCallback(name string, myFunc Callback) error

	// UnregisterEventCallback deletes the callback identified by name.
	UnregisterEventCallback(name string)

	// EventService starts the report-draining thread and returns its
	// stoppable.
	EventService() (stoppable.Stoppable, error)
}
