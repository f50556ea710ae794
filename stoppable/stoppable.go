////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package stoppable provides stop control for long-running goroutines
// such as the event reporting thread and the spam pipeline listener.
package stoppable

import "strconv"

// Status holds the current status of a Stoppable.
type Status uint32

const (
	Running Status = iota
	Stopping
	Stopped
)

// String prints a string representation of the Status in a human
// readable format and adheres to the fmt.Stringer interface.
func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "invalid status: " + strconv.Itoa(int(s))
	}
}

// Stoppable interface for stopping a goroutine. All functions are
// thread safe.
type Stoppable interface {
	// Name returns the name of the Stoppable.
	Name() string

	// GetStatus returns the status of the Stoppable.
	GetStatus() Status

	// IsRunning returns true if the Stoppable is running.
	IsRunning() bool

	// IsStopped returns true if all children are stopped.
	IsStopped() bool

	// Close stops the Stoppable and all its children.
	Close() error
}
