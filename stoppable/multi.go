////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Error message.
const closeMultiErr = "multi stoppable %q failed to close %d/%d stoppables"

// Multi holds a list of child Stoppables and stops them in unison.
type Multi struct {
	name       string
	stoppables []Stoppable
	mux        sync.RWMutex
	once       sync.Once
}

// NewMulti returns a new multi Stoppable.
func NewMulti(name string) *Multi {
	return &Multi{name: name}
}

// Add adds the given Stoppable to the list of stoppables.
func (m *Multi) Add(stoppable Stoppable) {
	m.mux.Lock()
	m.stoppables = append(m.stoppables, stoppable)
	m.mux.Unlock()
}

// Name returns the name of the Multi Stoppable and the names of all its
// children.
func (m *Multi) Name() string {
	m.mux.RLock()
	defer m.mux.RUnlock()

	names := make([]string, len(m.stoppables))
	for i, s := range m.stoppables {
		names[i] = s.Name()
	}

	return m.name + "{" + strings.Join(names, ", ") + "}"
}

// GetStatus returns the lowest status of all the child Stoppables.
func (m *Multi) GetStatus() Status {
	lowest := Stopped
	m.mux.RLock()
	defer m.mux.RUnlock()

	for _, s := range m.stoppables {
		if status := s.GetStatus(); status < lowest {
			lowest = status
		}
	}

	return lowest
}

// IsRunning returns true if any of the child Stoppables are running.
func (m *Multi) IsRunning() bool {
	return m.GetStatus() == Running
}

// IsStopped returns true if all of the child Stoppables are stopped.
func (m *Multi) IsStopped() bool {
	return m.GetStatus() == Stopped
}

// Close closes all child stoppables. Returns an error listing how many
// failed to close.
func (m *Multi) Close() error {
	var numErrors int

	m.once.Do(func() {
		m.mux.Lock()
		defer m.mux.Unlock()

		for _, stoppable := range m.stoppables {
			if err := stoppable.Close(); err != nil {
				numErrors++
			}
		}
	})

	if numErrors > 0 {
		return errors.Errorf(
			closeMultiErr, m.name, numErrors, len(m.stoppables))
	}

	return nil
}
