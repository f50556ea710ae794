////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package event

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"github.com/ephemeraHQ/converse-core/stoppable"
)

// reportableEvent is used to surface diagnostics to engine users.
type reportableEvent struct {
	Priority  int
	Category  string
	EventType string
	Details   string
}

// String stringer interface implementation.
func (e reportableEvent) String() string {
	return fmt.Sprintf("Event(%d, %s, %s, %s)", e.Priority, e.Category,
		e.EventType, e.Details)
}

// Holds state for the event reporting system.
type eventManager struct {
	eventCh  chan reportableEvent
	eventCbs sync.Map
}

// NewEventManager creates a Manager with a buffered report queue.
func NewEventManager() Manager {
	return &eventManager{
		eventCh: make(chan reportableEvent, 1000),
	}
}

// Report reports an event from the engine to api users, providing a
// priority, category, eventType, and details. Reporting never blocks;
// if the queue is full the event is dropped and logged.
func (e *eventManager) Report(priority int, category, evtType, details string) {
	re := reportableEvent{
		Priority:  priority,
		Category:  category,
		EventType: evtType,
		Details:   details,
	}
	select {
	case e.eventCh <- re:
		jww.TRACE.Printf("Event reported: %s", re)
	default:
		jww.ERROR.Printf("Event Queue full, unable to report: %s", re)
	}
}

// RegisterEventCallback records the given function to receive reported
// events. The name must be unique among registered callbacks.
func (e *eventManager) RegisterEventCallback(name string,
	myFunc Callback) error {
	_, existsAlready := e.eventCbs.LoadOrStore(name, myFunc)
	if existsAlready {
		return errors.Errorf("Key %s already exists as event callback",
			name)
	}
	return nil
}

// UnregisterEventCallback deletes the callback identified by name.
func (e *eventManager) UnregisterEventCallback(name string) {
	e.eventCbs.Delete(name)
}

// EventService starts the report-draining thread.
func (e *eventManager) EventService() (stoppable.Stoppable, error) {
	stop := stoppable.NewSingle("EventReporting")
	go e.reportEventsHandler(stop)
	return stop, nil
}

// reportEventsHandler reports events to every registered event callback.
func (e *eventManager) reportEventsHandler(stop *stoppable.Single) {
	jww.DEBUG.Print("reportEventsHandler routine started")
	for {
		select {
		case <-stop.Quit():
			jww.DEBUG.Printf("Stopping reportEventsHandler")
			stop.ToStopped()
			return
		case evt := <-e.eventCh:
			jww.TRACE.Printf("Received event: %s", evt)
			// Callbacks run on this thread. It is the user's
			// responsibility not to let the event queue explode; Report
			// logs an error any time the queue is full.
			e.eventCbs.Range(func(name, myFunc interface{}) bool {
				f := myFunc.(Callback)
				f(evt.Priority, evt.Category, evt.EventType,
					evt.Details)
				return true
			})
		}
	}
}
