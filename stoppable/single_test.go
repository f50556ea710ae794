////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"testing"
	"time"
)

// Tests that a Single transitions running -> stopping -> stopped on a
// normal close and that the quit channel fires.
func TestSingle_Close(t *testing.T) {
	single := NewSingle("threadName")
	if !single.IsRunning() {
		t.Errorf("New single is not running."+
			"\nexpected: %s\nreceived: %s", Running, single.GetStatus())
	}

	done := make(chan struct{})
	go func() {
		<-single.Quit()
		single.ToStopped()
		close(done)
	}()

	if err := single.Close(); err != nil {
		t.Errorf("Close returned an error: %+v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for quit channel.")
	}

	if !single.IsStopped() {
		t.Errorf("Single did not reach stopped."+
			"\nexpected: %s\nreceived: %s", Stopped, single.GetStatus())
	}
}

// Tests that a second Close is a no-op rather than a second quit send.
func TestSingle_Close_Twice(t *testing.T) {
	single := NewSingle("threadName")

	go func() {
		<-single.Quit()
		single.ToStopped()
	}()

	if err := single.Close(); err != nil {
		t.Errorf("First Close returned an error: %+v", err)
	}
	if err := single.Close(); err != nil {
		t.Errorf("Second Close returned an error: %+v", err)
	}
}

// Tests that a Multi stops all its children.
func TestMulti_Close(t *testing.T) {
	multi := NewMulti("multiName")

	singles := make([]*Single, 3)
	for i := range singles {
		singles[i] = NewSingle("child")
		multi.Add(singles[i])
		s := singles[i]
		go func() {
			<-s.Quit()
			s.ToStopped()
		}()
	}

	if err := multi.Close(); err != nil {
		t.Errorf("Close returned an error: %+v", err)
	}

	// Children mark themselves stopped asynchronously.
	deadline := time.Now().Add(time.Second)
	for !multi.IsStopped() {
		if time.Now().After(deadline) {
			t.Fatalf("Multi did not stop."+
				"\nexpected: %s\nreceived: %s", Stopped, multi.GetStatus())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
