////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package optimistic

import (
	"errors"
	"fmt"
	"strings"
)

// MutationError wraps any failed optimistic write. By the time a caller
// sees one, the cache has already been rolled back to the captured
// previous value.
type MutationError struct {
	// Op names the mutation that failed, e.g. "promoteToAdmin".
	Op string

	cause error
}

// NewMutationError wraps a remote failure whose rollback the caller
// has already performed outside the Mutation pipeline.
func NewMutationError(op string, cause error) *MutationError {
	return &MutationError{Op: op, cause: cause}
}

// Error adheres to the error interface.
func (e *MutationError) Error() string {
	return fmt.Sprintf("mutation %q failed and was rolled back: %s",
		e.Op, e.cause)
}

// Unwrap returns the remote error that caused the rollback.
func (e *MutationError) Unwrap() error {
	return e.cause
}

// IsMutationError reports whether err is or wraps a MutationError.
func IsMutationError(err error) bool {
	var me *MutationError
	return errors.As(err, &me)
}

// PartialCompletionError reports a compound mutation that completed
// some but not all of its steps. It is distinct from both full success
// and full failure: the completed steps were NOT rolled back, so the
// caller must retry only the remaining step rather than re-running the
// whole operation.
type PartialCompletionError struct {
	// Op names the compound mutation, e.g. "approveJoinRequest".
	Op string

	// Completed lists the steps that succeeded, in execution order.
	Completed []string

	// Failed names the step that did not complete.
	Failed string

	cause error
}

// NewPartialCompletionError reports a compound mutation that failed at
// the named step after the completed steps already took effect
// remotely.
func NewPartialCompletionError(op string, completed []string,
	failed string, cause error) *PartialCompletionError {
	return &PartialCompletionError{
		Op:        op,
		Completed: completed,
		Failed:    failed,
		cause:     cause,
	}
}

// Error adheres to the error interface.
func (e *PartialCompletionError) Error() string {
	return fmt.Sprintf("mutation %q partially completed "+
		"(done: %s; failed: %s): %s",
		e.Op, strings.Join(e.Completed, ", "), e.Failed, e.cause)
}

// Unwrap returns the error of the failed step.
func (e *PartialCompletionError) Unwrap() error {
	return e.cause
}

// IsPartialCompletion reports whether err is or wraps a
// PartialCompletionError, and returns it if so.
func IsPartialCompletion(err error) (*PartialCompletionError, bool) {
	var pe *PartialCompletionError
	ok := errors.As(err, &pe)
	return pe, ok
}
