////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversations

import (
	"errors"
	"fmt"
)

// SyncError indicates the remote reconciliation pass could not
// complete. It is recoverable: callers fall back to the last cached
// snapshot and treat it as stale.
type SyncError struct {
	Identity string

	cause error
}

// Error adheres to the error interface.
func (e *SyncError) Error() string {
	return fmt.Sprintf("sync pass for identity %s could not complete: %s",
		e.Identity, e.cause)
}

// Unwrap returns the underlying protocol error.
func (e *SyncError) Unwrap() error {
	return e.cause
}

// IsSyncError reports whether err is or wraps a SyncError.
func IsSyncError(err error) bool {
	var se *SyncError
	return errors.As(err, &se)
}
