////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package retry applies a declarative bounded-attempt policy to any
// fallible operation. The waits grow linearly with the attempt number
// and are capped, so the default policy produces 1s, 2s, 3s.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	jww "github.com/spf13/jwalterweatherman"
)

// Policy describes a bounded retry: the total number of attempts and
// the shape of the wait between them.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Step is multiplied by the attempt number to produce the wait
	// after that attempt fails.
	Step time.Duration

	// Cap bounds any single wait.
	Cap time.Duration
}

// DefaultPolicy returns the policy used for transient protocol
// inconsistencies: 3 attempts with waits of 1s and 2s between them.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Step:        time.Second,
		Cap:         3 * time.Second,
	}
}

// Do runs op until it succeeds, the attempt budget is exhausted, or op
// returns an error marked Permanent. The last error is returned on
// exhaustion.
func (p Policy) Do(name string, op func() error) error {
	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err != nil {
			jww.DEBUG.Printf("[RETRY] %s attempt %d/%d failed: %s",
				name, attempt, p.MaxAttempts, err)
		}
		return err
	}

	b := backoff.WithMaxRetries(&linearBackOff{policy: p},
		uint64(p.MaxAttempts-1))
	err := backoff.Retry(wrapped, b)
	if err != nil {
		jww.WARN.Printf("[RETRY] %s terminal after %d attempts: %s",
			name, attempt, err)
	}
	return err
}

// Permanent marks err as not retryable; Do stops immediately and
// returns the original error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// linearBackOff adapts the Policy to the backoff.BackOff interface.
type linearBackOff struct {
	policy Policy
	fails  int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.fails++
	wait := time.Duration(l.fails) * l.policy.Step
	if l.policy.Cap > 0 && wait > l.policy.Cap {
		wait = l.policy.Cap
	}
	return wait
}

func (l *linearBackOff) Reset() {
	l.fails = 0
}
