////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversations

// Params configures the conversation manager.
type Params struct {
	// FetchLimit caps how many conversations one fetch pulls from the
	// protocol. There is no pagination past the limit; that is a known
	// limitation of the current design, not something a caller can
	// work around with a second call.
	FetchLimit int

	// SyncsPerSecond rate limits remote reconciliation passes across
	// all identities.
	SyncsPerSecond int

	// ActiveOnly restricts bucket fetches to conversations the
	// identity has not left.
	ActiveOnly bool
}

// GetDefaultParams returns the default conversation manager
// parameters.
func GetDefaultParams() Params {
	return Params{
		FetchLimit:     200,
		SyncsPerSecond: 4,
		ActiveOnly:     true,
	}
}
