////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package spam partitions the Unknown consent bucket into likely-spam
// and likely-not-spam by scoring each conversation's last message
// content. Scoring failures never block the partition: a conversation
// that cannot be scored defaults to not spam. Recomputation is not
// incremental; every Unknown-bucket change re-evaluates the full
// current snapshot.
package spam

import (
	"github.com/ephemeraHQ/converse-core/catalog"
	"github.com/ephemeraHQ/converse-core/protocol"
)

// SpamThreshold is the exclusive score bound above which a
// conversation is classified likely-spam.
const SpamThreshold = 1.0

// Scorer computes a spam likelihood for decoded message content. A
// returned error means the content could not be scored at all; the
// pipeline logs it and fails open toward not-spam.
type Scorer interface {
	Score(content string, ct catalog.ContentType) (float64, error)
}

// Partition is the two derived sets of the Unknown bucket. Within each
// set the bucket's conversation order is preserved.
type Partition struct {
	NotSpam []protocol.Conversation
	Spam    []protocol.Conversation
}

// PartitionListener receives a fresh partition after every Unknown
// bucket change.
type PartitionListener func(p Partition)
