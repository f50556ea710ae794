////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package spam

import (
	"fmt"
	"unicode/utf8"

	jww "github.com/spf13/jwalterweatherman"

	"github.com/ephemeraHQ/converse-core/cache"
	"github.com/ephemeraHQ/converse-core/catalog"
	"github.com/ephemeraHQ/converse-core/conversations"
	"github.com/ephemeraHQ/converse-core/event"
	"github.com/ephemeraHQ/converse-core/protocol"
	"github.com/ephemeraHQ/converse-core/stoppable"
)

const (
	followerStoppableName = "SpamFollower-"

	// updateBufLen is the capacity of one follower's update channel.
	// A burst past it drops the older snapshots; only the newest
	// matters since every recompute is a full re-evaluation.
	updateBufLen = 16
)

// bucketSource is the subset of the conversations.Manager interface
// needed by this package.
type bucketSource interface {
	GetUnknown(identity string) ([]protocol.Conversation, error)
	SubscribeBucket(identity string, state protocol.ConsentState,
		l conversations.BucketListener) cache.Unsubscribe
}

// Pipeline scores Unknown-bucket conversations and partitions them
// into likely-spam and likely-not-spam.
type Pipeline struct {
	scorer Scorer
	source bucketSource
	events event.Reporter
}

// NewPipeline creates a spam pipeline over the conversation layer.
func NewPipeline(scorer Scorer, source bucketSource,
	events event.Reporter) *Pipeline {
	return &Pipeline{
		scorer: scorer,
		source: source,
		events: events,
	}
}

// GetSpamPartitionedUnknown fetches the identity's Unknown bucket and
// partitions it.
func (p *Pipeline) GetSpamPartitionedUnknown(identity string) (
	Partition, error) {
	list, err := p.source.GetUnknown(identity)
	if err != nil {
		return Partition{}, err
	}
	return p.Classify(list), nil
}

// Classify partitions the snapshot. Conversations whose state is not
// exactly unknown are skipped. Each conversation's last message is
// decoded per its declared content type and scored; a score above
// SpamThreshold lands it in Spam. A scoring failure defaults the score
// to 0 and is logged, never propagated: the partition always
// completes.
func (p *Pipeline) Classify(list []protocol.Conversation) Partition {
	var part Partition
	for _, c := range list {
		if c.State != protocol.ConsentUnknown {
			continue
		}

		content, ct := decodeLastMessage(c.LastMessage)
		score, err := p.scorer.Score(content, ct)
		if err != nil {
			score = 0
			jww.WARN.Printf("[SPAM] Scoring %s failed, defaulting to "+
				"not spam: %+v", c.Topic, err)
			p.events.Report(8, event.CategorySpam, "ScoreFailure",
				fmt.Sprintf("conversation %s content type %s: %s",
					c.Topic, ct, err))
		}

		if score > SpamThreshold {
			part.Spam = append(part.Spam, c)
		} else {
			part.NotSpam = append(part.NotSpam, c)
		}
	}
	return part
}

// Follow recomputes the identity's partition on every Unknown bucket
// change and delivers it to the listener from a dedicated thread. The
// returned stoppable detaches the subscription and stops the thread.
func (p *Pipeline) Follow(identity string,
	l PartitionListener) stoppable.Stoppable {

	updates := make(chan []protocol.Conversation, updateBufLen)
	unsub := p.source.SubscribeBucket(identity, protocol.ConsentUnknown,
		func(list []protocol.Conversation) {
			for {
				select {
				case updates <- list:
					return
				default:
				}
				// Full buffer: discard the oldest queued snapshot to
				// make room so the newest always lands.
				select {
				case <-updates:
					jww.WARN.Printf("[SPAM] Dropping a stale bucket "+
						"snapshot for %s; follower is %d snapshots "+
						"behind", identity, updateBufLen)
				default:
				}
			}
		})

	stop := stoppable.NewSingle(followerStoppableName + identity)
	go p.follow(updates, unsub, l, stop)
	return stop
}

// follow is the follower thread.
func (p *Pipeline) follow(updates chan []protocol.Conversation,
	unsub cache.Unsubscribe, l PartitionListener, stop *stoppable.Single) {

	for {
		select {
		case <-stop.Quit():
			unsub()
			stop.ToStopped()
			return
		case list := <-updates:
			l(p.Classify(list))
		}
	}
}

// decodeLastMessage decodes a conversation's last message content by
// its declared content type. Non-textual or undecodable content falls
// back to the message's plain-text fallback string; a missing message
// decodes to the empty string.
func decodeLastMessage(msg *protocol.Message) (string, catalog.ContentType) {
	if msg == nil {
		return "", catalog.NoContent
	}
	if msg.ContentType.Textual() && utf8.Valid(msg.Content) {
		return string(msg.Content), msg.ContentType
	}
	return msg.Fallback, msg.ContentType
}
