////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package catalog

import "fmt"

// ContentType identifies the declared codec of a message payload. The
// engine never decodes payloads itself beyond extracting display text;
// the identifiers exist so callers and the spam scorer can branch on
// what a payload claims to be.
type ContentType uint32

const (
	// NoContent - used as a wildcard and for conversations that have no
	// last message at all.
	NoContent ContentType = 0

	// Text - plain UTF-8 text payload.
	Text ContentType = 1

	// Reply - text payload referencing another message ID.
	Reply ContentType = 2

	// Reaction - single-emoji reaction to another message.
	Reaction ContentType = 3

	// Attachment - inline binary attachment.
	Attachment ContentType = 10

	// RemoteAttachment - attachment stored out of band, payload holds
	// the retrieval envelope.
	RemoteAttachment ContentType = 11

	// ReadReceipt - delivery/read receipt, carries no display text.
	ReadReceipt ContentType = 20

	// TransactionReference - reference to an on-chain transaction.
	TransactionReference ContentType = 30
)

// String returns a human-readable form of the ContentType for logging
// and adheres to the fmt.Stringer interface.
func (ct ContentType) String() string {
	switch ct {
	case NoContent:
		return "NoContent"
	case Text:
		return "Text"
	case Reply:
		return "Reply"
	case Reaction:
		return "Reaction"
	case Attachment:
		return "Attachment"
	case RemoteAttachment:
		return "RemoteAttachment"
	case ReadReceipt:
		return "ReadReceipt"
	case TransactionReference:
		return "TransactionReference"
	default:
		return fmt.Sprintf("Unknown ContentType %d", uint32(ct))
	}
}

// Textual reports whether payloads of this type carry display text
// directly (as opposed to an envelope or receipt).
func (ct ContentType) Textual() bool {
	switch ct {
	case Text, Reply, Reaction:
		return true
	default:
		return false
	}
}
