////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package protocol defines the boundary the consent engine consumes
// from the messaging protocol client. The engine never touches the wire
// format or cryptography; it sees only these values and the Client
// interface, and everything behind them is the protocol SDK's concern.
package protocol

import (
	"time"

	"github.com/pkg/errors"

	"github.com/ephemeraHQ/converse-core/catalog"
)

// Error messages.
const (
	parseConsentErr    = "could not parse consent state %q"
	parsePermissionErr = "could not parse permission level %q"
)

// ConsentState governs whether a conversation is shown as an accepted
// chat, a pending request, or blocked.
type ConsentState uint8

const (
	// ConsentUnknown - the owner has not acted on the conversation yet.
	ConsentUnknown ConsentState = iota

	// ConsentAllowed - the owner accepted the conversation.
	ConsentAllowed

	// ConsentDenied - the owner blocked the conversation.
	ConsentDenied
)

// String adheres to the fmt.Stringer interface.
func (cs ConsentState) String() string {
	switch cs {
	case ConsentUnknown:
		return "unknown"
	case ConsentAllowed:
		return "allowed"
	case ConsentDenied:
		return "denied"
	default:
		return "invalid"
	}
}

// MarshalText adheres to the encoding.TextMarshaler interface.
func (cs ConsentState) MarshalText() ([]byte, error) {
	return []byte(cs.String()), nil
}

// UnmarshalText adheres to the encoding.TextUnmarshaler interface.
func (cs *ConsentState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unknown":
		*cs = ConsentUnknown
	case "allowed":
		*cs = ConsentAllowed
	case "denied":
		*cs = ConsentDenied
	default:
		return errors.Errorf(parseConsentErr, text)
	}
	return nil
}

// Permission is a group member's permission level.
type Permission uint8

const (
	PermissionMember Permission = iota
	PermissionAdmin
	PermissionSuperAdmin
)

// String adheres to the fmt.Stringer interface.
func (p Permission) String() string {
	switch p {
	case PermissionMember:
		return "member"
	case PermissionAdmin:
		return "admin"
	case PermissionSuperAdmin:
		return "super_admin"
	default:
		return "invalid"
	}
}

// MarshalText adheres to the encoding.TextMarshaler interface.
func (p Permission) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText adheres to the encoding.TextUnmarshaler interface.
func (p *Permission) UnmarshalText(text []byte) error {
	switch string(text) {
	case "member":
		*p = PermissionMember
	case "admin":
		*p = PermissionAdmin
	case "super_admin":
		*p = PermissionSuperAdmin
	default:
		return errors.Errorf(parsePermissionErr, text)
	}
	return nil
}

// Kind distinguishes 1:1 threads from group threads.
type Kind uint8

const (
	KindDirect Kind = iota
	KindGroup
)

// String adheres to the fmt.Stringer interface.
func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindGroup:
		return "group"
	default:
		return "invalid"
	}
}

// MarshalText adheres to the encoding.TextMarshaler interface.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText adheres to the encoding.TextUnmarshaler interface.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "direct":
		*k = KindDirect
	case "group":
		*k = KindGroup
	default:
		return errors.Errorf("could not parse conversation kind %q", text)
	}
	return nil
}

// Message is the last observed message of a conversation as reported by
// the protocol client.
type Message struct {
	ID            string              `json:"id"`
	ContentType   catalog.ContentType `json:"contentType"`
	Content       []byte              `json:"content,omitempty"`
	Fallback      string              `json:"fallback,omitempty"`
	SenderInboxID string              `json:"senderInboxId"`
	SentAt        time.Time           `json:"sentAt"`
}

// Conversation is a 1:1 or group thread as reported by the protocol
// client. Topic is the stable primary key.
type Conversation struct {
	Topic          string       `json:"topic"`
	Kind           Kind         `json:"kind"`
	State          ConsentState `json:"state"`
	LastMessage    *Message     `json:"lastMessage,omitempty"`
	IsActive       bool         `json:"isActive"`
	Name           string       `json:"name,omitempty"`
	ImageURL       string       `json:"imageUrl,omitempty"`
	AddedByInboxID string       `json:"addedByInboxId,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// Member is one entry of a group conversation's roster.
type Member struct {
	InboxID    string       `json:"inboxId"`
	Permission Permission   `json:"permission"`
	Consent    ConsentState `json:"consent"`
}

// JoinRequestStatus is the lifecycle state of a pending join request.
type JoinRequestStatus uint8

const (
	JoinRequestPending JoinRequestStatus = iota
	JoinRequestAccepted
	JoinRequestRejected
)

// String adheres to the fmt.Stringer interface.
func (s JoinRequestStatus) String() string {
	switch s {
	case JoinRequestPending:
		return "pending"
	case JoinRequestAccepted:
		return "accepted"
	case JoinRequestRejected:
		return "rejected"
	default:
		return "invalid"
	}
}

// JoinRequest is a request by an outside address to join a group
// conversation, keyed by (Topic, RequesterAddress).
type JoinRequest struct {
	ID               string            `json:"id"`
	Topic            string            `json:"topic"`
	RequesterAddress string            `json:"requesterAddress"`
	RequesterInboxID string            `json:"requesterInboxId"`
	Status           JoinRequestStatus `json:"status"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// ListFilter narrows a conversation listing.
type ListFilter struct {
	// States restricts results to the given consent states. Empty means
	// no restriction.
	States []ConsentState

	// ActiveOnly restricts results to conversations the identity has
	// not left.
	ActiveOnly bool
}

// Match reports whether the conversation passes the filter.
func (f ListFilter) Match(c Conversation) bool {
	if f.ActiveOnly && !c.IsActive {
		return false
	}
	if len(f.States) == 0 {
		return true
	}
	for _, s := range f.States {
		if c.State == s {
			return true
		}
	}
	return false
}
