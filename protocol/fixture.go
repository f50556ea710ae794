////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package protocol

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/thedevsaddam/gojsonq"
)

// Error messages.
const (
	fixtureNodeErr      = "failed to read fixture node %q from %s: %+v"
	fixtureDecodeErr    = "failed to decode fixture node %q: %+v"
	fixtureNoMessageErr = "no message with ID %s in fixture"
	fixtureNoConvoErr   = "no conversation with topic %s in fixture"
	fixtureNoRequestErr = "no join request with ID %s in fixture"
)

// fixtureConversation is a Conversation tagged with its owning identity
// inside the fixture file.
type fixtureConversation struct {
	Identity string `json:"identity"`
	Conversation
}

// fixtureRoster is one group's member list inside the fixture file.
type fixtureRoster struct {
	Identity string   `json:"identity"`
	Topic    string   `json:"topic"`
	Members  []Member `json:"members"`
}

// fixtureMessage is a Message tagged with its owning identity.
type fixtureMessage struct {
	Identity string `json:"identity"`
	Message
}

// fixtureRequest is a JoinRequest tagged with its owning identity.
type fixtureRequest struct {
	Identity string `json:"identity"`
	JoinRequest
}

// FixtureClient is a Client backed by a JSON fixture file. It exists
// for the CLI and for local experimentation; mutations act on the
// in-memory copy only and are never written back to the file.
type FixtureClient struct {
	conversations []fixtureConversation
	rosters       []fixtureRoster
	messages      []fixtureMessage
	requests      []fixtureRequest
	syncCalls     int
	mux           sync.Mutex
}

// NewFixtureClient loads a fixture file. Missing nodes are treated as
// empty lists so partial fixtures stay usable.
func NewFixtureClient(path string) (*FixtureClient, error) {
	fc := &FixtureClient{}

	if err := loadNode(path, "conversations", &fc.conversations); err != nil {
		return nil, err
	}
	if err := loadNode(path, "rosters", &fc.rosters); err != nil {
		return nil, err
	}
	if err := loadNode(path, "messages", &fc.messages); err != nil {
		return nil, err
	}
	if err := loadNode(path, "joinRequests", &fc.requests); err != nil {
		return nil, err
	}

	jww.INFO.Printf("[FIXTURE] Loaded %d conversations, %d rosters, "+
		"%d messages, %d join requests from %s", len(fc.conversations),
		len(fc.rosters), len(fc.messages), len(fc.requests), path)

	return fc, nil
}

// loadNode extracts one top-level fixture node into out.
func loadNode(path, node string, out interface{}) error {
	jq := gojsonq.New().File(path).From(node)
	raw := jq.Get()
	if err := jq.Error(); err != nil {
		return errors.Errorf(fixtureNodeErr, node, path, err)
	}
	if raw == nil {
		return nil
	}

	// gojsonq returns generic containers; round-trip through JSON to
	// apply the typed unmarshalling.
	data, err := json.Marshal(raw)
	if err != nil {
		return errors.Errorf(fixtureDecodeErr, node, err)
	}
	if err = json.Unmarshal(data, out); err != nil {
		return errors.Errorf(fixtureDecodeErr, node, err)
	}
	return nil
}

// SyncAll counts the pass and returns successfully; fixture data is
// always "fresh".
func (fc *FixtureClient) SyncAll(identity string, states []ConsentState) error {
	fc.mux.Lock()
	defer fc.mux.Unlock()
	fc.syncCalls++
	jww.DEBUG.Printf("[FIXTURE] SyncAll %s %v (pass %d)",
		identity, states, fc.syncCalls)
	return nil
}

// SyncCalls returns how many sync passes were requested.
func (fc *FixtureClient) SyncCalls() int {
	fc.mux.Lock()
	defer fc.mux.Unlock()
	return fc.syncCalls
}

// List returns up to limit of the identity's conversations matching the
// filter, in fixture order.
func (fc *FixtureClient) List(identity string, filter ListFilter, limit int) (
	[]Conversation, error) {
	fc.mux.Lock()
	defer fc.mux.Unlock()

	var list []Conversation
	for _, c := range fc.conversations {
		if c.Identity != identity || !filter.Match(c.Conversation) {
			continue
		}
		list = append(list, c.Conversation)
		if limit > 0 && len(list) >= limit {
			break
		}
	}
	return list, nil
}

// FindMessage looks a message up by ID.
func (fc *FixtureClient) FindMessage(identity, messageID string) (Message, error) {
	fc.mux.Lock()
	defer fc.mux.Unlock()

	for _, m := range fc.messages {
		if m.Identity == identity && m.ID == messageID {
			return m.Message, nil
		}
	}
	return Message{}, errors.Errorf(fixtureNoMessageErr, messageID)
}

// ConsentState returns the conversation's consent state.
func (fc *FixtureClient) ConsentState(identity, topic string) (ConsentState, error) {
	fc.mux.Lock()
	defer fc.mux.Unlock()

	i, err := fc.findConversation(identity, topic)
	if err != nil {
		return ConsentUnknown, err
	}
	return fc.conversations[i].State, nil
}

// SetConsentState records the consent decision in memory.
func (fc *FixtureClient) SetConsentState(identity, topic string,
	state ConsentState) error {
	fc.mux.Lock()
	defer fc.mux.Unlock()

	i, err := fc.findConversation(identity, topic)
	if err != nil {
		return err
	}
	fc.conversations[i].State = state
	return nil
}

// Members returns the group's roster.
func (fc *FixtureClient) Members(identity, topic string) ([]Member, error) {
	fc.mux.Lock()
	defer fc.mux.Unlock()

	for i := range fc.rosters {
		r := &fc.rosters[i]
		if r.Identity == identity && r.Topic == topic {
			members := make([]Member, len(r.Members))
			copy(members, r.Members)
			return members, nil
		}
	}
	return nil, nil
}

// AddMembers appends the inbox IDs to the roster, skipping ones that
// are already present.
func (fc *FixtureClient) AddMembers(identity, topic string,
	inboxIDs []string) error {
	fc.mux.Lock()
	defer fc.mux.Unlock()

	r := fc.findRoster(identity, topic)
	for _, inboxID := range inboxIDs {
		if r.find(inboxID) < 0 {
			r.Members = append(r.Members, Member{
				InboxID:    inboxID,
				Permission: PermissionMember,
				Consent:    ConsentUnknown,
			})
		}
	}
	return nil
}

// RemoveMembers removes the inbox IDs from the roster.
func (fc *FixtureClient) RemoveMembers(identity, topic string,
	inboxIDs []string) error {
	fc.mux.Lock()
	defer fc.mux.Unlock()

	r := fc.findRoster(identity, topic)
	for _, inboxID := range inboxIDs {
		if i := r.find(inboxID); i >= 0 {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
		}
	}
	return nil
}

// AddAdmin promotes the member to admin.
func (fc *FixtureClient) AddAdmin(identity, topic, inboxID string) error {
	return fc.setPermission(identity, topic, inboxID, PermissionAdmin)
}

// RemoveAdmin demotes the member back to member.
func (fc *FixtureClient) RemoveAdmin(identity, topic, inboxID string) error {
	return fc.setPermission(identity, topic, inboxID, PermissionMember)
}

// AddSuperAdmin promotes the member to super admin.
func (fc *FixtureClient) AddSuperAdmin(identity, topic, inboxID string) error {
	return fc.setPermission(identity, topic, inboxID, PermissionSuperAdmin)
}

// RemoveSuperAdmin demotes the member back to member.
func (fc *FixtureClient) RemoveSuperAdmin(identity, topic, inboxID string) error {
	return fc.setPermission(identity, topic, inboxID, PermissionMember)
}

// JoinRequests returns the group's pending join requests.
func (fc *FixtureClient) JoinRequests(identity, topic string) (
	[]JoinRequest, error) {
	fc.mux.Lock()
	defer fc.mux.Unlock()

	var list []JoinRequest
	for _, r := range fc.requests {
		if r.Identity == identity && r.Topic == topic &&
			r.Status == JoinRequestPending {
			list = append(list, r.JoinRequest)
		}
	}
	return list, nil
}

// UpdateJoinRequest resolves a join request in memory.
func (fc *FixtureClient) UpdateJoinRequest(identity, requestID string,
	status JoinRequestStatus) error {
	fc.mux.Lock()
	defer fc.mux.Unlock()

	for i := range fc.requests {
		r := &fc.requests[i]
		if r.Identity == identity && r.JoinRequest.ID == requestID {
			r.Status = status
			return nil
		}
	}
	return errors.Errorf(fixtureNoRequestErr, requestID)
}

func (fc *FixtureClient) findConversation(identity, topic string) (int, error) {
	for i, c := range fc.conversations {
		if c.Identity == identity && c.Topic == topic {
			return i, nil
		}
	}
	return -1, errors.Errorf(fixtureNoConvoErr, topic)
}

// findRoster returns the roster for the group, creating an empty one if
// the fixture does not have it yet.
func (fc *FixtureClient) findRoster(identity, topic string) *fixtureRoster {
	for i := range fc.rosters {
		r := &fc.rosters[i]
		if r.Identity == identity && r.Topic == topic {
			return r
		}
	}
	fc.rosters = append(fc.rosters,
		fixtureRoster{Identity: identity, Topic: topic})
	return &fc.rosters[len(fc.rosters)-1]
}

func (fc *FixtureClient) setPermission(identity, topic, inboxID string,
	permission Permission) error {
	fc.mux.Lock()
	defer fc.mux.Unlock()

	r := fc.findRoster(identity, topic)
	i := r.find(inboxID)
	if i < 0 {
		return errors.Errorf("no member %s in group %s", inboxID, topic)
	}
	r.Members[i].Permission = permission
	return nil
}

func (r *fixtureRoster) find(inboxID string) int {
	for i, m := range r.Members {
		if m.InboxID == inboxID {
			return i
		}
	}
	return -1
}
