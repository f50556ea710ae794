////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package api assembles the consent engine: the identity-partitioned
// cache registry, the conversation consent layer, the group membership
// layer, and the spam pipeline, wired over one protocol client and one
// key-value store. UI layers hold a single Client and call through it.
package api

import (
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"

	"github.com/ephemeraHQ/converse-core/cache"
	"github.com/ephemeraHQ/converse-core/conversations"
	"github.com/ephemeraHQ/converse-core/event"
	"github.com/ephemeraHQ/converse-core/membership"
	"github.com/ephemeraHQ/converse-core/protocol"
	"github.com/ephemeraHQ/converse-core/spam"
	"github.com/ephemeraHQ/converse-core/stoppable"
	"github.com/ephemeraHQ/converse-core/storage/versioned"
)

// Params aggregates the per-layer parameters.
type Params struct {
	Conversations conversations.Params
	Membership    membership.Params
	Spam          spam.HeuristicParams
}

// GetDefaultParams returns every layer's defaults.
func GetDefaultParams() Params {
	return Params{
		Conversations: conversations.GetDefaultParams(),
		Membership:    membership.GetDefaultParams(),
		Spam:          spam.GetDefaultHeuristicParams(),
	}
}

// Client is the assembled consent engine.
type Client struct {
	protocol protocol.Client
	registry *cache.Registry
	events   event.Manager

	convs   conversations.Manager
	members membership.Manager
	spam    *spam.Pipeline

	followers *stoppable.Multi
}

// NewClient assembles the engine over the protocol client and the
// key-value store. The store only holds snapshot persistence; all live
// state is in memory and partitioned by identity.
func NewClient(client protocol.Client, kv ekv.KeyValue,
	params Params) *Client {

	registry := cache.NewRegistry(versioned.NewKV(kv))
	events := event.NewEventManager()

	convs := conversations.NewManager(client, registry, events,
		params.Conversations)
	members := membership.NewManager(convs, client, registry, events,
		params.Membership)
	pipeline := spam.NewPipeline(spam.NewHeuristic(params.Spam), convs,
		events)

	return &Client{
		protocol:  client,
		registry:  registry,
		events:    events,
		convs:     convs,
		members:   members,
		spam:      pipeline,
		followers: stoppable.NewMulti("Followers"),
	}
}

// StartProcesses launches the engine's background threads: the event
// reporting thread plus any spam followers registered later. The
// returned stoppable shuts all of them down.
func (c *Client) StartProcesses() (stoppable.Stoppable, error) {
	multi := stoppable.NewMulti("ConsentEngine")

	eventStop, err := c.events.EventService()
	if err != nil {
		return nil, err
	}
	multi.Add(eventStop)
	multi.Add(c.followers)

	jww.INFO.Printf("[API] Engine processes started")
	return multi, nil
}

// Logout tears down every cache partition of the identity. In-flight
// network results for it are dropped on arrival.
func (c *Client) Logout(identity string) {
	c.registry.TearDown(identity)
	jww.INFO.Printf("[API] Logged out identity %s", identity)
}

// Conversations returns the conversation consent layer.
func (c *Client) Conversations() conversations.Manager {
	return c.convs
}

// Membership returns the group membership layer.
func (c *Client) Membership() membership.Manager {
	return c.members
}

// Events returns the event manager for diagnostic callbacks.
func (c *Client) Events() event.Manager {
	return c.events
}

// GetAllowed returns the identity's allowed bucket.
func (c *Client) GetAllowed(identity string) (
	[]protocol.Conversation, error) {
	return c.convs.GetAllowed(identity)
}

// GetUnknown returns the identity's unknown bucket.
func (c *Client) GetUnknown(identity string) (
	[]protocol.Conversation, error) {
	return c.convs.GetUnknown(identity)
}

// GetDenied returns the identity's denied bucket, legacy blocks
// included.
func (c *Client) GetDenied(identity string) (
	[]protocol.Conversation, error) {
	return c.convs.GetDenied(identity)
}

// SetConsent records a consent decision, optimistically re-bucketing
// the conversation.
func (c *Client) SetConsent(identity, topic string,
	state protocol.ConsentState) error {
	return c.convs.SetConsent(identity, topic, state)
}

// GetMembers returns a group conversation's roster.
func (c *Client) GetMembers(identity, topic string) (
	membership.Roster, error) {
	return c.members.GetMembers(identity, topic)
}

// PromoteAdmin raises the member to admin.
func (c *Client) PromoteAdmin(identity, topic, inboxID string) error {
	return c.members.PromoteToAdmin(identity, topic, inboxID)
}

// RevokeAdmin lowers the admin back to member.
func (c *Client) RevokeAdmin(identity, topic, inboxID string) error {
	return c.members.RevokeAdmin(identity, topic, inboxID)
}

// PromoteSuperAdmin raises the member to super admin.
func (c *Client) PromoteSuperAdmin(identity, topic, inboxID string) error {
	return c.members.PromoteToSuperAdmin(identity, topic, inboxID)
}

// RevokeSuperAdmin lowers the super admin back to member.
func (c *Client) RevokeSuperAdmin(identity, topic, inboxID string) error {
	return c.members.RevokeSuperAdmin(identity, topic, inboxID)
}

// RemoveMembers removes the inbox IDs from the group.
func (c *Client) RemoveMembers(identity, topic string,
	inboxIDs []string) error {
	return c.members.RemoveMembers(identity, topic, inboxIDs)
}

// ApproveJoinRequest admits the requester and resolves the request.
func (c *Client) ApproveJoinRequest(identity string,
	req protocol.JoinRequest) error {
	return c.members.ApproveJoinRequest(identity, req)
}

// DenyJoinRequest rejects the request.
func (c *Client) DenyJoinRequest(identity string,
	req protocol.JoinRequest) error {
	return c.members.DenyJoinRequest(identity, req)
}

// GetSpamPartitionedUnknown splits the Unknown bucket into likely-spam
// and likely-not-spam.
func (c *Client) GetSpamPartitionedUnknown(identity string) (
	spam.Partition, error) {
	return c.spam.GetSpamPartitionedUnknown(identity)
}

// FollowSpam delivers a fresh partition to the listener on every
// Unknown bucket change until the engine's processes stop.
func (c *Client) FollowSpam(identity string, l spam.PartitionListener) {
	c.followers.Add(c.spam.Follow(identity, l))
}
