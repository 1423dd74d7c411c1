// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package syncengine

import (
	"github.com/ember-im/ember/event"
)

// Protocol defaults applied before every reduction and to rooms that have
// never seen the corresponding state event.
const (
	defaultBanLevel           = 50
	defaultEventsDefaultLevel = 0
	defaultInviteLevel        = 50
	defaultKickLevel          = 50
	defaultRedactLevel        = 50
	defaultStateDefaultLevel  = 50
	defaultUsersDefaultLevel  = 0
	defaultRoomNotifyLevel    = 50

	// DefaultRotationPeriodMS is the megolm session age limit applied when
	// m.room.encryption omits rotation_period_ms (one week).
	DefaultRotationPeriodMS int64 = 604800000
	// DefaultRotationMsgs is the megolm per-session message limit applied
	// when m.room.encryption omits rotation_period_msgs.
	DefaultRotationMsgs int64 = 100
)

// Member is one entry in a room's materialized membership table.
type Member struct {
	UserID      string
	Membership  event.Membership
	DisplayName string
	AvatarURL   string
}

// PowerLevels is the fully-defaulted power-level table of a room.
type PowerLevels struct {
	Ban           int
	EventsDefault int
	Invite        int
	Kick          int
	Redact        int
	StateDefault  int
	UsersDefault  int
	// RoomNotify is the level required to send an @room notification.
	RoomNotify int
	// Events and Users are the per-event-type and per-user overrides.
	Events map[string]int
	Users  map[string]int
}

func defaultPowerLevels() PowerLevels {
	return PowerLevels{
		Ban:           defaultBanLevel,
		EventsDefault: defaultEventsDefaultLevel,
		Invite:        defaultInviteLevel,
		Kick:          defaultKickLevel,
		Redact:        defaultRedactLevel,
		StateDefault:  defaultStateDefaultLevel,
		UsersDefault:  defaultUsersDefaultLevel,
		RoomNotify:    defaultRoomNotifyLevel,
		Events:        make(map[string]int),
		Users:         make(map[string]int),
	}
}

// Encryption is a room's materialized encryption configuration.
type Encryption struct {
	Enabled          bool
	Algorithm        event.Algorithm
	RotationPeriodMS int64
	RotationMsgs     int64
}

// Message is one accumulated plain message from the timeline.
type Message struct {
	EventID   string
	Sender    string
	MsgType   event.MsgType
	Body      string
	Timestamp int64
}

// Room is the materialized, queryable snapshot of one room, derived from
// History by full reduction. Nothing here is updated incrementally: when
// Dirty is set, every field is reset to its protocol default and the whole
// history replayed (see Recompute).
type Room struct {
	ID string

	// Identity, from m.room.create.
	Creator            string
	Version            string
	Federate           bool
	PredecessorRoomID  string
	PredecessorEventID string

	// Display metadata.
	Name               string
	Topic              string
	CanonicalAlias     string
	AltAliases         []string
	AvatarURL          string
	AvatarThumbnailURL string

	Members     []Member
	PowerLevels PowerLevels

	JoinRule          event.JoinRule
	HistoryVisibility event.HistoryVisibility
	GuestAccess       event.GuestAccess

	Encryption Encryption

	Messages []Message

	History *RoomHistory
	Dirty   bool

	memberIndex map[string]int
}

// NewRoom creates an empty room at protocol defaults with an empty history.
// It starts dirty so the first read triggers a reduction.
func NewRoom(id string) *Room {
	r := &Room{
		ID:      id,
		History: &RoomHistory{},
		Dirty:   true,
	}
	r.resetMaterialized()
	return r
}

// resetMaterialized clears every derived field back to protocol defaults.
// The history is untouched.
func (r *Room) resetMaterialized() {
	r.Creator = ""
	r.Version = ""
	r.Federate = true
	r.PredecessorRoomID = ""
	r.PredecessorEventID = ""
	r.Name = ""
	r.Topic = ""
	r.CanonicalAlias = ""
	r.AltAliases = nil
	r.AvatarURL = ""
	r.AvatarThumbnailURL = ""
	r.Members = nil
	r.memberIndex = make(map[string]int)
	r.PowerLevels = defaultPowerLevels()
	r.JoinRule = event.JoinRuleInvite
	r.HistoryVisibility = event.HistoryVisibilityShared
	r.GuestAccess = event.GuestAccessForbidden
	r.Encryption = Encryption{}
	r.Messages = nil
}

// Member returns the materialized record for a user id, if present.
func (r *Room) Member(userID string) (Member, bool) {
	idx, ok := r.memberIndex[userID]
	if !ok {
		return Member{}, false
	}
	return r.Members[idx], true
}

// upsertMember replaces a known user's record in place or appends a new
// one, preserving first-seen order.
func (r *Room) upsertMember(m Member) {
	if idx, ok := r.memberIndex[m.UserID]; ok {
		r.Members[idx] = m
		return
	}
	r.memberIndex[m.UserID] = len(r.Members)
	r.Members = append(r.Members, m)
}

// Clone deep-copies the room, including its history, so the copy can cross
// a concurrency boundary with no shared mutable state.
func (r *Room) Clone() *Room {
	out := *r
	out.AltAliases = append([]string(nil), r.AltAliases...)
	out.Members = append([]Member(nil), r.Members...)
	out.memberIndex = make(map[string]int, len(r.memberIndex))
	for k, v := range r.memberIndex {
		out.memberIndex[k] = v
	}
	out.PowerLevels.Events = clonePowerMap(r.PowerLevels.Events)
	out.PowerLevels.Users = clonePowerMap(r.PowerLevels.Users)
	out.Messages = append([]Message(nil), r.Messages...)
	out.History = r.History.clone()
	return &out
}

func clonePowerMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
