// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package syncengine

import (
	"encoding/json"
)

// Response is the body of GET /_matrix/client/r0/sync. Event payloads stay
// raw at this layer; the chunker parses them strictly on ingest.
type Response struct {
	NextBatch   string          `json:"next_batch"`
	Rooms       RoomsSection    `json:"rooms"`
	DeviceLists DeviceListDelta `json:"device_lists"`
	// DeviceOneTimeKeysCount maps key algorithm to the number of unclaimed
	// one-time keys the server still holds for this device.
	DeviceOneTimeKeysCount map[string]int `json:"device_one_time_keys_count"`
	AccountData            EventList      `json:"account_data"`
	ToDevice               EventList      `json:"to_device"`
}

// RoomsSection is the rooms.{join,invite,leave} split of a sync response.
type RoomsSection struct {
	Join   map[string]JoinedRoomDelta  `json:"join"`
	Invite map[string]InvitedRoomDelta `json:"invite"`
	Leave  map[string]LeftRoomDelta    `json:"leave"`
}

// JoinedRoomDelta carries one joined room's updates since the last cursor.
type JoinedRoomDelta struct {
	Summary             RoomSummary    `json:"summary"`
	State               EventList      `json:"state"`
	Timeline            TimelineDelta  `json:"timeline"`
	Ephemeral           EventList      `json:"ephemeral"`
	AccountData         EventList      `json:"account_data"`
	UnreadNotifications *Notifications `json:"unread_notifications,omitempty"`
}

// InvitedRoomDelta carries the stripped state preview of an invited room.
type InvitedRoomDelta struct {
	InviteState EventList `json:"invite_state"`
}

// LeftRoomDelta carries the final events of a room the user has left.
type LeftRoomDelta struct {
	State    EventList     `json:"state"`
	Timeline TimelineDelta `json:"timeline"`
}

// RoomSummary is the rooms.join.*.summary object.
type RoomSummary struct {
	Heroes       []string `json:"m.heroes,omitempty"`
	JoinedCount  *int     `json:"m.joined_member_count,omitempty"`
	InvitedCount *int     `json:"m.invited_member_count,omitempty"`
}

// TimelineDelta is a run of timeline events plus pagination bookkeeping.
type TimelineDelta struct {
	Events    []json.RawMessage `json:"events"`
	Limited   bool              `json:"limited"`
	PrevBatch string            `json:"prev_batch"`
}

// EventList wraps the {"events": [...]} shape used throughout sync.
type EventList struct {
	Events []json.RawMessage `json:"events"`
}

// Notifications is the unread_notifications counter pair.
type Notifications struct {
	HighlightCount    int `json:"highlight_count"`
	NotificationCount int `json:"notification_count"`
}

// DeviceListDelta reports remote users whose device lists changed since the
// last sync and users who no longer share an encrypted room with us.
type DeviceListDelta struct {
	Changed []string `json:"changed"`
	Left    []string `json:"left"`
}
