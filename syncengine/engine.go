// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package syncengine

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/ember-im/ember/event"
)

// Registries groups the three membership contexts of one session.
type Registries struct {
	Joined  *Registry
	Invited *Registry
	Left    *Registry
}

// NewRegistries returns three empty registries.
func NewRegistries() *Registries {
	return &Registries{
		Joined:  NewRegistry(),
		Invited: NewRegistry(),
		Left:    NewRegistry(),
	}
}

// Check strictly parses every event in the rooms section without
// touching any registry. Callers run it before ApplyRooms so that a
// malformed event rejects the whole batch instead of failing after
// some rooms have already been mutated.
func (rooms RoomsSection) Check() error {
	for _, delta := range rooms.Join {
		if err := checkEvents(delta.State.Events); err != nil {
			return err
		}
		if err := checkEvents(delta.Timeline.Events); err != nil {
			return err
		}
	}
	for _, delta := range rooms.Invite {
		for _, raw := range delta.InviteState.Events {
			if _, err := event.ParseStripped(raw); err != nil {
				return err
			}
		}
	}
	for _, delta := range rooms.Leave {
		if err := checkEvents(delta.State.Events); err != nil {
			return err
		}
		if err := checkEvents(delta.Timeline.Events); err != nil {
			return err
		}
	}
	return nil
}

func checkEvents(raw []json.RawMessage) error {
	for _, item := range raw {
		if _, err := event.Parse(item); err != nil {
			return err
		}
	}
	return nil
}

// ApplyRooms folds the rooms section of a sync response into the
// registries: appending history, moving rooms between membership contexts
// and marking everything touched as dirty. It must be called with the
// session lock held; it performs no I/O.
func (regs *Registries) ApplyRooms(rooms RoomsSection) error {
	for roomID, delta := range rooms.Join {
		room := regs.promoteToJoined(roomID)
		if err := applyJoinedDelta(room, delta); err != nil {
			return err
		}
	}
	for roomID, delta := range rooms.Invite {
		room := regs.Invited.Upsert(roomID)
		if err := room.History.AppendStrippedRaw(delta.InviteState.Events); err != nil {
			return err
		}
	}
	for roomID, delta := range rooms.Leave {
		room := regs.retireToLeft(roomID)
		if err := room.History.AppendRaw(delta.State.Events, ChunkStateGapFill); err != nil {
			return err
		}
		if err := room.History.AppendRaw(delta.Timeline.Events, ChunkMessage); err != nil {
			return err
		}
	}
	return nil
}

// Forget destroys all trace of a room in every context.
func (regs *Registries) Forget(roomID string) {
	regs.Joined.Remove(roomID)
	regs.Invited.Remove(roomID)
	regs.Left.Remove(roomID)
}

// HasDirty reports whether any context holds a stale room.
func (regs *Registries) HasDirty() bool {
	return regs.Joined.HasDirty() || regs.Invited.HasDirty() || regs.Left.HasDirty()
}

// promoteToJoined moves a room from the invited context into joined (the
// invite preview history is retained), or upserts it in joined directly.
func (regs *Registries) promoteToJoined(roomID string) *Room {
	if invited := regs.Invited.Remove(roomID); invited != nil {
		logrus.WithField("room_id", roomID).Debug("Promoting invited room to joined")
		invited.Dirty = true
		regs.Joined.insert(invited)
		return invited
	}
	return regs.Joined.Upsert(roomID)
}

// retireToLeft moves a room out of joined/invited into the left context.
func (regs *Registries) retireToLeft(roomID string) *Room {
	room := regs.Joined.Remove(roomID)
	if room == nil {
		room = regs.Invited.Remove(roomID)
	}
	if room != nil {
		room.Dirty = true
		regs.Left.insert(room)
		return room
	}
	return regs.Left.Upsert(roomID)
}

// insert adds an existing room object, replacing any same-id entry.
func (reg *Registry) insert(room *Room) {
	if idx, ok := reg.index[room.ID]; ok {
		reg.rooms[idx] = room
		return
	}
	reg.index[room.ID] = len(reg.rooms)
	reg.rooms = append(reg.rooms, room)
}

func applyJoinedDelta(room *Room, delta JoinedRoomDelta) error {
	history := room.History
	history.MergeSummary(delta.Summary)
	if err := history.AppendRaw(delta.State.Events, ChunkStateGapFill); err != nil {
		return err
	}
	if err := history.AppendRaw(delta.Timeline.Events, ChunkMessage); err != nil {
		return err
	}
	if delta.Timeline.Limited {
		history.Limited = true
	}
	if delta.Timeline.PrevBatch != "" {
		history.PrevBatch = delta.Timeline.PrevBatch
	}
	history.Ephemeral = append(history.Ephemeral, delta.Ephemeral.Events...)
	history.AccountData = append(history.AccountData, delta.AccountData.Events...)
	if delta.UnreadNotifications != nil {
		history.HighlightCount = delta.UnreadNotifications.HighlightCount
		history.NotificationCount = delta.UnreadNotifications.NotificationCount
	}
	return nil
}
