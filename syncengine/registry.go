// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package syncengine

// Registry owns the rooms of one membership context (joined, invited or
// left). It is not itself goroutine-safe; the session serializes access.
type Registry struct {
	rooms []*Room
	index map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Find returns the room with the given id, or nil.
func (reg *Registry) Find(roomID string) *Room {
	idx, ok := reg.index[roomID]
	if !ok {
		return nil
	}
	return reg.rooms[idx]
}

// Upsert returns the room with the given id, creating it at protocol
// defaults on first mention. The room is marked dirty either way, since
// callers upsert exactly when new history is about to be appended.
func (reg *Registry) Upsert(roomID string) *Room {
	if room := reg.Find(roomID); room != nil {
		room.Dirty = true
		return room
	}
	room := NewRoom(roomID)
	reg.index[roomID] = len(reg.rooms)
	reg.rooms = append(reg.rooms, room)
	return room
}

// Remove drops a room from the registry, destroying its history. It
// returns the removed room, or nil if the id was unknown.
func (reg *Registry) Remove(roomID string) *Room {
	idx, ok := reg.index[roomID]
	if !ok {
		return nil
	}
	room := reg.rooms[idx]
	reg.rooms = append(reg.rooms[:idx], reg.rooms[idx+1:]...)
	delete(reg.index, roomID)
	for i := idx; i < len(reg.rooms); i++ {
		reg.index[reg.rooms[i].ID] = i
	}
	return room
}

// HasDirty reports whether any room's materialized view is stale.
func (reg *Registry) HasDirty() bool {
	for _, room := range reg.rooms {
		if room.Dirty {
			return true
		}
	}
	return false
}

// Len returns the number of rooms in the registry.
func (reg *Registry) Len() int {
	return len(reg.rooms)
}

// Rooms returns the live room list in insertion order. The caller must
// hold the session lock; for lock-free reads use Snapshot.
func (reg *Registry) Rooms() []*Room {
	return reg.rooms
}

// Snapshot recomputes every dirty room, then deep-clones the whole list.
// The clones share nothing with the registry, so the caller may read them
// without holding any lock.
func (reg *Registry) Snapshot() ([]*Room, error) {
	out := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		if room.Dirty {
			if err := room.Recompute(); err != nil {
				return nil, err
			}
		}
		out = append(out, room.Clone())
	}
	return out, nil
}
