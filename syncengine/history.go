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

// ChunkKind tags how a run of events entered the timeline.
type ChunkKind int

const (
	// ChunkStateGapFill is a state snapshot delivered to paper over a
	// timeline discontinuity (the sync "state" section).
	ChunkStateGapFill ChunkKind = iota
	// ChunkMessage is a continuous run of timeline events, state and
	// message kinds interleaved in arrival order.
	ChunkMessage
)

func (k ChunkKind) String() string {
	switch k {
	case ChunkStateGapFill:
		return "state_gap_fill"
	case ChunkMessage:
		return "message"
	default:
		return "unknown"
	}
}

// EventChunk is an ordered run of events sharing one ChunkKind. Adjacent
// chunks never share a kind: appends merge into the last chunk instead.
type EventChunk struct {
	Kind   ChunkKind
	Events []*event.Event
}

// RoomHistory is the append-only replay source for one room. The
// materialized Room view is always derived from it by full reduction.
type RoomHistory struct {
	Summary   RoomSummary
	Chunks    []*EventChunk
	Limited   bool
	PrevBatch string

	// Ephemeral and account-data payloads are retained raw; they carry
	// event types outside the room-state vocabulary (m.typing, m.receipt,
	// m.fully_read, ...) and never participate in reduction.
	Ephemeral   []json.RawMessage
	AccountData []json.RawMessage

	HighlightCount    int
	NotificationCount int
}

// AppendRaw strictly parses a run of raw events and appends them as one
// logical chunk. On a parse failure the whole batch is rejected and the
// history left untouched.
func (h *RoomHistory) AppendRaw(raw []json.RawMessage, kind ChunkKind) error {
	events := make([]*event.Event, 0, len(raw))
	for _, item := range raw {
		ev, err := event.Parse(item)
		if err != nil {
			return err
		}
		events = append(events, ev)
	}
	h.Append(events, kind)
	return nil
}

// AppendStrippedRaw parses stripped invite-preview state events and appends
// them as a state gap-fill chunk.
func (h *RoomHistory) AppendStrippedRaw(raw []json.RawMessage) error {
	events := make([]*event.Event, 0, len(raw))
	for _, item := range raw {
		ev, err := event.ParseStripped(item)
		if err != nil {
			return err
		}
		events = append(events, ev)
	}
	h.Append(events, ChunkStateGapFill)
	return nil
}

// Append adds parsed events as one logical chunk, merging into the last
// chunk when the kinds match so consecutive same-kind chunks never exist.
// Redaction events are resolved immediately against the full retained
// history; a target outside local history is tolerated (spec: history may
// be partial) and logged rather than surfaced.
func (h *RoomHistory) Append(events []*event.Event, kind ChunkKind) {
	if len(events) == 0 {
		return
	}
	last := h.lastChunk()
	if last != nil && last.Kind == kind {
		last.Events = append(last.Events, events...)
	} else {
		h.Chunks = append(h.Chunks, &EventChunk{Kind: kind, Events: events})
	}
	for _, ev := range events {
		if ev.Type != event.TypeRedaction {
			continue
		}
		target := h.FindEvent(ev.Redacts)
		if target == nil {
			logrus.WithFields(logrus.Fields{
				"redaction_id": ev.ID,
				"target_id":    ev.Redacts,
			}).Debug("Redaction target not in retained history, skipping")
			continue
		}
		event.Redact(target, ev)
	}
}

// FindEvent scans every retained chunk for an event id.
func (h *RoomHistory) FindEvent(id string) *event.Event {
	if id == "" {
		return nil
	}
	for _, chunk := range h.Chunks {
		for _, ev := range chunk.Events {
			if ev.ID == id {
				return ev
			}
		}
	}
	return nil
}

// MergeSummary folds an incremental summary into the retained one. Absent
// counters never reset a previously delivered value.
func (h *RoomHistory) MergeSummary(s RoomSummary) {
	if s.Heroes != nil {
		h.Summary.Heroes = append([]string(nil), s.Heroes...)
	}
	if s.JoinedCount != nil {
		v := *s.JoinedCount
		h.Summary.JoinedCount = &v
	}
	if s.InvitedCount != nil {
		v := *s.InvitedCount
		h.Summary.InvitedCount = &v
	}
}

func (h *RoomHistory) lastChunk() *EventChunk {
	if len(h.Chunks) == 0 {
		return nil
	}
	return h.Chunks[len(h.Chunks)-1]
}

// clone deep-copies the history, including every retained event.
func (h *RoomHistory) clone() *RoomHistory {
	if h == nil {
		return nil
	}
	out := &RoomHistory{
		Limited:           h.Limited,
		PrevBatch:         h.PrevBatch,
		HighlightCount:    h.HighlightCount,
		NotificationCount: h.NotificationCount,
	}
	out.MergeSummary(h.Summary)
	out.Chunks = make([]*EventChunk, len(h.Chunks))
	for i, chunk := range h.Chunks {
		events := make([]*event.Event, len(chunk.Events))
		for j, ev := range chunk.Events {
			events[j] = event.Clone(ev)
		}
		out.Chunks[i] = &EventChunk{Kind: chunk.Kind, Events: events}
	}
	out.Ephemeral = cloneRawList(h.Ephemeral)
	out.AccountData = cloneRawList(h.AccountData)
	return out
}

func cloneRawList(list []json.RawMessage) []json.RawMessage {
	if list == nil {
		return nil
	}
	out := make([]json.RawMessage, len(list))
	for i, item := range list {
		out[i] = append(json.RawMessage(nil), item...)
	}
	return out
}
