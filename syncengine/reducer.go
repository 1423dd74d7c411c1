// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package syncengine

import (
	"fmt"

	"github.com/ember-im/ember/event"
)

// ReduceError reports a reduction failure for one room.
type ReduceError struct {
	RoomID  string
	EventID string
	Reason  string
}

func (e *ReduceError) Error() string {
	return fmt.Sprintf("syncengine: reduce %s at %s: %s", e.RoomID, e.EventID, e.Reason)
}

// stateRef identifies one (event type, state key) slot in room state.
type stateRef struct {
	evType   event.Type
	stateKey string
}

// Recompute rebuilds the materialized view from scratch: every field is
// reset to its protocol default, then every chunk of the history is folded
// in arrival order. State events replace by (type, state_key), with the
// most recent origin timestamp winning; message events accumulate. The
// result is a pure function of History, so recomputing an unchanged room
// is idempotent.
func (r *Room) Recompute() error {
	r.resetMaterialized()

	// Latest-wins by origin timestamp per state slot. Arrival order still
	// breaks ties so a republished event with an equal timestamp applies.
	lastTS := make(map[stateRef]int64)

	for _, chunk := range r.History.Chunks {
		for _, ev := range chunk.Events {
			if ev.Type.IsState() {
				ref := stateRef{evType: ev.Type, stateKey: ev.StateKeyValue()}
				if prev, ok := lastTS[ref]; ok && ev.Timestamp < prev {
					continue
				}
				lastTS[ref] = ev.Timestamp
			}
			if err := r.applyEvent(ev); err != nil {
				return err
			}
		}
	}
	r.Dirty = false
	return nil
}

// applyEvent dispatches one event to its per-kind apply function. Apply
// functions are pure overwrites: a field present in content replaces the
// materialized value, an absent optional field leaves it alone.
func (r *Room) applyEvent(ev *event.Event) error {
	// A redacted event may have lost its content entirely; whatever
	// survives (e.g. membership) still applies.
	if ev.Content == nil {
		if ev.Redacted() || ev.Type == event.TypeRedaction {
			return nil
		}
		return &ReduceError{RoomID: r.ID, EventID: ev.ID, Reason: "event has no content"}
	}

	switch c := ev.Content.(type) {
	case event.CreateContent:
		r.applyCreate(c)
	case event.MemberContent:
		if ev.StateKey == nil {
			return &ReduceError{RoomID: r.ID, EventID: ev.ID, Reason: "member event without state_key"}
		}
		r.applyMember(*ev.StateKey, c, ev.Redacted())
	case event.PowerLevelsContent:
		r.applyPowerLevels(c)
	case event.CanonicalAliasContent:
		r.CanonicalAlias = c.Alias
		r.AltAliases = append([]string(nil), c.AltAliases...)
	case event.NameContent:
		r.Name = c.Name
	case event.TopicContent:
		r.Topic = c.Topic
	case event.AvatarContent:
		r.AvatarURL = c.URL
		r.AvatarThumbnailURL = c.ThumbnailURL
	case event.EncryptionContent:
		r.applyEncryption(c)
	case event.HistoryVisibilityContent:
		if c.HistoryVisibility != "" {
			r.HistoryVisibility = c.HistoryVisibility
		}
	case event.GuestAccessContent:
		if c.GuestAccess != "" {
			r.GuestAccess = c.GuestAccess
		}
	case event.JoinRulesContent:
		if c.JoinRule != "" {
			r.JoinRule = c.JoinRule
		}
	case event.RedactionContent:
		// Resolved structurally at append time; nothing to materialize.
	case event.MessageContent:
		r.Messages = append(r.Messages, Message{
			EventID:   ev.ID,
			Sender:    ev.Sender,
			MsgType:   c.MsgType,
			Body:      c.Body,
			Timestamp: ev.Timestamp,
		})
	default:
		return &ReduceError{RoomID: r.ID, EventID: ev.ID, Reason: fmt.Sprintf("no apply function for %T", ev.Content)}
	}
	return nil
}

func (r *Room) applyCreate(c event.CreateContent) {
	if c.Creator != "" {
		r.Creator = c.Creator
	}
	if c.RoomVersion != "" {
		r.Version = c.RoomVersion
	}
	if c.Federate != nil {
		r.Federate = *c.Federate
	}
	if c.Predecessor != nil {
		r.PredecessorRoomID = c.Predecessor.RoomID
		r.PredecessorEventID = c.Predecessor.EventID
	}
}

func (r *Room) applyMember(userID string, c event.MemberContent, redacted bool) {
	member := Member{
		UserID:      userID,
		Membership:  c.Membership,
		DisplayName: c.DisplayName,
		AvatarURL:   c.AvatarURL,
	}
	// A redacted membership keeps only the membership value; the profile
	// fields it lost carry over from the previous record rather than
	// being read as a profile wipe.
	if redacted {
		if existing, ok := r.Member(userID); ok {
			member.DisplayName = existing.DisplayName
			member.AvatarURL = existing.AvatarURL
		}
	}
	r.upsertMember(member)
}

func (r *Room) applyPowerLevels(c event.PowerLevelsContent) {
	if c.Ban != nil {
		r.PowerLevels.Ban = *c.Ban
	}
	if c.EventsDefault != nil {
		r.PowerLevels.EventsDefault = *c.EventsDefault
	}
	if c.Invite != nil {
		r.PowerLevels.Invite = *c.Invite
	}
	if c.Kick != nil {
		r.PowerLevels.Kick = *c.Kick
	}
	if c.Redact != nil {
		r.PowerLevels.Redact = *c.Redact
	}
	if c.StateDefault != nil {
		r.PowerLevels.StateDefault = *c.StateDefault
	}
	if c.UsersDefault != nil {
		r.PowerLevels.UsersDefault = *c.UsersDefault
	}
	if c.Notifications != nil && c.Notifications.Room != nil {
		r.PowerLevels.RoomNotify = *c.Notifications.Room
	}
	for evType, level := range c.Events {
		r.PowerLevels.Events[evType] = level
	}
	for userID, level := range c.Users {
		r.PowerLevels.Users[userID] = level
	}
}

func (r *Room) applyEncryption(c event.EncryptionContent) {
	if c.Algorithm == "" {
		// Redaction stripped the algorithm; encryption can never be
		// disabled once enabled, so keep whatever is materialized.
		return
	}
	r.Encryption.Enabled = true
	r.Encryption.Algorithm = c.Algorithm
	r.Encryption.RotationPeriodMS = DefaultRotationPeriodMS
	r.Encryption.RotationMsgs = DefaultRotationMsgs
	if c.RotationPeriodMS > 0 {
		r.Encryption.RotationPeriodMS = c.RotationPeriodMS
	}
	if c.RotationPeriodMsgs > 0 {
		r.Encryption.RotationMsgs = c.RotationPeriodMsgs
	}
}
