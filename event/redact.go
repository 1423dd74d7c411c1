// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package event

// Redact strips the target event's content down to the protocol's allowed
// keys for its type and records the redaction event that caused it. Most
// types keep nothing; membership keeps the membership value, creation keeps
// the creator, version and predecessor, power levels keep the level tables.
//
// The target is modified in place. The redaction event itself is retained
// via RedactedBecause so callers can still surface the reason.
func Redact(target, because *Event) {
	target.RedactedBecause = Clone(because)
	target.PrevContent = nil
	target.Age = 0
	target.TransactionID = ""

	switch c := target.Content.(type) {
	case MemberContent:
		target.Content = MemberContent{Membership: c.Membership}
	case CreateContent:
		// m.federate is dropped by redaction; the structural identity
		// fields survive.
		target.Content = CreateContent{
			Creator:     c.Creator,
			RoomVersion: c.RoomVersion,
			Predecessor: clonePredecessor(c.Predecessor),
		}
	case PowerLevelsContent:
		target.Content = PowerLevelsContent{
			Ban:           cloneIntPtr(c.Ban),
			Events:        cloneIntMap(c.Events),
			EventsDefault: cloneIntPtr(c.EventsDefault),
			Kick:          cloneIntPtr(c.Kick),
			Redact:        cloneIntPtr(c.Redact),
			StateDefault:  cloneIntPtr(c.StateDefault),
			Users:         cloneIntMap(c.Users),
			UsersDefault:  cloneIntPtr(c.UsersDefault),
		}
	case HistoryVisibilityContent:
		target.Content = c
	case JoinRulesContent:
		target.Content = JoinRulesContent{JoinRule: c.JoinRule}
	default:
		// Every other type loses its content entirely.
		target.Content = nil
	}
}

func clonePredecessor(p *Predecessor) *Predecessor {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
