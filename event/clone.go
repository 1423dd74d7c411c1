// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package event

// Clone returns a deep copy of the event with a fully independent lifetime:
// no maps, slices or nested events are shared with the original.
func Clone(ev *Event) *Event {
	if ev == nil {
		return nil
	}
	clone := *ev
	if ev.StateKey != nil {
		key := *ev.StateKey
		clone.StateKey = &key
	}
	clone.Content = CloneContent(ev.Content)
	clone.PrevContent = CloneContent(ev.PrevContent)
	clone.RedactedBecause = Clone(ev.RedactedBecause)
	return &clone
}

// CloneContent deep-copies a content payload.
func CloneContent(content Content) Content {
	switch c := content.(type) {
	case nil:
		return nil
	case CreateContent:
		if c.Federate != nil {
			fed := *c.Federate
			c.Federate = &fed
		}
		if c.Predecessor != nil {
			pred := *c.Predecessor
			c.Predecessor = &pred
		}
		return c
	case MemberContent:
		return c
	case PowerLevelsContent:
		c.Ban = cloneIntPtr(c.Ban)
		c.EventsDefault = cloneIntPtr(c.EventsDefault)
		c.Invite = cloneIntPtr(c.Invite)
		c.Kick = cloneIntPtr(c.Kick)
		c.Redact = cloneIntPtr(c.Redact)
		c.StateDefault = cloneIntPtr(c.StateDefault)
		c.UsersDefault = cloneIntPtr(c.UsersDefault)
		c.Events = cloneIntMap(c.Events)
		c.Users = cloneIntMap(c.Users)
		if c.Notifications != nil {
			notif := NotificationLevels{Room: cloneIntPtr(c.Notifications.Room)}
			c.Notifications = &notif
		}
		return c
	case CanonicalAliasContent:
		if c.AltAliases != nil {
			aliases := make([]string, len(c.AltAliases))
			copy(aliases, c.AltAliases)
			c.AltAliases = aliases
		}
		return c
	case NameContent:
		return c
	case TopicContent:
		return c
	case AvatarContent:
		c.Info = cloneImageInfo(c.Info)
		c.ThumbnailInfo = cloneImageInfo(c.ThumbnailInfo)
		return c
	case EncryptionContent:
		return c
	case HistoryVisibilityContent:
		return c
	case GuestAccessContent:
		return c
	case JoinRulesContent:
		return c
	case RedactionContent:
		return c
	case MessageContent:
		return c
	default:
		// Unreachable for contents produced by this package.
		return content
	}
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneIntMap(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneImageInfo(info *ImageInfo) *ImageInfo {
	if info == nil {
		return nil
	}
	clone := *info
	return &clone
}
