// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package event

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }
func strPtr(s string) *string {
	return &s
}

// fullyPopulatedEvents returns one event per kind with all optional fields
// set, for round-trip and clone coverage.
func fullyPopulatedEvents() map[string]*Event {
	return map[string]*Event{
		"create": {
			ID: "$create", Type: TypeCreate, Sender: "@alice:example.org",
			Timestamp: 1, StateKey: strPtr(""),
			Content: CreateContent{
				Creator:     "@alice:example.org",
				RoomVersion: "6",
				Federate:    boolPtr(false),
				Predecessor: &Predecessor{RoomID: "!old:example.org", EventID: "$tomb"},
			},
		},
		"member": {
			ID: "$member", Type: TypeMember, Sender: "@alice:example.org",
			Timestamp: 2, StateKey: strPtr("@bob:example.org"),
			Age: 41, TransactionID: "txn9",
			Content: MemberContent{
				Membership: MembershipInvite, DisplayName: "Bob",
				AvatarURL: "mxc://example.org/b", IsDirect: true, Reason: "welcome",
			},
			PrevContent: MemberContent{Membership: MembershipLeave},
		},
		"power_levels": {
			ID: "$pl", Type: TypePowerLevels, Sender: "@alice:example.org",
			Timestamp: 3, StateKey: strPtr(""),
			Content: PowerLevelsContent{
				Ban: intPtr(50), EventsDefault: intPtr(0), Invite: intPtr(25),
				Kick: intPtr(50), Redact: intPtr(50), StateDefault: intPtr(50),
				UsersDefault: intPtr(0),
				Events:       map[string]int{"m.room.name": 75},
				Users:        map[string]int{"@alice:example.org": 100},
				Notifications: &NotificationLevels{Room: intPtr(50)},
			},
		},
		"canonical_alias": {
			ID: "$alias", Type: TypeCanonicalAlias, Sender: "@alice:example.org",
			Timestamp: 4, StateKey: strPtr(""),
			Content: CanonicalAliasContent{
				Alias:      "#main:example.org",
				AltAliases: []string{"#alt:example.org"},
			},
		},
		"name": {
			ID: "$name", Type: TypeName, Sender: "@alice:example.org",
			Timestamp: 5, StateKey: strPtr(""),
			Content: NameContent{Name: "Main"},
		},
		"topic": {
			ID: "$topic", Type: TypeTopic, Sender: "@alice:example.org",
			Timestamp: 6, StateKey: strPtr(""),
			Content: TopicContent{Topic: "All things"},
		},
		"avatar": {
			ID: "$avatar", Type: TypeAvatar, Sender: "@alice:example.org",
			Timestamp: 7, StateKey: strPtr(""),
			Content: AvatarContent{
				URL:           "mxc://example.org/av",
				Info:          &ImageInfo{Height: 64, Width: 64, MimeType: "image/png", Size: 1024},
				ThumbnailURL:  "mxc://example.org/th",
				ThumbnailInfo: &ImageInfo{Height: 16, Width: 16, MimeType: "image/png", Size: 64},
			},
		},
		"encryption": {
			ID: "$enc", Type: TypeEncryption, Sender: "@alice:example.org",
			Timestamp: 8, StateKey: strPtr(""),
			Content: EncryptionContent{
				Algorithm:          AlgorithmMegolmV1,
				RotationPeriodMS:   604800000,
				RotationPeriodMsgs: 100,
			},
		},
		"history_visibility": {
			ID: "$hv", Type: TypeHistoryVisibility, Sender: "@alice:example.org",
			Timestamp: 9, StateKey: strPtr(""),
			Content: HistoryVisibilityContent{HistoryVisibility: HistoryVisibilityShared},
		},
		"guest_access": {
			ID: "$ga", Type: TypeGuestAccess, Sender: "@alice:example.org",
			Timestamp: 10, StateKey: strPtr(""),
			Content: GuestAccessContent{GuestAccess: GuestAccessForbidden},
		},
		"join_rules": {
			ID: "$jr", Type: TypeJoinRules, Sender: "@alice:example.org",
			Timestamp: 11, StateKey: strPtr(""),
			Content: JoinRulesContent{JoinRule: JoinRuleInvite},
		},
		"redaction": {
			ID: "$red", Type: TypeRedaction, Sender: "@mod:example.org",
			Timestamp: 12, Redacts: "$topic",
			Content: RedactionContent{Reason: "off topic"},
		},
		"message": {
			ID: "$msg", Type: TypeMessage, Sender: "@bob:example.org",
			Timestamp: 13, Age: 5,
			Content: MessageContent{MsgType: MsgText, Body: "hello", URL: "", GeoURI: ""},
		},
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	t.Parallel()

	for name, ev := range fullyPopulatedEvents() {
		ev := ev
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			raw, err := Serialize(ev)
			require.NoError(t, err)
			parsed, err := Parse(raw)
			require.NoError(t, err)
			if diff := cmp.Diff(ev, parsed); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCloneIndependence(t *testing.T) {
	t.Parallel()

	original := fullyPopulatedEvents()["power_levels"]
	clone := Clone(original)

	if diff := cmp.Diff(original, clone); diff != "" {
		t.Fatalf("clone not equal (-want +got):\n%s", diff)
	}

	// Mutating the clone must not reach the original.
	content := clone.Content.(PowerLevelsContent)
	content.Users["@mallory:example.org"] = 100
	*content.Ban = 0

	origContent := original.Content.(PowerLevelsContent)
	assert.NotContains(t, origContent.Users, "@mallory:example.org")
	assert.Equal(t, 50, *origContent.Ban)
}

func TestCloneRedactedBecauseChain(t *testing.T) {
	t.Parallel()

	target := fullyPopulatedEvents()["topic"]
	because := fullyPopulatedEvents()["redaction"]
	Redact(target, because)

	clone := Clone(target)
	require.NotNil(t, clone.RedactedBecause)
	clone.RedactedBecause.Sender = "@other:example.org"
	assert.Equal(t, "@mod:example.org", target.RedactedBecause.Sender)
}

func TestRedactAllowedKeys(t *testing.T) {
	t.Parallel()

	because := fullyPopulatedEvents()["redaction"]

	t.Run("member keeps membership only", func(t *testing.T) {
		t.Parallel()
		ev := fullyPopulatedEvents()["member"]
		Redact(ev, because)
		content, ok := ev.Content.(MemberContent)
		require.True(t, ok)
		assert.Equal(t, MembershipInvite, content.Membership)
		assert.Empty(t, content.DisplayName)
		assert.Empty(t, content.AvatarURL)
		assert.Nil(t, ev.PrevContent)
		assert.True(t, ev.Redacted())
	})

	t.Run("create keeps identity drops federate", func(t *testing.T) {
		t.Parallel()
		ev := fullyPopulatedEvents()["create"]
		Redact(ev, because)
		content, ok := ev.Content.(CreateContent)
		require.True(t, ok)
		assert.Equal(t, "@alice:example.org", content.Creator)
		assert.Equal(t, "6", content.RoomVersion)
		require.NotNil(t, content.Predecessor)
		assert.Equal(t, "!old:example.org", content.Predecessor.RoomID)
		assert.Nil(t, content.Federate)
	})

	t.Run("topic loses everything", func(t *testing.T) {
		t.Parallel()
		ev := fullyPopulatedEvents()["topic"]
		Redact(ev, because)
		assert.Nil(t, ev.Content)
		assert.True(t, ev.Redacted())
	})

	t.Run("message loses everything", func(t *testing.T) {
		t.Parallel()
		ev := fullyPopulatedEvents()["message"]
		Redact(ev, because)
		assert.Nil(t, ev.Content)
	})

	t.Run("power levels drop invite and notifications", func(t *testing.T) {
		t.Parallel()
		ev := fullyPopulatedEvents()["power_levels"]
		Redact(ev, because)
		content, ok := ev.Content.(PowerLevelsContent)
		require.True(t, ok)
		assert.Nil(t, content.Invite)
		assert.Nil(t, content.Notifications)
		assert.Equal(t, 50, *content.Ban)
		assert.Equal(t, 100, content.Users["@alice:example.org"])
	})

	t.Run("redacted event reparses", func(t *testing.T) {
		t.Parallel()
		ev := fullyPopulatedEvents()["member"]
		Redact(ev, because)
		raw, err := Serialize(ev)
		require.NoError(t, err)
		parsed, err := Parse(raw)
		require.NoError(t, err)
		assert.True(t, parsed.Redacted())
	})
}
