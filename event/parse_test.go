// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMemberEvent(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"type": "m.room.member",
		"event_id": "$member1:example.org",
		"sender": "@alice:example.org",
		"state_key": "@alice:example.org",
		"origin_server_ts": 1700000000000,
		"content": {"membership": "join", "displayname": "Alice", "avatar_url": "mxc://example.org/abc"},
		"unsigned": {"age": 1234, "transaction_id": "txn1"}
	}`)

	ev, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, TypeMember, ev.Type)
	assert.Equal(t, "$member1:example.org", ev.ID)
	assert.Equal(t, "@alice:example.org", ev.Sender)
	assert.Equal(t, "@alice:example.org", ev.StateKeyValue())
	assert.Equal(t, int64(1700000000000), ev.Timestamp)
	assert.Equal(t, int64(1234), ev.Age)
	assert.Equal(t, "txn1", ev.TransactionID)

	content, ok := ev.Content.(MemberContent)
	require.True(t, ok)
	assert.Equal(t, MembershipJoin, content.Membership)
	assert.Equal(t, "Alice", content.DisplayName)
	assert.Equal(t, "mxc://example.org/abc", content.AvatarURL)
}

func TestParseRequiredFields(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		json    string
		field   string
		failure ParseFailure
	}{
		{
			name:    "missing type",
			json:    `{"event_id": "$e", "sender": "@a:x", "origin_server_ts": 1, "content": {}}`,
			field:   "type",
			failure: FieldAbsent,
		},
		{
			name:    "unrecognized type",
			json:    `{"type": "org.example.custom", "event_id": "$e", "sender": "@a:x", "origin_server_ts": 1, "content": {}}`,
			field:   "type",
			failure: ValueUnrecognized,
		},
		{
			name:    "missing event_id",
			json:    `{"type": "m.room.topic", "sender": "@a:x", "state_key": "", "origin_server_ts": 1, "content": {"topic": "x"}}`,
			field:   "event_id",
			failure: FieldAbsent,
		},
		{
			name:    "missing origin_server_ts",
			json:    `{"type": "m.room.topic", "event_id": "$e", "sender": "@a:x", "state_key": "", "content": {"topic": "x"}}`,
			field:   "origin_server_ts",
			failure: FieldAbsent,
		},
		{
			name:    "missing state_key on state event",
			json:    `{"type": "m.room.topic", "event_id": "$e", "sender": "@a:x", "origin_server_ts": 1, "content": {"topic": "x"}}`,
			field:   "state_key",
			failure: FieldAbsent,
		},
		{
			name:    "missing membership",
			json:    `{"type": "m.room.member", "event_id": "$e", "sender": "@a:x", "state_key": "@a:x", "origin_server_ts": 1, "content": {"displayname": "A"}}`,
			field:   "content.membership",
			failure: FieldAbsent,
		},
		{
			name:    "unrecognized membership",
			json:    `{"type": "m.room.member", "event_id": "$e", "sender": "@a:x", "state_key": "@a:x", "origin_server_ts": 1, "content": {"membership": "hover"}}`,
			field:   "content.membership",
			failure: ValueUnrecognized,
		},
		{
			name:    "malformed origin_server_ts",
			json:    `{"type": "m.room.topic", "event_id": "$e", "sender": "@a:x", "state_key": "", "origin_server_ts": "soon", "content": {"topic": "x"}}`,
			field:   "origin_server_ts",
			failure: FieldMalformed,
		},
		{
			name:    "unrecognized join rule",
			json:    `{"type": "m.room.join_rules", "event_id": "$e", "sender": "@a:x", "state_key": "", "origin_server_ts": 1, "content": {"join_rule": "open"}}`,
			field:   "content.join_rule",
			failure: ValueUnrecognized,
		},
		{
			name:    "unrecognized msgtype",
			json:    `{"type": "m.room.message", "event_id": "$e", "sender": "@a:x", "origin_server_ts": 1, "content": {"msgtype": "m.hologram", "body": "hi"}}`,
			field:   "content.msgtype",
			failure: ValueUnrecognized,
		},
		{
			name:    "unrecognized encryption algorithm",
			json:    `{"type": "m.room.encryption", "event_id": "$e", "sender": "@a:x", "state_key": "", "origin_server_ts": 1, "content": {"algorithm": "m.rot13"}}`,
			field:   "content.algorithm",
			failure: ValueUnrecognized,
		},
		{
			name:    "missing redacts on redaction",
			json:    `{"type": "m.room.redaction", "event_id": "$e", "sender": "@a:x", "origin_server_ts": 1, "content": {}}`,
			field:   "redacts",
			failure: FieldAbsent,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tc.json))
			require.Error(t, err)
			pe, ok := IsParseError(err)
			require.True(t, ok, "expected *ParseError, got %T", err)
			assert.Equal(t, tc.field, pe.Field)
			assert.Equal(t, tc.failure, pe.Failure)
		})
	}
}

func TestParseStrippedStateEvent(t *testing.T) {
	t.Parallel()

	// Invite previews omit event_id and origin_server_ts; that must parse.
	raw := []byte(`{
		"type": "m.room.name",
		"sender": "@bob:example.org",
		"state_key": "",
		"content": {"name": "Secret Lair"}
	}`)

	ev, err := ParseStripped(raw)
	require.NoError(t, err)
	assert.True(t, ev.Stripped)
	assert.Empty(t, ev.ID)
	assert.Equal(t, NameContent{Name: "Secret Lair"}, ev.Content)

	// The same payload is rejected when a full event is expected.
	_, err = Parse(raw)
	require.Error(t, err)
}

func TestParseOptionalFieldsDefault(t *testing.T) {
	t.Parallel()

	// Power levels with every optional field absent parses to all-nil
	// pointers so the reducer keeps its defaults.
	raw := []byte(`{
		"type": "m.room.power_levels",
		"event_id": "$pl:example.org",
		"sender": "@a:x",
		"state_key": "",
		"origin_server_ts": 5,
		"content": {}
	}`)
	ev, err := Parse(raw)
	require.NoError(t, err)
	content, ok := ev.Content.(PowerLevelsContent)
	require.True(t, ok)
	assert.Nil(t, content.Ban)
	assert.Nil(t, content.UsersDefault)
	assert.Nil(t, content.Events)
	assert.Nil(t, content.Notifications)
}

func TestParseRedactedBecause(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"type": "m.room.topic",
		"event_id": "$topic:example.org",
		"sender": "@a:x",
		"state_key": "",
		"origin_server_ts": 10,
		"unsigned": {
			"redacted_because": {
				"type": "m.room.redaction",
				"event_id": "$redact:example.org",
				"sender": "@mod:x",
				"origin_server_ts": 20,
				"redacts": "$topic:example.org",
				"content": {"reason": "spam"}
			}
		}
	}`)

	ev, err := Parse(raw)
	require.NoError(t, err)
	assert.True(t, ev.Redacted())
	assert.Nil(t, ev.Content)
	require.NotNil(t, ev.RedactedBecause)
	assert.Equal(t, "$topic:example.org", ev.RedactedBecause.Redacts)
	assert.Equal(t, RedactionContent{Reason: "spam"}, ev.RedactedBecause.Content)
}

func TestParseList(t *testing.T) {
	t.Parallel()

	raw := []byte(`[
		{"type": "m.room.name", "event_id": "$1", "sender": "@a:x", "state_key": "", "origin_server_ts": 1, "content": {"name": "A"}},
		{"type": "m.room.message", "event_id": "$2", "sender": "@a:x", "origin_server_ts": 2, "content": {"msgtype": "m.text", "body": "hi"}}
	]`)
	events, err := ParseList(raw)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, TypeName, events[0].Type)
	assert.Equal(t, TypeMessage, events[1].Type)

	// One bad event poisons the whole batch.
	bad := []byte(`[{"type": "m.room.name", "sender": "@a:x", "state_key": "", "content": {"name": "A"}}]`)
	_, err = ParseList(bad)
	require.Error(t, err)
}
