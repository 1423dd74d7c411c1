// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLocalpart(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "alice", NormalizeLocalpart("  Alice "))
	assert.Equal(t, "bob", NormalizeLocalpart("bob"))
}

func TestUserID(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "@alice:example.org", UserID(" Alice", "example.org"))
}

func TestSplitID(t *testing.T) {
	t.Parallel()
	localpart, domain, err := SplitID('@', "@alice:example.org")
	require.NoError(t, err)
	assert.Equal(t, "alice", localpart)
	assert.Equal(t, "example.org", domain)

	// Domains may carry ports, so only the first colon splits.
	localpart, domain, err = SplitID('!', "!abc:example.org:8448")
	require.NoError(t, err)
	assert.Equal(t, "abc", localpart)
	assert.Equal(t, "example.org:8448", domain)

	for _, bad := range []string{"", "alice:example.org", "@alice", "@:example.org", "@alice:"} {
		_, _, err := SplitID('@', bad)
		assert.Error(t, err, "id %q", bad)
	}
}

func TestValidators(t *testing.T) {
	t.Parallel()
	assert.True(t, ValidUserID("@alice:example.org"))
	assert.False(t, ValidUserID("!room:example.org"))
	assert.True(t, ValidRoomID("!room:example.org"))
	assert.False(t, ValidRoomID("@alice:example.org"))
	assert.True(t, ValidEventID("$opaquehash"))
	assert.False(t, ValidEventID("$"))
	assert.False(t, ValidEventID("event"))
}
