// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package tokenfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "session", "token.json")

	creds := &Credentials{
		UserID:      "@alice:example.org",
		DeviceID:    "EMBERDEV",
		AccessToken: "syt_abc",
		NextBatch:   "s123",
	}
	require.NoError(t, Save(path, creds))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, creds, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	creds, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestLoadRejectsIncomplete(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"user_id": "@alice:example.org"}`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsCorrupt(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
