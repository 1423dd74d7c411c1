// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package crypto

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-im/ember/crypto/primitive"
)

func TestUpdateDirtyBitMinimality(t *testing.T) {
	t.Parallel()

	tracker := NewDeviceListTracker()
	tracker.Update([]string{"@bob:example.org", "@carol:example.org"}, nil)

	assert.Equal(t, []string{"@bob:example.org", "@carol:example.org"}, tracker.DirtyUsers())

	// Clearing one user leaves the other dirty and untouched.
	tracker.CommitDevices("@bob:example.org", nil)
	assert.Equal(t, []string{"@carol:example.org"}, tracker.DirtyUsers())
	assert.False(t, tracker.List("@bob:example.org").Dirty)

	// A delta naming neither user changes nothing.
	tracker.Update([]string{"@dave:example.org"}, nil)
	assert.Equal(t, []string{"@carol:example.org", "@dave:example.org"}, tracker.DirtyUsers())
	assert.False(t, tracker.List("@bob:example.org").Dirty)
}

func TestUpdateIdempotentAndNoDuplicates(t *testing.T) {
	t.Parallel()

	tracker := NewDeviceListTracker()
	// The same changed set twice without an intervening query: the flag
	// stays set and the user is not duplicated.
	tracker.Update([]string{"@bob:example.org"}, nil)
	tracker.Update([]string{"@bob:example.org"}, nil)

	assert.Equal(t, []string{"@bob:example.org"}, tracker.DirtyUsers())
	assert.Equal(t, 1, tracker.Len())
	assert.True(t, tracker.List("@bob:example.org").Dirty)
}

func TestUpdateLeftRemovesList(t *testing.T) {
	t.Parallel()

	tracker := NewDeviceListTracker()
	tracker.Update([]string{"@bob:example.org"}, nil)
	tracker.Update(nil, []string{"@bob:example.org", "@never-seen:example.org"})

	assert.Nil(t, tracker.List("@bob:example.org"))
	assert.Empty(t, tracker.DirtyUsers())
	assert.Equal(t, 0, tracker.Len())
}

// signedDeviceObject builds a valid self-signed device_keys object.
func signedDeviceObject(t *testing.T, key primitive.SigningKeyPair, userID, deviceID string) json.RawMessage {
	t.Helper()
	identity, err := primitive.GenerateIdentityKey()
	require.NoError(t, err)
	raw := []byte(fmt.Sprintf(`{
		"user_id": %q,
		"device_id": %q,
		"algorithms": [%q, %q],
		"keys": {%q: %q, %q: %q}
	}`,
		userID, deviceID, AlgorithmOlm, AlgorithmMegolm,
		SigningKeyID(deviceID), key.PublicBase64(),
		IdentityKeyID(deviceID), identity.PublicBase64(),
	))
	signed, err := SignJSON(key, userID, deviceID, raw)
	require.NoError(t, err)
	return signed
}

func TestVerifyAndCommitClearsDirty(t *testing.T) {
	t.Parallel()

	key, err := primitive.GenerateSigningKey()
	require.NoError(t, err)

	tracker := NewDeviceListTracker()
	tracker.Update([]string{"@bob:example.org"}, nil)

	object := signedDeviceObject(t, key, "@bob:example.org", "BOBPHONE")
	known := tracker.KnownDevices("@bob:example.org")
	device, err := VerifyDeviceObject(object, "@bob:example.org", "BOBPHONE", known["BOBPHONE"])
	require.NoError(t, err)
	tracker.CommitDevices("@bob:example.org", map[string]*Device{"BOBPHONE": device})

	list := tracker.List("@bob:example.org")
	require.NotNil(t, list)
	assert.False(t, list.Dirty)
	device = list.Devices["BOBPHONE"]
	require.NotNil(t, device)
	assert.Equal(t, key.PublicBase64(), device.SigningKey)
	assert.NotEmpty(t, device.IdentityKey)
	assert.Contains(t, device.Algorithms, AlgorithmMegolm)
}

func TestPinnedSigningKeyRejectsImposter(t *testing.T) {
	t.Parallel()

	key, err := primitive.GenerateSigningKey()
	require.NoError(t, err)
	imposterKey, err := primitive.GenerateSigningKey()
	require.NoError(t, err)

	tracker := NewDeviceListTracker()
	tracker.Update([]string{"@bob:example.org"}, nil)
	device, err := VerifyDeviceObject(
		signedDeviceObject(t, key, "@bob:example.org", "BOBPHONE"),
		"@bob:example.org", "BOBPHONE", nil)
	require.NoError(t, err)
	tracker.CommitDevices("@bob:example.org", map[string]*Device{"BOBPHONE": device})

	// A later response with a different (but validly self-signed) signing
	// key must be rejected as a pin violation, leaving the old key.
	tracker.Update([]string{"@bob:example.org"}, nil)
	known := tracker.KnownDevices("@bob:example.org")
	_, err = VerifyDeviceObject(
		signedDeviceObject(t, imposterKey, "@bob:example.org", "BOBPHONE"),
		"@bob:example.org", "BOBPHONE", known["BOBPHONE"])
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVerificationFailed))

	list := tracker.List("@bob:example.org")
	assert.True(t, list.Dirty, "failed query must leave the user dirty")
	assert.Equal(t, key.PublicBase64(), list.Devices["BOBPHONE"].SigningKey)
}

func TestVerifyDeviceObjectMismatchedIdentity(t *testing.T) {
	t.Parallel()

	key, err := primitive.GenerateSigningKey()
	require.NoError(t, err)
	object := signedDeviceObject(t, key, "@bob:example.org", "BOBPHONE")

	_, err = VerifyDeviceObject(object, "@eve:example.org", "BOBPHONE", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVerificationFailed))

	_, err = VerifyDeviceObject(object, "@bob:example.org", "OTHERDEV", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVerificationFailed))
}
