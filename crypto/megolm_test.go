// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package crypto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboundSessionRotationByCount(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	session, err := NewOutboundSession(time.Hour, 3, now)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := session.NextMessageKey()
		require.NoError(t, err)
		rotated, err := session.MaybeRotate(now)
		require.NoError(t, err)
		assert.Same(t, session, rotated, "below both limits, session unchanged")
	}

	_, err = session.NextMessageKey()
	require.NoError(t, err)
	assert.Equal(t, int64(3), session.MessageCount())

	rotated, err := session.MaybeRotate(now)
	require.NoError(t, err)
	assert.NotSame(t, session, rotated, "message limit reached, fresh session expected")
	assert.NotEqual(t, session.ID(), rotated.ID())
	assert.Equal(t, int64(0), rotated.MessageCount())
}

func TestOutboundSessionRotationByAge(t *testing.T) {
	t.Parallel()

	created := time.Unix(1700000000, 0)
	session, err := NewOutboundSession(time.Hour, 100, created)
	require.NoError(t, err)

	rotated, err := session.MaybeRotate(created.Add(59 * time.Minute))
	require.NoError(t, err)
	assert.Same(t, session, rotated)

	rotated, err = session.MaybeRotate(created.Add(time.Hour))
	require.NoError(t, err)
	assert.NotSame(t, session, rotated)
}

func TestMessageKeysAdvance(t *testing.T) {
	t.Parallel()

	session, err := NewOutboundSession(time.Hour, 100, time.Now())
	require.NoError(t, err)

	first, err := session.NextMessageKey()
	require.NoError(t, err)
	second, err := session.NextMessageKey()
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "ratchet must derive a new key per message")
	assert.Equal(t, int64(2), session.MessageCount())
}

func TestSessionKeyExportCarriesIndex(t *testing.T) {
	t.Parallel()

	session, err := NewOutboundSession(time.Hour, 100, time.Now())
	require.NoError(t, err)

	before := session.SessionKeyExport()
	_, err = session.NextMessageKey()
	require.NoError(t, err)
	after := session.SessionKeyExport()

	assert.NotEqual(t, before, after, "export reflects ratchet progress")
	assert.Len(t, after, 36)
}

func TestAccountIdentity(t *testing.T) {
	t.Parallel()

	account, err := NewAccount()
	require.NoError(t, err)

	assert.NotEmpty(t, account.SigningKeyBase64())
	assert.NotEmpty(t, account.IdentityKeyBase64())
	// Half the capacity prefetched at creation.
	assert.Equal(t, MaxOneTimeKeys/2, account.OneTimeKeyCount())
	assert.Len(t, account.UnpublishedOneTimeKeys(), MaxOneTimeKeys/2)

	account.MarkPublished()
	assert.Empty(t, account.UnpublishedOneTimeKeys())

	// Generation is capped at capacity.
	require.NoError(t, account.GenerateOneTimeKeys(MaxOneTimeKeys))
	assert.Equal(t, MaxOneTimeKeys, account.OneTimeKeyCount())
}

func TestDeviceKeysJSONSelfSigned(t *testing.T) {
	t.Parallel()

	account, err := NewAccount()
	require.NoError(t, err)

	raw, err := account.DeviceKeysJSON("@alice:example.org", "LAPTOP")
	require.NoError(t, err)

	device, err := VerifyDeviceObject(raw, "@alice:example.org", "LAPTOP", nil)
	require.NoError(t, err)
	assert.Equal(t, account.SigningKeyBase64(), device.SigningKey)
	assert.Equal(t, account.IdentityKeyBase64(), device.IdentityKey)

	keys, err := account.OneTimeKeysJSON("@alice:example.org", "LAPTOP")
	require.NoError(t, err)
	assert.Len(t, keys, MaxOneTimeKeys/2)
	for id := range keys {
		assert.Contains(t, id, "signed_curve25519:")
	}
}
