// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package crypto

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/ember-im/ember/crypto/primitive"
)

func TestSignAndVerifyJSON(t *testing.T) {
	t.Parallel()

	key, err := primitive.GenerateSigningKey()
	require.NoError(t, err)

	raw := []byte(`{"user_id": "@alice:example.org", "device_id": "DEVICEID", "unsigned": {"age": 100}}`)
	signed, err := SignJSON(key, "@alice:example.org", "DEVICEID", raw)
	require.NoError(t, err)

	// The signature landed under signatures[user]["ed25519:"+device].
	sig := gjson.GetBytes(signed, `signatures.@alice\:example\.org.ed25519\:DEVICEID`)
	require.True(t, sig.Exists(), "signature not found in %s", signed)

	ok, err := VerifyJSON(signed, "@alice:example.org", "ed25519:DEVICEID", key.PublicBase64())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignJSONWritesSignatureBlock(t *testing.T) {
	t.Parallel()

	aliceKey, err := primitive.GenerateSigningKey()
	require.NoError(t, err)
	bobKey, err := primitive.GenerateSigningKey()
	require.NoError(t, err)

	raw := []byte(`{"payload": "data"}`)
	signed, err := SignJSON(aliceKey, "@alice:example.org", "PHONE", raw)
	require.NoError(t, err)
	require.NotEqual(t, string(raw), string(signed), "signing must modify the object")

	// Counter-signing must keep the first signature intact.
	signed, err = SignJSON(bobKey, "@bob:example.org", "LAPTOP", signed)
	require.NoError(t, err)

	// Decode with plain JSON so no path syntax is involved.
	var doc struct {
		Signatures map[string]map[string]string `json:"signatures"`
	}
	require.NoError(t, json.Unmarshal(signed, &doc))
	require.Contains(t, doc.Signatures, "@alice:example.org")
	require.Contains(t, doc.Signatures, "@bob:example.org")
	assert.NotEmpty(t, doc.Signatures["@alice:example.org"]["ed25519:PHONE"])
	assert.NotEmpty(t, doc.Signatures["@bob:example.org"]["ed25519:LAPTOP"])

	ok, err := VerifyJSON(signed, "@alice:example.org", "ed25519:PHONE", aliceKey.PublicBase64())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = VerifyJSON(signed, "@bob:example.org", "ed25519:LAPTOP", bobKey.PublicBase64())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignJSONDeterministic(t *testing.T) {
	t.Parallel()

	key, err := primitive.GenerateSigningKey()
	require.NoError(t, err)

	a := []byte(`{"b": 2, "a": 1}`)
	b := []byte(`{ "a": 1, "b": 2 }`)
	signedA, err := SignJSON(key, "@a:x", "DEV", a)
	require.NoError(t, err)
	signedB, err := SignJSON(key, "@a:x", "DEV", b)
	require.NoError(t, err)

	sigA := gjson.GetBytes(signedA, `signatures.@a\:x.ed25519\:DEV`).Str
	sigB := gjson.GetBytes(signedB, `signatures.@a\:x.ed25519\:DEV`).Str
	assert.Equal(t, sigA, sigB, "same canonical form must produce the same signature")
}

func TestVerifyExcludesUnsignedAndSignatures(t *testing.T) {
	t.Parallel()

	key, err := primitive.GenerateSigningKey()
	require.NoError(t, err)

	signed, err := SignJSON(key, "@a:x", "DEV", []byte(`{"payload": "data"}`))
	require.NoError(t, err)

	// Mutating unsigned after signing must not break verification.
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(signed, &doc))
	doc["unsigned"] = json.RawMessage(`{"device_display_name": "laptop"}`)
	mutated, err := json.Marshal(doc)
	require.NoError(t, err)

	ok, err := VerifyJSON(mutated, "@a:x", "ed25519:DEV", key.PublicBase64())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyFailureIsDistinct(t *testing.T) {
	t.Parallel()

	key, err := primitive.GenerateSigningKey()
	require.NoError(t, err)
	otherKey, err := primitive.GenerateSigningKey()
	require.NoError(t, err)

	signed, err := SignJSON(key, "@a:x", "DEV", []byte(`{"payload": "data"}`))
	require.NoError(t, err)

	t.Run("wrong key is a verification failure", func(t *testing.T) {
		t.Parallel()
		ok, err := VerifyJSON(signed, "@a:x", "ed25519:DEV", otherKey.PublicBase64())
		assert.False(t, ok)
		assert.True(t, errors.Is(err, ErrVerificationFailed))
	})

	t.Run("tampered payload is a verification failure", func(t *testing.T) {
		t.Parallel()
		tampered := []byte(string(signed))
		tampered = append(tampered[:0:0], tampered...)
		mutated, err := jsonSet(tampered, "payload", "evil")
		require.NoError(t, err)
		ok, err := VerifyJSON(mutated, "@a:x", "ed25519:DEV", key.PublicBase64())
		assert.False(t, ok)
		assert.True(t, errors.Is(err, ErrVerificationFailed))
	})

	t.Run("missing signature is malformed, not a verification failure", func(t *testing.T) {
		t.Parallel()
		ok, err := VerifyJSON([]byte(`{"payload": "data"}`), "@a:x", "ed25519:DEV", key.PublicBase64())
		assert.False(t, ok)
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrVerificationFailed))
	})

	t.Run("garbage public key is malformed", func(t *testing.T) {
		t.Parallel()
		ok, err := VerifyJSON(signed, "@a:x", "ed25519:DEV", "!!not-base64!!")
		assert.False(t, ok)
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrVerificationFailed))
	})
}

func jsonSet(raw []byte, key, value string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	doc[key] = encoded
	return json.Marshal(doc)
}
