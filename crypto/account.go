// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package crypto

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/ember-im/ember/crypto/primitive"
)

// MaxOneTimeKeys is the account's one-time-key capacity. Identity creation
// prefetches half of it so early session establishment never races key
// upload.
const MaxOneTimeKeys = 100

// OneTimeKey is one unpublished or published one-time key record.
type OneTimeKey struct {
	Algorithm string
	KeyID     string
	Key       primitive.IdentityKeyPair
	Published bool
}

// Account is the local device's cryptographic identity: the long-term
// signing and identity key pairs plus the pool of one-time keys.
type Account struct {
	signingKey  primitive.SigningKeyPair
	identityKey primitive.IdentityKeyPair
	oneTimeKeys map[string]*OneTimeKey
	nextKeyID   int
}

// NewAccount generates a fresh account: new long-term key pairs and half
// the one-time-key capacity as prefetch headroom.
func NewAccount() (*Account, error) {
	signing, err := primitive.GenerateSigningKey()
	if err != nil {
		return nil, err
	}
	identity, err := primitive.GenerateIdentityKey()
	if err != nil {
		return nil, err
	}
	account := &Account{
		signingKey:  signing,
		identityKey: identity,
		oneTimeKeys: make(map[string]*OneTimeKey),
	}
	if err := account.GenerateOneTimeKeys(MaxOneTimeKeys / 2); err != nil {
		return nil, err
	}
	return account, nil
}

// SigningKey exposes the signing key pair for SignJSON.
func (a *Account) SigningKey() primitive.SigningKeyPair {
	return a.signingKey
}

// SigningKeyBase64 returns the public Ed25519 key in wire encoding.
func (a *Account) SigningKeyBase64() string {
	return a.signingKey.PublicBase64()
}

// IdentityKeyBase64 returns the public Curve25519 key in wire encoding.
func (a *Account) IdentityKeyBase64() string {
	return a.identityKey.PublicBase64()
}

// GenerateOneTimeKeys adds n fresh unpublished one-time keys, capped at
// the account's remaining capacity.
func (a *Account) GenerateOneTimeKeys(n int) error {
	if room := MaxOneTimeKeys - len(a.oneTimeKeys); n > room {
		n = room
	}
	for i := 0; i < n; i++ {
		key, err := primitive.GenerateIdentityKey()
		if err != nil {
			return errors.Wrap(err, "generating one-time key")
		}
		a.nextKeyID++
		keyID := fmt.Sprintf("AAAA%d", a.nextKeyID)
		a.oneTimeKeys[keyID] = &OneTimeKey{
			Algorithm: "signed_curve25519",
			KeyID:     keyID,
			Key:       key,
		}
	}
	return nil
}

// UnpublishedOneTimeKeys returns the keys not yet uploaded, in key id
// order for deterministic upload bodies.
func (a *Account) UnpublishedOneTimeKeys() []*OneTimeKey {
	var keys []*OneTimeKey
	for _, key := range a.oneTimeKeys {
		if !key.Published {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].KeyID < keys[j].KeyID })
	return keys
}

// MarkPublished flags every currently unpublished key as uploaded.
func (a *Account) MarkPublished() {
	for _, key := range a.oneTimeKeys {
		key.Published = true
	}
}

// OneTimeKeyCount returns the total number of keys held locally.
func (a *Account) OneTimeKeyCount() int {
	return len(a.oneTimeKeys)
}

// DeviceKeysJSON builds and self-signs the device_keys object for
// POST /keys/upload.
func (a *Account) DeviceKeysJSON(userID, deviceID string) ([]byte, error) {
	object := map[string]interface{}{
		"user_id":    userID,
		"device_id":  deviceID,
		"algorithms": []string{string(AlgorithmOlm), string(AlgorithmMegolm)},
		"keys": map[string]string{
			SigningKeyID(deviceID):  a.SigningKeyBase64(),
			IdentityKeyID(deviceID): a.IdentityKeyBase64(),
		},
	}
	raw, err := json.Marshal(object)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling device keys")
	}
	return SignJSON(a.signingKey, userID, deviceID, raw)
}

// OneTimeKeysJSON builds the signed one_time_keys object for
// POST /keys/upload from the unpublished pool.
func (a *Account) OneTimeKeysJSON(userID, deviceID string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)
	for _, key := range a.UnpublishedOneTimeKeys() {
		object := map[string]interface{}{
			"key": key.Key.PublicBase64(),
		}
		raw, err := json.Marshal(object)
		if err != nil {
			return nil, errors.Wrap(err, "marshalling one-time key")
		}
		signed, err := SignJSON(a.signingKey, userID, deviceID, raw)
		if err != nil {
			return nil, err
		}
		out[key.Algorithm+":"+key.KeyID] = signed
	}
	return out, nil
}
