// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package crypto

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/ember-im/ember/crypto/primitive"
)

// ErrVerificationFailed marks a security-relevant verification failure:
// the input was perfectly well formed, the signature simply does not
// verify (or a pinned key changed). Callers must never retry or default
// through it; it is deliberately distinct from malformed-input errors.
var ErrVerificationFailed = errors.New("crypto: verification failed")

// SigningKeyID builds the wire key identifier "<algorithm>:<device_id>".
func SigningKeyID(deviceID string) string {
	return "ed25519:" + deviceID
}

// IdentityKeyID builds the curve25519 key identifier for a device.
func IdentityKeyID(deviceID string) string {
	return "curve25519:" + deviceID
}

// signableForm strips the fields excluded from signature computation (the
// signatures themselves and the server-mutable unsigned block), then
// canonicalizes.
func signableForm(raw []byte) ([]byte, error) {
	stripped, err := sjson.DeleteBytes(raw, "signatures")
	if err != nil {
		return nil, errors.Wrap(err, "stripping signatures")
	}
	stripped, err = sjson.DeleteBytes(stripped, "unsigned")
	if err != nil {
		return nil, errors.Wrap(err, "stripping unsigned")
	}
	return CanonicalJSON(stripped)
}

// SignJSON signs a JSON object with the account's signing key and returns
// the object with the signature inserted under
// signatures[userID]["ed25519:"+deviceID]. Existing signatures by other
// keys are preserved.
func SignJSON(key primitive.SigningKeyPair, userID, deviceID string, raw []byte) ([]byte, error) {
	canonical, err := signableForm(raw)
	if err != nil {
		return nil, err
	}
	signature := primitive.KeyEncoding.EncodeToString(key.Sign(canonical))

	// sjson reserves leading-@ path segments for modifiers and silently
	// ignores sets through them, which rules out building a set path
	// from a user id. The signatures block is rebuilt as a plain map
	// and re-inserted whole.
	signatures := make(map[string]map[string]string)
	if existing := gjson.GetBytes(raw, "signatures"); existing.IsObject() {
		if err := json.Unmarshal([]byte(existing.Raw), &signatures); err != nil {
			return nil, errors.Wrap(err, "decoding existing signatures")
		}
	}
	if signatures[userID] == nil {
		signatures[userID] = make(map[string]string)
	}
	signatures[userID][SigningKeyID(deviceID)] = signature

	block, err := json.Marshal(signatures)
	if err != nil {
		return nil, errors.Wrap(err, "encoding signatures")
	}
	signed, err := sjson.SetRawBytes(raw, "signatures", block)
	if err != nil {
		return nil, errors.Wrap(err, "inserting signatures")
	}
	return signed, nil
}

// VerifyJSON checks the embedded signature signatures[userID][keyID]
// against the supplied base64 Ed25519 public key. The outcomes are
// three-way: (true, nil) verified; (false, ErrVerificationFailed) the
// signature does not verify; (false, other error) the object or signature
// is malformed or absent.
func VerifyJSON(raw []byte, userID, keyID, publicKeyB64 string) (bool, error) {
	sigPath := "signatures." + escapePath(userID) + "." + escapePath(keyID)
	sig := gjson.GetBytes(raw, sigPath)
	if !sig.Exists() || sig.Type != gjson.String {
		return false, errors.Errorf("crypto: object carries no signature at %s[%s]", userID, keyID)
	}
	signature, err := primitive.KeyEncoding.DecodeString(sig.Str)
	if err != nil {
		return false, errors.Wrap(err, "decoding signature")
	}
	return VerifyCanonical(raw, signature, publicKeyB64)
}

// VerifyCanonical checks a detached signature over the canonical signable
// form of raw. Same three-way outcome contract as VerifyJSON.
func VerifyCanonical(raw, signature []byte, publicKeyB64 string) (bool, error) {
	canonical, err := signableForm(raw)
	if err != nil {
		return false, err
	}
	ok, err := primitive.Verify(publicKeyB64, canonical, signature)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrVerificationFailed
	}
	return true, nil
}

// escapePath escapes the separator dots of gjson/sjson path syntax so
// literal dots inside user ids and key ids survive.
func escapePath(s string) string {
	return strings.ReplaceAll(s, ".", "\\.")
}
