// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package crypto

import (
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Encryption algorithm identifiers carried in device key objects.
const (
	AlgorithmMegolm = "m.megolm.v1.aes-sha2"
	AlgorithmOlm    = "m.olm.v1.curve25519-aes-sha2"
)

// RemoteOneTimeKey is a claimed one-time key for a remote device.
type RemoteOneTimeKey struct {
	Algorithm string
	KeyID     string
	Key       string
}

// Device is a remote user's device as learned from a key query.
type Device struct {
	UserID      string
	ID          string
	SigningKey  string
	IdentityKey string
	Algorithms  []string
	DisplayName string
	OneTimeKeys []RemoteOneTimeKey
}

// VerifyDeviceObject validates one device_keys object from a key-query
// response against the query it answered and against prior knowledge:
//
//   - the embedded user_id/device_id must match the query key,
//   - the signing key must match any previously pinned value (a device's
//     signing key never changes; a mismatch is a hard failure, not an
//     update),
//   - the self-signature must verify against the embedded signing key.
//
// Malformed objects return ordinary errors; identity mismatches, pin
// violations and bad signatures wrap ErrVerificationFailed.
func VerifyDeviceObject(raw []byte, queryUserID, queryDeviceID string, known *Device) (*Device, error) {
	userID := gjson.GetBytes(raw, "user_id")
	deviceID := gjson.GetBytes(raw, "device_id")
	if !userID.Exists() || !deviceID.Exists() {
		return nil, errors.New("crypto: device object missing user_id or device_id")
	}
	if userID.Str != queryUserID || deviceID.Str != queryDeviceID {
		return nil, errors.Wrapf(ErrVerificationFailed,
			"device object identifies as %s/%s, queried %s/%s",
			userID.Str, deviceID.Str, queryUserID, queryDeviceID)
	}

	signingKeyID := SigningKeyID(queryDeviceID)
	signingKey := gjson.GetBytes(raw, "keys."+escapePath(signingKeyID))
	if !signingKey.Exists() || signingKey.Type != gjson.String {
		return nil, errors.Errorf("crypto: device object carries no %s key", signingKeyID)
	}
	if known != nil && known.SigningKey != "" && known.SigningKey != signingKey.Str {
		return nil, errors.Wrapf(ErrVerificationFailed,
			"signing key for %s/%s changed from pinned value", queryUserID, queryDeviceID)
	}

	if _, err := VerifyJSON(raw, queryUserID, signingKeyID, signingKey.Str); err != nil {
		return nil, err
	}

	device := &Device{
		UserID:      queryUserID,
		ID:          queryDeviceID,
		SigningKey:  signingKey.Str,
		IdentityKey: gjson.GetBytes(raw, "keys."+escapePath(IdentityKeyID(queryDeviceID))).Str,
		DisplayName: gjson.GetBytes(raw, "unsigned.device_display_name").Str,
	}
	for _, algorithm := range gjson.GetBytes(raw, "algorithms").Array() {
		device.Algorithms = append(device.Algorithms, algorithm.Str)
	}
	if known != nil {
		device.OneTimeKeys = append(device.OneTimeKeys, known.OneTimeKeys...)
	}
	return device, nil
}
