// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

// Package primitive supplies the raw cryptographic capabilities consumed by
// the key manager: key generation, detached signing and verification, and
// the group ratchet step. Everything above this package treats these as
// opaque; nothing outside it advances a ratchet or touches key material
// directly.
package primitive

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"

	"github.com/pkg/errors"
	"golang.org/x/crypto/curve25519"
)

// Matrix transports keys as unpadded standard base64.
var KeyEncoding = base64.RawStdEncoding

// SigningKeyPair is an Ed25519 key pair used for device self-signatures.
type SigningKeyPair struct {
	Public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// GenerateSigningKey creates a fresh Ed25519 key pair.
func GenerateSigningKey() (SigningKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return SigningKeyPair{}, errors.Wrap(err, "generating ed25519 key")
	}
	return SigningKeyPair{Public: pub, private: priv}, nil
}

// Sign produces a detached signature over message.
func (k SigningKeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(k.private, message)
}

// PublicBase64 returns the unpadded base64 form of the public key.
func (k SigningKeyPair) PublicBase64() string {
	return KeyEncoding.EncodeToString(k.Public)
}

// Verify checks a detached Ed25519 signature against a base64 public key.
// A decoding problem is reported as an error; a signature that simply does
// not verify returns (false, nil).
func Verify(publicKeyB64 string, message, signature []byte) (bool, error) {
	key, err := KeyEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return false, errors.Wrap(err, "decoding ed25519 public key")
	}
	if len(key) != ed25519.PublicKeySize {
		return false, errors.Errorf("ed25519 public key has %d bytes, want %d", len(key), ed25519.PublicKeySize)
	}
	if len(signature) != ed25519.SignatureSize {
		return false, errors.Errorf("ed25519 signature has %d bytes, want %d", len(signature), ed25519.SignatureSize)
	}
	return ed25519.Verify(ed25519.PublicKey(key), message, signature), nil
}

// IdentityKeyPair is a Curve25519 key pair used for Diffie-Hellman session
// establishment.
type IdentityKeyPair struct {
	Public  [32]byte
	private [32]byte
}

// GenerateIdentityKey creates a fresh Curve25519 key pair.
func GenerateIdentityKey() (IdentityKeyPair, error) {
	var pair IdentityKeyPair
	if _, err := rand.Read(pair.private[:]); err != nil {
		return IdentityKeyPair{}, errors.Wrap(err, "generating curve25519 key")
	}
	// RFC 7748 scalar clamping.
	pair.private[0] &= 248
	pair.private[31] &= 127
	pair.private[31] |= 64
	public, err := curve25519.X25519(pair.private[:], curve25519.Basepoint)
	if err != nil {
		return IdentityKeyPair{}, errors.Wrap(err, "deriving curve25519 public key")
	}
	copy(pair.Public[:], public)
	return pair, nil
}

// PublicBase64 returns the unpadded base64 form of the public key.
func (k IdentityKeyPair) PublicBase64() string {
	return KeyEncoding.EncodeToString(k.Public[:])
}

// SharedSecret computes the X25519 shared secret with a peer public key.
func (k IdentityKeyPair) SharedSecret(peerPublicB64 string) ([]byte, error) {
	peer, err := KeyEncoding.DecodeString(peerPublicB64)
	if err != nil {
		return nil, errors.Wrap(err, "decoding curve25519 public key")
	}
	secret, err := curve25519.X25519(k.private[:], peer)
	if err != nil {
		return nil, errors.Wrap(err, "computing curve25519 shared secret")
	}
	return secret, nil
}
