// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package primitive

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

const ratchetStateSize = 32

var (
	ratchetAdvanceInfo = []byte("EMBER_GROUP_RATCHET")
	ratchetKeyInfo     = []byte("EMBER_GROUP_KEYS")
)

// Ratchet is a forward-only group ratchet in the megolm mould: a secret
// state advanced by a one-way step per message, plus a message index. Only
// this type ever mutates the state or the index; holders rotate by
// replacing the whole ratchet.
type Ratchet struct {
	state [ratchetStateSize]byte
	index uint32
}

// NewRatchet creates a ratchet with a random initial state at index zero.
func NewRatchet() (*Ratchet, error) {
	r := &Ratchet{}
	if _, err := rand.Read(r.state[:]); err != nil {
		return nil, errors.Wrap(err, "seeding ratchet state")
	}
	return r, nil
}

// Index returns the number of advances performed so far.
func (r *Ratchet) Index() uint32 {
	return r.index
}

// MessageKey derives the AEAD key material for the current index without
// advancing the ratchet.
func (r *Ratchet) MessageKey() ([]byte, error) {
	key := make([]byte, 32)
	reader := hkdf.New(sha256.New, r.state[:], nil, ratchetKeyInfo)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, errors.Wrap(err, "deriving message key")
	}
	return key, nil
}

// Advance performs one one-way ratchet step. The previous state is
// unrecoverable afterwards.
func (r *Ratchet) Advance() error {
	next := make([]byte, ratchetStateSize)
	reader := hkdf.New(sha256.New, r.state[:], nil, ratchetAdvanceInfo)
	if _, err := io.ReadFull(reader, next); err != nil {
		return errors.Wrap(err, "advancing ratchet")
	}
	copy(r.state[:], next)
	r.index++
	return nil
}

// Export serializes the current state and index so the session key can be
// shared with other devices. The export reveals this and later indices
// only; earlier states are gone.
func (r *Ratchet) Export() []byte {
	out := make([]byte, ratchetStateSize+4)
	copy(out, r.state[:])
	out[ratchetStateSize] = byte(r.index >> 24)
	out[ratchetStateSize+1] = byte(r.index >> 16)
	out[ratchetStateSize+2] = byte(r.index >> 8)
	out[ratchetStateSize+3] = byte(r.index)
	return out
}
