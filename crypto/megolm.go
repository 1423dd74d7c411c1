// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package crypto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ember-im/ember/crypto/primitive"
)

// OutboundSession is an outbound group session: one ratchet plus the
// rotation policy that bounds how long and for how many messages it may be
// used. Sessions are replaced wholesale on rotation, never rewound.
type OutboundSession struct {
	id      string
	ratchet *primitive.Ratchet
	created time.Time

	maxMessages int64
	maxAge      time.Duration
}

// NewOutboundSession creates a fresh session with a new ratchet.
// rotationPeriod and rotationMsgs of zero fall back to the protocol
// defaults (one week, 100 messages).
func NewOutboundSession(rotationPeriod time.Duration, rotationMsgs int64, now time.Time) (*OutboundSession, error) {
	if rotationPeriod <= 0 {
		rotationPeriod = 7 * 24 * time.Hour
	}
	if rotationMsgs <= 0 {
		rotationMsgs = 100
	}
	ratchet, err := primitive.NewRatchet()
	if err != nil {
		return nil, err
	}
	return &OutboundSession{
		id:          uuid.NewString(),
		ratchet:     ratchet,
		created:     now,
		maxMessages: rotationMsgs,
		maxAge:      rotationPeriod,
	}, nil
}

// ID returns the session identifier shared with recipients.
func (s *OutboundSession) ID() string {
	return s.id
}

// MessageCount returns how many message keys have been consumed.
func (s *OutboundSession) MessageCount() int64 {
	return int64(s.ratchet.Index())
}

// Age returns how long the session has existed.
func (s *OutboundSession) Age(now time.Time) time.Duration {
	return now.Sub(s.created)
}

// SessionKeyExport returns the shareable ratchet state at the current
// index, for distribution to recipient devices.
func (s *OutboundSession) SessionKeyExport() []byte {
	return s.ratchet.Export()
}

// NextMessageKey returns the key material for the next message and
// advances the ratchet. Only the primitive touches the counter.
func (s *OutboundSession) NextMessageKey() ([]byte, error) {
	key, err := s.ratchet.MessageKey()
	if err != nil {
		return nil, err
	}
	if err := s.ratchet.Advance(); err != nil {
		return nil, err
	}
	return key, nil
}

// MaybeRotate returns a freshly created replacement session iff the
// message count has reached the session's limit or its age has reached
// the rotation period; otherwise it returns the receiver unchanged. The
// old ratchet state is simply dropped; rotation never mutates it.
func (s *OutboundSession) MaybeRotate(now time.Time) (*OutboundSession, error) {
	if s.MessageCount() < s.maxMessages && s.Age(now) < s.maxAge {
		return s, nil
	}
	return NewOutboundSession(s.maxAge, s.maxMessages, now)
}
