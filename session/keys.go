// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ember-im/ember/client"
	"github.com/ember-im/ember/crypto"
	"github.com/ember-im/ember/internal/util"
)

// MaintainKeys performs the key upkeep due after a sync commit:
// publishing device keys on first run, topping up the server's pool of
// one-time keys, and querying device lists for every dirty user. All
// network and cryptographic work happens outside the session lock.
func (s *Session) MaintainKeys(ctx context.Context) error {
	if err := s.uploadKeys(ctx); err != nil {
		return err
	}
	return s.RefreshDeviceLists(ctx)
}

func (s *Session) uploadKeys(ctx context.Context) error {
	s.mu.Lock()
	needDeviceKeys := !s.deviceKeysPublished
	serverCount := s.serverOneTimeKeys
	s.mu.Unlock()

	needOneTimeKeys := serverCount < crypto.MaxOneTimeKeys/2
	if !needDeviceKeys && !needOneTimeKeys {
		return nil
	}

	req := &client.UploadKeysRequest{}
	if needDeviceKeys {
		deviceKeys, err := s.account.DeviceKeysJSON(s.userID, s.deviceID)
		if err != nil {
			return err
		}
		req.DeviceKeys = deviceKeys
	}
	if needOneTimeKeys {
		// Unpublished keys in the pool count toward the refill: only
		// the shortfall is freshly generated.
		want := crypto.MaxOneTimeKeys/2 - serverCount
		if have := len(s.account.UnpublishedOneTimeKeys()); want > have {
			if err := s.account.GenerateOneTimeKeys(want - have); err != nil {
				return err
			}
		}
		oneTimeKeys, err := s.account.OneTimeKeysJSON(s.userID, s.deviceID)
		if err != nil {
			return err
		}
		req.OneTimeKeys = oneTimeKeys
	}

	resp, err := client.UploadKeys(ctx, s.api, req)
	if err != nil {
		return err
	}
	keyUploads.Inc()
	s.account.MarkPublished()

	s.mu.Lock()
	s.deviceKeysPublished = true
	if count, ok := resp.OneTimeKeyCounts["signed_curve25519"]; ok {
		s.serverOneTimeKeys = count
	}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"device_keys":   needDeviceKeys,
		"one_time_keys": len(req.OneTimeKeys),
	}).Info("Uploaded keys")
	return nil
}

// RefreshDeviceLists issues one key query covering exactly the users
// whose device lists are dirty; clean users are never re-queried. Each
// returned device object is verified (with signing-key pinning) before
// the set is committed; a verification failure leaves that user dirty
// and their previous devices intact.
func (s *Session) RefreshDeviceLists(ctx context.Context) error {
	s.mu.Lock()
	dirty := s.devices.DirtyUsers()
	s.mu.Unlock()
	if len(dirty) == 0 {
		return nil
	}

	req := &client.QueryKeysRequest{DeviceKeys: make(map[string][]string, len(dirty))}
	for _, userID := range dirty {
		req.DeviceKeys[userID] = []string{}
	}
	resp, err := client.QueryKeys(ctx, s.api, req)
	if err != nil {
		return err
	}
	keyQueries.Inc()

	for _, userID := range dirty {
		// A queried user absent from device_keys was not answered, not
		// emptied: typically their homeserver is listed under failures.
		// Their pinned devices stay and the dirty bit stays set, so the
		// next round retries.
		devices, answered := resp.DeviceKeys[userID]
		if !answered {
			entry := s.log.WithField("user_id", userID)
			if failure, ok := resp.Failures[userDomain(userID)]; ok {
				entry = entry.WithField("failure", string(failure))
			}
			entry.Warn("Key query did not answer for user, keeping previous devices")
			continue
		}

		s.mu.Lock()
		known := s.devices.KnownDevices(userID)
		s.mu.Unlock()

		verified := make(map[string]*crypto.Device, len(devices))
		var verifyErr error
		for deviceID, raw := range devices {
			device, err := crypto.VerifyDeviceObject(raw, userID, deviceID, known[deviceID])
			if err != nil {
				verifyErr = err
				break
			}
			verified[deviceID] = device
			if s.caches != nil {
				s.caches.StoreVerifiedDeviceKey(userID, deviceID, device.SigningKey)
			}
		}
		if verifyErr != nil {
			s.log.WithError(verifyErr).WithField("user_id", userID).
				Warn("Device verification failed, keeping user dirty")
			continue
		}

		s.mu.Lock()
		s.devices.CommitDevices(userID, verified)
		s.mu.Unlock()
	}
	return nil
}

// userDomain extracts the homeserver part of a user id, the key the
// failures section of a key-query response is indexed by.
func userDomain(userID string) string {
	_, domain, err := util.SplitID('@', userID)
	if err != nil {
		return userID
	}
	return domain
}

// OutboundSession returns the megolm outbound session for a room,
// creating it on first use and rotating it when the configured message
// count or age limit has been reached. The ratchet itself only ever
// advances inside the primitive.
func (s *Session) OutboundSession(roomID string) (*crypto.OutboundSession, error) {
	now := time.Now()
	s.mu.Lock()
	current := s.outbound[roomID]
	period, maxMessages := s.rotationPolicy(roomID)
	s.mu.Unlock()

	if current == nil {
		fresh, err := crypto.NewOutboundSession(period, maxMessages, now)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.outbound[roomID] = fresh
		s.mu.Unlock()
		return fresh, nil
	}

	next, err := current.MaybeRotate(now)
	if err != nil {
		return nil, err
	}
	if next != current {
		s.log.WithFields(logrus.Fields{
			"room_id":     roomID,
			"old_session": current.ID(),
			"new_session": next.ID(),
		}).Info("Rotated outbound session")
		s.mu.Lock()
		s.outbound[roomID] = next
		s.mu.Unlock()
	}
	return next, nil
}

// rotationPolicy resolves the rotation limits for a room: the room's
// m.room.encryption state wins, falling back to the configured policy.
// Caller holds the lock.
func (s *Session) rotationPolicy(roomID string) (time.Duration, int64) {
	period := time.Duration(s.cfg.Encryption.RotationPeriodMS) * time.Millisecond
	maxMessages := int64(s.cfg.Encryption.RotationMessages)
	room := s.rooms.Joined.Find(roomID)
	if room != nil && room.Dirty {
		if err := room.Recompute(); err != nil {
			return period, maxMessages
		}
	}
	if room != nil && room.Encryption.Enabled {
		if room.Encryption.RotationPeriodMS > 0 {
			period = time.Duration(room.Encryption.RotationPeriodMS) * time.Millisecond
		}
		if room.Encryption.RotationMsgs > 0 {
			maxMessages = room.Encryption.RotationMsgs
		}
	}
	return period, maxMessages
}
