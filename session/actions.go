// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package session

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ember-im/ember/client"
	"github.com/ember-im/ember/event"
	"github.com/ember-im/ember/internal/tokenfile"
	"github.com/ember-im/ember/internal/util"
)

// Login authenticates the session. Credentials persisted from an
// earlier run are reused so the device ID stays stable; otherwise a
// password login is performed and the result saved.
func (s *Session) Login(ctx context.Context) error {
	if creds, err := tokenfile.Load(s.cfg.Account.TokenFile); err != nil {
		return err
	} else if creds != nil {
		s.api.SetAccessToken(creds.AccessToken)
		s.userID = creds.UserID
		s.deviceID = creds.DeviceID
		s.mu.Lock()
		s.nextBatch = creds.NextBatch
		s.mu.Unlock()
		s.log.WithFields(logrus.Fields{
			"user_id":   creds.UserID,
			"device_id": creds.DeviceID,
		}).Info("Resumed persisted session")
		return nil
	}

	user := s.cfg.Account.User
	if !strings.HasPrefix(user, "@") {
		user = util.UserID(user, s.cfg.Homeserver.ServerName)
	}
	resp, err := client.Login(ctx, s.api, &client.LoginRequest{
		User:                     user,
		Password:                 s.cfg.Account.Password,
		InitialDeviceDisplayName: s.cfg.Account.DeviceDisplayName,
	})
	if err != nil {
		return err
	}
	s.userID = resp.UserID
	s.deviceID = resp.DeviceID
	s.log.WithFields(logrus.Fields{
		"user_id":   resp.UserID,
		"device_id": resp.DeviceID,
	}).Info("Logged in")

	return tokenfile.Save(s.cfg.Account.TokenFile, &tokenfile.Credentials{
		UserID:      resp.UserID,
		DeviceID:    resp.DeviceID,
		AccessToken: resp.AccessToken,
	})
}

// PersistCursor saves the current credentials together with the sync
// cursor so a restart resumes where this run left off.
func (s *Session) PersistCursor() error {
	creds, err := tokenfile.Load(s.cfg.Account.TokenFile)
	if err != nil || creds == nil {
		return err
	}
	creds.NextBatch = s.NextBatch()
	return tokenfile.Save(s.cfg.Account.TokenFile, creds)
}

// SendText sends a plain m.room.message text event.
func (s *Session) SendText(ctx context.Context, roomID, body string) (string, error) {
	content := map[string]string{
		"msgtype": string(event.MsgText),
		"body":    body,
	}
	return client.SendMessage(ctx, s.api, roomID, string(event.TypeMessage), content)
}

// CreateRoom creates a room and returns its ID. The room appears in
// the joined registry once the next sync batch reports it.
func (s *Session) CreateRoom(ctx context.Context, name, topic string, invite []string) (string, error) {
	return client.CreateRoom(ctx, s.api, &client.CreateRoomRequest{
		Name:   name,
		Topic:  topic,
		Invite: invite,
	})
}

// Invite invites a user to a room.
func (s *Session) Invite(ctx context.Context, roomID, userID string) error {
	return client.InviteUser(ctx, s.api, roomID, userID)
}

// Join accepts an invite or joins a public room.
func (s *Session) Join(ctx context.Context, roomID string) (string, error) {
	return client.JoinRoom(ctx, s.api, roomID)
}

// Leave leaves a room; the next sync batch moves it to the left
// registry.
func (s *Session) Leave(ctx context.Context, roomID string) error {
	return client.LeaveRoom(ctx, s.api, roomID)
}

// Forget forgets a left room on the server and drops it locally.
func (s *Session) Forget(ctx context.Context, roomID string) error {
	if err := client.ForgetRoom(ctx, s.api, roomID); err != nil {
		return err
	}
	s.mu.Lock()
	s.rooms.Forget(roomID)
	s.mu.Unlock()
	return nil
}

// DisplayName resolves a user's display name: the cache first, then
// reduced room membership, then a profile fetch as a last resort.
func (s *Session) DisplayName(ctx context.Context, userID string) (string, error) {
	if s.caches != nil {
		if name, ok := s.caches.GetDisplayName(userID); ok {
			return name, nil
		}
	}

	s.mu.Lock()
	var name string
	for _, room := range s.rooms.Joined.Rooms() {
		if room.Dirty {
			if err := room.Recompute(); err != nil {
				continue
			}
		}
		if member, ok := room.Member(userID); ok && member.DisplayName != "" {
			name = member.DisplayName
			break
		}
	}
	s.mu.Unlock()

	if name == "" {
		fetched, err := client.GetDisplayName(ctx, s.api, userID)
		if err != nil {
			return "", err
		}
		name = fetched
	}
	if s.caches != nil && name != "" {
		s.caches.StoreDisplayName(userID, name)
	}
	return name, nil
}
