// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

// Package session ties the transport, sync engine and key manager
// together behind a single Session owning all shared mutable state.
//
// Locking contract: the mutex is held only while committing a parsed
// sync batch or while producing a deep-clone snapshot for a reader.
// Network requests, signature verification and key generation all
// happen outside the critical section and their results are committed
// atomically afterwards.
package session

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/ember-im/ember/client"
	"github.com/ember-im/ember/crypto"
	"github.com/ember-im/ember/internal/caching"
	"github.com/ember-im/ember/setup/config"
	"github.com/ember-im/ember/syncengine"
)

// Session is the orchestrator: one per logged-in device.
type Session struct {
	cfg    *config.Config
	api    client.API
	caches *caching.Caches
	log    *logrus.Entry

	userID   string
	deviceID string

	// account and outbound are confined to the sync goroutine and the
	// single foreground caller respectively; only the fields below are
	// shared and therefore guarded by mu.
	account  *crypto.Account
	outbound map[string]*crypto.OutboundSession

	mu        sync.Mutex
	rooms     *syncengine.Registries
	devices   *crypto.DeviceListTracker
	nextBatch string
	// Unclaimed signed_curve25519 keys the server reported holding.
	serverOneTimeKeys   int
	deviceKeysPublished bool

	terminate *atomic.Bool
	loopDone  chan struct{}
	loopErr   error
}

// New creates a Session for the given transport and a freshly
// generated local identity.
func New(cfg *config.Config, api client.API, caches *caching.Caches) (*Session, error) {
	account, err := crypto.NewAccount()
	if err != nil {
		return nil, errors.Wrap(err, "session: creating account")
	}
	return &Session{
		cfg:       cfg,
		api:       api,
		caches:    caches,
		log:       logrus.WithField("component", "session"),
		account:   account,
		outbound:  make(map[string]*crypto.OutboundSession),
		rooms:     syncengine.NewRegistries(),
		devices:   crypto.NewDeviceListTracker(),
		terminate: atomic.NewBool(false),
		loopDone:  make(chan struct{}),
	}, nil
}

// UserID returns the logged-in user ID, empty before login.
func (s *Session) UserID() string { return s.userID }

// DeviceID returns the device ID issued at login.
func (s *Session) DeviceID() string { return s.deviceID }

// Account exposes the local key material. Callers must not use it
// concurrently with a running sync loop.
func (s *Session) Account() *crypto.Account { return s.account }

// NextBatch returns the current sync cursor.
func (s *Session) NextBatch() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextBatch
}

// ProcessSyncResponse parses one raw sync response and commits it.
// Parsing and event validation happen before the lock is taken, so a
// malformed batch is rejected whole and no registry is left holding
// half of it; the commit itself is pure in-memory bookkeeping.
func (s *Session) ProcessSyncResponse(raw json.RawMessage) error {
	var resp syncengine.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		syncFailures.Inc()
		return errors.Wrap(err, "session: malformed sync response")
	}
	if err := resp.Rooms.Check(); err != nil {
		syncFailures.Inc()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.rooms.ApplyRooms(resp.Rooms); err != nil {
		syncFailures.Inc()
		return err
	}
	s.devices.Update(resp.DeviceLists.Changed, resp.DeviceLists.Left)
	if resp.NextBatch != "" {
		s.nextBatch = resp.NextBatch
	}
	if count, ok := resp.DeviceOneTimeKeysCount["signed_curve25519"]; ok {
		s.serverOneTimeKeys = count
	}

	syncBatches.Inc()
	eventsApplied.Add(float64(countEvents(&resp)))
	s.log.WithFields(logrus.Fields{
		"next_batch": resp.NextBatch,
		"joined":     len(resp.Rooms.Join),
		"invited":    len(resp.Rooms.Invite),
		"left":       len(resp.Rooms.Leave),
	}).Debug("Committed sync batch")
	return nil
}

func countEvents(resp *syncengine.Response) int {
	var n int
	for _, delta := range resp.Rooms.Join {
		n += len(delta.State.Events) + len(delta.Timeline.Events)
	}
	for _, delta := range resp.Rooms.Invite {
		n += len(delta.InviteState.Events)
	}
	for _, delta := range resp.Rooms.Leave {
		n += len(delta.State.Events) + len(delta.Timeline.Events)
	}
	return n
}

// Snapshot is the read side of the concurrency contract: it recomputes
// any dirty rooms and returns deep clones fully detached from the
// session, so the caller can inspect them without holding the lock.
type Snapshot struct {
	Joined  []*syncengine.Room
	Invited []*syncengine.Room
	Left    []*syncengine.Room
}

// Snapshot produces a point-in-time deep copy of all room registries.
func (s *Session) Snapshot() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	joined, err := s.rooms.Joined.Snapshot()
	if err != nil {
		return nil, err
	}
	invited, err := s.rooms.Invited.Snapshot()
	if err != nil {
		return nil, err
	}
	left, err := s.rooms.Left.Snapshot()
	if err != nil {
		return nil, err
	}
	return &Snapshot{Joined: joined, Invited: invited, Left: left}, nil
}

// JoinedRoomIDs lists the IDs of rooms in the joined registry.
func (s *Session) JoinedRoomIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := s.rooms.Joined.Rooms()
	ids := make([]string, 0, len(rooms))
	for _, room := range rooms {
		ids = append(ids, room.ID)
	}
	return ids
}

// DirtyDeviceUsers lists users whose device lists currently need a key
// query.
func (s *Session) DirtyDeviceUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devices.DirtyUsers()
}

// DeviceListLen returns how many remote users are tracked.
func (s *Session) DeviceListLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devices.Len()
}
