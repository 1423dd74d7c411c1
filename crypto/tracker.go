// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package crypto

import (
	"sort"

	"github.com/sirupsen/logrus"
)

// DeviceList is one remote user's device set plus the dirty bit that
// drives key queries: set when the server reports the list changed,
// cleared when a query round-trip completes.
type DeviceList struct {
	UserID  string
	Devices map[string]*Device
	Dirty   bool
}

// DeviceListTracker owns every remote user's DeviceList. The dirty bit is
// the sole trigger for key queries: a user whose list is clean is never
// re-queried, which keeps request volume minimal by construction.
type DeviceListTracker struct {
	lists map[string]*DeviceList
}

// NewDeviceListTracker returns an empty tracker.
func NewDeviceListTracker() *DeviceListTracker {
	return &DeviceListTracker{lists: make(map[string]*DeviceList)}
}

// Update applies a sync response's device_lists delta: every user in
// changed is marked dirty (created if unknown, idempotently re-marked if
// already dirty), every user in left is dropped entirely. Users in
// neither set are untouched.
func (t *DeviceListTracker) Update(changed, left []string) {
	for _, userID := range changed {
		list, ok := t.lists[userID]
		if !ok {
			list = &DeviceList{UserID: userID, Devices: make(map[string]*Device)}
			t.lists[userID] = list
		}
		list.Dirty = true
	}
	for _, userID := range left {
		if _, ok := t.lists[userID]; ok {
			logrus.WithField("user_id", userID).Debug("Dropping device list for departed user")
			delete(t.lists, userID)
		}
	}
}

// DirtyUsers returns the users whose lists need a key query, sorted for
// deterministic request bodies.
func (t *DeviceListTracker) DirtyUsers() []string {
	var users []string
	for userID, list := range t.lists {
		if list.Dirty {
			users = append(users, userID)
		}
	}
	sort.Strings(users)
	return users
}

// List returns a user's device list, or nil if untracked.
func (t *DeviceListTracker) List(userID string) *DeviceList {
	return t.lists[userID]
}

// KnownDevices returns a copy of a user's current device map, for
// verification work that must happen outside the session lock.
func (t *DeviceListTracker) KnownDevices(userID string) map[string]*Device {
	list, ok := t.lists[userID]
	if !ok {
		return nil
	}
	known := make(map[string]*Device, len(list.Devices))
	for deviceID, device := range list.Devices {
		known[deviceID] = device
	}
	return known
}

// CommitDevices installs an already-verified device set for a user,
// replacing the previous set wholesale and clearing the dirty bit. The
// verification itself happens in VerifyDeviceObject, outside any lock.
func (t *DeviceListTracker) CommitDevices(userID string, verified map[string]*Device) {
	list, ok := t.lists[userID]
	if !ok {
		list = &DeviceList{UserID: userID}
		t.lists[userID] = list
	}
	list.Devices = verified
	list.Dirty = false
}

// Len returns the number of tracked users.
func (t *DeviceListTracker) Len() int {
	return len(t.lists)
}
