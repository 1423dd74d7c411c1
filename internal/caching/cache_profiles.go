// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package caching

// ProfileCache caches display-name lookups so repeated timeline
// rendering does not refetch profiles.
type ProfileCache interface {
	GetDisplayName(userID string) (string, bool)
	StoreDisplayName(userID, displayName string)
	EvictDisplayName(userID string)
}

func (c Caches) GetDisplayName(userID string) (string, bool) {
	return c.Profiles.Get(userID)
}

func (c Caches) StoreDisplayName(userID, displayName string) {
	c.Profiles.Set(userID, displayName)
}

func (c Caches) EvictDisplayName(userID string) {
	c.Profiles.Unset(userID)
}

// DeviceVerificationCache remembers signing keys of devices that have
// already passed signature verification, keyed by "userID/deviceID".
type DeviceVerificationCache interface {
	GetVerifiedDeviceKey(userID, deviceID string) (string, bool)
	StoreVerifiedDeviceKey(userID, deviceID, signingKey string)
	EvictVerifiedDeviceKey(userID, deviceID string)
}

func (c Caches) GetVerifiedDeviceKey(userID, deviceID string) (string, bool) {
	return c.VerifiedDevices.Get(userID + "/" + deviceID)
}

func (c Caches) StoreVerifiedDeviceKey(userID, deviceID, signingKey string) {
	c.VerifiedDevices.Set(userID+"/"+deviceID, signingKey)
}

func (c Caches) EvictVerifiedDeviceKey(userID, deviceID string) {
	c.VerifiedDevices.Unset(userID + "/" + deviceID)
}
