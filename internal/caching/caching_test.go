// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package caching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitForCacheProcessing waits for ristretto background processing.
func waitForCacheProcessing(t *testing.T) {
	t.Helper()
	time.Sleep(10 * time.Millisecond)
}

func TestProfileCacheRoundTrip(t *testing.T) {
	caches := NewRistrettoCache(1024*1024, time.Hour, DisableMetrics)

	_, ok := caches.GetDisplayName("@alice:example.org")
	assert.False(t, ok)

	caches.StoreDisplayName("@alice:example.org", "Alice")
	waitForCacheProcessing(t)

	name, ok := caches.GetDisplayName("@alice:example.org")
	require.True(t, ok)
	assert.Equal(t, "Alice", name)

	caches.EvictDisplayName("@alice:example.org")
	waitForCacheProcessing(t)
	_, ok = caches.GetDisplayName("@alice:example.org")
	assert.False(t, ok)
}

func TestPartitionsDoNotCollide(t *testing.T) {
	caches := NewRistrettoCache(1024*1024, time.Hour, DisableMetrics)

	// Same key shape in both partitions must resolve independently.
	caches.StoreDisplayName("@bob:example.org/DEVICEID", "Bob")
	caches.StoreVerifiedDeviceKey("@bob:example.org", "DEVICEID", "base64key")
	waitForCacheProcessing(t)

	name, ok := caches.GetDisplayName("@bob:example.org/DEVICEID")
	require.True(t, ok)
	assert.Equal(t, "Bob", name)

	key, ok := caches.GetVerifiedDeviceKey("@bob:example.org", "DEVICEID")
	require.True(t, ok)
	assert.Equal(t, "base64key", key)
}

func TestCacheExpiry(t *testing.T) {
	caches := NewRistrettoCache(1024*1024, 20*time.Millisecond, DisableMetrics)

	caches.StoreVerifiedDeviceKey("@carol:example.org", "CAROLDEV", "key")
	waitForCacheProcessing(t)

	_, ok := caches.GetVerifiedDeviceKey("@carol:example.org", "CAROLDEV")
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)
	_, ok = caches.GetVerifiedDeviceKey("@carol:example.org", "CAROLDEV")
	assert.False(t, ok)
}
