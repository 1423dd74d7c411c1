// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package caching

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	EnableMetrics  = true
	DisableMetrics = false
)

// Caches bundles the in-memory caches the session keeps around sync
// and profile lookups. All partitions share one ristretto instance.
type Caches struct {
	Profiles        *RistrettoCachePartition[string, string] // user ID -> display name
	VerifiedDevices *RistrettoCachePartition[string, string] // user ID "/" device ID -> ed25519 key
}

// NewRistrettoCache creates the shared cache with a maximum memory
// cost in bytes and a per-entry maximum age.
func NewRistrettoCache(maxCost int64, maxAge time.Duration, enablePrometheus bool) *Caches {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxCost / 10,
		BufferItems: 64,
		MaxCost:     maxCost,
		Metrics:     true,
	})
	if err != nil {
		panic(err)
	}
	if enablePrometheus {
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ember",
			Subsystem: "caching_ristretto",
			Name:      "ratio",
		}, func() float64 {
			return float64(cache.Metrics.Ratio())
		})
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ember",
			Subsystem: "caching_ristretto",
			Name:      "cost",
		}, func() float64 {
			return float64(cache.Metrics.CostAdded() - cache.Metrics.CostEvicted())
		})
	}
	return &Caches{
		Profiles: &RistrettoCachePartition[string, string]{
			cache:  cache,
			Prefix: profilesCache,
			MaxAge: maxAge,
		},
		VerifiedDevices: &RistrettoCachePartition[string, string]{
			cache:  cache,
			Prefix: verifiedDevicesCache,
			MaxAge: maxAge,
		},
	}
}

const (
	profilesCache byte = iota + 1
	verifiedDevicesCache
)

// RistrettoCachePartition is one keyspace within the shared cache. The
// prefix byte keeps partitions from colliding on equal keys.
type RistrettoCachePartition[K string, V any] struct {
	cache  *ristretto.Cache
	Prefix byte
	MaxAge time.Duration
}

func (c *RistrettoCachePartition[K, V]) Set(key K, value V) {
	bkey := fmt.Sprintf("%c%v", c.Prefix, key)
	cost := int64(len(bkey))
	if cv, ok := any(value).(string); ok {
		cost += int64(len(cv))
	} else {
		cost += 1
	}
	c.cache.SetWithTTL(bkey, value, cost, c.MaxAge)
}

func (c *RistrettoCachePartition[K, V]) Unset(key K) {
	bkey := fmt.Sprintf("%c%v", c.Prefix, key)
	c.cache.Del(bkey)
}

func (c *RistrettoCachePartition[K, V]) Get(key K) (value V, ok bool) {
	bkey := fmt.Sprintf("%c%v", c.Prefix, key)
	v, ok := c.cache.Get(bkey)
	if !ok || v == nil {
		var empty V
		return empty, false
	}
	value, ok = v.(V)
	return value, ok
}
