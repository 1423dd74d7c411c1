// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncBatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ember",
		Subsystem: "session",
		Name:      "sync_batches_total",
		Help:      "Sync batches committed to the room registries.",
	})
	syncFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ember",
		Subsystem: "session",
		Name:      "sync_failures_total",
		Help:      "Sync rounds that failed to parse or commit.",
	})
	eventsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ember",
		Subsystem: "session",
		Name:      "events_applied_total",
		Help:      "Events folded into room histories.",
	})
	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ember",
		Subsystem: "session",
		Name:      "sync_round_duration_seconds",
		Help:      "Wall time of one long-poll plus commit cycle.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 3, 10),
	})
	keyQueries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ember",
		Subsystem: "session",
		Name:      "key_queries_total",
		Help:      "Key-query requests issued for dirty device lists.",
	})
	keyUploads = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ember",
		Subsystem: "session",
		Name:      "key_uploads_total",
		Help:      "Key-upload requests issued.",
	})
)
