// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ember-im/ember/client"
)

// Start launches the background sync loop. The loop long-polls /sync,
// commits each batch, then performs any pending key maintenance before
// sleeping the poll interval. A failed round stops the loop: callers
// distinguish "loop exited" from "no new data yet" via Done and Err.
func (s *Session) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop requests cooperative termination. The flag is checked once per
// cycle, so the current long-poll is allowed to finish.
func (s *Session) Stop() {
	s.terminate.Store(true)
}

// Done is closed when the sync loop has exited, for any reason.
func (s *Session) Done() <-chan struct{} {
	return s.loopDone
}

// Err reports why the loop exited. It is nil after a cooperative Stop
// and only valid once Done is closed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopErr
}

func (s *Session) run(ctx context.Context) {
	defer close(s.loopDone)
	for {
		if s.terminate.Load() {
			s.log.Info("Sync loop terminating")
			return
		}
		if err := ctx.Err(); err != nil {
			s.exitWith(err)
			return
		}
		if err := s.syncOnce(ctx); err != nil {
			s.exitWith(err)
			return
		}
		select {
		case <-time.After(s.cfg.Sync.PollDuration()):
		case <-ctx.Done():
			s.exitWith(ctx.Err())
			return
		}
	}
}

func (s *Session) exitWith(err error) {
	s.log.WithError(err).Error("Sync loop exited")
	s.mu.Lock()
	s.loopErr = err
	s.mu.Unlock()
}

func (s *Session) callSync(ctx context.Context) (json.RawMessage, error) {
	return client.Sync(ctx, s.api, s.NextBatch(), s.cfg.Sync.TimeoutMS)
}

// syncOnce performs one full cycle: long-poll, commit, key upkeep.
func (s *Session) syncOnce(ctx context.Context) error {
	started := time.Now()
	raw, err := s.callSync(ctx)
	if err != nil {
		syncFailures.Inc()
		return err
	}
	if err := s.ProcessSyncResponse(raw); err != nil {
		return err
	}
	if err := s.MaintainKeys(ctx); err != nil {
		return err
	}
	syncDuration.Observe(time.Since(started).Seconds())
	s.log.WithFields(logrus.Fields{
		"duration": time.Since(started),
	}).Debug("Sync round complete")
	return nil
}
