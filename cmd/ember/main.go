// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ember-im/ember/client"
	"github.com/ember-im/ember/internal/caching"
	"github.com/ember-im/ember/session"
	"github.com/ember-im/ember/setup/config"
)

var (
	configPath = flag.String("config", "ember.yaml", "Path to the config file")
	verbose    = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	log := logrus.WithField("component", "main")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	api, err := client.NewClient(cfg.Homeserver.URL, &http.Client{
		Timeout: time.Duration(cfg.Sync.TimeoutMS)*time.Millisecond + 30*time.Second,
	})
	if err != nil {
		log.WithError(err).Fatal("Invalid homeserver URL")
	}

	caches := caching.NewRistrettoCache(8*1024*1024, time.Hour, cfg.Metrics.Enabled)
	sess, err := session.New(cfg, api, caches)
	if err != nil {
		log.WithError(err).Fatal("Failed to create session")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sess.Login(ctx); err != nil {
		log.WithError(err).Fatal("Login failed")
	}
	log.WithFields(logrus.Fields{
		"user_id":   sess.UserID(),
		"device_id": sess.DeviceID(),
	}).Info("Session ready")

	if cfg.Metrics.Enabled {
		go func() {
			log.WithField("listen", cfg.Metrics.Listen).Info("Serving metrics")
			if err := http.ListenAndServe(cfg.Metrics.Listen, promhttp.Handler()); err != nil {
				log.WithError(err).Error("Metrics listener failed")
			}
		}()
	}

	sess.Start(ctx)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-signals:
		log.Info("Shutting down")
		sess.Stop()
		<-sess.Done()
	case <-sess.Done():
		if err := sess.Err(); err != nil {
			log.WithError(err).Error("Sync loop failed")
		}
	}

	if err := sess.PersistCursor(); err != nil {
		log.WithError(err).Warn("Failed to persist sync cursor")
	}
	printRooms(sess)
}

func printRooms(sess *session.Session) {
	snap, err := sess.Snapshot()
	if err != nil {
		logrus.WithError(err).Error("Failed to snapshot rooms")
		return
	}
	for _, room := range snap.Joined {
		name := room.Name
		if name == "" {
			name = room.ID
		}
		fmt.Printf("%s (%d members)\n", name, len(room.Members))
		for _, msg := range room.Messages {
			fmt.Printf("  %s: %s\n", msg.Sender, msg.Body)
		}
	}
	for _, room := range snap.Invited {
		fmt.Printf("%s (invited)\n", room.ID)
	}
}
