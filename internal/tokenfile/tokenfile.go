// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

// Package tokenfile persists login credentials between runs so the
// session can resume with the same device ID instead of registering a
// fresh device on every start.
package tokenfile

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Credentials is the on-disk record of a successful login.
type Credentials struct {
	UserID      string `json:"user_id"`
	DeviceID    string `json:"device_id"`
	AccessToken string `json:"access_token"`
	NextBatch   string `json:"next_batch,omitempty"`
}

// Load reads credentials from path. A missing file returns (nil, nil)
// so callers can fall through to a fresh login.
func Load(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading token file %q", path)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, errors.Wrapf(err, "parsing token file %q", path)
	}
	if creds.AccessToken == "" || creds.UserID == "" {
		return nil, errors.Errorf("token file %q is missing credentials", path)
	}
	return &creds, nil
}

// Save writes credentials to path with owner-only permissions. The
// write goes through a temporary file and rename so a crash cannot
// leave a truncated token file behind.
func Save(path string, creds *Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding credentials")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return errors.Wrapf(err, "creating token directory %q", dir)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrapf(err, "writing token file %q", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "installing token file %q", path)
	}
	return nil
}
