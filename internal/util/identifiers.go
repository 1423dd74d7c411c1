// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

// Package util holds identifier helpers shared across the session and
// transport layers.
package util

import (
	"strings"

	"github.com/pkg/errors"
)

// NormalizeLocalpart trims whitespace and lowercases a user localpart
// for consistent storage and lookup.
func NormalizeLocalpart(localpart string) string {
	return strings.ToLower(strings.TrimSpace(localpart))
}

// UserID builds a full Matrix user ID from a localpart and server name.
func UserID(localpart, serverName string) string {
	return "@" + NormalizeLocalpart(localpart) + ":" + serverName
}

// SplitID splits an identifier of the form "<sigil>localpart:domain".
func SplitID(sigil byte, id string) (localpart, domain string, err error) {
	if len(id) == 0 || id[0] != sigil {
		return "", "", errors.Errorf("id %q does not start with %q", id, string(sigil))
	}
	parts := strings.SplitN(id[1:], ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Errorf("id %q is missing a localpart or domain", id)
	}
	return parts[0], parts[1], nil
}

// ValidUserID reports whether id has the "@localpart:domain" shape.
func ValidUserID(id string) bool {
	_, _, err := SplitID('@', id)
	return err == nil
}

// ValidRoomID reports whether id has the "!opaque:domain" shape.
func ValidRoomID(id string) bool {
	_, _, err := SplitID('!', id)
	return err == nil
}

// ValidEventID reports whether id carries the "$" sigil. Room versions
// after v2 use opaque hashes with no domain, so only the sigil is
// checked.
func ValidEventID(id string) bool {
	return len(id) > 1 && id[0] == '$'
}
