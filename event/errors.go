// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package event

import (
	"errors"
	"fmt"
)

// ParseFailure classifies why a field could not be parsed. Callers react
// differently to each class: an absent optional field is not an error at
// all, an absent required field aborts the event, an unrecognized enum
// value aborts rather than defaulting so that newer protocol vocabulary is
// never silently misread.
type ParseFailure int

const (
	// FieldAbsent means a required field was missing entirely.
	FieldAbsent ParseFailure = iota
	// FieldMalformed means the field was present with the wrong shape.
	FieldMalformed
	// ValueUnrecognized means an enumerated string field carried a value
	// outside the protocol's fixed vocabulary.
	ValueUnrecognized
)

func (f ParseFailure) String() string {
	switch f {
	case FieldAbsent:
		return "absent"
	case FieldMalformed:
		return "malformed"
	case ValueUnrecognized:
		return "unrecognized"
	default:
		return fmt.Sprintf("ParseFailure(%d)", int(f))
	}
}

// ParseError reports a strict-parsing failure for a single event.
type ParseError struct {
	EventType Type
	Field     string
	Failure   ParseFailure
	Value     string
}

func (e *ParseError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("event: %s field %q %s (value %q)", e.EventType, e.Field, e.Failure, e.Value)
	}
	return fmt.Sprintf("event: %s field %q %s", e.EventType, e.Field, e.Failure)
}

// ErrUnsupported is returned for protocol branches the client recognizes
// but does not implement (third-party invites, to-device application, olm
// payload decryption). Surfaced to the caller instead of aborting.
var ErrUnsupported = errors.New("event: unsupported protocol feature")

// IsParseError returns the *ParseError inside err, if any.
func IsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
