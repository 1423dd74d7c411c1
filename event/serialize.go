// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package event

import (
	"encoding/json"
)

type wireUnsigned struct {
	Age             int64           `json:"age,omitempty"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	PrevContent     json.RawMessage `json:"prev_content,omitempty"`
	RedactedBecause json.RawMessage `json:"redacted_because,omitempty"`
}

type wireEvent struct {
	Type           Type            `json:"type"`
	Sender         string          `json:"sender"`
	EventID        string          `json:"event_id,omitempty"`
	OriginServerTS *int64          `json:"origin_server_ts,omitempty"`
	StateKey       *string         `json:"state_key,omitempty"`
	Redacts        string          `json:"redacts,omitempty"`
	Content        json.RawMessage `json:"content,omitempty"`
	Unsigned       *wireUnsigned   `json:"unsigned,omitempty"`
}

// Serialize encodes the event back into its wire JSON form. Serialize and
// Parse round-trip: parsing the output yields an equal Event.
func Serialize(ev *Event) ([]byte, error) {
	wire := wireEvent{
		Type:     ev.Type,
		Sender:   ev.Sender,
		EventID:  ev.ID,
		StateKey: ev.StateKey,
		Redacts:  ev.Redacts,
	}
	if !ev.Stripped {
		ts := ev.Timestamp
		wire.OriginServerTS = &ts
	}
	if ev.Content != nil {
		content, err := json.Marshal(ev.Content)
		if err != nil {
			return nil, err
		}
		wire.Content = content
	}
	unsigned := wireUnsigned{
		Age:           ev.Age,
		TransactionID: ev.TransactionID,
	}
	var hasUnsigned bool
	if ev.Age != 0 || ev.TransactionID != "" {
		hasUnsigned = true
	}
	if ev.PrevContent != nil {
		prev, err := json.Marshal(ev.PrevContent)
		if err != nil {
			return nil, err
		}
		unsigned.PrevContent = prev
		hasUnsigned = true
	}
	if ev.RedactedBecause != nil {
		because, err := Serialize(ev.RedactedBecause)
		if err != nil {
			return nil, err
		}
		unsigned.RedactedBecause = because
		hasUnsigned = true
	}
	if hasUnsigned {
		wire.Unsigned = &unsigned
	}
	return json.Marshal(wire)
}
