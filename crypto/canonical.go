// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package crypto

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// CanonicalJSON produces the canonical encoding of a JSON document: object
// keys sorted by code point, no insignificant whitespace, minimal string
// escaping, integers written in shortest base-10 form. Signature computation
// and verification both canonicalize through this function, so the output
// being stable is what makes signatures portable.
func CanonicalJSON(raw []byte) ([]byte, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("crypto: input is not valid JSON")
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, gjson.ParseBytes(raw)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, res gjson.Result) error {
	switch {
	case res.IsObject():
		entries := res.Map()
		keys := make([]string, 0, len(entries))
		for key := range entries {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, entries[key]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case res.IsArray():
		buf.WriteByte('[')
		for i, item := range res.Array() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case res.Type == gjson.String:
		return writeCanonicalString(buf, res.Str)
	case res.Type == gjson.Number:
		// Integers normalize to their shortest form so spellings like
		// 1e3 and 1000 canonicalize identically. Values outside the
		// exactly representable range, and non-integers, keep their
		// literal.
		if res.Num == math.Trunc(res.Num) && math.Abs(res.Num) <= 1<<53 {
			buf.WriteString(strconv.FormatInt(int64(res.Num), 10))
		} else {
			buf.WriteString(res.Raw)
		}
	case res.Type == gjson.True:
		buf.WriteString("true")
	case res.Type == gjson.False:
		buf.WriteString("false")
	case res.Type == gjson.Null:
		buf.WriteString("null")
	default:
		return errors.Errorf("crypto: cannot canonicalize JSON value %q", res.Raw)
	}
	return nil
}

// writeCanonicalString encodes s as a JSON string without HTML escaping,
// matching the protocol's canonical form.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return errors.Wrap(err, "encoding JSON string")
	}
	// Encode appends a trailing newline.
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
