// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

// Package client is the HTTP transport collaborator for the sync engine
// and key manager. It executes requests against the Matrix client-server
// API and surfaces non-2xx responses as structured MatrixError values;
// it holds no protocol state of its own.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// API is the request surface consumed by the session. The concrete type
// is *Client; tests substitute fakes.
type API interface {
	// Call executes one request against path (under the homeserver base
	// URL) with optional query parameters and JSON body, decoding the
	// response into response when non-nil. Non-2xx responses return a
	// *MatrixError.
	Call(ctx context.Context, method, path string, query url.Values, body, response interface{}) error
	// SetAccessToken installs the bearer token sent with every
	// subsequent request.
	SetAccessToken(token string)
}

// Client is the HTTP implementation of API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	accessToken string
	log         *logrus.Entry
}

// NewClient creates a transport for the given homeserver base URL.
func NewClient(homeserverURL string, httpClient *http.Client) (*Client, error) {
	if homeserverURL == "" {
		return nil, errors.New("client: homeserver URL is required")
	}
	if _, err := url.Parse(homeserverURL); err != nil {
		return nil, errors.Wrapf(err, "client: invalid homeserver URL %q", homeserverURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(homeserverURL, "/"),
		httpClient: httpClient,
		log:        logrus.WithField("component", "client"),
	}, nil
}

// SetAccessToken installs the token used for all subsequent requests.
func (c *Client) SetAccessToken(token string) {
	c.accessToken = token
}

// Call implements API.
func (c *Client) Call(ctx context.Context, method, path string, query url.Values, body, response interface{}) error {
	// URLs are built by concatenation: the path segments are already
	// escaped by the endpoint helpers, and round-tripping through
	// url.URL would re-encode them.
	requestURL := c.baseURL + path
	// The caller's query values are copied before the access token is
	// added so the token never leaks into a map the caller may reuse.
	merged := make(url.Values, len(query)+1)
	for key, values := range query {
		merged[key] = values
	}
	if c.accessToken != "" {
		merged.Set("access_token", c.accessToken)
	}
	if encoded := merged.Encode(); encoded != "" {
		requestURL += "?" + encoded
	}

	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "client: encoding request body")
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return errors.Wrap(err, "client: building request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "client: %s %s", method, path)
	}
	defer resp.Body.Close() // nolint: errcheck

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "client: reading %s %s response", method, path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseMatrixError(resp.StatusCode, payload)
	}

	c.log.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
	}).Debug("API call completed")

	if response == nil {
		return nil
	}
	if err := json.Unmarshal(payload, response); err != nil {
		return errors.Wrapf(err, "client: decoding %s %s response", method, path)
	}
	return nil
}

// MatrixError is a structured error response from the homeserver: the
// protocol error code, the human-readable message and the HTTP status.
type MatrixError struct {
	Code       string `json:"errcode"`
	Message    string `json:"error"`
	StatusCode int    `json:"-"`
}

func (e *MatrixError) Error() string {
	return fmt.Sprintf("matrix: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Standard Matrix error codes.
const (
	ErrCodeForbidden      = "M_FORBIDDEN"
	ErrCodeUnknownToken   = "M_UNKNOWN_TOKEN"
	ErrCodeMissingToken   = "M_MISSING_TOKEN"
	ErrCodeBadJSON        = "M_BAD_JSON"
	ErrCodeNotJSON        = "M_NOT_JSON"
	ErrCodeNotFound       = "M_NOT_FOUND"
	ErrCodeLimitExceeded  = "M_LIMIT_EXCEEDED"
	ErrCodeUnknown        = "M_UNKNOWN"
	ErrCodeUnrecognized   = "M_UNRECOGNIZED"
	ErrCodeUnauthorized   = "M_UNAUTHORIZED"
	ErrCodeInvalidParam   = "M_INVALID_PARAM"
	ErrCodeMissingParam   = "M_MISSING_PARAM"
	ErrCodeRoomInUse      = "M_ROOM_IN_USE"
	ErrCodeExclusive      = "M_EXCLUSIVE"
)

// IsMatrixError reports whether err is a *MatrixError with the given code.
func IsMatrixError(err error, code string) bool {
	var matrixErr *MatrixError
	if errors.As(err, &matrixErr) {
		return matrixErr.Code == code
	}
	return false
}

func parseMatrixError(statusCode int, payload []byte) error {
	matrixErr := &MatrixError{StatusCode: statusCode}
	if err := json.Unmarshal(payload, matrixErr); err != nil || matrixErr.Code == "" {
		matrixErr.Code = ErrCodeUnknown
		matrixErr.Message = strings.TrimSpace(string(payload))
	}
	return matrixErr
}
