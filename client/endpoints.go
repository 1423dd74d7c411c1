// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

const pathPrefix = "/_matrix/client/r0"

// LoginRequest is the body of POST /login with password flow.
type LoginRequest struct {
	Type                     string `json:"type"`
	User                     string `json:"user"`
	Password                 string `json:"password"`
	DeviceID                 string `json:"device_id,omitempty"`
	InitialDeviceDisplayName string `json:"initial_device_display_name,omitempty"`
}

// LoginResponse carries the credentials issued by the homeserver.
type LoginResponse struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	DeviceID    string `json:"device_id"`
	HomeServer  string `json:"home_server,omitempty"`
}

// Login performs a password login and installs the returned access
// token on the client.
func Login(ctx context.Context, api API, req *LoginRequest) (*LoginResponse, error) {
	if req.Type == "" {
		req.Type = "m.login.password"
	}
	var resp LoginResponse
	if err := api.Call(ctx, http.MethodPost, pathPrefix+"/login", nil, req, &resp); err != nil {
		return nil, err
	}
	api.SetAccessToken(resp.AccessToken)
	return &resp, nil
}

// Sync performs one /sync request. since may be empty for an initial
// sync; timeout is the long-poll duration in milliseconds. The raw
// response body is returned for the engine to parse.
func Sync(ctx context.Context, api API, since string, timeoutMS int) (json.RawMessage, error) {
	query := url.Values{}
	if since != "" {
		query.Set("since", since)
	}
	if timeoutMS > 0 {
		query.Set("timeout", strconv.Itoa(timeoutMS))
	}
	var raw json.RawMessage
	if err := api.Call(ctx, http.MethodGet, pathPrefix+"/sync", query, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// CreateRoomRequest is the body of POST /createRoom.
type CreateRoomRequest struct {
	Name       string   `json:"name,omitempty"`
	Topic      string   `json:"topic,omitempty"`
	Preset     string   `json:"preset,omitempty"`
	Invite     []string `json:"invite,omitempty"`
	Visibility string   `json:"visibility,omitempty"`
}

// CreateRoom creates a new room and returns its ID.
func CreateRoom(ctx context.Context, api API, req *CreateRoomRequest) (string, error) {
	var resp struct {
		RoomID string `json:"room_id"`
	}
	if err := api.Call(ctx, http.MethodPost, pathPrefix+"/createRoom", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.RoomID, nil
}

// InviteUser invites userID to roomID.
func InviteUser(ctx context.Context, api API, roomID, userID string) error {
	path := fmt.Sprintf("%s/rooms/%s/invite", pathPrefix, url.PathEscape(roomID))
	body := map[string]string{"user_id": userID}
	return api.Call(ctx, http.MethodPost, path, nil, body, nil)
}

// JoinRoom joins roomID and returns the canonical room ID.
func JoinRoom(ctx context.Context, api API, roomID string) (string, error) {
	path := fmt.Sprintf("%s/rooms/%s/join", pathPrefix, url.PathEscape(roomID))
	var resp struct {
		RoomID string `json:"room_id"`
	}
	if err := api.Call(ctx, http.MethodPost, path, nil, struct{}{}, &resp); err != nil {
		return "", err
	}
	return resp.RoomID, nil
}

// LeaveRoom leaves roomID. The room remains visible in the left
// registry until forgotten.
func LeaveRoom(ctx context.Context, api API, roomID string) error {
	path := fmt.Sprintf("%s/rooms/%s/leave", pathPrefix, url.PathEscape(roomID))
	return api.Call(ctx, http.MethodPost, path, nil, struct{}{}, nil)
}

// ForgetRoom forgets a previously left room.
func ForgetRoom(ctx context.Context, api API, roomID string) error {
	path := fmt.Sprintf("%s/rooms/%s/forget", pathPrefix, url.PathEscape(roomID))
	return api.Call(ctx, http.MethodPost, path, nil, struct{}{}, nil)
}

// JoinedRooms returns the IDs of all rooms the user has joined.
func JoinedRooms(ctx context.Context, api API) ([]string, error) {
	var resp struct {
		JoinedRooms []string `json:"joined_rooms"`
	}
	if err := api.Call(ctx, http.MethodGet, pathPrefix+"/joined_rooms", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.JoinedRooms, nil
}

// SendMessage sends an event of the given type into roomID with a
// freshly generated transaction ID, returning the server-assigned
// event ID.
func SendMessage(ctx context.Context, api API, roomID, eventType string, content interface{}) (string, error) {
	txnID := uuid.NewString()
	path := fmt.Sprintf("%s/rooms/%s/send/%s/%s",
		pathPrefix, url.PathEscape(roomID), url.PathEscape(eventType), url.PathEscape(txnID))
	var resp struct {
		EventID string `json:"event_id"`
	}
	if err := api.Call(ctx, http.MethodPut, path, nil, content, &resp); err != nil {
		return "", err
	}
	return resp.EventID, nil
}

// SetDisplayName updates the user's own profile display name.
func SetDisplayName(ctx context.Context, api API, userID, displayName string) error {
	path := fmt.Sprintf("%s/profile/%s/displayname", pathPrefix, url.PathEscape(userID))
	body := map[string]string{"displayname": displayName}
	return api.Call(ctx, http.MethodPut, path, nil, body, nil)
}

// GetDisplayName fetches a user's profile display name.
func GetDisplayName(ctx context.Context, api API, userID string) (string, error) {
	path := fmt.Sprintf("%s/profile/%s/displayname", pathPrefix, url.PathEscape(userID))
	var resp struct {
		DisplayName string `json:"displayname"`
	}
	if err := api.Call(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.DisplayName, nil
}

// UploadKeysRequest carries device keys and one-time keys for
// POST /keys/upload. Either section may be empty.
type UploadKeysRequest struct {
	DeviceKeys  json.RawMessage            `json:"device_keys,omitempty"`
	OneTimeKeys map[string]json.RawMessage `json:"one_time_keys,omitempty"`
}

// UploadKeysResponse reports how many one-time keys the server now
// holds per algorithm.
type UploadKeysResponse struct {
	OneTimeKeyCounts map[string]int `json:"one_time_key_counts"`
}

// UploadKeys publishes device keys and one-time keys.
func UploadKeys(ctx context.Context, api API, req *UploadKeysRequest) (*UploadKeysResponse, error) {
	var resp UploadKeysResponse
	if err := api.Call(ctx, http.MethodPost, pathPrefix+"/keys/upload", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueryKeysRequest asks for the current device keys of a set of users.
// An empty device list requests all devices for that user.
type QueryKeysRequest struct {
	DeviceKeys map[string][]string `json:"device_keys"`
	TimeoutMS  int                 `json:"timeout,omitempty"`
}

// QueryKeysResponse maps user ID to device ID to the signed device
// keys object, left raw for signature verification.
type QueryKeysResponse struct {
	DeviceKeys map[string]map[string]json.RawMessage `json:"device_keys"`
	Failures   map[string]json.RawMessage            `json:"failures,omitempty"`
}

// QueryKeys fetches device keys for the requested users.
func QueryKeys(ctx context.Context, api API, req *QueryKeysRequest) (*QueryKeysResponse, error) {
	var resp QueryKeysResponse
	if err := api.Call(ctx, http.MethodPost, pathPrefix+"/keys/query", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// KeyChangesResponse lists users whose device lists changed between
// two sync tokens.
type KeyChangesResponse struct {
	Changed []string `json:"changed"`
	Left    []string `json:"left"`
}

// KeyChanges fetches device-list changes between the from and to sync
// tokens.
func KeyChanges(ctx context.Context, api API, from, to string) (*KeyChangesResponse, error) {
	query := url.Values{}
	query.Set("from", from)
	query.Set("to", to)
	var resp KeyChangesResponse
	if err := api.Call(ctx, http.MethodGet, pathPrefix+"/keys/changes", query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
