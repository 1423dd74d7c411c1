// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package event

// Type identifies an event kind on the wire. The vocabulary is fixed by the
// Matrix client-server spec; values are matched case-sensitively.
type Type string

const (
	TypeCreate            Type = "m.room.create"
	TypeMember            Type = "m.room.member"
	TypePowerLevels       Type = "m.room.power_levels"
	TypeCanonicalAlias    Type = "m.room.canonical_alias"
	TypeName              Type = "m.room.name"
	TypeTopic             Type = "m.room.topic"
	TypeAvatar            Type = "m.room.avatar"
	TypeEncryption        Type = "m.room.encryption"
	TypeHistoryVisibility Type = "m.room.history_visibility"
	TypeGuestAccess       Type = "m.room.guest_access"
	TypeJoinRules         Type = "m.room.join_rules"
	TypeRedaction         Type = "m.room.redaction"
	TypeMessage           Type = "m.room.message"
)

// IsState reports whether events of this type carry a state key.
func (t Type) IsState() bool {
	switch t {
	case TypeCreate, TypeMember, TypePowerLevels, TypeCanonicalAlias,
		TypeName, TypeTopic, TypeAvatar, TypeEncryption,
		TypeHistoryVisibility, TypeGuestAccess, TypeJoinRules:
		return true
	default:
		return false
	}
}

// Membership is the value of an m.room.member event's membership field.
type Membership string

const (
	MembershipInvite Membership = "invite"
	MembershipJoin   Membership = "join"
	MembershipLeave  Membership = "leave"
	MembershipBan    Membership = "ban"
	MembershipKnock  Membership = "knock"
)

// JoinRule is the value of an m.room.join_rules event's join_rule field.
type JoinRule string

const (
	JoinRulePublic  JoinRule = "public"
	JoinRuleKnock   JoinRule = "knock"
	JoinRuleInvite  JoinRule = "invite"
	JoinRulePrivate JoinRule = "private"
)

// HistoryVisibility controls who may read history before their join.
type HistoryVisibility string

const (
	HistoryVisibilityInvited       HistoryVisibility = "invited"
	HistoryVisibilityJoined        HistoryVisibility = "joined"
	HistoryVisibilityShared        HistoryVisibility = "shared"
	HistoryVisibilityWorldReadable HistoryVisibility = "world_readable"
)

// GuestAccess controls whether guest accounts may join.
type GuestAccess string

const (
	GuestAccessCanJoin   GuestAccess = "can_join"
	GuestAccessForbidden GuestAccess = "forbidden"
)

// MsgType is the msgtype field of an m.room.message content.
type MsgType string

const (
	MsgText     MsgType = "m.text"
	MsgEmote    MsgType = "m.emote"
	MsgNotice   MsgType = "m.notice"
	MsgImage    MsgType = "m.image"
	MsgFile     MsgType = "m.file"
	MsgAudio    MsgType = "m.audio"
	MsgVideo    MsgType = "m.video"
	MsgLocation MsgType = "m.location"
)

// Algorithm identifies an encryption algorithm on the wire.
type Algorithm string

const (
	AlgorithmMegolmV1 Algorithm = "m.megolm.v1.aes-sha2"
	AlgorithmOlmV1    Algorithm = "m.olm.v1.curve25519-aes-sha2"
)

// Content is the kind-specific payload of an event. Exactly one concrete
// content type exists per event type; dispatch is by type switch.
type Content interface {
	// EventType returns the wire type this content belongs to.
	EventType() Type
}

// CreateContent is the content of m.room.create.
type CreateContent struct {
	Creator     string       `json:"creator"`
	RoomVersion string       `json:"room_version,omitempty"`
	Federate    *bool        `json:"m.federate,omitempty"`
	Predecessor *Predecessor `json:"predecessor,omitempty"`
}

// Predecessor points at the room this one replaced.
type Predecessor struct {
	RoomID  string `json:"room_id"`
	EventID string `json:"event_id"`
}

func (CreateContent) EventType() Type { return TypeCreate }

// MemberContent is the content of m.room.member.
type MemberContent struct {
	Membership  Membership `json:"membership"`
	DisplayName string     `json:"displayname,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	IsDirect    bool       `json:"is_direct,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

func (MemberContent) EventType() Type { return TypeMember }

// PowerLevelsContent is the content of m.room.power_levels. Pointer fields
// distinguish "absent" (protocol default retained) from an explicit zero.
type PowerLevelsContent struct {
	Ban           *int                `json:"ban,omitempty"`
	Events        map[string]int      `json:"events,omitempty"`
	EventsDefault *int                `json:"events_default,omitempty"`
	Invite        *int                `json:"invite,omitempty"`
	Kick          *int                `json:"kick,omitempty"`
	Redact        *int                `json:"redact,omitempty"`
	StateDefault  *int                `json:"state_default,omitempty"`
	Users         map[string]int      `json:"users,omitempty"`
	UsersDefault  *int                `json:"users_default,omitempty"`
	Notifications *NotificationLevels `json:"notifications,omitempty"`
}

// NotificationLevels holds per-notification-kind power requirements.
type NotificationLevels struct {
	Room *int `json:"room,omitempty"`
}

func (PowerLevelsContent) EventType() Type { return TypePowerLevels }

// CanonicalAliasContent is the content of m.room.canonical_alias.
type CanonicalAliasContent struct {
	Alias      string   `json:"alias,omitempty"`
	AltAliases []string `json:"alt_aliases,omitempty"`
}

func (CanonicalAliasContent) EventType() Type { return TypeCanonicalAlias }

// NameContent is the content of m.room.name.
type NameContent struct {
	Name string `json:"name"`
}

func (NameContent) EventType() Type { return TypeName }

// TopicContent is the content of m.room.topic.
type TopicContent struct {
	Topic string `json:"topic"`
}

func (TopicContent) EventType() Type { return TypeTopic }

// AvatarContent is the content of m.room.avatar.
type AvatarContent struct {
	URL           string     `json:"url"`
	Info          *ImageInfo `json:"info,omitempty"`
	ThumbnailURL  string     `json:"thumbnail_url,omitempty"`
	ThumbnailInfo *ImageInfo `json:"thumbnail_info,omitempty"`
}

// ImageInfo describes an image attachment or avatar.
type ImageInfo struct {
	Height   int    `json:"h,omitempty"`
	Width    int    `json:"w,omitempty"`
	MimeType string `json:"mimetype,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

func (AvatarContent) EventType() Type { return TypeAvatar }

// EncryptionContent is the content of m.room.encryption.
type EncryptionContent struct {
	Algorithm          Algorithm `json:"algorithm"`
	RotationPeriodMS   int64     `json:"rotation_period_ms,omitempty"`
	RotationPeriodMsgs int64     `json:"rotation_period_msgs,omitempty"`
}

func (EncryptionContent) EventType() Type { return TypeEncryption }

// HistoryVisibilityContent is the content of m.room.history_visibility.
type HistoryVisibilityContent struct {
	HistoryVisibility HistoryVisibility `json:"history_visibility"`
}

func (HistoryVisibilityContent) EventType() Type { return TypeHistoryVisibility }

// GuestAccessContent is the content of m.room.guest_access.
type GuestAccessContent struct {
	GuestAccess GuestAccess `json:"guest_access"`
}

func (GuestAccessContent) EventType() Type { return TypeGuestAccess }

// JoinRulesContent is the content of m.room.join_rules.
type JoinRulesContent struct {
	JoinRule JoinRule `json:"join_rule"`
}

func (JoinRulesContent) EventType() Type { return TypeJoinRules }

// RedactionContent is the content of m.room.redaction. The redacted event
// id travels at the event level (the "redacts" field), not in content.
type RedactionContent struct {
	Reason string `json:"reason,omitempty"`
}

func (RedactionContent) EventType() Type { return TypeRedaction }

// MessageContent is the content of m.room.message.
type MessageContent struct {
	MsgType MsgType `json:"msgtype"`
	Body    string  `json:"body"`
	URL     string  `json:"url,omitempty"`
	GeoURI  string  `json:"geo_uri,omitempty"`
}

func (MessageContent) EventType() Type { return TypeMessage }

// Event is a single Matrix event. Content is nil exactly when the event has
// been redacted; RedactedBecause, when set, is the fully-parsed redaction
// event that caused it. Stripped state events (delivered with invites) have
// no ID, timestamp or unsigned data.
type Event struct {
	ID        string
	Type      Type
	Sender    string
	Timestamp int64
	// StateKey is non-nil exactly for state events. For membership events
	// it is the affected user id; for most other state types it is "".
	StateKey *string
	// Redacts is set only on m.room.redaction events.
	Redacts string
	// Stripped marks a state preview event from an invite, which legally
	// omits ID and Timestamp.
	Stripped bool

	Content     Content
	PrevContent Content

	// Unsigned fields.
	Age             int64
	TransactionID   string
	RedactedBecause *Event
}

// StateKeyValue returns the state key or "" for non-state events.
func (e *Event) StateKeyValue() string {
	if e.StateKey == nil {
		return ""
	}
	return *e.StateKey
}

// Redacted reports whether this event's content has been stripped by a
// redaction.
func (e *Event) Redacted() bool {
	return e.RedactedBecause != nil
}
