// Copyright 2025 The Ember Authors
//
// SPDX-License-Identifier: AGPL-3.0-only
// Please see LICENSE files in the repository root for full details.

package event

import (
	"github.com/tidwall/gjson"
)

// Parse parses a single fully-formed event from its JSON encoding. Parsing
// is strict: required fields per event type must be present, and enumerated
// string fields must carry a value from the protocol's fixed vocabulary.
func Parse(raw []byte) (*Event, error) {
	return parseResult(gjson.ParseBytes(raw), false)
}

// ParseStripped parses a stripped state event, as delivered in the
// invite_state preview of an invited room. Stripped events legally omit
// event_id and origin_server_ts.
func ParseStripped(raw []byte) (*Event, error) {
	return parseResult(gjson.ParseBytes(raw), true)
}

// ParseList parses a JSON array of fully-formed events.
func ParseList(raw []byte) ([]*Event, error) {
	return parseResultList(gjson.ParseBytes(raw), false)
}

func parseResultList(res gjson.Result, stripped bool) ([]*Event, error) {
	if !res.Exists() {
		return nil, nil
	}
	if !res.IsArray() {
		return nil, &ParseError{Field: "events", Failure: FieldMalformed}
	}
	arr := res.Array()
	events := make([]*Event, 0, len(arr))
	for _, item := range arr {
		ev, err := parseResult(item, stripped)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseResult(res gjson.Result, stripped bool) (*Event, error) {
	if !res.IsObject() {
		return nil, &ParseError{Field: "event", Failure: FieldMalformed}
	}

	typeField := res.Get("type")
	if !typeField.Exists() {
		return nil, &ParseError{Field: "type", Failure: FieldAbsent}
	}
	if typeField.Type != gjson.String {
		return nil, &ParseError{Field: "type", Failure: FieldMalformed}
	}
	evType := Type(typeField.Str)
	switch evType {
	case TypeCreate, TypeMember, TypePowerLevels, TypeCanonicalAlias,
		TypeName, TypeTopic, TypeAvatar, TypeEncryption,
		TypeHistoryVisibility, TypeGuestAccess, TypeJoinRules,
		TypeRedaction, TypeMessage:
	default:
		return nil, &ParseError{Field: "type", Failure: ValueUnrecognized, Value: typeField.Str}
	}

	ev := &Event{Type: evType, Stripped: stripped}

	sender, err := requireString(res, evType, "sender")
	if err != nil {
		return nil, err
	}
	ev.Sender = sender

	if !stripped {
		id, err := requireString(res, evType, "event_id")
		if err != nil {
			return nil, err
		}
		ev.ID = id

		ts := res.Get("origin_server_ts")
		if !ts.Exists() {
			return nil, &ParseError{EventType: evType, Field: "origin_server_ts", Failure: FieldAbsent}
		}
		if ts.Type != gjson.Number {
			return nil, &ParseError{EventType: evType, Field: "origin_server_ts", Failure: FieldMalformed}
		}
		ev.Timestamp = ts.Int()
	}

	if evType.IsState() {
		sk := res.Get("state_key")
		if !sk.Exists() {
			return nil, &ParseError{EventType: evType, Field: "state_key", Failure: FieldAbsent}
		}
		if sk.Type != gjson.String {
			return nil, &ParseError{EventType: evType, Field: "state_key", Failure: FieldMalformed}
		}
		key := sk.Str
		ev.StateKey = &key
	}

	if evType == TypeRedaction {
		redacts, err := requireString(res, evType, "redacts")
		if err != nil {
			return nil, err
		}
		ev.Redacts = redacts
	}

	unsigned := res.Get("unsigned")
	if unsigned.Exists() {
		if !unsigned.IsObject() {
			return nil, &ParseError{EventType: evType, Field: "unsigned", Failure: FieldMalformed}
		}
		ev.Age = unsigned.Get("age").Int()
		ev.TransactionID = unsigned.Get("transaction_id").Str
		if because := unsigned.Get("redacted_because"); because.Exists() {
			parsed, err := parseResult(because, false)
			if err != nil {
				return nil, err
			}
			if parsed.Type != TypeRedaction {
				return nil, &ParseError{EventType: evType, Field: "unsigned.redacted_because", Failure: FieldMalformed}
			}
			ev.RedactedBecause = parsed
		}
		if prev := unsigned.Get("prev_content"); prev.Exists() {
			content, err := parseContent(evType, prev, ev.Redacted())
			if err != nil {
				return nil, err
			}
			ev.PrevContent = content
		}
	}

	content := res.Get("content")
	if !content.Exists() {
		if !ev.Redacted() {
			return nil, &ParseError{EventType: evType, Field: "content", Failure: FieldAbsent}
		}
		return ev, nil
	}
	if !content.IsObject() {
		return nil, &ParseError{EventType: evType, Field: "content", Failure: FieldMalformed}
	}
	parsed, err := parseContent(evType, content, ev.Redacted())
	if err != nil {
		return nil, err
	}
	ev.Content = parsed
	return ev, nil
}

// parseContent dispatches to the per-type content parser. For a redacted
// event required content fields may have been stripped, so requirements are
// relaxed to "validate whatever is present".
func parseContent(evType Type, content gjson.Result, redacted bool) (Content, error) {
	switch evType {
	case TypeCreate:
		return parseCreateContent(content, redacted)
	case TypeMember:
		return parseMemberContent(content, redacted)
	case TypePowerLevels:
		return parsePowerLevelsContent(content)
	case TypeCanonicalAlias:
		return parseCanonicalAliasContent(content)
	case TypeName:
		return parseNameContent(content, redacted)
	case TypeTopic:
		return parseTopicContent(content, redacted)
	case TypeAvatar:
		return parseAvatarContent(content, redacted)
	case TypeEncryption:
		return parseEncryptionContent(content, redacted)
	case TypeHistoryVisibility:
		return parseHistoryVisibilityContent(content, redacted)
	case TypeGuestAccess:
		return parseGuestAccessContent(content, redacted)
	case TypeJoinRules:
		return parseJoinRulesContent(content, redacted)
	case TypeRedaction:
		return RedactionContent{Reason: content.Get("reason").Str}, nil
	case TypeMessage:
		return parseMessageContent(content, redacted)
	default:
		return nil, &ParseError{EventType: evType, Field: "type", Failure: ValueUnrecognized, Value: string(evType)}
	}
}

func parseCreateContent(content gjson.Result, redacted bool) (Content, error) {
	c := CreateContent{}
	creator := content.Get("creator")
	if !creator.Exists() {
		if !redacted {
			return nil, &ParseError{EventType: TypeCreate, Field: "content.creator", Failure: FieldAbsent}
		}
	} else if creator.Type != gjson.String {
		return nil, &ParseError{EventType: TypeCreate, Field: "content.creator", Failure: FieldMalformed}
	} else {
		c.Creator = creator.Str
	}
	c.RoomVersion = content.Get("room_version").Str
	if fed := content.Get("m\\.federate"); fed.Exists() {
		if !fed.IsBool() {
			return nil, &ParseError{EventType: TypeCreate, Field: "content.m.federate", Failure: FieldMalformed}
		}
		v := fed.Bool()
		c.Federate = &v
	}
	if pred := content.Get("predecessor"); pred.Exists() {
		if !pred.IsObject() {
			return nil, &ParseError{EventType: TypeCreate, Field: "content.predecessor", Failure: FieldMalformed}
		}
		c.Predecessor = &Predecessor{
			RoomID:  pred.Get("room_id").Str,
			EventID: pred.Get("event_id").Str,
		}
	}
	return c, nil
}

func parseMemberContent(content gjson.Result, redacted bool) (Content, error) {
	c := MemberContent{}
	membership := content.Get("membership")
	if !membership.Exists() {
		if !redacted {
			return nil, &ParseError{EventType: TypeMember, Field: "content.membership", Failure: FieldAbsent}
		}
		return c, nil
	}
	if membership.Type != gjson.String {
		return nil, &ParseError{EventType: TypeMember, Field: "content.membership", Failure: FieldMalformed}
	}
	switch Membership(membership.Str) {
	case MembershipInvite, MembershipJoin, MembershipLeave, MembershipBan, MembershipKnock:
		c.Membership = Membership(membership.Str)
	default:
		return nil, &ParseError{EventType: TypeMember, Field: "content.membership", Failure: ValueUnrecognized, Value: membership.Str}
	}
	c.DisplayName = content.Get("displayname").Str
	c.AvatarURL = content.Get("avatar_url").Str
	c.IsDirect = content.Get("is_direct").Bool()
	c.Reason = content.Get("reason").Str
	return c, nil
}

func parsePowerLevelsContent(content gjson.Result) (Content, error) {
	c := PowerLevelsContent{}
	var err *ParseError
	getLevel := func(field string) *int {
		res := content.Get(field)
		if !res.Exists() {
			return nil
		}
		if res.Type != gjson.Number {
			err = &ParseError{EventType: TypePowerLevels, Field: "content." + field, Failure: FieldMalformed}
			return nil
		}
		v := int(res.Int())
		return &v
	}
	c.Ban = getLevel("ban")
	c.EventsDefault = getLevel("events_default")
	c.Invite = getLevel("invite")
	c.Kick = getLevel("kick")
	c.Redact = getLevel("redact")
	c.StateDefault = getLevel("state_default")
	c.UsersDefault = getLevel("users_default")
	if err != nil {
		return nil, err
	}
	if events := content.Get("events"); events.Exists() {
		if !events.IsObject() {
			return nil, &ParseError{EventType: TypePowerLevels, Field: "content.events", Failure: FieldMalformed}
		}
		c.Events = make(map[string]int)
		for key, value := range events.Map() {
			if value.Type != gjson.Number {
				return nil, &ParseError{EventType: TypePowerLevels, Field: "content.events." + key, Failure: FieldMalformed}
			}
			c.Events[key] = int(value.Int())
		}
	}
	if users := content.Get("users"); users.Exists() {
		if !users.IsObject() {
			return nil, &ParseError{EventType: TypePowerLevels, Field: "content.users", Failure: FieldMalformed}
		}
		c.Users = make(map[string]int)
		for key, value := range users.Map() {
			if value.Type != gjson.Number {
				return nil, &ParseError{EventType: TypePowerLevels, Field: "content.users." + key, Failure: FieldMalformed}
			}
			c.Users[key] = int(value.Int())
		}
	}
	if notif := content.Get("notifications"); notif.Exists() {
		if !notif.IsObject() {
			return nil, &ParseError{EventType: TypePowerLevels, Field: "content.notifications", Failure: FieldMalformed}
		}
		levels := &NotificationLevels{}
		if room := notif.Get("room"); room.Exists() {
			if room.Type != gjson.Number {
				return nil, &ParseError{EventType: TypePowerLevels, Field: "content.notifications.room", Failure: FieldMalformed}
			}
			v := int(room.Int())
			levels.Room = &v
		}
		c.Notifications = levels
	}
	return c, nil
}

func parseCanonicalAliasContent(content gjson.Result) (Content, error) {
	c := CanonicalAliasContent{Alias: content.Get("alias").Str}
	if alt := content.Get("alt_aliases"); alt.Exists() {
		if !alt.IsArray() {
			return nil, &ParseError{EventType: TypeCanonicalAlias, Field: "content.alt_aliases", Failure: FieldMalformed}
		}
		for _, item := range alt.Array() {
			if item.Type != gjson.String {
				return nil, &ParseError{EventType: TypeCanonicalAlias, Field: "content.alt_aliases", Failure: FieldMalformed}
			}
			c.AltAliases = append(c.AltAliases, item.Str)
		}
	}
	return c, nil
}

func parseNameContent(content gjson.Result, redacted bool) (Content, error) {
	name := content.Get("name")
	if !name.Exists() && !redacted {
		return nil, &ParseError{EventType: TypeName, Field: "content.name", Failure: FieldAbsent}
	}
	return NameContent{Name: name.Str}, nil
}

func parseTopicContent(content gjson.Result, redacted bool) (Content, error) {
	topic := content.Get("topic")
	if !topic.Exists() && !redacted {
		return nil, &ParseError{EventType: TypeTopic, Field: "content.topic", Failure: FieldAbsent}
	}
	return TopicContent{Topic: topic.Str}, nil
}

func parseAvatarContent(content gjson.Result, redacted bool) (Content, error) {
	url := content.Get("url")
	if !url.Exists() && !redacted {
		return nil, &ParseError{EventType: TypeAvatar, Field: "content.url", Failure: FieldAbsent}
	}
	c := AvatarContent{
		URL:          url.Str,
		ThumbnailURL: content.Get("thumbnail_url").Str,
	}
	var err error
	if c.Info, err = parseImageInfo(TypeAvatar, "content.info", content.Get("info")); err != nil {
		return nil, err
	}
	if c.ThumbnailInfo, err = parseImageInfo(TypeAvatar, "content.thumbnail_info", content.Get("thumbnail_info")); err != nil {
		return nil, err
	}
	return c, nil
}

func parseImageInfo(evType Type, field string, res gjson.Result) (*ImageInfo, error) {
	if !res.Exists() {
		return nil, nil
	}
	if !res.IsObject() {
		return nil, &ParseError{EventType: evType, Field: field, Failure: FieldMalformed}
	}
	return &ImageInfo{
		Height:   int(res.Get("h").Int()),
		Width:    int(res.Get("w").Int()),
		MimeType: res.Get("mimetype").Str,
		Size:     res.Get("size").Int(),
	}, nil
}

func parseEncryptionContent(content gjson.Result, redacted bool) (Content, error) {
	algorithm := content.Get("algorithm")
	if !algorithm.Exists() {
		if !redacted {
			return nil, &ParseError{EventType: TypeEncryption, Field: "content.algorithm", Failure: FieldAbsent}
		}
		return EncryptionContent{}, nil
	}
	if algorithm.Type != gjson.String {
		return nil, &ParseError{EventType: TypeEncryption, Field: "content.algorithm", Failure: FieldMalformed}
	}
	switch Algorithm(algorithm.Str) {
	case AlgorithmMegolmV1, AlgorithmOlmV1:
	default:
		return nil, &ParseError{EventType: TypeEncryption, Field: "content.algorithm", Failure: ValueUnrecognized, Value: algorithm.Str}
	}
	return EncryptionContent{
		Algorithm:          Algorithm(algorithm.Str),
		RotationPeriodMS:   content.Get("rotation_period_ms").Int(),
		RotationPeriodMsgs: content.Get("rotation_period_msgs").Int(),
	}, nil
}

func parseHistoryVisibilityContent(content gjson.Result, redacted bool) (Content, error) {
	visibility := content.Get("history_visibility")
	if !visibility.Exists() {
		if !redacted {
			return nil, &ParseError{EventType: TypeHistoryVisibility, Field: "content.history_visibility", Failure: FieldAbsent}
		}
		return HistoryVisibilityContent{}, nil
	}
	switch HistoryVisibility(visibility.Str) {
	case HistoryVisibilityInvited, HistoryVisibilityJoined, HistoryVisibilityShared, HistoryVisibilityWorldReadable:
		return HistoryVisibilityContent{HistoryVisibility: HistoryVisibility(visibility.Str)}, nil
	default:
		return nil, &ParseError{EventType: TypeHistoryVisibility, Field: "content.history_visibility", Failure: ValueUnrecognized, Value: visibility.Str}
	}
}

func parseGuestAccessContent(content gjson.Result, redacted bool) (Content, error) {
	access := content.Get("guest_access")
	if !access.Exists() {
		if !redacted {
			return nil, &ParseError{EventType: TypeGuestAccess, Field: "content.guest_access", Failure: FieldAbsent}
		}
		return GuestAccessContent{}, nil
	}
	switch GuestAccess(access.Str) {
	case GuestAccessCanJoin, GuestAccessForbidden:
		return GuestAccessContent{GuestAccess: GuestAccess(access.Str)}, nil
	default:
		return nil, &ParseError{EventType: TypeGuestAccess, Field: "content.guest_access", Failure: ValueUnrecognized, Value: access.Str}
	}
}

func parseJoinRulesContent(content gjson.Result, redacted bool) (Content, error) {
	rule := content.Get("join_rule")
	if !rule.Exists() {
		if !redacted {
			return nil, &ParseError{EventType: TypeJoinRules, Field: "content.join_rule", Failure: FieldAbsent}
		}
		return JoinRulesContent{}, nil
	}
	switch JoinRule(rule.Str) {
	case JoinRulePublic, JoinRuleKnock, JoinRuleInvite, JoinRulePrivate:
		return JoinRulesContent{JoinRule: JoinRule(rule.Str)}, nil
	default:
		return nil, &ParseError{EventType: TypeJoinRules, Field: "content.join_rule", Failure: ValueUnrecognized, Value: rule.Str}
	}
}

func parseMessageContent(content gjson.Result, redacted bool) (Content, error) {
	msgtype := content.Get("msgtype")
	body := content.Get("body")
	if !msgtype.Exists() || !body.Exists() {
		if !redacted {
			field := "content.msgtype"
			if msgtype.Exists() {
				field = "content.body"
			}
			return nil, &ParseError{EventType: TypeMessage, Field: field, Failure: FieldAbsent}
		}
		return MessageContent{}, nil
	}
	switch MsgType(msgtype.Str) {
	case MsgText, MsgEmote, MsgNotice, MsgImage, MsgFile, MsgAudio, MsgVideo, MsgLocation:
	default:
		return nil, &ParseError{EventType: TypeMessage, Field: "content.msgtype", Failure: ValueUnrecognized, Value: msgtype.Str}
	}
	return MessageContent{
		MsgType: MsgType(msgtype.Str),
		Body:    body.Str,
		URL:     content.Get("url").Str,
		GeoURI:  content.Get("geo_uri").Str,
	}, nil
}

func requireString(res gjson.Result, evType Type, field string) (string, error) {
	value := res.Get(field)
	if !value.Exists() {
		return "", &ParseError{EventType: evType, Field: field, Failure: FieldAbsent}
	}
	if value.Type != gjson.String {
		return "", &ParseError{EventType: evType, Field: field, Failure: FieldMalformed}
	}
	return value.Str, nil
}
