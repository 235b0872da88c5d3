// Package wire holds the upstream JSON shapes and the utilities needed to
// decode them safely: flexible string-or-number ids, the single-key tagged
// entry union, the error envelope, and the snowflake timestamp helpers.
// Nothing outside this package and internal/mapper should ever see a raw
// upstream shape.
package wire

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ID is an upstream identifier. The API serializes ids inconsistently, as
// JSON strings in some payloads and bare numbers in others, so ID accepts
// both and normalizes to the string form.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (i *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*i = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = ID(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*i = ID(n.String())

	return nil
}

// String returns the normalized string form.
func (i ID) String() string { return string(i) }

// Millis is a millisecond timestamp that may arrive as a string or number.
type Millis int64

// UnmarshalJSON implements json.Unmarshaler.
func (m *Millis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*m = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*m = Millis(n)

		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*m = Millis(n)

	return nil
}

// Indices is a [start, end) rune range as the API delivers it.
type Indices [2]int

// EntityBase carries the text range every entity annotation has.
type EntityBase struct {
	Indices Indices `json:"indices"`
}

// URLEntity is a shortened link in message or post text.
type URLEntity struct {
	EntityBase

	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
	DisplayURL  string `json:"display_url"`
}

// HashtagEntity is a #tag range.
type HashtagEntity struct {
	EntityBase

	Text string `json:"text"`
}

// SymbolEntity is a $cashtag range.
type SymbolEntity struct {
	EntityBase

	Text string `json:"text"`
}

// MentionEntity is an @mention range.
type MentionEntity struct {
	EntityBase

	IDStr      ID     `json:"id_str"`
	ScreenName string `json:"screen_name"`
}

// Entities is the annotation block attached to text-bearing payloads.
type Entities struct {
	Hashtags     []HashtagEntity `json:"hashtags,omitempty"`
	Symbols      []SymbolEntity  `json:"symbols,omitempty"`
	UserMentions []MentionEntity `json:"user_mentions,omitempty"`
	URLs         []URLEntity     `json:"urls,omitempty"`
	Media        []MediaEntity   `json:"media,omitempty"`
}

// OriginalInfo holds the native dimensions of a media object.
type OriginalInfo struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// VideoVariant is one encoding of a video.
type VideoVariant struct {
	Bitrate     int    `json:"bitrate,omitempty"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// VideoInfo lists a video's available encodings.
type VideoInfo struct {
	Variants []VideoVariant `json:"variants"`
}

// MediaEntity is an image, video, or gif object.
type MediaEntity struct {
	EntityBase

	IDStr        ID            `json:"id_str"`
	Type         string        `json:"type,omitempty"`
	MediaURLHTTPS string       `json:"media_url_https"`
	OriginalInfo *OriginalInfo `json:"original_info,omitempty"`
	VideoInfo    *VideoInfo    `json:"video_info,omitempty"`
	AudioOnly    bool          `json:"audio_only,omitempty"`
}

// CardImage is an image binding inside a preview card.
type CardImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// CardValue is one binding value of a preview card.
type CardValue struct {
	StringValue string     `json:"string_value,omitempty"`
	ImageValue  *CardImage `json:"image_value,omitempty"`
}

// Card is a link-preview card.
type Card struct {
	Name          string               `json:"name,omitempty"`
	BindingValues map[string]CardValue `json:"binding_values,omitempty"`
}

// Binding returns the named binding value, or a zero value when absent.
func (c *Card) Binding(name string) CardValue {
	if c == nil {
		return CardValue{}
	}

	return c.BindingValues[name]
}

// UserEntities mirrors the entities block on account profiles.
type UserEntities struct {
	URL *struct {
		URLs []URLEntity `json:"urls,omitempty"`
	} `json:"url,omitempty"`
	Description *Entities `json:"description,omitempty"`
}

// User is a platform account.
type User struct {
	IDStr               ID            `json:"id_str"`
	ScreenName          string        `json:"screen_name"`
	Name                string        `json:"name"`
	ProfileImageURLHTTPS string       `json:"profile_image_url_https"`
	Verified            bool          `json:"verified"`
	IsDMAble            *bool         `json:"is_dm_able,omitempty"`
	Entities            *UserEntities `json:"entities,omitempty"`
}

// ThreadParticipant is a membership record inside a conversation.
type ThreadParticipant struct {
	UserID          ID   `json:"user_id"`
	LastReadEventID ID   `json:"last_read_event_id,omitempty"`
	IsAdmin         bool `json:"is_admin,omitempty"`
}

// Conversation types as the API spells them.
const (
	ConversationOneToOne = "ONE_TO_ONE"
	ConversationGroupDM  = "GROUP_DM"
)

// ConversationStatusAtEnd marks a conversation page with no older entries.
const ConversationStatusAtEnd = "AT_END"

// Conversation is a DM thread as the API describes it.
type Conversation struct {
	ConversationID        ID                  `json:"conversation_id"`
	Type                  string              `json:"type"`
	Name                  string              `json:"name,omitempty"`
	AvatarImageHTTPS      string              `json:"avatar_image_https,omitempty"`
	Trusted               bool                `json:"trusted"`
	ReadOnly              bool                `json:"read_only,omitempty"`
	LastReadEventID       ID                  `json:"last_read_event_id,omitempty"`
	SortEventID           ID                  `json:"sort_event_id,omitempty"`
	SortTimestamp         Millis              `json:"sort_timestamp,omitempty"`
	NotificationsDisabled bool                `json:"notifications_disabled,omitempty"`
	MuteExpirationTime    Millis              `json:"mute_expiration_time,omitempty"`
	MinEntryID            ID                  `json:"min_entry_id,omitempty"`
	MaxEntryID            ID                  `json:"max_entry_id,omitempty"`
	Status                string              `json:"status,omitempty"`
	Participants          []ThreadParticipant `json:"participants,omitempty"`
}

// TweetUser is the author block embedded in a post.
type TweetUser struct {
	Name                string `json:"name"`
	ScreenName          string `json:"screen_name"`
	ProfileImageURLHTTPS string `json:"profile_image_url_https"`
	Verified            bool   `json:"verified"`
}

// Tweet is a post embedded in a message or notification.
type Tweet struct {
	IDStr            ID         `json:"id_str"`
	FullText         string     `json:"full_text,omitempty"`
	Text             string     `json:"text,omitempty"`
	CreatedAt        string     `json:"created_at,omitempty"`
	User             *TweetUser `json:"user,omitempty"`
	UserIDStr        ID         `json:"user_id_str,omitempty"`
	Entities         *Entities  `json:"entities,omitempty"`
	ExtendedEntities *Entities  `json:"extended_entities,omitempty"`
	Card             *Card      `json:"card,omitempty"`
	Favorited        bool       `json:"favorited,omitempty"`
}

// TweetCreatedAtLayout parses the upstream created_at format.
const TweetCreatedAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

// TweetAttachment wraps an embedded post inside a message attachment,
// carrying the indices of the post URL within the message text.
type TweetAttachment struct {
	Status  *Tweet   `json:"status,omitempty"`
	URL     string   `json:"url,omitempty"`
	Indices *Indices `json:"indices,omitempty"`
}

// AttachmentSet is the attachment block of message data. At most one field
// is populated per message.
type AttachmentSet struct {
	Photo       *MediaEntity     `json:"photo,omitempty"`
	Video       *MediaEntity     `json:"video,omitempty"`
	AnimatedGif *MediaEntity     `json:"animated_gif,omitempty"`
	Tweet       *TweetAttachment `json:"tweet,omitempty"`
	Card        *Card            `json:"card,omitempty"`
	Fleet       json.RawMessage  `json:"fleet,omitempty"`
}

// CallToAction is a CTA button definition.
type CallToAction struct {
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
	TCOUrl string `json:"tco_url,omitempty"`
}

// QuickReplyOption is one quick-reply choice.
type QuickReplyOption struct {
	Label string `json:"label"`
}

// QuickReply is the quick-reply block of message data.
type QuickReply struct {
	Options []QuickReplyOption `json:"options,omitempty"`
}

// ReplyData references the message this one replies to.
type ReplyData struct {
	ID ID `json:"id"`
}

// MessageData is the content body of a user-authored message.
type MessageData struct {
	ID         ID             `json:"id,omitempty"`
	Time       Millis         `json:"time,omitempty"`
	SenderID   ID             `json:"sender_id"`
	Text       string         `json:"text,omitempty"`
	Entities   *Entities      `json:"entities,omitempty"`
	Attachment *AttachmentSet `json:"attachment,omitempty"`
	CTAs       []CallToAction `json:"ctas,omitempty"`
	QuickReply *QuickReply    `json:"quick_reply,omitempty"`
	ReplyData  *ReplyData     `json:"reply_data,omitempty"`
}

// MessageReaction is one reaction record on a message entry.
type MessageReaction struct {
	ID            ID     `json:"id"`
	Time          Millis `json:"time"`
	SenderID      ID     `json:"sender_id"`
	ReactionKey   string `json:"reaction_key"`
	EmojiReaction string `json:"emoji_reaction,omitempty"`
}
