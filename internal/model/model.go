// Package model defines the canonical entities the connector hands to its
// host aggregator: threads, messages, participants, reactions, and the event
// stream that keeps them live. Everything here is wire-format independent;
// upstream shapes are decoded in internal/wire and translated by
// internal/mapper.
package model

import (
	"time"
)

// ThreadType distinguishes one-on-one threads from group threads.
type ThreadType string

const (
	ThreadSingle  ThreadType = "single"
	ThreadGroup   ThreadType = "group"
	ThreadChannel ThreadType = "channel"
)

// FolderName is the inbox folder a thread lives in.
type FolderName string

const (
	FolderNormal   FolderName = "normal"
	FolderRequests FolderName = "requests"
)

// AttachmentType classifies a message attachment.
type AttachmentType string

const (
	AttachmentImg     AttachmentType = "img"
	AttachmentVideo   AttachmentType = "video"
	AttachmentAudio   AttachmentType = "audio"
	AttachmentUnknown AttachmentType = "unknown"
)

// Participant is a member of a thread.
type Participant struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	FullName string `json:"fullName,omitempty"`
	ImgURL   string `json:"imgURL,omitempty"`

	// IsSelf is true for the authenticated user's own entry.
	IsSelf bool `json:"isSelf,omitempty"`

	// IsVerified mirrors the platform's account verification badge.
	IsVerified bool `json:"isVerified,omitempty"`

	// CannotMessage is true when the account does not accept DMs from
	// the current user.
	CannotMessage bool `json:"cannotMessage,omitempty"`
}

// Size holds pixel dimensions for media attachments.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Attachment is a media object carried by a message. SrcURL may be a normal
// https URL or an asset:// reference that the host must resolve through the
// connector's authenticated media proxy.
type Attachment struct {
	ID      string         `json:"id"`
	Type    AttachmentType `json:"type"`
	SrcURL  string         `json:"srcURL"`
	PosterURL string       `json:"posterImg,omitempty"`
	Size    *Size          `json:"size,omitempty"`
	IsGif   bool           `json:"isGif,omitempty"`
}

// MessageLink is a link-preview card attached to a message.
type MessageLink struct {
	URL    string `json:"url"`
	ImgURL string `json:"img,omitempty"`
	ImgSize *Size `json:"imgSize,omitempty"`
	Title  string `json:"title"`
	Summary string `json:"summary,omitempty"`
}

// TweetEmbed is a quoted post embedded in a message.
type TweetEmbed struct {
	ID          string       `json:"id"`
	URL         string       `json:"url"`
	Text        string       `json:"text"`
	Timestamp   time.Time    `json:"timestamp,omitempty"`
	UserID      string       `json:"userID,omitempty"`
	Username    string       `json:"username,omitempty"`
	UserName    string       `json:"userName,omitempty"`
	UserImgURL  string       `json:"userImgURL,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ButtonType distinguishes call-to-action buttons from quick replies.
type ButtonType string

const (
	ButtonCallToAction ButtonType = "cta"
	ButtonQuickReply   ButtonType = "quick_reply"
)

// MessageButton is an interactive element rendered under a message.
type MessageButton struct {
	Type    ButtonType `json:"type"`
	Label   string     `json:"label"`
	LinkURL string     `json:"linkURL,omitempty"`
}

// TextEntity is a range annotation over a message's text: a clickable link,
// a mention, or a removal instruction. Offsets are rune indices into Text.
type TextEntity struct {
	From int `json:"from"`
	To   int `json:"to"`

	// ReplaceWith, when non-nil, substitutes the range. An empty string
	// strips the range from the rendered text entirely.
	ReplaceWith *string `json:"replaceWith,omitempty"`

	// Link makes the range clickable.
	Link string `json:"link,omitempty"`

	// MentionedUser identifies the account a mention range points at.
	MentionedUser string `json:"mentionedUser,omitempty"`
}

// SegmentKind discriminates template segments.
type SegmentKind string

const (
	SegmentLiteral     SegmentKind = "literal"
	SegmentParticipant SegmentKind = "participant"
	SegmentSelf        SegmentKind = "self"
)

// TemplateSegment is one piece of a system message template. Action messages
// such as "X added Y" are delivered as an ordered segment list so the host
// can substitute live participant names without re-parsing text.
type TemplateSegment struct {
	Kind SegmentKind `json:"kind"`

	// Text is the literal content for SegmentLiteral segments.
	Text string `json:"text,omitempty"`

	// ParticipantID names the referenced participant for
	// SegmentParticipant segments.
	ParticipantID string `json:"participantID,omitempty"`
}

// ActionType classifies system/action messages.
type ActionType string

const (
	ActionThreadTitleUpdated  ActionType = "thread_title_updated"
	ActionThreadImgChanged    ActionType = "thread_img_changed"
	ActionParticipantsAdded   ActionType = "participants_added"
	ActionParticipantsRemoved ActionType = "participants_removed"
	ActionRequestAccepted     ActionType = "message_request_accepted"
	ActionReactionCreated     ActionType = "message_reaction_created"
	ActionReactionDeleted     ActionType = "message_reaction_deleted"
	ActionCallEnded           ActionType = "call_ended"
)

// MessageAction is the structured payload behind an action message.
type MessageAction struct {
	Type ActionType `json:"type"`

	// ActorParticipantID is who performed the action, when known.
	ActorParticipantID string `json:"actorParticipantID,omitempty"`

	// ParticipantIDs are the accounts the action affected.
	ParticipantIDs []string `json:"participantIDs,omitempty"`

	// Title is the new thread title for ActionThreadTitleUpdated.
	Title string `json:"title,omitempty"`

	// MessageID is the reacted-to message for reaction actions.
	MessageID string `json:"messageID,omitempty"`

	// ReactionKey is the normalized reaction for reaction actions.
	ReactionKey string `json:"reactionKey,omitempty"`
}

// Reaction is a single participant's reaction on a message. Reactions are
// keyed by (threadID, messageID, participantID): re-adding the same key is
// an idempotent upsert.
type Reaction struct {
	// ID is the participant id, making the key explicit.
	ID            string `json:"id"`
	ParticipantID string `json:"participantID"`

	// ReactionKey is either a normalized reaction name or the raw emoji.
	ReactionKey string `json:"reactionKey"`

	// Emoji is true when ReactionKey is a literal emoji glyph.
	Emoji bool `json:"emoji,omitempty"`
}

// Message is a canonical message. Every message has a stable ID, a
// timestamp, and a SenderID that is either a participant id or the sentinel
// SystemSenderID.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadID"`
	SenderID  string    `json:"senderID"`
	Timestamp time.Time `json:"timestamp"`

	Text         string       `json:"text,omitempty"`
	TextEntities []TextEntity `json:"textEntities,omitempty"`

	// Template is set on action messages instead of (or alongside) Text.
	Template []TemplateSegment `json:"template,omitempty"`

	Attachments []Attachment    `json:"attachments,omitempty"`
	Links       []MessageLink   `json:"links,omitempty"`
	Tweets      []TweetEmbed    `json:"tweets,omitempty"`
	Buttons     []MessageButton `json:"buttons,omitempty"`
	Reactions   []Reaction      `json:"reactions,omitempty"`

	IsSender bool `json:"isSender,omitempty"`
	Seen     bool `json:"seen,omitempty"`

	// IsAction marks system messages (joins, renames, reactions).
	IsAction bool `json:"isAction,omitempty"`

	// IsHidden marks messages rendered only in activity feeds.
	IsHidden bool `json:"isHidden,omitempty"`

	Action *MessageAction `json:"action,omitempty"`

	// LinkedMessageID points at the message this one reacts to or
	// replies to.
	LinkedMessageID string `json:"linkedMessageID,omitempty"`
}

// SystemSenderID is the sentinel sender for messages that originate from the
// thread itself rather than a participant.
const SystemSenderID = "$thread"

// Thread is a canonical conversation.
type Thread struct {
	ID     string     `json:"id"`
	Type   ThreadType `json:"type"`
	Title  string     `json:"title,omitempty"`
	ImgURL string     `json:"imgURL,omitempty"`

	IsUnread   bool      `json:"isUnread"`
	IsReadOnly bool      `json:"isReadOnly"`
	Timestamp  time.Time `json:"timestamp"`

	Folder FolderName `json:"folderName"`

	// MutedUntil is nil when unmuted. MutedForever trumps the time.
	MutedUntil   *time.Time `json:"mutedUntil,omitempty"`
	MutedForever bool       `json:"mutedForever,omitempty"`

	// LastReadMessageID is the newest message id the current user has
	// acknowledged.
	LastReadMessageID string `json:"lastReadMessageID,omitempty"`

	Messages     []Message     `json:"messages"`
	Participants []Participant `json:"participants"`

	// HasMoreMessages reports whether older pages exist server-side.
	HasMoreMessages bool `json:"hasMoreMessages,omitempty"`

	// OldestCursor pages backwards through message history.
	OldestCursor string `json:"oldestCursor,omitempty"`
}

// Page is one page of entities plus pagination state.
type Page[T any] struct {
	Items        []T    `json:"items"`
	HasMore      bool   `json:"hasMore"`
	OldestCursor string `json:"oldestCursor,omitempty"`
}

// User is a platform account outside of any thread context, as returned by
// contact search.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	FullName      string `json:"fullName,omitempty"`
	ImgURL        string `json:"imgURL,omitempty"`
	IsVerified    bool   `json:"isVerified,omitempty"`
	CannotMessage bool   `json:"cannotMessage,omitempty"`
}

// SendMessageOptions carries the content of an outbound message.
type SendMessageOptions struct {
	ThreadID string
	Text     string

	// FilePath or FileBuffer supply media to upload, at most one set.
	FilePath   string
	FileBuffer []byte
	FileName   string
	MimeType   string
}

// PaginationArg is an opaque resume point for paged queries.
type PaginationArg struct {
	Cursor    string
	Direction string
}
