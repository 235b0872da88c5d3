package model

import (
	"time"
)

// Event is the sealed union of canonical events emitted to the host. Each
// variant is a state-sync instruction, an ephemeral activity signal, or a
// refresh directive. Hosts must treat upserts as idempotent: no global
// ordering is guaranteed across the push and poll delivery channels.
type Event interface {
	// eventMarker seals the interface to this package's variants.
	eventMarker()

	// EventType returns a stable name for logging and serialization.
	EventType() string
}

// baseEvent is embedded by every variant to satisfy the sealed marker.
type baseEvent struct{}

func (baseEvent) eventMarker() {}

// MessageUpsert inserts or replaces messages in a thread.
type MessageUpsert struct {
	baseEvent

	ThreadID string    `json:"threadID"`
	Messages []Message `json:"messages"`
}

func (MessageUpsert) EventType() string { return "message_upsert" }

// MessageDelete removes messages by id.
type MessageDelete struct {
	baseEvent

	ThreadID   string   `json:"threadID"`
	MessageIDs []string `json:"messageIDs"`
}

func (MessageDelete) EventType() string { return "message_delete" }

// ThreadUpsert inserts or replaces whole threads.
type ThreadUpsert struct {
	baseEvent

	Threads []Thread `json:"threads"`
}

func (ThreadUpsert) EventType() string { return "thread_upsert" }

// ThreadPatch is a partial thread update. Nil fields are untouched.
type ThreadPatch struct {
	Title      *string     `json:"title,omitempty"`
	ImgURL     *string     `json:"imgURL,omitempty"`
	IsUnread   *bool       `json:"isUnread,omitempty"`
	Folder     *FolderName `json:"folderName,omitempty"`
	MutedUntil *time.Time  `json:"mutedUntil,omitempty"`

	// MutedForever is a tri-state: nil untouched, true mute forever,
	// false clear the mute along with MutedUntil.
	MutedForever *bool `json:"mutedForever,omitempty"`
}

// ThreadUpdate applies a partial update to one thread.
type ThreadUpdate struct {
	baseEvent

	ThreadID string      `json:"threadID"`
	Patch    ThreadPatch `json:"patch"`
}

func (ThreadUpdate) EventType() string { return "thread_update" }

// ThreadDelete removes threads entirely.
type ThreadDelete struct {
	baseEvent

	ThreadIDs []string `json:"threadIDs"`
}

func (ThreadDelete) EventType() string { return "thread_delete" }

// ParticipantUpsert adds or replaces participants of a thread.
type ParticipantUpsert struct {
	baseEvent

	ThreadID     string        `json:"threadID"`
	Participants []Participant `json:"participants"`
}

func (ParticipantUpsert) EventType() string { return "participant_upsert" }

// ParticipantDelete removes participants from a thread.
type ParticipantDelete struct {
	baseEvent

	ThreadID       string   `json:"threadID"`
	ParticipantIDs []string `json:"participantIDs"`
}

func (ParticipantDelete) EventType() string { return "participant_delete" }

// ReactionUpsert adds or replaces one participant's reaction on a message.
type ReactionUpsert struct {
	baseEvent

	ThreadID  string   `json:"threadID"`
	MessageID string   `json:"messageID"`
	Reaction  Reaction `json:"reaction"`
}

func (ReactionUpsert) EventType() string { return "reaction_upsert" }

// ReactionDelete removes one participant's reaction from a message.
type ReactionDelete struct {
	baseEvent

	ThreadID      string `json:"threadID"`
	MessageID     string `json:"messageID"`
	ParticipantID string `json:"participantID"`
}

func (ReactionDelete) EventType() string { return "reaction_delete" }

// ThreadRefresh directs the host to re-fetch a thread because local state
// cannot be updated precisely from the available payload.
type ThreadRefresh struct {
	baseEvent

	ThreadID string `json:"threadID"`
}

func (ThreadRefresh) EventType() string { return "thread_refresh" }

// ActivityType classifies ephemeral presence signals.
type ActivityType string

const (
	ActivityTyping ActivityType = "typing"
	ActivityNone   ActivityType = "none"
)

// UserActivity is an ephemeral signal (typing indicator) that carries no
// durable state.
type UserActivity struct {
	baseEvent

	ThreadID      string        `json:"threadID"`
	ParticipantID string        `json:"participantID"`
	Type          ActivityType  `json:"type"`
	Duration      time.Duration `json:"durationMs,omitempty"`
}

func (UserActivity) EventType() string { return "user_activity" }
