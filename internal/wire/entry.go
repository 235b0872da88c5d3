package wire

import (
	"encoding/json"
	"fmt"
)

// EntryKind names the event types the DM timeline and the user-updates poll
// stream can deliver. Unknown discriminators decode to EntryUnknown rather
// than failing, so protocol drift degrades instead of crashing the loop.
type EntryKind string

const (
	EntryMessage                  EntryKind = "message"
	EntryMessageDelete            EntryKind = "message_delete"
	EntryWelcomeMessage           EntryKind = "welcome_message_create"
	EntryJoinConversation         EntryKind = "join_conversation"
	EntryParticipantsJoin         EntryKind = "participants_join"
	EntryParticipantsLeave        EntryKind = "participants_leave"
	EntryConversationCreate       EntryKind = "conversation_create"
	EntryConversationRead         EntryKind = "conversation_read"
	EntryConversationNameUpdate   EntryKind = "conversation_name_update"
	EntryConversationAvatarUpdate EntryKind = "conversation_avatar_update"
	EntryConvoMetadataUpdate      EntryKind = "convo_metadata_update"
	EntryDisableNotifications     EntryKind = "disable_notifications"
	EntryEnableNotifications      EntryKind = "enable_notifications"
	EntryRemoveConversation       EntryKind = "remove_conversation"
	EntryTrustConversation        EntryKind = "trust_conversation"
	EntryReactionCreate           EntryKind = "reaction_create"
	EntryReactionDelete           EntryKind = "reaction_delete"
	EntryEndAVBroadcast           EntryKind = "end_av_broadcast"
	EntryUnknown                  EntryKind = ""
)

// Call end reasons and types for EntryEndAVBroadcast entries.
const (
	CallAudioOnly = "AUDIO_ONLY"

	CallEndCanceled = "CANCELED"
	CallEndMissed   = "MISSED"
	CallEndDeclined = "DECLINED"
	CallEndTimedOut = "TIMED_OUT"
	CallEndHungUp   = "HUNG_UP"
)

// Trust reasons for EntryTrustConversation entries.
const (
	TrustReasonAccept = "accept"
	TrustReasonFollow = "follow"
)

// DeletedMessageRef is one element of a message_delete batch.
type DeletedMessageRef struct {
	MessageID ID `json:"message_id"`
}

// Entry is the merged payload of a timeline entry. Which fields are set
// depends on the Kind carried by the enclosing Envelope; fields are named
// after the upstream keys.
type Entry struct {
	ID             ID     `json:"id,omitempty"`
	Time           Millis `json:"time,omitempty"`
	ConversationID ID     `json:"conversation_id,omitempty"`

	// AffectsSort is nil when the server omitted it; false marks silent
	// entries that must not bump the thread's sort position.
	AffectsSort *bool `json:"affects_sort,omitempty"`

	// MessageData is present on user-authored message entries.
	MessageData *MessageData `json:"message_data,omitempty"`

	// MessageReactions lists reactions already attached to a message.
	MessageReactions []MessageReaction `json:"message_reactions,omitempty"`

	// SenderID / ByUserID identify the acting account on system entries.
	SenderID ID `json:"sender_id,omitempty"`
	ByUserID ID `json:"by_user_id,omitempty"`

	// Participants is set on join/leave entries.
	Participants []ThreadParticipant `json:"participants,omitempty"`

	// ConversationName is the new title on rename entries.
	ConversationName string `json:"conversation_name,omitempty"`

	// ConversationAvatarImageHTTPS is the new image on avatar entries.
	ConversationAvatarImageHTTPS string `json:"conversation_avatar_image_https,omitempty"`

	// Reason distinguishes trust_conversation causes.
	Reason string `json:"reason,omitempty"`

	// Messages lists the ids removed by a message_delete entry.
	Messages []DeletedMessageRef `json:"messages,omitempty"`

	// Reaction fields for reaction_create / reaction_delete entries.
	MessageID     ID     `json:"message_id,omitempty"`
	ReactionKey   string `json:"reaction_key,omitempty"`
	EmojiReaction string `json:"emoji_reaction,omitempty"`

	// Call fields for end_av_broadcast entries.
	CallType  string `json:"call_type,omitempty"`
	EndReason string `json:"end_reason,omitempty"`
}

// Envelope is one timeline entry: a single-key JSON object whose key is the
// event kind and whose value is the payload. The discriminator is resolved
// exactly once, here, so the raw single-key shape never escapes this
// package.
type Envelope struct {
	Kind  EntryKind
	Entry Entry

	// RawKind preserves the discriminator verbatim for unknown kinds, for
	// logging and drift telemetry.
	RawKind string
}

// UnmarshalJSON implements json.Unmarshaler.
//
// The upstream shape is nominally single-key, but the server occasionally
// attaches sibling fields next to the kind key. A recognized kind wins over
// any other key; with none recognized the lexically first key is taken, so
// drifted entries degrade to EntryUnknown instead of failing the whole
// batch (and with it the poll cursor).
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(data, &keyed); err != nil {
		return fmt.Errorf("entry envelope: %w", err)
	}
	if len(keyed) == 0 {
		return fmt.Errorf("entry envelope: no discriminator key")
	}

	rawKind := ""
	rawKnown := false
	for key := range keyed {
		_, known := knownKinds[key]
		better := rawKind == "" ||
			(known && !rawKnown) ||
			(known == rawKnown && key < rawKind)
		if better {
			rawKind, rawKnown = key, known
		}
	}

	e.RawKind = rawKind
	e.Kind = kindFromString(rawKind)

	if err := json.Unmarshal(keyed[rawKind], &e.Entry); err != nil {
		// Unknown kinds may carry any payload shape; a refresh hint
		// downstream is all they can produce anyway.
		if e.Kind != EntryUnknown {
			return fmt.Errorf("entry %q payload: %w", rawKind, err)
		}
		e.Entry = Entry{}
	}

	return nil
}

// MarshalJSON re-encodes the envelope in the upstream single-key shape,
// which keeps fixture round trips honest in tests.
func (e Envelope) MarshalJSON() ([]byte, error) {
	kind := e.RawKind
	if kind == "" {
		kind = string(e.Kind)
	}

	return json.Marshal(map[string]Entry{kind: e.Entry})
}

var knownKinds = map[string]EntryKind{
	string(EntryMessage):                  EntryMessage,
	string(EntryMessageDelete):            EntryMessageDelete,
	string(EntryWelcomeMessage):           EntryWelcomeMessage,
	string(EntryJoinConversation):         EntryJoinConversation,
	string(EntryParticipantsJoin):         EntryParticipantsJoin,
	string(EntryParticipantsLeave):        EntryParticipantsLeave,
	string(EntryConversationCreate):       EntryConversationCreate,
	string(EntryConversationRead):         EntryConversationRead,
	string(EntryConversationNameUpdate):   EntryConversationNameUpdate,
	string(EntryConversationAvatarUpdate): EntryConversationAvatarUpdate,
	string(EntryConvoMetadataUpdate):      EntryConvoMetadataUpdate,
	string(EntryDisableNotifications):     EntryDisableNotifications,
	string(EntryEnableNotifications):      EntryEnableNotifications,
	string(EntryRemoveConversation):       EntryRemoveConversation,
	string(EntryTrustConversation):        EntryTrustConversation,
	string(EntryReactionCreate):           EntryReactionCreate,
	string(EntryReactionDelete):           EntryReactionDelete,
	string(EntryEndAVBroadcast):           EntryEndAVBroadcast,
}

func kindFromString(s string) EntryKind {
	if k, ok := knownKinds[s]; ok {
		return k
	}

	return EntryUnknown
}
