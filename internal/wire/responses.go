package wire

// InboxState is the shared body of the inbox, timeline, and poll responses:
// a cursor, a batch of entries, and lookaside tables for the conversations
// and users the entries reference.
type InboxState struct {
	Status string `json:"status,omitempty"`

	Cursor                   string `json:"cursor,omitempty"`
	MinEntryID               ID     `json:"min_entry_id,omitempty"`
	MaxEntryID               ID     `json:"max_entry_id,omitempty"`
	LastSeenEventID          ID     `json:"last_seen_event_id,omitempty"`
	TrustedLastSeenEventID   ID     `json:"trusted_last_seen_event_id,omitempty"`
	UntrustedLastSeenEventID ID     `json:"untrusted_last_seen_event_id,omitempty"`

	Entries       []Envelope               `json:"entries,omitempty"`
	Conversations map[string]*Conversation `json:"conversations,omitempty"`
	Users         map[string]*User         `json:"users,omitempty"`

	InboxTimelines *InboxTimelines `json:"inbox_timelines,omitempty"`
}

// InboxTimelineState summarizes one inbox folder's paging state.
type InboxTimelineState struct {
	Status     string `json:"status,omitempty"`
	MinEntryID ID     `json:"min_entry_id,omitempty"`
}

// InboxTimelines carries the per-folder paging state of the initial inbox
// snapshot.
type InboxTimelines struct {
	Trusted   *InboxTimelineState `json:"trusted,omitempty"`
	Untrusted *InboxTimelineState `json:"untrusted,omitempty"`
}

// InboxInitialStateResponse is the first inbox snapshot after connect.
type InboxInitialStateResponse struct {
	ErrorEnvelope

	InboxInitialState *InboxState `json:"inbox_initial_state,omitempty"`
}

// InboxTimelineResponse is one older page of an inbox folder.
type InboxTimelineResponse struct {
	ErrorEnvelope

	InboxTimeline *InboxState `json:"inbox_timeline,omitempty"`
}

// ConversationTimelineResponse is one page of a single conversation.
type ConversationTimelineResponse struct {
	ErrorEnvelope

	ConversationTimeline *InboxState `json:"conversation_timeline,omitempty"`
}

// UserUpdatesResponse is the cursor-driven poll response. A body with a nil
// UserEvents carries nothing actionable (the poll endpoint answers with an
// empty object when there is nothing new).
type UserUpdatesResponse struct {
	ErrorEnvelope

	UserEvents *InboxState `json:"user_events,omitempty"`
}

// MediaUploadProcessingInfo reports server-side transcode progress.
type MediaUploadProcessingInfo struct {
	State          string `json:"state,omitempty"`
	CheckAfterSecs int    `json:"check_after_secs,omitempty"`
}

// Media processing states.
const (
	MediaProcessingPending    = "pending"
	MediaProcessingInProgress = "in_progress"
	MediaProcessingSucceeded  = "succeeded"
	MediaProcessingFailed     = "failed"
)

// MediaUploadResponse is the body of INIT/FINALIZE/STATUS upload calls.
type MediaUploadResponse struct {
	MediaIDString  ID                         `json:"media_id_string,omitempty"`
	ProcessingInfo *MediaUploadProcessingInfo `json:"processing_info,omitempty"`
	Error          string                     `json:"error,omitempty"`
}

// SendDMResponse is the GraphQL mutation result of a message send.
type SendDMResponse struct {
	ErrorEnvelope

	Data struct {
		CreateDM struct {
			Typename                string `json:"__typename,omitempty"`
			DMValidationFailureType string `json:"dm_validation_failure_type,omitempty"`
		} `json:"create_dm"`
	} `json:"data"`
}

// CreateDMSuccess is the __typename of a successful send.
const CreateDMSuccess = "CreateDmSuccess"

// TypingIndicatorResponse is the GraphQL result of a typing notification.
type TypingIndicatorResponse struct {
	ErrorEnvelope

	Data struct {
		PostTypingIndicator struct {
			Typename string `json:"__typename,omitempty"`
		} `json:"post_typing_indicator"`
	} `json:"data"`
}

// TypingIndicatorSuccess is the __typename of a delivered typing signal.
const TypingIndicatorSuccess = "TypingIndicatorSuccess"

// VerifyCredentialsResponse identifies the logged-in account.
type VerifyCredentialsResponse struct {
	ErrorEnvelope
	User
}

// TypeaheadResponse is the contact search result.
type TypeaheadResponse struct {
	ErrorEnvelope

	Users []User `json:"users,omitempty"`
}

// ConversationResponse resolves a participant set to a conversation.
type ConversationResponse struct {
	ErrorEnvelope

	ConversationTimeline *InboxState `json:"conversation_timeline,omitempty"`
}
