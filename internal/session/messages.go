package session

import (
	"github.com/roasbeef/skylark/internal/baselib/actor"
	"github.com/roasbeef/skylark/internal/model"
	"github.com/roasbeef/skylark/internal/wire"
)

// Request is the union type for all controller requests.
type Request interface {
	actor.Message
	isSessionRequest()
}

// Response is the union type for all controller responses.
type Response interface {
	isSessionResponse()
}

// EventHandler receives canonical event batches. It is invoked from the
// controller's own goroutine and must return promptly.
type EventHandler func(events []model.Event)

// SubscribeRequest starts the live connection and the update poller, and
// installs the handler that receives every canonical event from then on.
type SubscribeRequest struct {
	actor.BaseMessage

	// Handler receives all event batches for the session.
	Handler EventHandler
}

// MessageType implements actor.Message.
func (SubscribeRequest) MessageType() string { return "SubscribeRequest" }

// SubscribeResponse reports the authenticated account.
type SubscribeResponse struct {
	// CurrentUser is the account the session is logged in as.
	CurrentUser model.User
}

// ThreadSelectedRequest narrows the push subscriptions to the thread the
// host has focused. An empty ThreadID clears the focus.
type ThreadSelectedRequest struct {
	actor.BaseMessage

	ThreadID string
}

// MessageType implements actor.Message.
func (ThreadSelectedRequest) MessageType() string {
	return "ThreadSelectedRequest"
}

// ThreadSelectedResponse acknowledges a focus change.
type ThreadSelectedResponse struct{}

// GetThreadsRequest fetches one page of threads from a folder.
type GetThreadsRequest struct {
	actor.BaseMessage

	Folder     model.FolderName
	Pagination model.PaginationArg
}

// MessageType implements actor.Message.
func (GetThreadsRequest) MessageType() string { return "GetThreadsRequest" }

// GetThreadsResponse is one page of threads.
type GetThreadsResponse struct {
	Page model.Page[model.Thread]
}

// GetMessagesRequest fetches one page of messages from a thread, paging
// backwards from the cursor.
type GetMessagesRequest struct {
	actor.BaseMessage

	ThreadID   string
	Pagination model.PaginationArg
}

// MessageType implements actor.Message.
func (GetMessagesRequest) MessageType() string { return "GetMessagesRequest" }

// GetMessagesResponse is one page of messages, ordered oldest first.
type GetMessagesResponse struct {
	Page model.Page[model.Message]
}

// SendMessageRequest delivers a message, uploading attached media first
// when the options carry any.
type SendMessageRequest struct {
	actor.BaseMessage

	Options model.SendMessageOptions
}

// MessageType implements actor.Message.
func (SendMessageRequest) MessageType() string { return "SendMessageRequest" }

// SendMessageResponse acknowledges a delivered message.
type SendMessageResponse struct{}

// ActivityRequest signals the current account's typing state to a thread.
type ActivityRequest struct {
	actor.BaseMessage

	ThreadID string
	Type     model.ActivityType
}

// MessageType implements actor.Message.
func (ActivityRequest) MessageType() string { return "ActivityRequest" }

// ActivityResponse acknowledges a delivered activity signal.
type ActivityResponse struct{}

// AddReactionRequest attaches a reaction to a message.
type AddReactionRequest struct {
	actor.BaseMessage

	ThreadID    string
	MessageID   string
	ReactionKey string
}

// MessageType implements actor.Message.
func (AddReactionRequest) MessageType() string { return "AddReactionRequest" }

// RemoveReactionRequest removes the current account's reaction from a
// message.
type RemoveReactionRequest struct {
	actor.BaseMessage

	ThreadID    string
	MessageID   string
	ReactionKey string
}

// MessageType implements actor.Message.
func (RemoveReactionRequest) MessageType() string {
	return "RemoveReactionRequest"
}

// ReactionResponse acknowledges a reaction mutation.
type ReactionResponse struct{}

// ReadReceiptRequest moves the thread's read marker to a message.
type ReadReceiptRequest struct {
	actor.BaseMessage

	ThreadID  string
	MessageID string
}

// MessageType implements actor.Message.
func (ReadReceiptRequest) MessageType() string { return "ReadReceiptRequest" }

// ReadReceiptResponse reports whether a network call was made. Sent is
// false when the marker already covered the message.
type ReadReceiptResponse struct {
	Sent bool
}

// DeleteMessageRequest removes a message for the current account.
type DeleteMessageRequest struct {
	actor.BaseMessage

	ThreadID  string
	MessageID string
}

// MessageType implements actor.Message.
func (DeleteMessageRequest) MessageType() string {
	return "DeleteMessageRequest"
}

// DeleteMessageResponse acknowledges a deleted message.
type DeleteMessageResponse struct{}

// CreateThreadRequest resolves a participant set to its thread, naming it
// when a title is given and the thread is a group.
type CreateThreadRequest struct {
	actor.BaseMessage

	ParticipantIDs []string
	Title          string
}

// MessageType implements actor.Message.
func (CreateThreadRequest) MessageType() string { return "CreateThreadRequest" }

// CreateThreadResponse carries the resolved thread.
type CreateThreadResponse struct {
	Thread model.Thread
}

// MuteThreadRequest mutes or unmutes a thread's notifications.
type MuteThreadRequest struct {
	actor.BaseMessage

	ThreadID string
	Mute     bool
}

// MessageType implements actor.Message.
func (MuteThreadRequest) MessageType() string { return "MuteThreadRequest" }

// MuteThreadResponse acknowledges a mute change.
type MuteThreadResponse struct{}

// AddParticipantsRequest invites accounts into a group thread.
type AddParticipantsRequest struct {
	actor.BaseMessage

	ThreadID       string
	ParticipantIDs []string
}

// MessageType implements actor.Message.
func (AddParticipantsRequest) MessageType() string {
	return "AddParticipantsRequest"
}

// AddParticipantsResponse acknowledges an invite.
type AddParticipantsResponse struct{}

// UpdateThreadTitleRequest renames a group thread.
type UpdateThreadTitleRequest struct {
	actor.BaseMessage

	ThreadID string
	Title    string
}

// MessageType implements actor.Message.
func (UpdateThreadTitleRequest) MessageType() string {
	return "UpdateThreadTitleRequest"
}

// UpdateThreadTitleResponse acknowledges a rename.
type UpdateThreadTitleResponse struct{}

// UpdateThreadImageRequest sets a group thread's image from raw bytes.
type UpdateThreadImageRequest struct {
	actor.BaseMessage

	ThreadID string
	Data     []byte
	MimeType string
}

// MessageType implements actor.Message.
func (UpdateThreadImageRequest) MessageType() string {
	return "UpdateThreadImageRequest"
}

// UpdateThreadImageResponse acknowledges an image change.
type UpdateThreadImageResponse struct{}

// AcceptThreadRequest moves a message request into the normal inbox.
type AcceptThreadRequest struct {
	actor.BaseMessage

	ThreadID string
}

// MessageType implements actor.Message.
func (AcceptThreadRequest) MessageType() string { return "AcceptThreadRequest" }

// AcceptThreadResponse acknowledges an accepted request.
type AcceptThreadResponse struct{}

// DeleteThreadRequest removes a thread from the inbox.
type DeleteThreadRequest struct {
	actor.BaseMessage

	ThreadID string
}

// MessageType implements actor.Message.
func (DeleteThreadRequest) MessageType() string { return "DeleteThreadRequest" }

// DeleteThreadResponse acknowledges a removed thread.
type DeleteThreadResponse struct{}

// SearchUsersRequest searches accounts for the compose screen.
type SearchUsersRequest struct {
	actor.BaseMessage

	Query string
}

// MessageType implements actor.Message.
func (SearchUsersRequest) MessageType() string { return "SearchUsersRequest" }

// SearchUsersResponse carries the matching accounts.
type SearchUsersResponse struct {
	Users []model.User
}

// DisposeRequest tears down the live connection and the poller. Further
// requests fail with ErrDisposed.
type DisposeRequest struct {
	actor.BaseMessage
}

// MessageType implements actor.Message.
func (DisposeRequest) MessageType() string { return "DisposeRequest" }

// DisposeResponse acknowledges the teardown.
type DisposeResponse struct{}

// pollTickRequest is the internal message one poll cycle routes through the
// controller. The network fetch already happened on the poll goroutine;
// only the decoded state crosses into the actor, so host requests never
// queue behind a slow fetch.
type pollTickRequest struct {
	actor.BaseMessage

	cursor string

	// state is the decoded poll payload, nil when the response carried
	// no user events.
	state *wire.InboxState

	// rateRemaining mirrors the poll endpoint's rate limit header.
	rateRemaining int
}

// MessageType implements actor.Message.
func (pollTickRequest) MessageType() string { return "pollTickRequest" }

// pollTickResponse carries the advanced cursor back to the poll loop.
type pollTickResponse struct {
	nextCursor string
}

// liveEventMsg forwards one push-channel event into the controller.
type liveEventMsg struct {
	actor.BaseMessage

	event model.Event
}

// MessageType implements actor.Message.
func (liveEventMsg) MessageType() string { return "liveEventMsg" }

// liveEventResponse acknowledges a forwarded push event.
type liveEventResponse struct{}

// Ensure all request types implement Request.
func (SubscribeRequest) isSessionRequest()         {}
func (ThreadSelectedRequest) isSessionRequest()    {}
func (GetThreadsRequest) isSessionRequest()        {}
func (GetMessagesRequest) isSessionRequest()       {}
func (SendMessageRequest) isSessionRequest()       {}
func (ActivityRequest) isSessionRequest()          {}
func (AddReactionRequest) isSessionRequest()       {}
func (RemoveReactionRequest) isSessionRequest()    {}
func (ReadReceiptRequest) isSessionRequest()       {}
func (DeleteMessageRequest) isSessionRequest()     {}
func (CreateThreadRequest) isSessionRequest()      {}
func (MuteThreadRequest) isSessionRequest()        {}
func (AddParticipantsRequest) isSessionRequest()   {}
func (UpdateThreadTitleRequest) isSessionRequest() {}
func (UpdateThreadImageRequest) isSessionRequest() {}
func (AcceptThreadRequest) isSessionRequest()      {}
func (DeleteThreadRequest) isSessionRequest()      {}
func (SearchUsersRequest) isSessionRequest()       {}
func (DisposeRequest) isSessionRequest()           {}
func (pollTickRequest) isSessionRequest()          {}
func (liveEventMsg) isSessionRequest()             {}

// Ensure all response types implement Response.
func (SubscribeResponse) isSessionResponse()         {}
func (ThreadSelectedResponse) isSessionResponse()    {}
func (GetThreadsResponse) isSessionResponse()        {}
func (GetMessagesResponse) isSessionResponse()       {}
func (SendMessageResponse) isSessionResponse()       {}
func (ActivityResponse) isSessionResponse()          {}
func (ReactionResponse) isSessionResponse()          {}
func (ReadReceiptResponse) isSessionResponse()       {}
func (DeleteMessageResponse) isSessionResponse()     {}
func (CreateThreadResponse) isSessionResponse()      {}
func (MuteThreadResponse) isSessionResponse()        {}
func (AddParticipantsResponse) isSessionResponse()   {}
func (UpdateThreadTitleResponse) isSessionResponse() {}
func (UpdateThreadImageResponse) isSessionResponse() {}
func (AcceptThreadResponse) isSessionResponse()      {}
func (DeleteThreadResponse) isSessionResponse()      {}
func (SearchUsersResponse) isSessionResponse()       {}
func (DisposeResponse) isSessionResponse()           {}
func (pollTickResponse) isSessionResponse()          {}
func (liveEventResponse) isSessionResponse()         {}
