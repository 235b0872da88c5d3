// Package session orchestrates the connector: it owns the authenticated
// account, the poll cursor, and the read-receipt watermarks, and wires the
// push channel and the update poller into a single canonical event stream.
// The controller is an actor; every piece of session state is touched only
// from its Receive loop, so the push reader, the keep-alive timer, and the
// poll loop never race on shared fields.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/skylark/internal/actorutil"
	"github.com/roasbeef/skylark/internal/baselib/actor"
	"github.com/roasbeef/skylark/internal/client"
	"github.com/roasbeef/skylark/internal/live"
	"github.com/roasbeef/skylark/internal/mapper"
	"github.com/roasbeef/skylark/internal/model"
	"github.com/roasbeef/skylark/internal/poll"
	"github.com/roasbeef/skylark/internal/wire"
)

var (
	// ErrDisposed is returned for requests arriving after Dispose.
	ErrDisposed = errors.New("session disposed")

	// ErrNotSubscribed is returned for operations that need the event
	// loops running before SubscribeToEvents was called.
	ErrNotSubscribed = errors.New("session not subscribed")
)

// API is the upstream surface the controller drives. *client.Client is the
// production implementation.
type API interface {
	VerifyCredentials(ctx context.Context) (*wire.User, error)
	InboxInitialState(ctx context.Context) (*wire.InboxState, error)
	InboxTimeline(ctx context.Context, folder client.InboxFolder,
		maxID string) (*wire.InboxState, error)
	ConversationTimeline(ctx context.Context, threadID,
		maxID string) (*wire.InboxState, error)
	ResolveConversation(ctx context.Context,
		participantIDs []string) (*wire.InboxState, error)
	UserUpdates(ctx context.Context, cursor string) (
		*wire.UserUpdatesResponse, client.RateLimitState, error)
	SendMessage(ctx context.Context, req client.SendMessageRequest) error
	DeleteMessage(ctx context.Context, threadID, messageID string) error
	SendTypingIndicator(ctx context.Context, threadID string) error
	AddReaction(ctx context.Context, threadID, messageID,
		reactionKey string) error
	RemoveReaction(ctx context.Context, threadID, messageID,
		reactionKey string) error
	MarkRead(ctx context.Context, threadID, messageID string) error
	UpdateLastSeenEventID(ctx context.Context,
		lastSeenEventID string) error
	UploadMedia(ctx context.Context, threadID string, data []byte,
		mimeType string) (string, error)
	UpdateConversationName(ctx context.Context, threadID,
		title string) error
	UpdateConversationAvatar(ctx context.Context, threadID,
		avatarID string) error
	AddParticipants(ctx context.Context, threadID string,
		participantIDs []string) error
	DisableNotifications(ctx context.Context, threadID string,
		duration int) error
	EnableNotifications(ctx context.Context, threadID string) error
	AcceptConversation(ctx context.Context, threadID string) error
	DeleteConversation(ctx context.Context, threadID string) error
	Typeahead(ctx context.Context, query string) ([]wire.User, error)
}

// Compile-time check that the production client satisfies the surface.
var _ API = (*client.Client)(nil)

// Config parameterizes a session.
type Config struct {
	// API drives the upstream REST and GraphQL endpoints.
	API API

	// Transport drives the push channel.
	Transport live.Transport

	// ID overrides the actor id.
	ID string

	// MailboxSize is the buffer capacity of the controller's mailbox.
	MailboxSize int

	// PollShortInterval and PollLongInterval override the poller's
	// cadence tiers.
	PollShortInterval time.Duration
	PollLongInterval  time.Duration
}

// Controller is the session actor behavior. All fields are owned by the
// Receive loop.
type Controller struct {
	cfg Config

	// self is set before the actor starts; the poll loop and the push
	// callbacks route back through it so state changes serialize.
	self actor.ActorRef[Request, Response]

	// runCtx outlives any single request and scopes the background
	// loops.
	runCtx    context.Context
	runCancel context.CancelFunc

	live   *live.Manager
	poller *poll.Poller

	handler EventHandler

	currentUser model.User

	// inbox is the initial snapshot, kept to serve the first thread
	// page without a second fetch.
	inbox *wire.InboxState

	// lastReadSent is the newest message id acknowledged per thread;
	// lastSeenSent is the account-wide watermark already pushed. Both
	// suppress redundant network calls.
	lastReadSent map[string]string
	lastSeenSent string

	disposed bool
}

// Ensure Controller implements the actor behavior.
var _ actor.Behavior[Request, Response] = (*Controller)(nil)

// Session is the host-facing handle: a typed facade over the controller
// actor, mirroring the canonical provider contract.
type Session struct {
	actor *actor.Actor[Request, Response]
	ref   actor.ActorRef[Request, Response]
}

// Start creates and starts a session controller.
func Start(cfg Config) *Session {
	ctrl := &Controller{
		cfg:          cfg,
		lastReadSent: make(map[string]string),
	}
	ctrl.runCtx, ctrl.runCancel = context.WithCancel(context.Background())

	mailboxSize := cfg.MailboxSize
	if mailboxSize <= 0 {
		mailboxSize = 100
	}

	actorID := cfg.ID
	if actorID == "" {
		actorID = "session-controller"
	}

	a := actor.New(actor.Config[Request, Response]{
		ID:          actorID,
		Behavior:    ctrl,
		MailboxSize: mailboxSize,
	})
	ctrl.self = a.Ref()
	a.Start()

	return &Session{actor: a, ref: a.Ref()}
}

// Receive implements actor.Behavior by dispatching to per-request handlers.
func (c *Controller) Receive(ctx context.Context,
	msg Request) fn.Result[Response] {

	// The internal loop messages stay harmless after Dispose; every
	// host-facing request fails fast instead.
	switch msg.(type) {
	case pollTickRequest, liveEventMsg, DisposeRequest:

	default:
		if c.disposed {
			return fn.Err[Response](ErrDisposed)
		}
	}

	switch m := msg.(type) {
	case SubscribeRequest:
		return wrap(c.handleSubscribe(ctx, m))

	case ThreadSelectedRequest:
		return wrap(c.handleThreadSelected(ctx, m))

	case GetThreadsRequest:
		return wrap(c.handleGetThreads(ctx, m))

	case GetMessagesRequest:
		return wrap(c.handleGetMessages(ctx, m))

	case SendMessageRequest:
		return wrap(c.handleSendMessage(ctx, m))

	case ActivityRequest:
		return wrap(c.handleActivity(ctx, m))

	case AddReactionRequest:
		return wrap(c.handleAddReaction(ctx, m))

	case RemoveReactionRequest:
		return wrap(c.handleRemoveReaction(ctx, m))

	case ReadReceiptRequest:
		return wrap(c.handleReadReceipt(ctx, m))

	case DeleteMessageRequest:
		return wrap(c.handleDeleteMessage(ctx, m))

	case CreateThreadRequest:
		return wrap(c.handleCreateThread(ctx, m))

	case MuteThreadRequest:
		return wrap(c.handleMuteThread(ctx, m))

	case AddParticipantsRequest:
		return wrap(c.handleAddParticipants(ctx, m))

	case UpdateThreadTitleRequest:
		return wrap(c.handleUpdateThreadTitle(ctx, m))

	case UpdateThreadImageRequest:
		return wrap(c.handleUpdateThreadImage(ctx, m))

	case AcceptThreadRequest:
		return wrap(c.handleAcceptThread(ctx, m))

	case DeleteThreadRequest:
		return wrap(c.handleDeleteThread(ctx, m))

	case SearchUsersRequest:
		return wrap(c.handleSearchUsers(ctx, m))

	case DisposeRequest:
		return wrap(c.handleDispose(ctx, m))

	case pollTickRequest:
		return wrap(c.handlePollTick(ctx, m))

	case liveEventMsg:
		return wrap(c.handleLiveEvent(ctx, m))

	default:
		return fn.Err[Response](fmt.Errorf(
			"unknown message type: %T", msg,
		))
	}
}

// wrap lifts a typed handler result into the response union.
func wrap[T Response](resp T, err error) fn.Result[Response] {
	if err != nil {
		return fn.Err[Response](err)
	}

	return fn.Ok[Response](resp)
}

// emit hands a batch to the host. Invoked on the actor goroutine; the
// handler must not block.
func (c *Controller) emit(events []model.Event) {
	if c.handler == nil || len(events) == 0 {
		return
	}

	c.handler(events)
}

// advanceLastSeen records a watermark the server already knows about, so a
// later read receipt does not re-send it.
func (c *Controller) advanceLastSeen(id string) {
	if id == "" || id == "0" {
		return
	}
	if wire.CompareSnowflakes(c.lastSeenSent, id) < 0 {
		c.lastSeenSent = id
	}
}

func (c *Controller) handleSubscribe(ctx context.Context,
	req SubscribeRequest) (SubscribeResponse, error) {

	if req.Handler == nil {
		return SubscribeResponse{}, errors.New("nil event handler")
	}
	if c.handler != nil {
		return SubscribeResponse{}, errors.New("already subscribed")
	}

	account, err := c.cfg.API.VerifyCredentials(ctx)
	if err != nil {
		return SubscribeResponse{}, fmt.Errorf(
			"verify credentials: %w", err,
		)
	}

	user, ok := mapper.MapUser(account)
	if !ok {
		return SubscribeResponse{}, errors.New(
			"verify credentials: empty account",
		)
	}
	c.currentUser = user

	state, err := c.cfg.API.InboxInitialState(ctx)
	if err != nil {
		return SubscribeResponse{}, fmt.Errorf(
			"initial inbox state: %w", err,
		)
	}

	c.inbox = state
	c.handler = req.Handler
	c.advanceLastSeen(state.LastSeenEventID.String())
	c.advanceLastSeen(state.TrustedLastSeenEventID.String())

	log.InfoS(ctx, "Session subscribed",
		"user_id", user.ID,
		"username", user.Username,
		"threads", len(state.Conversations))

	threads, _ := mapper.MapThreads(state, user.ID, "")
	if len(threads) > 0 {
		c.emit([]model.Event{&model.ThreadUpsert{Threads: threads}})
	}

	// The poller routes each cycle back through the actor so the cursor
	// and the event stream stay single-writer.
	c.poller = poll.NewPoller(poll.Config{
		Fetch:         c.fetchUpdates,
		ShortInterval: c.cfg.PollShortInterval,
		LongInterval:  c.cfg.PollLongInterval,
	})
	c.poller.SetCursor(state.Cursor)
	c.poller.Start(c.runCtx)

	c.live = live.NewManager(live.Config{
		Transport: c.cfg.Transport,
		OnEvent: func(ev model.Event) {
			c.self.Tell(c.runCtx, liveEventMsg{event: ev})
		},
		OnUpdatePing: func(string) {
			c.poller.Poke()
		},
	})
	if err := c.live.Start(c.runCtx); err != nil {
		// The manager keeps reconnecting on its own; a failed first
		// open is not fatal to the session.
		log.WarnS(ctx, "Push channel open failed, will retry", err)
	}

	err = c.live.SetSubscriptions([]string{live.UpdateTopic(user.ID)})
	if err != nil {
		log.WarnS(ctx, "Initial topic subscription failed", err)
	}

	return SubscribeResponse{CurrentUser: user}, nil
}

// fetchUpdates is the poller's fetch callback. The network call stays on
// the poll goroutine so a slow fetch never stalls the actor; only the
// decoded state is handed to handlePollTick. Fetch errors return directly
// to the poller, which classifies them for backoff.
func (c *Controller) fetchUpdates(ctx context.Context,
	cursor string) (string, error) {

	updates, limits, err := c.cfg.API.UserUpdates(ctx, cursor)
	if err != nil {
		return "", err
	}

	resp, err := actorutil.AskAwaitTyped[
		Request, Response, pollTickResponse,
	](ctx, c.self, pollTickRequest{
		cursor:        cursor,
		state:         updates.UserEvents,
		rateRemaining: limits.Remaining,
	})
	if err != nil {
		return "", err
	}

	return resp.nextCursor, nil
}

func (c *Controller) handlePollTick(ctx context.Context,
	req pollTickRequest) (pollTickResponse, error) {

	if c.disposed {
		return pollTickResponse{nextCursor: req.cursor}, nil
	}

	state := req.state
	if state == nil {
		return pollTickResponse{nextCursor: req.cursor}, nil
	}

	events := mapper.MapUserUpdates(state, c.currentUser.ID)
	c.emit(events)

	c.advanceLastSeen(state.LastSeenEventID.String())
	c.advanceLastSeen(state.TrustedLastSeenEventID.String())

	next := state.Cursor
	if next == "" {
		next = req.cursor
	}

	log.TraceS(ctx, "Poll cycle done",
		"events", len(events),
		"cursor", next,
		"rate_limit_remaining", req.rateRemaining)

	return pollTickResponse{nextCursor: next}, nil
}

func (c *Controller) handleLiveEvent(_ context.Context,
	msg liveEventMsg) (liveEventResponse, error) {

	if c.disposed || msg.event == nil {
		return liveEventResponse{}, nil
	}

	c.emit([]model.Event{msg.event})

	return liveEventResponse{}, nil
}

func (c *Controller) handleThreadSelected(_ context.Context,
	req ThreadSelectedRequest) (ThreadSelectedResponse, error) {

	if c.live == nil {
		return ThreadSelectedResponse{}, ErrNotSubscribed
	}

	var topics []string
	if req.ThreadID != "" {
		topics = []string{
			live.UpdateTopic(c.currentUser.ID),
			live.TypingTopic(req.ThreadID),
		}
	}

	return ThreadSelectedResponse{}, c.live.SetSubscriptions(topics)
}

// folderTimeline picks the folder's paging state out of the initial
// snapshot.
func folderTimeline(state *wire.InboxState,
	folder model.FolderName) *wire.InboxTimelineState {

	if state.InboxTimelines == nil {
		return nil
	}
	if folder == model.FolderRequests {
		return state.InboxTimelines.Untrusted
	}

	return state.InboxTimelines.Trusted
}

func clientFolder(folder model.FolderName) client.InboxFolder {
	if folder == model.FolderRequests {
		return client.InboxUntrusted
	}

	return client.InboxTrusted
}

func (c *Controller) handleGetThreads(ctx context.Context,
	req GetThreadsRequest) (GetThreadsResponse, error) {

	folder := req.Folder
	if folder == "" {
		folder = model.FolderNormal
	}

	// The first page comes from the snapshot taken at subscribe time;
	// only older pages hit the network.
	if req.Pagination.Cursor == "" && c.inbox != nil {
		threads, _ := mapper.MapThreads(
			c.inbox, c.currentUser.ID, folder,
		)

		page := model.Page[model.Thread]{Items: threads}
		if tl := folderTimeline(c.inbox, folder); tl != nil {
			page.HasMore = tl.Status != wire.ConversationStatusAtEnd
			page.OldestCursor = tl.MinEntryID.String()
		}

		return GetThreadsResponse{Page: page}, nil
	}

	state, err := c.cfg.API.InboxTimeline(
		ctx, clientFolder(folder), req.Pagination.Cursor,
	)
	if err != nil {
		return GetThreadsResponse{}, err
	}

	threads, _ := mapper.MapThreads(state, c.currentUser.ID, folder)

	return GetThreadsResponse{Page: model.Page[model.Thread]{
		Items:        threads,
		HasMore:      state.Status != wire.ConversationStatusAtEnd,
		OldestCursor: state.MinEntryID.String(),
	}}, nil
}

func (c *Controller) handleGetMessages(ctx context.Context,
	req GetMessagesRequest) (GetMessagesResponse, error) {

	if req.ThreadID == "" {
		return GetMessagesResponse{}, errors.New("empty thread id")
	}

	state, err := c.cfg.API.ConversationTimeline(
		ctx, req.ThreadID, req.Pagination.Cursor,
	)
	if err != nil {
		return GetMessagesResponse{}, err
	}

	conv := state.Conversations[req.ThreadID]
	messages := mapper.MapMessages(state.Entries, conv, c.currentUser.ID)

	status := state.Status
	if status == "" && conv != nil {
		status = conv.Status
	}

	oldest := state.MinEntryID.String()
	if oldest == "" && conv != nil {
		oldest = conv.MinEntryID.String()
	}

	return GetMessagesResponse{Page: model.Page[model.Message]{
		Items:        messages,
		HasMore:      status != wire.ConversationStatusAtEnd,
		OldestCursor: oldest,
	}}, nil
}

func (c *Controller) handleSendMessage(ctx context.Context,
	req SendMessageRequest) (SendMessageResponse, error) {

	opts := req.Options
	if opts.ThreadID == "" {
		return SendMessageResponse{}, errors.New("empty thread id")
	}

	data := opts.FileBuffer
	if len(data) == 0 && opts.FilePath != "" {
		var err error
		data, err = os.ReadFile(opts.FilePath)
		if err != nil {
			return SendMessageResponse{}, fmt.Errorf(
				"read attachment: %w", err,
			)
		}
	}

	var mediaID string
	if len(data) > 0 {
		mimeType := opts.MimeType
		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}

		var err error
		mediaID, err = c.cfg.API.UploadMedia(
			ctx, opts.ThreadID, data, mimeType,
		)
		if err != nil {
			return SendMessageResponse{}, fmt.Errorf(
				"upload media: %w", err,
			)
		}
	}

	err := c.cfg.API.SendMessage(ctx, client.SendMessageRequest{
		Text:     opts.Text,
		ThreadID: opts.ThreadID,
		MediaID:  mediaID,
	})
	if err != nil {
		return SendMessageResponse{}, err
	}

	// The echo of our own message arrives through the poll stream; pull
	// it in without waiting for the next tick.
	if c.poller != nil {
		c.poller.Poke()
	}

	return SendMessageResponse{}, nil
}

func (c *Controller) handleActivity(ctx context.Context,
	req ActivityRequest) (ActivityResponse, error) {

	if req.Type != model.ActivityTyping {
		return ActivityResponse{}, nil
	}

	err := c.cfg.API.SendTypingIndicator(ctx, req.ThreadID)

	return ActivityResponse{}, err
}

func (c *Controller) handleAddReaction(ctx context.Context,
	req AddReactionRequest) (ReactionResponse, error) {

	name, ok := mapper.ReactionName(req.ReactionKey)
	if !ok {
		return ReactionResponse{}, fmt.Errorf(
			"unsupported reaction %q", req.ReactionKey,
		)
	}

	err := c.cfg.API.AddReaction(ctx, req.ThreadID, req.MessageID, name)

	return ReactionResponse{}, err
}

func (c *Controller) handleRemoveReaction(ctx context.Context,
	req RemoveReactionRequest) (ReactionResponse, error) {

	name, ok := mapper.ReactionName(req.ReactionKey)
	if !ok {
		return ReactionResponse{}, fmt.Errorf(
			"unsupported reaction %q", req.ReactionKey,
		)
	}

	err := c.cfg.API.RemoveReaction(
		ctx, req.ThreadID, req.MessageID, name,
	)

	return ReactionResponse{}, err
}

func (c *Controller) handleReadReceipt(ctx context.Context,
	req ReadReceiptRequest) (ReadReceiptResponse, error) {

	if req.ThreadID == "" || req.MessageID == "" {
		return ReadReceiptResponse{}, errors.New(
			"empty thread or message id",
		)
	}

	// Skip the call when the marker already covers the message.
	if last, ok := c.lastReadSent[req.ThreadID]; ok {
		if wire.CompareSnowflakes(last, req.MessageID) >= 0 {
			return ReadReceiptResponse{Sent: false}, nil
		}
	}

	err := c.cfg.API.MarkRead(ctx, req.ThreadID, req.MessageID)
	if err != nil {
		return ReadReceiptResponse{}, err
	}
	c.lastReadSent[req.ThreadID] = req.MessageID

	if wire.CompareSnowflakes(c.lastSeenSent, req.MessageID) < 0 {
		err := c.cfg.API.UpdateLastSeenEventID(ctx, req.MessageID)
		if err != nil {
			log.WarnS(ctx, "Last seen watermark update failed",
				err, "thread_id", req.ThreadID)
		} else {
			c.lastSeenSent = req.MessageID
		}
	}

	return ReadReceiptResponse{Sent: true}, nil
}

func (c *Controller) handleDeleteMessage(ctx context.Context,
	req DeleteMessageRequest) (DeleteMessageResponse, error) {

	err := c.cfg.API.DeleteMessage(ctx, req.ThreadID, req.MessageID)
	if err != nil {
		return DeleteMessageResponse{}, err
	}

	c.emit([]model.Event{&model.MessageDelete{
		ThreadID:   req.ThreadID,
		MessageIDs: []string{req.MessageID},
	}})

	return DeleteMessageResponse{}, nil
}

func (c *Controller) handleCreateThread(ctx context.Context,
	req CreateThreadRequest) (CreateThreadResponse, error) {

	if len(req.ParticipantIDs) == 0 {
		return CreateThreadResponse{}, errors.New("no participants")
	}

	state, err := c.cfg.API.ResolveConversation(ctx, req.ParticipantIDs)
	if err != nil {
		return CreateThreadResponse{}, err
	}

	threads, _ := mapper.MapThreads(state, c.currentUser.ID, "")
	if len(threads) == 0 {
		return CreateThreadResponse{}, errors.New(
			"participant set resolved to no conversation",
		)
	}
	thread := threads[0]

	if req.Title != "" && thread.Type == model.ThreadGroup {
		err := c.cfg.API.UpdateConversationName(
			ctx, thread.ID, req.Title,
		)
		if err != nil {
			return CreateThreadResponse{}, err
		}
		thread.Title = req.Title
	}

	c.emit([]model.Event{&model.ThreadUpsert{
		Threads: []model.Thread{thread},
	}})

	return CreateThreadResponse{Thread: thread}, nil
}

func (c *Controller) handleMuteThread(ctx context.Context,
	req MuteThreadRequest) (MuteThreadResponse, error) {

	var err error
	if req.Mute {
		err = c.cfg.API.DisableNotifications(ctx, req.ThreadID, 0)
	} else {
		err = c.cfg.API.EnableNotifications(ctx, req.ThreadID)
	}
	if err != nil {
		return MuteThreadResponse{}, err
	}

	muted := req.Mute
	c.emit([]model.Event{&model.ThreadUpdate{
		ThreadID: req.ThreadID,
		Patch:    model.ThreadPatch{MutedForever: &muted},
	}})

	return MuteThreadResponse{}, nil
}

func (c *Controller) handleAddParticipants(ctx context.Context,
	req AddParticipantsRequest) (AddParticipantsResponse, error) {

	if len(req.ParticipantIDs) == 0 {
		return AddParticipantsResponse{}, errors.New("no participants")
	}

	err := c.cfg.API.AddParticipants(
		ctx, req.ThreadID, req.ParticipantIDs,
	)

	return AddParticipantsResponse{}, err
}

func (c *Controller) handleUpdateThreadTitle(ctx context.Context,
	req UpdateThreadTitleRequest) (UpdateThreadTitleResponse, error) {

	err := c.cfg.API.UpdateConversationName(
		ctx, req.ThreadID, req.Title,
	)
	if err != nil {
		return UpdateThreadTitleResponse{}, err
	}

	title := req.Title
	c.emit([]model.Event{&model.ThreadUpdate{
		ThreadID: req.ThreadID,
		Patch:    model.ThreadPatch{Title: &title},
	}})

	return UpdateThreadTitleResponse{}, nil
}

func (c *Controller) handleUpdateThreadImage(ctx context.Context,
	req UpdateThreadImageRequest) (UpdateThreadImageResponse, error) {

	if len(req.Data) == 0 {
		return UpdateThreadImageResponse{}, errors.New("empty image")
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(req.Data)
	}

	mediaID, err := c.cfg.API.UploadMedia(
		ctx, req.ThreadID, req.Data, mimeType,
	)
	if err != nil {
		return UpdateThreadImageResponse{}, fmt.Errorf(
			"upload image: %w", err,
		)
	}

	err = c.cfg.API.UpdateConversationAvatar(ctx, req.ThreadID, mediaID)

	return UpdateThreadImageResponse{}, err
}

func (c *Controller) handleAcceptThread(ctx context.Context,
	req AcceptThreadRequest) (AcceptThreadResponse, error) {

	err := c.cfg.API.AcceptConversation(ctx, req.ThreadID)
	if err != nil {
		return AcceptThreadResponse{}, err
	}

	folder := model.FolderNormal
	c.emit([]model.Event{&model.ThreadUpdate{
		ThreadID: req.ThreadID,
		Patch:    model.ThreadPatch{Folder: &folder},
	}})

	return AcceptThreadResponse{}, nil
}

func (c *Controller) handleDeleteThread(ctx context.Context,
	req DeleteThreadRequest) (DeleteThreadResponse, error) {

	err := c.cfg.API.DeleteConversation(ctx, req.ThreadID)
	if err != nil {
		return DeleteThreadResponse{}, err
	}

	c.emit([]model.Event{&model.ThreadDelete{
		ThreadIDs: []string{req.ThreadID},
	}})

	return DeleteThreadResponse{}, nil
}

func (c *Controller) handleSearchUsers(ctx context.Context,
	req SearchUsersRequest) (SearchUsersResponse, error) {

	accounts, err := c.cfg.API.Typeahead(ctx, req.Query)
	if err != nil {
		return SearchUsersResponse{}, err
	}

	users := make([]model.User, 0, len(accounts))
	for i := range accounts {
		if user, ok := mapper.MapUser(&accounts[i]); ok {
			users = append(users, user)
		}
	}

	return SearchUsersResponse{Users: users}, nil
}

func (c *Controller) handleDispose(ctx context.Context,
	_ DisposeRequest) (DisposeResponse, error) {

	if c.disposed {
		return DisposeResponse{}, nil
	}
	c.disposed = true

	if c.poller != nil {
		c.poller.Dispose()
	}
	if c.live != nil {
		c.live.Dispose()
	}
	c.runCancel()

	log.InfoS(ctx, "Session disposed", "user_id", c.currentUser.ID)

	return DisposeResponse{}, nil
}

// SubscribeToEvents starts the push and poll loops and returns the
// authenticated account. The handler receives every canonical event batch
// from then on.
func (s *Session) SubscribeToEvents(ctx context.Context,
	handler EventHandler) (model.User, error) {

	resp, err := actorutil.AskAwaitTyped[
		Request, Response, SubscribeResponse,
	](ctx, s.ref, SubscribeRequest{Handler: handler})
	if err != nil {
		return model.User{}, err
	}

	return resp.CurrentUser, nil
}

// OnThreadSelected narrows the push subscriptions to the focused thread.
// An empty threadID clears the focus.
func (s *Session) OnThreadSelected(ctx context.Context,
	threadID string) error {

	_, err := actorutil.AskAwaitTyped[
		Request, Response, ThreadSelectedResponse,
	](ctx, s.ref, ThreadSelectedRequest{ThreadID: threadID})

	return err
}

// GetThreads returns one page of threads from a folder.
func (s *Session) GetThreads(ctx context.Context, folder model.FolderName,
	pagination model.PaginationArg) (model.Page[model.Thread], error) {

	resp, err := actorutil.AskAwaitTyped[
		Request, Response, GetThreadsResponse,
	](ctx, s.ref, GetThreadsRequest{
		Folder:     folder,
		Pagination: pagination,
	})
	if err != nil {
		return model.Page[model.Thread]{}, err
	}

	return resp.Page, nil
}

// GetMessages returns one page of a thread's messages, paging backwards
// from the cursor.
func (s *Session) GetMessages(ctx context.Context, threadID string,
	pagination model.PaginationArg) (model.Page[model.Message], error) {

	resp, err := actorutil.AskAwaitTyped[
		Request, Response, GetMessagesResponse,
	](ctx, s.ref, GetMessagesRequest{
		ThreadID:   threadID,
		Pagination: pagination,
	})
	if err != nil {
		return model.Page[model.Message]{}, err
	}

	return resp.Page, nil
}

// SendMessage delivers a message, uploading attached media first.
func (s *Session) SendMessage(ctx context.Context,
	opts model.SendMessageOptions) error {

	_, err := actorutil.AskAwaitTyped[
		Request, Response, SendMessageResponse,
	](ctx, s.ref, SendMessageRequest{Options: opts})

	return err
}

// SendActivityIndicator signals the current account's typing state.
func (s *Session) SendActivityIndicator(ctx context.Context,
	threadID string, activity model.ActivityType) error {

	_, err := actorutil.AskAwaitTyped[
		Request, Response, ActivityResponse,
	](ctx, s.ref, ActivityRequest{ThreadID: threadID, Type: activity})

	return err
}

// AddReaction attaches a reaction to a message. The key may be a glyph or
// a named reaction; unsupported keys fail without a network call.
func (s *Session) AddReaction(ctx context.Context, threadID, messageID,
	reactionKey string) error {

	_, err := actorutil.AskAwaitTyped[
		Request, Response, ReactionResponse,
	](ctx, s.ref, AddReactionRequest{
		ThreadID:    threadID,
		MessageID:   messageID,
		ReactionKey: reactionKey,
	})

	return err
}

// RemoveReaction removes the current account's reaction from a message.
func (s *Session) RemoveReaction(ctx context.Context, threadID, messageID,
	reactionKey string) error {

	_, err := actorutil.AskAwaitTyped[
		Request, Response, ReactionResponse,
	](ctx, s.ref, RemoveReactionRequest{
		ThreadID:    threadID,
		MessageID:   messageID,
		ReactionKey: reactionKey,
	})

	return err
}

// SendReadReceipt moves the thread's read marker. Returns false without a
// network call when the marker already covers the message.
func (s *Session) SendReadReceipt(ctx context.Context, threadID,
	messageID string) (bool, error) {

	resp, err := actorutil.AskAwaitTyped[
		Request, Response, ReadReceiptResponse,
	](ctx, s.ref, ReadReceiptRequest{
		ThreadID:  threadID,
		MessageID: messageID,
	})
	if err != nil {
		return false, err
	}

	return resp.Sent, nil
}

// DeleteMessage removes a message for the current account.
func (s *Session) DeleteMessage(ctx context.Context, threadID,
	messageID string) error {

	_, err := actorutil.AskAwaitTyped[
		Request, Response, DeleteMessageResponse,
	](ctx, s.ref, DeleteMessageRequest{
		ThreadID:  threadID,
		MessageID: messageID,
	})

	return err
}

// CreateThread resolves a participant set to its thread, naming group
// threads when a title is given.
func (s *Session) CreateThread(ctx context.Context,
	participantIDs []string, title string) (model.Thread, error) {

	resp, err := actorutil.AskAwaitTyped[
		Request, Response, CreateThreadResponse,
	](ctx, s.ref, CreateThreadRequest{
		ParticipantIDs: participantIDs,
		Title:          title,
	})
	if err != nil {
		return model.Thread{}, err
	}

	return resp.Thread, nil
}

// MuteThread mutes or unmutes a thread's notifications.
func (s *Session) MuteThread(ctx context.Context, threadID string,
	mute bool) error {

	_, err := actorutil.AskAwaitTyped[
		Request, Response, MuteThreadResponse,
	](ctx, s.ref, MuteThreadRequest{ThreadID: threadID, Mute: mute})

	return err
}

// AddParticipants invites accounts into a group thread.
func (s *Session) AddParticipants(ctx context.Context, threadID string,
	participantIDs []string) error {

	_, err := actorutil.AskAwaitTyped[
		Request, Response, AddParticipantsResponse,
	](ctx, s.ref, AddParticipantsRequest{
		ThreadID:       threadID,
		ParticipantIDs: participantIDs,
	})

	return err
}

// UpdateThreadTitle renames a group thread.
func (s *Session) UpdateThreadTitle(ctx context.Context, threadID,
	title string) error {

	_, err := actorutil.AskAwaitTyped[
		Request, Response, UpdateThreadTitleResponse,
	](ctx, s.ref, UpdateThreadTitleRequest{
		ThreadID: threadID,
		Title:    title,
	})

	return err
}

// UpdateThreadImage sets a group thread's image from raw bytes.
func (s *Session) UpdateThreadImage(ctx context.Context, threadID string,
	data []byte, mimeType string) error {

	_, err := actorutil.AskAwaitTyped[
		Request, Response, UpdateThreadImageResponse,
	](ctx, s.ref, UpdateThreadImageRequest{
		ThreadID: threadID,
		Data:     data,
		MimeType: mimeType,
	})

	return err
}

// AcceptThread moves a message request into the normal inbox.
func (s *Session) AcceptThread(ctx context.Context, threadID string) error {
	_, err := actorutil.AskAwaitTyped[
		Request, Response, AcceptThreadResponse,
	](ctx, s.ref, AcceptThreadRequest{ThreadID: threadID})

	return err
}

// DeleteThread removes a thread from the inbox.
func (s *Session) DeleteThread(ctx context.Context, threadID string) error {
	_, err := actorutil.AskAwaitTyped[
		Request, Response, DeleteThreadResponse,
	](ctx, s.ref, DeleteThreadRequest{ThreadID: threadID})

	return err
}

// SearchUsers searches accounts for the compose screen.
func (s *Session) SearchUsers(ctx context.Context,
	query string) ([]model.User, error) {

	resp, err := actorutil.AskAwaitTyped[
		Request, Response, SearchUsersResponse,
	](ctx, s.ref, SearchUsersRequest{Query: query})
	if err != nil {
		return nil, err
	}

	return resp.Users, nil
}

// Dispose tears down the live connection and the poller, then stops the
// actor. Idempotent.
func (s *Session) Dispose(ctx context.Context) error {
	_, err := actorutil.AskAwaitTyped[
		Request, Response, DisposeResponse,
	](ctx, s.ref, DisposeRequest{})
	if errors.Is(err, actor.ErrActorTerminated) {
		return nil
	}

	s.actor.Stop()

	return err
}
