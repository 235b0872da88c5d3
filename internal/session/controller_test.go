package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/roasbeef/skylark/internal/client"
	"github.com/roasbeef/skylark/internal/live"
	"github.com/roasbeef/skylark/internal/model"
	"github.com/roasbeef/skylark/internal/wire"
	"github.com/stretchr/testify/require"
)

const (
	waitTimeout = 3 * time.Second
	waitTick    = 10 * time.Millisecond
)

// makeSnowflake fabricates an id whose embedded timestamp is the given
// milliseconds after the platform epoch.
func makeSnowflake(offsetMillis int64) string {
	return fmt.Sprintf("%d", uint64(offsetMillis)<<22)
}

type fakeAPI struct {
	mu sync.Mutex

	user  wire.User
	inbox *wire.InboxState

	// pollResponses is a script of UserUpdates bodies, consumed one per
	// call; an exhausted script answers with an empty body.
	pollResponses []*wire.UserUpdatesResponse
	pollCursors   []string

	// pollGate, when set, stalls UserUpdates until it is closed.
	// pollStarts counts calls that entered UserUpdates, gated or not.
	pollGate   chan struct{}
	pollStarts int

	timeline     *wire.InboxState
	timelineReqs int

	conversation *wire.InboxState
	resolved     *wire.InboxState

	sent      []client.SendMessageRequest
	uploads   int
	mediaID   string
	markReads []string
	lastSeen  []string
	reactions []string
	removed   []string
	typing    []string
	deleted   []string
	muted     []string
	unmuted   []string
	accepted  []string
	dropped   []string
	renamed   []string
	avatars   []string
	invited   [][]string

	searchUsers []wire.User
}

func (f *fakeAPI) VerifyCredentials(context.Context) (*wire.User, error) {
	return &f.user, nil
}

func (f *fakeAPI) InboxInitialState(context.Context) (*wire.InboxState,
	error) {

	return f.inbox, nil
}

func (f *fakeAPI) InboxTimeline(_ context.Context, _ client.InboxFolder,
	_ string) (*wire.InboxState, error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.timelineReqs++
	if f.timeline != nil {
		return f.timeline, nil
	}

	return &wire.InboxState{Status: wire.ConversationStatusAtEnd}, nil
}

func (f *fakeAPI) ConversationTimeline(_ context.Context, _,
	_ string) (*wire.InboxState, error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conversation != nil {
		return f.conversation, nil
	}

	return &wire.InboxState{Status: wire.ConversationStatusAtEnd}, nil
}

func (f *fakeAPI) ResolveConversation(_ context.Context,
	_ []string) (*wire.InboxState, error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.resolved, nil
}

func (f *fakeAPI) UserUpdates(_ context.Context, cursor string) (
	*wire.UserUpdatesResponse, client.RateLimitState, error) {

	f.mu.Lock()
	f.pollStarts++
	gate := f.pollGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.pollCursors = append(f.pollCursors, cursor)

	limits := client.RateLimitState{Remaining: -1}
	if len(f.pollResponses) == 0 {
		return &wire.UserUpdatesResponse{}, limits, nil
	}

	resp := f.pollResponses[0]
	f.pollResponses = f.pollResponses[1:]

	return resp, limits, nil
}

func (f *fakeAPI) SendMessage(_ context.Context,
	req client.SendMessageRequest) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, req)

	return nil
}

func (f *fakeAPI) DeleteMessage(_ context.Context, _,
	messageID string) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, messageID)

	return nil
}

func (f *fakeAPI) SendTypingIndicator(_ context.Context,
	threadID string) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.typing = append(f.typing, threadID)

	return nil
}

func (f *fakeAPI) AddReaction(_ context.Context, _, _,
	reactionKey string) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.reactions = append(f.reactions, reactionKey)

	return nil
}

func (f *fakeAPI) RemoveReaction(_ context.Context, _, _,
	reactionKey string) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.removed = append(f.removed, reactionKey)

	return nil
}

func (f *fakeAPI) MarkRead(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.markReads = append(f.markReads, messageID)

	return nil
}

func (f *fakeAPI) UpdateLastSeenEventID(_ context.Context,
	lastSeenEventID string) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastSeen = append(f.lastSeen, lastSeenEventID)

	return nil
}

func (f *fakeAPI) UploadMedia(_ context.Context, _ string, _ []byte,
	_ string) (string, error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.uploads++
	if f.mediaID != "" {
		return f.mediaID, nil
	}

	return "media-1", nil
}

func (f *fakeAPI) UpdateConversationName(_ context.Context, _,
	title string) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.renamed = append(f.renamed, title)

	return nil
}

func (f *fakeAPI) UpdateConversationAvatar(_ context.Context, _,
	avatarID string) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.avatars = append(f.avatars, avatarID)

	return nil
}

func (f *fakeAPI) AddParticipants(_ context.Context, _ string,
	participantIDs []string) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.invited = append(f.invited, participantIDs)

	return nil
}

func (f *fakeAPI) DisableNotifications(_ context.Context, threadID string,
	_ int) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.muted = append(f.muted, threadID)

	return nil
}

func (f *fakeAPI) EnableNotifications(_ context.Context,
	threadID string) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.unmuted = append(f.unmuted, threadID)

	return nil
}

func (f *fakeAPI) AcceptConversation(_ context.Context,
	threadID string) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.accepted = append(f.accepted, threadID)

	return nil
}

func (f *fakeAPI) DeleteConversation(_ context.Context,
	threadID string) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.dropped = append(f.dropped, threadID)

	return nil
}

func (f *fakeAPI) Typeahead(_ context.Context, _ string) ([]wire.User,
	error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.searchUsers, nil
}

func (f *fakeAPI) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.pollCursors)
}

func (f *fakeAPI) setPollGate(gate chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pollGate = gate
}

func (f *fakeAPI) pollStartCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.pollStarts
}

func (f *fakeAPI) lastPollCursor() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.pollCursors) == 0 {
		return ""
	}

	return f.pollCursors[len(f.pollCursors)-1]
}

// fakeStream implements live.Stream: a buffered frame channel the tests
// push into.
type fakeStream struct {
	frames chan *wire.LiveFrame

	closeOnce sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{frames: make(chan *wire.LiveFrame, 8)}
}

func (s *fakeStream) Frames() <-chan *wire.LiveFrame { return s.frames }

func (s *fakeStream) Err() error { return nil }

func (s *fakeStream) Close() {
	s.closeOnce.Do(func() { close(s.frames) })
}

// fakeTransport implements live.Transport. Every opened stream immediately
// delivers a handshake frame so the subscription session exists.
type fakeTransport struct {
	mu sync.Mutex

	streams []*fakeStream
	updates [][]string
}

func (t *fakeTransport) OpenStream(_ context.Context,
	_ []string) (live.Stream, error) {

	t.mu.Lock()
	defer t.mu.Unlock()

	stream := newFakeStream()
	stream.frames <- &wire.LiveFrame{
		Topic: wire.SystemConfigTopic,
		Payload: wire.LivePayload{
			Config: &wire.SessionConfig{
				SessionID:             "sess-1",
				SubscriptionTTLMillis: 120000,
			},
		},
	}
	t.streams = append(t.streams, stream)

	return stream, nil
}

func (t *fakeTransport) UpdateSubscriptions(_ context.Context, _ string,
	sub, _ []string) error {

	t.mu.Lock()
	defer t.mu.Unlock()

	t.updates = append(t.updates, append([]string(nil), sub...))

	return nil
}

func (t *fakeTransport) stream() *fakeStream {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.streams) == 0 {
		return nil
	}

	return t.streams[len(t.streams)-1]
}

// subscribedTo reports whether any subscription update asserted the topic.
func (t *fakeTransport) subscribedTo(topic string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, sub := range t.updates {
		for _, s := range sub {
			if s == topic {
				return true
			}
		}
	}

	return false
}

// eventRecorder collects the batches a session hands to the host.
type eventRecorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *eventRecorder) handle(events []model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, events...)
}

func (r *eventRecorder) all() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]model.Event(nil), r.events...)
}

// find returns the first recorded event of type T.
func findEvent[T model.Event](r *eventRecorder) (T, bool) {
	for _, ev := range r.all() {
		if typed, ok := ev.(T); ok {
			return typed, true
		}
	}

	var zero T
	return zero, false
}

func messageEntry(id, threadID, senderID, text string,
	timeMillis int64) wire.Envelope {

	return wire.Envelope{
		Kind: wire.EntryMessage,
		Entry: wire.Entry{
			ID:             wire.ID(id),
			Time:           wire.Millis(timeMillis),
			ConversationID: wire.ID(threadID),
			MessageData: &wire.MessageData{
				SenderID: wire.ID(senderID),
				Text:     text,
			},
		},
	}
}

func testInbox() *wire.InboxState {
	dmAble := true

	return &wire.InboxState{
		Cursor: "cursor-1",
		Entries: []wire.Envelope{
			messageEntry(
				makeSnowflake(1000), "t1", "u2", "hello", 1000,
			),
		},
		Conversations: map[string]*wire.Conversation{
			"t1": {
				ConversationID: "t1",
				Type:           wire.ConversationOneToOne,
				Trusted:        true,
				SortTimestamp:  1000,
				Status:         wire.ConversationStatusAtEnd,
				Participants: []wire.ThreadParticipant{
					{UserID: "me"},
					{UserID: "u2"},
				},
			},
		},
		Users: map[string]*wire.User{
			"me": {
				IDStr:      "me",
				ScreenName: "self",
				Name:       "Self",
				IsDMAble:   &dmAble,
			},
			"u2": {
				IDStr:      "u2",
				ScreenName: "friend",
				Name:       "Friend",
				IsDMAble:   &dmAble,
			},
		},
		InboxTimelines: &wire.InboxTimelines{
			Trusted: &wire.InboxTimelineState{
				Status: wire.ConversationStatusAtEnd,
			},
		},
	}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		user: wire.User{
			IDStr:      "me",
			ScreenName: "self",
			Name:       "Self",
		},
		inbox: testInbox(),
	}
}

// startedSession subscribes a session against the fakes and returns all
// three. Poll intervals are an hour so only Poke-driven cycles run beyond
// the first.
func startedSession(t *testing.T) (*Session, *fakeAPI, *fakeTransport,
	*eventRecorder) {

	t.Helper()

	api := newFakeAPI()
	transport := &fakeTransport{}
	recorder := &eventRecorder{}

	sess := Start(Config{
		API:               api,
		Transport:         transport,
		PollShortInterval: time.Hour,
		PollLongInterval:  time.Hour,
	})
	t.Cleanup(func() {
		_ = sess.Dispose(context.Background())
	})

	user, err := sess.SubscribeToEvents(
		context.Background(), recorder.handle,
	)
	require.NoError(t, err)
	require.Equal(t, "me", user.ID)
	require.Equal(t, "self", user.Username)

	return sess, api, transport, recorder
}

// TestSubscribeEmitsInitialSnapshot verifies that subscribing emits the
// inbox snapshot as a thread upsert before any poll cycle runs.
func TestSubscribeEmitsInitialSnapshot(t *testing.T) {
	t.Parallel()

	_, _, _, recorder := startedSession(t)

	upsert, ok := findEvent[*model.ThreadUpsert](recorder)
	require.True(t, ok)
	require.Len(t, upsert.Threads, 1)
	require.Equal(t, "t1", upsert.Threads[0].ID)
	require.Len(t, upsert.Threads[0].Messages, 1)
	require.Equal(t, "hello", upsert.Threads[0].Messages[0].Text)
}

// TestSubscribeTwiceFails verifies the handler can be installed only once.
func TestSubscribeTwiceFails(t *testing.T) {
	t.Parallel()

	sess, _, _, _ := startedSession(t)

	_, err := sess.SubscribeToEvents(
		context.Background(), func([]model.Event) {},
	)
	require.ErrorContains(t, err, "already subscribed")
}

// TestGetThreadsServesSnapshotFirst verifies the first page comes from the
// subscribe-time snapshot and only older pages hit the network.
func TestGetThreadsServesSnapshotFirst(t *testing.T) {
	t.Parallel()

	sess, api, _, _ := startedSession(t)
	ctx := context.Background()

	page, err := sess.GetThreads(
		ctx, model.FolderNormal, model.PaginationArg{},
	)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.False(t, page.HasMore)

	api.mu.Lock()
	calls := api.timelineReqs
	api.mu.Unlock()
	require.Zero(t, calls)

	_, err = sess.GetThreads(ctx, model.FolderNormal, model.PaginationArg{
		Cursor: makeSnowflake(500),
	})
	require.NoError(t, err)

	api.mu.Lock()
	calls = api.timelineReqs
	api.mu.Unlock()
	require.Equal(t, 1, calls)
}

// TestGetMessagesPagination verifies message pages carry ordering and
// paging state from the conversation timeline.
func TestGetMessagesPagination(t *testing.T) {
	t.Parallel()

	sess, api, _, _ := startedSession(t)

	api.mu.Lock()
	api.conversation = &wire.InboxState{
		MinEntryID: wire.ID(makeSnowflake(1)),
		Entries: []wire.Envelope{
			messageEntry(makeSnowflake(5), "t1", "u2", "five", 5),
			messageEntry(makeSnowflake(1), "t1", "u2", "one", 1),
		},
		Conversations: map[string]*wire.Conversation{
			"t1": {
				ConversationID: "t1",
				Type:           wire.ConversationOneToOne,
				Status:         "HAS_MORE",
			},
		},
	}
	api.mu.Unlock()

	page, err := sess.GetMessages(
		context.Background(), "t1", model.PaginationArg{},
	)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, "one", page.Items[0].Text)
	require.Equal(t, "five", page.Items[1].Text)
	require.True(t, page.HasMore)
	require.Equal(t, makeSnowflake(1), page.OldestCursor)
}

// TestSendMessageUploadsMedia verifies attached media is uploaded before
// the send and its id rides along.
func TestSendMessageUploadsMedia(t *testing.T) {
	t.Parallel()

	sess, api, _, _ := startedSession(t)

	err := sess.SendMessage(context.Background(), model.SendMessageOptions{
		ThreadID:   "t1",
		Text:       "look",
		FileBuffer: []byte{0xFF, 0xD8, 0xFF, 0xE0},
		MimeType:   "image/jpeg",
	})
	require.NoError(t, err)

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Equal(t, 1, api.uploads)
	require.Len(t, api.sent, 1)
	require.Equal(t, "look", api.sent[0].Text)
	require.Equal(t, "t1", api.sent[0].ThreadID)
	require.Equal(t, "media-1", api.sent[0].MediaID)
}

// TestReadReceiptDedupe verifies the read marker is only pushed forward,
// never repeated or moved backwards.
func TestReadReceiptDedupe(t *testing.T) {
	t.Parallel()

	sess, api, _, _ := startedSession(t)
	ctx := context.Background()

	older := makeSnowflake(2_000_000)
	newer := makeSnowflake(3_000_000)

	sent, err := sess.SendReadReceipt(ctx, "t1", older)
	require.NoError(t, err)
	require.True(t, sent)

	// Same id again: already covered.
	sent, err = sess.SendReadReceipt(ctx, "t1", older)
	require.NoError(t, err)
	require.False(t, sent)

	// Newer id: pushed.
	sent, err = sess.SendReadReceipt(ctx, "t1", newer)
	require.NoError(t, err)
	require.True(t, sent)

	// Older id after newer: covered.
	sent, err = sess.SendReadReceipt(ctx, "t1", older)
	require.NoError(t, err)
	require.False(t, sent)

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Equal(t, []string{older, newer}, api.markReads)
}

// TestAddReactionValidatesKey verifies unsupported reactions fail without a
// network call and glyphs resolve to the platform's named keys.
func TestAddReactionValidatesKey(t *testing.T) {
	t.Parallel()

	sess, api, _, _ := startedSession(t)
	ctx := context.Background()

	err := sess.AddReaction(ctx, "t1", "m1", "sparkles")
	require.ErrorContains(t, err, "unsupported reaction")

	require.NoError(t, sess.AddReaction(ctx, "t1", "m1", "❤️"))
	require.NoError(t, sess.AddReaction(ctx, "t1", "m1", "funny"))
	require.NoError(t, sess.RemoveReaction(ctx, "t1", "m1", "🔥"))

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Equal(t, []string{"like", "funny"}, api.reactions)
	require.Equal(t, []string{"excited"}, api.removed)
}

// TestThreadSelectedNarrowsTopics verifies focusing a thread subscribes to
// its typing topic.
func TestThreadSelectedNarrowsTopics(t *testing.T) {
	t.Parallel()

	sess, _, transport, _ := startedSession(t)

	err := sess.OnThreadSelected(context.Background(), "t1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return transport.subscribedTo(live.TypingTopic("t1"))
	}, waitTimeout, waitTick)
}

// TestLiveTypingForwarded verifies push typing frames surface as activity
// events.
func TestLiveTypingForwarded(t *testing.T) {
	t.Parallel()

	_, _, transport, recorder := startedSession(t)

	require.Eventually(t, func() bool {
		return transport.stream() != nil
	}, waitTimeout, waitTick)

	transport.stream().frames <- &wire.LiveFrame{
		Topic: live.TypingTopic("t1"),
		Payload: wire.LivePayload{
			DMTyping: &wire.TopicEvent{
				ConversationID: "t1",
				UserID:         "u2",
			},
		},
	}

	require.Eventually(t, func() bool {
		activity, ok := findEvent[*model.UserActivity](recorder)
		return ok && activity.ThreadID == "t1" &&
			activity.ParticipantID == "u2" &&
			activity.Type == model.ActivityTyping
	}, waitTimeout, waitTick)
}

// TestUpdatePingTriggersPoll verifies a dm_update push frame causes an
// immediate poll cycle even with an idle-length interval.
func TestUpdatePingTriggersPoll(t *testing.T) {
	t.Parallel()

	_, api, transport, _ := startedSession(t)

	require.Eventually(t, func() bool {
		return transport.stream() != nil && api.pollCount() >= 1
	}, waitTimeout, waitTick)
	before := api.pollCount()

	transport.stream().frames <- &wire.LiveFrame{
		Topic: live.UpdateTopic("me"),
		Payload: wire.LivePayload{
			DMUpdate: &wire.TopicEvent{ConversationID: "t1"},
		},
	}

	require.Eventually(t, func() bool {
		return api.pollCount() > before
	}, waitTimeout, waitTick)
}

// TestSlowPollDoesNotBlockRequests verifies that a stalled update fetch
// leaves the controller free to answer host requests.
func TestSlowPollDoesNotBlockRequests(t *testing.T) {
	t.Parallel()

	sess, api, transport, _ := startedSession(t)

	require.Eventually(t, func() bool {
		return transport.stream() != nil && api.pollCount() >= 1
	}, waitTimeout, waitTick)

	gate := make(chan struct{})
	api.setPollGate(gate)
	defer close(gate)

	before := api.pollStartCount()
	transport.stream().frames <- &wire.LiveFrame{
		Topic: live.UpdateTopic("me"),
		Payload: wire.LivePayload{
			DMUpdate: &wire.TopicEvent{ConversationID: "t1"},
		},
	}

	require.Eventually(t, func() bool {
		return api.pollStartCount() > before
	}, waitTimeout, waitTick)

	// The fetch is now parked on the gate. The actor must still serve.
	ctx, cancel := context.WithTimeout(
		context.Background(), time.Second,
	)
	defer cancel()

	page, err := sess.GetThreads(
		ctx, model.FolderNormal, model.PaginationArg{},
	)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
}

// TestPollBatchEmitsAndAdvancesCursor verifies poll entries surface as
// canonical events and the cursor moves to the response's value.
func TestPollBatchEmitsAndAdvancesCursor(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	api.pollResponses = []*wire.UserUpdatesResponse{{
		UserEvents: &wire.InboxState{
			Cursor: "cursor-2",
			Entries: []wire.Envelope{
				messageEntry(
					makeSnowflake(2000), "t1", "u2",
					"fresh", 2000,
				),
			},
			Conversations: map[string]*wire.Conversation{
				"t1": {
					ConversationID: "t1",
					Type:           wire.ConversationOneToOne,
				},
			},
		},
	}}

	transport := &fakeTransport{}
	recorder := &eventRecorder{}

	sess := Start(Config{
		API:               api,
		Transport:         transport,
		PollShortInterval: 20 * time.Millisecond,
		PollLongInterval:  20 * time.Millisecond,
	})
	t.Cleanup(func() {
		_ = sess.Dispose(context.Background())
	})

	_, err := sess.SubscribeToEvents(
		context.Background(), recorder.handle,
	)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		upsert, ok := findEvent[*model.MessageUpsert](recorder)
		return ok && len(upsert.Messages) == 1 &&
			upsert.Messages[0].Text == "fresh"
	}, waitTimeout, waitTick)

	// The cycle after the batch polls at the advanced cursor.
	require.Eventually(t, func() bool {
		return api.lastPollCursor() == "cursor-2"
	}, waitTimeout, waitTick)
}

// TestSearchUsers verifies typeahead results map to canonical users.
func TestSearchUsers(t *testing.T) {
	t.Parallel()

	sess, api, _, _ := startedSession(t)

	api.mu.Lock()
	api.searchUsers = []wire.User{{
		IDStr:      "u9",
		ScreenName: "niner",
		Name:       "Nine",
	}}
	api.mu.Unlock()

	users, err := sess.SearchUsers(context.Background(), "nin")
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "u9", users[0].ID)
	require.Equal(t, "niner", users[0].Username)
}

// TestCreateThreadResolvesAndNames verifies thread creation resolves the
// participant set and applies the title to groups.
func TestCreateThreadResolvesAndNames(t *testing.T) {
	t.Parallel()

	sess, api, _, _ := startedSession(t)

	api.mu.Lock()
	api.resolved = &wire.InboxState{
		Conversations: map[string]*wire.Conversation{
			"g1": {
				ConversationID: "g1",
				Type:           wire.ConversationGroupDM,
				Participants: []wire.ThreadParticipant{
					{UserID: "me"},
					{UserID: "u2"},
					{UserID: "u3"},
				},
			},
		},
	}
	api.mu.Unlock()

	thread, err := sess.CreateThread(
		context.Background(), []string{"u2", "u3"}, "plans",
	)
	require.NoError(t, err)
	require.Equal(t, "g1", thread.ID)
	require.Equal(t, model.ThreadGroup, thread.Type)
	require.Equal(t, "plans", thread.Title)

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Equal(t, []string{"plans"}, api.renamed)
}

// TestMuteUnmute verifies mute state changes call the right endpoints and
// patch the thread.
func TestMuteUnmute(t *testing.T) {
	t.Parallel()

	sess, api, _, recorder := startedSession(t)
	ctx := context.Background()

	require.NoError(t, sess.MuteThread(ctx, "t1", true))
	require.NoError(t, sess.MuteThread(ctx, "t1", false))

	api.mu.Lock()
	require.Equal(t, []string{"t1"}, api.muted)
	require.Equal(t, []string{"t1"}, api.unmuted)
	api.mu.Unlock()

	update, ok := findEvent[*model.ThreadUpdate](recorder)
	require.True(t, ok)
	require.NotNil(t, update.Patch.MutedForever)
}

// TestDisposeRejectsFurtherRequests verifies dispose is idempotent and
// later requests fail.
func TestDisposeRejectsFurtherRequests(t *testing.T) {
	t.Parallel()

	sess, _, _, _ := startedSession(t)
	ctx := context.Background()

	require.NoError(t, sess.Dispose(ctx))
	require.NoError(t, sess.Dispose(ctx))

	_, err := sess.GetThreads(
		ctx, model.FolderNormal, model.PaginationArg{},
	)
	require.Error(t, err)
}
