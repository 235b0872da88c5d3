// Package notifications surfaces the account's notification feed as one
// synthetic read-only thread. The upstream timeline arrives as a list of
// instructions (add entries, remove entries, unread watermarking) that are
// replayed into a flat message page; heart reactions on entries bridge to
// the platform's post like mutation.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/roasbeef/skylark/internal/client"
	"github.com/roasbeef/skylark/internal/mapper"
	"github.com/roasbeef/skylark/internal/model"
	"github.com/roasbeef/skylark/internal/poll"
	"github.com/roasbeef/skylark/internal/wire"
)

// ThreadID is the id of the synthetic notifications thread.
const ThreadID = "notifications"

// headCursor is the poll loop's fixed cursor: every cycle refreshes the
// head of the feed rather than resuming a server cursor.
const headCursor = "head"

// ErrInvalidReaction is returned for any reaction other than the heart;
// notification entries only support liking the underlying post.
var ErrInvalidReaction = errors.New("notifications support only heart " +
	"reactions")

// heartKeys are the accepted spellings of the heart reaction.
var heartKeys = map[string]struct{}{
	"heart": {},
	"like":  {},
	"❤️":    {},
}

// API is the upstream surface the engine drives. *client.Client is the
// production implementation.
type API interface {
	Notifications(ctx context.Context, cursor string) (
		*wire.NotificationsResponse, client.RateLimitState, error)
	NotificationsLastSeenCursor(ctx context.Context, cursor string) error
	FavoriteTweet(ctx context.Context, tweetID string) error
	UnfavoriteTweet(ctx context.Context, tweetID string) error
}

// Compile-time check that the production client satisfies the surface.
var _ API = (*client.Client)(nil)

// Config parameterizes an Engine.
type Config struct {
	// API drives the notifications endpoints.
	API API

	// CurrentUser titles the synthetic thread and owns the bridged
	// heart reactions.
	CurrentUser model.User

	// OnEvent receives message upserts discovered by the poll loop.
	OnEvent func(events []model.Event)

	// PollInterval overrides the refresh cadence.
	PollInterval time.Duration
}

// Engine owns the notifications feed state: the entry-to-post index behind
// reaction bridging, the unread watermark cursor, and the poll loop that
// discovers new entries.
type Engine struct {
	cfg Config

	poller *poll.Poller

	mu sync.Mutex

	// tweetByEntry resolves a notification message id to the post it
	// acts on, for the like bridge.
	tweetByEntry map[string]string

	// topCursor is the newest page cursor seen, pushed upstream as the
	// last-seen watermark on MarkRead.
	topCursor string

	// known filters already-emitted entries out of poll refreshes.
	known map[string]struct{}

	startOnce   sync.Once
	disposeOnce sync.Once
}

// NewEngine creates a stopped engine. Start launches the refresh loop.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:          cfg,
		tweetByEntry: make(map[string]string),
		known:        make(map[string]struct{}),
	}
}

// page is the outcome of replaying one feed response.
type page struct {
	messages  []model.Message
	topCursor string
	bottom    string
}

// replay runs the timeline instructions in order against an empty page,
// the way the web client builds the screen.
func (e *Engine) replay(resp *wire.NotificationsResponse) page {
	var out page
	objects := resp.GlobalObjects
	if objects == nil {
		return out
	}

	for _, instruction := range resp.Timeline.Instructions {
		switch instruction.Kind {
		case wire.InstructionAddEntries:
			for _, entry := range instruction.Body.Entries {
				e.addEntry(&out, objects, entry)
			}

		case wire.InstructionRemoveEntries:
			for _, id := range instruction.Body.EntryIDs {
				removeMessage(&out.messages, id)
			}

		case wire.InstructionMarkUnread:
			unreadFrom := time.UnixMilli(
				int64(instruction.Body.SortIndex),
			)
			for i := range out.messages {
				seen := !out.messages[i].Timestamp.After(
					unreadFrom,
				)
				out.messages[i].Seen = seen
			}

		case wire.InstructionClearCache, wire.InstructionClearUnread:
			// Screen-state bookkeeping with no message effect.

		default:
			log.Warnf("Unrecognized timeline instruction %q",
				instruction.RawKind)
		}
	}

	sort.SliceStable(out.messages, func(i, j int) bool {
		return out.messages[i].Timestamp.Before(
			out.messages[j].Timestamp,
		)
	})

	return out
}

// addEntry folds one timeline entry into the page: a paging cursor, a bare
// post, or an aggregate notification.
func (e *Engine) addEntry(out *page,
	objects *wire.NotificationGlobalObjects, entry wire.TimelineEntry) {

	if op := entry.Content.Operation; op != nil {
		switch op.Cursor.CursorType {
		case wire.CursorTop:
			out.topCursor = op.Cursor.Value
		case wire.CursorBottom:
			out.bottom = op.Cursor.Value
		}

		return
	}

	item := entry.Content.Item
	if item == nil {
		return
	}

	switch {
	case item.Content.Tweet != nil:
		tweetID := item.Content.Tweet.ID.String()
		msg, ok := mapper.MapTweetNotification(
			objects, &entry, tweetID, e.cfg.CurrentUser.ID,
		)
		if !ok {
			return
		}

		e.tweetByEntry[entry.EntryID] = tweetID
		msg.ThreadID = ThreadID
		out.messages = append(out.messages, msg)

	case item.Content.Notification != nil:
		ref := item.Content.Notification
		notification := objects.Notifications[ref.ID.String()]

		var linkURL string
		if ref.URL != nil {
			linkURL = ref.URL.URL
		}

		msg, ok := mapper.MapNotification(
			objects, entry.EntryID, notification, linkURL,
			e.cfg.CurrentUser.ID,
		)
		if !ok {
			return
		}

		if tweetID := mapper.NotificationTweetID(
			notification,
		); tweetID != "" {
			e.tweetByEntry[entry.EntryID] = tweetID
		}
		msg.ThreadID = ThreadID
		out.messages = append(out.messages, msg)
	}
}

func removeMessage(messages *[]model.Message, id string) {
	for i, m := range *messages {
		if m.ID == id {
			*messages = append((*messages)[:i], (*messages)[i+1:]...)
			return
		}
	}
}

// Messages fetches one page of the feed. An empty cursor fetches the head;
// the returned OldestCursor pages backwards.
func (e *Engine) Messages(ctx context.Context,
	cursor string) (model.Page[model.Message], error) {

	resp, _, err := e.cfg.API.Notifications(ctx, cursor)
	if err != nil {
		return model.Page[model.Message]{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := e.replay(resp)
	if out.topCursor != "" && cursor == "" {
		e.topCursor = out.topCursor
	}
	for _, m := range out.messages {
		e.known[m.ID] = struct{}{}
	}

	return model.Page[model.Message]{
		Items:        out.messages,
		HasMore:      out.bottom != "",
		OldestCursor: out.bottom,
	}, nil
}

// Thread builds the synthetic read-only thread around the head page.
func (e *Engine) Thread(ctx context.Context) (model.Thread, error) {
	messages, err := e.Messages(ctx, "")
	if err != nil {
		return model.Thread{}, err
	}

	name := e.cfg.CurrentUser.FullName
	if name == "" {
		name = e.cfg.CurrentUser.Username
	}

	isUnread := false
	for _, m := range messages.Items {
		if !m.Seen {
			isUnread = true
			break
		}
	}

	var timestamp time.Time
	if n := len(messages.Items); n > 0 {
		timestamp = messages.Items[n-1].Timestamp
	}

	return model.Thread{
		ID:              ThreadID,
		Type:            model.ThreadChannel,
		Title:           fmt.Sprintf("Notifications for %s", name),
		IsReadOnly:      true,
		IsUnread:        isUnread,
		Folder:          model.FolderNormal,
		Timestamp:       timestamp,
		Messages:        messages.Items,
		Participants:    threadParticipants(messages.Items),
		HasMoreMessages: messages.HasMore,
		OldestCursor:    messages.OldestCursor,
	}, nil
}

// threadParticipants derives one synthetic participant per notification
// category present in the page, so hosts can render sender avatars.
func threadParticipants(messages []model.Message) []model.Participant {
	seen := make(map[string]struct{})
	var out []model.Participant
	for _, m := range messages {
		if _, ok := seen[m.SenderID]; ok {
			continue
		}
		seen[m.SenderID] = struct{}{}

		out = append(out, model.Participant{
			ID:       m.SenderID,
			FullName: " ",
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// AddReaction likes the post behind a notification entry. Only the heart
// reaction is valid; anything else fails without a network call.
func (e *Engine) AddReaction(ctx context.Context, messageID,
	reactionKey string) error {

	tweetID, err := e.reactionTarget(messageID, reactionKey)
	if err != nil || tweetID == "" {
		return err
	}

	return e.cfg.API.FavoriteTweet(ctx, tweetID)
}

// RemoveReaction removes the like from the post behind a notification
// entry.
func (e *Engine) RemoveReaction(ctx context.Context, messageID,
	reactionKey string) error {

	tweetID, err := e.reactionTarget(messageID, reactionKey)
	if err != nil || tweetID == "" {
		return err
	}

	return e.cfg.API.UnfavoriteTweet(ctx, tweetID)
}

func (e *Engine) reactionTarget(messageID,
	reactionKey string) (string, error) {

	if _, ok := heartKeys[reactionKey]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidReaction,
			reactionKey)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Entries without an underlying post (follow notifications and the
	// like) silently accept the reaction, as the web client does.
	return e.tweetByEntry[messageID], nil
}

// MarkRead pushes the newest seen cursor upstream as the unread watermark.
func (e *Engine) MarkRead(ctx context.Context) error {
	e.mu.Lock()
	cursor := e.topCursor
	e.mu.Unlock()

	if cursor == "" {
		return nil
	}

	return e.cfg.API.NotificationsLastSeenCursor(ctx, cursor)
}

// Start launches the refresh loop. Each cycle re-fetches the head of the
// feed and emits entries not seen before as message upserts.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		e.poller = poll.NewPoller(poll.Config{
			Fetch:         e.refresh,
			ShortInterval: e.cfg.PollInterval,
			LongInterval:  e.cfg.PollInterval,
		})
		e.poller.SetCursor(headCursor)
		e.poller.Start(ctx)
	})
}

// refresh is the poll callback: one head fetch, new entries emitted.
func (e *Engine) refresh(ctx context.Context, _ string) (string, error) {
	resp, _, err := e.cfg.API.Notifications(ctx, "")
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	out := e.replay(resp)
	if out.topCursor != "" {
		e.topCursor = out.topCursor
	}

	var fresh []model.Message
	for _, m := range out.messages {
		if _, ok := e.known[m.ID]; ok {
			continue
		}
		e.known[m.ID] = struct{}{}
		fresh = append(fresh, m)
	}
	onEvent := e.cfg.OnEvent
	e.mu.Unlock()

	if len(fresh) > 0 && onEvent != nil {
		log.Debugf("Notification refresh found %d new entries",
			len(fresh))

		onEvent([]model.Event{&model.MessageUpsert{
			ThreadID: ThreadID,
			Messages: fresh,
		}})
	}

	return headCursor, nil
}

// Dispose stops the refresh loop. Idempotent.
func (e *Engine) Dispose() {
	e.disposeOnce.Do(func() {
		if e.poller != nil {
			e.poller.Dispose()
		}
	})
}
