package notifications

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/roasbeef/skylark/internal/client"
	"github.com/roasbeef/skylark/internal/model"
	"github.com/roasbeef/skylark/internal/wire"
	"github.com/stretchr/testify/require"
)

// headFeedJSON is one head page: a liked-your-post aggregate acting on
// post tw1, a bare recommended post tw2, paging cursors on both ends, and
// an unread watermark between the two entries.
const headFeedJSON = `{
  "globalObjects": {
    "users": {
      "u2": {"id_str": "u2", "screen_name": "bob", "name": "Bob"}
    },
    "tweets": {
      "tw1": {"id_str": "tw1", "full_text": "a post", "user_id_str": "u2"},
      "tw2": {"id_str": "tw2", "full_text": "another post", "user_id_str": "u2"}
    },
    "notifications": {
      "n1": {
        "id": "n1",
        "timestampMs": 2000,
        "icon": {"id": "heart_icon"},
        "message": {"text": "Bob liked your post", "entities": []},
        "template": {"aggregateUserActionsV1": {
          "targetObjects": [{"tweet": {"id": "tw1"}}],
          "fromUsers": [{"user": {"id": "u2"}}]
        }}
      }
    }
  },
  "timeline": {"instructions": [
    {"addEntries": {"entries": [
      {"entryId": "cursor-top", "content": {"operation": {"cursor": {"cursorType": "Top", "value": "TOP1"}}}},
      {"entryId": "cursor-bottom", "content": {"operation": {"cursor": {"cursorType": "Bottom", "value": "BOT1"}}}},
      {"entryId": "notif-n1", "sortIndex": 2000, "content": {"item": {"content": {"notification": {"id": "n1", "url": {"url": "https://example.com/bob/status/1"}}}}}},
      {"entryId": "tweet-tw2", "sortIndex": 1000, "content": {"item": {"content": {"tweet": {"id": "tw2"}}}}}
    ]}},
    {"markEntriesUnreadGreaterThanSortIndex": {"sortIndex": 1500}}
  ]}
}`

// grownFeedJSON is the head page after a new mention arrived on top of the
// entries headFeedJSON already carried.
const grownFeedJSON = `{
  "globalObjects": {
    "users": {
      "u2": {"id_str": "u2", "screen_name": "bob", "name": "Bob"}
    },
    "tweets": {
      "tw2": {"id_str": "tw2", "full_text": "another post", "user_id_str": "u2"}
    },
    "notifications": {
      "n2": {
        "id": "n2",
        "timestampMs": 3000,
        "icon": {"id": "mention_icon"},
        "message": {"text": "Bob mentioned you", "entities": []}
      }
    }
  },
  "timeline": {"instructions": [
    {"addEntries": {"entries": [
      {"entryId": "cursor-top", "content": {"operation": {"cursor": {"cursorType": "Top", "value": "TOP2"}}}},
      {"entryId": "notif-n2", "sortIndex": 3000, "content": {"item": {"content": {"notification": {"id": "n2"}}}}},
      {"entryId": "tweet-tw2", "sortIndex": 1000, "content": {"item": {"content": {"tweet": {"id": "tw2"}}}}}
    ]}}
  ]}
}`

func decodeFeed(t *testing.T, raw string) *wire.NotificationsResponse {
	t.Helper()

	var resp wire.NotificationsResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))

	return &resp
}

// fakeFeedAPI scripts head fetches and records every mutation.
type fakeFeedAPI struct {
	mu sync.Mutex

	responses []*wire.NotificationsResponse
	calls     int
	cursors   []string

	favorites   []string
	unfavorites []string
	lastSeen    []string
}

func (f *fakeFeedAPI) Notifications(_ context.Context, cursor string) (
	*wire.NotificationsResponse, client.RateLimitState, error) {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.cursors = append(f.cursors, cursor)

	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++

	return f.responses[idx], client.RateLimitState{Remaining: -1}, nil
}

func (f *fakeFeedAPI) NotificationsLastSeenCursor(_ context.Context,
	cursor string) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastSeen = append(f.lastSeen, cursor)

	return nil
}

func (f *fakeFeedAPI) FavoriteTweet(_ context.Context, tweetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.favorites = append(f.favorites, tweetID)

	return nil
}

func (f *fakeFeedAPI) UnfavoriteTweet(_ context.Context,
	tweetID string) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.unfavorites = append(f.unfavorites, tweetID)

	return nil
}

func (f *fakeFeedAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

func newTestEngine(api *fakeFeedAPI,
	onEvent func([]model.Event)) *Engine {

	return NewEngine(Config{
		API: api,
		CurrentUser: model.User{
			ID:       "me",
			Username: "self",
			FullName: "Ana Dev",
		},
		OnEvent: onEvent,
	})
}

func TestMessagesReplaysInstructions(t *testing.T) {
	t.Parallel()

	api := &fakeFeedAPI{
		responses: []*wire.NotificationsResponse{
			decodeFeed(t, headFeedJSON),
		},
	}
	engine := newTestEngine(api, nil)

	page, err := engine.Messages(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, page.Items, 2)

	// Oldest first: the bare post precedes the aggregate.
	post := page.Items[0]
	require.Equal(t, "tweet-tw2", post.ID)
	require.Equal(t, ThreadID, post.ThreadID)
	require.Equal(t, "notifications_bird", post.SenderID)
	require.Len(t, post.Tweets, 1)

	aggregate := page.Items[1]
	require.Equal(t, "notif-n1", aggregate.ID)
	require.Equal(t, "notifications_heart", aggregate.SenderID)
	require.Contains(t, aggregate.Text, "Bob liked your post")

	// The watermark at 1500 marks everything at or below it as seen.
	require.True(t, post.Seen)
	require.False(t, aggregate.Seen)

	require.True(t, page.HasMore)
	require.Equal(t, "BOT1", page.OldestCursor)
}

func TestMessagesRemoveInstruction(t *testing.T) {
	t.Parallel()

	resp := decodeFeed(t, headFeedJSON)
	resp.Timeline.Instructions = append(resp.Timeline.Instructions,
		wire.TimelineInstruction{
			Kind:    wire.InstructionRemoveEntries,
			RawKind: string(wire.InstructionRemoveEntries),
			Body: wire.InstructionBody{
				EntryIDs: []string{"tweet-tw2"},
			},
		},
	)

	api := &fakeFeedAPI{
		responses: []*wire.NotificationsResponse{resp},
	}
	engine := newTestEngine(api, nil)

	page, err := engine.Messages(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, page.Items, 1)
	require.Equal(t, "notif-n1", page.Items[0].ID)
}

func TestThreadSynthesis(t *testing.T) {
	t.Parallel()

	api := &fakeFeedAPI{
		responses: []*wire.NotificationsResponse{
			decodeFeed(t, headFeedJSON),
		},
	}
	engine := newTestEngine(api, nil)

	thread, err := engine.Thread(context.Background())
	require.NoError(t, err)

	require.Equal(t, ThreadID, thread.ID)
	require.Equal(t, model.ThreadChannel, thread.Type)
	require.Equal(t, "Notifications for Ana Dev", thread.Title)
	require.True(t, thread.IsReadOnly)
	require.Equal(t, model.FolderNormal, thread.Folder)

	// The aggregate entry is above the unread watermark.
	require.True(t, thread.IsUnread)

	require.Equal(t, time.UnixMilli(2000), thread.Timestamp)
	require.Len(t, thread.Messages, 2)

	// One synthetic participant per notification category, sorted.
	require.Len(t, thread.Participants, 2)
	require.Equal(t, "notifications_bird", thread.Participants[0].ID)
	require.Equal(t, "notifications_heart", thread.Participants[1].ID)
}

func TestReactionsBridgeToLikes(t *testing.T) {
	t.Parallel()

	api := &fakeFeedAPI{
		responses: []*wire.NotificationsResponse{
			decodeFeed(t, headFeedJSON),
		},
	}
	engine := newTestEngine(api, nil)

	_, err := engine.Messages(context.Background(), "")
	require.NoError(t, err)

	ctx := context.Background()

	// Anything but the heart fails before touching the network.
	err = engine.AddReaction(ctx, "notif-n1", "funny")
	require.ErrorIs(t, err, ErrInvalidReaction)
	require.Empty(t, api.favorites)

	// The aggregate resolves to the post it acted on.
	require.NoError(t, engine.AddReaction(ctx, "notif-n1", "heart"))
	require.Equal(t, []string{"tw1"}, api.favorites)

	// The bare post entry resolves to itself, glyph spelling accepted.
	require.NoError(t, engine.RemoveReaction(ctx, "tweet-tw2", "❤️"))
	require.Equal(t, []string{"tw2"}, api.unfavorites)

	// Entries without an underlying post accept the heart silently.
	require.NoError(t, engine.AddReaction(ctx, "unknown-entry", "like"))
	require.Equal(t, []string{"tw1"}, api.favorites)
}

func TestMarkReadPushesTopCursor(t *testing.T) {
	t.Parallel()

	api := &fakeFeedAPI{
		responses: []*wire.NotificationsResponse{
			decodeFeed(t, headFeedJSON),
		},
	}
	engine := newTestEngine(api, nil)

	ctx := context.Background()

	// No cursor known yet, nothing to push.
	require.NoError(t, engine.MarkRead(ctx))
	require.Empty(t, api.lastSeen)

	_, err := engine.Messages(ctx, "")
	require.NoError(t, err)

	require.NoError(t, engine.MarkRead(ctx))
	require.Equal(t, []string{"TOP1"}, api.lastSeen)

	// Paging backwards must not move the watermark.
	_, err = engine.Messages(ctx, "BOT1")
	require.NoError(t, err)

	require.NoError(t, engine.MarkRead(ctx))
	require.Equal(t, []string{"TOP1", "TOP1"}, api.lastSeen)
}

func TestRefreshEmitsOnlyNewEntries(t *testing.T) {
	t.Parallel()

	api := &fakeFeedAPI{
		responses: []*wire.NotificationsResponse{
			decodeFeed(t, headFeedJSON),
			decodeFeed(t, grownFeedJSON),
		},
	}

	var mu sync.Mutex
	var batches [][]model.Message
	engine := newTestEngine(api, func(events []model.Event) {
		mu.Lock()
		defer mu.Unlock()

		for _, ev := range events {
			if up, ok := ev.(*model.MessageUpsert); ok {
				batches = append(batches, up.Messages)
			}
		}
	})
	engine.cfg.PollInterval = 10 * time.Millisecond

	engine.Start(context.Background())
	defer engine.Dispose()

	require.Eventually(t, func() bool {
		return api.callCount() >= 2
	}, 3*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(batches) >= 2
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	// The first cycle surfaces the whole head page, the second only the
	// fresh mention.
	require.Len(t, batches[0], 2)
	require.Len(t, batches[1], 1)
	require.Equal(t, "notif-n2", batches[1][0].ID)
	require.Equal(t, ThreadID, batches[1][0].ThreadID)
}
