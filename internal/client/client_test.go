package client

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roasbeef/skylark/internal/wire"
	"github.com/stretchr/testify/require"
)

// newTestClient points every origin at the given test server and authorizes
// with a fixed session cookie set.
func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()

	base := server.URL + "/"
	c, err := New(Config{
		APIBaseURL:     base,
		WebBaseURL:     base,
		UploadBaseURL:  base,
		GraphQLBaseURL: base + "graphql/",
	})
	require.NoError(t, err)

	require.NoError(t, c.Authorize([]*http.Cookie{
		{Name: "auth_token", Value: "test-auth-token"},
		{Name: "ct0", Value: "test-csrf-token"},
	}))

	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestRequestHeaders(t *testing.T) {
	t.Parallel()

	var seen http.Header
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			seen = r.Header.Clone()
			writeJSON(t, w, map[string]any{
				"inbox_initial_state": map[string]any{
					"cursor": "c0",
				},
			})
		},
	))
	defer server.Close()

	c := newTestClient(t, server)
	state, err := c.InboxInitialState(context.Background())
	require.NoError(t, err)
	require.Equal(t, "c0", state.Cursor)

	require.Equal(t, bearerToken, seen.Get("Authorization"))
	require.Equal(t, "test-csrf-token", seen.Get("x-csrf-token"))
	require.Equal(t, "OAuth2Session", seen.Get("x-twitter-auth-type"))
	require.Equal(t, "yes", seen.Get("x-twitter-active-user"))
	require.NotEmpty(t, seen.Get("Cookie"))
}

func TestMintsCSRFTokenWhenAbsent(t *testing.T) {
	t.Parallel()

	c, err := New(Config{})
	require.NoError(t, err)

	require.NoError(t, c.Authorize([]*http.Cookie{
		{Name: "auth_token", Value: "tok"},
	}))

	require.NotEmpty(t, c.csrfToken)
	require.Len(t, c.csrfToken, csrfTokenBytes*2)
	_, err = hex.DecodeString(c.csrfToken)
	require.NoError(t, err)
}

func TestOverCapacityRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) <= 2 {
				writeJSON(t, w, wire.ErrorEnvelope{
					Errors: []wire.ErrorItem{{
						Code:    wire.CodeOverCapacity,
						Message: "Over capacity",
					}},
				})
				return
			}
			writeJSON(t, w, map[string]any{
				"inbox_initial_state": map[string]any{
					"cursor": "c1",
				},
			})
		},
	))
	defer server.Close()

	c := newTestClient(t, server)
	state, err := c.InboxInitialState(context.Background())
	require.NoError(t, err)
	require.Equal(t, "c1", state.Cursor)
	require.EqualValues(t, 3, calls.Load())
}

func TestOverCapacityGivesUp(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			writeJSON(t, w, wire.ErrorEnvelope{
				Errors: []wire.ErrorItem{{
					Code:    wire.CodeOverCapacity,
					Message: "Over capacity",
				}},
			})
		},
	))
	defer server.Close()

	c := newTestClient(t, server)
	_, err := c.InboxInitialState(context.Background())
	require.Error(t, err)
	require.True(t, wire.IsOverCapacity(err))
	require.EqualValues(t, maxOverCapacityRetries+1, calls.Load())
}

func TestRateLimitCarriesReset(t *testing.T) {
	t.Parallel()

	reset := time.Now().Add(time.Minute).Unix()
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(
				headerRateLimitReset,
				fmt.Sprintf("%d", reset),
			)
			writeJSON(t, w, wire.ErrorEnvelope{
				Errors: []wire.ErrorItem{{
					Code:    wire.CodeRateLimitExceeded,
					Message: "Rate limit exceeded",
				}},
			})
		},
	))
	defer server.Close()

	c := newTestClient(t, server)
	_, _, err := c.UserUpdates(context.Background(), "cursor-1")
	require.Error(t, err)

	at, ok := wire.RateLimitReset(err)
	require.True(t, ok)
	require.Equal(t, time.Unix(reset, 0), at)
}

func TestUserUpdates(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/1.1/dm/user_updates.json",
				r.URL.Path)
			require.Equal(t, "cursor-1",
				r.URL.Query().Get("cursor"))
			require.Equal(t, "true",
				r.Header.Get("x-twitter-polling"))

			w.Header().Set(headerRateLimitRemaining, "41")
			writeJSON(t, w, map[string]any{
				"user_events": map[string]any{
					"cursor": "cursor-2",
				},
			})
		},
	))
	defer server.Close()

	c := newTestClient(t, server)
	resp, limits, err := c.UserUpdates(context.Background(), "cursor-1")
	require.NoError(t, err)
	require.NotNil(t, resp.UserEvents)
	require.Equal(t, "cursor-2", resp.UserEvents.Cursor)
	require.Equal(t, 41, limits.Remaining)
}

func TestSendMessage(t *testing.T) {
	t.Parallel()

	type gqlBody struct {
		Variables string `json:"variables"`
		QueryID   string `json:"queryId"`
	}

	var got sendMessageVariables
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t,
				"/graphql/"+sendMessageQueryID+"/"+
					sendMessageQueryName,
				r.URL.Path)

			var body gqlBody
			require.NoError(
				t, json.NewDecoder(r.Body).Decode(&body),
			)
			require.Equal(t, sendMessageQueryID, body.QueryID)
			require.NoError(t, json.Unmarshal(
				[]byte(body.Variables), &got,
			))

			writeJSON(t, w, map[string]any{
				"data": map[string]any{
					"create_dm": map[string]any{
						"__typename": "CreateDmSuccess",
					},
				},
			})
		},
	))
	defer server.Close()

	c := newTestClient(t, server)
	err := c.SendMessage(context.Background(), SendMessageRequest{
		Text:      "hello",
		ThreadID:  "t1",
		RequestID: "abc-def",
	})
	require.NoError(t, err)

	require.Equal(t, "ABC-DEF", got.RequestID)
	require.Equal(t, "t1", got.Target.ConversationID)
	require.NotNil(t, got.Message.Text)
	require.Equal(t, "hello", got.Message.Text.Text)
	require.Nil(t, got.Message.Media)
	require.Nil(t, got.Message.Card)
}

func TestSendMessageValidationFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{
				"data": map[string]any{
					"create_dm": map[string]any{
						"__typename": "CreateDmFailure",
						"dm_validation_failure_type": "CannotDm",
					},
				},
			})
		},
	))
	defer server.Close()

	c := newTestClient(t, server)
	err := c.SendMessage(context.Background(), SendMessageRequest{
		Text:     "hello",
		ThreadID: "t1",
	})
	require.ErrorContains(t, err, "CannotDm")
}

func TestSendMessageSuppressPreview(t *testing.T) {
	t.Parallel()

	var got sendMessageVariables
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Variables string `json:"variables"`
			}
			require.NoError(
				t, json.NewDecoder(r.Body).Decode(&body),
			)
			require.NoError(t, json.Unmarshal(
				[]byte(body.Variables), &got,
			))
			writeJSON(t, w, map[string]any{
				"data": map[string]any{
					"create_dm": map[string]any{
						"__typename": "CreateDmSuccess",
					},
				},
			})
		},
	))
	defer server.Close()

	c := newTestClient(t, server)
	err := c.SendMessage(context.Background(), SendMessageRequest{
		Text:            "no preview https://example.com",
		ThreadID:        "t1",
		SuppressPreview: true,
	})
	require.NoError(t, err)

	require.Nil(t, got.Message.Text)
	require.NotNil(t, got.Message.Card)
	require.Equal(t, tombstoneCardURI, got.Message.Card.URI)
}

func TestAddReactionCapitalizesKey(t *testing.T) {
	t.Parallel()

	var variables map[string]any
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Variables string `json:"variables"`
			}
			require.NoError(
				t, json.NewDecoder(r.Body).Decode(&body),
			)
			require.NoError(t, json.Unmarshal(
				[]byte(body.Variables), &variables,
			))
			writeJSON(t, w, map[string]any{})
		},
	))
	defer server.Close()

	c := newTestClient(t, server)
	err := c.AddReaction(context.Background(), "t1", "m1", "funny")
	require.NoError(t, err)

	require.Equal(t, []any{"Funny"}, variables["reactionTypes"])
	require.Equal(t, "t1", variables["conversationId"])
	require.Equal(t, "m1", variables["messageId"])
}

func TestUploadMedia(t *testing.T) {
	t.Parallel()

	data := make([]byte, uploadChunkSize+1024)
	for i := range data {
		data[i] = byte(i % 251)
	}
	sum := md5.Sum(data)
	wantMD5 := hex.EncodeToString(sum[:])

	var (
		appendCalls atomic.Int32
		gotBytes    atomic.Int64
	)
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Query().Get("command") {
			case "INIT":
				require.Equal(t, "image/png",
					r.URL.Query().Get("media_type"))
				require.Equal(t, "dm_image",
					r.URL.Query().Get("media_category"))
				writeJSON(t, w, map[string]any{
					"media_id_string": "media-1",
				})

			case "APPEND":
				require.Equal(t, "media-1",
					r.URL.Query().Get("media_id"))
				require.NoError(
					t, r.ParseMultipartForm(4<<20),
				)
				file, _, err := r.FormFile("media")
				require.NoError(t, err)
				chunk, err := io.ReadAll(file)
				require.NoError(t, err)

				appendCalls.Add(1)
				gotBytes.Add(int64(len(chunk)))
				writeJSON(t, w, map[string]any{})

			case "FINALIZE":
				require.Equal(t, wantMD5,
					r.URL.Query().Get("original_md5"))
				writeJSON(t, w, map[string]any{
					"media_id_string": "media-1",
					"processing_info": map[string]any{
						"state":            "pending",
						"check_after_secs": 0,
					},
				})

			case "STATUS":
				writeJSON(t, w, map[string]any{
					"media_id_string": "media-1",
					"processing_info": map[string]any{
						"state": "succeeded",
					},
				})

			default:
				t.Errorf("unexpected command %q",
					r.URL.Query().Get("command"))
			}
		},
	))
	defer server.Close()

	c := newTestClient(t, server)
	mediaID, err := c.UploadMedia(
		context.Background(), "t1", data, "image/png",
	)
	require.NoError(t, err)
	require.Equal(t, "media-1", mediaID)
	require.EqualValues(t, 2, appendCalls.Load())
	require.EqualValues(t, len(data), gotBytes.Load())
}

func TestUpdateSubscriptions(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t,
				"/1.1/live_pipeline/update_subscriptions",
				r.URL.Path)
			require.Equal(t, "session-9",
				r.Header.Get(sessionHeaderName))
			require.NoError(t, r.ParseForm())
			require.Equal(t, "/dm_update/1,/dm_typing/2",
				r.PostForm.Get("sub_topics"))
			require.Equal(t, "/dm_typing/3",
				r.PostForm.Get("unsub_topics"))
			writeJSON(t, w, map[string]any{})
		},
	))
	defer server.Close()

	c := newTestClient(t, server)
	err := c.UpdateSubscriptions(
		context.Background(), "session-9",
		[]string{"/dm_update/1", "/dm_typing/2"},
		[]string{"/dm_typing/3"},
	)
	require.NoError(t, err)
}

func TestOpenLiveStream(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/live_pipeline/events", r.URL.Path)
			require.Equal(t, "/system/config",
				r.URL.Query().Get("topic"))

			w.Header().Set("Content-Type", "text/event-stream")
			flusher, ok := w.(http.Flusher)
			require.True(t, ok)

			frames := []string{
				`{"topic":"/system/config","payload":` +
					`{"config":{"session_id":"s1",` +
					`"subscription_ttl_millis":120000}}}`,
				`{"topic":"/dm_typing/t1","payload":` +
					`{"dm_typing":{"conversation_id":"t1",` +
					`"user_id":"u2"}}}`,
			}
			for _, frame := range frames {
				_, err := fmt.Fprintf(
					w, "data: %s\n\n", frame,
				)
				require.NoError(t, err)
				flusher.Flush()
			}
		},
	))
	defer server.Close()

	c := newTestClient(t, server)
	stream, err := c.OpenLiveStream(
		context.Background(), []string{"/system/config"},
	)
	require.NoError(t, err)
	defer stream.Close()

	first, ok := <-stream.Frames()
	require.True(t, ok)
	require.True(t, first.IsConfig())
	require.Equal(t, "s1", first.Payload.Config.SessionID)
	require.EqualValues(t, 120000,
		first.Payload.Config.SubscriptionTTLMillis)

	second, ok := <-stream.Frames()
	require.True(t, ok)
	require.NotNil(t, second.Payload.DMTyping)
	require.Equal(t, "u2", second.Payload.DMTyping.UserID.String())

	// Handler returned, so the stream drains cleanly.
	_, ok = <-stream.Frames()
	require.False(t, ok)
	require.NoError(t, stream.Err())
}
