package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/roasbeef/skylark/internal/wire"
)

// extParam is the extension set the web app requests on inbox endpoints.
const extParam = "mediaColor,altText,mediaStats,highlightedLabel,cameraMoment"

// commonAccountParams mirrors the account-level query params the web app
// sends alongside the DM params.
func commonAccountParams() url.Values {
	return url.Values{
		"include_profile_interstitial_type": {"1"},
		"include_blocking":                  {"1"},
		"include_blocked_by":                {"1"},
		"include_followed_by":               {"1"},
		"include_want_retweets":             {"1"},
		"include_mute_edge":                 {"1"},
		"include_can_dm":                    {"1"},
		"include_can_media_tag":             {"1"},
		"skip_status":                       {"1"},
	}
}

func inboxParams() url.Values {
	params := mergeValues(commonAccountParams(), commonDMParams())
	params.Set("filter_low_quality", "false")
	params.Set("ext", extParam)

	return params
}

// InboxFolder selects which inbox timeline to page.
type InboxFolder string

// Inbox folders. Trusted is the normal inbox; untrusted holds message
// requests.
const (
	InboxTrusted   InboxFolder = "trusted"
	InboxUntrusted InboxFolder = "untrusted"
)

// InboxInitialState fetches the first inbox snapshot: recent threads across
// both folders, their newest entries, and the poll cursor.
func (c *Client) InboxInitialState(
	ctx context.Context) (*wire.InboxState, error) {

	var resp wire.InboxInitialStateResponse
	_, err := c.do(ctx, &apiRequest{
		url:     c.cfg.APIBaseURL + "1.1/dm/inbox_initial_state.json",
		params:  inboxParams(),
		referer: c.messagesReferer(""),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.InboxInitialState == nil {
		return nil, fmt.Errorf("inbox_initial_state: empty response")
	}

	return resp.InboxInitialState, nil
}

// InboxTimeline pages one folder backwards. maxID, when set, returns
// entries strictly older than it.
func (c *Client) InboxTimeline(ctx context.Context, folder InboxFolder,
	maxID string) (*wire.InboxState, error) {

	params := inboxParams()
	if maxID != "" {
		params.Set("max_id", maxID)
	}

	var resp wire.InboxTimelineResponse
	_, err := c.do(ctx, &apiRequest{
		url: c.cfg.APIBaseURL + "1.1/dm/inbox_timeline/" +
			string(folder) + ".json",
		params:  params,
		referer: c.messagesReferer(""),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.InboxTimeline == nil {
		return nil, fmt.Errorf("inbox_timeline: empty response")
	}

	return resp.InboxTimeline, nil
}

// ConversationTimeline pages one thread backwards from maxID.
func (c *Client) ConversationTimeline(ctx context.Context, threadID,
	maxID string) (*wire.InboxState, error) {

	params := inboxParams()
	params.Set("include_conversation_info", "true")
	params.Set("context", "FETCH_DM_CONVERSATION")
	if maxID != "" {
		params.Set("max_id", maxID)
	}

	var resp wire.ConversationTimelineResponse
	_, err := c.do(ctx, &apiRequest{
		url: c.cfg.APIBaseURL + "1.1/dm/conversation/" +
			threadID + ".json",
		params:  params,
		referer: c.messagesReferer(threadID),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ConversationTimeline == nil {
		return nil, fmt.Errorf("dm/conversation: empty response")
	}

	return resp.ConversationTimeline, nil
}

// ResolveConversation resolves a participant set to its one-to-one or group
// conversation, creating nothing.
func (c *Client) ResolveConversation(ctx context.Context,
	participantIDs []string) (*wire.InboxState, error) {

	params := inboxParams()
	params.Set("include_conversation_info", "true")
	params.Set("participant_ids", joinIDs(participantIDs))

	var resp wire.ConversationResponse
	_, err := c.do(ctx, &apiRequest{
		url:     c.cfg.APIBaseURL + "1.1/dm/conversation.json",
		params:  params,
		referer: c.cfg.WebBaseURL + "messages/compose",
	}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.ConversationTimeline, nil
}

// UserUpdates performs one poll against the cursor-driven update stream.
// The rate-limit headers are returned alongside the body so the poll loop
// can pace itself before the limiter trips.
func (c *Client) UserUpdates(ctx context.Context,
	cursor string) (*wire.UserUpdatesResponse, RateLimitState, error) {

	params := commonDMParams()
	params.Set("cursor", cursor)
	params.Set("filter_low_quality", "false")
	params.Set("ext", extParam)

	var resp wire.UserUpdatesResponse
	headers, err := c.do(ctx, &apiRequest{
		url:     c.cfg.APIBaseURL + "1.1/dm/user_updates.json",
		params:  params,
		referer: c.messagesReferer(""),
		headers: map[string]string{"x-twitter-polling": "true"},
	}, &resp)

	return &resp, rateLimitFromHeaders(headers), err
}

// RateLimitState is the limiter window reported by poll-style endpoints.
type RateLimitState struct {
	// Remaining is the calls left in the window; -1 when unreported.
	Remaining int

	// Reset is when the window reopens; zero when unreported.
	Reset int64
}

func rateLimitFromHeaders(headers http.Header) RateLimitState {
	state := RateLimitState{Remaining: -1}
	if headers == nil {
		return state
	}

	if v := headers.Get(headerRateLimitRemaining); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			state.Remaining = n
		}
	}
	if v := headers.Get(headerRateLimitReset); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			state.Reset = n
		}
	}

	return state
}

// MarkRead moves the thread's read marker to messageID.
func (c *Client) MarkRead(ctx context.Context, threadID,
	messageID string) error {

	_, err := c.do(ctx, &apiRequest{
		method: http.MethodPost,
		url: c.cfg.APIBaseURL + "1.1/dm/conversation/" + threadID +
			"/mark_read.json",
		referer: c.messagesReferer(threadID),
		form: url.Values{
			"conversationId":     {threadID},
			"last_read_event_id": {messageID},
		},
	}, nil)

	return err
}

// UpdateLastSeenEventID advances the account-wide inbox watermark.
func (c *Client) UpdateLastSeenEventID(ctx context.Context,
	lastSeenEventID string) error {

	_, err := c.do(ctx, &apiRequest{
		method: http.MethodPost,
		url: c.cfg.APIBaseURL +
			"1.1/dm/update_last_seen_event_id.json",
		referer: c.messagesReferer(""),
		form: url.Values{
			"last_seen_event_id": {lastSeenEventID},
		},
	}, nil)

	return err
}

// UpdateConversationName renames a group thread.
func (c *Client) UpdateConversationName(ctx context.Context, threadID,
	title string) error {

	_, err := c.do(ctx, &apiRequest{
		method: http.MethodPost,
		url: c.cfg.APIBaseURL + "1.1/dm/conversation/" + threadID +
			"/update_name.json",
		referer: c.messagesReferer(threadID) + "/group-info",
		form:    url.Values{"name": {title}},
	}, nil)

	return err
}

// UpdateConversationAvatar sets a group thread's image to an uploaded media
// id.
func (c *Client) UpdateConversationAvatar(ctx context.Context, threadID,
	avatarID string) error {

	_, err := c.do(ctx, &apiRequest{
		method: http.MethodPost,
		url: c.cfg.APIBaseURL + "1.1/dm/conversation/" + threadID +
			"/update_avatar.json",
		referer: c.messagesReferer(threadID) + "/group-info",
		form:    url.Values{"avatar_id": {avatarID}},
	}, nil)

	return err
}

// AddParticipants invites accounts into a group thread.
func (c *Client) AddParticipants(ctx context.Context, threadID string,
	participantIDs []string) error {

	_, err := c.do(ctx, &apiRequest{
		method: http.MethodPost,
		url: c.cfg.APIBaseURL + "1.1/dm/conversation/" + threadID +
			"/add_participants.json",
		referer: c.messagesReferer(threadID) + "/group-info",
		form: url.Values{
			"participant_ids": {joinIDs(participantIDs)},
		},
	}, nil)

	return err
}

// DisableNotifications mutes a thread. duration is in seconds; zero mutes
// indefinitely.
func (c *Client) DisableNotifications(ctx context.Context, threadID string,
	duration int) error {

	_, err := c.do(ctx, &apiRequest{
		method: http.MethodPost,
		url: c.cfg.APIBaseURL + "1.1/dm/conversation/" + threadID +
			"/disable_notifications.json",
		referer: c.messagesReferer(threadID),
		form:    url.Values{"duration": {strconv.Itoa(duration)}},
	}, nil)

	return err
}

// EnableNotifications unmutes a thread.
func (c *Client) EnableNotifications(ctx context.Context,
	threadID string) error {

	_, err := c.do(ctx, &apiRequest{
		method: http.MethodPost,
		url: c.cfg.APIBaseURL + "1.1/dm/conversation/" + threadID +
			"/enable_notifications.json",
		referer: c.messagesReferer(threadID),
		form:    url.Values{},
	}, nil)

	return err
}

// AcceptConversation moves a message request into the normal inbox.
func (c *Client) AcceptConversation(ctx context.Context,
	threadID string) error {

	_, err := c.do(ctx, &apiRequest{
		method: http.MethodPost,
		url: c.cfg.APIBaseURL + "1.1/dm/conversation/" + threadID +
			"/accept.json",
		referer: c.messagesReferer(threadID),
		form:    url.Values{},
	}, nil)

	return err
}

// DeleteConversation removes a thread from the inbox.
func (c *Client) DeleteConversation(ctx context.Context,
	threadID string) error {

	_, err := c.do(ctx, &apiRequest{
		method: http.MethodPost,
		url: c.cfg.APIBaseURL + "1.1/dm/conversation/" + threadID +
			"/delete.json",
		referer: c.messagesReferer(threadID),
		form:    commonDMParams(),
	}, nil)

	return err
}

// Typeahead searches accounts for the compose screen.
func (c *Client) Typeahead(ctx context.Context,
	query string) ([]wire.User, error) {

	var resp wire.TypeaheadResponse
	_, err := c.do(ctx, &apiRequest{
		url: c.cfg.APIBaseURL + "1.1/search/typeahead.json",
		params: url.Values{
			"q":           {query},
			"src":         {"compose_message"},
			"result_type": {"users"},
		},
		referer: c.cfg.WebBaseURL + "messages/compose",
	}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.Users, nil
}

// VerifyCredentials identifies the logged-in account. This is the first
// call after Authorize; an invalid-credentials error here means the cookies
// are dead.
func (c *Client) VerifyCredentials(
	ctx context.Context) (*wire.User, error) {

	var resp wire.VerifyCredentialsResponse
	_, err := c.do(ctx, &apiRequest{
		url:     c.cfg.APIBaseURL + "1.1/account/verify_credentials.json",
		referer: c.cfg.WebBaseURL,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return &resp.User, nil
}

// Logout invalidates the session server-side.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, &apiRequest{
		method:  http.MethodPost,
		url:     c.cfg.APIBaseURL + "1.1/account/logout.json",
		referer: c.cfg.WebBaseURL + "logout",
	}, nil)

	return err
}

func joinIDs(ids []string) string {
	return strings.Join(ids, ",")
}
