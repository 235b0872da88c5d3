package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/roasbeef/skylark/internal/wire"
)

// GraphQL document ids of the tweet like mutations, used to bridge heart
// reactions on notification entries.
const (
	favoriteTweetQueryID     = "lI07N6Otwv1PhnEgXILM7A"
	favoriteTweetQueryName   = "FavoriteTweet"
	unfavoriteTweetQueryID   = "ZYKSe-w7KEslx3JhSIk5LA"
	unfavoriteTweetQueryName = "UnfavoriteTweet"
)

func (c *Client) notificationsReferer() string {
	return c.cfg.WebBaseURL + "notifications"
}

// notificationsParams mirrors the timeline params the web app requests.
func notificationsParams(cursor string) url.Values {
	params := mergeValues(commonAccountParams(), url.Values{
		"cards_platform":                 {"Web-12"},
		"include_cards":                  {"1"},
		"include_ext_alt_text":           {"true"},
		"include_quote_count":            {"true"},
		"include_reply_count":            {"1"},
		"tweet_mode":                     {"extended"},
		"include_entities":               {"true"},
		"include_user_entities":          {"true"},
		"include_ext_media_color":        {"true"},
		"include_ext_media_availability": {"true"},
		"send_error_codes":               {"true"},
		"simple_quoted_tweet":            {"true"},
		"ext":                            {"mediaStats,highlightedLabel,voiceInfo"},
	})

	// First page is smaller; cursor-driven catch-up pages pull more.
	if cursor == "" {
		params.Set("count", "20")
	} else {
		params.Set("count", "40")
		params.Set("cursor", cursor)
	}

	return params
}

// Notifications fetches one page of the notifications timeline.
func (c *Client) Notifications(ctx context.Context,
	cursor string) (*wire.NotificationsResponse, RateLimitState, error) {

	var resp wire.NotificationsResponse
	headers, err := c.do(ctx, &apiRequest{
		url:     c.cfg.WebBaseURL + "i/api/2/notifications/all.json",
		params:  notificationsParams(cursor),
		referer: c.notificationsReferer(),
		headers: map[string]string{"x-twitter-polling": "true"},
	}, &resp)

	return &resp, rateLimitFromHeaders(headers), err
}

// NotificationsLastSeenCursor advances the unread watermark of the
// notifications timeline.
func (c *Client) NotificationsLastSeenCursor(ctx context.Context,
	cursor string) error {

	_, err := c.do(ctx, &apiRequest{
		method: http.MethodPost,
		url: c.cfg.WebBaseURL +
			"i/api/2/notifications/all/last_seen_cursor.json",
		referer: c.notificationsReferer(),
		form:    url.Values{"cursor": {cursor}},
	}, nil)

	return err
}

// FavoriteTweet likes a tweet. Heart reactions on notification entries map
// onto this.
func (c *Client) FavoriteTweet(ctx context.Context, tweetID string) error {
	return c.gqlMutation(
		ctx, favoriteTweetQueryID, favoriteTweetQueryName,
		map[string]any{"tweet_id": tweetID},
		c.notificationsReferer(), nil,
	)
}

// UnfavoriteTweet removes a like from a tweet.
func (c *Client) UnfavoriteTweet(ctx context.Context, tweetID string) error {
	return c.gqlMutation(
		ctx, unfavoriteTweetQueryID, unfavoriteTweetQueryName,
		map[string]any{"tweet_id": tweetID},
		c.notificationsReferer(), nil,
	)
}
