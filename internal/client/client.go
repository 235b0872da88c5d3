// Package client speaks the platform's private web API: the DM REST
// surface, the GraphQL mutations the web app uses, the chunked media upload
// endpoint, and the live pipeline push channel. It owns the cookie jar and
// the CSRF token, maps the platform's error envelope to typed errors, and
// retries the transient over-capacity failures the API is known to emit.
package client

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/roasbeef/skylark/internal/wire"
)

const (
	// bearerToken is the public OAuth2 bearer the web app ships with. It
	// identifies the client application, not the account; the account is
	// carried by the cookie jar.
	bearerToken = "Bearer AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOu" +
		"H5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"

	defaultAPIBaseURL     = "https://api.twitter.com/"
	defaultWebBaseURL     = "https://twitter.com/"
	defaultUploadBaseURL  = "https://upload.twitter.com/"
	defaultGraphQLBaseURL = "https://twitter.com/i/api/graphql/"

	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/105.0.0.0 " +
		"Safari/537.36"

	// csrfCookieName is the cookie the API requires mirrored into the
	// x-csrf-token header on every call.
	csrfCookieName = "ct0"

	// csrfTokenBytes is the entropy of a self-minted CSRF token, minted
	// when the imported cookie jar lacks one.
	csrfTokenBytes = 80

	// csrfCookieMaxAge matches the lifetime the web app uses.
	csrfCookieMaxAge = 6 * time.Hour

	// maxOverCapacityRetries bounds retries of code-130 responses.
	maxOverCapacityRetries = 5

	// overCapacityBaseDelay scales linearly with the retry number.
	overCapacityBaseDelay = 100 * time.Millisecond
)

// rate limit headers on poll-style endpoints.
const (
	headerRateLimitRemaining = "x-rate-limit-remaining"
	headerRateLimitReset     = "x-rate-limit-reset"
)

// Config parameterizes a Client. The zero value plus a cookie set is a
// working production configuration; the URL fields exist so tests can point
// the client at a local server.
type Config struct {
	// APIBaseURL overrides the REST API origin.
	APIBaseURL string

	// WebBaseURL overrides the web origin used for referers and cookie
	// scoping.
	WebBaseURL string

	// UploadBaseURL overrides the media upload origin.
	UploadBaseURL string

	// GraphQLBaseURL overrides the GraphQL origin.
	GraphQLBaseURL string

	// UserAgent overrides the browser identity presented upstream.
	UserAgent string

	// HTTPClient overrides the underlying transport. The client installs
	// its own cookie jar on it.
	HTTPClient *http.Client
}

// Client is a stateful handle on one authenticated account.
type Client struct {
	cfg Config

	httpClient *http.Client
	jar        *cookiejar.Jar

	csrfToken string
}

// New creates a client. Authorize must be called with the account's cookies
// before any API call.
func New(cfg Config) (*Client, error) {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.WebBaseURL == "" {
		cfg.WebBaseURL = defaultWebBaseURL
	}
	if cfg.UploadBaseURL == "" {
		cfg.UploadBaseURL = defaultUploadBaseURL
	}
	if cfg.GraphQLBaseURL == "" {
		cfg.GraphQLBaseURL = defaultGraphQLBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	httpClient.Jar = jar

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		jar:        jar,
	}, nil
}

// Authorize seeds the cookie jar with the account's session cookies and
// ensures a CSRF token exists.
func (c *Client) Authorize(cookies []*http.Cookie) error {
	webURL, err := url.Parse(c.cfg.WebBaseURL)
	if err != nil {
		return fmt.Errorf("web base url: %w", err)
	}
	c.jar.SetCookies(webURL, cookies)

	// The API origin needs the same session cookies when it is not a
	// subdomain of the web origin (tests point the two at distinct local
	// servers).
	apiURL, err := url.Parse(c.cfg.APIBaseURL)
	if err != nil {
		return fmt.Errorf("api base url: %w", err)
	}
	if apiURL.Host != webURL.Host {
		c.jar.SetCookies(apiURL, cookies)
	}

	return c.ensureCSRFToken()
}

// ensureCSRFToken loads the ct0 cookie, minting one when absent. The token
// must be mirrored into the x-csrf-token header of every request.
func (c *Client) ensureCSRFToken() error {
	webURL, err := url.Parse(c.cfg.WebBaseURL)
	if err != nil {
		return fmt.Errorf("web base url: %w", err)
	}

	for _, cookie := range c.jar.Cookies(webURL) {
		if cookie.Name == csrfCookieName && cookie.Value != "" {
			c.csrfToken = cookie.Value
			return nil
		}
	}

	raw := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("mint csrf token: %w", err)
	}
	c.csrfToken = hex.EncodeToString(raw)

	c.jar.SetCookies(webURL, []*http.Cookie{{
		Name:   csrfCookieName,
		Value:  c.csrfToken,
		Secure: true,
		MaxAge: int(csrfCookieMaxAge.Seconds()),
	}})

	log.DebugS(context.Background(), "Minted CSRF token",
		"cookie", csrfCookieName)

	return nil
}

// CookieHeader renders the jar's cookies for the given origin as a Cookie
// header value, for transports that bypass the jar (the push channel).
func (c *Client) CookieHeader(origin string) string {
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}

	var parts []string
	for _, cookie := range c.jar.Cookies(u) {
		parts = append(parts, cookie.Name+"="+cookie.Value)
	}

	return strings.Join(parts, "; ")
}

// apiRequest is one call against the platform API.
type apiRequest struct {
	method string
	url    string

	// params is appended to the query string.
	params url.Values

	// form, when non-nil, is sent urlencoded; jsonBody, when non-nil, is
	// sent as a JSON document. At most one of the two is set.
	form     url.Values
	jsonBody any

	// body/bodyContentType carry a preencoded body (multipart uploads).
	body            []byte
	bodyContentType string

	referer string
	headers map[string]string
}

// do performs one API call, decoding the JSON body into out when out is
// non-nil. The platform's error envelope is mapped to a *wire.APIError;
// over-capacity errors are retried with a linear backoff before surfacing.
func (c *Client) do(ctx context.Context, req *apiRequest,
	out any) (http.Header, error) {

	for retry := 0; ; retry++ {
		headers, err := c.doOnce(ctx, req, out)
		if err == nil {
			return headers, nil
		}

		if !wire.IsOverCapacity(err) ||
			retry >= maxOverCapacityRetries {

			return headers, err
		}

		delay := overCapacityBaseDelay * time.Duration(retry+1)
		log.DebugS(ctx, "API over capacity, retrying",
			"url", req.url, "retry", retry+1, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return headers, ctx.Err()
		}
	}
}

func (c *Client) doOnce(ctx context.Context, req *apiRequest,
	out any) (http.Header, error) {

	method := req.method
	if method == "" {
		method = http.MethodGet
	}

	fullURL := req.url
	if len(req.params) > 0 {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + req.params.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.form != nil:
		body = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"

	case req.jsonBody != nil:
		encoded, err := json.Marshal(req.jsonBody)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"

	case req.body != nil:
		body = bytes.NewReader(req.body)
		contentType = req.bodyContentType
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, method, fullURL, body,
	)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	httpReq.Header.Set("Authorization", bearerToken)
	httpReq.Header.Set("Accept", "*/*")
	httpReq.Header.Set("Accept-Language", "en")
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	httpReq.Header.Set("x-csrf-token", c.csrfToken)
	httpReq.Header.Set("x-twitter-active-user", "yes")
	httpReq.Header.Set("x-twitter-auth-type", "OAuth2Session")
	httpReq.Header.Set("x-twitter-client-language", "en")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.referer != "" {
		httpReq.Header.Set("Referer", req.referer)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.Header, fmt.Errorf("read body: %w", err)
	}

	log.TraceS(ctx, "API response",
		"url", req.url, "status", resp.StatusCode, "bytes", len(raw))

	if len(raw) == 0 {
		if resp.StatusCode >= 400 {
			return resp.Header, fmt.Errorf("%s: http %d",
				req.url, resp.StatusCode)
		}

		return resp.Header, nil
	}

	if err := c.checkErrors(raw, resp.Header); err != nil {
		return resp.Header, err
	}
	if resp.StatusCode >= 400 {
		return resp.Header, fmt.Errorf("%s: http %d",
			req.url, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.Header, fmt.Errorf(
				"decode %s: %w", req.url, err,
			)
		}
	}

	return resp.Header, nil
}

// checkErrors maps the platform's error envelope to a typed error. Rate
// limit errors pick up their reset deadline from the response headers.
func (c *Client) checkErrors(raw []byte, headers http.Header) error {
	var envelope wire.ErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		// A non-object body (some endpoints answer with arrays) can
		// not carry an error envelope.
		return nil
	}
	if len(envelope.Errors) == 0 {
		return nil
	}

	apiErr := wire.NewAPIError(envelope.Errors[0])
	if apiErr.Code == wire.CodeRateLimitExceeded {
		if reset := headers.Get(headerRateLimitReset); reset != "" {
			if secs, err := strconv.ParseInt(
				reset, 10, 64,
			); err == nil {
				apiErr.ResetAt = time.Unix(secs, 0)
			}
		}
	}

	return apiErr
}

// gqlMutation posts a GraphQL mutation the way the web app does: the
// variables document is double-encoded as a JSON string field.
func (c *Client) gqlMutation(ctx context.Context, queryID, name string,
	variables any, referer string, out any) error {

	encodedVars, err := json.Marshal(variables)
	if err != nil {
		return fmt.Errorf("encode variables: %w", err)
	}

	_, err = c.do(ctx, &apiRequest{
		method: http.MethodPost,
		url:    c.cfg.GraphQLBaseURL + queryID + "/" + name,
		jsonBody: map[string]any{
			"variables": string(encodedVars),
			"queryId":   queryID,
		},
		referer: c.cfg.WebBaseURL,
	}, out)

	return err
}

// newRequestID mints the uppercase UUID the send and destroy endpoints
// expect for idempotency.
func newRequestID() string {
	return strings.ToUpper(uuid.NewString())
}

// messagesReferer is the referer of thread-scoped calls.
func (c *Client) messagesReferer(threadID string) string {
	if threadID == "" {
		return c.cfg.WebBaseURL + "messages"
	}

	return c.cfg.WebBaseURL + "messages/" + threadID
}

// commonDMParams mirrors the query params the web app sends on every DM
// endpoint; the API rejects or degrades some calls without them.
func commonDMParams() url.Values {
	return url.Values{
		"cards_platform":          {"Web-12"},
		"include_cards":           {"1"},
		"include_composer_source": {"true"},
		"include_ext_alt_text":    {"true"},
		"include_reply_count":     {"1"},
		"tweet_mode":              {"extended"},
		"dm_users":                {"false"},
		"include_groups":          {"true"},
		"include_inbox_timelines": {"true"},
		"include_ext_media_color": {"true"},
		"supports_reactions":      {"true"},
	}
}

// mergeValues folds extra into base.
func mergeValues(base url.Values, extra url.Values) url.Values {
	for k, vs := range extra {
		for _, v := range vs {
			base.Set(k, v)
		}
	}

	return base
}
