package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/roasbeef/skylark/internal/wire"
)

// sessionHeaderName carries the push session id on subscription updates.
const sessionHeaderName = "livepipeline-session"

// LiveStream is one open server-sent-events connection to the live
// pipeline. Frames are delivered on Frames until the connection dies or
// Close is called; Err reports why the channel closed.
type LiveStream struct {
	frames chan *wire.LiveFrame
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// Frames returns the frame channel. It is closed when the stream ends.
func (s *LiveStream) Frames() <-chan *wire.LiveFrame {
	return s.frames
}

// Err reports the terminal error of a closed stream, nil on clean shutdown.
func (s *LiveStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Close tears the connection down. Idempotent.
func (s *LiveStream) Close() {
	s.cancel()
}

func (s *LiveStream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err == nil {
		s.err = err
	}
}

// OpenLiveStream connects to the push channel subscribed to the given
// topics. The first frame on a healthy stream is the session handshake on
// the system config topic.
func (c *Client) OpenLiveStream(ctx context.Context,
	topics []string) (*LiveStream, error) {

	streamURL := c.cfg.APIBaseURL + "live_pipeline/events?topic=" +
		url.QueryEscape(strings.Join(topics, ","))

	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(
		streamCtx, http.MethodGet, streamURL, nil,
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Accept-Language", "en")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("live pipeline: http %d",
			resp.StatusCode)
	}

	stream := &LiveStream{
		frames: make(chan *wire.LiveFrame),
		cancel: cancel,
	}

	go func() {
		defer close(stream.frames)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

		for scanner.Scan() {
			payload, ok := strings.CutPrefix(
				scanner.Text(), "data:",
			)
			if !ok {
				// Comment, event name, or blank separator.
				continue
			}
			payload = strings.TrimSpace(payload)
			if payload == "" {
				continue
			}

			var frame wire.LiveFrame
			if err := json.Unmarshal(
				[]byte(payload), &frame,
			); err != nil {
				log.WarnS(streamCtx, "Dropping undecodable "+
					"live frame", err,
					"bytes", len(payload))
				continue
			}

			select {
			case stream.frames <- &frame:
			case <-streamCtx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil &&
			streamCtx.Err() == nil {

			stream.fail(err)
		}
	}()

	return stream, nil
}

// UpdateSubscriptions adjusts the topic set of an open push session. The
// server renews the subscription TTL on every call, so an empty diff works
// as a keep-alive.
func (c *Client) UpdateSubscriptions(ctx context.Context, sessionID string,
	subTopics, unsubTopics []string) error {

	_, err := c.do(ctx, &apiRequest{
		method:  http.MethodPost,
		url:     c.cfg.APIBaseURL + "1.1/live_pipeline/update_subscriptions",
		referer: c.cfg.WebBaseURL,
		headers: map[string]string{
			sessionHeaderName: sessionID,
		},
		form: url.Values{
			"sub_topics":   {strings.Join(subTopics, ",")},
			"unsub_topics": {strings.Join(unsubTopics, ",")},
		},
	}, nil)

	return err
}
