package live

import (
	"context"

	"github.com/roasbeef/skylark/internal/client"
	"github.com/roasbeef/skylark/internal/wire"
)

// Topic names of the push channel.
const (
	updateTopicPrefix = "/dm_update/"
	typingTopicPrefix = "/dm_typing/"
)

// UpdateTopic is the account-scoped topic pinged whenever any of the
// account's threads change.
func UpdateTopic(userID string) string {
	return updateTopicPrefix + userID
}

// TypingTopic is the thread-scoped topic carrying typing signals.
func TypingTopic(threadID string) string {
	return typingTopicPrefix + threadID
}

// Stream is one open push connection. Frames is closed when the connection
// dies; Err explains why, nil meaning clean shutdown.
type Stream interface {
	Frames() <-chan *wire.LiveFrame
	Err() error
	Close()
}

// Transport is the network surface the subscription manager drives. The
// production implementation sits on *client.Client; tests substitute fakes.
type Transport interface {
	// OpenStream connects a push stream scoped to the given topics.
	OpenStream(ctx context.Context, topics []string) (Stream, error)

	// UpdateSubscriptions diffs the topic set of an open session.
	// Calling it also renews the session's subscription TTL.
	UpdateSubscriptions(ctx context.Context, sessionID string,
		subTopics, unsubTopics []string) error
}

// clientTransport adapts *client.Client to the Transport interface.
type clientTransport struct {
	api *client.Client
}

// NewTransport wraps the API client as a push transport.
func NewTransport(api *client.Client) Transport {
	return &clientTransport{api: api}
}

func (t *clientTransport) OpenStream(ctx context.Context,
	topics []string) (Stream, error) {

	return t.api.OpenLiveStream(ctx, topics)
}

func (t *clientTransport) UpdateSubscriptions(ctx context.Context,
	sessionID string, subTopics, unsubTopics []string) error {

	return t.api.UpdateSubscriptions(
		ctx, sessionID, subTopics, unsubTopics,
	)
}
