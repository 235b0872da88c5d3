package wire

// SystemConfigTopic is the reserved topic of the push channel's handshake
// frame. The session id must not be trusted before this frame arrives.
const SystemConfigTopic = "/system/config"

// SessionConfig is the payload of the handshake frame.
type SessionConfig struct {
	SessionID             string `json:"session_id"`
	SubscriptionTTLMillis Millis `json:"subscription_ttl_millis"`
}

// TopicEvent is the payload of a thread-scoped push event.
type TopicEvent struct {
	ConversationID ID `json:"conversation_id"`
	UserID         ID `json:"user_id"`
}

// LivePayload is the union of push-frame payloads. Exactly one field is set
// per frame.
type LivePayload struct {
	Config   *SessionConfig `json:"config,omitempty"`
	DMUpdate *TopicEvent    `json:"dm_update,omitempty"`
	DMTyping *TopicEvent    `json:"dm_typing,omitempty"`
}

// LiveFrame is one JSON frame from the push channel.
type LiveFrame struct {
	Topic   string      `json:"topic"`
	Payload LivePayload `json:"payload"`
}

// IsConfig reports whether the frame is the session handshake.
func (f *LiveFrame) IsConfig() bool {
	return f.Topic == SystemConfigTopic && f.Payload.Config != nil
}
