package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/roasbeef/skylark/internal/wire"
)

// GraphQL document ids of the DM mutations the web app ships.
const (
	sendMessageQueryID   = "MaxK2PKX1F9Z-9SwqwavTw"
	sendMessageQueryName = "useSendMessageMutation"
	typingQueryID        = "HL96-xZ3Y81IEzAdczDokg"
	typingQueryName      = "useTypingNotifierMutation"
	reactionAddQueryID   = "VvqwjKXjT6j6CTqvlqdYCw"
	reactionAddQueryName = "useDMReactionMutationAddMutation"
	reactionDelQueryID   = "-vqtYGrnU8xx1d_9tVE0lw"
	reactionDelQueryName = "useDMReactionMutationRemoveMutation"
)

// sendMessageVariables is the variables document of the send mutation.
// Exactly one of the message variants is non-nil.
type sendMessageVariables struct {
	Message   sendMessageBody   `json:"message"`
	RequestID string            `json:"requestId"`
	Target    sendMessageTarget `json:"target"`
}

type sendMessageBody struct {
	Text  *sendMessageText  `json:"text"`
	Media *sendMessageMedia `json:"media"`
	Tweet *struct{}         `json:"tweet"`
	Card  *sendMessageCard  `json:"card"`
}

type sendMessageText struct {
	Text string `json:"text"`
}

type sendMessageMedia struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type sendMessageCard struct {
	URI  string `json:"uri"`
	Text string `json:"text"`
}

// sendMessageTarget names either an existing conversation or, for the first
// message of a new thread, the recipient set.
type sendMessageTarget struct {
	ConversationID string   `json:"conversation_id,omitempty"`
	ParticipantIDs []string `json:"participant_ids,omitempty"`
}

// tombstoneCardURI suppresses the automatic link preview card on a send.
const tombstoneCardURI = "tombstone://card"

// SendMessageRequest parameterizes one message send. ThreadID and
// RecipientIDs are mutually exclusive: the latter opens a new thread.
type SendMessageRequest struct {
	Text         string
	ThreadID     string
	RecipientIDs []string

	// RequestID deduplicates retried sends; minted when empty.
	RequestID string

	// MediaID attaches a previously uploaded media object.
	MediaID string

	// SuppressPreview disables the automatic link preview card.
	SuppressPreview bool
}

// SendMessage delivers a message through the GraphQL send mutation.
func (c *Client) SendMessage(ctx context.Context,
	req SendMessageRequest) error {

	requestID := req.RequestID
	if requestID == "" {
		requestID = newRequestID()
	} else {
		requestID = strings.ToUpper(requestID)
	}

	variables := sendMessageVariables{
		RequestID: requestID,
	}
	if len(req.RecipientIDs) > 0 {
		variables.Target.ParticipantIDs = req.RecipientIDs
	} else {
		variables.Target.ConversationID = req.ThreadID
	}

	switch {
	case req.MediaID != "":
		variables.Message.Media = &sendMessageMedia{
			ID:   req.MediaID,
			Text: req.Text,
		}

	case req.SuppressPreview:
		variables.Message.Card = &sendMessageCard{
			URI:  tombstoneCardURI,
			Text: req.Text,
		}

	default:
		variables.Message.Text = &sendMessageText{Text: req.Text}
	}

	var resp wire.SendDMResponse
	err := c.gqlMutation(
		ctx, sendMessageQueryID, sendMessageQueryName, variables,
		c.cfg.WebBaseURL, &resp,
	)
	if err != nil {
		return err
	}

	if resp.Data.CreateDM.Typename != wire.CreateDMSuccess {
		if reason := resp.Data.CreateDM.DMValidationFailureType; reason != "" {
			return fmt.Errorf("send rejected: %s", reason)
		}

		return fmt.Errorf("send failed: unexpected result %q",
			resp.Data.CreateDM.Typename)
	}

	return nil
}

// DeleteMessage removes a message for the current account.
func (c *Client) DeleteMessage(ctx context.Context, threadID,
	messageID string) error {

	form := commonDMParams()
	form.Set("id", messageID)
	form.Set("request_id", newRequestID())

	_, err := c.do(ctx, &apiRequest{
		method:  http.MethodPost,
		url:     c.cfg.APIBaseURL + "1.1/dm/destroy.json",
		referer: c.messagesReferer(threadID),
		form:    form,
	}, nil)

	return err
}

// SendTypingIndicator signals that the current account is typing in the
// thread. The platform keeps the signal live for a few seconds; the caller
// re-sends while typing continues.
func (c *Client) SendTypingIndicator(ctx context.Context,
	threadID string) error {

	var resp wire.TypingIndicatorResponse
	err := c.gqlMutation(ctx, typingQueryID, typingQueryName, map[string]any{
		"conversationId": threadID,
	}, c.cfg.WebBaseURL, &resp)
	if err != nil {
		return err
	}

	typename := resp.Data.PostTypingIndicator.Typename
	if typename != wire.TypingIndicatorSuccess {
		return fmt.Errorf("typing indicator failed: "+
			"unexpected result %q", typename)
	}

	return nil
}

// capitalizeReaction uppercases the first letter of a named reaction key,
// which is the casing the mutation expects.
func capitalizeReaction(key string) string {
	if key == "" {
		return key
	}

	return strings.ToUpper(key[:1]) + key[1:]
}

// AddReaction attaches a named reaction to a message.
func (c *Client) AddReaction(ctx context.Context, threadID, messageID,
	reactionKey string) error {

	return c.gqlMutation(
		ctx, reactionAddQueryID, reactionAddQueryName,
		map[string]any{
			"conversationId": threadID,
			"messageId":      messageID,
			"reactionTypes": []string{
				capitalizeReaction(reactionKey),
			},
		}, c.cfg.WebBaseURL, nil,
	)
}

// RemoveReaction removes a named reaction from a message.
func (c *Client) RemoveReaction(ctx context.Context, threadID, messageID,
	reactionKey string) error {

	return c.gqlMutation(
		ctx, reactionDelQueryID, reactionDelQueryName,
		map[string]any{
			"conversationId": threadID,
			"messageId":      messageID,
			"reactionTypes": []string{
				capitalizeReaction(reactionKey),
			},
		}, c.cfg.WebBaseURL, nil,
	)
}
