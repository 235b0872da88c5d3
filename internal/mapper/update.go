package mapper

import (
	"time"

	"github.com/roasbeef/skylark/internal/model"
	"github.com/roasbeef/skylark/internal/wire"
)

// typingIndicatorDuration is how long a typing signal stays live on the
// host's side.
const typingIndicatorDuration = 5 * time.Second

// MapLiveEvent decodes a push-channel frame into a canonical event. The
// second return is false for frames the push channel announces but carries
// no payload worth surfacing: the caller falls back to polling for those.
func MapLiveEvent(frame *wire.LiveFrame) (model.Event, bool) {
	switch {
	case frame.Payload.DMTyping != nil:
		ev := frame.Payload.DMTyping

		return &model.UserActivity{
			ThreadID:      ev.ConversationID.String(),
			ParticipantID: ev.UserID.String(),
			Type:          model.ActivityTyping,
			Duration:      typingIndicatorDuration,
		}, true

	// A dm_update ping names the thread but not what changed; the poll
	// channel delivers the actual content.
	case frame.Payload.DMUpdate != nil:
		return nil, false

	default:
		return nil, false
	}
}

// MapUserUpdate translates one poll-stream entry into canonical events,
// consulting the batch's conversation/user lookaside tables for context. An
// unrecognized entry kind never fails: it degrades to a thread refresh and
// is logged, since drift here means the upstream protocol has evolved.
func MapUserUpdate(env wire.Envelope, currentUserID string,
	state *wire.InboxState) []model.Event {

	entry := &env.Entry
	threadID := entry.ConversationID.String()

	conversation := func() *wire.Conversation {
		if state == nil {
			return nil
		}

		return state.Conversations[threadID]
	}

	messageCreated := func() []model.Event {
		conv := conversation()
		var participants []wire.ThreadParticipant
		if conv != nil {
			participants = conv.Participants
		}

		msg, ok := MapMessage(env, currentUserID, participants)
		if !ok {
			return nil
		}

		return []model.Event{&model.MessageUpsert{
			ThreadID: threadID,
			Messages: []model.Message{msg},
		}}
	}

	switch env.Kind {
	case wire.EntryConversationRead:
		conv := conversation()
		if conv == nil {
			return []model.Event{
				&model.ThreadRefresh{ThreadID: threadID},
			}
		}

		// Only trust the marker when it covers the newest sort event;
		// otherwise local state is stale and a refresh is safer.
		covered := wire.CompareSnowflakes(
			conv.LastReadEventID.String(),
			conv.SortEventID.String(),
		) >= 0
		if covered {
			unread := false

			return []model.Event{&model.ThreadUpdate{
				ThreadID: threadID,
				Patch: model.ThreadPatch{
					IsUnread: &unread,
				},
			}}
		}

		return []model.Event{
			&model.ThreadRefresh{ThreadID: threadID},
		}

	case wire.EntryDisableNotifications:
		patch := model.ThreadPatch{}
		conv := conversation()
		if conv != nil && conv.MuteExpirationTime != 0 {
			until := time.UnixMilli(int64(conv.MuteExpirationTime))
			patch.MutedUntil = &until
		} else {
			forever := true
			patch.MutedForever = &forever
		}

		return []model.Event{&model.ThreadUpdate{
			ThreadID: threadID,
			Patch:    patch,
		}}

	case wire.EntryEnableNotifications:
		unmuted := false

		return []model.Event{&model.ThreadUpdate{
			ThreadID: threadID,
			Patch: model.ThreadPatch{
				MutedForever: &unmuted,
			},
		}}

	case wire.EntryRemoveConversation:
		return []model.Event{&model.ThreadDelete{
			ThreadIDs: []string{threadID},
		}}

	case wire.EntryMessageDelete:
		ids := make([]string, 0, len(entry.Messages))
		for _, ref := range entry.Messages {
			ids = append(ids, ref.MessageID.String())
		}
		if len(ids) == 0 {
			return nil
		}

		return []model.Event{&model.MessageDelete{
			ThreadID:   threadID,
			MessageIDs: ids,
		}}

	case wire.EntryMessage, wire.EntryJoinConversation,
		wire.EntryWelcomeMessage, wire.EntryEndAVBroadcast:

		return messageCreated()

	case wire.EntryParticipantsJoin:
		var joined []model.Participant
		for _, membership := range entry.Participants {
			var user *wire.User
			if state != nil {
				user = state.Users[membership.UserID.String()]
			}
			p, ok := MapParticipant(
				user, membership, currentUserID,
			)
			if !ok {
				continue
			}
			joined = append(joined, p)
		}

		events := []model.Event{&model.ParticipantUpsert{
			ThreadID:     threadID,
			Participants: joined,
		}}

		return append(events, messageCreated()...)

	case wire.EntryParticipantsLeave:
		events := []model.Event{&model.ParticipantDelete{
			ThreadID:       threadID,
			ParticipantIDs: participantIDs(entry.Participants),
		}}

		return append(events, messageCreated()...)

	case wire.EntryConversationNameUpdate:
		title := entry.ConversationName
		events := []model.Event{&model.ThreadUpdate{
			ThreadID: threadID,
			Patch:    model.ThreadPatch{Title: &title},
		}}

		return append(events, messageCreated()...)

	case wire.EntryConversationAvatarUpdate:
		img := entry.ConversationAvatarImageHTTPS
		events := []model.Event{&model.ThreadUpdate{
			ThreadID: threadID,
			Patch:    model.ThreadPatch{ImgURL: &img},
		}}

		return append(events, messageCreated()...)

	case wire.EntryTrustConversation:
		folder := model.FolderNormal
		events := []model.Event{&model.ThreadUpdate{
			ThreadID: threadID,
			Patch:    model.ThreadPatch{Folder: &folder},
		}}

		return append(events, messageCreated()...)

	case wire.EntryReactionCreate:
		reaction := MapReaction(wire.MessageReaction{
			ID:            entry.ID,
			Time:          entry.Time,
			SenderID:      entry.SenderID,
			ReactionKey:   entry.ReactionKey,
			EmojiReaction: entry.EmojiReaction,
		})

		// The reaction payload alone cannot resort or recount the
		// thread reliably, so pair the upsert with a refresh hint.
		return []model.Event{
			&model.ReactionUpsert{
				ThreadID:  threadID,
				MessageID: entry.MessageID.String(),
				Reaction:  reaction,
			},
			&model.ThreadRefresh{ThreadID: threadID},
		}

	case wire.EntryReactionDelete:
		return []model.Event{&model.ReactionDelete{
			ThreadID:      threadID,
			MessageID:     entry.MessageID.String(),
			ParticipantID: entry.SenderID.String(),
		}}

	case wire.EntryConversationCreate, wire.EntryConvoMetadataUpdate:
		// Pure bookkeeping, nothing user-visible.
		return nil

	default:
		log.Warnf("Unknown poll entry kind %q, falling back to "+
			"thread refresh (thread_id=%s)", env.RawKind, threadID)

		return []model.Event{
			&model.ThreadRefresh{ThreadID: threadID},
		}
	}
}

// MapUserUpdates maps a full poll batch in order.
func MapUserUpdates(state *wire.InboxState,
	currentUserID string) []model.Event {

	if state == nil {
		return nil
	}

	var out []model.Event
	for _, env := range state.Entries {
		out = append(out, MapUserUpdate(env, currentUserID, state)...)
	}

	return out
}
