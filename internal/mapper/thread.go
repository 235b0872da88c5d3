package mapper

import (
	"sort"
	"strings"
	"time"

	"github.com/roasbeef/skylark/internal/model"
	"github.com/roasbeef/skylark/internal/wire"
)

// MapUser converts a platform account to the canonical shape. Returns false
// when the account record is missing from the lookaside table.
func MapUser(user *wire.User) (model.User, bool) {
	if user == nil {
		return model.User{}, false
	}

	return model.User{
		ID:       user.IDStr.String(),
		Username: user.ScreenName,
		FullName: user.Name,
		// The _normal variant is a 48px thumbnail; the bare URL is the
		// full-size original.
		ImgURL: strings.Replace(
			user.ProfileImageURLHTTPS, "_normal", "", 1,
		),
		IsVerified:    user.Verified,
		CannotMessage: user.IsDMAble != nil && !*user.IsDMAble,
	}, true
}

// MapParticipant joins an account record with its thread membership record.
func MapParticipant(user *wire.User, membership wire.ThreadParticipant,
	currentUserID string) (model.Participant, bool) {

	u, ok := MapUser(user)
	if !ok {
		return model.Participant{}, false
	}

	return model.Participant{
		ID:            u.ID,
		Username:      u.Username,
		FullName:      u.FullName,
		ImgURL:        u.ImgURL,
		IsSelf:        u.ID == currentUserID,
		IsVerified:    u.IsVerified,
		CannotMessage: u.CannotMessage,
	}, true
}

func mapThreadType(t string) model.ThreadType {
	if t == wire.ConversationGroupDM {
		return model.ThreadGroup
	}

	return model.ThreadSingle
}

// MapThread converts one conversation record. Participants are sorted so the
// current user lands last; message state is filled in by MapThreads, which
// has the entry batch in hand.
func MapThread(conv *wire.Conversation, users map[string]*wire.User,
	currentUserID string) model.Thread {

	participants := make([]model.Participant, 0, len(conv.Participants))
	for _, membership := range conv.Participants {
		p, ok := MapParticipant(
			users[membership.UserID.String()], membership,
			currentUserID,
		)
		if !ok {
			continue
		}
		participants = append(participants, p)
	}
	sort.SliceStable(participants, func(i, j int) bool {
		return !participants[i].IsSelf && participants[j].IsSelf
	})

	folder := model.FolderRequests
	if conv.Trusted {
		folder = model.FolderNormal
	}

	thread := model.Thread{
		ID:                conv.ConversationID.String(),
		Type:              mapThreadType(conv.Type),
		Title:             conv.Name,
		ImgURL:            conv.AvatarImageHTTPS,
		IsReadOnly:        conv.ReadOnly,
		LastReadMessageID: conv.LastReadEventID.String(),
		Folder:            folder,
		Participants:      participants,
	}
	if conv.SortTimestamp != 0 {
		thread.Timestamp = time.UnixMilli(int64(conv.SortTimestamp))
	}
	if conv.NotificationsDisabled {
		if conv.MuteExpirationTime != 0 {
			until := time.UnixMilli(int64(conv.MuteExpirationTime))
			thread.MutedUntil = &until
		} else {
			thread.MutedForever = true
		}
	}

	return thread
}

// ThreadIsUnread computes read state by comparing the embedded snowflake
// timestamps of the last-read marker and the newest message. A thread whose
// newest message was sent by the current user never reads as unread.
func ThreadIsUnread(lastReadID string, lastMessage *model.Message) bool {
	if lastMessage == nil {
		return false
	}
	if lastMessage.IsSender {
		return false
	}

	return wire.CompareSnowflakes(lastReadID, lastMessage.ID) < 0
}

// groupEntriesByThread buckets a mixed entry batch per conversation.
func groupEntriesByThread(entries []wire.Envelope) map[string][]wire.Envelope {
	grouped := make(map[string][]wire.Envelope)
	for _, env := range entries {
		threadID := env.Entry.ConversationID.String()
		grouped[threadID] = append(grouped[threadID], env)
	}

	return grouped
}

// MapThreads converts an inbox state into canonical threads: each
// conversation joined with its entries, messages mapped and ordered, read
// state computed. The second slice holds threads whose folder does not match
// wantFolder when a folder filter is given (empty wantFolder disables the
// split).
func MapThreads(state *wire.InboxState, currentUserID string,
	wantFolder model.FolderName) ([]model.Thread, []model.Thread) {

	if state == nil {
		return nil, nil
	}

	grouped := groupEntriesByThread(state.Entries)

	var matched, other []model.Thread
	for _, conv := range state.Conversations {
		thread := MapThread(conv, state.Users, currentUserID)

		messages := MapMessages(
			grouped[conv.ConversationID.String()], conv,
			currentUserID,
		)
		thread.Messages = messages
		thread.HasMoreMessages = conv.Status != wire.ConversationStatusAtEnd
		thread.OldestCursor = conv.MinEntryID.String()

		var last *model.Message
		if len(messages) > 0 {
			last = &messages[len(messages)-1]
		}
		thread.IsUnread = ThreadIsUnread(
			conv.LastReadEventID.String(), last,
		)

		if wantFolder != "" && thread.Folder != wantFolder {
			other = append(other, thread)
		} else {
			matched = append(matched, thread)
		}
	}

	// Map iteration order is random; present newest-first determinism.
	byNewest := func(threads []model.Thread) {
		sort.SliceStable(threads, func(i, j int) bool {
			return threads[i].Timestamp.After(threads[j].Timestamp)
		})
	}
	byNewest(matched)
	byNewest(other)

	return matched, other
}
