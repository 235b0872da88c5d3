package mapper

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roasbeef/skylark/internal/model"
	"github.com/roasbeef/skylark/internal/wire"
)

// NotificationSenderPrefix namespaces the synthetic sender ids used inside
// the notifications thread, one per notification category glyph.
const NotificationSenderPrefix = "notifications_"

// notificationAvatarSlotWidth is the per-user width of the avatar row
// prepended to aggregate notifications ("x and y liked your post").
const notificationAvatarSlotWidth = 3

// mapNotificationEntities converts the notification text annotations,
// shifting every range by the prefix offset.
func mapNotificationEntities(objects *wire.NotificationGlobalObjects,
	entities []wire.NotificationEntity, offset int) []model.TextEntity {

	out := make([]model.TextEntity, 0, len(entities))
	for _, e := range entities {
		entity := model.TextEntity{
			From: offset + e.FromIndex,
			To:   offset + e.ToIndex,
		}
		if e.Ref != nil && e.Ref.User != nil {
			entity.MentionedUser = e.Ref.User.ID.String()
		}
		out = append(out, entity)
	}

	return out
}

// NotificationTweetID digs the acted-on post id out of an aggregate
// notification.
func NotificationTweetID(n *wire.Notification) string {
	if n == nil || n.Template == nil ||
		n.Template.AggregateUserActionsV1 == nil {

		return ""
	}

	targets := n.Template.AggregateUserActionsV1.TargetObjects
	if len(targets) == 0 {
		return ""
	}

	return targets[0].Tweet.ID.String()
}

// MapNotification renders one aggregate notification ("x and y liked...")
// as a message in the synthetic notifications thread. The acting users'
// mention ranges occupy a prefix row ahead of the notification text.
func MapNotification(objects *wire.NotificationGlobalObjects, entryID string,
	notification *wire.Notification, linkURL string,
	currentUserID string) (model.Message, bool) {

	if notification == nil {
		return model.Message{}, false
	}

	var actingUsers []*wire.User
	if notification.Template != nil &&
		notification.Template.AggregateUserActionsV1 != nil {

		actions := notification.Template.AggregateUserActionsV1
		for _, from := range actions.FromUsers {
			if u := objects.Users[from.User.ID.String()]; u != nil {
				actingUsers = append(actingUsers, u)
			}
		}
	}

	prefix := ""
	if len(actingUsers) > 0 {
		prefix = strings.Repeat(
			" ", len(actingUsers)*notificationAvatarSlotWidth,
		) + "\n"
	}

	// Entity ranges are codepoint indices, so the prefix offset and the
	// trailing link span are measured in runes, not bytes.
	prefixRunes := utf8.RuneCountInString(prefix)
	entities := mapNotificationEntities(
		objects, notification.Message.Entities, prefixRunes,
	)
	for i, u := range actingUsers {
		from := i + 2*i
		entities = append([]model.TextEntity{{
			From:          from,
			To:            from + 1,
			MentionedUser: u.IDStr.String(),
		}}, entities...)
	}

	text := prefix + notification.Message.Text
	if strings.HasPrefix(linkURL, "https://") {
		entities = append(entities, model.TextEntity{
			From: prefixRunes,
			To:   utf8.RuneCountInString(text),
			Link: linkURL,
		})
	}

	iconCategory, _, _ := strings.Cut(notification.Icon.ID, "_")
	msg := model.Message{
		ID:           entryID,
		Text:         text,
		TextEntities: entities,
		Timestamp:    time.UnixMilli(int64(notification.TimestampMs)),
		SenderID:     NotificationSenderPrefix + iconCategory,
	}

	tweetID := NotificationTweetID(notification)
	if tweet := objects.Tweets[tweetID]; tweet != nil {
		attachTweet(&msg, objects, tweet, currentUserID)
	}

	return msg, true
}

// MapTweetNotification renders a bare post notification (a recommended or
// followed account's post surfaced in the feed).
func MapTweetNotification(objects *wire.NotificationGlobalObjects,
	entry *wire.TimelineEntry, tweetID string,
	currentUserID string) (model.Message, bool) {

	tweet := objects.Tweets[tweetID]
	if tweet == nil {
		return model.Message{}, false
	}

	msg := model.Message{
		ID:        entry.EntryID,
		SenderID:  NotificationSenderPrefix + "bird",
		Timestamp: time.UnixMilli(int64(entry.SortIndex)),
	}
	attachTweet(&msg, objects, tweet, currentUserID)

	return msg, true
}

// attachTweet embeds the post and mirrors its favorited state as the current
// user's heart reaction.
func attachTweet(msg *model.Message,
	objects *wire.NotificationGlobalObjects, tweet *wire.Tweet,
	currentUserID string) {

	var author *wire.TweetUser
	if u := objects.Users[tweet.UserIDStr.String()]; u != nil {
		author = &wire.TweetUser{
			Name:                u.Name,
			ScreenName:          u.ScreenName,
			ProfileImageURLHTTPS: u.ProfileImageURLHTTPS,
			Verified:            u.Verified,
		}
	}

	msg.Tweets = []model.TweetEmbed{MapTweet(tweet, author)}
	if tweet.Favorited {
		msg.Reactions = []model.Reaction{{
			ID:            currentUserID,
			ParticipantID: currentUserID,
			ReactionKey:   "❤️",
		}}
	}
}
