package mapper

import (
	"encoding/hex"
	"html"
	"sort"
	"time"

	"github.com/roasbeef/skylark/internal/model"
	"github.com/roasbeef/skylark/internal/wire"
)

// truncateLimit bounds the quoted excerpt inside reaction activity messages.
const truncateLimit = 30

func truncateText(s string) string {
	runes := []rune(s)
	if len(runes) <= truncateLimit {
		return s
	}

	return string(runes[:truncateLimit-3]) + "..."
}

// mapVideo converts a video or gif media object. The source URL is the
// highest-bitrate mp4 variant.
func mapVideo(m *wire.MediaEntity) model.Attachment {
	var (
		best     string
		bestRate = -1
	)
	if m.VideoInfo != nil {
		for _, v := range m.VideoInfo.Variants {
			if v.ContentType != "video/mp4" {
				continue
			}
			if v.Bitrate > bestRate {
				bestRate = v.Bitrate
				best = v.URL
			}
		}
	}

	kind := model.AttachmentVideo
	if m.AudioOnly {
		kind = model.AttachmentAudio
	}

	att := model.Attachment{
		ID:        m.IDStr.String(),
		Type:      kind,
		SrcURL:    best,
		PosterURL: m.MediaURLHTTPS,
	}
	if m.OriginalInfo != nil {
		att.Size = &model.Size{
			Width:  m.OriginalInfo.Width,
			Height: m.OriginalInfo.Height,
		}
	}

	return att
}

// mapDynamicPhoto converts a DM photo. DM images are only retrievable with
// auth cookies, so the source URL is an asset reference the host resolves
// through the connector's media proxy; the hex payload is the real URL.
func mapDynamicPhoto(m *wire.MediaEntity) model.Attachment {
	att := model.Attachment{
		ID:     m.IDStr.String(),
		Type:   model.AttachmentImg,
		SrcURL: "asset://media/" + hex.EncodeToString([]byte(m.MediaURLHTTPS)),
	}
	if m.OriginalInfo != nil {
		att.Size = &model.Size{
			Width:  m.OriginalInfo.Width,
			Height: m.OriginalInfo.Height,
		}
	}

	return att
}

// mapPhoto converts a publicly addressable photo (tweet media).
func mapPhoto(m *wire.MediaEntity) model.Attachment {
	att := model.Attachment{
		ID:     m.IDStr.String(),
		Type:   model.AttachmentImg,
		SrcURL: m.MediaURLHTTPS,
	}
	if m.OriginalInfo != nil {
		att.Size = &model.Size{
			Width:  m.OriginalInfo.Width,
			Height: m.OriginalInfo.Height,
		}
	}

	return att
}

// mapCard converts a link-preview card's binding values.
func mapCard(card *wire.Card) model.MessageLink {
	img := card.Binding("thumbnail_image_large")
	if img.ImageValue == nil {
		img = card.Binding("thumbnail_image_original")
	}
	if img.ImageValue == nil {
		img = card.Binding("player_image_original")
	}
	if img.ImageValue == nil {
		img = card.Binding("event_thumbnail_original")
	}

	title := card.Binding("event_title").StringValue
	if title == "" {
		title = card.Binding("title").StringValue
	}
	summary := card.Binding("event_subtitle").StringValue
	if summary == "" {
		summary = card.Binding("description").StringValue
	}

	link := model.MessageLink{
		URL:     card.Binding("card_url").StringValue,
		Title:   title,
		Summary: summary,
	}
	if img.ImageValue != nil {
		link.ImgURL = img.ImageValue.URL
		if img.ImageValue.Width > 0 && img.ImageValue.Height > 0 {
			link.ImgSize = &model.Size{
				Width:  img.ImageValue.Width,
				Height: img.ImageValue.Height,
			}
		}
	}

	return link
}

// MapTweet converts an embedded post, its media, and its text entities.
func MapTweet(tweet *wire.Tweet, user *wire.TweetUser) model.TweetEmbed {
	text := tweet.FullText
	if text == "" {
		text = tweet.Text
	}
	if tweet.Card != nil && len(tweet.Card.Name) >= 4 &&
		tweet.Card.Name[:4] == "poll" {

		text += "\n\n[Poll]"
	}

	embed := model.TweetEmbed{
		ID:   tweet.IDStr.String(),
		Text: text,
	}
	if user != nil {
		embed.UserName = user.Name
		embed.Username = user.ScreenName
		embed.UserImgURL = user.ProfileImageURLHTTPS
	}
	if tweet.CreatedAt != "" {
		if ts, err := time.Parse(
			wire.TweetCreatedAtLayout, tweet.CreatedAt,
		); err == nil {
			embed.Timestamp = ts
		}
	}

	media := tweet.Entities
	if tweet.ExtendedEntities != nil &&
		len(tweet.ExtendedEntities.Media) > 0 {

		media = tweet.ExtendedEntities
	}
	if media != nil {
		for _, m := range media.Media {
			m := m
			switch m.Type {
			case "video":
				embed.Attachments = append(
					embed.Attachments, mapVideo(&m),
				)
			case "animated_gif":
				att := mapVideo(&m)
				att.IsGif = true
				embed.Attachments = append(
					embed.Attachments, att,
				)
			case "photo":
				embed.Attachments = append(
					embed.Attachments, mapPhoto(&m),
				)
			}
		}
	}

	// Decode HTML entities only when no ranges reference offsets into
	// the text.
	if entities := mapEntities(tweet.Entities, nil); len(entities) == 0 {
		embed.Text = html.UnescapeString(embed.Text)
	}

	return embed
}

// callMessageText renders the system text of a call-ended entry.
func callMessageText(entry *wire.Entry) string {
	audio := entry.CallType == wire.CallAudioOnly

	callNoun := "video call"
	callTitle := "Video call"
	if audio {
		callNoun = "audio call"
		callTitle = "Audio call"
	}

	switch entry.EndReason {
	case wire.CallEndCanceled:
		return "Canceled " + callNoun
	case wire.CallEndMissed:
		return "Missed " + callNoun
	case wire.CallEndDeclined:
		return "Declined " + callNoun
	case wire.CallEndTimedOut, wire.CallEndHungUp:
		return callTitle + " ended"
	default:
		return callTitle
	}
}

// participantRefs builds participant template segments joined by commas,
// skipping the excluded id.
func participantRefs(participants []wire.ThreadParticipant,
	exclude string) []model.TemplateSegment {

	var segs []model.TemplateSegment
	for _, p := range participants {
		id := p.UserID.String()
		if id == exclude {
			continue
		}
		if len(segs) > 0 {
			segs = append(segs, model.TemplateSegment{
				Kind: model.SegmentLiteral,
				Text: ", ",
			})
		}
		segs = append(segs, model.TemplateSegment{
			Kind:          model.SegmentParticipant,
			ParticipantID: id,
		})
	}

	return segs
}

func literalSeg(text string) model.TemplateSegment {
	return model.TemplateSegment{Kind: model.SegmentLiteral, Text: text}
}

func participantSeg(id string) model.TemplateSegment {
	return model.TemplateSegment{
		Kind:          model.SegmentParticipant,
		ParticipantID: id,
	}
}

// MapMessage converts one timeline entry into a canonical message. The
// second return is false for bookkeeping entries that carry no user-visible
// content (conversation_create, convo_metadata_update) and for entry kinds
// that are not messages at all.
func MapMessage(env wire.Envelope, currentUserID string,
	threadParticipants []wire.ThreadParticipant) (model.Message, bool) {

	entry := &env.Entry

	msg := model.Message{
		ID:        entry.ID.String(),
		ThreadID:  entry.ConversationID.String(),
		Timestamp: time.UnixMilli(int64(entry.Time)),
		Reactions: MapReactions(entry.MessageReactions),
		SenderID:  model.SystemSenderID,
	}
	if entry.AffectsSort != nil && !*entry.AffectsSort {
		msg.IsHidden = true
	}

	switch {
	case entry.MessageData != nil:
		mapContentMessage(&msg, entry)

	default:
		msg.IsAction = true
		ok := mapActionMessage(&msg, env.Kind, entry, currentUserID)
		if !ok {
			return model.Message{}, false
		}
	}

	msg.IsSender = msg.SenderID == currentUserID
	msg.Seen = seenByAnyone(threadParticipants, msg.ID, currentUserID)

	return msg, true
}

// mapContentMessage fills a user-authored message from its message_data.
func mapContentMessage(msg *model.Message, entry *wire.Entry) {
	data := entry.MessageData
	if data.SenderID != "" {
		msg.SenderID = data.SenderID.String()
	}
	msg.Text = data.Text
	if data.ReplyData != nil {
		msg.LinkedMessageID = data.ReplyData.ID.String()
	}

	var (
		att         = data.Attachment
		removeRange *wire.Indices
	)
	if att != nil && att.Tweet != nil && att.Tweet.Indices != nil {
		// Hide the embed URL only when it spans exactly the tail of
		// the text: otherwise stripping would eat user-authored text.
		if len([]rune(msg.Text)) == att.Tweet.Indices[1] {
			removeRange = att.Tweet.Indices
		}
	}

	entities := mapEntities(data.Entities, removeRange)
	if len(entities) > 0 {
		// Entity offsets index the raw text, so HTML decoding must
		// wait until the host applies the replacements.
		msg.TextEntities = entities
	} else if msg.Text != "" {
		msg.Text = html.UnescapeString(msg.Text)
	}

	if att != nil {
		if att.Card != nil {
			msg.Links = []model.MessageLink{mapCard(att.Card)}
		}
		if att.Tweet != nil && att.Tweet.Status != nil {
			status := att.Tweet.Status
			msg.Tweets = []model.TweetEmbed{
				MapTweet(status, status.User),
			}
		}
		if att.AnimatedGif != nil {
			gif := mapVideo(att.AnimatedGif)
			gif.IsGif = true
			msg.Attachments = append(msg.Attachments, gif)
		}
		if att.Video != nil {
			msg.Attachments = append(
				msg.Attachments, mapVideo(att.Video),
			)
		}
		if att.Photo != nil {
			msg.Attachments = append(
				msg.Attachments, mapDynamicPhoto(att.Photo),
			)
		}
	}

	for _, cta := range data.CTAs {
		msg.Buttons = append(msg.Buttons, model.MessageButton{
			Type:    model.ButtonCallToAction,
			Label:   cta.Label,
			LinkURL: cta.URL,
		})
	}
	if data.QuickReply != nil {
		for _, opt := range data.QuickReply.Options {
			msg.Buttons = append(msg.Buttons, model.MessageButton{
				Type:  model.ButtonQuickReply,
				Label: opt.Label,
			})
		}
	}
}

// mapActionMessage fills a system/action message. Returns false for entry
// kinds that produce no visible message.
func mapActionMessage(msg *model.Message, kind wire.EntryKind,
	entry *wire.Entry, currentUserID string) bool {

	switch kind {
	case wire.EntryJoinConversation:
		msg.SenderID = entry.SenderID.String()
		msg.Template = []model.TemplateSegment{
			participantSeg(msg.SenderID),
			literalSeg(" added "),
			participantSeg(currentUserID),
		}

	case wire.EntryParticipantsJoin:
		msg.SenderID = entry.SenderID.String()
		segs := []model.TemplateSegment{
			participantSeg(msg.SenderID),
			literalSeg(" added "),
		}
		segs = append(segs, participantRefs(
			entry.Participants, msg.SenderID,
		)...)
		msg.Template = segs
		msg.Action = &model.MessageAction{
			Type:               model.ActionParticipantsAdded,
			ActorParticipantID: msg.SenderID,
			ParticipantIDs:     participantIDs(entry.Participants),
		}

	case wire.EntryParticipantsLeave:
		segs := participantRefs(entry.Participants, "")
		segs = append(segs, literalSeg(" left"))
		msg.Template = segs
		msg.Action = &model.MessageAction{
			Type:           model.ActionParticipantsRemoved,
			ParticipantIDs: participantIDs(entry.Participants),
		}

	case wire.EntryConversationAvatarUpdate:
		msg.SenderID = entry.ByUserID.String()
		msg.Template = []model.TemplateSegment{
			participantSeg(msg.SenderID),
			literalSeg(" changed the group photo"),
		}

	case wire.EntryConversationNameUpdate:
		msg.SenderID = entry.ByUserID.String()
		msg.Template = []model.TemplateSegment{
			participantSeg(msg.SenderID),
			literalSeg(" changed the group name to " +
				entry.ConversationName),
		}
		msg.Action = &model.MessageAction{
			Type:               model.ActionThreadTitleUpdated,
			Title:              entry.ConversationName,
			ActorParticipantID: msg.SenderID,
		}

	case wire.EntryTrustConversation:
		msg.SenderID = currentUserID
		switch entry.Reason {
		case wire.TrustReasonAccept:
			msg.Text = "You accepted the request"
			msg.Action = &model.MessageAction{
				Type: model.ActionRequestAccepted,
			}
		case wire.TrustReasonFollow:
			msg.Text = "You followed this account"
			msg.Action = &model.MessageAction{
				Type: model.ActionRequestAccepted,
			}
		}

	case wire.EntryEndAVBroadcast:
		msg.Text = callMessageText(entry)
		msg.Action = &model.MessageAction{
			Type: model.ActionCallEnded,
		}

	case wire.EntryConversationCreate, wire.EntryConvoMetadataUpdate:
		return false

	default:
		return false
	}

	return true
}

func participantIDs(participants []wire.ThreadParticipant) []string {
	out := make([]string, 0, len(participants))
	for _, p := range participants {
		out = append(out, p.UserID.String())
	}

	return out
}

// seenByAnyone reports whether any other participant's read marker covers
// the message.
func seenByAnyone(participants []wire.ThreadParticipant, messageID,
	currentUserID string) bool {

	for _, p := range participants {
		if p.UserID.String() == currentUserID {
			continue
		}
		if p.LastReadEventID == "" {
			continue
		}
		if wire.CompareSnowflakes(
			messageID, p.LastReadEventID.String(),
		) <= 0 {

			return true
		}
	}

	return false
}

// MapReactionMessages surfaces each reaction on a message as a hidden
// activity-feed message in addition to the reaction set on the message
// itself.
func MapReactionMessages(env wire.Envelope,
	currentUserID string) []model.Message {

	entry := &env.Entry
	if len(entry.MessageReactions) == 0 {
		return nil
	}

	var excerpt string
	if entry.MessageData != nil {
		excerpt = truncateText(entry.MessageData.Text)
	}

	out := make([]model.Message, 0, len(entry.MessageReactions))
	for _, r := range entry.MessageReactions {
		senderID := r.SenderID.String()
		key := NormalizeReactionKey(r.ReactionKey, r.EmojiReaction)
		isSender := senderID == currentUserID

		tail := " reacted with " + key
		if excerpt != "" {
			tail += ": " + excerpt
		}

		var segs []model.TemplateSegment
		if isSender {
			segs = []model.TemplateSegment{
				literalSeg("You" + tail),
			}
		} else {
			segs = []model.TemplateSegment{
				participantSeg(senderID),
				literalSeg(tail),
			}
		}

		out = append(out, model.Message{
			ID:        r.ID.String(),
			ThreadID:  entry.ConversationID.String(),
			Timestamp: time.UnixMilli(int64(r.Time)),
			SenderID:  senderID,
			IsSender:  isSender,
			Template:  segs,
			IsAction:  true,
			IsHidden:  true,
			Action: &model.MessageAction{
				Type:               model.ActionReactionCreated,
				MessageID:          entry.ID.String(),
				ActorParticipantID: senderID,
				ReactionKey:        key,
			},
			LinkedMessageID: entry.ID.String(),
		})
	}

	return out
}

// MapMessages converts a batch of entries for one conversation, including
// the hidden reaction activity messages, ordered by timestamp ascending.
func MapMessages(entries []wire.Envelope, conv *wire.Conversation,
	currentUserID string) []model.Message {

	var participants []wire.ThreadParticipant
	if conv != nil {
		participants = conv.Participants
	}

	var out []model.Message
	for _, env := range entries {
		if msg, ok := MapMessage(
			env, currentUserID, participants,
		); ok {
			out = append(out, msg)
		}
		out = append(out, MapReactionMessages(env, currentUserID)...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	return out
}
