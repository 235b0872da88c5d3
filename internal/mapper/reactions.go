package mapper

import (
	"strings"

	"github.com/roasbeef/skylark/internal/model"
	"github.com/roasbeef/skylark/internal/wire"
)

// reactionKeyEmoji is the reaction_key value that marks a free-form emoji
// reaction carried in emoji_reaction.
const reactionKeyEmoji = "emoji"

// reactionGlyphs maps the platform's named reaction keys to the glyphs the
// host renders.
var reactionGlyphs = map[string]string{
	"funny":     "😂",
	"surprised": "😲",
	"sad":       "😢",
	"like":      "❤️",
	"excited":   "🔥",
	"agree":     "👍",
	"disagree":  "👎",
}

// NormalizeReactionKey resolves a wire reaction to the glyph form: emoji
// reactions are lowercased verbatim, named keys map through the glyph table,
// and unrecognized keys pass through untouched.
func NormalizeReactionKey(reactionKey, emojiReaction string) string {
	if reactionKey == reactionKeyEmoji {
		return strings.ToLower(emojiReaction)
	}
	if glyph, ok := reactionGlyphs[reactionKey]; ok {
		return glyph
	}

	return reactionKey
}

// ReactionName resolves a host-supplied reaction, glyph or named key, back
// to the platform's named key. Returns false for reactions the platform
// does not support.
func ReactionName(key string) (string, bool) {
	if _, ok := reactionGlyphs[key]; ok {
		return key, true
	}
	for name, glyph := range reactionGlyphs {
		if glyph == key {
			return name, true
		}
	}

	return "", false
}

// MapReaction converts one wire reaction record to the canonical shape.
func MapReaction(r wire.MessageReaction) model.Reaction {
	key := NormalizeReactionKey(r.ReactionKey, r.EmojiReaction)

	return model.Reaction{
		ID:            r.SenderID.String(),
		ParticipantID: r.SenderID.String(),
		ReactionKey:   key,
		Emoji:         r.ReactionKey == reactionKeyEmoji,
	}
}

// MapReactions converts a message entry's reaction list.
func MapReactions(reactions []wire.MessageReaction) []model.Reaction {
	out := make([]model.Reaction, 0, len(reactions))
	for _, r := range reactions {
		out = append(out, MapReaction(r))
	}

	return out
}
