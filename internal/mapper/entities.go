package mapper

import (
	"net/url"
	"strings"

	"github.com/roasbeef/skylark/internal/model"
	"github.com/roasbeef/skylark/internal/wire"
)

// mediaProxyURLPrefix marks embedded DM media links that are not retrievable
// without authentication and must be stripped from the visible text.
const mediaProxyURLPrefix = "https://twitter.com/messages/media/"

// stripSchemeRe removes the scheme for display substitution of links.
func stripScheme(u string) string {
	if rest, ok := strings.CutPrefix(u, "https://"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(u, "http://"); ok {
		return rest
	}

	return u
}

// mapEntities converts a wire entities block into canonical text ranges.
// removeIndices, when non-nil, names a URL range that must be stripped
// instead of linkified: the trailing embed URL of a quoted post when the
// message carries no other user-authored text. Media links and the matching
// removal range consume the preceding separator character so stripping does
// not leave a dangling space.
func mapEntities(entities *wire.Entities, removeIndices *wire.Indices) []model.TextEntity {
	if entities == nil {
		return nil
	}

	var out []model.TextEntity

	empty := ""
	for _, u := range entities.URLs {
		shouldRemove := strings.HasPrefix(
			u.ExpandedURL, mediaProxyURLPrefix,
		) || (removeIndices != nil && *removeIndices == u.Indices)

		from := u.Indices[0]
		if shouldRemove {
			from = max(0, from-1)
			out = append(out, model.TextEntity{
				From:        from,
				To:          u.Indices[1],
				ReplaceWith: &empty,
			})

			continue
		}

		display := stripScheme(u.ExpandedURL)
		out = append(out, model.TextEntity{
			From:        from,
			To:          u.Indices[1],
			ReplaceWith: &display,
			Link:        u.ExpandedURL,
		})
	}

	for _, ht := range entities.Hashtags {
		out = append(out, model.TextEntity{
			From: ht.Indices[0],
			To:   ht.Indices[1],
			Link: "https://x.com/hashtag/" + url.PathEscape(ht.Text) +
				"?src=hashtag_click",
		})
	}

	for _, sym := range entities.Symbols {
		out = append(out, model.TextEntity{
			From: sym.Indices[0],
			To:   sym.Indices[1],
			Link: "https://x.com/search?q=" +
				url.QueryEscape(sym.Text) + "&src=cashtag_click",
		})
	}

	for _, mention := range entities.UserMentions {
		out = append(out, model.TextEntity{
			From:          mention.Indices[0],
			To:            mention.Indices[1],
			MentionedUser: mention.IDStr.String(),
		})
	}

	for _, media := range entities.Media {
		out = append(out, model.TextEntity{
			From:        media.Indices[0],
			To:          media.Indices[1],
			ReplaceWith: &empty,
		})
	}

	return out
}
