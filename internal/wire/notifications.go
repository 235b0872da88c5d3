package wire

import (
	"encoding/json"
	"fmt"
)

// NotificationGlobalObjects is the lookaside table of a notifications feed
// response.
type NotificationGlobalObjects struct {
	Tweets        map[string]*Tweet        `json:"tweets,omitempty"`
	Users         map[string]*User         `json:"users,omitempty"`
	Notifications map[string]*Notification `json:"notifications,omitempty"`
}

// NotificationEntity annotates a range of a notification's message text.
// Offsets are rune indices, unlike the indices arrays of DM entities.
type NotificationEntity struct {
	FromIndex int    `json:"fromIndex"`
	ToIndex   int    `json:"toIndex"`
	Format    string `json:"format,omitempty"`

	Ref *struct {
		User *struct {
			ID ID `json:"id"`
		} `json:"user,omitempty"`
	} `json:"ref,omitempty"`
}

// NotificationMessage is the rendered text of a notification.
type NotificationMessage struct {
	Text     string               `json:"text"`
	Entities []NotificationEntity `json:"entities,omitempty"`
}

// NotificationIcon names the notification's category glyph.
type NotificationIcon struct {
	ID string `json:"id"`
}

// AggregateUserActions summarizes who acted on what.
type AggregateUserActions struct {
	TargetObjects []struct {
		Tweet struct {
			ID ID `json:"id"`
		} `json:"tweet"`
	} `json:"targetObjects,omitempty"`

	FromUsers []struct {
		User struct {
			ID ID `json:"id"`
		} `json:"user"`
	} `json:"fromUsers,omitempty"`
}

// NotificationTemplate wraps the aggregate action summary.
type NotificationTemplate struct {
	AggregateUserActionsV1 *AggregateUserActions `json:"aggregateUserActionsV1,omitempty"`
}

// Notification is one entry of the notifications lookaside table.
type Notification struct {
	ID          ID                    `json:"id"`
	TimestampMs Millis                `json:"timestampMs"`
	Icon        NotificationIcon      `json:"icon"`
	Message     NotificationMessage   `json:"message"`
	Template    *NotificationTemplate `json:"template,omitempty"`
}

// TimelineCursor is a paging operation inside a timeline entry.
type TimelineCursor struct {
	CursorType string `json:"cursorType"`
	Value      string `json:"value"`
}

// Cursor types in timeline operations.
const (
	CursorTop    = "Top"
	CursorBottom = "Bottom"
)

// TimelineEntryContent is the body of a timeline entry: either a paging
// operation or an item referencing a tweet or notification.
type TimelineEntryContent struct {
	Operation *struct {
		Cursor TimelineCursor `json:"cursor"`
	} `json:"operation,omitempty"`

	Item *struct {
		Content struct {
			Tweet *struct {
				ID ID `json:"id"`
			} `json:"tweet,omitempty"`
			Notification *struct {
				ID  ID `json:"id"`
				URL *struct {
					URL string `json:"url"`
				} `json:"url,omitempty"`
			} `json:"notification,omitempty"`
		} `json:"content"`
	} `json:"item,omitempty"`
}

// TimelineEntry is one row of a notifications timeline.
type TimelineEntry struct {
	EntryID   string               `json:"entryId"`
	SortIndex Millis               `json:"sortIndex,omitempty"`
	Content   TimelineEntryContent `json:"content"`
}

// InstructionKind discriminates timeline instructions.
type InstructionKind string

const (
	InstructionAddEntries    InstructionKind = "addEntries"
	InstructionRemoveEntries InstructionKind = "removeEntries"
	InstructionMarkUnread    InstructionKind = "markEntriesUnreadGreaterThanSortIndex"
	InstructionClearCache    InstructionKind = "clearCache"
	InstructionClearUnread   InstructionKind = "clearEntriesUnreadState"
	InstructionUnknown       InstructionKind = ""
)

// InstructionBody is the merged payload of a timeline instruction.
type InstructionBody struct {
	Entries   []TimelineEntry `json:"entries,omitempty"`
	EntryIDs  []string        `json:"entryIds,omitempty"`
	SortIndex Millis          `json:"sortIndex,omitempty"`
}

// TimelineInstruction is a single-key tagged union, decoded once here like
// the DM entry envelope.
type TimelineInstruction struct {
	Kind    InstructionKind
	RawKind string
	Body    InstructionBody
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TimelineInstruction) UnmarshalJSON(data []byte) error {
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(data, &keyed); err != nil {
		return fmt.Errorf("timeline instruction: %w", err)
	}
	if len(keyed) != 1 {
		return fmt.Errorf("timeline instruction: expected exactly "+
			"one discriminator key, got %d", len(keyed))
	}

	for rawKind, payload := range keyed {
		t.RawKind = rawKind
		switch InstructionKind(rawKind) {
		case InstructionAddEntries, InstructionRemoveEntries,
			InstructionMarkUnread, InstructionClearCache,
			InstructionClearUnread:

			t.Kind = InstructionKind(rawKind)

		default:
			t.Kind = InstructionUnknown
		}

		if err := json.Unmarshal(payload, &t.Body); err != nil {
			return fmt.Errorf("instruction %q payload: %w",
				rawKind, err)
		}
	}

	return nil
}

// NotificationsResponse is the notifications feed body.
type NotificationsResponse struct {
	ErrorEnvelope

	GlobalObjects *NotificationGlobalObjects `json:"globalObjects,omitempty"`

	Timeline struct {
		Instructions []TimelineInstruction `json:"instructions,omitempty"`
	} `json:"timeline"`
}
