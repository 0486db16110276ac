package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type ChangeType string

const (
	Insert ChangeType = "INSERT"
	Update ChangeType = "UPDATE"
	Delete ChangeType = "DELETE"

	// AnyEvent subscribes to every change type.
	AnyEvent = "*"
)

// Tables that publish changes.
const (
	TableComments      = "comments"
	TableCommentLikes  = "comment_likes"
	TableMessages      = "messages"
	TableConversations = "conversations"
	TableModules       = "modules"
	TableLessons       = "lessons"
)

// Change is one row-level change. Record is the raw row for inserts and updates;
// deletes only carry the primary key in OldRecord.
type Change struct {
	Table           string                 `json:"table"`
	Type            ChangeType             `json:"type"`
	Record          map[string]interface{} `json:"record,omitempty"`
	OldRecord       map[string]interface{} `json:"old_record,omitempty"`
	CommitTimestamp time.Time              `json:"commit_timestamp"`
}

// ID returns the primary key carried by the change, from Record or OldRecord.
func (c Change) ID() (uint, bool) {
	for _, row := range []map[string]interface{}{c.Record, c.OldRecord} {
		if row == nil {
			continue
		}
		switch v := row["id"].(type) {
		case float64:
			return uint(v), true
		case uint:
			return v, true
		case int:
			return uint(v), true
		case json.Number:
			n, err := v.Int64()
			if err == nil {
				return uint(n), true
			}
		}
	}
	return 0, false
}

// Filter is an equality filter on one column, written "column=eq.value".
type Filter struct {
	Column string
	Value  string
}

// ParseFilter parses "column=eq.value". An empty string is the zero Filter.
func ParseFilter(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Filter{}, nil
	}
	col, rest, ok := strings.Cut(s, "=")
	if !ok || !strings.HasPrefix(rest, "eq.") || strings.TrimSpace(col) == "" {
		return Filter{}, fmt.Errorf("unsupported filter %q", s)
	}
	return Filter{Column: strings.TrimSpace(col), Value: strings.TrimPrefix(rest, "eq.")}, nil
}

func (f Filter) String() string {
	if f.Column == "" {
		return ""
	}
	return f.Column + "=eq." + f.Value
}

// Subscription selects changes by table, type and filter.
type Subscription struct {
	Table  string `json:"table"`
	Event  string `json:"event"`
	Filter string `json:"filter,omitempty"`

	filter Filter
}

// NewSubscription validates and prepares a subscription.
func NewSubscription(table, event, filter string) (Subscription, error) {
	if strings.TrimSpace(table) == "" {
		return Subscription{}, fmt.Errorf("table is required")
	}
	if event == "" {
		event = AnyEvent
	}
	switch ChangeType(event) {
	case Insert, Update, Delete, AnyEvent:
	default:
		return Subscription{}, fmt.Errorf("unsupported event %q", event)
	}
	f, err := ParseFilter(filter)
	if err != nil {
		return Subscription{}, err
	}
	return Subscription{Table: table, Event: event, Filter: f.String(), filter: f}, nil
}

// Matches reports whether c should be delivered. A filtered subscription only
// sees changes whose row carries the filtered column with the filtered value,
// so deletes (primary key only) reach filtered subscriptions only when the
// filter is on "id".
func (s Subscription) Matches(c Change) bool {
	if s.Table != c.Table {
		return false
	}
	if s.Event != AnyEvent && ChangeType(s.Event) != c.Type {
		return false
	}
	if s.filter.Column == "" {
		return true
	}
	row := c.Record
	if c.Type == Delete {
		row = c.OldRecord
	}
	v, ok := row[s.filter.Column]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) == s.filter.Value
}

// RowMap converts a model into the column map carried by a change.
func RowMap(row interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
