package client

import (
	"context"
	"fmt"
	"time"

	"coursehub/realtime"
	"coursehub/syncclient"
)

// Unread is the unread state of the viewer's side of every conversation.
type Unread struct {
	Total          int
	ByConversation map[uint]int
}

// UnreadCounters provides the viewer's unread counts to any number of
// observers. Students count unread_student, staff count unread_staff.
// Counts cover every conversation matching the filter, not just one page.
type UnreadCounters struct {
	list   *syncclient.LiveList[Conversation]
	staff  bool
	viewer Profile
	filter ConversationFilter
}

func (c *Client) UnreadCounters(viewer Profile, filter ConversationFilter, poll time.Duration) (*UnreadCounters, error) {
	list, err := syncclient.NewLiveList(syncclient.Options[Conversation]{
		Fetch:        func(ctx context.Context) ([]Conversation, error) { return c.AllConversations(ctx, filter) },
		ID:           func(cv Conversation) uint { return cv.ID },
		PollInterval: poll,
		Log:          c.log.With("feed", "unread"),
	})
	if err != nil {
		return nil, err
	}
	staff := viewer.Role == "ADMIN" || viewer.Role == "STAFF"
	return &UnreadCounters{list: list, staff: staff, viewer: viewer, filter: filter}, nil
}

func (u *UnreadCounters) count(entries []syncclient.Entry[Conversation]) Unread {
	out := Unread{ByConversation: make(map[uint]int, len(entries))}
	for _, e := range entries {
		n := e.Item.UnreadStudent
		if u.staff {
			n = e.Item.UnreadStaff
		}
		out.ByConversation[e.Item.ID] = n
		out.Total += n
	}
	return out
}

// Current returns the counts as last loaded.
func (u *UnreadCounters) Current() Unread {
	return u.count(u.list.Snapshot())
}

// Subscribe calls fn with the current counts and again after every change.
// The returned func stops the calls.
func (u *UnreadCounters) Subscribe(fn func(Unread)) func() {
	unsubscribe := u.list.Subscribe(func(entries []syncclient.Entry[Conversation]) {
		fn(u.count(entries))
	})
	fn(u.Current())
	return unsubscribe
}

func (u *UnreadCounters) Refresh(ctx context.Context) error {
	return u.list.Refresh(ctx)
}

// Watch keeps the counts live from sub and polling until ctx is done.
func (u *UnreadCounters) Watch(ctx context.Context, sub Subscriber) error {
	var changes <-chan realtime.Change
	if sub != nil {
		filter := ""
		switch {
		case !u.staff:
			filter = fmt.Sprintf("student_id=eq.%d", u.viewer.ID)
		case u.filter.PortalID != 0:
			filter = fmt.Sprintf("portal_id=eq.%d", u.filter.PortalID)
		}
		merged, stop, err := watch(ctx, sub, topic{table: realtime.TableConversations, event: realtime.AnyEvent, filter: filter})
		if err != nil {
			return err
		}
		defer stop()
		changes = merged
	}
	return u.list.Run(ctx, changes)
}
