package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"coursehub/realtime"
	"coursehub/syncclient"

	"github.com/google/uuid"
)

type Conversation struct {
	ID                 uint       `json:"id"`
	PortalID           uint       `json:"portal_id"`
	StudentID          uint       `json:"student_id"`
	Status             string     `json:"status"`
	UnreadStudent      int        `json:"unread_student"`
	UnreadStaff        int        `json:"unread_staff"`
	LastMessageAt      *time.Time `json:"last_message_at"`
	LastMessagePreview string     `json:"last_message_preview"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Message content is raw JSON shaped by Type; see TextContent and friends.
type Message struct {
	ID             uint                   `json:"id"`
	ConversationID uint                   `json:"conversation_id"`
	SenderID       uint                   `json:"sender_id"`
	SenderRole     string                 `json:"sender_role"`
	Type           string                 `json:"type"`
	Content        json.RawMessage        `json:"content"`
	Metadata       map[string]interface{} `json:"metadata"`
	ClientRef      string                 `json:"client_ref"`
	CreatedAt      time.Time              `json:"created_at"`
}

type TextContent struct {
	Text string `json:"text"`
}

type ImageContent struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

type VideoContent struct {
	URL             string  `json:"url"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

type FileContent struct {
	URL       string `json:"url"`
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// Outgoing is a message to send. Content is one of the *Content types.
type Outgoing struct {
	Type     string
	Content  interface{}
	Metadata map[string]interface{}
}

// ConversationFilter narrows ListConversations. Zero values mean no filter.
type ConversationFilter struct {
	PortalID uint
	Status   string
	Page     int
	Limit    int
}

func (f ConversationFilter) query() string {
	q := url.Values{}
	if f.PortalID != 0 {
		q.Set("portal_id", strconv.FormatUint(uint64(f.PortalID), 10))
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// OpenConversation returns the caller's open conversation in portalID, creating it if needed.
func (c *Client) OpenConversation(ctx context.Context, portalID uint) (Conversation, error) {
	var out Conversation
	err := c.do(ctx, "POST", "/chat/conversations", map[string]uint{"portal_id": portalID}, &out)
	return out, err
}

func (c *Client) ListConversations(ctx context.Context, f ConversationFilter) ([]Conversation, error) {
	var out struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.do(ctx, "GET", "/chat/conversations"+f.query(), nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// maxPageSize is the largest page the conversation list serves.
const maxPageSize = 100

// AllConversations walks every page of ListConversations. f.Page is ignored;
// f.Limit sets the page size.
func (c *Client) AllConversations(ctx context.Context, f ConversationFilter) ([]Conversation, error) {
	if f.Limit <= 0 || f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	var out []Conversation
	seen := map[uint]bool{}
	for f.Page = 1; ; f.Page++ {
		page, err := c.ListConversations(ctx, f)
		if err != nil {
			return nil, err
		}
		added := 0
		for _, cv := range page {
			// rows shift between pages when a conversation is bumped mid-walk
			if !seen[cv.ID] {
				seen[cv.ID] = true
				out = append(out, cv)
				added++
			}
		}
		if len(page) < f.Limit || added == 0 {
			return out, nil
		}
	}
}

func (c *Client) Messages(ctx context.Context, conversationID uint) ([]Message, error) {
	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := c.do(ctx, "GET", fmt.Sprintf("/chat/conversations/%d/messages", conversationID), nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) SendMessage(ctx context.Context, conversationID uint, msg Outgoing, clientRef string) (Message, error) {
	var out Message
	body := map[string]interface{}{
		"type":       msg.Type,
		"content":    msg.Content,
		"metadata":   msg.Metadata,
		"client_ref": clientRef,
	}
	err := c.do(ctx, "POST", fmt.Sprintf("/chat/conversations/%d/messages", conversationID), body, &out)
	return out, err
}

func (c *Client) MarkRead(ctx context.Context, conversationID uint) (Conversation, error) {
	var out Conversation
	err := c.do(ctx, "POST", fmt.Sprintf("/chat/conversations/%d/read", conversationID), nil, &out)
	return out, err
}

func (c *Client) CloseConversation(ctx context.Context, conversationID uint) (Conversation, error) {
	var out Conversation
	err := c.do(ctx, "POST", fmt.Sprintf("/chat/conversations/%d/close", conversationID), nil, &out)
	return out, err
}

// MessageFeed is the live thread of one conversation.
type MessageFeed struct {
	*syncclient.LiveList[Message]
	api            *Client
	conversationID uint
	sender         Profile
}

func (c *Client) MessageFeed(conversationID uint, sender Profile, poll time.Duration) (*MessageFeed, error) {
	list, err := syncclient.NewLiveList(syncclient.Options[Message]{
		Fetch:        func(ctx context.Context) ([]Message, error) { return c.Messages(ctx, conversationID) },
		ID:           func(m Message) uint { return m.ID },
		PollInterval: poll,
		Log:          c.log.With("feed", "messages", "conversation_id", conversationID),
	})
	if err != nil {
		return nil, err
	}
	return &MessageFeed{LiveList: list, api: c, conversationID: conversationID, sender: sender}, nil
}

// Send shows msg at the end of the thread and confirms it against the API.
func (f *MessageFeed) Send(ctx context.Context, msg Outgoing) (Message, error) {
	content, err := json.Marshal(msg.Content)
	if err != nil {
		return Message{}, fmt.Errorf("encode content: %w", err)
	}
	role := "student"
	if f.sender.Role == "ADMIN" || f.sender.Role == "STAFF" {
		role = "staff"
	}
	ref := uuid.NewString()
	provisional := Message{
		ConversationID: f.conversationID,
		SenderID:       f.sender.ID,
		SenderRole:     role,
		Type:           msg.Type,
		Content:        content,
		Metadata:       msg.Metadata,
		ClientRef:      ref,
		CreatedAt:      time.Now(),
	}
	return f.LiveList.Send(ctx, provisional, func(ctx context.Context) (Message, error) {
		return f.api.SendMessage(ctx, f.conversationID, msg, ref)
	})
}

// Watch keeps the thread live from sub and polling until ctx is done.
func (f *MessageFeed) Watch(ctx context.Context, sub Subscriber) error {
	var changes <-chan realtime.Change
	if sub != nil {
		merged, stop, err := watch(ctx, sub,
			topic{table: realtime.TableMessages, event: realtime.AnyEvent, filter: fmt.Sprintf("conversation_id=eq.%d", f.conversationID)},
		)
		if err != nil {
			return err
		}
		defer stop()
		changes = merged
	}
	return f.Run(ctx, changes)
}
