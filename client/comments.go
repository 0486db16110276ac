package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coursehub/realtime"
	"coursehub/syncclient"
)

type CommentEdit struct {
	Body     string    `json:"body"`
	EditedAt time.Time `json:"edited_at"`
}

type Profile struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Role      string `json:"role"`
}

// Comment is a lesson comment with its author and like state.
type Comment struct {
	ID          uint          `json:"id"`
	LessonID    uint          `json:"lesson_id"`
	UserID      uint          `json:"user_id"`
	ParentID    *uint         `json:"parent_id"`
	Body        string        `json:"body"`
	EditHistory []CommentEdit `json:"edit_history"`
	Author      Profile       `json:"author"`
	LikeCount   int64         `json:"like_count"`
	LikedByMe   bool          `json:"liked_by_me"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type LikeState struct {
	CommentID uint  `json:"comment_id"`
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"like_count"`
}

func (c *Client) Comments(ctx context.Context, lessonID uint) ([]Comment, error) {
	var out struct {
		Comments []Comment `json:"comments"`
	}
	if err := c.do(ctx, "GET", fmt.Sprintf("/lessons/%d/comments", lessonID), nil, &out); err != nil {
		return nil, err
	}
	return out.Comments, nil
}

// PostComment posts body on a lesson. parentID makes it a reply.
func (c *Client) PostComment(ctx context.Context, lessonID uint, body string, parentID *uint) (Comment, error) {
	var out Comment
	req := map[string]interface{}{"body": body}
	if parentID != nil {
		req["parent_id"] = *parentID
	}
	err := c.do(ctx, "POST", fmt.Sprintf("/lessons/%d/comments", lessonID), req, &out)
	return out, err
}

func (c *Client) EditComment(ctx context.Context, commentID uint, body string) (Comment, error) {
	var out Comment
	err := c.do(ctx, "PUT", fmt.Sprintf("/comments/%d", commentID), map[string]string{"body": body}, &out)
	return out, err
}

func (c *Client) DeleteComment(ctx context.Context, commentID uint) error {
	return c.do(ctx, "DELETE", fmt.Sprintf("/comments/%d", commentID), nil, nil)
}

func (c *Client) ToggleLike(ctx context.Context, commentID uint) (LikeState, error) {
	var out LikeState
	err := c.do(ctx, "POST", fmt.Sprintf("/comments/%d/like", commentID), nil, &out)
	return out, err
}

// CommentFeed is the live comment list of one lesson.
type CommentFeed struct {
	*syncclient.LiveList[Comment]
	api      *Client
	lessonID uint
	viewer   Profile
}

// CommentFeed builds the feed of lessonID. viewer is shown as the author of
// comments that are still being posted.
func (c *Client) CommentFeed(lessonID uint, viewer Profile, poll time.Duration) (*CommentFeed, error) {
	list, err := syncclient.NewLiveList(syncclient.Options[Comment]{
		Fetch:        func(ctx context.Context) ([]Comment, error) { return c.Comments(ctx, lessonID) },
		ID:           func(cm Comment) uint { return cm.ID },
		PollInterval: poll,
		Log:          c.log.With("feed", "comments", "lesson_id", lessonID),
	})
	if err != nil {
		return nil, err
	}
	return &CommentFeed{LiveList: list, api: c, lessonID: lessonID, viewer: viewer}, nil
}

// Post shows the comment right away and confirms it against the API.
func (f *CommentFeed) Post(ctx context.Context, body string, parentID *uint) (Comment, error) {
	provisional := Comment{
		LessonID:  f.lessonID,
		UserID:    f.viewer.ID,
		ParentID:  parentID,
		Body:      body,
		Author:    f.viewer,
		CreatedAt: time.Now(),
	}
	return f.Send(ctx, provisional, func(ctx context.Context) (Comment, error) {
		return f.api.PostComment(ctx, f.lessonID, body, parentID)
	})
}

// Delete drops the comment and its replies from the feed right away, then
// deletes it on the server. On failure the feed is reloaded and the error returned.
func (f *CommentFeed) Delete(ctx context.Context, id uint) error {
	for _, cm := range f.Items() {
		if cm.ParentID != nil && *cm.ParentID == id {
			f.Remove(cm.ID)
		}
	}
	f.Remove(id)

	if err := f.api.DeleteComment(ctx, id); err != nil {
		deleteErr := fmt.Errorf("delete comment %d: %w", id, err)
		if reloadErr := f.Refresh(ctx); reloadErr != nil {
			return errors.Join(deleteErr, reloadErr)
		}
		return deleteErr
	}
	return nil
}

// Watch keeps the feed live from sub and polling until ctx is done. Deletes
// arrive unfiltered since they only carry the comment id.
func (f *CommentFeed) Watch(ctx context.Context, sub Subscriber) error {
	var changes <-chan realtime.Change
	if sub != nil {
		filter := fmt.Sprintf("lesson_id=eq.%d", f.lessonID)
		merged, stop, err := watch(ctx, sub,
			topic{table: realtime.TableComments, event: string(realtime.Insert), filter: filter},
			topic{table: realtime.TableComments, event: string(realtime.Update), filter: filter},
			topic{table: realtime.TableComments, event: string(realtime.Delete)},
			topic{table: realtime.TableCommentLikes, event: realtime.AnyEvent, related: true},
		)
		if err != nil {
			return err
		}
		defer stop()
		changes = merged
	}
	return f.Run(ctx, changes)
}
