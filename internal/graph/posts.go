package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ppiankov/pagedeck/internal/post"
)

type listResponse struct {
	Data   []json.RawMessage `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

type meResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type createResponse struct {
	ID string `json:"id"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// Me resolves the page a page access token belongs to.
func (c *Client) Me(ctx context.Context, token string) (post.Page, error) {
	q := url.Values{}
	q.Set("fields", "id,name")

	var resp meResponse
	if err := c.get(ctx, "me", c.endpoint("me", q), token, &resp); err != nil {
		return post.Page{}, err
	}
	if resp.ID == "" {
		return post.Page{}, errors.New("me: response has no id")
	}
	return post.Page{ID: resp.ID, Name: resp.Name}, nil
}

// postsEdge maps a status to the page edge that lists it.
func postsEdge(status post.Status) (string, url.Values) {
	q := url.Values{}
	switch status {
	case post.StatusPublished:
		return "published_posts", q
	case post.StatusScheduled:
		return "scheduled_posts", q
	default:
		q.Set("is_published", "false")
		return "promotable_posts", q
	}
}

// ListPosts returns raw post records for status, following paging.next links
// up to the configured page limit.
func (c *Client) ListPosts(ctx context.Context, token, pageID string, status post.Status) ([]json.RawMessage, error) {
	if strings.TrimSpace(pageID) == "" {
		return nil, errors.New("list posts: page id is required")
	}

	edge, q := postsEdge(status)
	q.Set("fields", post.Fields(status))
	q.Set("limit", strconv.Itoa(c.pageSize))

	next := c.endpoint(url.PathEscape(pageID)+"/"+edge, q)
	var records []json.RawMessage
	for page := 0; next != "" && page < c.maxPages; page++ {
		var resp listResponse
		if err := c.get(ctx, "list_posts", next, token, &resp); err != nil {
			return nil, err
		}
		records = append(records, resp.Data...)

		next = resp.Paging.Next
		if next != "" && !c.sameOrigin(next) {
			break
		}
	}
	return records, nil
}

// GetPost returns the raw record for a single post.
func (c *Client) GetPost(ctx context.Context, token, postID string, status post.Status) (json.RawMessage, error) {
	if strings.TrimSpace(postID) == "" {
		return nil, errors.New("get post: post id is required")
	}
	q := url.Values{}
	q.Set("fields", post.Fields(status))

	var raw json.RawMessage
	if err := c.get(ctx, "get_post", c.endpoint(url.PathEscape(postID), q), token, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// PostInput describes a new page post.
type PostInput struct {
	Message string
	// Published false creates a draft. Ignored when ScheduledPublishTime is set.
	Published            bool
	ScheduledPublishTime int64
	TargetCountries      []string
}

func (in PostInput) form() (url.Values, error) {
	form := url.Values{}
	form.Set("message", in.Message)
	switch {
	case in.ScheduledPublishTime > 0:
		form.Set("published", "false")
		form.Set("scheduled_publish_time", strconv.FormatInt(in.ScheduledPublishTime, 10))
	case in.Published:
		form.Set("published", "true")
	default:
		form.Set("published", "false")
	}
	if len(in.TargetCountries) > 0 {
		targeting, err := json.Marshal(map[string]any{
			"geo_locations": map[string][]string{"countries": in.TargetCountries},
		})
		if err != nil {
			return nil, fmt.Errorf("encode targeting: %w", err)
		}
		form.Set("targeting", string(targeting))
	}
	return form, nil
}

// CreatePost publishes, drafts, or schedules a post on the page and returns its id.
func (c *Client) CreatePost(ctx context.Context, token, pageID string, in PostInput) (string, error) {
	if strings.TrimSpace(pageID) == "" {
		return "", errors.New("create post: page id is required")
	}
	form, err := in.form()
	if err != nil {
		return "", err
	}

	var resp createResponse
	if err := c.postForm(ctx, "create_post", c.endpoint(url.PathEscape(pageID)+"/feed", nil), token, form, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", errors.New("create post: response has no id")
	}
	return resp.ID, nil
}

// UpdateInput describes an edit to an existing post.
type UpdateInput struct {
	Message              string
	Publish              bool
	ScheduledPublishTime int64
}

// UpdatePost edits the message of a post and optionally publishes or
// reschedules it.
func (c *Client) UpdatePost(ctx context.Context, token, postID string, in UpdateInput) error {
	if strings.TrimSpace(postID) == "" {
		return errors.New("update post: post id is required")
	}
	form := url.Values{}
	form.Set("message", in.Message)
	if in.Publish {
		form.Set("is_published", "true")
	}
	if in.ScheduledPublishTime > 0 {
		form.Set("scheduled_publish_time", strconv.FormatInt(in.ScheduledPublishTime, 10))
	}

	var resp successResponse
	if err := c.postForm(ctx, "update_post", c.endpoint(url.PathEscape(postID), nil), token, form, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("update post %s: not acknowledged", postID)
	}
	return nil
}

// DeletePost removes a post.
func (c *Client) DeletePost(ctx context.Context, token, postID string) error {
	if strings.TrimSpace(postID) == "" {
		return errors.New("delete post: post id is required")
	}
	var resp successResponse
	if err := c.delete(ctx, "delete_post", c.endpoint(url.PathEscape(postID), nil), token, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("delete post %s: not acknowledged", postID)
	}
	return nil
}
