// Package pages holds the dashboard session for one Facebook Page and turns
// Graph API records into typed posts.
package pages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ppiankov/pagedeck/internal/graph"
	"github.com/ppiankov/pagedeck/internal/logging"
	"github.com/ppiankov/pagedeck/internal/post"
	"github.com/ppiankov/pagedeck/internal/store"
	"github.com/ppiankov/pagedeck/internal/timefmt"
)

// GraphAPI is the subset of *graph.Client the service uses.
type GraphAPI interface {
	Me(ctx context.Context, token string) (post.Page, error)
	ListPosts(ctx context.Context, token, pageID string, status post.Status) ([]json.RawMessage, error)
	GetPost(ctx context.Context, token, postID string, status post.Status) (json.RawMessage, error)
	CreatePost(ctx context.Context, token, pageID string, in graph.PostInput) (string, error)
	UpdatePost(ctx context.Context, token, postID string, in graph.UpdateInput) error
	DeletePost(ctx context.Context, token, postID string) error
	PostViews(ctx context.Context, token string, postIDs []string) (map[string]int64, error)
	PageInsights(ctx context.Context, token, pageID string) ([]graph.Insight, error)
}

// Recorder persists activity entries.
type Recorder interface {
	Record(ctx context.Context, in store.ActivityInput) (store.Activity, error)
}

// ActivityObserver is told about every recorded action (metrics).
type ActivityObserver interface {
	ObserveActivity(action string)
}

// Service is safe for concurrent use. Login replaces the token and page together.
type Service struct {
	api      GraphAPI
	tf       *timefmt.Formatter
	log      logging.Logger
	recorder Recorder
	observer ActivityObserver

	mu    sync.RWMutex
	token string
	page  post.Page
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder logs mutations to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithActivityObserver reports recorded actions to o.
func WithActivityObserver(o ActivityObserver) Option {
	return func(s *Service) { s.observer = o }
}

// WithLogger sets the service logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New creates a Service. A nil formatter renders times in UTC.
func New(api GraphAPI, tf *timefmt.Formatter, opts ...Option) *Service {
	if tf == nil {
		tf = timefmt.New(nil)
	}
	s := &Service{api: api, tf: tf, log: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Formatter returns the time formatter used for posts.
func (s *Service) Formatter() *timefmt.Formatter {
	return s.tf
}

// Login validates token against Graph and makes it the active session.
func (s *Service) Login(ctx context.Context, token string) (post.Page, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return post.Page{}, graph.ErrMissingToken
	}

	page, err := s.api.Me(ctx, token)
	if err != nil {
		return post.Page{}, err
	}

	s.mu.Lock()
	s.token = token
	s.page = page
	s.mu.Unlock()

	s.log.WithFields(logging.Fields{"page_id": page.ID, "page": page.Name}).Info("page session started")
	s.Record(ctx, store.ActivityInput{Action: store.ActionLogin, Detail: page.Name})
	return page, nil
}

// Page returns the active page, if any.
func (s *Service) Page() (post.Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page, s.token != ""
}

func (s *Service) session() (string, post.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", post.Page{}, ErrNotAuthenticated
	}
	return s.token, s.page, nil
}

// ListPosts returns the page's posts with the given status in Graph order.
func (s *Service) ListPosts(ctx context.Context, status post.Status) ([]post.Post, error) {
	token, page, err := s.session()
	if err != nil {
		return nil, err
	}

	records, err := s.api.ListPosts(ctx, token, page.ID, status)
	if err != nil {
		return nil, fmt.Errorf("list %s posts: %w", status, err)
	}

	posts := post.Build(records, status, s.tf)
	if dropped := len(records) - len(posts); dropped > 0 {
		s.log.WithFields(logging.Fields{"status": status, "dropped": dropped}).Debug("skipped incomplete post records")
	}
	return posts, nil
}

// GetPost fetches one post and builds it as status.
func (s *Service) GetPost(ctx context.Context, postID string, status post.Status) (post.Post, error) {
	token, _, err := s.session()
	if err != nil {
		return nil, err
	}
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return nil, ErrPostNotFound
	}

	raw, err := s.api.GetPost(ctx, token, postID, status)
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", postID, err)
	}

	posts := post.Build([]json.RawMessage{raw}, status, s.tf)
	if len(posts) == 0 {
		return nil, ErrPostNotFound
	}
	return posts[0], nil
}

// Draft is a new post as submitted by the dashboard form.
type Draft struct {
	Message string
	Status  post.Status
	// ScheduledTime is a datetime-local value; required for scheduled drafts.
	ScheduledTime string
	// TargetCountries is a comma separated list of ISO country codes.
	TargetCountries string
}

// CreatePost creates draft on the page and returns the new post id.
func (s *Service) CreatePost(ctx context.Context, d Draft) (string, error) {
	token, page, err := s.session()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(d.Message) == "" {
		return "", ValidationError{Field: "message", Reason: "message is required"}
	}

	in := graph.PostInput{
		Message:         d.Message,
		Published:       d.Status == post.StatusPublished,
		TargetCountries: ParseCountries(d.TargetCountries),
	}
	if d.Status == post.StatusScheduled {
		in.ScheduledPublishTime, err = s.scheduledUnix(d.ScheduledTime)
		if err != nil {
			return "", err
		}
	}

	id, err := s.api.CreatePost(ctx, token, page.ID, in)
	if err != nil {
		return "", fmt.Errorf("create %s post: %w", d.Status, err)
	}

	s.Record(ctx, store.ActivityInput{Action: store.ActionCreate, PostID: id, Status: string(d.Status)})
	return id, nil
}

// Edit is an update submitted from the post detail view.
type Edit struct {
	PostID        string
	Message       string
	CurrentStatus post.Status
	UpdatedStatus post.Status
	ScheduledTime string
}

// CanTransition reports whether a post may move from one status to another.
// Published posts stay published; scheduled posts cannot go back to draft.
func CanTransition(from, to post.Status) bool {
	switch from {
	case post.StatusPublished:
		return to == post.StatusPublished
	case post.StatusScheduled:
		return to == post.StatusScheduled || to == post.StatusPublished
	default:
		return true
	}
}

// UpdatePost applies e to an existing post.
func (s *Service) UpdatePost(ctx context.Context, e Edit) error {
	token, _, err := s.session()
	if err != nil {
		return err
	}
	postID := strings.TrimSpace(e.PostID)
	if postID == "" {
		return ValidationError{Field: "post_id", Reason: "not a valid post id to be updated"}
	}
	if !CanTransition(e.CurrentStatus, e.UpdatedStatus) {
		return ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("a %s post cannot become %s", e.CurrentStatus, e.UpdatedStatus),
		}
	}

	in := graph.UpdateInput{Message: e.Message}
	switch e.UpdatedStatus {
	case post.StatusPublished:
		in.Publish = e.CurrentStatus != post.StatusPublished
	case post.StatusScheduled:
		in.ScheduledPublishTime, err = s.scheduledUnix(e.ScheduledTime)
		if err != nil {
			return err
		}
	}

	if err := s.api.UpdatePost(ctx, token, postID, in); err != nil {
		return fmt.Errorf("update post %s: %w", postID, err)
	}

	detail := ""
	if e.CurrentStatus != e.UpdatedStatus {
		detail = fmt.Sprintf("%s -> %s", e.CurrentStatus, e.UpdatedStatus)
	}
	s.Record(ctx, store.ActivityInput{Action: store.ActionUpdate, PostID: postID, Status: string(e.UpdatedStatus), Detail: detail})
	return nil
}

// DeletePost removes a post from the page.
func (s *Service) DeletePost(ctx context.Context, postID string) error {
	token, _, err := s.session()
	if err != nil {
		return err
	}
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return ValidationError{Field: "post_id", Reason: "post id is required"}
	}

	if err := s.api.DeletePost(ctx, token, postID); err != nil {
		return fmt.Errorf("delete post %s: %w", postID, err)
	}

	s.Record(ctx, store.ActivityInput{Action: store.ActionDelete, PostID: postID})
	return nil
}

// EarliestScheduled returns the soonest scheduled publish time. ok is false
// when nothing is scheduled.
func (s *Service) EarliestScheduled(ctx context.Context) (int64, bool, error) {
	posts, err := s.ListPosts(ctx, post.StatusScheduled)
	if err != nil {
		return 0, false, err
	}
	earliest, ok := Earliest(posts)
	return earliest, ok, nil
}

// Earliest returns the minimum ScheduledUnix among the scheduled posts in
// posts. Other variants are ignored.
func Earliest(posts []post.Post) (int64, bool) {
	var (
		earliest int64
		found    bool
	)
	for _, p := range posts {
		sp, ok := p.(*post.Scheduled)
		if !ok {
			continue
		}
		if !found || sp.ScheduledUnix < earliest {
			earliest = sp.ScheduledUnix
			found = true
		}
	}
	return earliest, found
}

// PostInsights returns published posts with view counts filled in. Posts
// Graph has no insight for keep post.UnknownViews.
func (s *Service) PostInsights(ctx context.Context) ([]*post.Published, error) {
	token, _, err := s.session()
	if err != nil {
		return nil, err
	}

	posts, err := s.ListPosts(ctx, post.StatusPublished)
	if err != nil {
		return nil, err
	}

	published := make([]*post.Published, 0, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		if pp, ok := p.(*post.Published); ok {
			published = append(published, pp)
			ids = append(ids, pp.ID)
		}
	}
	if len(ids) == 0 {
		return published, nil
	}

	views, err := s.api.PostViews(ctx, token, ids)
	if err != nil {
		return nil, fmt.Errorf("post insights: %w", err)
	}
	for _, pp := range published {
		if v, ok := views[pp.ID]; ok {
			pp.Views = v
		}
	}
	return published, nil
}

// PageInsights returns the latest page-level metrics.
func (s *Service) PageInsights(ctx context.Context) ([]graph.Insight, error) {
	token, page, err := s.session()
	if err != nil {
		return nil, err
	}
	insights, err := s.api.PageInsights(ctx, token, page.ID)
	if err != nil {
		return nil, fmt.Errorf("page insights: %w", err)
	}
	return insights, nil
}

// Counts returns the number of posts per status.
func (s *Service) Counts(ctx context.Context) (map[post.Status]int, error) {
	counts := make(map[post.Status]int, len(post.Statuses))
	for _, status := range post.Statuses {
		posts, err := s.ListPosts(ctx, status)
		if err != nil {
			return nil, err
		}
		counts[status] = len(posts)
	}
	return counts, nil
}

// Record logs an action against the active page. Failures are logged, not returned.
func (s *Service) Record(ctx context.Context, in store.ActivityInput) {
	if in.PageID == "" {
		if page, ok := s.Page(); ok {
			in.PageID = page.ID
		}
	}
	if s.observer != nil {
		s.observer.ObserveActivity(in.Action)
	}
	if s.recorder == nil {
		return
	}
	if _, err := s.recorder.Record(ctx, in); err != nil {
		s.log.WithError(err).WithField("action", in.Action).Warn("failed to record activity")
	}
}

func (s *Service) scheduledUnix(value string) (int64, error) {
	if strings.TrimSpace(value) == "" {
		return 0, ValidationError{Field: "scheduled_time", Reason: "a scheduled post needs a publish time"}
	}
	unix, err := s.tf.UnixFromLocalDisplay(value)
	if err != nil {
		return 0, ValidationError{Field: "scheduled_time", Reason: err.Error()}
	}
	return unix, nil
}

// ParseCountries splits a comma separated country list into upper-case codes.
func ParseCountries(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		code := strings.ToUpper(strings.TrimSpace(part))
		if code != "" {
			out = append(out, code)
		}
	}
	return out
}
