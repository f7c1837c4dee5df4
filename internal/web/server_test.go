package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/pagedeck/internal/graph"
	"github.com/ppiankov/pagedeck/internal/logging"
	"github.com/ppiankov/pagedeck/internal/mailer"
	"github.com/ppiankov/pagedeck/internal/metrics"
	"github.com/ppiankov/pagedeck/internal/pages"
	"github.com/ppiankov/pagedeck/internal/post"
	"github.com/ppiankov/pagedeck/internal/privacy"
	"github.com/ppiankov/pagedeck/internal/store"
	"github.com/ppiankov/pagedeck/internal/timefmt"
)

type fakeGraph struct {
	records map[post.Status][]string
	views   map[string]int64
	err     error
	meErr   error

	listCalls map[post.Status]int

	created []graph.PostInput
	updated map[string]graph.UpdateInput
	deleted []string
}

func (f *fakeGraph) Me(context.Context, string) (post.Page, error) {
	if f.meErr != nil {
		return post.Page{}, f.meErr
	}
	return post.Page{ID: "42", Name: "Corner Bakery"}, nil
}

func (f *fakeGraph) ListPosts(_ context.Context, _, _ string, status post.Status) ([]json.RawMessage, error) {
	if f.listCalls == nil {
		f.listCalls = map[post.Status]int{}
	}
	f.listCalls[status]++
	if f.err != nil {
		return nil, f.err
	}
	var out []json.RawMessage
	for _, r := range f.records[status] {
		out = append(out, json.RawMessage(r))
	}
	return out, nil
}

func (f *fakeGraph) GetPost(_ context.Context, _, postID string, status post.Status) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.records[status] {
		if strings.Contains(r, `"id":"`+postID+`"`) {
			return json.RawMessage(r), nil
		}
	}
	return json.RawMessage(`{}`), nil
}

func (f *fakeGraph) CreatePost(_ context.Context, _, _ string, in graph.PostInput) (string, error) {
	f.created = append(f.created, in)
	return "42_new", nil
}

func (f *fakeGraph) UpdatePost(_ context.Context, _, postID string, in graph.UpdateInput) error {
	if f.updated == nil {
		f.updated = map[string]graph.UpdateInput{}
	}
	f.updated[postID] = in
	return nil
}

func (f *fakeGraph) DeletePost(_ context.Context, _, postID string) error {
	f.deleted = append(f.deleted, postID)
	return nil
}

func (f *fakeGraph) PostViews(context.Context, string, []string) (map[string]int64, error) {
	return f.views, nil
}

func (f *fakeGraph) PageInsights(context.Context, string, string) ([]graph.Insight, error) {
	return []graph.Insight{{Name: "page_impressions_unique", Title: "Daily Total Reach", Value: 321, Period: "day"}}, nil
}

type fakeMailer struct {
	enabled bool
	err     error
	sent    []mailer.Message
}

func (m *fakeMailer) Enabled() bool { return m.enabled }

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type testEnv struct {
	router *gin.Engine
	api    *fakeGraph
	svc    *pages.Service
	mail   *fakeMailer
	store  *store.Store
}

func newTestEnv(t *testing.T, loggedIn bool) *testEnv {
	t.Helper()

	api := &fakeGraph{
		records: map[post.Status][]string{
			post.StatusPublished: {
				`{"id":"42_1","message":"Fresh bread","created_time":"2024-01-01T10:00:00+0000","promotion_status":"active"}`,
				`{"id":"42_2","message":"Croissants","created_time":"2024-01-02T10:00:00+0000"}`,
			},
			post.StatusUnpublished: {
				`{"id":"42_3","message":"Draft idea","created_time":"2024-01-03T10:00:00+0000"}`,
			},
			post.StatusScheduled: {
				`{"id":"42_4","message":"Launch","created_time":"2024-01-03T10:00:00+0000","scheduled_publish_time":1704103200}`,
			},
		},
		views: map[string]int64{"42_1": 99},
	}

	st, err := store.Open(t.TempDir() + "/pagedeck.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	clock := func() time.Time { return time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC) }
	svc := pages.New(api, timefmt.New(time.UTC, timefmt.WithClock(clock)), pages.WithRecorder(st))
	if loggedIn {
		if _, err := svc.Login(context.Background(), "token"); err != nil {
			t.Fatalf("login: %v", err)
		}
	}

	redact, err := privacy.New(nil)
	if err != nil {
		t.Fatalf("redactor: %v", err)
	}

	mail := &fakeMailer{enabled: true}
	srv := New(svc,
		WithMode(gin.TestMode),
		WithMailer(mail),
		WithActivityLog(st),
		WithMetrics(metrics.New("test", "none")),
		WithVersion("test"),
		WithRedactor(redact),
	)
	router, err := srv.Router()
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	return &testEnv{router: router, api: api, svc: svc, mail: mail, store: st}
}

func (e *testEnv) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func (e *testEnv) post(t *testing.T, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func requireContains(t *testing.T, body, want string) {
	t.Helper()
	if !strings.Contains(body, want) {
		t.Fatalf("expected %q in body:\n%s", want, body)
	}
}

func requireRedirect(t *testing.T, w *httptest.ResponseRecorder, path string) url.Values {
	t.Helper()
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302; body:\n%s", w.Code, w.Body.String())
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if loc.Path != path {
		t.Fatalf("redirect to %q, want %q", loc.String(), path)
	}
	return loc.Query()
}

func TestLoginForm(t *testing.T) {
	env := newTestEnv(t, false)

	for _, target := range []string{"/", "/login"} {
		w := env.get(t, target)
		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d", target, w.Code)
		}
		requireContains(t, w.Body.String(), loginPrompt)
	}

	w := env.get(t, "/login?login_message=Hello+again")
	requireContains(t, w.Body.String(), "Hello again")
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.post(t, "/login", url.Values{"access_token": {"abc"}})
	requireRedirect(t, w, "/home")

	if _, ok := env.svc.Page(); !ok {
		t.Fatal("session not started")
	}
}

func TestLogin_InvalidToken(t *testing.T) {
	env := newTestEnv(t, false)
	env.api.meErr = &graph.Error{Code: 190, Message: "Invalid OAuth access token."}

	q := requireRedirect(t, env.post(t, "/", url.Values{"access_token": {"bad"}}), "/login")
	if q.Get("login_message") != tokenInvalid {
		t.Errorf("login_message = %q", q.Get("login_message"))
	}
}

func TestRequiresSession(t *testing.T) {
	env := newTestEnv(t, false)
	for _, target := range []string{"/home", "/list_posts", "/post_insights", "/view_post?post_id=42_1"} {
		requireRedirect(t, env.get(t, target), "/login")
	}
}

func TestHome(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.get(t, "/home")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	requireContains(t, body, "Corner Bakery")
	requireContains(t, body, "<td>2</td>")
	requireContains(t, body, "Daily Total Reach")
	requireContains(t, body, "login")
}

func TestListPosts(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.get(t, "/list_posts")
	body := w.Body.String()
	requireContains(t, body, "Published posts for page Corner Bakery")
	requireContains(t, body, "Fresh bread")
	requireContains(t, body, "Active")

	w = env.get(t, "/list_posts?published_status=SCHEDULED&follow_message=Done")
	body = w.Body.String()
	requireContains(t, body, "Done")
	requireContains(t, body, "Next scheduled post goes out 2024-01-01 10:00 AM")
	if n := env.api.listCalls[post.StatusScheduled]; n != 1 {
		t.Errorf("scheduled listing hit Graph %d times, want 1", n)
	}
}

func TestListPostsAction(t *testing.T) {
	env := newTestEnv(t, true)

	q := requireRedirect(t, env.post(t, "/list_posts?published_status=scheduled", url.Values{"view": {"42_4"}}), "/view_post")
	if q.Get("post_id") != "42_4" || q.Get("published_status") != "scheduled" {
		t.Errorf("query = %v", q)
	}

	requireRedirect(t, env.post(t, "/list_posts", url.Values{"view_insights": {"1"}}), "/post_insights")
}

func TestViewPost(t *testing.T) {
	env := newTestEnv(t, true)

	tests := []struct {
		target string
		want   string
	}{
		{"/view_post?post_id=42_1&published_status=published", "already published"},
		{"/view_post?post_id=42_4&published_status=scheduled", "scheduled on 2024-01-01 10:00 AM"},
		{"/view_post?post_id=42_3", "not published/scheduled yet"},
	}
	for _, tt := range tests {
		w := env.get(t, tt.target)
		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d", tt.target, w.Code)
		}
		requireContains(t, w.Body.String(), tt.want)
	}

	w := env.get(t, "/view_post?post_id=42_4&published_status=scheduled")
	requireContains(t, w.Body.String(), `value="2024-01-01T10:00"`)
}

func TestViewPost_NotFound(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.get(t, "/view_post?post_id=nope&published_status=published")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	requireContains(t, w.Body.String(), "This post does not exist")
}

func TestViewPostAction_Edit(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.post(t, "/view_post", url.Values{
		"edit":           {"1"},
		"post_id":        {"42_3"},
		"message":        {"Ready"},
		"current_status": {"unpublished"},
		"updated_status": {"scheduled"},
		"scheduled_time": {"2024-01-01T10:00"},
	})
	q := requireRedirect(t, w, "/list_posts")
	if q.Get("published_status") != "scheduled" || q.Get("follow_message") != "Successfully updated the post." {
		t.Errorf("query = %v", q)
	}
	if in := env.api.updated["42_3"]; in.ScheduledPublishTime != 1704103200 {
		t.Errorf("update = %+v", in)
	}
}

func TestViewPostAction_InvalidTransition(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.post(t, "/view_post", url.Values{
		"edit":           {"1"},
		"post_id":        {"42_1"},
		"message":        {"x"},
		"current_status": {"published"},
		"updated_status": {"unpublished"},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	requireContains(t, w.Body.String(), "cannot become unpublished")
}

func TestViewPostAction_Delete(t *testing.T) {
	env := newTestEnv(t, true)

	q := requireRedirect(t, env.post(t, "/view_post", url.Values{
		"delete":         {"1"},
		"post_id":        {"42_3"},
		"current_status": {"unpublished"},
	}), "/list_posts")
	if q.Get("follow_message") != "Successfully deleted the post" || q.Get("published_status") != "unpublished" {
		t.Errorf("query = %v", q)
	}
	if len(env.api.deleted) != 1 {
		t.Errorf("deleted = %v", env.api.deleted)
	}

	recent, _ := env.store.Recent(context.Background(), 1)
	if len(recent) != 1 || recent[0].Action != store.ActionDelete || recent[0].PageID != "42" {
		t.Errorf("activity = %+v", recent)
	}
}

func TestNewPost(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.get(t, "/new_post")
	requireContains(t, w.Body.String(), `min="2024-01-05T12:05"`)

	q := requireRedirect(t, env.post(t, "/new_post", url.Values{
		"message":             {"Hello"},
		"published_status":    {"published"},
		"targeting_countries": {"us,ca"},
	}), "/list_posts")
	if q.Get("follow_message") != "Successfully created a published post on 2024-01-05 12:00 PM" {
		t.Errorf("follow_message = %q", q.Get("follow_message"))
	}
	if got := env.api.created[0]; !got.Published || len(got.TargetCountries) != 2 {
		t.Errorf("created = %+v", got)
	}
}

func TestNewPost_ScheduledNeedsTime(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.post(t, "/new_post", url.Values{"message": {"Hello"}, "published_status": {"scheduled"}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestPostInsights(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.get(t, "/post_insights?follow_message=Sent")
	body := w.Body.String()
	requireContains(t, body, "<td>99</td>")
	requireContains(t, body, "Sent")
	requireContains(t, body, "send_email")
}

func TestPostInsightsAction_Export(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.post(t, "/post_insights", url.Values{"export_excel": {"1"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	requireContains(t, w.Header().Get("Content-Disposition"), "insights_2024-01-05_12-00-00.xlsx")

	book, err := excelize.OpenReader(w.Body)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = book.Close() }()
	rows, _ := book.GetRows("Insights")
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[1][6] != "99" {
		t.Errorf("views = %q", rows[1][6])
	}
}

func TestPostInsightsAction_Email(t *testing.T) {
	env := newTestEnv(t, true)

	q := requireRedirect(t, env.post(t, "/post_insights", url.Values{
		"send_email":    {"1"},
		"email_address": {"owner@example.com"},
	}), "/post_insights")
	if q.Get("follow_message") != "Successfully sent email to owner@example.com" {
		t.Errorf("follow_message = %q", q.Get("follow_message"))
	}
	if len(env.mail.sent) != 1 || len(env.mail.sent[0].Attachments) != 1 {
		t.Fatalf("sent = %+v", env.mail.sent)
	}

	env.mail.err = errors.New("connection refused")
	w := env.post(t, "/post_insights", url.Values{"send_email": {"1"}, "email_address": {"owner@example.com"}})
	requireContains(t, w.Body.String(), "failed to send email to owner@example.com")
}

func TestPostInsightsAction_View(t *testing.T) {
	env := newTestEnv(t, true)
	q := requireRedirect(t, env.post(t, "/post_insights", url.Values{"view": {"42_1"}}), "/view_post")
	if q.Get("published_status") != "published" {
		t.Errorf("query = %v", q)
	}
}

func TestGraphErrorRendersFailure(t *testing.T) {
	env := newTestEnv(t, true)
	env.api.err = &graph.Error{StatusCode: 400, Code: 100, Type: "GraphMethodException", Message: "Unsupported get request"}

	w := env.get(t, "/list_posts")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
	requireContains(t, w.Body.String(), "Unsupported get request")
}

func TestFailureRedactsToken(t *testing.T) {
	env := newTestEnv(t, true)
	env.api.err = errors.New(`Get "https://graph.facebook.com/v19.0/42/published_posts?access_token=secret123&limit=2": EOF`)

	w := env.get(t, "/list_posts")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "secret123") {
		t.Fatalf("failure page leaks token:\n%s", body)
	}
	requireContains(t, body, "[REDACTED]")
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.get(t, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["status"] != "healthy" || health["authenticated"] != true {
		t.Errorf("health = %v", health)
	}

	env.get(t, "/home")
	w = env.get(t, "/metrics")
	requireContains(t, w.Body.String(), `pagedeck_http_requests_total{endpoint="/home",method="GET",status="200"} 1`)
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.get(t, "/login")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("X-Request-ID", "fixed")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") != "fixed" {
		t.Errorf("request id = %q", w.Header().Get("X-Request-ID"))
	}
}

func TestStart_Shutdown(t *testing.T) {
	env := newTestEnv(t, false)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Start(ctx, "127.0.0.1:0", env.router, logging.Discard()) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
