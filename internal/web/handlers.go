package web

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/pagedeck/internal/export"
	"github.com/ppiankov/pagedeck/internal/graph"
	"github.com/ppiankov/pagedeck/internal/mailer"
	"github.com/ppiankov/pagedeck/internal/pages"
	"github.com/ppiankov/pagedeck/internal/post"
	"github.com/ppiankov/pagedeck/internal/store"
	"github.com/ppiankov/pagedeck/internal/timefmt"
)

const (
	loginPrompt  = "Please input your page access token"
	tokenInvalid = "Access token invalid now, please re-enter."
)

// handleError sends token problems back to the login form and renders
// everything else on the failure page.
func (s *Server) handleError(c *gin.Context, err error) {
	_ = c.Error(err)

	if errors.Is(err, pages.ErrNotAuthenticated) || graph.IsTokenError(err) {
		c.Redirect(http.StatusFound, "/login?"+url.Values{"login_message": {tokenInvalid}}.Encode())
		return
	}

	status := http.StatusInternalServerError
	var (
		verr pages.ValidationError
		gerr *graph.Error
	)
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, pages.ErrPostNotFound):
		status = http.StatusNotFound
	case errors.As(err, &gerr):
		status = http.StatusBadGateway
	}

	c.HTML(status, "failure.html", gin.H{"error_message": s.redact.Redact(err.Error())})
}

func redirectTo(c *gin.Context, path string, q url.Values) {
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	c.Redirect(http.StatusFound, path)
}

func (s *Server) tf() *timefmt.Formatter {
	return s.svc.Formatter()
}

func (s *Server) loginForm(c *gin.Context) {
	msg := c.Query("login_message")
	if msg == "" {
		msg = loginPrompt
	}
	c.HTML(http.StatusOK, "login.html", gin.H{"login_message": msg})
}

func (s *Server) login(c *gin.Context) {
	if _, err := s.svc.Login(c.Request.Context(), c.PostForm("access_token")); err != nil {
		s.handleError(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/home")
}

func (s *Server) home(c *gin.Context) {
	ctx := c.Request.Context()

	counts, err := s.svc.Counts(ctx)
	if err != nil {
		s.handleError(c, err)
		return
	}
	insights, err := s.svc.PageInsights(ctx)
	if err != nil {
		s.handleError(c, err)
		return
	}

	var recent []store.Activity
	if s.activity != nil {
		recent, err = s.activity.Recent(ctx, recentActivity)
		if err != nil {
			s.log.WithError(err).Warn("failed to load recent activity")
		}
	}

	page, _ := s.svc.Page()
	c.HTML(http.StatusOK, "home.html", gin.H{
		"page":              page,
		"page_name":         page.Name,
		"published_count":   counts[post.StatusPublished],
		"unpublished_count": counts[post.StatusUnpublished],
		"scheduled_count":   counts[post.StatusScheduled],
		"insights":          insights,
		"activity":          recent,
	})
}

func (s *Server) listPosts(c *gin.Context) {
	ctx := c.Request.Context()
	status := post.ParseStatus(c.DefaultQuery("published_status", string(post.StatusPublished)))

	posts, err := s.svc.ListPosts(ctx, status)
	if err != nil {
		s.handleError(c, err)
		return
	}

	page, _ := s.svc.Page()
	follow := c.Query("follow_message")
	if follow == "" {
		follow = fmt.Sprintf("%s posts for page %s", status.Title(), page.Name)
	}

	earliest := ""
	if unix, ok := pages.Earliest(posts); ok && status == post.StatusScheduled {
		earliest = s.tf().DisplayFromUnix(unix)
	}

	c.HTML(http.StatusOK, "list_posts.html", gin.H{
		"post_list":                  toViews(posts, s.tf()),
		"published_status":           status,
		"follow_message":             follow,
		"most_recent_scheduled_time": earliest,
	})
}

func (s *Server) listPostsAction(c *gin.Context) {
	if id, ok := c.GetPostForm("view"); ok {
		status := c.Query("published_status")
		if status == "" {
			status = c.PostForm("published_status")
		}
		redirectTo(c, "/view_post", url.Values{"post_id": {id}, "published_status": {status}})
		return
	}
	if _, ok := c.GetPostForm("view_insights"); ok {
		redirectTo(c, "/post_insights", nil)
		return
	}
	redirectTo(c, "/list_posts", c.Request.URL.Query())
}

func viewMessage(p post.Post) string {
	switch v := p.(type) {
	case *post.Published:
		return "already published"
	case *post.Scheduled:
		return "scheduled on " + v.ScheduledTime
	default:
		return "not published/scheduled yet"
	}
}

func (s *Server) viewPost(c *gin.Context) {
	status := post.ParseStatus(c.DefaultQuery("published_status", string(post.StatusUnpublished)))

	p, err := s.svc.GetPost(c.Request.Context(), c.Query("post_id"), status)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.HTML(http.StatusOK, "view_post.html", gin.H{
		"post":             toView(p, s.tf()),
		"published_status": status,
		"view_message":     viewMessage(p),
		"targets":          allowedTargets(status, pages.CanTransition),
		"min_schedule":     s.tf().MinScheduleDisplay(s.offset),
	})
}

func (s *Server) viewPostAction(c *gin.Context) {
	ctx := c.Request.Context()
	current := post.ParseStatus(c.PostForm("current_status"))

	if _, ok := c.GetPostForm("edit"); ok {
		updated := post.ParseStatus(c.DefaultPostForm("updated_status", string(current)))
		err := s.svc.UpdatePost(ctx, pages.Edit{
			PostID:        c.PostForm("post_id"),
			Message:       c.PostForm("message"),
			CurrentStatus: current,
			UpdatedStatus: updated,
			ScheduledTime: c.PostForm("scheduled_time"),
		})
		if err != nil {
			s.handleError(c, err)
			return
		}
		redirectTo(c, "/list_posts", url.Values{
			"published_status": {string(updated)},
			"follow_message":   {"Successfully updated the post."},
		})
		return
	}

	if _, ok := c.GetPostForm("delete"); ok {
		if err := s.svc.DeletePost(ctx, c.PostForm("post_id")); err != nil {
			s.handleError(c, err)
			return
		}
		redirectTo(c, "/list_posts", url.Values{
			"published_status": {string(current)},
			"follow_message":   {"Successfully deleted the post"},
		})
		return
	}

	s.handleError(c, pages.ValidationError{Reason: "unknown action"})
}

func (s *Server) newPostForm(c *gin.Context) {
	c.HTML(http.StatusOK, "new_post.html", gin.H{
		"current_date_time": s.tf().MinScheduleDisplay(s.offset),
		"statuses":          post.Statuses,
	})
}

func (s *Server) createPost(c *gin.Context) {
	status := post.ParseStatus(c.DefaultPostForm("published_status", string(post.StatusUnpublished)))
	draft := pages.Draft{
		Message:         c.PostForm("message"),
		Status:          status,
		TargetCountries: c.PostForm("targeting_countries"),
	}
	if status == post.StatusScheduled {
		draft.ScheduledTime = c.PostForm("scheduled_time")
	}

	if _, err := s.svc.CreatePost(c.Request.Context(), draft); err != nil {
		s.handleError(c, err)
		return
	}

	redirectTo(c, "/list_posts", url.Values{
		"published_status": {string(status)},
		"follow_message":   {fmt.Sprintf("Successfully created a %s post on %s", status, s.tf().NowDisplay())},
	})
}

func (s *Server) postInsights(c *gin.Context) {
	posts, err := s.svc.PostInsights(c.Request.Context())
	if err != nil {
		s.handleError(c, err)
		return
	}

	list := make([]post.Post, len(posts))
	for i, p := range posts {
		list[i] = p
	}
	c.HTML(http.StatusOK, "post_insights.html", gin.H{
		"post_list":      toViews(list, s.tf()),
		"follow_message": c.Query("follow_message"),
		"email_enabled":  s.mailer != nil && s.mailer.Enabled(),
	})
}

// insightsWorkbook renders published posts with views as xlsx.
func (s *Server) insightsWorkbook(c *gin.Context) (string, []byte, error) {
	posts, err := s.svc.PostInsights(c.Request.Context())
	if err != nil {
		return "", nil, err
	}

	list := make([]post.Post, len(posts))
	for i, p := range posts {
		list[i] = p
	}
	page, _ := s.svc.Page()
	input := export.Input{
		Page:        page,
		Status:      post.StatusPublished,
		Posts:       list,
		GeneratedAt: s.tf().NowDisplay(),
	}

	var buf bytes.Buffer
	if err := export.NewXLSX().Format(&buf, input); err != nil {
		return "", nil, err
	}
	return export.FileName("insights", s.tf().Stamp(), export.FormatXLSX), buf.Bytes(), nil
}

func (s *Server) postInsightsAction(c *gin.Context) {
	ctx := c.Request.Context()

	if id, ok := c.GetPostForm("view"); ok {
		redirectTo(c, "/view_post", url.Values{"post_id": {id}, "published_status": {string(post.StatusPublished)}})
		return
	}

	_, sendEmail := c.GetPostForm("send_email")
	_, exportExcel := c.GetPostForm("export_excel")
	if !sendEmail && !exportExcel {
		redirectTo(c, "/post_insights", nil)
		return
	}

	name, data, err := s.insightsWorkbook(c)
	if err != nil {
		s.handleError(c, err)
		return
	}

	if !sendEmail {
		s.svc.Record(ctx, store.ActivityInput{Action: store.ActionExport, Detail: name})
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		c.Data(http.StatusOK, export.ContentType(export.FormatXLSX), data)
		return
	}

	address := strings.TrimSpace(c.PostForm("email_address"))
	if address == "" {
		s.handleError(c, pages.ValidationError{Field: "email_address", Reason: "an email address is required"})
		return
	}
	if s.mailer == nil || !s.mailer.Enabled() {
		s.handleError(c, fmt.Errorf("failed to send email to %s: email is not configured", address))
		return
	}

	page, _ := s.svc.Page()
	err = s.mailer.Send(ctx, mailer.Message{
		To:      address,
		Subject: fmt.Sprintf("Post insights for %s, %s", page.Name, name),
		Text:    "Please see attachment",
		Attachments: []mailer.Attachment{{
			Name:        name,
			ContentType: export.ContentType(export.FormatXLSX),
			Data:        data,
		}},
	})
	if err != nil {
		s.handleError(c, fmt.Errorf("failed to send email to %s: %w", address, err))
		return
	}

	s.svc.Record(ctx, store.ActivityInput{Action: store.ActionEmail, Detail: address})
	redirectTo(c, "/post_insights", url.Values{"follow_message": {"Successfully sent email to " + address}})
}

func (s *Server) health(c *gin.Context) {
	checks := gin.H{}
	status := "healthy"
	code := http.StatusOK

	if s.activity != nil {
		if err := s.activity.Ping(c.Request.Context()); err != nil {
			checks["store"] = err.Error()
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}
	_, authenticated := s.svc.Page()

	c.JSON(code, gin.H{
		"status":        status,
		"service":       "pagedeck",
		"version":       s.version,
		"authenticated": authenticated,
		"checks":        checks,
	})
}
