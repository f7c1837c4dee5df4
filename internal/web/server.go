// Package web serves the page dashboard.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/pagedeck/internal/logging"
	"github.com/ppiankov/pagedeck/internal/mailer"
	"github.com/ppiankov/pagedeck/internal/metrics"
	"github.com/ppiankov/pagedeck/internal/pages"
	"github.com/ppiankov/pagedeck/internal/privacy"
	"github.com/ppiankov/pagedeck/internal/store"
	"github.com/ppiankov/pagedeck/internal/timefmt"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	readTimeout     = 30 * time.Second
	writeTimeout    = 60 * time.Second
	idleTimeout     = 120 * time.Second
	shutdownTimeout = 30 * time.Second
	recentActivity  = 10
)

// Mailer sends exports by email.
type Mailer interface {
	Enabled() bool
	Send(ctx context.Context, msg mailer.Message) error
}

// ActivityLog lists recorded dashboard actions.
type ActivityLog interface {
	Recent(ctx context.Context, limit int) ([]store.Activity, error)
	Ping(ctx context.Context) error
}

// Server wires the dashboard routes to a page session.
type Server struct {
	svc      *pages.Service
	mailer   Mailer
	activity ActivityLog
	metrics  *metrics.Collector
	log      logging.Logger
	mode     string
	version  string
	offset   int
	redact   *privacy.Redactor
}

// Option configures a Server.
type Option func(*Server)

// WithMailer enables the send_email action.
func WithMailer(m Mailer) Option {
	return func(s *Server) { s.mailer = m }
}

// WithActivityLog shows recent actions on the home page and adds a health check.
func WithActivityLog(a ActivityLog) Option {
	return func(s *Server) { s.activity = a }
}

// WithMetrics enables request metrics and the /metrics endpoint.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the request logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMode sets the gin mode (debug, release, test).
func WithMode(mode string) Option {
	return func(s *Server) { s.mode = mode }
}

// WithVersion is reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithScheduleOffset sets the minimum lead time, in minutes, offered by the
// scheduling forms.
func WithScheduleOffset(minutes int) Option {
	return func(s *Server) { s.offset = minutes }
}

// WithRedactor scrubs credentials from error pages.
func WithRedactor(r *privacy.Redactor) Option {
	return func(s *Server) { s.redact = r }
}

// New creates a Server for svc.
func New(svc *pages.Service, opts ...Option) *Server {
	s := &Server{svc: svc, log: logging.Discard(), mode: gin.ReleaseMode, version: "dev", offset: timefmt.DefaultScheduleOffset}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with all routes and middleware.
func (s *Server) Router() (*gin.Engine, error) {
	if s.mode != "" {
		gin.SetMode(s.mode)
	}

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	router := gin.New()
	router.SetHTMLTemplate(tmpl)

	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(s.log))
	router.Use(RecoveryMiddleware(s.log))
	if s.metrics != nil {
		router.Use(s.metrics.Middleware())
	}

	router.GET("/", s.loginForm)
	router.GET("/login", s.loginForm)
	router.POST("/", s.login)
	router.POST("/login", s.login)
	router.GET("/home", s.home)
	router.GET("/list_posts", s.listPosts)
	router.POST("/list_posts", s.listPostsAction)
	router.GET("/view_post", s.viewPost)
	router.POST("/view_post", s.viewPostAction)
	router.GET("/new_post", s.newPostForm)
	router.POST("/new_post", s.createPost)
	router.GET("/post_insights", s.postInsights)
	router.POST("/post_insights", s.postInsightsAction)

	router.GET("/health", s.health)
	if s.metrics != nil {
		router.GET("/metrics", s.metrics.Handler())
	}

	return router, nil
}

// Start serves handler on addr until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, addr string, handler http.Handler, logger logging.Logger) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", ln.Addr().String()).Info("Starting HTTP server")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}
