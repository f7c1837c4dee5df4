package cli

import (
	"context"
	"fmt"

	"github.com/ppiankov/pagedeck/internal/config"
	"github.com/ppiankov/pagedeck/internal/graph"
	"github.com/ppiankov/pagedeck/internal/logging"
	"github.com/ppiankov/pagedeck/internal/pages"
	"github.com/ppiankov/pagedeck/internal/privacy"
	"github.com/ppiankov/pagedeck/internal/store"
	"github.com/ppiankov/pagedeck/internal/timefmt"
)

// app is the wiring shared by every command that talks to Graph.
type app struct {
	cfg    *config.Config
	log    logging.Logger
	db     *store.Store
	svc    *pages.Service
	redact *privacy.Redactor
}

func (a *app) Close() error {
	return a.db.Close()
}

// newApp loads config, opens the activity store and builds the page service.
func newApp(graphOpts []graph.Option, svcOpts ...pages.Option) (*app, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	redact, err := privacy.New(cfg.Log.Redact)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	logger.AddHook(redact.Hook())

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := graph.New(graph.Config{
		BaseURL:  cfg.Graph.BaseURL,
		Version:  cfg.Graph.Version,
		Timeout:  cfg.Graph.Timeout.Duration,
		PageSize: cfg.Graph.PageSize,
		MaxPages: cfg.Graph.MaxPages,
	}, graphOpts...)

	opts := append([]pages.Option{pages.WithRecorder(db), pages.WithLogger(logger)}, svcOpts...)
	svc := pages.New(client, timefmt.New(cfg.Display.Location), opts...)

	return &app{cfg: cfg, log: logger, db: db, svc: svc, redact: redact}, nil
}

// login starts a session with the token from the configured env var.
func (a *app) login(ctx context.Context) error {
	if a.cfg.Graph.AccessToken == "" {
		return fmt.Errorf("no access token: set $%s or add it to %s/.env", a.cfg.Graph.AccessTokenEnv, configDir)
	}
	page, err := a.svc.Login(ctx, a.cfg.Graph.AccessToken)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	a.log.WithField("page", page.Name).Debug("logged in")
	return nil
}
