package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ppiankov/pagedeck/internal/graph"
	"github.com/ppiankov/pagedeck/internal/mailer"
	"github.com/ppiankov/pagedeck/internal/metrics"
	"github.com/ppiankov/pagedeck/internal/pages"
	"github.com/ppiankov/pagedeck/internal/web"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard web server",
	RunE:  serveAction,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func serveAction(cmd *cobra.Command, _ []string) error {
	collector := metrics.New(Version, Commit)

	a, err := newApp(
		[]graph.Option{graph.WithObserver(collector)},
		pages.WithActivityObserver(collector),
	)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if n, err := a.db.PruneOld(ctx, a.cfg.Storage.RetainDays); err != nil {
		a.log.WithError(err).Warn("failed to prune activity log")
	} else if n > 0 {
		a.log.WithField("removed", n).Info("pruned activity log")
	}

	// A configured token logs in up front; otherwise the login form does it.
	if a.cfg.Graph.AccessToken != "" {
		if err := a.login(ctx); err != nil {
			a.log.WithError(err).Warn("configured access token rejected, waiting for login")
		}
	}

	sender := mailer.NewSender(mailer.Config{
		Host:     a.cfg.Email.Host,
		Port:     a.cfg.Email.Port,
		User:     a.cfg.Email.User,
		Password: a.cfg.Email.Password,
		From:     a.cfg.Email.From,
		FromName: a.cfg.Email.FromName,
	})

	srv := web.New(a.svc,
		web.WithMailer(sender),
		web.WithActivityLog(a.db),
		web.WithMetrics(collector),
		web.WithLogger(a.log),
		web.WithMode(a.cfg.Server.GinMode),
		web.WithVersion(Version),
		web.WithScheduleOffset(a.cfg.Display.ScheduleOffset),
		web.WithRedactor(a.redact),
	)
	router, err := srv.Router()
	if err != nil {
		return err
	}

	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	fmt.Printf("pagedeck dashboard on http://%s\n", addr)
	return web.Start(ctx, addr, router, a.log)
}
