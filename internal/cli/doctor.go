package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/pagedeck/internal/config"
	"github.com/ppiankov/pagedeck/internal/graph"
	"github.com/ppiankov/pagedeck/internal/store"
	"github.com/spf13/cobra"
)

const doctorTimeout = 15 * time.Second

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, storage and the access token",
	RunE:  doctorAction,
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// Config file
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		return fmt.Errorf("some checks failed")
	}
	printCheck(true, "config.yaml (graph %s, timezone %s)", cfg.Graph.Version, cfg.Display.Location)

	// Database
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		printCheck(false, "database: %v", err)
		ok = false
	} else {
		defer func() { _ = db.Close() }()
		version, err := db.SchemaVersion(cmd.Context())
		if err != nil {
			printCheck(false, "database %s: %v", cfg.Storage.Path, err)
			ok = false
		} else {
			printCheck(true, "database %s (schema v%d)", cfg.Storage.Path, version)
		}
	}

	// Export dir
	if err := os.MkdirAll(cfg.Export.Dir, 0o755); err != nil {
		printCheck(false, "export dir: %v", err)
		ok = false
	} else {
		printCheck(true, "export dir %s", cfg.Export.Dir)
	}

	// Email (info-level, optional)
	if cfg.Email.Enabled() {
		printCheck(true, "email via %s:%d", cfg.Email.Host, cfg.Email.Port)
	} else {
		printInfo("email not configured, send_email is disabled")
	}

	// Access token
	if cfg.Graph.AccessToken == "" {
		printInfo("$%s not set, log in from the dashboard", cfg.Graph.AccessTokenEnv)
	} else if !checkToken(cmd.Context(), cfg) {
		ok = false
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

func checkToken(ctx context.Context, cfg *config.Config) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	client := graph.New(graph.Config{
		BaseURL: cfg.Graph.BaseURL,
		Version: cfg.Graph.Version,
		Timeout: cfg.Graph.Timeout.Duration,
	})
	page, err := client.Me(ctx, cfg.Graph.AccessToken)
	if err != nil {
		if graph.IsTokenError(err) {
			printCheck(false, "access token rejected: %v", err)
		} else {
			printCheck(false, "graph api: %v", err)
		}
		return false
	}
	printCheck(true, "access token for page %s (%s)", page.Name, page.ID)
	return true
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Printf("[INFO] %s\n", fmt.Sprintf(format, args...))
}
