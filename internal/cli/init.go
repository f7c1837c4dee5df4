package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/pagedeck/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with example files",
	RunE:  initAction,
}

func initAction(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	created := 0

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(configPath, []byte(exampleConfig), 0o644)
	if err != nil {
		return err
	}
	if wrote {
		created++
	}

	envPath := filepath.Join(configDir, config.DefaultEnvFile)
	wrote, err = writeIfNotExists(envPath, []byte(exampleEnv), 0o600)
	if err != nil {
		return err
	}
	if wrote {
		created++
	}

	if created == 0 {
		fmt.Printf("Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Printf("Initialized %s with %d config files.\n", configDir, created)
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte, perm os.FileMode) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# pagedeck configuration

server:
  addr: localhost:4000
  gin_mode: release

graph:
  base_url: https://graph.facebook.com
  version: v19.0
  access_token_env: PAGEDECK_ACCESS_TOKEN
  timeout: 30s
  page_size: 100
  max_pages: 10

display:
  timezone: Local
  min_schedule_offset: 5

storage:
  path: .pagedeck/pagedeck.db
  retain_days: 90

export:
  dir: .pagedeck/exports
  format: xlsx

email:
  host: ""
  port: 587
  user: ""
  password_env: PAGEDECK_SMTP_PASSWORD
  from: ""
  from_name: pagedeck

log:
  level: info
  format: text
  # extra regexps scrubbed from logs and error pages (access tokens are always scrubbed)
  redact: []
`

const exampleEnv = `# Loaded by pagedeck on startup. Variables already set in the environment win.
PAGEDECK_ACCESS_TOKEN=
PAGEDECK_SMTP_PASSWORD=
`
