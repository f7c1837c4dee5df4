package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ppiankov/pagedeck/internal/config"
)

const (
	testTokenEnv = "PAGEDECK_CLI_TEST_TOKEN"
	testToken    = "cli-token"
)

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("open stdout pipe: %v", err)
	}

	os.Stdout = writer
	runErr := fn()
	_ = writer.Close()
	os.Stdout = oldStdout

	out, readErr := io.ReadAll(reader)
	_ = reader.Close()
	if readErr != nil {
		t.Fatalf("read stdout pipe: %v", readErr)
	}
	return string(out), runErr
}

func requireContains(t *testing.T, got, want string) {
	t.Helper()

	if !strings.Contains(got, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, got)
	}
}

// resetFlags restores every command flag variable to its default so runs
// do not leak into each other.
func resetFlags() {
	configDir = defaultConfigDir
	serveAddr = ""
	postsStatus = "published"
	postsFormat = "terminal"
	noColor = false
	exportFormat = ""
	exportStatus = "published"
	exportOut = ""
	historyLimit = 20
	historySince = "30d"
	historyFormat = "terminal"
}

// runCLI executes the root command with args and returns captured stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetFlags()
	t.Cleanup(resetFlags)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	return captureStdout(t, func() error { return rootCmd.Execute() })
}

// writeTestConfig creates a config dir pointing at graphURL with storage and
// exports under the test's temp dir.
func writeTestConfig(t *testing.T, graphURL string) string {
	t.Helper()

	root := t.TempDir()
	dir := filepath.Join(root, "cfg")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if graphURL == "" {
		graphURL = "http://127.0.0.1:1"
	}

	cfg := fmt.Sprintf(`graph:
  base_url: %s
  version: v19.0
  access_token_env: %s
  timeout: 5s
display:
  timezone: UTC
storage:
  path: %s
export:
  dir: %s
  format: json
log:
  level: error
`, graphURL, testTokenEnv, filepath.Join(root, "pagedeck.db"), filepath.Join(root, "exports"))

	if err := os.WriteFile(filepath.Join(dir, config.DefaultConfigFile), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

// fakeGraph serves the endpoints the CLI touches for page 1001.
type fakeGraph struct {
	mu    sync.Mutex
	paths []string
}

func (g *fakeGraph) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.paths = append(g.paths, r.Method+" "+r.URL.Path)
		g.mu.Unlock()

		if got := r.Header.Get("Authorization"); got != "Bearer "+testToken {
			writeTestJSON(w, http.StatusBadRequest, map[string]any{
				"error": map[string]any{"message": "Invalid OAuth access token.", "type": "OAuthException", "code": 190},
			})
			return
		}

		switch {
		case r.URL.Path == "/v19.0/me":
			writeTestJSON(w, http.StatusOK, map[string]string{"id": "1001", "name": "Corner Bakery"})
		case r.URL.Path == "/v19.0/1001/published_posts":
			writeTestJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
				{"id": "1001_1", "message": "Fresh bread today", "created_time": "2024-01-02T09:00:00+0000", "promotion_status": "inactive"},
				{"id": "1001_2", "message": "Closed Monday", "created_time": "2024-01-01T08:00:00+0000", "promotion_status": "ineligible"},
			}})
		case r.URL.Path == "/v19.0/1001/scheduled_posts":
			writeTestJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
				{"id": "1001_9", "message": "Holiday hours", "created_time": "2024-01-03T08:00:00+0000", "scheduled_publish_time": 1704276000},
			}})
		case r.Method == http.MethodPost && r.URL.Path == "/":
			body := func(v int) string {
				b, _ := json.Marshal(map[string]any{"data": []map[string]any{
					{"name": "post_impressions_unique", "values": []map[string]any{{"value": v}}},
				}})
				return string(b)
			}
			writeTestJSON(w, http.StatusOK, []map[string]any{
				{"code": 200, "body": body(57)},
				{"code": 200, "body": body(12)},
			})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}
}

func newFakeGraph(t *testing.T) (*fakeGraph, *httptest.Server) {
	t.Helper()
	g := &fakeGraph{}
	ts := httptest.NewServer(g.handler(t))
	t.Cleanup(ts.Close)
	return g, ts
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
