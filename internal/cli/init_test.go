package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/pagedeck/internal/config"
)

func TestInit_CreatesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")

	out, err := runCLI(t, "init", "--config", dir)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	requireContains(t, out, "with 2 config files")

	for _, name := range []string{config.DefaultConfigFile, config.DefaultEnvFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	info, err := os.Stat(filepath.Join(dir, config.DefaultEnvFile))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf(".env perm = %o, want 600", perm)
	}

	// The generated example must load cleanly.
	if _, err := config.Load(dir); err != nil {
		t.Errorf("example config does not load: %v", err)
	}
}

func TestInit_Idempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")

	if _, err := runCLI(t, "init", "--config", dir); err != nil {
		t.Fatalf("first init: %v", err)
	}
	custom := []byte("graph:\n  version: v18.0\n")
	if err := os.WriteFile(filepath.Join(dir, config.DefaultConfigFile), custom, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "init", "--config", dir)
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	requireContains(t, out, "already initialized")

	got, err := os.ReadFile(filepath.Join(dir, config.DefaultConfigFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(custom) {
		t.Error("init overwrote an existing config.yaml")
	}
}
