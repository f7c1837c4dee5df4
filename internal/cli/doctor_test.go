package cli

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestDoctor_AllChecksPass(t *testing.T) {
	_, ts := newFakeGraph(t)
	dir := writeTestConfig(t, ts.URL)
	t.Setenv(testTokenEnv, testToken)

	out, err := runCLI(t, "doctor", "--config", dir)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "[ OK ] config directory")
	requireContains(t, out, "[ OK ] database")
	requireContains(t, out, "[INFO] email not configured")
	requireContains(t, out, "access token for page Corner Bakery (1001)")
	requireContains(t, out, "All checks passed.")
}

func TestDoctor_NoToken(t *testing.T) {
	dir := writeTestConfig(t, "")
	t.Setenv(testTokenEnv, "")

	out, err := runCLI(t, "doctor", "--config", dir)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "[INFO] $"+testTokenEnv+" not set")
}

func TestDoctor_RejectedToken(t *testing.T) {
	_, ts := newFakeGraph(t)
	dir := writeTestConfig(t, ts.URL)
	t.Setenv(testTokenEnv, "stale")

	out, err := runCLI(t, "doctor", "--config", dir)
	if err == nil {
		t.Fatal("expected failure for rejected token")
	}
	requireContains(t, out, "[FAIL] access token rejected")
}

func TestDoctor_MissingConfigDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")

	out, err := runCLI(t, "doctor", "--config", dir)
	if err == nil || !strings.Contains(err.Error(), "some checks failed") {
		t.Fatalf("expected failure, got %v", err)
	}
	requireContains(t, out, "[FAIL] config directory")
}
