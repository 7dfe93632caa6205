package commands

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute(%v) error: %v", args, err)
	}
	return out.String()
}

func TestMetricsCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"reps": 12, "sets": 2}`))
	}))
	defer srv.Close()

	t.Setenv("METRICS_URL", srv.URL)
	t.Setenv("LOG_LEVEL", "error")

	out := runCLI(t, "metrics", "--env-file", "")
	if strings.TrimSpace(out) != `{"reps": 12, "sets": 2}` {
		t.Errorf("output = %q", out)
	}
}

func TestMetricsCommandUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	t.Setenv("METRICS_URL", srv.URL)
	t.Setenv("LOG_LEVEL", "error")

	out := runCLI(t, "metrics", "--env-file", "")
	if !strings.HasPrefix(out, "no snapshot available") {
		t.Errorf("output = %q", out)
	}
}

func TestServeRequiresCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DEEPGRAM_API_KEY", "")
	t.Setenv("LOG_LEVEL", "error")

	rootCmd.SetArgs([]string{"serve", "--env-file", ""})
	rootCmd.SetOut(&bytes.Buffer{})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("Execute() = %v, want missing credential error", err)
	}
}
