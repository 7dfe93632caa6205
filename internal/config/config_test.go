package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"METRICS_URL", "METRICS_TIMEOUT", "OPENAI_API_KEY", "OPENAI_BASE_URL",
		"COACH_LLM_MODEL", "COACH_TTS_MODEL", "COACH_TTS_VOICE",
		"DEEPGRAM_API_KEY", "DEEPGRAM_MODEL", "LISTEN_ADDR", "ICE_SERVERS",
		"REDIS_URL", "REDIS_PASSWORD", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.MetricsURL != DefaultMetricsURL {
		t.Errorf("MetricsURL = %q, want %q", cfg.MetricsURL, DefaultMetricsURL)
	}
	if cfg.MetricsTimeout != DefaultMetricsTimeout {
		t.Errorf("MetricsTimeout = %v, want %v", cfg.MetricsTimeout, DefaultMetricsTimeout)
	}
	if cfg.LLMModel != "gpt-4o-mini" {
		t.Errorf("LLMModel = %q", cfg.LLMModel)
	}
	if len(cfg.ICEServers) != 1 || cfg.ICEServers[0] != DefaultICEServer {
		t.Errorf("ICEServers = %v", cfg.ICEServers)
	}
	if cfg.RedisURL != "" {
		t.Errorf("RedisURL = %q, want empty", cfg.RedisURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("METRICS_URL", "http://metrics.local:9000/latest")
	t.Setenv("METRICS_TIMEOUT", "750ms")
	t.Setenv("ICE_SERVERS", "stun:a:3478, turn:b:3478 ,")
	t.Setenv("COACH_TTS_VOICE", "nova")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.MetricsURL != "http://metrics.local:9000/latest" {
		t.Errorf("MetricsURL = %q", cfg.MetricsURL)
	}
	if cfg.MetricsTimeout != 750*time.Millisecond {
		t.Errorf("MetricsTimeout = %v", cfg.MetricsTimeout)
	}
	if strings.Join(cfg.ICEServers, "|") != "stun:a:3478|turn:b:3478" {
		t.Errorf("ICEServers = %v", cfg.ICEServers)
	}
	if cfg.TTSVoice != "nova" {
		t.Errorf("TTSVoice = %q", cfg.TTSVoice)
	}
}

func TestLoadTimeoutSeconds(t *testing.T) {
	clearEnv(t)
	t.Setenv("METRICS_TIMEOUT", "1.5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.MetricsTimeout != 1500*time.Millisecond {
		t.Errorf("MetricsTimeout = %v, want 1.5s", cfg.MetricsTimeout)
	}
}

func TestLoadBadTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("METRICS_TIMEOUT", "soon")

	if _, err := Load(""); err == nil {
		t.Error("Load() should reject a malformed timeout")
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("DEEPGRAM_MODEL")
	t.Cleanup(func() { os.Unsetenv("DEEPGRAM_MODEL") })

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("DEEPGRAM_MODEL=nova-3\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.STTModel != "nova-3" {
		t.Errorf("STTModel = %q, want nova-3", cfg.STTModel)
	}
}

func TestLoadMissingEnvFile(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		MetricsURL:     DefaultMetricsURL,
		MetricsTimeout: time.Second,
		OpenAIAPIKey:   "sk-test",
		DeepgramAPIKey: "dg-test",
		ListenAddr:     ":8080",
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no openai key", func(c *Config) { c.OpenAIAPIKey = "" }, "OPENAI_API_KEY"},
		{"no deepgram key", func(c *Config) { c.DeepgramAPIKey = "" }, "DEEPGRAM_API_KEY"},
		{"bad metrics url", func(c *Config) { c.MetricsURL = "ftp://x" }, "METRICS_URL"},
		{"zero timeout", func(c *Config) { c.MetricsTimeout = 0 }, "METRICS_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
