// Package config loads go-coach settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultMetricsURL     = "http://127.0.0.1:5000/latest_metrics"
	DefaultMetricsTimeout = 2 * time.Second
	DefaultLLMModel       = "gpt-4o-mini"
	DefaultTTSModel       = "tts-1"
	DefaultTTSVoice       = "alloy"
	DefaultSTTModel       = "nova-2"
	DefaultListenAddr     = ":8080"
	DefaultICEServer      = "stun:stun.l.google.com:19302"
	DefaultLogLevel       = "info"
)

// Config holds everything the coach needs at startup.
type Config struct {
	// Workout metrics service
	MetricsURL     string
	MetricsTimeout time.Duration

	// Language model and speech synthesis (OpenAI-compatible)
	OpenAIAPIKey  string
	OpenAIBaseURL string
	LLMModel      string
	TTSModel      string
	TTSVoice      string

	// Speech recognition
	DeepgramAPIKey string
	STTModel       string

	// Transport
	ListenAddr string
	ICEServers []string

	// Optional side-channel mirror
	RedisURL      string
	RedisPassword string

	LogLevel string
}

// Load reads an optional dotenv file and then the process environment.
// A missing file is not an error; variables already set win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	timeout, err := envDuration("METRICS_TIMEOUT", DefaultMetricsTimeout)
	if err != nil {
		return nil, err
	}

	return &Config{
		MetricsURL:     envString("METRICS_URL", DefaultMetricsURL),
		MetricsTimeout: timeout,
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		LLMModel:       envString("COACH_LLM_MODEL", DefaultLLMModel),
		TTSModel:       envString("COACH_TTS_MODEL", DefaultTTSModel),
		TTSVoice:       envString("COACH_TTS_VOICE", DefaultTTSVoice),
		DeepgramAPIKey: os.Getenv("DEEPGRAM_API_KEY"),
		STTModel:       envString("DEEPGRAM_MODEL", DefaultSTTModel),
		ListenAddr:     envString("LISTEN_ADDR", DefaultListenAddr),
		ICEServers:     envList("ICE_SERVERS", DefaultICEServer),
		RedisURL:       os.Getenv("REDIS_URL"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		LogLevel:       envString("LOG_LEVEL", DefaultLogLevel),
	}, nil
}

// Validate checks the settings needed to serve sessions.
func (c *Config) Validate() error {
	var errs []error
	if c.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	if c.DeepgramAPIKey == "" {
		errs = append(errs, errors.New("DEEPGRAM_API_KEY is required"))
	}
	if err := c.ValidateMetrics(); err != nil {
		errs = append(errs, err)
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("LISTEN_ADDR must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ValidateMetrics checks only the metrics endpoint settings.
func (c *Config) ValidateMetrics() error {
	u, err := url.Parse(c.MetricsURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("METRICS_URL %q is not an http(s) URL", c.MetricsURL)
	}
	if c.MetricsTimeout <= 0 {
		return errors.New("METRICS_TIMEOUT must be positive")
	}
	return nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envDuration accepts Go durations ("1500ms") or bare seconds ("2").
func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a duration", key, v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func envList(key, def string) []string {
	raw := envString(key, def)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
