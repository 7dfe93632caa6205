package workout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/teslashibe/go-coach/internal/httpc"
	"github.com/teslashibe/go-coach/internal/log"
)

const (
	// DefaultURL is where the metrics service listens on the coach host.
	DefaultURL = "http://127.0.0.1:5000/latest_metrics"

	// DefaultTimeout bounds a whole fetch, connect through body.
	DefaultTimeout = 2 * time.Second

	// maxBodyBytes caps how much of a response we are willing to read.
	maxBodyBytes = 1 << 20
)

// StatusError reports a non-200 answer from the metrics service.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("workout: metrics service returned %d", e.StatusCode)
}

// Source yields the latest snapshot, if any.
type Source interface {
	Fetch(ctx context.Context) (Snapshot, bool)
}

// Fetcher performs one GET against the metrics service per call.
// Every call uses its own HTTP client and releases it before returning.
type Fetcher struct {
	url     string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the per-fetch deadline.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher creates a fetcher for url. An empty url means DefaultURL.
func NewFetcher(url string, opts ...Option) *Fetcher {
	if url == "" {
		url = DefaultURL
	}
	f := &Fetcher{
		url:     url,
		timeout: DefaultTimeout,
		logger:  log.Component("workout.fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// URL returns the endpoint this fetcher reads.
func (f *Fetcher) URL() string {
	return f.url
}

// Fetch returns the latest snapshot and true, or false when no usable
// snapshot could be obtained. It never returns an error: every failure is
// logged and reported as absence.
func (f *Fetcher) Fetch(ctx context.Context) (Snapshot, bool) {
	start := time.Now()
	snap, err := f.FetchErr(ctx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		attrs := []any{"url", f.url, "latency_ms", latency, "timeout", isTimeout(err)}
		var se *StatusError
		if errors.As(err, &se) {
			attrs = append(attrs, "status", se.StatusCode)
		} else {
			attrs = append(attrs, "error", err)
		}
		f.logger.Warn("metrics fetch failed", attrs...)
		return Snapshot{}, false
	}

	f.logger.Info("fetched metrics", "bytes", len(snap.raw), "latency_ms", latency)
	return snap, true
}

// FetchErr is Fetch with the failure reason exposed.
func (f *Fetcher) FetchErr(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var snap Snapshot
	err := httpc.Scoped(f.timeout, func(client *http.Client) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
		if err != nil {
			return fmt.Errorf("workout: build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("workout: request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
			return &StatusError{StatusCode: resp.StatusCode}
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fmt.Errorf("workout: read body: %w", err)
		}

		snap, err = ParseSnapshot(body)
		return err
	})
	return snap, err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
