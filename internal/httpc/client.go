// Package httpc provides HTTP clients with sensible defaults.
// Use this instead of http.DefaultClient to ensure timeouts are set.
package httpc

import (
	"net"
	"net/http"
	"time"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

func newTransport(keepAlive bool) *http.Transport {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultConnectTimeout,
			KeepAlive: DefaultKeepAlive,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if !keepAlive {
		t.DisableKeepAlives = true
		t.MaxIdleConns = 0
		t.MaxIdleConnsPerHost = -1
	}
	return t
}

// NewClient creates a long-lived HTTP client with the specified timeout.
// Engine SDKs that keep a client for the whole process use this.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(true),
	}
}

// Scoped runs fn with a client whose transport lives only for the call.
// Keep-alives are off and idle connections are closed when fn returns,
// on every path, so nothing outlives the request.
func Scoped(timeout time.Duration, fn func(*http.Client) error) error {
	t := newTransport(false)
	defer t.CloseIdleConnections()

	return fn(&http.Client{Timeout: timeout, Transport: t})
}
