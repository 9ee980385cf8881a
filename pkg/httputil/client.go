// Package httputil builds the HTTP clients used for provider calls and
// public IP lookups.
package httputil

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultTimeout bounds every request made by a client from NewClient.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent when ClientConfig.UserAgent is empty.
	DefaultUserAgent = "aliddns/1.0"

	redacted = "REDACTED"
)

// ClientConfig contains configuration for creating an HTTP client.
type ClientConfig struct {
	// Timeout is the whole-request timeout. Defaults to 30 seconds.
	Timeout time.Duration

	// UserAgent defaults to "aliddns/1.0".
	UserAgent string

	// NoCache adds "Cache-Control: no-cache" so intermediaries do not serve
	// a stale answer (used for IP discovery).
	NoCache bool

	// RedactParams lists query parameters replaced by "REDACTED" in debug logs.
	RedactParams []string

	// Logger enables debug logging of requests. Nil disables it.
	Logger *slog.Logger
}

// loggingTransport sets default headers and logs requests at debug level.
type loggingTransport struct {
	base      http.RoundTripper
	userAgent string
	noCache   bool
	redact    []string
	logger    *slog.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	setUA := req.Header.Get("User-Agent") == ""
	setCache := t.noCache && req.Header.Get("Cache-Control") == ""
	if setUA || setCache {
		// RoundTrippers must not modify the caller's request.
		req = req.Clone(req.Context())
		if setUA {
			req.Header.Set("User-Agent", t.userAgent)
		}
		if setCache {
			req.Header.Set("Cache-Control", "no-cache")
		}
	}

	if t.logger == nil {
		return t.base.RoundTrip(req)
	}

	target := RedactURL(req.URL, t.redact...)
	t.logger.Debug("HTTP request",
		slog.String("method", req.Method),
		slog.String("url", target),
	)

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Debug("HTTP request failed",
			slog.String("method", req.Method),
			slog.String("url", target),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	t.logger.Debug("HTTP response",
		slog.String("method", req.Method),
		slog.String("url", target),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}

// NewClient creates an HTTP client with the specified configuration.
// A nil cfg yields the defaults.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &loggingTransport{
			base:      http.DefaultTransport,
			userAgent: userAgent,
			noCache:   cfg.NoCache,
			redact:    cfg.RedactParams,
			logger:    cfg.Logger,
		},
	}
}

// RedactURL renders u with the values of the named query parameters hidden.
func RedactURL(u *url.URL, params ...string) string {
	if u == nil {
		return ""
	}
	if len(params) == 0 || u.RawQuery == "" {
		return u.String()
	}

	q := u.Query()
	changed := false
	for _, p := range params {
		if _, ok := q[p]; ok {
			q.Set(p, redacted)
			changed = true
		}
	}
	if !changed {
		return u.String()
	}

	c := *u
	c.RawQuery = q.Encode()
	return c.String()
}
