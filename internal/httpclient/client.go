// Package httpclient builds the HTTP clients used for outgoing API calls,
// with a tuned connection pool and User-Agent injection.
package httpclient

import (
	"net"
	"net/http"
	"time"

	"github.com/mealsnap/mealsnap-go/internal/logger"
	"github.com/mealsnap/mealsnap-go/internal/privacy"
)

const (
	// Default connection pool settings
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 4
	defaultIdleConnTimeout     = 90 * time.Second

	defaultTLSHandshakeTimeout   = 10 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultDialTimeout           = 30 * time.Second
	defaultDialKeepAlive         = 30 * time.Second

	defaultUserAgent = "MealSnap"
)

// Config holds configuration for creating an HTTP client.
type Config struct {
	// Timeout bounds a whole request. Zero leaves it to the request context.
	Timeout time.Duration

	// UserAgent is added to requests that do not set one
	UserAgent string

	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration

	// ResponseHeaderTimeout is the wait for response headers. Zero means no limit,
	// which suits slow model servers that answer only after generation.
	ResponseHeaderTimeout time.Duration

	// Logger receives a debug line per request. Nil disables request logging.
	Logger logger.Logger
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:           defaultUserAgent,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		TLSHandshakeTimeout: defaultTLSHandshakeTimeout,
	}
}

// New creates an *http.Client from cfg. A nil cfg uses DefaultConfig; zero
// fields in a non-nil cfg fall back to the defaults.
func New(cfg *Config) *http.Client {
	c := DefaultConfig()
	if cfg != nil {
		c.Timeout = cfg.Timeout
		c.ResponseHeaderTimeout = cfg.ResponseHeaderTimeout
		c.Logger = cfg.Logger
		if cfg.UserAgent != "" {
			c.UserAgent = cfg.UserAgent
		}
		if cfg.MaxIdleConnsPerHost > 0 {
			c.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
		}
		if cfg.IdleConnTimeout > 0 {
			c.IdleConnTimeout = cfg.IdleConnTimeout
		}
		if cfg.TLSHandshakeTimeout > 0 {
			c.TLSHandshakeTimeout = cfg.TLSHandshakeTimeout
		}
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: defaultDialKeepAlive,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   c.MaxIdleConnsPerHost,
		IdleConnTimeout:       c.IdleConnTimeout,
		TLSHandshakeTimeout:   c.TLSHandshakeTimeout,
		ResponseHeaderTimeout: c.ResponseHeaderTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}

	return &http.Client{
		Transport: &roundTripper{base: transport, userAgent: c.UserAgent, log: c.Logger},
		Timeout:   c.Timeout,
	}
}

// roundTripper injects the User-Agent and logs each exchange.
type roundTripper struct {
	base      http.RoundTripper
	userAgent string
	log       logger.Logger
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" && rt.userAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", rt.userAgent)
	}

	start := time.Now()
	resp, err := rt.base.RoundTrip(req)

	if rt.log != nil {
		fields := []logger.Field{
			logger.String("method", req.Method),
			logger.String("host", req.URL.Host),
			logger.String("path", req.URL.Path),
			logger.Duration("duration", time.Since(start)),
		}
		if err != nil {
			rt.log.Debug("outgoing request failed", append(fields, logger.Error(privacy.ScrubError(err)))...)
		} else {
			rt.log.Debug("outgoing request", append(fields, logger.Int("status", resp.StatusCode))...)
		}
	}
	return resp, err
}

// CloseIdleConnections forwards to the underlying transport.
func (rt *roundTripper) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if ci, ok := rt.base.(closeIdler); ok {
		ci.CloseIdleConnections()
	}
}
