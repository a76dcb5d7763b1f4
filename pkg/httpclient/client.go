// Package httpclient wraps net/http with the knobs the search and fetch
// paths share: timeouts, a redirect cap, optional cookie persistence and a
// pluggable transport.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// Config defines the setup for the HTTP client.
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	// Transport overrides the default, e.g. for proxies or TLS fingerprinting.
	Transport http.RoundTripper
}

// Client wraps a standard http.Client with a configured redirect policy and
// optional cookie jar.
type Client struct {
	*http.Client
}

// New creates an HTTP client from the configuration. A zero Timeout defaults
// to 30s; a negative MaxRedirects disables redirect following entirely.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &http.Client{
		Timeout: cfg.Timeout,
	}

	if cfg.MaxRedirects >= 0 {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		}
	} else {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if cfg.UseCookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.Jar = jar
	}

	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{Client: c}, nil
}

// Do executes the request under the given context. The context governs
// per-call cancellation and deadlines independent of the client timeout.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}

	resp, err := c.Client.Do(req.Clone(ctx))
	if err != nil {
		return nil, err
	}
	return resp, nil
}
