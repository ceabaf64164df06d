// Package httpclient provides the bounded outbound HTTP client used for
// calls to the SilverSurfers API origin.
package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"time"
)

var (
	ErrResponseTooLarge = errors.New("response body too large")
	ErrRedirectBlocked  = errors.New("redirect blocked by policy")
)

// Config bounds outbound request behavior.
type Config struct {
	TimeoutMS          int
	ConnectTimeoutMS   int
	MaxResponseBytes   int64
	InsecureSkipVerify bool
}

// DefaultConfig returns the bounds used when no configuration is supplied.
func DefaultConfig() *Config {
	return &Config{
		TimeoutMS:        10000,
		ConnectTimeoutMS: 2000,
		MaxResponseBytes: 1 << 20,
	}
}

// Client is an outbound HTTP client with timeouts, a response size cap, and
// no automatic redirect following. Proxy environment variables are ignored:
// the API origin is a fixed, trusted destination and must not be rerouted.
type Client struct {
	cfg        *Config
	httpClient *http.Client
}

// New creates a bounded outbound client.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	dialer := &net.Dialer{
		Timeout: time.Duration(cfg.ConnectTimeoutMS) * time.Millisecond,
	}

	transport := &http.Transport{
		Proxy:       nil,
		DialContext: dialer.DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
		MaxIdleConns:    10,
		IdleConnTimeout: 30 * time.Second,
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.TimeoutMS) * time.Millisecond,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Do performs an HTTP request using the provided context.
// A 3xx response is returned as an error: the API origin never redirects, so
// one showing up means a misconfigured origin or an interception attempt.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if isRedirect(resp.StatusCode) {
		resp.Body.Close()
		return nil, ErrRedirectBlocked
	}

	return resp, nil
}

// ReadBody drains a response body under the configured size cap.
func (c *Client) ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.cfg.MaxResponseBytes {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}

func isRedirect(code int) bool {
	return code == http.StatusMovedPermanently ||
		code == http.StatusFound ||
		code == http.StatusSeeOther ||
		code == http.StatusTemporaryRedirect ||
		code == http.StatusPermanentRedirect
}
