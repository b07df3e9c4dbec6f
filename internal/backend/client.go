package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/sowa/internal/metrics"
)

// DefaultAdminPrefix is the path prefix of the admin surface.
const DefaultAdminPrefix = "/api/dashboard-sowa"

// Config configures a backend Client.
type Config struct {
	BaseURL     string
	AdminPrefix string
	Timeout     time.Duration
	Transport   http.RoundTripper
}

// Client calls the studio backend. A Client without a cookie jar is shared
// by all viewers; WithJar derives a per-viewer client that carries that
// viewer's backend session cookies on every request.
type Client struct {
	base        *url.URL
	adminPrefix string
	http        *http.Client
}

// New creates a backend client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", cfg.BaseURL)
	}

	prefix := cfg.AdminPrefix
	if prefix == "" {
		prefix = DefaultAdminPrefix
	}
	prefix = "/" + strings.Trim(prefix, "/")

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}

	return &Client{
		base:        base,
		adminPrefix: prefix,
		http:        &http.Client{Transport: transport, Timeout: cfg.Timeout},
	}, nil
}

// WithJar returns a client sharing c's transport that stores and sends
// cookies through jar.
func (c *Client) WithJar(jar http.CookieJar) *Client {
	hc := *c.http
	hc.Jar = jar
	return &Client{base: c.base, adminPrefix: c.adminPrefix, http: &hc}
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// AdminPrefix returns the path prefix of the admin surface.
func (c *Client) AdminPrefix() string {
	return c.adminPrefix
}

// Public returns the public API surface.
func (c *Client) Public() PublicAPI { return PublicAPI{c: c} }

// Admin returns the admin API surface.
func (c *Client) Admin() AdminAPI { return AdminAPI{c: c} }

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do performs one request. op names the catalog operation for metrics.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("building %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveBackend(op, "error", time.Since(start))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	metrics.ObserveBackend(op, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	return c.do(ctx, op, http.MethodGet, path, query, nil, "", out)
}

func (c *Client) sendJSON(ctx context.Context, op, method, path string, payload, out any) error {
	if payload == nil {
		return c.do(ctx, op, method, path, nil, nil, "", out)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", op, err)
	}
	return c.do(ctx, op, method, path, nil, bytes.NewReader(data), "application/json", out)
}

func (c *Client) sendForm(ctx context.Context, op, method, path string, form *Form, out any) error {
	body, contentType, err := form.Encode()
	if err != nil {
		return fmt.Errorf("encoding %s form: %w", op, err)
	}
	return c.do(ctx, op, method, path, nil, body, contentType, out)
}

func (c *Client) delete(ctx context.Context, op, path string) error {
	return c.do(ctx, op, http.MethodDelete, path, nil, nil, "", nil)
}
