// Package fetch performs the network and image work behind a tab: plain HTTP
// GETs for page bodies and favicons, and favicon decoding.
//
// Redirects follow the net/http default policy (at most 10 hops).
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zjrosen/tabfetch/internal/cachemanager"
	"github.com/zjrosen/tabfetch/internal/log"
)

// DefaultUserAgent is the client signature sent with every request.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; Wayland; rv:1.0) Gecko/20231106 Gosub/0.1 Firefox/89.0"

const (
	DefaultTimeout      = 5 * time.Second
	DefaultFaviconPath  = "/favicon.ico"
	DefaultMaxBodyBytes = 10 << 20
	DefaultFaviconTTL   = cachemanager.DefaultExpiration
)

// ErrBodyTooLarge is returned when a response exceeds the configured limit.
var ErrBodyTooLarge = errors.New("response body too large")

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	FaviconPath  string
	MaxBodyBytes int64

	// FaviconCache stores successful favicon downloads by favicon URL.
	// Nil disables caching.
	FaviconCache cachemanager.CacheManager[string, []byte]
	FaviconTTL   time.Duration

	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// Client is the HTTP collaborator shared by all fetch jobs.
type Client struct {
	http         *http.Client
	userAgent    string
	faviconPath  string
	maxBodyBytes int64
	faviconTTL   time.Duration
	favicons     *cachemanager.ReadThroughCache[string, []byte, string]
}

// NewClient creates a Client from opts.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.FaviconPath == "" {
		opts.FaviconPath = DefaultFaviconPath
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.FaviconTTL <= 0 {
		opts.FaviconTTL = DefaultFaviconTTL
	}

	c := &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		userAgent:    opts.UserAgent,
		faviconPath:  opts.FaviconPath,
		maxBodyBytes: opts.MaxBodyBytes,
		faviconTTL:   opts.FaviconTTL,
	}
	c.favicons = cachemanager.NewReadThroughCache(opts.FaviconCache, c.getFavicon, opts.FaviconCache == nil)
	return c
}

var errEmptyFavicon = errors.New("empty favicon body")

// getFavicon treats an empty 2xx body as a failure so it is never cached.
func (c *Client) getFavicon(ctx context.Context, url string) ([]byte, error) {
	buf, err := c.Get(ctx, url)
	if err == nil && len(buf) == 0 {
		return nil, errEmptyFavicon
	}
	return buf, err
}

// Get performs a GET and returns the body of a 2xx response.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", url, err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, fmt.Errorf("GET %s: %w (limit %d bytes)", url, ErrBodyTooLarge, c.maxBodyBytes)
	}

	log.Debug(log.CatFetch, "GET complete",
		"url", url,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", time.Since(start))
	return body, nil
}

// FaviconURL returns the well-known favicon location for base.
func (c *Client) FaviconURL(base string) string {
	return strings.TrimRight(base, "/") + c.faviconPath
}

// FetchFavicon downloads the favicon for base. Any failure yields an empty
// slice: callers cannot tell a transport error from a site without a
// favicon.
func (c *Client) FetchFavicon(ctx context.Context, base string) []byte {
	url := c.FaviconURL(base)

	buf, err := c.favicons.Get(ctx, url, url, c.faviconTTL)
	if err != nil {
		log.Debug(log.CatFetch, "Failed to fetch favicon", "url", url, "error", err)
		return []byte{}
	}
	return buf
}
