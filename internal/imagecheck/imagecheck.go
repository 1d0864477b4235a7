package imagecheck

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Default image settings.
const (
	DefaultTemplate    = "http://www.legends-decks.com/img_cards/{}.png"
	DefaultContentType = "image/png"
	DefaultTimeout     = 5 * time.Second
)

// URLFor substitutes key into template. The placeholder is "{}" or "%s";
// a template without one gets the key appended.
func URLFor(template, key string) string {
	if template == "" {
		template = DefaultTemplate
	}
	switch {
	case strings.Contains(template, "{}"):
		return strings.ReplaceAll(template, "{}", key)
	case strings.Contains(template, "%s"):
		return strings.ReplaceAll(template, "%s", key)
	default:
		return template + key
	}
}

// Checker reports whether an image exists at a URL.
type Checker interface {
	Exists(ctx context.Context, url string) bool
}

// HTTPChecker checks image URLs with a GET request. Positive results are
// cached for the lifetime of the checker.
type HTTPChecker struct {
	client      *http.Client
	contentType string
	timeout     time.Duration
	found       sync.Map // url -> struct{}
}

// NewHTTPChecker creates a checker. Zero values select the defaults.
func NewHTTPChecker(client *http.Client, contentType string, timeout time.Duration) *HTTPChecker {
	if client == nil {
		client = http.DefaultClient
	}
	if contentType == "" {
		contentType = DefaultContentType
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPChecker{client: client, contentType: contentType, timeout: timeout}
}

// Exists returns true only for a 2xx response with the expected content type.
// Every failure is reported as false.
func (c *HTTPChecker) Exists(ctx context.Context, url string) bool {
	if _, ok := c.found.Load(url); ok {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Debug("image check request", "url", url, "error", err)
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		slog.Debug("image check failed", "url", url, "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.EqualFold(mediaType, c.contentType) {
		return false
	}

	c.found.Store(url, struct{}{})
	return true
}

// Static is a Checker with a fixed answer set, for tests and dry runs.
type Static map[string]bool

// Exists reports the configured answer for url.
func (s Static) Exists(_ context.Context, url string) bool {
	return s[url]
}
