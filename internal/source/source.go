// Package source fetches the currently published version of an app from a storefront.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/loykin/appwatch/internal/version"
)

// ErrFetch wraps every failure to produce an observation.
var ErrFetch = errors.New("fetch failed")

const (
	// DefaultTimeout bounds one storefront request.
	DefaultTimeout = 30 * time.Second

	// maxBody caps how much of a storefront page is read.
	maxBody = 8 << 20

	// Storefronts serve reduced markup to unknown clients.
	MacUserAgent     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	WindowsUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Source produces observations for one platform.
type Source interface {
	Platform() version.Platform
	Fetch(ctx context.Context) (version.Observation, error)
}

// NewHTTPClient returns a client with the given overall timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Get performs a GET with the given User-Agent and returns the body.
// Non-2xx responses are errors.
func Get(ctx context.Context, c *http.Client, url, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept-Language", "en")
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBody))
}

// Errorf wraps a failure in ErrFetch.
func Errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFetch, fmt.Sprintf(format, args...))
}
