// Package fetcher defines the interface for retrieving page markup.
// Implementations range from a plain HTTP GET to a headless browser that
// returns the DOM after script execution.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Fetcher abstracts page fetching strategies.
type Fetcher interface {
	// Fetch retrieves page content from a URL.
	Fetch(ctx context.Context, url string, opts Options) (Content, error)

	// Close releases any resources (browser instances, etc.).
	Close() error

	// Type returns a string identifying the fetcher type (e.g., "static", "chromedp").
	Type() string
}

// Options controls fetching behavior.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	WaitDuration time.Duration // Additional wait after load (rendering fetchers)
	Headers      map[string]string
}

// Content represents fetched page data.
type Content struct {
	URL         string
	HTML        string
	Title       string
	StatusCode  int
	ContentType string
	FetchedAt   time.Time
	Duration    time.Duration
}

// Error types for distinguishing failure reasons.
// Check with errors.Is(err, fetcher.ErrTimeout).
var (
	// ErrTimeout indicates the fetch did not finish within its deadline.
	ErrTimeout = errors.New("fetch timed out")
	// ErrCaptchaChallenge indicates the site has an interactive CAPTCHA.
	ErrCaptchaChallenge = errors.New("captcha challenge detected")
	// ErrAntiBot indicates the site's anti-bot protection blocked the request.
	ErrAntiBot = errors.New("anti-bot protection detected")
)

// FetchError reports a page that could not be loaded.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err is (or wraps) a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// Blocked reports whether err indicates an anti-bot or CAPTCHA interstitial.
func Blocked(err error) bool {
	return errors.Is(err, ErrAntiBot) || errors.Is(err, ErrCaptchaChallenge)
}

// Wrap converts a failure into a *FetchError, tagging deadline expiry with
// ErrTimeout. A nil err returns nil.
func Wrap(url string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	if isTimeout(err) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return &FetchError{URL: url, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
