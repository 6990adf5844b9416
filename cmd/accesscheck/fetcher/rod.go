package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/jmylchreest/accesscheck/internal/logger"
	"github.com/jmylchreest/accesscheck/pkg/fetcher"
)

// RodFetcher renders pages in a browser driven by go-rod.
type RodFetcher struct {
	config   Config
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewRod launches a headless browser and connects to it.
func NewRod(cfg Config) (*RodFetcher, error) {
	cfg = cfg.withDefaults()

	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled")
	if path := chromePath(cfg); path != "" {
		l = l.Bin(path)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	logger.Debug("rod fetcher created",
		"control_url", u,
		"stealth", cfg.Stealth,
		"googlebot", cfg.Googlebot,
		"timeout", cfg.Timeout)

	return &RodFetcher{config: cfg, launcher: l, browser: b}, nil
}

// Fetch opens a page, navigates to targetURL, waits for the load event and
// returns the rendered DOM.
func (f *RodFetcher) Fetch(ctx context.Context, targetURL string, opts fetcher.Options) (fetcher.Content, error) {
	start := time.Now()
	result := fetcher.Content{
		URL:       targetURL,
		FetchedAt: start,
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.config.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p, err := f.openPage(ctx)
	if err != nil {
		result.Duration = time.Since(start)
		return result, fetcher.Wrap(targetURL, fmt.Errorf("opening page: %w", err))
	}
	defer func() { _ = p.Close() }()

	fail := func(stage string, err error) (fetcher.Content, error) {
		result.Duration = time.Since(start)
		return result, fetcher.Wrap(targetURL, fmt.Errorf("%s: %w", stage, err))
	}

	ua := coalesce(opts.UserAgent, f.config.UserAgent)
	if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		return fail("setting user agent", err)
	}
	if len(opts.Headers) > 0 {
		kv := make([]string, 0, 2*len(opts.Headers))
		for k, v := range opts.Headers {
			kv = append(kv, k, v)
		}
		if _, err := p.SetExtraHeaders(kv); err != nil {
			return fail("setting headers", err)
		}
	}

	logger.Debug("rod navigating", "url", targetURL, "timeout", timeout, "stealth", f.config.Stealth)

	if err := p.Navigate(targetURL); err != nil {
		return fail("navigating", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fail("waiting for load", err)
	}
	if opts.WaitDuration > 0 {
		select {
		case <-ctx.Done():
			return fail("waiting", ctx.Err())
		case <-time.After(opts.WaitDuration):
		}
	}

	if result.HTML, err = p.HTML(); err != nil {
		return fail("reading page", err)
	}
	if info, err := p.Info(); err == nil {
		result.Title = info.Title
	}
	result.Duration = time.Since(start)

	if err := checkChallenge(f.config, targetURL, result.Title, result.HTML); err != nil {
		logger.Warn("challenge page detected", "url", targetURL, "error", err)
		return result, err
	}

	logger.Debug("rod fetch complete",
		"url", targetURL,
		"title", result.Title,
		"html_size", len(result.HTML),
		"duration", result.Duration)

	return result, nil
}

// openPage creates a tab bound to ctx, so opening it counts against the
// fetch timeout.
func (f *RodFetcher) openPage(ctx context.Context) (*rod.Page, error) {
	b := f.browser.Context(ctx)
	if f.config.Stealth {
		return stealth.Page(b)
	}
	return b.Page(proto.TargetCreateTarget{URL: ""})
}

// Close shuts down the browser and removes its profile directory.
func (f *RodFetcher) Close() error {
	err := f.browser.Close()
	f.launcher.Cleanup()
	return err
}

// Type returns the fetcher type.
func (f *RodFetcher) Type() string {
	return RendererRod
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ fetcher.Fetcher = (*RodFetcher)(nil)
