package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/stealth"

	"github.com/jmylchreest/accesscheck/internal/logger"
	"github.com/jmylchreest/accesscheck/pkg/fetcher"
)

// ChromedpFetcher renders pages in headless Chrome driven by chromedp. One
// browser is started per fetcher; each fetch runs in its own tab.
type ChromedpFetcher struct {
	config        Config
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
}

// NewChromedp starts a headless browser.
func NewChromedp(cfg Config) (*ChromedpFetcher, error) {
	cfg = cfg.withDefaults()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.Stealth {
		opts = append(opts,
			chromedp.Flag("excludeSwitches", "enable-automation"),
			chromedp.Flag("disable-infobars", true),
			chromedp.Flag("lang", "en-US,en"),
			chromedp.Flag("accept-lang", "en-US,en;q=0.9"),
		)
	}
	if path := chromePath(cfg); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	opts = append(opts, chromedp.ModifyCmdFunc(detachBrowser))

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	// An empty Run launches the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	logger.Debug("chromedp fetcher created",
		"stealth", cfg.Stealth,
		"googlebot", cfg.Googlebot,
		"detect_challenges", cfg.DetectChallenges,
		"timeout", cfg.Timeout)

	return &ChromedpFetcher{
		config:        cfg,
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
	}, nil
}

// Fetch opens a tab, navigates to targetURL and returns the rendered DOM.
func (f *ChromedpFetcher) Fetch(ctx context.Context, targetURL string, opts fetcher.Options) (fetcher.Content, error) {
	start := time.Now()
	result := fetcher.Content{
		URL:       targetURL,
		FetchedAt: start,
	}

	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.config.Timeout
	}
	timeoutCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()

	var setup []chromedp.Action
	if f.config.Stealth {
		setup = append(setup, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealth.JS).Do(ctx)
			return err
		}))
	}
	if opts.UserAgent != "" && opts.UserAgent != f.config.UserAgent {
		setup = append(setup, chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetUserAgentOverride(opts.UserAgent).Do(ctx)
		}))
	}
	if len(opts.Headers) > 0 {
		headers := make(network.Headers, len(opts.Headers))
		for k, v := range opts.Headers {
			headers[k] = v
		}
		setup = append(setup, network.Enable(), network.SetExtraHTTPHeaders(headers))
	}

	logger.Debug("chromedp navigating", "url", targetURL, "timeout", timeout, "stealth", f.config.Stealth)

	if err := chromedp.Run(timeoutCtx, setup...); err != nil {
		result.Duration = time.Since(start)
		return result, fetcher.Wrap(targetURL, fmt.Errorf("preparing tab: %w", err))
	}

	resp, err := chromedp.RunResponse(timeoutCtx, chromedp.Navigate(targetURL))
	if err != nil {
		result.Duration = time.Since(start)
		f.saveScreenshot(tabCtx)
		return result, fetcher.Wrap(targetURL, fmt.Errorf("navigating: %w", err))
	}
	if resp != nil {
		result.StatusCode = int(resp.Status)
		result.ContentType = resp.MimeType
	}

	actions := []chromedp.Action{chromedp.WaitReady("body")}
	if opts.WaitDuration > 0 {
		actions = append(actions, chromedp.Sleep(opts.WaitDuration))
	}
	actions = append(actions,
		chromedp.OuterHTML("html", &result.HTML),
		chromedp.Title(&result.Title),
	)

	if err := chromedp.Run(timeoutCtx, actions...); err != nil {
		result.Duration = time.Since(start)
		f.saveScreenshot(tabCtx)
		return result, fetcher.Wrap(targetURL, fmt.Errorf("reading page: %w", err))
	}
	result.Duration = time.Since(start)

	if err := checkChallenge(f.config, targetURL, result.Title, result.HTML); err != nil {
		logger.Warn("challenge page detected", "url", targetURL, "error", err)
		return result, err
	}

	logger.Debug("chromedp fetch complete",
		"url", targetURL,
		"status", result.StatusCode,
		"title", result.Title,
		"html_size", len(result.HTML),
		"duration", result.Duration)

	return result, nil
}

// saveScreenshot writes a screenshot of the failed tab to the temp dir when
// debug logging is on.
func (f *ChromedpFetcher) saveScreenshot(tabCtx context.Context) {
	if !logger.Enabled(tabCtx, slog.LevelDebug) || tabCtx.Err() != nil {
		return
	}

	captureCtx, cancel := context.WithTimeout(tabCtx, 5*time.Second)
	defer cancel()

	var shot []byte
	if err := chromedp.Run(captureCtx, chromedp.CaptureScreenshot(&shot)); err != nil {
		return
	}

	path := filepath.Join(os.TempDir(), fmt.Sprintf("accesscheck-debug-%d.png", time.Now().UnixNano()))
	if err := os.WriteFile(path, shot, 0o600); err == nil {
		logger.Debug("debug screenshot saved", "path", path)
	}
}

// Close shuts down the browser.
func (f *ChromedpFetcher) Close() error {
	f.cancelBrowser()
	f.cancelAlloc()
	return nil
}

// Type returns the fetcher type.
func (f *ChromedpFetcher) Type() string {
	return RendererChromedp
}

var _ fetcher.Fetcher = (*ChromedpFetcher)(nil)
