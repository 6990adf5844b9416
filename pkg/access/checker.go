package access

import (
	"context"
	"time"

	"github.com/jmylchreest/accesscheck/internal/logger"
	"github.com/jmylchreest/accesscheck/pkg/fetcher"
	"github.com/jmylchreest/accesscheck/pkg/rules"
)

// Result is the access outcome for one URL.
type Result struct {
	URL        string
	Label      string
	Rule       string
	ProbeURL   string
	Title      string
	StatusCode int
	Duration   time.Duration
}

// Checker fetches a URL, evaluates it, and follows a probe when the platform
// needs one.
type Checker struct {
	page fetcher.Fetcher
	raw  fetcher.Fetcher
	eval *Evaluator
	opts fetcher.Options
}

// Option configures a Checker.
type Option func(*Checker)

// WithRawFetcher sets the fetcher used for probe URLs.
// The default is a static (non-rendering) fetcher.
func WithRawFetcher(f fetcher.Fetcher) Option {
	return func(c *Checker) { c.raw = f }
}

// WithEvaluator sets the evaluator. The default uses the built-in rules.
func WithEvaluator(e *Evaluator) Option {
	return func(c *Checker) { c.eval = e }
}

// WithFetchOptions sets the options passed to every fetch.
func WithFetchOptions(o fetcher.Options) Option {
	return func(c *Checker) { c.opts = o }
}

// NewChecker creates a checker that renders landing pages with page.
func NewChecker(page fetcher.Fetcher, opts ...Option) *Checker {
	c := &Checker{page: page}
	for _, opt := range opts {
		opt(c)
	}
	if c.eval == nil {
		c.eval = NewEvaluator(nil)
	}
	if c.raw == nil {
		c.raw = fetcher.NewStatic(fetcher.StaticConfig{
			UserAgent: c.opts.UserAgent,
			Timeout:   c.opts.Timeout,
		})
	}
	return c
}

// Check determines the access label for url on platform p.
//
// Fetch failures are returned as *fetcher.FetchError and a landing page
// without the probe capture as *ParseError; in both cases the returned
// Result still carries the URL and timing.
func (c *Checker) Check(ctx context.Context, url string, p rules.Platform) (Result, error) {
	if _, err := c.eval.Registry().RulesFor(p); err != nil {
		return Result{URL: url}, err
	}

	start := time.Now()
	res := Result{URL: url}

	content, err := c.page.Fetch(ctx, url, c.opts)
	if err != nil {
		res.Duration = time.Since(start)
		return res, fetcher.Wrap(url, err)
	}
	res.Title = content.Title
	res.StatusCode = content.StatusCode

	v, err := c.eval.Evaluate(content.HTML, p)
	if err != nil {
		res.Duration = time.Since(start)
		return res, err
	}

	if v.NeedsProbe() {
		res.ProbeURL = v.ProbeURL
		logger.DebugContext(ctx, "probing content page", "url", url, "probe_url", v.ProbeURL)

		probed, err := c.raw.Fetch(ctx, v.ProbeURL, c.opts)
		if err != nil {
			res.Duration = time.Since(start)
			return res, fetcher.Wrap(v.ProbeURL, err)
		}
		if v, err = c.eval.EvaluateProbe(probed.HTML, p); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
	}

	res.Label = v.Label
	res.Rule = v.Rule
	res.Duration = time.Since(start)
	return res, nil
}

// Close releases the fetchers.
func (c *Checker) Close() error {
	err := c.page.Close()
	if rawErr := c.raw.Close(); err == nil {
		err = rawErr
	}
	return err
}
