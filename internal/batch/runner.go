// Package batch drives a table of links through a checker one record at a
// time and streams the labelled rows to an output writer.
package batch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jmylchreest/accesscheck/internal/logger"
	"github.com/jmylchreest/accesscheck/internal/output"
	"github.com/jmylchreest/accesscheck/internal/table"
	"github.com/jmylchreest/accesscheck/pkg/access"
	"github.com/jmylchreest/accesscheck/pkg/fetcher"
	"github.com/jmylchreest/accesscheck/pkg/rules"
)

// Column is the name of the column appended to the header.
const Column = "access"

// DefaultDelay is the pause between records.
const DefaultDelay = time.Second

// Labels written in place of an access label when a record fails.
const (
	LabelFetchError = "fetch error"
	LabelParseError = "parse error"
	LabelBlocked    = "blocked"
)

// Checker resolves the access label for one URL.
type Checker interface {
	Check(ctx context.Context, url string, p rules.Platform) (access.Result, error)
}

// Progress describes one finished record.
type Progress struct {
	Index    int // 1-based position in the input
	Total    int
	URL      string
	Label    string
	Err      error
	Duration time.Duration
}

// Config holds runner settings.
type Config struct {
	Platform rules.Platform
	// Delay is the pause between records. Zero disables it.
	Delay time.Duration
	// Skip is the number of leading records already present in the output.
	Skip int
	// OnProgress, if set, is called after each record is written.
	OnProgress func(Progress)
}

// Summary reports the outcome of a run.
type Summary struct {
	Total       int
	Checked     int
	Skipped     int
	Failed      int
	Labels      map[string]int
	Elapsed     time.Duration
	Interrupted bool
}

// Runner processes records sequentially.
type Runner struct {
	checker Checker
	cfg     Config
}

// New creates a runner.
func New(c Checker, cfg Config) *Runner {
	if cfg.Skip < 0 {
		cfg.Skip = 0
	}
	return &Runner{checker: c, cfg: cfg}
}

// Run checks every record of t in order and writes one row per record to w.
//
// A record whose check fails is still written, with a failure label, and the
// run continues. Cancelling ctx stops the run before the next record starts;
// the record in flight finishes under the fetcher's own timeout so the output
// never ends in a partial row. An interrupted run is not an error.
func (r *Runner) Run(ctx context.Context, t *table.Table, w output.Writer) (Summary, error) {
	start := time.Now()
	sum := Summary{Total: t.Len(), Labels: make(map[string]int)}

	if err := w.WriteHeader(append(slices.Clone(t.Header), Column)); err != nil {
		return sum, fmt.Errorf("writing header: %w", err)
	}

	skip := min(r.cfg.Skip, t.Len())
	sum.Skipped = skip
	if skip > 0 {
		logger.Info("resuming", "skipped", skip, "total", t.Len())
	}

	for i := skip; i < t.Len(); i++ {
		if ctx.Err() != nil {
			sum.Interrupted = true
			break
		}

		rec := t.Records[i]
		url := rec.URL()

		res, err := r.checker.Check(context.WithoutCancel(ctx), url, r.cfg.Platform)
		if errors.Is(err, rules.ErrUnknownPlatform) {
			sum.Elapsed = time.Since(start)
			return sum, err
		}

		label := res.Label
		if err != nil {
			label = failureLabel(err)
			sum.Failed++
			logger.WarnContext(ctx, "check failed",
				"row", i+1,
				"line", rec.Line,
				"url", url,
				"label", label,
				"error", err)
		} else {
			logger.Debug("checked",
				"row", i+1,
				"url", url,
				"label", label,
				"rule", res.Rule,
				"status", res.StatusCode,
				"duration", res.Duration)
		}

		row := append(slices.Clone(rec.Rest()), url, label)
		if err := w.Write(row); err != nil {
			sum.Elapsed = time.Since(start)
			return sum, fmt.Errorf("writing row %d: %w", i+1, err)
		}
		sum.Checked++
		sum.Labels[label]++

		if r.cfg.OnProgress != nil {
			r.cfg.OnProgress(Progress{
				Index:    i + 1,
				Total:    t.Len(),
				URL:      url,
				Label:    label,
				Err:      err,
				Duration: res.Duration,
			})
		}

		if i < t.Len()-1 && !sleep(ctx, r.cfg.Delay) {
			sum.Interrupted = true
			break
		}
	}

	sum.Elapsed = time.Since(start)
	return sum, nil
}

// failureLabel maps a check error to the label written for the record.
func failureLabel(err error) string {
	var pe *access.ParseError
	switch {
	case fetcher.Blocked(err):
		return LabelBlocked
	case errors.As(err, &pe):
		return LabelParseError
	default:
		return LabelFetchError
	}
}

// sleep waits for d and reports false if ctx was cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
