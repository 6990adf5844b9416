package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/accesscheck/internal/logger"
	"github.com/jmylchreest/accesscheck/internal/output"
	"github.com/jmylchreest/accesscheck/internal/table"
	"github.com/jmylchreest/accesscheck/pkg/access"
	"github.com/jmylchreest/accesscheck/pkg/fetcher"
	"github.com/jmylchreest/accesscheck/pkg/rules"
)

// stubChecker returns canned outcomes per URL and records what it was asked.
type stubChecker struct {
	labels map[string]string
	errs   map[string]error
	calls  []string
	// onCheck runs before each check returns, with the number of calls so far.
	onCheck func(ctx context.Context, n int)
}

func (s *stubChecker) Check(ctx context.Context, url string, _ rules.Platform) (access.Result, error) {
	s.calls = append(s.calls, url)
	if s.onCheck != nil {
		s.onCheck(ctx, len(s.calls))
	}
	if err, ok := s.errs[url]; ok {
		return access.Result{URL: url}, err
	}
	label, ok := s.labels[url]
	if !ok {
		label = "check"
	}
	return access.Result{URL: url, Label: label}, nil
}

func parse(t *testing.T, csv string) *table.Table {
	t.Helper()
	tbl, err := table.Parse(strings.NewReader(csv), "in.csv")
	require.NoError(t, err)
	return tbl
}

func lines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}

const input = `title,publisher,url
Queer Times,Duke,https://a.example.org
"Nature, Culture",Wiley,https://b.example.org
Short,https://c.example.org
`

func TestRun_OneRowPerRecord(t *testing.T) {
	checker := &stubChecker{labels: map[string]string{
		"https://a.example.org": "no access",
		"https://b.example.org": "full",
	}}
	buf := &bytes.Buffer{}

	var progress []Progress
	r := New(checker, Config{
		Platform:   rules.WileyOnlineLibrary,
		OnProgress: func(p Progress) { progress = append(progress, p) },
	})
	sum, err := r.Run(context.Background(), parse(t, input), output.NewCSVWriter(buf, false))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"title,publisher,url,access",
		"Queer Times,Duke,https://a.example.org,no access",
		`"Nature, Culture",Wiley,https://b.example.org,full`,
		"Short,https://c.example.org,check",
	}, lines(buf))

	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 3, sum.Checked)
	assert.False(t, sum.Interrupted)
	assert.Equal(t, map[string]int{"no access": 1, "full": 1, "check": 1}, sum.Labels)

	require.Len(t, progress, 3)
	assert.Equal(t, Progress{Index: 2, Total: 3, URL: "https://b.example.org", Label: "full"}, progress[1])
}

func TestRun_HeaderOnly(t *testing.T) {
	buf := &bytes.Buffer{}
	checker := &stubChecker{}

	sum, err := New(checker, Config{}).Run(context.Background(), parse(t, "title,url\n"), output.NewCSVWriter(buf, false))
	require.NoError(t, err)

	assert.Equal(t, "title,url,access\n", buf.String())
	assert.Empty(t, checker.calls)
	assert.Equal(t, 0, sum.Checked)
}

func TestRun_FailuresAreLabelled(t *testing.T) {
	checker := &stubChecker{errs: map[string]error{
		"https://a.example.org": &fetcher.FetchError{URL: "https://a.example.org", Err: fmt.Errorf("%w: %w", fetcher.ErrTimeout, context.DeadlineExceeded)},
		"https://b.example.org": &access.ParseError{Platform: rules.DukeHighWire, Err: access.ErrCaptureMissing},
		"https://c.example.org": &fetcher.FetchError{URL: "https://c.example.org", Err: fetcher.ErrAntiBot},
	}}
	buf := &bytes.Buffer{}

	logs := &bytes.Buffer{}
	logger.Init(logger.Options{Output: logs})
	t.Cleanup(func() { logger.Init(logger.Options{}) })

	var errs []error
	sum, err := New(checker, Config{
		OnProgress: func(p Progress) { errs = append(errs, p.Err) },
	}).Run(context.Background(), parse(t, input), output.NewCSVWriter(buf, false))
	require.NoError(t, err)

	out := lines(buf)
	require.Len(t, out, 4)
	assert.True(t, strings.HasSuffix(out[1], ",fetch error"))
	assert.True(t, strings.HasSuffix(out[2], ",parse error"))
	assert.True(t, strings.HasSuffix(out[3], ",blocked"))

	assert.Equal(t, 3, sum.Failed)
	assert.Len(t, checker.calls, 3, "batch continues after failures")
	for _, e := range errs {
		assert.Error(t, e)
	}
	assert.Equal(t, 3, strings.Count(logs.String(), "level=WARN msg=\"check failed\""))
	assert.Contains(t, logs.String(), `label="fetch error"`)
}

func TestRun_UnknownPlatformIsFatal(t *testing.T) {
	checker := &stubChecker{errs: map[string]error{
		"https://a.example.org": &rules.UnknownPlatformError{Platform: "xyz"},
	}}
	buf := &bytes.Buffer{}

	_, err := New(checker, Config{Platform: "xyz"}).Run(context.Background(), parse(t, input), output.NewCSVWriter(buf, false))
	require.Error(t, err)
	assert.True(t, errors.Is(err, rules.ErrUnknownPlatform))
	assert.Len(t, lines(buf), 1, "only the header is written")
}

func TestRun_CancelDuringRecord(t *testing.T) {
	for k := 1; k <= 3; k++ {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var inFlightErr error
			checker := &stubChecker{onCheck: func(checkCtx context.Context, n int) {
				if n == k {
					cancel()
					inFlightErr = checkCtx.Err()
				}
			}}
			buf := &bytes.Buffer{}

			sum, err := New(checker, Config{}).Run(ctx, parse(t, input), output.NewCSVWriter(buf, false))
			require.NoError(t, err)

			assert.NoError(t, inFlightErr, "in-flight check is detached from cancellation")
			assert.Len(t, lines(buf), 1+k)
			assert.Equal(t, k, sum.Checked)
			assert.Equal(t, k < 3, sum.Interrupted)
		})
	}
}

func TestRun_DelayIsInterruptible(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	buf := &bytes.Buffer{}
	r := New(&stubChecker{}, Config{
		Delay:      time.Hour,
		OnProgress: func(Progress) { cancel() },
	})

	done := make(chan Summary, 1)
	go func() {
		sum, _ := r.Run(ctx, parse(t, input), output.NewCSVWriter(buf, false))
		done <- sum
	}()

	select {
	case sum := <-done:
		assert.True(t, sum.Interrupted)
		assert.Equal(t, 1, sum.Checked)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop during delay")
	}
}

func TestRun_Resume(t *testing.T) {
	checker := &stubChecker{}
	buf := &bytes.Buffer{}

	sum, err := New(checker, Config{Skip: 2}).Run(context.Background(), parse(t, input), output.NewCSVWriter(buf, true))
	require.NoError(t, err)

	assert.Equal(t, []string{"https://c.example.org"}, checker.calls)
	assert.Equal(t, "Short,https://c.example.org,check\n", buf.String())
	assert.Equal(t, 2, sum.Skipped)
	assert.Equal(t, 1, sum.Checked)
}

func TestRun_ResumePastEnd(t *testing.T) {
	checker := &stubChecker{}
	sum, err := New(checker, Config{Skip: 10}).Run(context.Background(), parse(t, input), output.NewCSVWriter(&bytes.Buffer{}, true))
	require.NoError(t, err)

	assert.Empty(t, checker.calls)
	assert.Equal(t, 3, sum.Skipped)
}

func TestFailureLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", &fetcher.FetchError{URL: "u", Err: fetcher.ErrTimeout}, LabelFetchError},
		{"captcha", &fetcher.FetchError{URL: "u", Err: fetcher.ErrCaptchaChallenge}, LabelBlocked},
		{"parse", fmt.Errorf("probe: %w", &access.ParseError{Err: access.ErrCaptureMissing}), LabelParseError},
		{"other", errors.New("browser crashed"), LabelFetchError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failureLabel(tt.err))
		})
	}
}
