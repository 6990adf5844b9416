package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	clifetcher "github.com/jmylchreest/accesscheck/cmd/accesscheck/fetcher"
	"github.com/jmylchreest/accesscheck/internal/batch"
	"github.com/jmylchreest/accesscheck/internal/logger"
	"github.com/jmylchreest/accesscheck/internal/output"
	inputtable "github.com/jmylchreest/accesscheck/internal/table"
	"github.com/jmylchreest/accesscheck/pkg/access"
	"github.com/jmylchreest/accesscheck/pkg/fetcher"
	"github.com/jmylchreest/accesscheck/pkg/rules"
)

var checkCmd = &cobra.Command{
	Use:   "check INPUT OUTPUT",
	Short: "Check every link of a CSV file and append an access column",
	Long: `Check reads INPUT, a CSV file with a header row whose last column holds
the URL, loads every URL in a headless browser and labels it with the
platform's rules. OUTPUT receives the input rows with an "access" column
appended. OUTPUT is opened for appending and each row is written as soon as
it is checked.

Failed rows are kept: they are labelled "fetch error", "parse error" or
"blocked" and the run continues.

Examples:
  accesscheck check links.csv checked.csv --platform wol
  accesscheck check links.csv checked.jsonl -p ss --format jsonl
  accesscheck check links.csv checked.csv -p spr --renderer rod --stealth`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(2)(cmd, args); err != nil {
			return &UsageError{Err: err}
		}
		return nil
	},
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	flags := checkCmd.Flags()

	flags.StringP("platform", "p", "", "platform id (see 'accesscheck platforms'); prompted for when omitted on a terminal")

	// Fetch settings
	flags.String("renderer", clifetcher.RendererChromedp, "page renderer: "+strings.Join(clifetcher.Renderers, ", "))
	flags.Duration("timeout", 30*time.Second, "per-page load timeout")
	flags.Duration("delay", batch.DefaultDelay, "pause between records")
	flags.Duration("wait", 0, "extra wait after the page is ready, for late scripts")
	flags.Bool("stealth", false, "inject anti-bot evasion scripts")
	flags.Bool("googlebot", false, "spoof Googlebot user-agent")
	flags.String("user-agent", "", "user-agent override")
	flags.String("chrome-path", "", "browser binary (default: search PATH)")
	flags.Bool("detect-challenges", false, `label CAPTCHA and anti-bot interstitials "blocked"`)

	// Output settings
	flags.String("format", string(output.FormatCSV), "output format: csv, jsonl")
	flags.Bool("resume", false, "skip input rows already present in OUTPUT")

	for key, name := range map[string]string{
		"platform":          "platform",
		"renderer":          "renderer",
		"timeout":           "timeout",
		"delay":             "delay",
		"wait":              "wait",
		"stealth":           "stealth",
		"googlebot":         "googlebot",
		"user_agent":        "user-agent",
		"chrome_path":       "chrome-path",
		"detect_challenges": "detect-challenges",
		"format":            "format",
		"resume":            "resume",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(name))
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	inPath, outPath := args[0], args[1]

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	format, err := output.ParseFormat(viper.GetString("format"))
	if err != nil {
		return &UsageError{Err: err}
	}
	renderer := viper.GetString("renderer")
	if !slices.Contains(clifetcher.Renderers, renderer) {
		return &UsageError{Err: fmt.Errorf("unknown renderer %q (known: %s)", renderer, strings.Join(clifetcher.Renderers, ", "))}
	}
	cmd.SilenceUsage = true

	reg, err := loadRegistry(viper.GetString("rules"))
	if err != nil {
		logError("loading rules: %v", err)
		return err
	}

	rs, err := selectPlatform(reg)
	if err != nil {
		logError("%v", err)
		return err
	}
	logger.Debug("platform selected", "platform", rs.Platform, "name", rs.Name)

	tbl, err := inputtable.ReadFile(inPath)
	if err != nil {
		logError("%v", err)
		return err
	}
	logger.Debug("input loaded", "path", inPath, "records", tbl.Len(), "columns", len(tbl.Header))

	state, err := output.Inspect(outPath, format)
	if err != nil {
		logError("%v", err)
		return err
	}
	if err := state.CheckHeader(append(slices.Clone(tbl.Header), batch.Column)); err != nil {
		logError("%s: %v", outPath, err)
		return err
	}
	skip := 0
	if viper.GetBool("resume") {
		skip = state.Rows
	} else if state.Rows > 0 {
		logger.Warn("output already has rows; appending", "path", outPath, "rows", state.Rows)
	}

	writer, err := output.Open(outPath, format, output.WithHeaderWritten(state.Header))
	if err != nil {
		logError("%v", err)
		return err
	}
	defer func() { _ = writer.Close() }()

	userAgent := viper.GetString("user_agent")
	if viper.GetBool("googlebot") {
		userAgent = clifetcher.GooglebotMobileUserAgent
	}
	timeout := viper.GetDuration("timeout")

	page, err := clifetcher.New(renderer, clifetcher.Config{
		UserAgent:        userAgent,
		Timeout:          timeout,
		Stealth:          viper.GetBool("stealth"),
		Googlebot:        viper.GetBool("googlebot"),
		DetectChallenges: viper.GetBool("detect_challenges"),
		ChromePath:       viper.GetString("chrome_path"),
	})
	if err != nil {
		logError("failed to start %s renderer: %v", renderer, err)
		return err
	}

	checker := access.NewChecker(page,
		access.WithEvaluator(access.NewEvaluator(reg)),
		access.WithFetchOptions(fetcher.Options{
			UserAgent:    userAgent,
			Timeout:      timeout,
			WaitDuration: viper.GetDuration("wait"),
		}),
	)
	defer func() { _ = checker.Close() }()

	runner := batch.New(checker, batch.Config{
		Platform: rs.Platform,
		Delay:    viper.GetDuration("delay"),
		Skip:     skip,
		OnProgress: func(p batch.Progress) {
			logInfo("%d of %d, access = %s", p.Index, p.Total, p.Label)
		},
	})

	logger.Info("checking links",
		"platform", rs.Platform,
		"input", inPath,
		"output", outPath,
		"records", tbl.Len(),
		"renderer", page.Type())

	summary, err := runner.Run(ctx, tbl, writer)
	if err != nil {
		logError("%v", err)
		return err
	}

	if !viper.GetBool("quiet") {
		writeSummary(os.Stderr, summary, outPath)
	}
	if summary.Interrupted {
		logInfo("interrupted after %d of %d records; rerun with --resume to continue",
			summary.Skipped+summary.Checked, summary.Total)
	}
	return nil
}

// selectPlatform resolves the platform from configuration, or prompts for it
// when stdin is a terminal.
func selectPlatform(reg *rules.Registry) (*rules.RuleSet, error) {
	if id := viper.GetString("platform"); id != "" {
		return reg.RulesFor(rules.Platform(strings.TrimSpace(id)))
	}

	fd := os.Stdin.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return nil, &UsageError{Err: errors.New("no platform given; use --platform (see 'accesscheck platforms')")}
	}
	return promptPlatform(os.Stdin, os.Stderr, reg)
}

// promptPlatform lists the platforms on out and reads an id from in.
func promptPlatform(in io.Reader, out io.Writer, reg *rules.Registry) (*rules.RuleSet, error) {
	writePlatforms(out, reg, false)
	fmt.Fprint(out, "Platform: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return nil, &UsageError{Err: errors.New("no platform given")}
	}
	return reg.RulesFor(rules.Platform(strings.TrimSpace(line)))
}

// writeSummary renders per-label counts and run totals.
func writeSummary(w io.Writer, s batch.Summary, outPath string) {
	labels := make([]string, 0, len(s.Labels))
	for l := range s.Labels {
		labels = append(labels, l)
	}
	slices.SortFunc(labels, func(a, b string) int {
		if d := s.Labels[b] - s.Labels[a]; d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Access", "Records"})
	for _, l := range labels {
		t.AppendRow(table.Row{l, humanize.Comma(int64(s.Labels[l]))})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"checked", humanize.Comma(int64(s.Checked))})
	if s.Skipped > 0 {
		t.AppendRow(table.Row{"skipped (resume)", humanize.Comma(int64(s.Skipped))})
	}
	if s.Failed > 0 {
		t.AppendRow(table.Row{"failed", humanize.Comma(int64(s.Failed))})
	}

	t.AppendRow(table.Row{"elapsed", s.Elapsed.Round(time.Second).String()})
	if fi, err := os.Stat(outPath); err == nil {
		t.AppendRow(table.Row{"output size", humanize.Bytes(uint64(fi.Size()))}) // #nosec G115 -- file sizes are non-negative
	}
	t.Render()
}
