package commands

import (
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/accesscheck/pkg/rules"
)

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List the platforms rules exist for",
	Long: `List platform ids and names. Use an id with check --platform.

With --rules, the platforms of that rule file are listed instead of the
built-in ones.`,
	Args: noArgs,
	RunE: runPlatforms,
}

func init() {
	rootCmd.AddCommand(platformsCmd)

	platformsCmd.Flags().Bool("labels", false, "also list every label a platform can produce")
}

func runPlatforms(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	reg, err := loadRegistry(viper.GetString("rules"))
	if err != nil {
		return err
	}

	withLabels, _ := cmd.Flags().GetBool("labels")
	writePlatforms(os.Stdout, reg, withLabels)
	return nil
}

// writePlatforms renders the registry as a table.
func writePlatforms(w io.Writer, reg *rules.Registry, withLabels bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)

	if withLabels {
		t.AppendHeader(table.Row{"ID", "Name", "Labels"})
	} else {
		t.AppendHeader(table.Row{"ID", "Name"})
	}
	for _, rs := range reg.Platforms() {
		if withLabels {
			t.AppendRow(table.Row{rs.Platform, rs.Name, strings.Join(rs.Labels(), "\n")})
		} else {
			t.AppendRow(table.Row{rs.Platform, rs.Name})
		}
	}
	t.Render()
}

// loadRegistry returns the built-in rules, or the rules in path when set.
func loadRegistry(path string) (*rules.Registry, error) {
	if path == "" {
		return rules.Default(), nil
	}
	return rules.LoadFile(path)
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return &UsageError{Err: err}
	}
	return nil
}
