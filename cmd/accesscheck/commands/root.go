// Package commands implements the CLI commands for accesscheck.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/accesscheck/internal/logger"
	"github.com/jmylchreest/accesscheck/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "accesscheck",
	Short: "Check library e-resource links for access",
	Long: `Accesscheck loads each link of a resource list in a headless browser,
recognises the vendor's access page by its markup, and writes the list back
out with an "access" column appended.

The input is a CSV file whose last column is the URL. Rows are processed one
at a time, and every row is written as soon as it is checked, so an
interrupted run can be continued with --resume.

Examples:
  # Check SpringerLink ebook links
  accesscheck check springer.csv springer-checked.csv -p spr

  # Duke University Press links, with stealth for the HighWire pages
  accesscheck check duke.csv duke-out.csv -p duphw --stealth

  # Continue an interrupted run
  accesscheck check wiley.csv wiley-out.csv -p wol --resume

  # List platform ids
  accesscheck platforms`,
	Version: version.String(),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logger.Options{
			Debug: viper.GetBool("debug"),
			Quiet: viper.GetBool("quiet"),
			JSON:  viper.GetBool("log_json"),
		})
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.SetVersionTemplate(version.Full() + "\n")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.accesscheck.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().Bool("log-json", false, "write logs as JSON")
	rootCmd.PersistentFlags().String("rules", "", "YAML rule file replacing the built-in rules")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("log-json"))
	_ = viper.BindPFlag("rules", rootCmd.PersistentFlags().Lookup("rules"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".accesscheck")
		viper.SetConfigType("yaml")
	}

	// Environment variables, e.g. ACCESSCHECK_DELAY=2s
	viper.SetEnvPrefix("ACCESSCHECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
