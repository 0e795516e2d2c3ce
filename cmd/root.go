// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "qgate",
	Short: "A CLI quality gate for repositories.",
	Long: `qgate runs a repository's quality gate: it invokes the configured
static-analysis tools (ruff, flake8, bandit, black, pytest, mypy by default),
writes timestamped report files, keeps a run history for trend analysis,
bootstraps pre-commit hooks, and updates PR review checklists from the
GitHub API.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
}

// commandLogger builds the logger for a command invocation: logs are
// discarded unless --verbose was given, in which case they go to stderr.
func commandLogger(cmd *cobra.Command) *log.Logger {
	verbose, _ := cmd.InheritedFlags().GetBool("verbose")
	logger := log.New(io.Discard, "", log.LstdFlags)
	if verbose {
		logger.SetOutput(os.Stderr)
	}
	return logger
}
