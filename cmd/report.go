package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"qgate/internal/config"
	"qgate/internal/domain"
	"qgate/internal/storage"
	"qgate/internal/toolrunner"
	"qgate/internal/usecase"
	"qgate/internal/watch"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	passedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	issuesStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Runs the quality tools and writes timestamped report files",
	Long: `Runs every configured analysis tool against the target directory and
writes each tool's output to reports/<tool>_<timestamp>.txt (plus a .json
artifact for tools with a JSON mode), followed by a SUMMARY_<timestamp>.txt.
Required tools must be installed; the run aborts before writing anything when
one is missing. Optional tools are skipped when absent and their failures do
not abort the run.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := commandLogger(cmd)

		configPath, _ := cmd.Flags().GetString("config")
		outputDir, _ := cmd.Flags().GetString("output-dir")
		target, _ := cmd.Flags().GetString("target")
		skip, _ := cmd.Flags().GetStringSlice("skip")
		jobs, _ := cmd.Flags().GetInt("jobs")
		watchMode, _ := cmd.Flags().GetBool("watch")
		noHistory, _ := cmd.Flags().GetBool("no-history")

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		if outputDir != "" {
			cfg.OutputDir = outputDir
		}
		if target != "" {
			cfg.Target = target
		}

		runner := toolrunner.NewExecRunner(logger)

		// History recording is best-effort: a failure to open the database
		// must not block report generation.
		var history usecase.RunRecorder
		var store *storage.Store
		if !noHistory {
			store, err = storage.NewStore(cfg.HistoryPath(), logger)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: run history disabled: %v\n", err)
			} else {
				history = store
				defer store.Close()
			}
		}

		reporter := usecase.NewReporter(runner, history, logger)
		opts := usecase.ReportOptions{Skip: skip, Jobs: jobs}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runOnce := func() bool {
			report, err := reporter.Generate(ctx, cfg, opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to generate report: %v\n", err)
				return false
			}
			fmt.Println(renderReport(report))
			return true
		}

		// A failing first run is an operational error (missing required
		// tool, unwritable report dir) that watching would only repeat.
		if !runOnce() {
			os.Exit(1)
		}

		if watchMode {
			dirs := cfg.WatchDirs
			if len(dirs) == 0 {
				dirs = []string{cfg.Target}
			}
			watcher, err := watch.New(dirs, []string{cfg.OutputDir}, 0, logger)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to start watch mode: %v\n", err)
				os.Exit(1)
			}
			defer watcher.Close()

			fmt.Printf("Watching %s for changes (Ctrl+C to stop)...\n", strings.Join(dirs, ", "))
			if err := watcher.Run(ctx, func() { runOnce() }); err != nil && ctx.Err() == nil {
				fmt.Fprintf(os.Stderr, "Watch mode stopped: %v\n", err)
				os.Exit(1)
			}
		}
	},
}

// renderReport formats the run outcome for the terminal with one colored
// line per tool.
func renderReport(report *domain.RunReport) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Quality report %s", report.Timestamp)))
	b.WriteString("\n")
	for _, res := range report.Results {
		var line string
		switch res.Status {
		case domain.StatusPassed:
			line = passedStyle.Render(fmt.Sprintf("  ✓ %s: %d", res.Label, res.Issues))
		case domain.StatusIssues:
			line = issuesStyle.Render(fmt.Sprintf("  ! %s: %d", res.Label, res.Issues))
		case domain.StatusFailed:
			line = failedStyle.Render(fmt.Sprintf("  ✗ %s: tool exited with code %d", res.Label, res.ExitCode))
		case domain.StatusSkipped:
			line = skippedStyle.Render(fmt.Sprintf("  - %s: skipped (not installed)", res.Label))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("Summary written to %s", report.SummaryPath))
	return b.String()
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringP("config", "c", "", "Path to qgate.yaml (default: ./qgate.yaml if present)")
	reportCmd.Flags().StringP("output-dir", "o", "", "Directory for report files (default from config)")
	reportCmd.Flags().StringP("target", "t", "", "Directory to analyze (default from config)")
	reportCmd.Flags().StringSlice("skip", nil, "Tool names to skip (repeatable)")
	reportCmd.Flags().IntP("jobs", "j", 1, "Number of tools to run concurrently")
	reportCmd.Flags().BoolP("watch", "w", false, "Re-run the report when the target changes")
	reportCmd.Flags().Bool("no-history", false, "Do not record this run in the history database")
}
