// Package usecase contains the business logic of the application.
package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"qgate/internal/config"
	"qgate/internal/domain"
	"qgate/internal/toolrunner"
)

// RunRecorder persists finished runs so trends can be computed later.
type RunRecorder interface {
	RecordRun(report *domain.RunReport) error
}

// ReportOptions control a single report run.
type ReportOptions struct {
	// Skip lists tool names excluded from this run.
	Skip []string
	// Jobs bounds concurrent tool execution. Zero or one runs the tools
	// strictly in configuration order.
	Jobs int
}

// Reporter generates quality reports by running every configured tool and
// writing its output under the report directory.
type Reporter struct {
	runner  toolrunner.Runner
	history RunRecorder
	logger  *log.Logger
	now     func() time.Time
}

// NewReporter creates a new Reporter instance. history may be nil when run
// recording is disabled.
func NewReporter(runner toolrunner.Runner, history RunRecorder, logger *log.Logger) *Reporter {
	return &Reporter{
		runner:  runner,
		history: history,
		logger:  logger,
		now:     time.Now,
	}
}

// reportTimestampLayout names the report files of one run; all files of a run
// share a single timestamp.
const reportTimestampLayout = "20060102_150405"

// Generate runs the configured tools and writes the per-tool report files and
// the summary file. Required tools are verified up front: if any is missing,
// Generate fails before creating the output directory or writing anything.
func (r *Reporter) Generate(ctx context.Context, cfg *config.Config, opts ReportOptions) (*domain.RunReport, error) {
	r.logger.Println("Usecase: Starting quality report run...")

	skip := make(map[string]bool, len(opts.Skip))
	for _, name := range opts.Skip {
		skip[name] = true
	}

	var tools []config.Tool
	for _, t := range cfg.Tools {
		if skip[t.Name] {
			r.logger.Printf("Skipping tool %s (--skip)", t.Name)
			continue
		}
		tools = append(tools, t)
	}
	if len(tools) == 0 {
		return nil, fmt.Errorf("no tools to run")
	}

	// Availability pass before any filesystem write.
	available := make(map[string]bool, len(tools))
	var missing []string
	for _, t := range tools {
		available[t.Name] = r.runner.Available(t.Command)
		if t.Required && !available[t.Name] {
			missing = append(missing, t.Command)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required tools missing from PATH: %s", strings.Join(missing, ", "))
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	timestamp := r.now().Format(reportTimestampLayout)
	report := &domain.RunReport{
		ID:        uuid.New().String(),
		Timestamp: timestamp,
		Target:    cfg.Target,
		OutputDir: cfg.OutputDir,
		Results:   make([]*domain.ToolResult, len(tools)),
	}

	jobs := opts.Jobs
	if jobs < 1 {
		jobs = 1
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(jobs)
	for i, tool := range tools {
		eg.Go(func() error {
			result, err := r.runTool(egCtx, cfg, tool, timestamp)
			if err != nil {
				return err
			}
			report.Results[i] = result
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	r.logger.Println("Usecase: All tools finished.")

	summaryPath, err := r.writeSummary(cfg, report)
	if err != nil {
		return nil, err
	}
	report.SummaryPath = summaryPath

	if r.history != nil {
		if err := r.history.RecordRun(report); err != nil {
			// History is best-effort; the reports on disk are the deliverable.
			r.logger.Printf("Warning: failed to record run history: %v", err)
		}
	}

	r.logger.Println("Usecase: Report run complete.")
	return report, nil
}

// runTool executes one tool, writes its report file(s), and derives the
// result status. Optional tools that are not installed yield a skipped result.
func (r *Reporter) runTool(ctx context.Context, cfg *config.Config, tool config.Tool, timestamp string) (*domain.ToolResult, error) {
	result := &domain.ToolResult{
		Tool:  tool.Name,
		Label: tool.SummaryLabel,
	}

	if !r.runner.Available(tool.Command) {
		// Required tools were verified before any write, so this is optional.
		r.logger.Printf("Tool %s not installed, skipping", tool.Name)
		result.Status = domain.StatusSkipped
		return result, nil
	}

	run, err := r.runner.Run(ctx, toolrunner.Spec{
		Name:    tool.Name,
		Command: tool.Command,
		Args:    config.ExpandArgs(tool.Args, cfg.Target),
	})
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", tool.Name, err)
	}

	outputPath := filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_%s.txt", tool.Name, timestamp))
	if err := os.WriteFile(outputPath, run.Output, 0644); err != nil {
		return nil, fmt.Errorf("failed to write report for %s: %w", tool.Name, err)
	}
	result.OutputPath = outputPath
	result.ExitCode = run.ExitCode
	result.Duration = run.Duration
	result.Issues = countIssues(run.Output, tool.IssueRegexp())

	if len(tool.JSONArgs) > 0 {
		jsonRun, err := r.runner.Run(ctx, toolrunner.Spec{
			Name:    tool.Name + " (json)",
			Command: tool.Command,
			Args:    config.ExpandArgs(tool.JSONArgs, cfg.Target),
		})
		if err != nil {
			return nil, fmt.Errorf("tool %s json report: %w", tool.Name, err)
		}
		jsonPath := filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_%s.json", tool.Name, timestamp))
		if err := os.WriteFile(jsonPath, jsonRun.Output, 0644); err != nil {
			return nil, fmt.Errorf("failed to write json report for %s: %w", tool.Name, err)
		}
		result.JSONPath = jsonPath
	}

	switch {
	case result.Issues > 0:
		result.Status = domain.StatusIssues
	case run.ExitCode != 0:
		result.Status = domain.StatusFailed
	default:
		result.Status = domain.StatusPassed
	}
	return result, nil
}

// writeSummary writes the human-readable SUMMARY file for the run. Every tool
// gets a line even when its count is zero.
func (r *Reporter) writeSummary(cfg *config.Config, report *domain.RunReport) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Quality Report Summary\n")
	fmt.Fprintf(&b, "Generated: %s\n", report.Timestamp)
	fmt.Fprintf(&b, "Target: %s\n", report.Target)
	fmt.Fprintf(&b, "Run ID: %s\n", report.ID)
	fmt.Fprintf(&b, "\n")
	for _, res := range report.Results {
		switch res.Status {
		case domain.StatusSkipped:
			fmt.Fprintf(&b, "%s: skipped (not installed)\n", res.Label)
		case domain.StatusFailed:
			fmt.Fprintf(&b, "%s: %d (tool exited with code %d)\n", res.Label, res.Issues, res.ExitCode)
		default:
			fmt.Fprintf(&b, "%s: %d\n", res.Label, res.Issues)
		}
	}

	summaryPath := filepath.Join(cfg.OutputDir, fmt.Sprintf("SUMMARY_%s.txt", report.Timestamp))
	if err := os.WriteFile(summaryPath, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write summary file: %w", err)
	}
	return summaryPath, nil
}

// countIssues counts the output lines matching the tool's issue pattern.
// Lines are split manually so arbitrarily long tool output lines cannot
// overflow a scanner buffer and skew the count.
func countIssues(output []byte, re *regexp.Regexp) int {
	if re == nil {
		return 0
	}
	count := 0
	for _, line := range bytes.Split(output, []byte("\n")) {
		if re.Match(bytes.TrimSuffix(line, []byte("\r"))) {
			count++
		}
	}
	return count
}
