// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// ToolStatus describes the outcome of a single analysis tool invocation.
type ToolStatus string

const (
	// StatusPassed means the tool ran and reported no issues.
	StatusPassed ToolStatus = "passed"
	// StatusIssues means the tool ran and reported one or more issues.
	StatusIssues ToolStatus = "issues"
	// StatusFailed means the tool exited non-zero without reporting countable issues.
	StatusFailed ToolStatus = "failed"
	// StatusSkipped means an optional tool was not installed and was skipped.
	StatusSkipped ToolStatus = "skipped"
)

// ToolResult holds the captured outcome of one tool invocation within a run.
type ToolResult struct {
	Tool       string        `json:"tool"`
	Label      string        `json:"label"`
	Status     ToolStatus    `json:"status"`
	Issues     int           `json:"issues"`
	ExitCode   int           `json:"exit_code"`
	Duration   time.Duration `json:"duration_ns"`
	OutputPath string        `json:"output_path,omitempty"`
	JSONPath   string        `json:"json_path,omitempty"`
}

// ToolTrend holds aggregate issue statistics for one tool across past runs.
type ToolTrend struct {
	Tool         string  `json:"tool"`
	Runs         int     `json:"runs"`
	MeanIssues   float64 `json:"mean_issues"`
	MedianIssues float64 `json:"median_issues"`
	P90Issues    float64 `json:"p90_issues"`
	LastIssues   int     `json:"last_issues"`
}

// RunReport is the aggregate result of a full quality-report run.
// It is the core domain entity of this application.
type RunReport struct {
	ID          string        `json:"id"`
	Timestamp   string        `json:"timestamp"`
	Target      string        `json:"target"`
	OutputDir   string        `json:"output_dir"`
	SummaryPath string        `json:"summary_path"`
	Results     []*ToolResult `json:"results"`
}
