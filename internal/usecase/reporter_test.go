package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"qgate/internal/config"
	"qgate/internal/domain"
	"qgate/internal/toolrunner"
)

// mockRunner is a mock implementation of the toolrunner.Runner interface.
// It lets us simulate tool availability and output without spawning processes.
type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Available(command string) bool {
	args := m.Called(command)
	return args.Bool(0)
}

func (m *mockRunner) Run(ctx context.Context, spec toolrunner.Spec) (*toolrunner.Result, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*toolrunner.Result), args.Error(1)
}

// mockRecorder is a mock implementation of the RunRecorder interface.
type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordRun(report *domain.RunReport) error {
	args := m.Called(report)
	return args.Error(0)
}

// onRun registers a canned result for the invocation with the given spec name.
func onRun(runner *mockRunner, specName, output string, exitCode int) {
	runner.On("Run", mock.Anything, mock.MatchedBy(func(s toolrunner.Spec) bool {
		return s.Name == specName
	})).Return(&toolrunner.Result{
		Output:   []byte(output),
		ExitCode: exitCode,
		Duration: 10 * time.Millisecond,
	}, nil)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = filepath.Join(t.TempDir(), "reports")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestReporter_Generate_MissingRequiredToolFailsBeforeAnyWrite(t *testing.T) {
	cfg := testConfig(t)
	logger := log.New(io.Discard, "", 0)

	runner := new(mockRunner)
	runner.On("Available", "ruff").Return(false)
	runner.On("Available", "bandit").Return(false)
	for _, command := range []string{"flake8", "black", "pytest", "mypy"} {
		runner.On("Available", command).Return(true)
	}

	reporter := NewReporter(runner, nil, logger)
	report, err := reporter.Generate(context.Background(), cfg, ReportOptions{})

	require.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "ruff")
	assert.Contains(t, err.Error(), "bandit")

	// Nothing may have been written, not even the report directory.
	_, statErr := os.Stat(cfg.OutputDir)
	assert.True(t, os.IsNotExist(statErr))
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestReporter_Generate_HappyPath(t *testing.T) {
	cfg := testConfig(t)
	logger := log.New(io.Discard, "", 0)

	runner := new(mockRunner)
	for _, command := range []string{"ruff", "flake8", "bandit", "black"} {
		runner.On("Available", command).Return(true)
	}
	// The optional tools are not installed.
	runner.On("Available", "pytest").Return(false)
	runner.On("Available", "mypy").Return(false)

	onRun(runner, "ruff", "src/app.py:3:1: E999 SyntaxError\nsrc/app.py:9:80: E501 line too long\n", 1)
	onRun(runner, "flake8", "", 0)
	onRun(runner, "bandit", "Run started\n>> Issue: [B603:subprocess_without_shell_equals_true] subprocess call\n", 1)
	onRun(runner, "bandit (json)", `{"results": [{"test_id": "B603"}]}`, 1)
	onRun(runner, "black", "would reformat src/app.py\nOh no! 1 file would be reformatted.\n", 1)

	recorder := new(mockRecorder)
	recorder.On("RecordRun", mock.Anything).Return(nil)

	reporter := NewReporter(runner, recorder, logger)
	report, err := reporter.Generate(context.Background(), cfg, ReportOptions{})
	require.NoError(t, err)

	require.Len(t, report.Results, 6)
	byTool := make(map[string]*domain.ToolResult)
	for _, res := range report.Results {
		byTool[res.Tool] = res
	}

	assert.Equal(t, domain.StatusIssues, byTool["ruff"].Status)
	assert.Equal(t, 2, byTool["ruff"].Issues)
	assert.Equal(t, domain.StatusPassed, byTool["flake8"].Status)
	assert.Equal(t, 1, byTool["bandit"].Issues)
	assert.Equal(t, 1, byTool["black"].Issues)
	assert.Equal(t, domain.StatusSkipped, byTool["pytest"].Status)
	assert.Equal(t, domain.StatusSkipped, byTool["mypy"].Status)

	// Per-tool report files carry the run timestamp.
	for _, tool := range []string{"ruff", "flake8", "bandit", "black"} {
		path := filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_%s.txt", tool, report.Timestamp))
		assert.FileExists(t, path)
	}
	jsonPath := filepath.Join(cfg.OutputDir, fmt.Sprintf("bandit_%s.json", report.Timestamp))
	require.FileExists(t, jsonPath)
	jsonData, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, `{"results": [{"test_id": "B603"}]}`, string(jsonData))

	// The summary must contain a non-empty line per tool label.
	summary, err := os.ReadFile(report.SummaryPath)
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Ruff Issues: 2")
	assert.Contains(t, string(summary), "Flake8 Critical: 0")
	assert.Contains(t, string(summary), "Black Formatting: 1")
	assert.Contains(t, string(summary), "Bandit Findings: 1")
	assert.Contains(t, string(summary), "Pytest Failures: skipped (not installed)")

	recorder.AssertCalled(t, "RecordRun", report)
}

func TestReporter_Generate_OptionalToolFailureDoesNotAbort(t *testing.T) {
	cfg := testConfig(t)
	logger := log.New(io.Discard, "", 0)

	runner := new(mockRunner)
	for _, command := range []string{"ruff", "flake8", "bandit", "black", "pytest", "mypy"} {
		runner.On("Available", command).Return(true)
	}
	onRun(runner, "ruff", "", 0)
	onRun(runner, "flake8", "", 0)
	onRun(runner, "bandit", "", 0)
	onRun(runner, "bandit (json)", `{"results": []}`, 0)
	onRun(runner, "black", "", 0)
	// pytest crashes during collection: non-zero exit, no FAILED lines.
	onRun(runner, "pytest", "INTERNALERROR> collection crashed\n", 3)
	onRun(runner, "mypy", "src/app.py:4: error: Name \"x\" is not defined\n", 1)

	reporter := NewReporter(runner, nil, logger)
	report, err := reporter.Generate(context.Background(), cfg, ReportOptions{})
	require.NoError(t, err)

	byTool := make(map[string]*domain.ToolResult)
	for _, res := range report.Results {
		byTool[res.Tool] = res
	}
	assert.Equal(t, domain.StatusFailed, byTool["pytest"].Status)
	assert.Equal(t, 3, byTool["pytest"].ExitCode)
	assert.Equal(t, domain.StatusIssues, byTool["mypy"].Status)
	assert.Equal(t, 1, byTool["mypy"].Issues)

	summary, err := os.ReadFile(report.SummaryPath)
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Pytest Failures: 0 (tool exited with code 3)")
	assert.Contains(t, string(summary), "Mypy Errors: 1")
}

func TestReporter_Generate_SkipAndHistoryFailure(t *testing.T) {
	cfg := testConfig(t)
	logger := log.New(io.Discard, "", 0)

	runner := new(mockRunner)
	for _, command := range []string{"ruff", "flake8", "bandit", "black"} {
		runner.On("Available", command).Return(true)
	}
	onRun(runner, "ruff", "", 0)
	onRun(runner, "flake8", "", 0)
	onRun(runner, "bandit", "", 0)
	onRun(runner, "bandit (json)", `{"results": []}`, 0)
	onRun(runner, "black", "", 0)

	// A broken history store must not fail the run.
	recorder := new(mockRecorder)
	recorder.On("RecordRun", mock.Anything).Return(errors.New("disk full"))

	reporter := NewReporter(runner, recorder, logger)
	report, err := reporter.Generate(context.Background(), cfg, ReportOptions{
		Skip: []string{"pytest", "mypy"},
	})
	require.NoError(t, err)

	assert.Len(t, report.Results, 4)
	runner.AssertNotCalled(t, "Available", "pytest")
	runner.AssertNotCalled(t, "Available", "mypy")
	recorder.AssertExpectations(t)
}

func TestReporter_Generate_ParallelJobs(t *testing.T) {
	cfg := testConfig(t)
	logger := log.New(io.Discard, "", 0)

	runner := new(mockRunner)
	for _, command := range []string{"ruff", "flake8", "bandit", "black", "pytest", "mypy"} {
		runner.On("Available", command).Return(true)
	}
	onRun(runner, "ruff", "src/app.py:3:1: E999 SyntaxError\n", 1)
	onRun(runner, "flake8", "", 0)
	onRun(runner, "bandit", ">> Issue: [B603:subprocess_without_shell_equals_true] subprocess call\n", 1)
	onRun(runner, "bandit (json)", `{"results": [{"test_id": "B603"}]}`, 1)
	onRun(runner, "black", "", 0)
	onRun(runner, "pytest", "FAILED tests/test_app.py::test_x\n", 1)
	onRun(runner, "mypy", "", 0)

	reporter := NewReporter(runner, nil, logger)
	report, err := reporter.Generate(context.Background(), cfg, ReportOptions{Jobs: 3})
	require.NoError(t, err)

	// Every slot must be populated, in configuration order, regardless of
	// which goroutine finished first.
	require.Len(t, report.Results, 6)
	for i, tool := range []string{"ruff", "flake8", "bandit", "black", "pytest", "mypy"} {
		require.NotNil(t, report.Results[i])
		assert.Equal(t, tool, report.Results[i].Tool)
	}
	assert.Equal(t, 1, report.Results[0].Issues)
	assert.Equal(t, 1, report.Results[2].Issues)
	assert.Equal(t, 1, report.Results[4].Issues)

	summary, err := os.ReadFile(report.SummaryPath)
	require.NoError(t, err)
	for _, label := range []string{"Ruff Issues", "Flake8 Critical", "Bandit Findings", "Black Formatting", "Pytest Failures", "Mypy Errors"} {
		assert.Contains(t, string(summary), label+": ")
	}
}

func TestReporter_Generate_NoToolsLeft(t *testing.T) {
	cfg := testConfig(t)
	logger := log.New(io.Discard, "", 0)

	reporter := NewReporter(new(mockRunner), nil, logger)
	_, err := reporter.Generate(context.Background(), cfg, ReportOptions{
		Skip: []string{"ruff", "flake8", "bandit", "black", "pytest", "mypy"},
	})
	assert.ErrorContains(t, err, "no tools to run")
}

func TestCountIssues_LongLines(t *testing.T) {
	re := regexp.MustCompile(`^would reformat `)

	// One matching line is far larger than any fixed scanner buffer; it and
	// everything after it must still be counted.
	longPath := strings.Repeat("a", 2*1024*1024)
	output := strings.Join([]string{
		"would reformat src/app.py",
		"would reformat " + longPath,
		"Oh no! 3 files would be reformatted.",
		"would reformat src/other.py\r",
	}, "\n")

	assert.Equal(t, 3, countIssues([]byte(output), re))
	assert.Equal(t, 0, countIssues([]byte(output), nil))
}
