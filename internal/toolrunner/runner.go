// Package toolrunner executes external analysis tools and captures their
// output, exit code, and duration.
package toolrunner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"time"
)

// ErrToolNotFound is returned when a tool's binary cannot be found in PATH.
var ErrToolNotFound = errors.New("tool not found in PATH")

// Spec describes a single external tool invocation.
type Spec struct {
	Name    string
	Command string
	Args    []string
	Dir     string
}

// Result holds the captured outcome of an invocation. A non-zero exit code is
// not an error: linters exit non-zero when they find issues.
type Result struct {
	Output   []byte
	ExitCode int
	Duration time.Duration
}

// Runner abstracts tool execution so use cases can be tested without
// spawning processes.
type Runner interface {
	Available(command string) bool
	Run(ctx context.Context, spec Spec) (*Result, error)
}

// ExecRunner is the os/exec-backed implementation of Runner.
type ExecRunner struct {
	logger *log.Logger
}

// Compile-time interface verification
var _ Runner = (*ExecRunner)(nil)

// NewExecRunner creates an ExecRunner that logs through the given logger.
func NewExecRunner(logger *log.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

// Available reports whether the command can be resolved in PATH.
func (r *ExecRunner) Available(command string) bool {
	_, err := exec.LookPath(command)
	return err == nil
}

// Run executes the tool and captures its combined stdout and stderr. It
// returns an error only when the tool could not be started or the context was
// canceled; a tool that runs to completion with a non-zero exit code yields a
// Result with that exit code and no error.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) (*Result, error) {
	r.logger.Printf("Running %s: %s %v", spec.Name, spec.Command, spec.Args)

	start := time.Now()
	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	output, err := cmd.CombinedOutput()
	duration := time.Since(start)

	if ctx.Err() != nil {
		return nil, fmt.Errorf("tool %s canceled: %w", spec.Name, ctx.Err())
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			if errors.Is(err, exec.ErrNotFound) {
				return nil, fmt.Errorf("tool %s: %w", spec.Name, ErrToolNotFound)
			}
			return nil, fmt.Errorf("failed to run tool %s: %w", spec.Name, err)
		}
		exitCode = exitErr.ExitCode()
	}

	r.logger.Printf("Tool %s finished in %s with exit code %d", spec.Name, duration.Round(time.Millisecond), exitCode)
	return &Result{Output: output, ExitCode: exitCode, Duration: duration}, nil
}
