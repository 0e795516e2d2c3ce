package usecase

import (
	"context"
	"fmt"
	"log"

	"qgate/internal/toolrunner"
)

// BootstrapResult describes what the pre-commit bootstrap did.
type BootstrapResult struct {
	// InstalledVia names the installer used to install pre-commit, empty when
	// the binary was already present.
	InstalledVia    string
	InstallerOutput []byte
	InstallOutput   []byte
	HooksRan        bool
	HooksOutput     []byte
	HooksExitCode   int
}

// Bootstrapper installs pre-commit, registers its git hooks, and optionally
// runs all hooks against all files once.
type Bootstrapper struct {
	runner toolrunner.Runner
	logger *log.Logger
}

// NewBootstrapper creates a new Bootstrapper instance.
func NewBootstrapper(runner toolrunner.Runner, logger *log.Logger) *Bootstrapper {
	return &Bootstrapper{
		runner: runner,
		logger: logger,
	}
}

// preCommitInstallers is the fallback chain for installing the pre-commit
// binary, in preference order.
var preCommitInstallers = []struct {
	command string
	args    []string
}{
	{"pipx", []string{"install", "pre-commit"}},
	{"pip3", []string{"install", "--user", "pre-commit"}},
	{"pip", []string{"install", "--user", "pre-commit"}},
}

// Bootstrap verifies or installs pre-commit, runs `pre-commit install`, and,
// when runHooks is set, `pre-commit run --all-files`. The all-files run is
// best-effort: failing hooks are reported through the result, not as an
// error.
func (b *Bootstrapper) Bootstrap(ctx context.Context, runHooks bool) (*BootstrapResult, error) {
	b.logger.Println("Usecase: Bootstrapping pre-commit...")
	result := &BootstrapResult{}

	if !b.runner.Available("pre-commit") {
		installedVia, err := b.installPreCommit(ctx, result)
		if err != nil {
			return nil, err
		}
		result.InstalledVia = installedVia
	}

	install, err := b.runner.Run(ctx, toolrunner.Spec{
		Name:    "pre-commit install",
		Command: "pre-commit",
		Args:    []string{"install"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run pre-commit install: %w", err)
	}
	result.InstallOutput = install.Output
	if install.ExitCode != 0 {
		return nil, fmt.Errorf("pre-commit install exited with code %d:\n%s", install.ExitCode, install.Output)
	}

	if !runHooks {
		b.logger.Println("Usecase: Hooks installed, skipping the all-files run.")
		return result, nil
	}

	allFiles, err := b.runner.Run(ctx, toolrunner.Spec{
		Name:    "pre-commit run",
		Command: "pre-commit",
		Args:    []string{"run", "--all-files"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run pre-commit hooks: %w", err)
	}
	result.HooksRan = true
	result.HooksOutput = allFiles.Output
	result.HooksExitCode = allFiles.ExitCode

	b.logger.Println("Usecase: Bootstrap complete.")
	return result, nil
}

// installPreCommit installs the pre-commit binary with the first available
// installer from the fallback chain.
func (b *Bootstrapper) installPreCommit(ctx context.Context, result *BootstrapResult) (string, error) {
	for _, installer := range preCommitInstallers {
		if !b.runner.Available(installer.command) {
			continue
		}
		b.logger.Printf("Installing pre-commit via %s", installer.command)
		run, err := b.runner.Run(ctx, toolrunner.Spec{
			Name:    installer.command + " install pre-commit",
			Command: installer.command,
			Args:    installer.args,
		})
		if err != nil {
			return "", err
		}
		if run.ExitCode != 0 {
			return "", fmt.Errorf("%s exited with code %d:\n%s", installer.command, run.ExitCode, run.Output)
		}
		result.InstallerOutput = run.Output
		return installer.command, nil
	}
	return "", fmt.Errorf("no installer found: install pipx or pip and retry")
}
