package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"qgate/internal/toolrunner"
	"qgate/internal/usecase"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Installs pre-commit hooks and runs them against all files",
	Long: `Bootstraps the repository's pre-commit tooling: installs the
pre-commit binary if it is missing (via pipx or pip), installs the git hooks,
and runs all hooks against all files once. The initial all-files run is
best-effort; hook failures are reported but do not fail the command.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := commandLogger(cmd)
		noRun, _ := cmd.Flags().GetBool("no-run")

		runner := toolrunner.NewExecRunner(logger)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bootstrapper := usecase.NewBootstrapper(runner, logger)
		result, err := bootstrapper.Bootstrap(ctx, !noRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to bootstrap pre-commit: %v\n", err)
			os.Exit(1)
		}

		if result.InstalledVia != "" {
			fmt.Printf("Installed pre-commit via %s.\n", result.InstalledVia)
		}
		os.Stdout.Write(result.InstallOutput)

		if !result.HooksRan {
			fmt.Println("Hooks installed. Skipping the all-files run (--no-run).")
			return
		}
		os.Stdout.Write(result.HooksOutput)
		if result.HooksExitCode != 0 {
			fmt.Println("Some hooks reported issues; fix them and re-run.")
		} else {
			fmt.Println("All hooks passed.")
		}
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.Flags().Bool("no-run", false, "Install hooks without running them against all files")
}
