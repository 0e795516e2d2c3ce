package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"qgate/internal/gateway"
	"qgate/internal/usecase"
)

var checklistCmd = &cobra.Command{
	Use:   "checklist",
	Short: "Operations on the PR review checklist",
}

var checklistUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Ticks checklist entries whose pull request has been merged",
	Long: `Reads the PR review checklist, asks the GitHub API which of the
referenced pull requests are merged, and ticks exactly those entries. Every
other line of the file is left byte-identical. Entries referencing pull
requests that were closed without merging are reported as stale but not
rewritten.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		logger := commandLogger(cmd)

		owner, _ := cmd.Flags().GetString("owner")
		repo, _ := cmd.Flags().GetString("repo")
		file, _ := cmd.Flags().GetString("file")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		token := os.Getenv("GITHUB_TOKEN")
		if token == "" {
			fmt.Fprintln(os.Stderr, "Error: GITHUB_TOKEN environment variable is not set.")
			os.Exit(1)
		}

		githubGateway, err := gateway.NewGitHubGateway(token, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create GitHub gateway: %v\n", err)
			os.Exit(1)
		}
		updater := usecase.NewChecklistUpdater(githubGateway, logger)

		update, err := updater.Update(ctx, owner, repo, file, dryRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to update checklist: %v\n", err)
			os.Exit(1)
		}

		if len(update.Items) == 0 {
			fmt.Printf("No PR entries found in %s.\n", update.Path)
			return
		}
		verb := "Ticked"
		if dryRun {
			verb = "Would tick"
		}
		fmt.Printf("%s %d of %d entries in %s.\n", verb, len(update.Ticked), len(update.Items), update.Path)
		for _, n := range update.Ticked {
			fmt.Printf("  #%d merged\n", n)
		}
		for _, n := range update.Stale {
			fmt.Printf("  #%d closed without merge (stale entry)\n", n)
		}
	},
}

func init() {
	rootCmd.AddCommand(checklistCmd)
	checklistCmd.AddCommand(checklistUpdateCmd)
	checklistUpdateCmd.Flags().StringP("owner", "O", "", "GitHub repository owner (required)")
	checklistUpdateCmd.Flags().StringP("repo", "R", "", "GitHub repository name (required)")
	checklistUpdateCmd.MarkFlagRequired("owner")
	checklistUpdateCmd.MarkFlagRequired("repo")
	checklistUpdateCmd.Flags().StringP("file", "f", "PR_REVIEW_CHECKLIST.md", "Path to the checklist file")
	checklistUpdateCmd.Flags().Bool("dry-run", false, "Report what would change without writing the file")
}
