package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"qgate/internal/config"
	"qgate/internal/storage"
	"qgate/internal/usecase"
)

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Aggregates issue counts across recorded runs and outputs as JSON or text",
	Long: `Reads the run-history database written by the report command and
prints per-tool issue statistics (runs, mean, median, 90th percentile, last)
so regressions and improvements are visible across runs.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := commandLogger(cmd)
		configPath, _ := cmd.Flags().GetString("config")
		dbPath, _ := cmd.Flags().GetString("db")
		tool, _ := cmd.Flags().GetString("tool")
		asJSON, _ := cmd.Flags().GetBool("json")
		if dbPath == "" {
			// The report command records history at the configured path, so
			// the default must come from the same configuration.
			cfg, err := config.Load(configPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
				os.Exit(1)
			}
			dbPath = cfg.HistoryPath()
		}
		if _, err := os.Stat(dbPath); err != nil {
			fmt.Fprintf(os.Stderr, "No run history at %s; run `qgate report` first.\n", dbPath)
			os.Exit(1)
		}

		store, err := storage.NewStore(dbPath, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open history database: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		analyzer := usecase.NewTrendAnalyzer(store, logger)
		trends, err := analyzer.Analyze(tool)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to compute trends: %v\n", err)
			os.Exit(1)
		}
		if len(trends) == 0 {
			fmt.Println("No recorded runs yet.")
			return
		}

		if asJSON {
			jsonData, err := json.MarshalIndent(trends, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to marshal trends to JSON: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(jsonData))
			return
		}

		fmt.Println(headerStyle.Render("Issue trends"))
		for _, t := range trends {
			fmt.Printf("  %-10s runs=%-4d mean=%-8.1f median=%-8.1f p90=%-8.1f last=%d\n",
				t.Tool, t.Runs, t.MeanIssues, t.MedianIssues, t.P90Issues, t.LastIssues)
		}
	},
}

func init() {
	rootCmd.AddCommand(trendsCmd)
	trendsCmd.Flags().StringP("config", "c", "", "Path to qgate.yaml (default: ./qgate.yaml if present)")
	trendsCmd.Flags().String("db", "", "Path to the history database (default: the configured history path)")
	trendsCmd.Flags().String("tool", "", "Limit output to one tool")
	trendsCmd.Flags().Bool("json", false, "Output as JSON")
}
