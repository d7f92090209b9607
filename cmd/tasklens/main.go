package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tasklens/tasklens/cmd/tasklens/commands"
	"github.com/tasklens/tasklens/logger"
)

var rootCmd = &cobra.Command{
	Use:   "tasklens",
	Short: "tasklens - Natural-language task query parsing",
	Long: `tasklens - Turn natural-language task queries into structured filters.

Queries combine explicit syntax (p1, status:done, overdue, due:+5d) with
free text; explicit syntax is resolved locally and only the remaining
text is sent to the configured model. Pure-syntax queries never touch
the network.

Available commands:
  parse  - Parse a query into structured filters
  usage  - Show token and cost usage statistics
  config - Inspect effective configuration

Examples:
  tasklens parse "P1 overdue"                     # free, no model call
  tasklens parse "urgent login bugs due this week"
  tasklens parse --json "fix bug"                 # machine-readable output
  tasklens usage --since 168h                     # last week's spend
  tasklens config show`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit log output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Path to a tasklens.toml configuration file")

	rootCmd.AddCommand(commands.ParseCmd)
	rootCmd.AddCommand(commands.UsageCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
