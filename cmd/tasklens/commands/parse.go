package commands

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/tasklens/tasklens/ai/tracker"
	"github.com/tasklens/tasklens/config"
	"github.com/tasklens/tasklens/errors"
	"github.com/tasklens/tasklens/logger"
	"github.com/tasklens/tasklens/query"
)

// ParseCmd parses one query and prints the structured result
var ParseCmd = &cobra.Command{
	Use:   "parse <query>",
	Short: "Parse a natural-language task query",
	Long: `Parse a natural-language task query into structured filters.

Explicit syntax (priority, status, due dates) is resolved locally by
pattern matching. Any remaining text goes to the model configured for
the "parsing" purpose, which extracts keywords, expands them per
language, and infers implicit filters.

Examples:
  tasklens parse "P1 overdue"
  tasklens parse "urgent login bugs due this week"
  tasklens parse --json "status:open deploy"`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	ParseCmd.Flags().Bool("json", false, "Print the parsed query as JSON")
	ParseCmd.Flags().Float64("rps", 0, "Provider request rate limit in requests per second (0 = unlimited)")
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := query.Options{Logger: logger.Logger}

	if rps, _ := cmd.Flags().GetFloat64("rps"); rps > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	if cfg.Tracking.Enabled {
		db, err := sql.Open("sqlite3", cfg.Tracking.Path)
		if err != nil {
			return errors.Wrap(err, "failed to open usage database")
		}
		defer db.Close()
		t := tracker.New(db)
		if err := t.InitSchema(); err != nil {
			return err
		}
		opts.Tracker = t
	}

	parser := query.NewParser(cfg, opts)
	result, err := parser.Parse(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode result")
		}
		fmt.Println(string(out))
		return nil
	}

	renderResult(result)
	return nil
}

func renderResult(result *query.ParsedQuery) {
	if result.ParserError != "" {
		pterm.Warning.Printf("Model parsing failed (%s), showing explicit filters only\n", result.ParserModel)
		pterm.Printf("  %s\n", result.ParserError)
		pterm.Println()
	}

	if len(result.Keywords) > 0 {
		pterm.Info.Println("Keywords:")
		pterm.Printf("  core:     %s\n", strings.Join(result.CoreKeywords, ", "))
		pterm.Printf("  expanded: %s\n", strings.Join(result.Keywords, ", "))
	} else {
		pterm.Info.Println("Keywords: none (query resolved by explicit syntax)")
	}

	var filters []string
	if len(result.Priority) > 0 {
		filters = append(filters, fmt.Sprintf("priority %v", result.Priority))
	}
	if len(result.Status) > 0 {
		filters = append(filters, fmt.Sprintf("status %s", strings.Join(result.Status, ",")))
	}
	if result.DueDate != "" {
		filters = append(filters, fmt.Sprintf("due %s", result.DueDate))
	}
	if result.DueDateRange != nil {
		filters = append(filters, fmt.Sprintf("due %s..%s", result.DueDateRange.Start, result.DueDateRange.End))
	}
	if result.Folder != "" {
		filters = append(filters, fmt.Sprintf("folder %s", result.Folder))
	}
	if len(result.Tags) > 0 {
		filters = append(filters, fmt.Sprintf("tags %s", strings.Join(result.Tags, ",")))
	}
	if len(filters) > 0 {
		pterm.Info.Println("Filters:")
		for _, f := range filters {
			pterm.Printf("  %s\n", f)
		}
	}

	if u := result.TokenUsage; u != nil {
		pterm.Println()
		pterm.Info.Printf("Usage: %d tokens (%d prompt + %d completion, %s), $%.6f (%s/%s) on %s\n",
			u.TotalTokens, u.PromptTokens, u.CompletionTokens, u.TokenSource,
			u.EstimatedCost, u.CostMethod, u.PricingSource, u.Model)
	}
}

// loadConfig loads configuration from --config when given, otherwise
// from the standard search paths.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}
