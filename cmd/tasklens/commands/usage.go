package commands

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/tasklens/tasklens/ai/tracker"
	"github.com/tasklens/tasklens/errors"
)

// UsageCmd reports token and cost statistics from the tracking database
var UsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show token and cost usage statistics",
	Long: `Show aggregate token and cost statistics from the usage database.

Requires tracking.enabled = true in configuration; every model call is
then recorded, including failures.

Examples:
  tasklens usage               # last 30 days
  tasklens usage --since 168h  # last week`,
	RunE: runUsage,
}

func init() {
	UsageCmd.Flags().Duration("since", 30*24*time.Hour, "Window to aggregate over")
}

func runUsage(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.Tracking.Enabled {
		return errors.WithHint(
			errors.New("usage tracking is disabled"),
			"set tracking.enabled = true in tasklens.toml")
	}

	db, err := sql.Open("sqlite3", cfg.Tracking.Path)
	if err != nil {
		return errors.Wrap(err, "failed to open usage database")
	}
	defer db.Close()

	t := tracker.New(db)
	if err := t.InitSchema(); err != nil {
		return err
	}

	window, _ := cmd.Flags().GetDuration("since")
	since := time.Now().Add(-window)

	stats, err := t.GetStats(since)
	if err != nil {
		return err
	}

	pterm.DefaultHeader.Printf("Usage since %s", since.Format("2006-01-02 15:04"))
	pterm.Println()
	pterm.Printf("  Requests:   %d (%d successful)\n", stats.TotalRequests, stats.SuccessfulRequests)
	pterm.Printf("  Tokens:     %d\n", stats.TotalTokens)
	pterm.Printf("  Cost:       $%.6f\n", stats.TotalCost)
	pterm.Printf("  Models:     %d\n", stats.UniqueModels)

	breakdown, err := t.GetModelBreakdown(since)
	if err != nil {
		return err
	}
	if len(breakdown) == 0 {
		return nil
	}

	pterm.Println()
	rows := pterm.TableData{{"Model", "Provider", "Requests", "Tokens", "Cost"}}
	for _, mb := range breakdown {
		rows = append(rows, []string{
			mb.Model, mb.Provider,
			fmt.Sprintf("%d", mb.Requests),
			fmt.Sprintf("%d", mb.Tokens),
			fmt.Sprintf("$%.6f", mb.Cost),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
