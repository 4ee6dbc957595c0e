package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kyle-gehring/sqlsentinel/internal/app"
	"github.com/kyle-gehring/sqlsentinel/internal/datastore/repository"
)

func newHistoryCommand(flags *rootFlags) *cobra.Command {
	var (
		limit     int
		latest    bool
		stats     bool
		statsDays int
		purgeDays int
	)

	cmd := &cobra.Command{
		Use:   "history [alert-name]",
		Short: "Inspect or prune the execution history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(flags.appOptions())
			if err != nil {
				return err
			}
			defer a.Close()

			alertName := ""
			if len(args) == 1 {
				alertName = args[0]
			}
			ctx := cmd.Context()

			if purgeDays > 0 {
				removed, err := a.History.PurgeOlderThan(ctx, alertName, purgeDays)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d execution records older than %d days\n", removed, purgeDays)
				return nil
			}

			if latest {
				if alertName == "" {
					return fmt.Errorf("--latest requires an alert name")
				}
				r, err := a.History.Latest(ctx, alertName)
				if err != nil {
					return err
				}
				if r == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s has never executed\n", alertName)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %.1fms  %s\n",
					r.ExecutedAt.UTC().Format(time.RFC3339), r.Status, r.DurationMs, r.TriggeredBy)
				return nil
			}

			if stats {
				if alertName == "" {
					return fmt.Errorf("--stats requires an alert name")
				}
				s, err := a.History.Statistics(ctx, alertName, statsDays)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s over the last %d days:\n", alertName, statsDays)
				fmt.Fprintf(out, "  executions: %d (alert=%d ok=%d error=%d)\n", s.Total, s.Alerts, s.Oks, s.Errors)
				fmt.Fprintf(out, "  duration ms: avg=%.1f min=%.1f max=%.1f\n", s.AvgDurationMs, s.MinDurationMs, s.MaxDurationMs)
				return nil
			}

			records, err := a.History.List(ctx, repository.HistoryFilter{AlertName: alertName, Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range records {
				line := fmt.Sprintf("%s  %-30s %-6s %7.1fms  %s",
					r.ExecutedAt.UTC().Format(time.RFC3339), r.AlertName, r.Status, r.DurationMs, r.TriggeredBy)
				if r.NotificationSent {
					line += "  notified"
				}
				if r.ErrorMessage != "" {
					line += "  " + r.ErrorMessage
				}
				fmt.Fprintln(out, line)
			}
			fmt.Fprintf(out, "%d record(s)\n", len(records))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum records to list")
	cmd.Flags().BoolVar(&latest, "latest", false, "print only the most recent record")
	cmd.Flags().BoolVar(&stats, "stats", false, "print aggregate statistics instead of records")
	cmd.Flags().IntVar(&statsDays, "days", 7, "statistics window in days")
	cmd.Flags().IntVar(&purgeDays, "purge", 0, "delete records older than this many days")
	return cmd
}
