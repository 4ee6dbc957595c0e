package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kyle-gehring/sqlsentinel/internal/alert"
	"github.com/kyle-gehring/sqlsentinel/internal/app"
	"github.com/kyle-gehring/sqlsentinel/internal/conf"
	"github.com/kyle-gehring/sqlsentinel/internal/executor"
)

func newRunCommand(flags *rootFlags) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run [alert-name...]",
		Short: "Execute alerts once and exit",
		Long: `Execute the named alerts immediately, or every enabled alert when no
names are given. With --dry-run the check query runs and the notification
decision is reported, but nothing is sent or persisted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(flags.appOptions())
			if err != nil {
				return err
			}
			defer a.Close()

			defs, err := selectAlerts(a, args)
			if err != nil {
				return err
			}

			opts := executor.Options{TriggeredBy: alert.TriggeredByManual, DryRun: dryRun}
			failed := 0
			for i := range defs {
				result, err := a.ExecuteAlert(cmd.Context(), &defs[i], opts)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%-30s error: %v\n", defs[i].Name, err)
					continue
				}
				line := fmt.Sprintf("%-30s %-8s %s", result.AlertName, result.Status, result.Duration.Round(0))
				if result.Error != "" {
					line += "  " + result.Error
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
				if result.Status == alert.ResultError {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d alerts did not execute cleanly", failed, len(defs))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "evaluate without notifying or persisting")
	return cmd
}

// selectAlerts resolves positional names, defaulting to all enabled alerts.
func selectAlerts(a *app.App, names []string) ([]conf.AlertDefinition, error) {
	if len(names) == 0 {
		defs := make([]conf.AlertDefinition, 0, len(a.Alerts))
		for _, def := range a.Alerts {
			if def.Enabled {
				defs = append(defs, def)
			}
		}
		return defs, nil
	}

	defs := make([]conf.AlertDefinition, 0, len(names))
	for _, name := range names {
		def, err := a.FindAlert(name)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *def)
	}
	return defs, nil
}
