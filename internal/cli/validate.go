package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kyle-gehring/sqlsentinel/internal/conf"
)

func newValidateCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the alerts file without executing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := conf.LoadSettings(flags.settingsPath); err != nil {
				return err
			}
			defs, err := conf.LoadAlerts(flags.alertsPath)
			if err != nil {
				return err
			}

			enabled := 0
			for _, def := range defs {
				state := "enabled"
				if def.Enabled {
					enabled++
				} else {
					state = "disabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-30s %-16s %-9s %d target(s)\n",
					def.Name, def.Schedule, state, len(def.Notify))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d alerts (%d enabled): configuration is valid\n", len(defs), enabled)
			return nil
		},
	}
}

const starterAlerts = `# SQL Sentinel alert definitions.
#
# Each alert's query must return exactly one row with a "status" column
# whose value is ALERT or OK. Optional actual_value and threshold columns
# are included in notifications; any other columns become context fields.
alerts:
  - name: example_row_count
    description: Fires when the orders table goes quiet
    schedule: "*/15 * * * *"
    query: |
      SELECT
        CASE WHEN COUNT(*) = 0 THEN 'ALERT' ELSE 'OK' END AS status,
        COUNT(*) AS actual_value,
        1 AS threshold
      FROM orders
      WHERE created_at > NOW() - INTERVAL 1 HOUR
    notify:
      - channel: email
        recipients: [oncall@example.com]
`

func newInitCommand(flags *rootFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter alerts file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flags.alertsPath
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(starterAlerts), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote starter alerts file to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
