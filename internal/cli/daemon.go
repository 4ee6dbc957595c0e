package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kyle-gehring/sqlsentinel/internal/app"
	"github.com/kyle-gehring/sqlsentinel/internal/logger"
)

func newDaemonCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the scheduler until interrupted",
		Long: `Start the cron scheduler for every enabled alert, watch the alerts file
for changes, and serve health endpoints when enabled. Stops cleanly on
SIGINT or SIGTERM, letting in-flight executions finish.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(flags.appOptions())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.Log.Info("daemon starting",
				logger.Int("alerts", len(a.Alerts)),
				logger.String("timezone", a.Settings.Timezone))
			return a.Run(ctx)
		},
	}
}
