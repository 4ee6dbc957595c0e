package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kyle-gehring/sqlsentinel/internal/app"
)

func newSilenceCommand(flags *rootFlags) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "silence <alert-name>",
		Short: "Suppress notifications for an alert",
		Long: `Silence an alert for the given duration. Checks keep running and state
keeps updating; only notifications are suppressed until the window ends.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(flags.appOptions())
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.FindAlert(args[0]); err != nil {
				return err
			}
			if err := a.States.Silence(cmd.Context(), args[0], duration); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "silenced %s until %s\n",
				args[0], time.Now().Add(duration).UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().DurationVarP(&duration, "for", "d", time.Hour, "how long to silence (e.g. 30m, 2h)")
	return cmd
}

func newUnsilenceCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "unsilence <alert-name>",
		Short: "Clear an alert's silence window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(flags.appOptions())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.States.Unsilence(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unsilenced %s\n", args[0])
			return nil
		},
	}
}

func newStatusCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current state for every alert",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(flags.appOptions())
			if err != nil {
				return err
			}
			defer a.Close()

			states, err := a.States.ListStates(cmd.Context())
			if err != nil {
				return err
			}

			byName := make(map[string]int, len(states))
			for i := range states {
				byName[states[i].AlertName] = i
			}

			now := time.Now().UTC()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-30s %-8s %-10s %-10s %s\n", "ALERT", "STATUS", "CONSEC", "SILENCED", "LAST RUN")
			for _, def := range a.Alerts {
				status, consec, silenced, lastRun := "never", "-", "no", "-"
				if i, ok := byName[def.Name]; ok {
					s := &states[i]
					if s.CurrentStatus != "" {
						status = s.CurrentStatus
					}
					consec = fmt.Sprintf("a=%d o=%d", s.ConsecutiveAlerts, s.ConsecutiveOks)
					if s.IsSilenced(now) {
						silenced = "until " + s.SilencedUntil.UTC().Format("15:04:05")
					}
					if s.LastExecutedAt != nil {
						lastRun = s.LastExecutedAt.UTC().Format(time.RFC3339)
					}
				}
				fmt.Fprintf(out, "%-30s %-8s %-10s %-10s %s\n", def.Name, status, consec, silenced, lastRun)
			}
			return nil
		},
	}
}
