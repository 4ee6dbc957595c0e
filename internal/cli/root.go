// Package cli implements the sqlsentinel command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/kyle-gehring/sqlsentinel/internal/app"
)

// rootFlags holds persistent flag values shared by every subcommand.
type rootFlags struct {
	alertsPath   string
	settingsPath string
	logLevel     string
}

func (f *rootFlags) appOptions() app.Options {
	return app.Options{
		SettingsPath: f.settingsPath,
		AlertsPath:   f.alertsPath,
		LogLevel:     f.logLevel,
	}
}

// NewRootCommand builds the sqlsentinel CLI.
func NewRootCommand(version string) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "sqlsentinel",
		Short:         "SQL-driven alerting: run scheduled checks and notify on failures",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.alertsPath, "alerts", "a", "alerts.yaml", "path to the alert definitions file")
	root.PersistentFlags().StringVarP(&flags.settingsPath, "settings", "s", "", "optional settings file (env vars always apply)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	root.AddCommand(
		newRunCommand(flags),
		newDaemonCommand(flags),
		newValidateCommand(flags),
		newInitCommand(flags),
		newHistoryCommand(flags),
		newSilenceCommand(flags),
		newUnsilenceCommand(flags),
		newStatusCommand(flags),
	)
	return root
}
