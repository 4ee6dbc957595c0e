// Package conf loads SQL Sentinel configuration: runtime settings from the
// environment (and an optional settings file) via Viper, and alert
// definitions from a YAML file.
package conf

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kyle-gehring/sqlsentinel/internal/errors"
)

// SMTPSettings configures the email notification channel transport.
type SMTPSettings struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	UseTLS   bool   `mapstructure:"usetls"`
	From     string `mapstructure:"from"`
}

// NotifySettings configures the shared dispatch retry policy.
type NotifySettings struct {
	MaxRetries     int      `mapstructure:"maxretries"`
	RetryBaseDelay Duration `mapstructure:"retrybasedelay"`
	Timeout        Duration `mapstructure:"timeout"`
}

// HealthSettings configures the health/metrics HTTP server.
type HealthSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Settings holds runtime configuration resolved from SQLSENTINEL_* env vars
// and an optional settings file. Alert definitions live in a separate YAML
// file (see LoadAlerts) so they can be hot-reloaded without restarting.
type Settings struct {
	// StateDB is the DSN for the internal state/history database
	// (sqlite path or mysql DSN).
	StateDB string `mapstructure:"statedb"`
	// DatabaseURL is the default DSN alert queries run against.
	DatabaseURL string `mapstructure:"databaseurl"`
	// Timezone used for cron schedule evaluation.
	Timezone string `mapstructure:"timezone"`
	// MinAlertInterval suppresses re-notification for an alert whose last
	// ALERT was more recent than this. Zero disables the limit.
	MinAlertInterval Duration `mapstructure:"minalertinterval"`
	// WatcherDebounce collapses bursts of config file change events.
	WatcherDebounce Duration `mapstructure:"watcherdebounce"`
	// AdapterCacheTTL is how long idle query adapters are kept open.
	AdapterCacheTTL Duration `mapstructure:"adaptercachettl"`
	LogLevel        string   `mapstructure:"loglevel"`

	SMTP   SMTPSettings   `mapstructure:"smtp"`
	Notify NotifySettings `mapstructure:"notify"`
	Health HealthSettings `mapstructure:"health"`
}

// Location resolves the configured timezone, defaulting to UTC.
func (s *Settings) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadSettings builds Settings from environment variables and, when path is
// non-empty, a settings file. Environment variables use the SQLSENTINEL_
// prefix with underscores for nesting (SQLSENTINEL_SMTP_HOST).
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()

	// Every key needs a default registered: AutomaticEnv only resolves
	// keys Viper already knows about during Unmarshal.
	v.SetDefault("statedb", "sqlsentinel.db")
	v.SetDefault("databaseurl", "")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("minalertinterval", "0s")
	v.SetDefault("watcherdebounce", "2s")
	v.SetDefault("adaptercachettl", "10m")
	v.SetDefault("loglevel", "info")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.usetls", true)
	v.SetDefault("notify.maxretries", 3)
	v.SetDefault("notify.retrybasedelay", "1s")
	v.SetDefault("notify.timeout", "30s")
	v.SetDefault("health.enabled", false)
	v.SetDefault("health.addr", ":8080")

	v.SetEnvPrefix("sqlsentinel")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(errors.CategoryConfiguration, err, "failed to read settings file")
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, errors.Wrap(errors.CategoryConfiguration, err, "failed to decode settings")
	}

	if settings.Notify.MaxRetries < 1 {
		return nil, errors.Newf(errors.CategoryConfiguration,
			"notify.maxretries must be at least 1, got %d", settings.Notify.MaxRetries)
	}

	return &settings, nil
}
