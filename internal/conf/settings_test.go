package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Defaults(t *testing.T) {
	settings, err := LoadSettings("")
	require.NoError(t, err)

	assert.Equal(t, "sqlsentinel.db", settings.StateDB)
	assert.Equal(t, "UTC", settings.Timezone)
	assert.Equal(t, 2*time.Second, settings.WatcherDebounce.Std())
	assert.Equal(t, 3, settings.Notify.MaxRetries)
	assert.Equal(t, time.Second, settings.Notify.RetryBaseDelay.Std())
	assert.Equal(t, 30*time.Second, settings.Notify.Timeout.Std())
	assert.Equal(t, 587, settings.SMTP.Port)
	assert.False(t, settings.Health.Enabled)
}

func TestLoadSettings_EnvOverrides(t *testing.T) {
	t.Setenv("SQLSENTINEL_DATABASEURL", "postgres://app@db/prod")
	t.Setenv("SQLSENTINEL_MINALERTINTERVAL", "15m")
	t.Setenv("SQLSENTINEL_SMTP_HOST", "mail.example.com")
	t.Setenv("SQLSENTINEL_NOTIFY_MAXRETRIES", "5")

	settings, err := LoadSettings("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://app@db/prod", settings.DatabaseURL)
	assert.Equal(t, 15*time.Minute, settings.MinAlertInterval.Std())
	assert.Equal(t, "mail.example.com", settings.SMTP.Host)
	assert.Equal(t, 5, settings.Notify.MaxRetries)
}

func TestLoadSettings_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := `
statedb: /var/lib/sentinel/state.db
timezone: Europe/Helsinki
watcherdebounce: 5s
notify:
  maxretries: 2
  retrybasedelay: 250ms
health:
  enabled: true
  addr: ":9090"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	settings, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/sentinel/state.db", settings.StateDB)
	assert.Equal(t, 5*time.Second, settings.WatcherDebounce.Std())
	assert.Equal(t, 2, settings.Notify.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, settings.Notify.RetryBaseDelay.Std())
	assert.True(t, settings.Health.Enabled)
	assert.Equal(t, ":9090", settings.Health.Addr)
	assert.Equal(t, "Europe/Helsinki", settings.Location().String())
}

func TestLoadSettings_InvalidRetries(t *testing.T) {
	t.Setenv("SQLSENTINEL_NOTIFY_MAXRETRIES", "0")

	_, err := LoadSettings("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maxretries")
}
