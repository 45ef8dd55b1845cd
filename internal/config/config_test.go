package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
database:
  path: /var/lib/assetdesk/reports.db
scheduler:
  poll_interval: 1m
  timezone: Europe/Berlin
  max_concurrent_runs: 2
email:
  smtp_host: smtp.example.com
  from: reports@example.com
slack:
  token: xoxb-test
auth:
  jwt_secret: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "/var/lib/assetdesk/reports.db", cfg.Database.Path)
	assert.Equal(t, time.Minute, cfg.Scheduler.PollInterval)
	assert.Equal(t, 2, cfg.Scheduler.MaxConcurrentRuns)
	assert.Equal(t, "smtp.example.com", cfg.Email.SMTPHost)
	assert.Equal(t, "xoxb-test", cfg.Slack.Token)
	assert.Equal(t, "secret", cfg.Auth.JWTSecret)

	// defaults fill what the file leaves out
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.RunTimeout)
	assert.Equal(t, 587, cfg.Email.SMTPPort)
	assert.Equal(t, "#it-assets", cfg.Slack.Channel)
	assert.Equal(t, "admin", cfg.Auth.AdminUsername)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("ASSETDESK_SERVER_PORT", "9100")
	t.Setenv("ASSETDESK_SCHEDULER_TIMEZONE", "Asia/Tokyo")
	t.Setenv("ASSETDESK_AUTH_JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "Asia/Tokyo", cfg.Scheduler.Timezone)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/assetdesk.db", cfg.Database.Path)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, "UTC", cfg.Scheduler.Timezone)
	assert.Equal(t, 8, cfg.Scheduler.MaxConcurrentRuns)
	assert.Equal(t, 1.0, cfg.API.RunNowRate)
	assert.Equal(t, 5, cfg.API.RunNowBurst)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown timezone":  "scheduler:\n  timezone: Mars/Olympus\n",
		"zero poll":         "scheduler:\n  poll_interval: 0s\n",
		"negative runs":     "scheduler:\n  max_concurrent_runs: -1\n",
		"port out of range": "server:\n  port: 70000\n",
		"zero run timeout":  "scheduler:\n  run_timeout: 0s\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [port"))
	assert.Error(t, err)
}
