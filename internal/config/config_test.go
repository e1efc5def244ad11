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

// defaultConfig loads a config file that sets nothing
func defaultConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load(writeConfig(t, "app:\n  name: webhook-handler\n"))
	require.NoError(t, err)
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := defaultConfig(t)

	assert.Equal(t, "webhook-handler", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Address)
	assert.Equal(t, "ansible-playbook", cfg.Runner.Command)
	assert.Equal(t, "localhost,", cfg.Runner.Inventory)
	assert.Equal(t, "local", cfg.Runner.Connection)
	assert.Equal(t, 300*time.Second, cfg.Runner.Timeout)
	assert.Equal(t, "/app/logs/healing-actions.log", cfg.Actions.File)
	assert.Equal(t, "/app/logs/webhook.log", cfg.Logging.File)
	assert.Equal(t, DefaultRemediations(), cfg.Remediations)
	assert.False(t, cfg.History.Enabled)
	assert.False(t, cfg.NATS.Enabled)
	assert.True(t, cfg.Monitor.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Monitor.Interval)
	require.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  address: 127.0.0.1:9000
runner:
  command: /usr/local/bin/ansible-playbook
  timeout: 45s
actions:
  file: /tmp/actions.log
remediations:
  - alert: NginxDown
    playbook: /opt/playbooks/nginx.yml
  - alert: DiskFull
    playbook: /opt/playbooks/disk.yml
history:
  enabled: true
  db_path: /tmp/history.db
  retention: 48h
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address)
	assert.Equal(t, "/usr/local/bin/ansible-playbook", cfg.Runner.Command)
	assert.Equal(t, 45*time.Second, cfg.Runner.Timeout)
	assert.Equal(t, "/tmp/actions.log", cfg.Actions.File)
	assert.Equal(t, []Remediation{
		{Alert: "NginxDown", Playbook: "/opt/playbooks/nginx.yml"},
		{Alert: "DiskFull", Playbook: "/opt/playbooks/disk.yml"},
	}, cfg.Remediations)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, 48*time.Hour, cfg.History.Retention)

	// Untouched sections keep their defaults
	assert.Equal(t, "local", cfg.Runner.Connection)
	assert.Equal(t, "webhook-handler", cfg.App.Name)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "runner:\n  timeout: 10s\n")
	t.Setenv("HEALER_RUNNER_TIMEOUT", "20s")
	t.Setenv("HEALER_ACTIONS_FILE", "/var/log/healing.log")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, cfg.Runner.Timeout)
	assert.Equal(t, "/var/log/healing.log", cfg.Actions.File)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_DuplicateRemediation(t *testing.T) {
	path := writeConfig(t, `
remediations:
  - alert: NginxDown
    playbook: /a.yml
  - alert: NginxDown
    playbook: /b.yml
`)

	_, err := Load(path)
	require.ErrorIs(t, err, ErrDuplicateRemediation)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty runner", func(c *Config) { c.Runner.Command = "" }},
		{"zero timeout", func(c *Config) { c.Runner.Timeout = 0 }},
		{"empty actions file", func(c *Config) { c.Actions.File = "" }},
		{"remediation without playbook", func(c *Config) {
			c.Remediations = []Remediation{{Alert: "NginxDown"}}
		}},
		{"history without db path", func(c *Config) {
			c.History.Enabled = true
			c.History.DBPath = ""
		}},
		{"nats without url", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.URL = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tt.mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
