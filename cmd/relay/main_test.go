package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "donation-relay "+AppVersion+"\n", out)
}

func TestConfigValidateCommand(t *testing.T) {
	path := writeConfig(t, `
notifications:
  donation_webhook_url: https://chat.example/api/webhooks/1/secret
storage:
  type: file
  path: `+filepath.Join(t.TempDir(), "leaderboard.json")+`
`)

	out, err := execute(t, "config", "validate", "--config", path, "--log-level", "warn")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid!")
	assert.Contains(t, out, "Donation webhook: https://chat.example/api/webhooks/1/***")
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "Tiers: 4")

	cfg, err := loadConfig(validateConfigCmd)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestConfigValidateRejectsMissingWebhook(t *testing.T) {
	t.Setenv("DISCORD_WEBHOOK_URL", "")
	t.Setenv("RELAY_NOTIFICATIONS_DONATION_WEBHOOK_URL", "")
	path := writeConfig(t, "app:\n  environment: test\n")

	_, err := execute(t, "config", "validate", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "donation webhook URL is required")
}
