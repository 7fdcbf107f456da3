package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5.0, cfg.Dify.ConsoleRate)
	assert.Equal(t, 3, cfg.Dify.RetryAttempts)
	assert.Equal(t, "markdown", cfg.Output.Format)
	assert.Equal(t, 20, cfg.Output.Limit)
	assert.Equal(t, "output", cfg.Storage.Dir)
	assert.Equal(t, 30, cfg.Storage.RetentionDays)
	assert.Equal(t, "runs.db", cfg.Ledger.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromFile(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
dify:
  base_url: https://dify.internal
  api_token: app-token
  console_email: ops@example.com
output:
  format: csv
  limit: 50
storage:
  dir: /var/reports
  retention_days: 7
notify:
  webhook_url: https://hooks.example.com/done
profiles:
  weekly:
    status: succeeded
    fetch_all: true
    with_details: true
    format: xlsx
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://dify.internal", cfg.Dify.BaseURL)
	assert.Equal(t, "app-token", cfg.Dify.APIToken)
	assert.Equal(t, "ops@example.com", cfg.Dify.ConsoleEmail)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Equal(t, 50, cfg.Output.Limit)
	assert.Equal(t, "/var/reports", cfg.Storage.Dir)
	assert.Equal(t, 7, cfg.Storage.RetentionDays)
	assert.Equal(t, "https://hooks.example.com/done", cfg.Notify.WebhookURL)

	prof, ok := cfg.Profiles["weekly"]
	require.True(t, ok)
	assert.Equal(t, "succeeded", prof.Status)
	assert.True(t, prof.FetchAll)
	assert.True(t, prof.WithDetails)
	assert.Equal(t, "xlsx", prof.Format)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
dify:
  base_url: https://file.example.com
  api_token: file-token
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("WFREPORT_DIFY_BASE_URL", "https://env.example.com")
	t.Setenv("WFREPORT_OUTPUT_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file, file value survives where no env is set
	assert.Equal(t, "https://env.example.com", cfg.Dify.BaseURL)
	assert.Equal(t, "file-token", cfg.Dify.APIToken)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chTempDir(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("dify: [broken"), 0o644))

	_, err := Load()
	require.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))

	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
}
