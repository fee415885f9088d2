package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	cfg, err := Load(filepath.Join(dir, DefaultConfigFile))
	require.NoError(t, err)

	assert.Equal(t, Default(dir), cfg)
	assert.DirExists(t, dir)
	assert.Equal(t, filepath.Join(dir, "rules.yaml"), cfg.RulesPath)
	assert.Equal(t, 100, cfg.Engine.HistoryLimit)
	assert.Equal(t, 24*time.Hour, cfg.Engine.HistoryTTL)
	require.NoError(t, cfg.Validate())
}

func TestLoad_OverridesAndRelativePaths(t *testing.T) {
	path := writeConfig(t, `
rules: custom/rules.yaml
history_dir: /var/lib/logshield
engine:
  match_mode: all
  workers: 16
  history_limit: 50
  history_ttl: 2h30m
  strict_history_load: true
  unicode_signal: true
logging:
  level: debug
  json: true
server:
  addr: 127.0.0.1:9090
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, filepath.Join(dir, "custom", "rules.yaml"), cfg.RulesPath)
	assert.Equal(t, "/var/lib/logshield", cfg.HistoryDir)
	assert.Equal(t, filepath.Join(dir, DefaultPacksDir), cfg.PacksDir, "unset keys keep defaults")
	assert.Equal(t, "all", cfg.Engine.MatchMode)
	assert.Equal(t, 16, cfg.Engine.Workers)
	assert.Equal(t, 50, cfg.Engine.HistoryLimit)
	assert.Equal(t, 150*time.Minute, cfg.Engine.HistoryTTL)
	assert.Equal(t, "badger", cfg.Engine.HistoryBackend)
	assert.True(t, cfg.Engine.StrictHistoryLoad)
	assert.True(t, cfg.Engine.UnicodeSignal)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.True(t, cfg.Server.WatchRules)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"history limit above window", "engine:\n  history_limit: 500\n", "HistoryLimit"},
		{"unknown match mode", "engine:\n  match_mode: some\n", "MatchMode"},
		{"zero workers", "engine:\n  workers: 0\n", "Workers"},
		{"bad backend", "engine:\n  history_backend: redis\n", "HistoryBackend"},
		{"bad level", "logging:\n  level: loud\n", "Level"},
		{"empty addr", "server:\n  addr: \"\"\n", "Addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "engine: [unclosed"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Engine.Workers = 0
	cfg.Engine.HistoryLimit = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Workers")
	assert.Contains(t, err.Error(), "HistoryLimit")
}
