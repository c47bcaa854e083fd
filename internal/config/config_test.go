package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, 1000, cfg.Import.Limit)
	assert.Equal(t, 24*time.Hour, cfg.Import.Interval)
	assert.Equal(t, "https://datasets.imdbws.com", cfg.Import.BaseURL)
	assert.Equal(t, []string{"title", "duration"}, cfg.Import.UpdateFields)
	assert.Equal(t, 10*time.Minute, cfg.Security.ResetTokenTTL)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medialibrary.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
database:
  type: sqlite
  data_dir: `+dir+`
import:
  limit: 50
  interval: 6h
  update_fields: [title, duration, release_date]
`), 0644))

	t.Setenv("MEDIALIB_IMPORT_LIMIT", "25")

	cm := NewConfigManager()
	require.NoError(t, cm.LoadConfig(path))
	cfg := cm.GetConfig()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Import.Limit, "env overrides file")
	assert.Equal(t, 6*time.Hour, cfg.Import.Interval)
	assert.Equal(t, []string{"title", "duration", "release_date"}, cfg.Import.UpdateFields)
	assert.Equal(t, filepath.Join(dir, "medialibrary.db"), cfg.Database.DatabasePath)
	assert.Equal(t, "http://localhost:9090", cfg.Server.PublicURL)
	assert.Equal(t, "info", cfg.Logging.Level, "defaults survive when neither file nor env set a field")
}

func TestLoadConfigEnvSlice(t *testing.T) {
	t.Setenv("MEDIALIB_DISABLED_MODULES", "system.import, system.users")

	cm := NewConfigManager()
	require.NoError(t, cm.LoadConfig(""))
	assert.Equal(t, []string{"system.import", "system.users"}, cm.GetConfig().Modules.Disabled)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"MEDIALIB_PORT": "70000"}},
		{"bad db type", map[string]string{"DATABASE_TYPE": "mysql"}},
		{"bad update field", map[string]string{"MEDIALIB_IMPORT_UPDATE_FIELDS": "title,poster"}},
		{"bad limit", map[string]string{"MEDIALIB_IMPORT_LIMIT": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cm := NewConfigManager()
			assert.Error(t, cm.LoadConfig(""))
			assert.Equal(t, 8080, cm.GetConfig().Server.Port, "failed load keeps previous config")
		})
	}
}

func TestWatchersNotified(t *testing.T) {
	cm := NewConfigManager()
	changed := make(chan *Config, 1)
	cm.AddWatcher(func(oldConfig, newConfig *Config) {
		changed <- newConfig
	})

	t.Setenv("MEDIALIB_LOG_LEVEL", "debug")
	require.NoError(t, cm.LoadConfig(""))

	select {
	case cfg := <-changed:
		assert.Equal(t, "debug", cfg.Logging.Level)
	case <-time.After(time.Second):
		t.Fatal("watcher not called")
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medialibrary.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0644))

	cm := NewConfigManager()
	require.NoError(t, cm.LoadConfig(path))

	reloaded := make(chan string, 4)
	cm.AddWatcher(func(_, newConfig *Config) {
		reloaded <- newConfig.Logging.Level
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cm.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0644))

	select {
	case level := <-reloaded:
		assert.Equal(t, "warn", level)
	case <-time.After(3 * time.Second):
		t.Fatal("configuration was not reloaded")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
