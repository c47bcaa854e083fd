package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mantonx/medialibrary/internal/logger"
)

// reloadDebounce collapses the burst of events editors emit on save
const reloadDebounce = 250 * time.Millisecond

// Watch reloads the configuration whenever its file changes, until ctx is done.
// The parent directory is watched so that atomic rename-on-save is picked up.
func (cm *ConfigManager) Watch(ctx context.Context) error {
	path := cm.ConfigPath()
	if path == "" {
		return fmt.Errorf("no config path set")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	log := logger.Named("config")
	log.Info("watching configuration file", "path", path)

	target := filepath.Clean(path)
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(reloadDebounce)

		case <-pending:
			pending = nil
			if err := cm.LoadConfig(path); err != nil {
				log.Error("configuration reload failed, keeping previous configuration", "error", err)
				continue
			}
			log.Info("configuration reloaded", "path", path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", "error", err)
		}
	}
}

// Watch reloads the global configuration on file changes
func Watch(ctx context.Context) error {
	return GetConfigManager().Watch(ctx)
}
