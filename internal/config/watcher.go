package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"chartsight/internal/logger"
)

// Watch re-reads the config file on change and hands the reloaded
// config to apply. Only runtime-adjustable settings (log level, LLM
// dump flag) should be acted on; structural settings need a restart.
// Editors often emit rename+create bursts, so events are debounced.
func Watch(ctx context.Context, path string, apply func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}
	target := filepath.Clean(path)

	go func() {
		defer watcher.Close()
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				pending = time.After(300 * time.Millisecond)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("[config] watcher error: %v", err)
			case <-pending:
				pending = nil
				cfg, err := Load(path)
				if err != nil {
					logger.Warnf("[config] reload skipped: %v", err)
					continue
				}
				logger.Infof("[config] reloaded %s", path)
				apply(cfg)
			}
		}
	}()
	return nil
}
