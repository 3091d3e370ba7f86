package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"go-sonify/debug"
)

// Watch reloads the config at path whenever it is written or recreated and
// hands each valid result to fn. Invalid edits are logged and skipped.
// The directory is watched so editors that replace the file are seen.
// Watch returns once the watcher is running; it stops when ctx is done.
func Watch(ctx context.Context, path string, fn func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				cfg, err := LoadFrom(path)
				if err != nil {
					debug.Log("config", "reload failed: %v", err)
					continue
				}
				debug.Log("config", "reloaded %s", path)
				fn(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				debug.Log("config", "watcher error: %v", err)
			}
		}
	}()
	return nil
}
