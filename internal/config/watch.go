package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/hrygo/loomchat/internal/errs"
)

// Watch starts an fsnotify watcher on both configured files and calls
// Reload whenever either changes, logging (rather than propagating) reload
// failures so a momentarily-invalid edit on disk doesn't take the process
// down. It runs until stop is closed.
func (c *Config) Watch(stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, errs.Internal, "create config watcher")
	}

	watched := make(map[string]bool)
	for _, rel := range []string{c.configPath, c.modelsPath} {
		dir := filepath.Dir(filepath.Join(c.baseDir, rel))
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return errs.Wrap(err, errs.IoError, "watch config directory for "+rel)
		}
		watched[dir] = true
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := c.Reload(); err != nil {
					slog.Warn("config: reload after file change failed, keeping previous snapshot", "error", err)
				} else {
					slog.Info("config: reloaded after file change", "event", ev.Name)
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config: watcher error", "error", werr)
			}
		}
	}()
	return nil
}
