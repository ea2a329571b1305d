package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/PinkPanter/gitlock/pkg/fsutil"
)

// Watch reloads the configuration whenever config.yaml changes and hands the
// result to onChange. The directory is watched rather than the file so that
// atomic replacement (rename over the target) is observed. Watch blocks until
// ctx is done.
func Watch(ctx context.Context, repoRoot string, onChange func(*Config, error)) error {
	dir := filepath.Join(repoRoot, DirName)
	if err := fsutil.EnsureDir(dir); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != FileName {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := Load(repoRoot)
			onChange(cfg, err)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			onChange(nil, fmt.Errorf("watch config: %w", err))
		}
	}
}
