package hooks

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watch reloads the hooks file whenever it changes, until ctx is done.
// The parent directory is watched so editors that replace the file are picked up.
// A file that fails to load leaves the previous hooks active.
func Watch(ctx context.Context, l *Loader, filePath string, logger zerolog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(filePath)); err != nil {
		return fmt.Errorf("watching %s: %w", filePath, err)
	}
	target := filepath.Clean(filePath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := l.Load(filePath); err != nil {
				logger.Error().Err(err).Str("file", filePath).Msg("reloading hooks, keeping previous set")
				continue
			}
			logger.Info().Str("file", filePath).Int("hooks", len(l.List())).Msg("hooks reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("hooks watcher error")
		}
	}
}
