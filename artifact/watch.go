package artifact

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch logs a warning whenever a file in dir changes after startup. The loaded bundle is
// never replaced; a restart is required to serve new artifacts.
func Watch(ctx context.Context, dir string, logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create artifact watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch artifact dir %s: %w", dir, err)
	}

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
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				logger.Warn("artifact changed on disk; restart to serve it",
					zap.String("file", filepath.Base(event.Name)),
					zap.String("op", event.Op.String()))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("artifact watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
