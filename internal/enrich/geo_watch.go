package enrich

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// WatchAndReload watches path for writes (e.g. an operator dropping in a
// refreshed MaxMind database) and calls Reload on each one, so the
// service never needs a restart to pick up updated geo data. It runs
// until ctx is cancelled.
func (g *GeoIP) WatchAndReload(ctx context.Context, path string, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := g.Reload(path); err != nil {
				logger.Error("geoip reload failed", "path", path, "error", err)
				continue
			}
			logger.Info("geoip database reloaded", "path", path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("geoip watcher error", "error", err)
		}
	}
}
