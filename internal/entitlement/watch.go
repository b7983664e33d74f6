package entitlement

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// WatchTable reloads the tier table at path into p whenever the file changes. It
// watches the parent directory so editors that replace the file are seen. Invalid
// reloads are logged and the table in force is kept. It returns once the watcher is
// running; the watcher stops when ctx is done.
func WatchTable(ctx context.Context, path string, p *Policy, logger zerolog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("entitlement: create watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("entitlement: resolve tier table path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("entitlement: watch tier table: %w", err)
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
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				table, err := LoadTable(abs)
				if err != nil {
					logger.Error().Err(err).Str("path", abs).Msg("entitlement: tier table reload rejected, keeping previous table")
					continue
				}
				if err := p.Update(table); err != nil {
					logger.Error().Err(err).Str("path", abs).Msg("entitlement: tier table reload rejected, keeping previous table")
					continue
				}
				logger.Info().Str("path", abs).Msg("entitlement: tier table reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn().Err(err).Msg("entitlement: tier table watcher error")
			}
		}
	}()
	return nil
}
