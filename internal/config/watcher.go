package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/harun/tanya/internal/observability"
)

// Watch observes the config file and invokes onChange with each freshly
// loaded, valid configuration. Invalid or unreadable rewrites are logged and
// skipped so a bad edit never takes down a running engine. Watch returns
// after installing the watcher; it stops when ctx is cancelled.
func (l *Loader) Watch(ctx context.Context, onChange func(*Config)) error {
	configPath := l.GetConfigPath()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory: editors often replace the file, which drops a
	// watch installed on the file itself.
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		watcher.Close()
		return err
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
				if event.Name != configPath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				cfg, err := l.Load()
				if err != nil {
					log.Warn().Err(err).Msg("Config reload failed, keeping previous config")
					continue
				}
				if err := cfg.Validate(); err != nil {
					log.Warn().Err(err).Msg("Config reload invalid, keeping previous config")
					continue
				}

				log.Info().Str("path", configPath).Msg("Config reloaded")
				observability.RecordConfigAudit(ctx, "reload", configPath, nil)
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("Config watcher error")
			}
		}
	}()

	return nil
}
