package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch reloads the settings table whenever the settings file changes on
// disk. Editors replace files by rename, so the parent directory is watched
// and events are filtered by name. Returns immediately when no settings
// file is in use; otherwise blocks until ctx is done.
func (s *Settings) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return err
	}
	want := filepath.Base(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != want {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.Reload(); err != nil {
				log.Warn().Err(err).Str("path", s.path).Msg("settings: reload failed")
				continue
			}
			log.Info().Str("path", s.path).Msg("settings: reloaded")
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("settings: watch error")
		}
	}
}
