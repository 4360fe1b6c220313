// Package watcher periodically rebuilds the feeds listed in the watches
// file and downloads any episodes missing from the music directory, so
// subscribed feeds stay complete even when no podcast client polls them.
package watcher

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"

	"github.com/jakshin/mixcaster-sub000/internal/attrs"
	"github.com/jakshin/mixcaster-sub000/internal/config"
	"github.com/jakshin/mixcaster-sub000/internal/download"
	"github.com/jakshin/mixcaster-sub000/internal/mixcloud"
	"github.com/jakshin/mixcaster-sub000/internal/music"
)

const stateName = ".mixcaster-watcher.json"

// Watcher drives periodic feed refreshes.
type Watcher struct {
	settings *config.Settings
	client   *mixcloud.Client
	queue    *download.Queue
	attrs    *attrs.Store
}

// State is persisted after every pass, mostly for troubleshooting.
type State struct {
	LastRun  time.Time      `json:"lastRun"`
	Episodes map[string]int `json:"episodes"` // fingerprint -> episode count
}

// New wires a Watcher from its collaborators.
func New(settings *config.Settings, client *mixcloud.Client, queue *download.Queue, store *attrs.Store) *Watcher {
	return &Watcher{settings: settings, client: client, queue: queue, attrs: store}
}

// Run refreshes all watched feeds once immediately and then every
// watch_interval_minutes until ctx is cancelled. It returns right away when
// no watches file is configured.
func (w *Watcher) Run(ctx context.Context) {
	if w.settings.WatchFile() == "" {
		log.Debug().Msg("watcher: no watches file configured")
		return
	}
	w.refresh(ctx)
	for {
		interval := time.Duration(w.settings.Int(config.KeyWatchInterval)) * time.Minute
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			w.refresh(ctx)
		}
	}
}

// refresh runs one pass over every watched feed.
func (w *Watcher) refresh(ctx context.Context) {
	watches, err := ReadWatches(w.settings.WatchFile())
	if err != nil {
		log.Warn().Err(err).Str("path", w.settings.WatchFile()).Msg("watcher: could not read watches file")
		return
	}
	if len(watches) == 0 {
		return
	}

	state := State{LastRun: time.Now().UTC(), Episodes: make(map[string]int)}
	musicDir := w.settings.MusicDir()
	hostPort := w.settings.HostPort()
	queued := false

	for _, set := range watches {
		if ctx.Err() != nil {
			return
		}
		if set.MusicType == "" {
			mt, err := w.client.DefaultMusicType(ctx, set.Username)
			if err != nil {
				log.Warn().Err(err).Stringer("watch", set).Msg("watcher: could not resolve default view")
				continue
			}
			set.MusicType = mt
		}
		p, err := w.client.Podcast(ctx, set, hostPort, musicDir)
		if err != nil {
			log.Warn().Err(err).Stringer("watch", set).Msg("watcher: could not build feed")
			continue
		}
		fingerprint := set.Fingerprint()
		state.Episodes[fingerprint] = len(p.Episodes)

		for i := range p.Episodes {
			ep := &p.Episodes[i]
			localPath := mixcloud.LocalPathFor(ep, musicDir)
			w.attrs.AddWatch(localPath, fingerprint)
			if w.queue.Enqueue(download.Download{
				RemoteURL:    ep.Enclosure.RemoteURL,
				LengthBytes:  ep.Enclosure.LengthBytes,
				LastModified: ep.Enclosure.LastModified,
				LocalPath:    localPath,
			}) {
				queued = true
			}
		}
	}

	if queued {
		w.queue.ProcessQueue(nil)
	}
	w.writeState(state)
}

// ReadWatches parses the watches file: one feed per line, # comments and
// blank lines skipped, malformed lines logged and skipped.
func ReadWatches(path string) ([]music.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var watches []music.Set
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set, err := music.ParsePath(line)
		if err != nil {
			log.Warn().Err(err).Str("line", line).Msg("watcher: skipping malformed watch")
			continue
		}
		watches = append(watches, set)
	}
	return watches, scanner.Err()
}

// writeState persists the pass summary atomically next to the music files.
func (w *Watcher) writeState(state State) {
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		log.Debug().Err(err).Msg("watcher: could not encode state")
		return
	}
	path := filepath.Join(w.settings.MusicDir(), stateName)
	if err := renameio.WriteFile(path, payload, 0o644); err != nil {
		log.Debug().Err(err).Str("path", path).Msg("watcher: could not write state")
	}
}
