// Package attrs maintains per-file side-channel bookkeeping used by stale
// file cleanup: a user.lastUsed timestamp and a user.watches list of feed
// fingerprints. Extended attributes are the primary backend; filesystems
// without xattr support fall back to a sqlite sidecar database in the music
// directory. Writes are best-effort and never fail the caller.
package attrs

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/xattr"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Attribute names. The "user." prefix is required on Linux; pkg/xattr maps
// it appropriately on platforms with flat namespaces.
const (
	NameLastUsed = "user.lastUsed"
	NameWatches  = "user.watches"
)

const sidecarName = ".mixcaster-attrs.db"

// Store reads and writes file attributes beneath one music directory.
type Store struct {
	musicDir string

	mu       sync.Mutex
	db       *sql.DB // lazily opened sidecar; nil until first fallback
	dbFailed bool    // sidecar open failed once; stop retrying
}

// NewStore returns a Store for files beneath musicDir.
func NewStore(musicDir string) *Store {
	return &Store{musicDir: musicDir}
}

// TouchLastUsed records "now" as the file's last-used time. Best-effort.
func (s *Store) TouchLastUsed(path string) {
	s.set(path, NameLastUsed, time.Now().UTC().Format(time.RFC3339))
}

// AddWatch appends a feed fingerprint to the file's watches list if not
// already present. Best-effort.
func (s *Store) AddWatch(path, fingerprint string) {
	current, _ := s.Get(path, NameWatches)
	for _, w := range strings.Split(current, "\n") {
		if w == fingerprint {
			return
		}
	}
	if current != "" {
		fingerprint = current + "\n" + fingerprint
	}
	s.set(path, NameWatches, fingerprint)
}

// Get returns the attribute value, or "" when unset or unreadable.
func (s *Store) Get(path, name string) (string, error) {
	value, err := xattr.Get(path, name)
	if err == nil {
		return string(value), nil
	}
	if !unsupported(err) {
		return "", err
	}
	db := s.sidecar()
	if db == nil {
		return "", err
	}
	var v string
	row := db.QueryRow(`SELECT value FROM attrs WHERE path = ? AND name = ?`, s.rel(path), name)
	if err := row.Scan(&v); err != nil {
		return "", err
	}
	return v, nil
}

func (s *Store) set(path, name, value string) {
	err := xattr.Set(path, name, []byte(value))
	if err == nil {
		return
	}
	if !unsupported(err) {
		log.Debug().Err(err).Str("path", path).Str("attr", name).Msg("attrs: write skipped")
		return
	}
	db := s.sidecar()
	if db == nil {
		return
	}
	if _, err := db.Exec(
		`INSERT INTO attrs (path, name, value) VALUES (?, ?, ?)
		 ON CONFLICT (path, name) DO UPDATE SET value = excluded.value`,
		s.rel(path), name, value,
	); err != nil {
		log.Debug().Err(err).Str("path", path).Str("attr", name).Msg("attrs: sidecar write skipped")
	}
}

// sidecar lazily opens the fallback database. Returns nil when it cannot be
// opened; the failure is remembered so we do not retry on every write.
func (s *Store) sidecar() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil || s.dbFailed {
		return s.db
	}
	db, err := sql.Open("sqlite", filepath.Join(s.musicDir, sidecarName))
	if err == nil {
		_, err = db.Exec(`CREATE TABLE IF NOT EXISTS attrs (
			path  TEXT NOT NULL,
			name  TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (path, name)
		)`)
	}
	if err != nil {
		log.Warn().Err(err).Msg("attrs: sidecar database unavailable")
		s.dbFailed = true
		if db != nil {
			db.Close()
		}
		return nil
	}
	s.db = db
	return db
}

// rel keys sidecar rows by music-dir-relative path so the directory can be
// moved without orphaning its bookkeeping.
func (s *Store) rel(path string) string {
	if r, err := filepath.Rel(s.musicDir, path); err == nil {
		return r
	}
	return path
}

// Close releases the sidecar database, if open.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func unsupported(err error) bool {
	return errors.Is(err, syscall.ENOTSUP) || errors.Is(err, syscall.EOPNOTSUPP)
}
