// Package config holds the process-wide settings table. Settings are loaded
// from a "key = value" file plus MIXCASTER_* environment overrides, validated
// against per-key bounds, and swapped atomically so changes made at runtime
// are observed on the next read.
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Known settings keys.
const (
	KeyDownloadOldestFirst = "download_oldest_first"
	KeyDownloadThreads     = "download_threads"
	KeyEpisodeMaxCount     = "episode_max_count"
	KeyHTTPCacheTime       = "http_cache_time_seconds"
	KeyHTTPHostname        = "http_hostname"
	KeyHTTPPort            = "http_port"
	KeyLogDir              = "log_dir"
	KeyLogLevel            = "log_level"
	KeyLogMaxCount         = "log_max_count"
	KeyMetricsPort         = "metrics_port"
	KeyMusicDir            = "music_dir"
	KeySubscribedTo        = "subscribed_to"
	KeyUserAgent           = "user_agent"
	KeyWatchFile           = "watch_file"
	KeyWatchInterval       = "watch_interval_minutes"
)

// defaults is the complete settings table before any file or env override.
// Every key the program reads appears here; Get of an unknown key returns "".
var defaults = map[string]string{
	KeyDownloadOldestFirst: "false",
	KeyDownloadThreads:     "3",
	KeyEpisodeMaxCount:     "25",
	KeyHTTPCacheTime:       "3600",
	KeyHTTPHostname:        "localhost",
	KeyHTTPPort:            "6499",
	KeyLogDir:              "~/Library/Logs/Mixcaster",
	KeyLogLevel:            "INFO",
	KeyLogMaxCount:         "10",
	KeyMetricsPort:         "0",
	KeyMusicDir:            "~/Music/Mixcloud",
	KeySubscribedTo:        "",
	KeyUserAgent:           "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
	KeyWatchFile:           "",
	KeyWatchInterval:       "60",
}

// Settings is the live settings table. Reads see the most recently loaded
// snapshot; Load and Reload replace the snapshot wholesale.
type Settings struct {
	current atomic.Pointer[map[string]string]
	path    string // settings file, "" when running on defaults+env only
}

// Load builds a Settings from defaults, the optional settings file at path,
// and MIXCASTER_* environment overrides, in that order. Invalid values are
// replaced by their defaults with a warning; Load itself only fails when the
// file exists but cannot be read.
func Load(path string) (*Settings, error) {
	s := &Settings{path: path}
	table, err := buildTable(path)
	if err != nil {
		return nil, err
	}
	s.current.Store(&table)
	return s, nil
}

// Reload re-reads the settings file and swaps the table. Called by the
// fsnotify watcher; safe to call concurrently with readers.
func (s *Settings) Reload() error {
	table, err := buildTable(s.path)
	if err != nil {
		return err
	}
	s.current.Store(&table)
	return nil
}

// Path returns the settings file path given to Load ("" when none).
func (s *Settings) Path() string { return s.path }

// Get returns the current value of name, or "" for unknown keys.
func (s *Settings) Get(name string) string {
	t := s.current.Load()
	if t == nil {
		return defaults[name]
	}
	return (*t)[name]
}

// Int returns the setting as an int, falling back to the key's default when
// the stored value does not parse.
func (s *Settings) Int(name string) int {
	if n, err := strconv.Atoi(strings.TrimSpace(s.Get(name))); err == nil {
		return n
	}
	n, _ := strconv.Atoi(defaults[name])
	return n
}

// Bool returns the setting as a bool ("true", "1", "yes" are true).
func (s *Settings) Bool(name string) bool {
	v := strings.TrimSpace(s.Get(name))
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
}

// DownloadThreads returns the worker count in [1, 50]; "auto" means the
// logical CPU count, also clamped.
func (s *Settings) DownloadThreads() int {
	v := strings.TrimSpace(strings.ToLower(s.Get(KeyDownloadThreads)))
	var n int
	if v == "auto" {
		n = runtime.NumCPU()
	} else if parsed, err := strconv.Atoi(v); err == nil {
		n = parsed
	} else {
		n, _ = strconv.Atoi(defaults[KeyDownloadThreads])
	}
	if n < 1 {
		n = 1
	}
	if n > 50 {
		n = 50
	}
	return n
}

// MusicDir returns the music directory, tilde-expanded, with no trailing slash.
func (s *Settings) MusicDir() string {
	return strings.TrimSuffix(ExpandTilde(s.Get(KeyMusicDir)), string(os.PathSeparator))
}

// LogDir returns the log directory, tilde-expanded.
func (s *Settings) LogDir() string { return ExpandTilde(s.Get(KeyLogDir)) }

// WatchFile returns the watches file path, tilde-expanded; defaults to a
// watches.conf sibling of the settings file when unset.
func (s *Settings) WatchFile() string {
	if v := s.Get(KeyWatchFile); v != "" {
		return ExpandTilde(v)
	}
	if s.path == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(s.path), "watches.conf")
}

// SubscribedTo reports whether username appears in the whitespace-delimited
// subscribed_to setting. Comparison is case-insensitive.
func (s *Settings) SubscribedTo(username string) bool {
	for _, u := range strings.Fields(s.Get(KeySubscribedTo)) {
		if strings.EqualFold(u, username) {
			return true
		}
	}
	return false
}

// HostPort returns "hostname:port" for synthesizing local enclosure URLs
// when no request Host header is available (CLI and watcher paths).
func (s *Settings) HostPort() string {
	return s.Get(KeyHTTPHostname) + ":" + strconv.Itoa(s.Int(KeyHTTPPort))
}

// ExpandTilde replaces a leading "~" with the user's home directory.
func ExpandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}

func buildTable(path string) (map[string]string, error) {
	table := make(map[string]string, len(defaults))
	for k, v := range defaults {
		table[k] = v
	}
	if path != "" {
		if err := readSettingsFile(path, table); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(table)
	validate(table)
	return table, nil
}

// readSettingsFile reads "key = value" lines into table. Skips blank lines
// and # comments; unknown keys are kept so future readers still see them.
func readSettingsFile(path string, table map[string]string) error {
	path = filepath.Clean(path)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			log.Warn().Str("line", line).Msg("settings: skipping unparsable line")
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := unquote(strings.TrimSpace(line[idx+1:]))
		if key == "" {
			continue
		}
		table[key] = value
	}
	return sc.Err()
}

// applyEnvOverrides applies MIXCASTER_<UPPER_KEY> environment variables.
func applyEnvOverrides(table map[string]string) {
	for key := range defaults {
		env := "MIXCASTER_" + strings.ToUpper(key)
		if v, ok := os.LookupEnv(env); ok {
			table[key] = v
		}
	}
}

// validate replaces out-of-bounds numeric values with their defaults.
// Keys are checked in sorted order so repeated warnings are deterministic.
func validate(table map[string]string) {
	bounds := map[string][2]int{
		KeyEpisodeMaxCount: {1, 1 << 30},
		KeyHTTPCacheTime:   {0, 1 << 30},
		KeyHTTPPort:        {1024, 65535},
		KeyLogMaxCount:     {1, 1 << 30},
		KeyMetricsPort:     {0, 65535},
		KeyWatchInterval:   {1, 1 << 30},
	}
	keys := make([]string, 0, len(bounds))
	for k := range bounds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		b := bounds[key]
		n, err := strconv.Atoi(strings.TrimSpace(table[key]))
		if err != nil || n < b[0] || n > b[1] {
			log.Warn().Str("key", key).Str("value", table[key]).Str("default", defaults[key]).
				Msg("settings: invalid value, using default")
			table[key] = defaults[key]
		}
	}
	if v := table[KeyDownloadThreads]; !strings.EqualFold(strings.TrimSpace(v), "auto") {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err != nil || n < 1 || n > 50 {
			log.Warn().Str("key", KeyDownloadThreads).Str("value", v).
				Msg("settings: invalid value, using default")
			table[KeyDownloadThreads] = defaults[KeyDownloadThreads]
		}
	}
	level := strings.ToUpper(strings.TrimSpace(table[KeyLogLevel]))
	switch level {
	case "ERROR", "WARNING", "INFO", "DEBUG", "ALL":
		table[KeyLogLevel] = level
	default:
		log.Warn().Str("key", KeyLogLevel).Str("value", table[KeyLogLevel]).
			Msg("settings: invalid value, using default")
		table[KeyLogLevel] = defaults[KeyLogLevel]
	}
}

func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
