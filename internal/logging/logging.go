// Package logging configures the process-wide zerolog logger: console
// output on stderr plus a count-rotated log file in the configured log
// directory. Log files rotate once per start; failure to open the file
// never prevents startup.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jakshin/mixcaster-sub000/internal/config"
)

const logFileName = "mixcaster.log"

// Setup installs the global logger per the log_level, log_dir, and
// log_max_count settings. Returns a closer for the log file (may be a no-op).
func Setup(settings *config.Settings) io.Closer {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(Level(settings.Get(config.KeyLogLevel)))

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}

	logDir := settings.LogDir()
	f, err := openLogFile(logDir, settings.Int(config.KeyLogMaxCount))
	if err != nil {
		log.Logger = zerolog.New(console).With().Timestamp().Logger()
		log.Warn().Err(err).Str("dir", logDir).Msg("logging: file sink disabled")
		return io.NopCloser(nil)
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, f)).With().Timestamp().Logger()
	return f
}

// Level maps a settings log level onto a zerolog level. ALL maps to trace.
func Level(name string) zerolog.Level {
	switch name {
	case "ERROR":
		return zerolog.ErrorLevel
	case "WARNING":
		return zerolog.WarnLevel
	case "INFO":
		return zerolog.InfoLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "ALL":
		return zerolog.TraceLevel
	}
	return zerolog.InfoLevel
}

// openLogFile rotates existing logs (mixcaster.log -> mixcaster.1.log, ...)
// keeping at most maxCount files, then opens a fresh mixcaster.log.
func openLogFile(dir string, maxCount int) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if maxCount < 1 {
		maxCount = 1
	}
	// Shift older files up, deleting the one that falls off the end.
	_ = os.Remove(rotatedName(dir, maxCount-1))
	for i := maxCount - 2; i >= 1; i-- {
		_ = os.Rename(rotatedName(dir, i), rotatedName(dir, i+1))
	}
	if maxCount > 1 {
		_ = os.Rename(filepath.Join(dir, logFileName), rotatedName(dir, 1))
	}
	return os.OpenFile(filepath.Join(dir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

func rotatedName(dir string, n int) string {
	return filepath.Join(dir, fmt.Sprintf("mixcaster.%s.log", strconv.Itoa(n)))
}
