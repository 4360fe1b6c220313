package music

import (
	"mime"
	"path/filepath"
	"strings"
)

// audioTypes covers the enclosure formats the remote actually serves, so
// MIME guessing does not depend on the host's mime.types database.
var audioTypes = map[string]string{
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".m4b":  "audio/mp4",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".oga":  "audio/ogg",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".wav":  "audio/wav",
	".webm": "video/webm",
}

// MimeType guesses the Content-Type for a file name by extension.
// Unknown extensions come back as application/octet-stream.
func MimeType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
