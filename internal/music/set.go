// Package music models which remote music a request refers to (the music
// set), maps request paths to servable files under the music directory, and
// guesses MIME types for served files.
package music

import (
	"fmt"
	"strings"
)

// Music types a feed can be built for.
const (
	TypeStream    = "stream"
	TypeShows     = "shows"
	TypeFavorites = "favorites"
	TypeHistory   = "history"
	TypePlaylist  = "playlist"
)

// Set identifies one feed: a username, an optional music type, and a
// playlist slug when the type is playlist.
type Set struct {
	Username     string
	MusicType    string // "" = user's default view
	PlaylistSlug string
}

// possessiveSuffixes are stripped from the end of a username, so
// "/alice's/shows" and "/alice/shows" name the same feed.
var possessiveSuffixes = []string{"'s", "’s", "‘s"}

// aliases maps accepted music-type spellings to their canonical names.
var aliases = map[string]string{
	TypeStream:    TypeStream,
	TypeShows:     TypeShows,
	"uploads":     TypeShows,
	TypeFavorites: TypeFavorites,
	TypeHistory:   TypeHistory,
	"listens":     TypeHistory,
	TypePlaylist:  TypePlaylist,
	"playlists":   TypePlaylist,
}

// NormalizeType maps a music-type spelling to its canonical name.
// Returns "" when the word is not a music type.
func NormalizeType(word string) string {
	return aliases[strings.ToLower(word)]
}

// NewSet builds a Set from a username, optional music type, and optional
// playlist slug, applying all normalizations.
func NewSet(username, musicType, playlistSlug string) (Set, error) {
	username = StripPossessive(strings.TrimSpace(username))
	if username == "" {
		return Set{}, fmt.Errorf("music set: empty username")
	}
	s := Set{Username: username, PlaylistSlug: playlistSlug}
	if musicType != "" {
		canonical := NormalizeType(musicType)
		if canonical == "" {
			return Set{}, fmt.Errorf("music set: unknown music type %q", musicType)
		}
		s.MusicType = canonical
	}
	if s.MusicType == TypePlaylist && s.PlaylistSlug == "" {
		return Set{}, fmt.Errorf("music set: playlist requires a slug")
	}
	if s.MusicType != TypePlaylist && s.PlaylistSlug != "" {
		return Set{}, fmt.Errorf("music set: slug given without playlist type")
	}
	return s, nil
}

// ParsePath builds a Set from a feed-shaped request path such as "/alice",
// "/alice/shows", or "/alice/playlist/summer-mix", with or without a
// trailing ".xml".
func ParsePath(path string) (Set, error) {
	path = strings.TrimSuffix(strings.Trim(path, "/"), ".xml")
	parts := strings.Split(path, "/")
	switch len(parts) {
	case 1:
		return NewSet(parts[0], "", "")
	case 2:
		return NewSet(parts[0], parts[1], "")
	case 3:
		if NormalizeType(parts[1]) != TypePlaylist {
			return Set{}, fmt.Errorf("music set: unrecognized path %q", path)
		}
		return NewSet(parts[0], parts[1], parts[2])
	}
	return Set{}, fmt.Errorf("music set: unrecognized path %q", path)
}

// LooksLikeFeed reports whether the path's shape names a feed rather than a
// file: "<user>", "<user>/<musicType>", or "<user>/playlist(s)/<slug>",
// where the first component contains no dot.
func LooksLikeFeed(path string) bool {
	trimmed := strings.TrimSuffix(strings.Trim(path, "/"), ".xml")
	if trimmed == "" {
		return false
	}
	parts := strings.Split(trimmed, "/")
	if strings.Contains(parts[0], ".") {
		return false
	}
	switch len(parts) {
	case 1:
		return true
	case 2:
		t := NormalizeType(parts[1])
		return t != "" && t != TypePlaylist
	case 3:
		return NormalizeType(parts[1]) == TypePlaylist && parts[2] != ""
	}
	return false
}

// StripPossessive removes a trailing possessive suffix from a username.
func StripPossessive(username string) string {
	for _, suffix := range possessiveSuffixes {
		if strings.HasSuffix(username, suffix) {
			return strings.TrimSuffix(username, suffix)
		}
	}
	return username
}

// Fingerprint is the feed cache key: "<user>'s <musicType>" or
// "<user>'s <playlistSlug>".
func (s Set) Fingerprint() string {
	if s.MusicType == TypePlaylist {
		return s.Username + "'s " + s.PlaylistSlug
	}
	return s.Username + "'s " + s.MusicType
}

func (s Set) String() string {
	if s.MusicType == TypePlaylist {
		return s.Username + "/" + TypePlaylist + "/" + s.PlaylistSlug
	}
	if s.MusicType == "" {
		return s.Username
	}
	return s.Username + "/" + s.MusicType
}
