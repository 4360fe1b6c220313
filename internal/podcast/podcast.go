// Package podcast models a feed and its episodes, serializes feeds to
// RSS 2.0 with iTunes extensions, and caches built feeds under a TTL.
package podcast

import "time"

// Podcast is one assembled feed for a music set.
type Podcast struct {
	UserID             string
	Title              string
	Link               string
	Language           string
	Description        string
	AuthorAndOwnerName string
	ImageURL           string
	CreatedAt          time.Time
	Episodes           []Episode
}

// Episode is one feed item.
type Episode struct {
	Title           string
	Description     string
	Link            string
	PubDate         time.Time
	Author          string
	DurationSeconds int
	ImageURL        string
	Enclosure       Enclosure
}

// Enclosure describes an episode's audio file: where podcast clients fetch
// it from us (LocalURL) and where we fetch it from the remote (RemoteURL).
type Enclosure struct {
	LocalURL     string
	RemoteURL    string
	LengthBytes  int64
	LastModified time.Time
	MimeType     string
}
