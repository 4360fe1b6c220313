package music

import "testing"

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		word string
		want string
	}{
		{"stream", "stream"},
		{"shows", "shows"},
		{"uploads", "shows"},
		{"favorites", "favorites"},
		{"history", "history"},
		{"listens", "history"},
		{"playlist", "playlist"},
		{"playlists", "playlist"},
		{"SHOWS", "shows"},
		{"mixtapes", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeType(tt.word); got != tt.want {
			t.Errorf("NormalizeType(%q) = %q, want %q", tt.word, got, tt.want)
		}
	}
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		path    string
		want    Set
		wantErr bool
	}{
		{"/alice", Set{Username: "alice"}, false},
		{"/alice.xml", Set{Username: "alice"}, false},
		{"/alice/shows", Set{Username: "alice", MusicType: "shows"}, false},
		{"/alice/uploads.xml", Set{Username: "alice", MusicType: "shows"}, false},
		{"/alice's/favorites", Set{Username: "alice", MusicType: "favorites"}, false},
		{"/alice’s/listens/", Set{Username: "alice", MusicType: "history"}, false},
		{"/alice/playlist/summer-mix", Set{Username: "alice", MusicType: "playlist", PlaylistSlug: "summer-mix"}, false},
		{"/alice/playlists/summer-mix.xml", Set{Username: "alice", MusicType: "playlist", PlaylistSlug: "summer-mix"}, false},
		{"/alice/mixtapes", Set{}, true},
		{"/alice/shows/extra", Set{}, true},
		{"/alice/playlist", Set{}, true},
		{"/", Set{}, true},
	}
	for _, tt := range tests {
		got, err := ParsePath(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParsePath(%q) = %+v, want %+v", tt.path, got, tt.want)
		}
	}
}

func TestLooksLikeFeed(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/alice", true},
		{"/alice/", true},
		{"/alice/shows", true},
		{"/alice/listens", true},
		{"/alice/playlist/summer-mix", true},
		{"/alice/playlist", false},       // playlist needs a slug
		{"/alice/shows/extra", false},    // playlist is the only 3-part shape
		{"/alice/mixtapes", false},       // not a music type
		{"/some-file.m4a", false},        // dot in first component
		{"/alice/some-file.m4a", false},  // second part is not a music type
		{"/", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := LooksLikeFeed(tt.path); got != tt.want {
			t.Errorf("LooksLikeFeed(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestStripPossessive(t *testing.T) {
	tests := []struct{ in, want string }{
		{"alice's", "alice"},
		{"alice’s", "alice"},
		{"alice‘s", "alice"},
		{"alice", "alice"},
		{"s", "s"},
	}
	for _, tt := range tests {
		if got := StripPossessive(tt.in); got != tt.want {
			t.Errorf("StripPossessive(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFingerprint(t *testing.T) {
	s := Set{Username: "alice", MusicType: TypeShows}
	if got := s.Fingerprint(); got != "alice's shows" {
		t.Errorf("Fingerprint() = %q", got)
	}
	p := Set{Username: "alice", MusicType: TypePlaylist, PlaylistSlug: "summer-mix"}
	if got := p.Fingerprint(); got != "alice's summer-mix" {
		t.Errorf("playlist Fingerprint() = %q", got)
	}
}
