package httpd

import (
	"bufio"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func parse(t *testing.T, raw string) (*Request, error) {
	t.Helper()
	return ParseRequest(bufio.NewReader(strings.NewReader(raw)), zerolog.Nop())
}

func TestParseRequest(t *testing.T) {
	req, err := parse(t, "GET /alice/shows.xml HTTP/1.1\r\nHost: localhost:6499\r\nUser-Agent: Overcast/3.0\r\n\r\n")
	if err != nil {
		t.Fatal(err)
	}
	if req.Method != "GET" || req.RawURL != "/alice/shows.xml" || req.Version != "HTTP/1.1" {
		t.Errorf("parsed %+v", req)
	}
	if req.Path != "/alice/shows.xml" {
		t.Errorf("Path = %q", req.Path)
	}
	if req.Host() != "localhost:6499" {
		t.Errorf("Host() = %q", req.Host())
	}
	if !req.IsFromKnownPodcastAgent() {
		t.Error("Overcast should be a known podcast agent")
	}
	if req.IsHead() {
		t.Error("GET is not HEAD")
	}
}

func TestParseRequestErrors(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantCode int
	}{
		{"http2", "GET / HTTP/2.0\r\nHost: x\r\n\r\n", 505},
		{"post", "POST / HTTP/1.1\r\nHost: x\r\n\r\n", 405},
		{"delete", "DELETE / HTTP/1.0\r\nHost: x\r\n\r\n", 405},
		{"missing host", "GET / HTTP/1.1\r\n\r\n", 400},
		{"garbage request line", "NONSENSE\r\n\r\n", 400},
		{"empty input", "", 400},
	}
	for _, tt := range tests {
		_, err := parse(t, tt.raw)
		var httpErr *Error
		if !errors.As(err, &httpErr) {
			t.Errorf("%s: error = %v, want *Error", tt.name, err)
			continue
		}
		if httpErr.Code != tt.wantCode {
			t.Errorf("%s: code = %d, want %d", tt.name, httpErr.Code, tt.wantCode)
		}
	}
}

func TestParseRequestContinuationLine(t *testing.T) {
	req, err := parse(t, "GET / HTTP/1.1\r\nHost: localhost\r\nX-Long: first part\r\n  second part\r\n\r\n")
	if err != nil {
		t.Fatal(err)
	}
	if got := req.Header("X-Long"); got != "first part second part" {
		t.Errorf("folded header = %q", got)
	}
}

func TestParseRequestSkipsUnparsableHeaders(t *testing.T) {
	req, err := parse(t, "GET / HTTP/1.1\r\nHost: localhost\r\nno-colon-here\r\nGood: yes\r\n\r\n")
	if err != nil {
		t.Fatal(err)
	}
	if got := req.Header("Good"); got != "yes" {
		t.Errorf("Good = %q", got)
	}
	if len(req.Headers) != 2 {
		t.Errorf("headers = %+v", req.Headers)
	}
}

func TestHeaderLookupIsCaseInsensitive(t *testing.T) {
	req, err := parse(t, "GET / HTTP/1.1\r\nhOsT: localhost\r\n\r\n")
	if err != nil {
		t.Fatal(err)
	}
	if req.Host() != "localhost" {
		t.Errorf("Host() = %q", req.Host())
	}
}

func TestDecodePath(t *testing.T) {
	tests := []struct{ raw, want string }{
		{"/alice/shows", "/alice/shows"},
		{"http://localhost:6499/alice/shows", "/alice/shows"},
		{"https://example.com/x", "/x"},
		{"http://example.com", "/"},
		{"/alice/show%201.m4a", "/alice/show 1.m4a"},
		{"/alice%2Fshows", "/alice/shows"},
		{"/alice?x=1", "/alice"},
	}
	for _, tt := range tests {
		got, err := decodePath(tt.raw)
		if err != nil {
			t.Errorf("decodePath(%q) error: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("decodePath(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
