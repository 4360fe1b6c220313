package httpd

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func readResponse(t *testing.T, buf *bytes.Buffer, req *http.Request) *http.Response {
	t.Helper()
	resp, err := http.ReadResponse(bufio.NewReader(buf), req)
	if err != nil {
		t.Fatalf("unparsable response: %v\n%s", err, buf.String())
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestWriteSuccessCommonHeaders(t *testing.T) {
	var buf bytes.Buffer
	rw := NewResponseWriter(&buf)
	rw.now = func() time.Time { return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC) }
	lastMod := time.Date(2026, time.February, 1, 9, 30, 0, 0, time.UTC)

	rw.WriteSuccess("audio/mp4", 5, lastMod)
	rw.Write([]byte("hello"))
	rw.Flush()

	raw := buf.String()
	if !strings.HasPrefix(raw, "HTTP/1.1 200 OK\r\n") {
		t.Errorf("status line wrong:\n%s", raw)
	}
	resp := readResponse(t, &buf, nil)
	if got := resp.Header.Get("Date"); got != "Sun, 01 Mar 2026 12:00:00 GMT" {
		t.Errorf("Date = %q", got)
	}
	if got := resp.Header.Get("Server"); !strings.HasPrefix(got, "mixcaster/") || !strings.Contains(got, "(") {
		t.Errorf("Server = %q", got)
	}
	// http.ReadResponse deletes "close" from the Connection header while
	// parsing (net/http shouldClose), so check the raw bytes instead.
	if !strings.Contains(raw, "Connection: close\r\n") {
		t.Errorf("Connection header missing:\n%s", raw)
	}
	if got := resp.Header.Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q", got)
	}
	if got := resp.Header.Get("Last-Modified"); got != "Sun, 01 Feb 2026 09:30:00 GMT" {
		t.Errorf("Last-Modified = %q", got)
	}
	if got := resp.Header.Get("Content-Length"); got != "5" {
		t.Errorf("Content-Length = %q", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "hello" {
		t.Errorf("body = %q", body)
	}
}

func TestWritePartial(t *testing.T) {
	var buf bytes.Buffer
	rw := NewResponseWriter(&buf)
	rw.WritePartial("audio/mpeg", ByteRange{Start: 800, End: 999}, 1000, time.Now())
	rw.Flush()

	resp := readResponse(t, &buf, nil)
	if resp.StatusCode != 206 {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Range"); got != "bytes 800-999/1000" {
		t.Errorf("Content-Range = %q", got)
	}
	if got := resp.Header.Get("Content-Length"); got != "200" {
		t.Errorf("Content-Length = %q", got)
	}
}

func TestWriteNotModified(t *testing.T) {
	var buf bytes.Buffer
	rw := NewResponseWriter(&buf)
	rw.WriteNotModified()
	rw.Flush()

	resp := readResponse(t, &buf, nil)
	if resp.StatusCode != 304 {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestWriteRedirect(t *testing.T) {
	var buf bytes.Buffer
	rw := NewResponseWriter(&buf)
	rw.WriteRedirect(nil, "/alice/shows/")
	rw.Flush()

	resp := readResponse(t, &buf, nil)
	if resp.StatusCode != 301 {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != "/alice/shows/" {
		t.Errorf("Location = %q", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "/alice/shows/") {
		t.Errorf("body = %q", body)
	}
}

func TestWriteError(t *testing.T) {
	var buf bytes.Buffer
	rw := NewResponseWriter(&buf)
	rw.WriteError(nil, NewError(404, "There's no file at /nope"))
	rw.Flush()

	resp := readResponse(t, &buf, nil)
	if resp.StatusCode != 404 {
		t.Errorf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "404") || !strings.Contains(string(body), "There's no file at /nope") {
		t.Errorf("body = %q", body)
	}
	if !strings.Contains(string(body), "Not Found") {
		t.Errorf("body should carry the reason phrase, got %q", body)
	}
}

func TestWriteErrorHeadOmitsBody(t *testing.T) {
	var buf bytes.Buffer
	rw := NewResponseWriter(&buf)
	head := &Request{Method: "HEAD"}
	rw.WriteError(head, NewError(404, "gone"))
	rw.Flush()

	raw := buf.String()
	_, body, found := strings.Cut(raw, "\r\n\r\n")
	if !found {
		t.Fatalf("no header terminator:\n%s", raw)
	}
	if body != "" {
		t.Errorf("HEAD error response carried a body: %q", body)
	}
	if !strings.Contains(raw, "Content-Length: ") {
		t.Error("HEAD error response should state the would-be Content-Length")
	}
}

func TestWriteErrorWrapsUnknownErrors(t *testing.T) {
	var buf bytes.Buffer
	rw := NewResponseWriter(&buf)
	rw.WriteError(nil, io.ErrUnexpectedEOF)
	rw.Flush()

	resp := readResponse(t, &buf, nil)
	if resp.StatusCode != 500 {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestNotModifiedSince(t *testing.T) {
	lastMod := time.Date(2026, time.February, 1, 9, 30, 0, 500_000_000, time.UTC)
	tests := []struct {
		name string
		ims  string
		want bool
	}{
		{"no header", "", false},
		{"same second", "Sun, 01 Feb 2026 09:30:00 GMT", true},
		{"later", "Sun, 01 Feb 2026 10:00:00 GMT", true},
		{"earlier", "Sun, 01 Feb 2026 09:00:00 GMT", false},
		{"unparsable", "not a date", false},
	}
	for _, tt := range tests {
		req := &Request{Headers: []Header{{Name: "If-Modified-Since", Value: tt.ims}}}
		if got := req.NotModifiedSince(lastMod); got != tt.want {
			t.Errorf("%s: NotModifiedSince = %v, want %v", tt.name, got, tt.want)
		}
	}
}
