package httpd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/jakshin/mixcaster-sub000/internal/music"
)

// fileResponder streams a file from the music directory, honoring
// If-Modified-Since and single byte ranges.
type fileResponder struct{ srv *Server }

func (fr fileResponder) respond(_ context.Context, req *Request, rw *ResponseWriter) error {
	musicDir := fr.srv.settings.MusicDir()
	localPath, err := music.LocalPath(req.RawURL, musicDir)
	if err != nil {
		return WrapError(404, fmt.Sprintf("There's no file at %s", req.Path), err)
	}
	if localPath == filepath.Clean(musicDir) {
		// traversal attempts reduce to the music dir itself
		return NewError(404, fmt.Sprintf("There's no file at %s", req.Path))
	}
	if !music.Contained(localPath, musicDir) {
		return NewError(403, "That path is outside the music directory")
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return NewError(404, fmt.Sprintf("There's no file at %s", req.Path))
	}
	if info.IsDir() {
		rw.WriteRedirect(req, escapedPath(req.Path)+"/")
		return nil
	}

	fr.srv.attrs.TouchLastUsed(localPath)

	if req.NotModifiedSince(info.ModTime()) {
		rw.WriteNotModified()
		return nil
	}
	rng, err := req.ResolveRange(info.Size())
	if err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return WrapError(404, fmt.Sprintf("There's no file at %s", req.Path), err)
	}
	defer f.Close()

	contentType := music.MimeType(localPath)
	if rng == nil {
		rw.WriteSuccess(contentType, info.Size(), info.ModTime())
		if req.IsHead() {
			return nil
		}
		fr.stream(req, rw, f, info.Size())
		return nil
	}

	rw.WritePartial(contentType, *rng, info.Size(), info.ModTime())
	if req.IsHead() {
		return nil
	}
	if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
		log.Error().Err(err).Str("path", localPath).Msg("httpd: seek failed mid-response")
		return nil
	}
	fr.stream(req, rw, f, rng.Length())
	return nil
}

// stream copies n bytes to the client in 64 KiB chunks. Headers are already
// on the wire, so failures are logged, not turned into error responses.
// Podcast clients routinely hang up mid-range; that's an Info, not an Error.
func (fr fileResponder) stream(req *Request, rw *ResponseWriter, f *os.File, n int64) {
	buf := make([]byte, copyBufSize)
	_, err := io.CopyBuffer(rw, io.LimitReader(f, n), buf)
	if err == nil {
		return
	}
	if clientGone(err) && req.IsFromKnownPodcastAgent() {
		log.Info().Str("agent", req.Header("User-Agent")).Msg("httpd: podcast client closed the connection early")
		return
	}
	log.Error().Err(err).Msg("httpd: streaming failed mid-response")
}

func clientGone(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, net.ErrClosed)
}

// folderResponder handles trailing-slash paths: files reached with a slash
// redirect to their real URL, and directory listings are refused.
type folderResponder struct{ srv *Server }

func (fo folderResponder) respond(_ context.Context, req *Request, rw *ResponseWriter) error {
	musicDir := fo.srv.settings.MusicDir()
	localPath, err := music.LocalPath(strings.TrimSuffix(req.RawURL, "/"), musicDir)
	if err != nil {
		return WrapError(404, fmt.Sprintf("There's no folder at %s", req.Path), err)
	}
	if localPath == filepath.Clean(musicDir) {
		return NewError(404, fmt.Sprintf("There's no folder at %s", req.Path))
	}
	if !music.Contained(localPath, musicDir) {
		return NewError(403, "That path is outside the music directory")
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return NewError(404, fmt.Sprintf("There's no folder at %s", req.Path))
	}
	if !info.IsDir() {
		rw.WriteRedirect(req, escapedPath(strings.TrimSuffix(req.Path, "/")))
		return nil
	}
	return NewError(403, "Folder listings are not available")
}

// escapedPath re-encodes a decoded request path for a Location header; the
// decoded form may hold spaces or other bytes that don't belong on the wire.
func escapedPath(p string) string {
	return (&url.URL{Path: p}).EscapedPath()
}
