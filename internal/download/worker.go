package download

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const copyBufSize = 64 * 1024

// mkdirMu serializes destination-directory creation across all workers so
// concurrent downloads into a new user directory do not race mkdir.
var mkdirMu sync.Mutex

// fetch downloads d.RemoteURL into d.LocalPath via a .part staging file.
// On success the staged file carries the remote's last-modified time and is
// renamed into place atomically (same filesystem). On failure the .part
// file stays on disk; the connection is closed rather than reused.
func (q *Queue) fetch(d Download) error {
	req, err := http.NewRequest(http.MethodGet, d.RemoteURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if ua := q.opts.UserAgent(); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	req.Header.Set("Referer", d.RemoteURL)

	resp, err := q.opts.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		// Abandon the body so the transport drops this connection instead
		// of reusing it.
		return fmt.Errorf("get %s: %s", d.RemoteURL, resp.Status)
	}

	mkdirMu.Lock()
	err = os.MkdirAll(filepath.Dir(d.LocalPath), 0o755)
	mkdirMu.Unlock()
	if err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	partPath := d.LocalPath + ".part"
	if fi, err := os.Lstat(partPath); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(partPath); err != nil {
			return fmt.Errorf("remove symlinked part file: %w", err)
		}
	}
	f, err := os.OpenFile(partPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|noFollowFlag, 0o644)
	if err != nil {
		return fmt.Errorf("open part file: %w", err)
	}
	if q.opts.Attrs != nil {
		q.opts.Attrs.TouchLastUsed(partPath)
	}

	expected := resp.ContentLength
	if expected <= 0 {
		expected = d.LengthBytes
	}
	if err := copyWithProgress(f, resp.Body, expected, filepath.Base(d.LocalPath)); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync part file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close part file: %w", err)
	}

	if !d.LastModified.IsZero() {
		if err := os.Chtimes(partPath, time.Now(), d.LastModified); err != nil {
			return fmt.Errorf("set modified time: %w", err)
		}
	}

	// Same-filesystem rename; delete a stale target first so the rename
	// itself stays atomic.
	if _, err := os.Stat(d.LocalPath); err == nil {
		if err := os.Remove(d.LocalPath); err != nil {
			return fmt.Errorf("remove stale target: %w", err)
		}
	}
	if err := os.Rename(partPath, d.LocalPath); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// copyWithProgress streams src to dst in 64 KiB chunks, printing a progress
// line each time the integer percentage crosses a new multiple of ten
// (below 100). expected <= 0 disables progress.
func copyWithProgress(dst io.Writer, src io.Reader, expected int64, name string) error {
	buf := make([]byte, copyBufSize)
	var written int64
	lastThreshold := 0
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			written += int64(n)
			if expected > 0 {
				pct := int(written * 100 / expected)
				if t := pct / 10 * 10; t > lastThreshold && t < 100 {
					lastThreshold = t
					fmt.Printf("  %d%% %s\n", t, name)
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
