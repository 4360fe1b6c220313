package music

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalPath maps a request URL to a path beneath musicDir. The scheme+host
// prefix and query string are stripped, percent-escapes are decoded as
// UTF-8 (encoded slashes decode like literal slashes), and the result is
// joined under musicDir. Traversal that would escape musicDir reduces to
// musicDir itself, so downstream lookups see a missing file, not a foreign
// one.
func LocalPath(rawURL, musicDir string) (string, error) {
	p := rawURL
	for _, scheme := range []string{"http://", "https://"} {
		if strings.HasPrefix(strings.ToLower(p), scheme) {
			rest := p[len(scheme):]
			if i := strings.Index(rest, "/"); i >= 0 {
				p = rest[i:]
			} else {
				p = "/"
			}
			break
		}
	}
	if i := strings.Index(p, "?"); i >= 0 {
		p = p[:i]
	}
	decoded, err := url.PathUnescape(p)
	if err != nil {
		return "", err
	}
	musicDir = filepath.Clean(musicDir)
	joined := filepath.Join(musicDir, filepath.FromSlash(decoded))
	if !within(joined, musicDir) {
		return musicDir, nil
	}
	return joined, nil
}

// Contained reports whether path still lies beneath musicDir after symlink
// resolution. Nonexistent paths are checked lexically; responders treat a
// false result as forbidden.
func Contained(path, musicDir string) bool {
	canonDir := canonical(musicDir)
	canonPath := canonical(path)
	return within(canonPath, canonDir)
}

func canonical(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	if abs, err := filepath.Abs(path); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(path)
}

func within(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(os.PathSeparator))
}
