// Package httpd is the hand-written HTTP front end: request parsing, byte
// ranges, response emission, per-route responders, and the accept loop.
// It speaks just enough HTTP/1.x for podcast clients: GET and HEAD,
// If-Modified-Since, single byte ranges, Connection: close.
package httpd

import (
	"bufio"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// Header is one request header, case preserved as received.
type Header struct {
	Name  string
	Value string
}

// Request is one parsed request. Immutable once parsed.
type Request struct {
	Method  string
	RawURL  string
	Version string
	Path    string // percent-decoded, query stripped
	Headers []Header
}

var versionPattern = regexp.MustCompile(`^HTTP/1\.\d+$`)

// podcastAgentPrefixes identifies podcast clients whose broken-pipe errors
// during streaming are routine (they probe with ranged requests and hang up).
var podcastAgentPrefixes = []string{
	"iTunes/",
	"AppleCoreMedia/",
	"Podcasts/",
	"Overcast/",
	"Pocket Casts",
	"Downcast/",
	"PodcastAddict/",
}

// ParseRequest reads one request (line + headers) from r.
// Violations come back as *Error: 505 for a non-1.x version, 405 for
// methods besides GET/HEAD, 400 for a bad request line, empty URL, or
// missing Host. Unparsable header lines are logged and skipped.
func ParseRequest(r *bufio.Reader, logger zerolog.Logger) (*Request, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, WrapError(400, "could not read request line", err)
	}
	parts := strings.Fields(line)
	if len(parts) != 3 {
		return nil, NewError(400, fmt.Sprintf("malformed request line %q", line))
	}
	req := &Request{Method: parts[0], RawURL: parts[1], Version: parts[2]}

	if !versionPattern.MatchString(req.Version) {
		return nil, NewError(505, fmt.Sprintf("version %q is not supported", req.Version))
	}
	if req.Method != "GET" && req.Method != "HEAD" {
		return nil, NewError(405, fmt.Sprintf("method %q is not allowed", req.Method))
	}
	if req.RawURL == "" {
		return nil, NewError(400, "empty URL")
	}

	if err := req.readHeaders(r, logger); err != nil {
		return nil, err
	}
	if req.Host() == "" {
		return nil, NewError(400, "missing Host header")
	}

	path, err := decodePath(req.RawURL)
	if err != nil {
		return nil, WrapError(400, "undecodable URL", err)
	}
	req.Path = path
	return req, nil
}

// readHeaders parses header lines until the blank terminator. Continuation
// lines (folded whitespace) append to the previous header's value.
func (req *Request) readHeaders(r *bufio.Reader, logger zerolog.Logger) error {
	for {
		line, err := readLine(r)
		if err != nil {
			return WrapError(400, "could not read headers", err)
		}
		if line == "" {
			return nil
		}
		if line[0] == ' ' || line[0] == '\t' {
			if n := len(req.Headers); n > 0 {
				req.Headers[n-1].Value += " " + strings.TrimSpace(line)
			} else {
				logger.Warn().Str("line", line).Msg("continuation line before any header, skipping")
			}
			continue
		}
		idx := strings.Index(line, ":")
		if idx <= 0 {
			logger.Warn().Str("line", line).Msg("unparsable header line, skipping")
			continue
		}
		req.Headers = append(req.Headers, Header{
			Name:  strings.TrimSpace(line[:idx]),
			Value: strings.TrimSpace(line[idx+1:]),
		})
	}
}

// Header returns the value of the named header ("" when absent). Lookup is
// case-insensitive even though stored names keep their received case.
func (req *Request) Header(name string) string {
	for _, h := range req.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// IsHead reports whether this is a HEAD request (same headers, no body).
func (req *Request) IsHead() bool { return req.Method == "HEAD" }

// Host returns the Host header value.
func (req *Request) Host() string { return req.Header("Host") }

// IsFromKnownPodcastAgent reports whether the User-Agent prefix-matches a
// known podcast client.
func (req *Request) IsFromKnownPodcastAgent() bool {
	ua := req.Header("User-Agent")
	for _, prefix := range podcastAgentPrefixes {
		if strings.HasPrefix(ua, prefix) {
			return true
		}
	}
	return false
}

// readLine reads up to CRLF or LF and returns the line without terminators.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// decodePath strips an absolute URL's scheme+host and any query string,
// then percent-decodes the rest as UTF-8. Encoded slashes decode like
// literal slashes.
func decodePath(rawURL string) (string, error) {
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
	return url.PathUnescape(p)
}
