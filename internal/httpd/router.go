package httpd

import (
	"context"
	"strings"

	"github.com/jakshin/mixcaster-sub000/internal/music"
)

// responder serves one routed request. Responders return an error only
// before emitting anything; once headers are on the wire they handle their
// own failures and return nil.
type responder interface {
	respond(ctx context.Context, req *Request, rw *ResponseWriter) error
}

// route picks the responder for a request. Dispatch compares the path
// lowercased; feed-shaped paths serve the podcast even without an .xml
// suffix, so a username pasted into a podcast app just works.
func (s *Server) route(req *Request) responder {
	p := strings.ToLower(req.Path)
	switch {
	case p == "" || p == "/":
		return bannerResponder{}
	case strings.HasSuffix(p, "/favicon.ico"):
		return faviconResponder{}
	case strings.HasSuffix(p, ".xml"):
		return podcastResponder{srv: s}
	case strings.HasSuffix(p, "/"):
		if music.LooksLikeFeed(req.Path) {
			return podcastResponder{srv: s}
		}
		return folderResponder{srv: s}
	default:
		if music.LooksLikeFeed(req.Path) {
			return podcastResponder{srv: s}
		}
		return fileResponder{srv: s}
	}
}
