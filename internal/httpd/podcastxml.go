package httpd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jakshin/mixcaster-sub000/internal/download"
	"github.com/jakshin/mixcaster-sub000/internal/metrics"
	"github.com/jakshin/mixcaster-sub000/internal/mixcloud"
	"github.com/jakshin/mixcaster-sub000/internal/music"
	"github.com/jakshin/mixcaster-sub000/internal/podcast"
)

// podcastResponder builds and serves a podcast feed as RSS XML, caching the
// built feed and queueing downloads of any episodes not yet on disk.
type podcastResponder struct{ srv *Server }

func (pr podcastResponder) respond(ctx context.Context, req *Request, rw *ResponseWriter) error {
	set, err := music.ParsePath(req.Path)
	if err != nil {
		return WrapError(404, fmt.Sprintf("No podcast matches %s", req.Path), err)
	}
	if set.MusicType == "" {
		if err := pr.fillDefaultType(ctx, &set); err != nil {
			return mapRemoteError(err)
		}
	}

	p, err := pr.podcastFor(ctx, set, req.Host())
	if err != nil {
		return mapRemoteError(err)
	}
	if len(p.Episodes) == 0 {
		return NewError(404, fmt.Sprintf("%s has no episodes", set.Fingerprint()))
	}
	if req.NotModifiedSince(p.CreatedAt) {
		rw.WriteNotModified()
		return nil
	}

	pr.queueMissing(p)

	body, err := podcast.Serialize(p)
	if err != nil {
		return WrapError(500, "The feed could not be serialized", err)
	}
	rw.WriteSuccess("text/xml; charset=UTF-8", int64(len(body)), p.CreatedAt)
	if !req.IsHead() {
		rw.Write(body)
	}
	return nil
}

// fillDefaultType resolves a bare-username feed to the user's default view,
// memoized per username.
func (pr podcastResponder) fillDefaultType(ctx context.Context, set *music.Set) error {
	if mt, ok := pr.srv.views.Get(set.Username); ok {
		set.MusicType = mt
		return nil
	}
	mt, err := pr.srv.client.DefaultMusicType(ctx, set.Username)
	if err != nil {
		return err
	}
	pr.srv.views.Put(set.Username, mt)
	set.MusicType = mt
	return nil
}

// podcastFor returns the cached feed or builds it, collapsing concurrent
// builds of the same fingerprint into one remote query.
func (pr podcastResponder) podcastFor(ctx context.Context, set music.Set, hostPort string) (*podcast.Podcast, error) {
	fingerprint := set.Fingerprint()
	if p, ok := pr.srv.feeds.Get(fingerprint); ok {
		metrics.FeedCache.WithLabelValues("hit").Inc()
		return p, nil
	}
	metrics.FeedCache.WithLabelValues("miss").Inc()

	v, err, _ := pr.srv.group.Do(fingerprint, func() (any, error) {
		// A concurrent caller may have filled the cache while we queued.
		if p, ok := pr.srv.feeds.Get(fingerprint); ok {
			return p, nil
		}
		p, err := pr.srv.client.Podcast(ctx, set, hostPort, pr.srv.settings.MusicDir())
		if err != nil {
			return nil, err
		}
		pr.srv.feeds.Put(fingerprint, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*podcast.Podcast), nil
}

// queueMissing enqueues downloads for episodes not yet on disk and kicks the
// queue if anything new landed in it.
func (pr podcastResponder) queueMissing(p *podcast.Podcast) {
	musicDir := pr.srv.settings.MusicDir()
	queued := false
	for i := range p.Episodes {
		ep := &p.Episodes[i]
		d := download.Download{
			RemoteURL:    ep.Enclosure.RemoteURL,
			LengthBytes:  ep.Enclosure.LengthBytes,
			LastModified: ep.Enclosure.LastModified,
			LocalPath:    mixcloud.LocalPathFor(ep, musicDir),
		}
		if pr.srv.queue.Enqueue(d) {
			queued = true
		}
	}
	if queued {
		pr.srv.queue.ProcessQueue(nil)
	}
}

// mapRemoteError turns feed-build failures into HTTP errors: unknown users
// and playlists are the client's mistake, everything else is on us.
func mapRemoteError(err error) error {
	var userErr *mixcloud.UserNotFoundError
	if errors.As(err, &userErr) {
		return WrapError(404, userErr.Error(), err)
	}
	var playlistErr *mixcloud.PlaylistNotFoundError
	if errors.As(err, &playlistErr) {
		return WrapError(404, playlistErr.Error(), err)
	}
	return WrapError(500, "The remote service could not be queried", err)
}
