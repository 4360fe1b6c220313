package mixcloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jakshin/mixcaster-sub000/internal/music"
	"github.com/jakshin/mixcaster-sub000/internal/podcast"
)

const headConcurrency = 8

// Podcast builds the feed for one music set. hostPort is what episode
// enclosure URLs point back at (the request's Host header, or the
// configured hostname:port for CLI and watcher builds); musicDir is where
// already-downloaded enclosures are looked for.
func (c *Client) Podcast(ctx context.Context, set music.Set, hostPort, musicDir string) (*podcast.Podcast, error) {
	if set.MusicType == "" {
		return nil, fmt.Errorf("mixcloud: music set has no type")
	}
	profile, err := c.profile(ctx, set.Username)
	if err != nil {
		return nil, err
	}
	if set.MusicType == music.TypePlaylist {
		return c.playlistPodcast(ctx, set, profile, hostPort, musicDir)
	}

	casts, err := c.pageFeed(ctx, set)
	if err != nil {
		return nil, err
	}
	p := &podcast.Podcast{
		UserID:             profile.ID,
		Title:              fmt.Sprintf("%s's %s", profile.DisplayName, set.MusicType),
		Link:               fmt.Sprintf("%s/%s/%s/", remoteWeb, set.Username, connectionFields[set.MusicType]),
		Language:           "en",
		Description:        c.describe(profile, ""),
		AuthorAndOwnerName: profile.DisplayName,
		CreatedAt:          time.Now(),
	}
	if profile.Picture != nil {
		p.ImageURL = profile.Picture.URL
	}
	if err := c.fillEpisodes(ctx, p, casts, set, hostPort, musicDir); err != nil {
		return nil, err
	}
	return p, nil
}

// playlistPodcast assembles a feed from a playlist node; the playlist's own
// picture wins, falling back to the owner's.
func (c *Client) playlistPodcast(ctx context.Context, set music.Set, profile *wireProfile, hostPort, musicDir string) (*podcast.Podcast, error) {
	pl, casts, err := c.pagePlaylist(ctx, set)
	if err != nil {
		return nil, err
	}
	p := &podcast.Podcast{
		UserID:             profile.ID,
		Title:              pl.Name,
		Link:               fmt.Sprintf("%s/%s/playlists/%s/", remoteWeb, set.Username, pl.Slug),
		Language:           "en",
		Description:        c.describe(profile, pl.Description),
		AuthorAndOwnerName: profile.DisplayName,
		CreatedAt:          time.Now(),
	}
	if pl.Picture != nil && pl.Picture.URL != "" {
		p.ImageURL = pl.Picture.URL
	} else if profile.Picture != nil {
		p.ImageURL = profile.Picture.URL
	}
	if err := c.fillEpisodes(ctx, p, casts, set, hostPort, musicDir); err != nil {
		return nil, err
	}
	return p, nil
}

// DefaultMusicType returns the user's default view: the first of stream,
// shows, favorites, history that has any items. A user with none of them
// still gets a stream feed (which will then 404 as empty).
func (c *Client) DefaultMusicType(ctx context.Context, username string) (string, error) {
	var data wireFeedData
	if err := c.query(ctx, "default view", defaultViewQuery, lookupVars(username), &data); err != nil {
		return "", err
	}
	u := data.User
	if u == nil {
		return "", &UserNotFoundError{Username: username}
	}
	switch {
	case u.Stream != nil && len(u.Stream.Edges) > 0:
		return music.TypeStream, nil
	case u.Uploads != nil && len(u.Uploads.Edges) > 0:
		return music.TypeShows, nil
	case u.Favorites != nil && len(u.Favorites.Edges) > 0:
		return music.TypeFavorites, nil
	case u.History != nil && len(u.History.Edges) > 0:
		return music.TypeHistory, nil
	}
	return music.TypeStream, nil
}

func (c *Client) profile(ctx context.Context, username string) (*wireProfile, error) {
	var data wireProfileData
	if err := c.query(ctx, "profile", profileQuery, lookupVars(username), &data); err != nil {
		return nil, err
	}
	if data.User == nil {
		return nil, &UserNotFoundError{Username: username}
	}
	return data.User, nil
}

// pageFeed walks the music type's cursor-paginated connection, 20 items a
// page, until the page reports no successor or episode_max_count is hit.
func (c *Client) pageFeed(ctx context.Context, set music.Set) ([]wireCloudcast, error) {
	query := pageQuery(set.MusicType)
	max := c.maxEpisodes()
	var casts []wireCloudcast
	after := ""
	for len(casts) < max {
		vars := lookupVars(set.Username)
		vars["first"] = pageSize
		if after != "" {
			vars["after"] = after
		}
		var data wireFeedData
		if err := c.query(ctx, set.MusicType+" feed", query, vars, &data); err != nil {
			return nil, err
		}
		if data.User == nil {
			return nil, &UserNotFoundError{Username: set.Username}
		}
		var page wirePageInfo
		switch set.MusicType {
		case music.TypeHistory:
			if data.User.History == nil {
				return casts, nil
			}
			for _, e := range data.User.History.Edges {
				casts = append(casts, e.Node.Cloudcast)
			}
			page = data.User.History.PageInfo
		default:
			conn := data.User.Stream
			if set.MusicType == music.TypeShows {
				conn = data.User.Uploads
			} else if set.MusicType == music.TypeFavorites {
				conn = data.User.Favorites
			}
			if conn == nil {
				return casts, nil
			}
			for _, e := range conn.Edges {
				casts = append(casts, e.Node)
			}
			page = conn.PageInfo
		}
		if !page.HasNextPage || page.EndCursor == "" {
			break
		}
		after = page.EndCursor
	}
	if len(casts) > max {
		casts = casts[:max]
	}
	return casts, nil
}

func (c *Client) pagePlaylist(ctx context.Context, set music.Set) (*wirePlaylist, []wireCloudcast, error) {
	query := playlistQuery()
	max := c.maxEpisodes()
	var pl *wirePlaylist
	var casts []wireCloudcast
	after := ""
	for len(casts) < max {
		vars := lookupVars(set.Username)
		vars["slug"] = set.PlaylistSlug
		vars["first"] = pageSize
		if after != "" {
			vars["after"] = after
		}
		var data wireFeedData
		if err := c.query(ctx, "playlist feed", query, vars, &data); err != nil {
			return nil, nil, err
		}
		if data.User == nil {
			return nil, nil, &UserNotFoundError{Username: set.Username}
		}
		if data.User.Playlist == nil {
			return nil, nil, &PlaylistNotFoundError{Username: set.Username, Slug: set.PlaylistSlug}
		}
		pl = data.User.Playlist
		if pl.Items == nil {
			break
		}
		for _, e := range pl.Items.Edges {
			casts = append(casts, e.Node.Cloudcast)
		}
		if !pl.Items.PageInfo.HasNextPage || pl.Items.PageInfo.EndCursor == "" {
			break
		}
		after = pl.Items.PageInfo.EndCursor
	}
	if len(casts) > max {
		casts = casts[:max]
	}
	return pl, casts, nil
}

// fillEpisodes maps cloudcasts to episodes, resolves enclosure metadata,
// and drops episodes whose last-modified never got populated.
func (c *Client) fillEpisodes(ctx context.Context, p *podcast.Podcast, casts []wireCloudcast, set music.Set, hostPort, musicDir string) error {
	var seen map[string]bool
	if set.MusicType == music.TypeHistory {
		seen = make(map[string]bool) // history lists replays; keep first occurrence
	}
	var episodes []podcast.Episode
	for i := range casts {
		ep, err := c.episodeFrom(&casts[i], set, hostPort)
		if err != nil {
			var decErr *DecoderError
			if errors.As(err, &decErr) || isEpisodeLocal(err) {
				log.Warn().Err(err).Str("slug", casts[i].Slug).Msg("mixcloud: skipping episode")
				continue
			}
			return err
		}
		if ep == nil {
			continue // exclusive or not playable, already logged
		}
		if seen != nil {
			if seen[ep.Enclosure.RemoteURL] {
				continue
			}
			seen[ep.Enclosure.RemoteURL] = true
		}
		episodes = append(episodes, *ep)
	}

	if err := c.resolveEnclosures(ctx, episodes, musicDir); err != nil {
		return err
	}
	for i := range episodes {
		if episodes[i].Enclosure.LastModified.IsZero() {
			log.Warn().Str("url", episodes[i].Enclosure.RemoteURL).
				Msg("mixcloud: dropping episode without enclosure metadata")
			continue
		}
		p.Episodes = append(p.Episodes, episodes[i])
	}
	return nil
}

// episodeLocalError marks per-episode failures that skip the episode
// instead of failing the query (bad publish date, unparsable URL).
type episodeLocalError struct{ err error }

func (e *episodeLocalError) Error() string { return e.err.Error() }
func (e *episodeLocalError) Unwrap() error { return e.err }

func isEpisodeLocal(err error) bool {
	var le *episodeLocalError
	return errors.As(err, &le)
}

// episodeFrom maps one cloudcast to an Episode candidate. Returns (nil, nil)
// for items that are skipped by policy; a missing streamInfo URL fails the
// whole query.
func (c *Client) episodeFrom(cast *wireCloudcast, set music.Set, hostPort string) (*podcast.Episode, error) {
	if cast.IsExclusive {
		log.Info().Str("slug", cast.Slug).Msg("mixcloud: skipping subscriber-exclusive item")
		return nil, nil
	}
	if cast.RestrictedReason != "" {
		log.Info().Str("slug", cast.Slug).Str("reason", cast.RestrictedReason).
			Msg("mixcloud: skipping unplayable item")
		return nil, nil
	}
	if cast.StreamInfo == nil || cast.StreamInfo.URL == "" {
		return nil, &RemoteError{Op: "build episode", Err: fmt.Errorf("no stream url for %q", cast.Slug)}
	}
	remoteURL, err := DecodeStreamURL(cast.StreamInfo.URL)
	if err != nil {
		return nil, err
	}
	ext := extensionOf(remoteURL)

	ep := &podcast.Episode{
		Title:           cast.Name,
		Description:     cast.Description,
		Link:            fmt.Sprintf("%s/%s/%s/", remoteWeb, cast.Owner.Username, cast.Slug),
		Author:          cast.Owner.DisplayName,
		DurationSeconds: cast.AudioLength,
		Enclosure: podcast.Enclosure{
			LocalURL:  "http://" + hostPort + "/" + set.Username + "/" + cast.Slug + ext,
			RemoteURL: remoteURL,
		},
	}
	if cast.Picture != nil {
		ep.ImageURL = cast.Picture.URL
	}
	if cast.PublishDate != "" {
		t, err := time.Parse(time.RFC3339, cast.PublishDate)
		if err != nil {
			return nil, &episodeLocalError{err: fmt.Errorf("publish date %q: %w", cast.PublishDate, err)}
		}
		ep.PubDate = t
	}
	return ep, nil
}

// LocalPathFor is where an episode's enclosure lives beneath musicDir. It
// uses the same mapping the file responder resolves request URLs with, so a
// URL that would escape the music directory reduces to musicDir itself and
// nothing is ever written outside it.
func LocalPathFor(ep *podcast.Episode, musicDir string) string {
	p, err := music.LocalPath(ep.Enclosure.LocalURL, musicDir)
	if err != nil {
		return filepath.Clean(musicDir)
	}
	return p
}

// resolveEnclosures fills length, last-modified, and MIME type for every
// episode: from the filesystem when the file is already downloaded, else
// from a HEAD probe against the remote. Probes run concurrently and are all
// joined before returning; overrunning the join window fails the query.
func (c *Client) resolveEnclosures(ctx context.Context, episodes []podcast.Episode, musicDir string) error {
	g, probeCtx := errgroup.WithContext(ctx)
	g.SetLimit(headConcurrency)
	for i := range episodes {
		ep := &episodes[i]
		localPath := LocalPathFor(ep, musicDir)
		if fi, err := os.Stat(localPath); err == nil && !fi.IsDir() {
			ep.Enclosure.LengthBytes = fi.Size()
			ep.Enclosure.LastModified = fi.ModTime()
			ep.Enclosure.MimeType = music.MimeType(localPath)
			continue
		}
		g.Go(func() error {
			c.probeEnclosure(probeCtx, ep)
			return nil // async probe failures drop the episode, not the query
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * headTimeout):
		return &RemoteError{Op: "enclosure metadata", Err: errors.New("head probes did not finish in time")}
	}
}

// probeEnclosure HEADs the remote URL and fills the enclosure fields when
// the response looks like servable audio. Failures leave the fields unset.
func (c *Client) probeEnclosure(ctx context.Context, ep *podcast.Episode) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, ep.Enclosure.RemoteURL, nil)
	if err != nil {
		log.Warn().Err(err).Str("url", ep.Enclosure.RemoteURL).Msg("mixcloud: head request build failed")
		return
	}
	if ua := c.userAgent(); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	resp, err := c.head.Do(req)
	if err != nil {
		log.Info().Err(err).Str("url", ep.Enclosure.RemoteURL).Msg("mixcloud: head probe failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Info().Int("status", resp.StatusCode).Str("url", ep.Enclosure.RemoteURL).
			Msg("mixcloud: head probe rejected")
		return
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "audio/") && !strings.HasPrefix(ct, "video/") {
		log.Warn().Str("contentType", ct).Str("url", ep.Enclosure.RemoteURL).
			Msg("mixcloud: enclosure is not audio or video")
		return
	}
	length, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil || length < 0 {
		log.Warn().Str("url", ep.Enclosure.RemoteURL).Msg("mixcloud: enclosure has no content length")
		return
	}
	lastMod, err := time.Parse(http.TimeFormat, resp.Header.Get("Last-Modified"))
	if err != nil {
		log.Warn().Str("url", ep.Enclosure.RemoteURL).Msg("mixcloud: enclosure has no last-modified")
		return
	}
	ep.Enclosure.MimeType = ct
	ep.Enclosure.LengthBytes = length
	ep.Enclosure.LastModified = lastMod
}

// describe builds the feed description: an optional playlist blurb, an
// optional "Support X!" line (suppressed for subscribed usernames), the
// user's location, and their bio, joined by newlines.
func (c *Client) describe(profile *wireProfile, playlistDescription string) string {
	var lines []string
	if playlistDescription != "" {
		lines = append(lines, playlistDescription)
	}
	if profile.IsSelect && profile.SelectUpsell != nil && !c.isSubscribed(profile.Username) {
		amount := profile.SelectUpsell.PlanInfo.DisplayAmount
		if amount != "" {
			lines = append(lines, fmt.Sprintf("Support %s! Subscribe for %s/month", profile.DisplayName, amount))
		}
	}
	location := profile.City
	if profile.Country != "" {
		if location != "" {
			location += ", "
		}
		location += profile.Country
	}
	if location != "" {
		lines = append(lines, location)
	}
	if profile.Biog != "" {
		lines = append(lines, strings.TrimSpace(profile.Biog))
	}
	return strings.Join(lines, "\n")
}

// extensionOf returns the file extension of a media URL's path, ignoring
// its query string.
func extensionOf(rawURL string) string {
	s := rawURL
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	return path.Ext(s)
}
