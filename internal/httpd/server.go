package httpd

import (
	"bufio"
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/jakshin/mixcaster-sub000/internal/attrs"
	"github.com/jakshin/mixcaster-sub000/internal/config"
	"github.com/jakshin/mixcaster-sub000/internal/download"
	"github.com/jakshin/mixcaster-sub000/internal/mixcloud"
	"github.com/jakshin/mixcaster-sub000/internal/podcast"
)

// maxConnections bounds concurrently handled connections; accepts past the
// bound wait their turn.
const maxConnections = 300

// headerReadTimeout bounds how long a client may take to send its request
// line and headers.
const headerReadTimeout = 30 * time.Second

// Server is the hand-written HTTP front end: it accepts TCP connections,
// parses one request per connection, routes it to a responder, and closes.
type Server struct {
	settings *config.Settings
	client   *mixcloud.Client
	queue    *download.Queue
	attrs    *attrs.Store
	feeds    *podcast.Cache
	views    *podcast.DefaultViewCache

	group singleflight.Group
	sem   *semaphore.Weighted
}

// NewServer wires a Server from its collaborators. Cache TTLs track the
// http_cache_time_seconds setting at each use.
func NewServer(settings *config.Settings, client *mixcloud.Client, queue *download.Queue, store *attrs.Store) *Server {
	ttl := func() time.Duration {
		return time.Duration(settings.Int(config.KeyHTTPCacheTime)) * time.Second
	}
	return &Server{
		settings: settings,
		client:   client,
		queue:    queue,
		attrs:    store,
		feeds:    podcast.NewCache(ttl),
		views:    podcast.NewDefaultViewCache(ttl),
		sem:      semaphore.NewWeighted(maxConnections),
	}
}

// ListenAndServe accepts connections on the configured host and port until
// ctx is cancelled. Each connection is handled on its own goroutine, at most
// maxConnections at a time.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.settings.HostPort()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log.Info().Str("addr", ln.Addr().String()).Msg("httpd: listening")
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn().Err(err).Msg("httpd: accept failed")
			continue
		}
		if err := s.sem.Acquire(ctx, 1); err != nil {
			conn.Close()
			return nil
		}
		go s.handle(ctx, conn)
	}
}

// handle serves one connection: parse, route, respond, close.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer s.sem.Release(1)
	defer conn.Close()

	logger := log.With().
		Str("request", uuid.NewString()).
		Str("remote", conn.RemoteAddr().String()).
		Logger()

	rw := NewResponseWriter(conn)
	conn.SetReadDeadline(time.Now().Add(headerReadTimeout))
	req, err := ParseRequest(bufio.NewReader(conn), logger)
	if err != nil {
		logRequestError(logger, err)
		rw.WriteError(req, err)
		rw.Flush()
		return
	}
	conn.SetReadDeadline(time.Time{})

	// Headers we receive but don't honor.
	if v := req.Header("Expect"); v != "" {
		logger.Warn().Str("value", v).Msg("httpd: ignoring Expect header")
	}
	if v := req.Header("If-Range"); v != "" {
		logger.Warn().Str("value", v).Msg("httpd: ignoring If-Range header")
	}

	logger.Info().Str("method", req.Method).Str("url", req.RawURL).Msg("httpd: request")

	if err := s.route(req).respond(ctx, req, rw); err != nil {
		logRequestError(logger, err)
		rw.WriteError(req, err)
	}
	if err := rw.Flush(); err != nil {
		logger.Debug().Err(err).Msg("httpd: flush failed")
	}
}

// logRequestError logs client mistakes quietly and server trouble loudly.
func logRequestError(logger zerolog.Logger, err error) {
	var httpErr *Error
	if errors.As(err, &httpErr) && httpErr.Code < 500 {
		logger.Info().Err(err).Int("code", httpErr.Code).Msg("httpd: request failed")
		return
	}
	logger.Error().Err(err).Msg("httpd: request failed")
}
