// Package metrics registers the process's prometheus collectors and can
// serve them on a loopback side listener. The main HTTP port keeps its
// hand-written protocol surface; metrics never ride on it.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	// Requests counts completed HTTP responses by status class ("2xx", ...).
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mixcaster_http_requests_total",
		Help: "HTTP responses emitted, by status class.",
	}, []string{"code_class"})

	// Downloads counts finished download tasks by result.
	Downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mixcaster_downloads_total",
		Help: "Download tasks finished, by result (ok, error).",
	}, []string{"result"})

	// FeedCache counts podcast-cache lookups by outcome.
	FeedCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mixcaster_feed_cache_total",
		Help: "Podcast cache lookups, by outcome (hit, miss).",
	}, []string{"outcome"})

	// QueueDepth tracks the download queue's waiting and active set sizes.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mixcaster_queue_depth",
		Help: "Download queue depth, by state (waiting, active).",
	}, []string{"state"})
)

// CountRequest records one emitted response with the given status code.
func CountRequest(code int) {
	Requests.WithLabelValues(strconv.Itoa(code/100) + "xx").Inc()
}

// Serve exposes /metrics on 127.0.0.1:port until ctx is done. port 0 means
// metrics are disabled and Serve returns immediately.
func Serve(ctx context.Context, port int) {
	if port <= 0 {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              "127.0.0.1:" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn().Err(err).Int("port", port).Msg("metrics: listener failed")
	}
}
