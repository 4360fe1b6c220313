// Package download fetches enclosures from the remote into the music
// directory. The queue deduplicates against files already on disk and work
// already queued, starts tasks oldest- or newest-first, bounds concurrency
// by the download_threads setting, and publishes each file atomically via
// a .part staging file.
package download

import (
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jakshin/mixcaster-sub000/internal/attrs"
	"github.com/jakshin/mixcaster-sub000/internal/metrics"
)

// Download is one enclosure to fetch. Identity for deduplication is
// (LengthBytes, LastModified, LocalPath); RemoteURL is excluded because the
// remote serves the same bytes under many shard hostnames.
type Download struct {
	RemoteURL    string
	LengthBytes  int64
	LastModified time.Time
	LocalPath    string
}

func (d Download) sameAs(o Download) bool {
	return d.LengthBytes == o.LengthBytes &&
		d.LastModified.Equal(o.LastModified) &&
		d.LocalPath == o.LocalPath
}

// Options supplies the queue's tunables. Funcs are re-read on each use so
// settings changes apply without a restart.
type Options struct {
	Threads     func() int  // bounded worker count, [1, 50]
	OldestFirst func() bool // sort direction for the waiting set
	UserAgent   func() string
	Client      *http.Client // nil = http.DefaultClient
	Attrs       *attrs.Store // nil = no attribute bookkeeping
}

// Queue is the process-wide download queue. One instance per process.
type Queue struct {
	opts Options

	mu      sync.Mutex
	waiting []Download
	active  []Download
	running int
	onEmpty func() // pending terminal callback; fires once, then cleared
}

// NewQueue builds an idle queue.
func NewQueue(opts Options) *Queue {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Threads == nil {
		opts.Threads = func() int { return 3 }
	}
	if opts.OldestFirst == nil {
		opts.OldestFirst = func() bool { return false }
	}
	if opts.UserAgent == nil {
		opts.UserAgent = func() string { return "" }
	}
	return &Queue{opts: opts}
}

// Enqueue adds d to the waiting set. Returns false without queuing when the
// file already exists locally (its lastUsed attribute is refreshed instead)
// or when an equal download is already waiting or active.
func (q *Queue) Enqueue(d Download) bool {
	if _, err := os.Stat(d.LocalPath); err == nil {
		if q.opts.Attrs != nil {
			q.opts.Attrs.TouchLastUsed(d.LocalPath)
		}
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, w := range q.waiting {
		if d.sameAs(w) {
			return false
		}
	}
	for _, a := range q.active {
		if d.sameAs(a) {
			return false
		}
	}
	q.waiting = append(q.waiting, d)
	oldest := q.opts.OldestFirst()
	sort.SliceStable(q.waiting, func(i, j int) bool {
		if oldest {
			return q.waiting[i].LastModified.Before(q.waiting[j].LastModified)
		}
		return q.waiting[i].LastModified.After(q.waiting[j].LastModified)
	})
	q.updateDepthLocked()
	return true
}

// ProcessQueue starts draining the waiting set into worker goroutines.
// onEmpty, when non-nil, replaces any pending terminal callback and fires
// exactly once when both the waiting and active sets are empty; if they
// already are, it fires immediately.
func (q *Queue) ProcessQueue(onEmpty func()) {
	q.mu.Lock()
	if onEmpty != nil {
		q.onEmpty = onEmpty
	}
	q.launchLocked()
	q.fireIfEmptyLocked()
	q.mu.Unlock()
}

// Snapshot returns copies of the waiting and active sets, for tests and
// status reporting.
func (q *Queue) Snapshot() (waiting, active []Download) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Download(nil), q.waiting...), append([]Download(nil), q.active...)
}

// launchLocked moves downloads from waiting to active and spawns tasks
// while the running count is below the configured bound. Caller holds q.mu.
func (q *Queue) launchLocked() {
	limit := q.opts.Threads()
	for q.running < limit && len(q.waiting) > 0 {
		d := q.waiting[0]
		q.waiting = q.waiting[1:]
		q.active = append(q.active, d)
		q.running++
		go q.task(d)
	}
	q.updateDepthLocked()
}

// task runs one download, then releases its slot, refills the pool, and
// fires the terminal callback when everything has drained. Errors never
// propagate; a failed download leaves its .part file for the next attempt.
func (q *Queue) task(d Download) {
	start := time.Now()
	err := q.fetch(d)
	if err != nil {
		log.Error().Err(err).Str("url", d.RemoteURL).Str("path", d.LocalPath).
			Msg("download failed")
		metrics.Downloads.WithLabelValues("error").Inc()
	} else {
		log.Info().Str("path", d.LocalPath).Dur("elapsed", time.Since(start)).
			Msg("download complete")
		metrics.Downloads.WithLabelValues("ok").Inc()
	}

	q.mu.Lock()
	for i := range q.active {
		if q.active[i].sameAs(d) {
			q.active = append(q.active[:i], q.active[i+1:]...)
			break
		}
	}
	q.running--
	q.launchLocked()
	q.fireIfEmptyLocked()
	q.mu.Unlock()
}

// fireIfEmptyLocked invokes the pending terminal callback when both sets
// are empty, then clears it so it cannot fire twice. Caller holds q.mu.
func (q *Queue) fireIfEmptyLocked() {
	if q.onEmpty == nil || len(q.waiting) > 0 || len(q.active) > 0 {
		return
	}
	cb := q.onEmpty
	q.onEmpty = nil
	go cb()
}

func (q *Queue) updateDepthLocked() {
	metrics.QueueDepth.WithLabelValues("waiting").Set(float64(len(q.waiting)))
	metrics.QueueDepth.WithLabelValues("active").Set(float64(len(q.active)))
}
