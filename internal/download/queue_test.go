package download

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDownload(dir, name string, lastMod time.Time) Download {
	return Download{
		RemoteURL:    "https://stream.example/" + name,
		LengthBytes:  10,
		LastModified: lastMod,
		LocalPath:    filepath.Join(dir, name),
	}
}

func TestEnqueueDeduplicates(t *testing.T) {
	dir := t.TempDir()
	q := NewQueue(Options{})
	d := testDownload(dir, "a.m4a", time.Now())

	assert.True(t, q.Enqueue(d))
	assert.False(t, q.Enqueue(d), "equal download should not queue twice")

	// a different shard hostname for the same file is still a duplicate
	shard := d
	shard.RemoteURL = "https://stream-other.example/a.m4a"
	assert.False(t, q.Enqueue(shard))

	waiting, active := q.Snapshot()
	assert.Len(t, waiting, 1)
	assert.Empty(t, active)
}

func TestEnqueueSkipsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.m4a")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	q := NewQueue(Options{})
	assert.False(t, q.Enqueue(Download{LocalPath: path, LengthBytes: 1}))
	waiting, _ := q.Snapshot()
	assert.Empty(t, waiting)
}

func TestEnqueueSortsByLastModified(t *testing.T) {
	dir := t.TempDir()
	old := testDownload(dir, "old.m4a", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	mid := testDownload(dir, "mid.m4a", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := testDownload(dir, "new.m4a", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	q := NewQueue(Options{OldestFirst: func() bool { return false }})
	q.Enqueue(mid)
	q.Enqueue(old)
	q.Enqueue(newer)
	waiting, _ := q.Snapshot()
	require.Len(t, waiting, 3)
	assert.Equal(t, "new.m4a", filepath.Base(waiting[0].LocalPath))
	assert.Equal(t, "old.m4a", filepath.Base(waiting[2].LocalPath))

	q = NewQueue(Options{OldestFirst: func() bool { return true }})
	q.Enqueue(mid)
	q.Enqueue(old)
	q.Enqueue(newer)
	waiting, _ = q.Snapshot()
	require.Len(t, waiting, 3)
	assert.Equal(t, "old.m4a", filepath.Base(waiting[0].LocalPath))
	assert.Equal(t, "new.m4a", filepath.Base(waiting[2].LocalPath))
}

func TestProcessQueueDownloadsAndFiresCallback(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	lastMod := time.Date(2026, time.February, 2, 10, 0, 0, 0, time.UTC)
	q := NewQueue(Options{Threads: func() int { return 2 }})
	for _, name := range []string{"a.m4a", "b.m4a", "c.m4a"} {
		d := Download{
			RemoteURL:    srv.URL + "/" + name,
			LengthBytes:  10,
			LastModified: lastMod,
			LocalPath:    filepath.Join(dir, "alice", name),
		}
		require.True(t, q.Enqueue(d))
	}

	done := make(chan struct{})
	q.ProcessQueue(func() { close(done) })
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("terminal callback never fired")
	}

	assert.Equal(t, int32(3), hits.Load())
	for _, name := range []string{"a.m4a", "b.m4a", "c.m4a"} {
		path := filepath.Join(dir, "alice", name)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "0123456789", string(data))
		fi, err := os.Stat(path)
		require.NoError(t, err)
		assert.True(t, fi.ModTime().Equal(lastMod), "modtime = %v", fi.ModTime())
		_, err = os.Stat(path + ".part")
		assert.True(t, os.IsNotExist(err), "part file should be renamed away")
	}
	waiting, active := q.Snapshot()
	assert.Empty(t, waiting)
	assert.Empty(t, active)
}

func TestProcessQueueFiresImmediatelyWhenEmpty(t *testing.T) {
	q := NewQueue(Options{})
	done := make(chan struct{})
	q.ProcessQueue(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback should fire immediately on an empty queue")
	}
}

func TestFetchDoesNotPublishOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	dir := t.TempDir()
	q := NewQueue(Options{})
	d := Download{RemoteURL: srv.URL + "/a.m4a", LocalPath: filepath.Join(dir, "a.m4a")}
	err := q.fetch(d)
	require.Error(t, err)
	_, statErr := os.Stat(d.LocalPath)
	assert.True(t, os.IsNotExist(statErr), "failed download must not publish")
}

func TestCopyWithProgressReportsTens(t *testing.T) {
	// progress goes to stdout; here we only care that the copy is exact
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 200_000))
	}))
	defer srv.Close()

	dir := t.TempDir()
	q := NewQueue(Options{})
	d := Download{RemoteURL: srv.URL + "/big.m4a", LengthBytes: 200_000, LocalPath: filepath.Join(dir, "big.m4a")}
	require.NoError(t, q.fetch(d))
	fi, err := os.Stat(d.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, int64(200_000), fi.Size())
}
