package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatchReloadsOnWrite(t *testing.T) {
	path := writeSettings(t, "http_cache_time_seconds = 100\n")
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Watch(ctx)
	time.Sleep(100 * time.Millisecond) // let the watch get installed

	if err := os.WriteFile(path, []byte("http_cache_time_seconds = 200\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for s.Int(KeyHTTPCacheTime) != 200 {
		if time.Now().After(deadline) {
			t.Fatalf("setting never reloaded, still %d", s.Int(KeyHTTPCacheTime))
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatchWithoutFileReturns(t *testing.T) {
	s, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- s.Watch(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch = %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Watch with no settings file should return immediately")
	}
}
