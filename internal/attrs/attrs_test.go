package attrs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTouchLastUsed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.m4a")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(dir)
	defer s.Close()
	s.TouchLastUsed(path)

	value, err := s.Get(path, NameLastUsed)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	stamp, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("lastUsed %q is not RFC3339: %v", value, err)
	}
	if time.Since(stamp) > time.Minute {
		t.Errorf("lastUsed %v is not recent", stamp)
	}
}

func TestAddWatchDeduplicates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.m4a")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(dir)
	defer s.Close()
	s.AddWatch(path, "alice's shows")
	s.AddWatch(path, "alice's shows")
	s.AddWatch(path, "bob's stream")

	value, err := s.Get(path, NameWatches)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	watches := strings.Split(value, "\n")
	if len(watches) != 2 || watches[0] != "alice's shows" || watches[1] != "bob's stream" {
		t.Errorf("watches = %q", value)
	}
}

func TestWritesToMissingFilesAreSwallowed(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	defer s.Close()
	// must not panic or error out
	s.TouchLastUsed(filepath.Join(dir, "nope.m4a"))
}
