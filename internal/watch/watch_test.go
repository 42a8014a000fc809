package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"slidecast/internal/api"
	"slidecast/internal/logging"
	"slidecast/internal/watch"
)

type recordingStarter struct {
	mu      sync.Mutex
	sources []string
	ch      chan string
}

func newRecordingStarter() *recordingStarter {
	return &recordingStarter{ch: make(chan string, 8)}
}

func (s *recordingStarter) StartJob(_ context.Context, req api.StartRequest) (string, error) {
	s.mu.Lock()
	s.sources = append(s.sources, req.Source)
	s.mu.Unlock()
	s.ch <- req.Source
	return "job-" + filepath.Base(req.Source), nil
}

func (s *recordingStarter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources)
}

func startWatcher(t *testing.T, dir string, starter watch.Starter) *watch.Watcher {
	t.Helper()
	w, err := watch.New(dir, starter, logging.NewNop(), watch.WithSettleDelay(50*time.Millisecond))
	if err != nil {
		t.Fatalf("watch.New: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func expectSource(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("enqueued %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", want)
	}
}

func TestWatcherEnqueuesNewDecks(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "inbox")
	starter := newRecordingStarter()
	startWatcher(t, dir, starter)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "~$lecture.pptx"), []byte("lock"), 0o644); err != nil {
		t.Fatalf("write lock file: %v", err)
	}
	deckPath := filepath.Join(dir, "lecture.pptx")
	f, err := os.Create(deckPath)
	if err != nil {
		t.Fatalf("create deck: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := f.Write([]byte("chunk")); err != nil {
			t.Fatalf("write deck: %v", err)
		}
	}
	f.Close()

	expectSource(t, starter.ch, deckPath)
	time.Sleep(200 * time.Millisecond)
	if n := starter.count(); n != 1 {
		t.Fatalf("expected exactly one job, got %d", n)
	}
}

func TestWatcherFollowsManifestDirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "inbox")
	starter := newRecordingStarter()
	startWatcher(t, dir, starter)

	deckDir := filepath.Join(dir, "week1")
	if err := os.Mkdir(deckDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Give the watcher a moment to follow the new directory.
	time.Sleep(100 * time.Millisecond)
	manifest := filepath.Join(deckDir, "deck.json")
	if err := os.WriteFile(manifest, []byte(`{"slides":[]}`), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	expectSource(t, starter.ch, manifest)
}

func TestEligible(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/inbox/lecture.pptx", true},
		{"/inbox/Lecture.PPT", true},
		{"/inbox/week1/deck.json", true},
		{"/inbox/other.json", false},
		{"/inbox/.lecture.pptx", false},
		{"/inbox/~$lecture.pptx", false},
		{"/inbox/video.mp4", false},
	}
	for _, tc := range tests {
		if got := watch.Eligible(tc.path); got != tc.want {
			t.Fatalf("Eligible(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := watch.New("", newRecordingStarter(), nil); err == nil {
		t.Fatal("expected error for empty dir")
	}
	if _, err := watch.New(t.TempDir(), nil, nil); err == nil {
		t.Fatal("expected error for nil starter")
	}
}
