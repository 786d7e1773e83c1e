package inject_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/djav1985/v-axion-ai/core"
	"github.com/djav1985/v-axion-ai/inject"
)

type recordingSink struct {
	mu       sync.Mutex
	payloads []string
	kinds    []core.MessageKind
}

func (s *recordingSink) Inject(content string, kind core.MessageKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, content)
	s.kinds = append(s.kinds, kind)
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.payloads...)
}

func waitForPayload(t *testing.T, s *recordingSink, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, p := range s.snapshot() {
			if p == want {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("payload %q never delivered; got %v", want, s.snapshot())
}

func TestWatcherDeliversDroppedFile(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}

	w, err := inject.NewWatcher(dir, sink)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("check the queue\n"), 0o644); err != nil {
		t.Fatalf("drop file: %v", err)
	}

	waitForPayload(t, sink, "check the queue")

	// Consumed files are removed.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("dropped file was not removed")
}

func TestWatcherConsumesPreexistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pending.txt"), []byte("backlog item"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	sink := &recordingSink{}
	w, err := inject.NewWatcher(dir, sink)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	waitForPayload(t, sink, "backlog item")
}

func TestWatcherIgnoresHiddenAndEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}

	w, err := inject.NewWatcher(dir, sink)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, ".hidden"), []byte("nope"), 0o644); err != nil {
		t.Fatalf("drop hidden: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "empty.txt"), []byte("   \n"), 0o644); err != nil {
		t.Fatalf("drop empty: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "real.txt"), []byte("real"), 0o644); err != nil {
		t.Fatalf("drop real: %v", err)
	}

	waitForPayload(t, sink, "real")
	for _, p := range sink.snapshot() {
		if p == "nope" {
			t.Fatal("hidden file must not be injected")
		}
	}
}

func TestWatcherStopQuiescesPendingDelivery(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}

	w, err := inject.NewWatcher(dir, sink)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Drop a file and stop immediately, while the settle delay for the
	// drop is still pending. After Stop returns nothing may inject.
	if err := os.WriteFile(filepath.Join(dir, "late.txt"), []byte("too late"), 0o644); err != nil {
		t.Fatalf("drop file: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	before := len(sink.snapshot())
	time.Sleep(300 * time.Millisecond)
	if after := len(sink.snapshot()); after != before {
		t.Fatalf("injection fired after Stop returned: %v", sink.snapshot())
	}
}
