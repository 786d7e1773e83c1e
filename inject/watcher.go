// Package inject turns files dropped into a directory into injection
// messages for the root actor. Each file is consumed once: its text
// becomes the message content and the file is removed afterwards.
package inject

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/djav1985/v-axion-ai/core"
)

// Sink receives the injected content. The orchestrator satisfies this.
type Sink interface {
	Inject(content string, kind core.MessageKind)
}

// Watcher watches one directory for dropped files.
type Watcher struct {
	dir       string
	sink      Sink
	fsWatcher *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher for the given directory. The directory
// is created if missing; files already present are injected on Start.
func NewWatcher(dir string, sink Sink) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create inject dir: %w", err)
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file system watcher: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		dir:       dir,
		sink:      sink,
		fsWatcher: fsWatcher,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start begins watching. Pre-existing files are consumed first so a
// restart does not lose pending injections.
func (w *Watcher) Start() error {
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", w.dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			w.consume(filepath.Join(w.dir, entry.Name()))
		}
	}

	w.wg.Add(1)
	go w.watchLoop()
	return nil
}

// Stop stops watching and waits for the loop to exit.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			// Let the writer finish before reading. Dropped files are
			// small notes, not streams. The delay goroutine joins the
			// wait group and aborts on cancel so nothing injects after
			// Stop returns.
			w.wg.Add(1)
			go func(path string) {
				defer w.wg.Done()
				select {
				case <-w.ctx.Done():
				case <-time.After(100 * time.Millisecond):
					w.consume(path)
				}
			}(event.Name)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Printf("[INJECT] watcher error: %v", err)
		}
	}
}

// consume reads, injects, and removes one dropped file. Hidden files
// and empty payloads are ignored.
func (w *Watcher) consume(path string) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[INJECT] read %s: %v", path, err)
		}
		return
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return
	}
	w.sink.Inject(content, core.KindInjection)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("[INJECT] remove %s: %v", path, err)
	}
	log.Printf("[INJECT] delivered %s (%d bytes)", base, len(content))
}
