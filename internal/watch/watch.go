// Package watch enqueues conversion jobs for decks dropped into the inbox
// directory. It watches the inbox with fsnotify, waits until a file has stopped
// changing, and hands it to the job service with the configured defaults.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"slidecast/internal/api"
	"slidecast/internal/extraction"
	"slidecast/internal/logging"
)

const defaultSettleDelay = 2 * time.Second

// Starter enqueues a job for a source path.
type Starter interface {
	StartJob(ctx context.Context, req api.StartRequest) (string, error)
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithSettleDelay sets how long a file must stay unchanged before it is enqueued.
func WithSettleDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// Watcher monitors an inbox directory and its direct subdirectories.
type Watcher struct {
	dir     string
	starter Starter
	logger  *slog.Logger
	settle  time.Duration

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	timers  map[string]*time.Timer
	started map[string]struct{}
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// New constructs a watcher for dir. Nothing is watched until Start.
func New(dir string, starter Starter, logger *slog.Logger, opts ...Option) (*Watcher, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("inbox directory is required")
	}
	if starter == nil {
		return nil, errors.New("job starter is required")
	}
	w := &Watcher{
		dir:     dir,
		starter: starter,
		logger:  logging.NewComponentLogger(logger, "inbox"),
		settle:  defaultSettleDelay,
		timers:  make(map[string]*time.Timer),
		started: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dir returns the watched inbox directory.
func (w *Watcher) Dir() string { return w.dir }

// Start begins watching. Files already present are not enqueued; only decks
// that arrive while the watcher runs are.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("watch inbox: %w", err)
	}
	w.fsw = fsw

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	go w.loop(runCtx)

	w.logger.Info("inbox watcher started",
		logging.String("dir", w.dir),
		logging.String("extensions", strings.Join(extraction.SupportedExtensions, ",")),
	)
	return nil
}

// Stop ends watching and waits for pending enqueues to finish.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.fsw != nil {
		_ = w.fsw.Close()
	}
	w.mu.Lock()
	for path, timer := range w.timers {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.timers, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(w.logger, "inbox watcher error", "inbox_watch_error", logging.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	path := event.Name
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.watchSubdir(ctx, path)
			return
		}
	}
	if !Eligible(path) {
		w.logger.Debug("ignoring inbox file", logging.String("path", path))
		return
	}
	w.schedule(ctx, path)
}

// watchSubdir follows a directory dropped into the inbox so a deck.json
// written into it later is seen, and picks up one that is already there.
func (w *Watcher) watchSubdir(ctx context.Context, dir string) {
	if filepath.Dir(dir) != filepath.Clean(w.dir) {
		return
	}
	if err := w.fsw.Add(dir); err != nil {
		logging.WarnWithContext(w.logger, "cannot watch inbox subdirectory", "inbox_watch_error",
			logging.String("dir", dir), logging.Error(err))
		return
	}
	manifest := filepath.Join(dir, extraction.ManifestName)
	if _, err := os.Stat(manifest); err == nil {
		w.schedule(ctx, manifest)
	}
}

// schedule (re)arms the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if _, done := w.started[path]; done {
		return
	}
	fire := func() {
		defer w.wg.Done()
		w.enqueue(ctx, path)
	}
	if timer, ok := w.timers[path]; ok {
		// A timer that already fired is enqueueing; the wg slot carries over otherwise.
		if timer.Stop() {
			w.timers[path] = time.AfterFunc(w.settle, fire)
		}
		return
	}
	w.wg.Add(1)
	w.timers[path] = time.AfterFunc(w.settle, fire)
}

func (w *Watcher) enqueue(ctx context.Context, path string) {
	w.mu.Lock()
	delete(w.timers, path)
	if _, done := w.started[path]; done {
		w.mu.Unlock()
		return
	}
	w.started[path] = struct{}{}
	w.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	id, err := w.starter.StartJob(ctx, api.StartRequest{Source: path})
	if err != nil {
		logging.WarnWithContext(w.logger, "inbox deck not enqueued", "inbox_enqueue_failed",
			logging.String("source", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the file, then copy it into the inbox again"),
		)
		w.mu.Lock()
		delete(w.started, path)
		w.mu.Unlock()
		return
	}
	w.logger.Info("inbox deck enqueued",
		logging.String(logging.FieldJobID, id),
		logging.String("source", path),
		logging.String(logging.FieldEventType, "inbox_enqueued"),
	)
}

// Eligible reports whether path names a deck the inbox accepts. Hidden files
// and office lock files are skipped.
func Eligible(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return false
	}
	if strings.EqualFold(filepath.Ext(name), ".json") {
		return name == extraction.ManifestName
	}
	return extraction.Supported(name)
}
