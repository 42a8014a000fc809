package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"slidecast/internal/api"
	"slidecast/internal/config"
	"slidecast/internal/deps"
	"slidecast/internal/logging"
	"slidecast/internal/preflight"
	"slidecast/internal/queue"
	"slidecast/internal/watch"
	"slidecast/internal/workflow"
)

const (
	lockFileName = "slidecast.lock"
	pidFileName  = "slidecast.pid"
)

// LockPath returns the single-instance lock file for cfg.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, lockFileName)
}

// PIDPath returns the file holding the running daemon's pid.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, pidFileName)
}

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	jobs     *api.JobService

	lockPath string
	pidPath  string
	lock     *flock.Flock

	api     *apiServer
	watcher *watch.Watcher

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
	APIAddress   string
	InboxDir     string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := LockPath(cfg)
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		jobs:     api.NewJobService(cfg, store),
		lockPath: lockPath,
		pidPath:  PIDPath(cfg),
		lock:     flock.New(lockPath),
	}
	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the daemon lock, then launches the workflow manager, the
// API server and the inbox watcher.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another slidecast daemon instance is already running")
	}
	if err := writePIDFile(d.pidPath); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("write pid file: %w", err)
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		d.release()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.workflow.Stop()
		d.release()
		return err
	}
	if inbox := strings.TrimSpace(d.cfg.Paths.InboxDir); inbox != "" {
		w, err := watch.New(inbox, d.jobs, d.logger)
		if err == nil {
			err = w.Start(d.ctx)
		}
		if err != nil {
			logging.WarnWithContext(d.logger, "inbox watcher unavailable", "inbox_watch_failed",
				logging.String("inbox_dir", inbox),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check paths.inbox_dir permissions"),
				logging.String(logging.FieldImpact, "decks must be submitted with `slidecast job start`"),
			)
		} else {
			d.watcher = w
		}
	}

	d.running.Store(true)
	d.logger.Info("slidecast daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.watcher != nil {
		d.watcher.Stop()
		d.watcher = nil
	}
	d.api.stop()
	d.workflow.Stop()
	d.release()
	d.running.Store(false)
	d.logger.Info("slidecast daemon stopped")
}

func (d *Daemon) release() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ctx = nil
	if err := os.Remove(d.pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.logger.Warn("failed to remove pid file", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Jobs returns the job service the daemon serves.
func (d *Daemon) Jobs() *api.JobService {
	return d.jobs
}

// Handler returns the HTTP API handler, for embedding or tests.
func (d *Daemon) Handler() http.Handler {
	return d.api.handler()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		APIAddress:   d.api.address(),
		Dependencies: preflight.CheckSystemDeps(ctx, d.cfg),
	}
	if d.watcher != nil {
		status.InboxDir = d.watcher.Dir()
	}
	return status
}

func writePIDFile(path string) error {
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
