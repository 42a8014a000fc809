// Package stageexec runs a single job through the pipeline in the foreground,
// without a daemon.
package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"slidecast/internal/config"
	"slidecast/internal/logging"
	"slidecast/internal/notifications"
	"slidecast/internal/queue"
	"slidecast/internal/workflow"
)

// ErrDaemonActive is returned when a daemon already owns the queue.
var ErrDaemonActive = errors.New("a slidecast daemon is running; submit the job with `slidecast job start` instead")

// Options controls a foreground run.
type Options struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *queue.Store
	Notifier notifications.Service
	Stages   workflow.StageSet
	// LockPath is the daemon instance lock; the run holds it so a daemon
	// cannot pick up the same job concurrently.
	LockPath     string
	PollInterval time.Duration
	Preflight    bool
	// Progress is called with the latest job state after every poll.
	Progress func(*queue.Job)
}

// Run drives jobID through the configured stages until it completes, fails or
// is cancelled, and returns its final state.
func Run(ctx context.Context, jobID string, opts Options) (*queue.Job, error) {
	if opts.Config == nil || opts.Store == nil {
		return nil, fmt.Errorf("config and queue store are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}

	if opts.LockPath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LockPath), 0o755); err != nil {
			return nil, fmt.Errorf("create lock directory: %w", err)
		}
		lock := flock.New(opts.LockPath)
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return nil, ErrDaemonActive
		}
		defer func() { _ = lock.Unlock() }()
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(opts.Config)
	}
	mgr := workflow.NewManagerWithNotifier(opts.Config, opts.Store, logger, notifier,
		workflow.WithPollInterval(poll),
		workflow.WithPreflight(opts.Preflight),
	)
	mgr.ConfigureStages(opts.Stages)
	if err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	defer mgr.Stop()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		job, err := opts.Store.GetByID(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, fmt.Errorf("job %s disappeared from the queue", jobID)
		}
		if opts.Progress != nil {
			opts.Progress(job)
		}
		if job.IsTerminal() {
			logger.Info("foreground run finished",
				logging.String(logging.FieldJobID, job.ID),
				logging.String("status", string(job.Status)),
			)
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}
