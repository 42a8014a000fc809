package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"slidecast/internal/api"
	"slidecast/internal/config"
	"slidecast/internal/daemon"
	"slidecast/internal/preflight"
	"slidecast/internal/queue"
	"slidecast/internal/queueaccess"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// ErrDaemonNotRunning indicates no daemon holds the instance lock.
var ErrDaemonNotRunning = errors.New("daemon not running")

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Launch starts a detached daemon process running "daemon run" on executablePath.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon", "run"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// ProcessInfo reports whether a daemon holds the instance lock for cfg and
// its pid when the pid file is readable.
func ProcessInfo(cfg *config.Config) (bool, int, error) {
	lockPath := daemon.LockPath(cfg)
	if _, err := os.Stat(lockPath); errors.Is(err, os.ErrNotExist) {
		return false, 0, nil
	}
	lock := flock.New(lockPath)
	acquired, err := lock.TryLock()
	if err != nil {
		return false, 0, fmt.Errorf("probe daemon lock: %w", err)
	}
	if acquired {
		_ = lock.Unlock()
		return false, 0, nil
	}
	pid, _ := readPID(daemon.PIDPath(cfg))
	return true, pid, nil
}

// WaitForAPI polls the daemon API until it answers or timeout elapses.
func WaitForAPI(ctx context.Context, cfg *config.Config, timeout time.Duration) (*queueaccess.Client, error) {
	dial := queueaccess.DialDaemon(cfg)
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := dial(ctx)
		if err == nil {
			return client, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless one is already running, then waits
// for it to take the instance lock.
func EnsureStarted(ctx context.Context, cfg *config.Config, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	running, pid, err := ProcessInfo(cfg)
	if err != nil {
		return StartResult{}, err
	}
	if running {
		return StartResult{State: StartStateAlreadyRunning, PID: pid}, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		running, pid, err = ProcessInfo(cfg)
		if err == nil && running {
			if strings.TrimSpace(cfg.Paths.APIBind) != "" {
				if _, apiErr := WaitForAPI(ctx, cfg, time.Until(deadline)); apiErr != nil {
					return StartResult{}, apiErr
				}
			}
			return StartResult{State: StartStateStarted, PID: pid}, nil
		}
		select {
		case <-ctx.Done():
			return StartResult{}, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return StartResult{}, fmt.Errorf("daemon failed to start within %s; check %s", waitTimeout, cfg.Paths.LogDir)
}

// Stop sends SIGTERM to the running daemon and force-kills it if it is still
// holding the lock after gracePeriod.
func Stop(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	running, pid, err := ProcessInfo(cfg)
	if err != nil {
		return StopResult{}, err
	}
	if !running {
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid <= 0 {
		return StopResult{}, fmt.Errorf("unable to determine daemon pid (pid file: %s)", daemon.PIDPath(cfg))
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return StopResult{}, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	result := StopResult{PID: pid}
	deadline := time.Now().Add(gracePeriod)
	for time.Now().Before(deadline) {
		if alive, _, _ := ProcessInfo(cfg); !alive {
			return result, nil
		}
		time.Sleep(200 * time.Millisecond)
	}

	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(daemon.PIDPath(cfg)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file: %w", err)
	}
	result.ForcedKill = true
	return result, nil
}

// BuildStatusSnapshot returns the daemon's own status when its API answers,
// and otherwise an offline view assembled from the queue database and local
// dependency checks.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (api.DaemonStatus, error) {
	if client, err := queueaccess.DialDaemon(cfg)(ctx); err == nil {
		return client.DaemonStatus(ctx)
	}

	running, pid, err := ProcessInfo(cfg)
	if err != nil {
		return api.DaemonStatus{}, err
	}
	status := api.DaemonStatus{
		Running:      running,
		PID:          pid,
		DatabasePath: cfg.DatabasePath(),
		LockFilePath: daemon.LockPath(cfg),
		InboxDir:     cfg.Paths.InboxDir,
	}
	status.Workflow.QueueStats = api.MergeQueueStats(nil)
	if store, openErr := queue.Open(cfg); openErr == nil {
		if stats, statsErr := store.Stats(ctx); statsErr == nil {
			status.Workflow.QueueStats = api.MergeQueueStats(stats)
		}
		_ = store.Close()
	}
	for _, dep := range preflight.CheckSystemDeps(ctx, cfg) {
		status.Dependencies = append(status.Dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return status, nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s", path)
	}
	return pid, nil
}
