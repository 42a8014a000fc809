package daemon_test

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"

	"slidecast/internal/config"
	"slidecast/internal/daemon"
	"slidecast/internal/logging"
	"slidecast/internal/queue"
	"slidecast/internal/stage"
	"slidecast/internal/testsupport"
	"slidecast/internal/workflow"
)

type noopStage struct{}

func (noopStage) Prepare(context.Context, *queue.Job) error { return nil }
func (noopStage) Execute(context.Context, *queue.Job) error { return nil }
func (noopStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("noop")
}

func newDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *queue.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, logger)
	mgr.ConfigureStages(workflow.StageSet{
		Extraction:  noopStage{},
		Narration:   noopStage{},
		Translation: noopStage{},
		Synthesis:   noopStage{},
		Timing:      noopStage{},
		Assembly:    noopStage{},
	})
	d, err := daemon.New(cfg, store, logger, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Stop() })
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != daemon.LockPath(cfg) {
		t.Fatalf("lock path = %q, want %q", status.LockFilePath, daemon.LockPath(cfg))
	}
	if status.APIAddress == "" || strings.HasSuffix(status.APIAddress, ":0") {
		t.Fatalf("expected bound api address, got %q", status.APIAddress)
	}
	if status.InboxDir != cfg.Paths.InboxDir {
		t.Fatalf("inbox = %q, want %q", status.InboxDir, cfg.Paths.InboxDir)
	}

	raw, err := os.ReadFile(daemon.PIDPath(cfg))
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if strings.TrimSpace(string(raw)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file = %q", raw)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if _, err := os.Stat(daemon.PIDPath(cfg)); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, stat err=%v", err)
	}
}

func TestSecondInstanceRefusedWhileLockHeld(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, _ := newDaemon(t, cfg)
	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	second, _ := newDaemon(t, cfg)
	err := second.Start(ctx)
	if err == nil {
		t.Fatal("expected second instance to be refused")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected error: %v", err)
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
}

func TestDaemonWithoutAPIBind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	d, _ := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if addr := d.Status(context.Background()).APIAddress; addr != "" {
		t.Fatalf("expected no api address, got %q", addr)
	}
}
