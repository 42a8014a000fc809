package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"slidecast/internal/config"
	"slidecast/internal/logging"
	"slidecast/internal/notifications"
	"slidecast/internal/queue"
	"slidecast/internal/stage"
	"slidecast/internal/testsupport"
	"slidecast/internal/workflow"
)

type stubStage struct {
	name        string
	prepareErr  error
	executeHook func(ctx context.Context, job *queue.Job) error
	health      stage.Health

	mu    sync.Mutex
	calls int
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) Prepare(_ context.Context, job *queue.Job) error {
	job.SetProgress(s.name, s.name+" preparing", 0)
	return s.prepareErr
}

func (s *stubStage) Execute(ctx context.Context, job *queue.Job) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.executeHook != nil {
		return s.executeHook(ctx, job)
	}
	return nil
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

func (s *stubStage) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubStages struct {
	extraction  *stubStage
	narration   *stubStage
	translation *stubStage
	synthesis   *stubStage
	timing      *stubStage
	assembly    *stubStage
}

func newStubStages() stubStages {
	return stubStages{
		extraction:  newStubStage("extraction"),
		narration:   newStubStage("narration"),
		translation: newStubStage("translation"),
		synthesis:   newStubStage("synthesis"),
		timing:      newStubStage("timing"),
		assembly:    newStubStage("assembly"),
	}
}

func (s stubStages) set() workflow.StageSet {
	return workflow.StageSet{
		Extraction:  s.extraction,
		Narration:   s.narration,
		Translation: s.translation,
		Synthesis:   s.synthesis,
		Timing:      s.timing,
		Assembly:    s.assembly,
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	titles []string
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	if title, ok := payload["title"].(string); ok {
		n.titles = append(n.titles, title)
	}
	return nil
}

func (n *recordingNotifier) count(event notifications.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, e := range n.events {
		if e == event {
			total++
		}
	}
	return total
}

type harness struct {
	cfg      *config.Config
	store    *queue.Store
	notifier *recordingNotifier
	manager  *workflow.Manager
}

func newHarness(t *testing.T, opts ...workflow.ManagerOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &recordingNotifier{}
	base := []workflow.ManagerOption{
		workflow.WithPollInterval(10 * time.Millisecond),
		workflow.WithHeartbeat(20*time.Millisecond, 0),
	}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier, append(base, opts...)...)
	return &harness{cfg: cfg, store: store, notifier: notifier, manager: mgr}
}

func (h *harness) start(t *testing.T, set workflow.StageSet) {
	t.Helper()
	h.manager.ConfigureStages(set)
	ctx, cancel := context.WithCancel(context.Background())
	if err := h.manager.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		h.manager.Stop()
		cancel()
	})
}

func waitForStatus(t *testing.T, store *queue.Store, id string, want queue.Status) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if job != nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := store.GetByID(context.Background(), id)
	t.Fatalf("timed out waiting for status %s; job is %+v", want, job)
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
