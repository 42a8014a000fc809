package workflow_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"slidecast/internal/deck"
	"slidecast/internal/logging"
	"slidecast/internal/notifications"
	"slidecast/internal/queue"
	"slidecast/internal/services"
	"slidecast/internal/stage"
	"slidecast/internal/testsupport"
	"slidecast/internal/workflow"
)

func TestManagerProcessesJobThroughEveryStage(t *testing.T) {
	h := newHarness(t)
	stages := newStubStages()

	var mu sync.Mutex
	var seen []queue.Status
	for _, s := range []*stubStage{stages.extraction, stages.narration, stages.translation, stages.synthesis, stages.timing, stages.assembly} {
		s.executeHook = func(_ context.Context, job *queue.Job) error {
			mu.Lock()
			seen = append(seen, job.Status)
			mu.Unlock()
			return nil
		}
	}
	h.start(t, stages.set())

	job := testsupport.NewJob(t, h.store, h.cfg, "/decks/intro.pptx")
	done := waitForStatus(t, h.store, job.ID, queue.StatusCompleted)

	if done.ProgressPercent != 100 {
		t.Fatalf("expected 100%% progress, got %v", done.ProgressPercent)
	}
	want := []queue.Status{
		queue.StatusExtracting,
		queue.StatusNarrating,
		queue.StatusTranslating,
		queue.StatusSynthesizing,
		queue.StatusTiming,
		queue.StatusAssembling,
	}
	mu.Lock()
	got := append([]queue.Status(nil), seen...)
	mu.Unlock()
	if !slices.Equal(got, want) {
		t.Fatalf("stages ran as %v, want %v", got, want)
	}

	waitFor(t, "completion notification", func() bool {
		return h.notifier.count(notifications.EventJobCompleted) == 1
	})
	if h.notifier.count(notifications.EventJobStarted) != 1 {
		t.Fatalf("expected one start notification, got %d", h.notifier.count(notifications.EventJobStarted))
	}
}

func TestManagerRecordsFailedSlides(t *testing.T) {
	h := newHarness(t)
	stages := newStubStages()
	stages.narration.executeHook = func(context.Context, *queue.Job) error {
		return services.NewStageFailure("narration", []int{2, 0}, errors.New("every provider failed"))
	}
	h.start(t, stages.set())

	job := testsupport.NewJob(t, h.store, h.cfg, "/decks/failing.pptx")
	failed := waitForStatus(t, h.store, job.ID, queue.StatusFailed)

	if failed.FailedStage != "narration" {
		t.Fatalf("expected failed stage narration, got %q", failed.FailedStage)
	}
	if !slices.Equal(failed.FailedSlides, []int{0, 2}) {
		t.Fatalf("expected failed slides [0 2], got %v", failed.FailedSlides)
	}
	if failed.ResumeStatus != queue.StatusExtracted {
		t.Fatalf("expected resume status extracted, got %q", failed.ResumeStatus)
	}
	if failed.ErrorMessage == "" {
		t.Fatal("expected an error message")
	}
	waitFor(t, "error notification", func() bool {
		return h.notifier.count(notifications.EventError) == 1
	})
	if stages.translation.callCount() != 0 {
		t.Fatal("translation should not run after narration failed")
	}
}

func TestManagerRetryResumesFailedStage(t *testing.T) {
	h := newHarness(t)
	stages := newStubStages()
	var mu sync.Mutex
	attempts := 0
	stages.synthesis.executeHook = func(context.Context, *queue.Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return services.Wrap(services.ErrTransient, "synthesis", "write clip", "disk full", nil)
		}
		return nil
	}
	h.start(t, stages.set())

	job := testsupport.NewJob(t, h.store, h.cfg, "/decks/retry.pptx")
	failed := waitForStatus(t, h.store, job.ID, queue.StatusFailed)
	if failed.ResumeStatus != queue.StatusTranslated {
		t.Fatalf("expected resume status translated, got %q", failed.ResumeStatus)
	}

	if n, err := h.store.Retry(context.Background(), job.ID); err != nil || n != 1 {
		t.Fatalf("Retry = %d, %v", n, err)
	}
	done := waitForStatus(t, h.store, job.ID, queue.StatusCompleted)
	if done.FailedStage != "" || done.ErrorMessage != "" {
		t.Fatalf("expected failure fields cleared, got %+v", done)
	}
	if stages.extraction.callCount() != 1 || stages.narration.callCount() != 1 {
		t.Fatal("earlier stages should not run again on retry")
	}
	if stages.synthesis.callCount() != 2 {
		t.Fatalf("expected synthesis twice, got %d", stages.synthesis.callCount())
	}
}

func TestManagerCancelStopsRunningStage(t *testing.T) {
	h := newHarness(t)
	stages := newStubStages()
	started := make(chan struct{})
	stopped := make(chan error, 1)
	stages.narration.executeHook = func(ctx context.Context, _ *queue.Job) error {
		close(started)
		<-ctx.Done()
		stopped <- ctx.Err()
		return ctx.Err()
	}
	h.start(t, stages.set())

	job := testsupport.NewJob(t, h.store, h.cfg, "/decks/cancel.pptx")
	<-started
	if _, err := h.store.Cancel(context.Background(), job.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if err := <-stopped; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected stage context to be cancelled, got %v", err)
	}

	cancelled := testsupport.ReloadJob(t, h.store, job.ID)
	if cancelled.Status != queue.StatusCancelled {
		t.Fatalf("expected job to stay cancelled, got %s", cancelled.Status)
	}
	if cancelled.ResumeStatus != queue.StatusExtracted {
		t.Fatalf("expected resume at extracted, got %q", cancelled.ResumeStatus)
	}
	if stages.translation.callCount() != 0 {
		t.Fatal("translation must not run for a cancelled job")
	}
	if h.notifier.count(notifications.EventError) != 0 {
		t.Fatal("a cancel is not reported as an error")
	}
}

func TestManagerCancelStopsStageAtNextCheckpoint(t *testing.T) {
	// The heartbeat never ticks during the test, so only the checkpoint can
	// notice the cancel.
	h := newHarness(t, workflow.WithHeartbeat(time.Hour, 0))
	stages := newStubStages()
	type outcome struct {
		applied int
		err     error
	}
	finished := make(chan outcome, 1)
	stages.narration.executeHook = func(ctx context.Context, job *queue.Job) error {
		if _, err := h.store.Cancel(context.Background(), job.ID); err != nil {
			t.Errorf("Cancel failed: %v", err)
		}
		d := testsupport.NewDeck("Intro", "Body", "Close")
		rec := deck.NewRecorder(d, stage.Checkpointer(h.store, job, "Narration", stage.CountSlides(func(sl deck.Slide) bool {
			return sl.Narration != nil
		})))
		applied := 0
		for i := range d.Slides {
			err := rec.Apply(ctx, i, func(sl *deck.Slide) {
				sl.Narration = &deck.Narration{Text: "narrated", Provider: "stub"}
			})
			if err != nil {
				finished <- outcome{applied: applied, err: err}
				return err
			}
			applied++
		}
		finished <- outcome{applied: applied}
		return nil
	}
	h.start(t, stages.set())

	job := testsupport.NewJob(t, h.store, h.cfg, "/decks/cancel-checkpoint.pptx")
	var got outcome
	select {
	case got = <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("narration stage never ran")
	}
	if !errors.Is(got.err, queue.ErrJobCancelled) {
		t.Fatalf("expected the first checkpoint to report the cancel, got %v", got.err)
	}
	if got.applied != 0 {
		t.Fatalf("expected the stage to stop at its first slide, applied %d", got.applied)
	}

	cancelled := testsupport.ReloadJob(t, h.store, job.ID)
	if cancelled.Status != queue.StatusCancelled {
		t.Fatalf("expected job to stay cancelled, got %s", cancelled.Status)
	}
	if cancelled.ProgressStage != "Cancelled" {
		t.Fatalf("checkpoint overwrote cancel progress: %q", cancelled.ProgressStage)
	}
	saved, err := deck.Decode(cancelled.DeckJSON)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if saved.Slides[0].Narration == nil {
		t.Fatal("expected the finished slide to survive the cancel")
	}
	if stages.translation.callCount() != 0 {
		t.Fatal("translation must not run for a cancelled job")
	}
}

func TestManagerStartResumesInterruptedJobs(t *testing.T) {
	h := newHarness(t)
	stages := newStubStages()

	d := testsupport.NewDeck("Intro", "Body")
	job := testsupport.NewJobWithDeck(t, h.store, h.cfg, d, queue.StatusNarrating)

	h.start(t, stages.set())
	waitForStatus(t, h.store, job.ID, queue.StatusCompleted)

	if stages.extraction.callCount() != 0 {
		t.Fatal("extraction should not rerun for a job interrupted during narration")
	}
	if stages.narration.callCount() != 1 {
		t.Fatalf("expected narration to restart once, got %d", stages.narration.callCount())
	}
}

func TestManagerLaneOnlyRunsItsStages(t *testing.T) {
	h := newHarness(t)
	stages := newStubStages()
	h.start(t, workflow.StageSet{
		Synthesis: stages.synthesis,
		Timing:    stages.timing,
		Assembly:  stages.assembly,
	})

	pending := testsupport.NewJob(t, h.store, h.cfg, "/decks/pending.pptx")
	translated := testsupport.NewJobWithDeck(t, h.store, h.cfg, testsupport.NewNarratedDeck("Hello."), queue.StatusTranslated)

	waitForStatus(t, h.store, translated.ID, queue.StatusCompleted)
	if got := testsupport.ReloadJob(t, h.store, pending.ID); got.Status != queue.StatusPending {
		t.Fatalf("pending job should wait for the content lane, got %s", got.Status)
	}
}

func TestManagerReportsDegradedLecture(t *testing.T) {
	h := newHarness(t)
	stages := newStubStages()
	h.start(t, workflow.StageSet{Assembly: stages.assembly})

	d := testsupport.NewNarratedDeck("Hello.", "World.")
	d.Slides[1].SetWarning("translation", "all providers failed; kept source text")
	job := testsupport.NewJobWithDeck(t, h.store, h.cfg, d, queue.StatusTimed)

	waitForStatus(t, h.store, job.ID, queue.StatusCompleted)
	waitFor(t, "degraded notification", func() bool {
		return h.notifier.count(notifications.EventJobDegraded) == 1
	})
	if h.notifier.count(notifications.EventJobCompleted) != 0 {
		t.Fatal("a lecture with warnings is reported as degraded only")
	}
}

func TestManagerPrepareFailureFailsJob(t *testing.T) {
	h := newHarness(t)
	stages := newStubStages()
	stages.extraction.prepareErr = services.Wrap(services.ErrValidation, "extraction", "prepare", "unsupported file type", nil)
	h.start(t, stages.set())

	job := testsupport.NewJob(t, h.store, h.cfg, "/decks/notes.txt")
	failed := waitForStatus(t, h.store, job.ID, queue.StatusFailed)
	if failed.ResumeStatus != queue.StatusPending {
		t.Fatalf("expected resume at pending, got %q", failed.ResumeStatus)
	}
	if stages.extraction.callCount() != 0 {
		t.Fatal("execute must not run after prepare failed")
	}
}

func TestManagerStatusIncludesStageHealth(t *testing.T) {
	h := newHarness(t)
	stages := newStubStages()
	stages.synthesis.health = stage.Unhealthy("synthesis", "no speech provider available")
	h.manager.ConfigureStages(stages.set())

	status := h.manager.Status(context.Background())
	if status.Running {
		t.Fatal("manager should not be running before Start")
	}
	health, ok := status.StageHealth["synthesis"]
	if !ok || health.Ready {
		t.Fatalf("expected unhealthy synthesis, got %+v", status.StageHealth)
	}
	if len(status.StageHealth) != 6 {
		t.Fatalf("expected six stage health entries, got %d", len(status.StageHealth))
	}
}

func TestManagerStartRequiresStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &recordingNotifier{})
	if err := mgr.Start(context.Background()); err == nil {
		mgr.Stop()
		t.Fatal("expected Start to fail without stages")
	}
}

func TestManagerPreflightBlocksStart(t *testing.T) {
	h := newHarness(t, workflow.WithPreflight(true))
	h.cfg.Assembly.FFmpegBinary = "clearly-not-ffmpeg"
	h.manager.ConfigureStages(newStubStages().set())
	if err := h.manager.Start(context.Background()); err == nil {
		h.manager.Stop()
		t.Fatal("expected preflight failure to block Start")
	}
}
