package api_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"slidecast/internal/api"
	"slidecast/internal/assembly"
	"slidecast/internal/deck"
	"slidecast/internal/queue"
	"slidecast/internal/services"
	"slidecast/internal/testsupport"
)

func newService(t *testing.T) (*api.JobService, *queue.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithTargetLanguage("fr"))
	store := testsupport.MustOpenStore(t, cfg)
	source := filepath.Join(testsupport.BaseDir(cfg), "lecture.pptx")
	testsupport.WriteFile(t, source, 128)
	return api.NewJobService(cfg, store), store, source
}

func TestStartJobAppliesDefaults(t *testing.T) {
	svc, store, source := newService(t)
	ctx := context.Background()

	id, err := svc.StartJob(ctx, api.StartRequest{Source: source, VoiceGender: "male"})
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	job := testsupport.ReloadJob(t, store, id)
	if job.Status != queue.StatusPending {
		t.Fatalf("status = %s, want pending", job.Status)
	}
	if job.Style != "engaging" || job.VoiceQuality != "premium" {
		t.Fatalf("defaults not applied: style=%q quality=%q", job.Style, job.VoiceQuality)
	}
	if job.VoiceGender != "male" {
		t.Fatalf("gender = %q, want male", job.VoiceGender)
	}
	if job.TargetLanguage != "fr" || job.SourceLanguage != "en" {
		t.Fatalf("languages = %s -> %s", job.SourceLanguage, job.TargetLanguage)
	}
	if job.SourcePath != source {
		t.Fatalf("source = %q, want %q", job.SourcePath, source)
	}
}

func TestStartJobRejectsInvalidRequests(t *testing.T) {
	svc, _, source := newService(t)
	dir := filepath.Dir(source)
	unsupported := filepath.Join(dir, "notes.txt")
	testsupport.WriteFile(t, unsupported, 10)

	tests := []struct {
		name   string
		req    api.StartRequest
		marker error
	}{
		{name: "empty source", req: api.StartRequest{}, marker: services.ErrValidation},
		{name: "missing file", req: api.StartRequest{Source: filepath.Join(dir, "missing.pptx")}, marker: services.ErrNotFound},
		{name: "unsupported extension", req: api.StartRequest{Source: unsupported}, marker: services.ErrValidation},
		{name: "directory without manifest", req: api.StartRequest{Source: dir}, marker: services.ErrValidation},
		{name: "unknown style", req: api.StartRequest{Source: source, Style: "operatic"}, marker: services.ErrValidation},
		{name: "bad quality", req: api.StartRequest{Source: source, VoiceQuality: "ultra"}, marker: services.ErrValidation},
		{name: "bad gender", req: api.StartRequest{Source: source, VoiceGender: "robot"}, marker: services.ErrValidation},
		{name: "bad language", req: api.StartRequest{Source: source, TargetLanguage: "not a language"}, marker: services.ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.StartJob(context.Background(), tc.req)
			if !errors.Is(err, tc.marker) {
				t.Fatalf("StartJob error = %v, want %v", err, tc.marker)
			}
		})
	}
}

func TestStartJobAcceptsManifestDirectory(t *testing.T) {
	svc, _, source := newService(t)
	dir := filepath.Join(filepath.Dir(source), "deck")
	testsupport.WriteFile(t, filepath.Join(dir, "deck.json"), 2)

	if _, err := svc.StartJob(context.Background(), api.StartRequest{Source: dir}); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
}

func TestGetStatusReportsSlides(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := api.NewJobService(cfg, store)

	d := testsupport.NewNarratedDeck("Intro", "Supply")
	d.Slides[0].Translation = &deck.Translation{Text: "Intro", Language: "fr"}
	d.Slides[1].SetWarning("translation", "all providers failed")
	job := testsupport.NewJobWithDeck(t, store, cfg, d, queue.StatusTranslated)

	status, err := svc.GetStatus(context.Background(), job.ID[:8])
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.Stage != "translation" {
		t.Fatalf("stage = %q, want translation", status.Stage)
	}
	if status.Progress <= 0 || status.Progress >= 100 {
		t.Fatalf("progress = %v, want mid pipeline", status.Progress)
	}
	if len(status.Slides) != 2 {
		t.Fatalf("slides = %d, want 2", len(status.Slides))
	}
	if !status.Slides[0].Narrated || !status.Slides[0].Translated || status.Slides[0].Synthesized {
		t.Fatalf("unexpected slide 0 progress %+v", status.Slides[0])
	}
	if len(status.Slides[1].Warnings) != 1 {
		t.Fatalf("expected slide 1 warning, got %+v", status.Slides[1])
	}
}

func TestGetStatusUnknownJob(t *testing.T) {
	svc, _, _ := newService(t)
	if _, err := svc.GetStatus(context.Background(), "deadbeef"); !errors.Is(err, api.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestGetResultReportsStageFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := api.NewJobService(cfg, store)
	ctx := context.Background()

	job := testsupport.NewJobWithDeck(t, store, cfg, testsupport.NewNarratedDeck("a", "b", "c"), queue.StatusSynthesizing)
	job.SetFailed("synthesis", []int{2, 0}, "all speech providers failed")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	_, err := svc.GetResult(ctx, job.ID)
	var failure *services.StageFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected StageFailure, got %v", err)
	}
	if failure.Stage != "synthesis" {
		t.Fatalf("stage = %q, want synthesis", failure.Stage)
	}
	if len(failure.Slides) != 2 || failure.Slides[0] != 0 || failure.Slides[1] != 2 {
		t.Fatalf("slides = %v, want [0 2]", failure.Slides)
	}
}

func TestGetResultRequiresCompletion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := api.NewJobService(cfg, store)
	job := testsupport.NewJobWithDeck(t, store, cfg, testsupport.NewNarratedDeck("a"), queue.StatusNarrated)

	if _, err := svc.GetResult(context.Background(), job.ID); !errors.Is(err, api.ErrJobNotComplete) {
		t.Fatalf("expected ErrJobNotComplete, got %v", err)
	}
}

func TestGetResultListsArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := api.NewJobService(cfg, store)
	ctx := context.Background()

	d := testsupport.NewNarratedDeck("a", "b")
	d.Slides[0].DurationSeconds = 6
	d.Slides[1].DurationSeconds = 5
	d.Slides[1].SetWarning("synthesis", "used espeak")
	job := testsupport.NewJobWithDeck(t, store, cfg, d, queue.StatusAssembling)
	job.OutputDir = filepath.Join(cfg.Paths.OutputDir, "lecture_run")
	job.Status = queue.StatusCompleted
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}
	testsupport.WriteFile(t, filepath.Join(job.OutputDir, "manifest.yaml"), 8)
	testsupport.WriteFile(t, filepath.Join(job.OutputDir, "script.docx"), 8)

	result, err := svc.GetResult(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	layout := assembly.LayoutForJob(cfg, job, job.CreatedAt)
	if result.VideoPath != layout.VideoPath() {
		t.Fatalf("video = %q, want %q", result.VideoPath, layout.VideoPath())
	}
	if result.ManifestPath != filepath.Join(job.OutputDir, "manifest.yaml") {
		t.Fatalf("manifest = %q", result.ManifestPath)
	}
	if result.ScriptPath == "" || result.AudioDir != layout.AudioDir() || result.ImageDir != layout.ImagesDir() {
		t.Fatalf("unexpected paths %+v", result)
	}
	if result.DurationSeconds != 11 {
		t.Fatalf("duration = %v, want 11", result.DurationSeconds)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Index != 1 || result.Warnings[0].Stage != "synthesis" {
		t.Fatalf("unexpected warnings %+v", result.Warnings)
	}
}

func TestCancelAndRetry(t *testing.T) {
	svc, store, source := newService(t)
	ctx := context.Background()

	id, err := svc.StartJob(ctx, api.StartRequest{Source: source})
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	cancelled, err := svc.Cancel(ctx, id)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Outcome != api.CancelJobUpdated || cancelled.ResumeStatus != string(queue.StatusPending) {
		t.Fatalf("unexpected cancel result %+v", cancelled)
	}
	again, err := svc.Cancel(ctx, id)
	if err != nil {
		t.Fatalf("second Cancel: %v", err)
	}
	if again.Outcome != api.CancelJobAlreadyCancelled {
		t.Fatalf("outcome = %s, want already_cancelled", again.Outcome)
	}

	result, err := svc.Retry(ctx, id, "missing-id")
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if result.UpdatedCount != 1 || len(result.Items) != 2 {
		t.Fatalf("unexpected retry result %+v", result)
	}
	if result.Items[0].Outcome != api.RetryJobUpdated || result.Items[0].NewStatus != string(queue.StatusPending) {
		t.Fatalf("unexpected retry item %+v", result.Items[0])
	}
	if result.Items[1].Outcome != api.RetryJobNotFound {
		t.Fatalf("expected not_found, got %+v", result.Items[1])
	}
	if job := testsupport.ReloadJob(t, store, id); job.Status != queue.StatusPending {
		t.Fatalf("status = %s, want pending", job.Status)
	}

	pending, err := svc.Retry(ctx, id)
	if err != nil {
		t.Fatalf("Retry pending: %v", err)
	}
	if pending.Items[0].Outcome != api.RetryJobNotRetryable {
		t.Fatalf("expected not_retryable, got %+v", pending.Items[0])
	}
}

func TestRerunClonesNarratedDeck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := api.NewJobService(cfg, store)
	ctx := context.Background()

	d := testsupport.NewNarratedDeck("Intro", "Supply")
	for i := range d.Slides {
		d.Slides[i].Translation = &deck.Translation{Text: "x", Language: "de"}
		d.Slides[i].Audio = &deck.Audio{Path: "/tmp/a.mp3", Provider: "espeak", Seconds: 3}
		d.Slides[i].DurationSeconds = 5
	}
	d.Slides[0].SetWarning("narration", "minimal narration")
	d.Slides[1].SetWarning("synthesis", "used espeak")
	parent := testsupport.NewJobWithDeck(t, store, cfg, d, queue.StatusCompleted)

	id, err := svc.Rerun(ctx, parent.ID, api.RerunRequest{TargetLanguage: "es", VoiceGender: "male"})
	if err != nil {
		t.Fatalf("Rerun: %v", err)
	}
	child := testsupport.ReloadJob(t, store, id)
	if child.Status != queue.StatusNarrated {
		t.Fatalf("status = %s, want narrated", child.Status)
	}
	if child.ParentJobID != parent.ID || child.TargetLanguage != "es" || child.VoiceGender != "male" {
		t.Fatalf("unexpected child settings %+v", child)
	}
	if child.VoiceQuality != parent.VoiceQuality {
		t.Fatalf("quality = %q, want parent's %q", child.VoiceQuality, parent.VoiceQuality)
	}
	cloned, err := deck.Decode(child.DeckJSON)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, slide := range cloned.Slides {
		if slide.Narration == nil {
			t.Fatalf("slide %d lost its narration", slide.Index)
		}
		if slide.Translation != nil || slide.Audio != nil || slide.DurationSeconds != 0 {
			t.Fatalf("slide %d kept derived fields: %+v", slide.Index, slide)
		}
	}
	if len(cloned.Slides[0].Warnings) != 1 || len(cloned.Slides[1].Warnings) != 0 {
		t.Fatalf("expected only the narration warning to survive, got %+v / %+v", cloned.Slides[0].Warnings, cloned.Slides[1].Warnings)
	}
}

func TestRerunCopiesImagesIntoOwnOutputDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := api.NewJobService(cfg, store)
	ctx := context.Background()

	d := testsupport.NewNarratedDeck("Intro", "Supply", "Closing")
	parentImages := filepath.Join(cfg.Paths.OutputDir, "parent", "images")
	testsupport.WriteSlideImages(t, d, parentImages)
	d.Slides[2].ImageRef = ""
	d.Slides[2].SetWarning("extraction", "slide has no image; it will render as a black frame")
	parent := testsupport.NewJobWithDeck(t, store, cfg, d, queue.StatusCompleted)

	id, err := svc.Rerun(ctx, parent.ID, api.RerunRequest{TargetLanguage: "de"})
	if err != nil {
		t.Fatalf("Rerun: %v", err)
	}
	child := testsupport.ReloadJob(t, store, id)
	if child.OutputDir == "" || child.OutputDir == parent.OutputDir {
		t.Fatalf("child output dir = %q, parent %q", child.OutputDir, parent.OutputDir)
	}
	layout := assembly.LayoutForJob(cfg, child, time.Now())
	if layout.Dir != child.OutputDir {
		t.Fatalf("layout dir %q does not follow the persisted output dir %q", layout.Dir, child.OutputDir)
	}

	if err := os.RemoveAll(filepath.Dir(parentImages)); err != nil {
		t.Fatalf("remove parent output: %v", err)
	}
	cloned, err := deck.Decode(child.DeckJSON)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, slide := range cloned.Slides[:2] {
		if filepath.Dir(slide.ImageRef) != layout.ImagesDir() {
			t.Fatalf("slide %d image %q is outside the child images dir", slide.Index, slide.ImageRef)
		}
		if _, err := os.Stat(slide.ImageRef); err != nil {
			t.Fatalf("slide %d image missing after parent cleanup: %v", slide.Index, err)
		}
	}
	if cloned.Slides[2].ImageRef != "" || len(cloned.Slides[2].Warnings) != 1 {
		t.Fatalf("imageless slide should keep its single warning, got %+v", cloned.Slides[2])
	}
}

func TestRerunRequiresNarration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := api.NewJobService(cfg, store)
	job := testsupport.NewJobWithDeck(t, store, cfg, testsupport.NewDeck("a"), queue.StatusExtracted)

	if _, err := svc.Rerun(context.Background(), job.ID, api.RerunRequest{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListAndRemove(t *testing.T) {
	svc, _, source := newService(t)
	ctx := context.Background()

	id, err := svc.StartJob(ctx, api.StartRequest{Source: source})
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	jobs, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != id || jobs[0].ProcessingLane != "content" {
		t.Fatalf("unexpected list %+v", jobs)
	}
	if jobs[0].Title != "Lecture" {
		t.Fatalf("title = %q, want inferred Lecture", jobs[0].Title)
	}
	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["pending"] != 1 || stats["completed"] != 0 {
		t.Fatalf("unexpected stats %v", stats)
	}
	removed, err := svc.Remove(ctx, id)
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("source must survive job removal: %v", err)
	}
}

func TestNilServiceIsSafe(t *testing.T) {
	var svc *api.JobService
	jobs, err := svc.List(context.Background())
	if err != nil || jobs != nil {
		t.Fatalf("List on nil service = %v, %v", jobs, err)
	}
	if _, err := svc.Describe(context.Background(), "x"); !errors.Is(err, api.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}
