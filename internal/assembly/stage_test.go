package assembly_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"slidecast/internal/assembly"
	"slidecast/internal/queue"
	"slidecast/internal/services"
	"slidecast/internal/testsupport"
)

func TestLayoutForJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	fresh := assembly.LayoutForJob(cfg, &queue.Job{ID: "abcd1234-ffff", SourcePath: "/in/Intro Deck.pptx", TargetLanguage: "fr"}, now)
	if filepath.Dir(fresh.Dir) != cfg.Paths.OutputDir {
		t.Fatalf("fresh layout %q not under output root", fresh.Dir)
	}
	if filepath.Base(fresh.Dir) != "intro_deck_abcd1234_20260304_050607" {
		t.Fatalf("unexpected dir name %q", filepath.Base(fresh.Dir))
	}

	fixed := assembly.LayoutForJob(cfg, &queue.Job{ID: "x", SourcePath: "/in/Intro Deck.pptx", TargetLanguage: "fr", OutputDir: "/out/existing"}, now)
	if fixed.Dir != "/out/existing" || fixed.VideoPath() != "/out/existing/intro_deck_fr.mp4" {
		t.Fatalf("unexpected recorded layout %+v (video %s)", fixed, fixed.VideoPath())
	}
}

func TestStageRendersTimedDeck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	out := filepath.Join(cfg.Paths.OutputDir, "lecture")
	d := timedDeck(t, out)
	job := testsupport.NewJobWithDeck(t, store, cfg, d, queue.StatusAssembling)
	job.OutputDir = out

	enc := &recordingEncoder{}
	handler := assembly.NewStageWithDependencies(cfg, store, nil, newAssembler(enc, nil, false))
	if err := handler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	layout := assembly.LayoutForJob(cfg, job, time.Now())
	if _, err := os.Stat(layout.VideoPath()); err != nil {
		t.Fatalf("video missing: %v", err)
	}
	if _, err := os.Stat(layout.ManifestPath("json")); err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
	if job.ProgressPercent != 100 {
		t.Fatalf("progress = %v, want 100", job.ProgressPercent)
	}
}

func TestStageRequiresDurations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJobWithDeck(t, store, cfg, testsupport.NewNarratedDeck("Untimed."), queue.StatusAssembling)

	handler := assembly.NewStageWithDependencies(cfg, store, nil, newAssembler(&recordingEncoder{}, nil, false))
	if err := handler.Execute(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
