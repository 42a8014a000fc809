package speech_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"slidecast/internal/queue"
	"slidecast/internal/services"
	"slidecast/internal/speech"
	"slidecast/internal/stage"
	"slidecast/internal/testsupport"
)

func TestStageSynthesizesIntoJobAudioDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := testsupport.NewNarratedDeck("Welcome to the course.", "Prices rise with demand.")
	job := testsupport.NewJobWithDeck(t, store, cfg, d, queue.StatusSynthesizing)

	var quality string
	voice := &fakeVoice{name: "espeak"}
	handler := speech.NewStageWithDependencies(cfg, store, nil, func(q string) (*speech.Engine, error) {
		quality = q
		return newEngine(t, fixedDuration(3), voice), nil
	})
	if err := handler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if quality != cfg.Job.VoiceQuality {
		t.Fatalf("engine built for quality %q, want %q", quality, cfg.Job.VoiceQuality)
	}
	if !strings.HasPrefix(job.OutputDir, cfg.Paths.OutputDir) {
		t.Fatalf("output dir %q not under %q", job.OutputDir, cfg.Paths.OutputDir)
	}

	saved, err := stage.LoadDeck(testsupport.ReloadJob(t, store, job.ID))
	if err != nil {
		t.Fatalf("LoadDeck: %v", err)
	}
	for i, slide := range saved.Slides {
		if slide.Audio == nil {
			t.Fatalf("slide %d has no audio", i)
		}
		if filepath.Dir(slide.Audio.Path) != filepath.Join(job.OutputDir, "audio") {
			t.Fatalf("slide %d clip %q outside audio dir", i, slide.Audio.Path)
		}
		if slide.Audio.Seconds != 3 {
			t.Fatalf("slide %d seconds = %v, want 3", i, slide.Audio.Seconds)
		}
	}
}

func TestStageFactoryErrorFailsJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJobWithDeck(t, store, cfg, testsupport.NewNarratedDeck("Hello."), queue.StatusSynthesizing)

	setup := services.Wrap(services.ErrConfiguration, "synthesis", "new engine", "no voices", nil)
	handler := speech.NewStageWithDependencies(cfg, store, nil, func(string) (*speech.Engine, error) {
		return nil, setup
	})
	if err := handler.Execute(context.Background(), job); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if handler.HealthCheck(context.Background()).Ready {
		t.Fatal("expected unhealthy stage when the engine cannot be built")
	}
}
