package timing_test

import (
	"context"
	"testing"

	"slidecast/internal/deck"
	"slidecast/internal/queue"
	"slidecast/internal/stage"
	"slidecast/internal/testsupport"
	"slidecast/internal/timing"
)

func TestStageAppliesDurations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := testsupport.NewNarratedDeck("Long narration for the first slide.", "Second.")
	d.Slides[0].Audio = &deck.Audio{Path: "/out/audio/slide_001.mp3", Provider: "espeak", Seconds: 12}
	job := testsupport.NewJobWithDeck(t, store, cfg, d, queue.StatusTiming)

	handler := timing.NewStage(cfg, store, nil)
	if !handler.HealthCheck(context.Background()).Ready {
		t.Fatal("expected healthy timing stage")
	}
	if err := handler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	saved, err := stage.LoadDeck(testsupport.ReloadJob(t, store, job.ID))
	if err != nil {
		t.Fatalf("LoadDeck: %v", err)
	}
	want := []float64{12 + cfg.Timing.PaddingSeconds, cfg.Timing.FloorSeconds}
	for i, slide := range saved.Slides {
		if slide.DurationSeconds != want[i] {
			t.Fatalf("slide %d duration = %v, want %v", i, slide.DurationSeconds, want[i])
		}
	}
}
