package testsupport

import (
	"context"
	"testing"

	"slidecast/internal/config"
	"slidecast/internal/deck"
	"slidecast/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob enqueues a job with the config's job defaults for the given source.
func NewJob(t testing.TB, store *queue.Store, cfg *config.Config, source string) *queue.Job {
	t.Helper()

	job, err := store.NewJob(context.Background(), queue.NewJobParams{
		SourcePath:     source,
		Style:          cfg.Job.Style,
		VoiceQuality:   cfg.Job.VoiceQuality,
		VoiceGender:    cfg.Job.VoiceGender,
		SourceLanguage: cfg.Job.SourceLanguage,
		TargetLanguage: cfg.Job.TargetLanguage,
	})
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}

// NewJobWithDeck enqueues a job already at status holding d as its checkpoint.
func NewJobWithDeck(t testing.TB, store *queue.Store, cfg *config.Config, d *deck.Deck, status queue.Status) *queue.Job {
	t.Helper()

	raw, err := d.Encode()
	if err != nil {
		t.Fatalf("encode deck: %v", err)
	}
	job, err := store.NewJob(context.Background(), queue.NewJobParams{
		SourcePath:     d.SourcePath,
		Title:          d.Title,
		Style:          cfg.Job.Style,
		VoiceQuality:   cfg.Job.VoiceQuality,
		VoiceGender:    cfg.Job.VoiceGender,
		SourceLanguage: cfg.Job.SourceLanguage,
		TargetLanguage: cfg.Job.TargetLanguage,
		Status:         status,
		DeckJSON:       raw,
	})
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}

// ReloadJob fetches the persisted state of job.
func ReloadJob(t testing.TB, store *queue.Store, id string) *queue.Job {
	t.Helper()

	job, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("store.GetByID: %v", err)
	}
	if job == nil {
		t.Fatalf("job %s not found", id)
	}
	return job
}
