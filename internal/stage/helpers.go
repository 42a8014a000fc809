package stage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"slidecast/internal/deck"
	"slidecast/internal/queue"
	"slidecast/internal/services"
)

// DeckSaver persists deck checkpoints for a job.
type DeckSaver interface {
	SaveDeck(ctx context.Context, job *queue.Job) error
}

// ProgressFunc reports how many slides of a snapshot a stage has finished.
type ProgressFunc func(d *deck.Deck) int

// LoadDeck decodes the deck checkpoint stored on the job.
// On failure it returns a services.ErrValidation suitable for stage Execute methods.
func LoadDeck(job *queue.Job) (*deck.Deck, error) {
	if job == nil || strings.TrimSpace(job.DeckJSON) == "" {
		return nil, services.Wrap(
			services.ErrValidation, "checkpoint", "load deck",
			"Job has no extracted deck; retry from extraction", nil)
	}
	d, err := deck.Decode(job.DeckJSON)
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "checkpoint", "load deck",
			"Deck checkpoint is corrupt; rerun the job", err)
	}
	return d, nil
}

// SaveDeck encodes d onto the job and persists the checkpoint.
func SaveDeck(ctx context.Context, store DeckSaver, job *queue.Job, d *deck.Deck) error {
	raw, err := d.Encode()
	if err != nil {
		return services.Wrap(services.ErrValidation, "checkpoint", "encode deck", "Deck could not be serialized", err)
	}
	job.DeckJSON = raw
	if strings.TrimSpace(d.Title) != "" {
		job.Title = d.Title
	}
	if store == nil {
		return nil
	}
	if err := store.SaveDeck(ctx, job); err != nil {
		if errors.Is(err, queue.ErrJobCancelled) {
			return err
		}
		return services.Wrap(services.ErrTransient, "checkpoint", "persist deck", "Failed to checkpoint deck to the job database", err)
	}
	return nil
}

// Checkpointer returns a deck.CheckpointFunc that persists every slide write
// and keeps the job's progress in step with it.
func Checkpointer(store DeckSaver, job *queue.Job, label string, done ProgressFunc) deck.CheckpointFunc {
	return func(ctx context.Context, snapshot *deck.Deck) error {
		total := len(snapshot.Slides)
		finished := 0
		if done != nil {
			finished = done(snapshot)
		}
		percent := 0.0
		if total > 0 {
			percent = float64(finished) / float64(total) * 100
		}
		job.SetProgress(label, fmt.Sprintf("%s %d/%d slides", label, finished, total), percent)
		return SaveDeck(ctx, store, job, snapshot)
	}
}

// CountSlides returns a ProgressFunc counting slides that satisfy pred.
func CountSlides(pred func(deck.Slide) bool) ProgressFunc {
	return func(d *deck.Deck) int {
		n := 0
		for _, slide := range d.Slides {
			if pred(slide) {
				n++
			}
		}
		return n
	}
}
