package deck

import (
	"context"
	"fmt"
	"sync"
)

// CheckpointFunc persists a deck snapshot.
type CheckpointFunc func(ctx context.Context, snapshot *Deck) error

// Recorder serializes per-slide writes to a shared deck. Each Apply mutates a
// private copy of the slide and swaps it in under the lock, so readers never see
// a half-written slide. When a checkpoint function is configured, the snapshot
// taken after each write is persisted before Apply returns.
type Recorder struct {
	mu         sync.Mutex
	deck       *Deck
	checkpoint CheckpointFunc
}

// NewRecorder wraps d. The recorder owns d from here on; callers read it back
// through Snapshot.
func NewRecorder(d *Deck, checkpoint CheckpointFunc) *Recorder {
	return &Recorder{deck: d, checkpoint: checkpoint}
}

// Len returns the number of slides.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deck.Slides)
}

// Slide returns a copy of the slide at index.
func (r *Recorder) Slide(index int) (Slide, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.deck.Slides) {
		return Slide{}, fmt.Errorf("slide index %d out of range", index)
	}
	return r.deck.Slides[index].clone(), nil
}

// Apply runs fn against a copy of the slide at index and commits the result.
func (r *Recorder) Apply(ctx context.Context, index int, fn func(*Slide)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.deck.Slides) {
		return fmt.Errorf("slide index %d out of range", index)
	}
	updated := r.deck.Slides[index].clone()
	fn(&updated)
	updated.Index = index
	r.deck.Slides[index] = updated
	if r.checkpoint == nil {
		return nil
	}
	if err := r.checkpoint(ctx, r.deck.Clone()); err != nil {
		return fmt.Errorf("checkpoint slide %d: %w", index, err)
	}
	return nil
}

// Snapshot returns a deep copy of the current deck.
func (r *Recorder) Snapshot() *Deck {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deck.Clone()
}
