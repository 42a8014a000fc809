package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"slidecast/internal/deck"
)

// NewDeck builds a deck with one slide per raw text, source language "en".
func NewDeck(texts ...string) *deck.Deck {
	d := &deck.Deck{
		JobID:          "test-job",
		SourcePath:     "/tmp/lecture.pptx",
		SourceLanguage: "en",
		Title:          "Test Lecture",
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	for i, text := range texts {
		d.Slides = append(d.Slides, deck.Slide{Index: i, RawText: text})
	}
	return d
}

// NewNarratedDeck builds a deck whose slides already carry narration.
func NewNarratedDeck(narrations ...string) *deck.Deck {
	d := NewDeck(narrations...)
	for i := range d.Slides {
		d.Slides[i].Narration = &deck.Narration{Text: narrations[i], Provider: "fake"}
	}
	return d
}

// WriteSlideImages creates a placeholder PNG per slide under dir and sets
// ImageRef.
func WriteSlideImages(t testing.TB, d *deck.Deck, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	for i := range d.Slides {
		path := filepath.Join(dir, fmt.Sprintf("slide_%03d.png", i+1))
		WriteFile(t, path, 64)
		d.Slides[i].ImageRef = path
	}
}
