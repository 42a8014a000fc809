// Package deck holds the per-job slide model that every pipeline stage reads
// and fills in.
//
// A Deck is created once by the extraction collaborator. After that only the
// derived per-slide fields change, and they are filled monotonically: a later
// stage never clears what an earlier stage produced.
package deck

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Deck is the ordered set of slides for one conversion job.
type Deck struct {
	JobID          string    `json:"job_id"`
	SourcePath     string    `json:"source_path"`
	SourceLanguage string    `json:"source_language"`
	Title          string    `json:"title,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	Slides         []Slide   `json:"slides"`
}

// Slide is one unit of the presentation plus everything derived from it.
type Slide struct {
	Index           int          `json:"index"`
	RawText         string       `json:"raw_text"`
	ImageRef        string       `json:"image_ref,omitempty"`
	Narration       *Narration   `json:"narration,omitempty"`
	Translation     *Translation `json:"translated_narration,omitempty"`
	TextTranslation *Translation `json:"translated_text,omitempty"`
	Audio           *Audio       `json:"audio_ref,omitempty"`
	DurationSeconds float64      `json:"duration_seconds,omitempty"`
	Warnings        []Warning    `json:"warnings,omitempty"`
}

// Narration is the generated lecture text for a slide.
type Narration struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Degraded bool   `json:"degraded,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
}

// Translation is the narration rendered in the target language. Skipped marks an
// identity mapping; Degraded marks chain exhaustion, in which case Text carries
// the source-language narration and Language stays the source language.
type Translation struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Provider string `json:"provider,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

// Audio references a synthesized narration clip on disk.
type Audio struct {
	Path     string  `json:"path"`
	Provider string  `json:"provider"`
	Voice    string  `json:"voice,omitempty"`
	Gender   string  `json:"gender,omitempty"`
	Bytes    int64   `json:"bytes"`
	Seconds  float64 `json:"seconds"`
}

// Warning records a non-fatal degradation for a slide.
type Warning struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// Validation errors returned by Validate.
var (
	ErrEmptyDeck     = errors.New("deck has no slides")
	ErrSlideOrdering = errors.New("slide indices must be contiguous and start at zero")
)

// Validate checks the structural invariants the pipeline depends on.
func (d *Deck) Validate() error {
	if d == nil || len(d.Slides) == 0 {
		return ErrEmptyDeck
	}
	for i, slide := range d.Slides {
		if slide.Index != i {
			return fmt.Errorf("%w: position %d has index %d", ErrSlideOrdering, i, slide.Index)
		}
	}
	return nil
}

// Clone returns a deep copy of the deck.
func (d *Deck) Clone() *Deck {
	if d == nil {
		return nil
	}
	out := *d
	out.Slides = make([]Slide, len(d.Slides))
	for i, slide := range d.Slides {
		out.Slides[i] = slide.clone()
	}
	return &out
}

func (s Slide) clone() Slide {
	out := s
	if s.Narration != nil {
		n := *s.Narration
		out.Narration = &n
	}
	if s.Translation != nil {
		t := *s.Translation
		out.Translation = &t
	}
	if s.TextTranslation != nil {
		t := *s.TextTranslation
		out.TextTranslation = &t
	}
	if s.Audio != nil {
		a := *s.Audio
		out.Audio = &a
	}
	if len(s.Warnings) > 0 {
		out.Warnings = append([]Warning(nil), s.Warnings...)
	}
	return out
}

// Encode serializes the deck for persistence.
func (d *Deck) Encode() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode deck: %w", err)
	}
	return string(data), nil
}

// Decode parses a persisted deck.
func Decode(raw string) (*Deck, error) {
	if raw == "" {
		return nil, ErrEmptyDeck
	}
	var d Deck
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("decode deck: %w", err)
	}
	return &d, nil
}

// SpeechText returns the text the synthesizer should speak for the slide: the
// translation when present, otherwise the narration.
func (s Slide) SpeechText() string {
	if s.Translation != nil {
		return s.Translation.Text
	}
	if s.Narration != nil {
		return s.Narration.Text
	}
	return ""
}

// SpeechLanguage returns the language SpeechText is written in.
func (s Slide) SpeechLanguage(fallback string) string {
	if s.Translation != nil && s.Translation.Language != "" {
		return s.Translation.Language
	}
	return fallback
}

// OverlayText returns the translated slide text worth drawing over the slide
// image, or "" when the text was not translated.
func (s Slide) OverlayText() string {
	tr := s.TextTranslation
	if tr == nil || tr.Skipped || tr.Degraded {
		return ""
	}
	return strings.TrimSpace(tr.Text)
}

// HasWarnings reports whether any slide recorded a degradation.
func (d *Deck) HasWarnings() bool {
	for _, slide := range d.Slides {
		if len(slide.Warnings) > 0 {
			return true
		}
	}
	return false
}

// Warnings flattens all slide warnings in index order.
func (d *Deck) Warnings() []SlideWarning {
	var out []SlideWarning
	for _, slide := range d.Slides {
		for _, w := range slide.Warnings {
			out = append(out, SlideWarning{Index: slide.Index, Warning: w})
		}
	}
	return out
}

// SlideWarning ties a warning to its slide index.
type SlideWarning struct {
	Index int `json:"index"`
	Warning
}

// TotalDuration sums the per-slide durations.
func (d *Deck) TotalDuration() float64 {
	var total float64
	for _, slide := range d.Slides {
		total += slide.DurationSeconds
	}
	return total
}

// SetWarning replaces any warnings previously recorded by stage with message.
func (s *Slide) SetWarning(stage, message string) {
	s.ClearWarnings(stage)
	s.Warnings = append(s.Warnings, Warning{Stage: stage, Message: message})
}

// ClearWarnings drops the warnings recorded by stage, typically after a retry
// succeeded where an earlier run degraded.
func (s *Slide) ClearWarnings(stage string) {
	kept := s.Warnings[:0]
	for _, w := range s.Warnings {
		if w.Stage != stage {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		s.Warnings = nil
		return
	}
	s.Warnings = kept
}
