package assembly

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"slidecast/internal/deck"
	"slidecast/internal/fileutil"
)

// Manifest describes a rendered lecture slide by slide.
type Manifest struct {
	JobID          string          `json:"job_id" yaml:"job_id"`
	Title          string          `json:"title,omitempty" yaml:"title,omitempty"`
	Source         string          `json:"source" yaml:"source"`
	SourceLanguage string          `json:"source_language" yaml:"source_language"`
	TargetLanguage string          `json:"target_language" yaml:"target_language"`
	Video          string          `json:"video" yaml:"video"`
	FPS            int             `json:"fps" yaml:"fps"`
	Width          int             `json:"width" yaml:"width"`
	Height         int             `json:"height" yaml:"height"`
	TotalSeconds   float64         `json:"total_seconds" yaml:"total_seconds"`
	EncodedSeconds float64         `json:"encoded_seconds,omitempty" yaml:"encoded_seconds,omitempty"`
	GeneratedAt    time.Time       `json:"generated_at" yaml:"generated_at"`
	Slides         []ManifestSlide `json:"slides" yaml:"slides"`
}

// ManifestSlide is one slide's entry.
type ManifestSlide struct {
	Index               int               `json:"index" yaml:"index"`
	Start               float64           `json:"start" yaml:"start"`
	End                 float64           `json:"end" yaml:"end"`
	Duration            float64           `json:"duration" yaml:"duration"`
	Image               string            `json:"image,omitempty" yaml:"image,omitempty"`
	Audio               string            `json:"audio,omitempty" yaml:"audio,omitempty"`
	Language            string            `json:"language" yaml:"language"`
	Narration           string            `json:"translated_narration,omitempty" yaml:"translated_narration,omitempty"`
	SlideText           string            `json:"translated_text,omitempty" yaml:"translated_text,omitempty"`
	NarrationProvider   string            `json:"narration_provider,omitempty" yaml:"narration_provider,omitempty"`
	TranslationProvider string            `json:"translation_provider,omitempty" yaml:"translation_provider,omitempty"`
	AudioProvider       string            `json:"audio_provider,omitempty" yaml:"audio_provider,omitempty"`
	Warnings            []ManifestWarning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// ManifestWarning is a recorded degradation.
type ManifestWarning struct {
	Stage   string `json:"stage" yaml:"stage"`
	Message string `json:"message" yaml:"message"`
}

// ManifestInput carries the job metadata that is not part of the deck.
type ManifestInput struct {
	TargetLanguage string
	Video          string
	Width          int
	Height         int
	EncodedSeconds float64
	GeneratedAt    time.Time
}

// BuildManifest combines d and its timeline. It has one entry per slide.
func BuildManifest(d *deck.Deck, tl Timeline, in ManifestInput) Manifest {
	m := Manifest{
		JobID:          d.JobID,
		Title:          d.Title,
		Source:         d.SourcePath,
		SourceLanguage: d.SourceLanguage,
		TargetLanguage: in.TargetLanguage,
		Video:          in.Video,
		FPS:            tl.FPS,
		Width:          in.Width,
		Height:         in.Height,
		TotalSeconds:   tl.TotalSeconds(),
		EncodedSeconds: in.EncodedSeconds,
		GeneratedAt:    in.GeneratedAt.UTC(),
		Slides:         make([]ManifestSlide, 0, len(d.Slides)),
	}
	for i, slide := range d.Slides {
		entry := ManifestSlide{
			Index:     slide.Index,
			Image:     slide.ImageRef,
			Language:  slide.SpeechLanguage(d.SourceLanguage),
			Narration: slide.SpeechText(),
			SlideText: slide.OverlayText(),
		}
		if i < len(tl.Segments) {
			seg := tl.Segments[i]
			entry.Start, entry.End, entry.Duration = seg.Start, seg.End, seg.Seconds()
		}
		if slide.Narration != nil {
			entry.NarrationProvider = slide.Narration.Provider
		}
		if slide.Translation != nil {
			entry.TranslationProvider = slide.Translation.Provider
		}
		if slide.Audio != nil {
			entry.Audio = slide.Audio.Path
			entry.AudioProvider = slide.Audio.Provider
		}
		for _, w := range slide.Warnings {
			entry.Warnings = append(entry.Warnings, ManifestWarning{Stage: w.Stage, Message: w.Message})
		}
		m.Slides = append(m.Slides, entry)
	}
	return m
}

// WriteManifests writes m in each requested format ("json", "yaml") and
// returns the written paths in order.
func WriteManifests(layout Layout, m Manifest, formats []string) ([]string, error) {
	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		var (
			data []byte
			err  error
		)
		switch format {
		case "json":
			data, err = json.MarshalIndent(m, "", "  ")
		case "yaml":
			data, err = yaml.Marshal(m)
		default:
			return paths, fmt.Errorf("unsupported manifest format %q", format)
		}
		if err != nil {
			return paths, fmt.Errorf("encode %s manifest: %w", format, err)
		}
		path := layout.ManifestPath(format)
		if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s manifest: %w", format, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
