// Package timing derives how long each slide stays on screen.
package timing

import (
	"math"

	"slidecast/internal/config"
	"slidecast/internal/deck"
)

// Policy holds the duration rule parameters.
type Policy struct {
	PaddingSeconds float64
	FloorSeconds   float64
}

// DefaultPolicy pads clips by half a second and never shows a slide for less
// than five seconds.
func DefaultPolicy() Policy {
	return Policy{PaddingSeconds: 0.5, FloorSeconds: 5.0}
}

// PolicyFromConfig reads the timing section.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{PaddingSeconds: cfg.Timing.PaddingSeconds, FloorSeconds: cfg.Timing.FloorSeconds}
}

// Compute returns the on-screen duration for slide: the clip length plus
// padding, never below the floor. A slide without audio gets the floor.
func Compute(slide deck.Slide, p Policy) float64 {
	if slide.Audio == nil || slide.Audio.Seconds <= 0 || math.IsNaN(slide.Audio.Seconds) {
		return p.FloorSeconds
	}
	return math.Max(p.FloorSeconds, slide.Audio.Seconds+p.PaddingSeconds)
}

// Apply sets DurationSeconds on every slide of d and returns the total.
func Apply(d *deck.Deck, p Policy) float64 {
	var total float64
	for i := range d.Slides {
		d.Slides[i].DurationSeconds = Compute(d.Slides[i], p)
		total += d.Slides[i].DurationSeconds
	}
	return total
}
