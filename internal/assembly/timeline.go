package assembly

import (
	"fmt"
	"math"

	"slidecast/internal/deck"
	"slidecast/internal/services"
)

// Segment is one slide's span on the timeline. Frame boundaries are exact;
// the second values are derived from them.
type Segment struct {
	Index      int
	StartFrame int
	EndFrame   int
	Start      float64
	End        float64
}

// Frames returns the segment length in frames.
func (s Segment) Frames() int { return s.EndFrame - s.StartFrame }

// Seconds returns the segment length in seconds.
func (s Segment) Seconds() float64 { return s.End - s.Start }

// Timeline is the frame-quantised plan for a deck.
type Timeline struct {
	FPS         int
	Segments    []Segment
	TotalFrames int
}

// TotalSeconds returns the planned length.
func (t Timeline) TotalSeconds() float64 {
	if t.FPS <= 0 {
		return 0
	}
	return float64(t.TotalFrames) / float64(t.FPS)
}

// BuildTimeline places every slide of d on the frame grid at fps. Boundaries
// are the rounded cumulative durations, so the total stays within half a frame
// of the summed durations regardless of slide count.
func BuildTimeline(d *deck.Deck, fps int) (Timeline, error) {
	if fps <= 0 {
		return Timeline{}, services.Wrap(services.ErrValidation, "assembly", "build timeline", fmt.Sprintf("fps must be positive, got %d", fps), nil)
	}
	tl := Timeline{FPS: fps, Segments: make([]Segment, 0, len(d.Slides))}
	var (
		cumulative float64
		prev       int
	)
	for _, slide := range d.Slides {
		if slide.DurationSeconds <= 0 || math.IsNaN(slide.DurationSeconds) {
			return Timeline{}, services.Wrap(services.ErrValidation, "assembly", "build timeline",
				fmt.Sprintf("slide %d has no duration", slide.Index), nil)
		}
		cumulative += slide.DurationSeconds
		end := int(math.Round(cumulative * float64(fps)))
		if end <= prev {
			end = prev + 1
		}
		tl.Segments = append(tl.Segments, Segment{
			Index:      slide.Index,
			StartFrame: prev,
			EndFrame:   end,
			Start:      float64(prev) / float64(fps),
			End:        float64(end) / float64(fps),
		})
		prev = end
	}
	tl.TotalFrames = prev
	return tl, nil
}
