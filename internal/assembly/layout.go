package assembly

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"slidecast/internal/language"
	"slidecast/internal/textutil"
)

// Layout describes a job's output directory.
//
//	<dir>/images/slide_001.png
//	<dir>/audio/slide_001.mp3
//	<dir>/segments/
//	<dir>/<slug>_<lang>.mp4
//	<dir>/manifest.json, manifest.yaml, script.docx
type Layout struct {
	Dir      string `json:"dir"`
	Slug     string `json:"slug"`
	Language string `json:"language"`
}

// DirName returns <slug>_<first 8 of jobID>_<YYYYmmdd_HHMMSS>.
func DirName(slug, jobID string, now time.Time) string {
	id := strings.ReplaceAll(jobID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s_%s_%s", slug, id, now.Format("20060102_150405"))
}

// NewLayout plans a fresh output directory under root for a deck read from
// source and narrated in lang.
func NewLayout(root, source, jobID, lang string, now time.Time) Layout {
	slug := textutil.Slug(source)
	return Layout{
		Dir:      filepath.Join(root, DirName(slug, jobID, now)),
		Slug:     slug,
		Language: lang,
	}
}

// ImagesDir holds the extracted slide images.
func (l Layout) ImagesDir() string { return filepath.Join(l.Dir, "images") }

// AudioDir holds the synthesized clips.
func (l Layout) AudioDir() string { return filepath.Join(l.Dir, "audio") }

// SegmentsDir holds the per-slide encoded segments.
func (l Layout) SegmentsDir() string { return filepath.Join(l.Dir, "segments") }

// VideoPath is the final lecture.
func (l Layout) VideoPath() string {
	lang := language.Base(l.Language)
	if lang == "" {
		lang = textutil.SanitizeToken(l.Language)
	}
	return filepath.Join(l.Dir, fmt.Sprintf("%s_%s.mp4", l.Slug, lang))
}

// ManifestPath returns manifest.<format>.
func (l Layout) ManifestPath(format string) string {
	return filepath.Join(l.Dir, "manifest."+format)
}

// ScriptPath is the narration script document.
func (l Layout) ScriptPath() string { return filepath.Join(l.Dir, "script.docx") }

// ImagePath returns the conventional image path for the slide at index.
func (l Layout) ImagePath(index int) string {
	return filepath.Join(l.ImagesDir(), fmt.Sprintf("slide_%03d.png", index+1))
}

// SegmentPath returns the segment path for the slide at index.
func (l Layout) SegmentPath(index int) string {
	return filepath.Join(l.SegmentsDir(), fmt.Sprintf("segment_%03d.mp4", index+1))
}
