package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"slidecast/internal/deck"
	"slidecast/internal/fileutil"
	"slidecast/internal/services"
)

const (
	stageName = "extraction"

	// ManifestName is the file an extraction tool writes into the work dir.
	ManifestName = "deck.json"
)

// Extractor produces a deck from source, placing slide images under
// <workDir>/images.
type Extractor interface {
	Extract(ctx context.Context, source, workDir string) (*deck.Deck, error)
}

// Manifest is the deck.json exchange format.
//
//	{"title": "...", "source_language": "en",
//	 "slides": [{"index": 0, "text": "...", "image": "slide1.png"}]}
//
// Image paths are relative to the manifest unless absolute.
type Manifest struct {
	Title          string          `json:"title"`
	SourceLanguage string          `json:"source_language"`
	Slides         []ManifestSlide `json:"slides"`
}

// ManifestSlide is one slide in deck.json.
type ManifestSlide struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Image string `json:"image"`
}

// ManifestExtractor imports a deck.json, given either the file or the
// directory holding it.
type ManifestExtractor struct {
	Now func() time.Time
}

// Extract reads the manifest, copies slide images to <workDir>/images as
// slide_NNN.<ext> and returns the deck. Slides are ordered by their index.
func (m ManifestExtractor) Extract(ctx context.Context, source, workDir string) (*deck.Deck, error) {
	path := source
	if info, err := os.Stat(source); err == nil && info.IsDir() {
		path = filepath.Join(source, ManifestName)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, stageName, "read manifest", path, err)
	}
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, services.Wrap(services.ErrExtraction, stageName, "parse manifest", path, err)
	}
	if len(manifest.Slides) == 0 {
		return nil, services.Wrap(services.ErrExtraction, stageName, "parse manifest", "manifest lists no slides", deck.ErrEmptyDeck)
	}

	ordered := make([]ManifestSlide, len(manifest.Slides))
	seen := make([]bool, len(manifest.Slides))
	for _, slide := range manifest.Slides {
		if slide.Index < 0 || slide.Index >= len(ordered) || seen[slide.Index] {
			return nil, services.Wrap(services.ErrExtraction, stageName, "parse manifest",
				fmt.Sprintf("slide index %d is out of range or repeated", slide.Index), deck.ErrSlideOrdering)
		}
		ordered[slide.Index] = slide
		seen[slide.Index] = true
	}

	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	d := &deck.Deck{
		SourcePath:     source,
		SourceLanguage: strings.TrimSpace(manifest.SourceLanguage),
		Title:          strings.TrimSpace(manifest.Title),
		CreatedAt:      now().UTC(),
	}
	base := filepath.Dir(path)
	imagesDir := filepath.Join(workDir, "images")
	for i, slide := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ref, err := importImage(base, slide.Image, imagesDir, i)
		if err != nil {
			return nil, err
		}
		d.Slides = append(d.Slides, deck.Slide{Index: i, RawText: strings.TrimSpace(slide.Text), ImageRef: ref})
	}
	return d, nil
}

// importImage copies the slide image into the images directory. A slide
// without an image keeps an empty reference and renders black later.
func importImage(base, image, imagesDir string, index int) (string, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return "", nil
	}
	src := image
	if !filepath.IsAbs(src) {
		src = filepath.Join(base, src)
	}
	ext := strings.ToLower(filepath.Ext(src))
	if ext == "" {
		ext = ".png"
	}
	dst := filepath.Join(imagesDir, fmt.Sprintf("slide_%03d%s", index+1, ext))
	srcAbs, _ := filepath.Abs(src)
	dstAbs, _ := filepath.Abs(dst)
	if srcAbs == dstAbs {
		return dst, nil
	}
	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		return "", services.Wrap(services.ErrExtraction, stageName, "import image", fmt.Sprintf("slide %d", index), err)
	}
	return dst, nil
}
