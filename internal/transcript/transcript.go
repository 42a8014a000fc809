// Package transcript writes the narration script of a lecture as a Word
// document, one section per slide.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"slidecast/internal/deck"
	"slidecast/internal/language"
)

const (
	fontName  = "Calibri"
	fontSize  = 12
	titleSize = 18
)

// Entry is one slide's script.
type Entry struct {
	Index    int
	Start    float64
	Text     string
	Original string
	Language string
	Warnings []string
}

// Entries derives script entries from d. Start times come from the slide
// durations; the spoken text is the translation when there is one.
func Entries(d *deck.Deck) []Entry {
	entries := make([]Entry, 0, len(d.Slides))
	var start float64
	for _, slide := range d.Slides {
		entry := Entry{
			Index:    slide.Index,
			Start:    start,
			Text:     slide.SpeechText(),
			Language: slide.SpeechLanguage(d.SourceLanguage),
		}
		if slide.Translation != nil && !slide.Translation.Skipped && !slide.Translation.Degraded && slide.Narration != nil {
			entry.Original = slide.Narration.Text
		}
		for _, w := range slide.Warnings {
			entry.Warnings = append(entry.Warnings, w.Stage+": "+w.Message)
		}
		entries = append(entries, entry)
		start += slide.DurationSeconds
	}
	return entries
}

// Write renders d's script to path.
func Write(path string, title string, d *deck.Deck) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	addRun(doc.AddParagraph(""), title, true, titleSize)

	for _, entry := range Entries(d) {
		heading := fmt.Sprintf("Slide %d  [%s]", entry.Index+1, Timestamp(entry.Start))
		if entry.Language != "" {
			heading += "  " + language.DisplayName(entry.Language)
		}
		addRun(doc.AddParagraph(""), heading, true, fontSize+1)
		text := entry.Text
		if text == "" {
			text = "(no narration)"
		}
		addRun(doc.AddParagraph(""), text, false, fontSize)
		if entry.Original != "" {
			addRun(doc.AddParagraph(""), entry.Original, false, fontSize-2).Italic(true)
		}
		for _, warning := range entry.Warnings {
			addRun(doc.AddParagraph(""), "Warning: "+warning, false, fontSize-2).Color("9C2A00")
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create script directory: %w", err)
	}
	if err := doc.SaveTo(path); err != nil {
		return fmt.Errorf("save script: %w", err)
	}
	return nil
}

func addRun(p *docx.Paragraph, text string, bold bool, size uint64) *docx.Run {
	run := p.AddText(text).Font(fontName).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
	return run
}

// Timestamp formats seconds as MM:SS, or H:MM:SS past the hour.
func Timestamp(seconds float64) string {
	total := int(seconds + 0.5)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
