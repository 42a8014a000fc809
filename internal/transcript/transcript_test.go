package transcript_test

import (
	"os"
	"path/filepath"
	"testing"

	"slidecast/internal/deck"
	"slidecast/internal/testsupport"
	"slidecast/internal/transcript"
)

func TestEntriesUseTranslationAndTimeline(t *testing.T) {
	d := testsupport.NewNarratedDeck("Hello class.", "Goodbye.")
	d.Slides[0].Translation = &deck.Translation{Text: "Bonjour la classe.", Language: "fr", Provider: "fake"}
	d.Slides[0].DurationSeconds = 6.5
	d.Slides[1].DurationSeconds = 5
	d.Slides[1].SetWarning("synthesis", "no audio")

	entries := transcript.Entries(d)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Text != "Bonjour la classe." || entries[0].Original != "Hello class." || entries[0].Language != "fr" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Start != 6.5 || entries[1].Language != "en" || len(entries[1].Warnings) != 1 {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}
}

func TestWriteProducesDocx(t *testing.T) {
	d := testsupport.NewNarratedDeck("Welcome everyone.", "Thank you for your attention.")
	path := filepath.Join(t.TempDir(), "out", "script.docx")

	if err := transcript.Write(path, "Market Overview", d); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	if len(data) < 4 || string(data[:2]) != "PK" {
		t.Fatalf("script is not a zip container")
	}
}

func TestTimestamp(t *testing.T) {
	tests := map[float64]string{0: "00:00", 65.4: "01:05", 3725: "1:02:05"}
	for in, want := range tests {
		if got := transcript.Timestamp(in); got != want {
			t.Fatalf("Timestamp(%v) = %q, want %q", in, got, want)
		}
	}
}
