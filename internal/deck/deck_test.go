package deck_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"slidecast/internal/deck"
)

func newDeck(n int) *deck.Deck {
	d := &deck.Deck{JobID: "job", SourceLanguage: "en"}
	for i := 0; i < n; i++ {
		d.Slides = append(d.Slides, deck.Slide{Index: i, RawText: "slide text"})
	}
	return d
}

func TestValidateRequiresContiguousIndices(t *testing.T) {
	d := newDeck(3)
	if err := d.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d.Slides[1].Index = 5
	if err := d.Validate(); !errors.Is(err, deck.ErrSlideOrdering) {
		t.Fatalf("expected ordering error, got %v", err)
	}
	if err := (&deck.Deck{}).Validate(); !errors.Is(err, deck.ErrEmptyDeck) {
		t.Fatalf("expected empty deck error, got %v", err)
	}
}

func TestEncodeDecodeKeepsDerivedFields(t *testing.T) {
	d := newDeck(1)
	d.Slides[0].Narration = &deck.Narration{Text: "Hello", Provider: "gemini", Attempts: 1}
	d.Slides[0].Translation = &deck.Translation{Text: "Bonjour", Language: "fr", Provider: "google_free"}
	raw, err := d.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := deck.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Slides[0].Narration.Text != "Hello" || got.Slides[0].Translation.Language != "fr" {
		t.Fatalf("unexpected round trip: %+v", got.Slides[0])
	}
	if got.Slides[0].SpeechText() != "Bonjour" {
		t.Fatalf("expected translated speech text, got %q", got.Slides[0].SpeechText())
	}
}

func TestCloneIsDeep(t *testing.T) {
	d := newDeck(1)
	d.Slides[0].Narration = &deck.Narration{Text: "original"}
	clone := d.Clone()
	clone.Slides[0].Narration.Text = "changed"
	if d.Slides[0].Narration.Text != "original" {
		t.Fatal("clone shares narration pointer")
	}
}

func TestRecorderConcurrentApplyAndCheckpoint(t *testing.T) {
	d := newDeck(16)
	var (
		mu        sync.Mutex
		snapshots int
	)
	rec := deck.NewRecorder(d, func(_ context.Context, snap *deck.Deck) error {
		mu.Lock()
		snapshots++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			err := rec.Apply(context.Background(), idx, func(s *deck.Slide) {
				s.Translation = &deck.Translation{Text: "t", Language: "fr", Provider: "p"}
			})
			if err != nil {
				t.Errorf("apply %d: %v", idx, err)
			}
		}(i)
	}
	wg.Wait()

	snap := rec.Snapshot()
	for i, slide := range snap.Slides {
		if slide.Index != i || slide.Translation == nil || slide.Translation.Provider != "p" {
			t.Fatalf("slide %d not recorded: %+v", i, slide)
		}
	}
	if snapshots != 16 {
		t.Fatalf("expected 16 checkpoints, got %d", snapshots)
	}
}

func TestRecorderReportsCheckpointFailure(t *testing.T) {
	boom := errors.New("disk full")
	rec := deck.NewRecorder(newDeck(1), func(context.Context, *deck.Deck) error { return boom })
	err := rec.Apply(context.Background(), 0, func(s *deck.Slide) {})
	if !errors.Is(err, boom) {
		t.Fatalf("expected checkpoint error, got %v", err)
	}
	if err := rec.Apply(context.Background(), 3, func(s *deck.Slide) {}); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestSpeakableTextStripsSlideNumbers(t *testing.T) {
	got := deck.SpeakableText("2\n  12.  \nWelcome   to\n4)\nthe   course")
	if got != "Welcome to the course" {
		t.Fatalf("unexpected speakable text: %q", got)
	}
}

func TestMinimalNarrationIsDeterministic(t *testing.T) {
	raw := "3\n- Market size\n• Growth rate!\n\nNext steps"
	want := "Market size. Growth rate! Next steps."
	for i := 0; i < 2; i++ {
		if got := deck.MinimalNarration(raw); got != want {
			t.Fatalf("unexpected minimal narration: %q", got)
		}
	}
}

func TestLookupStyle(t *testing.T) {
	tests := []struct {
		name string
		temp float64
	}{
		{"Professional", 0.5},
		{"engaging", 0.7},
		{" ENTHUSIASTIC ", 0.8},
		{"casual", 0.7},
		{"storyteller", 0.8},
	}
	for _, tc := range tests {
		style, ok := deck.LookupStyle(tc.name)
		if !ok {
			t.Fatalf("expected style %q", tc.name)
		}
		if style.Temperature != tc.temp {
			t.Fatalf("style %q temperature = %v, want %v", tc.name, style.Temperature, tc.temp)
		}
	}
	if _, ok := deck.LookupStyle("grumpy"); ok {
		t.Fatal("unexpected style match")
	}
	if got, _ := deck.LookupStyle("storyteller"); got.DisplayName() != "Storyteller" {
		t.Fatalf("unexpected display name %q", got.DisplayName())
	}
}
