package narration_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"slidecast/internal/deck"
	"slidecast/internal/narration"
	"slidecast/internal/services"
	"slidecast/internal/testsupport"
)

type scriptedGenerator struct {
	mu      sync.Mutex
	prompts []narration.Prompt
	errs    map[int]error
	calls   int
}

func (g *scriptedGenerator) Name() string { return "fake" }

func (g *scriptedGenerator) Generate(_ context.Context, prompt narration.Prompt) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if err, ok := g.errs[g.calls]; ok {
		return "", err
	}
	return fmt.Sprintf("Narration number %d for this slide.", g.calls), nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func engagingStyle(t *testing.T) deck.Style {
	t.Helper()
	style, ok := deck.LookupStyle("engaging")
	if !ok {
		t.Fatal("engaging style missing")
	}
	return style
}

func newEngine(gen narration.Generator, opts narration.Options) *narration.Engine {
	return narration.NewEngine(gen, opts, nil, narration.WithSleeper(noSleep))
}

func TestGenerateNarratesInOrderWithContext(t *testing.T) {
	d := testsupport.NewDeck("Introduction to Markets", "Supply and demand curves", "Summary of the lecture")
	rec := deck.NewRecorder(d, nil)
	gen := &scriptedGenerator{}

	report, err := newEngine(gen, narration.DefaultOptions()).Generate(context.Background(), rec, engagingStyle(t))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if report.Generated != 3 || report.Degraded != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	snap := rec.Snapshot()
	for i, slide := range snap.Slides {
		want := fmt.Sprintf("Narration number %d for this slide.", i+1)
		if slide.Narration == nil || slide.Narration.Text != want || slide.Narration.Provider != "fake" {
			t.Fatalf("slide %d narration = %+v", i, slide.Narration)
		}
	}
	if !strings.Contains(gen.prompts[0].User, "Good morning everyone") {
		t.Fatalf("opener prompt missing welcome: %q", gen.prompts[0].User)
	}
	if !strings.Contains(gen.prompts[2].User, narration.SignOff) {
		t.Fatalf("closer prompt missing sign-off: %q", gen.prompts[2].User)
	}
	if !strings.Contains(gen.prompts[2].User, "Slide 2 ended with: ...Narration number 2") {
		t.Fatalf("closer prompt missing context: %q", gen.prompts[2].User)
	}
	if gen.prompts[1].Temperature != 0.7 {
		t.Fatalf("expected engaging temperature, got %v", gen.prompts[1].Temperature)
	}
}

func TestGenerateRetriesThenSucceeds(t *testing.T) {
	d := testsupport.NewDeck("A slide with enough text")
	gen := &scriptedGenerator{errs: map[int]error{
		1: services.Wrap(services.ErrProviderUnavailable, "test", "generate", "flaky", nil),
	}}
	rec := deck.NewRecorder(d, nil)
	if _, err := newEngine(gen, narration.DefaultOptions()).Generate(context.Background(), rec, engagingStyle(t)); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	got := rec.Snapshot().Slides[0].Narration
	if got.Attempts != 2 || got.Degraded {
		t.Fatalf("expected success on second attempt, got %+v", got)
	}
}

func TestGenerateDegradesAfterExhaustion(t *testing.T) {
	flaky := services.Wrap(services.ErrProviderUnavailable, "test", "generate", "down", nil)
	d := testsupport.NewDeck("Opening slide text", "- Market size\n- Growth rate")
	gen := &scriptedGenerator{errs: map[int]error{2: flaky, 3: flaky, 4: flaky}}
	rec := deck.NewRecorder(d, nil)

	report, err := newEngine(gen, narration.DefaultOptions()).Generate(context.Background(), rec, engagingStyle(t))
	if err != nil {
		t.Fatalf("partial degradation must not fail the stage: %v", err)
	}
	if report.Degraded != 1 || report.DegradedSlides[0] != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	slide := rec.Snapshot().Slides[1]
	if !slide.Narration.Degraded || slide.Narration.Text != "Market size. Growth rate." {
		t.Fatalf("unexpected degraded narration %+v", slide.Narration)
	}
	if len(slide.Warnings) != 1 || slide.Warnings[0].Stage != "narration" {
		t.Fatalf("expected narration warning, got %+v", slide.Warnings)
	}
	if gen.calls != 4 {
		t.Fatalf("expected 1 + 3 calls, got %d", gen.calls)
	}
}

func TestRejectedRequestOpensBreaker(t *testing.T) {
	rejected := services.Wrap(services.ErrProviderRejected, "test", "generate", "PERMISSION_DENIED", nil)
	d := testsupport.NewDeck("First slide text", "Second slide text", "Third slide text")
	gen := &scriptedGenerator{errs: map[int]error{2: rejected}}
	rec := deck.NewRecorder(d, nil)

	report, err := newEngine(gen, narration.DefaultOptions()).Generate(context.Background(), rec, engagingStyle(t))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !report.BreakerOpened || report.Degraded != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if gen.calls != 2 {
		t.Fatalf("breaker must stop provider calls, got %d calls", gen.calls)
	}
}

func TestEveryEligibleSlideDegradedFailsStage(t *testing.T) {
	down := services.Wrap(services.ErrProviderUnavailable, "test", "generate", "down", nil)
	gen := &scriptedGenerator{errs: map[int]error{1: down, 2: down, 3: down, 4: down, 5: down, 6: down}}
	d := testsupport.NewDeck("First slide text", "Hi", "Third slide text")
	rec := deck.NewRecorder(d, nil)

	_, err := newEngine(gen, narration.DefaultOptions()).Generate(context.Background(), rec, engagingStyle(t))
	var failure *services.StageFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected stage failure, got %v", err)
	}
	if failure.Stage != "narration" || services.FormatSlides(failure.Slides) != "0,2" {
		t.Fatalf("unexpected failure %+v", failure)
	}
	snap := rec.Snapshot()
	if snap.Slides[1].Narration.Provider != narration.ProviderPassthrough {
		t.Fatalf("short slide should pass through, got %+v", snap.Slides[1].Narration)
	}
	for _, i := range []int{0, 2} {
		if snap.Slides[i].Narration == nil || !snap.Slides[i].Narration.Degraded {
			t.Fatalf("slide %d should hold minimal narration", i)
		}
	}
}

func TestShortSlidesPassThroughWithoutCalls(t *testing.T) {
	gen := &scriptedGenerator{}
	rec := deck.NewRecorder(testsupport.NewDeck("Q&A", ""), nil)
	report, err := newEngine(gen, narration.DefaultOptions()).Generate(context.Background(), rec, engagingStyle(t))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gen.calls != 0 || report.Passthrough != 2 {
		t.Fatalf("expected passthrough without calls, calls=%d report=%+v", gen.calls, report)
	}
	if got := rec.Snapshot().Slides[0].Narration.Text; got != "Q&A" {
		t.Fatalf("expected verbatim text, got %q", got)
	}
}

func TestResumeSkipsNarratedSlides(t *testing.T) {
	d := testsupport.NewDeck("First slide text", "Second slide text")
	d.Slides[0].Narration = &deck.Narration{Text: "Kept narration.", Provider: "gemini"}
	gen := &scriptedGenerator{}
	rec := deck.NewRecorder(d, nil)

	report, err := newEngine(gen, narration.DefaultOptions()).Generate(context.Background(), rec, engagingStyle(t))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if report.Skipped != 1 || gen.calls != 1 {
		t.Fatalf("expected one skip and one call, report=%+v calls=%d", report, gen.calls)
	}
	if rec.Snapshot().Slides[0].Narration.Text != "Kept narration." {
		t.Fatal("existing narration was overwritten")
	}
	if !strings.Contains(gen.prompts[0].User, "Kept narration.") {
		t.Fatalf("resumed slide should use persisted narration as context: %q", gen.prompts[0].User)
	}
}

func TestRetryDelayHonoursRetryAfter(t *testing.T) {
	var waits []time.Duration
	gen := &scriptedGenerator{errs: map[int]error{1: retryAfterErr{d: 3 * time.Second}}}
	engine := narration.NewEngine(gen, narration.DefaultOptions(), nil, narration.WithSleeper(func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}))
	rec := deck.NewRecorder(testsupport.NewDeck("A slide with enough text"), nil)
	if _, err := engine.Generate(context.Background(), rec, engagingStyle(t)); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(waits) != 1 || waits[0] != 3*time.Second {
		t.Fatalf("expected a 3s wait, got %v", waits)
	}
}

func TestCancellationStopsGeneration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &scriptedGenerator{}
	rec := deck.NewRecorder(testsupport.NewDeck("First slide text"), nil)
	if _, err := newEngine(gen, narration.DefaultOptions()).Generate(ctx, rec, engagingStyle(t)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("expected no calls, got %d", gen.calls)
	}
}

type retryAfterErr struct{ d time.Duration }

func (e retryAfterErr) Error() string                  { return "429 too many requests" }
func (e retryAfterErr) RetryAfterDelay() time.Duration { return e.d }
