package narration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"slidecast/internal/deck"
	"slidecast/internal/logging"
	"slidecast/internal/services"
	"slidecast/internal/workpool"
)

const (
	stageName = "narration"

	// ProviderPassthrough marks slides whose raw text was used verbatim.
	ProviderPassthrough = "passthrough"
	// ProviderMinimal marks the deterministic fallback narration.
	ProviderMinimal = "minimal"
)

// Options tunes retries and the context window.
type Options struct {
	MaxAttempts   int
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	RateLimitWait time.Duration
	Timeout       time.Duration
	ContextSlides int
	ContextChars  int
	MinTextChars  int
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:   3,
		BaseBackoff:   2 * time.Second,
		MaxBackoff:    8 * time.Second,
		RateLimitWait: 5 * time.Second,
		Timeout:       60 * time.Second,
		ContextSlides: 2,
		ContextChars:  150,
		MinTextChars:  5,
	}
}

// Report summarizes one Generate run.
type Report struct {
	Generated      int
	Passthrough    int
	Skipped        int
	Degraded       int
	DegradedSlides []int
	BreakerOpened  bool
}

// Sleeper waits for d or until ctx ends.
type Sleeper func(ctx context.Context, d time.Duration) error

// Engine narrates decks slide by slide in index order.
type Engine struct {
	generator Generator
	opts      Options
	logger    *slog.Logger
	sleep     Sleeper
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithSleeper replaces the backoff wait.
func WithSleeper(s Sleeper) EngineOption {
	return func(e *Engine) {
		if s != nil {
			e.sleep = s
		}
	}
}

// NewEngine builds an engine around generator.
func NewEngine(generator Generator, opts Options, logger *slog.Logger, engineOpts ...EngineOption) *Engine {
	defaults := DefaultOptions()
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaults.MaxAttempts
	}
	if opts.MaxBackoff < opts.BaseBackoff {
		opts.MaxBackoff = opts.BaseBackoff
	}
	if opts.ContextSlides < 0 {
		opts.ContextSlides = 0
	}
	if opts.MinTextChars <= 0 {
		opts.MinTextChars = defaults.MinTextChars
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Engine{
		generator: generator,
		opts:      opts,
		logger:    logger,
		sleep:     sleepContext,
	}
	for _, opt := range engineOpts {
		opt(e)
	}
	return e
}

// Provider names the generator.
func (e *Engine) Provider() string {
	if e.generator == nil {
		return ""
	}
	return e.generator.Name()
}

// Generate fills in narration for every slide of rec in index order. Slides that
// already carry a non-degraded narration are left alone. A slide whose
// generation keeps failing gets a minimal narration built from its raw text and
// a warning. The returned error is a *services.StageFailure only when every
// slide that needed a provider call degraded; checkpoint and context errors are
// returned as is.
func (e *Engine) Generate(ctx context.Context, rec *deck.Recorder, style deck.Style) (Report, error) {
	var report Report
	total := rec.Len()
	breakerOpen := false
	eligible := 0
	var lastErr error

	pool := workpool.New(workpool.Ordered, 1)
	err := pool.Run(ctx, total, func(ctx context.Context, i int) error {
		slide, err := rec.Slide(i)
		if err != nil {
			return err
		}
		if slide.Narration != nil && !slide.Narration.Degraded {
			report.Skipped++
			return nil
		}
		slideCtx := services.WithSlideIndex(ctx, i)
		logger := logging.WithContext(slideCtx, e.logger)

		raw := strings.TrimSpace(slide.RawText)
		if len([]rune(raw)) < e.opts.MinTextChars {
			report.Passthrough++
			return rec.Apply(ctx, i, func(s *deck.Slide) {
				s.Narration = &deck.Narration{Text: raw, Provider: ProviderPassthrough}
			})
		}

		eligible++
		if breakerOpen {
			report.Degraded++
			report.DegradedSlides = append(report.DegradedSlides, i)
			return e.degrade(ctx, rec, i, raw, 0, "narration provider disabled after a rejected request", logger)
		}

		prompt := BuildPrompt(PromptInput{
			Index:     i,
			Total:     total,
			SlideText: raw,
			Style:     style,
			Context:   e.contextFor(rec, i),
		})
		text, attempts, genErr := e.generateWithRetry(slideCtx, prompt, logger)
		if genErr == nil {
			report.Generated++
			logger.Debug("slide narrated",
				logging.Int("attempts", attempts),
				logging.Int("chars", len(text)),
			)
			return rec.Apply(ctx, i, func(s *deck.Slide) {
				s.Narration = &deck.Narration{Text: text, Provider: e.generator.Name(), Attempts: attempts}
				s.ClearWarnings(stageName)
			})
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(genErr, services.ErrConfiguration) {
			return genErr
		}
		lastErr = genErr
		if errors.Is(genErr, services.ErrProviderRejected) {
			breakerOpen = true
			report.BreakerOpened = true
			logging.ErrorWithContext(logger, "narration provider rejected request; remaining slides use minimal narration", logging.EventProviderFailed,
				append([]logging.Attr{
					logging.Provider(e.generator.Name()),
					logging.String(logging.FieldImpact, "remaining slides use minimal narration"),
				}, logging.ErrorAttrs(genErr)...)...,
			)
		}
		report.Degraded++
		report.DegradedSlides = append(report.DegradedSlides, i)
		return e.degrade(ctx, rec, i, raw, attempts, fmt.Sprintf("narration failed after %d attempt(s): %v", attempts, genErr), logger)
	})
	if err != nil {
		return report, err
	}
	if eligible > 0 && report.Degraded == eligible {
		return report, services.NewStageFailure(stageName, report.DegradedSlides,
			services.Wrap(services.ErrProviderUnavailable, stageName, "generate", "every slide fell back to minimal narration", lastErr))
	}
	return report, nil
}

func (e *Engine) generateWithRetry(ctx context.Context, prompt Prompt, logger *slog.Logger) (string, int, error) {
	if e.generator == nil {
		return "", 0, services.Wrap(services.ErrConfiguration, stageName, "generate", "no narration provider configured", nil)
	}
	ctx = services.WithProvider(ctx, e.generator.Name())
	var lastErr error
	attempt := 0
	for attempt < e.opts.MaxAttempts {
		attempt++
		text, err := e.attempt(ctx, prompt)
		if err == nil {
			return text, attempt, nil
		}
		lastErr = err
		if ctx.Err() != nil || errors.Is(err, services.ErrProviderRejected) || errors.Is(err, services.ErrConfiguration) {
			break
		}
		if attempt == e.opts.MaxAttempts {
			break
		}
		delay := e.retryDelay(err, attempt)
		logger.Info("narration attempt failed; retrying",
			logging.Int("attempt", attempt),
			logging.Duration("retry_in", delay),
			logging.Error(err),
		)
		if err := e.sleep(ctx, delay); err != nil {
			return "", attempt, err
		}
	}
	return "", attempt, lastErr
}

func (e *Engine) attempt(ctx context.Context, prompt Prompt) (string, error) {
	callCtx := ctx
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}
	text, err := e.generator.Generate(callCtx, prompt)
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, stageName, e.generator.Name(), fmt.Sprintf("no narration within %s", e.opts.Timeout), err)
		}
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", services.Wrap(services.ErrProviderUnavailable, stageName, e.generator.Name(), "empty narration", nil)
	}
	return text, nil
}

// retryDelay prefers a server-provided Retry-After, then the fixed rate-limit
// wait for 429s, then exponential backoff.
func (e *Engine) retryDelay(err error, attempt int) time.Duration {
	if d, ok := services.RetryAfter(err); ok {
		return e.capped(d)
	}
	if services.Details(err).Code == "429" && e.opts.RateLimitWait > 0 {
		return e.capped(e.opts.RateLimitWait)
	}
	delay := e.opts.BaseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= e.opts.MaxBackoff {
			break
		}
	}
	return e.capped(delay)
}

func (e *Engine) capped(d time.Duration) time.Duration {
	if e.opts.MaxBackoff > 0 && d > e.opts.MaxBackoff {
		return e.opts.MaxBackoff
	}
	return d
}

// contextFor collects the tails of the narrations generated for the slides
// before index. Passthrough and degraded narrations carry no lecture voice and
// are left out.
func (e *Engine) contextFor(rec *deck.Recorder, index int) []ContextEntry {
	if e.opts.ContextSlides == 0 {
		return nil
	}
	var entries []ContextEntry
	for i := index - 1; i >= 0 && len(entries) < e.opts.ContextSlides; i-- {
		slide, err := rec.Slide(i)
		if err != nil || slide.Narration == nil {
			continue
		}
		n := slide.Narration
		if n.Degraded || n.Provider == ProviderPassthrough || strings.TrimSpace(n.Text) == "" {
			continue
		}
		entries = append(entries, ContextEntry{Index: i, Tail: tail(n.Text, e.opts.ContextChars)})
	}
	for l, r := 0, len(entries)-1; l < r; l, r = l+1, r-1 {
		entries[l], entries[r] = entries[r], entries[l]
	}
	return entries
}

func (e *Engine) degrade(ctx context.Context, rec *deck.Recorder, index int, raw string, attempts int, reason string, logger *slog.Logger) error {
	logging.WarnWithContext(logger, "slide narration degraded", logging.EventSlideDegraded,
		logging.Provider(e.Provider()),
		logging.String("reason", reason),
		logging.String(logging.FieldImpact, "slide uses minimal narration from its raw text"),
		logging.String(logging.FieldErrorHint, "check the narration provider credentials and quota, then retry the job"),
	)
	return rec.Apply(ctx, index, func(s *deck.Slide) {
		s.Narration = &deck.Narration{
			Text:     deck.MinimalNarration(raw),
			Provider: ProviderMinimal,
			Degraded: true,
			Attempts: attempts,
		}
		s.SetWarning(stageName, reason)
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
