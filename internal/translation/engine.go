package translation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"slidecast/internal/chain"
	"slidecast/internal/deck"
	"slidecast/internal/language"
	"slidecast/internal/logging"
	"slidecast/internal/services"
	"slidecast/internal/workpool"
)

const stageName = "translation"

// Request is one text to translate.
type Request struct {
	Text   string
	Source string
	Target string
}

// Provider is a translation chain entry.
type Provider = chain.Provider[Request, string]

// Result is the outcome for one text. Skipped marks an identity mapping;
// Degraded marks chain exhaustion, in which case Text is the input and Language
// the source language.
type Result struct {
	Text     string
	Language string
	Provider string
	Skipped  bool
	Degraded bool
	Failures []chain.Failure
}

// Report summarizes a TranslateDeck run.
type Report struct {
	Translated     int
	Skipped        int
	Degraded       int
	DegradedSlides []int
	// SlideTexts counts slides whose own text was translated.
	SlideTexts int
}

// Options configures an Engine. SlideText also translates each slide's raw
// text; its failures never degrade the slide or fail the stage.
type Options struct {
	Timeout   time.Duration
	PoolSize  int
	SlideText bool
	Logger    *slog.Logger
}

// Engine translates narration through an ordered provider chain.
type Engine struct {
	chain     *chain.Chain[Request, string]
	poolSize  int
	slideText bool
	logger    *slog.Logger
}

// NewEngine builds an engine over providers. Each provider call is bounded by
// opts.Timeout and opts.PoolSize bounds how many slides translate at once.
func NewEngine(providers []Provider, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	c, err := chain.New(stageName, providers, nonEmpty, chain.WithTimeout(opts.Timeout), chain.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &Engine{chain: c, poolSize: opts.PoolSize, slideText: opts.SlideText, logger: logger}, nil
}

// Providers lists the chain in walk order.
func (e *Engine) Providers() []string { return e.chain.Names() }

func nonEmpty(text string) error {
	if strings.TrimSpace(text) == "" {
		return services.Wrap(services.ErrProviderUnavailable, stageName, "validate", "empty translation", nil)
	}
	return nil
}

// Translate renders text in target. Matching base languages and empty text are
// returned unchanged without a provider call. When every provider fails the
// returned Result is the degraded pass-through and the error is the chain's
// *chain.ExhaustedError.
func (e *Engine) Translate(ctx context.Context, text, source, target string) (Result, error) {
	if language.Same(source, target) || strings.TrimSpace(text) == "" {
		return Result{Text: text, Language: source, Skipped: true}, nil
	}
	res, err := e.chain.Run(ctx, Request{Text: text, Source: source, Target: target})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{Text: text, Language: source, Degraded: true, Failures: res.Failures}, err
	}
	return Result{
		Text:     strings.TrimSpace(res.Value),
		Language: target,
		Provider: res.Provider,
		Failures: res.Failures,
	}, nil
}

// TranslateDeck translates every slide's narration on a bounded pool. Slides
// holding a non-degraded translation are left alone. Exhausted slides carry the
// source narration forward with a warning; only when every slide that needed a
// provider call was exhausted does it return a *services.StageFailure.
func (e *Engine) TranslateDeck(ctx context.Context, rec *deck.Recorder, source, target string) (Report, error) {
	var (
		mu       sync.Mutex
		report   Report
		eligible int
		lastErr  error
	)
	pool := workpool.New(workpool.Unordered, e.poolSize)
	err := pool.Run(ctx, rec.Len(), func(ctx context.Context, i int) error {
		slide, err := rec.Slide(i)
		if err != nil {
			return err
		}
		if slide.Narration == nil {
			return services.Wrap(services.ErrValidation, stageName, "translate deck", fmt.Sprintf("slide %d has no narration", i), nil)
		}
		slideCtx := services.WithSlideIndex(ctx, i)
		if err := e.translateSlideText(slideCtx, rec, slide, source, target, &mu, &report); err != nil {
			return err
		}
		if slide.Translation != nil && !slide.Translation.Degraded {
			mu.Lock()
			report.Skipped++
			mu.Unlock()
			return nil
		}

		needsProvider := !language.Same(source, target) && strings.TrimSpace(slide.Narration.Text) != ""
		res, trErr := e.Translate(slideCtx, slide.Narration.Text, source, target)
		if trErr != nil && !errors.Is(trErr, chain.ErrExhausted) {
			return trErr
		}

		mu.Lock()
		switch {
		case res.Skipped:
			report.Skipped++
		case res.Degraded:
			report.Degraded++
			report.DegradedSlides = append(report.DegradedSlides, i)
			lastErr = trErr
		default:
			report.Translated++
		}
		if needsProvider {
			eligible++
		}
		mu.Unlock()

		if res.Degraded {
			logging.WarnWithContext(logging.WithContext(slideCtx, e.logger), "slide translation degraded", logging.EventSlideDegraded,
				logging.TargetLanguage(target),
				logging.String(logging.FieldImpact, "slide keeps its source-language narration"),
				logging.String(logging.FieldErrorHint, "check translation provider credentials and network access"),
			)
		}
		message := ""
		if trErr != nil {
			message = fmt.Sprintf("translation to %s failed on every provider: %v", target, trErr)
		}
		return rec.Apply(ctx, i, func(s *deck.Slide) {
			s.Translation = &deck.Translation{
				Text:     res.Text,
				Language: res.Language,
				Provider: res.Provider,
				Skipped:  res.Skipped,
				Degraded: res.Degraded,
			}
			if res.Degraded {
				s.SetWarning(stageName, message)
			} else {
				s.ClearWarnings(stageName)
			}
		})
	})
	if err != nil {
		return report, err
	}
	if eligible > 0 && report.Degraded == eligible {
		return report, services.NewStageFailure(stageName, report.DegradedSlides, lastErr)
	}
	return report, nil
}

// translateSlideText records the slide's own text in target. An exhausted chain
// is logged and stored as degraded so a retry tries again.
func (e *Engine) translateSlideText(ctx context.Context, rec *deck.Recorder, slide deck.Slide, source, target string, mu *sync.Mutex, report *Report) error {
	if !e.slideText || strings.TrimSpace(slide.RawText) == "" {
		return nil
	}
	if slide.TextTranslation != nil && !slide.TextTranslation.Degraded {
		return nil
	}
	res, err := e.Translate(ctx, strings.TrimSpace(slide.RawText), source, target)
	if err != nil && !errors.Is(err, chain.ErrExhausted) {
		return err
	}
	if res.Degraded {
		logging.WithContext(ctx, e.logger).Info("slide text left untranslated",
			logging.TargetLanguage(target),
			logging.Error(err),
		)
	} else if !res.Skipped {
		mu.Lock()
		report.SlideTexts++
		mu.Unlock()
	}
	return rec.Apply(ctx, slide.Index, func(s *deck.Slide) {
		s.TextTranslation = &deck.Translation{
			Text:     res.Text,
			Language: res.Language,
			Provider: res.Provider,
			Skipped:  res.Skipped,
			Degraded: res.Degraded,
		}
	})
}
