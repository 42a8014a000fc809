package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"slidecast/internal/chain"
	"slidecast/internal/deck"
	"slidecast/internal/fileutil"
	"slidecast/internal/logging"
	"slidecast/internal/services"
	"slidecast/internal/workpool"
)

const (
	stageName = "synthesis"

	// WordsPerSecond is the speaking rate assumed when a clip cannot be probed.
	WordsPerSecond = 2.5
)

// Request is one clip to synthesize. OutBase is the destination path without
// an extension; each provider appends the extension of the format it writes.
type Request struct {
	Text     string
	Language string
	Gender   string
	OutBase  string
}

// Clip is a provider's output on disk. Gender is empty when the provider could
// not honour the requested gender.
type Clip struct {
	Path   string
	Voice  string
	Gender string
	Bytes  int64
}

// Provider is a speech chain entry.
type Provider = chain.Provider[Request, Clip]

// DurationFunc measures the playback length of an audio file in seconds.
type DurationFunc func(ctx context.Context, path string) (float64, error)

// Result is the outcome for one clip.
type Result struct {
	Clip
	Provider  string
	Seconds   float64
	Estimated bool
	Skipped   bool
	Failures  []chain.Failure
}

// Report summarizes a SynthesizeDeck run.
type Report struct {
	Synthesized  int
	Skipped      int
	Estimated    int
	Failed       int
	FailedSlides []int
}

// Options configures an Engine.
type Options struct {
	Timeout  time.Duration
	PoolSize int
	Duration DurationFunc
	Logger   *slog.Logger
}

// Engine synthesizes speech through an ordered provider chain.
type Engine struct {
	chain    *chain.Chain[Request, Clip]
	poolSize int
	duration DurationFunc
	logger   *slog.Logger
}

// NewEngine builds an engine over providers.
func NewEngine(providers []Provider, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	c, err := chain.New(stageName, providers, nonEmptyClip, chain.WithTimeout(opts.Timeout), chain.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &Engine{chain: c, poolSize: opts.PoolSize, duration: opts.Duration, logger: logger}, nil
}

// Providers lists the chain in walk order.
func (e *Engine) Providers() []string { return e.chain.Names() }

func nonEmptyClip(clip Clip) error {
	if clip.Bytes > 0 {
		return nil
	}
	if clip.Path != "" {
		_ = os.Remove(clip.Path)
	}
	return services.Wrap(services.ErrProviderUnavailable, stageName, "validate", "provider produced empty audio", nil)
}

// Synthesize renders req.Text to audio. Text that is empty once slide-number
// lines are stripped is skipped. When every provider fails the error is the
// chain's *chain.ExhaustedError.
func (e *Engine) Synthesize(ctx context.Context, req Request) (Result, error) {
	req.Text = deck.SpeakableText(req.Text)
	if req.Text == "" {
		return Result{Skipped: true}, nil
	}
	if err := os.MkdirAll(filepath.Dir(req.OutBase), 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, stageName, "synthesize", "create audio directory", err)
	}
	res, err := e.chain.Run(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{Failures: res.Failures}, err
	}
	seconds, estimated := e.measure(ctx, res.Value.Path, req.Text)
	return Result{
		Clip:      res.Value,
		Provider:  res.Provider,
		Seconds:   seconds,
		Estimated: estimated,
		Failures:  res.Failures,
	}, nil
}

func (e *Engine) measure(ctx context.Context, path, text string) (float64, bool) {
	if e.duration != nil {
		seconds, err := e.duration(ctx, path)
		if err == nil && seconds > 0 {
			return seconds, false
		}
		if err != nil {
			logging.WithContext(ctx, e.logger).Debug("audio probe failed; estimating from word count",
				logging.String("path", path),
				logging.Error(err),
			)
		}
	}
	return EstimateSeconds(text), true
}

// EstimateSeconds approximates spoken length from the word count.
func EstimateSeconds(text string) float64 {
	return float64(deck.WordCount(text)) / WordsPerSecond
}

// DeckRequest carries the job settings for SynthesizeDeck.
type DeckRequest struct {
	AudioDir       string
	SourceLanguage string
	Gender         string
}

// ClipBase returns the extension-less clip path for the slide at index.
func ClipBase(audioDir string, index int) string {
	return filepath.Join(audioDir, fmt.Sprintf("slide_%03d", index+1))
}

// SynthesizeDeck synthesizes every slide on a bounded pool. Slides whose clip
// is already on disk are left alone. A slide whose chain is exhausted keeps no
// audio and gets a warning; only when every slide that needed a provider call
// failed does it return a *services.StageFailure.
func (e *Engine) SynthesizeDeck(ctx context.Context, rec *deck.Recorder, req DeckRequest) (Report, error) {
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
		if slide.Audio != nil && fileutil.NonEmptyFile(slide.Audio.Path) {
			mu.Lock()
			report.Skipped++
			mu.Unlock()
			return nil
		}

		slideCtx := services.WithSlideIndex(ctx, i)
		res, synthErr := e.Synthesize(slideCtx, Request{
			Text:     slide.SpeechText(),
			Language: slide.SpeechLanguage(req.SourceLanguage),
			Gender:   req.Gender,
			OutBase:  ClipBase(req.AudioDir, i),
		})
		if synthErr != nil && !errors.Is(synthErr, chain.ErrExhausted) {
			return synthErr
		}

		mu.Lock()
		switch {
		case res.Skipped:
			report.Skipped++
		case synthErr != nil:
			eligible++
			report.Failed++
			report.FailedSlides = append(report.FailedSlides, i)
			lastErr = synthErr
		default:
			eligible++
			report.Synthesized++
			if res.Estimated {
				report.Estimated++
			}
		}
		mu.Unlock()

		if res.Skipped {
			return rec.Apply(ctx, i, func(s *deck.Slide) {
				s.Audio = nil
				s.ClearWarnings(stageName)
			})
		}
		if synthErr != nil {
			logging.WarnWithContext(logging.WithContext(slideCtx, e.logger), "slide synthesis failed", logging.EventSlideDegraded,
				logging.String(logging.FieldImpact, "slide plays silence for the minimum duration"),
				logging.String(logging.FieldErrorHint, "check speech provider access and that espeak-ng is installed"),
			)
			message := fmt.Sprintf("speech synthesis failed on every provider: %v", synthErr)
			return rec.Apply(ctx, i, func(s *deck.Slide) {
				s.Audio = nil
				s.SetWarning(stageName, message)
			})
		}
		return rec.Apply(ctx, i, func(s *deck.Slide) {
			s.Audio = &deck.Audio{
				Path:     res.Path,
				Provider: res.Provider,
				Voice:    res.Voice,
				Gender:   res.Gender,
				Bytes:    res.Bytes,
				Seconds:  res.Seconds,
			}
			s.ClearWarnings(stageName)
		})
	})
	if err != nil {
		return report, err
	}
	if eligible > 0 && report.Failed == eligible {
		return report, services.NewStageFailure(stageName, report.FailedSlides, lastErr)
	}
	return report, nil
}
