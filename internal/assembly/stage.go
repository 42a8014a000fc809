package assembly

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"slidecast/internal/config"
	"slidecast/internal/deck"
	"slidecast/internal/logging"
	"slidecast/internal/queue"
	"slidecast/internal/services"
	"slidecast/internal/stage"
	"slidecast/internal/textutil"
)

// LayoutForJob returns the output layout of job. The directory is fixed once
// extraction records it on the job; before that a fresh one is planned under
// the configured output root.
func LayoutForJob(cfg *config.Config, job *queue.Job, now time.Time) Layout {
	if dir := strings.TrimSpace(job.OutputDir); dir != "" {
		return Layout{Dir: dir, Slug: textutil.Slug(job.SourcePath), Language: job.TargetLanguage}
	}
	return NewLayout(cfg.Paths.OutputDir, job.SourcePath, job.ID, job.TargetLanguage, now)
}

type renderer interface {
	Assemble(ctx context.Context, d *deck.Deck, layout Layout, targetLanguage string) (Result, error)
}

// Stage renders a timed deck into the lecture video.
type Stage struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	renderer renderer
}

// NewStage constructs the assembly stage handler using default dependencies.
func NewStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Stage {
	return NewStageWithDependencies(cfg, store, logger, NewFromConfig(cfg, logger))
}

// NewStageWithDependencies allows injecting the renderer (used in tests).
func NewStageWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, r renderer) *Stage {
	s := &Stage{store: store, cfg: cfg, renderer: r}
	s.SetLogger(logger)
	return s
}

// SetLogger replaces the stage logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, stageName)
}

func (s *Stage) Prepare(ctx context.Context, job *queue.Job) error {
	job.SetProgress("Assembly", "Rendering lecture video", 0)
	logging.WithContext(ctx, s.logger).Info("starting assembly",
		logging.String("output_dir", job.OutputDir),
		logging.TargetLanguage(job.TargetLanguage),
	)
	return nil
}

func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	d, err := stage.LoadDeck(job)
	if err != nil {
		return err
	}
	for _, slide := range d.Slides {
		if slide.DurationSeconds <= 0 {
			return services.Wrap(services.ErrValidation, stageName, "assemble",
				fmt.Sprintf("slide %d has no duration; rerun timing", slide.Index), nil)
		}
	}

	layout := LayoutForJob(s.cfg, job, time.Now())
	result, err := s.renderer.Assemble(ctx, d, layout, job.TargetLanguage)
	if err != nil {
		return err
	}
	job.OutputDir = layout.Dir
	job.SetProgressComplete("Assembly", "Lecture ready: "+result.VideoPath)
	if err := stage.SaveDeck(ctx, s.store, job, d); err != nil {
		return err
	}
	logger.Info("assembly complete",
		logging.String("video", result.VideoPath),
		logging.Float64("planned_seconds", result.Timeline.TotalSeconds()),
		logging.Float64("encoded_seconds", result.EncodedSeconds),
		logging.Int("warnings", len(result.Warnings)),
	)
	return nil
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.renderer == nil {
		return stage.Unhealthy(stageName, "assembler not configured")
	}
	return stage.Healthy(stageName)
}
