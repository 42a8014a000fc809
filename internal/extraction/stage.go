package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"slidecast/internal/assembly"
	"slidecast/internal/config"
	"slidecast/internal/deck"
	"slidecast/internal/fileutil"
	"slidecast/internal/logging"
	"slidecast/internal/queue"
	"slidecast/internal/services"
	"slidecast/internal/stage"
)

// Stage turns a job's source into a deck and places the slide images in the
// job's output directory.
type Stage struct {
	store     *queue.Store
	cfg       *config.Config
	logger    *slog.Logger
	extractor Extractor
	now       func() time.Time
}

// NewStage constructs the extraction stage handler using default dependencies.
func NewStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Stage {
	return NewStageWithDependencies(cfg, store, logger, NewFromConfig(cfg))
}

// NewStageWithDependencies allows injecting the extractor (used in tests).
func NewStageWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, extractor Extractor) *Stage {
	s := &Stage{store: store, cfg: cfg, extractor: extractor, now: time.Now}
	s.SetLogger(logger)
	return s
}

// SetLogger replaces the stage logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, stageName)
}

func (s *Stage) Prepare(ctx context.Context, job *queue.Job) error {
	job.SetProgress("Extraction", "Reading slide deck", 0)
	logging.WithContext(ctx, s.logger).Info("starting extraction",
		logging.String("source", job.SourcePath),
	)
	return nil
}

func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	source := strings.TrimSpace(job.SourcePath)
	if source == "" {
		return services.Wrap(services.ErrValidation, stageName, "execute", "job has no source path", nil)
	}

	workRoot := job.WorkRoot(s.cfg.Paths.WorkDir)
	if err := os.RemoveAll(workRoot); err != nil {
		return services.Wrap(services.ErrExtraction, stageName, "reset work dir", workRoot, err)
	}
	if err := os.MkdirAll(workRoot, 0o755); err != nil {
		return services.Wrap(services.ErrExtraction, stageName, "create work dir", workRoot, err)
	}
	defer func() {
		if err := os.RemoveAll(workRoot); err != nil {
			logger.Debug("work dir cleanup failed", logging.String("path", workRoot), logging.Error(err))
		}
	}()

	d, err := s.extractor.Extract(ctx, source, workRoot)
	if err != nil {
		return err
	}
	layout := assembly.LayoutForJob(s.cfg, job, s.now())
	if err := PlaceImages(d, layout); err != nil {
		return err
	}

	d.JobID = job.ID
	d.SourcePath = source
	if strings.TrimSpace(d.SourceLanguage) == "" {
		d.SourceLanguage = job.SourceLanguage
	}
	if strings.TrimSpace(d.Title) == "" {
		d.Title = job.Title
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now().UTC()
	}
	job.OutputDir = layout.Dir
	job.SetProgressComplete("Extraction", fmt.Sprintf("Extracted %d slides", len(d.Slides)))
	if err := stage.SaveDeck(ctx, s.store, job, d); err != nil {
		return err
	}
	logger.Info("extraction complete",
		logging.SlideCount(len(d.Slides)),
		logging.String("title", d.Title),
		logging.SourceLanguage(d.SourceLanguage),
		logging.String("output_dir", layout.Dir),
	)
	return nil
}

// PlaceImages copies every slide image into the layout's images directory and
// points the slide at the copy. Slides without an image get a warning and
// render black during assembly. Reruns use it to give a cloned deck its own
// copies.
func PlaceImages(d *deck.Deck, layout assembly.Layout) error {
	if err := os.MkdirAll(layout.ImagesDir(), 0o755); err != nil {
		return services.Wrap(services.ErrExtraction, stageName, "create images dir", layout.ImagesDir(), err)
	}
	for i := range d.Slides {
		slide := &d.Slides[i]
		if !fileutil.NonEmptyFile(slide.ImageRef) {
			slide.ImageRef = ""
			slide.SetWarning(stageName, "slide has no image; it will render as a black frame")
			continue
		}
		ext := strings.ToLower(filepath.Ext(slide.ImageRef))
		if ext == "" {
			ext = ".png"
		}
		dst := filepath.Join(layout.ImagesDir(), fmt.Sprintf("slide_%03d%s", i+1, ext))
		if err := fileutil.CopyFileVerified(slide.ImageRef, dst); err != nil {
			return services.Wrap(services.ErrExtraction, stageName, "place image", fmt.Sprintf("slide %d", i), err)
		}
		slide.ImageRef = dst
	}
	return nil
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.extractor == nil {
		return stage.Unhealthy(stageName, "extractor not configured")
	}
	return stage.Healthy(stageName)
}
