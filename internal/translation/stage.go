package translation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"slidecast/internal/config"
	"slidecast/internal/deck"
	"slidecast/internal/logging"
	"slidecast/internal/queue"
	"slidecast/internal/stage"
)

type translator interface {
	TranslateDeck(ctx context.Context, rec *deck.Recorder, source, target string) (Report, error)
	Providers() []string
}

// Stage translates a narrated deck into the job's target language.
type Stage struct {
	store      *queue.Store
	logger     *slog.Logger
	translator translator
	setupErr   error
}

// NewStage constructs the translation stage handler using the configured chain.
func NewStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Stage {
	s := &Stage{store: store}
	s.SetLogger(logger)
	engine, err := NewFromConfig(cfg, s.logger)
	if err != nil {
		s.setupErr = err
		return s
	}
	s.translator = engine
	return s
}

// NewStageWithDependencies allows injecting the translator (used in tests).
func NewStageWithDependencies(store *queue.Store, logger *slog.Logger, t translator) *Stage {
	s := &Stage{store: store, translator: t}
	s.SetLogger(logger)
	return s
}

// SetLogger replaces the stage logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, stageName)
}

func (s *Stage) Prepare(ctx context.Context, job *queue.Job) error {
	job.SetProgress("Translation", "Translating narration", 0)
	logging.WithContext(ctx, s.logger).Info("starting translation",
		logging.SourceLanguage(job.SourceLanguage),
		logging.TargetLanguage(job.TargetLanguage),
	)
	return nil
}

func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	if s.translator == nil {
		return s.setupErr
	}
	d, err := stage.LoadDeck(job)
	if err != nil {
		return err
	}
	source := strings.TrimSpace(d.SourceLanguage)
	if source == "" {
		source = job.SourceLanguage
	}

	translated := stage.CountSlides(func(sl deck.Slide) bool { return sl.Translation != nil })
	rec := deck.NewRecorder(d, stage.Checkpointer(s.store, job, "Translation", translated))
	report, err := s.translator.TranslateDeck(ctx, rec, source, job.TargetLanguage)
	if err != nil {
		return err
	}

	summary := fmt.Sprintf("Translated %d slide(s) to %s", report.Translated, job.TargetLanguage)
	if report.Degraded > 0 {
		summary += fmt.Sprintf(", %d kept in %s", report.Degraded, source)
	}
	job.SetProgressComplete("Translation", summary)
	if err := stage.SaveDeck(ctx, s.store, job, rec.Snapshot()); err != nil {
		return err
	}
	logging.WithContext(ctx, s.logger).Info("translation complete",
		logging.String("providers", strings.Join(s.translator.Providers(), ",")),
		logging.Int("translated", report.Translated),
		logging.Int("skipped", report.Skipped),
		logging.Int("degraded", report.Degraded),
	)
	return nil
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.translator == nil {
		detail := "translation chain not configured"
		if s.setupErr != nil {
			detail = s.setupErr.Error()
		}
		return stage.Unhealthy(stageName, detail)
	}
	return stage.Healthy(stageName, s.translator.Providers()...)
}
