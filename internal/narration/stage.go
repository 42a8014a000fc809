package narration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"slidecast/internal/config"
	"slidecast/internal/deck"
	"slidecast/internal/logging"
	"slidecast/internal/queue"
	"slidecast/internal/services"
	"slidecast/internal/stage"
)

type narrator interface {
	Generate(ctx context.Context, rec *deck.Recorder, style deck.Style) (Report, error)
	Provider() string
}

// Stage writes lecture narration for every slide of an extracted deck.
type Stage struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	narrator narrator
	setupErr error
}

// NewStage constructs the narration stage handler. A generator that cannot be
// built leaves the stage unhealthy and every job fails with the setup error.
func NewStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Stage {
	s := &Stage{store: store, cfg: cfg}
	s.SetLogger(logger)
	gen, err := NewGenerator(cfg)
	if err != nil {
		s.setupErr = err
		return s
	}
	s.narrator = NewEngine(gen, OptionsFromConfig(cfg), s.logger)
	return s
}

// NewStageWithDependencies allows injecting the narrator (used in tests).
func NewStageWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, n narrator) *Stage {
	s := &Stage{store: store, cfg: cfg, narrator: n}
	s.SetLogger(logger)
	return s
}

// SetLogger replaces the stage logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, stageName)
}

func (s *Stage) Prepare(ctx context.Context, job *queue.Job) error {
	job.SetProgress("Narration", "Writing slide narration", 0)
	logging.WithContext(ctx, s.logger).Info("starting narration",
		logging.String("style", job.Style),
	)
	return nil
}

func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	if s.narrator == nil {
		if s.setupErr != nil {
			return s.setupErr
		}
		return services.Wrap(services.ErrConfiguration, stageName, "execute", "no narration provider configured", nil)
	}
	style, ok := deck.LookupStyle(job.Style)
	if !ok {
		return services.Wrap(services.ErrValidation, stageName, "execute",
			fmt.Sprintf("unknown style %q; expected one of %s", job.Style, strings.Join(deck.StyleNames(), ", ")), nil)
	}
	d, err := stage.LoadDeck(job)
	if err != nil {
		return err
	}

	narrated := stage.CountSlides(func(sl deck.Slide) bool { return sl.Narration != nil })
	rec := deck.NewRecorder(d, stage.Checkpointer(s.store, job, "Narration", narrated))
	report, err := s.narrator.Generate(ctx, rec, style)
	if err != nil {
		return err
	}

	summary := fmt.Sprintf("Narrated %d slide(s)", report.Generated+report.Passthrough)
	if report.Degraded > 0 {
		summary += fmt.Sprintf(", %d minimal", report.Degraded)
	}
	job.SetProgressComplete("Narration", summary)
	if err := stage.SaveDeck(ctx, s.store, job, rec.Snapshot()); err != nil {
		return err
	}
	logger.Info("narration complete",
		logging.Provider(s.narrator.Provider()),
		logging.String("style", style.Name),
		logging.Int("generated", report.Generated),
		logging.Int("passthrough", report.Passthrough),
		logging.Int("skipped", report.Skipped),
		logging.Int("degraded", report.Degraded),
		logging.Bool("breaker_opened", report.BreakerOpened),
	)
	return nil
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.narrator == nil {
		detail := "no narration provider configured"
		if s.setupErr != nil {
			detail = s.setupErr.Error()
		}
		return stage.Unhealthy(stageName, detail)
	}
	return stage.Healthy(stageName, s.narrator.Provider(), ProviderMinimal)
}
