package speech

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"slidecast/internal/assembly"
	"slidecast/internal/config"
	"slidecast/internal/deck"
	"slidecast/internal/logging"
	"slidecast/internal/queue"
	"slidecast/internal/services"
	"slidecast/internal/stage"
)

// EngineFactory builds the synthesis engine for a voice quality tier.
type EngineFactory func(quality string) (*Engine, error)

// Stage synthesizes one clip per slide into the job's audio directory.
type Stage struct {
	store   *queue.Store
	cfg     *config.Config
	logger  *slog.Logger
	factory EngineFactory
}

// NewStage constructs the synthesis stage handler. The engine is built per job
// since the provider chain depends on the job's voice quality.
func NewStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Stage {
	s := &Stage{store: store, cfg: cfg}
	s.SetLogger(logger)
	s.factory = func(quality string) (*Engine, error) {
		return NewFromConfig(cfg, quality, s.logger)
	}
	return s
}

// NewStageWithDependencies allows injecting the engine factory (used in tests).
func NewStageWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, factory EngineFactory) *Stage {
	s := &Stage{store: store, cfg: cfg, factory: factory}
	s.SetLogger(logger)
	return s
}

// SetLogger replaces the stage logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, stageName)
}

func (s *Stage) Prepare(ctx context.Context, job *queue.Job) error {
	job.SetProgress("Synthesis", "Synthesizing narration audio", 0)
	logging.WithContext(ctx, s.logger).Info("starting synthesis",
		logging.String("voice_quality", job.VoiceQuality),
		logging.String("voice_gender", job.VoiceGender),
	)
	return nil
}

func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	d, err := stage.LoadDeck(job)
	if err != nil {
		return err
	}
	engine, err := s.factory(job.VoiceQuality)
	if err != nil {
		return err
	}

	layout := assembly.LayoutForJob(s.cfg, job, time.Now())
	if err := os.MkdirAll(layout.AudioDir(), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, stageName, "prepare audio dir", layout.AudioDir(), err)
	}
	job.OutputDir = layout.Dir

	source := strings.TrimSpace(d.SourceLanguage)
	if source == "" {
		source = job.SourceLanguage
	}
	voiced := stage.CountSlides(func(sl deck.Slide) bool { return sl.Audio != nil })
	rec := deck.NewRecorder(d, stage.Checkpointer(s.store, job, "Synthesis", voiced))
	report, err := engine.SynthesizeDeck(ctx, rec, DeckRequest{
		AudioDir:       layout.AudioDir(),
		SourceLanguage: source,
		Gender:         job.VoiceGender,
	})
	if err != nil {
		return err
	}

	job.SetProgressComplete("Synthesis", synthesisSummary(report))
	if err := stage.SaveDeck(ctx, s.store, job, rec.Snapshot()); err != nil {
		return err
	}
	logger.Info("synthesis complete",
		logging.String("providers", strings.Join(engine.Providers(), ",")),
		logging.Int("synthesized", report.Synthesized),
		logging.Int("estimated", report.Estimated),
		logging.Int("skipped", report.Skipped),
		logging.Int("failed", report.Failed),
	)
	return nil
}

func synthesisSummary(r Report) string {
	msg := fmt.Sprintf("Synthesized audio for %d slide(s)", r.Synthesized)
	if r.Failed > 0 {
		msg += fmt.Sprintf(", %d silent", r.Failed)
	}
	return msg
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.factory == nil {
		return stage.Unhealthy(stageName, "speech engine not configured")
	}
	engine, err := s.factory(s.cfg.Job.VoiceQuality)
	if err != nil {
		return stage.Unhealthy(stageName, err.Error())
	}
	health := stage.Healthy(stageName, engine.Providers()...)
	health.Detail = s.cfg.Job.VoiceQuality + " voices"
	return health
}
