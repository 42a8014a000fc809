package timing

import (
	"context"
	"fmt"
	"log/slog"

	"slidecast/internal/config"
	"slidecast/internal/logging"
	"slidecast/internal/queue"
	"slidecast/internal/stage"
)

const stageName = "timing"

// Stage assigns on-screen durations to every slide of a synthesized deck.
type Stage struct {
	store  *queue.Store
	policy Policy
	logger *slog.Logger
}

// NewStage constructs the timing stage handler.
func NewStage(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Stage {
	s := &Stage{store: store, policy: PolicyFromConfig(cfg)}
	s.SetLogger(logger)
	return s
}

// SetLogger replaces the stage logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, stageName)
}

func (s *Stage) Prepare(ctx context.Context, job *queue.Job) error {
	job.SetProgress("Timing", "Computing slide durations", 0)
	return nil
}

func (s *Stage) Execute(ctx context.Context, job *queue.Job) error {
	d, err := stage.LoadDeck(job)
	if err != nil {
		return err
	}
	total := Apply(d, s.policy)
	job.SetProgressComplete("Timing", fmt.Sprintf("Lecture runs %.1fs over %d slides", total, len(d.Slides)))
	if err := stage.SaveDeck(ctx, s.store, job, d); err != nil {
		return err
	}
	logging.WithContext(ctx, s.logger).Info("slide durations computed",
		logging.SlideCount(len(d.Slides)),
		logging.Float64("total_seconds", total),
		logging.Float64("floor_seconds", s.policy.FloorSeconds),
	)
	return nil
}

func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s.policy.FloorSeconds <= 0 {
		return stage.Unhealthy(stageName, "timing floor must be positive")
	}
	return stage.Healthy(stageName)
}
